package controllers

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gadar/bestrong/config"
	"github.com/gadar/bestrong/models"
	"github.com/gadar/bestrong/utils"
)

// TikTokController links accounts via OAuth2 and proxies Business API calls.
type TikTokController struct {
	db     *gorm.DB
	client *utils.TikTokClient
}

// NewTikTokController creates a new controller instance.
func NewTikTokController(db *gorm.DB, client *utils.TikTokClient) *TikTokController {
	return &TikTokController{db: db, client: client}
}

// Authorize returns the consent URL with a single-use state token.
func (t *TikTokController) Authorize(ctx *gin.Context) {
	if !config.Get().TikTokEnabled() {
		utils.Error(ctx, http.StatusServiceUnavailable, 50380, "tiktok integration is not configured")
		return
	}

	state := uuid.NewString()
	utils.SaveState(state, 10*time.Minute)

	utils.Success(ctx, gin.H{"url": t.client.AuthorizeURL(state), "state": state})
}

// Callback finishes the OAuth2 flow: state check, code exchange, then upsert
// of the account row.
func (t *TikTokController) Callback(ctx *gin.Context) {
	state := ctx.Query("state")
	code := ctx.Query("code")
	if state == "" || code == "" {
		utils.Error(ctx, http.StatusBadRequest, 40080, "missing state or code")
		return
	}

	if !utils.ConsumeState(state) {
		utils.Error(ctx, http.StatusUnauthorized, 40180, "invalid or expired state")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	token, err := t.client.Exchange(ctx.Request.Context(), code)
	if err != nil {
		utils.Error(ctx, http.StatusBadGateway, 50280, "token exchange failed")
		return
	}

	businessID, _ := token.Extra("open_id").(string)
	scope, _ := token.Extra("scope").(string)

	account := models.TikTokAccount{
		UserID:       userID,
		BusinessID:   businessID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Scope:        scope,
		ExpiresAt:    token.Expiry,
	}
	err = t.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"business_id", "access_token", "refresh_token", "scope", "expires_at", "updated_at",
		}),
	}).Create(&account).Error
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50080, "failed to store account")
		return
	}

	utils.Success(ctx, gin.H{"connected": true, "business_id": businessID})
}

// Status reports whether the caller has a linked account and if its token is
// still valid.
func (t *TikTokController) Status(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var account models.TikTokAccount
	if err := t.db.Where("user_id = ?", userID).First(&account).Error; err != nil {
		utils.Success(ctx, gin.H{"connected": false})
		return
	}

	utils.Success(ctx, gin.H{
		"connected":   true,
		"business_id": account.BusinessID,
		"scope":       account.Scope,
		"expired":     account.Expired(time.Now()),
	})
}

// Disconnect unlinks the caller's account.
func (t *TikTokController) Disconnect(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	res := t.db.Where("user_id = ?", userID).Delete(&models.TikTokAccount{})
	if res.Error != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50081, "failed to disconnect account")
		return
	}
	if res.RowsAffected == 0 {
		utils.Error(ctx, http.StatusNotFound, 40480, "no linked account")
		return
	}

	utils.Success(ctx, gin.H{"connected": false})
}

// account loads the caller's linked account or writes the error response.
func (t *TikTokController) account(ctx *gin.Context) (*models.TikTokAccount, bool) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return nil, false
	}

	var account models.TikTokAccount
	if err := t.db.Where("user_id = ?", userID).First(&account).Error; err != nil {
		utils.Error(ctx, http.StatusPreconditionFailed, 41280, "no linked tiktok account")
		return nil, false
	}
	if account.Expired(time.Now()) {
		utils.Error(ctx, http.StatusUnauthorized, 40181, "tiktok token expired, reconnect the account")
		return nil, false
	}
	return &account, true
}

// proxy forwards a call upstream and reshapes the answer into the envelope.
func (t *TikTokController) proxy(ctx *gin.Context, method, path string, query url.Values, payload any) {
	account, ok := t.account(ctx)
	if !ok {
		return
	}

	out, err := t.client.Do(ctx.Request.Context(), method, path, account.AccessToken, account.BusinessID, query, payload)
	if err != nil {
		msg := "tiktok upstream error"
		if out != nil {
			if m, ok := out["message"].(string); ok && m != "" {
				msg = m
			}
		}
		utils.Error(ctx, http.StatusBadGateway, 50281, msg)
		return
	}

	utils.Success(ctx, out["data"])
}

// Videos lists the account's videos.
func (t *TikTokController) Videos(ctx *gin.Context) {
	q := url.Values{}
	if cursor := ctx.Query("cursor"); cursor != "" {
		q.Set("cursor", cursor)
	}
	t.proxy(ctx, http.MethodGet, "/video/list/", q, nil)
}

// PublishVideo posts a video by URL.
func (t *TikTokController) PublishVideo(ctx *gin.Context) {
	var payload map[string]any
	if err := ctx.ShouldBindJSON(&payload); err != nil || len(payload) == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40081, "invalid request payload")
		return
	}
	t.proxy(ctx, http.MethodPost, "/video/publish/", nil, payload)
}

// Comments lists comments for a video.
func (t *TikTokController) Comments(ctx *gin.Context) {
	videoID := ctx.Query("video_id")
	if videoID == "" {
		utils.Error(ctx, http.StatusBadRequest, 40082, "video_id query parameter required")
		return
	}
	q := url.Values{}
	q.Set("video_id", videoID)
	if cursor := ctx.Query("cursor"); cursor != "" {
		q.Set("cursor", cursor)
	}
	t.proxy(ctx, http.MethodGet, "/comment/list/", q, nil)
}

// CreateComment posts a comment on a video.
func (t *TikTokController) CreateComment(ctx *gin.Context) {
	type request struct {
		VideoID string `json:"video_id" binding:"required"`
		Text    string `json:"text" binding:"required"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40083, "invalid request payload")
		return
	}
	t.proxy(ctx, http.MethodPost, "/comment/create/", nil, gin.H{
		"video_id": req.VideoID,
		"text":     utils.Sanitize(strings.TrimSpace(req.Text)),
	})
}

// ReplyComment replies to an existing comment.
func (t *TikTokController) ReplyComment(ctx *gin.Context) {
	type request struct {
		VideoID   string `json:"video_id" binding:"required"`
		CommentID string `json:"comment_id" binding:"required"`
		Text      string `json:"text" binding:"required"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40084, "invalid request payload")
		return
	}
	t.proxy(ctx, http.MethodPost, "/comment/reply/create/", nil, gin.H{
		"video_id":   req.VideoID,
		"comment_id": req.CommentID,
		"text":       utils.Sanitize(strings.TrimSpace(req.Text)),
	})
}

// DeleteComment removes a comment.
func (t *TikTokController) DeleteComment(ctx *gin.Context) {
	id := ctx.Param("id")
	if id == "" {
		utils.Error(ctx, http.StatusBadRequest, 40085, "invalid comment id")
		return
	}
	t.proxy(ctx, http.MethodPost, "/comment/delete/", nil, gin.H{"comment_id": id})
}

// HideComment hides a comment on one of the account's videos.
func (t *TikTokController) HideComment(ctx *gin.Context) {
	id := ctx.Param("id")
	if id == "" {
		utils.Error(ctx, http.StatusBadRequest, 40085, "invalid comment id")
		return
	}
	t.proxy(ctx, http.MethodPost, "/comment/hide/", nil, gin.H{"comment_id": id, "hide": true})
}
