package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/gadar/bestrong/models"
	"github.com/gadar/bestrong/utils"
)

// ActivityController exposes the audit feed.
type ActivityController struct {
	db *gorm.DB
}

// NewActivityController creates a new controller instance.
func NewActivityController(db *gorm.DB) *ActivityController {
	return &ActivityController{db: db}
}

// List returns recent activities, admin view. Filterable by type, user id
// and phone.
func (a *ActivityController) List(ctx *gin.Context) {
	page, size := parsePagination(ctx.Query("page"), ctx.Query("size"))

	q := a.db.Model(&models.Activity{})
	if typ := ctx.Query("type"); typ != "" {
		if !models.ActivityType(typ).Valid() {
			utils.Error(ctx, http.StatusBadRequest, 40050, "unknown activity type")
			return
		}
		q = q.Where("type = ?", typ)
	}
	if uid := ctx.Query("user_id"); uid != "" {
		q = q.Where("user_id = ?", uid)
	}
	if phone := ctx.Query("phone"); phone != "" {
		q = q.Where("phone = ?", utils.NormalizePhone(phone))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to count activities")
		return
	}

	var items []models.Activity
	if err := q.Order("created_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&items).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to list activities")
		return
	}

	utils.Success(ctx, gin.H{"activities": items, "total": total, "page": page, "size": size})
}

// Mine returns the caller's own recent activities.
func (a *ActivityController) Mine(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var items []models.Activity
	if err := a.db.Where("user_id = ?", userID).
		Order("created_at DESC").Limit(50).
		Find(&items).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to list activities")
		return
	}

	utils.Success(ctx, gin.H{"activities": items})
}

// Append records an activity on behalf of the caller. The type must be one
// of the closed set; arbitrary strings are rejected.
func (a *ActivityController) Append(ctx *gin.Context) {
	type request struct {
		Type        string         `json:"type" binding:"required"`
		Description string         `json:"description"`
		Credits     int            `json:"credits"`
		Details     map[string]any `json:"details"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40051, "invalid request payload")
		return
	}

	typ := models.ActivityType(req.Type)
	if !typ.Valid() {
		utils.Error(ctx, http.StatusBadRequest, 40050, "unknown activity type")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
		return
	}

	recordActivity(a.db, &user, typ, utils.Sanitize(req.Description), req.Credits, req.Details)
	utils.Created(ctx, gin.H{"message": "recorded"})
}
