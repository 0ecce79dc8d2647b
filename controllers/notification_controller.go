package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/gadar/bestrong/config"
	"github.com/gadar/bestrong/models"
	"github.com/gadar/bestrong/utils"
)

// NotificationController serves per-user and broadcast notifications.
type NotificationController struct {
	db *gorm.DB
}

// NewNotificationController creates a new controller instance.
func NewNotificationController(db *gorm.DB) *NotificationController {
	return &NotificationController{db: db}
}

// List returns the caller's notifications plus broadcasts, newest first.
// Admin phones always get an empty list: operators send notifications, they
// do not receive them.
func (n *NotificationController) List(ctx *gin.Context) {
	phone := getPhone(ctx)
	if phone == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	if config.Get().IsAdminPhone(phone) {
		utils.Success(ctx, gin.H{"notifications": []models.Notification{}})
		return
	}

	var items []models.Notification
	if err := n.db.Where("recipient IN ?", []string{phone, models.BroadcastRecipient}).
		Order("created_at DESC").Limit(100).
		Find(&items).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to list notifications")
		return
	}

	utils.Success(ctx, gin.H{"notifications": items})
}

// Send creates a notification for one user or for everyone (recipient "all").
func (n *NotificationController) Send(ctx *gin.Context) {
	type request struct {
		Recipient string `json:"recipient" binding:"required"`
		Country   string `json:"country"`
		Message   string `json:"message" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}

	message := utils.Sanitize(strings.TrimSpace(req.Message))
	if message == "" {
		utils.Error(ctx, http.StatusBadRequest, 40041, "message is empty")
		return
	}

	recipient := req.Recipient
	if recipient != models.BroadcastRecipient {
		recipient = utils.ComposePhone(req.Country, recipient)
		var user models.User
		if err := n.db.Where("phone = ?", recipient).First(&user).Error; err != nil {
			utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
			return
		}
	}

	item := models.Notification{
		Recipient: recipient,
		Message:   message,
		CreatedAt: time.Now(),
	}
	if err := n.db.Create(&item).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to create notification")
		return
	}

	utils.Created(ctx, gin.H{"notification": item})
}

// MarkRead marks one of the caller's notifications as read. Broadcasts are
// shared rows and cannot be marked per user.
func (n *NotificationController) MarkRead(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40042, "invalid notification id")
		return
	}

	phone := getPhone(ctx)

	var item models.Notification
	if err := n.db.First(&item, uint(id)).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40440, "notification not found")
		return
	}
	if item.Recipient != phone {
		utils.Error(ctx, http.StatusForbidden, 40340, "not your notification")
		return
	}

	if err := n.db.Model(&item).Update("read", true).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to update notification")
		return
	}
	item.Read = true

	utils.Success(ctx, gin.H{"notification": item})
}

// Delete removes a notification (admin only, enforced at the route).
func (n *NotificationController) Delete(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40042, "invalid notification id")
		return
	}

	res := n.db.Delete(&models.Notification{}, uint(id))
	if res.Error != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50043, "failed to delete notification")
		return
	}
	if res.RowsAffected == 0 {
		utils.Error(ctx, http.StatusNotFound, 40440, "notification not found")
		return
	}

	utils.Success(ctx, gin.H{"message": "notification deleted"})
}

// SentBroadcasts returns the broadcast history for the admin panel.
func (n *NotificationController) SentBroadcasts(ctx *gin.Context) {
	var items []models.Notification
	if err := n.db.Where("recipient = ?", models.BroadcastRecipient).
		Order("created_at DESC").Limit(100).
		Find(&items).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to list notifications")
		return
	}

	utils.Success(ctx, gin.H{"notifications": items})
}
