package controllers

import (
	"encoding/json"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/gadar/bestrong/middleware"
	"github.com/gadar/bestrong/models"
	"github.com/gadar/bestrong/utils"
)

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		return uint(v), true
	case int64:
		return uint(v), true
	case float64:
		return uint(v), true
	default:
		return 0, false
	}
}

func getPhone(ctx *gin.Context) string {
	return ctx.GetString(middleware.ContextPhoneKey)
}

func isAdmin(ctx *gin.Context) bool {
	return ctx.GetBool(middleware.ContextAdminKey)
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 20
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}

// recordActivity appends an audit row. Best-effort: the caller's primary
// write stays authoritative even when the audit insert fails.
func recordActivity(db *gorm.DB, user *models.User, typ models.ActivityType, description string, credits int, details map[string]any) {
	entry := models.Activity{
		Type:        typ,
		Description: description,
		Credits:     credits,
	}
	if user != nil {
		entry.UserID = user.ID
		entry.Phone = user.Phone
		entry.Pseudo = user.Pseudo
	}
	if len(details) > 0 {
		if b, err := json.Marshal(details); err == nil {
			entry.Details = string(b)
		}
	}
	if err := db.Create(&entry).Error; err != nil && utils.Sugar != nil {
		utils.Sugar.Warnf("activity record failed type=%s user=%d err=%v", typ, entry.UserID, err)
	}
}

// sanitizeUser strips credentials before returning a user over the API.
// The json tags already hide PasswordHash; this keeps the response shape
// explicit for callers that embed it.
func sanitizeUser(u models.User) gin.H {
	return gin.H{
		"id":                          u.ID,
		"phone":                       u.Phone,
		"pseudo":                      u.Pseudo,
		"country":                     u.Country,
		"credits":                     u.Credits,
		"links":                       u.Links,
		"dashboard_access":            u.DashboardAccess,
		"dashboard_access_expires_at": u.DashboardAccessExpiresAt,
		"last_payment_at":             u.LastPaymentAt,
		"created_at":                  u.CreatedAt,
		"updated_at":                  u.UpdatedAt,
	}
}
