package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gadar/bestrong/config"
	"github.com/gadar/bestrong/models"
	"github.com/gadar/bestrong/utils"
)

// AdminController carries the admin-only account and credit operations.
type AdminController struct {
	db *gorm.DB
}

// NewAdminController creates a new controller instance.
func NewAdminController(db *gorm.DB) *AdminController {
	return &AdminController{db: db}
}

// ListUsers returns a paginated user listing with optional phone search.
func (a *AdminController) ListUsers(ctx *gin.Context) {
	page, size := parsePagination(ctx.Query("page"), ctx.Query("size"))

	q := a.db.Model(&models.User{})
	if search := ctx.Query("q"); search != "" {
		q = q.Where("phone LIKE ? OR pseudo LIKE ?", "%"+search+"%", "%"+search+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to count users")
		return
	}

	var users []models.User
	if err := q.Order("created_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&users).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to list users")
		return
	}

	items := make([]gin.H, 0, len(users))
	for _, u := range users {
		items = append(items, sanitizeUser(u))
	}

	utils.Success(ctx, gin.H{"users": items, "total": total, "page": page, "size": size})
}

// SetCredits sets a user's balance to an absolute value. The delta against the
// previous balance is recorded as an earned/spent activity; when the new
// balance reaches the top 50 and the user has no profile links, a nudge
// notification asks them to fill their profile in.
func (a *AdminController) SetCredits(ctx *gin.Context) {
	type request struct {
		UserID  uint `json:"user_id" binding:"required"`
		Credits *int `json:"credits" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil || *req.Credits < 0 {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	user, err := a.setCreditsForUser(req.UserID, *req.Credits)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to update credits")
		return
	}

	utils.Success(ctx, gin.H{"user": sanitizeUser(*user)})
}

// BulkSetCredits applies the SetCredits contract to a list of user ids.
// Duplicate ids are collapsed; per-user failures are reported, not fatal.
func (a *AdminController) BulkSetCredits(ctx *gin.Context) {
	type request struct {
		UserIDs []uint `json:"user_ids" binding:"required,min=1"`
		Credits *int   `json:"credits" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil || *req.Credits < 0 {
		utils.Error(ctx, http.StatusBadRequest, 40031, "invalid request payload")
		return
	}

	updated := 0
	failed := make([]uint, 0)
	for _, id := range utils.UniqueUint(req.UserIDs) {
		if _, err := a.setCreditsForUser(id, *req.Credits); err != nil {
			failed = append(failed, id)
			continue
		}
		updated++
	}

	utils.Success(ctx, gin.H{"updated": updated, "failed": failed})
}

func (a *AdminController) setCreditsForUser(userID uint, value int) (*models.User, error) {
	var user models.User
	var previous int
	err := a.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, userID).Error; err != nil {
			return err
		}
		previous = user.Credits
		return tx.Model(&user).Update("credits", value).Error
	})
	if err != nil {
		return nil, err
	}
	user.Credits = value

	delta := value - previous
	if delta != 0 {
		typ := models.ActivityCreditsEarned
		if delta < 0 {
			typ = models.ActivityCreditsSpent
			delta = -delta
		}
		recordActivity(a.db, &user, typ, "admin credit adjustment", delta, map[string]any{
			"previous": previous,
			"new":      value,
		})
	}

	a.maybeLeaderboardNudge(&user)
	return &user, nil
}

// maybeLeaderboardNudge notifies a top-50 user who has not filled in profile
// links yet. Strictly best-effort.
func (a *AdminController) maybeLeaderboardNudge(user *models.User) {
	if user.HasLinks() {
		return
	}

	var better int64
	if err := a.db.Model(&models.User{}).
		Where("credits > ?", user.Credits).
		Count(&better).Error; err != nil || better >= 50 {
		return
	}

	n := models.Notification{
		Recipient: user.Phone,
		Message:   "Tu es dans le top 50 ! Ajoute tes liens TikTok sur ton profil pour recevoir des actions.",
		CreatedAt: time.Now(),
	}
	if err := a.db.Create(&n).Error; err != nil && utils.Sugar != nil {
		utils.Sugar.Warnf("leaderboard nudge failed user=%d err=%v", user.ID, err)
	}
}

// SecuritySummary aggregates the signals the admin panel surfaces: failed
// logins and suspicious activities over the last 24h, banned accounts, and the
// most recent audit entries.
func (a *AdminController) SecuritySummary(ctx *gin.Context) {
	since := time.Now().Add(-24 * time.Hour)

	var failedLogins, suspicious, banned, withAccess int64
	a.db.Model(&models.Activity{}).
		Where("type = ? AND created_at > ?", models.ActivityLoginFailed, since).
		Count(&failedLogins)
	a.db.Model(&models.Activity{}).
		Where("type = ? AND created_at > ?", models.ActivitySuspicious, since).
		Count(&suspicious)
	a.db.Model(&models.User{}).Where("dashboard_access = ?", false).Count(&banned)
	a.db.Model(&models.User{}).Where("dashboard_access = ?", true).Count(&withAccess)

	var recent []models.Activity
	a.db.Order("created_at DESC").Limit(20).Find(&recent)

	cfg := config.Get()
	alerts := make([]string, 0)
	if failedLogins > int64(cfg.FailedMaxPerIPPerHour) {
		alerts = append(alerts, fmt.Sprintf("failed logins above threshold: %d in 24h", failedLogins))
	}
	if suspicious > 0 {
		alerts = append(alerts, fmt.Sprintf("%d suspicious activities in 24h", suspicious))
	}

	utils.Success(ctx, gin.H{
		"failed_logins_24h": failedLogins,
		"suspicious_24h":    suspicious,
		"banned_users":      banned,
		"users_with_access": withAccess,
		"recent_activities": recent,
		"alerts":            alerts,
	})
}

// SecurityAction bans or unbans an account by toggling dashboard access.
func (a *AdminController) SecurityAction(ctx *gin.Context) {
	type request struct {
		Action string `json:"action" binding:"required"`
		UserID uint   `json:"user_id" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40032, "invalid request payload")
		return
	}

	var access bool
	switch req.Action {
	case "ban_user":
		access = false
	case "unban_user":
		access = true
	default:
		utils.Error(ctx, http.StatusBadRequest, 40033, "unknown security action")
		return
	}

	var user models.User
	if err := a.db.First(&user, req.UserID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
		return
	}

	if err := a.db.Model(&user).Update("dashboard_access", access).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50033, "failed to update user")
		return
	}
	user.DashboardAccess = access

	recordActivity(a.db, &user, models.ActivitySuspicious, req.Action, 0, map[string]any{
		"by": getPhone(ctx),
	})

	utils.Success(ctx, gin.H{"user": sanitizeUser(user)})
}

// IssueResetCode generates a short-lived single-use password reset code for a
// user and hands it to the admin to relay out of band.
func (a *AdminController) IssueResetCode(ctx *gin.Context) {
	type request struct {
		Phone   string `json:"phone" binding:"required"`
		Country string `json:"country"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40034, "invalid request payload")
		return
	}

	phone := utils.ComposePhone(req.Country, req.Phone)

	var user models.User
	if err := a.db.Where("phone = ?", phone).First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
		return
	}

	code := utils.GenerateResetCode(6)
	utils.SaveResetCode(phone, code, 15*time.Minute)

	utils.Success(ctx, gin.H{"phone": phone, "code": code, "expires_in": 900})
}

// BulkDeleteTasks wipes every task and completion. Used when resetting the
// exchange between campaigns.
func (a *AdminController) BulkDeleteTasks(ctx *gin.Context) {
	var tasks, completions int64
	a.db.Model(&models.Task{}).Count(&tasks)
	a.db.Model(&models.Completion{}).Count(&completions)

	err := a.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.Task{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&models.Completion{}).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50034, "failed to delete tasks")
		return
	}

	utils.InvalidateByPrefix(taskListCachePrefix)
	utils.Success(ctx, gin.H{"tasks_deleted": tasks, "completions_deleted": completions})
}

// DeleteUser removes an account and its dependent rows.
func (a *AdminController) DeleteUser(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40035, "invalid user id")
		return
	}

	var user models.User
	if err := a.db.First(&user, uint(id)).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
		return
	}

	err = a.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Completion{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Activity{}).Error; err != nil {
			return err
		}
		if err := tx.Where("recipient = ?", user.Phone).Delete(&models.Notification{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50035, "failed to delete user")
		return
	}

	utils.Success(ctx, gin.H{"message": "user deleted"})
}
