package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/gadar/bestrong/models"
	"github.com/gadar/bestrong/utils"
)

const leaderboardCacheKey = "cache:leaderboard"

// StatsController serves platform counters and the leaderboard.
type StatsController struct {
	db *gorm.DB
}

// NewStatsController creates a new controller instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

// Overview returns platform-wide counts plus today's API hit total.
func (s *StatsController) Overview(ctx *gin.Context) {
	var users, tasks, completions, payments int64
	s.db.Model(&models.User{}).Count(&users)
	s.db.Model(&models.Task{}).Count(&tasks)
	s.db.Model(&models.Completion{}).Count(&completions)
	s.db.Model(&models.Payment{}).Where("status = ?", models.PaymentSuccessful).Count(&payments)

	now := time.Now().In(time.Local)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var hits int64
	s.db.Model(&models.APIUsage{}).
		Where("date = ?", today).
		Select("COALESCE(SUM(count), 0)").
		Scan(&hits)

	utils.Success(ctx, gin.H{
		"users":          users,
		"tasks":          tasks,
		"completions":    completions,
		"payments":       payments,
		"api_hits_today": hits,
	})
}

// UserCount returns the registered-user total.
func (s *StatsController) UserCount(ctx *gin.Context) {
	var users int64
	s.db.Model(&models.User{}).Count(&users)
	utils.Success(ctx, gin.H{"users": users})
}

// UserStats returns one user's credits, tasks created, completions and rank.
func (s *StatsController) UserStats(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40035, "invalid user id")
		return
	}

	var user models.User
	if err := s.db.First(&user, uint(id)).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
		return
	}

	var tasksCreated, completions, better int64
	s.db.Model(&models.Task{}).Where("creator_id = ?", user.ID).Count(&tasksCreated)
	s.db.Model(&models.Completion{}).Where("user_id = ?", user.ID).Count(&completions)
	s.db.Model(&models.User{}).Where("credits > ?", user.Credits).Count(&better)

	utils.Success(ctx, gin.H{
		"user_id":       user.ID,
		"pseudo":        user.Pseudo,
		"credits":       user.Credits,
		"tasks_created": tasksCreated,
		"completions":   completions,
		"rank":          better + 1,
	})
}

// Leaderboard returns the top 50 users by credits, cached for a minute.
func (s *StatsController) Leaderboard(ctx *gin.Context) {
	if b, ok := utils.CacheGetBytes(leaderboardCacheKey); ok {
		ctx.Data(http.StatusOK, "application/json; charset=utf-8", b)
		return
	}

	var users []models.User
	if err := s.db.Order("credits DESC").Limit(50).Find(&users).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50090, "failed to load leaderboard")
		return
	}

	items := make([]gin.H, 0, len(users))
	for i, u := range users {
		items = append(items, gin.H{
			"rank":    i + 1,
			"user_id": u.ID,
			"pseudo":  u.Pseudo,
			"credits": u.Credits,
		})
	}

	payload := gin.H{"leaderboard": items}
	if b, err := json.Marshal(utils.JSONResponse{Code: 0, Message: "success", Data: payload}); err == nil {
		utils.CacheSetBytes(leaderboardCacheKey, b, time.Minute)
	}
	utils.Success(ctx, payload)
}
