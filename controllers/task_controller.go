package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gadar/bestrong/models"
	"github.com/gadar/bestrong/utils"
)

const taskListCachePrefix = "cache:tasks:"

// engagementVerifier checks that an account performed an action against a
// video URL. Satisfied by *utils.TikTokClient.
type engagementVerifier interface {
	VerifyEngagement(ctx context.Context, action, targetURL, account string) (bool, string)
}

// TaskController manages exchange tasks and their settlement.
type TaskController struct {
	db     *gorm.DB
	tiktok engagementVerifier
}

// NewTaskController creates a new controller instance.
func NewTaskController(db *gorm.DB, tiktok engagementVerifier) *TaskController {
	return &TaskController{db: db, tiktok: tiktok}
}

// Create publishes a task. Non-admin creators pay Credits*Actions up-front
// inside the same transaction that inserts the task.
func (t *TaskController) Create(ctx *gin.Context) {
	type request struct {
		Type    string `json:"type" binding:"required"`
		URL     string `json:"url" binding:"required"`
		Credits int    `json:"credits" binding:"required,min=1"`
		Actions int    `json:"actions" binding:"required,min=1"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	taskType := models.TaskType(strings.ToUpper(strings.TrimSpace(req.Type)))
	if !taskType.Valid() {
		utils.Error(ctx, http.StatusBadRequest, 40021, "unknown task type")
		return
	}

	rawURL := strings.TrimSpace(req.URL)
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		utils.Error(ctx, http.StatusBadRequest, 40022, "task url must be absolute")
		return
	}
	host := strings.ToLower(parsed.Hostname())
	if host != "tiktok.com" && !strings.HasSuffix(host, ".tiktok.com") {
		utils.Error(ctx, http.StatusBadRequest, 40028, "task url must point to tiktok.com")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	task := models.Task{
		Type:             taskType,
		URL:              rawURL,
		Credits:          req.Credits,
		ActionsRemaining: req.Actions,
		CreatorID:        userID,
	}
	cost := task.TotalCost()
	free := isAdmin(ctx)

	var creator models.User
	err = t.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&creator, userID).Error; err != nil {
			return err
		}

		if !free {
			if creator.Credits < cost {
				return errInsufficientCredits
			}
			if err := tx.Model(&creator).
				Update("credits", gorm.Expr("credits - ?", cost)).Error; err != nil {
				return err
			}
			creator.Credits -= cost
		}

		return tx.Create(&task).Error
	})
	if err != nil {
		if errors.Is(err, errInsufficientCredits) {
			utils.Error(ctx, http.StatusBadRequest, 40023, "insufficient credits to publish task")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to create task")
		return
	}

	recordActivity(t.db, &creator, models.ActivityTaskCreated, fmt.Sprintf("published %s task", task.Type), 0, map[string]any{
		"task_id": task.ID,
		"url":     task.URL,
	})
	if !free && cost > 0 {
		recordActivity(t.db, &creator, models.ActivityCreditsSpent, "credits spent on task", cost, map[string]any{
			"task_id": task.ID,
		})
	}

	utils.InvalidateByPrefix(taskListCachePrefix)

	utils.Created(ctx, gin.H{"task": task, "cost": cost})
}

var errInsufficientCredits = errors.New("insufficient credits")
var errTaskExhausted = errors.New("task exhausted")
var errDuplicateCompletion = errors.New("duplicate completion")

// List returns tasks with completion counts, newest first. Exhausted tasks
// can be excluded with ?active=1. Results are cached per page in Redis.
func (t *TaskController) List(ctx *gin.Context) {
	page, size := parsePagination(ctx.Query("page"), ctx.Query("size"))
	activeOnly := ctx.Query("active") == "1"

	cacheKey := fmt.Sprintf("%sp%d:s%d:a%v", taskListCachePrefix, page, size, activeOnly)
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json; charset=utf-8", b)
		return
	}

	q := t.db.Model(&models.Task{}).Preload("Creator")
	if activeOnly {
		q = q.Where("actions_remaining > 0")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to count tasks")
		return
	}

	var tasks []models.Task
	if err := q.Order("created_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&tasks).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to list tasks")
		return
	}

	ids := make([]uint, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}

	counts := map[uint]int64{}
	if len(ids) > 0 {
		type row struct {
			TaskID uint
			N      int64
		}
		var rows []row
		if err := t.db.Model(&models.Completion{}).
			Select("task_id, COUNT(*) AS n").
			Where("task_id IN ?", ids).
			Group("task_id").
			Scan(&rows).Error; err == nil {
			for _, r := range rows {
				counts[r.TaskID] = r.N
			}
		}
	}

	items := make([]gin.H, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, gin.H{
			"task":        task,
			"completions": counts[task.ID],
		})
	}

	payload := gin.H{"tasks": items, "total": total, "page": page, "size": size}
	if b, err := json.Marshal(utils.JSONResponse{Code: 0, Message: "success", Data: payload}); err == nil {
		utils.CacheSetBytes(cacheKey, b, 30*time.Second)
	}
	utils.Success(ctx, payload)
}

// Get returns one task with its completion count.
func (t *TaskController) Get(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40024, "invalid task id")
		return
	}

	var task models.Task
	if err := t.db.Preload("Creator").First(&task, uint(id)).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40420, "task not found")
		return
	}

	var completions int64
	t.db.Model(&models.Completion{}).Where("task_id = ?", task.ID).Count(&completions)

	utils.Success(ctx, gin.H{"task": task, "completions": completions})
}

// Complete settles one completion. The engagement check calls out to TikTok
// with a long timeout, so it runs before the transaction; the task row is
// only locked for the duplicate and exhaustion re-checks plus the writes.
// Any failure rolls everything back so a retry never double-credits.
func (t *TaskController) Complete(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40024, "invalid task id")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var task models.Task
	if err := t.db.First(&task, uint(id)).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40420, "task not found")
		return
	}

	// Cheap unlocked pre-checks so a dead task never triggers the verify
	// call. The transaction repeats both against the locked row.
	var count int64
	if err := t.db.Model(&models.Completion{}).
		Where("task_id = ? AND user_id = ?", task.ID, userID).
		Count(&count).Error; err == nil && count > 0 {
		utils.Error(ctx, http.StatusConflict, 40920, "task already completed by this account")
		return
	}
	if task.ActionsRemaining <= 0 {
		utils.Error(ctx, http.StatusBadRequest, 40025, "task has no actions remaining")
		return
	}

	verified, result := t.tiktok.VerifyEngagement(ctx.Request.Context(), string(task.Type), task.URL, getPhone(ctx))

	var (
		completion models.Completion
		earned     int
	)

	txErr := t.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&task, uint(id)).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.Completion{}).
			Where("task_id = ? AND user_id = ?", task.ID, userID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errDuplicateCompletion
		}

		if task.ActionsRemaining <= 0 {
			return errTaskExhausted
		}

		status := models.CompletionPending
		if verified {
			status = models.CompletionVerified
		}

		completion = models.Completion{
			TaskID:      task.ID,
			UserID:      userID,
			Status:      status,
			Result:      result,
			Receipt:     uuid.NewString(),
			CompletedAt: time.Now(),
		}
		if err := tx.Create(&completion).Error; err != nil {
			return err
		}

		if err := tx.Model(&task).
			Update("actions_remaining", gorm.Expr("actions_remaining - 1")).Error; err != nil {
			return err
		}
		task.ActionsRemaining--

		if verified {
			if err := tx.Model(&models.User{}).
				Where("id = ?", userID).
				Update("credits", gorm.Expr("credits + ?", task.Credits)).Error; err != nil {
				return err
			}
			earned = task.Credits
		}

		return nil
	})

	switch {
	case errors.Is(txErr, errDuplicateCompletion):
		utils.Error(ctx, http.StatusConflict, 40920, "task already completed by this account")
		return
	case errors.Is(txErr, errTaskExhausted):
		utils.Error(ctx, http.StatusBadRequest, 40025, "task has no actions remaining")
		return
	case errors.Is(txErr, gorm.ErrRecordNotFound):
		utils.Error(ctx, http.StatusNotFound, 40420, "task not found")
		return
	case txErr != nil:
		// Unique index backstop: a racing duplicate insert surfaces here.
		if strings.Contains(strings.ToLower(txErr.Error()), "unique") ||
			strings.Contains(strings.ToLower(txErr.Error()), "duplicate") {
			utils.Error(ctx, http.StatusConflict, 40920, "task already completed by this account")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to record completion")
		return
	}

	var user models.User
	if err := t.db.First(&user, userID).Error; err == nil {
		recordActivity(t.db, &user, models.ActivityTaskCompleted, fmt.Sprintf("completed %s task", task.Type), 0, map[string]any{
			"task_id": task.ID,
			"receipt": completion.Receipt,
			"status":  completion.Status,
		})
		if earned > 0 {
			recordActivity(t.db, &user, models.ActivityCreditsEarned, "credits earned from task", earned, map[string]any{
				"task_id": task.ID,
			})
		}
	}

	utils.InvalidateByPrefix(taskListCachePrefix)

	utils.Success(ctx, gin.H{
		"completion": completion,
		"earned":     earned,
		"balance":    user.Credits,
	})
}

// Moderate reviews a pending completion: approve credits the worker inside a
// transaction; reject restores the task's consumed action.
func (t *TaskController) Moderate(ctx *gin.Context) {
	type request struct {
		CompletionID uint   `json:"completion_id" binding:"required"`
		Decision     string `json:"decision" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40026, "invalid request payload")
		return
	}

	var next models.CompletionStatus
	switch strings.ToLower(req.Decision) {
	case "approve":
		next = models.CompletionVerified
	case "reject":
		next = models.CompletionRejected
	default:
		utils.Error(ctx, http.StatusBadRequest, 40027, "decision must be approve or reject")
		return
	}

	taskID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40024, "invalid task id")
		return
	}

	userID, _ := getUserID(ctx)
	admin := isAdmin(ctx)

	var completion models.Completion
	var task models.Task
	txErr := t.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&task, uint(taskID)).Error; err != nil {
			return err
		}
		if !admin && task.CreatorID != userID {
			return errNotTaskOwner
		}

		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND task_id = ?", req.CompletionID, task.ID).
			First(&completion).Error; err != nil {
			return err
		}

		if !completion.Status.CanTransition(next) {
			return errCompletionFinal
		}

		if err := tx.Model(&completion).Update("status", next).Error; err != nil {
			return err
		}
		completion.Status = next

		switch next {
		case models.CompletionVerified:
			return tx.Model(&models.User{}).
				Where("id = ?", completion.UserID).
				Update("credits", gorm.Expr("credits + ?", task.Credits)).Error
		case models.CompletionRejected:
			return tx.Model(&task).
				Update("actions_remaining", gorm.Expr("actions_remaining + 1")).Error
		}
		return nil
	})

	switch {
	case errors.Is(txErr, errNotTaskOwner):
		utils.Error(ctx, http.StatusForbidden, 40320, "only the task owner can moderate completions")
		return
	case errors.Is(txErr, errCompletionFinal):
		utils.Error(ctx, http.StatusConflict, 40921, "completion already reviewed")
		return
	case errors.Is(txErr, gorm.ErrRecordNotFound):
		utils.Error(ctx, http.StatusNotFound, 40421, "task or completion not found")
		return
	case txErr != nil:
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to moderate completion")
		return
	}

	if next == models.CompletionVerified {
		var worker models.User
		if err := t.db.First(&worker, completion.UserID).Error; err == nil {
			recordActivity(t.db, &worker, models.ActivityCreditsEarned, "completion approved", task.Credits, map[string]any{
				"task_id": task.ID,
			})
		}
	}

	utils.InvalidateByPrefix(taskListCachePrefix)
	utils.Success(ctx, gin.H{"completion": completion})
}

var errNotTaskOwner = errors.New("not task owner")
var errCompletionFinal = errors.New("completion already reviewed")

// Delete removes a task and its completions. Owner or admin only.
func (t *TaskController) Delete(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40024, "invalid task id")
		return
	}

	userID, _ := getUserID(ctx)
	admin := isAdmin(ctx)

	var task models.Task
	if err := t.db.First(&task, uint(id)).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40420, "task not found")
		return
	}
	if !admin && task.CreatorID != userID {
		utils.Error(ctx, http.StatusForbidden, 40321, "only the task owner can delete it")
		return
	}

	err = t.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", task.ID).Delete(&models.Completion{}).Error; err != nil {
			return err
		}
		return tx.Delete(&task).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to delete task")
		return
	}

	utils.InvalidateByPrefix(taskListCachePrefix)
	utils.Success(ctx, gin.H{"message": "task deleted"})
}

// Mine lists the caller's own tasks with their completions preloaded.
func (t *TaskController) Mine(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var tasks []models.Task
	if err := t.db.Where("creator_id = ?", userID).
		Order("created_at DESC").Find(&tasks).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to list tasks")
		return
	}

	utils.Success(ctx, gin.H{"tasks": tasks})
}

// Balance returns the caller's current credit balance.
func (t *TaskController) Balance(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var user models.User
	if err := t.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
		return
	}

	utils.Success(ctx, gin.H{"credits": user.Credits})
}
