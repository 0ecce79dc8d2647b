package controllers

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/gadar/bestrong/middleware"
	"github.com/gadar/bestrong/models"
)

func TestCreateTaskDebitsCreator(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)

	creator := createUser(t, db, uniquePhone(1), 500)
	token := tokenFor(t, creator)

	w, envelope := doJSON(t, r, http.MethodPost, "/api/v1/exchange/tasks", token, map[string]any{
		"type":    "LIKE",
		"url":     "https://www.tiktok.com/@someone/video/1",
		"credits": 10,
		"actions": 20,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (envelope: %+v)", w.Code, envelope)
	}

	if got := mustCredits(t, db, creator.ID); got != 300 {
		t.Errorf("creator credits = %d, want 300 (500 - 10*20)", got)
	}
	if n := countActivities(t, db, creator.ID, models.ActivityTaskCreated); n != 1 {
		t.Errorf("task_created activities = %d, want 1", n)
	}
	if n := countActivities(t, db, creator.ID, models.ActivityCreditsSpent); n != 1 {
		t.Errorf("credits_spent activities = %d, want 1", n)
	}
}

func TestCreateTaskInsufficientCredits(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)

	creator := createUser(t, db, uniquePhone(2), 50)
	token := tokenFor(t, creator)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/exchange/tasks", token, map[string]any{
		"type":    "FOLLOW",
		"url":     "https://www.tiktok.com/@someone",
		"credits": 10,
		"actions": 20,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	if got := mustCredits(t, db, creator.ID); got != 50 {
		t.Errorf("creator credits = %d, want unchanged 50", got)
	}
	var tasks int64
	db.Model(&models.Task{}).Count(&tasks)
	if tasks != 0 {
		t.Errorf("tasks = %d, want 0", tasks)
	}
}

func TestAdminCreatesTaskForFree(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)

	admin := createUser(t, db, testAdminPhone, 0)
	token := tokenFor(t, admin)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/exchange/tasks", token, map[string]any{
		"type":    "SHARE",
		"url":     "https://www.tiktok.com/@brand/video/9",
		"credits": 5,
		"actions": 100,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	if got := mustCredits(t, db, admin.ID); got != 0 {
		t.Errorf("admin credits = %d, want 0 (no debit)", got)
	}
}

func TestCompleteTaskCreditsWorker(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)

	creator := createUser(t, db, uniquePhone(3), 1000)
	worker := createUser(t, db, uniquePhone(4), 0)

	task := models.Task{Type: models.TaskLike, URL: "https://t", Credits: 15, ActionsRemaining: 2, CreatorID: creator.ID}
	if err := db.Create(&task).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}

	w, envelope := doJSON(t, r, http.MethodPost,
		fmt.Sprintf("/api/v1/exchange/tasks/%d/complete", task.ID), tokenFor(t, worker), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (envelope: %+v)", w.Code, envelope)
	}

	data := dataMap(t, envelope)
	if earned, _ := data["earned"].(float64); int(earned) != 15 {
		t.Errorf("earned = %v, want 15", data["earned"])
	}

	if got := mustCredits(t, db, worker.ID); got != 15 {
		t.Errorf("worker credits = %d, want 15", got)
	}

	var reloaded models.Task
	if err := db.First(&reloaded, task.ID).Error; err != nil {
		t.Fatalf("reload task: %v", err)
	}
	if reloaded.ActionsRemaining != 1 {
		t.Errorf("actions remaining = %d, want 1", reloaded.ActionsRemaining)
	}

	var completion models.Completion
	if err := db.Where("task_id = ? AND user_id = ?", task.ID, worker.ID).First(&completion).Error; err != nil {
		t.Fatalf("load completion: %v", err)
	}
	if completion.Status != models.CompletionVerified {
		t.Errorf("completion status = %s, want verified", completion.Status)
	}
	if completion.Receipt == "" {
		t.Error("completion receipt is empty")
	}

	if n := countActivities(t, db, worker.ID, models.ActivityTaskCompleted); n != 1 {
		t.Errorf("task_completed activities = %d, want 1", n)
	}
	if n := countActivities(t, db, worker.ID, models.ActivityCreditsEarned); n != 1 {
		t.Errorf("credits_earned activities = %d, want 1", n)
	}
}

func TestCompleteTaskTwiceConflicts(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)

	creator := createUser(t, db, uniquePhone(5), 1000)
	worker := createUser(t, db, uniquePhone(6), 0)
	token := tokenFor(t, worker)

	task := models.Task{Type: models.TaskFollow, URL: "https://t", Credits: 10, ActionsRemaining: 5, CreatorID: creator.ID}
	if err := db.Create(&task).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}
	path := fmt.Sprintf("/api/v1/exchange/tasks/%d/complete", task.ID)

	if w, _ := doJSON(t, r, http.MethodPost, path, token, nil); w.Code != http.StatusOK {
		t.Fatalf("first completion status = %d, want 200", w.Code)
	}
	w, _ := doJSON(t, r, http.MethodPost, path, token, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("second completion status = %d, want 409", w.Code)
	}

	// no double credit, no extra consumed action
	if got := mustCredits(t, db, worker.ID); got != 10 {
		t.Errorf("worker credits = %d, want 10", got)
	}
	var reloaded models.Task
	db.First(&reloaded, task.ID)
	if reloaded.ActionsRemaining != 4 {
		t.Errorf("actions remaining = %d, want 4", reloaded.ActionsRemaining)
	}
}

func TestCompleteExhaustedTaskRejected(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)

	creator := createUser(t, db, uniquePhone(7), 1000)
	worker := createUser(t, db, uniquePhone(8), 0)

	task := models.Task{Type: models.TaskComment, URL: "https://t", Credits: 10, ActionsRemaining: 0, CreatorID: creator.ID}
	if err := db.Create(&task).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}

	w, _ := doJSON(t, r, http.MethodPost,
		fmt.Sprintf("/api/v1/exchange/tasks/%d/complete", task.ID), tokenFor(t, worker), nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	var completions int64
	db.Model(&models.Completion{}).Count(&completions)
	if completions != 0 {
		t.Errorf("completions = %d, want 0 (no writes on exhausted task)", completions)
	}
	if got := mustCredits(t, db, worker.ID); got != 0 {
		t.Errorf("worker credits = %d, want 0", got)
	}
}

func TestDeleteTaskCascadesCompletions(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)

	creator := createUser(t, db, uniquePhone(9), 1000)
	worker := createUser(t, db, uniquePhone(10), 0)

	task := models.Task{Type: models.TaskLike, URL: "https://t", Credits: 10, ActionsRemaining: 5, CreatorID: creator.ID}
	if err := db.Create(&task).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}
	path := fmt.Sprintf("/api/v1/exchange/tasks/%d/complete", task.ID)
	if w, _ := doJSON(t, r, http.MethodPost, path, tokenFor(t, worker), nil); w.Code != http.StatusOK {
		t.Fatalf("completion status = %d, want 200", w.Code)
	}

	w, _ := doJSON(t, r, http.MethodDelete,
		fmt.Sprintf("/api/v1/exchange/tasks/%d", task.ID), tokenFor(t, creator), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", w.Code)
	}

	var tasks, completions int64
	db.Model(&models.Task{}).Count(&tasks)
	db.Model(&models.Completion{}).Count(&completions)
	if tasks != 0 {
		t.Errorf("tasks = %d, want 0", tasks)
	}
	if completions != 0 {
		t.Errorf("completions = %d, want 0 (no orphaned completions)", completions)
	}
}

func TestDeleteTaskForeignOwnerForbidden(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)

	creator := createUser(t, db, uniquePhone(11), 1000)
	other := createUser(t, db, uniquePhone(12), 0)

	task := models.Task{Type: models.TaskLike, URL: "https://t", Credits: 10, ActionsRemaining: 5, CreatorID: creator.ID}
	if err := db.Create(&task).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}

	w, _ := doJSON(t, r, http.MethodDelete,
		fmt.Sprintf("/api/v1/exchange/tasks/%d", task.ID), tokenFor(t, other), nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestModerateRejectRestoresAction(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)

	creator := createUser(t, db, uniquePhone(13), 1000)
	worker := createUser(t, db, uniquePhone(14), 0)

	task := models.Task{Type: models.TaskLike, URL: "https://t", Credits: 10, ActionsRemaining: 3, CreatorID: creator.ID}
	if err := db.Create(&task).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}
	completion := models.Completion{TaskID: task.ID, UserID: worker.ID, Status: models.CompletionPending, Receipt: "r-1"}
	if err := db.Create(&completion).Error; err != nil {
		t.Fatalf("create completion: %v", err)
	}

	w, _ := doJSON(t, r, http.MethodPatch,
		fmt.Sprintf("/api/v1/exchange/tasks/%d/complete", task.ID), tokenFor(t, creator), map[string]any{
			"completion_id": completion.ID,
			"decision":      "reject",
		})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var reloaded models.Task
	db.First(&reloaded, task.ID)
	if reloaded.ActionsRemaining != 4 {
		t.Errorf("actions remaining = %d, want 4 (restored)", reloaded.ActionsRemaining)
	}
	if got := mustCredits(t, db, worker.ID); got != 0 {
		t.Errorf("worker credits = %d, want 0", got)
	}

	// second review of the same completion is final
	w, _ = doJSON(t, r, http.MethodPatch,
		fmt.Sprintf("/api/v1/exchange/tasks/%d/complete", task.ID), tokenFor(t, creator), map[string]any{
			"completion_id": completion.ID,
			"decision":      "approve",
		})
	if w.Code != http.StatusConflict {
		t.Fatalf("re-review status = %d, want 409", w.Code)
	}
}

func TestModerateApproveCreditsWorker(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)

	creator := createUser(t, db, uniquePhone(15), 1000)
	worker := createUser(t, db, uniquePhone(16), 0)

	task := models.Task{Type: models.TaskComment, URL: "https://t", Credits: 25, ActionsRemaining: 3, CreatorID: creator.ID}
	if err := db.Create(&task).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}
	completion := models.Completion{TaskID: task.ID, UserID: worker.ID, Status: models.CompletionPending, Receipt: "r-2"}
	if err := db.Create(&completion).Error; err != nil {
		t.Fatalf("create completion: %v", err)
	}

	w, _ := doJSON(t, r, http.MethodPatch,
		fmt.Sprintf("/api/v1/exchange/tasks/%d/complete", task.ID), tokenFor(t, creator), map[string]any{
			"completion_id": completion.ID,
			"decision":      "approve",
		})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := mustCredits(t, db, worker.ID); got != 25 {
		t.Errorf("worker credits = %d, want 25", got)
	}
}

func TestCreateTaskRejectsForeignHost(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)

	creator := createUser(t, db, uniquePhone(40), 500)
	token := tokenFor(t, creator)

	for _, badURL := range []string{
		"https://evil.example.com/watch",
		"https://tiktok.com.evil.com/@someone/video/1",
		"https://notiktok.com/@someone",
	} {
		w, envelope := doJSON(t, r, http.MethodPost, "/api/v1/exchange/tasks", token, map[string]any{
			"type":    "LIKE",
			"url":     badURL,
			"credits": 10,
			"actions": 5,
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("url %q: status = %d, want 400", badURL, w.Code)
		}
		if envelope.Code != 40028 {
			t.Errorf("url %q: code = %d, want 40028", badURL, envelope.Code)
		}
	}

	var tasks int64
	db.Model(&models.Task{}).Count(&tasks)
	if tasks != 0 {
		t.Errorf("tasks = %d, want 0", tasks)
	}
	if got := mustCredits(t, db, creator.ID); got != 500 {
		t.Errorf("creator credits = %d, want unchanged 500", got)
	}
}

func TestCreateTaskStoresURLVerbatim(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)

	creator := createUser(t, db, uniquePhone(41), 500)
	token := tokenFor(t, creator)

	raw := "https://www.tiktok.com/@someone/video/7?is_copy_url=1&is_from_webapp=v1"
	w, envelope := doJSON(t, r, http.MethodPost, "/api/v1/exchange/tasks", token, map[string]any{
		"type":    "COMMENT",
		"url":     raw,
		"credits": 2,
		"actions": 10,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (envelope: %+v)", w.Code, envelope)
	}

	var task models.Task
	if err := db.Where("creator_id = ?", creator.ID).First(&task).Error; err != nil {
		t.Fatalf("load task: %v", err)
	}
	if task.URL != raw {
		t.Errorf("stored url = %q, want %q", task.URL, raw)
	}
}

func TestCreateTaskAllowsShortLinkSubdomain(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)

	creator := createUser(t, db, uniquePhone(42), 500)
	token := tokenFor(t, creator)

	w, envelope := doJSON(t, r, http.MethodPost, "/api/v1/exchange/tasks", token, map[string]any{
		"type":    "FOLLOW",
		"url":     "https://vm.tiktok.com/ZM1234567/",
		"credits": 5,
		"actions": 5,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (envelope: %+v)", w.Code, envelope)
	}
}

type recordingVerifier struct {
	urls     []string
	verified bool
}

func (v *recordingVerifier) VerifyEngagement(_ context.Context, _, targetURL, _ string) (bool, string) {
	v.urls = append(v.urls, targetURL)
	if v.verified {
		return true, "action verified"
	}
	return false, "action not detected"
}

// completeRoute mounts Complete with an explicit verifier and a fixed caller.
func completeRoute(db *gorm.DB, verifier engagementVerifier, u *models.User) *gin.Engine {
	tc := NewTaskController(db, verifier)
	r := gin.New()
	r.POST("/tasks/:id/complete", func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, u.ID)
		c.Set(middleware.ContextPhoneKey, u.Phone)
		tc.Complete(c)
	})
	return r
}

func TestCompleteVerifiesWithStoredURL(t *testing.T) {
	db := newTestDB(t)

	creator := createUser(t, db, uniquePhone(43), 1000)
	worker := createUser(t, db, uniquePhone(44), 0)

	raw := "https://www.tiktok.com/@someone/video/7?is_copy_url=1&is_from_webapp=v1"
	task := models.Task{Type: models.TaskLike, URL: raw, Credits: 8, ActionsRemaining: 3, CreatorID: creator.ID}
	if err := db.Create(&task).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}

	verifier := &recordingVerifier{verified: true}
	r := completeRoute(db, verifier, worker)

	w, _ := doJSON(t, r, http.MethodPost, fmt.Sprintf("/tasks/%d/complete", task.ID), "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	if len(verifier.urls) != 1 {
		t.Fatalf("verifier calls = %d, want 1", len(verifier.urls))
	}
	if verifier.urls[0] != raw {
		t.Errorf("verified url = %q, want %q", verifier.urls[0], raw)
	}
	if got := mustCredits(t, db, worker.ID); got != 8 {
		t.Errorf("worker credits = %d, want 8", got)
	}
}

func TestCompleteSkipsVerifyWhenNothingToSettle(t *testing.T) {
	db := newTestDB(t)

	creator := createUser(t, db, uniquePhone(45), 1000)
	worker := createUser(t, db, uniquePhone(46), 0)

	exhausted := models.Task{Type: models.TaskComment, URL: "https://www.tiktok.com/@a/video/1", Credits: 5, ActionsRemaining: 0, CreatorID: creator.ID}
	if err := db.Create(&exhausted).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}

	verifier := &recordingVerifier{verified: true}
	r := completeRoute(db, verifier, worker)

	if w, _ := doJSON(t, r, http.MethodPost, fmt.Sprintf("/tasks/%d/complete", exhausted.ID), "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("exhausted status = %d, want 400", w.Code)
	}
	if len(verifier.urls) != 0 {
		t.Errorf("verifier calls = %d, want 0 for exhausted task", len(verifier.urls))
	}

	open := models.Task{Type: models.TaskComment, URL: "https://www.tiktok.com/@a/video/2", Credits: 5, ActionsRemaining: 2, CreatorID: creator.ID}
	if err := db.Create(&open).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}
	path := fmt.Sprintf("/tasks/%d/complete", open.ID)

	if w, _ := doJSON(t, r, http.MethodPost, path, "", nil); w.Code != http.StatusOK {
		t.Fatalf("first completion status = %d, want 200", w.Code)
	}
	if w, _ := doJSON(t, r, http.MethodPost, path, "", nil); w.Code != http.StatusConflict {
		t.Fatalf("repeat completion status = %d, want 409", w.Code)
	}
	if len(verifier.urls) != 1 {
		t.Errorf("verifier calls = %d, want 1 (duplicates settle no engagement)", len(verifier.urls))
	}
}
