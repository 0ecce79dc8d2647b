package controllers

import (
	"net/http"
	"testing"

	"github.com/gadar/bestrong/models"
)

func TestSetCreditsRecordsDelta(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)

	admin := createUser(t, db, testAdminPhone, 0)
	user := createUser(t, db, uniquePhone(20), 120)
	token := tokenFor(t, admin)

	// raise: 120 -> 200, delta 80 earned
	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/admin/credits", token, map[string]any{
		"user_id": user.ID,
		"credits": 200,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := mustCredits(t, db, user.ID); got != 200 {
		t.Fatalf("credits = %d, want 200", got)
	}

	var earned models.Activity
	if err := db.Where("user_id = ? AND type = ?", user.ID, models.ActivityCreditsEarned).
		First(&earned).Error; err != nil {
		t.Fatalf("load earned activity: %v", err)
	}
	if earned.Credits != 80 {
		t.Errorf("earned activity credits = %d, want 80", earned.Credits)
	}

	// lower: 200 -> 50, delta 150 spent
	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/admin/credits", token, map[string]any{
		"user_id": user.ID,
		"credits": 50,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var spent models.Activity
	if err := db.Where("user_id = ? AND type = ?", user.ID, models.ActivityCreditsSpent).
		First(&spent).Error; err != nil {
		t.Fatalf("load spent activity: %v", err)
	}
	if spent.Credits != 150 {
		t.Errorf("spent activity credits = %d, want 150", spent.Credits)
	}
}

func TestSetCreditsUnchangedValueRecordsNothing(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)

	admin := createUser(t, db, testAdminPhone, 0)
	user := createUser(t, db, uniquePhone(21), 75)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/admin/credits", tokenFor(t, admin), map[string]any{
		"user_id": user.ID,
		"credits": 75,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var n int64
	db.Model(&models.Activity{}).Where("user_id = ?", user.ID).Count(&n)
	if n != 0 {
		t.Errorf("activities = %d, want 0 for unchanged balance", n)
	}
}

func TestSetCreditsRequiresAdmin(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)

	user := createUser(t, db, uniquePhone(22), 10)
	target := createUser(t, db, uniquePhone(23), 10)

	w, envelope := doJSON(t, r, http.MethodPost, "/api/v1/admin/credits", tokenFor(t, user), map[string]any{
		"user_id": target.ID,
		"credits": 999,
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if envelope.Code != 40310 {
		t.Errorf("error code = %d, want 40310", envelope.Code)
	}
	if got := mustCredits(t, db, target.ID); got != 10 {
		t.Errorf("target credits = %d, want unchanged 10", got)
	}
}

func TestBulkSetCreditsDeduplicates(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)

	admin := createUser(t, db, testAdminPhone, 0)
	a := createUser(t, db, uniquePhone(24), 5)
	b := createUser(t, db, uniquePhone(25), 5)

	w, envelope := doJSON(t, r, http.MethodPost, "/api/v1/admin/credits/bulk", tokenFor(t, admin), map[string]any{
		"user_ids": []uint{a.ID, b.ID, a.ID, 99999},
		"credits":  40,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	data := dataMap(t, envelope)
	if updated, _ := data["updated"].(float64); int(updated) != 2 {
		t.Errorf("updated = %v, want 2", data["updated"])
	}
	if got := mustCredits(t, db, a.ID); got != 40 {
		t.Errorf("user a credits = %d, want 40", got)
	}
	if got := mustCredits(t, db, b.ID); got != 40 {
		t.Errorf("user b credits = %d, want 40", got)
	}
	// the duplicated id must not have produced a second activity
	var n int64
	db.Model(&models.Activity{}).Where("user_id = ?", a.ID).Count(&n)
	if n != 1 {
		t.Errorf("activities for deduplicated user = %d, want 1", n)
	}
}

func TestSecurityActionTogglesAccess(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)

	admin := createUser(t, db, testAdminPhone, 0)
	user := createUser(t, db, uniquePhone(26), 0)
	token := tokenFor(t, admin)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/admin/security", token, map[string]any{
		"action":  "ban_user",
		"user_id": user.ID,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("ban status = %d, want 200", w.Code)
	}
	var banned models.User
	db.First(&banned, user.ID)
	if banned.DashboardAccess {
		t.Error("dashboard access still true after ban")
	}

	w, _ = doJSON(t, r, http.MethodPost, "/api/v1/admin/security", token, map[string]any{
		"action":  "unban_user",
		"user_id": user.ID,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("unban status = %d, want 200", w.Code)
	}
	db.First(&banned, user.ID)
	if !banned.DashboardAccess {
		t.Error("dashboard access still false after unban")
	}
}

func TestBulkDeleteTasks(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)

	admin := createUser(t, db, testAdminPhone, 0)
	creator := createUser(t, db, uniquePhone(27), 0)

	for i := 0; i < 3; i++ {
		task := models.Task{Type: models.TaskLike, URL: "https://t", Credits: 1, ActionsRemaining: 1, CreatorID: creator.ID}
		if err := db.Create(&task).Error; err != nil {
			t.Fatalf("create task: %v", err)
		}
	}

	w, _ := doJSON(t, r, http.MethodDelete, "/api/v1/admin/tasks", tokenFor(t, admin), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var tasks int64
	db.Model(&models.Task{}).Count(&tasks)
	if tasks != 0 {
		t.Errorf("tasks = %d, want 0", tasks)
	}
}
