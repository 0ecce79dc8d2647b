package controllers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gadar/bestrong/models"
)

func TestBroadcastVisibleToUsersNotAdmin(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)

	admin := createUser(t, db, testAdminPhone, 0)
	user := createUser(t, db, uniquePhone(30), 0)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/admin/notifications", tokenFor(t, admin), map[string]any{
		"recipient": "all",
		"message":   "Grosse mise à jour ce soir !",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("send status = %d, want 201", w.Code)
	}

	w, envelope := doJSON(t, r, http.MethodGet, "/api/v1/notifications", tokenFor(t, user), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", w.Code)
	}
	data := dataMap(t, envelope)
	items, _ := data["notifications"].([]any)
	if len(items) != 1 {
		t.Fatalf("user notifications = %d, want 1", len(items))
	}

	// the admin phone never receives notifications, broadcasts included
	w, envelope = doJSON(t, r, http.MethodGet, "/api/v1/notifications", tokenFor(t, admin), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin list status = %d, want 200", w.Code)
	}
	data = dataMap(t, envelope)
	items, _ = data["notifications"].([]any)
	if len(items) != 0 {
		t.Errorf("admin notifications = %d, want 0", len(items))
	}
}

func TestDirectNotificationTargetsOneUser(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)

	admin := createUser(t, db, testAdminPhone, 0)
	target := createUser(t, db, uniquePhone(31), 0)
	other := createUser(t, db, uniquePhone(32), 0)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/admin/notifications", tokenFor(t, admin), map[string]any{
		"recipient": target.Phone,
		"message":   "Ton solde a été mis à jour.",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("send status = %d, want 201", w.Code)
	}

	_, envelope := doJSON(t, r, http.MethodGet, "/api/v1/notifications", tokenFor(t, target), nil)
	items, _ := dataMap(t, envelope)["notifications"].([]any)
	if len(items) != 1 {
		t.Errorf("target notifications = %d, want 1", len(items))
	}

	_, envelope = doJSON(t, r, http.MethodGet, "/api/v1/notifications", tokenFor(t, other), nil)
	items, _ = dataMap(t, envelope)["notifications"].([]any)
	if len(items) != 0 {
		t.Errorf("other user notifications = %d, want 0", len(items))
	}
}

func TestNotificationToUnknownUserRejected(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)

	admin := createUser(t, db, testAdminPhone, 0)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/admin/notifications", tokenFor(t, admin), map[string]any{
		"recipient": "+237690000999",
		"message":   "hello",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestMarkReadOwnershipEnforced(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)

	owner := createUser(t, db, uniquePhone(33), 0)
	other := createUser(t, db, uniquePhone(34), 0)

	item := models.Notification{Recipient: owner.Phone, Message: "coucou"}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("create notification: %v", err)
	}
	path := fmt.Sprintf("/api/v1/notifications/%d", item.ID)

	w, _ := doJSON(t, r, http.MethodPatch, path, tokenFor(t, other), nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign mark-read status = %d, want 403", w.Code)
	}

	w, _ = doJSON(t, r, http.MethodPatch, path, tokenFor(t, owner), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("own mark-read status = %d, want 200", w.Code)
	}
	var reloaded models.Notification
	db.First(&reloaded, item.ID)
	if !reloaded.Read {
		t.Error("notification not marked read")
	}
}
