package controllers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gadar/bestrong/models"
)

func TestSendAndListMessages(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)

	alice := createUser(t, db, uniquePhone(60), 0)
	bob := createUser(t, db, uniquePhone(61), 0)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/messages", tokenFor(t, alice), map[string]any{
		"receiver_id": bob.ID,
		"content":     "Salut, tu peux liker ma vidéo ?",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("send status = %d, want 201", w.Code)
	}

	path := fmt.Sprintf("/api/v1/messages?peer=%d", alice.ID)
	w, envelope := doJSON(t, r, http.MethodGet, path, tokenFor(t, bob), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", w.Code)
	}
	items, _ := dataMap(t, envelope)["messages"].([]any)
	if len(items) != 1 {
		t.Fatalf("messages = %d, want 1", len(items))
	}

	// listing the conversation marks the peer's messages read
	var msg models.Message
	db.Where("sender_id = ? AND receiver_id = ?", alice.ID, bob.ID).First(&msg)
	if !msg.Read {
		t.Error("message not marked read after listing")
	}
}

func TestSendMessageSanitizesContent(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)

	alice := createUser(t, db, uniquePhone(62), 0)
	bob := createUser(t, db, uniquePhone(63), 0)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/messages", tokenFor(t, alice), map[string]any{
		"receiver_id": bob.ID,
		"content":     `salut <script>alert("xss")</script>`,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("send status = %d, want 201", w.Code)
	}

	var msg models.Message
	db.Where("sender_id = ?", alice.ID).First(&msg)
	if msg.Content != "salut" {
		t.Errorf("content = %q, want script stripped", msg.Content)
	}
}

func TestSendMessageToSelfRejected(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)

	alice := createUser(t, db, uniquePhone(64), 0)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/messages", tokenFor(t, alice), map[string]any{
		"receiver_id": alice.ID,
		"content":     "note à moi-même",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestDeleteMessageSenderOnly(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)

	alice := createUser(t, db, uniquePhone(65), 0)
	bob := createUser(t, db, uniquePhone(66), 0)

	msg := models.Message{SenderID: alice.ID, ReceiverID: bob.ID, Content: "oops", Kind: models.MessageText}
	if err := db.Create(&msg).Error; err != nil {
		t.Fatalf("create message: %v", err)
	}
	path := fmt.Sprintf("/api/v1/messages/%d", msg.ID)

	w, _ := doJSON(t, r, http.MethodDelete, path, tokenFor(t, bob), nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("receiver delete status = %d, want 403", w.Code)
	}

	w, _ = doJSON(t, r, http.MethodDelete, path, tokenFor(t, alice), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("sender delete status = %d, want 200", w.Code)
	}

	var n int64
	db.Model(&models.Message{}).Count(&n)
	if n != 0 {
		t.Errorf("messages = %d, want 0", n)
	}
}

func TestStreamUnavailableWithoutBroker(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)

	user := createUser(t, db, uniquePhone(60), 0)

	// Redis points at a closed port in tests, so the subscription cannot be
	// confirmed and the stream must fail with 503 before any SSE bytes.
	w, envelope := doJSON(t, r, http.MethodGet, "/api/v1/messages/stream", tokenFor(t, user), nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if envelope.Code != 50360 {
		t.Errorf("code = %d, want 50360", envelope.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct == "text/event-stream" {
		t.Errorf("content type = %q, want JSON error, not an event stream", ct)
	}
}
