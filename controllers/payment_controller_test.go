package controllers

import (
	"net/http"
	"testing"

	"github.com/gadar/bestrong/config"
	"github.com/gadar/bestrong/models"
	"github.com/gadar/bestrong/utils"
)

func TestSettleGrantsCreditsOnce(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, uniquePhone(40), 10)

	payment := models.Payment{
		Reference:        "ref-settle-once",
		ProviderTxn:      "NP-1",
		UserID:           user.ID,
		Amount:           1000,
		Currency:         "XAF",
		CreditsPurchased: 1000,
		Status:           models.PaymentPending,
	}
	if err := db.Create(&payment).Error; err != nil {
		t.Fatalf("create payment: %v", err)
	}

	p := NewPaymentController(db, utils.NewNoupiaClient(config.Get()))

	if err := p.settle(&payment, "successful"); err != nil {
		t.Fatalf("first settle: %v", err)
	}
	if got := mustCredits(t, db, user.ID); got != 1010 {
		t.Fatalf("credits after settle = %d, want 1010", got)
	}

	var reloaded models.User
	db.First(&reloaded, user.ID)
	if reloaded.LastPaymentAt == nil {
		t.Error("LastPaymentAt not stamped")
	}
	if !reloaded.DashboardAccess {
		t.Error("dashboard access not granted")
	}

	// second settle is absorbed by the terminal state
	if err := p.settle(&payment, "successful"); err != nil {
		t.Fatalf("second settle: %v", err)
	}
	if got := mustCredits(t, db, user.ID); got != 1010 {
		t.Errorf("credits after re-settle = %d, want unchanged 1010", got)
	}

	var payments models.Payment
	db.First(&payments, payment.ID)
	if payments.Status != models.PaymentSuccessful {
		t.Errorf("payment status = %s, want successful", payments.Status)
	}
}

func TestSettleFailedGrantsNothing(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, uniquePhone(41), 10)

	payment := models.Payment{
		Reference:        "ref-failed",
		ProviderTxn:      "NP-2",
		UserID:           user.ID,
		Amount:           500,
		Currency:         "XAF",
		CreditsPurchased: 500,
		Status:           models.PaymentPending,
	}
	if err := db.Create(&payment).Error; err != nil {
		t.Fatalf("create payment: %v", err)
	}

	p := NewPaymentController(db, utils.NewNoupiaClient(config.Get()))
	if err := p.settle(&payment, "failed"); err != nil {
		t.Fatalf("settle: %v", err)
	}

	if got := mustCredits(t, db, user.ID); got != 10 {
		t.Errorf("credits = %d, want unchanged 10", got)
	}

	// a failed payment cannot be revived into a grant
	if err := p.settle(&payment, "successful"); err != nil {
		t.Fatalf("settle after failure: %v", err)
	}
	if got := mustCredits(t, db, user.ID); got != 10 {
		t.Errorf("credits after revival attempt = %d, want 10", got)
	}
}

func TestSettleUnknownStatusKeepsPending(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, uniquePhone(42), 0)

	payment := models.Payment{
		Reference:        "ref-pending",
		ProviderTxn:      "NP-3",
		UserID:           user.ID,
		Amount:           500,
		Currency:         "XAF",
		CreditsPurchased: 500,
		Status:           models.PaymentPending,
	}
	if err := db.Create(&payment).Error; err != nil {
		t.Fatalf("create payment: %v", err)
	}

	p := NewPaymentController(db, utils.NewNoupiaClient(config.Get()))
	if err := p.settle(&payment, "processing"); err != nil {
		t.Fatalf("settle: %v", err)
	}

	var reloaded models.Payment
	db.First(&reloaded, payment.ID)
	if reloaded.Status != models.PaymentPending {
		t.Errorf("payment status = %s, want still pending", reloaded.Status)
	}
}

func TestWebhookReplayIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)
	user := createUser(t, db, uniquePhone(43), 0)

	payment := models.Payment{
		Reference:        "ref-webhook",
		ProviderTxn:      "NP-4",
		UserID:           user.ID,
		Amount:           2000,
		Currency:         "XAF",
		CreditsPurchased: 2000,
		Status:           models.PaymentPending,
	}
	if err := db.Create(&payment).Error; err != nil {
		t.Fatalf("create payment: %v", err)
	}

	body := map[string]any{"reference": payment.Reference, "status": "successful"}
	for i := 0; i < 3; i++ {
		w, _ := doJSON(t, r, http.MethodPost, "/api/v1/payments/webhook", "", body)
		if w.Code != http.StatusOK {
			t.Fatalf("webhook call %d status = %d, want 200", i+1, w.Code)
		}
	}

	if got := mustCredits(t, db, user.ID); got != 2000 {
		t.Errorf("credits after 3 webhooks = %d, want exactly one grant of 2000", got)
	}
}

func TestWebhookUnknownReferenceNotFound(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(db)

	w, _ := doJSON(t, r, http.MethodPost, "/api/v1/payments/webhook", "", map[string]any{
		"reference": "no-such-ref",
		"status":    "successful",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
