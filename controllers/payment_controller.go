package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gadar/bestrong/config"
	"github.com/gadar/bestrong/models"
	"github.com/gadar/bestrong/utils"
)

// PaymentController drives the Noupia mobile-money flow. Credit grants ride
// on the payment status machine: only the pending→successful transition
// grants, and terminal states refuse further transitions, so verifying or
// replaying a webhook twice can never double-credit.
type PaymentController struct {
	db     *gorm.DB
	noupia *utils.NoupiaClient
}

// NewPaymentController creates a new controller instance.
func NewPaymentController(db *gorm.DB, noupia *utils.NoupiaClient) *PaymentController {
	return &PaymentController{db: db, noupia: noupia}
}

var errPaymentFinal = errors.New("payment already settled")

// Initiate creates a Payment row and asks the gateway to start collection.
func (p *PaymentController) Initiate(ctx *gin.Context) {
	if !config.Get().PaymentsEnabled() {
		utils.Error(ctx, http.StatusServiceUnavailable, 50370, "payments are not configured")
		return
	}

	type request struct {
		Amount   int    `json:"amount" binding:"required,min=100"`
		Currency string `json:"currency"`
		Phone    string `json:"phone"`
		Country  string `json:"country"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40070, "invalid request payload")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	payerPhone := getPhone(ctx)
	if req.Phone != "" {
		payerPhone = utils.ComposePhone(req.Country, req.Phone)
	}
	if payerPhone == "" {
		utils.Error(ctx, http.StatusBadRequest, 40071, "invalid payer phone")
		return
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = "XAF"
	}

	cfg := config.Get()
	payment := models.Payment{
		Reference:        uuid.NewString(),
		UserID:           userID,
		Amount:           req.Amount,
		Currency:         currency,
		CreditsPurchased: req.Amount * cfg.CreditsPerUnit,
		Status:           models.PaymentInitiated,
	}
	if err := p.db.Create(&payment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50070, "failed to create payment")
		return
	}

	resp, err := p.noupia.Initiate(ctx.Request.Context(), payment.Reference, payerPhone, payment.Amount, payment.Currency)
	if err != nil {
		p.db.Model(&payment).Updates(map[string]any{"status": models.PaymentFailed})
		utils.Error(ctx, http.StatusBadGateway, 50270, "payment gateway unreachable")
		return
	}
	if resp.Response != "success" || resp.Data == nil {
		p.db.Model(&payment).Updates(map[string]any{"status": models.PaymentFailed})
		utils.Error(ctx, http.StatusBadGateway, 50271, gatewayMessage(resp))
		return
	}

	if err := p.db.Model(&payment).Updates(map[string]any{
		"status":       models.PaymentPending,
		"provider_txn": resp.Data.Transaction,
	}).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50071, "failed to update payment")
		return
	}
	payment.Status = models.PaymentPending
	payment.ProviderTxn = resp.Data.Transaction

	utils.Created(ctx, gin.H{"payment": payment})
}

// Verify queries the gateway for the transaction state and settles the
// payment if it finished. Calling it again on a settled payment is a no-op.
func (p *PaymentController) Verify(ctx *gin.Context) {
	type request struct {
		Reference string `json:"reference"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil || req.Reference == "" {
		utils.Error(ctx, http.StatusBadRequest, 40072, "MISSING_TRANSACTION")
		return
	}

	userID, _ := getUserID(ctx)

	var payment models.Payment
	q := p.db.Where("reference = ?", req.Reference)
	if !isAdmin(ctx) {
		q = q.Where("user_id = ?", userID)
	}
	if err := q.First(&payment).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40470, "payment not found")
		return
	}

	if payment.Status.Terminal() {
		utils.Success(ctx, gin.H{"payment": payment, "settled": payment.Status == models.PaymentSuccessful})
		return
	}
	if payment.ProviderTxn == "" {
		utils.Error(ctx, http.StatusBadRequest, 40073, "MISSING_TRANSACTION")
		return
	}

	resp, err := p.noupia.Verify(ctx.Request.Context(), payment.ProviderTxn)
	if err != nil {
		utils.Error(ctx, http.StatusBadGateway, 50270, "payment gateway unreachable")
		return
	}
	if resp.Data == nil {
		utils.Error(ctx, http.StatusBadGateway, 50271, gatewayMessage(resp))
		return
	}

	if err := p.settle(&payment, resp.Data.Status); err != nil && !errors.Is(err, errPaymentFinal) {
		utils.Error(ctx, http.StatusInternalServerError, 50072, "failed to settle payment")
		return
	}

	utils.Success(ctx, gin.H{"payment": payment, "settled": payment.Status == models.PaymentSuccessful})
}

// Webhook is Noupia's server callback. It takes the same idempotent
// settlement path as Verify; replays are absorbed by the transition table.
func (p *PaymentController) Webhook(ctx *gin.Context) {
	type callback struct {
		Reference   string `json:"reference"`
		Transaction string `json:"transaction"`
		Status      string `json:"status"`
	}

	var cb callback
	if err := ctx.ShouldBindJSON(&cb); err != nil || (cb.Reference == "" && cb.Transaction == "") {
		utils.Error(ctx, http.StatusBadRequest, 40074, "invalid callback payload")
		return
	}

	var payment models.Payment
	q := p.db.Model(&models.Payment{})
	if cb.Reference != "" {
		q = q.Where("reference = ?", cb.Reference)
	} else {
		q = q.Where("provider_txn = ?", cb.Transaction)
	}
	if err := q.First(&payment).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40470, "payment not found")
		return
	}

	if err := p.settle(&payment, cb.Status); err != nil && !errors.Is(err, errPaymentFinal) {
		utils.Error(ctx, http.StatusInternalServerError, 50072, "failed to settle payment")
		return
	}

	utils.Success(ctx, gin.H{"status": payment.Status})
}

// WebhookLiveness lets the gateway check the callback URL is reachable.
func (p *PaymentController) WebhookLiveness(ctx *gin.Context) {
	utils.Success(ctx, gin.H{"status": "ok"})
}

// History lists the caller's payments, newest first.
func (p *PaymentController) History(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var payments []models.Payment
	if err := p.db.Where("user_id = ?", userID).
		Order("created_at DESC").Limit(50).
		Find(&payments).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50073, "failed to list payments")
		return
	}

	utils.Success(ctx, gin.H{"payments": payments})
}

// settle moves a payment toward a terminal state from a gateway status
// string. The successful branch grants credits, stamps LastPaymentAt and
// extends dashboard access, all inside one transaction guarded by the
// transition table.
func (p *PaymentController) settle(payment *models.Payment, gatewayStatus string) error {
	var next models.PaymentStatus
	switch strings.ToLower(gatewayStatus) {
	case "successful", "success":
		next = models.PaymentSuccessful
	case "failed", "error":
		next = models.PaymentFailed
	case "cancelled", "canceled":
		next = models.PaymentCancelled
	default:
		// still pending at the gateway, nothing to do
		return nil
	}

	err := p.db.Transaction(func(tx *gorm.DB) error {
		var current models.Payment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&current, payment.ID).Error; err != nil {
			return err
		}
		if !current.Status.CanTransition(next) {
			return errPaymentFinal
		}

		if err := tx.Model(&current).Update("status", next).Error; err != nil {
			return err
		}

		if next != models.PaymentSuccessful {
			return nil
		}

		now := time.Now()
		expires := now.Add(30 * 24 * time.Hour)
		return tx.Model(&models.User{}).
			Where("id = ?", current.UserID).
			Updates(map[string]any{
				"credits":                     gorm.Expr("credits + ?", current.CreditsPurchased),
				"last_payment_at":             now,
				"dashboard_access":            true,
				"dashboard_access_expires_at": expires,
			}).Error
	})
	if err != nil {
		return err
	}
	payment.Status = next

	if next == models.PaymentSuccessful {
		var user models.User
		if dbErr := p.db.First(&user, payment.UserID).Error; dbErr == nil {
			recordActivity(p.db, &user, models.ActivityCreditsEarned, "credits purchased", payment.CreditsPurchased, map[string]any{
				"reference": payment.Reference,
				"amount":    payment.Amount,
				"currency":  payment.Currency,
			})
		}
		p.notifyOps(payment)
	}
	return nil
}

// notifyOps sends a best-effort settlement email when SMTP is configured.
func (p *PaymentController) notifyOps(payment *models.Payment) {
	cfg := config.Get()
	if cfg.SMTPHost == "" || cfg.OpsEmail == "" {
		return
	}
	subject := fmt.Sprintf("Payment %s settled", payment.Reference)
	body := fmt.Sprintf("Reference: %s\nAmount: %d %s\nCredits: %d\nUser: %d\n",
		payment.Reference, payment.Amount, payment.Currency, payment.CreditsPurchased, payment.UserID)
	if err := utils.SendMail(cfg.OpsEmail, subject, body); err != nil && utils.Sugar != nil {
		utils.Sugar.Warnf("ops mail failed reference=%s err=%v", payment.Reference, err)
	}
}

func gatewayMessage(resp *utils.NoupiaResponse) string {
	if resp == nil {
		return "payment gateway error"
	}
	if resp.Code != "" {
		return resp.Code
	}
	if resp.Message != "" {
		return resp.Message
	}
	return "payment gateway error"
}
