package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/gadar/bestrong/config"
	"github.com/gadar/bestrong/models"
	"github.com/gadar/bestrong/utils"
)

const tokenLifetime = 72 * time.Hour

// AuthController handles registration, login and account self-service.
type AuthController struct {
	db *gorm.DB
}

// NewAuthController creates a new controller instance.
func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{db: db}
}

// Register creates an account from phone + country + password + pseudo and
// grants the welcome credits.
func (a *AuthController) Register(ctx *gin.Context) {
	type request struct {
		Phone         string `json:"phone" binding:"required"`
		Country       string `json:"country" binding:"required"`
		Password      string `json:"password" binding:"required,min=6"`
		Pseudo        string `json:"pseudo" binding:"required"`
		CaptchaID     string `json:"captcha_id"`
		CaptchaAnswer string `json:"captcha_answer"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	pseudo := utils.Sanitize(strings.TrimSpace(req.Pseudo))
	if len([]rune(pseudo)) < 2 {
		utils.Error(ctx, http.StatusBadRequest, 40002, "pseudo must be at least 2 characters")
		return
	}

	phone := utils.ComposePhone(req.Country, req.Phone)
	if phone == "" {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid phone number")
		return
	}

	cfg := config.Get()
	if cfg.RegisterCaptchaEnabled && !utils.VerifyCaptcha(req.CaptchaID, req.CaptchaAnswer) {
		utils.Error(ctx, http.StatusBadRequest, 40004, "invalid captcha")
		return
	}

	// Anti-abuse: ban check, cooldown, per-IP daily limit
	ip := ctx.ClientIP()
	if utils.IsTempBanned(ip) {
		utils.Error(ctx, http.StatusTooManyRequests, 42920, "too many attempts, try again later")
		return
	}
	if !utils.RegistrationCooldownTry(ip) {
		utils.Error(ctx, http.StatusTooManyRequests, 42910, "please slow down")
		return
	}
	if !utils.RegistrationDailyLimitCheck(ip) {
		utils.Error(ctx, http.StatusTooManyRequests, 42921, "daily registration limit reached")
		return
	}

	// Unscoped so a soft-deleted account still conflicts instead of the
	// insert tripping the unique index.
	var existing models.User
	if err := a.db.Unscoped().Where("phone = ?", phone).First(&existing).Error; err == nil {
		utils.Error(ctx, http.StatusConflict, 40901, "phone number already registered")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to hash password")
		return
	}

	user := models.User{
		Phone:           phone,
		PasswordHash:    hash,
		Pseudo:          pseudo,
		Country:         req.Country,
		Credits:         cfg.WelcomeCredits,
		DashboardAccess: true,
		RegisterIP:      ip,
	}

	if err := a.db.Create(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to create account")
		return
	}

	utils.RegistrationDailyIncrement(ip)

	recordActivity(a.db, &user, models.ActivityRegister, "account created", 0, map[string]any{
		"welcome_credits": cfg.WelcomeCredits,
	})

	welcome := models.Notification{
		Recipient: user.Phone,
		Message:   "Bienvenue sur BE STRONG ! Commence par compléter ta première tâche.",
		CreatedAt: time.Now(),
	}
	if err := a.db.Create(&welcome).Error; err != nil && utils.Sugar != nil {
		utils.Sugar.Warnf("welcome notification failed user=%d err=%v", user.ID, err)
	}

	token, err := utils.GenerateToken(user.ID, user.Phone, tokenLifetime)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to generate token")
		return
	}

	utils.Created(ctx, gin.H{
		"token": token,
		"user":  sanitizeUser(user),
	})
}

// Captcha returns a fresh captcha id and base64 image (data URI).
func (a *AuthController) Captcha(ctx *gin.Context) {
	id, b64, err := utils.GenerateCaptcha()
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50005, "failed to generate captcha")
		return
	}
	utils.Success(ctx, gin.H{"captcha_id": id, "image": b64})
}

// Login verifies credentials and issues a token. Failed attempts feed the
// abuse counters and the audit log the admin security view reads.
func (a *AuthController) Login(ctx *gin.Context) {
	type request struct {
		Phone    string `json:"phone" binding:"required"`
		Country  string `json:"country"`
		Password string `json:"password" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40005, "invalid request payload")
		return
	}

	ip := ctx.ClientIP()
	if utils.IsTempBanned(ip) {
		utils.Error(ctx, http.StatusTooManyRequests, 42920, "too many attempts, try again later")
		return
	}

	phone := utils.ComposePhone(req.Country, req.Phone)

	var user models.User
	if err := a.db.Where("phone = ?", phone).First(&user).Error; err != nil {
		a.loginFailed(ctx, ip, phone)
		return
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		recordActivity(a.db, &user, models.ActivityLoginFailed, "wrong password", 0, map[string]any{"ip": ip})
		a.loginFailed(ctx, ip, phone)
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Phone, tokenLifetime)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}

	recordActivity(a.db, &user, models.ActivityLogin, "logged in", 0, map[string]any{"ip": ip})

	utils.Success(ctx, gin.H{
		"token":              token,
		"user":               sanitizeUser(user),
		"subscription_valid": user.SubscriptionValid(time.Now()),
	})
}

func (a *AuthController) loginFailed(ctx *gin.Context, ip, phone string) {
	fails := utils.LoginFailRecord(ip)
	if fails >= config.Get().FailedMaxPerIPPerHour {
		utils.TempBan(ip)
	}
	if utils.Sugar != nil {
		utils.Sugar.Infof("login failed phone=%s ip=%s fails=%d", phone, ip, fails)
	}
	utils.Error(ctx, http.StatusUnauthorized, 40106, "incorrect phone number or password")
}

// Logout invalidates the token by blacklisting it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	authHeader := ctx.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		utils.Error(ctx, http.StatusUnauthorized, 40107, "invalid authorization header")
		return
	}

	token := strings.TrimSpace(parts[1])
	claims, err := utils.ParseToken(token)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
		return
	}

	expiresAt := time.Now().Add(tokenLifetime)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	utils.BlacklistToken(token, expiresAt)

	if userID, ok := getUserID(ctx); ok {
		var user models.User
		if err := a.db.First(&user, userID).Error; err == nil {
			recordActivity(a.db, &user, models.ActivityLogout, "logged out", 0, nil)
		}
	}

	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the caller's profile.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
		return
	}

	utils.Success(ctx, gin.H{
		"user":               sanitizeUser(user),
		"subscription_valid": user.SubscriptionValid(time.Now()),
		"is_admin":           isAdmin(ctx),
	})
}

// ChangePassword updates the caller's password after checking the current one.
func (a *AuthController) ChangePassword(ctx *gin.Context) {
	type request struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required,min=6"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40006, "invalid request payload")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
		return
	}

	if !utils.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "current password is incorrect")
		return
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to hash password")
		return
	}

	if err := a.db.Model(&user).Update("password_hash", hash).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50006, "failed to update password")
		return
	}

	utils.Success(ctx, gin.H{"message": "password updated"})
}

// ChangePhone moves the account to a new phone number.
func (a *AuthController) ChangePhone(ctx *gin.Context) {
	type request struct {
		Password string `json:"password" binding:"required"`
		Phone    string `json:"phone" binding:"required"`
		Country  string `json:"country"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40007, "invalid request payload")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
		return
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "password is incorrect")
		return
	}

	newPhone := utils.ComposePhone(req.Country, req.Phone)
	if newPhone == "" {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid phone number")
		return
	}

	var existing models.User
	if err := a.db.Unscoped().Where("phone = ? AND id <> ?", newPhone, user.ID).First(&existing).Error; err == nil {
		utils.Error(ctx, http.StatusConflict, 40901, "phone number already registered")
		return
	}

	if err := a.db.Model(&user).Update("phone", newPhone).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50007, "failed to update phone")
		return
	}

	// Token claims carry the old phone; force a fresh login.
	utils.Success(ctx, gin.H{"message": "phone updated, please log in again"})
}

// UpdateProfile changes pseudo and profile links.
func (a *AuthController) UpdateProfile(ctx *gin.Context) {
	type request struct {
		Pseudo *string `json:"pseudo"`
		Links  *string `json:"links"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40008, "invalid request payload")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	updates := map[string]any{}
	if req.Pseudo != nil {
		pseudo := utils.Sanitize(strings.TrimSpace(*req.Pseudo))
		if len([]rune(pseudo)) < 2 {
			utils.Error(ctx, http.StatusBadRequest, 40002, "pseudo must be at least 2 characters")
			return
		}
		updates["pseudo"] = pseudo
	}
	if req.Links != nil {
		updates["links"] = utils.Sanitize(*req.Links)
	}
	if len(updates) == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40009, "nothing to update")
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
		return
	}

	if err := a.db.Model(&user).Updates(updates).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50008, "failed to update profile")
		return
	}

	utils.Success(ctx, gin.H{"user": sanitizeUser(user)})
}

// ResetPassword consumes a single-use reset code issued by an admin and sets
// a new password.
func (a *AuthController) ResetPassword(ctx *gin.Context) {
	type request struct {
		Phone       string `json:"phone" binding:"required"`
		Country     string `json:"country"`
		Code        string `json:"code" binding:"required"`
		NewPassword string `json:"new_password" binding:"required,min=6"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}

	phone := utils.ComposePhone(req.Country, req.Phone)
	if !utils.VerifyAndConsumeResetCode(phone, strings.TrimSpace(req.Code)) {
		utils.Error(ctx, http.StatusUnauthorized, 40109, "invalid or expired reset code")
		return
	}

	var user models.User
	if err := a.db.Where("phone = ?", phone).First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
		return
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to hash password")
		return
	}

	if err := a.db.Model(&user).Update("password_hash", hash).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50006, "failed to update password")
		return
	}

	utils.Success(ctx, gin.H{"message": "password reset"})
}

// DeleteAccount soft-deletes the caller's account.
func (a *AuthController) DeleteAccount(ctx *gin.Context) {
	type request struct {
		Password string `json:"password" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40011, "invalid request payload")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40410, "user not found")
		return
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "password is incorrect")
		return
	}

	if err := a.db.Delete(&user).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50009, "failed to delete account")
		return
	}

	utils.Success(ctx, gin.H{"message": "account deleted"})
}
