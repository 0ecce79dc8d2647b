package routes

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/gadar/bestrong/config"
	"github.com/gadar/bestrong/controllers"
	"github.com/gadar/bestrong/middleware"
	"github.com/gadar/bestrong/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Content-Range", "Accept-Ranges"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	// Country allow/deny filter (deny has priority)
	r.Use(middleware.CountryFilter())
	// Per-day, per-path request counters
	r.Use(middleware.APIUsageRecorder(db))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	noupia := utils.NewNoupiaClient(cfg)
	tiktok := utils.NewTikTokClient(cfg)

	authController := controllers.NewAuthController(db)
	taskController := controllers.NewTaskController(db, tiktok)
	adminController := controllers.NewAdminController(db)
	notificationController := controllers.NewNotificationController(db)
	activityController := controllers.NewActivityController(db)
	messageController := controllers.NewMessageController(db)
	paymentController := controllers.NewPaymentController(db, noupia)
	tiktokController := controllers.NewTikTokController(db, tiktok)
	statsController := controllers.NewStatsController(db)
	apkController := controllers.NewAPKController()

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.GET("/captcha", authController.Captcha)
	authGroup.POST("/reset-password", authController.ResetPassword)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)
	authGroup.PATCH("/profile", middleware.AuthRequired(), authController.UpdateProfile)
	authGroup.POST("/change-password", middleware.AuthRequired(), authController.ChangePassword)
	authGroup.POST("/change-phone", middleware.AuthRequired(), authController.ChangePhone)
	authGroup.DELETE("/account", middleware.AuthRequired(), authController.DeleteAccount)

	exchange := api.Group("/exchange", middleware.AuthRequired())
	exchange.POST("/tasks", taskController.Create)
	exchange.GET("/tasks", taskController.List)
	exchange.GET("/tasks/mine", taskController.Mine)
	exchange.GET("/tasks/:id", taskController.Get)
	exchange.POST("/tasks/:id/complete", taskController.Complete)
	exchange.PATCH("/tasks/:id/complete", taskController.Moderate)
	exchange.DELETE("/tasks/:id", taskController.Delete)
	exchange.GET("/credits", taskController.Balance)

	notifications := api.Group("/notifications", middleware.AuthRequired())
	notifications.GET("", notificationController.List)
	notifications.PATCH("/:id", notificationController.MarkRead)

	activities := api.Group("/activities", middleware.AuthRequired())
	activities.GET("", activityController.Mine)
	activities.POST("", activityController.Append)

	messages := api.Group("/messages", middleware.AuthRequired())
	messages.POST("", messageController.Send)
	messages.GET("", messageController.List)
	messages.GET("/conversations", messageController.Conversations)
	messages.GET("/stream", messageController.Stream)
	messages.DELETE("/:id", messageController.Delete)

	payments := api.Group("/payments")
	payments.POST("/initiate", middleware.AuthRequired(), paymentController.Initiate)
	payments.POST("/verify", middleware.AuthRequired(), paymentController.Verify)
	payments.GET("/history", middleware.AuthRequired(), paymentController.History)
	// Gateway callback, no auth
	payments.POST("/webhook", paymentController.Webhook)
	payments.GET("/webhook", paymentController.WebhookLiveness)

	tk := api.Group("/tiktok", middleware.AuthRequired())
	tk.GET("/authorize", tiktokController.Authorize)
	tk.GET("/callback", tiktokController.Callback)
	tk.GET("/status", tiktokController.Status)
	tk.DELETE("/disconnect", tiktokController.Disconnect)
	tk.GET("/videos", tiktokController.Videos)
	tk.POST("/videos/publish", tiktokController.PublishVideo)
	tk.GET("/comments", tiktokController.Comments)
	tk.POST("/comments", tiktokController.CreateComment)
	tk.POST("/comments/reply", tiktokController.ReplyComment)
	tk.DELETE("/comments/:id", tiktokController.DeleteComment)
	tk.POST("/comments/:id/hide", tiktokController.HideComment)

	// Public stats
	api.GET("/stats", statsController.Overview)
	api.GET("/users/count", statsController.UserCount)
	api.GET("/users/:id/stats", statsController.UserStats)
	api.GET("/leaderboard", statsController.Leaderboard)

	// APK distribution, range-capable
	api.GET("/download/apk", apkController.Download)
	api.HEAD("/download/apk", apkController.Download)

	admin := api.Group("/admin", middleware.AuthRequired(), middleware.AdminRequired())
	admin.GET("/users", adminController.ListUsers)
	admin.DELETE("/users/:id", adminController.DeleteUser)
	admin.POST("/credits", adminController.SetCredits)
	admin.POST("/credits/bulk", adminController.BulkSetCredits)
	admin.POST("/notifications", notificationController.Send)
	admin.GET("/notifications/sent", notificationController.SentBroadcasts)
	admin.DELETE("/notifications/:id", notificationController.Delete)
	admin.GET("/activities", activityController.List)
	admin.GET("/security", adminController.SecuritySummary)
	admin.POST("/security", adminController.SecurityAction)
	admin.POST("/reset-codes", adminController.IssueResetCode)
	admin.DELETE("/tasks", adminController.BulkDeleteTasks)

	return r
}
