package main

import (
	"time"

	"github.com/gadar/bestrong/config"
	"github.com/gadar/bestrong/models"
	"github.com/gadar/bestrong/routes"
	"github.com/gadar/bestrong/utils"
)

func main() {
	cfg := config.Load()

	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(
		&models.User{},
		&models.Task{},
		&models.Completion{},
		&models.Activity{},
		&models.Notification{},
		&models.Payment{},
		&models.Message{},
		&models.TikTokAccount{},
		&models.APIUsage{},
	)

	r := routes.SetupRouter(db)

	// Prune old activities and read notifications in the background
	utils.StartRetentionCleaner(time.Hour)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
