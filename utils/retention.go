package utils

import (
	"time"

	"github.com/gadar/bestrong/config"
	"github.com/gadar/bestrong/models"
)

const (
	activityRetention     = 90 * 24 * time.Hour
	notificationRetention = 30 * 24 * time.Hour
)

// StartRetentionCleaner launches a background goroutine that periodically
// prunes old activity rows and read notifications. Best-effort; failures are
// logged and retried on the next tick.
func StartRetentionCleaner(interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		for {
			// Sleep first to avoid racing immediately at startup
			time.Sleep(interval)
			db := config.DB()
			if db == nil {
				continue
			}

			cutoff := time.Now().Add(-activityRetention)
			if err := db.Where("created_at < ?", cutoff).Delete(&models.Activity{}).Error; err != nil {
				if Sugar != nil {
					Sugar.Warnf("retention cleaner: activities prune failed: %v", err)
				}
			}

			cutoff = time.Now().Add(-notificationRetention)
			if err := db.Where("`read` = ? AND created_at < ?", true, cutoff).Delete(&models.Notification{}).Error; err != nil {
				if Sugar != nil {
					Sugar.Warnf("retention cleaner: notifications prune failed: %v", err)
				}
			}
		}
	}()
}
