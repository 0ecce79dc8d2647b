package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gadar/bestrong/models"
)

// APIUsageRecorder upserts a per-day, per-path request counter after each
// successful API call. The stats endpoint reads these rows for a daily
// activity figure.
func APIUsageRecorder(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 400 {
			return
		}

		// Use the route pattern, not the raw path, so /tasks/123 and
		// /tasks/456 count as one resource.
		path := c.FullPath()
		if path == "" || path == "/health" {
			return
		}

		now := time.Now().In(time.Local)
		localMidnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

		// Atomic upsert to avoid duplicate key errors under concurrency
		_ = db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}, {Name: "path"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"count": gorm.Expr("count + 1"), "updated_at": time.Now()}),
		}).Create(&models.APIUsage{Date: localMidnight, Path: path, Count: 1}).Error
	}
}
