package app

import (
	"context"
	"time"

	"github.com/kasumi-cms/core/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maintenanceInterval = time.Hour
	// sessionRetention keeps expired and revoked sessions around for a while
	// so an operator can still inspect recent login history.
	sessionRetention = 30 * 24 * time.Hour
)

// runMaintenance periodically removes stale session rows and expired reset
// tokens. Both are safety valves, not correctness requirements: expired
// sessions and tokens are already rejected at use time.
func runMaintenance(ctx context.Context, db *gorm.DB, log *zap.Logger) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-sessionRetention)
			res := db.Where("expires_at < ? OR (revoked_at IS NOT NULL AND revoked_at < ?)", cutoff, cutoff).
				Delete(&models.UserSession{})
			if res.Error != nil {
				log.Warn("session cleanup failed", zap.Error(res.Error))
			} else if res.RowsAffected > 0 {
				log.Info("stale sessions removed", zap.Int64("count", res.RowsAffected))
			}

			res = db.Model(&models.User{}).
				Where("reset_token <> '' AND reset_expiration < ?", time.Now()).
				Updates(map[string]interface{}{"reset_token": "", "reset_expiration": nil})
			if res.Error != nil {
				log.Warn("reset token cleanup failed", zap.Error(res.Error))
			}
		}
	}
}
