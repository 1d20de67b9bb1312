package timescaledb

import (
	"context"
	"time"

	"github.com/chrissnell/hymod/internal/database"
	"github.com/chrissnell/hymod/internal/storage"
)

// checkHealth performs a health check and records the result
func (t *Storage) checkHealth(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if t.TimescaleDBConn == nil {
		storage.GlobalHealthManager.UpdateHealth(engineName, storage.StatusUnhealthy, "No database connection", nil)
		return
	}
	if err := database.Ping(ctx, t.TimescaleDBConn); err != nil {
		storage.GlobalHealthManager.UpdateHealth(engineName, storage.StatusUnhealthy, "Database check failed", err)
		return
	}
	storage.GlobalHealthManager.UpdateHealth(engineName, storage.StatusHealthy, "TimescaleDB operational - ping: OK, query test: OK", nil)
}
