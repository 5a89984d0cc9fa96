// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections
// and schema setup are complete, but before the HTTP handler is built.
// StudyTrack starts its background workers here: the overdue
// reconciler and the request watcher.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	deps.Reconciler.Start()
	deps.Watcher.Start()

	if len(appCfg.AdminEmails) > 0 {
		logger.Info("admin allow-list loaded",
			zap.Int("count", len(appCfg.AdminEmails)))
	}
	return nil
}
