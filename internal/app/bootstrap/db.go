// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/studytrack/internal/app/lifecycle"
	"github.com/dalemusser/studytrack/internal/app/notify"
	adminstore "github.com/dalemusser/studytrack/internal/app/store/admins"
	notificationstore "github.com/dalemusser/studytrack/internal/app/store/notifications"
	preaddedstore "github.com/dalemusser/studytrack/internal/app/store/preadded"
	requeststore "github.com/dalemusser/studytrack/internal/app/store/requests"
	studyidstore "github.com/dalemusser/studytrack/internal/app/store/studyids"
	userstore "github.com/dalemusser/studytrack/internal/app/store/users"
	"github.com/dalemusser/studytrack/internal/app/system/indexes"
	"github.com/dalemusser/studytrack/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB connects to MongoDB and builds the store and service graph
// the rest of the app uses.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeouts.Ping())
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return DBDeps{}, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(appCfg.MongoDatabase)
	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase))

	deps := DBDeps{
		MongoClient:   client,
		MongoDatabase: db,

		Requests:      requeststore.New(db),
		StudyIDs:      studyidstore.New(db),
		Users:         userstore.New(db),
		PreAdded:      preaddedstore.New(db),
		Admins:        adminstore.New(db),
		Notifications: notificationstore.New(db),
	}

	deps.Notifier = notify.New(deps.Notifications, deps.Users, logger)
	deps.Controller = lifecycle.NewController(deps.Requests, deps.StudyIDs, deps.Notifier, lifecycle.Config{
		CheckoutWindow:       appCfg.CheckoutWindow,
		AllowRequesterReturn: appCfg.AllowRequesterReturn,
	}, logger)
	deps.Watcher = requeststore.NewWatcher(deps.Requests, appCfg.WatcherPollInterval, logger)
	deps.Reconciler = lifecycle.NewReconciler(deps.Requests, deps.Notifications, deps.Watcher, deps.Notifier, lifecycle.ReconcilerConfig{
		DueSoonWindow:         appCfg.DueSoonWindow,
		NotificationRetention: appCfg.NotificationRetention,
	}, logger)

	return deps, nil
}

// EnsureSchema applies the store call deadline overrides and creates
// the collection indexes, including the partial unique index that
// enforces one open checkout per participant id.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Short: appCfg.DBTimeoutShort,
		Batch: appCfg.DBTimeoutBatch,
	}, logger)

	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	logger.Info("collection indexes ensured")
	return nil
}
