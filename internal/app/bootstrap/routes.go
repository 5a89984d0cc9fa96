// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	adminpanelfeature "github.com/dalemusser/studytrack/internal/app/features/adminpanel"
	authgooglefeature "github.com/dalemusser/studytrack/internal/app/features/authgoogle"
	healthfeature "github.com/dalemusser/studytrack/internal/app/features/health"
	logoutfeature "github.com/dalemusser/studytrack/internal/app/features/logout"
	notificationsfeature "github.com/dalemusser/studytrack/internal/app/features/notifications"
	requestsfeature "github.com/dalemusser/studytrack/internal/app/features/requests"
	studyidsfeature "github.com/dalemusser/studytrack/internal/app/features/studyids"
	"github.com/dalemusser/studytrack/internal/app/system/auth"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this
// WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup,
// and the Startup hook have completed. StudyTrack applies session
// middleware globally and mounts the JSON API feature routers: file
// requests, study ids, notifications, and the admin console, plus the
// Google sign-in flow and a health check.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(
		appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain,
		appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	r := chi.NewRouter()

	// Global auth middleware: loads the SessionUser into context so
	// handlers can use auth.CurrentUser(r).
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Authentication
	googleHandler := authgooglefeature.NewHandler(
		deps.Users, deps.PreAdded, deps.Admins, sessionMgr,
		appCfg.GoogleClientID, appCfg.GoogleClientSecret, appCfg.BaseURL,
		appCfg.AdminEmails, []byte(appCfg.OAuthStateKey), logger)
	r.Mount("/auth/google", authgooglefeature.Routes(googleHandler))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler, sessionMgr))

	// File request lifecycle
	requestsHandler := requestsfeature.NewHandler(deps.Controller, logger)
	r.Mount("/api/requests", requestsfeature.Routes(requestsHandler, sessionMgr))

	// Study id catalog
	studyIDsHandler := studyidsfeature.NewHandler(deps.StudyIDs, logger)
	r.Mount("/api/studyids", studyidsfeature.Routes(studyIDsHandler, sessionMgr))

	// Notifications
	notificationsHandler := notificationsfeature.NewHandler(deps.Notifications, logger)
	r.Mount("/api/notifications", notificationsfeature.Routes(notificationsHandler, sessionMgr))

	// Admin console
	adminHandler := adminpanelfeature.NewHandler(
		deps.Requests, deps.StudyIDs, deps.Users, deps.PreAdded, deps.Admins, logger)
	r.Mount("/api/admin", adminpanelfeature.Routes(adminHandler, sessionMgr))

	return r, nil
}
