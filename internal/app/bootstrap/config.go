// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for StudyTrack.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: STUDYTRACK_MONGO_URI, STUDYTRACK_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "studytrack", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size"},

	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "studytrack-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "168h", Desc: "Session lifetime (e.g., 168h for one week)"},

	{Name: "base_url", Default: "http://localhost:3000", Desc: "Base URL for OAuth callbacks"},

	// Google OAuth configuration
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},
	{Name: "oauth_state_key", Default: "", Desc: "OAuth state cookie signing key (defaults to session_key)"},

	// Admin provisioning
	{Name: "admin_emails", Default: "", Desc: "Comma-separated startup allow-list of admin email addresses"},

	// Checkout lifecycle
	{Name: "checkout_window", Default: "24h", Desc: "How long approved files may be held before they are due back"},
	{Name: "due_soon_window", Default: "2h", Desc: "How close to the due date the due-soon warning fires"},
	{Name: "allow_requester_return", Default: false, Desc: "Let requesters mark their own checkouts returned"},

	// Background workers
	{Name: "watcher_poll_interval", Default: "30s", Desc: "Request watcher poll interval (also the overdue scan cadence)"},
	{Name: "notification_retention", Default: "720h", Desc: "How long notification records are kept (0 disables purging)"},

	// Store call deadlines
	{Name: "db_timeout_short", Default: "0s", Desc: "Override for single-document store call deadline (0 keeps default)"},
	{Name: "db_timeout_batch", Default: "0s", Desc: "Override for bulk import/export deadline (0 keeps default)"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, STUDYTRACK_* for app), and
// command-line flags, merged with precedence flags > env > files >
// defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "STUDYTRACK", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 168*time.Hour),

		BaseURL: appValues.String("base_url"),

		GoogleClientID:     appValues.String("google_client_id"),
		GoogleClientSecret: appValues.String("google_client_secret"),
		OAuthStateKey:      appValues.String("oauth_state_key"),

		AdminEmails: parseAdminEmails(appValues.String("admin_emails")),

		CheckoutWindow:       appValues.Duration("checkout_window", 24*time.Hour),
		DueSoonWindow:        appValues.Duration("due_soon_window", 2*time.Hour),
		AllowRequesterReturn: appValues.Bool("allow_requester_return"),

		WatcherPollInterval:   appValues.Duration("watcher_poll_interval", 30*time.Second),
		NotificationRetention: appValues.Duration("notification_retention", 720*time.Hour),

		DBTimeoutShort: appValues.Duration("db_timeout_short", 0),
		DBTimeoutBatch: appValues.Duration("db_timeout_batch", 0),
	}

	if appCfg.OAuthStateKey == "" {
		appCfg.OAuthStateKey = appCfg.SessionKey
	}

	return coreCfg, appCfg, nil
}

// parseAdminEmails splits a comma-separated allow-list, trimming and
// lower-casing each address and dropping empties.
func parseAdminEmails(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		email := strings.ToLower(strings.TrimSpace(part))
		if email != "" {
			out = append(out, email)
		}
	}
	return out
}

// ValidateConfig performs app-specific config validation.
//
// StudyTrack validates the MongoDB URI format to catch configuration
// errors early, before attempting to connect, and checks the checkout
// window invariants the lifecycle depends on.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if appCfg.CheckoutWindow <= 0 {
		return fmt.Errorf("checkout_window must be positive, got %s", appCfg.CheckoutWindow)
	}
	if appCfg.DueSoonWindow < 0 || appCfg.DueSoonWindow >= appCfg.CheckoutWindow {
		return fmt.Errorf("due_soon_window must be shorter than checkout_window (%s >= %s)",
			appCfg.DueSoonWindow, appCfg.CheckoutWindow)
	}
	if appCfg.WatcherPollInterval <= 0 {
		return fmt.Errorf("watcher_poll_interval must be positive, got %s", appCfg.WatcherPollInterval)
	}

	if appCfg.GoogleClientID == "" || appCfg.GoogleClientSecret == "" {
		logger.Warn("Google OAuth is not configured; sign-in will be unavailable")
	}

	return nil
}
