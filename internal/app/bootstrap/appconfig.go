// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers
// framework-level settings (ports, TLS, log level); AppConfig is
// everything specific to this application.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connection pool size
	MongoMinPoolSize uint64 // Min connection pool size

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: studytrack-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // How long a signed-in session lasts

	// Base URL for OAuth callbacks (e.g., "https://studytrack.example.edu")
	BaseURL string

	// Google OAuth configuration
	GoogleClientID     string
	GoogleClientSecret string

	// OAuthStateKey signs the OAuth state cookie. Falls back to
	// SessionKey when unset.
	OAuthStateKey string

	// AdminEmails is the startup allow-list of admin addresses,
	// lower-cased. Addresses added at runtime live in the admin_emails
	// collection instead.
	AdminEmails []string

	// Checkout lifecycle configuration
	CheckoutWindow       time.Duration // How long approved files may be held
	DueSoonWindow        time.Duration // How close to the due date the warning fires
	AllowRequesterReturn bool          // Let requesters close their own checkouts

	// WatcherPollInterval is how often the request watcher polls for
	// subscribers; the overdue reconciler consumes its snapshots, so
	// this is also the reconciliation cadence.
	WatcherPollInterval time.Duration

	// NotificationRetention is how long notification records are kept.
	// Zero disables the purge.
	NotificationRetention time.Duration

	// Store call deadline overrides; zero keeps the defaults.
	DBTimeoutShort time.Duration
	DBTimeoutBatch time.Duration
}
