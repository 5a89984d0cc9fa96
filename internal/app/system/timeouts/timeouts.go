// Package timeouts centralizes the context deadlines handlers use for
// store calls. Pick the smallest bucket that fits the operation:
//
//   - Ping: connectivity checks
//   - Short: single-document reads and writes
//   - Medium: list queries and multi-document reads
//   - Long: operations touching several collections
//   - Batch: bulk imports and exports
//
// Values start at the defaults and can be overridden once at startup
// with Configure.
package timeouts

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPing   = 2 * time.Second
	DefaultShort  = 5 * time.Second
	DefaultMedium = 10 * time.Second
	DefaultLong   = 30 * time.Second
	DefaultBatch  = 60 * time.Second
)

var (
	mu     sync.RWMutex
	ping   = DefaultPing
	short  = DefaultShort
	medium = DefaultMedium
	long   = DefaultLong
	batch  = DefaultBatch
)

// Ping returns the timeout for connectivity checks.
func Ping() time.Duration { return get(&ping) }

// Short returns the timeout for single-document operations.
func Short() time.Duration { return get(&short) }

// Medium returns the timeout for list queries and moderate writes.
func Medium() time.Duration { return get(&medium) }

// Long returns the timeout for multi-collection operations.
func Long() time.Duration { return get(&long) }

// Batch returns the timeout for bulk imports and exports.
func Batch() time.Duration { return get(&batch) }

func get(d *time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return *d
}

// Config holds override values; zero fields keep their defaults.
type Config struct {
	Ping   time.Duration
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
	Batch  time.Duration
}

// Configure applies non-zero overrides. Call once at startup, before
// handlers are built.
func Configure(cfg Config, logger *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()

	if cfg.Ping > 0 {
		ping = cfg.Ping
	}
	if cfg.Short > 0 {
		short = cfg.Short
	}
	if cfg.Medium > 0 {
		medium = cfg.Medium
	}
	if cfg.Long > 0 {
		long = cfg.Long
	}
	if cfg.Batch > 0 {
		batch = cfg.Batch
	}

	if logger != nil {
		logger.Info("handler timeouts configured",
			zap.Duration("ping", ping),
			zap.Duration("short", short),
			zap.Duration("medium", medium),
			zap.Duration("long", long),
			zap.Duration("batch", batch))
	}
}
