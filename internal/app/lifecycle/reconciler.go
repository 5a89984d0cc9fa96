package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/studytrack/internal/app/notify"
	notificationstore "github.com/dalemusser/studytrack/internal/app/store/notifications"
	requeststore "github.com/dalemusser/studytrack/internal/app/store/requests"
	"github.com/dalemusser/studytrack/internal/app/system/duetime"
	"github.com/dalemusser/studytrack/internal/app/system/timeouts"
	"github.com/dalemusser/studytrack/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// ReconcilerConfig carries the alerting windows and retention policy.
type ReconcilerConfig struct {
	// DueSoonWindow is how close to the due date the warning fires.
	DueSoonWindow time.Duration
	// NotificationRetention is how long notification records are kept
	// before the purge removes them. Zero disables purging.
	NotificationRetention time.Duration
}

// Reconciler is the background worker that turns elapsed time into
// state: active checkouts past their due date become overdue, and the
// overdue and due-soon alerts fan out. It consumes the request
// watcher's snapshots of active checkouts, so its cadence is the
// watcher's poll interval. Each request gets each kind of alert at
// most once per process lifetime; the persisted overdue status keeps
// restarts from re-marking already-overdue checkouts.
type Reconciler struct {
	requests      *requeststore.Store
	notifications *notificationstore.Store
	watcher       *requeststore.Watcher
	notifier      *notify.Notifier
	cfg           ReconcilerConfig
	log           *zap.Logger

	mu       sync.Mutex
	notified map[string]bool

	lastPurge time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewReconciler(requests *requeststore.Store, notifications *notificationstore.Store, watcher *requeststore.Watcher, notifier *notify.Notifier, cfg ReconcilerConfig, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		requests:      requests,
		notifications: notifications,
		watcher:       watcher,
		notifier:      notifier,
		cfg:           cfg,
		log:           logger,
		notified:      make(map[string]bool),
		stopCh:        make(chan struct{}),
	}
}

// Start subscribes to the active-checkout snapshots and begins
// reconciling them.
func (r *Reconciler) Start() {
	r.wg.Add(1)
	go r.run()
	r.log.Info("reconciler started",
		zap.Duration("due_soon_window", r.cfg.DueSoonWindow),
		zap.Duration("notification_retention", r.cfg.NotificationRetention))
}

// Stop ends the loop and waits for the in-flight pass to finish.
func (r *Reconciler) Stop() {
	close(r.stopCh)
	r.wg.Wait()
	r.log.Info("reconciler stopped")
}

func (r *Reconciler) run() {
	defer r.wg.Done()

	snapshots, cancel := r.watcher.Subscribe(bson.M{"status": models.StatusActive})
	defer cancel()

	for {
		select {
		case <-r.stopCh:
			return
		case active, ok := <-snapshots:
			if !ok {
				return
			}
			ctx, cancelPass := context.WithTimeout(context.Background(), timeouts.Long())
			now := time.Now().UTC()
			r.reconcile(ctx, active, now)
			r.purge(ctx, now)
			cancelPass()
		}
	}
}

// Sweep runs one reconciliation pass at the given instant against the
// stored active checkouts, then purges expired notification records.
// Exposed so tests can drive the clock without the watcher.
func (r *Reconciler) Sweep(ctx context.Context, now time.Time) {
	active, err := r.requests.ListActive(ctx)
	if err != nil {
		r.log.Error("reconciler scan failed", zap.Error(err))
		return
	}
	r.reconcile(ctx, active, now)
	r.purge(ctx, now)
}

func (r *Reconciler) reconcile(ctx context.Context, active []models.FileRequest, now time.Time) {
	for _, req := range active {
		if req.DueDate == nil {
			continue
		}

		switch {
		case duetime.IsOverdue(*req.DueDate, now):
			changed, err := r.requests.MarkOverdue(ctx, req.ID)
			if err != nil {
				r.log.Error("mark overdue failed",
					zap.String("request_id", req.ID.Hex()), zap.Error(err))
				continue
			}
			if !changed {
				// Lost a race with a return; nothing to announce.
				continue
			}
			r.log.Warn("checkout overdue",
				zap.String("request_id", req.ID.Hex()),
				zap.String("user_id", req.UserID),
				zap.Time("due_date", *req.DueDate))
			if r.once("overdue-" + req.ID.Hex()) {
				r.notifier.FileOverdue(ctx, req)
			}

		case duetime.DueSoon(*req.DueDate, now, r.cfg.DueSoonWindow):
			if r.once("due-soon-" + req.ID.Hex()) {
				hours := duetime.HoursRemaining(*req.DueDate, now)
				if hours < 1 {
					hours = 1
				}
				r.notifier.FileDueSoon(ctx, req, hours)
			}
		}
	}
}

// once reports whether the key has not been seen before, recording it.
func (r *Reconciler) once(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.notified[key] {
		return false
	}
	r.notified[key] = true
	return true
}

// purge removes notification records past retention, at most once a
// day.
func (r *Reconciler) purge(ctx context.Context, now time.Time) {
	if r.cfg.NotificationRetention <= 0 {
		return
	}

	r.mu.Lock()
	due := now.Sub(r.lastPurge) >= 24*time.Hour
	if due {
		r.lastPurge = now
	}
	r.mu.Unlock()
	if !due {
		return
	}

	removed, err := r.notifications.PurgeOlderThan(ctx, now.Add(-r.cfg.NotificationRetention))
	if err != nil {
		r.log.Error("notification purge failed", zap.Error(err))
		return
	}
	if removed > 0 {
		r.log.Info("purged expired notifications", zap.Int64("removed", removed))
	}
}
