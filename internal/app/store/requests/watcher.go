package requeststore

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/studytrack/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// Watcher is a poll-based live query over the request collection: each
// subscriber names a filter and receives the full matching result set
// immediately on subscribe and again every interval. Subscription
// lifetime is explicit; cancel removes the subscriber and closes its
// channel, and Stop tears down all of them.
type Watcher struct {
	store    *Store
	interval time.Duration
	log      *zap.Logger

	mu     sync.Mutex
	subs   map[string]*subscription
	stopCh chan struct{}
	wg     sync.WaitGroup
}

type subscription struct {
	filter bson.M
	ch     chan []models.FileRequest

	mu     sync.Mutex
	closed bool
}

// deliver hands a snapshot to the subscriber unless the subscription
// has been cancelled. The mutex orders delivery against close, so a
// cancel arriving mid-poll can never race a send on the closed channel.
func (s *subscription) deliver(snapshot []models.FileRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- snapshot:
	default:
		// Drain the stale snapshot and replace it with the fresh one.
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- snapshot:
		default:
		}
	}
}

func (s *subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// NewWatcher creates a watcher polling at the given interval.
func NewWatcher(store *Store, interval time.Duration, logger *zap.Logger) *Watcher {
	return &Watcher{
		store:    store,
		interval: interval,
		log:      logger,
		subs:     make(map[string]*subscription),
		stopCh:   make(chan struct{}),
	}
}

// Subscribe registers a filter and returns the delivery channel plus a
// cancel func. The current matching set is delivered on the first poll
// after registration. Slow consumers skip snapshots rather than block
// the poll loop; every delivered snapshot is complete, so a skipped one
// carries no information the next does not.
func (w *Watcher) Subscribe(filter bson.M) (<-chan []models.FileRequest, func()) {
	id := uuid.NewString()
	sub := &subscription{
		filter: filter,
		ch:     make(chan []models.FileRequest, 1),
	}

	w.mu.Lock()
	w.subs[id] = sub
	w.mu.Unlock()

	cancel := func() {
		w.mu.Lock()
		s, ok := w.subs[id]
		delete(w.subs, id)
		w.mu.Unlock()
		if ok {
			s.close()
		}
	}
	return sub.ch, cancel
}

// Start begins the poll loop.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("request watcher started", zap.Duration("interval", w.interval))
}

// Stop ends the poll loop, waits for it, and closes all subscriber
// channels.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.wg.Wait()

	w.mu.Lock()
	subs := make([]*subscription, 0, len(w.subs))
	for id, sub := range w.subs {
		delete(w.subs, id)
		subs = append(subs, sub)
	}
	w.mu.Unlock()
	for _, sub := range subs {
		sub.close()
	}
	w.log.Info("request watcher stopped")
}

func (w *Watcher) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.poll()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

// Poll runs one delivery round immediately. Exported for tests and for
// callers that want a snapshot without waiting out the interval.
func (w *Watcher) Poll() { w.poll() }

func (w *Watcher) poll() {
	w.mu.Lock()
	subs := make([]*subscription, 0, len(w.subs))
	for _, s := range w.subs {
		subs = append(subs, s)
	}
	w.mu.Unlock()

	for _, sub := range subs {
		ctx, cancel := context.WithTimeout(context.Background(), w.interval)
		snapshot, err := w.store.List(ctx, sub.filter)
		cancel()
		if err != nil {
			w.log.Error("request watcher poll failed", zap.Error(err))
			continue
		}

		sub.deliver(snapshot)
	}
}
