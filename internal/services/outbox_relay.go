package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/julianmcancelo/grana3d2026-sub000/internal/log"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/repos"
)

const (
	maxBackoff = 5 * time.Minute
	relayBatch = 50
)

// TaskHandler performs one kind of outbox task. Returning an error schedules
// a retry.
type TaskHandler interface {
	Handle(ctx context.Context, task repos.OutboxTask) error
}

type TaskHandlerFunc func(ctx context.Context, task repos.OutboxTask) error

func (f TaskHandlerFunc) Handle(ctx context.Context, task repos.OutboxTask) error {
	return f(ctx, task)
}

type RelayConfig struct {
	PollInterval time.Duration
	MaxAttempts  int
	// ClaimLease is how long a claimed task is hidden from other relays. It
	// also bounds a single handler run.
	ClaimLease time.Duration
	Clock      func() time.Time
}

type OutboxRelay struct {
	store       *repos.Store
	interval    time.Duration
	maxAttempts int
	lease       time.Duration
	clock       func() time.Time

	mu       sync.RWMutex
	handlers map[string]TaskHandler
	nudge    chan struct{}
}

func NewOutboxRelay(store *repos.Store, cfg RelayConfig) *OutboxRelay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = 2 * time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &OutboxRelay{
		store:       store,
		interval:    cfg.PollInterval,
		maxAttempts: cfg.MaxAttempts,
		lease:       cfg.ClaimLease,
		clock:       cfg.Clock,
		handlers:    map[string]TaskHandler{},
		nudge:       make(chan struct{}, 1),
	}
}

func (r *OutboxRelay) Register(kind string, h TaskHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

// Nudge asks the relay to poll now instead of waiting for the next tick.
func (r *OutboxRelay) Nudge() {
	select {
	case r.nudge <- struct{}{}:
	default:
	}
}

// Backoff is the delay before the next attempt after n failed attempts.
func Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	if n > 9 {
		return maxBackoff
	}
	d := time.Duration(1<<uint(n)) * time.Second
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// Run polls until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		if _, err := r.ProcessDue(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Bg("outbox.poll.fail", err, nil)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		case <-r.nudge:
		}
	}
}

// ProcessDue runs one batch of due tasks and returns how many succeeded.
func (r *OutboxRelay) ProcessDue(ctx context.Context) (int, error) {
	tasks, err := r.store.Outbox.Due(ctx, r.clock(), relayBatch)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, task := range tasks {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if r.process(ctx, task) {
			done++
		}
	}
	return done, nil
}

func (r *OutboxRelay) process(ctx context.Context, task repos.OutboxTask) bool {
	r.mu.RLock()
	h, ok := r.handlers[task.Kind]
	r.mu.RUnlock()

	fields := map[string]any{"task_id": task.ID, "kind": task.Kind, "attempt": task.Attempts + 1}
	claimed, err := r.store.Outbox.Claim(ctx, task.ID, r.clock(), r.lease)
	if err != nil {
		log.Bg("outbox.task.claim.fail", err, fields)
		return false
	}
	if !claimed {
		// another relay took it
		return false
	}
	if !ok {
		_ = r.store.Outbox.Fail(ctx, task.ID, "no handler for "+task.Kind, r.clock())
		log.Bg("outbox.task.unhandled", fmt.Errorf("no handler for %s", task.Kind), fields)
		return false
	}

	hctx, cancel := context.WithTimeout(ctx, r.lease)
	herr := safeHandle(hctx, h, task)
	cancel()
	now := r.clock()
	if herr == nil {
		if err := r.store.Outbox.MarkDone(ctx, task.ID, now); err != nil {
			log.Bg("outbox.task.mark.fail", err, fields)
			return false
		}
		log.Bg("outbox.task.done", nil, fields)
		return true
	}

	attempts := task.Attempts + 1
	if attempts >= r.maxAttempts {
		if err := r.store.Outbox.Fail(ctx, task.ID, herr.Error(), now); err != nil {
			log.Bg("outbox.task.mark.fail", err, fields)
		}
		log.Bg("outbox.task.failed", herr, fields)
		return false
	}
	next := now.Add(Backoff(attempts))
	if err := r.store.Outbox.Reschedule(ctx, task.ID, next, herr.Error(), now); err != nil {
		log.Bg("outbox.task.mark.fail", err, fields)
	}
	fields["next_attempt_at"] = next.UTC().Format(time.RFC3339)
	log.Bg("outbox.task.retry", herr, fields)
	return false
}

func safeHandle(ctx context.Context, h TaskHandler, task repos.OutboxTask) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return h.Handle(ctx, task)
}
