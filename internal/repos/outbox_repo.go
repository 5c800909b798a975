package repos

import (
	"context"
	"time"

	"github.com/julianmcancelo/grana3d2026-sub000/internal/domain"
)

const (
	OutboxPending = "pending"
	OutboxDone    = "done"
	OutboxFailed  = "failed"
)

// OutboxTask is a unit of post-commit work. Times are unix milliseconds.
type OutboxTask struct {
	ID            string `db:"id" json:"id"`
	Kind          string `db:"kind" json:"kind"`
	Payload       string `db:"payload" json:"payload"`
	Status        string `db:"status" json:"status"`
	Attempts      int    `db:"attempts" json:"attempts"`
	NextAttemptAt int64  `db:"next_attempt_at" json:"nextAttemptAt"`
	LastError     string `db:"last_error" json:"lastError,omitempty"`
	CreatedAt     int64  `db:"created_at" json:"createdAt"`
	UpdatedAt     int64  `db:"updated_at" json:"updatedAt"`
}

type OutboxRepo struct{ db DBTX }

func NewOutboxRepo(db DBTX) *OutboxRepo { return &OutboxRepo{db: db} }

const outboxCols = `id, kind, payload, status, attempts, next_attempt_at, last_error, created_at, updated_at`

func (r *OutboxRepo) Enqueue(ctx context.Context, id, kind, payload string, now time.Time) error {
	ms := now.UnixMilli()
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO outbox(id, kind, payload, status, attempts, next_attempt_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?)
	`), id, kind, payload, OutboxPending, ms, ms, ms)
	return err
}

// Due returns pending tasks whose next attempt is at or before now, oldest first.
func (r *OutboxRepo) Due(ctx context.Context, now time.Time, limit int) ([]OutboxTask, error) {
	var out []OutboxTask
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		SELECT `+outboxCols+` FROM outbox
		WHERE status = ? AND next_attempt_at <= ?
		ORDER BY next_attempt_at, id
		LIMIT ?`), OutboxPending, now.UnixMilli(), limit)
	return out, err
}

// Claim leases a due task to the caller until now+lease by pushing its next
// attempt forward. Only one caller wins a claim; a relay that dies mid-task
// leaves it due again once the lease runs out.
func (r *OutboxRepo) Claim(ctx context.Context, id string, now time.Time, lease time.Duration) (bool, error) {
	ms := now.UnixMilli()
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE outbox SET next_attempt_at = ?, updated_at = ?
		WHERE id = ? AND status = ? AND next_attempt_at <= ?
	`), now.Add(lease).UnixMilli(), ms, id, OutboxPending, ms)
	if err != nil {
		return false, err
	}
	return rowsAffected(res) == 1, nil
}

func (r *OutboxRepo) MarkDone(ctx context.Context, id string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE outbox SET status = ?, attempts = attempts + 1, last_error = '', updated_at = ? WHERE id = ?
	`), OutboxDone, now.UnixMilli(), id)
	return err
}

// Reschedule records a failed attempt and the time of the next one.
func (r *OutboxRepo) Reschedule(ctx context.Context, id string, next time.Time, lastErr string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE outbox SET attempts = attempts + 1, next_attempt_at = ?, last_error = ?, updated_at = ? WHERE id = ?
	`), next.UnixMilli(), lastErr, now.UnixMilli(), id)
	return err
}

func (r *OutboxRepo) Fail(ctx context.Context, id, lastErr string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE outbox SET status = ?, attempts = attempts + 1, last_error = ?, updated_at = ? WHERE id = ?
	`), OutboxFailed, lastErr, now.UnixMilli(), id)
	return err
}

// List returns tasks in a status, newest first. An empty status lists everything.
func (r *OutboxRepo) List(ctx context.Context, status string, limit int) ([]OutboxTask, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT ` + outboxCols + ` FROM outbox`
	args := []any{}
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)
	var out []OutboxTask
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(q), args...)
	return out, err
}

func (r *OutboxRepo) Get(ctx context.Context, id string) (OutboxTask, error) {
	var t OutboxTask
	err := r.db.GetContext(ctx, &t, r.db.Rebind(`SELECT `+outboxCols+` FROM outbox WHERE id = ?`), id)
	return t, err
}

// Retry moves a failed task back to pending with a fresh attempt budget.
func (r *OutboxRepo) Retry(ctx context.Context, id string, now time.Time) error {
	ms := now.UnixMilli()
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE outbox SET status = ?, attempts = 0, next_attempt_at = ?, updated_at = ? WHERE id = ? AND status = ?
	`), OutboxPending, ms, ms, id, OutboxFailed)
	if err != nil {
		return err
	}
	if rowsAffected(res) == 0 {
		return domain.ErrNotFound
	}
	return nil
}
