package repos

import (
	"context"

	"github.com/julianmcancelo/grana3d2026-sub000/internal/domain"
)

type UserRepo struct{ db DBTX }

func NewUserRepo(db DBTX) *UserRepo { return &UserRepo{db: db} }

const userCols = `id, email, name, password_hash, role, tier, wholesale_status, units_accumulated,
    period_expires_at, retail_progress_units, version`

func (r *UserRepo) ByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u, r.db.Rebind(`SELECT `+userCols+` FROM users WHERE LOWER(email) = LOWER(?)`), email)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) ByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u, r.db.Rebind(`SELECT `+userCols+` FROM users WHERE id = ?`), id)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) Insert(ctx context.Context, u domain.User) error {
	if u.Tier == "" {
		u.Tier = domain.TierRetail
	}
	if u.WholesaleStatus == "" {
		u.WholesaleStatus = domain.WholesalePending
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO users(id, email, name, password_hash, role, tier, wholesale_status, units_accumulated, period_expires_at, retail_progress_units)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO NOTHING
	`), u.ID, u.Email, u.Name, u.Hash, u.Role, u.Tier, u.WholesaleStatus, u.UnitsAccumulated,
		utcPtr(u.PeriodExpiresAt), u.RetailProgress)
	return err
}

// UpdateWholesale persists the tier engine's output if the row is still at
// the version the caller read.
func (r *UserRepo) UpdateWholesale(ctx context.Context, id string, version int64, s domain.WholesaleState) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE users SET tier = ?, wholesale_status = ?, units_accumulated = ?, period_expires_at = ?,
		       retail_progress_units = ?, version = version + 1
		WHERE id = ? AND version = ?
	`), s.Tier, s.Status, s.UnitsAccumulated, utcPtr(s.PeriodExpiresAt), s.RetailProgress, id, version)
	if err != nil {
		return err
	}
	if rowsAffected(res) == 0 {
		return domain.ErrConflict
	}
	return nil
}
