package domain

import "time"

type Tier string

const (
	TierRetail    Tier = "retail"
	TierWholesale Tier = "wholesale"
)

type WholesaleStatus string

const (
	WholesalePending WholesaleStatus = "pending"
	WholesaleActive  WholesaleStatus = "active"
	WholesaleExpired WholesaleStatus = "expired"
)

type User struct {
	ID    string `db:"id"`
	Email string `db:"email"`
	Name  string `db:"name"`
	Hash  string `db:"password_hash"`
	Role  string `db:"role"`

	Tier             Tier            `db:"tier"`
	WholesaleStatus  WholesaleStatus `db:"wholesale_status"`
	UnitsAccumulated int             `db:"units_accumulated"`
	PeriodExpiresAt  *time.Time      `db:"period_expires_at"`
	// RetailProgress is only maintained when retail rollover is enabled.
	RetailProgress int   `db:"retail_progress_units"`
	Version        int64 `db:"version"`
}

// WholesaleState is the slice of User owned by the tier engine.
type WholesaleState struct {
	Tier             Tier
	Status           WholesaleStatus
	UnitsAccumulated int
	PeriodExpiresAt  *time.Time
	RetailProgress   int
}

func (u User) WholesaleState() WholesaleState {
	return WholesaleState{
		Tier:             u.Tier,
		Status:           u.WholesaleStatus,
		UnitsAccumulated: u.UnitsAccumulated,
		PeriodExpiresAt:  u.PeriodExpiresAt,
		RetailProgress:   u.RetailProgress,
	}
}
