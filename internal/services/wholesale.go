package services

import (
	"time"

	"github.com/julianmcancelo/grana3d2026-sub000/internal/domain"
)

type WholesaleEngine struct {
	MinInitialUnits     int
	MinMaintenanceUnits int
	// RetailRollover keeps near-miss retail units toward the initial threshold.
	RetailRollover bool
	Location       *time.Location
}

// NextPeriodExpiry is midnight on the 10th of the month after at, in loc.
func NextPeriodExpiry(at time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t := at.In(loc)
	return time.Date(t.Year(), t.Month()+1, 10, 0, 0, 0, 0, loc)
}

// UpdateTier applies one order's qualifying units to a buyer's wholesale
// state. The bool reports whether anything needs persisting.
func (e WholesaleEngine) UpdateTier(s domain.WholesaleState, units int, at time.Time) (domain.WholesaleState, bool) {
	if units <= 0 {
		return s, false
	}
	next := NextPeriodExpiry(at, e.Location)

	if s.Tier != domain.TierWholesale {
		progress := units
		if e.RetailRollover {
			progress += s.RetailProgress
		}
		if progress >= e.MinInitialUnits {
			s.Tier = domain.TierWholesale
			s.Status = domain.WholesaleActive
			s.UnitsAccumulated = progress
			s.PeriodExpiresAt = &next
			s.RetailProgress = 0
			return s, true
		}
		if e.RetailRollover {
			s.RetailProgress = progress
			return s, true
		}
		return s, false
	}

	s.UnitsAccumulated += units
	if s.UnitsAccumulated >= e.MinMaintenanceUnits {
		wasExpired := s.Status == domain.WholesaleExpired
		s.Status = domain.WholesaleActive
		if wasExpired || s.PeriodExpiresAt == nil || s.PeriodExpiresAt.Before(next) {
			s.PeriodExpiresAt = &next
		}
	}
	return s, true
}
