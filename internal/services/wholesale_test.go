package services_test

import (
	"testing"
	"time"

	"github.com/julianmcancelo/grana3d2026-sub000/internal/domain"
	"github.com/julianmcancelo/grana3d2026-sub000/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func engine(rollover bool) services.WholesaleEngine {
	loc, _ := time.LoadLocation("America/Argentina/Buenos_Aires")
	return services.WholesaleEngine{MinInitialUnits: 10, MinMaintenanceUnits: 10, RetailRollover: rollover, Location: loc}
}

func TestNextPeriodExpiry(t *testing.T) {
	loc, _ := time.LoadLocation("America/Argentina/Buenos_Aires")
	got := services.NextPeriodExpiry(time.Date(2026, time.December, 20, 12, 0, 0, 0, loc), loc)
	assert.Equal(t, time.Date(2027, time.January, 10, 0, 0, 0, 0, loc), got)

	// 01:00 UTC on Apr 1 is still March 31 in Buenos Aires
	got = services.NextPeriodExpiry(time.Date(2026, time.April, 1, 1, 0, 0, 0, time.UTC), loc)
	assert.Equal(t, time.April, got.Month())
	assert.Equal(t, 10, got.Day())
}

func TestUpdateTier_NoUnitsNoChange(t *testing.T) {
	s := domain.WholesaleState{Tier: domain.TierRetail, Status: domain.WholesalePending}
	got, changed := engine(false).UpdateTier(s, 0, fixedNow)
	assert.False(t, changed)
	assert.Equal(t, s, got)
}

func TestUpdateTier_RetailPromotion(t *testing.T) {
	e := engine(false)
	got, changed := e.UpdateTier(domain.WholesaleState{Tier: domain.TierRetail, Status: domain.WholesalePending}, 12, fixedNow)
	require.True(t, changed)
	assert.Equal(t, domain.TierWholesale, got.Tier)
	assert.Equal(t, domain.WholesaleActive, got.Status)
	assert.Equal(t, 12, got.UnitsAccumulated)
	require.NotNil(t, got.PeriodExpiresAt)
	assert.True(t, got.PeriodExpiresAt.Equal(services.NextPeriodExpiry(fixedNow, e.Location)))
	assert.Equal(t, time.April, got.PeriodExpiresAt.Month())
}

func TestUpdateTier_RetailNearMissNotRetained(t *testing.T) {
	s := domain.WholesaleState{Tier: domain.TierRetail, Status: domain.WholesalePending}
	got, changed := engine(false).UpdateTier(s, 9, fixedNow)
	assert.False(t, changed)
	assert.Equal(t, domain.TierRetail, got.Tier)

	// a second near miss still does not promote
	got, changed = engine(false).UpdateTier(got, 9, fixedNow)
	assert.False(t, changed)
	assert.Equal(t, domain.TierRetail, got.Tier)
}

func TestUpdateTier_RetailRollover(t *testing.T) {
	e := engine(true)
	s := domain.WholesaleState{Tier: domain.TierRetail, Status: domain.WholesalePending}

	s, changed := e.UpdateTier(s, 6, fixedNow)
	require.True(t, changed)
	assert.Equal(t, domain.TierRetail, s.Tier)
	assert.Equal(t, 6, s.RetailProgress)

	s, changed = e.UpdateTier(s, 4, fixedNow)
	require.True(t, changed)
	assert.Equal(t, domain.TierWholesale, s.Tier)
	assert.Equal(t, 10, s.UnitsAccumulated)
	assert.Equal(t, 0, s.RetailProgress)
}

func TestUpdateTier_WholesaleMaintenance(t *testing.T) {
	e := engine(false)
	next := services.NextPeriodExpiry(fixedNow, e.Location)
	earlier := next.AddDate(0, -1, 0)
	later := next.AddDate(0, 2, 0)

	// below threshold: accumulates, status and expiry untouched
	s := domain.WholesaleState{Tier: domain.TierWholesale, Status: domain.WholesaleExpired, UnitsAccumulated: 2, PeriodExpiresAt: &earlier}
	got, changed := e.UpdateTier(s, 3, fixedNow)
	require.True(t, changed)
	assert.Equal(t, 5, got.UnitsAccumulated)
	assert.Equal(t, domain.WholesaleExpired, got.Status)
	assert.True(t, got.PeriodExpiresAt.Equal(earlier))

	// reaching threshold regains active and extends
	got, _ = e.UpdateTier(got, 5, fixedNow)
	assert.Equal(t, 10, got.UnitsAccumulated)
	assert.Equal(t, domain.WholesaleActive, got.Status)
	assert.True(t, got.PeriodExpiresAt.Equal(next))

	// active with a later expiry keeps it
	s = domain.WholesaleState{Tier: domain.TierWholesale, Status: domain.WholesaleActive, UnitsAccumulated: 20, PeriodExpiresAt: &later}
	got, _ = e.UpdateTier(s, 1, fixedNow)
	assert.True(t, got.PeriodExpiresAt.Equal(later))

	// missing expiry gets one
	s = domain.WholesaleState{Tier: domain.TierWholesale, Status: domain.WholesaleActive, UnitsAccumulated: 9}
	got, _ = e.UpdateTier(s, 1, fixedNow)
	require.NotNil(t, got.PeriodExpiresAt)
	assert.True(t, got.PeriodExpiresAt.Equal(next))
}
