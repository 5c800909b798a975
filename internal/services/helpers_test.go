package services_test

import (
	"testing"
	_ "time/tzdata"

	"github.com/julianmcancelo/grana3d2026-sub000/internal/repos"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *repos.Store {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repos.NewStore(db)
}
