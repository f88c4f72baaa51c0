package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/perimeterlab/fieldalert/internal/database/testutil"
)

func TestBlockRegistryUnknownUserNotBlocked(t *testing.T) {
	registry := mustRegistry(t, testutil.MustOpenTestDB(t))

	status := registry.Check(context.Background(), "stranger")
	require.False(t, status.Blocked)
	require.Empty(t, status.Reason)
}

func TestBlockRegistryActiveBlock(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	seedBlock(t, db, "user-1", "abuse report", true)

	registry := mustRegistry(t, db)
	status := registry.Check(context.Background(), "user-1")
	require.True(t, status.Blocked)
	require.Equal(t, "abuse report", status.Reason)
	require.Equal(t, "admin-1", status.BlockedBy)
	require.NotNil(t, status.BlockedAt)
}

func TestBlockRegistryIgnoresInactiveBlocks(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	seedBlock(t, db, "user-1", "lifted", false)

	registry := mustRegistry(t, db)
	require.False(t, registry.Check(context.Background(), "user-1").Blocked)
}

// A backend outage must not block alert delivery: the lookup fails open.
func TestBlockRegistryFailsOpenOnQueryFailure(t *testing.T) {
	registry := mustRegistry(t, openClosedDB(t))

	status := registry.Check(context.Background(), "user-1")
	require.False(t, status.Blocked)
}

func TestBlockRegistryEmptyUserID(t *testing.T) {
	registry := mustRegistry(t, testutil.MustOpenTestDB(t))
	require.False(t, registry.Check(context.Background(), "  ").Blocked)
}

func TestBlockRegistryHonoursTimeout(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	registry, err := NewBlockRegistry(db, WithLookupTimeout(time.Nanosecond))
	require.NoError(t, err)

	// An expired deadline behaves like an outage: fail open.
	status := registry.Check(context.Background(), "user-1")
	require.False(t, status.Blocked)
}
