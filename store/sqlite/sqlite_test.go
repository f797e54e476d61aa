package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/carbon-engine/scenario"
	"github.com/warp/carbon-engine/scenario/storetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) scenario.Store { return newTestStore(t) })
}

func TestSQLite_Ping(t *testing.T) {
	assert.NoError(t, newTestStore(t).Ping(context.Background()))
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	// GIVEN: A scenario saved to a file database
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "carbon.db")
	s, err := New(path)
	require.NoError(t, err)
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(ctx, storetest.Sample("a", created)))
	require.NoError(t, s.SoftDelete(ctx, "a", created.Add(time.Hour)))
	require.NoError(t, s.Close())

	// WHEN: The database is reopened
	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()

	// THEN: The scenario and its trash state survive
	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Scenario a", got.Name)
	assert.Equal(t, []float64{0, 5000, 8000}, got.Inputs.CreditsGenerated)
	require.NotNil(t, got.DeletedAt)
	assert.True(t, created.Add(time.Hour).Equal(*got.DeletedAt))
}

func TestSQLite_StoresLocalTimesAsUTC(t *testing.T) {
	// GIVEN: A creation time in a non-UTC zone
	ctx := context.Background()
	s := newTestStore(t)
	zone := time.FixedZone("GMT+2", 2*60*60)
	created := time.Date(2025, 6, 1, 14, 0, 0, 0, zone)

	// WHEN: Saving and reading back
	require.NoError(t, s.Save(ctx, storetest.Sample("a", created)))
	got, err := s.Get(ctx, "a")
	require.NoError(t, err)

	// THEN: Same instant, in UTC
	assert.True(t, created.Equal(got.CreatedAt))
	assert.Equal(t, time.UTC, got.CreatedAt.Location())
}
