package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/carbon-engine/scenario"
	"github.com/warp/carbon-engine/scenario/store"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestRetentionScheduler_RunNow(t *testing.T) {
	// GIVEN: A scenario trashed 31 days ago
	s := newTestServer(t)
	sc := s.createScenario(t, "Old")
	s.do(t, http.MethodDelete, "/api/scenarios/"+string(sc.ID), nil)
	s.clock.t = s.clock.t.AddDate(0, 0, 31)

	// WHEN: The scheduler checks
	rs := NewRetentionScheduler(s.handler.Service, zap.NewNop())
	purged := rs.RunNow()

	// THEN: It is purged, and a second check finds nothing
	assert.Equal(t, []scenario.ID{sc.ID}, purged)
	assert.Empty(t, rs.RunNow())
	assert.Equal(t, s.clock.t.Add(time.Hour), rs.GetNextRunTime())
}

func TestRetentionScheduler_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	// GIVEN: A trashed scenario past retention in a memory store
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := scenario.NewService(store.NewMemory(), scenario.WithClock(func() time.Time { return now }))
	sc, err := svc.Create(ctx, "Old", "", GhanaCookstoves())
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, sc.ID))
	now = now.AddDate(0, 1, 1)

	// WHEN: The scheduler starts; the first check runs immediately
	rs := NewRetentionScheduler(svc, nil)
	rs.CheckInterval = 10 * time.Millisecond
	rs.Start()
	rs.Start()

	// THEN: The scenario is purged, and Stop leaves no goroutine behind
	assert.Eventually(t, func() bool {
		trash, err := svc.ListTrash(ctx)
		return err == nil && len(trash) == 0
	}, time.Second, 5*time.Millisecond)
	rs.Stop()
	rs.Stop()

	_, err = svc.Get(ctx, sc.ID)
	assert.ErrorIs(t, err, scenario.ErrScenarioNotFound)
}

func TestRetentionScheduler_Disabled(t *testing.T) {
	defer goleak.VerifyNone(t)

	rs := NewRetentionScheduler(scenario.NewService(store.NewMemory()), nil)
	rs.Enabled = false
	rs.Start()
	rs.Stop()
}
