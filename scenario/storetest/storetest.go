// Package storetest is the behavioural contract every scenario.Store must
// satisfy. Each implementation's tests call Run with a fresh-store factory.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/carbon-engine/engine"
	"github.com/warp/carbon-engine/scenario"
)

// base is a whole-microsecond UTC instant, exact in every backend.
var base = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

func f64(v float64) *float64 { return &v }

// Sample returns a small valid scenario.
func Sample(id string, createdAt time.Time) scenario.Scenario {
	duration := 5
	return scenario.Scenario{
		ID:          scenario.ID(id),
		Name:        "Scenario " + id,
		ProjectName: "Ghana Cookstoves",
		Inputs: engine.UIInputs{
			StartYear:         2025,
			Years:             3,
			CreditsGenerated:  []float64{0, 5000, 8000},
			IssuanceFlag:      []float64{0, 1, 1},
			PricePerCredit:    []float64{12, 12.5, 13},
			DebtDraw:          []float64{100000, 0, 0},
			DebtDurationYears: &duration,
			InterestRatePct:   f64(8),
			PurchaseSharePct:  f64(40),
			InitialEquityT0:   f64(250000),
		},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// Run executes the contract against stores built by newStore.
func Run(t *testing.T, newStore func(t *testing.T) scenario.Store) {
	t.Run("SaveAndGet", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		want := Sample("a", base)
		require.NoError(t, s.Save(ctx, want))

		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, want.ProjectName, got.ProjectName)
		assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
		assert.Equal(t, want.Inputs, got.Inputs)
		assert.Nil(t, got.DeletedAt)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := newStore(t).Get(context.Background(), "nope")
		assert.ErrorIs(t, err, scenario.ErrScenarioNotFound)
	})

	t.Run("SaveReplacesInputs", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		sc := Sample("a", base)
		require.NoError(t, s.Save(ctx, sc))

		sc.Name = "Renamed"
		sc.Inputs.DebtDraw = nil
		sc.Inputs.PricePerCredit = []float64{20, 20, 20}
		sc.UpdatedAt = base.Add(time.Hour)
		require.NoError(t, s.Save(ctx, sc))

		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Name)
		assert.Nil(t, got.Inputs.DebtDraw)
		assert.Equal(t, []float64{20, 20, 20}, got.Inputs.PricePerCredit)
		assert.True(t, base.Add(time.Hour).Equal(got.UpdatedAt))

		all, err := s.List(ctx, true)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("ListOrderAndTrash", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.Save(ctx, Sample("b", base.Add(2*time.Minute))))
		require.NoError(t, s.Save(ctx, Sample("a", base.Add(time.Minute))))
		require.NoError(t, s.Save(ctx, Sample("c", base.Add(3*time.Minute))))

		require.NoError(t, s.SoftDelete(ctx, "a", base.Add(time.Hour)))
		require.NoError(t, s.SoftDelete(ctx, "c", base.Add(2*time.Hour)))

		active, err := s.List(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, []scenario.ID{"b"}, ids(active))

		all, err := s.List(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, []scenario.ID{"a", "b", "c"}, ids(all))

		trash, err := s.ListTrash(ctx)
		require.NoError(t, err)
		assert.Equal(t, []scenario.ID{"c", "a"}, ids(trash))
		require.NotNil(t, trash[0].DeletedAt)
		assert.True(t, base.Add(2*time.Hour).Equal(*trash[0].DeletedAt))
	})

	t.Run("SoftDeleteAndRestoreStates", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.Save(ctx, Sample("a", base)))

		assert.ErrorIs(t, s.Restore(ctx, "a"), scenario.ErrScenarioNotDeleted)
		require.NoError(t, s.SoftDelete(ctx, "a", base))
		assert.ErrorIs(t, s.SoftDelete(ctx, "a", base), scenario.ErrScenarioDeleted)

		got, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.True(t, got.Deleted())

		require.NoError(t, s.Restore(ctx, "a"))
		got, err = s.Get(ctx, "a")
		require.NoError(t, err)
		assert.False(t, got.Deleted())

		assert.ErrorIs(t, s.SoftDelete(ctx, "zz", base), scenario.ErrScenarioNotFound)
		assert.ErrorIs(t, s.Restore(ctx, "zz"), scenario.ErrScenarioNotFound)
	})

	t.Run("PurgeDeletedBefore", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		for _, id := range []string{"old", "recent", "active"} {
			require.NoError(t, s.Save(ctx, Sample(id, base)))
		}
		require.NoError(t, s.SoftDelete(ctx, "old", base.AddDate(0, 0, -40)))
		require.NoError(t, s.SoftDelete(ctx, "recent", base.AddDate(0, 0, -5)))
		require.NoError(t, s.SaveRun(ctx, sampleRun("r1", "old")))

		purged, err := s.PurgeDeletedBefore(ctx, base.AddDate(0, 0, -30))
		require.NoError(t, err)
		assert.Equal(t, []scenario.ID{"old"}, purged)

		_, err = s.Get(ctx, "old")
		assert.ErrorIs(t, err, scenario.ErrScenarioNotFound)
		_, err = s.ListRuns(ctx, "old")
		assert.ErrorIs(t, err, scenario.ErrScenarioNotFound)

		all, err := s.List(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, []scenario.ID{"active", "recent"}, ids(all))
	})

	t.Run("Runs", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.Save(ctx, Sample("a", base)))

		first := sampleRun("r1", "a")
		second := sampleRun("r2", "a")
		second.RanAt = base.Add(time.Minute)
		second.IRR = engine.Rate{}
		second.Payback = engine.Payback{}

		require.NoError(t, s.SaveRun(ctx, second))
		require.NoError(t, s.SaveRun(ctx, first))

		runs, err := s.ListRuns(ctx, "a")
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "r1", runs[0].ID)
		assert.True(t, first.NPV.Equal(runs[0].NPV))
		assert.Equal(t, first.IRR.String(), runs[0].IRR.String())
		assert.Equal(t, first.Payback.String(), runs[0].Payback.String())
		assert.Equal(t, 1, runs[0].Violations)
		assert.False(t, runs[1].IRR.Valid)
		assert.False(t, runs[1].Payback.Within)

		assert.ErrorIs(t, s.SaveRun(ctx, sampleRun("r3", "zz")), scenario.ErrScenarioNotFound)
	})
}

func sampleRun(id string, scenarioID scenario.ID) scenario.Run {
	irr, _ := engine.ParseRate("0.123456")
	payback, _ := engine.ParsePayback("3.25")
	return scenario.Run{
		ID:          id,
		ScenarioID:  scenarioID,
		RanAt:       base,
		Fingerprint: "00000000deadbeef",
		NPV:         decimal.RequireFromString("-15234.57"),
		IRR:         irr,
		Payback:     payback,
		Violations:  1,
	}
}

func ids(list []scenario.Scenario) []scenario.ID {
	out := make([]scenario.ID, len(list))
	for i, s := range list {
		out[i] = s.ID
	}
	return out
}
