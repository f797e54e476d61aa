package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/carbon-engine/cache"
	"github.com/warp/carbon-engine/engine"
	"go.uber.org/zap"
)

// DefaultRetention is how long a scenario stays in the trash.
const DefaultRetention = 30 * 24 * time.Hour

// =============================================================================
// SERVICE
// =============================================================================

// Service runs the engine for ad-hoc inputs and saved scenarios.
type Service struct {
	store     Store
	cache     cache.Cache
	logger    *zap.Logger
	policy    engine.InvariantPolicy
	retention time.Duration
	now       func() time.Time
	newID     func() string
}

// Option configures a Service.
type Option func(*Service)

// WithCache caches models by input fingerprint.
func WithCache(c cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithPolicy sets the invariant policy for every run.
func WithPolicy(p engine.InvariantPolicy) Option {
	return func(s *Service) { s.policy = p }
}

// WithRetention sets how long trashed scenarios are kept.
func WithRetention(d time.Duration) Option {
	return func(s *Service) { s.retention = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a service over store. Without options it does not
// cache, logs nothing and uses PolicyWarn.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		cache:     cache.Nop{},
		logger:    zap.NewNop(),
		policy:    engine.PolicyWarn,
		retention: DefaultRetention,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the invariant policy applied to every run.
func (s *Service) Policy() engine.InvariantPolicy { return s.policy }

// Retention returns the trash retention window.
func (s *Service) Retention() time.Duration { return s.retention }

// =============================================================================
// CALCULATION
// =============================================================================

// Calculate normalizes UI inputs and runs the engine.
func (s *Service) Calculate(ctx context.Context, ui engine.UIInputs) (*engine.Model, error) {
	in, err := engine.Normalize(ui)
	if err != nil {
		return nil, err
	}
	m, _, err := s.run(ctx, in)
	return m, err
}

// CalculateInputs runs the engine on already-normalized inputs.
func (s *Service) CalculateInputs(ctx context.Context, in engine.EngineInputs) (*engine.Model, error) {
	m, _, err := s.run(ctx, in)
	return m, err
}

// run is the cached path shared by every calculation. Cache failures are
// logged and the model is computed anyway.
func (s *Service) run(ctx context.Context, in engine.EngineInputs) (*engine.Model, string, error) {
	key, err := cache.Fingerprint(in, s.policy)
	if err != nil {
		return nil, "", err
	}

	if m, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("model cache read failed", zap.String("fingerprint", key), zap.Error(err))
	} else if ok {
		s.logger.Debug("model cache hit", zap.String("fingerprint", key))
		s.logViolations(key, m)
		return m, key, nil
	}

	start := time.Now()
	m, err := engine.Run(in, engine.WithPolicy(s.policy))
	if err != nil {
		var inv *engine.InvariantError
		if errors.As(err, &inv) {
			s.logger.Error("model failed invariant checks",
				zap.String("fingerprint", key),
				zap.Int("violations", len(inv.Violations)),
				zap.Error(err))
		}
		return nil, key, err
	}

	s.logViolations(key, m)
	s.logger.Debug("model computed",
		zap.String("fingerprint", key),
		zap.Int("horizon", in.Horizon),
		zap.Duration("elapsed", time.Since(start)))

	if err := s.cache.Set(ctx, key, m); err != nil {
		s.logger.Warn("model cache write failed", zap.String("fingerprint", key), zap.Error(err))
	}
	return m, key, nil
}

// logViolations warns once per violation on every run, cached or not.
func (s *Service) logViolations(key string, m *engine.Model) {
	for _, v := range m.Violations {
		s.logger.Warn("invariant violation",
			zap.String("fingerprint", key),
			zap.String("check", v.Check),
			zap.Int("year", v.Year),
			zap.String("delta", v.Delta))
	}
}

// CalculateScenario runs a saved scenario and records the run.
func (s *Service) CalculateScenario(ctx context.Context, id ID) (*engine.Model, Run, error) {
	sc, err := s.Get(ctx, id)
	if err != nil {
		return nil, Run{}, err
	}
	if sc.Deleted() {
		return nil, Run{}, ErrScenarioDeleted
	}

	in, err := engine.Normalize(sc.Inputs)
	if err != nil {
		return nil, Run{}, err
	}
	m, key, err := s.run(ctx, in)
	if err != nil {
		return nil, Run{}, err
	}

	run := NewRun(s.newID(), id, s.now().UTC(), key, m)
	if err := s.store.SaveRun(ctx, run); err != nil {
		return nil, Run{}, fmt.Errorf("failed to record run: %w", err)
	}
	s.logger.Info("scenario calculated",
		zap.String("scenario_id", string(id)),
		zap.String("run_id", run.ID),
		zap.String("npv", run.NPV.StringFixed(2)),
		zap.String("irr", run.IRR.String()))
	return m, run, nil
}

// Runs lists the recorded runs of a scenario.
func (s *Service) Runs(ctx context.Context, id ID) ([]Run, error) {
	return s.store.ListRuns(ctx, id)
}

// =============================================================================
// SCENARIO CRUD
// =============================================================================

// Create saves a new scenario with a generated ID.
func (s *Service) Create(ctx context.Context, name, projectName string, inputs engine.UIInputs) (Scenario, error) {
	inputs = withDefaultYears(inputs)
	if err := validateScenario(name, inputs); err != nil {
		return Scenario{}, err
	}

	now := s.now().UTC()
	sc := Scenario{
		ID:          ID(s.newID()),
		Name:        strings.TrimSpace(name),
		ProjectName: strings.TrimSpace(projectName),
		Inputs:      inputs,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Save(ctx, sc); err != nil {
		return Scenario{}, fmt.Errorf("failed to save scenario: %w", err)
	}
	s.logger.Info("scenario created", zap.String("scenario_id", string(sc.ID)), zap.String("name", sc.Name))
	return sc, nil
}

// Get returns a scenario, trashed or not.
func (s *Service) Get(ctx context.Context, id ID) (Scenario, error) {
	return s.store.Get(ctx, id)
}

// List returns the active scenarios.
func (s *Service) List(ctx context.Context) ([]Scenario, error) {
	return s.store.List(ctx, false)
}

// Update renames a scenario and replaces its inputs.
func (s *Service) Update(ctx context.Context, id ID, name, projectName string, inputs engine.UIInputs) (Scenario, error) {
	sc, err := s.active(ctx, id)
	if err != nil {
		return Scenario{}, err
	}
	inputs = withDefaultYears(inputs)
	if err := validateScenario(name, inputs); err != nil {
		return Scenario{}, err
	}

	sc.Name = strings.TrimSpace(name)
	sc.ProjectName = strings.TrimSpace(projectName)
	sc.Inputs = inputs
	sc.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, sc); err != nil {
		return Scenario{}, fmt.Errorf("failed to save scenario: %w", err)
	}
	return sc, nil
}

// UpdateInputs replaces only the inputs of a scenario.
func (s *Service) UpdateInputs(ctx context.Context, id ID, inputs engine.UIInputs) (Scenario, error) {
	sc, err := s.active(ctx, id)
	if err != nil {
		return Scenario{}, err
	}
	return s.Update(ctx, id, sc.Name, sc.ProjectName, inputs)
}

func (s *Service) active(ctx context.Context, id ID) (Scenario, error) {
	sc, err := s.store.Get(ctx, id)
	if err != nil {
		return Scenario{}, err
	}
	if sc.Deleted() {
		return Scenario{}, ErrScenarioDeleted
	}
	return sc, nil
}

func withDefaultYears(ui engine.UIInputs) engine.UIInputs {
	if ui.Years == 0 {
		ui.Years = len(ui.CreditsGenerated)
	}
	return ui
}

func validateScenario(name string, ui engine.UIInputs) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidScenario)
	case ui.StartYear <= 0:
		return fmt.Errorf("%w: start_year is required", ErrInvalidScenario)
	case ui.Years <= 0:
		return fmt.Errorf("%w: years or credits_generated is required", ErrInvalidScenario)
	case ui.Years > engine.MaxHorizon:
		return fmt.Errorf("%w: years must be at most %d", ErrInvalidScenario, engine.MaxHorizon)
	}
	// Stores keep inputs as year rows, so a series of the wrong length would
	// be truncated or zero-padded on reload.
	if _, err := engine.Normalize(ui); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}
	return nil
}

// =============================================================================
// TRASH
// =============================================================================

// Delete moves a scenario to the trash.
func (s *Service) Delete(ctx context.Context, id ID) error {
	if err := s.store.SoftDelete(ctx, id, s.now().UTC()); err != nil {
		return err
	}
	s.logger.Info("scenario trashed", zap.String("scenario_id", string(id)))
	return nil
}

// Restore takes a scenario out of the trash.
func (s *Service) Restore(ctx context.Context, id ID) error {
	if err := s.store.Restore(ctx, id); err != nil {
		return err
	}
	s.logger.Info("scenario restored", zap.String("scenario_id", string(id)))
	return nil
}

// ListTrash returns trashed scenarios, most recently deleted first.
func (s *Service) ListTrash(ctx context.Context) ([]Scenario, error) {
	return s.store.ListTrash(ctx)
}

// Purge permanently removes scenarios that have been in the trash longer
// than the retention window as of now.
func (s *Service) Purge(ctx context.Context, now time.Time) ([]ID, error) {
	cutoff := now.UTC().Add(-s.retention)
	purged, err := s.store.PurgeDeletedBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to purge trash: %w", err)
	}
	if len(purged) > 0 {
		s.logger.Info("trash purged", zap.Int("count", len(purged)), zap.Time("cutoff", cutoff))
	}
	return purged, nil
}

// Now returns the service clock.
func (s *Service) Now() time.Time { return s.now() }
