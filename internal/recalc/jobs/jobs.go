// Package jobs holds the two sequential status-move sweeps. Unlike the
// partitioned runner they scan for dossiers meeting a structural precondition
// and move each one state forward, one unit of work per dossier, so a single
// failure never blocks the rest of the batch.
package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"immuna/internal/dossier/lifecycle"
	dossiermodels "immuna/internal/dossier/models"
	"immuna/internal/recalc/ports"
	"immuna/pkg/requestcontext"
)

// DefaultSweepLimit bounds one sweep pass.
const DefaultSweepLimit = 500

// Report counts one sweep pass.
type Report struct {
	Scanned int
	Moved   int
	Failed  int
}

// Sweeper runs the status-move sweeps.
type Sweeper struct {
	dossiers ports.DossierStore
	notifier ports.Notifier
	logger   *slog.Logger
	limit    int
}

// Option configures the sweeper.
type Option func(*Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = logger }
}

func WithNotifier(n ports.Notifier) Option {
	return func(s *Sweeper) { s.notifier = n }
}

func WithLimit(limit int) Option {
	return func(s *Sweeper) { s.limit = limit }
}

func NewSweeper(dossiers ports.DossierStore, opts ...Option) (*Sweeper, error) {
	if dossiers == nil {
		return nil, fmt.Errorf("dossier store is required")
	}
	s := &Sweeper{
		dossiers: dossiers,
		logger:   slog.Default(),
		limit:    DefaultSweepLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RunImmunizeSweep moves fully completed dossiers that are not yet marked
// immunized one state forward.
func (s *Sweeper) RunImmunizeSweep(ctx context.Context) (Report, error) {
	dossiers, err := s.dossiers.ListAwaitingImmunization(ctx, s.limit)
	if err != nil {
		return Report{}, fmt.Errorf("list awaiting immunization: %w", err)
	}
	return s.move(ctx, "immunize", dossiers), nil
}

// RunBoosterUnlockSweep moves immunized dossiers whose next dose unlock date
// has passed to booster-unlocked.
func (s *Sweeper) RunBoosterUnlockSweep(ctx context.Context) (Report, error) {
	dossiers, err := s.dossiers.ListAwaitingBoosterUnlock(ctx, s.limit)
	if err != nil {
		return Report{}, fmt.Errorf("list awaiting booster unlock: %w", err)
	}
	return s.move(ctx, "booster_unlock", dossiers), nil
}

// move advances each dossier in its own unit of work. The sweeps pass no
// fresh protection record: the state machine advances from the cached one.
func (s *Sweeper) move(ctx context.Context, sweep string, dossiers []*dossiermodels.VaccinationDossier) Report {
	now := requestcontext.Now(ctx)
	report := Report{Scanned: len(dossiers)}

	for _, d := range dossiers {
		tr := lifecycle.Advance(d, nil, now)
		if !tr.Changed {
			if tr.Note != "" {
				s.logger.DebugContext(ctx, "sweep guard not evaluable",
					"sweep", sweep, "dossier_id", d.ID, "note", tr.Note)
			}
			continue
		}
		if err := s.dossiers.Persist(ctx, d); err != nil {
			report.Failed++
			s.logger.ErrorContext(ctx, "sweep persist failed",
				"sweep", sweep, "dossier_id", d.ID, "error", err)
			continue
		}
		report.Moved++
		s.dispatchEffects(ctx, d, tr)
		s.logger.InfoContext(ctx, "sweep moved dossier",
			"sweep", sweep, "dossier_id", d.ID, "from", tr.From, "to", tr.To)
	}
	return report
}

func (s *Sweeper) dispatchEffects(ctx context.Context, d *dossiermodels.VaccinationDossier, tr lifecycle.Transition) {
	for _, effect := range tr.Effects {
		if effect != lifecycle.EffectNotifyBoosterUnlocked || s.notifier == nil {
			continue
		}
		if err := s.notifier.BoosterUnlocked(ctx, d); err != nil {
			s.logger.WarnContext(ctx, "booster notification failed",
				"dossier_id", d.ID, "error", err)
		}
	}
}
