package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	dossiermodels "immuna/internal/dossier/models"
	"immuna/internal/dossier/store"
	"immuna/internal/recalc/ports/mocks"
	id "immuna/pkg/domain"
	"immuna/pkg/requestcontext"
)

// =============================================================================
// Status-Move Sweep Test Suite
// =============================================================================

type SweeperSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	store    *store.InMemoryStore
	notifier *mocks.MockNotifier
	sweeper  *Sweeper
	now      time.Time
	ctx      context.Context
}

func TestSweeperSuite(t *testing.T) {
	suite.Run(t, new(SweeperSuite))
}

func (s *SweeperSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = store.NewInMemory()
	s.notifier = mocks.NewMockNotifier(s.ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var err error
	s.sweeper, err = NewSweeper(s.store,
		WithLogger(logger),
		WithNotifier(s.notifier),
	)
	s.Require().NoError(err)

	s.now = time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *SweeperSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *SweeperSuite) seed(status dossiermodels.Status, unlockIn *time.Duration) *dossiermodels.VaccinationDossier {
	d := &dossiermodels.VaccinationDossier{
		ID:               id.DossierID(uuid.New()),
		RegistrantID:     id.RegistrantID(uuid.New()),
		Disease:          "covid-19",
		Status:           status,
		CompletionReason: dossiermodels.CompletionFullCourse,
	}
	if unlockIn != nil {
		unlock := s.now.Add(*unlockIn)
		d.Protection = &dossiermodels.ProtectionRecord{
			GrantedAt:            s.now.AddDate(0, -6, 0),
			NextDoseUnlockedFrom: &unlock,
			Reason:               dossiermodels.CompletionFullCourse,
		}
	}
	s.Require().NoError(s.store.Persist(s.ctx, d))
	return d
}

func durationPtr(d time.Duration) *time.Duration { return &d }

// =============================================================================
// Immunize Sweep
// =============================================================================

func (s *SweeperSuite) TestRunImmunizeSweep() {
	s.Run("completed dossiers with a record move to immunized", func() {
		d := s.seed(dossiermodels.StatusCompletedFullCourse, durationPtr(90*24*time.Hour))

		report, err := s.sweeper.RunImmunizeSweep(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, report.Scanned)
		s.Equal(1, report.Moved)
		s.Zero(report.Failed)

		got, err := s.store.Load(s.ctx, d.RegistrantID, d.Disease)
		s.Require().NoError(err)
		s.Equal(dossiermodels.StatusImmunized, got.Status)
	})

	s.Run("sweep is idempotent", func() {
		report, err := s.sweeper.RunImmunizeSweep(s.ctx)
		s.Require().NoError(err)
		s.Zero(report.Scanned, "moved dossiers no longer match the precondition")
	})

	s.Run("immunize continues straight to booster unlocked when already due", func() {
		d := s.seed(dossiermodels.StatusCompletedViaRecovery, durationPtr(-time.Hour))
		s.notifier.EXPECT().BoosterUnlocked(gomock.Any(), gomock.Any()).Return(nil)

		report, err := s.sweeper.RunImmunizeSweep(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, report.Moved)

		got, err := s.store.Load(s.ctx, d.RegistrantID, d.Disease)
		s.Require().NoError(err)
		s.Equal(dossiermodels.StatusBoosterUnlocked, got.Status)
	})

	s.Run("in-progress dossiers are not scanned", func() {
		s.seed(dossiermodels.StatusInProgress, nil)
		report, err := s.sweeper.RunImmunizeSweep(s.ctx)
		s.Require().NoError(err)
		s.Zero(report.Scanned)
	})
}

// =============================================================================
// Booster Unlock Sweep
// =============================================================================

func (s *SweeperSuite) TestRunBoosterUnlockSweep() {
	s.Run("immunized dossiers past the unlock date move and notify", func() {
		d := s.seed(dossiermodels.StatusImmunized, durationPtr(-time.Hour))
		d.SelfPay = true
		s.Require().NoError(s.store.Persist(s.ctx, d))
		s.notifier.EXPECT().BoosterUnlocked(gomock.Any(), gomock.Any()).Return(nil)

		report, err := s.sweeper.RunBoosterUnlockSweep(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, report.Scanned)
		s.Equal(1, report.Moved)

		got, err := s.store.Load(s.ctx, d.RegistrantID, d.Disease)
		s.Require().NoError(err)
		s.Equal(dossiermodels.StatusBoosterUnlocked, got.Status)
		s.False(got.SelfPay)
	})

	s.Run("dossiers before the unlock date are not scanned", func() {
		s.seed(dossiermodels.StatusImmunized, durationPtr(48*time.Hour))
		report, err := s.sweeper.RunBoosterUnlockSweep(s.ctx)
		s.Require().NoError(err)
		s.Zero(report.Scanned)
	})

	s.Run("notification failure does not undo the move", func() {
		d := s.seed(dossiermodels.StatusImmunized, durationPtr(-time.Hour))
		s.notifier.EXPECT().BoosterUnlocked(gomock.Any(), gomock.Any()).
			Return(context.DeadlineExceeded)

		report, err := s.sweeper.RunBoosterUnlockSweep(s.ctx)
		s.Require().NoError(err)
		s.Equal(1, report.Moved)

		got, err := s.store.Load(s.ctx, d.RegistrantID, d.Disease)
		s.Require().NoError(err)
		s.Equal(dossiermodels.StatusBoosterUnlocked, got.Status)
	})

	s.Run("deceased dossiers are skipped", func() {
		d := s.seed(dossiermodels.StatusImmunized, durationPtr(-time.Hour))
		d.Deceased = true
		s.Require().NoError(s.store.Persist(s.ctx, d))

		report, err := s.sweeper.RunBoosterUnlockSweep(s.ctx)
		s.Require().NoError(err)
		s.Zero(report.Scanned)
	})
}
