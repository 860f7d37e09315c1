package service

//go:generate mockgen -source=../ports/ports.go -destination=../ports/mocks/mocks.go -package=mocks DossierStore,RecalcQueue,Notifier,CertificateService

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"immuna/internal/certimpact"
	dossiermodels "immuna/internal/dossier/models"
	"immuna/internal/dossier/rules"
	dossierstore "immuna/internal/dossier/store"
	"immuna/internal/recalc/models"
	"immuna/internal/recalc/ports/mocks"
	"immuna/internal/recalc/queue"
	id "immuna/pkg/domain"
	dErrors "immuna/pkg/domain-errors"
	"immuna/pkg/requestcontext"
)

// =============================================================================
// Recalculation Service Test Suite
// =============================================================================
// Justification for unit tests: the service is where evaluator, state machine
// and decider meet the external collaborators. Tests verify the processing
// contract the runner relies on and that certificate I/O strictly follows the
// classification.

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	store     *dossierstore.InMemoryStore
	queue     *queue.InMemoryQueue
	notifier  *mocks.MockNotifier
	certs     *mocks.MockCertificateService
	service   *Service
	now       time.Time
	ctx       context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = dossierstore.NewInMemory()
	s.queue = queue.NewInMemory(0)
	s.notifier = mocks.NewMockNotifier(s.ctrl)
	s.certs = mocks.NewMockCertificateService(s.ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var err error
	s.service, err = New(s.store, s.queue, rules.Default(),
		WithLogger(logger),
		WithNotifier(s.notifier),
		WithCertificateService(s.certs),
	)
	s.Require().NoError(err)

	s.now = time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) seed(d *dossiermodels.VaccinationDossier) *dossiermodels.VaccinationDossier {
	s.Require().NoError(s.store.Persist(s.ctx, d))
	return d
}

func (s *ServiceSuite) item(d *dossiermodels.VaccinationDossier) *models.QueueItem {
	return &models.QueueItem{
		ID:           uuid.New(),
		RegistrantID: d.RegistrantID,
		Disease:      d.Disease,
	}
}

func seededEvent(product id.ProductID, role dossiermodels.DoseRole, at time.Time) dossiermodels.VaccinationEvent {
	return dossiermodels.VaccinationEvent{
		ID:                 id.EventID(uuid.New()),
		AdministeredAt:     at,
		Product:            product,
		Role:               role,
		CountsTowardCourse: true,
	}
}

func newDossier(status dossiermodels.Status, events ...dossiermodels.VaccinationEvent) *dossiermodels.VaccinationDossier {
	return &dossiermodels.VaccinationDossier{
		ID:           id.DossierID(uuid.New()),
		RegistrantID: id.RegistrantID(uuid.New()),
		Disease:      "covid-19",
		Status:       status,
		Events:       events,
	}
}

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *ServiceSuite) TestNew() {
	s.Run("nil dossier store returns error", func() {
		_, err := New(nil, s.queue, rules.Default())
		s.Error(err)
		s.Contains(err.Error(), "dossier store is required")
	})

	s.Run("nil queue returns error", func() {
		_, err := New(s.store, nil, rules.Default())
		s.Error(err)
		s.Contains(err.Error(), "recalc queue is required")
	})

	s.Run("nil registry returns error", func() {
		_, err := New(s.store, s.queue, nil)
		s.Error(err)
		s.Contains(err.Error(), "rules registry is required")
	})
}

// =============================================================================
// ProcessItem
// =============================================================================

func (s *ServiceSuite) TestProcessItem() {
	s.Run("completing history advances the dossier to immunized", func() {
		d := s.seed(newDossier(dossiermodels.StatusInProgress,
			seededEvent("comirnaty", dossiermodels.DoseFirst, s.now.AddDate(0, -4, 0)),
			seededEvent("comirnaty", dossiermodels.DoseSecond, s.now.AddDate(0, -3, 0)),
		))

		s.Require().NoError(s.service.ProcessItem(s.ctx, s.item(d)))

		got, err := s.store.Load(s.ctx, d.RegistrantID, d.Disease)
		s.Require().NoError(err)
		s.Equal(dossiermodels.StatusImmunized, got.Status)
		s.Equal(dossiermodels.CompletionFullCourse, got.CompletionReason)
		s.Require().NotNil(got.Protection)
	})

	s.Run("passed booster interval unlocks and notifies once", func() {
		d := s.seed(newDossier(dossiermodels.StatusInProgress,
			seededEvent("comirnaty", dossiermodels.DoseFirst, s.now.AddDate(-1, 0, 0)),
			seededEvent("comirnaty", dossiermodels.DoseSecond, s.now.AddDate(0, -11, 0)),
		))
		s.notifier.EXPECT().BoosterUnlocked(gomock.Any(), gomock.Any()).Return(nil).Times(1)

		item := s.item(d)
		s.Require().NoError(s.service.ProcessItem(s.ctx, item))

		got, err := s.store.Load(s.ctx, d.RegistrantID, d.Disease)
		s.Require().NoError(err)
		s.Equal(dossiermodels.StatusBoosterUnlocked, got.Status)

		// Reprocessing the same item is a clean no-op under at-least-once
		// delivery: no second notification.
		s.Require().NoError(s.service.ProcessItem(s.ctx, item))
	})

	s.Run("notification failure never fails the item", func() {
		d := s.seed(newDossier(dossiermodels.StatusInProgress,
			seededEvent("comirnaty", dossiermodels.DoseFirst, s.now.AddDate(-1, 0, 0)),
			seededEvent("comirnaty", dossiermodels.DoseSecond, s.now.AddDate(0, -11, 0)),
		))
		s.notifier.EXPECT().BoosterUnlocked(gomock.Any(), gomock.Any()).
			Return(dErrors.New(dErrors.CodeUnavailable, "gateway down"))

		s.NoError(s.service.ProcessItem(s.ctx, s.item(d)))
	})

	s.Run("missing dossier is a terminal failure", func() {
		item := &models.QueueItem{
			ID:           uuid.New(),
			RegistrantID: id.RegistrantID(uuid.New()),
			Disease:      "covid-19",
		}
		err := s.service.ProcessItem(s.ctx, item)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.False(Retryable(err))
	})

	s.Run("ambiguous history is a retryable failure", func() {
		d := s.seed(newDossier(dossiermodels.StatusInProgress,
			seededEvent("comirnaty", dossiermodels.DoseFirst, s.now.AddDate(0, -4, 0)),
			seededEvent("comirnaty", dossiermodels.DoseFirst, s.now.AddDate(0, -3, 0)),
		))
		err := s.service.ProcessItem(s.ctx, s.item(d))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidHistory))
		s.True(Retryable(err))
	})
}

// =============================================================================
// Date and Product Corrections
// =============================================================================

func (s *ServiceSuite) TestCorrectEventDate() {
	s.Run("reissue decision issues a fresh certificate and enqueues", func() {
		booster := seededEvent("comirnaty", dossiermodels.DoseBooster, s.now.AddDate(0, -1, 0))
		d := newDossier(dossiermodels.StatusImmunized,
			seededEvent("comirnaty", dossiermodels.DoseFirst, s.now.AddDate(-1, 0, 0)),
			seededEvent("comirnaty", dossiermodels.DoseSecond, s.now.AddDate(0, -11, 0)),
			booster,
		)
		d.CompletionReason = dossiermodels.CompletionFullCourse
		old := id.CertificateID(uuid.New())
		d.CertificateID = &old
		s.seed(d)

		fresh := id.CertificateID(uuid.New())
		s.certs.EXPECT().Issue(gomock.Any(), gomock.Any()).Return(fresh, nil)

		decision, err := s.service.CorrectEventDate(s.ctx, d.RegistrantID, d.Disease,
			booster.ID, booster.AdministeredAt.AddDate(0, 0, -3))
		s.Require().NoError(err)
		s.Equal(certimpact.DecisionReissue, decision)

		got, err := s.store.Load(s.ctx, d.RegistrantID, d.Disease)
		s.Require().NoError(err)
		s.Require().NotNil(got.CertificateID)
		s.Equal(fresh, *got.CertificateID)

		items, err := s.queue.ClaimBatch(s.ctx, 10)
		s.Require().NoError(err)
		s.Require().Len(items, 1)
		s.Equal(d.RegistrantID, items[0].RegistrantID)
	})

	s.Run("ordering flip revokes the certificate", func() {
		testAt := s.now.AddDate(0, -4, 0)
		dose := seededEvent("comirnaty", dossiermodels.DoseFirst, s.now.AddDate(0, -3, 0))
		d := newDossier(dossiermodels.StatusImmunized, dose)
		d.CompletionReason = dossiermodels.CompletionRecoveryPlusDose
		d.External = &dossiermodels.ExternalCertificate{Recovered: true, RecoveredAt: &testAt}
		old := id.CertificateID(uuid.New())
		d.CertificateID = &old
		s.seed(d)

		s.certs.EXPECT().Revoke(gomock.Any(), old).Return(nil)

		// Corrected date moves the dose before the positive test.
		decision, err := s.service.CorrectEventDate(s.ctx, d.RegistrantID, d.Disease,
			dose.ID, testAt.AddDate(0, -1, 0))
		s.Require().NoError(err)
		s.Equal(certimpact.DecisionRevoke, decision)

		got, err := s.store.Load(s.ctx, d.RegistrantID, d.Disease)
		s.Require().NoError(err)
		s.Nil(got.CertificateID, "revoked certificate is detached from the dossier")
	})

	s.Run("superseded first dose means no certificate traffic", func() {
		first := seededEvent("comirnaty", dossiermodels.DoseFirst, s.now.AddDate(0, -4, 0))
		d := newDossier(dossiermodels.StatusImmunized,
			first,
			seededEvent("comirnaty", dossiermodels.DoseSecond, s.now.AddDate(0, -3, 0)),
		)
		d.CompletionReason = dossiermodels.CompletionFullCourse
		s.seed(d)

		decision, err := s.service.CorrectEventDate(s.ctx, d.RegistrantID, d.Disease,
			first.ID, first.AdministeredAt.AddDate(0, 0, 2))
		s.Require().NoError(err)
		s.Equal(certimpact.DecisionNone, decision)

		got, err := s.store.Load(s.ctx, d.RegistrantID, d.Disease)
		s.Require().NoError(err)
		s.Equal(first.AdministeredAt.AddDate(0, 0, 2), got.EventByID(first.ID).AdministeredAt,
			"the correction itself is persisted")
	})

	s.Run("correction yielding an ambiguous history is rejected", func() {
		first := seededEvent("comirnaty", dossiermodels.DoseFirst, s.now.AddDate(0, -4, 0))
		second := seededEvent("comirnaty", dossiermodels.DoseSecond, s.now.AddDate(0, -3, 0))
		second.Role = dossiermodels.DoseFirst
		second.AdministeredAt = first.AdministeredAt
		d := newDossier(dossiermodels.StatusInProgress, first, second)
		s.seed(d)

		// Moving the duplicate first dose creates two first doses with
		// different dates.
		_, err := s.service.CorrectEventDate(s.ctx, d.RegistrantID, d.Disease,
			second.ID, first.AdministeredAt.AddDate(0, 0, 7))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidHistory))

		got, err := s.store.Load(s.ctx, d.RegistrantID, d.Disease)
		s.Require().NoError(err)
		s.Equal(first.AdministeredAt, got.EventByID(second.ID).AdministeredAt,
			"rejected correction is not persisted")
	})

	s.Run("unknown event is rejected", func() {
		d := s.seed(newDossier(dossiermodels.StatusInProgress))
		_, err := s.service.CorrectEventDate(s.ctx, d.RegistrantID, d.Disease,
			id.EventID(uuid.New()), s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestCorrectEventProduct() {
	s.Run("raising the course length flags manual review without certificate traffic", func() {
		dose := seededEvent("jcovden", dossiermodels.DoseFirst, s.now.AddDate(0, -3, 0))
		d := newDossier(dossiermodels.StatusImmunized, dose)
		d.CompletionReason = dossiermodels.CompletionWithoutSecondDose
		old := id.CertificateID(uuid.New())
		d.CertificateID = &old
		s.seed(d)

		decision, err := s.service.CorrectEventProduct(s.ctx, d.RegistrantID, d.Disease,
			dose.ID, "comirnaty")
		s.Require().NoError(err)
		s.Equal(certimpact.DecisionRequiresManualReview, decision)

		got, err := s.store.Load(s.ctx, d.RegistrantID, d.Disease)
		s.Require().NoError(err)
		s.Require().NotNil(got.CertificateID)
		s.Equal(old, *got.CertificateID, "certificate untouched pending review")
	})

	s.Run("identical product is a persisted no-op", func() {
		dose := seededEvent("comirnaty", dossiermodels.DoseBooster, s.now.AddDate(0, -1, 0))
		d := newDossier(dossiermodels.StatusImmunized,
			seededEvent("comirnaty", dossiermodels.DoseFirst, s.now.AddDate(-1, 0, 0)),
			seededEvent("comirnaty", dossiermodels.DoseSecond, s.now.AddDate(0, -11, 0)),
			dose,
		)
		d.CompletionReason = dossiermodels.CompletionFullCourse
		s.seed(d)

		decision, err := s.service.CorrectEventProduct(s.ctx, d.RegistrantID, d.Disease,
			dose.ID, "comirnaty")
		s.Require().NoError(err)
		s.Equal(certimpact.DecisionNone, decision)
	})
}

// =============================================================================
// Personal-Data Corrections
// =============================================================================

func (s *ServiceSuite) TestCorrectPersonalData() {
	s.Run("date of birth change reissues", func() {
		d := newDossier(dossiermodels.StatusImmunized,
			seededEvent("comirnaty", dossiermodels.DoseFirst, s.now.AddDate(0, -4, 0)),
			seededEvent("comirnaty", dossiermodels.DoseSecond, s.now.AddDate(0, -3, 0)),
		)
		d.CompletionReason = dossiermodels.CompletionFullCourse
		d.IntakeChannel = dossiermodels.IntakeOnSite
		s.seed(d)

		fresh := id.CertificateID(uuid.New())
		s.certs.EXPECT().Issue(gomock.Any(), gomock.Any()).Return(fresh, nil)

		decision, err := s.service.CorrectPersonalData(s.ctx, d.RegistrantID, d.Disease,
			certimpact.PersonalCorrection{DateOfBirthChanged: true})
		s.Require().NoError(err)
		s.Equal(certimpact.DecisionReissue, decision)
	})

	s.Run("address change on a self-service dossier is irrelevant", func() {
		d := newDossier(dossiermodels.StatusImmunized)
		d.IntakeChannel = dossiermodels.IntakeSelfServiceOnline
		s.seed(d)

		decision, err := s.service.CorrectPersonalData(s.ctx, d.RegistrantID, d.Disease,
			certimpact.PersonalCorrection{AddressChanged: true})
		s.Require().NoError(err)
		s.Equal(certimpact.DecisionNone, decision)
	})
}
