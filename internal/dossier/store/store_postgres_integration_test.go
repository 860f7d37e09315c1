//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"immuna/internal/dossier/models"
	"immuna/internal/dossier/store"
	id "immuna/pkg/domain"
	"immuna/pkg/platform/sentinel"
	"immuna/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.Require().NoError(s.postgres.Migrate(context.Background(), store.Schema))
	s.store = store.NewPostgres(s.postgres.Pool)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "dossiers"))
}

func (s *PostgresStoreSuite) dossier(status models.Status) *models.VaccinationDossier {
	now := time.Now().UTC().Truncate(time.Second)
	testAt := now.AddDate(0, -5, 0)
	cert := id.CertificateID(uuid.New())
	return &models.VaccinationDossier{
		ID:               id.DossierID(uuid.New()),
		RegistrantID:     id.RegistrantID(uuid.New()),
		Disease:          "covid-19",
		Status:           status,
		CompletionReason: models.CompletionFullCourse,
		Events: []models.VaccinationEvent{{
			ID:                 id.EventID(uuid.New()),
			AdministeredAt:     now.AddDate(0, -4, 0),
			Product:            "comirnaty",
			Role:               models.DoseFirst,
			CountsTowardCourse: true,
		}},
		External: &models.ExternalCertificate{
			Product:     "comirnaty",
			DoseCount:   1,
			Recovered:   true,
			RecoveredAt: &testAt,
		},
		Booking:       models.Booking{DesiredSite: "center-3"},
		IntakeChannel: models.IntakeHotline,
		CertificateID: &cert,
	}
}

func (s *PostgresStoreSuite) withProtection(d *models.VaccinationDossier, unlockIn time.Duration) *models.VaccinationDossier {
	now := time.Now().UTC().Truncate(time.Second)
	unlock := now.Add(unlockIn)
	valid := now.AddDate(0, 3, 0)
	d.Protection = &models.ProtectionRecord{
		GrantedAt:            now.AddDate(0, -3, 0),
		ValidUntil:           &valid,
		NextDoseUnlockedFrom: &unlock,
		AllowedNextProducts:  []id.ProductID{"comirnaty", "spikevax"},
		Reason:               models.CompletionFullCourse,
	}
	return d
}

func (s *PostgresStoreSuite) TestPersistAndLoad() {
	ctx := context.Background()
	d := s.withProtection(s.dossier(models.StatusImmunized), time.Hour)
	s.Require().NoError(s.store.Persist(ctx, d))

	got, err := s.store.Load(ctx, d.RegistrantID, d.Disease)
	s.Require().NoError(err)
	s.Equal(d.Status, got.Status)
	s.Equal(d.CompletionReason, got.CompletionReason)
	s.Require().Len(got.Events, 1)
	s.Equal(d.Events[0].ID, got.Events[0].ID)
	s.Equal(d.Events[0].Product, got.Events[0].Product)
	s.Require().NotNil(got.Protection)
	s.True(got.Protection.Equal(d.Protection))
	s.Require().NotNil(got.External)
	s.True(got.External.Recovered)
	s.Equal("center-3", got.Booking.DesiredSite)
	s.Require().NotNil(got.CertificateID)
	s.Equal(*d.CertificateID, *got.CertificateID)
}

func (s *PostgresStoreSuite) TestLoadMissing() {
	_, err := s.store.Load(context.Background(), id.RegistrantID(uuid.New()), "covid-19")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestPersistIsUpsert() {
	ctx := context.Background()
	d := s.dossier(models.StatusInProgress)
	s.Require().NoError(s.store.Persist(ctx, d))

	d.Status = models.StatusCompletedFullCourse
	d.CertificateID = nil
	s.Require().NoError(s.store.Persist(ctx, d))

	got, err := s.store.Load(ctx, d.RegistrantID, d.Disease)
	s.Require().NoError(err)
	s.Equal(models.StatusCompletedFullCourse, got.Status)
	s.Nil(got.CertificateID)
}

func (s *PostgresStoreSuite) TestListAwaitingImmunization() {
	ctx := context.Background()
	match := s.withProtection(s.dossier(models.StatusCompletedFullCourse), time.Hour)
	s.Require().NoError(s.store.Persist(ctx, match))
	// No protection record: not eligible.
	s.Require().NoError(s.store.Persist(ctx, s.dossier(models.StatusCompletedViaRecovery)))
	// Already immunized: not eligible.
	s.Require().NoError(s.store.Persist(ctx, s.withProtection(s.dossier(models.StatusImmunized), time.Hour)))
	// Deceased: excluded.
	dead := s.withProtection(s.dossier(models.StatusCompletedFullCourse), time.Hour)
	dead.Deceased = true
	s.Require().NoError(s.store.Persist(ctx, dead))

	got, err := s.store.ListAwaitingImmunization(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(match.RegistrantID, got[0].RegistrantID)
}

func (s *PostgresStoreSuite) TestListAwaitingBoosterUnlock() {
	ctx := context.Background()
	due := s.withProtection(s.dossier(models.StatusImmunized), -time.Hour)
	s.Require().NoError(s.store.Persist(ctx, due))
	// Unlock still ahead: not eligible.
	s.Require().NoError(s.store.Persist(ctx, s.withProtection(s.dossier(models.StatusImmunized), 48*time.Hour)))
	// Wrong status: not eligible.
	s.Require().NoError(s.store.Persist(ctx, s.withProtection(s.dossier(models.StatusBoosterUnlocked), -time.Hour)))

	got, err := s.store.ListAwaitingBoosterUnlock(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(due.RegistrantID, got[0].RegistrantID)
}
