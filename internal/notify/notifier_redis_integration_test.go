//go:build integration

package notify_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	dossiermodels "immuna/internal/dossier/models"
	"immuna/internal/notify"
	"immuna/internal/recalc/ports"
	id "immuna/pkg/domain"
	"immuna/pkg/testutil/containers"
)

// countingNotifier counts deliveries behind the deduper.
type countingNotifier struct {
	mu    sync.Mutex
	count int
}

func (n *countingNotifier) BoosterUnlocked(context.Context, *dossiermodels.VaccinationDossier) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.count++
	return nil
}

func (n *countingNotifier) delivered() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.count
}

var _ ports.Notifier = (*countingNotifier)(nil)

type DeduperSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	next  *countingNotifier
	dedup *notify.Deduper
}

func TestDeduperSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(DeduperSuite))
}

func (s *DeduperSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *DeduperSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	s.next = &countingNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.dedup = notify.NewDeduper(s.next, s.redis.Client, logger)
}

func (s *DeduperSuite) dossier(unlock time.Time) *dossiermodels.VaccinationDossier {
	return &dossiermodels.VaccinationDossier{
		RegistrantID: id.RegistrantID(uuid.New()),
		Disease:      "covid-19",
		Status:       dossiermodels.StatusBoosterUnlocked,
		Protection: &dossiermodels.ProtectionRecord{
			NextDoseUnlockedFrom: &unlock,
		},
	}
}

func (s *DeduperSuite) TestSuppressesRepeatDeliveries() {
	ctx := context.Background()
	d := s.dossier(time.Now().UTC())

	// At-least-once reprocessing delivers the same unlock repeatedly; only
	// the first reaches the gateway.
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.dedup.BoosterUnlocked(ctx, d))
	}
	s.Equal(1, s.next.delivered())
}

func (s *DeduperSuite) TestDistinctUnlocksDeliverSeparately() {
	ctx := context.Background()
	d := s.dossier(time.Now().UTC())

	s.Require().NoError(s.dedup.BoosterUnlocked(ctx, d))

	// A later booster cycle carries a new unlock date and must notify again.
	later := time.Now().UTC().AddDate(0, 6, 0)
	d.Protection.NextDoseUnlockedFrom = &later
	s.Require().NoError(s.dedup.BoosterUnlocked(ctx, d))

	s.Equal(2, s.next.delivered())
}

func (s *DeduperSuite) TestDifferentRegistrantsDoNotCollide() {
	ctx := context.Background()
	unlock := time.Now().UTC()

	s.Require().NoError(s.dedup.BoosterUnlocked(ctx, s.dossier(unlock)))
	s.Require().NoError(s.dedup.BoosterUnlocked(ctx, s.dossier(unlock)))

	s.Equal(2, s.next.delivered())
}
