package store

import (
	"context"
	"sync"

	"immuna/internal/dossier/models"
	"immuna/internal/recalc/ports"
	id "immuna/pkg/domain"
	"immuna/pkg/platform/sentinel"
	"immuna/pkg/requestcontext"
)

type dossierKey struct {
	registrant id.RegistrantID
	disease    id.DiseaseID
}

// InMemoryStore keeps dossiers in a map. Used in tests and as the zero-infra
// development fallback; copies on the way in and out so callers never share
// state with the store.
type InMemoryStore struct {
	mu       sync.RWMutex
	dossiers map[dossierKey]*models.VaccinationDossier
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{dossiers: make(map[dossierKey]*models.VaccinationDossier)}
}

var _ ports.DossierStore = (*InMemoryStore)(nil)

func (s *InMemoryStore) Load(_ context.Context, registrant id.RegistrantID, disease id.DiseaseID) (*models.VaccinationDossier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dossiers[dossierKey{registrant, disease}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyDossier(d), nil
}

func (s *InMemoryStore) Persist(ctx context.Context, d *models.VaccinationDossier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := copyDossier(d)
	stored.UpdatedAt = requestcontext.Now(ctx)
	s.dossiers[dossierKey{d.RegistrantID, d.Disease}] = stored
	return nil
}

func (s *InMemoryStore) ListAwaitingImmunization(_ context.Context, limit int) ([]*models.VaccinationDossier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.VaccinationDossier
	for _, d := range s.dossiers {
		if len(out) >= limit {
			break
		}
		if d.Status.Completed() && d.Protection != nil && !d.Deceased {
			out = append(out, copyDossier(d))
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListAwaitingBoosterUnlock(ctx context.Context, limit int) ([]*models.VaccinationDossier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := requestcontext.Now(ctx)
	var out []*models.VaccinationDossier
	for _, d := range s.dossiers {
		if len(out) >= limit {
			break
		}
		if d.Status != models.StatusImmunized || d.Deceased {
			continue
		}
		if d.Protection == nil || d.Protection.NextDoseUnlockedFrom == nil {
			continue
		}
		if !now.Before(*d.Protection.NextDoseUnlockedFrom) {
			out = append(out, copyDossier(d))
		}
	}
	return out, nil
}

func copyDossier(d *models.VaccinationDossier) *models.VaccinationDossier {
	c := *d
	c.Events = append([]models.VaccinationEvent(nil), d.Events...)
	if d.External != nil {
		ext := *d.External
		c.External = &ext
	}
	if d.Protection != nil {
		rec := *d.Protection
		rec.AllowedNextProducts = append([]id.ProductID(nil), d.Protection.AllowedNextProducts...)
		c.Protection = &rec
	}
	if d.CompletedAt != nil {
		t := *d.CompletedAt
		c.CompletedAt = &t
	}
	if d.CertificateID != nil {
		cid := *d.CertificateID
		c.CertificateID = &cid
	}
	return &c
}
