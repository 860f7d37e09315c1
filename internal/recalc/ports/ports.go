// Package ports defines the interfaces between the recalculation engine and
// its out-of-scope collaborators: storage, queue, notification delivery and
// the certificate lifecycle service.
package ports

import (
	"context"
	"time"

	dossiermodels "immuna/internal/dossier/models"
	"immuna/internal/recalc/models"
	id "immuna/pkg/domain"
)

// DossierStore loads and persists vaccination dossiers.
type DossierStore interface {
	// Load returns the dossier for a registrant and disease, or a not-found
	// sentinel when none exists.
	Load(ctx context.Context, registrant id.RegistrantID, disease id.DiseaseID) (*dossiermodels.VaccinationDossier, error)

	// Persist writes the dossier back. Implementations provide row-level
	// isolation; the engine never locks beyond claim semantics.
	Persist(ctx context.Context, d *dossiermodels.VaccinationDossier) error

	// ListAwaitingImmunization returns dossiers in the completed family that
	// carry a protection record but are not yet immunized.
	ListAwaitingImmunization(ctx context.Context, limit int) ([]*dossiermodels.VaccinationDossier, error)

	// ListAwaitingBoosterUnlock returns immunized dossiers whose next dose
	// unlock date has passed.
	ListAwaitingBoosterUnlock(ctx context.Context, limit int) ([]*dossiermodels.VaccinationDossier, error)
}

// RecalcQueue is the durable at-least-once work queue.
type RecalcQueue interface {
	// Enqueue records that a registrant needs recalculation for a disease.
	// Enqueueing an already-pending pair is a no-op.
	Enqueue(ctx context.Context, registrant id.RegistrantID, disease id.DiseaseID) error

	// ClaimBatch atomically claims up to limit pending items. Each item is
	// returned to exactly one claimant within a processing run.
	ClaimBatch(ctx context.Context, limit int) ([]*models.QueueItem, error)

	// MarkSuccess finishes an item.
	MarkSuccess(ctx context.Context, item *models.QueueItem) error

	// MarkFailed records a failure. Retryable failures return the item to
	// pending until the retry ceiling converts it to a terminal failure;
	// non-retryable failures are terminal immediately.
	MarkFailed(ctx context.Context, item *models.QueueItem, reason string, retryable bool) error

	// ReclaimStale returns processing items untouched for longer than
	// olderThan to pending and reports how many were reclaimed. A claimant
	// that died between claim and mark leaves such items behind; reclaiming
	// may reprocess an item still in flight, which at-least-once delivery
	// tolerates.
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// Notifier delivers outbound registrant notifications. Failures are logged
// by callers and never roll back a status transition.
type Notifier interface {
	BoosterUnlocked(ctx context.Context, d *dossiermodels.VaccinationDossier) error
}

// CertificateService is the certificate lifecycle collaborator. It is driven
// by the correction service from impact classifications; the decider itself
// never performs I/O.
type CertificateService interface {
	Issue(ctx context.Context, d *dossiermodels.VaccinationDossier) (id.CertificateID, error)
	Revoke(ctx context.Context, certificate id.CertificateID) error
}
