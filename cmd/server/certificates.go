package main

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	dossiermodels "immuna/internal/dossier/models"
	"immuna/internal/recalc/ports"
	id "immuna/pkg/domain"
)

// logCertificateService stands in for the document rendering service. It
// mints certificate IDs and logs the lifecycle calls; PDF/FHIR rendering is
// a separate system invoked over its own transport in production.
type logCertificateService struct {
	logger *slog.Logger
}

var _ ports.CertificateService = (*logCertificateService)(nil)

func (s *logCertificateService) Issue(ctx context.Context, d *dossiermodels.VaccinationDossier) (id.CertificateID, error) {
	cert := id.CertificateID(uuid.New())
	s.logger.InfoContext(ctx, "certificate issued",
		"certificate_id", cert, "registrant_id", d.RegistrantID, "disease", d.Disease)
	return cert, nil
}

func (s *logCertificateService) Revoke(ctx context.Context, certificate id.CertificateID) error {
	s.logger.InfoContext(ctx, "certificate revoked", "certificate_id", certificate)
	return nil
}
