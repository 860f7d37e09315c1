// Package store persists vaccination dossiers. The aggregate is written as a
// row plus a JSONB document for events and declarations; the engine always
// loads and stores whole dossiers, never individual events.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"immuna/internal/dossier/models"
	"immuna/internal/recalc/ports"
	id "immuna/pkg/domain"
	"immuna/pkg/platform/sentinel"
)

// PostgresStore persists dossiers in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var _ ports.DossierStore = (*PostgresStore)(nil)

// Schema is the DDL for the dossier table.
const Schema = `
CREATE TABLE IF NOT EXISTS dossiers (
	id                 UUID PRIMARY KEY,
	registrant_id      UUID        NOT NULL,
	disease_id         TEXT        NOT NULL,
	status             TEXT        NOT NULL,
	completion_reason  TEXT        NOT NULL DEFAULT '',
	completed_at       TIMESTAMPTZ,
	protection         JSONB,
	events             JSONB       NOT NULL DEFAULT '[]',
	external_cert      JSONB,
	desired_site       TEXT        NOT NULL DEFAULT '',
	self_pay           BOOLEAN     NOT NULL DEFAULT FALSE,
	deceased           BOOLEAN     NOT NULL DEFAULT FALSE,
	intake_channel     TEXT        NOT NULL DEFAULT '',
	certificate_id     UUID,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (registrant_id, disease_id)
);
CREATE INDEX IF NOT EXISTS dossiers_status_idx ON dossiers (status);
`

const selectColumns = `id, registrant_id, disease_id, status, completion_reason,
	completed_at, protection, events, external_cert, desired_site, self_pay,
	deceased, intake_channel, certificate_id, created_at, updated_at`

func (s *PostgresStore) Load(ctx context.Context, registrant id.RegistrantID, disease id.DiseaseID) (*models.VaccinationDossier, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM dossiers WHERE registrant_id = $1 AND disease_id = $2`,
		registrant.String(), disease.String(),
	)
	d, err := scanDossier(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load dossier: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) Persist(ctx context.Context, d *models.VaccinationDossier) error {
	events, err := json.Marshal(d.Events)
	if err != nil {
		return fmt.Errorf("encode events: %w", err)
	}
	var protection, external []byte
	if d.Protection != nil {
		if protection, err = json.Marshal(d.Protection); err != nil {
			return fmt.Errorf("encode protection: %w", err)
		}
	}
	if d.External != nil {
		if external, err = json.Marshal(d.External); err != nil {
			return fmt.Errorf("encode external certificate: %w", err)
		}
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO dossiers (id, registrant_id, disease_id, status, completion_reason,
			completed_at, protection, events, external_cert, desired_site, self_pay,
			deceased, intake_channel, certificate_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now())
		ON CONFLICT (registrant_id, disease_id) DO UPDATE SET
			status = EXCLUDED.status,
			completion_reason = EXCLUDED.completion_reason,
			completed_at = EXCLUDED.completed_at,
			protection = EXCLUDED.protection,
			events = EXCLUDED.events,
			external_cert = EXCLUDED.external_cert,
			desired_site = EXCLUDED.desired_site,
			self_pay = EXCLUDED.self_pay,
			deceased = EXCLUDED.deceased,
			intake_channel = EXCLUDED.intake_channel,
			certificate_id = EXCLUDED.certificate_id,
			updated_at = now()`,
		d.ID.String(), d.RegistrantID.String(), d.Disease.String(), string(d.Status),
		string(d.CompletionReason), d.CompletedAt, protection, events, external,
		d.Booking.DesiredSite, d.SelfPay, d.Deceased, string(d.IntakeChannel),
		certificateIDParam(d.CertificateID),
	)
	if err != nil {
		return fmt.Errorf("persist dossier: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAwaitingImmunization(ctx context.Context, limit int) ([]*models.VaccinationDossier, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+selectColumns+` FROM dossiers
		WHERE status IN ($1, $2, $3) AND protection IS NOT NULL AND NOT deceased
		ORDER BY updated_at
		LIMIT $4`,
		string(models.StatusCompletedFullCourse),
		string(models.StatusCompletedWithoutSecondDose),
		string(models.StatusCompletedViaRecovery),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list awaiting immunization: %w", err)
	}
	defer rows.Close()
	return scanDossiers(rows)
}

func (s *PostgresStore) ListAwaitingBoosterUnlock(ctx context.Context, limit int) ([]*models.VaccinationDossier, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+selectColumns+` FROM dossiers
		WHERE status = $1 AND NOT deceased
		  AND (protection ->> 'NextDoseUnlockedFrom') IS NOT NULL
		  AND (protection ->> 'NextDoseUnlockedFrom')::timestamptz <= now()
		ORDER BY updated_at
		LIMIT $2`,
		string(models.StatusImmunized),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list awaiting booster unlock: %w", err)
	}
	defer rows.Close()
	return scanDossiers(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDossier(row rowScanner) (*models.VaccinationDossier, error) {
	var (
		d             models.VaccinationDossier
		registrantRaw string
		diseaseRaw    string
		statusRaw     string
		reasonRaw     string
		channelRaw    string
		protection    []byte
		events        []byte
		external      []byte
		certRaw       *string
	)
	err := row.Scan(&d.ID, &registrantRaw, &diseaseRaw, &statusRaw, &reasonRaw,
		&d.CompletedAt, &protection, &events, &external, &d.Booking.DesiredSite,
		&d.SelfPay, &d.Deceased, &channelRaw, &certRaw, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}

	registrant, err := id.ParseRegistrantID(registrantRaw)
	if err != nil {
		return nil, err
	}
	d.RegistrantID = registrant
	d.Disease = id.DiseaseID(diseaseRaw)
	d.Status = models.Status(statusRaw)
	d.CompletionReason = models.CompletionReason(reasonRaw)
	d.IntakeChannel = models.IntakeChannel(channelRaw)

	if len(events) > 0 {
		if err := json.Unmarshal(events, &d.Events); err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}
	}
	if len(protection) > 0 {
		d.Protection = &models.ProtectionRecord{}
		if err := json.Unmarshal(protection, d.Protection); err != nil {
			return nil, fmt.Errorf("decode protection: %w", err)
		}
	}
	if len(external) > 0 {
		d.External = &models.ExternalCertificate{}
		if err := json.Unmarshal(external, d.External); err != nil {
			return nil, fmt.Errorf("decode external certificate: %w", err)
		}
	}
	if certRaw != nil {
		cert, err := id.ParseCertificateID(*certRaw)
		if err != nil {
			return nil, err
		}
		d.CertificateID = &cert
	}
	return &d, nil
}

func scanDossiers(rows pgx.Rows) ([]*models.VaccinationDossier, error) {
	var out []*models.VaccinationDossier
	for rows.Next() {
		d, err := scanDossier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func certificateIDParam(cert *id.CertificateID) any {
	if cert == nil {
		return nil
	}
	return cert.String()
}
