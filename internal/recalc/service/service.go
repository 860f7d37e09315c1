// Package service drives recalculation: per-item processing for the batch
// runner and the synchronous correction flows that need an immediate
// certificate impact answer.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"immuna/internal/certimpact"
	"immuna/internal/dossier/lifecycle"
	dossiermodels "immuna/internal/dossier/models"
	"immuna/internal/dossier/rules"
	"immuna/internal/protection"
	"immuna/internal/recalc/metrics"
	"immuna/internal/recalc/models"
	"immuna/internal/recalc/ports"
	id "immuna/pkg/domain"
	dErrors "immuna/pkg/domain-errors"
	"immuna/pkg/platform/sentinel"
	"immuna/pkg/requestcontext"
)

// Service coordinates evaluator, state machine and decider around the
// external collaborators.
type Service struct {
	dossiers ports.DossierStore
	queue    ports.RecalcQueue
	rules    *rules.Registry

	notifier     ports.Notifier
	certificates ports.CertificateService

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures optional collaborators.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithNotifier(n ports.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithCertificateService(c ports.CertificateService) Option {
	return func(s *Service) { s.certificates = c }
}

// New constructs the recalculation service.
func New(dossiers ports.DossierStore, queue ports.RecalcQueue, registry *rules.Registry, opts ...Option) (*Service, error) {
	if dossiers == nil {
		return nil, fmt.Errorf("dossier store is required")
	}
	if queue == nil {
		return nil, fmt.Errorf("recalc queue is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("rules registry is required")
	}
	svc := &Service{
		dossiers: dossiers,
		queue:    queue,
		rules:    registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ProcessItem runs one queue item through evaluate, advance and persist. The
// runner marks the queue item from the returned error: nil marks success, an
// invalid-history or transient error marks a retryable failure, a not-found
// error marks a terminal one.
func (s *Service) ProcessItem(ctx context.Context, item *models.QueueItem) error {
	now := requestcontext.Now(ctx)

	d, err := s.dossiers.Load(ctx, item.RegistrantID, item.Disease)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotFound, "dossier not found")
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "load dossier")
	}

	rs, err := s.rules.Lookup(d.Disease)
	if err != nil {
		return err
	}

	record, err := protection.Evaluate(history(d), questionnaire(d), rs, now)
	if err != nil {
		// Ambiguous history is never resolved here: the item fails retryably
		// so a data correction before the next sweep can unblock it.
		return err
	}

	tr := lifecycle.Advance(d, record, now)
	if tr.Note != "" {
		s.logger.DebugContext(ctx, "transition guard not evaluable",
			"dossier_id", d.ID, "note", tr.Note)
	}

	if err := s.dossiers.Persist(ctx, d); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "persist dossier")
	}

	s.dispatchEffects(ctx, d, tr)

	if tr.Changed {
		s.logger.InfoContext(ctx, "dossier status moved",
			"dossier_id", d.ID, "from", tr.From, "to", tr.To)
	}
	return nil
}

// Retryable reports whether a processing error should be retried. Invalid
// histories are retryable because the data may be corrected before the next
// sweep; a missing dossier is terminal.
func Retryable(err error) bool {
	return !dErrors.HasCode(err, dErrors.CodeNotFound)
}

// dispatchEffects performs the side effects the state machine emitted.
// Fire-and-forget: a failed notification is logged, never propagated.
func (s *Service) dispatchEffects(ctx context.Context, d *dossiermodels.VaccinationDossier, tr lifecycle.Transition) {
	for _, effect := range tr.Effects {
		switch effect {
		case lifecycle.EffectNotifyBoosterUnlocked:
			if s.notifier == nil {
				continue
			}
			if err := s.notifier.BoosterUnlocked(ctx, d); err != nil {
				s.logger.WarnContext(ctx, "booster notification failed",
					"dossier_id", d.ID, "error", err)
			} else if s.metrics != nil {
				s.metrics.NotificationsSent.Inc()
			}
		}
	}
}

// CorrectEventDate applies a date correction to a recorded dose, classifies
// the certificate impact synchronously, drives the certificate service from
// the classification and enqueues a recalculation.
func (s *Service) CorrectEventDate(ctx context.Context, registrant id.RegistrantID, disease id.DiseaseID, eventID id.EventID, newDate time.Time) (certimpact.Decision, error) {
	return s.correctEvent(ctx, registrant, disease, eventID, func(e *dossiermodels.VaccinationEvent) certimpact.DoseCorrection {
		c := certimpact.DoseCorrection{
			Kind:          certimpact.CorrectionDate,
			Event:         *e,
			BeforeDate:    e.AdministeredAt,
			AfterDate:     newDate,
			BeforeProduct: e.Product,
			AfterProduct:  e.Product,
		}
		e.AdministeredAt = newDate
		return c
	})
}

// CorrectEventProduct applies a vaccine-product correction to a recorded
// dose. Semantics mirror CorrectEventDate.
func (s *Service) CorrectEventProduct(ctx context.Context, registrant id.RegistrantID, disease id.DiseaseID, eventID id.EventID, newProduct id.ProductID) (certimpact.Decision, error) {
	return s.correctEvent(ctx, registrant, disease, eventID, func(e *dossiermodels.VaccinationEvent) certimpact.DoseCorrection {
		c := certimpact.DoseCorrection{
			Kind:          certimpact.CorrectionProduct,
			Event:         *e,
			BeforeDate:    e.AdministeredAt,
			AfterDate:     e.AdministeredAt,
			BeforeProduct: e.Product,
			AfterProduct:  newProduct,
		}
		e.Product = newProduct
		return c
	})
}

func (s *Service) correctEvent(ctx context.Context, registrant id.RegistrantID, disease id.DiseaseID, eventID id.EventID, apply func(*dossiermodels.VaccinationEvent) certimpact.DoseCorrection) (certimpact.Decision, error) {
	d, err := s.dossiers.Load(ctx, registrant, disease)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return certimpact.DecisionNone, dErrors.Wrap(err, dErrors.CodeNotFound, "dossier not found")
		}
		return certimpact.DecisionNone, dErrors.Wrap(err, dErrors.CodeUnavailable, "load dossier")
	}

	rs, err := s.rules.Lookup(d.Disease)
	if err != nil {
		return certimpact.DecisionNone, err
	}

	event := d.EventByID(eventID)
	if event == nil {
		return certimpact.DecisionNone, dErrors.New(dErrors.CodeNotFound, "vaccination event not found")
	}

	// Snapshot before mutating: the decider classifies against the dossier
	// as it was before the correction.
	before := *d
	before.Events = append([]dossiermodels.VaccinationEvent(nil), d.Events...)
	correction := apply(event)

	// A correction producing an ambiguous history is rejected outright.
	now := requestcontext.Now(ctx)
	if _, err := protection.Evaluate(history(d), questionnaire(d), rs, now); err != nil {
		return certimpact.DecisionNone, err
	}

	decision := s.classify(&before, rs, correction)

	if err := s.applyDecision(ctx, d, decision); err != nil {
		return decision, err
	}

	if err := s.dossiers.Persist(ctx, d); err != nil {
		return decision, dErrors.Wrap(err, dErrors.CodeUnavailable, "persist dossier")
	}
	if err := s.queue.Enqueue(ctx, registrant, disease); err != nil {
		return decision, dErrors.Wrap(err, dErrors.CodeUnavailable, "enqueue recalculation")
	}
	return decision, nil
}

// classify runs revoke before reissue; an ordering flip must revoke the old
// certificate before any reissue is considered.
func (s *Service) classify(before *dossiermodels.VaccinationDossier, rs rules.Ruleset, c certimpact.DoseCorrection) certimpact.Decision {
	if certimpact.DecideRevoke(before, rs, c) == certimpact.DecisionRevoke {
		return certimpact.DecisionRevoke
	}
	return certimpact.DecideReissue(before, rs, c)
}

// CorrectPersonalData classifies a personal-data correction and drives the
// certificate service. Personal data itself lives outside this engine; only
// the change flags travel here.
func (s *Service) CorrectPersonalData(ctx context.Context, registrant id.RegistrantID, disease id.DiseaseID, c certimpact.PersonalCorrection) (certimpact.Decision, error) {
	d, err := s.dossiers.Load(ctx, registrant, disease)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return certimpact.DecisionNone, dErrors.Wrap(err, dErrors.CodeNotFound, "dossier not found")
		}
		return certimpact.DecisionNone, dErrors.Wrap(err, dErrors.CodeUnavailable, "load dossier")
	}
	rs, err := s.rules.Lookup(d.Disease)
	if err != nil {
		return certimpact.DecisionNone, err
	}

	decision := certimpact.DecidePersonal(d, rs, c)
	if err := s.applyDecision(ctx, d, decision); err != nil {
		return decision, err
	}
	if err := s.dossiers.Persist(ctx, d); err != nil {
		return decision, dErrors.Wrap(err, dErrors.CodeUnavailable, "persist dossier")
	}
	return decision, nil
}

// applyDecision performs the certificate I/O a classification calls for.
func (s *Service) applyDecision(ctx context.Context, d *dossiermodels.VaccinationDossier, decision certimpact.Decision) error {
	if s.metrics != nil {
		s.metrics.CertificateDecisions.WithLabelValues(string(decision)).Inc()
	}

	switch decision {
	case certimpact.DecisionNone:
		return nil

	case certimpact.DecisionRequiresManualReview:
		// Flagged for product-owner review; deliberately no certificate I/O.
		s.logger.WarnContext(ctx, "correction requires manual review",
			"dossier_id", d.ID, "registrant_id", d.RegistrantID)
		return nil

	case certimpact.DecisionRevoke:
		if s.certificates == nil || d.CertificateID == nil {
			return nil
		}
		if err := s.certificates.Revoke(ctx, *d.CertificateID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "revoke certificate")
		}
		d.CertificateID = nil
		return nil

	case certimpact.DecisionReissue:
		if s.certificates == nil {
			return nil
		}
		cert, err := s.certificates.Issue(ctx, d)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "issue certificate")
		}
		d.CertificateID = &cert
		return nil
	}
	return nil
}

func history(d *dossiermodels.VaccinationDossier) protection.History {
	return protection.History{Events: d.Events, External: d.External}
}

func questionnaire(d *dossiermodels.VaccinationDossier) protection.Questionnaire {
	// Recovery facts currently arrive via the external declaration; the
	// questionnaire channel stays empty until intake forwards it.
	return protection.Questionnaire{}
}
