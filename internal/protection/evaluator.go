// Package protection derives a protection record from a vaccination history.
// Evaluate is pure: identical inputs yield identical records, the clock is an
// explicit parameter, and no I/O happens here.
package protection

import (
	"sort"
	"time"

	"immuna/internal/dossier/models"
	"immuna/internal/dossier/rules"
	id "immuna/pkg/domain"
	dErrors "immuna/pkg/domain-errors"
)

// History is the ordered set of facts the evaluator considers: recorded doses
// plus at most one external certificate declaration.
type History struct {
	Events   []models.VaccinationEvent
	External *models.ExternalCertificate
}

// Questionnaire carries registrant-declared facts that are not doses. A
// declared prior infection feeds recovery substitution when no external
// certificate documents one.
type Questionnaire struct {
	RecoveredFromDisease bool
	PositiveTestAt       *time.Time
}

// Evaluate derives the protection record for a history, or nil when no rule
// grants protection. It returns an invalid-history error when two counted
// doses share a mandatory sequence role with different timestamps and the
// ruleset forbids repeats; ambiguous histories are reported, never resolved.
func Evaluate(h History, q Questionnaire, rs rules.Ruleset, now time.Time) (*models.ProtectionRecord, error) {
	counted := countedSorted(h.Events, now)

	if err := validateRoles(counted, rs); err != nil {
		return nil, err
	}

	extDoses := 0
	if h.External != nil {
		extDoses = h.External.DoseCount
	}
	totalDoses := len(counted) + extDoses
	if totalDoses == 0 {
		return nil, nil
	}

	product := effectiveProduct(counted, h.External)
	required := rs.RequiredDoses(product)

	testAt := positiveTestDate(h, q, rs)

	var completing *time.Time
	reason := models.CompletionNone

	switch {
	case totalDoses >= required:
		completing = doseTimeAt(required, counted, h.External)
		reason = fullCourseReason(rs, required)
	case testAt != nil && totalDoses >= required-1:
		// One dose short: recovery may substitute for the missing dose, but
		// only when the positive test precedes the dose completing the
		// reduced course.
		c := doseTimeAt(required-1, counted, h.External)
		if c != nil && DoseCompletedByRecovery(*testAt, *c) {
			completing = c
			reason = models.CompletionRecoveryPlusDose
		}
	}

	if completing == nil || reason == models.CompletionNone {
		return nil, nil
	}

	grantedAt := completing.Add(rs.ProtectionLeadTime)
	record := &models.ProtectionRecord{
		GrantedAt:           grantedAt,
		AllowedNextProducts: rs.NextDoseProducts,
		Reason:              reason,
	}

	if last := lastDoseTime(counted, h.External); last != nil {
		if rs.ProtectionDuration > 0 {
			until := last.Add(rs.ProtectionDuration)
			record.ValidUntil = &until
		}
		if rs.BoosterInterval > 0 {
			unlock := last.Add(rs.BoosterInterval)
			record.NextDoseUnlockedFrom = &unlock
		}
	}

	return record, nil
}

// countedSorted filters to doses counting toward the base course, dropping
// doses dated in the future relative to the injected clock.
func countedSorted(events []models.VaccinationEvent, now time.Time) []models.VaccinationEvent {
	out := make([]models.VaccinationEvent, 0, len(events))
	for _, e := range events {
		if e.CountsTowardCourse && !e.AdministeredAt.After(now) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AdministeredAt.Before(out[j].AdministeredAt)
	})
	return out
}

func validateRoles(counted []models.VaccinationEvent, rs rules.Ruleset) error {
	if rs.AllowsRepeatedRoles {
		return nil
	}
	seen := map[models.DoseRole]time.Time{}
	for _, e := range counted {
		if e.Role != models.DoseFirst && e.Role != models.DoseSecond {
			continue
		}
		if prev, ok := seen[e.Role]; ok && !prev.Equal(e.AdministeredAt) {
			return dErrors.Newf(dErrors.CodeInvalidHistory,
				"two %s doses with different dates (%s vs %s)",
				e.Role, prev.Format(time.DateOnly), e.AdministeredAt.Format(time.DateOnly))
		}
		seen[e.Role] = e.AdministeredAt
	}
	return nil
}

// effectiveProduct is the product of the most recent counted dose, falling
// back to the external declaration when only external doses exist.
func effectiveProduct(counted []models.VaccinationEvent, ext *models.ExternalCertificate) id.ProductID {
	if len(counted) > 0 {
		return counted[len(counted)-1].Product
	}
	if ext != nil {
		return ext.Product
	}
	return ""
}

// doseTimeAt returns the administration time of the k-th dose (1-based) on
// the combined timeline. Externally declared doses precede recorded ones;
// only their most recent date is known, so it stands in for all of them.
func doseTimeAt(k int, counted []models.VaccinationEvent, ext *models.ExternalCertificate) *time.Time {
	if k < 1 {
		return nil
	}
	extDoses := 0
	if ext != nil {
		extDoses = ext.DoseCount
	}
	if k <= extDoses {
		if ext.LastDoseAt == nil {
			return nil
		}
		t := *ext.LastDoseAt
		return &t
	}
	idx := k - extDoses - 1
	if idx >= len(counted) {
		return nil
	}
	t := counted[idx].AdministeredAt
	return &t
}

func lastDoseTime(counted []models.VaccinationEvent, ext *models.ExternalCertificate) *time.Time {
	var last *time.Time
	if len(counted) > 0 {
		t := counted[len(counted)-1].AdministeredAt
		last = &t
	}
	if ext != nil && ext.LastDoseAt != nil && (last == nil || ext.LastDoseAt.After(*last)) {
		t := *ext.LastDoseAt
		last = &t
	}
	return last
}

func positiveTestDate(h History, q Questionnaire, rs rules.Ruleset) *time.Time {
	if !rs.SupportsRecovery {
		return nil
	}
	if h.External != nil && h.External.Recovered && h.External.RecoveredAt != nil {
		return h.External.RecoveredAt
	}
	if q.RecoveredFromDisease && q.PositiveTestAt != nil {
		return q.PositiveTestAt
	}
	return nil
}

func fullCourseReason(rs rules.Ruleset, required int) models.CompletionReason {
	// A single-dose product in a disease whose regular course is longer
	// completes "without second dose"; it is a distinct completion reason on
	// the certificate.
	if required == 1 && rs.DefaultRequiredDoses > 1 {
		return models.CompletionWithoutSecondDose
	}
	return models.CompletionFullCourse
}
