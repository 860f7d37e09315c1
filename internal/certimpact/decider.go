// Package certimpact classifies what a correction means for a previously
// issued immunity certificate. It only classifies; issuing and revoking are
// the caller's job.
package certimpact

import (
	"time"

	"immuna/internal/dossier/models"
	"immuna/internal/dossier/rules"
	"immuna/internal/protection"
	id "immuna/pkg/domain"
)

// Decision is the classification of a correction's certificate impact.
type Decision string

const (
	DecisionNone    Decision = "none"
	DecisionReissue Decision = "reissue"
	DecisionRevoke  Decision = "revoke"
	// DecisionRequiresManualReview flags a correction that raises the
	// required course length above what the dossier satisfied. Completeness
	// can no longer be assumed and no certificate I/O may happen until a
	// human decides.
	DecisionRequiresManualReview Decision = "requires_manual_review"
)

// CorrectionKind distinguishes what a correction touched.
type CorrectionKind string

const (
	CorrectionDate     CorrectionKind = "date"
	CorrectionProduct  CorrectionKind = "product"
	CorrectionPersonal CorrectionKind = "personal_data"
)

// DoseCorrection is the before/after snapshot of a corrected dose. The
// embedded event is the dose as it was before the correction was applied.
type DoseCorrection struct {
	Kind          CorrectionKind
	Event         models.VaccinationEvent
	BeforeDate    time.Time
	AfterDate     time.Time
	BeforeProduct id.ProductID
	AfterProduct  id.ProductID
}

// PersonalCorrection is the before/after snapshot of a personal-data
// correction.
type PersonalCorrection struct {
	NameChanged        bool
	GivenNameChanged   bool
	DateOfBirthChanged bool
	AddressChanged     bool
}

// DecideRevoke checks the revoke-specific trigger and must run before any
// reissue classification. dossier is the state before the correction was
// applied.
//
// Trigger: the corrected dose is the substituting dose of a
// recovery-completed course and the correction flips the ordering from
// "test precedes dose" to "test after dose". The certificate's basis (the
// substitution) is then wrong and the certificate must be revoked before any
// reissue is considered. Date corrections to other doses, a booster on a
// full course included, never touch the substitution and go through the
// reissue table; so does the opposite flip.
func DecideRevoke(dossier *models.VaccinationDossier, rs rules.Ruleset, c DoseCorrection) Decision {
	if !rs.SupportsCertificates {
		return DecisionNone
	}
	if c.Kind != CorrectionDate {
		return DecisionNone
	}
	if dossier.CompletionReason != models.CompletionRecoveryPlusDose || c.Event.Role != models.DoseFirst {
		return DecisionNone
	}
	testAt := dossier.PositiveTestAt()
	if testAt == nil || !rs.SupportsRecovery {
		return DecisionNone
	}
	before := protection.DoseCompletedByRecovery(*testAt, c.BeforeDate)
	after := protection.DoseCompletedByRecovery(*testAt, c.AfterDate)
	if before && !after {
		return DecisionRevoke
	}
	return DecisionNone
}

// DecideReissue classifies a date or product correction against the decision
// table. dossier is the state before the correction was applied. Rules are
// evaluated strictly in order; the first that matches wins.
func DecideReissue(dossier *models.VaccinationDossier, rs rules.Ruleset, c DoseCorrection) Decision {
	// 1. Disease without certificate support never reissues.
	if !rs.SupportsCertificates {
		return DecisionNone
	}

	// 2. A product correction that leaves the product identical is
	// certificate-irrelevant. Date corrections always shift ordering and are
	// unconditionally relevant.
	if c.Kind == CorrectionProduct && c.BeforeProduct == c.AfterProduct {
		return DecisionNone
	}

	// 3. Not previously fully protected: reissue only when the corrected
	// facts newly cross the completion threshold.
	if !dossier.Status.Protected() {
		if crossesCompletionThreshold(dossier, rs, c) {
			return DecisionReissue
		}
		return DecisionNone
	}

	// 4. Previously fully protected.
	switch {
	// 4a. Certificates reflect only the latest dose; a corrected booster is
	// always on the certificate.
	case c.Event.Role == models.DoseBooster:
		return DecisionReissue

	// 4b. The first dose of a multi-dose course is certificate-irrelevant
	// once a second dose superseded it.
	case c.Event.Role == models.DoseFirst &&
		dossier.CompletionReason != models.CompletionRecoveryPlusDose &&
		dossier.HasDoseWithRole(models.DoseSecond):
		return DecisionNone

	// 4c. First dose of a recovery-substituted completion: the corrected
	// date may flip the substitution ordering.
	case c.Event.Role == models.DoseFirst &&
		dossier.CompletionReason == models.CompletionRecoveryPlusDose:
		testAt := dossier.PositiveTestAt()
		if testAt == nil {
			return DecisionNone
		}
		before := protection.DoseCompletedByRecovery(*testAt, c.BeforeDate)
		after := protection.DoseCompletedByRecovery(*testAt, c.AfterDate)
		if before != after {
			return DecisionReissue
		}
		return DecisionNone

	// 4d. Lowering or keeping the required course length keeps the
	// certificate valid under the corrected product. Raising it invalidates
	// completeness; that is surfaced for manual review, never silently
	// reissued.
	default:
		if rs.RequiredDoses(c.AfterProduct) <= rs.RequiredDoses(c.BeforeProduct) {
			return DecisionReissue
		}
		return DecisionRequiresManualReview
	}
}

// DecidePersonal classifies a personal-data correction. Name, given name and
// date of birth are embedded in every certificate; the address only when the
// dossier was not created through the self-service online channel.
func DecidePersonal(dossier *models.VaccinationDossier, rs rules.Ruleset, c PersonalCorrection) Decision {
	if !rs.SupportsCertificates {
		return DecisionNone
	}
	if c.NameChanged || c.GivenNameChanged || c.DateOfBirthChanged {
		return DecisionReissue
	}
	if c.AddressChanged && dossier.IntakeChannel != models.IntakeSelfServiceOnline {
		return DecisionReissue
	}
	return DecisionNone
}

// crossesCompletionThreshold re-counts the course with the corrected dose in
// place and reports whether the dossier newly satisfies the base course, e.g.
// a corrected product requiring a single dose where the corrected dose is the
// first.
func crossesCompletionThreshold(dossier *models.VaccinationDossier, rs rules.Ruleset, c DoseCorrection) bool {
	doses := len(dossier.CountedEvents())
	if dossier.External != nil {
		doses += dossier.External.DoseCount
	}
	if doses == 0 {
		return false
	}

	required := rs.RequiredDoses(c.AfterProduct)
	if doses >= required {
		return true
	}

	// One dose short: the shared ordering rule decides whether a documented
	// recovery substitutes for the missing dose under the corrected date.
	testAt := dossier.PositiveTestAt()
	if testAt == nil || !rs.SupportsRecovery || doses < required-1 {
		return false
	}
	return protection.DoseCompletedByRecovery(*testAt, c.AfterDate)
}
