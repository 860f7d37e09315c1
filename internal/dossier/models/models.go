// Package models defines the vaccination dossier aggregate and its derived
// protection record.
package models

import (
	"sort"
	"time"

	id "immuna/pkg/domain"
)

// Status is the cached lifecycle state of a dossier. It is always derivable
// from (protection record, completion reason, events); the state machine in
// internal/dossier/lifecycle is the only writer.
type Status string

const (
	StatusInProgress                 Status = "in_progress"
	StatusCompletedFullCourse        Status = "completed_full_course"
	StatusCompletedWithoutSecondDose Status = "completed_without_second_dose"
	StatusCompletedViaRecovery       Status = "completed_via_recovery"
	StatusImmunized                  Status = "immunized"
	StatusBoosterUnlocked            Status = "booster_unlocked"
)

// Completed reports whether the status belongs to the completed family, i.e.
// the base course is satisfied but the dossier is not yet marked immunized.
func (s Status) Completed() bool {
	switch s {
	case StatusCompletedFullCourse, StatusCompletedWithoutSecondDose, StatusCompletedViaRecovery:
		return true
	}
	return false
}

// Protected reports whether the dossier has reached at least the completed
// family, i.e. a certificate could have been issued for it.
func (s Status) Protected() bool {
	return s.Completed() || s == StatusImmunized || s == StatusBoosterUnlocked
}

// IsValid reports whether s is a known status value.
func (s Status) IsValid() bool {
	switch s {
	case StatusInProgress, StatusCompletedFullCourse, StatusCompletedWithoutSecondDose,
		StatusCompletedViaRecovery, StatusImmunized, StatusBoosterUnlocked:
		return true
	}
	return false
}

// CompletionReason records how the base course was satisfied.
type CompletionReason string

const (
	CompletionNone              CompletionReason = ""
	CompletionFullCourse        CompletionReason = "full_course"
	CompletionRecoveryPlusDose  CompletionReason = "recovery_plus_dose"
	CompletionWithoutSecondDose CompletionReason = "without_second_dose"
)

// CompletedStatus maps a completion reason to its completed-family status.
func (r CompletionReason) CompletedStatus() Status {
	switch r {
	case CompletionRecoveryPlusDose:
		return StatusCompletedViaRecovery
	case CompletionWithoutSecondDose:
		return StatusCompletedWithoutSecondDose
	default:
		return StatusCompletedFullCourse
	}
}

// DoseRole is the sequence role a dose plays in the course.
type DoseRole string

const (
	DoseFirst   DoseRole = "first"
	DoseSecond  DoseRole = "second"
	DoseBooster DoseRole = "booster"
)

// VaccinationEvent is one administered or externally declared dose. Events
// are immutable except through an explicit correction, which replaces the
// date or product and hands the previous values to the impact decider.
type VaccinationEvent struct {
	ID                 id.EventID
	DossierID          id.DossierID
	AdministeredAt     time.Time
	Product            id.ProductID
	Role               DoseRole
	CountsTowardCourse bool
	RecordedExternally bool
	SelfPay            bool
}

// ExternalCertificate is an externally issued proof the registrant declared:
// doses given elsewhere and/or a documented recovery from the disease.
type ExternalCertificate struct {
	Product     id.ProductID
	DoseCount   int
	LastDoseAt  *time.Time
	Recovered   bool
	RecoveredAt *time.Time // date of the positive test
}

// ProtectionRecord is the evaluator's derived statement of protection.
// A nil record on the dossier means "does not currently qualify".
type ProtectionRecord struct {
	GrantedAt            time.Time
	ValidUntil           *time.Time // nil = indefinite
	NextDoseUnlockedFrom *time.Time // nil = no booster concept for the disease
	AllowedNextProducts  []id.ProductID
	Reason               CompletionReason
}

// Equal compares two records field by field. Used by idempotency checks; two
// evaluations of the same history must compare equal.
func (p *ProtectionRecord) Equal(o *ProtectionRecord) bool {
	if p == nil || o == nil {
		return p == o
	}
	if !p.GrantedAt.Equal(o.GrantedAt) || p.Reason != o.Reason {
		return false
	}
	if !timePtrEqual(p.ValidUntil, o.ValidUntil) || !timePtrEqual(p.NextDoseUnlockedFrom, o.NextDoseUnlockedFrom) {
		return false
	}
	if len(p.AllowedNextProducts) != len(o.AllowedNextProducts) {
		return false
	}
	for i := range p.AllowedNextProducts {
		if p.AllowedNextProducts[i] != o.AllowedNextProducts[i] {
			return false
		}
	}
	return true
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// Booking is the scheduling sub-record owned by the dossier. The state
// machine clears the desired site once the registrant is immunized.
type Booking struct {
	DesiredSite string
}

// IntakeChannel records how the registrant entered the system. Certificates
// for self-service online registrations do not embed the address.
type IntakeChannel string

const (
	IntakeSelfServiceOnline IntakeChannel = "self_service_online"
	IntakeHotline           IntakeChannel = "hotline"
	IntakeOnSite            IntakeChannel = "on_site"
)

// VaccinationDossier is the per-(registrant, disease) aggregate.
type VaccinationDossier struct {
	ID           id.DossierID
	RegistrantID id.RegistrantID
	Disease      id.DiseaseID

	Status           Status
	Protection       *ProtectionRecord
	CompletedAt      *time.Time
	CompletionReason CompletionReason

	Events   []VaccinationEvent
	External *ExternalCertificate

	Booking       Booking
	SelfPay       bool
	Deceased      bool
	IntakeChannel IntakeChannel

	CertificateID *id.CertificateID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EventByID returns a pointer into Events for the given event, or nil.
func (d *VaccinationDossier) EventByID(eventID id.EventID) *VaccinationEvent {
	for i := range d.Events {
		if d.Events[i].ID == eventID {
			return &d.Events[i]
		}
	}
	return nil
}

// CountedEvents returns the events counting toward the base course, ordered
// by administration time.
func (d *VaccinationDossier) CountedEvents() []VaccinationEvent {
	out := make([]VaccinationEvent, 0, len(d.Events))
	for _, e := range d.Events {
		if e.CountsTowardCourse {
			out = append(out, e)
		}
	}
	sortEventsByTime(out)
	return out
}

// LatestEvent returns the most recently administered event, or nil.
func (d *VaccinationDossier) LatestEvent() *VaccinationEvent {
	if len(d.Events) == 0 {
		return nil
	}
	latest := &d.Events[0]
	for i := range d.Events[1:] {
		if d.Events[i+1].AdministeredAt.After(latest.AdministeredAt) {
			latest = &d.Events[i+1]
		}
	}
	return latest
}

// HasDoseWithRole reports whether any counted event carries the given role.
func (d *VaccinationDossier) HasDoseWithRole(role DoseRole) bool {
	for _, e := range d.Events {
		if e.CountsTowardCourse && e.Role == role {
			return true
		}
	}
	return false
}

// PositiveTestAt returns the documented recovery test date, if declared.
func (d *VaccinationDossier) PositiveTestAt() *time.Time {
	if d.External != nil && d.External.Recovered {
		return d.External.RecoveredAt
	}
	return nil
}

func sortEventsByTime(events []VaccinationEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].AdministeredAt.Before(events[j].AdministeredAt)
	})
}
