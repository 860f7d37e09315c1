// Package lifecycle owns the dossier status state machine. Advance is the
// only place a dossier status changes; it is pure and idempotent so the batch
// runner can safely reprocess the same item under at-least-once delivery.
package lifecycle

import (
	"time"

	"immuna/internal/dossier/models"
)

// Effect is a side effect the caller must carry out after persisting the
// transition. Emitting effects as values keeps the machine pure; the caller
// decides delivery semantics.
type Effect string

const (
	// EffectNotifyBoosterUnlocked asks the caller to notify the registrant
	// that their next dose is unlocked. Fire-and-forget: notification failure
	// never rolls back the transition.
	EffectNotifyBoosterUnlocked Effect = "notify_booster_unlocked"
)

// Transition reports what Advance did. Changed is false both for "nothing to
// do" and for "guard not evaluable"; Note distinguishes the two for logging.
type Transition struct {
	From    models.Status
	To      models.Status
	Changed bool
	Effects []Effect
	// Note explains why no transition happened when a guard could not be
	// evaluated. Callers log it at low severity; it is never an error.
	Note string
}

// Advance applies every transition whose guard passes, in order, mutating the
// dossier in place. It re-derives eligibility from the protection record on
// every call rather than assuming monotonic progression: the machine is
// cyclic across Immunized and BoosterUnlocked as booster doses occur.
//
// Re-applying Advance with the same inputs is a no-op.
func Advance(d *models.VaccinationDossier, record *models.ProtectionRecord, now time.Time) Transition {
	tr := Transition{From: d.Status, To: d.Status}

	if !d.Status.IsValid() {
		tr.Note = "unknown status, leaving dossier untouched"
		return tr
	}
	if d.Deceased {
		tr.Note = "registrant flagged deceased"
		return tr
	}

	// Refresh the cached record; Status stays derivable from it.
	if record != nil {
		d.Protection = record
	}

	for steps := 0; steps < 4; steps++ {
		if !step(d, record, now, &tr) {
			break
		}
	}
	tr.To = d.Status
	tr.Changed = tr.To != tr.From || len(tr.Effects) > 0
	return tr
}

// step performs at most one transition and reports whether it moved.
func step(d *models.VaccinationDossier, record *models.ProtectionRecord, now time.Time, tr *Transition) bool {
	switch {
	case d.Status == models.StatusInProgress:
		if record == nil {
			return false
		}
		d.Status = record.Reason.CompletedStatus()
		d.CompletionReason = record.Reason
		completed := record.GrantedAt
		d.CompletedAt = &completed
		return true

	case d.Status.Completed():
		if d.Protection == nil {
			tr.Note = "completed dossier without protection record, cannot evaluate immunized guard"
			return false
		}
		d.Status = models.StatusImmunized
		// Scheduling is finished once immunized; the desired-site selection
		// belongs to the booking flow and is cleared here on purpose.
		d.Booking.DesiredSite = ""
		return true

	case d.Status == models.StatusImmunized:
		rec := d.Protection
		if rec == nil || rec.NextDoseUnlockedFrom == nil {
			return false
		}
		if now.Before(*rec.NextDoseUnlockedFrom) {
			return false
		}
		d.Status = models.StatusBoosterUnlocked
		// Regular eligibility supersedes any self-pay fallback.
		d.SelfPay = false
		tr.Effects = append(tr.Effects, EffectNotifyBoosterUnlocked)
		return true

	case d.Status == models.StatusBoosterUnlocked:
		// A newer record with a future unlock date means a booster dose was
		// recorded since the unlock: the dossier cycles back to awaiting
		// immunized and advances again from there.
		if record == nil || record.NextDoseUnlockedFrom == nil {
			return false
		}
		if !now.Before(*record.NextDoseUnlockedFrom) {
			return false
		}
		d.Status = record.Reason.CompletedStatus()
		d.CompletionReason = record.Reason
		return true
	}
	return false
}
