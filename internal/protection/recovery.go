package protection

import "time"

// DoseCompletedByRecovery is the single home of the recovery-vs-dose ordering
// rule: a documented positive test substitutes for one required dose only
// when the test precedes the dose that completes the reduced course. A test
// taken after that dose proves nothing about the course and substitutes for
// nothing.
//
// The certificate impact decider re-runs this check with corrected dates; do
// not inline the comparison anywhere else.
func DoseCompletedByRecovery(positiveTestAt, doseAt time.Time) bool {
	return positiveTestAt.Before(doseAt)
}
