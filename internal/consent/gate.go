// Package consent implements the time-bounded consent rule that gates
// location tracking, and the service that persists consent decisions.
package consent

import (
	"time"

	"github.com/bosstrack/fieldtrack/internal/domain"
)

// IsValid reports whether the consent record authorizes tracking at the
// supplied instant: a grant is valid for strictly less than domain.ConsentTTL
// after GrantedAt. The caller supplies "now" so expiry boundaries are exactly
// testable. No side effects.
//
// A missing consent is the caller's problem: callers must not invoke IsValid
// with a zero record and treat the answer as meaningful.
func IsValid(record domain.ConsentRecord, now time.Time) bool {
	if record.GrantedAt.IsZero() {
		return false
	}
	return now.Sub(record.GrantedAt) < domain.ConsentTTL
}
