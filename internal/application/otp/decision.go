package otp

import (
	"time"

	"github.com/gigmarket-api/internal/domain"
)

type action int

const (
	actionIssue action = iota
	actionRateLimited
	actionUnblock
	actionBlock
)

type decision struct {
	action           action
	remainingMinutes int
}

// evaluate is the pure issuance rule: an active block wins, an elapsed block
// is lifted first, and reaching MaxIssues in the unblocked window starts a block.
func evaluate(rec *domain.OTPRecord, now time.Time, limits Limits) decision {
	if rec.IsBlocked {
		until := time.Unix(rec.BlockedUntil, 0)
		if now.Before(until) {
			return decision{action: actionRateLimited, remainingMinutes: ceilMinutes(until.Sub(now))}
		}
		return decision{action: actionUnblock}
	}
	if rec.Attempts >= limits.MaxIssues {
		return decision{action: actionBlock}
	}
	return decision{action: actionIssue}
}

func ceilMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Minute - 1) / time.Minute)
}
