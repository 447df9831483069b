// services/recovery.go - Recovery cooldown policy
package services

import "time"

// RecoveryBasis selects how the once-per-week recovery limit is counted.
type RecoveryBasis string

const (
	// RecoveryWeekly resets at Monday 00:00 local time. This is the
	// converged rule: a user who recovered on Sunday can recover again on
	// Monday.
	RecoveryWeekly RecoveryBasis = "weekly"

	// RecoveryRolling blocks for a full 7 days after each use. Kept for
	// backward compatibility with the earlier rule.
	RecoveryRolling RecoveryBasis = "rolling"
)

type RecoveryPolicy struct {
	Basis RecoveryBasis
}

func NewRecoveryPolicy() RecoveryPolicy {
	return RecoveryPolicy{Basis: RecoveryWeekly}
}

// CanUse reports whether a user whose last recovery happened at last (nil
// if never) may recover again at now.
func (p RecoveryPolicy) CanUse(last *time.Time, now time.Time) bool {
	if last == nil {
		return true
	}

	switch p.Basis {
	case RecoveryRolling:
		return !last.After(now.Add(-7 * 24 * time.Hour))
	default:
		// Blocked if the last recovery falls on or after this week's Monday.
		localLast := last.In(now.Location())
		return localLast.Before(startOfWeek(now))
	}
}

// startOfWeek returns Monday 00:00 of the week containing t, in t's location.
func startOfWeek(t time.Time) time.Time {
	year, month, day := t.Date()
	midnight := time.Date(year, month, day, 0, 0, 0, 0, t.Location())
	offset := (int(t.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return midnight.AddDate(0, 0, -offset)
}
