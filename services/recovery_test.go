package services_test

import (
	"testing"
	"time"

	"habitto/services"

	"github.com/stretchr/testify/assert"
)

// 2026-01-05 is a Monday.
func TestWeeklyRecoveryPolicy(t *testing.T) {
	policy := services.NewRecoveryPolicy()

	now := at(2026, time.January, 7, 12, 0) // Wednesday

	assert.True(t, policy.CanUse(nil, now), "never recovered")

	lastWeek := at(2025, time.December, 30, 9, 0)
	assert.True(t, policy.CanUse(&lastWeek, now), "last recovery in a previous week")

	thisWeek := at(2026, time.January, 6, 9, 0) // Tuesday
	assert.False(t, policy.CanUse(&thisWeek, now), "already recovered this week")

	sameDay := at(2026, time.January, 7, 8, 0)
	assert.False(t, policy.CanUse(&sameDay, now), "recovered earlier today")
}

func TestWeeklyPolicyResetsOnMonday(t *testing.T) {
	policy := services.NewRecoveryPolicy()

	sunday := at(2026, time.January, 4, 23, 0)
	monday := at(2026, time.January, 5, 8, 0)

	// Used on Sunday, available again Monday morning even though fewer
	// than 24 hours passed
	assert.True(t, policy.CanUse(&sunday, monday))

	// Used Monday morning, still blocked the following Sunday night
	mondayUse := at(2026, time.January, 5, 9, 0)
	sundayNight := at(2026, time.January, 11, 23, 0)
	assert.False(t, policy.CanUse(&mondayUse, sundayNight))

	// ...and free again the Monday after
	nextMonday := at(2026, time.January, 12, 0, 30)
	assert.True(t, policy.CanUse(&mondayUse, nextMonday))
}

func TestRollingRecoveryPolicy(t *testing.T) {
	policy := services.RecoveryPolicy{Basis: services.RecoveryRolling}

	now := at(2026, time.January, 15, 12, 0)

	assert.True(t, policy.CanUse(nil, now))

	sixDaysAgo := now.AddDate(0, 0, -6)
	assert.False(t, policy.CanUse(&sixDaysAgo, now))

	eightDaysAgo := now.AddDate(0, 0, -8)
	assert.True(t, policy.CanUse(&eightDaysAgo, now))
}
