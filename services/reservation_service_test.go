package services_test

import (
	"testing"
	"time"

	"habitto/models"
	"habitto/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fixture wires a reservation service with a pinned clock around one
// signed-up user.
type fixture struct {
	db     *gorm.DB
	svc    *services.ReservationService
	teams  *services.TeamService
	ledger *services.LedgerService
	user   *models.User
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)
	f := &fixture{
		db:     db,
		svc:    services.NewReservationService(db),
		teams:  services.NewTeamService(db),
		ledger: services.NewLedgerService(db),
		now:    at(2026, time.January, 7, 8, 0), // Wednesday morning
	}
	f.svc.Now = func() time.Time { return f.now }
	f.user = signupUser(t, f.teams, 1)
	return f
}

func (f *fixture) userBalance(t *testing.T) int {
	t.Helper()
	balance, err := f.ledger.UserBalance(f.user.ID)
	require.NoError(t, err)
	return balance
}

func (f *fixture) poolBalance(t *testing.T) int {
	t.Helper()
	balance, err := f.ledger.TeamPoolBalance(*f.user.TeamID)
	require.NoError(t, err)
	return balance
}

func TestCreateStakesDeposit(t *testing.T) {
	f := newFixture(t)

	reservation, err := f.svc.Create(f.user.ID, at(2026, time.January, 7, 18, 0))
	require.NoError(t, err)

	assert.Equal(t, models.ReservationScheduled, reservation.Status)
	assert.Equal(t, f.user.TeamID, reservation.TeamID)
	assert.Nil(t, reservation.CheckinAt)
	assert.Nil(t, reservation.CompletedAt)

	// 7 from the initial grant minus the 1-ticket deposit
	assert.Equal(t, 6, f.userBalance(t))
}

func TestCreateRejectsPastStart(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(f.user.ID, f.now.Add(-1*time.Hour))
	assert.ErrorIs(t, err, services.ErrPastStart)

	// Less than a minute out counts as past
	_, err = f.svc.Create(f.user.ID, f.now.Add(30*time.Second))
	assert.ErrorIs(t, err, services.ErrPastStart)
}

func TestCreateEnforcesSlotDistance(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(f.user.ID, at(2026, time.January, 7, 12, 0))
	require.NoError(t, err)

	_, err = f.svc.Create(f.user.ID, at(2026, time.January, 7, 14, 0))
	assert.ErrorIs(t, err, services.ErrSlotConflict)

	// Exactly 3 hours apart is allowed (bounds are exclusive)
	_, err = f.svc.Create(f.user.ID, at(2026, time.January, 7, 15, 0))
	require.NoError(t, err)
}

func TestCreateEnforcesDailyLimit(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(f.user.ID, at(2026, time.January, 7, 10, 0))
	require.NoError(t, err)
	_, err = f.svc.Create(f.user.ID, at(2026, time.January, 7, 15, 0))
	require.NoError(t, err)

	_, err = f.svc.Create(f.user.ID, at(2026, time.January, 7, 20, 0))
	assert.ErrorIs(t, err, services.ErrDailyLimit)

	// The next day is a fresh allowance
	_, err = f.svc.Create(f.user.ID, at(2026, time.January, 8, 10, 0))
	require.NoError(t, err)
}

func TestCheckInWindow(t *testing.T) {
	f := newFixture(t)

	start := at(2026, time.January, 7, 18, 0)
	reservation, err := f.svc.Create(f.user.ID, start)
	require.NoError(t, err)

	// Too early
	f.now = start.Add(-11 * time.Minute)
	_, err = f.svc.CheckIn(f.user.ID, reservation.ID)
	assert.ErrorIs(t, err, services.ErrCheckinWindow)

	// Window opens 10 minutes before start
	f.now = start.Add(-10 * time.Minute)
	checked, err := f.svc.CheckIn(f.user.ID, reservation.ID)
	require.NoError(t, err)
	require.NotNil(t, checked.CheckinAt)
	firstCheckin := *checked.CheckinAt

	// Re-check-in is a no-op, not an error, and keeps the first timestamp
	f.now = start.Add(5 * time.Minute)
	again, err := f.svc.CheckIn(f.user.ID, reservation.ID)
	require.NoError(t, err)
	require.NotNil(t, again.CheckinAt)
	assert.True(t, again.CheckinAt.Equal(firstCheckin))

	// Too late
	late, err := f.svc.Create(f.user.ID, at(2026, time.January, 8, 9, 0))
	require.NoError(t, err)
	f.now = late.StartAt.Add(31 * time.Minute)
	_, err = f.svc.CheckIn(f.user.ID, late.ID)
	assert.ErrorIs(t, err, services.ErrCheckinWindow)
}

func TestCompleteRequiresCheckin(t *testing.T) {
	f := newFixture(t)

	reservation, err := f.svc.Create(f.user.ID, at(2026, time.January, 7, 18, 0))
	require.NoError(t, err)

	_, err = f.svc.Complete(f.user.ID, reservation.ID, models.ActivityRun, "", false)
	assert.ErrorIs(t, err, services.ErrNeedCheckin)
}

func TestCompleteFlow(t *testing.T) {
	f := newFixture(t)

	start := at(2026, time.January, 7, 18, 0)
	reservation, err := f.svc.Create(f.user.ID, start)
	require.NoError(t, err)
	assert.Equal(t, 6, f.userBalance(t))

	f.now = start.Add(5 * time.Minute)
	_, err = f.svc.CheckIn(f.user.ID, reservation.ID)
	require.NoError(t, err)

	completed, err := f.svc.Complete(f.user.ID, reservation.ID, models.ActivityWorkout, "leg day", true)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	// Deposit returned plus the bonus: net +1 for the whole reservation
	assert.Equal(t, 8, f.userBalance(t))

	// A timeline post was published for the team
	var post models.TimelinePost
	require.NoError(t, f.db.Where("reservation_id = ?", reservation.ID).First(&post).Error)
	assert.Equal(t, *f.user.TeamID, post.TeamID)
	assert.Equal(t, models.VisibilityWithDetail, post.Visibility)

	// Completing again is a no-op with identical ledger state
	again, err := f.svc.Complete(f.user.ID, reservation.ID, models.ActivityWorkout, "leg day", true)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationCompleted, again.Status)
	assert.Equal(t, 8, f.userBalance(t))

	var posts int64
	require.NoError(t, f.db.Model(&models.TimelinePost{}).Count(&posts).Error)
	assert.Equal(t, int64(1), posts)
}

func TestCompleteRejectsInvalidActivity(t *testing.T) {
	f := newFixture(t)

	start := at(2026, time.January, 7, 18, 0)
	reservation, err := f.svc.Create(f.user.ID, start)
	require.NoError(t, err)

	f.now = start
	_, err = f.svc.CheckIn(f.user.ID, reservation.ID)
	require.NoError(t, err)

	_, err = f.svc.Complete(f.user.ID, reservation.ID, "swimming", "", false)
	assert.ErrorIs(t, err, services.ErrInvalidActivity)
}

func TestSweepMarksMissedAndFeedsPool(t *testing.T) {
	f := newFixture(t)

	start := at(2026, time.January, 7, 10, 0)
	reservation, err := f.svc.Create(f.user.ID, start)
	require.NoError(t, err)

	// Before the grace period ends, nothing happens
	f.now = start.Add(29 * time.Minute)
	affected, err := f.svc.SweepMissed(f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, affected)

	f.now = start.Add(31 * time.Minute)
	affected, err = f.svc.SweepMissed(f.user.ID)
	require.NoError(t, err)
	require.Len(t, affected, 1)
	assert.Equal(t, models.ReservationMissed, affected[0].Status)

	// Forfeited deposit lands in the team pool
	assert.Equal(t, 1, f.poolBalance(t))
	assert.Equal(t, 6, f.userBalance(t))

	// Re-sweeping is harmless: status filter skips missed rows and the
	// ledger key would absorb a duplicate anyway
	affected, err = f.svc.SweepMissed(f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, affected)
	assert.Equal(t, 1, f.poolBalance(t))

	var fresh models.Reservation
	require.NoError(t, f.db.First(&fresh, reservation.ID).Error)
	assert.Equal(t, models.ReservationMissed, fresh.Status)
}

func TestSweepWithoutTeamForfeitsSilently(t *testing.T) {
	db := newTestDB(t)
	svc := services.NewReservationService(db)
	ledger := services.NewLedgerService(db)

	now := at(2026, time.January, 7, 8, 0)
	svc.Now = func() time.Time { return now }

	user := createBareUser(t, db, "loner@example.com")
	_, err := ledger.CreateInitialGrant(nil, user.ID)
	require.NoError(t, err)

	start := at(2026, time.January, 7, 10, 0)
	_, err = svc.Create(user.ID, start)
	require.NoError(t, err)

	now = start.Add(1 * time.Hour)
	affected, err := svc.SweepMissed(user.ID)
	require.NoError(t, err)
	require.Len(t, affected, 1)

	// Deposit simply stays lost; no team entry exists
	balance, err := ledger.UserBalance(user.ID)
	require.NoError(t, err)
	assert.Equal(t, services.InitialGrantAmount-1, balance)

	var teamEntries int64
	require.NoError(t, db.Model(&models.TicketTransaction{}).
		Where("owner_type = ?", models.OwnerTeam).Count(&teamEntries).Error)
	assert.Equal(t, int64(0), teamEntries)
}

func TestUseRecoveryFlow(t *testing.T) {
	f := newFixture(t)

	start := at(2026, time.January, 7, 10, 0)
	reservation, err := f.svc.Create(f.user.ID, start)
	require.NoError(t, err)

	// Recovery on a scheduled reservation is rejected
	_, err = f.svc.UseRecovery(f.user.ID, reservation.ID)
	assert.ErrorIs(t, err, services.ErrNotMissed)

	f.now = start.Add(1 * time.Hour)
	_, err = f.svc.SweepMissed(f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.poolBalance(t))

	recovered, err := f.svc.UseRecovery(f.user.ID, reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationRecovery, recovered.Status)
	assert.True(t, recovered.UsedRecovery)

	// One ticket moved from the pool back to the user
	assert.Equal(t, 7, f.userBalance(t))
	assert.Equal(t, 0, f.poolBalance(t))

	var fresh models.User
	require.NoError(t, f.db.First(&fresh, f.user.ID).Error)
	require.NotNil(t, fresh.LastRecoveryAt)

	// The same reservation cannot be recovered twice
	_, err = f.svc.UseRecovery(f.user.ID, reservation.ID)
	assert.ErrorIs(t, err, services.ErrNotMissed)
}

func TestUseRecoveryCooldown(t *testing.T) {
	f := newFixture(t)

	// Miss two reservations on consecutive days
	first, err := f.svc.Create(f.user.ID, at(2026, time.January, 7, 10, 0))
	require.NoError(t, err)
	second, err := f.svc.Create(f.user.ID, at(2026, time.January, 8, 10, 0))
	require.NoError(t, err)

	f.now = at(2026, time.January, 8, 12, 0)
	_, err = f.svc.SweepMissed(f.user.ID)
	require.NoError(t, err)

	_, err = f.svc.UseRecovery(f.user.ID, first.ID)
	require.NoError(t, err)

	// Second recovery in the same calendar week is blocked
	_, err = f.svc.UseRecovery(f.user.ID, second.ID)
	assert.ErrorIs(t, err, services.ErrCooldownActive)

	// The following Monday it works again
	f.now = at(2026, time.January, 12, 9, 0)
	recovered, err := f.svc.UseRecovery(f.user.ID, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationRecovery, recovered.Status)
}

func TestUseRecoveryRequiresTeam(t *testing.T) {
	db := newTestDB(t)
	svc := services.NewReservationService(db)

	now := at(2026, time.January, 7, 8, 0)
	svc.Now = func() time.Time { return now }

	user := createBareUser(t, db, "teamless@example.com")
	start := at(2026, time.January, 7, 10, 0)
	reservation, err := svc.Create(user.ID, start)
	require.NoError(t, err)

	now = start.Add(1 * time.Hour)
	_, err = svc.SweepMissed(user.ID)
	require.NoError(t, err)

	_, err = svc.UseRecovery(user.ID, reservation.ID)
	assert.ErrorIs(t, err, services.ErrNoTeam)
}

func TestStatusNeverRegresses(t *testing.T) {
	f := newFixture(t)

	start := at(2026, time.January, 7, 10, 0)
	reservation, err := f.svc.Create(f.user.ID, start)
	require.NoError(t, err)

	// Checked in but never completed, then swept
	f.now = start.Add(20 * time.Minute)
	_, err = f.svc.CheckIn(f.user.ID, reservation.ID)
	require.NoError(t, err)

	f.now = start.Add(45 * time.Minute)
	_, err = f.svc.SweepMissed(f.user.ID)
	require.NoError(t, err)

	// Missed cannot be completed even though check-in happened
	_, err = f.svc.Complete(f.user.ID, reservation.ID, models.ActivityWalk, "", false)
	assert.ErrorIs(t, err, services.ErrNotScheduled)

	// Recovery is terminal: the reservation stays recovered
	recovered, err := f.svc.UseRecovery(f.user.ID, reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationRecovery, recovered.Status)
	_, err = f.svc.Complete(f.user.ID, reservation.ID, models.ActivityWalk, "", false)
	assert.ErrorIs(t, err, services.ErrNotScheduled)
}

func TestOperationsOnForeignReservation(t *testing.T) {
	f := newFixture(t)
	other := signupUser(t, f.teams, 2)

	reservation, err := f.svc.Create(f.user.ID, at(2026, time.January, 7, 18, 0))
	require.NoError(t, err)

	_, err = f.svc.CheckIn(other.ID, reservation.ID)
	assert.ErrorIs(t, err, services.ErrForbidden)
	_, err = f.svc.Complete(other.ID, reservation.ID, models.ActivityRun, "", false)
	assert.ErrorIs(t, err, services.ErrForbidden)
	_, err = f.svc.UseRecovery(other.ID, reservation.ID)
	assert.ErrorIs(t, err, services.ErrForbidden)

	_, err = f.svc.CheckIn(f.user.ID, 9999)
	assert.ErrorIs(t, err, services.ErrNotFound)
}
