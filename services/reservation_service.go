// services/reservation_service.go - Reservation lifecycle state machine
//
// A reservation moves scheduled → completed, or scheduled → missed →
// recovery. completed and recovery are terminal; nothing ever goes back to
// scheduled. Every transition that touches the ticket balance goes through
// the ledger's idempotent Record, so transitions are safe to retry.
package services

import (
	"errors"
	"log"
	"time"

	"habitto/models"

	"gorm.io/gorm"
)

const (
	// Check-in opens 10 minutes before the start and closes 30 minutes
	// after; past that the reservation counts as missed.
	CheckinEarly    = 10 * time.Minute
	CheckinLate     = 30 * time.Minute
	MaxPerDay       = 2
	MinSlotDistance = 3 * time.Hour
)

type ReservationService struct {
	db       *gorm.DB
	ledger   *LedgerService
	timeline *TimelineService
	policy   RecoveryPolicy

	// Now is the injected clock. Tests pin it to fixed instants.
	Now func() time.Time

	// OnPost is called after a completion published a timeline post,
	// outside the reservation transaction. Wired to the websocket hub.
	OnPost func(post *models.TimelinePost)
}

func NewReservationService(db *gorm.DB) *ReservationService {
	return &ReservationService{
		db:       db,
		ledger:   NewLedgerService(db),
		timeline: NewTimelineService(db),
		policy:   NewRecoveryPolicy(),
		Now:      time.Now,
	}
}

// SetRecoveryPolicy overrides the default calendar-week cooldown.
func (s *ReservationService) SetRecoveryPolicy(p RecoveryPolicy) {
	s.policy = p
}

// Create schedules a new reservation and stakes the one-ticket deposit.
// The form layer enforces the same rules up front; they are re-checked here
// so a direct call cannot double-book a slot.
func (s *ReservationService) Create(userID uint, startAt time.Time) (*models.Reservation, error) {
	now := s.Now()

	if startAt.Before(now.Add(1 * time.Minute)) {
		return nil, ErrPastStart
	}

	user, err := s.loadUser(userID)
	if err != nil {
		return nil, err
	}

	var reservation models.Reservation
	err = s.db.Transaction(func(tx *gorm.DB) error {
		// At most 2 slots per local calendar day
		year, month, day := startAt.Date()
		dayStart := time.Date(year, month, day, 0, 0, 0, 0, startAt.Location())
		dayEnd := dayStart.AddDate(0, 0, 1)

		var dayCount int64
		if err := tx.Model(&models.Reservation{}).
			Where("user_id = ? AND start_at >= ? AND start_at < ?", userID, dayStart, dayEnd).
			Count(&dayCount).Error; err != nil {
			return err
		}
		if dayCount >= MaxPerDay {
			return ErrDailyLimit
		}

		// Keep 3 hours clear on both sides
		var conflicts int64
		if err := tx.Model(&models.Reservation{}).
			Where("user_id = ? AND start_at > ? AND start_at < ?",
				userID, startAt.Add(-MinSlotDistance), startAt.Add(MinSlotDistance)).
			Count(&conflicts).Error; err != nil {
			return err
		}
		if conflicts > 0 {
			return ErrSlotConflict
		}

		reservation = models.Reservation{
			UserID:  userID,
			TeamID:  user.TeamID,
			StartAt: startAt,
			Status:  models.ReservationScheduled,
		}
		if err := tx.Create(&reservation).Error; err != nil {
			return err
		}

		_, err := s.ledger.CreateReservationDeposit(tx, userID, reservation.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &reservation, nil
}

// CheckIn records attendance. Only valid inside [start-10m, start+30m];
// checking in a second time is a no-op, not an error.
func (s *ReservationService) CheckIn(userID, reservationID uint) (*models.Reservation, error) {
	reservation, err := s.getOwned(userID, reservationID)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	if !s.InCheckinWindow(reservation, now) {
		return nil, ErrCheckinWindow
	}

	if reservation.CheckinAt == nil {
		reservation.CheckinAt = &now
		if err := s.db.Model(reservation).Update("checkin_at", now).Error; err != nil {
			return nil, err
		}
	}

	return reservation, nil
}

// InCheckinWindow reports whether now falls inside the reservation's
// check-in window.
func (s *ReservationService) InCheckinWindow(r *models.Reservation, now time.Time) bool {
	start := r.StartAt
	return !now.Before(start.Add(-CheckinEarly)) && !now.After(start.Add(CheckinLate))
}

// Complete closes out a checked-in reservation: the deposit comes back and
// the completion bonus is added. Completing an already-completed
// reservation is a no-op returning the reservation unchanged. The timeline
// post is published best-effort after the ledger transaction commits.
func (s *ReservationService) Complete(userID, reservationID uint, activity models.ActivityType, memo string, shareDetail bool) (*models.Reservation, error) {
	reservation, err := s.getOwned(userID, reservationID)
	if err != nil {
		return nil, err
	}

	if reservation.Status == models.ReservationCompleted || reservation.CompletedAt != nil {
		return reservation, nil
	}
	if reservation.CheckinAt == nil {
		return nil, ErrNeedCheckin
	}
	if reservation.Status != models.ReservationScheduled {
		return nil, ErrNotScheduled
	}
	if !models.ValidActivityType(activity) {
		return nil, ErrInvalidActivity
	}

	now := s.Now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":        models.ReservationCompleted,
			"completed_at":  now,
			"activity_type": activity,
			"memo":          memo,
			"share_detail":  shareDetail,
		}
		if err := tx.Model(&models.Reservation{}).Where("id = ?", reservation.ID).Updates(updates).Error; err != nil {
			return err
		}

		if _, err := s.ledger.CreateDepositReturn(tx, userID, reservation.ID); err != nil {
			return err
		}
		_, err := s.ledger.CreateAdminBonus(tx, userID, reservation.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	reservation.Status = models.ReservationCompleted
	reservation.CompletedAt = &now
	reservation.ActivityType = &activity
	reservation.Memo = memo
	reservation.ShareDetail = shareDetail

	// A failed post must not undo the completed transition, so this runs
	// outside the transaction and only logs.
	if post, err := s.timeline.CreatePostForReservation(reservation); err != nil {
		log.Printf("timeline post for reservation %d failed: %v", reservation.ID, err)
	} else if post != nil && s.OnPost != nil {
		s.OnPost(post)
	}

	return reservation, nil
}

// SweepMissed marks every scheduled reservation whose start is more than 30
// minutes gone as missed, forfeiting the deposit into the team pool. It
// runs lazily on every dashboard load, so it must stay safe under
// redundant and concurrent invocation: the status filter keeps already
// missed rows out, and the ledger key suppresses duplicate pool credits.
func (s *ReservationService) SweepMissed(userID uint) ([]models.Reservation, error) {
	now := s.Now()
	deadline := now.Add(-CheckinLate)

	user, err := s.loadUser(userID)
	if err != nil {
		return nil, err
	}

	var affected []models.Reservation
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var expired []models.Reservation
		if err := tx.
			Where("user_id = ? AND status = ? AND completed_at IS NULL AND start_at < ?",
				userID, models.ReservationScheduled, deadline).
			Find(&expired).Error; err != nil {
			return err
		}

		for i := range expired {
			r := &expired[i]
			if err := tx.Model(r).Update("status", models.ReservationMissed).Error; err != nil {
				return err
			}
			r.Status = models.ReservationMissed

			// Without a team the deposit is simply lost.
			if user.TeamID != nil {
				if _, err := s.ledger.CreateFailToTeamPool(tx, *user.TeamID, r.ID); err != nil {
					return err
				}
			}
			affected = append(affected, *r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return affected, nil
}

// UseRecovery converts one missed reservation into a neutral outcome at the
// cost of one team-pool ticket, at most once per calendar week.
func (s *ReservationService) UseRecovery(userID, reservationID uint) (*models.Reservation, error) {
	reservation, err := s.getOwned(userID, reservationID)
	if err != nil {
		return nil, err
	}

	if reservation.Status != models.ReservationMissed {
		return nil, ErrNotMissed
	}
	if reservation.UsedRecovery {
		return nil, ErrAlreadyRecovered
	}

	user, err := s.loadUser(userID)
	if err != nil {
		return nil, err
	}
	if user.TeamID == nil {
		return nil, ErrNoTeam
	}

	now := s.Now()
	if !s.policy.CanUse(user.LastRecoveryAt, now) {
		return nil, ErrCooldownActive
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Reservation{}).Where("id = ?", reservation.ID).Updates(map[string]interface{}{
			"status":        models.ReservationRecovery,
			"used_recovery": true,
		}).Error; err != nil {
			return err
		}

		if err := s.ledger.CreateRecovery(tx, userID, *user.TeamID, reservation.ID); err != nil {
			return err
		}

		return tx.Model(&models.User{}).Where("id = ?", userID).Update("last_recovery_at", now).Error
	})
	if err != nil {
		return nil, err
	}

	reservation.Status = models.ReservationRecovery
	reservation.UsedRecovery = true
	return reservation, nil
}

// RecoveryAvailable reports whether the user could recover a missed
// reservation right now (team membership plus cooldown).
func (s *ReservationService) RecoveryAvailable(user *models.User) bool {
	return user.TeamID != nil && s.policy.CanUse(user.LastRecoveryAt, s.Now())
}

// ListFrom returns the user's reservations starting on or after the given
// local day, soonest first.
func (s *ReservationService) ListFrom(userID uint, dayStart time.Time) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := s.db.
		Where("user_id = ? AND start_at >= ?", userID, dayStart).
		Order("start_at ASC").
		Find(&reservations).Error
	return reservations, err
}

func (s *ReservationService) getOwned(userID, reservationID uint) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := s.db.First(&reservation, reservationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if reservation.UserID != userID {
		return nil, ErrForbidden
	}
	return &reservation, nil
}

func (s *ReservationService) loadUser(userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}
