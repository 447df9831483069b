// handlers/reservations.go
package handlers

import (
	"time"

	"habitto/models"

	"github.com/gofiber/fiber/v2"
)

type CreateReservationRequest struct {
	StartAt time.Time `json:"start_at"`
}

type CompleteReservationRequest struct {
	ActivityType models.ActivityType `json:"activity_type"`
	Memo         string              `json:"memo"`
	ShareDetail  bool                `json:"share_detail"`
}

// CreateReservation schedules a new slot and stakes the deposit.
func CreateReservation(c *fiber.Ctx) error {
	var req CreateReservationRequest
	if err := c.BodyParser(&req); err != nil || req.StartAt.IsZero() {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": "start_at is required"})
	}

	reservation, err := reservationService.Create(currentUserID(c), req.StartAt)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(201).JSON(fiber.Map{"success": true, "reservation": reservation})
}

// CheckInReservation records attendance inside the check-in window.
func CheckInReservation(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": "Invalid reservation id"})
	}

	reservation, err := reservationService.CheckIn(currentUserID(c), uint(id))
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "reservation": reservation})
}

// CompleteReservation finishes a checked-in reservation and records the
// activity details.
func CompleteReservation(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": "Invalid reservation id"})
	}

	var req CompleteReservationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": "Invalid request body"})
	}

	reservation, err := reservationService.Complete(
		currentUserID(c), uint(id), req.ActivityType, req.Memo, req.ShareDetail)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "reservation": reservation})
}

// UseRecovery converts a missed reservation into a recovered one.
func UseRecovery(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": "Invalid reservation id"})
	}

	reservation, err := reservationService.UseRecovery(currentUserID(c), uint(id))
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "reservation": reservation})
}

type ReservationItem struct {
	Reservation       models.Reservation `json:"reservation"`
	IsToday           bool               `json:"is_today"`
	Completed         bool               `json:"completed"`
	CheckedIn         bool               `json:"checked_in"`
	CanCheckin        bool               `json:"can_checkin"`
	Missed            bool               `json:"missed"`
	Recovery          bool               `json:"recovery"`
	RecoveryAvailable bool               `json:"recovery_available"`
}

// Dashboard sweeps expired reservations, then returns today's and upcoming
// reservations with per-item action flags plus the team timeline.
func Dashboard(c *fiber.Ctx) error {
	userID := currentUserID(c)

	// Lazy sweep: idempotent, safe to run on every load
	if _, err := reservationService.SweepMissed(userID); err != nil {
		return fail(c, err)
	}

	user, err := teamService.GetUser(userID)
	if err != nil {
		return fail(c, err)
	}

	now := time.Now()
	year, month, day := now.Date()
	today := time.Date(year, month, day, 0, 0, 0, 0, now.Location())

	reservations, err := reservationService.ListFrom(userID, today)
	if err != nil {
		return fail(c, err)
	}

	recoveryAvailable := reservationService.RecoveryAvailable(user)

	items := make([]ReservationItem, 0, len(reservations))
	for _, r := range reservations {
		items = append(items, ReservationItem{
			Reservation:       r,
			IsToday:           r.StartAt.In(now.Location()).Format("2006-01-02") == today.Format("2006-01-02"),
			Completed:         r.Status == models.ReservationCompleted || r.CompletedAt != nil,
			CheckedIn:         r.CheckinAt != nil,
			CanCheckin:        r.CheckinAt == nil && reservationService.InCheckinWindow(&r, now),
			Missed:            r.Status == models.ReservationMissed,
			Recovery:          r.Status == models.ReservationRecovery,
			RecoveryAvailable: recoveryAvailable,
		})
	}

	response := fiber.Map{
		"success":      true,
		"reservations": items,
		"team":         user.Team,
	}

	if user.TeamID != nil {
		posts, err := timelineService.TeamTimeline(*user.TeamID, 20)
		if err != nil {
			return fail(c, err)
		}
		liked, err := timelineService.LikedPostIDs(userID, *user.TeamID)
		if err != nil {
			return fail(c, err)
		}
		response["timeline"] = posts
		response["liked_post_ids"] = liked
	}

	return c.JSON(response)
}
