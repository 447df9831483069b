// handlers/common.go
package handlers

import (
	"errors"
	"log"

	"habitto/database"
	"habitto/services"

	"github.com/gofiber/fiber/v2"
)

var (
	teamService        *services.TeamService
	reservationService *services.ReservationService
	timelineService    *services.TimelineService
	ledgerService      *services.LedgerService
)

// Init wires the handler-level services. Must run after database.InitDB.
func Init() {
	db := database.GetDB()
	teamService = services.NewTeamService(db)
	reservationService = services.NewReservationService(db)
	timelineService = services.NewTimelineService(db)
	ledgerService = services.NewLedgerService(db)

	// Completed reservations fan out to connected teammates
	reservationService.OnPost = BroadcastPost

	log.Println("✅ Handlers initialized")
}

func currentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userId").(uint)
	return id
}

// fail maps a service error to its HTTP status.
func fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		status = fiber.StatusForbidden
	case errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrMissingFields),
		errors.Is(err, services.ErrPastStart),
		errors.Is(err, services.ErrDailyLimit),
		errors.Is(err, services.ErrSlotConflict),
		errors.Is(err, services.ErrInvalidActivity):
		status = fiber.StatusBadRequest
	case errors.Is(err, services.ErrCheckinWindow),
		errors.Is(err, services.ErrNotScheduled),
		errors.Is(err, services.ErrNotMissed),
		errors.Is(err, services.ErrAlreadyRecovered),
		errors.Is(err, services.ErrCooldownActive),
		errors.Is(err, services.ErrNoTeam):
		status = fiber.StatusConflict
	case errors.Is(err, services.ErrNeedCheckin):
		status = fiber.StatusPreconditionFailed
	}

	message := err.Error()
	if status == fiber.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		message = "Internal server error"
	}

	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}
