// services/ledger_service.go - Ticket ledger (append-only, idempotent)
package services

import (
	"errors"
	"fmt"

	"habitto/models"

	"gorm.io/gorm"
)

// InitialGrantAmount is the ticket balance every new account starts with.
const InitialGrantAmount = 7

type LedgerService struct {
	db *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{db: db}
}

// Record writes one ledger entry at most once. If an entry already exists
// for the same (owner, source, ref) tuple, the existing entry is returned
// unchanged and no balance change happens. Reservation transitions are
// retried freely (the missed sweep runs on every dashboard load), so every
// ticket-affecting event funnels through this gate.
func (s *LedgerService) Record(tx *gorm.DB, entry models.TicketTransaction) (*models.TicketTransaction, error) {
	if tx == nil {
		tx = s.db
	}

	switch entry.OwnerType {
	case models.OwnerUser:
		if entry.UserID == nil || entry.TeamID != nil {
			return nil, ErrOwnerMismatch
		}
	case models.OwnerTeam:
		if entry.TeamID == nil || entry.UserID != nil {
			return nil, ErrOwnerMismatch
		}
	default:
		return nil, ErrOwnerMismatch
	}

	existing, err := s.find(tx, entry)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if err := tx.Create(&entry).Error; err != nil {
		// A concurrent writer inserted the same tuple first; the unique
		// index uniq_ticket_ref is the backstop. Return that row.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.find(tx, entry)
		}
		return nil, err
	}

	return &entry, nil
}

func (s *LedgerService) find(tx *gorm.DB, entry models.TicketTransaction) (*models.TicketTransaction, error) {
	var existing models.TicketTransaction
	q := tx.Where("owner_type = ? AND source = ?", entry.OwnerType, entry.Source)
	if entry.UserID != nil {
		q = q.Where("user_id = ?", *entry.UserID)
	} else {
		q = q.Where("user_id IS NULL")
	}
	if entry.TeamID != nil {
		q = q.Where("team_id = ?", *entry.TeamID)
	} else {
		q = q.Where("team_id IS NULL")
	}
	if entry.RefType != nil {
		q = q.Where("ref_type = ?", *entry.RefType)
	} else {
		q = q.Where("ref_type IS NULL")
	}
	if entry.RefID != nil {
		q = q.Where("ref_id = ?", *entry.RefID)
	} else {
		q = q.Where("ref_id IS NULL")
	}
	if err := q.First(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

// BalanceOf sums all entries for one owner. Zero when no entries exist.
func (s *LedgerService) BalanceOf(tx *gorm.DB, owner models.OwnerType, ownerID uint) (int, error) {
	if tx == nil {
		tx = s.db
	}

	var balance int
	q := tx.Model(&models.TicketTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("owner_type = ?", owner)
	if owner == models.OwnerUser {
		q = q.Where("user_id = ?", ownerID)
	} else {
		q = q.Where("team_id = ?", ownerID)
	}
	if err := q.Scan(&balance).Error; err != nil {
		return 0, err
	}
	return balance, nil
}

// UserBalance returns the user's current ticket balance.
func (s *LedgerService) UserBalance(userID uint) (int, error) {
	return s.BalanceOf(nil, models.OwnerUser, userID)
}

// TeamPoolBalance returns the team pool's current ticket balance.
func (s *LedgerService) TeamPoolBalance(teamID uint) (int, error) {
	return s.BalanceOf(nil, models.OwnerTeam, teamID)
}

func reservationRef(reservationID uint) (*string, *string) {
	refType := models.RefReservation
	refID := fmt.Sprintf("%d", reservationID)
	return &refType, &refID
}

// CreateInitialGrant gives a new account its starting tickets. The only
// entry with a null ref; signup creates it exactly once inside the signup
// transaction.
func (s *LedgerService) CreateInitialGrant(tx *gorm.DB, userID uint) (*models.TicketTransaction, error) {
	return s.Record(tx, models.TicketTransaction{
		OwnerType: models.OwnerUser,
		UserID:    &userID,
		Source:    models.SourceInitialGrant,
		Amount:    InitialGrantAmount,
	})
}

// CreateReservationDeposit stakes one ticket on a new reservation.
func (s *LedgerService) CreateReservationDeposit(tx *gorm.DB, userID, reservationID uint) (*models.TicketTransaction, error) {
	refType, refID := reservationRef(reservationID)
	return s.Record(tx, models.TicketTransaction{
		OwnerType: models.OwnerUser,
		UserID:    &userID,
		Source:    models.SourceReservationDeposit,
		RefType:   refType,
		RefID:     refID,
		Amount:    -1,
	})
}

// CreateDepositReturn gives the deposit back on completion.
func (s *LedgerService) CreateDepositReturn(tx *gorm.DB, userID, reservationID uint) (*models.TicketTransaction, error) {
	refType, refID := reservationRef(reservationID)
	return s.Record(tx, models.TicketTransaction{
		OwnerType: models.OwnerUser,
		UserID:    &userID,
		Source:    models.SourceDepositReturn,
		RefType:   refType,
		RefID:     refID,
		Amount:    1,
	})
}

// CreateAdminBonus adds the completion reward on top of the deposit return.
func (s *LedgerService) CreateAdminBonus(tx *gorm.DB, userID, reservationID uint) (*models.TicketTransaction, error) {
	refType, refID := reservationRef(reservationID)
	return s.Record(tx, models.TicketTransaction{
		OwnerType: models.OwnerUser,
		UserID:    &userID,
		Source:    models.SourceAdminBonus,
		RefType:   refType,
		RefID:     refID,
		Amount:    1,
	})
}

// CreateFailToTeamPool moves a forfeited deposit into the team pool when a
// reservation is missed.
func (s *LedgerService) CreateFailToTeamPool(tx *gorm.DB, teamID, reservationID uint) (*models.TicketTransaction, error) {
	refType, refID := reservationRef(reservationID)
	return s.Record(tx, models.TicketTransaction{
		OwnerType: models.OwnerTeam,
		TeamID:    &teamID,
		Source:    models.SourceFailToTeamPool,
		RefType:   refType,
		RefID:     refID,
		Amount:    1,
	})
}

// CreateRecovery moves one ticket from the team pool back to the user.
// Both entries share the reservation ref and differ only in owner, so the
// pair is idempotent as a unit.
func (s *LedgerService) CreateRecovery(tx *gorm.DB, userID, teamID, reservationID uint) error {
	refType, refID := reservationRef(reservationID)

	if _, err := s.Record(tx, models.TicketTransaction{
		OwnerType: models.OwnerUser,
		UserID:    &userID,
		Source:    models.SourceRecovery,
		RefType:   refType,
		RefID:     refID,
		Amount:    1,
	}); err != nil {
		return err
	}

	_, err := s.Record(tx, models.TicketTransaction{
		OwnerType: models.OwnerTeam,
		TeamID:    &teamID,
		Source:    models.SourceRecovery,
		RefType:   refType,
		RefID:     refID,
		Amount:    -1,
	})
	return err
}
