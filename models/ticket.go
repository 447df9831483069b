// models/ticket.go - Ticket ledger
package models

import "time"

type OwnerType string

const (
	OwnerUser OwnerType = "USER"
	OwnerTeam OwnerType = "TEAM"
)

type TicketSource string

const (
	SourceInitialGrant       TicketSource = "INITIAL_GRANT"
	SourceReservationDeposit TicketSource = "RESERVATION_DEPOSIT"
	SourceDepositReturn      TicketSource = "DEPOSIT_RETURN"
	SourceAdminBonus         TicketSource = "ADMIN_BONUS"
	SourceFailToTeamPool     TicketSource = "FAIL_TO_TEAM_POOL"
	SourceRecovery           TicketSource = "RECOVERY"
)

// RefReservation is the ref_type used for every reservation-keyed entry.
const RefReservation = "reservation"

// TicketTransaction is one immutable row of the ticket ledger. Rows are
// never updated or deleted; balances are always sums over rows.
//
// The unique index uniq_ticket_ref over (owner_type, user_id, team_id,
// source, ref_type, ref_id) is the idempotency barrier: recording the same
// logical event twice yields the existing row instead of a second balance
// change. Half the columns are NULL on every row (USER rows have no team,
// TEAM rows no user, the initial grant no refs) and unique indexes treat
// NULLs as distinct, so the migration builds it as an expression index
// over COALESCEd columns instead of a gorm tag.
type TicketTransaction struct {
	ID uint `json:"id" gorm:"primaryKey"`

	OwnerType OwnerType `json:"owner_type" gorm:"size:10;not null"`

	// Exactly one of UserID/TeamID is set, matching OwnerType. Guarded by a
	// CHECK constraint in the migration.
	UserID *uint `json:"user_id,omitempty" gorm:"index"`
	User   *User `json:"-" gorm:"foreignKey:UserID"`
	TeamID *uint `json:"team_id,omitempty" gorm:"index"`
	Team   *Team `json:"-" gorm:"foreignKey:TeamID"`

	Source  TicketSource `json:"source" gorm:"size:30;not null"`
	RefType *string      `json:"ref_type,omitempty" gorm:"size:30"`
	RefID   *string      `json:"ref_id,omitempty" gorm:"size:64"`

	Amount int `json:"amount" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
}

func (TicketTransaction) TableName() string {
	return "ticket_transactions"
}
