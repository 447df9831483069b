// models/reservation.go
package models

import "time"

type ReservationStatus string

const (
	ReservationScheduled ReservationStatus = "scheduled"
	ReservationCompleted ReservationStatus = "completed"
	ReservationMissed    ReservationStatus = "missed"
	ReservationRecovery  ReservationStatus = "recovery"
)

type ActivityType string

const (
	ActivityWalk    ActivityType = "walk"
	ActivityRun     ActivityType = "run"
	ActivityWorkout ActivityType = "workout"
	ActivityOther   ActivityType = "other"
)

// ValidActivityType reports whether v is one of the accepted activity kinds.
func ValidActivityType(v ActivityType) bool {
	switch v {
	case ActivityWalk, ActivityRun, ActivityWorkout, ActivityOther:
		return true
	}
	return false
}

type Reservation struct {
	ID     uint  `json:"id" gorm:"primaryKey"`
	UserID uint  `json:"user_id" gorm:"not null;index"`
	User   *User `json:"user,omitempty" gorm:"foreignKey:UserID"`

	// Snapshot of the user's team at creation/completion time
	TeamID *uint `json:"team_id,omitempty" gorm:"index"`
	Team   *Team `json:"team,omitempty" gorm:"foreignKey:TeamID"`

	StartAt time.Time         `json:"start_at" gorm:"not null;index"`
	Status  ReservationStatus `json:"status" gorm:"size:16;not null;default:'scheduled';index"`

	CheckinAt   *time.Time `json:"checkin_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	ActivityType *ActivityType `json:"activity_type,omitempty" gorm:"size:16"`
	Memo         string        `json:"memo" gorm:"type:text"`
	ShareDetail  bool          `json:"share_detail" gorm:"default:false"`
	UsedRecovery bool          `json:"used_recovery" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Reservation) TableName() string {
	return "reservations"
}
