// models/user.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	PublicID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"public_id"`

	// Stored lowercased so uniqueness is case-insensitive
	Email       string `gorm:"uniqueIndex;not null" json:"email"`
	Password    string `gorm:"not null" json:"-"`
	DisplayName string `gorm:"size:50;not null" json:"display_name"`

	TeamID *uint `gorm:"index" json:"team_id,omitempty"`
	Team   *Team `gorm:"foreignKey:TeamID" json:"team,omitempty"`

	LastRecoveryAt *time.Time `json:"last_recovery_at,omitempty"`

	IsActive bool `gorm:"default:true" json:"is_active"`
	IsAdmin  bool `gorm:"default:false" json:"is_admin"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Reservations []Reservation `gorm:"foreignKey:UserID" json:"reservations,omitempty"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.PublicID == uuid.Nil {
		u.PublicID = uuid.New()
	}
	return nil
}
