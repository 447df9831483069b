// models/team.go
package models

import "time"

// TeamCapacity is the hard member limit. A team is open until it admits
// its 8th member; once closed it never reopens.
const TeamCapacity = 8

type Team struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	Name   string `json:"name" gorm:"not null;size:50"`
	IsOpen bool   `json:"is_open" gorm:"default:true;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Members []User `json:"members,omitempty" gorm:"foreignKey:TeamID"`
}

func (Team) TableName() string {
	return "teams"
}
