// models/timeline.go
package models

import "time"

type PostVisibility string

const (
	VisibilitySummaryOnly PostVisibility = "summary_only"
	VisibilityWithDetail  PostVisibility = "with_detail"
)

type TimelinePost struct {
	ID     uint  `json:"id" gorm:"primaryKey"`
	UserID uint  `json:"user_id" gorm:"not null;index"`
	User   *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
	TeamID uint  `json:"team_id" gorm:"not null;index"`
	Team   *Team `json:"-" gorm:"foreignKey:TeamID"`

	// One post per reservation
	ReservationID uint         `json:"reservation_id" gorm:"not null;uniqueIndex"`
	Reservation   *Reservation `json:"reservation,omitempty" gorm:"foreignKey:ReservationID"`

	Visibility PostVisibility `json:"visibility" gorm:"size:16;not null;default:'summary_only'"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Likes []Like `json:"likes,omitempty" gorm:"foreignKey:PostID"`
}

func (TimelinePost) TableName() string {
	return "timeline_posts"
}

type Like struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	UserID uint `json:"user_id" gorm:"not null;uniqueIndex:uniq_like_user_post"`
	PostID uint `json:"post_id" gorm:"not null;uniqueIndex:uniq_like_user_post"`

	CreatedAt time.Time `json:"created_at"`
}

func (Like) TableName() string {
	return "likes"
}
