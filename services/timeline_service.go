// services/timeline_service.go - Team timeline and likes
package services

import (
	"errors"

	"habitto/models"

	"gorm.io/gorm"
)

type TimelineService struct {
	db *gorm.DB
}

func NewTimelineService(db *gorm.DB) *TimelineService {
	return &TimelineService{db: db}
}

// CreatePostForReservation publishes a completed reservation to the owner's
// team timeline. One post per reservation; calling again returns the
// existing post. Returns (nil, nil) when the user has no team.
func (s *TimelineService) CreatePostForReservation(reservation *models.Reservation) (*models.TimelinePost, error) {
	var existing models.TimelinePost
	err := s.db.Where("reservation_id = ?", reservation.ID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var user models.User
	if err := s.db.First(&user, reservation.UserID).Error; err != nil {
		return nil, err
	}
	if user.TeamID == nil {
		return nil, nil
	}

	// The reservation carries the team it was completed under.
	if reservation.TeamID == nil || *reservation.TeamID != *user.TeamID {
		if err := s.db.Model(&models.Reservation{}).Where("id = ?", reservation.ID).
			Update("team_id", *user.TeamID).Error; err != nil {
			return nil, err
		}
		reservation.TeamID = user.TeamID
	}

	visibility := models.VisibilitySummaryOnly
	if reservation.ShareDetail {
		visibility = models.VisibilityWithDetail
	}

	post := models.TimelinePost{
		UserID:        reservation.UserID,
		TeamID:        *user.TeamID,
		ReservationID: reservation.ID,
		Visibility:    visibility,
	}
	if err := s.db.Create(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if err := s.db.Where("reservation_id = ?", reservation.ID).First(&existing).Error; err == nil {
				return &existing, nil
			}
		}
		return nil, err
	}

	return &post, nil
}

// TeamTimeline returns the newest posts for a team with users, reservations
// and likes preloaded.
func (s *TimelineService) TeamTimeline(teamID uint, limit int) ([]models.TimelinePost, error) {
	if limit <= 0 {
		limit = 20
	}

	var posts []models.TimelinePost
	err := s.db.
		Where("team_id = ?", teamID).
		Preload("User").
		Preload("Reservation").
		Preload("Likes").
		Order("created_at DESC").
		Limit(limit).
		Find(&posts).Error
	return posts, err
}

// LikedPostIDs returns the ids of this team's posts the user has liked.
func (s *TimelineService) LikedPostIDs(userID, teamID uint) ([]uint, error) {
	var ids []uint
	err := s.db.Model(&models.Like{}).
		Joins("JOIN timeline_posts ON timeline_posts.id = likes.post_id").
		Where("likes.user_id = ? AND timeline_posts.team_id = ?", userID, teamID).
		Pluck("likes.post_id", &ids).Error
	return ids, err
}

// ToggleLike adds or removes the user's like on a post. Liking your own
// post is not allowed. Returns whether the post is liked afterwards.
func (s *TimelineService) ToggleLike(userID, postID uint) (bool, error) {
	var post models.TimelinePost
	if err := s.db.First(&post, postID).Error; err != nil {
		return false, ErrNotFound
	}
	if post.UserID == userID {
		return false, ErrForbidden
	}

	var like models.Like
	err := s.db.Where("user_id = ? AND post_id = ?", userID, postID).First(&like).Error
	if err == nil {
		if err := s.db.Delete(&like).Error; err != nil {
			return false, err
		}
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	like = models.Like{UserID: userID, PostID: postID}
	if err := s.db.Create(&like).Error; err != nil {
		// Concurrent double-tap; the unique pair index keeps one row.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return true, nil
		}
		return false, err
	}
	return true, nil
}
