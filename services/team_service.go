// services/team_service.go - Team assignment and signup
package services

import (
	"errors"
	"fmt"
	"strings"

	"habitto/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TeamService struct {
	db     *gorm.DB
	ledger *LedgerService
}

func NewTeamService(db *gorm.DB) *TeamService {
	return &TeamService{db: db, ledger: NewLedgerService(db)}
}

// AssignTeam picks the team a new user joins. Open teams fill oldest-first:
// the scan orders by member count then id and takes the first with room.
// Two concurrent signups must not both see member_count=7 on the same team
// and overshoot capacity, so the candidate row stays exclusively locked for
// the whole signup transaction.
func (s *TeamService) AssignTeam(tx *gorm.DB) (*models.Team, error) {
	q := tx
	// SQLite (used by the test suites) serializes writers on its own and
	// rejects FOR UPDATE outright.
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var team models.Team
	err := q.
		Where("is_open = ?", true).
		Where("(SELECT COUNT(*) FROM users WHERE users.team_id = teams.id) < ?", models.TeamCapacity).
		Order("(SELECT COUNT(*) FROM users WHERE users.team_id = teams.id) ASC, id ASC").
		First(&team).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		// All open teams are full: start a new one. It begins empty, so no
		// closing check is needed. The name carries its own generated id.
		team = models.Team{Name: "Team", IsOpen: true}
		if err := tx.Create(&team).Error; err != nil {
			return nil, err
		}
		team.Name = fmt.Sprintf("Team-%04d", team.ID)
		if err := tx.Model(&team).Update("name", team.Name).Error; err != nil {
			return nil, err
		}
		return &team, nil
	}
	if err != nil {
		return nil, err
	}

	// Close the team when this signup is its 8th member.
	var count int64
	if err := tx.Model(&models.User{}).Where("team_id = ?", team.ID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count+1 >= models.TeamCapacity {
		team.IsOpen = false
		if err := tx.Model(&team).Update("is_open", false).Error; err != nil {
			return nil, err
		}
	}

	return &team, nil
}

// Signup creates the user, assigns a team and records the initial ticket
// grant, all in one transaction.
func (s *TeamService) Signup(email, password, displayName string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" || displayName == "" {
		return nil, ErrMissingFields
	}

	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	var user models.User
	err = s.db.Transaction(func(tx *gorm.DB) error {
		team, err := s.AssignTeam(tx)
		if err != nil {
			return err
		}

		user = models.User{
			Email:       email,
			Password:    string(hash),
			DisplayName: displayName,
			TeamID:      &team.ID,
			IsActive:    true,
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		user.Team = team

		_, err = s.ledger.CreateInitialGrant(tx, user.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	return &user, nil
}

// Authenticate verifies email+password and returns the user.
func (s *TeamService) Authenticate(email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	if err := s.db.Preload("Team").Where("email = ? AND is_active = ?", email, true).First(&user).Error; err != nil {
		return nil, ErrNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrNotFound
	}
	return &user, nil
}

// GetUser loads a user with their team.
func (s *TeamService) GetUser(userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.Preload("Team").First(&user, userID).Error; err != nil {
		return nil, ErrNotFound
	}
	return &user, nil
}

// MemberCount returns the number of users currently on a team.
func (s *TeamService) MemberCount(teamID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.User{}).Where("team_id = ?", teamID).Count(&count).Error
	return count, err
}
