// handlers/auth.go
package handlers

import (
	"os"
	"time"

	"habitto/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

type SignupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Success bool     `json:"success"`
	Token   string   `json:"token,omitempty"`
	User    UserInfo `json:"user,omitempty"`
	Error   string   `json:"error,omitempty"`
}

type UserInfo struct {
	ID          uint      `json:"id"`
	PublicID    string    `json:"public_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	TeamID      *uint     `json:"team_id,omitempty"`
	TeamName    string    `json:"team_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func userInfo(user *models.User) UserInfo {
	info := UserInfo{
		ID:          user.ID,
		PublicID:    user.PublicID.String(),
		Email:       user.Email,
		DisplayName: user.DisplayName,
		TeamID:      user.TeamID,
		CreatedAt:   user.CreatedAt,
	}
	if user.Team != nil {
		info.TeamName = user.Team.Name
	}
	return info
}

// Signup registers a new account. Team assignment and the initial ticket
// grant happen inside the same transaction as user creation.
func Signup(c *fiber.Ctx) error {
	var req SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(AuthResponse{Success: false, Error: "Invalid request body"})
	}

	user, err := teamService.Signup(req.Email, req.Password, req.DisplayName)
	if err != nil {
		return fail(c, err)
	}

	token, err := generateToken(user)
	if err != nil {
		return c.Status(500).JSON(AuthResponse{Success: false, Error: "Failed to generate token"})
	}

	return c.Status(201).JSON(AuthResponse{
		Success: true,
		Token:   token,
		User:    userInfo(user),
	})
}

// Login authenticates an existing account.
func Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(AuthResponse{Success: false, Error: "Invalid request body"})
	}

	user, err := teamService.Authenticate(req.Email, req.Password)
	if err != nil {
		return c.Status(401).JSON(AuthResponse{Success: false, Error: "Invalid credentials"})
	}

	token, err := generateToken(user)
	if err != nil {
		return c.Status(500).JSON(AuthResponse{Success: false, Error: "Failed to generate token"})
	}

	return c.JSON(AuthResponse{
		Success: true,
		Token:   token,
		User:    userInfo(user),
	})
}

// GetCurrentUser returns the caller's profile, team and both balances.
func GetCurrentUser(c *fiber.Ctx) error {
	user, err := teamService.GetUser(currentUserID(c))
	if err != nil {
		return fail(c, err)
	}

	userBalance, err := ledgerService.UserBalance(user.ID)
	if err != nil {
		return fail(c, err)
	}

	teamPool := 0
	if user.TeamID != nil {
		teamPool, err = ledgerService.TeamPoolBalance(*user.TeamID)
		if err != nil {
			return fail(c, err)
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    userInfo(user),
		"balances": fiber.Map{
			"user_tickets": userBalance,
			"team_pool":    teamPool,
		},
	})
}

func generateToken(user *models.User) (string, error) {
	jwtSecret := os.Getenv("JWT_SECRET")

	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     time.Now().Add(7 * 24 * time.Hour).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}
