package services_test

import (
	"fmt"
	"testing"
	"time"

	"habitto/database"
	"habitto/models"
	"habitto/services"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a fresh in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// A second pooled connection would see its own empty :memory: database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.RunMigrations(db))
	return db
}

// signupUser runs the real signup path, so the user has a team and the
// initial grant on the ledger.
func signupUser(t *testing.T, svc *services.TeamService, n int) *models.User {
	t.Helper()

	user, err := svc.Signup(
		fmt.Sprintf("user%d@example.com", n),
		"secret-password",
		fmt.Sprintf("User %d", n),
	)
	require.NoError(t, err)
	return user
}

// createBareUser inserts a user without a team and without any ledger rows.
func createBareUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{
		Email:       email,
		Password:    "x",
		DisplayName: "Bare User",
		IsActive:    true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// at is shorthand for a fixed UTC instant.
func at(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}
