// database/migrate.go - Database Migration Runner
package database

import (
	"log"

	"habitto/models"

	"gorm.io/gorm"
)

// RunMigrations migrates all tables and enforces the ledger constraints.
// Takes the handle as a parameter so the service test suites can run the
// same schema against their own database.
func RunMigrations(db *gorm.DB) error {
	log.Println("🔄 Running database migrations...")

	if err := db.AutoMigrate(
		&models.Team{},
		&models.User{},
		&models.Reservation{},
		&models.TicketTransaction{},
		&models.TimelinePost{},
		&models.Like{},
	); err != nil {
		return err
	}

	createIndexes(db)

	// Idempotency barrier for the ticket ledger. Unique indexes treat NULL
	// as distinct, and every ledger row has NULLs among the tuple columns
	// (user XOR team, refs null on the initial grant), so a plain composite
	// index would never reject a duplicate. COALESCE folds the NULLs into
	// comparable values; 0 and '' cannot collide with real ids. Works on
	// both postgres and sqlite.
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS uniq_ticket_ref ON ticket_transactions (
			owner_type,
			COALESCE(user_id, 0),
			COALESCE(team_id, 0),
			source,
			COALESCE(ref_type, ''),
			COALESCE(ref_id, '')
		)`).Error; err != nil {
		return err
	}

	// Owner XOR: USER rows carry only user_id, TEAM rows only team_id.
	// SQLite (tests) cannot ALTER TABLE ADD CONSTRAINT; the service layer
	// validates the same rule before every insert.
	if db.Dialector.Name() == "postgres" {
		db.Exec(`
			ALTER TABLE ticket_transactions
			DROP CONSTRAINT IF EXISTS ticket_owner_match`)
		db.Exec(`
			ALTER TABLE ticket_transactions
			ADD CONSTRAINT ticket_owner_match CHECK (
				(owner_type = 'USER' AND user_id IS NOT NULL AND team_id IS NULL) OR
				(owner_type = 'TEAM' AND team_id IS NOT NULL AND user_id IS NULL)
			)`)
	}

	log.Println("✅ All migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) {
	db.Exec("CREATE INDEX IF NOT EXISTS idx_reservations_user_status ON reservations(user_id, status)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_reservations_user_start ON reservations(user_id, start_at)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_tickets_user ON ticket_transactions(user_id)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_tickets_team ON ticket_transactions(team_id)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_timeline_team_created ON timeline_posts(team_id, created_at DESC)")
}
