package model

import "gorm.io/gorm"

// AutoMigrate runs GORM auto-migration for all models and creates custom indexes.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&Circle{},
		&Membership{},
		&Invite{},
		&Post{},
		&Comment{},
	); err != nil {
		return err
	}

	// At most one active owner per circle.
	return db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_circle_members_single_owner " +
			"ON circle_members (circle_id) WHERE role = 'owner' AND status = 'active'",
	).Error
}
