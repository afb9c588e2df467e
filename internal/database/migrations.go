package database

import (
	"fmt"
	"log/slog"

	"github.com/yukikurage/taskflow-api/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the tables and the secondary indexes.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Task{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := AddIndexes(db); err != nil {
		return fmt.Errorf("failed to add indexes: %w", err)
	}

	if err := CaseSensitiveUsernames(db); err != nil {
		return fmt.Errorf("failed to set username collation: %w", err)
	}
	return nil
}

// CaseSensitiveUsernames gives users.username a binary collation on mysql,
// whose default collation compares case-insensitively. Equality and the
// unique index then tell "Alice" and "alice" apart as on the other dialects.
func CaseSensitiveUsernames(db *gorm.DB) error {
	if db.Dialector.Name() != "mysql" {
		return nil
	}
	return db.Exec("ALTER TABLE users MODIFY username varchar(50) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL").Error
}

// AddIndexes adds composite indexes that struct tags do not describe.
func AddIndexes(db *gorm.DB) error {
	indexes := []struct {
		table   string
		name    string
		columns string
	}{
		// Task listing filtered by owner, newest first
		{"tasks", "idx_tasks_user_id_created_at", "user_id, created_at"},
		{"tasks", "idx_tasks_status_created_at", "status, created_at"},

		// Audit history of an actor
		{"audit_logs", "idx_audit_logs_user_id_created_at", "user_id, created_at"},
	}

	migrator := db.Migrator()
	for _, idx := range indexes {
		if migrator.HasIndex(idx.table, idx.name) {
			slog.Debug("index already exists, skipping", "index", idx.name)
			continue
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, idx.columns)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}

		slog.Info("created index", "index", idx.name, "table", idx.table, "columns", idx.columns)
	}

	return nil
}
