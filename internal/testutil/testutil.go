// Package testutil provides database fixtures shared by package tests.
package testutil

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/taskflow-api/internal/database"
	"github.com/yukikurage/taskflow-api/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory sqlite database. A single connection is
// kept open so every query sees the same memory database; code running inside
// a transaction must use the transaction handle.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	require.NoError(t, database.Migrate(db))
	return db
}

// NewMockDB returns a gorm handle over go-sqlmock speaking the mysql dialect.
func NewMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Silent),
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)

	return db, mock, sqlDB
}

func CreateUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hashedpassword",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func CreateTask(t *testing.T, db *gorm.DB, title string, status models.TaskStatus, userID *uint64) *models.Task {
	t.Helper()

	task := &models.Task{
		Title:  title,
		Status: status,
		UserID: userID,
	}
	require.NoError(t, db.Create(task).Error)
	return task
}

func AuditLogs(t *testing.T, db *gorm.DB) []models.AuditLog {
	t.Helper()

	var logs []models.AuditLog
	require.NoError(t, db.Order("id ASC").Find(&logs).Error)
	return logs
}
