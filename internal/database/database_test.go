package database_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/taskflow-api/internal/config"
	"github.com/yukikurage/taskflow-api/internal/database"
	"github.com/yukikurage/taskflow-api/internal/logging"
	"github.com/yukikurage/taskflow-api/internal/models"
	"github.com/yukikurage/taskflow-api/internal/testutil"
	"github.com/yukikurage/taskflow-api/internal/utils"
)

func TestMigrate_CreatesTablesAndIndexes(t *testing.T) {
	db := testutil.NewDB(t)
	migrator := db.Migrator()

	for _, table := range []any{&models.User{}, &models.Task{}, &models.AuditLog{}} {
		assert.True(t, migrator.HasTable(table))
	}
	for table, index := range map[string]string{
		"tasks":      "idx_tasks_user_id_created_at",
		"audit_logs": "idx_audit_logs_user_id_created_at",
	} {
		assert.True(t, migrator.HasIndex(table, index), index)
	}
	assert.True(t, migrator.HasIndex("tasks", "idx_tasks_status_created_at"))
	assert.True(t, migrator.HasIndex(&models.AuditLog{}, "idx_audit_logs_resource"))

	// A second run finds everything in place.
	require.NoError(t, database.Migrate(db))
}

func TestCaseSensitiveUsernames(t *testing.T) {
	db, mock, _ := testutil.NewMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE users MODIFY username varchar(50) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, database.CaseSensitiveUsernames(db))
	assert.NoError(t, mock.ExpectationsWereMet())

	// sqlite compares case-sensitively already; nothing is executed.
	require.NoError(t, database.CaseSensitiveUsernames(testutil.NewDB(t)))
}

func TestDialector(t *testing.T) {
	for _, driver := range []string{"", "mysql", "postgres", "sqlite"} {
		d, err := database.Dialector(driver, "dsn")
		require.NoError(t, err, driver)
		assert.NotNil(t, d)
	}

	_, err := database.Dialector("oracle", "dsn")
	assert.EqualError(t, err, `unsupported database driver "oracle"`)
}

func TestConnect_Sqlite(t *testing.T) {
	cfg := &config.Config{
		DBDriver:       "sqlite",
		DatabaseURL:    "file::memory:",
		DBMaxOpenConns: 1,
		DBMaxIdleConns: 1,
		LogLevel:       "error",
	}

	db, err := database.Connect(cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	require.NoError(t, database.Ping(context.Background(), db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
}

func TestPing_Failure(t *testing.T) {
	db, mock, _ := testutil.NewMockDB(t)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	err := database.Ping(context.Background(), db)

	assert.EqualError(t, err, "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScopes(t *testing.T) {
	db := testutil.NewDB(t)
	for i := 0; i < 5; i++ {
		testutil.CreateTask(t, db, "task", models.TaskStatusPending, nil)
	}

	var tasks []models.Task
	err := db.Scopes(
		database.NewestFirst("tasks"),
		database.Paginate(utils.NewPaginationParams(2, 2, true)),
	).Find(&tasks).Error
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, uint64(3), tasks[0].ID)
	assert.Equal(t, uint64(2), tasks[1].ID)

	err = db.Scopes(database.Paginate(utils.NewPaginationParams(2, 2, false))).Find(&tasks).Error
	require.NoError(t, err)
	assert.Len(t, tasks, 5)
}
