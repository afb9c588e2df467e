package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yukikurage/taskflow-api/internal/config"
	"github.com/yukikurage/taskflow-api/internal/logging"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the database selected by cfg.DBDriver and applies the pool limits.
func Connect(cfg *config.Config, slogger *slog.Logger) (*gorm.DB, error) {
	dialector, err := Dialector(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return nil, err
	}

	gormLogger := logger.New(slog.NewLogLogger(slogger.Handler(), slog.LevelInfo), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logging.GormLevel(cfg.LogLevel),
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "mysql", "":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Ping checks that the database answers within ctx.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
