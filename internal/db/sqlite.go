package db

import (
	"fmt"
	"log"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/membrs/membrs/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options tunes the SQLite connection.
type Options struct {
	MaxOpenConns int
	LogSQL       bool
}

// InitDB initializes the SQLite database connection and runs migrations.
func InitDB(dbPath string, opts Options) (*gorm.DB, error) {
	level := logger.Warn
	if opts.LogSQL {
		level = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(dsn(dbPath)), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbPath, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Printf("🗄️ Database ready at %s", dbPath)
	return db, nil
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.ApplicationData{}, &models.SuperUser{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// dsn adds busy-timeout and WAL pragmas unless the caller passed its own query.
func dsn(path string) string {
	if strings.Contains(path, "?") || path == ":memory:" {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}
