package database

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mohsenfayyazi/billder/models"
)

var DB *gorm.DB

// Options selects the local session store.
type Options struct {
	Driver   string // sqlite or postgres
	DSN      string
	LogLevel string // silent, error, warn, info
}

// Open connects to the store and migrates it.
func Open(opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch opts.Driver {
	case "sqlite", "":
		dialector = sqlite.Open(opts.DSN)
	case "postgres":
		dialector = postgres.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(opts.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if opts.Driver != "postgres" {
		// sqlite serializes writers; one connection also keeps
		// in-memory databases from splitting per connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	log.Debug().Str("driver", opts.Driver).Msg("running database migrations")
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// ConnectDatabase opens the store and installs it as DB.
func ConnectDatabase(opts Options) error {
	db, err := Open(opts)
	if err != nil {
		return err
	}
	DB = db
	log.Info().Str("driver", opts.Driver).Msg("session store ready")
	return nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.StorageEntry{}); err != nil {
		return fmt.Errorf("failed to auto migrate database: %w", err)
	}
	return nil
}

// ClearDBAndMigrate drops every stored session and re-runs migrations.
func ClearDBAndMigrate(db *gorm.DB) error {
	log.Warn().Msg("clearing session store")
	if err := db.Migrator().DropTable(&models.StorageEntry{}); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	if err := Migrate(db); err != nil {
		return fmt.Errorf("failed to re-migrate database: %w", err)
	}
	return nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
