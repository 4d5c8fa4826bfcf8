package database

import (
	"strings"

	"github.com/sandeepkv93/erp-identity-core/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to Postgres, or to SQLite when DATABASE_URL uses a
// "file:" or "sqlite://" DSN (local runs and tests).
func Open(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}
	dsn := cfg.DatabaseURL
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		return gorm.Open(sqlite.Open(strings.TrimPrefix(dsn, "sqlite://")), gormCfg)
	case strings.HasPrefix(dsn, "file:"):
		return gorm.Open(sqlite.Open(dsn), gormCfg)
	default:
		return gorm.Open(postgres.Open(dsn), gormCfg)
	}
}
