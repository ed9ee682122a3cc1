package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// InitDB opens the batch-registry database and runs migrations. The driver is
// picked from the DSN: postgres:// URLs use PostgreSQL, anything else is
// treated as a SQLite file path.
func InitDB(dsn string) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	var db *gorm.DB
	var err error

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
	} else {
		if dir := filepath.Dir(dsn); dir != "." {
			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				return nil, fmt.Errorf("create registry directory: %w", mkErr)
			}
		}
		db, err = gorm.Open(sqlite.Open(dsn), gormConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("open registry database: %w", err)
	}

	if err := db.AutoMigrate(&BatchRecord{}); err != nil {
		return nil, fmt.Errorf("migrate registry schema: %w", err)
	}
	return db, nil
}
