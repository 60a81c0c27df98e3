package database

import (
	"os"
	"path/filepath"

	"github.com/daniele122008/hal-fuzz-extra/config"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const crashDBName = "crashes.db"

// NewCrashDB opens the per-host crash index, a sqlite file inside the
// crash store directory. The schema is migrated in place on open.
func NewCrashDB(appConfig *config.AppConfig, logger *zap.Logger) *gorm.DB {
	if err := os.MkdirAll(appConfig.CrashDir, 0755); err != nil {
		logger.Fatal("failed to create crash store directory", zap.Error(err))
	}

	dbPath := filepath.Join(appConfig.CrashDir, crashDBName)
	// TranslateError so duplicate inserts surface as ErrDuplicatedKey
	// instead of raw sqlite constraint errors
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{TranslateError: true})
	if err != nil {
		logger.Fatal("failed to open crash index", zap.String("path", dbPath), zap.Error(err))
	}
	if err := db.AutoMigrate(&Crash{}); err != nil {
		logger.Fatal("failed to migrate crash index", zap.Error(err))
	}
	logger.Debug("crash index opened", zap.String("path", dbPath))
	return db
}
