package db

import (
	"fmt"
	"time"

	"yaca/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens a gorm connection for the given driver ("postgres" or "sqlite").
// Postgres is retried a few times so the server can start alongside its container.
func Connect(driver, dsn string) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}
	switch driver {
	case "sqlite":
		gdb, err := gorm.Open(sqlite.Open(dsn), gcfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		// Writes are serialized by sqlite anyway; one connection also keeps
		// ":memory:" databases from splitting per connection.
		sqlDB.SetMaxOpenConns(1)
		return gdb, nil
	case "postgres":
		var gdb *gorm.DB
		var err error
		for i := 0; i < 10; i++ {
			gdb, err = gorm.Open(postgres.Open(dsn), gcfg)
			if err == nil {
				sqlDB, err2 := gdb.DB()
				if err2 == nil {
					sqlDB.SetMaxIdleConns(5)
					sqlDB.SetMaxOpenConns(20)
					sqlDB.SetConnMaxLifetime(time.Hour)
					return gdb, nil
				}
				err = err2
			}
			time.Sleep(time.Duration(500+i*200) * time.Millisecond)
		}
		return nil, err
	default:
		return nil, fmt.Errorf("unsupported gorm driver %q", driver)
	}
}

// Migrate creates the account and message tables.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&models.Account{}, &models.ChatMessage{})
}
