// Package store holds durable access to accounts and chat messages.
//
// Every implementation satisfies the same contract:
//   - records cross the boundary by value, so no caller ever shares memory with stored state;
//   - a missing record is reported as found == false, never as an error;
//   - SaveAccount enforces username uniqueness atomically and reports ErrDuplicateAccount;
//   - ListAllMessages returns messages in insertion order.
package store

import (
	"context"
	"errors"
	"fmt"

	"yaca/internal/config"
	"yaca/internal/db"
	"yaca/internal/models"
)

// ErrDuplicateAccount is returned by SaveAccount when the username is already taken.
var ErrDuplicateAccount = errors.New("store: duplicate account")

type Store interface {
	// SaveAccount assigns an ID and creation time when missing.
	SaveAccount(ctx context.Context, acc models.Account) (models.Account, error)
	FindAccountByUsername(ctx context.Context, username string) (models.Account, bool, error)
	ListAllAccounts(ctx context.Context) ([]models.Account, error)
	// SaveMessage assigns an ID when missing and the next insertion sequence.
	SaveMessage(ctx context.Context, msg models.ChatMessage) (models.ChatMessage, error)
	ListAllMessages(ctx context.Context) ([]models.ChatMessage, error)
	FindMessageByID(ctx context.Context, id string) (models.ChatMessage, bool, error)
	Close() error
}

// Open builds the backend named by cfg.StoreDriver. It is called once at startup.
func Open(cfg config.Config) (Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory, "":
		return NewMemoryStore(), nil
	case config.DriverPostgres, config.DriverSQLite:
		gdb, err := db.Connect(cfg.StoreDriver, cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("connect %s: %w", cfg.StoreDriver, err)
		}
		if err := db.Migrate(gdb); err != nil {
			return nil, fmt.Errorf("migrate %s: %w", cfg.StoreDriver, err)
		}
		return NewGormStore(gdb), nil
	case config.DriverBadger:
		return OpenBadgerStore(cfg.BadgerPath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
