package store

import (
	"context"
	"errors"
	"time"

	"yaca/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStore persists records through gorm (postgres in production, sqlite for local runs and tests).
type GormStore struct {
	db *gorm.DB
}

// NewGormStore expects a migrated connection opened with TranslateError enabled.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) SaveAccount(ctx context.Context, acc models.Account) (models.Account, error) {
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(&acc).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.Account{}, ErrDuplicateAccount
		}
		// Not every dialector translates constraint errors; a row that now exists
		// under this username means the unique index rejected us.
		if existing, found, ferr := s.FindAccountByUsername(ctx, acc.Username); ferr == nil && found && existing.ID != acc.ID {
			return models.Account{}, ErrDuplicateAccount
		}
		return models.Account{}, err
	}
	return acc, nil
}

func (s *GormStore) FindAccountByUsername(ctx context.Context, username string) (models.Account, bool, error) {
	var acc models.Account
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&acc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Account{}, false, nil
		}
		return models.Account{}, false, err
	}
	return acc, true, nil
}

func (s *GormStore) ListAllAccounts(ctx context.Context) ([]models.Account, error) {
	accounts := []models.Account{}
	if err := s.db.WithContext(ctx).Order("created_at asc").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *GormStore) SaveMessage(ctx context.Context, msg models.ChatMessage) (models.ChatMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.Seq = 0 // assigned by the database
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return models.ChatMessage{}, err
	}
	return msg, nil
}

func (s *GormStore) ListAllMessages(ctx context.Context) ([]models.ChatMessage, error) {
	msgs := []models.ChatMessage{}
	if err := s.db.WithContext(ctx).Order("seq asc").Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *GormStore) FindMessageByID(ctx context.Context, id string) (models.ChatMessage, bool, error) {
	var msg models.ChatMessage
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ChatMessage{}, false, nil
		}
		return models.ChatMessage{}, false, err
	}
	return msg, true, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
