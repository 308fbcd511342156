package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"yaca/internal/models"

	"github.com/google/uuid"
)

// MemoryStore keeps records for the lifetime of the process.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]models.Account
	order    []string // usernames in registration order
	messages []models.ChatMessage
	byID     map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]models.Account),
		byID:     make(map[string]int),
	}
}

func (s *MemoryStore) SaveAccount(_ context.Context, acc models.Account) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[acc.Username]; ok {
		return models.Account{}, ErrDuplicateAccount
	}
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now().UTC()
	}
	s.accounts[acc.Username] = acc
	s.order = append(s.order, acc.Username)
	return acc, nil
}

func (s *MemoryStore) FindAccountByUsername(_ context.Context, username string) (models.Account, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[username]
	return acc, ok, nil
}

func (s *MemoryStore) ListAllAccounts(_ context.Context) ([]models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Account, 0, len(s.order))
	for _, u := range s.order {
		out = append(out, s.accounts[u])
	}
	return out, nil
}

func (s *MemoryStore) SaveMessage(_ context.Context, msg models.ChatMessage) (models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.Seq = uint64(len(s.messages) + 1)
	s.byID[msg.ID] = len(s.messages)
	s.messages = append(s.messages, msg)
	return msg, nil
}

func (s *MemoryStore) ListAllMessages(_ context.Context) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.messages)
	if out == nil {
		out = []models.ChatMessage{}
	}
	return out, nil
}

func (s *MemoryStore) FindMessageByID(_ context.Context, id string) (models.ChatMessage, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return models.ChatMessage{}, false, nil
	}
	return s.messages[i], true, nil
}

func (s *MemoryStore) Close() error { return nil }
