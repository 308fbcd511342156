package service

import (
	"context"
	"strings"

	"yaca/internal/apperr"
	"yaca/internal/metrics"
	"yaca/internal/models"
	"yaca/internal/store"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
)

// Publisher fans a persisted message out to live subscribers. Delivery is best effort.
type Publisher interface {
	Publish(msg models.ChatMessage)
}

// MessageService creates and lists chat messages.
type MessageService struct {
	store store.Store
	hub   Publisher
	clock clock.Clock
}

func NewMessageService(st store.Store, hub Publisher, clk clock.Clock) *MessageService {
	if clk == nil {
		clk = clock.New()
	}
	return &MessageService{store: st, hub: hub, clock: clk}
}

// Post persists a message written by principal and then publishes it.
// A principal may only post as itself.
func (s *MessageService) Post(ctx context.Context, author, text, principal string) (models.ChatMessage, error) {
	if author == "" {
		return models.ChatMessage{}, apperr.New(apperr.MissingAuthor, "Chat message author cannot be empty")
	}
	if strings.TrimSpace(text) == "" {
		return models.ChatMessage{}, apperr.New(apperr.EmptyText, "Chat message text cannot be empty")
	}
	if author != principal {
		return models.ChatMessage{}, apperr.New(apperr.IdentityMismatch, "You are not allowed to post messages on behalf of another user.")
	}

	displayName := models.AnonymousDisplayName
	acc, found, err := s.store.FindAccountByUsername(ctx, author)
	switch {
	case err != nil:
		log.Warn().Err(err).Str("author", author).Msg("display name lookup failed")
	case found:
		displayName = acc.DisplayNameOrDefault()
	}

	saved, err := s.store.SaveMessage(ctx, models.ChatMessage{
		Author:      author,
		Text:        text,
		DisplayName: displayName,
		Timestamp:   s.clock.Now().UTC(),
	})
	if err != nil {
		return models.ChatMessage{}, storageFailure("save message", err)
	}
	metrics.MessagesTotal.Inc()
	// Only persisted messages are ever broadcast.
	if s.hub != nil {
		s.hub.Publish(saved)
	}
	return saved, nil
}

// ListAll returns every persisted message in insertion order.
func (s *MessageService) ListAll(ctx context.Context) ([]models.ChatMessage, error) {
	msgs, err := s.store.ListAllMessages(ctx)
	if err != nil {
		return nil, storageFailure("list messages", err)
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	return msgs, nil
}
