package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"yaca/internal/apperr"
	"yaca/internal/auth"
	"yaca/internal/models"
	"yaca/internal/store"
	"yaca/internal/ws"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []models.ChatMessage
}

func (p *recordingPublisher) Publish(msg models.ChatMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
}

// brokenStore fails every message write; account reads still work.
type brokenStore struct {
	*store.MemoryStore
}

func (brokenStore) SaveMessage(context.Context, models.ChatMessage) (models.ChatMessage, error) {
	return models.ChatMessage{}, errors.New("disk full")
}

type fixture struct {
	clock    *clock.Mock
	store    store.Store
	tokens   *auth.TokenService
	accounts *AccountService
	messages *MessageService
	pub      *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))
	st := store.NewMemoryStore()
	tokens := auth.NewTokenService("svc-secret", 30*time.Minute, clk)
	pub := &recordingPublisher{}
	return &fixture{
		clock:    clk,
		store:    st,
		tokens:   tokens,
		accounts: NewAccountService(st, tokens, bcrypt.MinCost),
		messages: NewMessageService(st, pub, clk),
		pub:      pub,
	}
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acc, err := f.accounts.Register(ctx, "alice", "Abc123!", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", acc.Username)
	assert.Equal(t, "Alice", acc.DisplayName)
	assert.Equal(t, models.RedactedPassword, acc.PasswordHash)
	assert.NotEmpty(t, acc.ID)

	stored, found, err := f.store.FindAccountByUsername(ctx, "alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.NotEqual(t, "Abc123!", stored.PasswordHash)
	assert.True(t, auth.VerifyPassword(stored.PasswordHash, "Abc123!"))
}

func TestRegister_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.accounts.Register(ctx, "taken", "abc123!", "Taken")
	require.NoError(t, err)

	tests := []struct {
		name                            string
		username, password, displayName string
		want                            apperr.Kind
	}{
		{"missing username", "", "abc123!", "X", apperr.MissingField},
		{"missing password", "bob", "", "X", apperr.MissingField},
		{"missing display name", "bob", "abc123!", "", apperr.MissingField},
		{"duplicate", "taken", "abc123!", "Again", apperr.DuplicateAccount},
		{"too short", "bob", "abc", "Bob", apperr.WeakPassword},
		{"no digit or special", "bob", "abcdefg", "Bob", apperr.WeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.accounts.Register(ctx, tt.username, tt.password, tt.displayName)
			assert.Equal(t, tt.want, apperr.KindOf(err), "err = %v", err)
		})
	}

	_, err = f.accounts.Register(ctx, "Taken", "abc123!", "Other case")
	assert.NoError(t, err, "usernames are case-sensitive")
}

func TestRegister_ConcurrentDuplicates(t *testing.T) {
	f := newFixture(t)
	const n = 12
	var wins, dups atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.accounts.Register(context.Background(), "racer", "abc123!", "Racer")
			switch apperr.KindOf(err) {
			case "":
				wins.Add(1)
			case apperr.DuplicateAccount:
				dups.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())
	assert.EqualValues(t, n-1, dups.Load())
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.accounts.Register(ctx, "alice", "abc123!", "Alice")
	require.NoError(t, err)

	acc, err := f.accounts.Authenticate(ctx, "alice", "abc123!")
	require.NoError(t, err)
	assert.Equal(t, "alice", acc.Username)
	assert.NotEqual(t, "abc123!", acc.PasswordHash)
	assert.Equal(t, models.RedactedPassword, acc.PasswordHash)

	_, err = f.accounts.Authenticate(ctx, "nobody", "abc123!")
	assert.Equal(t, apperr.UnknownAccount, apperr.KindOf(err))

	_, err = f.accounts.Authenticate(ctx, "alice", "abc123?")
	assert.Equal(t, apperr.BadCredential, apperr.KindOf(err))
}

func TestAuthenticate_LongPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pw := strings.Repeat("a", 97) + "1!x"
	require.Len(t, pw, 100)

	_, err := f.accounts.Register(ctx, "longpw", pw, "Long")
	require.NoError(t, err)
	acc, err := f.accounts.Authenticate(ctx, "longpw", pw)
	require.NoError(t, err)
	assert.Equal(t, "longpw", acc.Username)

	_, err = f.accounts.Authenticate(ctx, "longpw", pw[:72])
	assert.Equal(t, apperr.BadCredential, apperr.KindOf(err))
}

func TestLogin_TokenLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.accounts.Register(ctx, "alice", "abc123!", "Alice")
	require.NoError(t, err)

	res, err := f.accounts.Login(ctx, "alice", "abc123!")
	require.NoError(t, err)
	assert.Equal(t, models.RedactedPassword, res.User.PasswordHash)

	username, err := f.tokens.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)

	f.clock.Add(30 * time.Minute)
	_, err = f.tokens.Verify(res.Token)
	assert.Equal(t, apperr.TokenExpired, apperr.KindOf(err))
}

func TestListUsernamesAndGetAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	names, err := f.accounts.ListUsernames(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	for _, u := range []string{"alice", "bob"} {
		_, err := f.accounts.Register(ctx, u, "abc123!", u)
		require.NoError(t, err)
	}
	names, err = f.accounts.ListUsernames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, names)

	acc, err := f.accounts.GetAccount(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, models.RedactedPassword, acc.PasswordHash)

	_, err = f.accounts.GetAccount(ctx, "carol")
	assert.Equal(t, apperr.UnknownAccount, apperr.KindOf(err))
}

func TestPost_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name                    string
		author, text, principal string
		want                    apperr.Kind
	}{
		{"missing author", "", "hi", "bob", apperr.MissingAuthor},
		{"empty text", "bob", "", "bob", apperr.EmptyText},
		{"whitespace text", "bob", " \t\n", "bob", apperr.EmptyText},
		{"impersonation", "bob", "hi", "carol", apperr.IdentityMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.messages.Post(ctx, tt.author, tt.text, tt.principal)
			assert.Equal(t, tt.want, apperr.KindOf(err))
		})
	}
	assert.Empty(t, f.pub.msgs, "rejected posts are never broadcast")
	msgs, err := f.messages.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestPost_DisplayNameFallback(t *testing.T) {
	f := newFixture(t)
	// a principal whose account cannot be found still posts, as Anonymous
	msg, err := f.messages.Post(context.Background(), "ghost", "boo", "ghost")
	require.NoError(t, err)
	assert.Equal(t, models.AnonymousDisplayName, msg.DisplayName)
}

func TestPost_StorageFailureIsNotBroadcast(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewMessageService(brokenStore{store.NewMemoryStore()}, pub, nil)

	_, err := svc.Post(context.Background(), "alice", "hello", "alice")
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))
	assert.Empty(t, pub.msgs)
}

func TestListAll_InsertionOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msgs, err := f.messages.ListAll(ctx)
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)

	for _, text := range []string{"one", "two", "three"} {
		_, err := f.messages.Post(ctx, "alice", text, "alice")
		require.NoError(t, err)
	}
	msgs, err = f.messages.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].Text)
	assert.Equal(t, "two", msgs[1].Text)
	assert.Equal(t, "three", msgs[2].Text)
}

func TestScenario_RegisterLoginPostBroadcast(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))
	st := store.NewMemoryStore()
	tokens := auth.NewTokenService("svc-secret", time.Hour, clk)
	gate := auth.NewGate(tokens, st)
	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	accounts := NewAccountService(st, tokens, bcrypt.MinCost)
	messages := NewMessageService(st, hub, clk)

	_, err := accounts.Register(ctx, "alice", "Abc123!", "Alice")
	require.NoError(t, err)
	login, err := accounts.Login(ctx, "alice", "Abc123!")
	require.NoError(t, err)

	first, second, leaver := ws.NewClient("alice"), ws.NewClient("bob"), ws.NewClient("carol")
	require.True(t, hub.Register(first))
	require.True(t, hub.Register(second))
	require.True(t, hub.Register(leaver))
	hub.Unregister(leaver)

	principal, err := gate.Authorize(ctx, "Bearer "+login.Token)
	require.NoError(t, err)
	msg, err := messages.Post(ctx, "alice", "hello", principal)
	require.NoError(t, err)
	assert.Equal(t, "Alice", msg.DisplayName)
	assert.Equal(t, clk.Now().UTC(), msg.Timestamp)
	assert.NotEmpty(t, msg.ID)

	for _, c := range []*ws.Client{first, second} {
		select {
		case b := <-c.Outbound():
			var evt ws.OutboundEvent
			require.NoError(t, json.Unmarshal(b, &evt))
			assert.Equal(t, msg.ID, evt.Message.ID)
			assert.Equal(t, "hello", evt.Message.Text)
			assert.Equal(t, "Alice", evt.Message.DisplayName)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s did not receive the message", c.Username())
		}
	}
	_, open := <-leaver.Outbound()
	assert.False(t, open)

	all, err := messages.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, msg.ID, all[0].ID)
}
