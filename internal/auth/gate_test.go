package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"yaca/internal/apperr"
	"yaca/internal/models"
	"yaca/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingFinder struct{}

func (failingFinder) FindAccountByUsername(context.Context, string) (models.Account, bool, error) {
	return models.Account{}, false, errors.New("connection refused")
}

func newGate(t *testing.T) (*Gate, *TokenService) {
	t.Helper()
	st := store.NewMemoryStore()
	_, err := st.SaveAccount(context.Background(), models.Account{Username: "alice", PasswordHash: "x", DisplayName: "Alice"})
	require.NoError(t, err)
	tokens := NewTokenService("gate-secret", time.Hour, newMockClock())
	return NewGate(tokens, st), tokens
}

func TestGate_Authorize(t *testing.T) {
	gate, tokens := newGate(t)
	alice, err := tokens.Issue("alice")
	require.NoError(t, err)
	ghost, err := tokens.Issue("ghost")
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		want     string
		wantKind apperr.Kind
	}{
		{"valid", "Bearer " + alice, "alice", ""},
		{"lowercase scheme", "bearer " + alice, "alice", ""},
		{"no header", "", "", apperr.MissingToken},
		{"wrong scheme", "Basic " + alice, "", apperr.MissingToken},
		{"empty bearer", "Bearer ", "", apperr.MissingToken},
		{"garbage token", "Bearer nope", "", apperr.TokenInvalid},
		{"orphaned credential", "Bearer " + ghost, "", apperr.UnknownPrincipal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := gate.Authorize(context.Background(), tt.header)
			if tt.wantKind == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))
			assert.Empty(t, got)
		})
	}
}

func TestGate_Expired(t *testing.T) {
	clk := newMockClock()
	st := store.NewMemoryStore()
	_, err := st.SaveAccount(context.Background(), models.Account{Username: "alice", PasswordHash: "x"})
	require.NoError(t, err)
	tokens := NewTokenService("gate-secret", time.Minute, clk)
	gate := NewGate(tokens, st)

	tok, err := tokens.Issue("alice")
	require.NoError(t, err)
	clk.Add(time.Minute)
	_, err = gate.AuthorizeToken(context.Background(), tok)
	assert.Equal(t, apperr.TokenExpired, apperr.KindOf(err))
}

func TestGate_StorageFailureIsInternal(t *testing.T) {
	tokens := NewTokenService("gate-secret", time.Hour, newMockClock())
	gate := NewGate(tokens, failingFinder{})
	tok, err := tokens.Issue("alice")
	require.NoError(t, err)

	_, err = gate.AuthorizeToken(context.Background(), tok)
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))
}

func TestGate_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	gate, tokens := newGate(t)
	tok, err := tokens.Issue("alice")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/whoami", gate.Middleware(func(c *gin.Context, err error) {
		c.JSON(apperr.KindOf(err).HTTPStatus(), gin.H{"name": apperr.KindOf(err)})
	}), func(c *gin.Context) {
		c.String(http.StatusOK, Principal(c))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "MissingToken")
}
