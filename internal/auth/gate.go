package auth

import (
	"context"
	"strings"

	"yaca/internal/apperr"
	"yaca/internal/models"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// AccountFinder is the slice of the store the gate needs.
type AccountFinder interface {
	FindAccountByUsername(ctx context.Context, username string) (models.Account, bool, error)
}

// Gate resolves a bearer credential to the username it acts as.
type Gate struct {
	tokens   *TokenService
	accounts AccountFinder
}

func NewGate(tokens *TokenService, accounts AccountFinder) *Gate {
	return &Gate{tokens: tokens, accounts: accounts}
}

// Authorize validates an Authorization header value ("Bearer <token>").
func (g *Gate) Authorize(ctx context.Context, rawHeader string) (string, error) {
	return g.AuthorizeToken(ctx, BearerToken(rawHeader))
}

// AuthorizeToken validates a bare token and checks the account still exists.
func (g *Gate) AuthorizeToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", apperr.New(apperr.MissingToken, "Authorization token is missing")
	}
	username, err := g.tokens.Verify(token)
	if err != nil {
		return "", err
	}
	_, found, err := g.accounts.FindAccountByUsername(ctx, username)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "resolve principal", err)
	}
	if !found {
		return "", apperr.New(apperr.UnknownPrincipal, "User not found. The token refers to an account that does not exist.")
	}
	return username, nil
}

// BearerToken extracts the token from "Bearer <token>"; anything else yields "".
func BearerToken(rawHeader string) string {
	const prefix = "bearer "
	if len(rawHeader) < len(prefix) || !strings.EqualFold(rawHeader[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(rawHeader[len(prefix):])
}

// Middleware authorizes every request and stores the principal on the context.
// Failures are handed to onError, which must write the response.
func (g *Gate) Middleware(onError func(*gin.Context, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, err := g.Authorize(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			onError(c, err)
			c.Abort()
			return
		}
		c.Set(principalKey, username)
		c.Next()
	}
}

// Principal returns the username set by Middleware, or "" outside it.
func Principal(c *gin.Context) string {
	return c.GetString(principalKey)
}
