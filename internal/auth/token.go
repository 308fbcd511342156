package auth

import (
	"errors"
	"time"

	"yaca/internal/apperr"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "yaca"

type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 session tokens. It holds no mutable
// state; the key, lifetime and clock are fixed at construction.
//
// Signature checks go through jwt's HMAC method, which compares with hmac.Equal,
// so verification time does not depend on how much of a forged signature matches.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewTokenService(secret string, ttl time.Duration, clk clock.Clock) *TokenService {
	if clk == nil {
		clk = clock.New()
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, clock: clk}
}

func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue mints a token for username that expires after the configured TTL.
func (s *TokenService) Issue(username string) (string, error) {
	now := s.clock.Now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "sign token", err)
	}
	return signed, nil
}

// Verify returns the username bound to token. A token is valid while its
// signature matches and the clock is strictly before its expiry.
func (s *TokenService) Verify(token string) (string, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", apperr.Wrap(apperr.TokenExpired, "token has expired", err)
		}
		return "", apperr.Wrap(apperr.TokenInvalid, "invalid token", err)
	}
	if claims.Username == "" {
		return "", apperr.New(apperr.TokenInvalid, "invalid token")
	}
	return claims.Username, nil
}
