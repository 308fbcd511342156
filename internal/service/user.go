package service

import (
	"context"
	"errors"

	"yaca/internal/apperr"
	"yaca/internal/auth"
	"yaca/internal/models"
	"yaca/internal/store"

	"github.com/samber/lo"
)

// AccountService handles registration, login and account lookups.
type AccountService struct {
	store  store.Store
	tokens *auth.TokenService
	cost   int
}

func NewAccountService(st store.Store, tokens *auth.TokenService, bcryptCost int) *AccountService {
	return &AccountService{store: st, tokens: tokens, cost: bcryptCost}
}

// Register creates an account and returns it with the password redacted.
// Concurrent registrations of one username resolve to a single success.
func (s *AccountService) Register(ctx context.Context, username, password, displayName string) (models.Account, error) {
	switch {
	case username == "":
		return models.Account{}, apperr.New(apperr.MissingField, "Missing username")
	case password == "":
		return models.Account{}, apperr.New(apperr.MissingField, "Missing password")
	case displayName == "":
		return models.Account{}, apperr.New(apperr.MissingField, "Missing display name")
	}
	// Cheap early answer; the store enforces uniqueness again on save.
	if _, found, err := s.store.FindAccountByUsername(ctx, username); err != nil {
		return models.Account{}, storageFailure("find account", err)
	} else if found {
		return models.Account{}, duplicate()
	}
	if err := auth.ValidatePassword(password); err != nil {
		return models.Account{}, err
	}
	hash, err := auth.HashPassword(password, s.cost)
	if err != nil {
		return models.Account{}, apperr.Wrap(apperr.Internal, "hash password", err)
	}
	saved, err := s.store.SaveAccount(ctx, models.Account{Username: username, PasswordHash: hash, DisplayName: displayName})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateAccount) {
			return models.Account{}, duplicate()
		}
		return models.Account{}, storageFailure("save account", err)
	}
	return saved.Redacted(), nil
}

func duplicate() error {
	return apperr.New(apperr.DuplicateAccount, "User already exists")
}

// Authenticate checks a username/password pair and returns the redacted account.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (models.Account, error) {
	acc, found, err := s.store.FindAccountByUsername(ctx, username)
	if err != nil {
		return models.Account{}, storageFailure("find account", err)
	}
	if !found {
		return models.Account{}, apperr.New(apperr.UnknownAccount, "User not found")
	}
	if !auth.VerifyPassword(acc.PasswordHash, password) {
		return models.Account{}, apperr.New(apperr.BadCredential, "Incorrect password")
	}
	return acc.Redacted(), nil
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Token string         `json:"token"`
	User  models.Account `json:"user"`
}

// Login authenticates and issues a session token.
func (s *AccountService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	acc, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Issue(acc.Username)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: acc}, nil
}

// ListUsernames returns the username of every account.
func (s *AccountService) ListUsernames(ctx context.Context) ([]string, error) {
	accounts, err := s.store.ListAllAccounts(ctx)
	if err != nil {
		return nil, storageFailure("list accounts", err)
	}
	return lo.Map(accounts, func(a models.Account, _ int) string { return a.Username }), nil
}

// GetAccount returns one account, redacted.
func (s *AccountService) GetAccount(ctx context.Context, username string) (models.Account, error) {
	acc, found, err := s.store.FindAccountByUsername(ctx, username)
	if err != nil {
		return models.Account{}, storageFailure("find account", err)
	}
	if !found {
		return models.Account{}, apperr.New(apperr.UnknownAccount, "The requested user does not exist")
	}
	return acc.Redacted(), nil
}
