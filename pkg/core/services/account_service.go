package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

// PasswordHasher hashes and checks account passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

type AccountService struct {
	accounts ports.AccountStore
	links    ports.LinkStore
	hasher   PasswordHasher
	logger   *slog.Logger
	now      func() time.Time
}

func NewAccountService(accounts ports.AccountStore, links ports.LinkStore, hasher PasswordHasher, logger *slog.Logger) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		accounts: accounts,
		links:    links,
		hasher:   hasher,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *AccountService) Signup(ctx context.Context, email, username, password string) (*domain.Account, error) {
	email = strings.TrimSpace(email)
	switch {
	case email == "":
		return nil, fmt.Errorf("%w: email is required", domain.ErrValidation)
	case username == "":
		return nil, fmt.Errorf("%w: username is required", domain.ErrValidation)
	case password == "":
		return nil, fmt.Errorf("%w: password is required", domain.ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email format", domain.ErrValidation)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters long", domain.ErrValidation)
	}
	// bcrypt ignores everything past 72 bytes.
	if len(password) > 72 {
		return nil, fmt.Errorf("%w: password must be at most 72 characters long", domain.ErrValidation)
	}
	if len(username) < 3 {
		return nil, fmt.Errorf("%w: username must be at least 3 characters long", domain.ErrValidation)
	}
	if len(username) > 20 {
		return nil, fmt.Errorf("%w: username must be less than 20 characters long", domain.ErrValidation)
	}

	if _, err := s.accounts.FindAccountByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: find account: %v", domain.ErrInternal, err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("%w: hash password: %v", domain.ErrInternal, err)
	}

	account := &domain.Account{
		ID:           uuid.New().String(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *AccountService) Login(ctx context.Context, email, password string) (*domain.Account, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrValidation)
	}
	account, err := s.accounts.FindAccountByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find account: %v", domain.ErrInternal, err)
	}
	if !s.hasher.Verify(password, account.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	return account, nil
}

// LoginWithGoogle finds the account registered under a verified Google email,
// creating a password-less one on first login.
func (s *AccountService) LoginWithGoogle(ctx context.Context, email, name string) (*domain.Account, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", domain.ErrValidation)
	}
	account, err := s.accounts.FindAccountByEmail(ctx, email)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: find account: %v", domain.ErrInternal, err)
	}

	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	account = &domain.Account{
		ID:        uuid.New().String(),
		Email:     email,
		Username:  name,
		CreatedAt: s.now().UTC(),
	}
	if err := s.create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// DeleteAccount removes the account and every link it owns.
func (s *AccountService) DeleteAccount(ctx context.Context, accountID string) error {
	if accountID == "" || accountID == domain.Anonymous {
		return domain.ErrUnauthorized
	}
	if _, err := s.accounts.FindAccountByID(ctx, accountID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: find account: %v", domain.ErrInternal, err)
	}

	n, err := s.links.DeleteByOwner(ctx, accountID)
	if err != nil {
		return fmt.Errorf("%w: delete links: %v", domain.ErrInternal, err)
	}
	if err := s.accounts.DeleteAccount(ctx, accountID); err != nil {
		return fmt.Errorf("%w: delete account: %v", domain.ErrInternal, err)
	}
	s.logger.Info("account deleted", "account_id", accountID, "links", n)
	return nil
}

func (s *AccountService) create(ctx context.Context, account *domain.Account) error {
	err := s.accounts.CreateAccount(ctx, account)
	if errors.Is(err, domain.ErrEmailTaken) {
		return err
	}
	if err != nil {
		return fmt.Errorf("%w: create account: %v", domain.ErrInternal, err)
	}
	s.logger.Info("account created", "account_id", account.ID)
	return nil
}
