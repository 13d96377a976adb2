package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wadjakorntonsri/shortlink/pkg/auth"
	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"golang.org/x/crypto/bcrypt"
)

func newTestAccountService(store *memStore) *AccountService {
	return NewAccountService(store, store, auth.NewPasswordHasher(bcrypt.MinCost), discardLogger())
}

func TestSignup(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		username string
		password string
		wantErr  error
	}{
		{name: "ok", email: "a@example.com", username: "alice", password: "password1"},
		{name: "missing email", username: "alice", password: "password1", wantErr: domain.ErrValidation},
		{name: "bad email", email: "not-an-email", username: "alice", password: "password1", wantErr: domain.ErrValidation},
		{name: "short username", email: "a@example.com", username: "al", password: "password1", wantErr: domain.ErrValidation},
		{name: "long username", email: "a@example.com", username: strings.Repeat("a", 21), password: "password1", wantErr: domain.ErrValidation},
		{name: "short password", email: "a@example.com", username: "alice", password: "short", wantErr: domain.ErrValidation},
		{name: "long password", email: "a@example.com", username: "alice", password: strings.Repeat("p", 73), wantErr: domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			svc := newTestAccountService(store)

			account, err := svc.Signup(context.Background(), tt.email, tt.username, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, store.accounts)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, account.ID)
			assert.Equal(t, tt.email, account.Email)
			assert.NotEqual(t, tt.password, account.PasswordHash)
			assert.Len(t, store.accounts, 1)
		})
	}
}

func TestSignup_EmailTaken(t *testing.T) {
	svc := newTestAccountService(newMemStore())
	ctx := context.Background()

	_, err := svc.Signup(ctx, "a@example.com", "alice", "password1")
	require.NoError(t, err)

	_, err = svc.Signup(ctx, "a@example.com", "alice2", "password2")
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestLogin(t *testing.T) {
	svc := newTestAccountService(newMemStore())
	ctx := context.Background()

	created, err := svc.Signup(ctx, "a@example.com", "alice", "password1")
	require.NoError(t, err)

	account, err := svc.Login(ctx, "a@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, account.ID)

	_, err = svc.Login(ctx, "a@example.com", "wrong-password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "password1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLoginWithGoogle_FindOrCreate(t *testing.T) {
	store := newMemStore()
	svc := newTestAccountService(store)
	ctx := context.Background()

	first, err := svc.LoginWithGoogle(ctx, "g@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "g", first.Username)
	assert.Empty(t, first.PasswordHash)

	second, err := svc.LoginWithGoogle(ctx, "g@example.com", "Someone Else")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.accounts, 1)

	// Google accounts have no password to log in with.
	_, err = svc.Login(ctx, "g@example.com", "anything-at-all")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestDeleteAccount(t *testing.T) {
	store := newMemStore()
	svc := newTestAccountService(store)
	ctx := context.Background()

	account, err := svc.Signup(ctx, "a@example.com", "alice", "password1")
	require.NoError(t, err)
	for _, slug := range []string{"one", "two"} {
		require.NoError(t, store.Create(ctx, &domain.Link{ID: slug, Owner: account.ID, Slug: slug, Destination: "https://a.com", CreatedAt: time.Now()}))
	}
	require.NoError(t, store.Create(ctx, &domain.Link{ID: "other", Owner: "u2", Slug: "other", Destination: "https://a.com", CreatedAt: time.Now()}))

	require.NoError(t, svc.DeleteAccount(ctx, account.ID))

	_, err = store.FindAccountByID(ctx, account.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	links, _ := store.FindByOwner(ctx, account.ID)
	assert.Empty(t, links)
	others, _ := store.FindByOwner(ctx, "u2")
	assert.Len(t, others, 1)

	assert.ErrorIs(t, svc.DeleteAccount(ctx, account.ID), domain.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteAccount(ctx, ""), domain.ErrUnauthorized)
}
