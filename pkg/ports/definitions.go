package ports

import (
	"context"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
)

// LinkStore defines storage operations for links across the named and
// anonymous partitions. The partition is selected by Link.Owner.
type LinkStore interface {
	// Create inserts the link as given. It returns domain.ErrSlugConflict when
	// the target partition already holds the slug.
	Create(ctx context.Context, link *domain.Link) error
	// FindBySlug searches the anonymous partition, then the named one.
	FindBySlug(ctx context.Context, slug string) (*domain.Link, error)
	FindAnonymousBySlug(ctx context.Context, slug string) (*domain.Link, error)
	FindNamedBySlug(ctx context.Context, slug string) (*domain.Link, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	// FindByOwner returns the owner's links, newest first.
	FindByOwner(ctx context.Context, owner string) ([]domain.Link, error)
	// DeleteByID deletes only when the link exists and belongs to owner.
	DeleteByID(ctx context.Context, id, owner string) error
	// DeleteAnonymousBySlug removes the anonymous record holding slug.
	DeleteAnonymousBySlug(ctx context.Context, slug string) error
	DeleteByOwner(ctx context.Context, owner string) (int64, error)
	// IncrementClicks atomically adds one click to the link identified by
	// (ID, Owner). It returns domain.ErrNotFound if the link is gone.
	IncrementClicks(ctx context.Context, link *domain.Link) error
	Dump(ctx context.Context) ([]domain.Link, error) // For export
}

// AccountStore defines storage operations for accounts
type AccountStore interface {
	CreateAccount(ctx context.Context, account *domain.Account) error
	FindAccountByID(ctx context.Context, id string) (*domain.Account, error)
	FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error)
	DeleteAccount(ctx context.Context, id string) error
}

// Store is a complete storage backend.
type Store interface {
	LinkStore
	AccountStore
	Close() error
}

// Quota caps anonymous usage per client key.
type Quota interface {
	// Allow consumes one unit for key and reports whether it was within the limit.
	Allow(ctx context.Context, key string) (bool, error)
}

// ShortenRequest carries the input of a shorten call.
type ShortenRequest struct {
	Destination string
	CustomSlug  string
	Owner       string // domain.Anonymous when unauthenticated
	ClientIP    string
}

// LinkService defines the link operations exposed to adapters
type LinkService interface {
	Shorten(ctx context.Context, req ShortenRequest) (*domain.Link, error)
	Resolve(ctx context.Context, slug string) (string, error)
	List(ctx context.Context, owner string) ([]domain.Link, error)
	Delete(ctx context.Context, id, owner string) error
	Migrate(ctx context.Context, owner string, candidates []domain.MigrationCandidate) (*domain.MigrationResult, error)
}

// AccountService defines account lifecycle operations
type AccountService interface {
	Signup(ctx context.Context, email, username, password string) (*domain.Account, error)
	Login(ctx context.Context, email, password string) (*domain.Account, error)
	LoginWithGoogle(ctx context.Context, email, name string) (*domain.Account, error)
	DeleteAccount(ctx context.Context, accountID string) error
}
