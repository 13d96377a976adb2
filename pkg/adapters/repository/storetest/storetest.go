// Package storetest is the behaviour every ports.Store backend must share.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

// Factory returns an empty store. Cleanup is registered on t.
type Factory func(t *testing.T) ports.Store

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func link(id, owner, slug string, minutes int) *domain.Link {
	return &domain.Link{
		ID:          id,
		Owner:       owner,
		Destination: "https://example.com/" + slug,
		Slug:        slug,
		CreatedAt:   base.Add(time.Duration(minutes) * time.Minute),
	}
}

// Run exercises the full store contract against fresh stores from newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndFind", func(t *testing.T) { testCreateAndFind(t, newStore(t)) })
	t.Run("SlugConflictPerPartition", func(t *testing.T) { testSlugConflict(t, newStore(t)) })
	t.Run("FindBySlugPrefersAnonymous", func(t *testing.T) { testFindBySlugOrder(t, newStore(t)) })
	t.Run("SlugExists", func(t *testing.T) { testSlugExists(t, newStore(t)) })
	t.Run("FindByOwnerNewestFirst", func(t *testing.T) { testFindByOwner(t, newStore(t)) })
	t.Run("DeleteByID", func(t *testing.T) { testDeleteByID(t, newStore(t)) })
	t.Run("DeleteAnonymousBySlug", func(t *testing.T) { testDeleteAnonymousBySlug(t, newStore(t)) })
	t.Run("DeleteByOwner", func(t *testing.T) { testDeleteByOwner(t, newStore(t)) })
	t.Run("IncrementClicks", func(t *testing.T) { testIncrementClicks(t, newStore(t)) })
	t.Run("ConcurrentIncrements", func(t *testing.T) { testConcurrentIncrements(t, newStore(t)) })
	t.Run("Dump", func(t *testing.T) { testDump(t, newStore(t)) })
	t.Run("Accounts", func(t *testing.T) { testAccounts(t, newStore(t)) })
}

func testCreateAndFind(t *testing.T, s ports.Store) {
	ctx := context.Background()

	named := link("n1", "u1", "named", 0)
	named.Clicks = 3
	anon := link("a1", domain.Anonymous, "anon", 1)
	require.NoError(t, s.Create(ctx, named))
	require.NoError(t, s.Create(ctx, anon))

	got, err := s.FindNamedBySlug(ctx, "named")
	require.NoError(t, err)
	assert.Equal(t, *named, *got)

	got, err = s.FindAnonymousBySlug(ctx, "anon")
	require.NoError(t, err)
	assert.Equal(t, *anon, *got)

	_, err = s.FindAnonymousBySlug(ctx, "named")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.FindNamedBySlug(ctx, "anon")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.FindBySlug(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testSlugConflict(t *testing.T, s ports.Store) {
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, link("n1", "u1", "dup", 0)))
	assert.ErrorIs(t, s.Create(ctx, link("n2", "u2", "dup", 1)), domain.ErrSlugConflict)

	require.NoError(t, s.Create(ctx, link("a1", domain.Anonymous, "adup", 0)))
	assert.ErrorIs(t, s.Create(ctx, link("a2", domain.Anonymous, "adup", 1)), domain.ErrSlugConflict)

	// Partitions index independently so a move can insert before it deletes.
	assert.NoError(t, s.Create(ctx, link("a1", "u1", "adup", 0)))
}

func testFindBySlugOrder(t *testing.T, s ports.Store) {
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, link("x", domain.Anonymous, "both", 0)))
	require.NoError(t, s.Create(ctx, link("x", "u1", "both", 0)))

	got, err := s.FindBySlug(ctx, "both")
	require.NoError(t, err)
	assert.Equal(t, domain.Anonymous, got.Owner)

	require.NoError(t, s.DeleteAnonymousBySlug(ctx, "both"))
	got, err = s.FindBySlug(ctx, "both")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.Owner)
}

func testSlugExists(t *testing.T, s ports.Store) {
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, link("n1", "u1", "named", 0)))
	require.NoError(t, s.Create(ctx, link("a1", domain.Anonymous, "anon", 0)))

	for slug, want := range map[string]bool{"named": true, "anon": true, "free": false} {
		got, err := s.SlugExists(ctx, slug)
		require.NoError(t, err)
		assert.Equal(t, want, got, slug)
	}
}

func testFindByOwner(t *testing.T, s ports.Store) {
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, link("old", "u1", "old", 0)))
	require.NoError(t, s.Create(ctx, link("new", "u1", "new", 10)))
	require.NoError(t, s.Create(ctx, link("mid", "u1", "mid", 5)))
	require.NoError(t, s.Create(ctx, link("other", "u2", "other", 7)))
	require.NoError(t, s.Create(ctx, link("anon", domain.Anonymous, "anon", 8)))

	links, err := s.FindByOwner(ctx, "u1")
	require.NoError(t, err)
	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []string{"new", "mid", "old"}, ids)

	links, err = s.FindByOwner(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, links)
}

func testDeleteByID(t *testing.T, s ports.Store) {
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, link("n1", "owner-b", "named", 0)))

	assert.ErrorIs(t, s.DeleteByID(ctx, "n1", "owner-a"), domain.ErrNotFound)
	_, err := s.FindNamedBySlug(ctx, "named")
	require.NoError(t, err)

	require.NoError(t, s.DeleteByID(ctx, "n1", "owner-b"))
	_, err = s.FindNamedBySlug(ctx, "named")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, s.DeleteByID(ctx, "n1", "owner-b"), domain.ErrNotFound)
}

func testDeleteAnonymousBySlug(t *testing.T, s ports.Store) {
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, link("", domain.Anonymous, "noid", 0)))
	require.NoError(t, s.Create(ctx, link("n1", "u1", "named", 0)))

	require.NoError(t, s.DeleteAnonymousBySlug(ctx, "noid"))
	assert.ErrorIs(t, s.DeleteAnonymousBySlug(ctx, "noid"), domain.ErrNotFound)
	assert.ErrorIs(t, s.DeleteAnonymousBySlug(ctx, "named"), domain.ErrNotFound)
}

func testDeleteByOwner(t *testing.T, s ports.Store) {
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, link("n1", "u1", "one", 0)))
	require.NoError(t, s.Create(ctx, link("n2", "u1", "two", 1)))
	require.NoError(t, s.Create(ctx, link("n3", "u2", "three", 2)))

	n, err := s.DeleteByOwner(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	left, err := s.FindByOwner(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func testIncrementClicks(t *testing.T, s ports.Store) {
	ctx := context.Background()

	named := link("n1", "u1", "named", 0)
	anon := link("a1", domain.Anonymous, "anon", 0)
	require.NoError(t, s.Create(ctx, named))
	require.NoError(t, s.Create(ctx, anon))

	require.NoError(t, s.IncrementClicks(ctx, named))
	require.NoError(t, s.IncrementClicks(ctx, named))
	require.NoError(t, s.IncrementClicks(ctx, anon))

	got, err := s.FindNamedBySlug(ctx, "named")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Clicks)
	got, err = s.FindAnonymousBySlug(ctx, "anon")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Clicks)

	// Scoped to the owner the caller saw.
	moved := *named
	moved.Owner = "u2"
	assert.ErrorIs(t, s.IncrementClicks(ctx, &moved), domain.ErrNotFound)

	require.NoError(t, s.DeleteByID(ctx, "n1", "u1"))
	assert.ErrorIs(t, s.IncrementClicks(ctx, named), domain.ErrNotFound)
}

func testConcurrentIncrements(t *testing.T, s ports.Store) {
	ctx := context.Background()

	l := link("n1", "u1", "hot", 0)
	require.NoError(t, s.Create(ctx, l))

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.IncrementClicks(ctx, l))
		}()
	}
	wg.Wait()

	got, err := s.FindNamedBySlug(ctx, "hot")
	require.NoError(t, err)
	assert.Equal(t, int64(n), got.Clicks)
}

func testDump(t *testing.T, s ports.Store) {
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, link("n1", "u1", "named", 0)))
	require.NoError(t, s.Create(ctx, link("a1", domain.Anonymous, "anon", 1)))

	all, err := s.Dump(ctx)
	require.NoError(t, err)
	slugs := make([]string, 0, len(all))
	for _, l := range all {
		slugs = append(slugs, l.Slug)
	}
	assert.ElementsMatch(t, []string{"named", "anon"}, slugs)
}

func testAccounts(t *testing.T, s ports.Store) {
	ctx := context.Background()

	account := &domain.Account{
		ID:           "acc-1",
		Email:        "a@example.com",
		Username:     "alice",
		PasswordHash: "hash",
		CreatedAt:    base,
	}
	require.NoError(t, s.CreateAccount(ctx, account))

	dup := *account
	dup.ID = "acc-2"
	assert.ErrorIs(t, s.CreateAccount(ctx, &dup), domain.ErrEmailTaken)

	got, err := s.FindAccountByID(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, *account, *got)

	got, err = s.FindAccountByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", got.ID)

	_, err = s.FindAccountByEmail(ctx, "b@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.DeleteAccount(ctx, "acc-1"))
	_, err = s.FindAccountByID(ctx, "acc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.DeleteAccount(ctx, "acc-1"), domain.ErrNotFound)
}
