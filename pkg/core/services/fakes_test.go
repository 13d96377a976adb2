package services

import (
	"context"
	"sort"
	"sync"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
)

// memStore keeps both partitions in maps keyed by slug.
type memStore struct {
	mu        sync.Mutex
	named     map[string]domain.Link
	anonymous map[string]domain.Link
	accounts  map[string]domain.Account

	findErr      error
	incrementErr error
	findCalls    int
}

func newMemStore() *memStore {
	return &memStore{
		named:     make(map[string]domain.Link),
		anonymous: make(map[string]domain.Link),
		accounts:  make(map[string]domain.Account),
	}
}

func (m *memStore) partition(owner string) map[string]domain.Link {
	if owner == domain.Anonymous {
		return m.anonymous
	}
	return m.named
}

func (m *memStore) Create(_ context.Context, link *domain.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.partition(link.Owner)
	if _, ok := p[link.Slug]; ok {
		return domain.ErrSlugConflict
	}
	p[link.Slug] = *link
	return nil
}

func (m *memStore) FindBySlug(ctx context.Context, slug string) (*domain.Link, error) {
	m.mu.Lock()
	m.findCalls++
	err := m.findErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if l, err := m.FindAnonymousBySlug(ctx, slug); err == nil {
		return l, nil
	}
	return m.FindNamedBySlug(ctx, slug)
}

func (m *memStore) FindAnonymousBySlug(_ context.Context, slug string) (*domain.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.anonymous[slug]; ok {
		return &l, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memStore) FindNamedBySlug(_ context.Context, slug string) (*domain.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.named[slug]; ok {
		return &l, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memStore) SlugExists(_ context.Context, slug string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, a := m.anonymous[slug]
	_, n := m.named[slug]
	return a || n, nil
}

func (m *memStore) FindByOwner(_ context.Context, owner string) ([]domain.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Link
	for _, l := range m.partition(owner) {
		if l.Owner == owner {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) DeleteByID(_ context.Context, id, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.partition(owner)
	for slug, l := range p {
		if l.ID == id && l.Owner == owner {
			delete(p, slug)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memStore) DeleteAnonymousBySlug(_ context.Context, slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.anonymous[slug]; !ok {
		return domain.ErrNotFound
	}
	delete(m.anonymous, slug)
	return nil
}

func (m *memStore) DeleteByOwner(_ context.Context, owner string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	p := m.partition(owner)
	for slug, l := range p {
		if l.Owner == owner {
			delete(p, slug)
			n++
		}
	}
	return n, nil
}

func (m *memStore) IncrementClicks(_ context.Context, link *domain.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.incrementErr != nil {
		return m.incrementErr
	}
	p := m.partition(link.Owner)
	l, ok := p[link.Slug]
	if !ok || l.ID != link.ID {
		return domain.ErrNotFound
	}
	l.Clicks++
	p[link.Slug] = l
	return nil
}

func (m *memStore) Dump(_ context.Context) ([]domain.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Link
	for _, l := range m.anonymous {
		out = append(out, l)
	}
	for _, l := range m.named {
		out = append(out, l)
	}
	return out, nil
}

func (m *memStore) CreateAccount(_ context.Context, account *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == account.Email {
			return domain.ErrEmailTaken
		}
	}
	m.accounts[account.ID] = *account
	return nil
}

func (m *memStore) FindAccountByID(_ context.Context, id string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[id]; ok {
		return &a, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memStore) FindAccountByEmail(_ context.Context, email string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memStore) DeleteAccount(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.accounts, id)
	return nil
}

// countQuota allows the first limit calls per key.
type countQuota struct {
	mu    sync.Mutex
	limit int
	used  map[string]int
}

func newCountQuota(limit int) *countQuota {
	return &countQuota{limit: limit, used: make(map[string]int)}
}

func (q *countQuota) Allow(_ context.Context, key string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.used[key]++
	return q.used[key] <= q.limit, nil
}
