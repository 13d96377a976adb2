package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
	"golang.org/x/sync/singleflight"
)

var customSlugPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Slugs that would shadow routes served next to the redirect handler.
var reservedSlugs = map[string]bool{
	"api":     true,
	"auth":    true,
	"healthz": true,
}

type LinkService struct {
	store  ports.LinkStore
	slugs  *SlugAllocator
	quota  ports.Quota
	logger *slog.Logger
	now    func() time.Time
	lookup singleflight.Group
}

// NewLinkService wires the link workflow. quota may be nil, which disables the
// anonymous cap.
func NewLinkService(store ports.LinkStore, slugs *SlugAllocator, quota ports.Quota, logger *slog.Logger) *LinkService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LinkService{
		store:  store,
		slugs:  slugs,
		quota:  quota,
		logger: logger,
		now:    time.Now,
	}
}

func (s *LinkService) Shorten(ctx context.Context, req ports.ShortenRequest) (*domain.Link, error) {
	if err := validateDestination(req.Destination); err != nil {
		return nil, err
	}
	if req.CustomSlug != "" {
		if err := validateCustomSlug(req.CustomSlug); err != nil {
			return nil, err
		}
	}
	owner := req.Owner
	if owner == "" {
		owner = domain.Anonymous
	}

	// A random slug that loses the insert race is redrawn; a custom one is not.
	for attempt := 0; ; attempt++ {
		slug, err := s.slugs.Allocate(ctx, req.CustomSlug)
		if err != nil {
			return nil, err
		}

		// Spent once, right before the first insert. An insert that then fails
		// keeps the unit.
		if owner == domain.Anonymous && attempt == 0 {
			if err := s.checkQuota(ctx, req.ClientIP); err != nil {
				return nil, err
			}
		}

		link := &domain.Link{
			ID:          uuid.New().String(),
			Owner:       owner,
			Destination: req.Destination,
			Slug:        slug,
			CreatedAt:   s.now().UTC(),
			Clicks:      0,
		}

		err = s.store.Create(ctx, link)
		if err == nil {
			s.logger.Info("link created", "slug", link.Slug, "owner", link.Owner)
			return link, nil
		}
		if errors.Is(err, domain.ErrSlugConflict) {
			if req.CustomSlug != "" {
				return nil, err
			}
			if attempt+1 < MaxSlugAttempts {
				continue
			}
		}
		return nil, fmt.Errorf("%w: create link: %v", domain.ErrInternal, err)
	}
}

func (s *LinkService) checkQuota(ctx context.Context, clientIP string) error {
	if s.quota == nil {
		return nil
	}
	allowed, err := s.quota.Allow(ctx, clientIP)
	if err != nil {
		return fmt.Errorf("%w: quota: %v", domain.ErrInternal, err)
	}
	if !allowed {
		return domain.ErrQuotaExceeded
	}
	return nil
}

// Resolve returns the destination for slug and counts the click. Click
// accounting never fails a resolution.
func (s *LinkService) Resolve(ctx context.Context, slug string) (string, error) {
	if slug == "" {
		return "", domain.ErrNotFound
	}

	// Concurrent lookups of one slug share one store read, detached from the
	// first caller's cancellation.
	lookupCtx := context.WithoutCancel(ctx)
	v, err, _ := s.lookup.Do(slug, func() (interface{}, error) {
		return s.store.FindBySlug(lookupCtx, slug)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", err
		}
		return "", fmt.Errorf("%w: find slug: %v", domain.ErrInternal, err)
	}
	link := v.(*domain.Link)

	if err := s.store.IncrementClicks(ctx, link); err != nil {
		s.logger.Warn("click not recorded", "slug", slug, "owner", link.Owner, "error", err)
	}

	return link.Destination, nil
}

func (s *LinkService) List(ctx context.Context, owner string) ([]domain.Link, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	links, err := s.store.FindByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("%w: list links: %v", domain.ErrInternal, err)
	}
	if links == nil {
		links = []domain.Link{}
	}
	return links, nil
}

func (s *LinkService) Delete(ctx context.Context, id, owner string) error {
	if err := requireOwner(owner); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("%w: link id is required", domain.ErrValidation)
	}
	err := s.store.DeleteByID(ctx, id, owner)
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: delete link: %v", domain.ErrInternal, err)
}

// Migrate moves the candidates' anonymous links into owner's partition.
// Candidates are matched by slug; the destination the client holds is not
// compared. Candidates with no anonymous link under their slug are skipped.
func (s *LinkService) Migrate(ctx context.Context, owner string, candidates []domain.MigrationCandidate) (*domain.MigrationResult, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}

	migrated := []domain.Link{}
	for _, c := range candidates {
		link, err := s.migrateOne(ctx, owner, c)
		if err != nil {
			return nil, err
		}
		if link != nil {
			migrated = append(migrated, *link)
		}
	}

	links, err := s.List(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(migrated) > 0 {
		s.logger.Info("links migrated", "owner", owner, "count", len(migrated))
	}
	return &domain.MigrationResult{Migrated: migrated, Links: links}, nil
}

func (s *LinkService) migrateOne(ctx context.Context, owner string, c domain.MigrationCandidate) (*domain.Link, error) {
	if c.Slug == "" {
		return nil, nil
	}
	anon, err := s.store.FindAnonymousBySlug(ctx, c.Slug)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find anonymous link: %v", domain.ErrInternal, err)
	}
	moved := *anon
	moved.Owner = owner
	if moved.ID == "" {
		moved.ID = uuid.New().String()
	}

	// Insert before delete: an interrupted move leaves a duplicate, never a gap.
	if err := s.store.Create(ctx, &moved); err != nil {
		if !errors.Is(err, domain.ErrSlugConflict) {
			return nil, fmt.Errorf("%w: create named link: %v", domain.ErrInternal, err)
		}
		existing, ferr := s.store.FindNamedBySlug(ctx, c.Slug)
		if ferr != nil || existing.Owner != owner {
			return nil, nil
		}
		moved = *existing
	}

	if err := s.store.DeleteAnonymousBySlug(ctx, anon.Slug); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: delete anonymous link: %v", domain.ErrInternal, err)
	}
	return &moved, nil
}

func requireOwner(owner string) error {
	if owner == "" || owner == domain.Anonymous {
		return domain.ErrUnauthorized
	}
	return nil
}

func validateDestination(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: original_url is required", domain.ErrValidation)
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: original_url must be an absolute http(s) URL", domain.ErrValidation)
	}
	return nil
}

func validateCustomSlug(slug string) error {
	if !customSlugPattern.MatchString(slug) {
		return fmt.Errorf("%w: custom slug must be 1-64 letters, digits, '-' or '_'", domain.ErrValidation)
	}
	if reservedSlugs[slug] {
		return fmt.Errorf("%w: custom slug %q is reserved", domain.ErrValidation, slug)
	}
	return nil
}
