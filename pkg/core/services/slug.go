package services

import (
	"context"
	"fmt"

	nanoid "github.com/jaevor/go-nanoid"
	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
)

const (
	// SlugAlphabet is the 62-character alphabet random slugs are drawn from.
	SlugAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// SlugLength is the length of a generated slug (62^5 values).
	SlugLength = 5
	// MaxSlugAttempts bounds the redraws after a random slug collides.
	MaxSlugAttempts = 5
)

// SlugExistsFunc reports whether a slug is taken in either partition.
type SlugExistsFunc func(ctx context.Context, slug string) (bool, error)

// SlugAllocator hands out slugs that were free at the time of the check.
type SlugAllocator struct {
	exists   SlugExistsFunc
	generate func() string
	attempts int
}

// NewRandomSlugs returns a generator of uniform random slugs over SlugAlphabet.
func NewRandomSlugs() (func() string, error) {
	return nanoid.CustomASCII(SlugAlphabet, SlugLength)
}

func NewSlugAllocator(exists SlugExistsFunc, generate func() string) *SlugAllocator {
	return &SlugAllocator{
		exists:   exists,
		generate: generate,
		attempts: MaxSlugAttempts,
	}
}

// Allocate returns requested if it is free, or a fresh random slug when
// requested is empty.
func (a *SlugAllocator) Allocate(ctx context.Context, requested string) (string, error) {
	if requested != "" {
		taken, err := a.exists(ctx, requested)
		if err != nil {
			return "", fmt.Errorf("%w: check slug: %v", domain.ErrInternal, err)
		}
		if taken {
			return "", fmt.Errorf("%w: %s", domain.ErrSlugConflict, requested)
		}
		return requested, nil
	}

	for i := 0; i < a.attempts; i++ {
		slug := a.generate()
		taken, err := a.exists(ctx, slug)
		if err != nil {
			return "", fmt.Errorf("%w: check slug: %v", domain.ErrInternal, err)
		}
		if !taken {
			return slug, nil
		}
	}
	return "", fmt.Errorf("%w: no free slug after %d attempts", domain.ErrInternal, a.attempts)
}
