package gormstore

import (
	"time"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
)

// Timestamps are kept as Unix nanoseconds so they round-trip exactly.

type linkRecord struct {
	ID          string `gorm:"primaryKey"`
	UserID      string `gorm:"not null;index:idx_links_user_id"`
	OriginalURL string `gorm:"not null"`
	Slug        string `gorm:"not null;uniqueIndex"`
	Clicks      int64  `gorm:"not null"`
	CreatedNano int64  `gorm:"column:created_at;not null"`
}

func (linkRecord) TableName() string { return "links" }

// anonymousRecord is keyed by slug; anonymous links may have no id.
type anonymousRecord struct {
	Slug        string `gorm:"primaryKey"`
	ID          string `gorm:"not null"`
	OriginalURL string `gorm:"not null"`
	Clicks      int64  `gorm:"not null"`
	CreatedNano int64  `gorm:"column:created_at;not null"`
}

func (anonymousRecord) TableName() string { return "anonymous_links" }

type accountRecord struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"not null;uniqueIndex"`
	Username     string `gorm:"not null"`
	PasswordHash string `gorm:"not null"`
	CreatedNano  int64  `gorm:"column:created_at;not null"`
}

func (accountRecord) TableName() string { return "accounts" }

func toLinkRecord(l *domain.Link) linkRecord {
	return linkRecord{
		ID:          l.ID,
		UserID:      l.Owner,
		OriginalURL: l.Destination,
		Slug:        l.Slug,
		Clicks:      l.Clicks,
		CreatedNano: l.CreatedAt.UnixNano(),
	}
}

func (r linkRecord) toDomain() domain.Link {
	return domain.Link{
		ID:          r.ID,
		Owner:       r.UserID,
		Destination: r.OriginalURL,
		Slug:        r.Slug,
		Clicks:      r.Clicks,
		CreatedAt:   time.Unix(0, r.CreatedNano).UTC(),
	}
}

func toAnonymousRecord(l *domain.Link) anonymousRecord {
	return anonymousRecord{
		Slug:        l.Slug,
		ID:          l.ID,
		OriginalURL: l.Destination,
		Clicks:      l.Clicks,
		CreatedNano: l.CreatedAt.UnixNano(),
	}
}

func (r anonymousRecord) toDomain() domain.Link {
	return domain.Link{
		ID:          r.ID,
		Owner:       domain.Anonymous,
		Destination: r.OriginalURL,
		Slug:        r.Slug,
		Clicks:      r.Clicks,
		CreatedAt:   time.Unix(0, r.CreatedNano).UTC(),
	}
}

func (r accountRecord) toDomain() *domain.Account {
	return &domain.Account{
		ID:           r.ID,
		Email:        r.Email,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		CreatedAt:    time.Unix(0, r.CreatedNano).UTC(),
	}
}
