// Package gormstore is a ports.Store backed by GORM.
package gormstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Repository provides link and account storage through GORM.
type Repository struct {
	db *gorm.DB
}

// Open connects to the SQLite database at dsn and migrates the schema.
func Open(dsn string) (*Repository, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	repo := NewRepository(db)
	if err := repo.Migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return repo, nil
}

// NewRepository wraps an open GORM handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates or updates the tables.
func (r *Repository) Migrate() error {
	if err := r.db.AutoMigrate(&linkRecord{}, &anonymousRecord{}, &accountRecord{}); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *Repository) Create(ctx context.Context, link *domain.Link) error {
	var err error
	if link.IsAnonymous() {
		rec := toAnonymousRecord(link)
		err = r.db.WithContext(ctx).Create(&rec).Error
	} else {
		rec := toLinkRecord(link)
		err = r.db.WithContext(ctx).Create(&rec).Error
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrSlugConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}
	return nil
}

func (r *Repository) FindBySlug(ctx context.Context, slug string) (*domain.Link, error) {
	link, err := r.FindAnonymousBySlug(ctx, slug)
	if !errors.Is(err, domain.ErrNotFound) {
		return link, err
	}
	return r.FindNamedBySlug(ctx, slug)
}

func (r *Repository) FindAnonymousBySlug(ctx context.Context, slug string) (*domain.Link, error) {
	var rec anonymousRecord
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).Take(&rec).Error; err != nil {
		return nil, notFound(err)
	}
	l := rec.toDomain()
	return &l, nil
}

func (r *Repository) FindNamedBySlug(ctx context.Context, slug string) (*domain.Link, error) {
	var rec linkRecord
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).Take(&rec).Error; err != nil {
		return nil, notFound(err)
	}
	l := rec.toDomain()
	return &l, nil
}

func (r *Repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&anonymousRecord{}).Where("slug = ?", slug).Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	if err := r.db.WithContext(ctx).Model(&linkRecord{}).Where("slug = ?", slug).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repository) FindByOwner(ctx context.Context, owner string) ([]domain.Link, error) {
	links := []domain.Link{}
	if owner == domain.Anonymous {
		var recs []anonymousRecord
		if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&recs).Error; err != nil {
			return nil, err
		}
		for _, rec := range recs {
			links = append(links, rec.toDomain())
		}
		return links, nil
	}

	var recs []linkRecord
	if err := r.db.WithContext(ctx).Where("user_id = ?", owner).Order("created_at DESC").Find(&recs).Error; err != nil {
		return nil, err
	}
	for _, rec := range recs {
		links = append(links, rec.toDomain())
	}
	return links, nil
}

func (r *Repository) DeleteByID(ctx context.Context, id, owner string) error {
	if owner == domain.Anonymous {
		return affected(r.db.WithContext(ctx).Where("id = ?", id).Delete(&anonymousRecord{}))
	}
	return affected(r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, owner).Delete(&linkRecord{}))
}

func (r *Repository) DeleteAnonymousBySlug(ctx context.Context, slug string) error {
	return affected(r.db.WithContext(ctx).Where("slug = ?", slug).Delete(&anonymousRecord{}))
}

func (r *Repository) DeleteByOwner(ctx context.Context, owner string) (int64, error) {
	var result *gorm.DB
	if owner == domain.Anonymous {
		result = r.db.WithContext(ctx).Where("1 = 1").Delete(&anonymousRecord{})
	} else {
		result = r.db.WithContext(ctx).Where("user_id = ?", owner).Delete(&linkRecord{})
	}
	return result.RowsAffected, result.Error
}

func (r *Repository) IncrementClicks(ctx context.Context, link *domain.Link) error {
	incr := gorm.Expr("clicks + ?", 1)
	if link.IsAnonymous() {
		return affected(r.db.WithContext(ctx).Model(&anonymousRecord{}).
			Where("slug = ?", link.Slug).UpdateColumn("clicks", incr))
	}
	return affected(r.db.WithContext(ctx).Model(&linkRecord{}).
		Where("id = ? AND user_id = ?", link.ID, link.Owner).UpdateColumn("clicks", incr))
}

func (r *Repository) Dump(ctx context.Context) ([]domain.Link, error) {
	var anon []anonymousRecord
	if err := r.db.WithContext(ctx).Order("created_at").Find(&anon).Error; err != nil {
		return nil, err
	}
	var named []linkRecord
	if err := r.db.WithContext(ctx).Order("created_at").Find(&named).Error; err != nil {
		return nil, err
	}

	links := make([]domain.Link, 0, len(anon)+len(named))
	for _, rec := range anon {
		links = append(links, rec.toDomain())
	}
	for _, rec := range named {
		links = append(links, rec.toDomain())
	}
	return links, nil
}

func (r *Repository) CreateAccount(ctx context.Context, account *domain.Account) error {
	rec := accountRecord{
		ID:           account.ID,
		Email:        account.Email,
		Username:     account.Username,
		PasswordHash: account.PasswordHash,
		CreatedNano:  account.CreatedAt.UnixNano(),
	}
	err := r.db.WithContext(ctx).Create(&rec).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrEmailTaken
	}
	return err
}

func (r *Repository) FindAccountByID(ctx context.Context, id string) (*domain.Account, error) {
	var rec accountRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error; err != nil {
		return nil, notFound(err)
	}
	return rec.toDomain(), nil
}

func (r *Repository) FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var rec accountRecord
	if err := r.db.WithContext(ctx).Where("email = ?", email).Take(&rec).Error; err != nil {
		return nil, notFound(err)
	}
	return rec.toDomain(), nil
}

func (r *Repository) DeleteAccount(ctx context.Context, id string) error {
	return affected(r.db.WithContext(ctx).Where("id = ?", id).Delete(&accountRecord{}))
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

func affected(result *gorm.DB) error {
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ ports.Store = (*Repository)(nil)
