// Package postgres is a ports.Store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS links (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	original_url TEXT NOT NULL,
	slug TEXT NOT NULL UNIQUE,
	clicks BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_links_user_id ON links (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS anonymous_links (
	slug TEXT PRIMARY KEY,
	id TEXT NOT NULL DEFAULT '',
	original_url TEXT NOT NULL,
	clicks BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	username TEXT NOT NULL,
	password_hash TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);`

const (
	namedColumns     = `id, user_id, original_url, slug, clicks, created_at`
	anonymousColumns = `id, original_url, slug, clicks, created_at`
)

type Repository struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL and ensures the schema exists.
func Open(ctx context.Context, databaseURL string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func scanNamed(row pgx.Row) (*domain.Link, error) {
	var l domain.Link
	if err := row.Scan(&l.ID, &l.Owner, &l.Destination, &l.Slug, &l.Clicks, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.CreatedAt = l.CreatedAt.UTC()
	return &l, nil
}

func scanAnonymous(row pgx.Row) (*domain.Link, error) {
	var l domain.Link
	if err := row.Scan(&l.ID, &l.Destination, &l.Slug, &l.Clicks, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.Owner = domain.Anonymous
	l.CreatedAt = l.CreatedAt.UTC()
	return &l, nil
}

func (r *Repository) Create(ctx context.Context, link *domain.Link) error {
	var err error
	if link.IsAnonymous() {
		_, err = r.pool.Exec(ctx,
			`INSERT INTO anonymous_links (`+anonymousColumns+`) VALUES ($1, $2, $3, $4, $5)`,
			link.ID, link.Destination, link.Slug, link.Clicks, link.CreatedAt)
	} else {
		_, err = r.pool.Exec(ctx,
			`INSERT INTO links (`+namedColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
			link.ID, link.Owner, link.Destination, link.Slug, link.Clicks, link.CreatedAt)
	}
	if isUniqueViolation(err) {
		return domain.ErrSlugConflict
	}
	return err
}

func (r *Repository) FindBySlug(ctx context.Context, slug string) (*domain.Link, error) {
	link, err := r.FindAnonymousBySlug(ctx, slug)
	if !errors.Is(err, domain.ErrNotFound) {
		return link, err
	}
	return r.FindNamedBySlug(ctx, slug)
}

func (r *Repository) FindAnonymousBySlug(ctx context.Context, slug string) (*domain.Link, error) {
	link, err := scanAnonymous(r.pool.QueryRow(ctx, `SELECT `+anonymousColumns+` FROM anonymous_links WHERE slug = $1`, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return link, err
}

func (r *Repository) FindNamedBySlug(ctx context.Context, slug string) (*domain.Link, error) {
	link, err := scanNamed(r.pool.QueryRow(ctx, `SELECT `+namedColumns+` FROM links WHERE slug = $1`, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return link, err
}

func (r *Repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT
		EXISTS (SELECT 1 FROM anonymous_links WHERE slug = $1) OR
		EXISTS (SELECT 1 FROM links WHERE slug = $1)`, slug).Scan(&exists)
	return exists, err
}

func (r *Repository) FindByOwner(ctx context.Context, owner string) ([]domain.Link, error) {
	if owner == domain.Anonymous {
		return r.queryLinks(ctx, scanAnonymous,
			`SELECT `+anonymousColumns+` FROM anonymous_links ORDER BY created_at DESC`)
	}
	return r.queryLinks(ctx, scanNamed,
		`SELECT `+namedColumns+` FROM links WHERE user_id = $1 ORDER BY created_at DESC`, owner)
}

func (r *Repository) queryLinks(ctx context.Context, scan func(pgx.Row) (*domain.Link, error), query string, args ...any) ([]domain.Link, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	links := []domain.Link{}
	for rows.Next() {
		l, err := scan(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, *l)
	}
	return links, rows.Err()
}

func (r *Repository) DeleteByID(ctx context.Context, id, owner string) error {
	if owner == domain.Anonymous {
		return expectAffected(r.pool.Exec(ctx, `DELETE FROM anonymous_links WHERE id = $1`, id))
	}
	return expectAffected(r.pool.Exec(ctx, `DELETE FROM links WHERE id = $1 AND user_id = $2`, id, owner))
}

func (r *Repository) DeleteAnonymousBySlug(ctx context.Context, slug string) error {
	return expectAffected(r.pool.Exec(ctx, `DELETE FROM anonymous_links WHERE slug = $1`, slug))
}

func (r *Repository) DeleteByOwner(ctx context.Context, owner string) (int64, error) {
	var tag pgconn.CommandTag
	var err error
	if owner == domain.Anonymous {
		tag, err = r.pool.Exec(ctx, `DELETE FROM anonymous_links`)
	} else {
		tag, err = r.pool.Exec(ctx, `DELETE FROM links WHERE user_id = $1`, owner)
	}
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) IncrementClicks(ctx context.Context, link *domain.Link) error {
	if link.IsAnonymous() {
		return expectAffected(r.pool.Exec(ctx, `UPDATE anonymous_links SET clicks = clicks + 1 WHERE slug = $1`, link.Slug))
	}
	return expectAffected(r.pool.Exec(ctx, `UPDATE links SET clicks = clicks + 1 WHERE id = $1 AND user_id = $2`, link.ID, link.Owner))
}

func expectAffected(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) Dump(ctx context.Context) ([]domain.Link, error) {
	anonymous, err := r.queryLinks(ctx, scanAnonymous, `SELECT `+anonymousColumns+` FROM anonymous_links ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	named, err := r.queryLinks(ctx, scanNamed, `SELECT `+namedColumns+` FROM links ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	return append(anonymous, named...), nil
}

func (r *Repository) CreateAccount(ctx context.Context, account *domain.Account) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO accounts (id, email, username, password_hash, created_at) VALUES ($1, $2, $3, $4, $5)`,
		account.ID, account.Email, account.Username, account.PasswordHash, account.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrEmailTaken
	}
	return err
}

func (r *Repository) FindAccountByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.findAccount(ctx, `id = $1`, id)
}

func (r *Repository) FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findAccount(ctx, `email = $1`, email)
}

func (r *Repository) findAccount(ctx context.Context, where, arg string) (*domain.Account, error) {
	var a domain.Account
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, username, password_hash, created_at FROM accounts WHERE `+where, arg,
	).Scan(&a.ID, &a.Email, &a.Username, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}

func (r *Repository) DeleteAccount(ctx context.Context, id string) error {
	return expectAffected(r.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id))
}

var _ ports.Store = (*Repository)(nil)
