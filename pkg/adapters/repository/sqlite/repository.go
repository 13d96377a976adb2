package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
	_ "modernc.org/sqlite" // Local SQLite driver
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbURL string) (*SQLiteRepository, error) {
	driverName := "sqlite"
	if strings.Contains(dbURL, "libsql://") || strings.Contains(dbURL, "wss://") {
		driverName = "libsql"
	}

	db, err := sql.Open(driverName, dbURL)
	if err != nil {
		return nil, err
	}
	if driverName == "sqlite" {
		// A local file or in-memory database takes one writer at a time.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{db: db}, nil
}

func migrate(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS links (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			original_url TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			clicks INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_links_user_id ON links(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS anonymous_links (
			id TEXT NOT NULL DEFAULT '',
			original_url TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			clicks INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			username TEXT NOT NULL,
			password_hash TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
	}
	// libsql over HTTP does not accept several statements in one Exec.
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNamed(row scanner) (*domain.Link, error) {
	var l domain.Link
	var createdAt int64
	if err := row.Scan(&l.ID, &l.Owner, &l.Destination, &l.Slug, &l.Clicks, &createdAt); err != nil {
		return nil, err
	}
	l.CreatedAt = time.Unix(0, createdAt).UTC()
	return &l, nil
}

func scanAnonymous(row scanner) (*domain.Link, error) {
	var l domain.Link
	var createdAt int64
	if err := row.Scan(&l.ID, &l.Destination, &l.Slug, &l.Clicks, &createdAt); err != nil {
		return nil, err
	}
	l.Owner = domain.Anonymous
	l.CreatedAt = time.Unix(0, createdAt).UTC()
	return &l, nil
}

const (
	namedColumns     = `id, user_id, original_url, slug, clicks, created_at`
	anonymousColumns = `id, original_url, slug, clicks, created_at`
)

func (r *SQLiteRepository) Create(ctx context.Context, link *domain.Link) error {
	var err error
	if link.IsAnonymous() {
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO anonymous_links (`+anonymousColumns+`) VALUES (?, ?, ?, ?, ?)`,
			link.ID, link.Destination, link.Slug, link.Clicks, link.CreatedAt.UnixNano())
	} else {
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO links (`+namedColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
			link.ID, link.Owner, link.Destination, link.Slug, link.Clicks, link.CreatedAt.UnixNano())
	}
	if isUniqueViolation(err) {
		return domain.ErrSlugConflict
	}
	return err
}

func (r *SQLiteRepository) FindBySlug(ctx context.Context, slug string) (*domain.Link, error) {
	link, err := r.FindAnonymousBySlug(ctx, slug)
	if !errors.Is(err, domain.ErrNotFound) {
		return link, err
	}
	return r.FindNamedBySlug(ctx, slug)
}

func (r *SQLiteRepository) FindAnonymousBySlug(ctx context.Context, slug string) (*domain.Link, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+anonymousColumns+` FROM anonymous_links WHERE slug = ?`, slug)
	link, err := scanAnonymous(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return link, err
}

func (r *SQLiteRepository) FindNamedBySlug(ctx context.Context, slug string) (*domain.Link, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+namedColumns+` FROM links WHERE slug = ?`, slug)
	link, err := scanNamed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return link, err
}

func (r *SQLiteRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT
		EXISTS (SELECT 1 FROM anonymous_links WHERE slug = ?) OR
		EXISTS (SELECT 1 FROM links WHERE slug = ?)`, slug, slug).Scan(&exists)
	return exists, err
}

func (r *SQLiteRepository) FindByOwner(ctx context.Context, owner string) ([]domain.Link, error) {
	if owner == domain.Anonymous {
		return r.queryLinks(ctx, scanAnonymous,
			`SELECT `+anonymousColumns+` FROM anonymous_links ORDER BY created_at DESC`)
	}
	return r.queryLinks(ctx, scanNamed,
		`SELECT `+namedColumns+` FROM links WHERE user_id = ? ORDER BY created_at DESC`, owner)
}

func (r *SQLiteRepository) queryLinks(ctx context.Context, scan func(scanner) (*domain.Link, error), query string, args ...any) ([]domain.Link, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
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

func (r *SQLiteRepository) DeleteByID(ctx context.Context, id, owner string) error {
	var res sql.Result
	var err error
	if owner == domain.Anonymous {
		res, err = r.db.ExecContext(ctx, `DELETE FROM anonymous_links WHERE id = ?`, id)
	} else {
		res, err = r.db.ExecContext(ctx, `DELETE FROM links WHERE id = ? AND user_id = ?`, id, owner)
	}
	return expectAffected(res, err)
}

func (r *SQLiteRepository) DeleteAnonymousBySlug(ctx context.Context, slug string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM anonymous_links WHERE slug = ?`, slug)
	return expectAffected(res, err)
}

func (r *SQLiteRepository) DeleteByOwner(ctx context.Context, owner string) (int64, error) {
	var res sql.Result
	var err error
	if owner == domain.Anonymous {
		res, err = r.db.ExecContext(ctx, `DELETE FROM anonymous_links`)
	} else {
		res, err = r.db.ExecContext(ctx, `DELETE FROM links WHERE user_id = ?`, owner)
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// IncrementClicks keys anonymous records by slug since they may carry no id.
func (r *SQLiteRepository) IncrementClicks(ctx context.Context, link *domain.Link) error {
	var res sql.Result
	var err error
	if link.IsAnonymous() {
		res, err = r.db.ExecContext(ctx, `UPDATE anonymous_links SET clicks = clicks + 1 WHERE slug = ?`, link.Slug)
	} else {
		res, err = r.db.ExecContext(ctx, `UPDATE links SET clicks = clicks + 1 WHERE id = ? AND user_id = ?`, link.ID, link.Owner)
	}
	return expectAffected(res, err)
}

// expectAffected turns a statement that touched no rows into domain.ErrNotFound.
func expectAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Dump(ctx context.Context) ([]domain.Link, error) {
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

// --- Account Repository Implementation ---

func (r *SQLiteRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, username, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		account.ID, account.Email, account.Username, account.PasswordHash, account.CreatedAt.UnixNano())
	if isUniqueViolation(err) {
		return domain.ErrEmailTaken
	}
	return err
}

func (r *SQLiteRepository) FindAccountByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.findAccount(ctx, `id = ?`, id)
}

func (r *SQLiteRepository) FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findAccount(ctx, `email = ?`, email)
}

func (r *SQLiteRepository) findAccount(ctx context.Context, where string, arg string) (*domain.Account, error) {
	var a domain.Account
	var createdAt int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, username, password_hash, created_at FROM accounts WHERE `+where, arg,
	).Scan(&a.ID, &a.Email, &a.Username, &a.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.CreatedAt = time.Unix(0, createdAt).UTC()
	return &a, nil
}

func (r *SQLiteRepository) DeleteAccount(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	return expectAffected(res, err)
}

// Ensure interface compliance
var _ ports.Store = (*SQLiteRepository)(nil)
