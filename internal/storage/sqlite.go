package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/educatorstribe/tribenews/internal/types"
)

const articleColumns = `id, title, canonical_url, domain, image_url, category, source, published_at, fetched_at, is_relevant`

// SQLiteStore keeps articles in a local SQLite file. Writes go through a
// single connection; reads use a separate read-only pool.
type SQLiteStore struct {
	path    string
	writeDB *sql.DB
	readDB  *sql.DB
	logger  *slog.Logger
}

// OpenSQLite opens (creating if needed) the database at path and applies
// pending migrations.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &types.StorageError{Backend: "sqlite", Op: "open", Err: fmt.Errorf("creating db dir: %w", err)}
	}

	writeDB, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, &types.StorageError{Backend: "sqlite", Op: "open", Err: err}
	}
	writeDB.SetMaxOpenConns(1)

	if err := writeDB.PingContext(ctx); err != nil {
		writeDB.Close()
		return nil, &types.StorageError{Backend: "sqlite", Op: "ping", Err: err}
	}

	s := &SQLiteStore{
		path:    path,
		writeDB: writeDB,
		logger:  logger.With("component", "sqlite_storage"),
	}
	if _, err := s.Migrate(ctx); err != nil {
		writeDB.Close()
		return nil, err
	}

	readDB, err := sql.Open("sqlite", "file:"+path+"?mode=ro&_pragma=busy_timeout(5000)")
	if err != nil {
		writeDB.Close()
		return nil, &types.StorageError{Backend: "sqlite", Op: "open", Err: err}
	}
	s.readDB = readDB

	return s, nil
}

func (s *SQLiteStore) Name() string { return "sqlite" }

// Migrate applies pending schema migrations.
func (s *SQLiteStore) Migrate(_ context.Context) (string, error) {
	version, dirty, err := runMigrations(s.writeDB)
	if err != nil {
		return "", &types.StorageError{Backend: "sqlite", Op: "migrate", Err: err}
	}
	if dirty {
		return "", &types.StorageError{Backend: "sqlite", Op: "migrate", Err: fmt.Errorf("schema version %d is dirty", version)}
	}
	s.logger.Debug("schema ready", "path", s.path, "version", version)
	return fmt.Sprintf("sqlite schema v%d", version), nil
}

func (s *SQLiteStore) FindByURL(ctx context.Context, canonicalURL string) (*types.Article, error) {
	row := s.readDB.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE canonical_url = ?`, canonicalURL)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, &types.StorageError{Backend: "sqlite", Op: "find", Err: err}
	}
	return a, nil
}

// ApplyBatch runs the batch in one transaction.
func (s *SQLiteStore) ApplyBatch(ctx context.Context, b *Batch) (*BatchResult, error) {
	now := b.Now
	if now.IsZero() {
		now = time.Now()
	}

	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, &types.StorageError{Backend: "sqlite", Op: "begin", Err: err}
	}
	defer tx.Rollback()

	out := &BatchResult{}

	for _, a := range b.Inserts {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if a.FetchedAt.IsZero() {
			a.FetchedAt = now
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO articles (`+articleColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(canonical_url) DO NOTHING`,
			a.ID, a.Title, a.CanonicalURL, a.Domain, nullString(a.ImageURL), a.Category, a.Source,
			nullTime(a.PublishedAt), a.FetchedAt.UTC().UnixMicro(), a.IsRelevant,
		)
		if err != nil {
			return nil, &types.StorageError{Backend: "sqlite", Op: "insert", Err: err}
		}
		n, _ := res.RowsAffected()
		out.Inserted += int(n)
	}

	for _, bf := range b.Backfills {
		res, err := tx.ExecContext(ctx, `
			UPDATE articles SET image_url = ?, fetched_at = MAX(fetched_at, ?)
			WHERE canonical_url = ? AND (image_url IS NULL OR image_url = '')`,
			bf.ImageURL, now.UTC().UnixMicro(), bf.CanonicalURL,
		)
		if err != nil {
			return nil, &types.StorageError{Backend: "sqlite", Op: "backfill", Err: err}
		}
		n, _ := res.RowsAffected()
		out.Backfilled += int(n)
	}

	if out.Inserted == 0 && b.TouchLimit > 0 && b.Domain != "" {
		minTitle := b.MinTitleLength
		if minTitle <= 0 {
			minTitle = 1
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE articles SET fetched_at = MAX(fetched_at, ?)
			WHERE id IN (
				SELECT id FROM articles
				WHERE domain = ? AND is_relevant = 1 AND length(trim(title)) >= ?
				ORDER BY fetched_at DESC, rowid DESC
				LIMIT ?
			)`,
			now.UTC().UnixMicro(), b.Domain, minTitle, b.TouchLimit,
		)
		if err != nil {
			return nil, &types.StorageError{Backend: "sqlite", Op: "touch", Err: err}
		}
		n, _ := res.RowsAffected()
		out.Touched = int(n)
	}

	if err := tx.Commit(); err != nil {
		return nil, &types.StorageError{Backend: "sqlite", Op: "commit", Err: err}
	}

	s.logger.Debug("batch applied",
		"domain", b.Domain,
		"inserted", out.Inserted,
		"backfilled", out.Backfilled,
		"touched", out.Touched,
	)
	return out, nil
}

func (s *SQLiteStore) ListArticles(ctx context.Context, q ListQuery) ([]*types.Article, error) {
	where, args := listFilter(q)
	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, max(q.Offset, 0))

	rows, err := s.readDB.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM articles `+where+
			` ORDER BY fetched_at DESC, rowid DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, &types.StorageError{Backend: "sqlite", Op: "list", Err: err}
	}
	defer rows.Close()

	var out []*types.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, &types.StorageError{Backend: "sqlite", Op: "list", Err: err}
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.StorageError{Backend: "sqlite", Op: "list", Err: err}
	}
	return out, nil
}

func (s *SQLiteStore) CountArticles(ctx context.Context, q ListQuery) (int, error) {
	where, args := listFilter(q)
	var n int
	if err := s.readDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles `+where, args...).Scan(&n); err != nil {
		return 0, &types.StorageError{Backend: "sqlite", Op: "count", Err: err}
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	var errs []error
	if s.readDB != nil {
		errs = append(errs, s.readDB.Close())
	}
	if s.writeDB != nil {
		errs = append(errs, s.writeDB.Close())
	}
	return errors.Join(errs...)
}

func listFilter(q ListQuery) (string, []any) {
	clauses := []string{"is_relevant = 1"}
	var args []any

	if q.MinTitleLength > 0 {
		clauses = append(clauses, "length(trim(title)) >= ?")
		args = append(args, q.MinTitleLength)
	}
	if q.RequireImage {
		clauses = append(clauses, "image_url IS NOT NULL AND image_url != ''")
	}
	if q.Domain != "" {
		clauses = append(clauses, "domain = ?")
		args = append(args, q.Domain)
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(r rowScanner) (*types.Article, error) {
	var (
		a         types.Article
		image     sql.NullString
		published sql.NullInt64
		fetched   int64
	)
	if err := r.Scan(&a.ID, &a.Title, &a.CanonicalURL, &a.Domain, &image, &a.Category, &a.Source,
		&published, &fetched, &a.IsRelevant); err != nil {
		return nil, err
	}
	a.ImageURL = image.String
	if published.Valid {
		t := time.UnixMicro(published.Int64).UTC()
		a.PublishedAt = &t
	}
	a.FetchedAt = time.UnixMicro(fetched).UTC()
	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UTC().UnixMicro(), Valid: true}
}
