package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	sdexerrors "github.com/chuanqiong/sdex/internal/errors"
	"github.com/chuanqiong/sdex/internal/sde"
)

// resolveCacheSize bounds the ID -> IndexedRecord cache. Changelog
// rendering resolves the same IDs repeatedly.
const resolveCacheSize = 4096

// Store is a read-only handle to a built index. It owns its on-disk
// representation; the search engine and changelog consumers hold the
// handle and never mutate it.
type Store struct {
	mu            sync.RWMutex
	db            *sql.DB
	path          string
	preferredLang string
	cache         *lru.Cache[int64, *IndexedRecord]
	closed        bool
}

// Open opens an existing index store. The preferred language selects the
// primary display name; English is the fallback and the secondary name.
func Open(path, preferredLang string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, sdexerrors.New(sdexerrors.ErrCodeSourceNotFound,
			"index store not found: "+path, err)
	}
	if err := validateIntegrity(path); err != nil {
		return nil, sdexerrors.New(sdexerrors.ErrCodeCorruptIndex,
			"index store failed validation: "+path, err)
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, sdexerrors.Wrap(sdexerrors.ErrCodeCorruptIndex, err)
	}

	// Readers may run concurrently; WAL permits that without blocking.
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, sdexerrors.Wrap(sdexerrors.ErrCodeCorruptIndex, err)
		}
	}

	cache, err := lru.New[int64, *IndexedRecord](resolveCacheSize)
	if err != nil {
		_ = db.Close()
		return nil, sdexerrors.Wrap(sdexerrors.ErrCodeInternal, err)
	}

	return &Store{
		db:            db,
		path:          path,
		preferredLang: preferredLang,
		cache:         cache,
	}, nil
}

// validateIntegrity checks the database before opening it for queries.
func validateIntegrity(path string) error {
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
	                   WHERE type='table' AND name IN ('entities','names','tokens','meta')`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count != 4 {
		return fmt.Errorf("index schema incomplete (%d/4 tables)", count)
	}
	return nil
}

// Path returns the on-disk location of the store.
func (s *Store) Path() string { return s.path }

// Version returns the snapshot version the store was built from.
func (s *Store) Version(ctx context.Context) (string, error) {
	return s.metaValue(ctx, metaKeyVersion)
}

// HasEntity reports whether the given ID exists in the store.
func (s *Store) HasEntity(ctx context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, errClosed()
	}

	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM entities WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// EntityAttrs returns the stored attribute tree of an entity.
func (s *Store) EntityAttrs(ctx context.Context, id int64) (sde.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return sde.Null(), errClosed()
	}

	var attrs string
	err := s.db.QueryRowContext(ctx, `SELECT attrs FROM entities WHERE id = ?`, id).Scan(&attrs)
	if err == sql.ErrNoRows {
		return sde.Null(), fmt.Errorf("entity %d not found", id)
	}
	if err != nil {
		return sde.Null(), err
	}
	return sde.DecodeJSON([]byte(attrs))
}

// Resolve returns the IndexedRecord for an ID, or nil when absent.
// Lookups are cached; the cache belongs to this store handle, so a swap
// to a new store never serves stale projections.
func (s *Store) Resolve(ctx context.Context, id int64) (*IndexedRecord, error) {
	if rec, ok := s.cache.Get(id); ok {
		return rec, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed()
	}

	var category string
	err := s.db.QueryRowContext(ctx, `SELECT category FROM entities WHERE id = ?`, id).Scan(&category)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT language, name FROM names WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	names := make(map[string]string)
	for rows.Next() {
		var lang, name string
		if err := rows.Scan(&lang, &name); err != nil {
			return nil, err
		}
		names[lang] = name
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rec := &IndexedRecord{
		ID:            id,
		PrimaryName:   pickName(names, s.preferredLang),
		SecondaryName: names["en"],
		Category:      category,
	}
	s.cache.Add(id, rec)
	return rec, nil
}

// pickName applies the preferred-language-then-English-then-any fallback.
func pickName(names map[string]string, lang string) string {
	if n := names[lang]; n != "" {
		return n
	}
	if n := names["en"]; n != "" {
		return n
	}
	for _, n := range names {
		if n != "" {
			return n
		}
	}
	return ""
}

// IDsByExactName returns IDs whose normalized name equals norm exactly.
func (s *Store) IDsByExactName(ctx context.Context, norm string) ([]int64, error) {
	return s.queryIDs(ctx, `SELECT DISTINCT id FROM names WHERE norm = ? ORDER BY id`, norm)
}

// IDsByToken returns IDs carrying the exact token.
func (s *Store) IDsByToken(ctx context.Context, token string) ([]int64, error) {
	return s.queryIDs(ctx, `SELECT id FROM tokens WHERE token = ? ORDER BY id`, token)
}

// IDsByTokenPrefix returns IDs with any token starting with norm.
// Full names are indexed as tokens, so this covers name prefixes too.
func (s *Store) IDsByTokenPrefix(ctx context.Context, norm string) ([]int64, error) {
	pattern := escapeLike(norm) + "%"
	return s.queryIDs(ctx, `SELECT DISTINCT id FROM tokens WHERE token LIKE ? ESCAPE '\' ORDER BY id`, pattern)
}

// IDsByTokenSubstring returns IDs with any token containing norm.
func (s *Store) IDsByTokenSubstring(ctx context.Context, norm string) ([]int64, error) {
	pattern := "%" + escapeLike(norm) + "%"
	return s.queryIDs(ctx, `SELECT DISTINCT id FROM tokens WHERE token LIKE ? ESCAPE '\' ORDER BY id`, pattern)
}

func (s *Store) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed()
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Stats returns index statistics read from the store.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed()
	}

	st := &Stats{}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities`).Scan(&st.EntityCount); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM names`).Scan(&st.NameCount); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tokens`).Scan(&st.TokenCount); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM entities GROUP BY category ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var cat CategoryCount
		if err := rows.Scan(&cat.Name, &cat.Count); err != nil {
			return nil, err
		}
		st.Categories = append(st.Categories, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var version, builtAt string
	_ = s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaKeyVersion).Scan(&version)
	_ = s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaKeyBuiltAt).Scan(&builtAt)
	st.Version = version
	if t, err := time.Parse(time.RFC3339, builtAt); err == nil {
		st.BuiltAt = t
	}
	return st, nil
}

func (s *Store) metaValue(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", errClosed()
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Close closes the store. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func errClosed() error {
	return fmt.Errorf("index store is closed")
}

// escapeLike escapes LIKE wildcards in a user-supplied term.
func escapeLike(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '%', '_', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// ParseID parses a decimal entity ID; ok is false for non-numeric input.
func ParseID(term string) (int64, bool) {
	id, err := strconv.ParseInt(term, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
