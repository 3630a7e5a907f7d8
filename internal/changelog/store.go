// Package changelog persists computed version diffs in an append-only
// SQLite store keyed by version pair. A recorded diff is never mutated;
// re-recording the same pair is an error.
package changelog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chuanqiong/sdex/internal/diff"
	sdexerrors "github.com/chuanqiong/sdex/internal/errors"
	"github.com/chuanqiong/sdex/internal/sde"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS changesets (
    old_version TEXT NOT NULL,
    new_version TEXT NOT NULL,
    created_at  TEXT NOT NULL,
    added       INTEGER NOT NULL,
    removed     INTEGER NOT NULL,
    modified    INTEGER NOT NULL,
    unchanged   INTEGER NOT NULL,
    PRIMARY KEY (old_version, new_version)
);

CREATE TABLE IF NOT EXISTS changes (
    old_version TEXT NOT NULL,
    new_version TEXT NOT NULL,
    entity_id   INTEGER NOT NULL,
    kind        TEXT NOT NULL,
    PRIMARY KEY (old_version, new_version, entity_id)
);

CREATE TABLE IF NOT EXISTS deltas (
    old_version TEXT NOT NULL,
    new_version TEXT NOT NULL,
    entity_id   INTEGER NOT NULL,
    ordinal     INTEGER NOT NULL,
    path        TEXT NOT NULL,
    old_value   TEXT,
    new_value   TEXT,
    PRIMARY KEY (old_version, new_version, entity_id, ordinal)
);
`

// Entry is one recorded changeset as listed by List, without its records.
type Entry struct {
	OldVersion string
	NewVersion string
	CreatedAt  time.Time
	Summary    diff.Summary
}

// Store is a changelog database handle. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	logger *slog.Logger
	closed bool
}

// Open opens (creating if necessary) the changelog database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, sdexerrors.New(sdexerrors.ErrCodeSourceUnreadable, "cannot create changelog directory", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, sdexerrors.New(sdexerrors.ErrCodeInternal, "cannot open changelog database", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, sdexerrors.New(sdexerrors.ErrCodeInternal, "cannot configure changelog database", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, sdexerrors.New(sdexerrors.ErrCodeInternal, "cannot initialize changelog schema", err)
	}
	if _, err := db.Exec(
		`INSERT OR IGNORE INTO meta (key, value) VALUES ('schema_version', ?)`,
		fmt.Sprintf("%d", schemaVersion),
	); err != nil {
		db.Close()
		return nil, sdexerrors.New(sdexerrors.ErrCodeInternal, "cannot write changelog meta", err)
	}

	db.SetMaxOpenConns(4)

	return &Store{db: db, path: path, logger: logger}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Put records a computed diff. The version pair must not already exist;
// recorded changesets are immutable.
func (s *Store) Put(ctx context.Context, d *diff.VersionDiff) error {
	if d == nil {
		return sdexerrors.New(sdexerrors.ErrCodeInternal, "nil diff", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return sdexerrors.New(sdexerrors.ErrCodeInternal, "changelog store is closed", nil)
	}

	exists, err := s.hasPair(ctx, d.OldVersion, d.NewVersion)
	if err != nil {
		return err
	}
	if exists {
		return sdexerrors.ChangelogDuplicate(d.OldVersion, d.NewVersion)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sdexerrors.New(sdexerrors.ErrCodeInternal, "cannot begin changelog transaction", err)
	}
	defer tx.Rollback()

	sum := d.Summarize()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO changesets (old_version, new_version, created_at, added, removed, modified, unchanged)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.OldVersion, d.NewVersion, time.Now().UTC().Format(time.RFC3339),
		sum.Added, sum.Removed, sum.Modified, sum.Unchanged,
	); err != nil {
		return sdexerrors.New(sdexerrors.ErrCodeInternal, "cannot insert changeset", err)
	}

	changeStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO changes (old_version, new_version, entity_id, kind) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return sdexerrors.New(sdexerrors.ErrCodeInternal, "cannot prepare change insert", err)
	}
	defer changeStmt.Close()

	deltaStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO deltas (old_version, new_version, entity_id, ordinal, path, old_value, new_value)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return sdexerrors.New(sdexerrors.ErrCodeInternal, "cannot prepare delta insert", err)
	}
	defer deltaStmt.Close()

	for _, rec := range d.Records {
		if _, err := changeStmt.ExecContext(ctx,
			d.OldVersion, d.NewVersion, rec.EntityID, string(rec.Kind)); err != nil {
			return sdexerrors.New(sdexerrors.ErrCodeInternal, "cannot insert change record", err)
		}
		// The ordinal keys each delta and preserves emission order.
		// Path strings alone cannot key rows: a literal "a.b" mapping
		// key and a nested a -> b both render the same path.
		for i, fd := range rec.Deltas {
			// NULL columns mark a side where the path is absent,
			// distinct from an encoded JSON null value.
			if _, err := deltaStmt.ExecContext(ctx,
				d.OldVersion, d.NewVersion, rec.EntityID, i, fd.Path,
				encodeSide(fd.Old), encodeSide(fd.New)); err != nil {
				return sdexerrors.New(sdexerrors.ErrCodeInternal, "cannot insert field delta", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return sdexerrors.New(sdexerrors.ErrCodeInternal, "cannot commit changeset", err)
	}

	s.logger.Info("changelog_recorded",
		slog.String("old_version", d.OldVersion),
		slog.String("new_version", d.NewVersion),
		slog.Int("records", len(d.Records)))
	return nil
}

// Get loads the recorded diff for a version pair. Records come back
// sorted by entity ID ascending; each record's deltas keep the order
// they were recorded in.
func (s *Store) Get(ctx context.Context, oldVersion, newVersion string) (*diff.VersionDiff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, sdexerrors.New(sdexerrors.ErrCodeInternal, "changelog store is closed", nil)
	}

	exists, err := s.hasPair(ctx, oldVersion, newVersion)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, sdexerrors.ChangelogNotFound(oldVersion, newVersion)
	}

	deltasByID, err := s.loadDeltas(ctx, oldVersion, newVersion)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_id, kind FROM changes
		 WHERE old_version = ? AND new_version = ?
		 ORDER BY entity_id`, oldVersion, newVersion)
	if err != nil {
		return nil, sdexerrors.New(sdexerrors.ErrCodeInternal, "cannot query change records", err)
	}
	defer rows.Close()

	result := &diff.VersionDiff{OldVersion: oldVersion, NewVersion: newVersion}
	for rows.Next() {
		var id int64
		var kind string
		if err := rows.Scan(&id, &kind); err != nil {
			return nil, sdexerrors.New(sdexerrors.ErrCodeInternal, "cannot scan change record", err)
		}
		result.Records = append(result.Records, diff.ChangeRecord{
			EntityID: id,
			Kind:     diff.Kind(kind),
			Deltas:   deltasByID[id],
		})
	}
	if err := rows.Err(); err != nil {
		return nil, sdexerrors.New(sdexerrors.ErrCodeInternal, "cannot read change records", err)
	}
	return result, nil
}

// List returns all recorded changesets, newest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, sdexerrors.New(sdexerrors.ErrCodeInternal, "changelog store is closed", nil)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT old_version, new_version, created_at, added, removed, modified, unchanged
		 FROM changesets ORDER BY created_at DESC, old_version, new_version`)
	if err != nil {
		return nil, sdexerrors.New(sdexerrors.ErrCodeInternal, "cannot query changesets", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.OldVersion, &e.NewVersion, &created,
			&e.Summary.Added, &e.Summary.Removed, &e.Summary.Modified, &e.Summary.Unchanged); err != nil {
			return nil, sdexerrors.New(sdexerrors.ErrCodeInternal, "cannot scan changeset", err)
		}
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, sdexerrors.New(sdexerrors.ErrCodeInternal, "cannot read changesets", err)
	}
	return entries, nil
}

// Close closes the database handle. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) hasPair(ctx context.Context, oldVersion, newVersion string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM changesets WHERE old_version = ? AND new_version = ?`,
		oldVersion, newVersion).Scan(&n)
	if err != nil {
		return false, sdexerrors.New(sdexerrors.ErrCodeInternal, "cannot check changeset", err)
	}
	return n > 0, nil
}

func (s *Store) loadDeltas(ctx context.Context, oldVersion, newVersion string) (map[int64][]diff.FieldDelta, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_id, path, old_value, new_value FROM deltas
		 WHERE old_version = ? AND new_version = ?
		 ORDER BY entity_id, ordinal`, oldVersion, newVersion)
	if err != nil {
		return nil, sdexerrors.New(sdexerrors.ErrCodeInternal, "cannot query field deltas", err)
	}
	defer rows.Close()

	byID := make(map[int64][]diff.FieldDelta)
	for rows.Next() {
		var id int64
		var path string
		var oldRaw, newRaw sql.NullString
		if err := rows.Scan(&id, &path, &oldRaw, &newRaw); err != nil {
			return nil, sdexerrors.New(sdexerrors.ErrCodeInternal, "cannot scan field delta", err)
		}

		byID[id] = append(byID[id], diff.FieldDelta{
			Path: path,
			Old:  decodeSide(oldRaw),
			New:  decodeSide(newRaw),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, sdexerrors.New(sdexerrors.ErrCodeInternal, "cannot read field deltas", err)
	}
	return byID, nil
}

func encodeSide(v *sde.Value) any {
	if v == nil {
		return nil
	}
	return v.EncodeJSON()
}

func decodeSide(raw sql.NullString) *sde.Value {
	if !raw.Valid {
		return nil
	}
	v, err := sde.DecodeJSON([]byte(raw.String))
	if err != nil {
		n := sde.Null()
		return &n
	}
	return &v
}
