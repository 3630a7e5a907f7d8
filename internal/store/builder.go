package store

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"

	sdexerrors "github.com/chuanqiong/sdex/internal/errors"
	"github.com/chuanqiong/sdex/internal/sde"
)

// Builder constructs index stores from snapshots. The build happens at a
// scratch path and is published with an atomic rename: readers of a
// previously active store never observe a half-built state, and a failed
// build leaves the prior store fully intact.
type Builder struct {
	tokenizer     TokenizerConfig
	preferredLang string
	batchSize     int
	logger        *slog.Logger
}

// BuilderOptions configures index building.
type BuilderOptions struct {
	Tokenizer     TokenizerConfig
	PreferredLang string
	// BatchSize is the number of entities per insert transaction.
	BatchSize int
	Logger    *slog.Logger
}

// NewBuilder creates a Builder. Zero option fields take defaults.
func NewBuilder(opts BuilderOptions) *Builder {
	if opts.Tokenizer.MinTokenLength == 0 {
		opts.Tokenizer = DefaultTokenizerConfig()
	}
	if opts.PreferredLang == "" {
		opts.PreferredLang = "zh"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Builder{
		tokenizer:     opts.Tokenizer,
		preferredLang: opts.PreferredLang,
		batchSize:     opts.BatchSize,
		logger:        opts.Logger,
	}
}

// Build projects the snapshot into a fresh store at destPath and returns
// an open handle to it. Concurrent builds against the same destination are
// serialized with a file lock. On any failure the destination is left as
// it was (IndexBuildError); context cancellation aborts the build and the
// swap simply never happens.
func (b *Builder) Build(ctx context.Context, snap *sde.Snapshot, destPath string) (*Store, error) {
	if snap == nil {
		return nil, sdexerrors.IndexBuildError("nil snapshot", nil)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return nil, sdexerrors.IndexBuildError("cannot create index directory", err)
	}

	lock := flock.New(destPath + ".lock")
	if err := lock.Lock(); err != nil {
		return nil, sdexerrors.IndexBuildError("cannot acquire build lock", err)
	}
	defer func() { _ = lock.Unlock() }()

	tmpPath := destPath + ".building"
	removeDB(tmpPath) // stale scratch from a crashed build

	start := time.Now()
	b.logger.Info("index_build_started",
		slog.String("version", snap.Version),
		slog.Int("entities", snap.Len()),
		slog.String("dest", destPath))

	if err := b.buildAt(ctx, snap, tmpPath); err != nil {
		removeDB(tmpPath)
		if ctx.Err() != nil {
			b.logger.Warn("index_build_aborted", slog.String("version", snap.Version))
			return nil, ctx.Err()
		}
		return nil, err
	}

	// Publish: drop stale WAL companions of the old store, then rename.
	// Readers holding the old handle keep their file descriptors.
	removeWAL(destPath)
	if err := os.Rename(tmpPath, destPath); err != nil {
		removeDB(tmpPath)
		return nil, sdexerrors.IndexBuildError("cannot publish index", err)
	}

	b.logger.Info("index_build_finished",
		slog.String("version", snap.Version),
		slog.Duration("elapsed", time.Since(start)))

	return Open(destPath, b.preferredLang)
}

// buildAt writes the complete store to path.
func (b *Builder) buildAt(ctx context.Context, snap *sde.Snapshot, path string) error {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return sdexerrors.IndexBuildError("cannot create scratch database", err)
	}
	defer func() { _ = db.Close() }()

	// Single writer; bulk-load pragmas.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return sdexerrors.IndexBuildError("cannot set pragma", err)
		}
	}

	if err := initSchema(db); err != nil {
		return sdexerrors.IndexBuildError("cannot initialize schema", err)
	}

	ids := snap.IDs()
	for offset := 0; offset < len(ids); offset += b.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := offset + b.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		if err := b.insertBatch(ctx, db, snap, ids[offset:end]); err != nil {
			return sdexerrors.IndexBuildError("insert batch failed", err)
		}
	}

	if err := b.writeMeta(ctx, db, snap); err != nil {
		return sdexerrors.IndexBuildError("cannot write meta", err)
	}

	// Fold the WAL into the main file so the rename publishes everything.
	if _, err := db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return sdexerrors.IndexBuildError("checkpoint failed", err)
	}
	return nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE entities (
		id       INTEGER PRIMARY KEY,
		category TEXT NOT NULL,
		attrs    TEXT NOT NULL
	);

	CREATE TABLE names (
		id       INTEGER NOT NULL,
		language TEXT NOT NULL,
		name     TEXT NOT NULL,
		norm     TEXT NOT NULL,
		PRIMARY KEY (id, language)
	);
	CREATE INDEX idx_names_norm ON names(norm);

	CREATE TABLE tokens (
		token TEXT NOT NULL,
		id    INTEGER NOT NULL,
		PRIMARY KEY (token, id)
	) WITHOUT ROWID;
	`
	_, err := db.Exec(schema)
	return err
}

// insertBatch writes one transaction worth of entities with their names
// and tokens.
func (b *Builder) insertBatch(ctx context.Context, db *sql.DB, snap *sde.Snapshot, ids []int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	entityStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entities(id, category, attrs) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = entityStmt.Close() }()

	nameStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO names(id, language, name, norm) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = nameStmt.Close() }()

	tokenStmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO tokens(token, id) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = tokenStmt.Close() }()

	for _, id := range ids {
		ent := snap.Get(id)

		if _, err := entityStmt.ExecContext(ctx, ent.ID, ent.Category, ent.Attrs.EncodeJSON()); err != nil {
			return err
		}

		names := make([]string, 0, len(ent.Names))
		for lang, name := range ent.Names {
			if _, err := nameStmt.ExecContext(ctx, ent.ID, lang, name, Normalize(name)); err != nil {
				return err
			}
			names = append(names, name)
		}

		for _, token := range DeriveTokens(ent.ID, names, b.tokenizer) {
			if _, err := tokenStmt.ExecContext(ctx, token, ent.ID); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func (b *Builder) writeMeta(ctx context.Context, db *sql.DB, snap *sde.Snapshot) error {
	meta := map[string]string{
		metaKeyVersion:       snap.Version,
		metaKeyEntityCount:   formatInt(int64(snap.Len())),
		metaKeyBuiltAt:       time.Now().UTC().Format(time.RFC3339),
		metaKeySchemaVersion: formatInt(CurrentSchemaVersion),
		metaKeyReleaseDate:   snap.Meta.ReleaseDate,
	}
	for key, value := range meta {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO meta(key, value) VALUES (?, ?)`, key, value); err != nil {
			return err
		}
	}
	return nil
}

// removeDB deletes a database file and its WAL companions.
func removeDB(path string) {
	_ = os.Remove(path)
	removeWAL(path)
}

func removeWAL(path string) {
	_ = os.Remove(path + "-wal")
	_ = os.Remove(path + "-shm")
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
