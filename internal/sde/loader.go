package sde

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/errgroup"

	sdexerrors "github.com/chuanqiong/sdex/internal/errors"
)

// jsonLine decodes record lines with numbers preserved as json.Number.
// jsoniter keeps per-line decode cheap at million-row scale.
var jsonLine = jsoniter.Config{UseNumber: true}.Froze()

// metaFileName is the dataset meta record file carrying the build number.
const metaFileName = "_sde.jsonl"

// maxLineBytes bounds a single record line (some blueprint records are large).
const maxLineBytes = 8 * 1024 * 1024

// LoadWarning reports one skipped record. Per-record failures are
// recoverable: the record is dropped, loading continues.
type LoadWarning struct {
	Category string
	Line     int
	Reason   string
}

func (w LoadWarning) String() string {
	return fmt.Sprintf("%s:%d: %s", w.Category, w.Line, w.Reason)
}

// Loader parses raw per-category dataset files into snapshots.
type Loader struct {
	logger *slog.Logger
	// Parallelism bounds concurrent file parsing (default 4).
	Parallelism int
}

// NewLoader creates a Loader. A nil logger uses the process default.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger, Parallelism: 4}
}

// LoadDir reads every *.jsonl file under dir into a Snapshot. The file stem
// is the category tag of its records. A missing or unreadable directory or
// file is fatal; malformed records are skipped and reported as warnings.
//
// The fallback version tags the snapshot when dir has no meta record.
// Results are deterministic: files merge in sorted name order, so identical
// input bytes always produce an identical snapshot.
func (l *Loader) LoadDir(ctx context.Context, dir, fallbackVersion string) (*Snapshot, []LoadWarning, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, sdexerrors.New(sdexerrors.ErrCodeSourceNotFound,
			"cannot read dataset directory: "+dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jsonl") && e.Name() != metaFileName {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	snap := NewSnapshot(fallbackVersion)
	if meta, err := ReadVersionInfo(filepath.Join(dir, metaFileName)); err == nil {
		snap.Meta = meta
		snap.Version = meta.VersionTag()
	}

	type fileResult struct {
		entities []*Entity
		warnings []LoadWarning
	}
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.parallelism())
	for i, name := range files {
		g.Go(func() error {
			category := strings.TrimSuffix(name, ".jsonl")
			entities, warnings, err := l.LoadFile(ctx, filepath.Join(dir, name), category)
			if err != nil {
				return err
			}
			results[i] = fileResult{entities: entities, warnings: warnings}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	// Merge in sorted file order so duplicate handling stays deterministic.
	var warnings []LoadWarning
	for i, res := range results {
		warnings = append(warnings, res.warnings...)
		for _, ent := range res.entities {
			if _, exists := snap.Entities[ent.ID]; exists {
				warnings = append(warnings, LoadWarning{
					Category: strings.TrimSuffix(files[i], ".jsonl"),
					Reason:   fmt.Sprintf("duplicate entity id %d, keeping first occurrence", ent.ID),
				})
				continue
			}
			snap.Entities[ent.ID] = ent
		}
	}

	for _, w := range warnings {
		l.logger.Warn("load_record_skipped",
			slog.String("category", w.Category),
			slog.Int("line", w.Line),
			slog.String("reason", w.Reason))
	}

	l.logger.Info("snapshot_loaded",
		slog.String("dir", dir),
		slog.String("version", snap.Version),
		slog.Int("entities", snap.Len()),
		slog.Int("warnings", len(warnings)))

	return snap, warnings, nil
}

// LoadFile parses one category file. The returned entities keep file order.
func (l *Loader) LoadFile(ctx context.Context, path, category string) ([]*Entity, []LoadWarning, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, sdexerrors.New(sdexerrors.ErrCodeSourceUnreadable,
			"cannot open dataset file: "+path, err)
	}
	defer func() { _ = f.Close() }()

	var (
		entities []*Entity
		warnings []LoadWarning
		lineNo   int
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		lineNo++
		if lineNo%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}

		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		ent, reason := parseRecord(line, category)
		if ent == nil {
			if reason == "" {
				continue // meta record, skipped silently
			}
			warnings = append(warnings, LoadWarning{Category: category, Line: lineNo, Reason: reason})
			continue
		}
		entities = append(entities, ent)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, sdexerrors.New(sdexerrors.ErrCodeSourceUnreadable,
			"error reading dataset file: "+path, err)
	}

	return entities, warnings, nil
}

func (l *Loader) parallelism() int {
	if l.Parallelism > 0 {
		return l.Parallelism
	}
	return 4
}

// parseRecord converts one JSONL line into an Entity. A nil entity with an
// empty reason means "skip silently" (meta records); a non-empty reason is
// reported as a LoadWarning.
func parseRecord(line []byte, category string) (*Entity, string) {
	var raw any
	if err := jsonLine.Unmarshal(line, &raw); err != nil {
		return nil, "malformed JSON: " + err.Error()
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, "record is not an object"
	}

	if key, ok := obj["_key"].(string); ok && key == "_meta" {
		return nil, ""
	}

	id, ok := extractID(obj)
	if !ok {
		return nil, "missing or non-numeric id"
	}
	if id <= 0 {
		return nil, fmt.Sprintf("non-positive id %d", id)
	}

	attrs, err := FromAny(obj)
	if err != nil {
		return nil, "malformed attribute tree: " + err.Error()
	}

	return &Entity{
		ID:       id,
		Category: category,
		Names:    extractNames(obj),
		Attrs:    attrs,
	}, ""
}

// extractID finds the record ID under the common field names.
func extractID(obj map[string]any) (int64, bool) {
	for _, field := range []string{"_key", "id", "typeID"} {
		v, ok := obj[field]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case json.Number:
			if id, err := t.Int64(); err == nil {
				return id, true
			}
		case string:
			if id, err := strconv.ParseInt(t, 10, 64); err == nil {
				return id, true
			}
		}
	}
	return 0, false
}

// extractNames reads the localized name field. The field may be a mapping
// of language code to string, or a bare string.
func extractNames(obj map[string]any) map[string]string {
	names := make(map[string]string)
	switch t := obj["name"].(type) {
	case map[string]any:
		for lang, v := range t {
			if s, ok := v.(string); ok && s != "" {
				names[lang] = s
			}
		}
	case string:
		if t != "" {
			names["en"] = t
		}
	}
	return names
}
