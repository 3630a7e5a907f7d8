package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chuanqiong/sdex/internal/config"
	"github.com/chuanqiong/sdex/internal/output"
	"github.com/chuanqiong/sdex/internal/sde"
	"github.com/chuanqiong/sdex/internal/store"
)

func loadConfig() (*config.Config, error) {
	return config.Load(cfgPath)
}

// openStore opens the active index, translating the common failure into
// an actionable message.
func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.IndexPath, cfg.Search.PreferredLanguage)
	if err != nil {
		return nil, fmt.Errorf("no usable index at %s (run 'sdex index' first): %w", cfg.IndexPath, err)
	}
	return st, nil
}

// loadSnapshot loads a dataset directory into memory, reporting parse
// warnings to the console.
func loadSnapshot(ctx context.Context, out *output.Writer, dir string) (*sde.Snapshot, error) {
	loader := sde.NewLoader(slog.Default())
	snap, warnings, err := loader.LoadDir(ctx, dir, "")
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		out.Warningf("skipped record: %s", w.String())
	}
	return snap, nil
}

// buildIndex loads the dataset directory and builds a fresh index at
// cfg.IndexPath, swapping it in atomically.
func buildIndex(ctx context.Context, cfg *config.Config, out *output.Writer, dataDir string) (*store.Store, error) {
	start := time.Now()

	snap, err := loadSnapshot(ctx, out, dataDir)
	if err != nil {
		return nil, err
	}
	out.Statusf("📦", "Loaded %d entities (version %s)", snap.Len(), snap.Version)

	builder := store.NewBuilder(store.BuilderOptions{
		Tokenizer: store.TokenizerConfig{
			MinTokenLength:  cfg.Index.MinTokenLength,
			MaxPrefixLength: cfg.Index.MaxPrefixLength,
		},
		PreferredLang: cfg.Search.PreferredLanguage,
		BatchSize:     cfg.Index.BatchSize,
		Logger:        slog.Default(),
	})

	st, err := builder.Build(ctx, snap, cfg.IndexPath)
	if err != nil {
		return nil, err
	}

	out.Successf("Index built at %s in %s", cfg.IndexPath, time.Since(start).Round(time.Millisecond))
	return st, nil
}

// resolveNames returns a name resolver backed by the active index, or
// nil when no index is available.
func resolveNames(ctx context.Context, st *store.Store) output.Resolver {
	if st == nil {
		return nil
	}
	return func(id int64) string {
		rec, err := st.Resolve(ctx, id)
		if err != nil || rec == nil {
			return ""
		}
		return rec.PrimaryName
	}
}
