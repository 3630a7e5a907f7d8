package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chuanqiong/sdex/internal/sde"
)

func testSnapshot(t *testing.T) *sde.Snapshot {
	t.Helper()
	snap := sde.NewSnapshot("2804442")
	snap.Entities[34] = &sde.Entity{
		ID:       34,
		Category: "types",
		Names:    map[string]string{"en": "Tritanium", "zh": "三钛合金"},
		Attrs: sde.Mapping(map[string]sde.Value{
			"_key": sde.Number(34),
			"mass": sde.Number(1000),
		}),
	}
	snap.Entities[638] = &sde.Entity{
		ID:       638,
		Category: "types",
		Names:    map[string]string{"en": "Raven"},
		Attrs: sde.Mapping(map[string]sde.Value{
			"_key": sde.Number(638),
		}),
	}
	snap.Entities[60000004] = &sde.Entity{
		ID:       60000004,
		Category: "stations",
		Names:    map[string]string{"en": "Jita IV - Moon 4"},
		Attrs: sde.Mapping(map[string]sde.Value{
			"_key": sde.Number(60000004),
		}),
	}
	return snap
}

func buildTestStore(t *testing.T, snap *sde.Snapshot) *Store {
	t.Helper()
	dest := filepath.Join(t.TempDir(), "index.db")
	st, err := NewBuilder(BuilderOptions{PreferredLang: "zh"}).Build(context.Background(), snap, dest)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestBuild_CreatesQueryableStore(t *testing.T) {
	st := buildTestStore(t, testSnapshot(t))
	ctx := context.Background()

	version, err := st.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2804442", version)

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.EntityCount)
	assert.Equal(t, int64(4), stats.NameCount)
	assert.False(t, stats.BuiltAt.IsZero())
}

func TestBuild_ResolveAppliesLanguageFallback(t *testing.T) {
	st := buildTestStore(t, testSnapshot(t))
	ctx := context.Background()

	rec, err := st.Resolve(ctx, 34)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "三钛合金", rec.PrimaryName) // preferred language
	assert.Equal(t, "Tritanium", rec.SecondaryName)
	assert.Equal(t, "types", rec.Category)

	// No zh name: falls back to English.
	rec, err = st.Resolve(ctx, 638)
	require.NoError(t, err)
	assert.Equal(t, "Raven", rec.PrimaryName)

	// Unknown ID resolves to nil without error.
	rec, err = st.Resolve(ctx, 999999)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestStore_TokenQueries(t *testing.T) {
	st := buildTestStore(t, testSnapshot(t))
	ctx := context.Background()

	ids, err := st.IDsByToken(ctx, "tritanium")
	require.NoError(t, err)
	assert.Equal(t, []int64{34}, ids)

	// The decimal ID is indexed as a token.
	ids, err = st.IDsByToken(ctx, "34")
	require.NoError(t, err)
	assert.Equal(t, []int64{34}, ids)

	ids, err = st.IDsByTokenPrefix(ctx, "trit")
	require.NoError(t, err)
	assert.Equal(t, []int64{34}, ids)

	ids, err = st.IDsByTokenSubstring(ctx, "itan")
	require.NoError(t, err)
	assert.Equal(t, []int64{34}, ids)

	ids, err = st.IDsByExactName(ctx, "raven")
	require.NoError(t, err)
	assert.Equal(t, []int64{638}, ids)

	ids, err = st.IDsByTokenPrefix(ctx, "moon")
	require.NoError(t, err)
	assert.Equal(t, []int64{60000004}, ids)

	ids, err = st.IDsByToken(ctx, "absent")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStore_HasEntityAndAttrs(t *testing.T) {
	st := buildTestStore(t, testSnapshot(t))
	ctx := context.Background()

	ok, err := st.HasEntity(ctx, 34)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = st.HasEntity(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	attrs, err := st.EntityAttrs(ctx, 34)
	require.NoError(t, err)
	mass, found := attrs.Get("mass")
	require.True(t, found)
	assert.Equal(t, float64(1000), mass.Num())
}

func TestBuild_RebuildIsDeterministic(t *testing.T) {
	snap := testSnapshot(t)
	a := buildTestStore(t, snap)
	b := buildTestStore(t, snap)
	ctx := context.Background()

	sa, err := a.Stats(ctx)
	require.NoError(t, err)
	sb, err := b.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, sa.EntityCount, sb.EntityCount)
	assert.Equal(t, sa.NameCount, sb.NameCount)
	assert.Equal(t, sa.TokenCount, sb.TokenCount)
}

func TestBuild_SwapReplacesStoreAtomically(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "index.db")
	builder := NewBuilder(BuilderOptions{PreferredLang: "zh"})
	ctx := context.Background()

	first, err := builder.Build(ctx, testSnapshot(t), dest)
	require.NoError(t, err)
	manager := NewManager(first)

	// Reader grabs a handle before the swap.
	held := manager.Active()

	// New snapshot without entity 638.
	snap2 := testSnapshot(t)
	delete(snap2.Entities, 638)
	second, err := builder.Build(ctx, snap2, dest)
	require.NoError(t, err)

	prev := manager.Swap(second)
	assert.Same(t, first, prev)
	assert.Same(t, second, manager.Active())

	// The held handle still answers from the old store.
	ok, err := held.HasEntity(ctx, 638)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = manager.Active().HasEntity(ctx, 638)
	require.NoError(t, err)
	assert.False(t, ok)

	_ = prev.Close()
	_ = second.Close()
}

func TestBuild_CancelledContextLeavesPriorStoreIntact(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "index.db")
	builder := NewBuilder(BuilderOptions{PreferredLang: "zh", BatchSize: 1})

	first, err := builder.Build(context.Background(), testSnapshot(t), dest)
	require.NoError(t, err)
	defer func() { _ = first.Close() }()

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = builder.Build(cancelled, testSnapshot(t), dest)
	require.Error(t, err)

	// Scratch file is cleaned up and the published store still works.
	_, statErr := os.Stat(dest + ".building")
	assert.True(t, os.IsNotExist(statErr))

	ok, err := first.HasEntity(context.Background(), 34)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOpen_MissingStoreFails(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.db"), "en")
	assert.Error(t, err)
}

func TestStore_CloseIsIdempotent(t *testing.T) {
	st := buildTestStore(t, testSnapshot(t))
	require.NoError(t, st.Close())
	require.NoError(t, st.Close())
}
