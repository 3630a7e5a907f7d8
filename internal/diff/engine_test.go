package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chuanqiong/sdex/internal/sde"
)

func entity(id int64, attrs map[string]sde.Value) *sde.Entity {
	return &sde.Entity{
		ID:       id,
		Category: "types",
		Attrs:    sde.Mapping(attrs),
	}
}

func snapshot(version string, entities ...*sde.Entity) *sde.Snapshot {
	snap := sde.NewSnapshot(version)
	for _, e := range entities {
		snap.Entities[e.ID] = e
	}
	return snap
}

func TestDiff_IdenticalSnapshotsAllUnchanged(t *testing.T) {
	snap := snapshot("a",
		entity(34, map[string]sde.Value{"mass": sde.Number(1000)}),
		entity(35, map[string]sde.Value{"mass": sde.Number(400)}),
	)

	result, err := NewEngine(nil).Diff(snap, snap)
	require.NoError(t, err)

	require.Len(t, result.Records, 2)
	for _, rec := range result.Records {
		assert.Equal(t, KindUnchanged, rec.Kind)
		assert.Empty(t, rec.Deltas)
	}
}

func TestDiff_AddedAndRemoved(t *testing.T) {
	oldSnap := snapshot("old", entity(34, map[string]sde.Value{"mass": sde.Number(1000)}))
	newSnap := snapshot("new",
		entity(34, map[string]sde.Value{"mass": sde.Number(1000)}),
		entity(999, map[string]sde.Value{"mass": sde.Number(5)}),
	)

	result, err := NewEngine(nil).Diff(oldSnap, newSnap)
	require.NoError(t, err)

	require.Len(t, result.Records, 2)
	assert.Equal(t, int64(34), result.Records[0].EntityID)
	assert.Equal(t, KindUnchanged, result.Records[0].Kind)
	assert.Equal(t, int64(999), result.Records[1].EntityID)
	assert.Equal(t, KindAdded, result.Records[1].Kind)

	reverse, err := NewEngine(nil).Diff(newSnap, oldSnap)
	require.NoError(t, err)
	assert.Equal(t, KindRemoved, reverse.Records[1].Kind)
}

func TestDiff_ModifiedScalar(t *testing.T) {
	oldSnap := snapshot("old", entity(34, map[string]sde.Value{"mass": sde.Number(1000)}))
	newSnap := snapshot("new", entity(34, map[string]sde.Value{"mass": sde.Number(1200)}))

	result, err := NewEngine(nil).Diff(oldSnap, newSnap)
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	rec := result.Records[0]
	assert.Equal(t, KindModified, rec.Kind)
	require.Len(t, rec.Deltas, 1)
	assert.Equal(t, "mass", rec.Deltas[0].Path)
	assert.Equal(t, float64(1000), rec.Deltas[0].Old.Num())
	assert.Equal(t, float64(1200), rec.Deltas[0].New.Num())
}

func TestDiff_PartitionProperty(t *testing.T) {
	oldSnap := snapshot("old",
		entity(1, map[string]sde.Value{"a": sde.Number(1)}),
		entity(2, map[string]sde.Value{"a": sde.Number(1)}),
	)
	newSnap := snapshot("new",
		entity(2, map[string]sde.Value{"a": sde.Number(2)}),
		entity(3, map[string]sde.Value{"a": sde.Number(1)}),
	)

	result, err := NewEngine(nil).Diff(oldSnap, newSnap)
	require.NoError(t, err)

	// Every ID in either snapshot appears exactly once.
	seen := make(map[int64]int)
	for _, rec := range result.Records {
		seen[rec.EntityID]++
	}
	assert.Equal(t, map[int64]int{1: 1, 2: 1, 3: 1}, seen)
}

func TestDiff_ModifiedIffDeltasNonEmpty(t *testing.T) {
	oldSnap := snapshot("old",
		entity(1, map[string]sde.Value{"a": sde.Number(1)}),
		entity(2, map[string]sde.Value{"a": sde.Number(1)}),
	)
	newSnap := snapshot("new",
		entity(1, map[string]sde.Value{"a": sde.Number(1)}),
		entity(2, map[string]sde.Value{"a": sde.Number(9)}),
	)

	result, err := NewEngine(nil).Diff(oldSnap, newSnap)
	require.NoError(t, err)

	for _, rec := range result.Records {
		if rec.Kind == KindModified {
			assert.NotEmpty(t, rec.Deltas)
		} else {
			assert.Empty(t, rec.Deltas)
		}
	}
}

func TestCompareTrees_TypeChangeIsOneDelta(t *testing.T) {
	a := sde.Mapping(map[string]sde.Value{"volume": sde.Number(10)})
	b := sde.Mapping(map[string]sde.Value{"volume": sde.String("10")})

	deltas := CompareTrees(a, b)
	require.Len(t, deltas, 1)
	assert.Equal(t, "volume", deltas[0].Path)
	assert.Equal(t, sde.KindNumber, deltas[0].Old.Kind())
	assert.Equal(t, sde.KindString, deltas[0].New.Kind())
}

func TestCompareTrees_MissingMappingKey(t *testing.T) {
	a := sde.Mapping(map[string]sde.Value{"mass": sde.Number(1), "radius": sde.Number(2)})
	b := sde.Mapping(map[string]sde.Value{"mass": sde.Number(1), "volume": sde.Number(3)})

	deltas := CompareTrees(a, b)
	require.Len(t, deltas, 2)

	// Deterministic path order: radius (removed) before volume (added).
	assert.Equal(t, "radius", deltas[0].Path)
	assert.Nil(t, deltas[0].New)
	require.NotNil(t, deltas[0].Old)

	assert.Equal(t, "volume", deltas[1].Path)
	assert.Nil(t, deltas[1].Old)
	require.NotNil(t, deltas[1].New)
}

func TestCompareTrees_NestedPaths(t *testing.T) {
	a := sde.Mapping(map[string]sde.Value{
		"materials": sde.List(
			sde.Mapping(map[string]sde.Value{"quantity": sde.Number(3)}),
			sde.Mapping(map[string]sde.Value{"quantity": sde.Number(5)}),
		),
	})
	b := sde.Mapping(map[string]sde.Value{
		"materials": sde.List(
			sde.Mapping(map[string]sde.Value{"quantity": sde.Number(3)}),
			sde.Mapping(map[string]sde.Value{"quantity": sde.Number(7)}),
		),
	})

	deltas := CompareTrees(a, b)
	require.Len(t, deltas, 1)
	assert.Equal(t, "materials.1.quantity", deltas[0].Path)
}

func TestCompareTrees_ListLengthChange(t *testing.T) {
	a := sde.Mapping(map[string]sde.Value{"tags": sde.List(sde.String("x"))})
	b := sde.Mapping(map[string]sde.Value{"tags": sde.List(sde.String("x"), sde.String("y"))})

	deltas := CompareTrees(a, b)
	require.Len(t, deltas, 1)
	assert.Equal(t, "tags.1", deltas[0].Path)
	assert.Nil(t, deltas[0].Old)
	assert.Equal(t, "y", deltas[0].New.Str())
}

// Reordering a list without content change is reported as a modification.
// Comparison is positional and the index is part of the path.
func TestCompareTrees_ReorderedListIsModification(t *testing.T) {
	a := sde.Mapping(map[string]sde.Value{"tags": sde.List(sde.String("x"), sde.String("y"))})
	b := sde.Mapping(map[string]sde.Value{"tags": sde.List(sde.String("y"), sde.String("x"))})

	deltas := CompareTrees(a, b)
	require.Len(t, deltas, 2)
	assert.Equal(t, "tags.0", deltas[0].Path)
	assert.Equal(t, "tags.1", deltas[1].Path)
}

func TestCompareTrees_NullTransitions(t *testing.T) {
	a := sde.Mapping(map[string]sde.Value{"graphicID": sde.Null()})
	b := sde.Mapping(map[string]sde.Value{"graphicID": sde.Number(42)})

	deltas := CompareTrees(a, b)
	require.Len(t, deltas, 1)
	assert.True(t, deltas[0].Old.IsNull())
	assert.Equal(t, float64(42), deltas[0].New.Num())
}

func TestDiff_NilSnapshotIsError(t *testing.T) {
	snap := snapshot("v")
	_, err := NewEngine(nil).Diff(nil, snap)
	assert.Error(t, err)
	_, err = NewEngine(nil).Diff(snap, nil)
	assert.Error(t, err)
}

func TestDiff_RecordsSortedByID(t *testing.T) {
	oldSnap := snapshot("old",
		entity(5, map[string]sde.Value{"a": sde.Number(1)}),
		entity(3, map[string]sde.Value{"a": sde.Number(1)}),
	)
	newSnap := snapshot("new",
		entity(4, map[string]sde.Value{"a": sde.Number(1)}),
		entity(3, map[string]sde.Value{"a": sde.Number(1)}),
	)

	result, err := NewEngine(nil).Diff(oldSnap, newSnap)
	require.NoError(t, err)

	require.Len(t, result.Records, 3)
	assert.Equal(t, int64(3), result.Records[0].EntityID)
	assert.Equal(t, int64(4), result.Records[1].EntityID)
	assert.Equal(t, int64(5), result.Records[2].EntityID)
}
