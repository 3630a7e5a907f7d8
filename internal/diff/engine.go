package diff

import (
	"log/slog"
	"sort"
	"strconv"

	sdexerrors "github.com/chuanqiong/sdex/internal/errors"
	"github.com/chuanqiong/sdex/internal/sde"
)

// Engine computes version diffs. It is a one-shot batch computation over
// two fully materialized snapshots, with no retry semantics.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a diff engine. A nil logger uses the process default.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Diff compares two snapshots. The union of both ID sets is partitioned
// into exactly one change record per ID, sorted by entity ID ascending,
// then by kind, for deterministic output.
//
// Lists are compared positionally: the index is part of the delta path,
// so reordering a list without content change reports as a modification.
func (e *Engine) Diff(oldSnap, newSnap *sde.Snapshot) (*VersionDiff, error) {
	if oldSnap == nil || newSnap == nil {
		return nil, sdexerrors.DiffError("both snapshots are required", nil)
	}

	idSet := make(map[int64]struct{}, len(oldSnap.Entities)+len(newSnap.Entities))
	for id := range oldSnap.Entities {
		idSet[id] = struct{}{}
	}
	for id := range newSnap.Entities {
		idSet[id] = struct{}{}
	}

	records := make([]ChangeRecord, 0, len(idSet))
	for id := range idSet {
		oldEnt := oldSnap.Get(id)
		newEnt := newSnap.Get(id)

		switch {
		case oldEnt == nil:
			records = append(records, ChangeRecord{EntityID: id, Kind: KindAdded})
		case newEnt == nil:
			records = append(records, ChangeRecord{EntityID: id, Kind: KindRemoved})
		default:
			deltas := CompareTrees(oldEnt.Attrs, newEnt.Attrs)
			kind := KindUnchanged
			if len(deltas) > 0 {
				kind = KindModified
			}
			records = append(records, ChangeRecord{EntityID: id, Kind: kind, Deltas: deltas})
		}
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].EntityID != records[j].EntityID {
			return records[i].EntityID < records[j].EntityID
		}
		return kindOrder[records[i].Kind] < kindOrder[records[j].Kind]
	})

	result := &VersionDiff{
		OldVersion: oldSnap.Version,
		NewVersion: newSnap.Version,
		Records:    records,
	}

	s := result.Summarize()
	e.logger.Info("diff_computed",
		slog.String("old_version", result.OldVersion),
		slog.String("new_version", result.NewVersion),
		slog.Int("added", s.Added),
		slog.Int("removed", s.Removed),
		slog.Int("modified", s.Modified),
		slog.Int("unchanged", s.Unchanged))

	return result, nil
}

// CompareTrees walks two attribute trees and returns the field deltas in
// deterministic path order.
func CompareTrees(oldVal, newVal sde.Value) []FieldDelta {
	var deltas []FieldDelta
	compareValues("", oldVal, newVal, &deltas)
	return deltas
}

// compareValues appends one delta per changed leaf. A kind change is one
// delta at that path, not a recursion into both shapes.
func compareValues(path string, a, b sde.Value, deltas *[]FieldDelta) {
	if a.Kind() != b.Kind() {
		*deltas = append(*deltas, FieldDelta{Path: path, Old: ref(a), New: ref(b)})
		return
	}

	switch a.Kind() {
	case sde.KindMapping:
		compareMappings(path, a, b, deltas)
	case sde.KindList:
		compareLists(path, a, b, deltas)
	default:
		if !a.Equal(b) {
			*deltas = append(*deltas, FieldDelta{Path: path, Old: ref(a), New: ref(b)})
		}
	}
}

func compareMappings(path string, a, b sde.Value, deltas *[]FieldDelta) {
	keys := unionKeys(a, b)
	for _, key := range keys {
		childPath := joinPath(path, key)
		av, inA := a.Get(key)
		bv, inB := b.Get(key)

		switch {
		case inA && inB:
			compareValues(childPath, av, bv, deltas)
		case inA:
			*deltas = append(*deltas, FieldDelta{Path: childPath, Old: ref(av), New: nil})
		default:
			*deltas = append(*deltas, FieldDelta{Path: childPath, Old: nil, New: ref(bv)})
		}
	}
}

// compareLists is positional: the index is part of the path, and length
// changes report the surplus elements as one-sided deltas.
func compareLists(path string, a, b sde.Value, deltas *[]FieldDelta) {
	itemsA, itemsB := a.Items(), b.Items()
	n := len(itemsA)
	if len(itemsB) < n {
		n = len(itemsB)
	}

	for i := 0; i < n; i++ {
		compareValues(joinPath(path, strconv.Itoa(i)), itemsA[i], itemsB[i], deltas)
	}
	for i := n; i < len(itemsA); i++ {
		*deltas = append(*deltas, FieldDelta{Path: joinPath(path, strconv.Itoa(i)), Old: ref(itemsA[i]), New: nil})
	}
	for i := n; i < len(itemsB); i++ {
		*deltas = append(*deltas, FieldDelta{Path: joinPath(path, strconv.Itoa(i)), Old: nil, New: ref(itemsB[i])})
	}
}

func unionKeys(a, b sde.Value) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, k := range a.Keys() {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	for _, k := range b.Keys() {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func joinPath(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}

func ref(v sde.Value) *sde.Value {
	return &v
}
