// Package diff compares two snapshots and classifies every entity into
// Added, Removed, Modified, or Unchanged, with field-level deltas for
// modifications.
package diff

import (
	"github.com/chuanqiong/sdex/internal/sde"
)

// Kind classifies one entity's change between two snapshots.
type Kind string

const (
	KindAdded     Kind = "added"
	KindRemoved   Kind = "removed"
	KindModified  Kind = "modified"
	KindUnchanged Kind = "unchanged"
)

// kindOrder fixes the secondary sort order of change records.
var kindOrder = map[Kind]int{
	KindAdded:     0,
	KindRemoved:   1,
	KindModified:  2,
	KindUnchanged: 3,
}

// FieldDelta is one changed leaf in an attribute tree. Path is a dotted
// locator; list indexes are path segments ("materials.2.quantity").
// A nil Old means the path is absent in the old snapshot; a nil New means
// it was removed.
type FieldDelta struct {
	Path string
	Old  *sde.Value
	New  *sde.Value
}

// ChangeRecord is the classified comparison of one entity ID across two
// snapshots. Invariant: Kind == KindModified exactly when Deltas is
// non-empty.
type ChangeRecord struct {
	EntityID int64
	Kind     Kind
	Deltas   []FieldDelta
}

// VersionDiff is the full set of change records for one version pair.
// Every ID present in either snapshot appears in exactly one record.
type VersionDiff struct {
	OldVersion string
	NewVersion string
	Records    []ChangeRecord
}

// Summary counts records per kind.
type Summary struct {
	Added     int
	Removed   int
	Modified  int
	Unchanged int
}

// Summarize tallies the diff by change kind.
func (d *VersionDiff) Summarize() Summary {
	var s Summary
	for _, rec := range d.Records {
		switch rec.Kind {
		case KindAdded:
			s.Added++
		case KindRemoved:
			s.Removed++
		case KindModified:
			s.Modified++
		case KindUnchanged:
			s.Unchanged++
		}
	}
	return s
}
