package sde

import "sort"

// Entity is one dataset record: a unique positive integer ID, a category
// tag derived from its source file, localized names, and the full attribute
// tree. Entities are immutable once loaded; a new loader run produces a new
// entity set rather than mutating an old one.
type Entity struct {
	ID       int64
	Category string
	// Names maps language code ("en", "zh", ...) to the display name.
	// The mapping may be partial.
	Names map[string]string
	// Attrs is the complete attribute tree of the record.
	Attrs Value
}

// Name returns the name in the given language, falling back to English,
// then to any available name, then to the empty string.
func (e *Entity) Name(lang string) string {
	if n, ok := e.Names[lang]; ok && n != "" {
		return n
	}
	if n, ok := e.Names["en"]; ok && n != "" {
		return n
	}
	for _, n := range e.Names {
		if n != "" {
			return n
		}
	}
	return ""
}

// Snapshot is an immutable, fully loaded entity set tagged with a version
// identifier. Two snapshots are the operands of a diff; one snapshot backs
// one index store.
type Snapshot struct {
	// Version is an opaque comparable token (a build number or timestamp).
	Version string
	// Meta carries the dataset release metadata when the source directory
	// included a meta record.
	Meta VersionInfo
	// Entities is keyed by entity ID.
	Entities map[int64]*Entity
}

// NewSnapshot creates an empty snapshot for the given version tag.
func NewSnapshot(version string) *Snapshot {
	return &Snapshot{
		Version:  version,
		Entities: make(map[int64]*Entity),
	}
}

// Len returns the number of entities.
func (s *Snapshot) Len() int { return len(s.Entities) }

// Get returns the entity with the given ID, or nil.
func (s *Snapshot) Get(id int64) *Entity { return s.Entities[id] }

// IDs returns all entity IDs in ascending order.
func (s *Snapshot) IDs() []int64 {
	ids := make([]int64, 0, len(s.Entities))
	for id := range s.Entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
