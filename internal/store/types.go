// Package store provides the persistent index store (SQLite) and the
// builder that projects a snapshot into it. One store is backed by one
// snapshot; readers hold a handle and never observe a partially built
// store.
package store

import (
	"time"
)

// IndexedRecord is the search-oriented projection of an entity.
type IndexedRecord struct {
	ID int64
	// PrimaryName is the preferred-language name, falling back to English.
	PrimaryName string
	// SecondaryName is the English name.
	SecondaryName string
	Category      string
	// Tokens is the normalized token set. Populated during build;
	// Resolve leaves it nil.
	Tokens []string
}

// Stats summarizes an index store.
type Stats struct {
	Version     string
	EntityCount int64
	NameCount   int64
	TokenCount  int64
	BuiltAt     time.Time
	// Categories is the per-category entity breakdown, sorted by name.
	Categories []CategoryCount
}

// CategoryCount is one category's entity count.
type CategoryCount struct {
	Name  string
	Count int64
}

// Meta table keys.
const (
	metaKeyVersion       = "snapshot_version"
	metaKeyEntityCount   = "entity_count"
	metaKeyBuiltAt       = "built_at"
	metaKeySchemaVersion = "schema_version"
	metaKeyReleaseDate   = "release_date"
)

// CurrentSchemaVersion is the index database schema version.
const CurrentSchemaVersion = 1
