// Package search evaluates multi-term fuzzy queries against an index
// store. Matching is conjunctive across terms; per-term match classes are
// ranked exact-ID > exact-name > prefix > substring.
package search

// Result is one ranked search hit.
type Result struct {
	ID            int64  `json:"id"`
	PrimaryName   string `json:"primary_name"`
	SecondaryName string `json:"secondary_name"`
	Category      string `json:"category"`
	Score         int    `json:"score"`
}

// Per-term match class weights, in decreasing order. A record's score is
// the sum of its best per-term weights, so an exact ID hit always outranks
// any combination of weaker classes for a single term.
const (
	weightExactID   = 100
	weightExactName = 75
	weightPrefix    = 50
	weightSubstring = 25
)

// DefaultLimit is the top-K bound applied when the caller passes 0.
const DefaultLimit = 50
