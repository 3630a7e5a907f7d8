package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	sdexerrors "github.com/chuanqiong/sdex/internal/errors"
	"github.com/chuanqiong/sdex/internal/store"
)

// Engine evaluates queries against an index store handle. It is stateless
// apart from configuration: the store handle is passed into every call, so
// queries in flight keep their store across a concurrent index swap.
type Engine struct {
	defaultLimit int
	logger       *slog.Logger
}

// NewEngine creates a search engine. defaultLimit <= 0 uses DefaultLimit.
func NewEngine(defaultLimit int, logger *slog.Logger) *Engine {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{defaultLimit: defaultLimit, logger: logger}
}

// Search evaluates a whitespace-separated multi-term query. Every term
// must match at least one of ID, name, or token set of a candidate record;
// terms may match different fields. Results are ordered score descending,
// ties broken by ascending ID. An empty query returns an empty result;
// only structurally invalid input is an error.
func (e *Engine) Search(ctx context.Context, st *store.Store, query string, limit int) ([]Result, error) {
	if st == nil {
		return nil, sdexerrors.SearchError("no active index store", nil)
	}
	if limit < 0 {
		return nil, sdexerrors.Newf(sdexerrors.ErrCodeInvalidQuery, "negative limit %d", limit)
	}
	if limit == 0 {
		limit = e.defaultLimit
	}

	terms, err := parseQuery(query)
	if err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return []Result{}, nil
	}

	start := time.Now()

	// Conjunction: evaluate each term, then intersect candidate sets,
	// summing the best per-term weights.
	scores, err := e.matchTerm(ctx, st, terms[0])
	if err != nil {
		return nil, err
	}
	for _, term := range terms[1:] {
		if len(scores) == 0 {
			break
		}
		next, err := e.matchTerm(ctx, st, term)
		if err != nil {
			return nil, err
		}
		for id, w := range scores {
			tw, ok := next[id]
			if !ok {
				delete(scores, id)
				continue
			}
			scores[id] = w + tw
		}
	}

	ids := make([]int64, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		si, sj := scores[ids[i]], scores[ids[j]]
		if si != sj {
			return si > sj
		}
		return ids[i] < ids[j]
	})
	if len(ids) > limit {
		ids = ids[:limit]
	}

	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		rec, err := st.Resolve(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue
		}
		results = append(results, Result{
			ID:            rec.ID,
			PrimaryName:   rec.PrimaryName,
			SecondaryName: rec.SecondaryName,
			Category:      rec.Category,
			Score:         scores[id],
		})
	}

	e.logger.Debug("search_completed",
		slog.String("query", query),
		slog.Int("terms", len(terms)),
		slog.Int("results", len(results)),
		slog.Duration("elapsed", time.Since(start)))

	return results, nil
}

// matchTerm returns candidate IDs for one term with their best match
// class weight.
func (e *Engine) matchTerm(ctx context.Context, st *store.Store, term string) (map[int64]int, error) {
	best := make(map[int64]int)
	record := func(ids []int64, weight int) {
		for _, id := range ids {
			if weight > best[id] {
				best[id] = weight
			}
		}
	}

	if id, ok := store.ParseID(term); ok {
		exists, err := st.HasEntity(ctx, id)
		if err != nil {
			return nil, err
		}
		if exists {
			best[id] = weightExactID
		}
	}

	ids, err := st.IDsByExactName(ctx, term)
	if err != nil {
		return nil, err
	}
	record(ids, weightExactName)

	// Prefix lookups also cover exact token hits; the max weight wins.
	ids, err = st.IDsByTokenPrefix(ctx, term)
	if err != nil {
		return nil, err
	}
	record(ids, weightPrefix)

	ids, err = st.IDsByTokenSubstring(ctx, term)
	if err != nil {
		return nil, err
	}
	record(ids, weightSubstring)

	return best, nil
}

// parseQuery splits a query into normalized terms. Double quotes group
// multi-word terms ("jita iv" is one term); an unbalanced quote is the
// one structurally invalid input.
func parseQuery(query string) ([]string, error) {
	var (
		terms    []string
		current  strings.Builder
		inQuotes bool
	)

	flush := func() {
		if norm := store.Normalize(current.String()); norm != "" {
			terms = append(terms, norm)
		}
		current.Reset()
	}

	for _, r := range query {
		switch {
		case r == '"':
			if inQuotes {
				flush()
			}
			inQuotes = !inQuotes
		case !inQuotes && (r == ' ' || r == '\t' || r == '\n'):
			flush()
		default:
			current.WriteRune(r)
		}
	}
	if inQuotes {
		return nil, sdexerrors.SearchError("unbalanced quote in query", nil)
	}
	flush()

	return terms, nil
}
