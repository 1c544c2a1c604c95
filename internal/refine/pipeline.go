package refine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Masterminds/squirrel"
)

// Hook mutates the query before or after the refiners run.
type Hook func(q squirrel.SelectBuilder, p *Params) (squirrel.SelectBuilder, error)

type stage struct {
	name    string
	enabled func(*Refine) bool
	run     func(*Refine) error
}

// pipeline order is observable in the generated SQL: search predicates come
// before filter predicates, and ordering comes last.
var pipeline = []stage{
	{name: "before", enabled: always, run: runBefore},
	{name: "searches", enabled: func(r *Refine) bool { return r.searching }, run: applySearches},
	{name: "filters", enabled: func(r *Refine) bool { return r.filtering }, run: applyFilters},
	{name: "sorts", enabled: func(r *Refine) bool { return r.sorting }, run: applySorts},
	{name: "after", enabled: always, run: runAfter},
}

func always(*Refine) bool { return true }

func runBefore(r *Refine) error { return runHooks(r, r.before) }
func runAfter(r *Refine) error  { return runHooks(r, r.after) }

func runHooks(r *Refine, hooks []Hook) error {
	for i, h := range hooks {
		q, err := h(r.query, r.params)
		if err != nil {
			return fmt.Errorf("hook %d: %w", i, err)
		}
		r.query = q
	}
	return nil
}

func applySearches(r *Refine) error {
	raw, ok := r.lookup(r.Key(r.cfg.SearchKey))
	if !ok {
		return nil
	}
	term := normalizeTerm(raw)
	if term == "" {
		return nil
	}
	r.term = term

	enabled := r.matchedSearches()
	clauses := make([]squirrel.Sqlizer, 0, len(enabled))
	booleans := make([]Boolean, 0, len(enabled))
	for _, s := range r.Searches() {
		if enabled != nil && !enabled[s.Parameter()] {
			continue
		}
		s.activate(term)
		clauses = append(clauses, s.clause(r.column(s.name), term, r.cfg.SearchLanguage))
		booleans = append(booleans, s.boolean)
	}
	if expr := combineSearches(clauses, booleans); expr != nil {
		r.query = r.query.Where(expr)
	}
	return nil
}

// matchedSearches returns the client-selected search parameters, or nil when
// every search is enabled.
func (r *Refine) matchedSearches() map[string]bool {
	if !r.cfg.Matching {
		return nil
	}
	raw, ok := r.lookup(r.Key(r.cfg.MatchKey))
	if !ok {
		return nil
	}
	names := splitList(raw, r.delimiter)
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func applyFilters(r *Refine) error {
	for _, f := range r.Filters() {
		if _, err := f.apply(r); err != nil {
			return err
		}
	}
	return nil
}

func applySorts(r *Refine) error {
	sorts := r.Sorts()
	if raw, ok := r.lookup(r.Key(r.cfg.SortKey)); ok {
		value := strings.TrimSpace(raw)
		for _, s := range sorts {
			if d, ok := s.match(value); ok {
				s.apply(r, d)
				return nil
			}
		}
	}
	if i := slices.IndexFunc(sorts, (*Sort).IsDefault); i != -1 {
		sorts[i].apply(r, sorts[i].defaultDirection())
	}
	return nil
}
