package refine

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"RefineAPI/internal/logger"

	"github.com/Masterminds/squirrel"
	"github.com/hashicorp/go-multierror"
)

// Refine owns the refiners for one request and rewrites one query. It is
// built per request and discarded afterwards.
type Refine struct {
	ctx     context.Context
	cfg     Config
	request Request
	query   squirrel.SelectBuilder
	params  *Params

	scope     string
	delimiter string

	filters  []*Filter
	sorts    []*Sort
	searches []*Search

	before []Hook
	after  []Hook

	filtering bool
	sorting   bool
	searching bool

	refined bool
	term    string

	authorizedFilters  []*Filter
	authorizedSorts    []*Sort
	authorizedSearches []*Search
	filtersResolved    bool
	sortsResolved      bool
	searchesResolved   bool
}

func New(ctx context.Context, query squirrel.SelectBuilder, req Request, cfg Config) *Refine {
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		req = Values{}
	}
	r := &Refine{
		ctx:       ctx,
		cfg:       cfg,
		request:   req,
		query:     query,
		delimiter: cfg.Delimiter,
		filtering: true,
		sorting:   true,
		searching: true,
	}
	r.params = NewParams().
		Provide("request", func() (any, error) { return r.request, nil }).
		ProvideType(reflect.TypeFor[Request](), func() (any, error) { return r.request, nil }).
		Provide("context", func() (any, error) { return r.ctx, nil }).
		ProvideType(reflect.TypeFor[context.Context](), func() (any, error) { return r.ctx, nil }).
		Provide("config", func() (any, error) { return r.cfg, nil }).
		ProvideType(reflect.TypeFor[Config](), func() (any, error) { return r.cfg, nil }).
		Provide("scope", func() (any, error) { return r.scope, nil }).
		Provide("delimiter", func() (any, error) { return r.delimiter, nil }).
		Provide("term", func() (any, error) { return r.term, nil })
	return r
}

// WithScope prefixes every key this orchestrator reads with "scope:".
func (r *Refine) WithScope(scope string) *Refine {
	r.scope = strings.TrimSpace(scope)
	return r
}

func (r *Refine) WithDelimiter(d string) *Refine {
	r.delimiter = d
	return r
}

// WithMatching toggles client-side selection of search columns.
func (r *Refine) WithMatching(enabled bool) *Refine {
	r.cfg.Matching = enabled
	return r
}

// WithFilters attaches copies of fs, so shared definitions never carry
// request state.
func (r *Refine) WithFilters(fs ...*Filter) *Refine {
	for _, f := range fs {
		r.filters = append(r.filters, f.clone())
	}
	r.filtersResolved = false
	return r
}

func (r *Refine) WithSorts(ss ...*Sort) *Refine {
	for _, s := range ss {
		r.sorts = append(r.sorts, s.clone())
	}
	r.sortsResolved = false
	return r
}

func (r *Refine) WithSearches(ss ...*Search) *Refine {
	for _, s := range ss {
		r.searches = append(r.searches, s.clone())
	}
	r.searchesResolved = false
	return r
}

func (r *Refine) Before(h Hook) *Refine {
	r.before = append(r.before, h)
	return r
}

func (r *Refine) After(h Hook) *Refine {
	r.after = append(r.after, h)
	return r
}

// Provide registers a named parameter for hooks and dynamic defaults.
func (r *Refine) Provide(name string, v any) *Refine {
	r.params.Set(name, v)
	return r
}

func (r *Refine) DisableFiltering() *Refine { r.filtering = false; return r }
func (r *Refine) DisableSorting() *Refine   { r.sorting = false; return r }
func (r *Refine) DisableSearching() *Refine { r.searching = false; return r }

// Tap mutates the query outside the pipeline, e.g. for pagination.
func (r *Refine) Tap(fn func(squirrel.SelectBuilder) squirrel.SelectBuilder) *Refine {
	r.query = fn(r.query)
	return r
}

func (r *Refine) Query() squirrel.SelectBuilder { return r.query }
func (r *Refine) Params() *Params               { return r.params }
func (r *Refine) Scope() string                 { return r.scope }
func (r *Refine) Delimiter() string             { return r.delimiter }
func (r *Refine) Term() string                  { return r.term }
func (r *Refine) IsRefined() bool               { return r.refined }

// Key scopes a parameter name.
func (r *Refine) Key(param string) string {
	if r.scope == "" {
		return param
	}
	return r.scope + ":" + param
}

// Filters returns the authorized filters. Gates run once per orchestrator.
func (r *Refine) Filters() []*Filter {
	if !r.filtersResolved {
		r.authorizedFilters = authorized(r.ctx, r.filters, func(f *Filter) *Refiner { return &f.Refiner })
		r.filtersResolved = true
	}
	return r.authorizedFilters
}

func (r *Refine) Sorts() []*Sort {
	if !r.sortsResolved {
		r.authorizedSorts = authorized(r.ctx, r.sorts, func(s *Sort) *Refiner { return &s.Refiner })
		r.sortsResolved = true
	}
	return r.authorizedSorts
}

func (r *Refine) Searches() []*Search {
	if !r.searchesResolved {
		r.authorizedSearches = authorized(r.ctx, r.searches, func(s *Search) *Refiner { return &s.Refiner })
		r.searchesResolved = true
	}
	return r.authorizedSearches
}

// Active lists the refiners the last Refine call applied, in stage order.
func (r *Refine) Active() []Refinement {
	var out []Refinement
	for _, s := range r.Searches() {
		if s.IsActive() {
			out = append(out, s)
		}
	}
	for _, f := range r.Filters() {
		if f.IsActive() {
			out = append(out, f)
		}
	}
	for _, s := range r.Sorts() {
		if s.IsActive() {
			out = append(out, s)
		}
	}
	return out
}

func authorized[T any](ctx context.Context, items []T, base func(T) *Refiner) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if base(it).authorized(ctx) {
			out = append(out, it)
		}
	}
	return out
}

// Refine runs the pipeline once. Later calls return nil without touching the
// query. Errors are configuration mistakes, never bad user input.
func (r *Refine) Refine() error {
	if r.refined {
		return nil
	}
	if err := r.validate(); err != nil {
		return err
	}
	query, term := r.query, r.term
	for _, st := range pipeline {
		if !st.enabled(r) {
			continue
		}
		if err := st.run(r); err != nil {
			r.rollback(query, term)
			return fmt.Errorf("refine %s: %w", st.name, err)
		}
		logger.Debug("refine_stage", map[string]any{"stage": st.name, "scope": r.scope})
	}
	r.refined = true
	return nil
}

// rollback undoes a failed run so that a retry starts from the same state.
func (r *Refine) rollback(query squirrel.SelectBuilder, term string) {
	r.query, r.term = query, term
	for _, f := range r.filters {
		f.reset()
	}
	for _, s := range r.sorts {
		s.reset()
	}
	for _, s := range r.searches {
		s.reset()
	}
}

func (r *Refine) validate() error {
	var result *multierror.Error
	cfg := r.cfg
	cfg.Delimiter = r.delimiter
	if err := cfg.validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if strings.Contains(r.scope, ":") {
		result = multierror.Append(result, fmt.Errorf("%w: scope %q contains ':'", ErrInvalidConfig, r.scope))
	}

	filterParams := map[string]bool{}
	for _, f := range r.filters {
		if err := f.validate(); err != nil {
			result = multierror.Append(result, err)
		}
		if err := claim(filterParams, "filter", f.Parameter()); err != nil {
			result = multierror.Append(result, err)
		}
	}

	sortParams := map[string]bool{}
	defaults := 0
	for _, s := range r.sorts {
		if err := s.validate(); err != nil {
			result = multierror.Append(result, err)
		}
		if err := claim(sortParams, "sort", s.Parameter()); err != nil {
			result = multierror.Append(result, err)
		}
		if s.isDefault {
			defaults++
		}
	}
	if defaults > 1 {
		result = multierror.Append(result, fmt.Errorf("%w: %d sorts are marked default", ErrMultipleDefaultSorts, defaults))
	}

	searchParams := map[string]bool{}
	for _, s := range r.searches {
		if err := s.validate(); err != nil {
			result = multierror.Append(result, err)
		}
		if err := claim(searchParams, "search", s.Parameter()); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func claim(seen map[string]bool, kind, param string) error {
	if seen[param] {
		return fmt.Errorf("%w: %s parameter %q", ErrDuplicateParameter, kind, param)
	}
	seen[param] = true
	return nil
}

// lookup reads a scoped key; repeated values are joined with the delimiter
// and blank input counts as absent.
func (r *Refine) lookup(key string) (string, bool) {
	vals, ok := r.request.Lookup(key)
	if !ok {
		return "", false
	}
	raw := strings.TrimSpace(strings.Join(vals, r.delimiter))
	if raw == "" {
		return "", false
	}
	return raw, true
}

// column qualifies bare attribute names with the configured table alias.
func (r *Refine) column(name string) string {
	if r.cfg.Qualifier == "" || strings.ContainsAny(name, ".( ") {
		return name
	}
	return r.cfg.Qualifier + "." + name
}

func (r *Refine) debug(msg, param, reason string) {
	logger.Debug(msg, map[string]any{"scope": r.scope, "parameter": param, "reason": reason})
}
