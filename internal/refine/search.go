package refine

import (
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
)

// Search contributes one column to the compound search predicate.
type Search struct {
	Refiner
	boolean  Boolean
	fullText bool
}

func NewSearch(name string) *Search {
	return &Search{Refiner: newRefiner(name, "search"), boolean: Or}
}

func (s *Search) WithAlias(alias string) *Search { s.alias = alias; return s }
func (s *Search) WithLabel(label string) *Search { s.label = label; return s }
func (s *Search) WithType(hint string) *Search   { s.hint = hint; return s }

func (s *Search) WithMeta(meta map[string]any) *Search {
	s.setMeta(meta)
	return s
}

func (s *Search) Authorize(g Gate) *Search { s.gate = g; return s }

// And joins this clause to the previous ones with AND instead of OR.
func (s *Search) And() *Search      { s.boolean = And; return s }
func (s *Search) Or() *Search       { s.boolean = Or; return s }
func (s *Search) FullText() *Search { s.fullText = true; return s }
func (s *Search) Boolean() Boolean  { return s.boolean }
func (s *Search) IsFullText() bool  { return s.fullText }

func (s *Search) clause(column, term, language string) squirrel.Sqlizer {
	if s.fullText {
		return fullTextClause(column, term, language)
	}
	return squirrel.Expr(fmt.Sprintf("LOWER(%s) LIKE ?", column), "%"+escapeLike(term)+"%")
}

func (s *Search) clone() *Search {
	c := *s
	c.reset()
	return &c
}

func (s *Search) validate() error {
	if s.name == "" {
		return fmt.Errorf("%w: search without a name", ErrInvalidConfig)
	}
	if _, err := ParseBoolean(string(s.boolean)); err != nil {
		return fmt.Errorf("search %q: %w", s.name, err)
	}
	return nil
}

// combineSearches folds clauses left to right, each joined by its own boolean.
func combineSearches(clauses []squirrel.Sqlizer, booleans []Boolean) squirrel.Sqlizer {
	var expr squirrel.Sqlizer
	for i, c := range clauses {
		switch {
		case expr == nil:
			expr = c
		case booleans[i] == And:
			expr = squirrel.And{expr, c}
		default:
			expr = squirrel.Or{expr, c}
		}
	}
	return expr
}

func normalizeTerm(raw string) string {
	return strings.ToLower(strings.Join(strings.Fields(raw), " "))
}
