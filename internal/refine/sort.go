package refine

import (
	"fmt"
	"strings"
)

// Sort orders the resource by one attribute. The query value is the
// parameter for ascending and "-parameter" for descending.
type Sort struct {
	Refiner
	direction Direction
	only      Direction
	invert    bool
	isDefault bool
}

func NewSort(name string) *Sort {
	return &Sort{Refiner: newRefiner(name, "sort")}
}

func (s *Sort) WithAlias(alias string) *Sort { s.alias = alias; return s }
func (s *Sort) WithLabel(label string) *Sort { s.label = label; return s }
func (s *Sort) WithType(hint string) *Sort   { s.hint = hint; return s }

func (s *Sort) WithMeta(meta map[string]any) *Sort {
	s.setMeta(meta)
	return s
}

func (s *Sort) Authorize(g Gate) *Sort { s.gate = g; return s }

// Only pins the sort to d; the client cannot toggle it to the other direction.
func (s *Sort) Only(d Direction) *Sort { s.only = d; return s }
func (s *Sort) Asc() *Sort             { return s.Only(Asc) }
func (s *Sort) Desc() *Sort            { return s.Only(Desc) }

// Invert reverses the asc/desc cycle.
func (s *Sort) Invert() *Sort { s.invert = true; return s }

// Default applies the sort when the request carries no sort at all.
func (s *Sort) Default() *Sort { s.isDefault = true; return s }

func (s *Sort) Direction() Direction { return s.direction }
func (s *Sort) Pinned() Direction    { return s.only }
func (s *Sort) IsInverted() bool     { return s.invert }
func (s *Sort) IsDefault() bool      { return s.isDefault }

// Encode returns the query value that selects this sort in direction d.
func (s *Sort) Encode(d Direction) string {
	if d == Desc {
		return "-" + s.Parameter()
	}
	return s.Parameter()
}

// NextDirection is the direction a client toggle moves to. It is pure.
func (s *Sort) NextDirection() Direction {
	return s.nextFrom(s.direction)
}

func (s *Sort) nextFrom(current Direction) Direction {
	if s.only != None {
		return s.only
	}
	first, second := Asc, Desc
	if s.invert {
		first, second = Desc, Asc
	}
	switch current {
	case None:
		return first
	case first:
		return second
	}
	return None
}

// Next is the query value for NextDirection, nil when the toggle clears sorting.
func (s *Sort) Next() *string {
	return s.encodeNext(s.direction)
}

func (s *Sort) encodeNext(current Direction) *string {
	d := s.nextFrom(current)
	if d == None {
		return nil
	}
	v := s.Encode(d)
	return &v
}

func (s *Sort) defaultDirection() Direction {
	if s.only != None {
		return s.only
	}
	if s.invert {
		return Desc
	}
	return Asc
}

// match reports the direction value selects, coerced to the pinned direction.
func (s *Sort) match(value string) (Direction, bool) {
	value = strings.TrimSpace(value)
	d := Asc
	if strings.HasPrefix(value, "-") {
		d = Desc
		value = strings.TrimPrefix(value, "-")
	}
	if value == "" || value != s.Parameter() {
		return None, false
	}
	if s.only != None {
		d = s.only
	}
	return d, true
}

func (s *Sort) apply(r *Refine, d Direction) {
	s.direction = d
	s.activate(string(d))
	r.query = r.query.OrderBy(r.column(s.name) + " " + d.sql())
}

func (s *Sort) clone() *Sort {
	c := *s
	c.reset()
	return &c
}

func (s *Sort) reset() {
	s.activity.reset()
	s.direction = None
}

func (s *Sort) validate() error {
	if s.name == "" {
		return fmt.Errorf("%w: sort without a name", ErrInvalidConfig)
	}
	if _, err := ParseDirection(string(s.only)); err != nil {
		return fmt.Errorf("sort %q: %w", s.name, err)
	}
	return nil
}
