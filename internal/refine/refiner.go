package refine

import (
	"context"
	"maps"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Gate decides whether a refiner is available for the current request.
type Gate func(ctx context.Context) bool

// Refinement is the read side shared by filters, sorts and searches.
type Refinement interface {
	Name() string
	Parameter() string
	Label() string
	Type() string
	Meta() map[string]any
	Value() any
	IsActive() bool
}

// identity names a refiner on the resource and in the query string.
type identity struct {
	name  string
	alias string
	label string
	hint  string
}

func (i *identity) Name() string { return i.name }

// Parameter is the only name ever visible in the query string.
func (i *identity) Parameter() string {
	if i.alias != "" {
		return i.alias
	}
	return lastSegment(i.name)
}

func (i *identity) Label() string {
	if i.label != "" {
		return i.label
	}
	return Headline(i.Parameter())
}

type metadata struct {
	meta map[string]any
}

func (m *metadata) Meta() map[string]any { return m.meta }

func (m *metadata) setMeta(meta map[string]any) {
	if m.meta == nil {
		m.meta = make(map[string]any, len(meta))
	}
	maps.Copy(m.meta, meta)
}

// activity is the per-request state filled in while refining.
type activity struct {
	value  any
	active bool
}

func (a *activity) Value() any     { return a.value }
func (a *activity) IsActive() bool { return a.active }

func (a *activity) activate(v any) {
	a.value = v
	a.active = true
}

func (a *activity) reset() {
	a.value = nil
	a.active = false
}

type authorization struct {
	gate Gate
}

func (a *authorization) authorized(ctx context.Context) bool {
	return a.gate == nil || a.gate(ctx)
}

// Refiner composes the capabilities every refinement unit has.
type Refiner struct {
	identity
	metadata
	activity
	authorization
}

func newRefiner(name, hint string) Refiner {
	return Refiner{identity: identity{name: strings.TrimSpace(name), hint: hint}}
}

func (r *Refiner) Type() string { return r.hint }

func lastSegment(name string) string {
	if idx := strings.LastIndex(name, "."); idx != -1 {
		return name[idx+1:]
	}
	return name
}

// Headline turns a parameter such as "created_at" into "Created At".
func Headline(s string) string {
	s = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(s)
	return cases.Title(language.English).String(strings.Join(strings.Fields(s), " "))
}
