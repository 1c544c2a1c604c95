package model

import (
	"context"
	"fmt"
	"regexp"

	"RefineAPI/internal/refine"

	"github.com/Masterminds/squirrel"
)

// RoleChecker reports whether the request context holds any of roles.
type RoleChecker func(ctx context.Context, roles []string) bool

// Builder turns resource definitions into engine refiners. Refiners are built
// per request: DB-sourced options are request-time data.
type Builder struct {
	Config  refine.Config
	Options *OptionsLoader // nil skips options_query filters' options
	Roles   RoleChecker    // nil leaves role-gated refiners open
}

// NewRefine prepares an orchestrator for res over query. It does not refine.
func (b *Builder) NewRefine(ctx context.Context, res *Resource, query squirrel.SelectBuilder, req refine.Request) (*refine.Refine, error) {
	cfg := b.Config
	cfg.Matching = res.Matching

	filters, err := b.Filters(ctx, res)
	if err != nil {
		return nil, err
	}
	sorts, err := b.Sorts(res)
	if err != nil {
		return nil, err
	}
	searches, err := b.Searches(res)
	if err != nil {
		return nil, err
	}

	r := refine.New(ctx, query, req, cfg).
		WithScope(res.Scope).
		WithFilters(filters...).
		WithSorts(sorts...).
		WithSearches(searches...)
	if res.Delimiter != "" {
		r.WithDelimiter(res.Delimiter)
	}
	return r, nil
}

func (b *Builder) Filters(ctx context.Context, res *Resource) ([]*refine.Filter, error) {
	out := make([]*refine.Filter, 0, len(res.Filters))
	for _, def := range res.Filters {
		f, err := b.filter(ctx, res, def)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", def.Name, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func (b *Builder) filter(ctx context.Context, res *Resource, def FilterDef) (*refine.Filter, error) {
	f := refine.NewFilter(def.Name).
		WithAlias(def.Alias).
		WithLabel(def.Label).
		WithType(def.Hint).
		Authorize(b.gate(def.Roles))
	if def.Meta != nil {
		f.WithMeta(def.Meta)
	}

	if def.Type != "" {
		kind, err := refine.ParseKind(def.Type)
		if err != nil {
			return nil, err
		}
		f.As(kind)
	}
	if len(def.Enum) > 0 {
		if f.Kind() == refine.KindArray {
			f.Multiple()
		}
		f.AsEnum(refine.Enum{Name: def.Name, Cases: def.Enum})
	}

	op, err := refine.ParseOperator(def.Operator)
	if err != nil {
		return nil, err
	}
	f.WithOperator(op)
	if len(def.Clauses) > 0 {
		clauses := make([]refine.Operator, 0, len(def.Clauses))
		for _, c := range def.Clauses {
			parsed, err := refine.ParseOperator(c)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, parsed)
		}
		f.WithClauses(clauses...)
	}

	if def.Multiple {
		f.Multiple()
	}
	if def.Presence {
		f.Presence()
	}
	if def.FullText {
		f.FullText()
	}

	switch {
	case len(def.Options) > 0:
		opts := make([]refine.Option, 0, len(def.Options))
		for _, o := range def.Options {
			opts = append(opts, refine.NewOption(o.Value, o.Label))
		}
		f.WithOptions(opts...)
	case def.OptionsQuery != "" && b.Options != nil:
		opts, err := b.Options.Load(ctx, res.Name, def)
		if err != nil {
			return nil, err
		}
		f.WithOptions(opts...)
	}

	if def.Default != nil {
		f.WithDefault(def.Default)
	}
	if def.DefaultFrom != "" {
		name := def.DefaultFrom
		f.DefaultFrom(func(p *refine.Params) (any, error) {
			return p.Resolve(name, nil)
		})
	}

	if def.Rule != nil {
		rules, err := compileRule(*def.Rule)
		if err != nil {
			return nil, err
		}
		f.WithRules(rules...)
	}
	return f, nil
}

func compileRule(def RuleDef) ([]refine.Rule, error) {
	var rules []refine.Rule
	if def.Min != nil || def.Max != nil {
		lo, hi := -1e308, 1e308
		if def.Min != nil {
			lo = *def.Min
		}
		if def.Max != nil {
			hi = *def.Max
		}
		rules = append(rules, refine.Between(lo, hi))
	}
	if def.Pattern != "" {
		re, err := regexp.Compile(def.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule.pattern: %w", err)
		}
		rules = append(rules, refine.Matches(re))
	}
	if len(def.OneOf) > 0 {
		rules = append(rules, refine.OneOf(def.OneOf...))
	}
	return rules, nil
}

func (b *Builder) Sorts(res *Resource) ([]*refine.Sort, error) {
	out := make([]*refine.Sort, 0, len(res.Sorts))
	for _, def := range res.Sorts {
		only, err := refine.ParseDirection(def.Only)
		if err != nil {
			return nil, fmt.Errorf("sort %q: %w", def.Name, err)
		}
		s := refine.NewSort(def.Name).
			WithAlias(def.Alias).
			WithLabel(def.Label).
			Only(only).
			Authorize(b.gate(def.Roles))
		if def.Hint != "" {
			s.WithType(def.Hint)
		}
		if def.Meta != nil {
			s.WithMeta(def.Meta)
		}
		if def.Invert {
			s.Invert()
		}
		if def.Default {
			s.Default()
		}
		out = append(out, s)
	}
	return out, nil
}

func (b *Builder) Searches(res *Resource) ([]*refine.Search, error) {
	out := make([]*refine.Search, 0, len(res.Searches))
	for _, def := range res.Searches {
		boolean, err := refine.ParseBoolean(def.Boolean)
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", def.Name, err)
		}
		s := refine.NewSearch(def.Name).
			WithAlias(def.Alias).
			WithLabel(def.Label).
			Authorize(b.gate(def.Roles))
		if def.Hint != "" {
			s.WithType(def.Hint)
		}
		if def.Meta != nil {
			s.WithMeta(def.Meta)
		}
		if boolean == refine.And {
			s.And()
		}
		if def.FullText {
			s.FullText()
		}
		out = append(out, s)
	}
	return out, nil
}

func (b *Builder) gate(roles []string) refine.Gate {
	if len(roles) == 0 || b.Roles == nil {
		return nil
	}
	return func(ctx context.Context) bool { return b.Roles(ctx, roles) }
}
