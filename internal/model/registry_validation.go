package model

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"RefineAPI/internal/refine"

	"github.com/Masterminds/squirrel"
	"github.com/hashicorp/go-multierror"
)

// ValidateResources checks every resource and reports all problems at once.
func ValidateResources(resources map[string]*Resource) error {
	var result *multierror.Error
	for _, name := range sortedKeys(resources) {
		if err := validateResource(resources[name]); err != nil {
			result = multierror.Append(result, fmt.Errorf("resource %q: %w", name, err))
		}
	}
	return result.ErrorOrNil()
}

func validateResource(res *Resource) error {
	var result *multierror.Error
	add := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(res.Table) == "" {
		add("table is required")
	}
	if res.Limit.Max > 0 && res.Limit.Default > res.Limit.Max {
		add("limit.default %d exceeds limit.max %d", res.Limit.Default, res.Limit.Max)
	}
	for name, rel := range res.Relations {
		if rel == nil || rel.Table == "" || rel.FK == "" {
			add("relation %q needs table and fk", name)
		}
	}

	refs := append([]string{}, res.Columns...)
	for i, f := range res.Filters {
		refs = append(refs, f.Name)
		if f.Name == "" {
			add("filters[%d]: name is required", i)
		}
		if f.Type != "" {
			if _, err := refine.ParseKind(f.Type); err != nil {
				add("filter %q: %v", f.Name, err)
			}
		}
		for _, op := range append([]string{f.Operator}, f.Clauses...) {
			if _, err := refine.ParseOperator(op); err != nil {
				add("filter %q: %v", f.Name, err)
			}
		}
		if f.Type == string(refine.KindEnum) && len(f.Enum) == 0 {
			add("filter %q: type enum needs enum cases", f.Name)
		}
		if f.OptionsQuery != "" && (len(f.Options) > 0 || len(f.Enum) > 0) {
			add("filter %q: options_query excludes options and enum", f.Name)
		}
		if f.Default != nil && f.DefaultFrom != "" {
			add("filter %q: default and default_from are exclusive", f.Name)
		}
		if f.Rule != nil && f.Rule.Pattern != "" {
			if _, err := regexp.Compile(f.Rule.Pattern); err != nil {
				add("filter %q: rule.pattern: %v", f.Name, err)
			}
		}
	}
	for i, s := range res.Sorts {
		refs = append(refs, s.Name)
		if s.Name == "" {
			add("sorts[%d]: name is required", i)
		}
		if _, err := refine.ParseDirection(s.Only); err != nil {
			add("sort %q: %v", s.Name, err)
		}
	}
	for i, s := range res.Searches {
		refs = append(refs, s.Name)
		if s.Name == "" {
			add("searches[%d]: name is required", i)
		}
		if _, err := refine.ParseBoolean(s.Boolean); err != nil {
			add("search %q: %v", s.Name, err)
		}
	}
	for _, ref := range refs {
		if rel, _, ok := strings.Cut(ref, "."); ok && res.GetRelation(rel) == nil {
			add("%q refers to unknown relation %q", ref, rel)
		}
	}

	if result.ErrorOrNil() != nil {
		return result
	}

	// Duplicate parameters and competing default sorts are only known to the
	// orchestrator; validation runs even with every stage disabled.
	b := &Builder{Config: refine.DefaultConfig()}
	r, err := b.NewRefine(context.Background(), res, squirrel.Select("*").From(res.Table), refine.Values{})
	if err != nil {
		return err
	}
	return r.DisableSearching().DisableFiltering().DisableSorting().Refine()
}
