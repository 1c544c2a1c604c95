package model

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Masterminds/squirrel"
)

// SelectQuery is the index base query: the configured columns of the table
// aliased as qualifier, plus the joins its refiners and columns need.
func (r *Resource) SelectQuery(qualifier string) squirrel.SelectBuilder {
	sb := r.baseQuery(qualifier)
	if len(r.Columns) == 0 {
		return sb.Column(qualify(qualifier, "*"))
	}
	for _, col := range r.Columns {
		sb = sb.Column(selectExpr(qualifier, col))
	}
	return sb
}

// CountQuery shares joins and alias with SelectQuery. Joins are to-one, so
// COUNT(*) never counts a row twice.
func (r *Resource) CountQuery(qualifier string) squirrel.SelectBuilder {
	return r.baseQuery(qualifier).Column("COUNT(*)")
}

func (r *Resource) baseQuery(qualifier string) squirrel.SelectBuilder {
	sb := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).Select()
	from := r.Table
	if qualifier != "" {
		from = fmt.Sprintf("%s AS %s", r.Table, qualifier)
	}
	sb = sb.From(from)
	for _, j := range r.DetectJoins(qualifier) {
		sb = sb.LeftJoin(fmt.Sprintf("%s AS %s ON %s", j.Table, j.Alias, j.On))
	}
	return sb
}

// DetectJoins returns the relations referenced as "<relation>.<column>" by
// columns or refiners, sorted by alias.
func (r *Resource) DetectJoins(qualifier string) []JoinSpec {
	refs := make([]string, 0, len(r.Columns)+len(r.Filters)+len(r.Sorts)+len(r.Searches))
	refs = append(refs, r.Columns...)
	for _, f := range r.Filters {
		refs = append(refs, f.Name)
	}
	for _, s := range r.Sorts {
		refs = append(refs, s.Name)
	}
	for _, s := range r.Searches {
		refs = append(refs, s.Name)
	}

	seen := map[string]bool{}
	var joins []JoinSpec
	for _, ref := range refs {
		name, _, ok := strings.Cut(ref, ".")
		if !ok || seen[name] {
			continue
		}
		rel := r.GetRelation(name)
		if rel == nil {
			continue
		}
		seen[name] = true
		joins = append(joins, rel.join(name, qualifier))
	}
	slices.SortFunc(joins, func(a, b JoinSpec) int { return strings.Compare(a.Alias, b.Alias) })
	return joins
}

func (rel *Relation) join(alias, qualifier string) JoinSpec {
	pk := rel.PK
	if pk == "" {
		pk = "id"
	}
	var on string
	if rel.Type == "has_one" {
		on = fmt.Sprintf("%s.%s = %s", alias, rel.FK, qualify(qualifier, pk))
	} else {
		on = fmt.Sprintf("%s.%s = %s", alias, pk, qualify(qualifier, rel.FK))
	}
	if rel.Where != "" {
		on = fmt.Sprintf("(%s) AND (%s)", on, rel.Where)
	}
	return JoinSpec{Table: rel.Table, Alias: alias, On: on}
}

func qualify(qualifier, col string) string {
	if qualifier == "" {
		return col
	}
	return qualifier + "." + col
}

// selectExpr qualifies bare columns and keeps the dotted path of joined ones
// as the result key.
func selectExpr(qualifier, col string) string {
	switch {
	case strings.ContainsAny(col, "( "):
		return col
	case strings.Contains(col, "."):
		return fmt.Sprintf("%s AS %q", col, col)
	}
	return qualify(qualifier, col)
}
