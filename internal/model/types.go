package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Resource is one YAML file under MODELS_DIR: a table and the refiners
// clients may apply to it.
type Resource struct {
	Name        string               `yaml:"-"` // file name without extension
	Table       string               `yaml:"table"`
	PrimaryKeys []string             `yaml:"primary_keys"`
	Columns     []string             `yaml:"columns"`
	Relations   map[string]*Relation `yaml:"relations"`
	Scope       string               `yaml:"scope"`
	Delimiter   string               `yaml:"delimiter"`
	Matching    bool                 `yaml:"matching"`
	Limit       LimitDef             `yaml:"limit"`
	Filters     []FilterDef          `yaml:"filters"`
	Sorts       []SortDef            `yaml:"sorts"`
	Searches    []SearchDef          `yaml:"searches"`
}

// Relation is a to-one join, addressed in refiner names as "<relation>.<column>".
type Relation struct {
	Type  string `yaml:"type"`  // belongs_to or has_one
	Table string `yaml:"table"` // joined table
	FK    string `yaml:"fk"`    // belongs_to: column on main; has_one: column on the joined table
	PK    string `yaml:"pk"`    // defaults to id
	Where string `yaml:"where"` // extra ON condition
}

type LimitDef struct {
	Default int `yaml:"default"`
	Max     int `yaml:"max"`
}

type FilterDef struct {
	Name         string         `yaml:"name"`
	Alias        string         `yaml:"alias"`
	Label        string         `yaml:"label"`
	Hint         string         `yaml:"hint"`
	Type         string         `yaml:"type"`
	Operator     string         `yaml:"operator"`
	Clauses      []string       `yaml:"clauses"`
	Multiple     bool           `yaml:"multiple"`
	Presence     bool           `yaml:"presence"`
	FullText     bool           `yaml:"full_text"`
	Enum         []string       `yaml:"enum"`
	Options      []OptionDef    `yaml:"options"`
	OptionsQuery string         `yaml:"options_query"`
	Default      any            `yaml:"default"`
	DefaultFrom  string         `yaml:"default_from"`
	Rule         *RuleDef       `yaml:"rule"`
	Roles        []string       `yaml:"roles"`
	Meta         map[string]any `yaml:"meta"`
}

// OptionDef accepts either a bare scalar or {value, label}.
type OptionDef struct {
	Value any    `yaml:"value"`
	Label string `yaml:"label"`
}

func (o *OptionDef) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&o.Value)
	case yaml.MappingNode:
		type plain OptionDef
		return node.Decode((*plain)(o))
	}
	return fmt.Errorf("line %d: option must be a scalar or a mapping", node.Line)
}

type RuleDef struct {
	Min     *float64 `yaml:"min"`
	Max     *float64 `yaml:"max"`
	Pattern string   `yaml:"pattern"`
	OneOf   []any    `yaml:"one_of"`
}

type SortDef struct {
	Name    string         `yaml:"name"`
	Alias   string         `yaml:"alias"`
	Label   string         `yaml:"label"`
	Hint    string         `yaml:"hint"`
	Only    string         `yaml:"only"`
	Invert  bool           `yaml:"invert"`
	Default bool           `yaml:"default"`
	Roles   []string       `yaml:"roles"`
	Meta    map[string]any `yaml:"meta"`
}

type SearchDef struct {
	Name     string         `yaml:"name"`
	Alias    string         `yaml:"alias"`
	Label    string         `yaml:"label"`
	Hint     string         `yaml:"hint"`
	Boolean  string         `yaml:"boolean"`
	FullText bool           `yaml:"full_text"`
	Roles    []string       `yaml:"roles"`
	Meta     map[string]any `yaml:"meta"`
}

// JoinSpec is a LEFT JOIN derived from a relation.
type JoinSpec struct {
	Table string
	Alias string
	On    string
}

const (
	defaultLimit = 25
	maxLimit     = 100
)

// GetPrimaryKeys returns the primary key columns, ["id"] when not configured.
func (r *Resource) GetPrimaryKeys() []string {
	if len(r.PrimaryKeys) > 0 {
		return r.PrimaryKeys
	}
	return []string{"id"}
}

func (r *Resource) GetRelation(name string) *Relation {
	if r == nil || r.Relations == nil {
		return nil
	}
	return r.Relations[name]
}

// Page clamps the requested limit/offset to the resource's bounds. A zero or
// negative request falls back to the default.
func (r *Resource) Page(limit, offset int) (int, int) {
	def, hi := r.Limit.Default, r.Limit.Max
	if hi <= 0 {
		hi = maxLimit
	}
	if def <= 0 {
		def = min(defaultLimit, hi)
	}
	if limit <= 0 {
		limit = def
	}
	if offset < 0 {
		offset = 0
	}
	return min(limit, hi), offset
}
