package refine

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
)

// Rule is a structural check on a coerced filter value.
type Rule func(value any) bool

// Between accepts numbers within [min, max].
func Between(lo, hi float64) Rule {
	return func(v any) bool {
		return eachValue(v, func(item any) bool {
			f, ok := toFloat(item)
			return ok && f >= lo && f <= hi
		})
	}
}

// Matches accepts strings matching pattern.
func Matches(pattern *regexp.Regexp) Rule {
	return func(v any) bool {
		return eachValue(v, func(item any) bool {
			s, ok := item.(string)
			return ok && pattern.MatchString(s)
		})
	}
}

// OneOf accepts values whose option key equals one of allowed.
func OneOf(allowed ...any) Rule {
	keys := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		keys[optionKey(a)] = struct{}{}
	}
	return func(v any) bool {
		return eachValue(v, func(item any) bool {
			_, ok := keys[optionKey(item)]
			return ok
		})
	}
}

// Filter narrows the resource by one attribute.
type Filter struct {
	Refiner
	kind        Kind
	enum        *Enum
	operator    Operator
	clauses     []Operator
	clause      Operator
	options     []Option
	multiple    bool
	presence    bool
	fullText    bool
	def         any
	hasDefault  bool
	defaultFrom func(*Params) (any, error)
	rules       []Rule
}

func NewFilter(name string) *Filter {
	return &Filter{
		Refiner:  newRefiner(name, ""),
		kind:     KindString,
		operator: OpEq,
	}
}

func (f *Filter) WithAlias(alias string) *Filter { f.alias = alias; return f }
func (f *Filter) WithLabel(label string) *Filter { f.label = label; return f }
func (f *Filter) WithType(hint string) *Filter   { f.hint = hint; return f }

func (f *Filter) WithMeta(meta map[string]any) *Filter {
	f.setMeta(meta)
	return f
}

func (f *Filter) Authorize(g Gate) *Filter { f.gate = g; return f }

// As declares the type raw values are coerced into.
func (f *Filter) As(kind Kind) *Filter { f.kind = kind; return f }

// AsEnum restricts values to the cases of e and lists them as options.
func (f *Filter) AsEnum(e Enum) *Filter {
	f.kind = KindEnum
	f.enum = &e
	if len(f.options) == 0 {
		f.options = OptionsFromEnum(e)
	}
	return f
}

func (f *Filter) WithOperator(op Operator) *Filter { f.operator = op; return f }

// WithClauses lets the client pick one of ops per request.
func (f *Filter) WithClauses(ops ...Operator) *Filter {
	f.clauses = append(f.clauses[:0], ops...)
	return f
}

func (f *Filter) WithOptions(opts ...Option) *Filter {
	f.options = append(f.options[:0], opts...)
	return f
}

func (f *Filter) Multiple() *Filter { f.multiple = true; return f }
func (f *Filter) Presence() *Filter { f.presence = true; return f }
func (f *Filter) FullText() *Filter { f.fullText = true; return f }

// WithDefault is used when the parameter is absent or does not coerce.
func (f *Filter) WithDefault(v any) *Filter {
	f.def = v
	f.hasDefault = true
	return f
}

// DefaultFrom resolves the default lazily against the orchestrator's Params.
func (f *Filter) DefaultFrom(fn func(*Params) (any, error)) *Filter {
	f.defaultFrom = fn
	f.hasDefault = true
	return f
}

func (f *Filter) WithRules(rules ...Rule) *Filter {
	f.rules = append(f.rules, rules...)
	return f
}

func (f *Filter) Kind() Kind          { return f.kind }
func (f *Filter) Operator() Operator  { return f.operator }
func (f *Filter) Clauses() []Operator { return f.clauses }
func (f *Filter) Clause() Operator    { return f.clause }
func (f *Filter) Options() []Option   { return f.options }
func (f *Filter) IsMultiple() bool    { return f.multiple }
func (f *Filter) IsPresence() bool    { return f.presence }
func (f *Filter) IsFullText() bool    { return f.fullText }

// Type is the render hint, derived from the filter's shape unless set.
func (f *Filter) Type() string {
	if f.hint != "" {
		return f.hint
	}
	switch {
	case len(f.options) > 0 && f.isList():
		return "multiselect"
	case len(f.options) > 0:
		return "select"
	case f.presence || f.kind == KindBool:
		return "boolean"
	case f.kind == KindDate:
		return "date"
	case f.kind == KindTime:
		return "time"
	case f.kind == KindInt || f.kind == KindFloat:
		return "number"
	}
	return "text"
}

func (f *Filter) isList() bool {
	return f.multiple || f.kind == KindArray
}

func (f *Filter) clone() *Filter {
	c := *f
	c.options = slices.Clone(f.options)
	c.clauses = slices.Clone(f.clauses)
	c.rules = slices.Clone(f.rules)
	c.reset()
	return &c
}

func (f *Filter) reset() {
	f.activity.reset()
	f.clause = ""
	for i := range f.options {
		f.options[i].active = false
	}
}

func (f *Filter) validate() error {
	if f.name == "" {
		return fmt.Errorf("%w: filter without a name", ErrInvalidConfig)
	}
	if !f.operator.valid() {
		return fmt.Errorf("filter %q: %w: %q", f.name, ErrUnknownOperator, f.operator)
	}
	for _, op := range f.clauses {
		if !op.valid() {
			return fmt.Errorf("filter %q clause: %w: %q", f.name, ErrUnknownOperator, op)
		}
	}
	if _, err := ParseKind(string(f.kind)); err != nil {
		return fmt.Errorf("filter %q: %w", f.name, err)
	}
	if f.kind == KindEnum && f.enum == nil {
		return fmt.Errorf("filter %q: %w: enum without cases", f.name, ErrUnknownKind)
	}
	return nil
}

// coerce interprets raw according to the filter's declared shape.
func (f *Filter) coerce(raw, delimiter string) (any, bool) {
	switch {
	case f.presence:
		v, ok := Interpret(raw, KindString, delimiter)
		return v, ok
	case f.isList():
		elem := f.kind
		if elem == KindArray || elem == KindEnum {
			elem = KindString
		}
		return InterpretList(raw, elem, f.enum, delimiter)
	case f.kind == KindEnum:
		return InterpretEnum(raw, *f.enum)
	}
	return Interpret(raw, f.kind, delimiter)
}

// defaultValue resolves the declared default into a coerced value. Strings
// are coerced like request input; other values are trusted.
func (f *Filter) defaultValue(p *Params, delimiter string) (any, bool, error) {
	if !f.hasDefault {
		return nil, false, nil
	}
	v := f.def
	if f.defaultFrom != nil {
		resolved, err := f.defaultFrom(p)
		if err != nil {
			return nil, false, fmt.Errorf("filter %q default: %w", f.name, err)
		}
		v = resolved
	}
	switch t := v.(type) {
	case nil:
		return nil, false, nil
	case string:
		coerced, ok := f.coerce(t, delimiter)
		return coerced, ok, nil
	case []string:
		coerced, ok := f.coerce(strings.Join(t, delimiter), delimiter)
		return coerced, ok, nil
	}
	if f.isList() {
		if _, ok := v.([]any); !ok {
			v = []any{v}
		}
	}
	return v, true, nil
}

// staticDefault is the value the declared default would apply with, checked
// against options, presence and rules. Defaults resolved from params are
// request data and are not reported.
func (f *Filter) staticDefault(delimiter string) (any, bool) {
	if f.defaultFrom != nil {
		return nil, false
	}
	v, ok, err := f.defaultValue(nil, delimiter)
	if err != nil || !ok {
		return nil, false
	}
	if len(f.options) > 0 {
		matched := matchOptions(f.options, v)
		if len(matched) == 0 {
			return nil, false
		}
		if f.isList() {
			v = matched
		}
	}
	if f.presence {
		if !truthy(v) {
			return nil, false
		}
		v = true
	}
	for _, rule := range f.rules {
		if !rule(v) {
			return nil, false
		}
	}
	if list, isList := v.([]any); isList && len(list) == 0 {
		return nil, false
	}
	return v, true
}

// apply evaluates the filter against the request and mutates the query when
// the value survives every gate. Rejected input only deactivates the filter.
func (f *Filter) apply(r *Refine) (bool, error) {
	f.reset()

	value, ok := any(nil), false
	if raw, present := r.lookup(r.Key(f.Parameter())); present {
		value, ok = f.coerce(raw, r.delimiter)
	}
	if !ok {
		def, has, err := f.defaultValue(r.params, r.delimiter)
		if err != nil {
			return false, err
		}
		if !has {
			return false, nil
		}
		value = def
	}

	if len(f.options) > 0 {
		matched := activateOptions(f.options, value)
		if len(matched) == 0 {
			r.debug("filter_rejected", f.Parameter(), "options")
			return false, nil
		}
		if f.isList() {
			value = matched
		}
	}

	if f.presence {
		if !truthy(value) {
			return false, nil
		}
		value = true
	}

	for _, rule := range f.rules {
		if !rule(value) {
			r.debug("filter_rejected", f.Parameter(), "rule")
			return false, nil
		}
	}

	if list, isList := value.([]any); isList && len(list) == 0 {
		return false, nil
	}

	op := f.operator
	if len(f.clauses) > 0 {
		if raw, present := r.lookup(r.Key(f.Parameter() + "__op")); present {
			if chosen, err := ParseOperator(raw); err == nil && slices.Contains(f.clauses, chosen) {
				op = chosen
			}
		}
		f.clause = op
	}

	f.activate(value)
	r.query = r.query.Where(f.predicate(r.column(f.name), op, value, r.cfg.SearchLanguage))
	return true, nil
}

// predicate picks the clause shape in fixed precedence order.
func (f *Filter) predicate(column string, op Operator, value any, language string) squirrel.Sqlizer {
	if s, ok := value.(string); ok && f.fullText {
		return fullTextClause(column, s, language)
	}
	if op.isLike() {
		list, ok := value.([]any)
		if !ok {
			return likeClause(column, op, value)
		}
		// One pattern per element: any may match, none may match for NOT.
		clauses := make([]squirrel.Sqlizer, 0, len(list))
		for _, item := range list {
			clauses = append(clauses, likeClause(column, op, item))
		}
		if op.negated() {
			return squirrel.And(clauses)
		}
		return squirrel.Or(clauses)
	}
	if list, ok := value.([]any); ok || f.isList() {
		if !ok {
			list = []any{value}
		}
		if op == OpNotEq {
			return squirrel.NotEq{column: list}
		}
		return squirrel.Eq{column: list}
	}
	if t, ok := value.(time.Time); ok && f.kind == KindDate {
		return squirrel.Expr(fmt.Sprintf("DATE(%s) %s ?", column, op), t.Format(dateLayout))
	}
	if t, ok := value.(time.Time); ok && f.kind == KindTime {
		return squirrel.Expr(fmt.Sprintf("CAST(%s AS TIME) %s ?", column, op), t.Format(timeLayout))
	}
	return comparison(column, op, value)
}

func likeClause(column string, op Operator, value any) squirrel.Sqlizer {
	pattern := "%" + escapeLike(strings.ToLower(fmt.Sprint(value))) + "%"
	switch op {
	case OpNotLike:
		return squirrel.Expr(fmt.Sprintf("LOWER(%s) NOT LIKE ?", column), pattern)
	case OpILike:
		return squirrel.ILike{column: pattern}
	case OpNotILike:
		return squirrel.NotILike{column: pattern}
	}
	return squirrel.Expr(fmt.Sprintf("LOWER(%s) LIKE ?", column), pattern)
}

func comparison(column string, op Operator, value any) squirrel.Sqlizer {
	switch op {
	case OpNotEq:
		return squirrel.NotEq{column: value}
	case OpGt:
		return squirrel.Gt{column: value}
	case OpGte:
		return squirrel.GtOrEq{column: value}
	case OpLt:
		return squirrel.Lt{column: value}
	case OpLte:
		return squirrel.LtOrEq{column: value}
	}
	return squirrel.Eq{column: value}
}

func fullTextClause(column, term, language string) squirrel.Sqlizer {
	if language == "" {
		return squirrel.Expr(fmt.Sprintf("to_tsvector(%s) @@ plainto_tsquery(?)", column), term)
	}
	return squirrel.Expr(
		fmt.Sprintf("to_tsvector('%s', %s) @@ plainto_tsquery('%s', ?)", language, column, language),
		term,
	)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func eachValue(v any, fn func(any) bool) bool {
	if list, ok := v.([]any); ok {
		for _, item := range list {
			if !fn(item) {
				return false
			}
		}
		return true
	}
	return fn(v)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}
