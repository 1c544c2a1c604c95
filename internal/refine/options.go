package refine

import (
	"fmt"
	"strconv"
	"time"
)

// Option is one allow-listed value of a Filter.
type Option struct {
	Value  any
	Label  string
	active bool
}

func NewOption(value any, label string) Option {
	if label == "" {
		label = fmt.Sprint(value)
	}
	return Option{Value: value, Label: label}
}

func (o Option) IsActive() bool { return o.active }

// OptionsOf builds options labelled by their own value.
func OptionsOf(values ...any) []Option {
	out := make([]Option, 0, len(values))
	for _, v := range values {
		out = append(out, NewOption(v, ""))
	}
	return out
}

// OptionsFromEnum lists every case of e, labelled as a headline.
func OptionsFromEnum(e Enum) []Option {
	out := make([]Option, 0, len(e.Cases))
	for _, c := range e.Cases {
		out = append(out, NewOption(c, Headline(c)))
	}
	return out
}

// activateOptions marks options equal to value (or to any of its elements) as
// active and returns the matched values in request order.
func activateOptions(opts []Option, value any) []any {
	matched := matchOptions(opts, value)
	selected := optionKeys(matched)
	for i := range opts {
		opts[i].active = selected[optionKey(opts[i].Value)]
	}
	return matched
}

// matchOptions returns the candidates in value that name a declared option.
// It leaves option state untouched.
func matchOptions(opts []Option, value any) []any {
	index := make(map[string]bool, len(opts))
	for _, o := range opts {
		index[optionKey(o.Value)] = true
	}

	candidates, isList := value.([]any)
	if !isList {
		candidates = []any{value}
	}

	matched := make([]any, 0, len(candidates))
	for _, c := range candidates {
		if index[optionKey(c)] {
			matched = append(matched, c)
		}
	}
	return matched
}

func optionKeys(values []any) map[string]bool {
	keys := make(map[string]bool, len(values))
	for _, v := range values {
		keys[optionKey(v)] = true
	}
	return keys
}

// optionKey compares values across numeric widths and representations.
func optionKey(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format(dateLayout)
		}
		return t.Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}
