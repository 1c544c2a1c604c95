package refine

import (
	"strconv"
	"strings"
	"time"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

var (
	dateLayouts = []string{dateLayout, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04"}
	timeLayouts = []string{timeLayout, "15:04", "3:04PM", "3:04 PM"}
)

// Enum is a closed set of backing values.
type Enum struct {
	Name  string
	Cases []string
}

func (e Enum) Has(v string) bool {
	for _, c := range e.Cases {
		if c == v {
			return true
		}
	}
	return false
}

// Interpret coerces a raw query value into kind. A false ok means the value is
// to be treated as absent; it is never an error.
func Interpret(raw string, kind Kind, delimiter string) (any, bool) {
	raw = strings.TrimSpace(raw)
	switch kind {
	case KindString, "":
		return raw, raw != ""
	case KindInt:
		v, err := strconv.Atoi(raw)
		return v, err == nil
	case KindFloat:
		v, err := strconv.ParseFloat(raw, 64)
		return v, err == nil
	case KindBool:
		return interpretBool(raw), true
	case KindDate:
		return parseTime(raw, dateLayouts, true)
	case KindTime:
		return parseTime(raw, timeLayouts, false)
	case KindArray:
		items := splitList(raw, delimiter)
		out := make([]any, 0, len(items))
		for _, it := range items {
			out = append(out, it)
		}
		return out, len(out) > 0
	}
	return nil, false
}

// InterpretEnum accepts raw only when it is one of the enum's cases.
func InterpretEnum(raw string, e Enum) (string, bool) {
	raw = strings.TrimSpace(raw)
	if !e.Has(raw) {
		return "", false
	}
	return raw, true
}

// InterpretList splits raw on delimiter and coerces each element on its own.
// Elements that do not coerce are dropped.
func InterpretList(raw string, elem Kind, enum *Enum, delimiter string) ([]any, bool) {
	items := splitList(raw, delimiter)
	out := make([]any, 0, len(items))
	for _, it := range items {
		var (
			v  any
			ok bool
		)
		if enum != nil {
			v, ok = InterpretEnum(it, *enum)
		} else {
			v, ok = Interpret(it, elem, delimiter)
		}
		if ok {
			out = append(out, v)
		}
	}
	return out, len(out) > 0
}

func interpretBool(raw string) bool {
	switch strings.ToLower(raw) {
	case "1", "true", "on", "yes", "y":
		return true
	}
	return false
}

func interpretFalse(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "0", "false", "off", "no", "n":
		return true
	}
	return false
}

func parseTime(raw string, layouts []string, dateOnly bool) (any, bool) {
	for _, layout := range layouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		if dateOnly {
			t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
		return t, true
	}
	return nil, false
}

func splitList(raw, delimiter string) []string {
	if delimiter == "" {
		delimiter = ","
	}
	parts := strings.Split(raw, delimiter)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// truthy reports whether a coerced value counts as "set" for presence filters.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && !interpretFalse(t)
	case int:
		return t != 0
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	}
	return true
}
