package refine

import (
	"net/http"
	"net/url"
	"strings"
)

// Request is the read-only parameter bag the engine consults.
type Request interface {
	Lookup(key string) ([]string, bool)
}

// Values adapts url.Values to Request.
type Values url.Values

func (v Values) Lookup(key string) ([]string, bool) {
	vals, ok := v[key]
	if !ok || len(vals) == 0 {
		return nil, false
	}
	return vals, true
}

func FromHTTP(r *http.Request) Values {
	return Values(r.URL.Query())
}

// ParseQuery builds Values from a raw query string.
func ParseQuery(raw string) (Values, error) {
	v, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil {
		return nil, err
	}
	return Values(v), nil
}
