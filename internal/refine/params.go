package refine

import (
	"fmt"
	"reflect"
)

// Provider lazily produces a parameter value.
type Provider func() (any, error)

// Params resolves hook and default-value parameters. Lookup order is fixed:
// named provider, then typed provider, then the caller's default, then
// ErrUnresolvable.
type Params struct {
	named map[string]Provider
	typed map[reflect.Type]Provider
}

func NewParams() *Params {
	return &Params{
		named: map[string]Provider{},
		typed: map[reflect.Type]Provider{},
	}
}

func (p *Params) Provide(name string, fn Provider) *Params {
	p.named[name] = fn
	return p
}

func (p *Params) ProvideType(t reflect.Type, fn Provider) *Params {
	p.typed[t] = fn
	return p
}

// Set registers v under name and under its dynamic type.
func (p *Params) Set(name string, v any) *Params {
	fn := func() (any, error) { return v, nil }
	p.named[name] = fn
	if v != nil {
		p.typed[reflect.TypeOf(v)] = fn
	}
	return p
}

// Resolve looks a parameter up by name, then by t. def is used when neither
// matches; without def the result is ErrUnresolvable.
func (p *Params) Resolve(name string, t reflect.Type, def ...any) (any, error) {
	if fn, ok := p.named[name]; ok && name != "" {
		return fn()
	}
	if t != nil {
		if fn, ok := p.typed[t]; ok {
			return fn()
		}
	}
	if len(def) > 0 {
		return def[0], nil
	}
	return nil, fmt.Errorf("%w: name=%q type=%v", ErrUnresolvable, name, t)
}

// Param resolves a parameter as T.
func Param[T any](p *Params, name string, def ...T) (T, error) {
	var zero T
	t := reflect.TypeFor[T]()
	defaults := make([]any, 0, 1)
	if len(def) > 0 {
		defaults = append(defaults, def[0])
	}
	v, err := p.Resolve(name, t, defaults...)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q is %T, want %v", ErrUnresolvable, name, v, t)
	}
	return typed, nil
}
