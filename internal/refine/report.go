package refine

import "time"

// Report is the serializable state a rendering client builds controls from.
type Report struct {
	Filters  []FilterReport `json:"filters"`
	Sorts    []SortReport   `json:"sorts"`
	Searches []SearchReport `json:"searches,omitempty"`
	Config   ReportConfig   `json:"config"`
}

type FilterReport struct {
	Name    string         `json:"name"`
	Label   string         `json:"label"`
	Type    string         `json:"type"`
	Active  bool           `json:"active"`
	Value   any            `json:"value"`
	Options []OptionReport `json:"options,omitempty"`
	Clauses []string       `json:"clauses,omitempty"`
	Clause  string         `json:"clause,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

type OptionReport struct {
	Value  any    `json:"value"`
	Label  string `json:"label"`
	Active bool   `json:"active"`
}

type SortReport struct {
	Name      string         `json:"name"`
	Label     string         `json:"label"`
	Type      string         `json:"type"`
	Active    bool           `json:"active"`
	Direction *string        `json:"direction"`
	Next      *string        `json:"next"`
	Meta      map[string]any `json:"meta,omitempty"`
}

type SearchReport struct {
	Name   string         `json:"name"`
	Label  string         `json:"label"`
	Type   string         `json:"type"`
	Active bool           `json:"active"`
	Meta   map[string]any `json:"meta,omitempty"`
}

type ReportConfig struct {
	Delimiter string  `json:"delimiter"`
	SortKey   string  `json:"sortKey"`
	SearchKey string  `json:"searchKey"`
	MatchKey  string  `json:"matchKey,omitempty"`
	Term      *string `json:"term"`
}

// Report describes the refiners. It never runs the pipeline: before Refine it
// shows the declared defaults as inactive values, afterwards the evaluated state.
func (r *Refine) Report() Report {
	rep := Report{
		Filters: make([]FilterReport, 0, len(r.Filters())),
		Sorts:   make([]SortReport, 0, len(r.Sorts())),
		Config: ReportConfig{
			Delimiter: r.delimiter,
			SortKey:   r.Key(r.cfg.SortKey),
			SearchKey: r.Key(r.cfg.SearchKey),
		},
	}
	if r.term != "" {
		term := r.term
		rep.Config.Term = &term
	}

	for _, f := range r.Filters() {
		value, selected := f.Value(), map[string]bool(nil)
		if !r.refined {
			if def, ok := f.staticDefault(r.delimiter); ok {
				value = def
				if list, isList := def.([]any); isList {
					selected = optionKeys(list)
				} else {
					selected = optionKeys([]any{def})
				}
			}
		}
		fr := FilterReport{
			Name:   f.Parameter(),
			Label:  f.Label(),
			Type:   f.Type(),
			Active: f.IsActive(),
			Value:  f.reportValue(value),
			Clause: string(f.clause),
			Meta:   f.Meta(),
		}
		for _, o := range f.options {
			fr.Options = append(fr.Options, OptionReport{
				Value:  reportValue(o.Value),
				Label:  o.Label,
				Active: o.active || selected[optionKey(o.Value)],
			})
		}
		for _, c := range f.clauses {
			fr.Clauses = append(fr.Clauses, string(c))
		}
		rep.Filters = append(rep.Filters, fr)
	}

	for _, s := range r.Sorts() {
		sr := SortReport{
			Name:   s.Parameter(),
			Label:  s.Label(),
			Type:   s.Type(),
			Active: s.IsActive(),
			Meta:   s.Meta(),
		}
		direction := s.direction
		if !r.refined && s.IsDefault() {
			direction = s.defaultDirection()
		}
		if direction != None {
			d := string(direction)
			sr.Direction = &d
		}
		sr.Next = s.encodeNext(direction)
		rep.Sorts = append(rep.Sorts, sr)
	}

	if r.cfg.Matching {
		rep.Config.MatchKey = r.Key(r.cfg.MatchKey)
		rep.Searches = make([]SearchReport, 0, len(r.Searches()))
		for _, s := range r.Searches() {
			rep.Searches = append(rep.Searches, SearchReport{
				Name:   s.Parameter(),
				Label:  s.Label(),
				Type:   s.Type(),
				Active: s.IsActive(),
				Meta:   s.Meta(),
			})
		}
	}
	return rep
}

func (f *Filter) reportValue(v any) any {
	if t, ok := v.(time.Time); ok && f.kind == KindTime {
		return t.Format(timeLayout)
	}
	return reportValue(v)
}

func reportValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return optionKey(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = reportValue(item)
		}
		return out
	}
	return v
}
