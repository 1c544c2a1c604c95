package model

import (
	"errors"
	"strings"
	"testing"

	"RefineAPI/internal/refine"

	"github.com/hashicorp/go-multierror"
)

func TestValidateResourcesAggregates(t *testing.T) {
	res := &Resource{
		Name: "orders",
		Filters: []FilterDef{
			{Name: "status", Type: "uuid"},
			{Name: "total", Operator: "between"},
			{Name: "code", Rule: &RuleDef{Pattern: "("}},
			{Name: "customer.name"},
		},
		Sorts:    []SortDef{{Name: "total", Only: "sideways"}},
		Searches: []SearchDef{{Name: "number", Boolean: "xor"}},
	}
	err := ValidateResources(map[string]*Resource{"orders": res})
	if err == nil {
		t.Fatal("expected errors")
	}
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		t.Fatalf("expected multierror, got %T", err)
	}
	msg := err.Error()
	for _, want := range []string{
		"table is required",
		"unknown value type",
		"unknown operator",
		"rule.pattern",
		`unknown relation "customer"`,
		"invalid sort direction",
		"invalid search boolean",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("missing %q in:\n%s", want, msg)
		}
	}
}

func TestValidateResourcesDryRunFindsDuplicates(t *testing.T) {
	res := &Resource{
		Name:    "orders",
		Table:   "orders",
		Filters: []FilterDef{{Name: "status"}, {Name: "state", Alias: "status"}},
	}
	err := ValidateResources(map[string]*Resource{"orders": res})
	if !errors.Is(err, refine.ErrDuplicateParameter) {
		t.Fatalf("expected ErrDuplicateParameter, got %v", err)
	}
}

func TestValidateResourcesAcceptsFixture(t *testing.T) {
	res := mustParse(t, "orders", ordersYAML)
	if err := ValidateResources(map[string]*Resource{"orders": res}); err != nil {
		t.Fatalf("fixture invalid: %v", err)
	}
}
