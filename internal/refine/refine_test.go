package refine

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/Masterminds/squirrel"
)

func ordersQuery() squirrel.SelectBuilder {
	return squirrel.Select("*").From("orders").PlaceholderFormat(squirrel.Dollar)
}

func mustQuery(t *testing.T, raw string) Values {
	t.Helper()
	v, err := ParseQuery(raw)
	if err != nil {
		t.Fatalf("ParseQuery(%q): %v", raw, err)
	}
	return v
}

func refineSQL(t *testing.T, r *Refine) (string, []any) {
	t.Helper()
	if err := r.Refine(); err != nil {
		t.Fatalf("Refine: %v", err)
	}
	sql, args, err := r.Query().ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	return sql, args
}

func TestStageOrderingIgnoresRegistrationOrder(t *testing.T) {
	req := mustQuery(t, "status=paid&search=Bob&sort=-price")
	r := New(context.Background(), ordersQuery(), req, DefaultConfig()).
		WithSorts(NewSort("price")).
		WithFilters(NewFilter("status")).
		WithSearches(NewSearch("customer"))

	sql, args := refineSQL(t, r)

	searchAt := strings.Index(sql, "LOWER(customer) LIKE")
	filterAt := strings.Index(sql, "status = ")
	orderAt := strings.Index(sql, "ORDER BY price DESC")
	if searchAt == -1 || filterAt == -1 || orderAt == -1 {
		t.Fatalf("missing clause in SQL: %s", sql)
	}
	if !(searchAt < filterAt && filterAt < orderAt) {
		t.Fatalf("expected search < filter < order, got SQL: %s", sql)
	}
	if !reflect.DeepEqual(args, []any{"%bob%", "paid"}) {
		t.Fatalf("unexpected args: %#v", args)
	}
}

func TestRefineIsIdempotent(t *testing.T) {
	req := mustQuery(t, "status=paid&sort=price")
	r := New(context.Background(), ordersQuery(), req, DefaultConfig()).
		WithFilters(NewFilter("status")).
		WithSorts(NewSort("price"))

	first, _ := refineSQL(t, r)
	second, args := refineSQL(t, r)
	if first != second {
		t.Fatalf("second Refine changed the query:\n%s\n%s", first, second)
	}
	if strings.Count(second, "status = ") != 1 || strings.Count(second, "price ASC") != 1 {
		t.Fatalf("duplicated clauses: %s", second)
	}
	if len(args) != 1 {
		t.Fatalf("unexpected args: %#v", args)
	}
	if !r.IsRefined() {
		t.Fatal("expected refined state")
	}
}

func TestScopedOrchestratorsDoNotInterfere(t *testing.T) {
	req := mustQuery(t, "a:price=5&b:price=9&price=1")
	price := NewFilter("price").As(KindInt)

	a := New(context.Background(), ordersQuery(), req, DefaultConfig()).WithScope("a").WithFilters(price)
	b := New(context.Background(), ordersQuery(), req, DefaultConfig()).WithScope("b").WithFilters(price)

	_, argsA := refineSQL(t, a)
	_, argsB := refineSQL(t, b)
	if !reflect.DeepEqual(argsA, []any{5}) {
		t.Fatalf("scope a args: %#v", argsA)
	}
	if !reflect.DeepEqual(argsB, []any{9}) {
		t.Fatalf("scope b args: %#v", argsB)
	}
	if price.IsActive() {
		t.Fatal("shared definition must not carry request state")
	}
	if got := a.Report().Config.SortKey; got != "a:sort" {
		t.Fatalf("scoped sort key: %q", got)
	}
}

func TestDefaultSortSelection(t *testing.T) {
	sorts := []*Sort{NewSort("name").Default().Desc(), NewSort("price")}

	r := New(context.Background(), ordersQuery(), Values{}, DefaultConfig()).WithSorts(sorts...)
	sql, _ := refineSQL(t, r)
	if !strings.HasSuffix(sql, "ORDER BY name DESC") {
		t.Fatalf("expected default sort, got SQL: %s", sql)
	}

	r = New(context.Background(), ordersQuery(), mustQuery(t, "sort=price"), DefaultConfig()).WithSorts(sorts...)
	sql, _ = refineSQL(t, r)
	if !strings.HasSuffix(sql, "ORDER BY price ASC") {
		t.Fatalf("expected price sort, got SQL: %s", sql)
	}
	if strings.Contains(sql, "name DESC") {
		t.Fatalf("default sort applied alongside a requested one: %s", sql)
	}
}

func TestPinnedSortIgnoresRequestedDirection(t *testing.T) {
	r := New(context.Background(), ordersQuery(), mustQuery(t, "sort=created_at"), DefaultConfig()).
		WithSorts(NewSort("created_at").Desc())
	sql, _ := refineSQL(t, r)
	if !strings.HasSuffix(sql, "ORDER BY created_at DESC") {
		t.Fatalf("expected pinned desc, got SQL: %s", sql)
	}
}

func TestDelimiterRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		delimiter string
		query     string
	}{
		{",", "status=A,B"},
		{"|", "status=A|B"},
	} {
		r := New(context.Background(), ordersQuery(), mustQuery(t, tc.query), DefaultConfig()).
			WithDelimiter(tc.delimiter).
			WithFilters(NewFilter("status").Multiple())
		sql, args := refineSQL(t, r)
		if !strings.Contains(sql, "status IN ($1,$2)") {
			t.Fatalf("delimiter %q: expected IN clause, got SQL: %s", tc.delimiter, sql)
		}
		if !reflect.DeepEqual(args, []any{"A", "B"}) {
			t.Fatalf("delimiter %q: args %#v", tc.delimiter, args)
		}
	}
}

func TestOptionsRejectUnknownValues(t *testing.T) {
	price := NewFilter("price").As(KindInt).WithOptions(OptionsOf(10, 20, 50)...)

	r := New(context.Background(), ordersQuery(), mustQuery(t, "price=15"), DefaultConfig()).WithFilters(price)
	sql, _ := refineSQL(t, r)
	if strings.Contains(sql, "WHERE") {
		t.Fatalf("rejected option must not apply a clause: %s", sql)
	}
	if r.Filters()[0].IsActive() {
		t.Fatal("filter should be inactive")
	}

	r = New(context.Background(), ordersQuery(), mustQuery(t, "price=20"), DefaultConfig()).WithFilters(price)
	sql, args := refineSQL(t, r)
	if !strings.Contains(sql, "price = $1") || !reflect.DeepEqual(args, []any{20}) {
		t.Fatalf("expected price clause, got SQL: %s args %#v", sql, args)
	}
	opts := r.Filters()[0].Options()
	if !opts[1].IsActive() || opts[0].IsActive() {
		t.Fatalf("option activity wrong: %+v", opts)
	}
}

func TestMultipleOptionsKeepOnlyAllowedValues(t *testing.T) {
	status := NewFilter("status").Multiple().WithOptions(OptionsOf("pending", "paid")...)
	r := New(context.Background(), ordersQuery(), mustQuery(t, "status=paid,bogus"), DefaultConfig()).WithFilters(status)
	sql, args := refineSQL(t, r)
	if !strings.Contains(sql, "status IN ($1)") || !reflect.DeepEqual(args, []any{"paid"}) {
		t.Fatalf("unexpected SQL: %s args %#v", sql, args)
	}
}

func TestEmptyMultipleFilterIsInactive(t *testing.T) {
	r := New(context.Background(), ordersQuery(), mustQuery(t, "status=,,"), DefaultConfig()).
		WithFilters(NewFilter("status").Multiple())
	sql, _ := refineSQL(t, r)
	if strings.Contains(sql, "WHERE") {
		t.Fatalf("empty list must not apply: %s", sql)
	}
}

func TestMalformedInputIsNotFatal(t *testing.T) {
	r := New(context.Background(), ordersQuery(), mustQuery(t, "price=abc&placed=yesterday"), DefaultConfig()).
		WithFilters(NewFilter("price").As(KindInt), NewFilter("placed").As(KindDate))
	sql, _ := refineSQL(t, r)
	if strings.Contains(sql, "WHERE") {
		t.Fatalf("malformed values must be ignored: %s", sql)
	}
}

func TestFilterDefaultAppliesWhenAbsent(t *testing.T) {
	status := NewFilter("status").WithDefault("pending").WithOptions(OptionsOf("pending", "paid")...)
	r := New(context.Background(), ordersQuery(), Values{}, DefaultConfig()).WithFilters(status)
	_, args := refineSQL(t, r)
	if !reflect.DeepEqual(args, []any{"pending"}) {
		t.Fatalf("expected default value, got %#v", args)
	}
}

func TestFilterDefaultIsSubjectToOptions(t *testing.T) {
	status := NewFilter("status").WithDefault("archived").WithOptions(OptionsOf("pending", "paid")...)
	r := New(context.Background(), ordersQuery(), Values{}, DefaultConfig()).WithFilters(status)
	sql, _ := refineSQL(t, r)
	if strings.Contains(sql, "WHERE") {
		t.Fatalf("default outside options must be rejected: %s", sql)
	}
}

func TestFilterDefaultFromParams(t *testing.T) {
	owner := NewFilter("owner_id").As(KindInt).DefaultFrom(func(p *Params) (any, error) {
		return Param[int](p, "user_id")
	})
	r := New(context.Background(), ordersQuery(), Values{}, DefaultConfig()).
		Provide("user_id", 42).
		WithFilters(owner)
	_, args := refineSQL(t, r)
	if !reflect.DeepEqual(args, []any{42}) {
		t.Fatalf("expected provided default, got %#v", args)
	}

	r = New(context.Background(), ordersQuery(), Values{}, DefaultConfig()).WithFilters(owner)
	if err := r.Refine(); !errors.Is(err, ErrUnresolvable) {
		t.Fatalf("expected ErrUnresolvable, got %v", err)
	}
}

func TestFilterDispatchPrecedence(t *testing.T) {
	for _, tc := range []struct {
		name   string
		filter *Filter
		query  string
		want   string
	}{
		{"full text", NewFilter("notes").FullText(), "notes=late delivery", "to_tsvector('simple', notes) @@ plainto_tsquery('simple', $1)"},
		{"like", NewFilter("name").WithOperator(OpLike), "name=Bo", "LOWER(name) LIKE $1"},
		{"not ilike", NewFilter("name").WithOperator(OpNotILike), "name=Bo", "name NOT ILIKE $1"},
		{"array", NewFilter("tags").As(KindArray), "tags=a,b", "tags IN ($1,$2)"},
		{"not in", NewFilter("tags").Multiple().WithOperator(OpNotEq), "tags=a", "tags NOT IN ($1)"},
		{"date", NewFilter("placed_at").As(KindDate).WithOperator(OpGte), "placed_at=2024-03-01", "DATE(placed_at) >= $1"},
		{"time", NewFilter("opens").As(KindTime).WithOperator(OpLt), "opens=09:30", "CAST(opens AS TIME) < $1"},
		{"comparison", NewFilter("price").As(KindFloat).WithOperator(OpGt), "price=9.5", "price > $1"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := New(context.Background(), ordersQuery(), mustQuery(t, tc.query), DefaultConfig()).WithFilters(tc.filter)
			sql, _ := refineSQL(t, r)
			if !strings.Contains(sql, tc.want) {
				t.Fatalf("expected %q in SQL: %s", tc.want, sql)
			}
		})
	}
}

func TestLikeValueIsEscapedAndLowered(t *testing.T) {
	r := New(context.Background(), ordersQuery(), mustQuery(t, "code=AB_1%25"), DefaultConfig()).
		WithFilters(NewFilter("code").WithOperator(OpLike))
	_, args := refineSQL(t, r)
	if !reflect.DeepEqual(args, []any{`%ab\_1\%%`}) {
		t.Fatalf("unexpected pattern: %#v", args)
	}
}

func TestPresenceFilter(t *testing.T) {
	flagged := NewFilter("flagged").Presence()
	for _, tc := range []struct {
		query  string
		active bool
	}{
		{"flagged=anything", true},
		{"flagged=1", true},
		{"flagged=false", false},
		{"", false},
	} {
		r := New(context.Background(), ordersQuery(), mustQuery(t, tc.query), DefaultConfig()).WithFilters(flagged)
		sql, args := refineSQL(t, r)
		if got := r.Filters()[0].IsActive(); got != tc.active {
			t.Fatalf("%q: active=%v, want %v (SQL %s)", tc.query, got, tc.active, sql)
		}
		if tc.active && !reflect.DeepEqual(args, []any{true}) {
			t.Fatalf("%q: presence must normalise to true, got %#v", tc.query, args)
		}
	}
}

func TestValidationRuleRejects(t *testing.T) {
	qty := NewFilter("qty").As(KindInt).WithRules(Between(1, 10))
	r := New(context.Background(), ordersQuery(), mustQuery(t, "qty=11"), DefaultConfig()).WithFilters(qty)
	sql, _ := refineSQL(t, r)
	if strings.Contains(sql, "WHERE") {
		t.Fatalf("rule should reject value: %s", sql)
	}
}

func TestEnumFilter(t *testing.T) {
	status := NewFilter("status").AsEnum(Enum{Name: "Status", Cases: []string{"open", "closed"}})
	r := New(context.Background(), ordersQuery(), mustQuery(t, "status=gone"), DefaultConfig()).WithFilters(status)
	sql, _ := refineSQL(t, r)
	if strings.Contains(sql, "WHERE") {
		t.Fatalf("unmatched enum must be ignored: %s", sql)
	}
	r = New(context.Background(), ordersQuery(), mustQuery(t, "status=open"), DefaultConfig()).WithFilters(status)
	_, args := refineSQL(t, r)
	if !reflect.DeepEqual(args, []any{"open"}) {
		t.Fatalf("unexpected args: %#v", args)
	}
}

func TestClauseSelection(t *testing.T) {
	price := NewFilter("price").As(KindInt).WithClauses(OpEq, OpGte, OpLte)
	r := New(context.Background(), ordersQuery(), mustQuery(t, "price=10&price__op=gte"), DefaultConfig()).WithFilters(price)
	sql, _ := refineSQL(t, r)
	if !strings.Contains(sql, "price >= $1") {
		t.Fatalf("expected chosen clause, got SQL: %s", sql)
	}

	r = New(context.Background(), ordersQuery(), mustQuery(t, "price=10&price__op=gt"), DefaultConfig()).WithFilters(price)
	sql, _ = refineSQL(t, r)
	if !strings.Contains(sql, "price = $1") {
		t.Fatalf("clause outside allow-list must fall back, got SQL: %s", sql)
	}
}

func TestSearchCombinesByBoolean(t *testing.T) {
	r := New(context.Background(), ordersQuery(), mustQuery(t, "search=  Ann%20Lee "), DefaultConfig()).
		WithFilters(NewFilter("status").WithDefault("paid")).
		WithSearches(NewSearch("name"), NewSearch("email"), NewSearch("city").And())
	sql, args := refineSQL(t, r)
	want := "WHERE ((LOWER(name) LIKE $1 OR LOWER(email) LIKE $2) AND LOWER(city) LIKE $3) AND status = $4"
	if !strings.Contains(sql, want) {
		t.Fatalf("unexpected SQL:\n%s\nwant fragment:\n%s", sql, want)
	}
	if args[0] != "%ann lee%" {
		t.Fatalf("term not normalised: %#v", args)
	}
	if r.Term() != "ann lee" {
		t.Fatalf("term: %q", r.Term())
	}
}

func TestSearchMatchingSubset(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Matching = true
	r := New(context.Background(), ordersQuery(), mustQuery(t, "search=x&match=email"), cfg).
		WithSearches(NewSearch("name"), NewSearch("email"))
	sql, _ := refineSQL(t, r)
	if strings.Contains(sql, "LOWER(name)") || !strings.Contains(sql, "LOWER(email) LIKE") {
		t.Fatalf("match should restrict columns: %s", sql)
	}

	r = New(context.Background(), ordersQuery(), mustQuery(t, "search=x&match=email"), DefaultConfig()).
		WithSearches(NewSearch("name"), NewSearch("email"))
	sql, _ = refineSQL(t, r)
	if !strings.Contains(sql, "LOWER(name)") {
		t.Fatalf("match key must be ignored without matching: %s", sql)
	}
}

func TestEmptySearchTermSkipsStage(t *testing.T) {
	r := New(context.Background(), ordersQuery(), mustQuery(t, "search=%20%20"), DefaultConfig()).
		WithSearches(NewSearch("name"))
	sql, _ := refineSQL(t, r)
	if strings.Contains(sql, "WHERE") {
		t.Fatalf("blank term must not search: %s", sql)
	}
}

func TestDisabledStagesShortCircuit(t *testing.T) {
	r := New(context.Background(), ordersQuery(), mustQuery(t, "status=paid&sort=price&search=a"), DefaultConfig()).
		WithFilters(NewFilter("status")).
		WithSorts(NewSort("price")).
		WithSearches(NewSearch("name")).
		DisableSorting().
		DisableSearching()
	sql, _ := refineSQL(t, r)
	if strings.Contains(sql, "ORDER BY") || strings.Contains(sql, "LOWER(name)") {
		t.Fatalf("disabled stages ran: %s", sql)
	}
	if !strings.Contains(sql, "status = $1") {
		t.Fatalf("filters should still run: %s", sql)
	}
}

func TestHooksWrapThePipeline(t *testing.T) {
	var seenScope string
	r := New(context.Background(), ordersQuery(), mustQuery(t, "t:sort=price"), DefaultConfig()).
		WithScope("t").
		WithSorts(NewSort("price")).
		Before(func(q squirrel.SelectBuilder, p *Params) (squirrel.SelectBuilder, error) {
			scope, err := Param[string](p, "scope")
			seenScope = scope
			return q.Where(squirrel.Eq{"deleted_at": nil}), err
		}).
		After(func(q squirrel.SelectBuilder, _ *Params) (squirrel.SelectBuilder, error) {
			return q.OrderBy("id ASC"), nil
		})
	sql, _ := refineSQL(t, r)
	if !strings.Contains(sql, "WHERE deleted_at IS NULL ORDER BY price ASC, id ASC") {
		t.Fatalf("unexpected SQL: %s", sql)
	}
	if seenScope != "t" {
		t.Fatalf("hook saw scope %q", seenScope)
	}
}

func TestHookErrorIsFatal(t *testing.T) {
	boom := errors.New("boom")
	r := New(context.Background(), ordersQuery(), Values{}, DefaultConfig()).
		After(func(q squirrel.SelectBuilder, _ *Params) (squirrel.SelectBuilder, error) { return q, boom })
	if err := r.Refine(); !errors.Is(err, boom) {
		t.Fatalf("expected hook error, got %v", err)
	}
	if r.IsRefined() {
		t.Fatal("failed pipeline must not be marked refined")
	}
}

func TestRetryAfterFailureAppliesOnce(t *testing.T) {
	boom := errors.New("boom")
	failures := 1
	owner := NewFilter("owner").DefaultFrom(func(*Params) (any, error) {
		if failures > 0 {
			failures--
			return nil, boom
		}
		return nil, nil
	})
	r := New(context.Background(), ordersQuery(), mustQuery(t, "search=ann&status=paid&sort=price"), DefaultConfig()).
		WithSearches(NewSearch("name")).
		WithFilters(NewFilter("status"), owner).
		WithSorts(NewSort("price"))

	if err := r.Refine(); !errors.Is(err, boom) {
		t.Fatalf("expected default error, got %v", err)
	}
	if sql, _, _ := r.Query().ToSql(); strings.Contains(sql, "WHERE") {
		t.Fatalf("failed run left clauses behind: %s", sql)
	}
	if len(r.Active()) != 0 || r.Term() != "" {
		t.Fatalf("failed run left refiners active: %v", r.Active())
	}

	if err := r.Refine(); err != nil {
		t.Fatalf("retry: %v", err)
	}
	sql, args, err := r.Query().ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	if !strings.HasSuffix(sql, "WHERE LOWER(name) LIKE $1 AND status = $2 ORDER BY price ASC") {
		t.Fatalf("unexpected SQL after retry: %s", sql)
	}
	if !reflect.DeepEqual(args, []any{"%ann%", "paid"}) {
		t.Fatalf("unexpected args after retry: %v", args)
	}
}

func TestMultipleLikeMatchesEachElement(t *testing.T) {
	cases := []struct {
		op   Operator
		want string
	}{
		{OpLike, "WHERE (LOWER(name) LIKE $1 OR LOWER(name) LIKE $2)"},
		{OpILike, "WHERE (name ILIKE $1 OR name ILIKE $2)"},
		{OpNotLike, "WHERE (LOWER(name) NOT LIKE $1 AND LOWER(name) NOT LIKE $2)"},
		{OpNotILike, "WHERE (name NOT ILIKE $1 AND name NOT ILIKE $2)"},
	}
	for _, c := range cases {
		r := New(context.Background(), ordersQuery(), mustQuery(t, "name=Ann,bob"), DefaultConfig()).
			WithFilters(NewFilter("name").Multiple().WithOperator(c.op))
		if err := r.Refine(); err != nil {
			t.Fatalf("%s: Refine: %v", c.op, err)
		}
		sql, args, err := r.Query().ToSql()
		if err != nil {
			t.Fatalf("%s: ToSql: %v", c.op, err)
		}
		if !strings.Contains(sql, c.want) {
			t.Fatalf("%s: unexpected SQL: %s", c.op, sql)
		}
		if !reflect.DeepEqual(args, []any{"%ann%", "%bob%"}) {
			t.Fatalf("%s: unexpected args: %v", c.op, args)
		}
	}
}

func TestConfigurationErrorsAreAggregated(t *testing.T) {
	r := New(context.Background(), ordersQuery(), Values{}, DefaultConfig()).
		WithFilters(NewFilter("price"), NewFilter("amount").WithAlias("price"), NewFilter("x").WithOperator("~")).
		WithSorts(NewSort("a").Default(), NewSort("b").Default())
	err := r.Refine()
	if err == nil {
		t.Fatal("expected configuration error")
	}
	for _, target := range []error{ErrDuplicateParameter, ErrUnknownOperator, ErrMultipleDefaultSorts} {
		if !errors.Is(err, target) {
			t.Fatalf("expected %v in %v", target, err)
		}
	}
}

func TestAuthorizationGateEvaluatedOnce(t *testing.T) {
	calls := 0
	gate := func(context.Context) bool { calls++; return calls == 1 }
	r := New(context.Background(), ordersQuery(), mustQuery(t, "status=paid"), DefaultConfig()).
		WithFilters(NewFilter("status").Authorize(gate), NewFilter("secret").Authorize(func(context.Context) bool { return false }))

	_, args := refineSQL(t, r)
	_ = r.Report()
	_ = r.Filters()
	if calls != 1 {
		t.Fatalf("gate evaluated %d times", calls)
	}
	if len(r.Report().Filters) != 1 || !reflect.DeepEqual(args, []any{"paid"}) {
		t.Fatalf("unexpected visible filters or args: %#v", args)
	}
}

func TestQualifierPrefixesBareNames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Qualifier = "main"
	r := New(context.Background(), ordersQuery(), mustQuery(t, "status=paid&total=3&sort=-customer.name"), cfg).
		WithFilters(NewFilter("status"), NewFilter("customer.total").WithAlias("total").As(KindInt)).
		WithSorts(NewSort("customer.name").WithAlias("customer.name"))
	sql, _ := refineSQL(t, r)
	for _, want := range []string{"main.status = $1", "customer.total = $2", "ORDER BY customer.name DESC"} {
		if !strings.Contains(sql, want) {
			t.Fatalf("expected %q in SQL: %s", want, sql)
		}
	}
}

func TestActiveListsAppliedRefinersInStageOrder(t *testing.T) {
	r := New(context.Background(), ordersQuery(), mustQuery(t, "status=paid&sort=price&search=a"), DefaultConfig()).
		WithSorts(NewSort("price")).
		WithFilters(NewFilter("status"), NewFilter("unused")).
		WithSearches(NewSearch("name"))
	refineSQL(t, r)
	var names []string
	for _, a := range r.Active() {
		names = append(names, a.Parameter())
	}
	if !reflect.DeepEqual(names, []string{"name", "status", "price"}) {
		t.Fatalf("active: %v", names)
	}
}
