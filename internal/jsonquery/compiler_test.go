package jsonquery

import (
	"fmt"
	"strings"
	"testing"

	"github.com/bendichter/dandi-sql/internal/complexity"
	"github.com/bendichter/dandi-sql/internal/domain"
	"github.com/bendichter/dandi-sql/internal/schema"
)

func intp(n int) *int { return &n }

func newTestCompiler(t *testing.T) *Compiler {
	t.Helper()
	return NewCompiler(schema.Default(), complexity.NewDefaultScorer(), DefaultConfig())
}

func TestCompileSimpleSpec(t *testing.T) {
	c := newTestCompiler(t)

	plan, err := c.Compile(Spec{
		Model:   "dandiset",
		Fields:  []string{"id", "name"},
		Filters: map[string]interface{}{"name__icontains": "mouse"},
		Limit:   intp(5),
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	want := `SELECT t0.id AS "id", t0.name AS "name" FROM dandisets_dandiset AS t0 WHERE t0.name ILIKE $1 ORDER BY t0.id ASC LIMIT 6 OFFSET 0`
	if plan.SQL != want {
		t.Errorf("SQL = %q\nwant %q", plan.SQL, want)
	}
	if len(plan.Args) != 1 || plan.Args[0] != "%mouse%" {
		t.Errorf("args = %v", plan.Args)
	}
	if plan.Limit != 5 {
		t.Errorf("limit = %d, want 5", plan.Limit)
	}
	if plan.Model != "dandiset" {
		t.Errorf("model = %q", plan.Model)
	}
	if len(plan.Columns) != 2 || plan.Columns[0].Name != "id" || plan.Columns[1].Name != "name" {
		t.Errorf("columns = %v", plan.Columns)
	}
}

func TestCompileRejectsUnknownModel(t *testing.T) {
	c := newTestCompiler(t)
	_, err := c.Compile(Spec{Model: "User"})
	if domain.KindOf(err) != domain.KindUnknownModel {
		t.Fatalf("expected UnknownModel, got %v", err)
	}
}

func TestCompileRejectsUnknownField(t *testing.T) {
	c := newTestCompiler(t)
	_, err := c.Compile(Spec{Model: "dandiset", Fields: []string{"password"}})
	if domain.KindOf(err) != domain.KindInvalidField {
		t.Fatalf("expected InvalidField, got %v", err)
	}
}

func TestCompileOperatorTypeCompatibility(t *testing.T) {
	c := newTestCompiler(t)

	tests := []struct {
		name    string
		filters map[string]interface{}
		wantErr bool
	}{
		{"icontains on text", map[string]interface{}{"name__icontains": "x"}, false},
		{"icontains on integer", map[string]interface{}{"version_order__icontains": "x"}, true},
		{"gt on integer", map[string]interface{}{"version_order__gt": 3}, false},
		{"gt on text", map[string]interface{}{"name__gt": "x"}, true},
		{"gt on timestamp", map[string]interface{}{"date_created__gt": "2024-01-01"}, false},
		{"exact on boolean", map[string]interface{}{"is_latest": true}, false},
		{"isnull non-bool", map[string]interface{}{"citation__isnull": "yes"}, true},
		{"in without list", map[string]interface{}{"id__in": 3}, true},
		{"in with list", map[string]interface{}{"id__in": []interface{}{1, 2, 3}}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Compile(Spec{Model: "dandiset", Fields: []string{"id"}, Filters: tc.filters})
			if tc.wantErr && domain.KindOf(err) != domain.KindInvalidOperator {
				t.Fatalf("expected InvalidOperator, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCompileDedupesJoins(t *testing.T) {
	c := newTestCompiler(t)

	// Field, filter, and order_by all traverse participants.species; the
	// relationship must be joined exactly once.
	plan, err := c.Compile(Spec{
		Model:   "asset",
		Fields:  []string{"id", "participants.species.name"},
		Filters: map[string]interface{}{"participants__species__name__icontains": "musculus"},
		OrderBy: []string{"participants.species.name"},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	// One m2m hop (two SQL joins) plus one fk hop.
	if got := strings.Count(plan.SQL, "LEFT JOIN"); got != 3 {
		t.Errorf("expected 3 LEFT JOINs, got %d in %q", got, plan.SQL)
	}
	if strings.Count(plan.SQL, "dandisets_speciestype") != 1 {
		t.Errorf("species table should be joined once: %q", plan.SQL)
	}
}

func TestCompileJoinDepthCeiling(t *testing.T) {
	reg, err := schema.New(schema.Default().Entities(), schema.WithMaxDepth(2))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	c := NewCompiler(reg, complexity.NewDefaultScorer(), DefaultConfig())

	_, err = c.Compile(Spec{
		Model:  "dandiset",
		Fields: []string{"assets.participants.species.name"},
	})
	if domain.KindOf(err) != domain.KindJoinTooDeep {
		t.Fatalf("expected JoinTooDeep, got %v", err)
	}
}

func TestCompileFilterCountBoundary(t *testing.T) {
	c := newTestCompiler(t)

	build := func(n int) map[string]interface{} {
		filters := make(map[string]interface{}, n)
		ops := []string{"", "__isnull", "__in"}
		cols := schema.Default().Entities()[0].Columns
		for i := 0; len(filters) < n; i++ {
			col := cols[i%len(cols)]
			key := col.Name + ops[i/len(cols)]
			switch {
			case strings.HasSuffix(key, "__isnull"):
				filters[key] = true
			case strings.HasSuffix(key, "__in"):
				filters[key] = []interface{}{1}
			default:
				filters[key] = 1
			}
		}
		return filters
	}

	if _, err := c.Compile(Spec{Model: "dandiset", Fields: []string{"id"}, Filters: build(50)}); err != nil {
		t.Fatalf("50 filters should be admitted: %v", err)
	}
	_, err := c.Compile(Spec{Model: "dandiset", Fields: []string{"id"}, Filters: build(51)})
	if domain.KindOf(err) != domain.KindQueryTooComplex {
		t.Fatalf("51 filters: expected QueryTooComplex, got %v", err)
	}
}

func TestCompileAnnotations(t *testing.T) {
	c := newTestCompiler(t)

	plan, err := c.Compile(Spec{
		Model:  "dandiset",
		Fields: []string{"name"},
		Annotations: map[string]Annotation{
			"asset_count": {Function: "count", Field: "assets.id"},
			"nwb_count": {
				Function: "count",
				Field:    "assets.id",
				Filter:   map[string]interface{}{"assets__encoding_format": "application/x-nwb"},
			},
		},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	for _, frag := range []string{"COUNT(t1.id)", "AS asset_count", "AS nwb_count", "FILTER (WHERE", "GROUP BY t0.name"} {
		if !strings.Contains(plan.SQL, frag) {
			t.Errorf("SQL missing %q: %q", frag, plan.SQL)
		}
	}
	if len(plan.Args) != 1 || plan.Args[0] != "application/x-nwb" {
		t.Errorf("args = %v", plan.Args)
	}
}

func TestCompileRejectsUnknownAggregate(t *testing.T) {
	c := newTestCompiler(t)

	_, err := c.Compile(Spec{
		Model:       "dandiset",
		Fields:      []string{"name"},
		Annotations: map[string]Annotation{"x": {Function: "exec", Field: "id"}},
	})
	if domain.KindOf(err) != domain.KindInvalidOperator {
		t.Fatalf("expected InvalidOperator, got %v", err)
	}
}

func TestCompileAggregateTypeRules(t *testing.T) {
	c := newTestCompiler(t)

	// sum over text rejects, sum over integer passes.
	_, err := c.Compile(Spec{
		Model:       "dandiset",
		Fields:      []string{"id"},
		Annotations: map[string]Annotation{"s": {Function: "sum", Field: "name"}},
	})
	if domain.KindOf(err) != domain.KindInvalidOperator {
		t.Fatalf("sum over text: expected InvalidOperator, got %v", err)
	}
	if _, err := c.Compile(Spec{
		Model:       "dandiset",
		Fields:      []string{"id"},
		Annotations: map[string]Annotation{"s": {Function: "sum", Field: "assets.content_size"}},
	}); err != nil {
		t.Fatalf("sum over integer: %v", err)
	}
}

func TestCompilePagination(t *testing.T) {
	c := newTestCompiler(t)
	base := Spec{Model: "dandiset", Fields: []string{"id"}}

	t.Run("defaults", func(t *testing.T) {
		plan, err := c.Compile(base)
		if err != nil {
			t.Fatal(err)
		}
		if plan.Limit != 100 || plan.Offset != 0 || plan.Page != 1 || plan.PerPage != 100 {
			t.Errorf("got limit=%d offset=%d page=%d per_page=%d", plan.Limit, plan.Offset, plan.Page, plan.PerPage)
		}
	})

	t.Run("page style", func(t *testing.T) {
		spec := base
		spec.Page = intp(3)
		spec.PageSize = intp(20)
		plan, err := c.Compile(spec)
		if err != nil {
			t.Fatal(err)
		}
		if plan.Limit != 20 || plan.Offset != 40 || plan.Page != 3 {
			t.Errorf("got limit=%d offset=%d page=%d", plan.Limit, plan.Offset, plan.Page)
		}
	})

	t.Run("limit clamped to ceiling", func(t *testing.T) {
		spec := base
		spec.Limit = intp(50000)
		plan, err := c.Compile(spec)
		if err != nil {
			t.Fatal(err)
		}
		if plan.Limit != 1000 {
			t.Errorf("limit = %d, want 1000", plan.Limit)
		}
		if !strings.Contains(plan.SQL, "LIMIT 1001") {
			t.Errorf("statement should carry the probe row: %q", plan.SQL)
		}
	})

	t.Run("mixed styles rejected", func(t *testing.T) {
		spec := base
		spec.Page = intp(2)
		spec.Limit = intp(10)
		_, err := c.Compile(spec)
		if domain.KindOf(err) != domain.KindAmbiguousPagination {
			t.Fatalf("expected AmbiguousPagination, got %v", err)
		}
	})

	t.Run("negative offset rejected", func(t *testing.T) {
		spec := base
		spec.Offset = intp(-1)
		if _, err := c.Compile(spec); err == nil {
			t.Fatal("expected rejection")
		}
	})
}

func TestCompileOrdering(t *testing.T) {
	c := newTestCompiler(t)

	plan, err := c.Compile(Spec{
		Model:   "dandiset",
		Fields:  []string{"id", "name"},
		OrderBy: []string{"-date_created"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(plan.SQL, "ORDER BY t0.date_created DESC, t0.id ASC") {
		t.Errorf("expected descending order with pk tie-breaker: %q", plan.SQL)
	}

	// Ordering by pk alone does not duplicate the tie-breaker.
	plan, err = c.Compile(Spec{Model: "dandiset", Fields: []string{"id"}, OrderBy: []string{"id"}})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(plan.SQL, "t0.id ASC") != 1 {
		t.Errorf("pk should appear once in ORDER BY: %q", plan.SQL)
	}
}

func TestCompileDistinctOrdering(t *testing.T) {
	c := newTestCompiler(t)

	// Without the pk in the select list, the tie-breaker is the selected
	// columns themselves; an unselected column in ORDER BY would make
	// Postgres reject the whole DISTINCT statement.
	plan, err := c.Compile(Spec{
		Model:    "dandiset",
		Fields:   []string{"dandi_id", "name"},
		Distinct: true,
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(plan.SQL, "ORDER BY t0.dandi_id ASC, t0.name ASC") {
		t.Errorf("distinct should order by the selected columns: %q", plan.SQL)
	}
	if strings.Contains(plan.SQL, "t0.id") {
		t.Errorf("unselected pk must stay out of a distinct statement: %q", plan.SQL)
	}

	// An explicit order_by outside the select list cannot run under DISTINCT.
	_, err = c.Compile(Spec{
		Model:    "dandiset",
		Fields:   []string{"dandi_id"},
		OrderBy:  []string{"-date_created"},
		Distinct: true,
	})
	if domain.KindOf(err) != domain.KindInvalidField {
		t.Fatalf("expected InvalidField, got %v", err)
	}

	// Selecting the pk keeps the usual tie-breaker.
	plan, err = c.Compile(Spec{
		Model:    "dandiset",
		Fields:   []string{"id", "name"},
		Distinct: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(plan.SQL, "ORDER BY t0.id ASC") {
		t.Errorf("selected pk remains the tie-breaker: %q", plan.SQL)
	}
}

func TestCompileGroupedOrderingMustBeSelected(t *testing.T) {
	c := newTestCompiler(t)

	_, err := c.Compile(Spec{
		Model:       "dandiset",
		Fields:      []string{"name"},
		Annotations: map[string]Annotation{"asset_count": {Function: "count", Field: "assets.id"}},
		OrderBy:     []string{"date_created"},
	})
	if domain.KindOf(err) != domain.KindInvalidField {
		t.Fatalf("ordering by an ungrouped column: expected InvalidField, got %v", err)
	}
}

func TestCompileCountStatement(t *testing.T) {
	c := newTestCompiler(t)

	plan, err := c.Compile(Spec{
		Model:   "dandiset",
		Fields:  []string{"id", "assets.content_size"},
		Filters: map[string]interface{}{"is_latest": true},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(plan.CountSQL, "SELECT COUNT(DISTINCT t0.id)") {
		t.Errorf("joined count must collapse to distinct roots: %q", plan.CountSQL)
	}
	if strings.Contains(plan.CountSQL, "ORDER BY") || strings.Contains(plan.CountSQL, "LIMIT") {
		t.Errorf("count pass must not order or paginate: %q", plan.CountSQL)
	}
	if len(plan.CountArgs) != 1 {
		t.Errorf("count args = %v", plan.CountArgs)
	}
}

func TestCompileDeterministicSQL(t *testing.T) {
	c := newTestCompiler(t)

	spec := Spec{
		Model:  "dandiset",
		Fields: []string{"id", "name"},
		Filters: map[string]interface{}{
			"name__icontains": "mouse",
			"is_latest":       true,
			"version_order":   1,
		},
	}
	first, err := c.Compile(spec)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, err := c.Compile(spec)
		if err != nil {
			t.Fatal(err)
		}
		if again.SQL != first.SQL {
			t.Fatalf("compilation is not deterministic:\n%q\n%q", first.SQL, again.SQL)
		}
		if fmt.Sprint(again.Args) != fmt.Sprint(first.Args) {
			t.Fatalf("arg order is not deterministic: %v vs %v", first.Args, again.Args)
		}
	}
}

func TestSplitFilterKey(t *testing.T) {
	tests := []struct {
		key      string
		wantPath string
		wantOp   Operator
	}{
		{"name", "name", OpExact},
		{"name__icontains", "name", OpIContains},
		{"participants__species__name__iexact", "participants.species.name", OpIExact},
		{"date_created__gte", "date_created", OpGte},
		{"citation__isnull", "citation", OpIsNull},
		{"name__bogus", "name.bogus", OpExact}, // not an operator, treated as path
	}
	for _, tc := range tests {
		path, op := splitFilterKey(tc.key)
		if path != tc.wantPath || op != tc.wantOp {
			t.Errorf("splitFilterKey(%q) = (%q, %q), want (%q, %q)", tc.key, path, op, tc.wantPath, tc.wantOp)
		}
	}
}
