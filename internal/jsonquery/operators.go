package jsonquery

import (
	"sort"
	"strings"

	"github.com/bendichter/dandi-sql/internal/domain"
	"github.com/bendichter/dandi-sql/internal/schema"
)

// Operator is a filter comparison. The set is closed: anything not listed
// here is rejected during validation, never passed through to SQL.
type Operator string

const (
	OpExact       Operator = "exact"
	OpIExact      Operator = "iexact"
	OpContains    Operator = "contains"
	OpIContains   Operator = "icontains"
	OpStartsWith  Operator = "startswith"
	OpIStartsWith Operator = "istartswith"
	OpEndsWith    Operator = "endswith"
	OpIEndsWith   Operator = "iendswith"
	OpGt          Operator = "gt"
	OpGte         Operator = "gte"
	OpLt          Operator = "lt"
	OpLte         Operator = "lte"
	OpIn          Operator = "in"
	OpIsNull      Operator = "isnull"
)

var operators = map[Operator]bool{
	OpExact: true, OpIExact: true,
	OpContains: true, OpIContains: true,
	OpStartsWith: true, OpIStartsWith: true,
	OpEndsWith: true, OpIEndsWith: true,
	OpGt: true, OpGte: true, OpLt: true, OpLte: true,
	OpIn: true, OpIsNull: true,
}

// Operators returns the supported operator names, sorted. Used by the schema
// introspection endpoint.
func Operators() []string {
	out := make([]string, 0, len(operators))
	for op := range operators {
		out = append(out, string(op))
	}
	sort.Strings(out)
	return out
}

// splitFilterKey separates a filter key into its field path and operator.
// The last double-underscore segment is the operator when it names one;
// otherwise the whole key is the path and the operator is exact.
func splitFilterKey(key string) (string, Operator) {
	if i := strings.LastIndex(key, "__"); i >= 0 {
		if op := Operator(key[i+2:]); operators[op] {
			return normalizePath(key[:i]), op
		}
	}
	return normalizePath(key), OpExact
}

// stringOperator reports whether the operator compares text.
func (op Operator) stringOperator() bool {
	switch op {
	case OpIExact, OpContains, OpIContains,
		OpStartsWith, OpIStartsWith, OpEndsWith, OpIEndsWith:
		return true
	}
	return false
}

// rangeOperator reports whether the operator needs an ordered type.
func (op Operator) rangeOperator() bool {
	switch op {
	case OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// checkOperator validates operator-against-type compatibility: text
// comparisons only on text columns, range comparisons only on ordered types.
// exact, in, and isnull apply to any column.
func checkOperator(path string, op Operator, col schema.Column) error {
	if op.stringOperator() && col.Type != schema.TypeText {
		return domain.NewQueryError(domain.KindInvalidOperator,
			"operator %q requires a text field, %q is %s", op, path, col.Type)
	}
	if op.rangeOperator() && !col.Type.Ordered() {
		return domain.NewQueryError(domain.KindInvalidOperator,
			"operator %q requires an ordered field, %q is %s", op, path, col.Type)
	}
	return nil
}

// Aggregate is a supported annotation function. Closed set, same contract as
// Operator.
type Aggregate string

const (
	AggCount     Aggregate = "count"
	AggSum       Aggregate = "sum"
	AggAvg       Aggregate = "avg"
	AggMin       Aggregate = "min"
	AggMax       Aggregate = "max"
	AggArrayAgg  Aggregate = "array_agg"
	AggStringAgg Aggregate = "string_agg"
)

var aggregates = map[Aggregate]bool{
	AggCount: true, AggSum: true, AggAvg: true,
	AggMin: true, AggMax: true,
	AggArrayAgg: true, AggStringAgg: true,
}

// Aggregates returns the supported aggregate names, sorted.
func Aggregates() []string {
	out := make([]string, 0, len(aggregates))
	for agg := range aggregates {
		out = append(out, string(agg))
	}
	sort.Strings(out)
	return out
}

// checkAggregate validates the aggregate function name and its compatibility
// with the source column type.
func checkAggregate(name string, fn Aggregate, col schema.Column, hasField bool) error {
	if !aggregates[fn] {
		return domain.NewQueryError(domain.KindInvalidOperator,
			"annotation %q: unsupported aggregate %q (supported: %s)",
			name, fn, strings.Join(Aggregates(), ", "))
	}
	if !hasField {
		if fn != AggCount {
			return domain.NewQueryError(domain.KindInvalidOperator,
				"annotation %q: aggregate %q requires a field", name, fn)
		}
		return nil
	}
	switch fn {
	case AggSum, AggAvg:
		if col.Type != schema.TypeInteger && col.Type != schema.TypeFloat {
			return domain.NewQueryError(domain.KindInvalidOperator,
				"annotation %q: %q requires a numeric field, got %s", name, fn, col.Type)
		}
	case AggMin, AggMax:
		if !col.Type.Ordered() && col.Type != schema.TypeText {
			return domain.NewQueryError(domain.KindInvalidOperator,
				"annotation %q: %q requires an ordered or text field, got %s", name, fn, col.Type)
		}
	case AggStringAgg:
		if col.Type != schema.TypeText {
			return domain.NewQueryError(domain.KindInvalidOperator,
				"annotation %q: %q requires a text field, got %s", name, fn, col.Type)
		}
	}
	return nil
}
