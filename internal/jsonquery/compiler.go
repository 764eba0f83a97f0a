package jsonquery

import (
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/bendichter/dandi-sql/internal/complexity"
	"github.com/bendichter/dandi-sql/internal/domain"
	"github.com/bendichter/dandi-sql/internal/schema"
)

// Config bounds structured-query pagination.
type Config struct {
	DefaultLimit int // page size when the caller supplies none, default 100
	MaxLimit     int // hard row ceiling, default 1000
}

// DefaultConfig returns the stock pagination ceilings.
func DefaultConfig() Config {
	return Config{DefaultLimit: 100, MaxLimit: 1000}
}

// Compiler turns validated Specs into execution plans. Compilation is pure:
// it performs no I/O and can serve a validate-only request without any
// storage round trip.
type Compiler struct {
	registry *schema.Registry
	scorer   *complexity.Scorer
	cfg      Config
}

// NewCompiler builds a compiler over the given registry. Zero config fields
// fall back to defaults.
func NewCompiler(reg *schema.Registry, scorer *complexity.Scorer, cfg Config) *Compiler {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultConfig().DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = DefaultConfig().MaxLimit
	}
	return &Compiler{registry: reg, scorer: scorer, cfg: cfg}
}

// rootAlias is the table alias of the root entity in every compiled query.
const rootAlias = "t0"

// selected is one requested output column after path resolution.
type selected struct {
	path string
	expr string
	col  schema.Column
}

// builder accumulates join state during one compilation. Each unique
// relationship path gets exactly one join regardless of how many fields,
// filters, or annotations traverse it.
type builder struct {
	reg         *schema.Registry
	root        *schema.Entity
	joins       []string
	aliasByPath map[string]string
	sqlJoins    int
	maxDepth    int
}

// column resolves a dotted path to a qualified SQL expression, registering
// any joins the traversal needs.
func (b *builder) column(path string) (string, schema.Column, error) {
	res, err := b.reg.ResolvePath(b.root.Name, path)
	if err != nil {
		return "", schema.Column{}, err
	}
	if res.Depth > b.maxDepth {
		b.maxDepth = res.Depth
	}

	alias := rootAlias
	prefix := ""
	for _, hop := range res.Hops {
		if prefix == "" {
			prefix = hop.Rel.Name
		} else {
			prefix += "." + hop.Rel.Name
		}
		next, ok := b.aliasByPath[prefix]
		if !ok {
			next = b.addJoin(alias, hop)
			b.aliasByPath[prefix] = next
		}
		alias = next
	}
	return alias + "." + res.Column.Name, res.Column, nil
}

// addJoin emits the LEFT JOIN clause(s) for one relationship hop and returns
// the alias of the joined target table.
func (b *builder) addJoin(prev string, hop schema.Hop) string {
	from, _ := b.reg.ResolveEntity(hop.From)
	target, _ := b.reg.ResolveEntity(hop.Rel.Target)
	alias := fmt.Sprintf("t%d", len(b.aliasByPath)+1)
	rel := hop.Rel

	switch {
	case rel.Cardinality == schema.ManyToMany:
		mid := alias + "j"
		b.joins = append(b.joins,
			fmt.Sprintf("%s AS %s ON %s.%s = %s.%s",
				rel.JoinTable, mid, mid, rel.JoinSourceColumn, prev, from.PrimaryKey),
			fmt.Sprintf("%s AS %s ON %s.%s = %s.%s",
				target.Table, alias, alias, target.PrimaryKey, mid, rel.JoinTargetColumn))
		b.sqlJoins += 2
	case rel.FKColumn != "":
		b.joins = append(b.joins,
			fmt.Sprintf("%s AS %s ON %s.%s = %s.%s",
				target.Table, alias, alias, target.PrimaryKey, prev, rel.FKColumn))
		b.sqlJoins++
	default:
		b.joins = append(b.joins,
			fmt.Sprintf("%s AS %s ON %s.%s = %s.%s",
				target.Table, alias, alias, rel.TargetFKColumn, prev, from.PrimaryKey))
		b.sqlJoins++
	}
	return alias
}

// Compile validates the spec end to end and produces an execution plan whose
// statement carries limit+1 rows for next-page detection. First failure wins,
// in the same order the checks are listed in the method body.
func (c *Compiler) Compile(spec Spec) (*domain.ExecutionPlan, error) {
	root, err := c.registry.ResolveEntity(spec.Model)
	if err != nil {
		return nil, err
	}
	b := &builder{reg: c.registry, root: root, aliasByPath: make(map[string]string)}

	// Requested fields; all root columns when none are named.
	fields := spec.Fields
	if len(fields) == 0 {
		for _, col := range root.Columns {
			fields = append(fields, col.Name)
		}
	}
	var sel []selected
	for _, f := range fields {
		path := normalizePath(f)
		expr, col, err := b.column(path)
		if err != nil {
			return nil, err
		}
		sel = append(sel, selected{path: path, expr: expr, col: col})
	}

	// Filters, in deterministic key order so compiled SQL is stable.
	where, filterCount, err := c.predicates(b, spec.Filters)
	if err != nil {
		return nil, err
	}

	// Annotations, also in deterministic order.
	type annotated struct {
		name string
		expr sq.Sqlizer
		typ  string
	}
	var anns []annotated
	for _, name := range sortedAnnotationKeys(spec.Annotations) {
		ann := spec.Annotations[name]
		expr, typ, nested, err := c.annotation(b, name, ann)
		if err != nil {
			return nil, err
		}
		filterCount += nested
		anns = append(anns, annotated{name: name, expr: expr, typ: typ})
	}

	// Structural ceilings, shared scorer.
	counts := complexity.Counts{
		Joins:       b.sqlJoins,
		JoinDepth:   b.maxDepth,
		Filters:     filterCount,
		Annotations: len(spec.Annotations),
		Fields:      len(fields),
	}
	if err := c.scorer.Check(counts); err != nil {
		return nil, err
	}

	limit, offset, page, perPage, err := c.pagination(spec)
	if err != nil {
		return nil, err
	}

	// Assemble the statement.
	sb := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Select().
		From(root.Table + " AS " + rootAlias)
	if spec.Distinct {
		sb = sb.Distinct()
	}
	for _, s := range sel {
		sb = sb.Column(fmt.Sprintf("%s AS %q", s.expr, s.path))
	}
	for _, a := range anns {
		sb = sb.Column(sq.Alias(a.expr, a.name))
	}
	for _, j := range b.joins {
		sb = sb.LeftJoin(j)
	}
	if where != nil {
		sb = sb.Where(where)
	}
	if len(anns) > 0 && len(sel) > 0 {
		for _, s := range sel {
			sb = sb.GroupBy(s.expr)
		}
	}

	orderBy, err := c.ordering(b, spec, root, len(anns) > 0, sel)
	if err != nil {
		return nil, err
	}
	if len(orderBy) > 0 {
		sb = sb.OrderBy(orderBy...)
	}

	// limit+1 probe row for has_next; the executor discards the extra row.
	sb = sb.Limit(uint64(limit + 1)).Offset(uint64(offset))

	sqlText, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	countSQL, countArgs, err := c.countStatement(root, b, where, spec.Distinct)
	if err != nil {
		return nil, err
	}

	columns := make([]domain.ColumnMeta, 0, len(sel)+len(anns))
	for _, s := range sel {
		columns = append(columns, domain.ColumnMeta{Name: s.path, Type: string(s.col.Type)})
	}
	for _, a := range anns {
		columns = append(columns, domain.ColumnMeta{Name: a.name, Type: a.typ})
	}

	return &domain.ExecutionPlan{
		Model:      root.Name,
		SQL:        sqlText,
		Args:       args,
		CountSQL:   countSQL,
		CountArgs:  countArgs,
		Columns:    columns,
		Limit:      limit,
		Offset:     offset,
		Page:       page,
		PerPage:    perPage,
		Complexity: c.scorer.Score(counts),
	}, nil
}

// predicates compiles a filter map to a conjunction, returning the number of
// predicates for complexity accounting.
func (c *Compiler) predicates(b *builder, filters map[string]interface{}) (sq.Sqlizer, int, error) {
	if len(filters) == 0 {
		return nil, 0, nil
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var conj sq.And
	for _, key := range keys {
		path, op := splitFilterKey(key)
		expr, col, err := b.column(path)
		if err != nil {
			return nil, 0, err
		}
		if err := checkOperator(path, op, col); err != nil {
			return nil, 0, err
		}
		pred, err := predicate(expr, path, op, filters[key])
		if err != nil {
			return nil, 0, err
		}
		conj = append(conj, pred)
	}
	// A single predicate goes out bare; squirrel parenthesizes conjunctions.
	if len(conj) == 1 {
		return conj[0], 1, nil
	}
	return conj, len(conj), nil
}

// predicate builds one comparison. Every caller value becomes a bind
// parameter; pattern operators escape LIKE metacharacters so caller text
// matches literally.
func predicate(expr, path string, op Operator, value interface{}) (sq.Sqlizer, error) {
	needString := func() (string, error) {
		s, ok := value.(string)
		if !ok {
			return "", domain.NewQueryError(domain.KindInvalidOperator,
				"operator %q on %q requires a string value", op, path)
		}
		return s, nil
	}

	switch op {
	case OpExact:
		return sq.Eq{expr: value}, nil
	case OpIExact:
		s, err := needString()
		if err != nil {
			return nil, err
		}
		return sq.Expr("LOWER("+expr+") = LOWER(?)", s), nil
	case OpContains, OpIContains, OpStartsWith, OpIStartsWith, OpEndsWith, OpIEndsWith:
		s, err := needString()
		if err != nil {
			return nil, err
		}
		pattern := likePattern(op, s)
		switch op {
		case OpIContains, OpIStartsWith, OpIEndsWith:
			return sq.ILike{expr: pattern}, nil
		default:
			return sq.Like{expr: pattern}, nil
		}
	case OpGt:
		return sq.Gt{expr: value}, nil
	case OpGte:
		return sq.GtOrEq{expr: value}, nil
	case OpLt:
		return sq.Lt{expr: value}, nil
	case OpLte:
		return sq.LtOrEq{expr: value}, nil
	case OpIn:
		items, ok := value.([]interface{})
		if !ok || len(items) == 0 {
			return nil, domain.NewQueryError(domain.KindInvalidOperator,
				"operator \"in\" on %q requires a non-empty list", path)
		}
		return sq.Eq{expr: items}, nil
	case OpIsNull:
		want, ok := value.(bool)
		if !ok {
			return nil, domain.NewQueryError(domain.KindInvalidOperator,
				"operator \"isnull\" on %q requires a boolean", path)
		}
		if want {
			return sq.Eq{expr: nil}, nil
		}
		return sq.NotEq{expr: nil}, nil
	}
	return nil, domain.NewQueryError(domain.KindInvalidOperator, "unsupported operator %q", op)
}

// likePattern escapes LIKE metacharacters in the caller's text and wraps it
// for the given operator.
func likePattern(op Operator, s string) string {
	esc := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	switch op {
	case OpContains, OpIContains:
		return "%" + esc + "%"
	case OpStartsWith, OpIStartsWith:
		return esc + "%"
	default:
		return "%" + esc
	}
}

// annotation compiles one named aggregate, returning its SQL expression, its
// result type, and the number of nested filter predicates.
func (c *Compiler) annotation(b *builder, name string, ann Annotation) (sq.Sqlizer, string, int, error) {
	fn := Aggregate(strings.ToLower(ann.Function))
	hasField := ann.Field != ""

	var colExpr string
	var col schema.Column
	if hasField {
		var err error
		colExpr, col, err = b.column(normalizePath(ann.Field))
		if err != nil {
			return nil, "", 0, err
		}
	}
	if err := checkAggregate(name, fn, col, hasField); err != nil {
		return nil, "", 0, err
	}

	var agg string
	switch {
	case !hasField:
		agg = "COUNT(*)"
	case fn == AggStringAgg:
		agg = fmt.Sprintf("STRING_AGG(%s, ', ')", colExpr)
	default:
		agg = fmt.Sprintf("%s(%s)", strings.ToUpper(string(fn)), colExpr)
	}

	nested, nestedCount, err := c.predicates(b, ann.Filter)
	if err != nil {
		return nil, "", 0, err
	}

	var expr sq.Sqlizer
	if nested != nil {
		expr = sq.Expr(agg+" FILTER (WHERE ?)", nested)
	} else {
		expr = sq.Expr(agg)
	}
	return expr, annotationType(fn, col), nestedCount, nil
}

// annotationType maps an aggregate to the semantic type of its output.
func annotationType(fn Aggregate, col schema.Column) string {
	switch fn {
	case AggCount:
		return string(schema.TypeInteger)
	case AggAvg:
		return string(schema.TypeFloat)
	case AggArrayAgg:
		return string(schema.TypeJSON)
	case AggStringAgg:
		return string(schema.TypeText)
	default:
		return string(col.Type)
	}
}

// ordering compiles order_by entries. A "-" prefix means descending.
// Annotation names order by output alias; everything else resolves through
// the registry. Ungrouped queries get the root primary key appended as a
// tie-breaker so pagination order is deterministic. DISTINCT and grouped
// queries may only order by what they output: Postgres rejects an ORDER BY
// expression outside the select list of a SELECT DISTINCT, and a grouped
// query may not order by an ungrouped column. A distinct query that does not
// select the primary key falls back to the selected columns themselves as the
// tie-breaker; distinct rows are unique over them, so the order is still
// total.
func (c *Compiler) ordering(b *builder, spec Spec, root *schema.Entity, grouped bool, sel []selected) ([]string, error) {
	var out []string
	pkExpr := rootAlias + "." + root.PrimaryKey
	selExprs := make(map[string]bool, len(sel))
	for _, s := range sel {
		selExprs[s.expr] = true
	}
	ordered := make(map[string]bool)

	for _, entry := range spec.OrderBy {
		dir := "ASC"
		key := entry
		if strings.HasPrefix(key, "-") {
			dir = "DESC"
			key = key[1:]
		}
		if _, ok := spec.Annotations[key]; ok {
			out = append(out, fmt.Sprintf("%q %s", key, dir))
			continue
		}
		path := normalizePath(key)
		expr, _, err := b.column(path)
		if err != nil {
			return nil, err
		}
		if (grouped || spec.Distinct) && !selExprs[expr] {
			return nil, domain.NewQueryError(domain.KindInvalidField,
				"order_by %q must be a selected field or annotation in a distinct or aggregated query", key)
		}
		ordered[expr] = true
		out = append(out, expr+" "+dir)
	}

	if grouped {
		if len(out) == 0 && len(sel) > 0 {
			out = append(out, sel[0].expr+" ASC")
		}
		return out, nil
	}
	if spec.Distinct && !selExprs[pkExpr] {
		for _, s := range sel {
			if !ordered[s.expr] {
				out = append(out, s.expr+" ASC")
				ordered[s.expr] = true
			}
		}
		return out, nil
	}
	if !ordered[pkExpr] {
		out = append(out, pkExpr+" ASC")
	}
	return out, nil
}

// countStatement builds the optional total-count pass: same joins and
// predicates, no ordering or pagination. Joins along to-many paths can fan
// out rows, so the count collapses to distinct root rows.
func (c *Compiler) countStatement(root *schema.Entity, b *builder, where sq.Sqlizer, distinct bool) (string, []interface{}, error) {
	target := "COUNT(*)"
	if distinct || b.sqlJoins > 0 {
		target = fmt.Sprintf("COUNT(DISTINCT %s.%s)", rootAlias, root.PrimaryKey)
	}
	cb := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).
		Select(target).
		From(root.Table + " AS " + rootAlias)
	for _, j := range b.joins {
		cb = cb.LeftJoin(j)
	}
	if where != nil {
		cb = cb.Where(where)
	}
	return cb.ToSql()
}

// pagination resolves the two pagination styles into concrete limit/offset
// plus page metadata. Mixing styles is rejected rather than silently
// preferring one.
func (c *Compiler) pagination(spec Spec) (limit, offset, page, perPage int, err error) {
	pageStyle := spec.Page != nil || spec.PageSize != nil
	offsetStyle := spec.Limit != nil || spec.Offset != nil
	if pageStyle && offsetStyle {
		return 0, 0, 0, 0, domain.NewQueryError(domain.KindAmbiguousPagination,
			"supply either page/page_size or limit/offset, not both")
	}

	limit = c.cfg.DefaultLimit
	switch {
	case pageStyle:
		page = 1
		if spec.Page != nil {
			page = *spec.Page
		}
		if page < 1 {
			return 0, 0, 0, 0, domain.NewQueryError(domain.KindInvalidField, "page must be >= 1")
		}
		if spec.PageSize != nil {
			if *spec.PageSize < 1 {
				return 0, 0, 0, 0, domain.NewQueryError(domain.KindInvalidField, "page_size must be >= 1")
			}
			limit = *spec.PageSize
		}
		if limit > c.cfg.MaxLimit {
			limit = c.cfg.MaxLimit
		}
		return limit, (page - 1) * limit, page, limit, nil
	case offsetStyle:
		if spec.Limit != nil {
			if *spec.Limit < 1 {
				return 0, 0, 0, 0, domain.NewQueryError(domain.KindInvalidField, "limit must be >= 1")
			}
			limit = *spec.Limit
		}
		if limit > c.cfg.MaxLimit {
			limit = c.cfg.MaxLimit
		}
		if spec.Offset != nil {
			if *spec.Offset < 0 {
				return 0, 0, 0, 0, domain.NewQueryError(domain.KindInvalidField, "offset must be non-negative")
			}
			offset = *spec.Offset
		}
		return limit, offset, offset/limit + 1, limit, nil
	default:
		return limit, 0, 1, limit, nil
	}
}

func sortedAnnotationKeys(anns map[string]Annotation) []string {
	keys := make([]string, 0, len(anns))
	for k := range anns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
