package sqlguard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bendichter/dandi-sql/internal/complexity"
	"github.com/bendichter/dandi-sql/internal/domain"
	"github.com/bendichter/dandi-sql/internal/schema"
)

// Config bounds the raw-SQL path.
type Config struct {
	MaxQueryLength int // bytes of input accepted, default 10000
	MaxRows        int // LIMIT injected or clamped to, default 1000
}

// DefaultConfig returns the stock raw-SQL ceilings.
func DefaultConfig() Config {
	return Config{MaxQueryLength: 10000, MaxRows: 1000}
}

// Validator decides whether caller-supplied SQL may run read-only and
// produces the secured statement. It never touches the database: Validate is
// pure computation over the token stream, so callers can validate without a
// storage round trip.
type Validator struct {
	registry *schema.Registry
	scorer   *complexity.Scorer
	cfg      Config
}

// NewValidator builds a validator over the given registry. Zero config
// fields fall back to defaults.
func NewValidator(reg *schema.Registry, scorer *complexity.Scorer, cfg Config) *Validator {
	if cfg.MaxQueryLength <= 0 {
		cfg.MaxQueryLength = DefaultConfig().MaxQueryLength
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = DefaultConfig().MaxRows
	}
	return &Validator{registry: reg, scorer: scorer, cfg: cfg}
}

// MaxRows returns the configured row ceiling.
func (v *Validator) MaxRows() int { return v.cfg.MaxRows }

// dangerousFunctions are call targets that exfiltrate, stall, or probe the
// server rather than read catalog data. Matched only when followed by an
// opening parenthesis, so a column named "ascii" stays usable.
var dangerousFunctions = map[string]bool{
	"pg_sleep": true, "pg_sleep_for": true, "pg_sleep_until": true,
	"sleep": true, "benchmark": true, "waitfor": true,
	"char": true, "chr": true, "ascii": true,
	"load_file": true, "pg_read_file": true, "pg_read_binary_file": true,
	"pg_ls_dir": true, "pg_stat_file": true,
	"lo_import": true, "lo_export": true,
	"dblink": true, "dblink_exec": true, "dblink_connect": true,
	"pg_terminate_backend": true, "pg_cancel_backend": true,
	"pg_reload_conf": true, "set_config": true, "current_setting": true,
}

// Validate applies the admission pipeline in order, first failure wins:
// length, statement shape, forbidden tokens, table whitelist, complexity,
// and finally LIMIT injection or clamping. On success the verdict carries
// the secured statement; on failure the returned error is a typed
// domain.QueryError and the verdict carries its message.
func (v *Validator) Validate(sql string) (domain.Verdict, error) {
	secured, err := v.secure(sql)
	if err != nil {
		return domain.Verdict{Valid: false, Message: err.Error()}, err
	}
	return domain.Verdict{Valid: true, Message: "Query is valid", SecuredSQL: secured}, nil
}

func (v *Validator) secure(sql string) (string, error) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return "", domain.NewQueryError(domain.KindNotReadOnly, "empty statement; only a single SELECT is allowed")
	}
	if len(sql) > v.cfg.MaxQueryLength {
		return "", domain.NewQueryError(domain.KindQueryTooLong,
			"query is %d characters, the maximum is %d", len(sql), v.cfg.MaxQueryLength)
	}

	toks := Tokens(trimmed)

	if err := checkShape(toks); err != nil {
		return "", err
	}
	if err := checkForbidden(toks); err != nil {
		return "", err
	}
	if err := v.checkTables(toks); err != nil {
		return "", err
	}
	if err := v.scorer.Check(structuralCounts(toks)); err != nil {
		return "", err
	}
	return v.applyLimit(trimmed, toks)
}

// checkShape admits exactly one statement beginning with SELECT or WITH.
func checkShape(toks []Token) error {
	switch toks[0].Type {
	case TOKEN_SELECT, TOKEN_WITH:
	default:
		return domain.NewQueryError(domain.KindNotReadOnly,
			"only SELECT statements are allowed, got %q", toks[0].Literal)
	}
	for i, tok := range toks {
		if tok.Type == TOKEN_SEMICOLON && toks[i+1].Type != TOKEN_EOF {
			return domain.NewQueryError(domain.KindNotReadOnly,
				"stacked statements are not allowed")
		}
		if tok.Type == TOKEN_ILLEGAL {
			return domain.NewQueryError(domain.KindForbiddenOperation,
				"unexpected character %q", tok.Literal)
		}
	}
	return nil
}

// checkForbidden scans for blocklisted verbs and dangerous call targets.
// SELECT ... INTO is a write in Postgres, so INTO outside a literal is also
// rejected here.
func checkForbidden(toks []Token) error {
	for i, tok := range toks {
		switch tok.Type {
		case TOKEN_FORBIDDEN:
			return domain.NewQueryError(domain.KindForbiddenOperation,
				"forbidden keyword: %s", strings.ToUpper(tok.Literal))
		case TOKEN_INTO:
			return domain.NewQueryError(domain.KindForbiddenOperation,
				"forbidden keyword: INTO")
		case TOKEN_IDENT:
			if dangerousFunctions[strings.ToLower(tok.Literal)] && toks[i+1].Type == TOKEN_LPAREN {
				return domain.NewQueryError(domain.KindForbiddenOperation,
					"forbidden function: %s", strings.ToLower(tok.Literal))
			}
		}
	}
	return nil
}

// tableRef is one table referenced after FROM or JOIN.
type tableRef struct {
	name string
}

// checkTables extracts every table reference and confirms it against the
// registry whitelist. Names introduced by the statement's own WITH clause are
// legal reference targets.
func (v *Validator) checkTables(toks []Token) error {
	ctes := cteNames(toks)
	for _, ref := range extractTableRefs(toks) {
		bare := ref.name
		if i := strings.LastIndex(bare, "."); i >= 0 {
			bare = bare[i+1:]
		}
		if ctes[strings.ToLower(bare)] {
			continue
		}
		if !v.registry.IsTableAllowed(ref.name) {
			return domain.NewQueryError(domain.KindUnauthorizedTable,
				"table %q is not on the allowed list", ref.name)
		}
	}
	return nil
}

// cteNames collects the names bound by a leading WITH clause.
func cteNames(toks []Token) map[string]bool {
	names := make(map[string]bool)
	if toks[0].Type != TOKEN_WITH {
		return names
	}
	i := 1
	if toks[i].Type == TOKEN_RECURSIVE {
		i++
	}
	for {
		if toks[i].Type != TOKEN_IDENT {
			return names
		}
		names[strings.ToLower(toks[i].Literal)] = true
		i++
		// Optional column list before AS.
		if toks[i].Type == TOKEN_LPAREN {
			i = skipBalanced(toks, i)
		}
		if toks[i].Type != TOKEN_AS {
			return names
		}
		i++
		if toks[i].Type != TOKEN_LPAREN {
			return names
		}
		i = skipBalanced(toks, i)
		if toks[i].Type != TOKEN_COMMA {
			return names
		}
		i++
	}
}

// skipBalanced advances past a balanced parenthesis group starting at i.
func skipBalanced(toks []Token, i int) int {
	depth := 0
	for ; toks[i].Type != TOKEN_EOF; i++ {
		switch toks[i].Type {
		case TOKEN_LPAREN:
			depth++
		case TOKEN_RPAREN:
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return i
}

// extractTableRefs walks the token stream collecting dotted identifiers that
// appear in table position: after FROM, after any JOIN, and after commas in a
// FROM list. Subqueries contribute their own FROM clauses as the walk reaches
// them.
func extractTableRefs(toks []Token) []tableRef {
	var refs []tableRef
	depth := 0
	inFrom := false
	fromDepth := 0
	expectTable := false

	for i := 0; toks[i].Type != TOKEN_EOF; i++ {
		switch toks[i].Type {
		case TOKEN_LPAREN:
			depth++
			expectTable = false
		case TOKEN_RPAREN:
			depth--
			if inFrom && depth < fromDepth {
				inFrom = false
			}
		case TOKEN_FROM:
			inFrom = true
			fromDepth = depth
			expectTable = true
		case TOKEN_JOIN:
			expectTable = true
		case TOKEN_COMMA:
			if inFrom && depth == fromDepth {
				expectTable = true
			}
		case TOKEN_WHERE, TOKEN_GROUP, TOKEN_ORDER, TOKEN_HAVING,
			TOKEN_LIMIT, TOKEN_OFFSET, TOKEN_WINDOW,
			TOKEN_UNION, TOKEN_INTERSECT, TOKEN_EXCEPT, TOKEN_ON, TOKEN_USING:
			if depth == fromDepth {
				inFrom = false
			}
			expectTable = false
		case TOKEN_LATERAL, TOKEN_INNER, TOKEN_OUTER, TOKEN_LEFT,
			TOKEN_RIGHT, TOKEN_FULL, TOKEN_CROSS, TOKEN_NATURAL, TOKEN_ONLY:
			// Join modifiers keep the expectation alive.
		case TOKEN_IDENT:
			if !expectTable {
				continue
			}
			name := toks[i].Literal
			for toks[i+1].Type == TOKEN_DOT && toks[i+2].Type == TOKEN_IDENT {
				name += "." + toks[i+2].Literal
				i += 2
			}
			// A function in table position (e.g. unnest(...)) is not a table.
			if toks[i+1].Type == TOKEN_LPAREN {
				expectTable = false
				continue
			}
			refs = append(refs, tableRef{name: name})
			expectTable = false
		default:
			expectTable = false
		}
	}
	return refs
}

// structuralCounts tallies joins, subquery nesting, and predicate count for
// the shared complexity scorer. Comma cross-joins in a FROM list count like
// explicit JOINs.
func structuralCounts(toks []Token) complexity.Counts {
	var c complexity.Counts
	depth := 0
	maxSubquery := 0
	betweenRange := false
	for i := 0; toks[i].Type != TOKEN_EOF; i++ {
		switch toks[i].Type {
		case TOKEN_LPAREN:
			depth++
		case TOKEN_RPAREN:
			depth--
		case TOKEN_SELECT:
			if depth > maxSubquery {
				maxSubquery = depth
			}
		case TOKEN_JOIN:
			c.Joins++
		case TOKEN_BETWEEN:
			betweenRange = true
		case TOKEN_AND:
			// The AND inside BETWEEN x AND y joins range bounds, not
			// predicates.
			if betweenRange {
				betweenRange = false
				break
			}
			c.Filters++
		case TOKEN_WHERE, TOKEN_HAVING, TOKEN_OR:
			c.Filters++
		}
	}
	c.SubqueryDepth = maxSubquery
	c.JoinDepth = c.Joins
	return c
}

// applyLimit enforces the row ceiling on the original text. A missing LIMIT
// gets one appended; a larger literal LIMIT is clamped by splicing the number
// in place; a caller limit at or under the ceiling is left untouched, never
// raised.
func (v *Validator) applyLimit(sql string, toks []Token) (string, error) {
	// Drop a single trailing semicolon so appending stays valid.
	body := sql
	last := len(toks) - 2 // token before EOF
	if last >= 0 && toks[last].Type == TOKEN_SEMICOLON {
		body = strings.TrimSpace(sql[:toks[last].Pos])
	}

	depth := 0
	for i := 0; toks[i].Type != TOKEN_EOF; i++ {
		switch toks[i].Type {
		case TOKEN_LPAREN:
			depth++
		case TOKEN_RPAREN:
			depth--
		case TOKEN_LIMIT:
			if depth != 0 {
				continue
			}
			next := toks[i+1]
			switch next.Type {
			case TOKEN_NUMBER:
				// A number followed by anything but OFFSET or end of
				// statement is part of an arithmetic expression; clamping
				// one operand would not bound the result.
				switch toks[i+2].Type {
				case TOKEN_OFFSET, TOKEN_SEMICOLON, TOKEN_EOF:
				default:
					return "", domain.NewQueryError(domain.KindForbiddenOperation,
						"LIMIT must be a literal number")
				}
				n, err := strconv.Atoi(next.Literal)
				if err != nil || n > v.cfg.MaxRows {
					return body[:next.Pos] + strconv.Itoa(v.cfg.MaxRows) + body[next.End:], nil
				}
				return body, nil
			case TOKEN_ALL:
				return body[:next.Pos] + strconv.Itoa(v.cfg.MaxRows) + body[next.End:], nil
			default:
				return "", domain.NewQueryError(domain.KindForbiddenOperation,
					"LIMIT must be a literal number")
			}
		}
	}
	return fmt.Sprintf("%s LIMIT %d", body, v.cfg.MaxRows), nil
}
