// Package sqlguard decides whether caller-supplied raw SQL may be executed
// read-only against the catalog, and produces a secured statement when it may.
//
// All checks run on lexed tokens, never on raw text: comments are discarded by
// the lexer, string literals are data, and keyword matching is
// case-insensitive by construction. That closes the classic smuggling routes
// (keyword split across a comment, verbs hidden in case tricks, blocked names
// inside literals triggering false rejections).
package sqlguard

import "fmt"

// TokenType represents the type of a lexical token.
type TokenType int

// TOKEN_EOF and friends enumerate all token types produced by the lexer.
const (
	TOKEN_EOF     TokenType = iota // end of input
	TOKEN_ILLEGAL                  // unexpected character

	TOKEN_IDENT  // identifier
	TOKEN_NUMBER // 123, 45.67, 1e10
	TOKEN_STRING // 'hello'
	TOKEN_PARAM  // $1, $2 placeholder

	TOKEN_PLUS      // +
	TOKEN_MINUS     // -
	TOKEN_STAR      // *
	TOKEN_SLASH     // /
	TOKEN_MOD       // %
	TOKEN_DPIPE     // ||
	TOKEN_EQ        // =
	TOKEN_NE        // != or <>
	TOKEN_LT        // <
	TOKEN_GT        // >
	TOKEN_LE        // <=
	TOKEN_GE        // >=
	TOKEN_DOT       // .
	TOKEN_COMMA     // ,
	TOKEN_SEMICOLON // ;
	TOKEN_LPAREN    // (
	TOKEN_RPAREN    // )
	TOKEN_LBRACKET  // [
	TOKEN_RBRACKET  // ]
	TOKEN_DCOLON    // :: (Postgres cast)
	TOKEN_COLON     // :
	TOKEN_ARROW     // -> (JSON access)
	TOKEN_DARROW    // ->> (JSON access as text)
	TOKEN_TILDE     // ~
	TOKEN_QMARK     // ?

	// TOKEN_FORBIDDEN is any keyword on the blocklist: write verbs,
	// session/system verbs, and file/bulk primitives. The literal carries the
	// offending word for the rejection message.
	TOKEN_FORBIDDEN

	// TOKEN_ALL and below are the read-query keywords (alphabetical).
	TOKEN_ALL
	TOKEN_AND
	TOKEN_AS
	TOKEN_ASC
	TOKEN_BETWEEN
	TOKEN_BY
	TOKEN_CASE
	TOKEN_CAST
	TOKEN_CROSS
	TOKEN_DESC
	TOKEN_DISTINCT
	TOKEN_ELSE
	TOKEN_END
	TOKEN_EXCEPT
	TOKEN_EXISTS
	TOKEN_EXTRACT
	TOKEN_FALSE
	TOKEN_FETCH
	TOKEN_FILTER
	TOKEN_FIRST
	TOKEN_FROM
	TOKEN_FULL
	TOKEN_GROUP
	TOKEN_HAVING
	TOKEN_ILIKE
	TOKEN_IN
	TOKEN_INNER
	TOKEN_INTERSECT
	TOKEN_INTERVAL
	TOKEN_INTO
	TOKEN_IS
	TOKEN_JOIN
	TOKEN_LAST
	TOKEN_LATERAL
	TOKEN_LEFT
	TOKEN_LIKE
	TOKEN_LIMIT
	TOKEN_NATURAL
	TOKEN_NOT
	TOKEN_NULL
	TOKEN_NULLS
	TOKEN_OFFSET
	TOKEN_ON
	TOKEN_ONLY
	TOKEN_OR
	TOKEN_ORDER
	TOKEN_OUTER
	TOKEN_OVER
	TOKEN_PARTITION
	TOKEN_RECURSIVE
	TOKEN_RIGHT
	TOKEN_ROW
	TOKEN_ROWS
	TOKEN_SELECT
	TOKEN_SIMILAR
	TOKEN_THEN
	TOKEN_TRUE
	TOKEN_UNION
	TOKEN_USING
	TOKEN_VALUES
	TOKEN_WHEN
	TOKEN_WHERE
	TOKEN_WINDOW
	TOKEN_WITH
	TOKEN_WITHIN
)

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

var tokenNames = map[TokenType]string{
	TOKEN_EOF:     "EOF",
	TOKEN_ILLEGAL: "ILLEGAL",
	TOKEN_IDENT:   "IDENT",
	TOKEN_NUMBER:  "NUMBER",
	TOKEN_STRING:  "STRING",
	TOKEN_PARAM:   "PARAM",

	TOKEN_PLUS:      "+",
	TOKEN_MINUS:     "-",
	TOKEN_STAR:      "*",
	TOKEN_SLASH:     "/",
	TOKEN_MOD:       "%",
	TOKEN_DPIPE:     "||",
	TOKEN_EQ:        "=",
	TOKEN_NE:        "!=",
	TOKEN_LT:        "<",
	TOKEN_GT:        ">",
	TOKEN_LE:        "<=",
	TOKEN_GE:        ">=",
	TOKEN_DOT:       ".",
	TOKEN_COMMA:     ",",
	TOKEN_SEMICOLON: ";",
	TOKEN_LPAREN:    "(",
	TOKEN_RPAREN:    ")",
	TOKEN_LBRACKET:  "[",
	TOKEN_RBRACKET:  "]",
	TOKEN_DCOLON:    "::",
	TOKEN_COLON:     ":",
	TOKEN_ARROW:     "->",
	TOKEN_DARROW:    "->>",
	TOKEN_TILDE:     "~",
	TOKEN_QMARK:     "?",

	TOKEN_FORBIDDEN: "FORBIDDEN",

	TOKEN_ALL:       "ALL",
	TOKEN_AND:       "AND",
	TOKEN_AS:        "AS",
	TOKEN_ASC:       "ASC",
	TOKEN_BETWEEN:   "BETWEEN",
	TOKEN_BY:        "BY",
	TOKEN_CASE:      "CASE",
	TOKEN_CAST:      "CAST",
	TOKEN_CROSS:     "CROSS",
	TOKEN_DESC:      "DESC",
	TOKEN_DISTINCT:  "DISTINCT",
	TOKEN_ELSE:      "ELSE",
	TOKEN_END:       "END",
	TOKEN_EXCEPT:    "EXCEPT",
	TOKEN_EXISTS:    "EXISTS",
	TOKEN_EXTRACT:   "EXTRACT",
	TOKEN_FALSE:     "FALSE",
	TOKEN_FETCH:     "FETCH",
	TOKEN_FILTER:    "FILTER",
	TOKEN_FIRST:     "FIRST",
	TOKEN_FROM:      "FROM",
	TOKEN_FULL:      "FULL",
	TOKEN_GROUP:     "GROUP",
	TOKEN_HAVING:    "HAVING",
	TOKEN_ILIKE:     "ILIKE",
	TOKEN_IN:        "IN",
	TOKEN_INNER:     "INNER",
	TOKEN_INTERSECT: "INTERSECT",
	TOKEN_INTERVAL:  "INTERVAL",
	TOKEN_INTO:      "INTO",
	TOKEN_IS:        "IS",
	TOKEN_JOIN:      "JOIN",
	TOKEN_LAST:      "LAST",
	TOKEN_LATERAL:   "LATERAL",
	TOKEN_LEFT:      "LEFT",
	TOKEN_LIKE:      "LIKE",
	TOKEN_LIMIT:     "LIMIT",
	TOKEN_NATURAL:   "NATURAL",
	TOKEN_NOT:       "NOT",
	TOKEN_NULL:      "NULL",
	TOKEN_NULLS:     "NULLS",
	TOKEN_OFFSET:    "OFFSET",
	TOKEN_ON:        "ON",
	TOKEN_ONLY:      "ONLY",
	TOKEN_OR:        "OR",
	TOKEN_ORDER:     "ORDER",
	TOKEN_OUTER:     "OUTER",
	TOKEN_OVER:      "OVER",
	TOKEN_PARTITION: "PARTITION",
	TOKEN_RECURSIVE: "RECURSIVE",
	TOKEN_RIGHT:     "RIGHT",
	TOKEN_ROW:       "ROW",
	TOKEN_ROWS:      "ROWS",
	TOKEN_SELECT:    "SELECT",
	TOKEN_SIMILAR:   "SIMILAR",
	TOKEN_THEN:      "THEN",
	TOKEN_TRUE:      "TRUE",
	TOKEN_UNION:     "UNION",
	TOKEN_USING:     "USING",
	TOKEN_VALUES:    "VALUES",
	TOKEN_WHEN:      "WHEN",
	TOKEN_WHERE:     "WHERE",
	TOKEN_WINDOW:    "WINDOW",
	TOKEN_WITH:      "WITH",
	TOKEN_WITHIN:    "WITHIN",
}

// keywords maps lowercase read-query keywords to their token types.
var keywords = map[string]TokenType{
	"all":       TOKEN_ALL,
	"and":       TOKEN_AND,
	"as":        TOKEN_AS,
	"asc":       TOKEN_ASC,
	"between":   TOKEN_BETWEEN,
	"by":        TOKEN_BY,
	"case":      TOKEN_CASE,
	"cast":      TOKEN_CAST,
	"cross":     TOKEN_CROSS,
	"desc":      TOKEN_DESC,
	"distinct":  TOKEN_DISTINCT,
	"else":      TOKEN_ELSE,
	"end":       TOKEN_END,
	"except":    TOKEN_EXCEPT,
	"exists":    TOKEN_EXISTS,
	"extract":   TOKEN_EXTRACT,
	"false":     TOKEN_FALSE,
	"fetch":     TOKEN_FETCH,
	"filter":    TOKEN_FILTER,
	"first":     TOKEN_FIRST,
	"from":      TOKEN_FROM,
	"full":      TOKEN_FULL,
	"group":     TOKEN_GROUP,
	"having":    TOKEN_HAVING,
	"ilike":     TOKEN_ILIKE,
	"in":        TOKEN_IN,
	"inner":     TOKEN_INNER,
	"intersect": TOKEN_INTERSECT,
	"interval":  TOKEN_INTERVAL,
	"into":      TOKEN_INTO,
	"is":        TOKEN_IS,
	"join":      TOKEN_JOIN,
	"last":      TOKEN_LAST,
	"lateral":   TOKEN_LATERAL,
	"left":      TOKEN_LEFT,
	"like":      TOKEN_LIKE,
	"limit":     TOKEN_LIMIT,
	"natural":   TOKEN_NATURAL,
	"not":       TOKEN_NOT,
	"null":      TOKEN_NULL,
	"nulls":     TOKEN_NULLS,
	"offset":    TOKEN_OFFSET,
	"on":        TOKEN_ON,
	"only":      TOKEN_ONLY,
	"or":        TOKEN_OR,
	"order":     TOKEN_ORDER,
	"outer":     TOKEN_OUTER,
	"over":      TOKEN_OVER,
	"partition": TOKEN_PARTITION,
	"recursive": TOKEN_RECURSIVE,
	"right":     TOKEN_RIGHT,
	"row":       TOKEN_ROW,
	"rows":      TOKEN_ROWS,
	"select":    TOKEN_SELECT,
	"similar":   TOKEN_SIMILAR,
	"then":      TOKEN_THEN,
	"true":      TOKEN_TRUE,
	"union":     TOKEN_UNION,
	"using":     TOKEN_USING,
	"values":    TOKEN_VALUES,
	"when":      TOKEN_WHEN,
	"where":     TOKEN_WHERE,
	"window":    TOKEN_WINDOW,
	"with":      TOKEN_WITH,
	"within":    TOKEN_WITHIN,
}

// forbiddenKeywords are words that can never appear as a standalone token in
// an admitted statement: write verbs, DDL, session/system control, and
// file/bulk primitives. Matching happens after lexing, so occurrences inside
// string literals or comments do not trigger it.
var forbiddenKeywords = map[string]bool{
	"insert": true, "update": true, "delete": true, "drop": true,
	"create": true, "alter": true, "truncate": true, "merge": true,
	"replace": true, "grant": true, "revoke": true,

	"set": true, "reset": true, "show": true, "use": true,
	"begin": true, "commit": true, "rollback": true, "savepoint": true,
	"declare": true, "prepare": true, "execute": true, "exec": true,
	"deallocate": true, "call": true, "do": true,
	"listen": true, "notify": true, "lock": true,
	"vacuum": true, "analyze": true, "analyse": true,
	"cluster": true, "reindex": true, "checkpoint": true, "refresh": true,

	"copy": true, "bulk": true, "import": true, "export": true,
	"outfile": true, "dumpfile": true,
}

// lookupKeyword classifies a lowercase identifier. Forbidden words win over
// everything; otherwise known keywords get their own type and the rest are
// plain identifiers.
func lookupKeyword(ident string) TokenType {
	if forbiddenKeywords[ident] {
		return TOKEN_FORBIDDEN
	}
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TOKEN_IDENT
}

// Token represents a lexical token with its literal value and the byte range
// it occupies in the input. Offsets let the validator splice the original
// text (LIMIT clamping) without reformatting the whole statement.
type Token struct {
	Type    TokenType
	Literal string
	Pos     int // byte offset of the first character
	End     int // byte offset one past the last character
}
