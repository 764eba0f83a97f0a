// Package jsonquery validates structured query documents and compiles them to
// parameterized SQL execution plans. The structured path never accepts raw
// SQL from the caller: every identifier resolves through the schema registry
// and every value travels as a bind parameter.
package jsonquery

import "strings"

// Spec is the caller-supplied structured query document.
//
// Field paths traverse relationships with either dots or Django-style double
// underscores ("participants.species.name" and "participants__species__name"
// are equivalent). Filter keys may end in an operator suffix
// ("name__icontains"); a key without a suffix means exact match.
type Spec struct {
	Model       string                 `json:"model"`
	Fields      []string               `json:"fields,omitempty"`
	Filters     map[string]interface{} `json:"filters,omitempty"`
	Annotations map[string]Annotation  `json:"annotations,omitempty"`
	OrderBy     []string               `json:"order_by,omitempty"`
	Limit       *int                   `json:"limit,omitempty"`
	Offset      *int                   `json:"offset,omitempty"`
	Page        *int                   `json:"page,omitempty"`
	PageSize    *int                   `json:"page_size,omitempty"`
	Distinct    bool                   `json:"distinct,omitempty"`
}

// Annotation is a named aggregate over a field path, optionally restricted by
// its own filter set (compiled to a FILTER (WHERE ...) clause).
type Annotation struct {
	Function string                 `json:"function"`
	Field    string                 `json:"field,omitempty"`
	Filter   map[string]interface{} `json:"filter,omitempty"`
}

// normalizePath converts double-underscore traversal to dotted form.
func normalizePath(p string) string {
	return strings.ReplaceAll(p, "__", ".")
}
