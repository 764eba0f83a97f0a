package domain

// Verdict is the result of validating a raw SQL string or a structured query
// spec. Created per request, never persisted.
type Verdict struct {
	Valid      bool   `json:"valid"`
	Message    string `json:"message,omitempty"`
	SecuredSQL string `json:"secured_sql,omitempty"`
}

// ColumnMeta describes one output column of a query result.
type ColumnMeta struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Row is one result row keyed by output column name. Values are
// JSON-serializable scalars or raw JSON documents.
type Row map[string]interface{}

// ExecutionPlan is the compiled, safe operation derived from an admitted
// structured query. It exists only for the duration of one request.
//
// SQL carries a row cap of Limit+1 baked in: the executor uses the probe row
// to compute has_next and discards it. CountSQL reuses the same predicates
// with no ordering or pagination and is only run when the caller explicitly
// requests a total.
type ExecutionPlan struct {
	Model      string
	SQL        string
	Args       []interface{}
	CountSQL   string
	CountArgs  []interface{}
	Columns    []ColumnMeta
	Limit      int
	Offset     int
	Page       int
	PerPage    int
	Complexity int
}

// Page holds pagination metadata for one result page.
type Page struct {
	Page        int  `json:"page"`
	PerPage     int  `json:"per_page"`
	TotalPages  int  `json:"total_pages"` // -1 when no total count was requested
	HasPrevious bool `json:"has_previous"`
	HasNext     bool `json:"has_next"`
}

// PageResult is the shaped output of one executed query.
type PageResult struct {
	Rows    []Row
	Columns []ColumnMeta
	Total   int64 // -1 when no total count was requested
	Page    Page
}

// SQLResult is the shaped output of a raw-SQL execution. The raw path has no
// page structure; it returns whatever the secured statement produced, capped
// by the injected LIMIT.
type SQLResult struct {
	Rows        []Row
	Columns     []string
	SQLExecuted string
}
