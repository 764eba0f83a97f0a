package api

import (
	"net/http"

	"github.com/bendichter/dandi-sql/internal/domain"
)

// sqlRequest is the body for both raw-SQL endpoints.
type sqlRequest struct {
	SQL string `json:"sql"`
}

// sqlValidateResponse mirrors domain.Verdict. Rejections are a normal
// outcome of validation, so they come back as 200 with valid=false; only a
// malformed envelope is an HTTP error.
type sqlValidateResponse struct {
	Valid      bool   `json:"valid"`
	Kind       string `json:"kind,omitempty"`
	Message    string `json:"message,omitempty"`
	SecuredSQL string `json:"secured_sql,omitempty"`
}

// ValidateSQL runs the admission pipeline without touching storage.
func (h *APIHandler) ValidateSQL(w http.ResponseWriter, r *http.Request) {
	var req sqlRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body: expected {\"sql\": \"...\"}")
		return
	}

	verdict, err := h.query.ValidateSQL(req.SQL)
	if err != nil {
		writeJSON(w, http.StatusOK, sqlValidateResponse{
			Valid:   false,
			Kind:    string(domain.KindOf(err)),
			Message: err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, sqlValidateResponse{
		Valid:      true,
		Message:    verdict.Message,
		SecuredSQL: verdict.SecuredSQL,
	})
}

// sqlExecuteResponse is the raw-SQL result envelope.
type sqlExecuteResponse struct {
	Success  bool         `json:"success"`
	Results  []domain.Row `json:"results"`
	Metadata sqlMetadata  `json:"metadata"`
}

type sqlMetadata struct {
	RowCount    int      `json:"row_count"`
	ColumnCount int      `json:"column_count"`
	Columns     []string `json:"columns"`
	SQLExecuted string   `json:"sql_executed"`
}

// ExecuteSQL validates and executes a raw SQL query. The executed statement
// is echoed back so callers can see the injected or clamped LIMIT.
func (h *APIHandler) ExecuteSQL(w http.ResponseWriter, r *http.Request) {
	var req sqlRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body: expected {\"sql\": \"...\"}")
		return
	}

	res, err := h.query.ExecuteSQL(r.Context(), req.SQL)
	if err != nil {
		writeError(w, err)
		return
	}

	rows := res.Rows
	if rows == nil {
		rows = []domain.Row{}
	}
	writeJSON(w, http.StatusOK, sqlExecuteResponse{
		Success: true,
		Results: rows,
		Metadata: sqlMetadata{
			RowCount:    len(rows),
			ColumnCount: len(res.Columns),
			Columns:     res.Columns,
			SQLExecuted: res.SQLExecuted,
		},
	})
}

// tableSchema describes one whitelisted table for the raw-SQL surface.
type tableSchema struct {
	Table   string         `json:"table"`
	Model   string         `json:"model,omitempty"`
	Columns []columnSchema `json:"columns,omitempty"`
}

type columnSchema struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// SQLSchema lists the whitelisted tables. With ?table= it returns column
// detail for one table; with ?full=1 it returns column detail for all of
// them. Join tables have no entity and list no columns.
func (h *APIHandler) SQLSchema(w http.ResponseWriter, r *http.Request) {
	if table := r.URL.Query().Get("table"); table != "" {
		if !h.registry.IsTableAllowed(table) {
			writeBadRequest(w, "unknown or unauthorized table "+table)
			return
		}
		writeJSON(w, http.StatusOK, h.describeTable(table))
		return
	}
	full := boolParam(r, "full")

	tables := make([]tableSchema, 0)
	for _, t := range h.registry.AllowedTables() {
		if full {
			tables = append(tables, h.describeTable(t))
			continue
		}
		ts := tableSchema{Table: t}
		if e, ok := h.registry.EntityForTable(t); ok {
			ts.Model = e.Name
		}
		tables = append(tables, ts)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tables": tables})
}

func (h *APIHandler) describeTable(table string) tableSchema {
	ts := tableSchema{Table: table}
	e, ok := h.registry.EntityForTable(table)
	if !ok {
		return ts
	}
	ts.Model = e.Name
	for _, c := range e.Columns {
		ts.Columns = append(ts.Columns, columnSchema{Name: c.Name, Type: string(c.Type), Nullable: c.Nullable})
	}
	return ts
}
