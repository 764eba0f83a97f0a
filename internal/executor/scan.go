package executor

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/bendichter/dandi-sql/internal/domain"
)

// scanRows drains a result set into serializable rows keyed by output column
// name.
func scanRows(rows *sql.Rows) ([]domain.Row, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]domain.Row, 0, 16)
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(domain.Row, len(cols))
		for i, col := range cols {
			row[col] = convertValue(values[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// convertValue turns driver values into JSON-friendly ones: byte slices
// become strings (or decoded documents when they hold JSON), timestamps
// become RFC 3339 strings in UTC.
func convertValue(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case []byte:
		if len(t) > 0 && (t[0] == '{' || t[0] == '[') {
			var doc interface{}
			if err := json.Unmarshal(t, &doc); err == nil {
				return doc
			}
		}
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return v
	}
}
