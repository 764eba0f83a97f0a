package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/bendichter/dandi-sql/internal/domain"
)

func newTestExecutor(t *testing.T) (*Executor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(db, time.Second, logger), mock
}

func testPlan() *domain.ExecutionPlan {
	return &domain.ExecutionPlan{
		Model:     "dandiset",
		SQL:       `SELECT t0.id AS "id", t0.name AS "name" FROM dandisets_dandiset AS t0 ORDER BY t0.id ASC LIMIT 3 OFFSET 0`,
		CountSQL:  `SELECT COUNT(*) FROM dandisets_dandiset AS t0`,
		Columns:   []domain.ColumnMeta{{Name: "id", Type: "integer"}, {Name: "name", Type: "text"}},
		Limit:     2,
		Page:      1,
		PerPage:   2,
	}
}

func TestRunProbeRowSetsHasNext(t *testing.T) {
	e, mock := newTestExecutor(t)
	plan := testPlan()

	mock.ExpectBegin()
	mock.ExpectQuery(plan.SQL).WillReturnRows(
		sqlmock.NewRows([]string{"id", "name"}).
			AddRow(1, "Mouse A").
			AddRow(2, "Rat B").
			AddRow(3, "Mouse C"))
	mock.ExpectRollback()

	res, err := e.Run(context.Background(), plan, false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("probe row must be discarded: got %d rows", len(res.Rows))
	}
	if !res.Page.HasNext {
		t.Error("has_next should be true when the probe row came back")
	}
	if res.Page.HasPrevious {
		t.Error("page 1 has no previous page")
	}
	if res.Total != -1 {
		t.Errorf("total should be -1 without a count pass, got %d", res.Total)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRunExactPageHasNoNext(t *testing.T) {
	e, mock := newTestExecutor(t)
	plan := testPlan()

	mock.ExpectBegin()
	mock.ExpectQuery(plan.SQL).WillReturnRows(
		sqlmock.NewRows([]string{"id", "name"}).
			AddRow(1, "Mouse A").
			AddRow(2, "Rat B"))
	mock.ExpectRollback()

	res, err := e.Run(context.Background(), plan, false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Rows) != 2 || res.Page.HasNext {
		t.Errorf("exactly limit rows means no next page: rows=%d has_next=%v", len(res.Rows), res.Page.HasNext)
	}
}

func TestRunWithTotalCount(t *testing.T) {
	e, mock := newTestExecutor(t)
	plan := testPlan()

	mock.ExpectBegin()
	mock.ExpectQuery(plan.SQL).WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "Mouse A"))
	mock.ExpectQuery(plan.CountSQL).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(41))
	mock.ExpectRollback()

	res, err := e.Run(context.Background(), plan, true)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Total != 41 {
		t.Errorf("total = %d, want 41", res.Total)
	}
	if res.Page.TotalPages != 21 {
		t.Errorf("total_pages = %d, want 21", res.Page.TotalPages)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRunTimeoutMapsToExecutionTimeout(t *testing.T) {
	e, mock := newTestExecutor(t)
	plan := testPlan()

	mock.ExpectBegin()
	mock.ExpectQuery(plan.SQL).WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	_, err := e.Run(context.Background(), plan, false)
	if domain.KindOf(err) != domain.KindExecutionTimeout {
		t.Fatalf("expected ExecutionTimeout, got %v", err)
	}
}

func TestRunDriverErrorMapsToStorageError(t *testing.T) {
	e, mock := newTestExecutor(t)
	plan := testPlan()

	mock.ExpectBegin()
	mock.ExpectQuery(plan.SQL).WillReturnError(errors.New(`pq: relation "dandisets_dandiset" does not exist`))
	mock.ExpectRollback()

	_, err := e.Run(context.Background(), plan, false)
	if domain.KindOf(err) != domain.KindStorageError {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if domain.IsExecutionError(err) != true {
		t.Error("storage errors are execution errors")
	}
}

func TestRunSQLShapesResult(t *testing.T) {
	e, mock := newTestExecutor(t)
	secured := "SELECT id, name, keywords FROM dandisets_dandiset LIMIT 1000"

	mock.ExpectBegin()
	mock.ExpectQuery(secured).WillReturnRows(
		sqlmock.NewRows([]string{"id", "name", "keywords"}).
			AddRow(7, []byte("Electrophysiology"), []byte(`["mouse","cortex"]`)))
	mock.ExpectRollback()

	res, err := e.RunSQL(context.Background(), secured)
	if err != nil {
		t.Fatalf("run sql: %v", err)
	}
	if res.SQLExecuted != secured {
		t.Errorf("sql_executed = %q", res.SQLExecuted)
	}
	if len(res.Columns) != 3 || res.Columns[1] != "name" {
		t.Errorf("columns = %v", res.Columns)
	}
	row := res.Rows[0]
	if row["name"] != "Electrophysiology" {
		t.Errorf("byte values should become strings, got %#v", row["name"])
	}
	kw, ok := row["keywords"].([]interface{})
	if !ok || len(kw) != 2 || kw[0] != "mouse" {
		t.Errorf("JSON documents should decode, got %#v", row["keywords"])
	}
}

func TestConvertValue(t *testing.T) {
	ts := time.Date(2023, 6, 29, 19, 55, 0, 0, time.UTC)
	tests := []struct {
		in   interface{}
		want interface{}
	}{
		{nil, nil},
		{[]byte("plain"), "plain"},
		{[]byte(`{"a":1}`), map[string]interface{}{"a": float64(1)}},
		{[]byte("{not json"), "{not json"},
		{int64(5), int64(5)},
		{ts, "2023-06-29T19:55:00Z"},
	}
	for _, tc := range tests {
		got := convertValue(tc.in)
		switch want := tc.want.(type) {
		case map[string]interface{}:
			m, ok := got.(map[string]interface{})
			if !ok || m["a"] != want["a"] {
				t.Errorf("convertValue(%v) = %#v, want %#v", tc.in, got, want)
			}
		default:
			if got != tc.want {
				t.Errorf("convertValue(%v) = %#v, want %#v", tc.in, got, tc.want)
			}
		}
	}
}
