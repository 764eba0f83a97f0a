package catalog

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/bendichter/dandi-sql/internal/complexity"
	"github.com/bendichter/dandi-sql/internal/executor"
	"github.com/bendichter/dandi-sql/internal/jsonquery"
	"github.com/bendichter/dandi-sql/internal/schema"
	"github.com/bendichter/dandi-sql/internal/service"
	"github.com/bendichter/dandi-sql/internal/sqlguard"
)

func newTestCatalog(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := schema.Default()
	scorer := complexity.NewDefaultScorer()
	queries := service.New(
		sqlguard.NewValidator(reg, scorer, sqlguard.DefaultConfig()),
		jsonquery.NewCompiler(reg, scorer, jsonquery.DefaultConfig()),
		executor.New(db, time.Second, logger),
		logger,
	)
	return New(queries), mock
}

func TestBrowseRunsOnePageQueryAndCount(t *testing.T) {
	svc, mock := newTestCatalog(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`^SELECT .+ FROM dandisets_dandiset AS t0 WHERE .+ ORDER BY t0\.date_created DESC, t0\.id ASC LIMIT 21 OFFSET 20$`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "Mouse A"))
	mock.ExpectQuery(`^SELECT COUNT\(\*\) FROM dandisets_dandiset AS t0`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(55))
	mock.ExpectRollback()

	res, err := svc.Browse(context.Background(), "mouse", 2, 20)
	if err != nil {
		t.Fatalf("browse: %v", err)
	}
	if res.Total != 55 {
		t.Errorf("total = %d, want 55", res.Total)
	}
	if res.Page.Page != 2 || !res.Page.HasPrevious {
		t.Errorf("page meta = %+v", res.Page)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestExamplesAllCompile(t *testing.T) {
	c := jsonquery.NewCompiler(schema.Default(), complexity.NewDefaultScorer(), jsonquery.DefaultConfig())
	for _, ex := range Examples() {
		if _, err := c.Compile(ex.Spec); err != nil {
			t.Errorf("example %q does not compile: %v", ex.Name, err)
		}
	}
}
