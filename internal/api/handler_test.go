package api

import (
	"database/sql"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"

	"github.com/bendichter/dandi-sql/internal/catalog"
	"github.com/bendichter/dandi-sql/internal/complexity"
	"github.com/bendichter/dandi-sql/internal/executor"
	"github.com/bendichter/dandi-sql/internal/jsonquery"
	"github.com/bendichter/dandi-sql/internal/schema"
	"github.com/bendichter/dandi-sql/internal/service"
	"github.com/bendichter/dandi-sql/internal/sqlguard"
)

// newTestServer wires the full stack over a mocked database with exact SQL
// matching.
func newTestServer(t *testing.T) (chi.Router, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	return buildServer(t, db, mock), mock
}

// newRegexpTestServer uses sqlmock's default regexp matcher for tests that
// only assert on fragments of the generated SQL.
func newRegexpTestServer(t *testing.T) (chi.Router, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	return buildServer(t, db, mock), mock
}

func buildServer(t *testing.T, db *sql.DB, mock sqlmock.Sqlmock) chi.Router {
	t.Helper()
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
	h := NewHandler(queries, catalog.New(queries), reg, logger)
	return h.Routes()
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}
