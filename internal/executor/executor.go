// Package executor runs compiled plans and secured SQL against storage inside
// read-only transactions and shapes the results into pages.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/bendichter/dandi-sql/internal/domain"
)

// DefaultTimeout bounds one statement's execution.
const DefaultTimeout = 30 * time.Second

// Executor is the only component that touches storage. Both query front-ends
// hand it their output; it is agnostic to which one produced the statement.
type Executor struct {
	db      *sql.DB
	timeout time.Duration
	logger  *slog.Logger
}

// New builds an executor over the given pool. A zero timeout falls back to
// DefaultTimeout.
func New(db *sql.DB, timeout time.Duration, logger *slog.Logger) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{db: db, timeout: timeout, logger: logger.With("component", "executor")}
}

// Ping verifies storage connectivity.
func (e *Executor) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

// Run executes a compiled plan and shapes one result page. The statement
// already carries limit+1 rows: the probe row is discarded after setting
// has_next, so no COUNT(*) is needed per page. A total count pass runs only
// when the caller asks for one.
func (e *Executor) Run(ctx context.Context, plan *domain.ExecutionPlan, withTotal bool) (*domain.PageResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, e.classify(ctx, err, "begin transaction")
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, plan.SQL, plan.Args...)
	if err != nil {
		return nil, e.classify(ctx, err, "execute query")
	}
	page, err := scanRows(rows)
	if err != nil {
		return nil, e.classify(ctx, err, "scan rows")
	}

	hasNext := false
	if len(page) > plan.Limit {
		hasNext = true
		page = page[:plan.Limit]
	}

	total := int64(-1)
	totalPages := -1
	if withTotal {
		if err := tx.QueryRowContext(ctx, plan.CountSQL, plan.CountArgs...).Scan(&total); err != nil {
			return nil, e.classify(ctx, err, "count rows")
		}
		totalPages = int((total + int64(plan.PerPage) - 1) / int64(plan.PerPage))
	}

	return &domain.PageResult{
		Rows:    page,
		Columns: plan.Columns,
		Total:   total,
		Page: domain.Page{
			Page:        plan.Page,
			PerPage:     plan.PerPage,
			TotalPages:  totalPages,
			HasPrevious: plan.Page > 1,
			HasNext:     hasNext,
		},
	}, nil
}

// RunSQL executes a secured raw statement. The raw path has no page shape;
// the injected LIMIT is the only row bound.
func (e *Executor) RunSQL(ctx context.Context, securedSQL string) (*domain.SQLResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, e.classify(ctx, err, "begin transaction")
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, securedSQL)
	if err != nil {
		return nil, e.classify(ctx, err, "execute query")
	}
	cols, err := rows.Columns()
	if err != nil {
		return nil, e.classify(ctx, err, "read columns")
	}
	shaped, err := scanRows(rows)
	if err != nil {
		return nil, e.classify(ctx, err, "scan rows")
	}

	return &domain.SQLResult{Rows: shaped, Columns: cols, SQLExecuted: securedSQL}, nil
}

// classify maps a driver failure to the error taxonomy. Timeouts are a
// caller-visible terminal failure, never retried here. Driver messages are
// surfaced as-is; they come from the server and carry no connection secrets.
func (e *Executor) classify(ctx context.Context, err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		e.logger.Warn("query timed out", "op", op, "timeout", e.timeout)
		return domain.NewQueryError(domain.KindExecutionTimeout,
			"query exceeded the execution timeout of %s", e.timeout)
	}
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return domain.NewQueryError(domain.KindExecutionTimeout, "query was canceled")
	}
	e.logger.Error("storage failure", "op", op, "error", err)
	return domain.NewQueryError(domain.KindStorageError, "%s: %v", op, err)
}
