// Package service orchestrates the two query front-ends: validate, compile,
// execute, and audit-log every request.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/bendichter/dandi-sql/internal/domain"
	"github.com/bendichter/dandi-sql/internal/executor"
	"github.com/bendichter/dandi-sql/internal/jsonquery"
	"github.com/bendichter/dandi-sql/internal/sqlguard"
)

// QueryService ties the validator, compiler, and executor together. Handlers
// call it; it owns audit logging so every entry has the same shape.
type QueryService struct {
	validator *sqlguard.Validator
	compiler  *jsonquery.Compiler
	exec      *executor.Executor
	logger    *slog.Logger
}

// New builds the service.
func New(v *sqlguard.Validator, c *jsonquery.Compiler, e *executor.Executor, logger *slog.Logger) *QueryService {
	return &QueryService{
		validator: v,
		compiler:  c,
		exec:      e,
		logger:    logger.With("component", "query"),
	}
}

// ValidateSQL runs the admission pipeline without any storage round trip.
func (s *QueryService) ValidateSQL(sql string) (domain.Verdict, error) {
	verdict, err := s.validator.Validate(sql)
	s.audit("sql_validate", err, nil)
	return verdict, err
}

// ExecuteSQL validates and, if admitted, executes raw SQL. A rejected
// statement never reaches storage.
func (s *QueryService) ExecuteSQL(ctx context.Context, sql string) (*domain.SQLResult, error) {
	verdict, err := s.validator.Validate(sql)
	if err != nil {
		s.audit("sql_execute", err, nil)
		return nil, err
	}

	start := time.Now()
	res, err := s.exec.RunSQL(ctx, verdict.SecuredSQL)
	s.audit("sql_execute", err, map[string]any{"duration": time.Since(start)})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ValidateSpec compiles a structured query without executing it. The
// returned plan carries the SQL and complexity score for the verdict body.
func (s *QueryService) ValidateSpec(spec jsonquery.Spec) (*domain.ExecutionPlan, error) {
	plan, err := s.compiler.Compile(spec)
	s.audit("query_validate", err, nil)
	return plan, err
}

// ExecuteSpec compiles and executes a structured query. An invalid spec
// never reaches storage.
func (s *QueryService) ExecuteSpec(ctx context.Context, spec jsonquery.Spec, withTotal bool) (*domain.PageResult, *domain.ExecutionPlan, error) {
	plan, err := s.compiler.Compile(spec)
	if err != nil {
		s.audit("query_execute", err, map[string]any{"model": spec.Model})
		return nil, nil, err
	}

	start := time.Now()
	res, err := s.exec.Run(ctx, plan, withTotal)
	s.audit("query_execute", err, map[string]any{
		"model":      plan.Model,
		"complexity": plan.Complexity,
		"duration":   time.Since(start),
	})
	if err != nil {
		return nil, nil, err
	}
	return res, plan, nil
}

// Ping reports storage health.
func (s *QueryService) Ping(ctx context.Context) error {
	return s.exec.Ping(ctx)
}

// audit writes one structured log line per request. Statements and values
// are deliberately not logged; kind and timing are enough to trace abuse
// without retaining caller data.
func (s *QueryService) audit(op string, err error, extra map[string]any) {
	attrs := []any{"op", op, "admitted", err == nil}
	if err != nil {
		attrs = append(attrs, "kind", string(domain.KindOf(err)))
	}
	for k, v := range extra {
		attrs = append(attrs, k, v)
	}
	if err != nil && domain.IsExecutionError(err) {
		s.logger.Error("query failed", attrs...)
		return
	}
	s.logger.Info("query handled", attrs...)
}
