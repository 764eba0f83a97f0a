// Package complexity provides the shared structural cost scoring used by both
// query front-ends before any plan is produced. Scoring is pure and
// deterministic: the same counts always produce the same score.
package complexity

import (
	"github.com/bendichter/dandi-sql/internal/domain"
)

// Weights are the per-feature costs of the linear score.
type Weights struct {
	Join       int
	Filter     int
	Subquery   int
	Annotation int
}

// DefaultWeights reflect relative execution cost: a join or nested subquery
// dominates any number of flat predicates, and aggregation annotations sit in
// between.
func DefaultWeights() Weights {
	return Weights{Join: 10, Filter: 1, Subquery: 15, Annotation: 5}
}

// Limits are the structural ceilings. All ceilings are inclusive: a query at
// exactly the ceiling is admitted.
type Limits struct {
	MaxScore       int
	MaxFilters     int
	MaxAnnotations int
	MaxFields      int
	MaxJoinDepth   int
}

// DefaultLimits returns the stock ceilings.
func DefaultLimits() Limits {
	return Limits{
		MaxScore:       100,
		MaxFilters:     50,
		MaxAnnotations: 20,
		MaxFields:      40,
		MaxJoinDepth:   5,
	}
}

// Counts are the structural features tallied from one query. JoinDepth is the
// longest single relationship path; Joins is the number of distinct joins the
// compiled statement will contain.
type Counts struct {
	Joins         int
	JoinDepth     int
	Filters       int
	SubqueryDepth int
	Annotations   int
	Fields        int
}

// Scorer scores and bounds query structure. Zero-cost to share: it holds only
// immutable configuration.
type Scorer struct {
	weights Weights
	limits  Limits
}

// NewScorer builds a scorer with the given weights and ceilings.
func NewScorer(w Weights, l Limits) *Scorer {
	return &Scorer{weights: w, limits: l}
}

// NewDefaultScorer builds a scorer with stock weights and ceilings.
func NewDefaultScorer() *Scorer {
	return NewScorer(DefaultWeights(), DefaultLimits())
}

// Limits returns the configured ceilings.
func (s *Scorer) Limits() Limits { return s.limits }

// Score computes the linear cost of the given counts.
func (s *Scorer) Score(c Counts) int {
	return c.Joins*s.weights.Join +
		c.Filters*s.weights.Filter +
		c.SubqueryDepth*s.weights.Subquery +
		c.Annotations*s.weights.Annotation
}

// Check enforces every ceiling against the given counts, first failure wins.
// Per-feature ceilings are checked before the aggregate score so the message
// names the most specific limit the caller blew through.
func (s *Scorer) Check(c Counts) error {
	if s.limits.MaxJoinDepth > 0 && c.JoinDepth > s.limits.MaxJoinDepth {
		return domain.NewQueryError(domain.KindJoinTooDeep,
			"join depth %d exceeds the maximum of %d", c.JoinDepth, s.limits.MaxJoinDepth)
	}
	if s.limits.MaxFilters > 0 && c.Filters > s.limits.MaxFilters {
		return domain.NewQueryError(domain.KindQueryTooComplex,
			"filter count %d exceeds the maximum of %d", c.Filters, s.limits.MaxFilters)
	}
	if s.limits.MaxAnnotations > 0 && c.Annotations > s.limits.MaxAnnotations {
		return domain.NewQueryError(domain.KindQueryTooComplex,
			"annotation count %d exceeds the maximum of %d", c.Annotations, s.limits.MaxAnnotations)
	}
	if s.limits.MaxFields > 0 && c.Fields > s.limits.MaxFields {
		return domain.NewQueryError(domain.KindQueryTooComplex,
			"field count %d exceeds the maximum of %d", c.Fields, s.limits.MaxFields)
	}
	if score := s.Score(c); s.limits.MaxScore > 0 && score > s.limits.MaxScore {
		return domain.NewQueryError(domain.KindQueryTooComplex,
			"complexity score %d exceeds the maximum of %d", score, s.limits.MaxScore)
	}
	return nil
}
