package api

import (
	"net/http"
	"sort"

	"github.com/bendichter/dandi-sql/internal/catalog"
	"github.com/bendichter/dandi-sql/internal/domain"
	"github.com/bendichter/dandi-sql/internal/jsonquery"
)

// queryResponse is the structured-query result envelope.
type queryResponse struct {
	Success    bool          `json:"success"`
	Results    []domain.Row  `json:"results"`
	Metadata   queryMetadata `json:"metadata"`
	Pagination domain.Page   `json:"pagination"`
}

type queryMetadata struct {
	Count      int64  `json:"count"` // total matches, or rows on this page when no total was requested
	Model      string `json:"model"`
	Complexity int    `json:"query_complexity"`
	SQL        string `json:"sql"`
}

// ExecuteQuery compiles and executes a structured query document. A total
// count costs a second statement, so it only runs with ?include_total=1.
func (h *APIHandler) ExecuteQuery(w http.ResponseWriter, r *http.Request) {
	var spec jsonquery.Spec
	if err := decodeJSON(r, &spec); err != nil {
		writeBadRequest(w, "invalid query document: "+err.Error())
		return
	}
	withTotal := boolParam(r, "include_total")

	res, plan, err := h.query.ExecuteSpec(r.Context(), spec, withTotal)
	if err != nil {
		writeError(w, err)
		return
	}

	rows := res.Rows
	if rows == nil {
		rows = []domain.Row{}
	}
	count := res.Total
	if count < 0 {
		count = int64(len(rows))
	}
	writeJSON(w, http.StatusOK, queryResponse{
		Success: true,
		Results: rows,
		Metadata: queryMetadata{
			Count:      count,
			Model:      plan.Model,
			Complexity: plan.Complexity,
			SQL:        plan.SQL,
		},
		Pagination: res.Page,
	})
}

// queryValidateResponse reports the compilation outcome without executing.
type queryValidateResponse struct {
	Valid      bool   `json:"valid"`
	Kind       string `json:"kind,omitempty"`
	Message    string `json:"message,omitempty"`
	SQL        string `json:"sql,omitempty"`
	Complexity int    `json:"query_complexity,omitempty"`
}

// ValidateQuery compiles a structured query document without touching
// storage. Valid documents come back with the generated SQL and score.
func (h *APIHandler) ValidateQuery(w http.ResponseWriter, r *http.Request) {
	var spec jsonquery.Spec
	if err := decodeJSON(r, &spec); err != nil {
		writeBadRequest(w, "invalid query document: "+err.Error())
		return
	}

	plan, err := h.query.ValidateSpec(spec)
	if err != nil {
		writeJSON(w, http.StatusOK, queryValidateResponse{
			Valid:   false,
			Kind:    string(domain.KindOf(err)),
			Message: err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, queryValidateResponse{
		Valid:      true,
		SQL:        plan.SQL,
		Complexity: plan.Complexity,
	})
}

// modelSchema describes one queryable model for the structured surface.
type modelSchema struct {
	Model         string               `json:"model"`
	Fields        []columnSchema       `json:"fields"`
	Relationships []relationshipSchema `json:"relationships,omitempty"`
}

type relationshipSchema struct {
	Name        string `json:"name"`
	Target      string `json:"target"`
	Cardinality string `json:"cardinality"`
}

// QuerySchema lists queryable models with their fields, relationships, and
// the closed operator and aggregate vocabularies. With ?model= it returns
// one model.
func (h *APIHandler) QuerySchema(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("model"); name != "" {
		entity, err := h.registry.ResolveEntity(name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, h.describeModel(entity.Name))
		return
	}

	models := make([]modelSchema, 0)
	for _, e := range h.registry.Entities() {
		models = append(models, h.describeModel(e.Name))
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Model < models[j].Model })

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"models":     models,
		"operators":  jsonquery.Operators(),
		"aggregates": jsonquery.Aggregates(),
	})
}

func (h *APIHandler) describeModel(name string) modelSchema {
	entity, _ := h.registry.ResolveEntity(name)
	ms := modelSchema{Model: entity.Name}
	for _, c := range entity.Columns {
		ms.Fields = append(ms.Fields, columnSchema{Name: c.Name, Type: string(c.Type), Nullable: c.Nullable})
	}
	for _, rel := range entity.Relationships {
		ms.Relationships = append(ms.Relationships, relationshipSchema{
			Name:        rel.Name,
			Target:      rel.Target,
			Cardinality: string(rel.Cardinality),
		})
	}
	return ms
}

// QueryExamples serves ready-to-run structured query documents.
func (h *APIHandler) QueryExamples(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"examples": catalog.Examples()})
}

func boolParam(r *http.Request, name string) bool {
	switch r.URL.Query().Get(name) {
	case "1", "true", "yes":
		return true
	}
	return false
}
