package api

import (
	"net/http"
	"strconv"

	"github.com/bendichter/dandi-sql/internal/domain"
)

// datasetsResponse is the browse envelope. Browsing always carries a total
// so clients can render page controls.
type datasetsResponse struct {
	Success    bool         `json:"success"`
	Results    []domain.Row `json:"results"`
	Total      int64        `json:"total"`
	Pagination domain.Page  `json:"pagination"`
}

// ListDatasets serves the dataset browse endpoint: latest dataset versions,
// newest first, optionally filtered by ?search= against the name.
func (h *APIHandler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := intParam(q.Get("page"), 1)
	pageSize := intParam(q.Get("page_size"), 20)

	res, err := h.datasets.Browse(r.Context(), q.Get("search"), page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}

	rows := res.Rows
	if rows == nil {
		rows = []domain.Row{}
	}
	writeJSON(w, http.StatusOK, datasetsResponse{
		Success:    true,
		Results:    rows,
		Total:      res.Total,
		Pagination: res.Page,
	})
}

func intParam(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}
