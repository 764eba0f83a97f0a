// Package catalog provides the dataset browse surface: canned structured
// queries over the same pipeline the public query endpoints use, so browsing
// obeys every admission and pagination rule automatically.
package catalog

import (
	"context"

	"github.com/bendichter/dandi-sql/internal/domain"
	"github.com/bendichter/dandi-sql/internal/jsonquery"
	"github.com/bendichter/dandi-sql/internal/service"
)

// browseFields is the column set the dataset listing returns.
var browseFields = []string{
	"id", "dandi_id", "base_id", "name", "description",
	"date_created", "date_published", "is_draft",
}

// Service serves dataset browsing and the example-query listing.
type Service struct {
	queries *service.QueryService
}

// New builds the catalog service on top of the query pipeline.
func New(queries *service.QueryService) *Service {
	return &Service{queries: queries}
}

// Browse lists the latest version of each dataset, optionally filtered by a
// case-insensitive name search, newest first. Page numbers start at 1.
func (s *Service) Browse(ctx context.Context, search string, page, pageSize int) (*domain.PageResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	spec := jsonquery.Spec{
		Model:    "dandiset",
		Fields:   browseFields,
		Filters:  map[string]interface{}{"is_latest": true},
		OrderBy:  []string{"-date_created"},
		Page:     &page,
		PageSize: &pageSize,
	}
	if search != "" {
		spec.Filters["name__icontains"] = search
	}
	res, _, err := s.queries.ExecuteSpec(ctx, spec, true)
	return res, err
}

// Example is one canned structured query served to callers learning the
// query interface.
type Example struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Spec        jsonquery.Spec `json:"spec"`
}

func intp(n int) *int { return &n }

// Examples returns ready-to-run specs covering filters, traversal,
// annotations, and pagination.
func Examples() []Example {
	return []Example{
		{
			Name:        "search datasets by name",
			Description: "Latest dataset versions whose title mentions a search term.",
			Spec: jsonquery.Spec{
				Model:   "dandiset",
				Fields:  []string{"dandi_id", "name", "date_published"},
				Filters: map[string]interface{}{"name__icontains": "mouse", "is_latest": true},
				OrderBy: []string{"-date_published"},
				Limit:   intp(10),
			},
		},
		{
			Name:        "large NWB files",
			Description: "Assets in NWB format over one gigabyte, largest first.",
			Spec: jsonquery.Spec{
				Model:  "asset",
				Fields: []string{"dandi_asset_id", "content_size", "encoding_format"},
				Filters: map[string]interface{}{
					"encoding_format":  "application/x-nwb",
					"content_size__gt": 1_000_000_000,
				},
				OrderBy: []string{"-content_size"},
				Limit:   intp(25),
			},
		},
		{
			Name:        "datasets by species",
			Description: "Datasets containing data from a given species, traversing assets to participants.",
			Spec: jsonquery.Spec{
				Model:    "dandiset",
				Fields:   []string{"dandi_id", "name"},
				Filters:  map[string]interface{}{"assets__participants__species__name__icontains": "musculus"},
				Distinct: true,
				Limit:    intp(20),
			},
		},
		{
			Name:        "asset counts per dataset",
			Description: "Each dataset with its total and NWB-only asset counts.",
			Spec: jsonquery.Spec{
				Model:  "dandiset",
				Fields: []string{"dandi_id", "name"},
				Annotations: map[string]jsonquery.Annotation{
					"asset_count": {Function: "count", Field: "assets.id"},
					"nwb_count": {
						Function: "count",
						Field:    "assets.id",
						Filter:   map[string]interface{}{"assets__encoding_format": "application/x-nwb"},
					},
				},
				OrderBy: []string{"-asset_count"},
				Limit:   intp(10),
			},
		},
		{
			Name:        "paged participants",
			Description: "Participants with species and sex, using page-style pagination.",
			Spec: jsonquery.Spec{
				Model:    "participant",
				Fields:   []string{"identifier", "species.name", "sex.name"},
				Page:     intp(1),
				PageSize: intp(50),
			},
		},
	}
}
