package http

import (
	"context"
	"io"

	apiv1 "udisecli/pkg/contracts/api/v1"
	"udisecli/pkg/contracts/domain"
)

// DashboardServiceInterface defines the dataset operations the dashboard
// handler depends on
type DashboardServiceInterface interface {
	Summary(ctx context.Context) (domain.DatasetSummary, error)
	Catalog(ctx context.Context) ([]domain.CatalogEntry, error)
	Sources(ctx context.Context) ([]domain.SourceInfo, error)
	Reload(ctx context.Context, force bool) (domain.DatasetSummary, error)
	Query(ctx context.Context, req *apiv1.QueryRequest) (*domain.QueryResult, error)
	Export(ctx context.Context, state domain.FilterState, w io.Writer) (int, error)
	ExportFilename(requested string) string
}
