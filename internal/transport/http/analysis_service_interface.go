package http

import (
	"context"
	"io"

	"ferroci/internal/plot"
	"ferroci/internal/services"
	"ferroci/pkg/contracts/domain"
)

// AnalysisServiceInterface defines the analysis operations the handlers use
type AnalysisServiceInterface interface {
	Drop(ctx context.Context, paths []string) (*domain.DropReport, error)
	Upload(ctx context.Context, dir string, files []services.UploadedFile) (*domain.DropReport, error)
	Session(ctx context.Context, dir string) (domain.SessionInfo, error)
	Sessions() []domain.SessionInfo
	Results(ctx context.Context, dir string) (domain.ResultsView, error)
	Plot(ctx context.Context, dir string, format plot.Format, w io.Writer) error
	Metrics() []domain.MetricInfo
}
