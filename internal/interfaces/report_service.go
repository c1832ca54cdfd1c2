package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/fundlens/internal/models"
)

// ContextBuilder gathers data for one fund and assembles it into the
// bounded prompt context. Collect performs every network call; Assemble is
// pure and deterministic.
type ContextBuilder interface {
	Collect(ctx context.Context, fund models.FundSpec, reportType models.ReportType, date time.Time) (*models.CollectedData, error)
	Assemble(data *models.CollectedData) *models.ReportContext
}

// ReportWriter persists a generated report and returns its path.
type ReportWriter interface {
	Write(result *models.ReportResult, rc *models.ReportContext) (string, error)
}

// ReportDelivery pushes a written report to an external channel.
type ReportDelivery interface {
	Deliver(ctx context.Context, result *models.ReportResult, markdown string) error
}

// FundRegistry is the read-only fund list.
type FundRegistry interface {
	All() []models.FundSpec
	Get(code string) (models.FundSpec, bool)
}
