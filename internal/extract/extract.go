package extract

import (
	"context"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/printmate/order-service/internal/models/errs"
	"github.com/printmate/order-service/pkg/logger"
)

// Extractor counts billable units in an uploaded artifact.
type Extractor interface {
	CountUnits(ctx context.Context, path string) (int, error)
}

// PDF counts pages in PDF artifacts.
type PDF struct {
	logger logger.Logger
}

func NewPDF(logger logger.Logger) *PDF {
	return &PDF{logger: logger}
}

var _ Extractor = (*PDF)(nil)

// CountUnits returns the page count of the PDF at path.
// An artifact that cannot be parsed must be rejected before any
// payment request is issued.
func (p *PDF) CountUnits(_ context.Context, path string) (int, error) {
	count, err := api.PageCountFile(path)
	if err != nil {
		p.logger.Infof("page count failed for %q: %s", path, err)
		return 0, fmt.Errorf("%w: %s", errs.ErrUnprocessableArtifact, err)
	}

	if count <= 0 {
		return 0, fmt.Errorf("%w: empty document", errs.ErrUnprocessableArtifact)
	}

	return count, nil
}
