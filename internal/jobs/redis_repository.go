package jobs

import (
	"context"

	"github.com/amankumarsingh77/batch-image-compressor/internal/models"
)

// EventPublisher broadcasts job progress to external listeners. Publishing is
// best effort; the registry stays the source of truth.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *models.JobEvent) error
}
