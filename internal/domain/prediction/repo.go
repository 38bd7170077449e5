package prediction

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *AIPrediction) error
	GetByID(ctx context.Context, id uuid.UUID) (*AIPrediction, error)
	UpdateReviewStatus(ctx context.Context, id uuid.UUID, status string) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*AIPrediction, int, error)
}

// BoundingBoxRepository persists prediction regions. Boxes are write-once.
type BoundingBoxRepository interface {
	CreateBatch(ctx context.Context, boxes []*BoundingBox) error
	ListByPrediction(ctx context.Context, predictionID uuid.UUID) ([]*BoundingBox, error)
}
