package imaging

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, img *MedicalImage) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalImage, error)
	GetByImageID(ctx context.Context, imageID string) (*MedicalImage, error)
	Update(ctx context.Context, img *MedicalImage) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*MedicalImage, int, error)
}

// MetadataRepository persists the 1:1 acquisition metadata of an image.
type MetadataRepository interface {
	Upsert(ctx context.Context, meta *ImageMetadata) error
	GetByImageID(ctx context.Context, imageID uuid.UUID) (*ImageMetadata, error)
}
