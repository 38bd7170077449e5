package prediction

import (
	"context"

	"github.com/google/uuid"

	"github.com/medivision/medivision/internal/platform/apperr"
)

// ImageResolver confirms the referenced image exists. The imaging service
// implements it.
type ImageResolver interface {
	ImageExists(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	repo   Repository
	boxes  BoundingBoxRepository
	images ImageResolver
}

func NewService(repo Repository, boxes BoundingBoxRepository, images ImageResolver) *Service {
	return &Service{repo: repo, boxes: boxes, images: images}
}

// Create stores a prediction and its bounding boxes. All boxes are validated
// before anything is written.
func (s *Service) Create(ctx context.Context, p *AIPrediction) error {
	if p.ImageID == uuid.Nil {
		return apperr.Validation("image_id is required")
	}
	if p.ModelName == "" || p.ModelVersion == "" {
		return apperr.Validation("model_name and model_version are required")
	}
	if p.PredictionClass == "" {
		return apperr.Validation("prediction_class is required")
	}
	if p.ConfidenceScore < 0 || p.ConfidenceScore > 1 {
		return apperr.Validation("confidence_score must be in [0,1], got %g", p.ConfidenceScore)
	}
	for _, b := range p.BoundingBoxes {
		if err := b.Validate(); err != nil {
			return err
		}
	}

	if err := s.images.ImageExists(ctx, p.ImageID); err != nil {
		return err
	}

	p.ReviewStatus = ReviewPending
	if err := s.repo.Create(ctx, p); err != nil {
		return err
	}

	for _, b := range p.BoundingBoxes {
		b.PredictionID = p.ID
	}
	if len(p.BoundingBoxes) > 0 {
		if err := s.boxes.CreateBatch(ctx, p.BoundingBoxes); err != nil {
			return err
		}
	}
	return nil
}

// Get returns a prediction with its bounding boxes attached.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*AIPrediction, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	boxes, err := s.boxes.ListByPrediction(ctx, id)
	if err != nil {
		return nil, err
	}
	p.BoundingBoxes = boxes
	return p, nil
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*AIPrediction, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}

// ApplyReview settles a pending prediction. Called by the review workflow
// when a physician files their verdict.
func (s *Service) ApplyReview(ctx context.Context, id uuid.UUID, approved bool) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	target := ReviewApproved
	if !approved {
		target = ReviewRejected
	}
	if err := ValidateReviewTransition(p.ReviewStatus, target); err != nil {
		return err
	}
	return s.repo.UpdateReviewStatus(ctx, id, target)
}

// PredictionExists reports whether the prediction is known.
func (s *Service) PredictionExists(ctx context.Context, id uuid.UUID) error {
	_, err := s.repo.GetByID(ctx, id)
	return err
}
