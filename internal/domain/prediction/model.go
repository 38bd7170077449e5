package prediction

import (
	"time"

	"github.com/google/uuid"

	"github.com/medivision/medivision/internal/platform/apperr"
)

// Review lifecycle of a prediction. A prediction starts pending and is
// settled exactly once by a physician review.
const (
	ReviewPending  = "pending"
	ReviewApproved = "approved"
	ReviewRejected = "rejected"
)

var reviewTransitions = map[string][]string{
	ReviewPending:  {ReviewApproved, ReviewRejected},
	ReviewApproved: {},
	ReviewRejected: {},
}

// ValidateReviewTransition checks whether a review status change is allowed.
func ValidateReviewTransition(from, to string) error {
	allowed, ok := reviewTransitions[from]
	if !ok {
		return apperr.Validation("unknown review status: %s", from)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return apperr.Validation("invalid review status transition from %s to %s", from, to)
}

// AIPrediction maps to the ai_predictions table.
type AIPrediction struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	ImageID         uuid.UUID      `db:"image_id" json:"image_id"`
	ModelName       string         `db:"model_name" json:"model_name"`
	ModelVersion    string         `db:"model_version" json:"model_version"`
	ModelType       *string        `db:"model_type" json:"model_type,omitempty"`
	PredictionClass string         `db:"prediction_class" json:"prediction_class"`
	ConfidenceScore float64        `db:"confidence_score" json:"confidence_score"`
	Probability     *float64       `db:"probability" json:"probability,omitempty"`
	ProcessingTime  *float64       `db:"processing_time" json:"processing_time,omitempty"`
	ReviewStatus    string         `db:"review_status" json:"review_status"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	BoundingBoxes   []*BoundingBox `db:"-" json:"bounding_boxes,omitempty"`
}

// BoundingBox maps to the bounding_boxes table. Coordinates are normalized
// to the image and must fall in [0,1]. Boxes are immutable once stored.
type BoundingBox struct {
	ID            uuid.UUID `db:"id" json:"id"`
	PredictionID  uuid.UUID `db:"prediction_id" json:"prediction_id"`
	X             float64   `db:"x" json:"x"`
	Y             float64   `db:"y" json:"y"`
	Width         float64   `db:"width" json:"width"`
	Height        float64   `db:"height" json:"height"`
	Label         *string   `db:"label" json:"label,omitempty"`
	Confidence    *float64  `db:"confidence" json:"confidence,omitempty"`
	ClassID       *int      `db:"class_id" json:"class_id,omitempty"`
	IsAbnormal    bool      `db:"is_abnormal" json:"is_abnormal"`
	SeverityScore *float64  `db:"severity_score" json:"severity_score,omitempty"`
}

// Validate checks that all coordinates are normalized.
func (b *BoundingBox) Validate() error {
	for _, v := range []struct {
		name  string
		value float64
	}{
		{"x", b.X}, {"y", b.Y}, {"width", b.Width}, {"height", b.Height},
	} {
		if v.value < 0 || v.value > 1 {
			return apperr.Validation("bounding box %s must be in [0,1], got %g", v.name, v.value)
		}
	}
	return nil
}
