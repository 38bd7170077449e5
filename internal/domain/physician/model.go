package physician

import (
	"time"

	"github.com/google/uuid"
)

// Physician maps to the physicians table. PhysicianID is the business
// identifier; username and email are unique login identities. Physicians
// are never deleted, only deactivated.
type Physician struct {
	ID             uuid.UUID `db:"id" json:"id"`
	PhysicianID    string    `db:"physician_id" json:"physician_id"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email"`
	Username       string    `db:"username" json:"username"`
	HashedPassword string    `db:"hashed_password" json:"-"`
	Specialty      *string   `db:"specialty" json:"specialty,omitempty"`
	SubSpecialty   *string   `db:"sub_specialty" json:"sub_specialty,omitempty"`
	LicenseNumber  *string   `db:"license_number" json:"license_number,omitempty"`
	Department     *string   `db:"department" json:"department,omitempty"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`

	// Password is accepted on create only and never stored or returned.
	Password string `db:"-" json:"password,omitempty"`
}

// Review maps to the physician_reviews table. A review is immutable once
// filed and settles the prediction it refers to.
type Review struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	PredictionID       uuid.UUID `db:"prediction_id" json:"prediction_id"`
	PhysicianID        uuid.UUID `db:"physician_id" json:"physician_id"`
	IsCorrect          bool      `db:"is_correct" json:"is_correct"`
	ConfidenceInAI     *float64  `db:"confidence_in_ai" json:"confidence_in_ai,omitempty"`
	CorrectedDiagnosis *string   `db:"corrected_diagnosis" json:"corrected_diagnosis,omitempty"`
	Feedback           *string   `db:"feedback" json:"feedback,omitempty"`
	TimeSpentMinutes   *float64  `db:"time_spent_minutes" json:"time_spent_minutes,omitempty"`
	ReviewTime         time.Time `db:"review_time" json:"review_time"`
}
