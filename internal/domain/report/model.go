package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/medivision/medivision/internal/platform/apperr"
)

// Report lifecycle. Strictly forward: a draft is promoted to preliminary,
// signed off as final, and may be amended exactly once more.
const (
	StatusDraft       = "draft"
	StatusPreliminary = "preliminary"
	StatusFinal       = "final"
	StatusAmended     = "amended"
)

var statusTransitions = map[string][]string{
	StatusDraft:       {StatusPreliminary},
	StatusPreliminary: {StatusFinal},
	StatusFinal:       {StatusAmended},
	StatusAmended:     {},
}

// ValidateTransition checks whether a report status change is allowed.
func ValidateTransition(from, to string) error {
	allowed, ok := statusTransitions[from]
	if !ok {
		return apperr.Validation("unknown report status: %s", from)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return apperr.Validation("invalid report status transition from %s to %s", from, to)
}

var validUrgencies = map[string]bool{
	"routine": true, "urgent": true, "stat": true,
}

// DiagnosticReport maps to the diagnostic_reports table.
type DiagnosticReport struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	PatientID        uuid.UUID  `db:"patient_id" json:"patient_id"`
	PhysicianID      uuid.UUID  `db:"physician_id" json:"physician_id"`
	ImageID          *uuid.UUID `db:"image_id" json:"image_id,omitempty"`
	Title            string     `db:"title" json:"title"`
	Findings         *string    `db:"findings" json:"findings,omitempty"`
	Impression       *string    `db:"impression" json:"impression,omitempty"`
	Recommendations  *string    `db:"recommendations" json:"recommendations,omitempty"`
	PrimaryDiagnosis *string    `db:"primary_diagnosis" json:"primary_diagnosis,omitempty"`
	ICDCodes         *string    `db:"icd_codes" json:"icd_codes,omitempty"`
	UrgencyLevel     string     `db:"urgency_level" json:"urgency_level"`
	ReportStatus     string     `db:"report_status" json:"report_status"`
	IsCritical       bool       `db:"is_critical" json:"is_critical"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	PreliminaryAt    *time.Time `db:"preliminary_at" json:"preliminary_at,omitempty"`
	FinalizedAt      *time.Time `db:"finalized_at" json:"finalized_at,omitempty"`
	AmendedAt        *time.Time `db:"amended_at" json:"amended_at,omitempty"`
}
