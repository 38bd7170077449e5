package imaging

import (
	"time"

	"github.com/google/uuid"

	"github.com/medivision/medivision/internal/platform/apperr"
)

// Processing lifecycle of a medical image. Completed is terminal; a failed
// image may be reset to uploaded for another attempt.
const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

var statusTransitions = map[string][]string{
	StatusUploaded:   {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusFailed:     {StatusUploaded},
	StatusCompleted:  {},
}

// ValidateTransition checks whether a processing status change is allowed.
func ValidateTransition(from, to string) error {
	allowed, ok := statusTransitions[from]
	if !ok {
		return apperr.Validation("unknown processing status: %s", from)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return apperr.Validation("invalid status transition from %s to %s", from, to)
}

// MedicalImage maps to the medical_images table. ImageID is the business
// identifier; PatientID references the patient's surrogate key.
type MedicalImage struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	ImageID               string     `db:"image_id" json:"image_id"`
	PatientID             uuid.UUID  `db:"patient_id" json:"patient_id"`
	StudyID               *string    `db:"study_id" json:"study_id,omitempty"`
	SeriesID              *string    `db:"series_id" json:"series_id,omitempty"`
	FilePath              string     `db:"file_path" json:"file_path"`
	FileName              string     `db:"file_name" json:"file_name"`
	FileSize              *int64     `db:"file_size" json:"file_size,omitempty"`
	FileHash              *string    `db:"file_hash" json:"file_hash,omitempty"`
	MimeType              *string    `db:"mime_type" json:"mime_type,omitempty"`
	ProcessingStatus      string     `db:"processing_status" json:"processing_status"`
	UploadTime            time.Time  `db:"upload_time" json:"upload_time"`
	ProcessingStartedAt   *time.Time `db:"processing_started_at" json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time `db:"processing_completed_at" json:"processing_completed_at,omitempty"`
}

// ImageMetadata maps to the image_metadata table, one row per image.
type ImageMetadata struct {
	ID                uuid.UUID `db:"id" json:"id"`
	ImageID           uuid.UUID `db:"image_id" json:"image_id"`
	Modality          *string   `db:"modality" json:"modality,omitempty"`
	BodyPart          *string   `db:"body_part" json:"body_part,omitempty"`
	ViewPosition      *string   `db:"view_position" json:"view_position,omitempty"`
	StudyDescription  *string   `db:"study_description" json:"study_description,omitempty"`
	SeriesDescription *string   `db:"series_description" json:"series_description,omitempty"`
	PixelSpacing      *string   `db:"pixel_spacing" json:"pixel_spacing,omitempty"`
	ImageRows         *int      `db:"image_rows" json:"image_rows,omitempty"`
	ImageColumns      *int      `db:"image_columns" json:"image_columns,omitempty"`
	Manufacturer      *string   `db:"manufacturer" json:"manufacturer,omitempty"`
	ModelName         *string   `db:"model_name" json:"model_name,omitempty"`
	SoftwareVersion   *string   `db:"software_version" json:"software_version,omitempty"`
	AcquisitionDate   *string   `db:"acquisition_date" json:"acquisition_date,omitempty"`
	AcquisitionTime   *string   `db:"acquisition_time" json:"acquisition_time,omitempty"`
	KVP               *float64  `db:"kvp" json:"kvp,omitempty"`
	ExposureTime      *float64  `db:"exposure_time" json:"exposure_time,omitempty"`
	InstitutionName   *string   `db:"institution_name" json:"institution_name,omitempty"`
}
