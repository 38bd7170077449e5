package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patients table. PatientID is the business identifier
// (e.g. MRN) and is unique; ID is the surrogate key other tables reference.
type Patient struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	PatientID          string     `db:"patient_id" json:"patient_id"`
	Name               string     `db:"name" json:"name"`
	BirthDate          *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Gender             *string    `db:"gender" json:"gender,omitempty"`
	Phone              *string    `db:"phone" json:"phone,omitempty"`
	Email              *string    `db:"email" json:"email,omitempty"`
	Address            *string    `db:"address" json:"address,omitempty"`
	EmergencyContact   *string    `db:"emergency_contact" json:"emergency_contact,omitempty"`
	MedicalHistory     *string    `db:"medical_history" json:"medical_history,omitempty"`
	Allergies          *string    `db:"allergies" json:"allergies,omitempty"`
	CurrentMedications *string    `db:"current_medications" json:"current_medications,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}
