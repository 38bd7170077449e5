package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Risk levels attached to audit entries.
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

var validRiskLevels = map[string]bool{
	RiskLow: true, RiskMedium: true, RiskHigh: true, RiskCritical: true,
}

// Entry is a single append-only audit record. resource_id is a weak
// reference: the row it points at may be gone, the entry stays.
type Entry struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	UserID       *string         `db:"user_id" json:"user_id,omitempty"`
	UserType     *string         `db:"user_type" json:"user_type,omitempty"`
	UserName     *string         `db:"user_name" json:"user_name,omitempty"`
	Action       string          `db:"action" json:"action"`
	ResourceType string          `db:"resource_type" json:"resource_type"`
	ResourceID   *string         `db:"resource_id" json:"resource_id,omitempty"`
	OldValues    json.RawMessage `db:"old_values" json:"old_values,omitempty"`
	NewValues    json.RawMessage `db:"new_values" json:"new_values,omitempty"`
	IPAddress    *string         `db:"ip_address" json:"ip_address,omitempty"`
	Success      bool            `db:"success" json:"success"`
	RiskLevel    string          `db:"risk_level" json:"risk_level"`
	Timestamp    time.Time       `db:"timestamp" json:"timestamp"`
}
