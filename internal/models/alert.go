package models

import (
	"time"

	"gorm.io/datatypes"
)

// Alert is the durable per-recipient record created when an inbound device
// alert passes validation and both block gates. One row exists per
// (device, recipient) pair; the alert payload is denormalized into the row so
// the record stays readable even if the device is later re-registered.
type Alert struct {
	BaseModel

	DeviceID         string `gorm:"type:varchar(128);index;not null" json:"device_id"`
	DeviceIdentifier string `gorm:"type:varchar(255)" json:"device_identifier"`
	UserID           string `gorm:"type:uuid;index;not null" json:"user_id"`

	NotificationType string         `gorm:"type:varchar(64)" json:"notification_type"`
	DetectedObjects  datatypes.JSON `json:"detected_objects"`
	RiskLabel        string         `gorm:"type:varchar(32)" json:"risk_label"`
	PredictedRisk    string         `gorm:"type:varchar(255)" json:"predicted_risk"`
	Description      datatypes.JSON `json:"description"`
	Screenshots      datatypes.JSON `json:"screenshots"`
	AdditionalData   datatypes.JSON `json:"additional_data"`
	ModelVersion     string         `gorm:"type:varchar(64)" json:"model_version"`
	ConfidenceScore  float64        `json:"confidence_score"`

	// StoredAt is the authoritative ordering key, assigned server-side at
	// persistence time. AlertGeneratedAt preserves the sender-supplied epoch
	// timestamp and is never trusted for ordering.
	StoredAt         time.Time `gorm:"index;not null" json:"stored_at"`
	AlertGeneratedAt int64     `json:"alert_generated_at"`

	Acknowledged   bool    `gorm:"default:false" json:"acknowledged"`
	Rating         *int    `json:"rating"`
	RatingAccuracy *string `gorm:"type:varchar(32)" json:"rating_accuracy"`
}
