package models

// Device represents a registered field device. Each device has at most one
// owner; a device without an owner is valid and simply has no alert
// recipients yet.
type Device struct {
	BaseModel

	DeviceID    string `gorm:"type:varchar(128);uniqueIndex;not null" json:"device_id"`
	OwnerUserID string `gorm:"type:uuid;index" json:"owner_user_id"`
	Name        string `gorm:"type:varchar(255)" json:"name"`
	Site        string `gorm:"type:varchar(255)" json:"site"`
}
