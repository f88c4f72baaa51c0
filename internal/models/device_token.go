package models

import "time"

// DeviceToken stores a user's registered push token. One token per user in
// this design; re-registration overwrites the previous token.
type DeviceToken struct {
	BaseModel

	UserID     string    `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	Token      string    `gorm:"type:text;not null" json:"-"`
	Platform   string    `gorm:"type:varchar(32)" json:"platform"`
	LastSeenAt time.Time `gorm:"index" json:"last_seen_at"`
}
