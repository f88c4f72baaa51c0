package models

import "time"

// BlockRecord marks an account as blocked from sending or receiving alerts.
// Only rows with IsActive set count as blocking; inactive rows are retained
// for audit until maintenance prunes them.
type BlockRecord struct {
	BaseModel

	UserID    string    `gorm:"type:uuid;index;not null" json:"user_id"`
	Reason    string    `gorm:"type:text" json:"reason"`
	BlockedBy string    `gorm:"type:uuid" json:"blocked_by"`
	BlockedAt time.Time `json:"blocked_at"`
	IsActive  bool      `gorm:"index" json:"is_active"`
}
