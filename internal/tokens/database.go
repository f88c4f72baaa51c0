package tokens

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/perimeterlab/fieldalert/internal/models"
)

// DatabaseStore implements Store on top of the device_tokens table.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore constructs a database-backed Store.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	if db == nil {
		return nil
	}
	return &DatabaseStore{db: db}
}

// Lookup returns the registered token for the supplied user.
func (s *DatabaseStore) Lookup(ctx context.Context, userID string) (string, bool, error) {
	if s == nil {
		return "", false, errors.New("tokens: database store not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", false, errors.New("tokens: user id is required")
	}

	var row models.DeviceToken
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("tokens: lookup: %w", err)
	}

	if strings.TrimSpace(row.Token) == "" {
		return "", false, nil
	}
	return row.Token, true, nil
}

// Save registers or replaces the token for the supplied user.
func (s *DatabaseStore) Save(ctx context.Context, userID, token, platform string) error {
	if s == nil {
		return errors.New("tokens: database store not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	userID = strings.TrimSpace(userID)
	token = strings.TrimSpace(token)
	if userID == "" || token == "" {
		return errors.New("tokens: user id and token are required")
	}

	row := models.DeviceToken{
		UserID:     userID,
		Token:      token,
		Platform:   strings.TrimSpace(platform),
		LastSeenAt: time.Now().UTC(),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"token", "platform", "last_seen_at", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("tokens: save: %w", err)
	}
	return nil
}

// Delete removes the registration for the supplied user.
func (s *DatabaseStore) Delete(ctx context.Context, userID string) error {
	if s == nil {
		return errors.New("tokens: database store not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.DeviceToken{})
	if result.Error != nil {
		return fmt.Errorf("tokens: delete: %w", result.Error)
	}
	return nil
}
