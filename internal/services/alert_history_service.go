package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/perimeterlab/fieldalert/internal/models"
	apperrors "github.com/perimeterlab/fieldalert/pkg/errors"
)

// ListAlertsInput defines filters for querying a recipient's stored alerts.
type ListAlertsInput struct {
	UserID string
	Limit  int
	Offset int
}

// AlertHistoryService exposes a recipient's stored alerts and the
// acknowledgment/rating mutations. These flows never delete records.
type AlertHistoryService struct {
	db *gorm.DB
}

// NewAlertHistoryService constructs an AlertHistoryService.
func NewAlertHistoryService(db *gorm.DB) (*AlertHistoryService, error) {
	if db == nil {
		return nil, errors.New("alert history: db is required")
	}
	return &AlertHistoryService{db: db}, nil
}

// ListForUser returns the user's alerts ordered by server-side storage time.
func (s *AlertHistoryService) ListForUser(ctx context.Context, input ListAlertsInput) ([]models.Alert, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.New("alert history: user id is required")
	}

	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	var rows []models.Alert
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("stored_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("alert history: list alerts: %w", err)
	}
	return rows, nil
}

// Acknowledge marks an alert as seen by its recipient.
func (s *AlertHistoryService) Acknowledge(ctx context.Context, userID, alertID string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("id = ? AND user_id = ?", alertID, userID).
		Updates(map[string]any{
			"acknowledged": true,
			"updated_at":   time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("alert history: acknowledge: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Rate records the recipient's feedback on an alert.
func (s *AlertHistoryService) Rate(ctx context.Context, userID, alertID string, rating int, accuracy string) error {
	ctx = ensureContext(ctx)

	if rating < 1 || rating > 5 {
		return apperrors.NewValidation("rating must be between 1 and 5")
	}

	updates := map[string]any{
		"rating":     rating,
		"updated_at": time.Now().UTC(),
	}
	if accuracy = strings.TrimSpace(accuracy); accuracy != "" {
		updates["rating_accuracy"] = accuracy
	}

	result := s.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("id = ? AND user_id = ?", alertID, userID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("alert history: rate: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
