package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/perimeterlab/fieldalert/internal/database/testutil"
	"github.com/perimeterlab/fieldalert/internal/models"
	apperrors "github.com/perimeterlab/fieldalert/pkg/errors"
)

func seedAlert(t *testing.T, db *gorm.DB, userID string, storedAt time.Time) string {
	t.Helper()
	record := models.Alert{
		DeviceID:         "d1",
		DeviceIdentifier: "d1",
		UserID:           userID,
		NotificationType: "ml_detection",
		RiskLabel:        "High",
		StoredAt:         storedAt,
		AlertGeneratedAt: storedAt.Unix(),
	}
	require.NoError(t, db.Create(&record).Error)
	return record.ID
}

func TestListForUserOrdersByStoredAt(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	history, err := NewAlertHistoryService(db)
	require.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Second)
	oldest := seedAlert(t, db, "u1", base.Add(-2*time.Hour))
	newest := seedAlert(t, db, "u1", base)
	middle := seedAlert(t, db, "u1", base.Add(-time.Hour))
	seedAlert(t, db, "u2", base)

	rows, err := history.ListForUser(context.Background(), ListAlertsInput{UserID: "u1"})
	require.NoError(t, err)

	require.Len(t, rows, 3)
	require.Equal(t, newest, rows[0].ID)
	require.Equal(t, middle, rows[1].ID)
	require.Equal(t, oldest, rows[2].ID)
}

func TestListForUserPagination(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	history, err := NewAlertHistoryService(db)
	require.NoError(t, err)

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		seedAlert(t, db, "u1", base.Add(-time.Duration(i)*time.Minute))
	}

	first, err := history.ListForUser(context.Background(), ListAlertsInput{UserID: "u1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := history.ListForUser(context.Background(), ListAlertsInput{UserID: "u1", Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, second, 2)
	require.NotEqual(t, first[0].ID, second[0].ID)

	// out-of-range limits fall back to the default
	all, err := history.ListForUser(context.Background(), ListAlertsInput{UserID: "u1", Limit: 500})
	require.NoError(t, err)
	require.Len(t, all, 5)
}

func TestListForUserRequiresUserID(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	history, err := NewAlertHistoryService(db)
	require.NoError(t, err)

	_, err = history.ListForUser(context.Background(), ListAlertsInput{UserID: "  "})
	require.Error(t, err)
}

func TestAcknowledge(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	history, err := NewAlertHistoryService(db)
	require.NoError(t, err)

	alertID := seedAlert(t, db, "u1", time.Now().UTC())

	require.NoError(t, history.Acknowledge(context.Background(), "u1", alertID))

	var record models.Alert
	require.NoError(t, db.First(&record, "id = ?", alertID).Error)
	require.True(t, record.Acknowledged)

	// wrong owner must not see the record
	err = history.Acknowledge(context.Background(), "u2", alertID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRate(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	history, err := NewAlertHistoryService(db)
	require.NoError(t, err)

	alertID := seedAlert(t, db, "u1", time.Now().UTC())

	err = history.Rate(context.Background(), "u1", alertID, 0, "")
	require.Error(t, err)
	require.Equal(t, "VALIDATION_ERROR", apperrors.FromError(err).Code)

	require.NoError(t, history.Rate(context.Background(), "u1", alertID, 4, "accurate"))

	var record models.Alert
	require.NoError(t, db.First(&record, "id = ?", alertID).Error)
	require.NotNil(t, record.Rating)
	require.Equal(t, 4, *record.Rating)
	require.NotNil(t, record.RatingAccuracy)
	require.Equal(t, "accurate", *record.RatingAccuracy)

	err = history.Rate(context.Background(), "u1", "missing", 3, "")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}
