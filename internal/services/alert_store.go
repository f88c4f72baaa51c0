package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/perimeterlab/fieldalert/internal/models"
	"github.com/perimeterlab/fieldalert/pkg/logger"
	"github.com/perimeterlab/fieldalert/pkg/metrics"
)

const (
	defaultPersistWorkers = 4
	defaultPersistTimeout = 5 * time.Second
)

// AlertStore persists one durable alert record per authorized, non-blocked
// recipient. It resolves recipients itself and gates each one against the
// block registry independently of any gating the dispatcher performs.
type AlertStore struct {
	db        *gorm.DB
	directory *DeviceDirectory
	blocks    *BlockRegistry
	log       *zap.Logger
	workers   int
	timeout   time.Duration
}

// AlertStoreOption customises the store.
type AlertStoreOption func(*AlertStore)

// WithPersistWorkers bounds recipient-level persistence concurrency.
func WithPersistWorkers(n int) AlertStoreOption {
	return func(s *AlertStore) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithPersistTimeout bounds each recipient-level write.
func WithPersistTimeout(d time.Duration) AlertStoreOption {
	return func(s *AlertStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewAlertStore constructs an AlertStore.
func NewAlertStore(db *gorm.DB, directory *DeviceDirectory, blocks *BlockRegistry, opts ...AlertStoreOption) (*AlertStore, error) {
	if db == nil {
		return nil, errors.New("alert store: db is required")
	}
	if directory == nil {
		return nil, errors.New("alert store: device directory is required")
	}
	if blocks == nil {
		return nil, errors.New("alert store: block registry is required")
	}

	store := &AlertStore{
		db:        db,
		directory: directory,
		blocks:    blocks,
		log:       logger.WithModule("alert_store"),
		workers:   defaultPersistWorkers,
		timeout:   defaultPersistTimeout,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// Persist stores one alert record per eligible recipient of the device and
// returns the ids that were successfully created, in recipient order. A
// failure for one recipient is logged and does not abort the others; only a
// recipient-resolution failure propagates as an error.
func (s *AlertStore) Persist(ctx context.Context, deviceID string, alert InboundAlert) ([]string, error) {
	ctx = ensureContext(ctx)

	recipients, err := s.directory.Recipients(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("alert store: resolve recipients: %w", err)
	}
	if len(recipients) == 0 {
		s.log.Warn("no recipients for device, nothing stored", zap.String("device_id", deviceID))
		return []string{}, nil
	}

	ids := make([]string, len(recipients))
	failures := make([]error, len(recipients))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)

	for i, userID := range recipients {
		group.Go(func() error {
			if status := s.blocks.Check(groupCtx, userID); status.Blocked {
				s.log.Debug("recipient blocked, skipping persistence",
					zap.String("user_id", userID),
					zap.String("reason", status.Reason),
				)
				return nil
			}

			writeCtx, cancel := context.WithTimeout(groupCtx, s.timeout)
			defer cancel()

			record := s.buildRecord(deviceID, userID, alert)
			if err := s.db.WithContext(writeCtx).Create(&record).Error; err != nil {
				failures[i] = fmt.Errorf("recipient %s: %w", userID, err)
				return nil
			}

			ids[i] = record.ID
			metrics.AlertRecordsStored.Inc()
			return nil
		})
	}
	// group funcs never return errors; failures are collected per recipient
	_ = group.Wait()

	if combined := multierr.Combine(failures...); combined != nil {
		s.log.Warn("some alert records could not be persisted",
			zap.String("device_id", deviceID),
			zap.Error(combined),
		)
	}

	stored := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			stored = append(stored, id)
		}
	}
	return stored, nil
}

func (s *AlertStore) buildRecord(deviceID, userID string, alert InboundAlert) models.Alert {
	return models.Alert{
		DeviceID:         deviceID,
		DeviceIdentifier: alert.DeviceIdentifier,
		UserID:           userID,
		NotificationType: alert.NotificationType,
		DetectedObjects:  encodeJSON(alert.DetectedObjects),
		RiskLabel:        alert.RiskLabel,
		PredictedRisk:    alert.PredictedRisk,
		Description:      encodeJSON(alert.Description),
		Screenshots:      encodeJSON(alert.Screenshots),
		AdditionalData:   encodeJSON(alert.AdditionalData),
		ModelVersion:     alert.ModelVersion,
		ConfidenceScore:  alert.ConfidenceScore,
		StoredAt:         time.Now().UTC(),
		AlertGeneratedAt: alert.Timestamp,
	}
}
