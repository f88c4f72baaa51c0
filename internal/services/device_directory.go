package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/perimeterlab/fieldalert/internal/models"
	"github.com/perimeterlab/fieldalert/pkg/logger"
)

// DeviceDirectory resolves a device identifier to the accounts entitled to
// its alerts. The current ownership model is single-owner, so the result has
// at most one element; the slice return keeps room for shared devices later.
type DeviceDirectory struct {
	db      *gorm.DB
	timeout time.Duration
	log     *zap.Logger
}

// DeviceDirectoryOption customises the directory.
type DeviceDirectoryOption func(*DeviceDirectory)

// WithDirectoryTimeout bounds each ownership lookup.
func WithDirectoryTimeout(d time.Duration) DeviceDirectoryOption {
	return func(dir *DeviceDirectory) {
		if d > 0 {
			dir.timeout = d
		}
	}
}

// NewDeviceDirectory constructs a DeviceDirectory.
func NewDeviceDirectory(db *gorm.DB, opts ...DeviceDirectoryOption) (*DeviceDirectory, error) {
	if db == nil {
		return nil, errors.New("device directory: db is required")
	}

	directory := &DeviceDirectory{
		db:      db,
		timeout: defaultLookupTimeout,
		log:     logger.WithModule("device_directory"),
	}
	for _, opt := range opts {
		opt(directory)
	}
	return directory, nil
}

// Recipients returns the recipient account ids for the supplied device. An
// unknown device or a device without an owner yields an empty slice, not an
// error; only a query failure propagates.
func (d *DeviceDirectory) Recipients(ctx context.Context, deviceID string) ([]string, error) {
	ctx = ensureContext(ctx)
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, errors.New("device directory: device id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var device models.Device
	err := d.db.WithContext(ctx).Where("device_id = ?", deviceID).Take(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		d.log.Debug("device not registered", zap.String("device_id", deviceID))
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("device directory: lookup device: %w", err)
	}

	owner := strings.TrimSpace(device.OwnerUserID)
	if owner == "" {
		return []string{}, nil
	}
	return []string{owner}, nil
}
