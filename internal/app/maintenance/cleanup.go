package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/perimeterlab/fieldalert/internal/models"
	"github.com/perimeterlab/fieldalert/pkg/logger"
)

const (
	defaultSchedule       = "@hourly"
	defaultTokenMaxAge    = 90 * 24 * time.Hour
	defaultBlockRetention = 365 * 24 * time.Hour
)

// Cleaner runs background maintenance: pruning push tokens that have gone
// stale and sweeping lifted block records past their retention window. Alert
// records are deliberately never touched; they are the audit trail.
type Cleaner struct {
	db             *gorm.DB
	cron           *cron.Cron
	now            func() time.Time
	log            *zap.Logger
	schedule       string
	tokenMaxAge    time.Duration
	blockRetention time.Duration
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithSchedule overrides the cron specification for the cleanup job.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// WithTokenMaxAge adjusts how long unused push tokens are retained.
func WithTokenMaxAge(age time.Duration) Option {
	return func(cleaner *Cleaner) {
		if age > 0 {
			cleaner.tokenMaxAge = age
		}
	}
}

// WithBlockRetention adjusts how long lifted block records are retained.
func WithBlockRetention(retention time.Duration) Option {
	return func(cleaner *Cleaner) {
		if retention > 0 {
			cleaner.blockRetention = retention
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(db *gorm.DB, opts ...Option) (*Cleaner, error) {
	if db == nil {
		return nil, errors.New("maintenance: db is required")
	}

	cleaner := &Cleaner{
		db:             db,
		now:            time.Now,
		schedule:       defaultSchedule,
		tokenMaxAge:    defaultTokenMaxAge,
		blockRetention: defaultBlockRetention,
		log:            logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner, nil
}

// Start registers the cleanup job with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if _, err := c.cron.AddFunc(c.schedule, func() {
		if err := c.RunOnce(context.Background()); err != nil {
			c.log.Warn("cleanup run failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all cleanup routines sequentially. Also used during
// graceful shutdown and in tests.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	tokens, err := c.pruneStaleTokens(ctx)
	if err != nil {
		errs = multierr.Append(errs, err)
	}

	blocks, err := c.sweepLiftedBlocks(ctx)
	if err != nil {
		errs = multierr.Append(errs, err)
	}

	if errs == nil && (tokens > 0 || blocks > 0) {
		c.log.Info("cleanup complete",
			zap.Int64("stale_tokens", tokens),
			zap.Int64("lifted_blocks", blocks),
		)
	}

	return errs
}

func (c *Cleaner) pruneStaleTokens(ctx context.Context) (int64, error) {
	cutoff := c.now().Add(-c.tokenMaxAge)

	result := c.db.WithContext(ctx).
		Where("last_seen_at < ?", cutoff).
		Delete(&models.DeviceToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("maintenance: prune stale tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (c *Cleaner) sweepLiftedBlocks(ctx context.Context) (int64, error) {
	cutoff := c.now().Add(-c.blockRetention)

	// active blocks are never swept regardless of age
	result := c.db.WithContext(ctx).
		Where("is_active = ? AND blocked_at < ?", false, cutoff).
		Delete(&models.BlockRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("maintenance: sweep lifted blocks: %w", result.Error)
	}
	return result.RowsAffected, nil
}
