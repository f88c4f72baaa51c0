package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/perimeterlab/fieldalert/internal/models"
	"github.com/perimeterlab/fieldalert/pkg/logger"
)

const defaultLookupTimeout = 3 * time.Second

// BlockStatus is the result of a block lookup for one account.
type BlockStatus struct {
	Blocked   bool       `json:"blocked"`
	Reason    string     `json:"reason,omitempty"`
	BlockedBy string     `json:"blocked_by,omitempty"`
	BlockedAt *time.Time `json:"blocked_at,omitempty"`
}

// BlockRegistry answers whether an account is currently blocked. Lookups fail
// open: if the backing store is unreachable the account is treated as not
// blocked, because alert availability outranks strict enforcement here.
type BlockRegistry struct {
	db      *gorm.DB
	timeout time.Duration
	log     *zap.Logger
}

// BlockRegistryOption customises the registry.
type BlockRegistryOption func(*BlockRegistry)

// WithLookupTimeout bounds each block lookup.
func WithLookupTimeout(d time.Duration) BlockRegistryOption {
	return func(r *BlockRegistry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewBlockRegistry constructs a BlockRegistry.
func NewBlockRegistry(db *gorm.DB, opts ...BlockRegistryOption) (*BlockRegistry, error) {
	if db == nil {
		return nil, errors.New("block registry: db is required")
	}

	registry := &BlockRegistry{
		db:      db,
		timeout: defaultLookupTimeout,
		log:     logger.WithModule("block_registry"),
	}
	for _, opt := range opts {
		opt(registry)
	}
	return registry, nil
}

// Check returns the current block status for the supplied account. A failed
// lookup is logged and reported as not blocked.
func (r *BlockRegistry) Check(ctx context.Context, userID string) BlockStatus {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return BlockStatus{}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var record models.BlockRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("blocked_at DESC").
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return BlockStatus{}
	}
	if err != nil {
		// Fail open: an outage in the block store must not stop alerting.
		r.log.Warn("block lookup failed, treating account as not blocked",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return BlockStatus{}
	}

	blockedAt := record.BlockedAt
	return BlockStatus{
		Blocked:   true,
		Reason:    record.Reason,
		BlockedBy: record.BlockedBy,
		BlockedAt: &blockedAt,
	}
}
