package services

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/perimeterlab/fieldalert/internal/push"
	"github.com/perimeterlab/fieldalert/internal/tokens"
	"github.com/perimeterlab/fieldalert/pkg/logger"
	"github.com/perimeterlab/fieldalert/pkg/metrics"
)

// alertPushType tags the structured data payload so mobile clients can route
// the notification.
const alertPushType = "mlAlert"

// PushOutcome is the per-recipient result of a dispatch attempt. Exactly one
// of Blocked, Skipped, Result, or Error is populated.
type PushOutcome struct {
	UserID  string       `json:"user_id"`
	Success bool         `json:"success"`
	Blocked bool         `json:"blocked,omitempty"`
	Reason  string       `json:"reason,omitempty"`
	Skipped bool         `json:"skipped,omitempty"`
	Result  *push.Result `json:"result,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// PushDispatcher sends a push message to each recipient's registered device,
// tolerating per-recipient failure. It re-checks block status itself rather
// than trusting the store's gate; the two reads hit data that can change
// between calls.
type PushDispatcher struct {
	gateway push.Gateway
	tokens  tokens.Store
	blocks  *BlockRegistry
	log     *zap.Logger
}

// NewPushDispatcher constructs a PushDispatcher. A nil gateway puts the
// dispatcher in degraded mode: dispatch becomes a no-op that returns no
// outcomes, and the condition is logged once here rather than per request.
func NewPushDispatcher(gateway push.Gateway, tokenStore tokens.Store, blocks *BlockRegistry) (*PushDispatcher, error) {
	if tokenStore == nil {
		return nil, errors.New("push dispatcher: token store is required")
	}
	if blocks == nil {
		return nil, errors.New("push dispatcher: block registry is required")
	}

	log := logger.WithModule("push_dispatcher")
	if gateway == nil {
		log.Warn("push gateway not configured, dispatch disabled")
	}

	return &PushDispatcher{
		gateway: gateway,
		tokens:  tokenStore,
		blocks:  blocks,
		log:     log,
	}, nil
}

// Dispatch attempts delivery to each recipient sequentially and returns one
// outcome per recipient, preserving input order. Gateway failures for one
// recipient never abort the rest.
func (d *PushDispatcher) Dispatch(ctx context.Context, alert InboundAlert, content NotificationContent, recipients []string) []PushOutcome {
	ctx = ensureContext(ctx)

	if d.gateway == nil {
		return []PushOutcome{}
	}

	outcomes := make([]PushOutcome, 0, len(recipients))
	for _, userID := range recipients {
		outcomes = append(outcomes, d.dispatchOne(ctx, alert, content, userID))
	}
	return outcomes
}

func (d *PushDispatcher) dispatchOne(ctx context.Context, alert InboundAlert, content NotificationContent, userID string) PushOutcome {
	if status := d.blocks.Check(ctx, userID); status.Blocked {
		metrics.PushAttempts.WithLabelValues("blocked").Inc()
		return PushOutcome{UserID: userID, Blocked: true, Reason: status.Reason}
	}

	token, found, err := d.tokens.Lookup(ctx, userID)
	if err != nil {
		d.log.Warn("token lookup failed", zap.String("user_id", userID), zap.Error(err))
		metrics.PushAttempts.WithLabelValues("error").Inc()
		return PushOutcome{UserID: userID, Error: err.Error()}
	}
	if !found {
		metrics.PushAttempts.WithLabelValues("skipped").Inc()
		return PushOutcome{UserID: userID, Skipped: true}
	}

	message := push.Message{
		Token: token,
		Title: content.Title,
		Body:  content.Body,
		Data: map[string]string{
			"type":              alertPushType,
			"device_identifier": alert.DeviceIdentifier,
			"alert_id":          correlationID(alert),
			"risk_label":        alert.RiskLabel,
			"detected_objects":  strings.Join(alert.DetectedObjects, ","),
			"timestamp":         strconv.FormatInt(alert.Timestamp, 10),
		},
	}

	result, err := d.gateway.Send(ctx, message)
	if err != nil {
		d.log.Warn("push delivery failed", zap.String("user_id", userID), zap.Error(err))
		metrics.PushAttempts.WithLabelValues("error").Inc()
		return PushOutcome{UserID: userID, Error: err.Error()}
	}

	metrics.PushAttempts.WithLabelValues("delivered").Inc()
	return PushOutcome{UserID: userID, Success: true, Result: result}
}

func correlationID(alert InboundAlert) string {
	if id, ok := alert.CorrelationID(); ok {
		return id
	}
	return uuid.NewString()
}
