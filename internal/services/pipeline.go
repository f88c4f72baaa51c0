package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/perimeterlab/fieldalert/pkg/errors"
	"github.com/perimeterlab/fieldalert/pkg/logger"
	"github.com/perimeterlab/fieldalert/pkg/metrics"
)

// IngestInput is one inbound alert request.
type IngestInput struct {
	UserID   string        `json:"user_id"`
	DeviceID string        `json:"device_id"`
	Alert    *InboundAlert `json:"alert"`
}

// IngestResult is the aggregate response for an accepted alert.
type IngestResult struct {
	Success       bool          `json:"success"`
	AlertIDs      []string      `json:"alert_ids"`
	UsersNotified int           `json:"users_notified"`
	PushResults   []PushOutcome `json:"push_results"`
	Timestamp     string        `json:"timestamp"`
}

// Pipeline orchestrates the alert fan-out: validation, sender authorization,
// content synthesis, per-recipient persistence, and push dispatch. A request
// ends in one of three states: rejected before any side effect, accepted with
// per-recipient outcomes, or an internal error caught at the outermost level.
type Pipeline struct {
	blocks     *BlockRegistry
	directory  *DeviceDirectory
	store      *AlertStore
	dispatcher *PushDispatcher
	log        *zap.Logger
}

// NewPipeline constructs the ingestion pipeline.
func NewPipeline(blocks *BlockRegistry, directory *DeviceDirectory, store *AlertStore, dispatcher *PushDispatcher) (*Pipeline, error) {
	if blocks == nil {
		return nil, errors.New("pipeline: block registry is required")
	}
	if directory == nil {
		return nil, errors.New("pipeline: device directory is required")
	}
	if store == nil {
		return nil, errors.New("pipeline: alert store is required")
	}
	if dispatcher == nil {
		return nil, errors.New("pipeline: push dispatcher is required")
	}

	return &Pipeline{
		blocks:     blocks,
		directory:  directory,
		store:      store,
		dispatcher: dispatcher,
		log:        logger.WithModule("pipeline"),
	}, nil
}

// Ingest processes one inbound alert. Validation and sender-authorization
// failures reject the request before any persistence or dispatch; anything
// that escapes those gates after acceptance is converted into an internal
// error rather than a crash.
func (p *Pipeline) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	ctx = ensureContext(ctx)

	if err := validateInput(input); err != nil {
		metrics.AlertsIngested.WithLabelValues("rejected").Inc()
		return nil, err
	}

	// The sender's own block status gates the entire request, ahead of the
	// per-recipient gates inside the store and dispatcher.
	if status := p.blocks.Check(ctx, input.UserID); status.Blocked {
		p.log.Info("alert rejected, sender blocked",
			zap.String("user_id", input.UserID),
			zap.String("reason", status.Reason),
		)
		metrics.AlertsIngested.WithLabelValues("rejected").Inc()
		return nil, apperrors.NewSenderBlocked(status.Reason)
	}

	result, err := p.process(ctx, input)
	if err != nil {
		p.log.Error("alert processing failed",
			zap.String("device_id", input.DeviceID),
			zap.Error(err),
		)
		metrics.AlertsIngested.WithLabelValues("error").Inc()
		return nil, apperrors.FromError(err)
	}

	metrics.AlertsIngested.WithLabelValues("accepted").Inc()
	return result, nil
}

func (p *Pipeline) process(ctx context.Context, input IngestInput) (result *IngestResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = apperrors.Wrap(fmt.Errorf("%v", r), "alert processing panicked")
		}
	}()

	alert := *input.Alert
	content := ComposeNotification(alert)

	alertIDs, err := p.store.Persist(ctx, input.DeviceID, alert)
	if err != nil {
		return nil, apperrors.Wrap(err, "persist alert records")
	}

	// Recipients are resolved again for dispatch; persistence and push gate
	// independently and share no state.
	recipients, err := p.directory.Recipients(ctx, input.DeviceID)
	if err != nil {
		return nil, apperrors.Wrap(err, "resolve dispatch recipients")
	}

	outcomes := p.dispatcher.Dispatch(ctx, alert, content, recipients)

	if alertIDs == nil {
		alertIDs = []string{}
	}
	if outcomes == nil {
		outcomes = []PushOutcome{}
	}

	return &IngestResult{
		Success:       true,
		AlertIDs:      alertIDs,
		UsersNotified: len(recipients),
		PushResults:   outcomes,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func validateInput(input IngestInput) error {
	switch {
	case input.UserID == "":
		return apperrors.NewValidation("user_id is required")
	case input.DeviceID == "":
		return apperrors.NewValidation("device_id is required")
	case input.Alert == nil:
		return apperrors.NewValidation("alert is required")
	case len(input.Alert.DetectedObjects) == 0:
		return apperrors.NewValidation("alert.detected_objects is required")
	case input.Alert.RiskLabel == "":
		return apperrors.NewValidation("alert.risk_label is required")
	}
	return nil
}
