package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/perimeterlab/fieldalert/internal/middleware"
	"github.com/perimeterlab/fieldalert/internal/services"
	appErrors "github.com/perimeterlab/fieldalert/pkg/errors"
	"github.com/perimeterlab/fieldalert/pkg/response"
)

// AlertHandler exposes HTTP endpoints for alert ingestion and history.
type AlertHandler struct {
	pipeline *services.Pipeline
	history  *services.AlertHistoryService
}

// NewAlertHandler constructs an alert handler.
func NewAlertHandler(pipeline *services.Pipeline, history *services.AlertHistoryService) (*AlertHandler, error) {
	if pipeline == nil {
		return nil, errors.New("alert handler: pipeline is required")
	}
	if history == nil {
		return nil, errors.New("alert handler: history service is required")
	}
	return &AlertHandler{pipeline: pipeline, history: history}, nil
}

type ingestRequest struct {
	DeviceID string                 `json:"device_id" validate:"required"`
	Alert    *services.InboundAlert `json:"alert" validate:"required"`
}

type rateRequest struct {
	Rating   int    `json:"rating" validate:"required,min=1,max=5"`
	Accuracy string `json:"accuracy" validate:"omitempty,max=32"`
}

// Ingest accepts one inbound device alert and runs the full fan-out.
func (h *AlertHandler) Ingest(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req ingestRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.pipeline.Ingest(c.Request.Context(), services.IngestInput{
		UserID:   userID,
		DeviceID: req.DeviceID,
		Alert:    req.Alert,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// List returns the current user's stored alerts, newest first.
func (h *AlertHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	limit := parseIntQuery(c, "limit", 25)
	offset := parseIntQuery(c, "offset", 0)

	items, err := h.history.ListForUser(c.Request.Context(), services.ListAlertsInput{
		UserID: userID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, items)
}

// Acknowledge marks one of the current user's alerts as seen.
func (h *AlertHandler) Acknowledge(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if err := h.history.Acknowledge(c.Request.Context(), userID, id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"acknowledged": true})
}

// Rate records feedback on one of the current user's alerts.
func (h *AlertHandler) Rate(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req rateRequest
	if !bindAndValidate(c, &req) {
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if err := h.history.Rate(c.Request.Context(), userID, id, req.Rating, req.Accuracy); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"rated": true})
}
