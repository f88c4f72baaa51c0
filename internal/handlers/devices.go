package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/perimeterlab/fieldalert/internal/middleware"
	"github.com/perimeterlab/fieldalert/internal/models"
	"github.com/perimeterlab/fieldalert/internal/tokens"
	appErrors "github.com/perimeterlab/fieldalert/pkg/errors"
	"github.com/perimeterlab/fieldalert/pkg/response"
)

// DeviceHandler exposes HTTP endpoints for device and push token registration.
type DeviceHandler struct {
	db     *gorm.DB
	tokens tokens.Store
}

// NewDeviceHandler constructs a device handler.
func NewDeviceHandler(db *gorm.DB, store tokens.Store) (*DeviceHandler, error) {
	if db == nil {
		return nil, errors.New("device handler: db is required")
	}
	if store == nil {
		return nil, errors.New("device handler: token store is required")
	}
	return &DeviceHandler{db: db, tokens: store}, nil
}

type registerDeviceRequest struct {
	DeviceID string `json:"device_id" validate:"required,max=128"`
	Name     string `json:"name" validate:"omitempty,max=255"`
	Site     string `json:"site" validate:"omitempty,max=255"`
}

type registerTokenRequest struct {
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform" validate:"required,oneof=android ios"`
}

// Register claims a device identifier for the current user. Re-registering an
// identifier the user already owns updates its metadata in place.
func (h *DeviceHandler) Register(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req registerDeviceRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := c.Request.Context()

	var device models.Device
	err := h.db.WithContext(ctx).Where("device_id = ?", req.DeviceID).First(&device).Error
	switch {
	case err == nil:
		if device.OwnerUserID != userID {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
		device.Name = req.Name
		device.Site = req.Site
		if err := h.db.WithContext(ctx).Save(&device).Error; err != nil {
			response.Error(c, err)
			return
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		device = models.Device{
			DeviceID:    req.DeviceID,
			OwnerUserID: userID,
			Name:        req.Name,
			Site:        req.Site,
		}
		if err := h.db.WithContext(ctx).Create(&device).Error; err != nil {
			response.Error(c, err)
			return
		}
	default:
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, device)
}

// RegisterToken stores the caller's push token, replacing any previous one.
func (h *DeviceHandler) RegisterToken(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req registerTokenRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.tokens.Save(c.Request.Context(), userID, req.Token, req.Platform); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"registered": true})
}

// DeleteToken removes the caller's push token, opting them out of delivery.
func (h *DeviceHandler) DeleteToken(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.tokens.Delete(c.Request.Context(), userID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
