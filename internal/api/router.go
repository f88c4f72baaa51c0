package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	iauth "github.com/perimeterlab/fieldalert/internal/auth"
	"github.com/perimeterlab/fieldalert/internal/handlers"
	"github.com/perimeterlab/fieldalert/internal/middleware"
	"github.com/perimeterlab/fieldalert/internal/push"
	"github.com/perimeterlab/fieldalert/internal/services"
	"github.com/perimeterlab/fieldalert/internal/tokens"
)

// Dependencies carries the shared infrastructure the router wires handlers to.
// Gateway may be nil; push delivery then runs in degraded mode while ingestion
// and storage continue.
type Dependencies struct {
	DB      *gorm.DB
	JWT     *iauth.JWTService
	Tokens  tokens.Store
	Gateway push.Gateway

	// LookupTimeout bounds block registry and device directory reads; zero
	// keeps the service defaults.
	LookupTimeout time.Duration
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if deps.Tokens == nil {
		return nil, fmt.Errorf("token store must be provided")
	}

	var registryOpts []services.BlockRegistryOption
	var directoryOpts []services.DeviceDirectoryOption
	if deps.LookupTimeout > 0 {
		registryOpts = append(registryOpts, services.WithLookupTimeout(deps.LookupTimeout))
		directoryOpts = append(directoryOpts, services.WithDirectoryTimeout(deps.LookupTimeout))
	}
	registry, err := services.NewBlockRegistry(deps.DB, registryOpts...)
	if err != nil {
		return nil, err
	}
	directory, err := services.NewDeviceDirectory(deps.DB, directoryOpts...)
	if err != nil {
		return nil, err
	}
	store, err := services.NewAlertStore(deps.DB, directory, registry)
	if err != nil {
		return nil, err
	}
	dispatcher, err := services.NewPushDispatcher(deps.Gateway, deps.Tokens, registry)
	if err != nil {
		return nil, err
	}
	pipeline, err := services.NewPipeline(registry, directory, store, dispatcher)
	if err != nil {
		return nil, err
	}
	history, err := services.NewAlertHistoryService(deps.DB)
	if err != nil {
		return nil, err
	}

	alertHandler, err := handlers.NewAlertHandler(pipeline, history)
	if err != nil {
		return nil, err
	}
	deviceHandler, err := handlers.NewDeviceHandler(deps.DB, deps.Tokens)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger("/healthz", "/metrics"))
	r.Use(middleware.Metrics())

	// Public probes
	r.GET("/healthz", handlers.Health(deps.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT))

	alerts := api.Group("/alerts")
	{
		alerts.POST("/ingest", alertHandler.Ingest)
		alerts.GET("", alertHandler.List)
		alerts.POST("/:id/ack", alertHandler.Acknowledge)
		alerts.POST("/:id/rating", alertHandler.Rate)
	}

	devices := api.Group("/devices")
	{
		devices.POST("", deviceHandler.Register)
		devices.POST("/tokens", deviceHandler.RegisterToken)
		devices.DELETE("/tokens", deviceHandler.DeleteToken)
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
