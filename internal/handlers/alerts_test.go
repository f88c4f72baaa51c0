package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/perimeterlab/fieldalert/internal/database/testutil"
	"github.com/perimeterlab/fieldalert/internal/middleware"
	"github.com/perimeterlab/fieldalert/internal/models"
	"github.com/perimeterlab/fieldalert/internal/push"
	"github.com/perimeterlab/fieldalert/internal/services"
	"github.com/perimeterlab/fieldalert/pkg/response"
)

type stubGateway struct {
	mu   sync.Mutex
	sent int
}

func (g *stubGateway) Send(ctx context.Context, msg push.Message) (*push.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent++
	return &push.Result{MessageID: fmt.Sprintf("msg-%d", g.sent)}, nil
}

type memTokenStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{tokens: map[string]string{}}
}

func (s *memTokenStore) Lookup(ctx context.Context, userID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[userID]
	return token, ok, nil
}

func (s *memTokenStore) Save(ctx context.Context, userID, token, platform string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[userID] = token
	return nil
}

func (s *memTokenStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, userID)
	return nil
}

type alertFixture struct {
	db      *gorm.DB
	router  *gin.Engine
	gateway *stubGateway
	tokens  *memTokenStore
}

// as sets the authenticated user for every request, standing in for the JWT
// middleware.
func as(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.CtxUserIDKey, userID)
		c.Next()
	}
}

func newAlertFixture(t *testing.T, userID string) *alertFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)
	gateway := &stubGateway{}
	tokenStore := newMemTokenStore()

	registry, err := services.NewBlockRegistry(db)
	require.NoError(t, err)
	directory, err := services.NewDeviceDirectory(db)
	require.NoError(t, err)
	store, err := services.NewAlertStore(db, directory, registry)
	require.NoError(t, err)
	dispatcher, err := services.NewPushDispatcher(gateway, tokenStore, registry)
	require.NoError(t, err)
	pipeline, err := services.NewPipeline(registry, directory, store, dispatcher)
	require.NoError(t, err)
	history, err := services.NewAlertHistoryService(db)
	require.NoError(t, err)

	handler, err := NewAlertHandler(pipeline, history)
	require.NoError(t, err)

	router := gin.New()
	auth := as(userID)
	router.POST("/alerts/ingest", auth, handler.Ingest)
	router.GET("/alerts", auth, handler.List)
	router.POST("/alerts/:id/ack", auth, handler.Acknowledge)
	router.POST("/alerts/:id/rating", auth, handler.Rate)

	return &alertFixture{db: db, router: router, gateway: gateway, tokens: tokenStore}
}

func (f *alertFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	f.router.ServeHTTP(w, req)
	return w
}

func ingestBody() map[string]any {
	return map[string]any{
		"device_id": "d1",
		"alert": map[string]any{
			"notification_type": "ml_detection",
			"detected_objects":  []string{"person"},
			"risk_label":        "High",
			"device_identifier": "d1",
			"timestamp":         1000,
		},
	}
}

func TestAlertIngestEndpoint(t *testing.T) {
	fixture := newAlertFixture(t, "u1")
	require.NoError(t, fixture.db.Create(&models.Device{DeviceID: "d1", OwnerUserID: "u2"}).Error)
	fixture.tokens.tokens["u2"] = "TOK"

	w := fixture.do(t, http.MethodPost, "/alerts/ingest", ingestBody())
	require.Equal(t, http.StatusOK, w.Code)

	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.True(t, payload.Success)

	raw, err := json.Marshal(payload.Data)
	require.NoError(t, err)
	var result services.IngestResult
	require.NoError(t, json.Unmarshal(raw, &result))

	require.True(t, result.Success)
	require.Len(t, result.AlertIDs, 1)
	require.Equal(t, 1, result.UsersNotified)
	require.Len(t, result.PushResults, 1)
	require.True(t, result.PushResults[0].Success)
}

func TestAlertIngestEndpointRejectsBadPayload(t *testing.T) {
	fixture := newAlertFixture(t, "u1")

	w := fixture.do(t, http.MethodPost, "/alerts/ingest", map[string]any{"alert": map[string]any{}})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.False(t, payload.Success)
	require.Equal(t, "VALIDATION_ERROR", payload.Error.Code)

	var count int64
	require.NoError(t, fixture.db.Model(&models.Alert{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestAlertIngestEndpointBlockedSender(t *testing.T) {
	fixture := newAlertFixture(t, "u1")
	require.NoError(t, fixture.db.Create(&models.Device{DeviceID: "d1", OwnerUserID: "u2"}).Error)
	require.NoError(t, fixture.db.Create(&models.BlockRecord{
		UserID:    "u1",
		Reason:    "abuse",
		BlockedBy: "admin-1",
		BlockedAt: time.Now().UTC(),
		IsActive:  true,
	}).Error)

	w := fixture.do(t, http.MethodPost, "/alerts/ingest", ingestBody())
	require.Equal(t, http.StatusForbidden, w.Code)

	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, "SENDER_BLOCKED", payload.Error.Code)
	require.Equal(t, "abuse", payload.Error.Reason)
	require.Zero(t, fixture.gateway.sent)
}

func TestAlertHistoryEndpoints(t *testing.T) {
	fixture := newAlertFixture(t, "u2")

	record := models.Alert{
		DeviceID:         "d1",
		DeviceIdentifier: "d1",
		UserID:           "u2",
		RiskLabel:        "Low",
		StoredAt:         time.Now().UTC(),
	}
	require.NoError(t, fixture.db.Create(&record).Error)

	w := fixture.do(t, http.MethodGet, "/alerts?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	raw, err := json.Marshal(payload.Data)
	require.NoError(t, err)
	var rows []models.Alert
	require.NoError(t, json.Unmarshal(raw, &rows))
	require.Len(t, rows, 1)

	w = fixture.do(t, http.MethodPost, "/alerts/"+record.ID+"/ack", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = fixture.do(t, http.MethodPost, "/alerts/"+record.ID+"/rating", map[string]any{"rating": 5, "accuracy": "accurate"})
	require.Equal(t, http.StatusOK, w.Code)

	var updated models.Alert
	require.NoError(t, fixture.db.First(&updated, "id = ?", record.ID).Error)
	require.True(t, updated.Acknowledged)
	require.NotNil(t, updated.Rating)
	require.Equal(t, 5, *updated.Rating)

	// rating outside the allowed range is rejected at binding time
	w = fixture.do(t, http.MethodPost, "/alerts/"+record.ID+"/rating", map[string]any{"rating": 9})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// another user's alert looks like a missing record
	w = fixture.do(t, http.MethodPost, "/alerts/unknown/ack", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
