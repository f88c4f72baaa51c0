package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/perimeterlab/fieldalert/internal/database/testutil"
	"github.com/perimeterlab/fieldalert/internal/models"
	"github.com/perimeterlab/fieldalert/internal/push"
)

// fakeGateway records sent messages and can be told to fail for specific tokens.
type fakeGateway struct {
	mu       sync.Mutex
	sent     []push.Message
	failFor  map[string]error
	nextID   int
	disabled error // non-nil makes every send fail
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{failFor: map[string]error{}}
}

func (g *fakeGateway) Send(ctx context.Context, msg push.Message) (*push.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.disabled != nil {
		return nil, g.disabled
	}
	if err, ok := g.failFor[msg.Token]; ok {
		return nil, err
	}

	g.sent = append(g.sent, msg)
	g.nextID++
	return &push.Result{MessageID: fmt.Sprintf("msg-%d", g.nextID)}, nil
}

func (g *fakeGateway) sentCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

// fakeTokenStore is an in-memory tokens.Store with error injection.
type fakeTokenStore struct {
	mu        sync.Mutex
	tokens    map[string]string
	lookupErr error
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: map[string]string{}}
}

func (s *fakeTokenStore) Lookup(ctx context.Context, userID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupErr != nil {
		return "", false, s.lookupErr
	}
	token, ok := s.tokens[userID]
	return token, ok, nil
}

func (s *fakeTokenStore) Save(ctx context.Context, userID, token, platform string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[userID] = token
	return nil
}

func (s *fakeTokenStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, userID)
	return nil
}

var errClosed = errors.New("token store offline")

func seedDevice(t *testing.T, db *gorm.DB, deviceID, owner string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Device{
		DeviceID:    deviceID,
		OwnerUserID: owner,
		Name:        "Test Camera",
	}).Error)
}

func seedBlock(t *testing.T, db *gorm.DB, userID, reason string, active bool) {
	t.Helper()
	require.NoError(t, db.Create(&models.BlockRecord{
		UserID:    userID,
		Reason:    reason,
		BlockedBy: "admin-1",
		BlockedAt: time.Now().UTC(),
		IsActive:  active,
	}).Error)
}

func sampleAlert() InboundAlert {
	return InboundAlert{
		NotificationType: "ml_detection",
		DetectedObjects:  []string{"person"},
		RiskLabel:        "Critical",
		PredictedRisk:    "intrusion",
		Description:      []string{"x"},
		DeviceIdentifier: "d1",
		Timestamp:        1000,
		ModelVersion:     "v1",
		ConfidenceScore:  0.9,
	}
}

// mustRegistry wires a BlockRegistry over the shared test database.
func mustRegistry(t *testing.T, db *gorm.DB) *BlockRegistry {
	t.Helper()
	registry, err := NewBlockRegistry(db)
	require.NoError(t, err)
	return registry
}

func mustDirectory(t *testing.T, db *gorm.DB) *DeviceDirectory {
	t.Helper()
	directory, err := NewDeviceDirectory(db)
	require.NoError(t, err)
	return directory
}

func mustStore(t *testing.T, db *gorm.DB) *AlertStore {
	t.Helper()
	store, err := NewAlertStore(db, mustDirectory(t, db), mustRegistry(t, db))
	require.NoError(t, err)
	return store
}

// openClosedDB returns a handle whose underlying connection is already
// closed, so every query fails.
func openClosedDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := testutil.MustOpenTestDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	return db
}
