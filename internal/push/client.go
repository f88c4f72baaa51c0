package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://fcm.googleapis.com"
	defaultTimeout = 10 * time.Second
	sendPath       = "/fcm/send"
	maxErrorBody   = 2048
)

// Config captures connection parameters for the push gateway client.
type Config struct {
	BaseURL   string
	ServerKey string
	Timeout   time.Duration
}

// Client is an HTTP Gateway implementation. Credentials are validated at
// construction time so the caller can fall back to degraded mode early.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient validates the configuration and builds a gateway client.
func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	cfg.ServerKey = strings.TrimSpace(cfg.ServerKey)
	if cfg.ServerKey == "" {
		return nil, errors.New("push: server key is required")
	}

	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}, nil
}

type sendRequest struct {
	To           string            `json:"to"`
	Notification sendNotification  `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type sendNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

// Send delivers one message through the gateway.
func (c *Client) Send(ctx context.Context, msg Message) (*Result, error) {
	if c == nil {
		return nil, errors.New("push: client not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(msg.Token) == "" {
		return nil, errors.New("push: destination token is required")
	}

	payload, err := json.Marshal(sendRequest{
		To: msg.Token,
		Notification: sendNotification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("push: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+sendPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("push: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+c.cfg.ServerKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("push: gateway call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return nil, fmt.Errorf("push: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Debug("gateway rejected message",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return nil, fmt.Errorf("push: gateway returned status %d", resp.StatusCode)
	}

	var decoded sendResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("push: decode response: %w", err)
	}
	if decoded.Error != "" {
		return nil, fmt.Errorf("push: gateway error: %s", decoded.Error)
	}

	return &Result{MessageID: decoded.MessageID}, nil
}
