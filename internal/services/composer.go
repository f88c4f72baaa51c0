package services

import (
	"fmt"
	"strings"
)

// NotificationContent is the human-readable rendering of an alert.
type NotificationContent struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Glyph string `json:"glyph"`
}

const (
	fallbackGlyph  = "🔔"
	objectsJoiner  = ", "
	fallbackDetail = "No additional details provided."
)

var severityGlyphs = map[string]string{
	"critical": "🚨",
	"high":     "⚠️",
	"medium":   "⚡",
	"low":      "ℹ️",
}

// ComposeNotification turns an alert payload into notification content. It is
// a pure function: glyph selection is a case-insensitive table lookup with a
// fallback for unknown labels, and the body always ends with either the first
// description line or a fixed fallback.
func ComposeNotification(alert InboundAlert) NotificationContent {
	glyph, ok := severityGlyphs[strings.ToLower(strings.TrimSpace(alert.RiskLabel))]
	if !ok {
		glyph = fallbackGlyph
	}

	detail := fallbackDetail
	if len(alert.Description) > 0 && strings.TrimSpace(alert.Description[0]) != "" {
		detail = alert.Description[0]
	}

	return NotificationContent{
		Title: fmt.Sprintf("%s %s risk detected on %s", glyph, alert.RiskLabel, alert.DeviceIdentifier),
		Body:  fmt.Sprintf("Detected: %s. %s", strings.Join(alert.DetectedObjects, objectsJoiner), detail),
		Glyph: glyph,
	}
}
