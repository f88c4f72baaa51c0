package services

import "strings"

// InboundAlert is the alert payload emitted by a field device. The shape is
// deliberately forgiving: optional fields stay empty and AdditionalData
// carries anything the device models send that the backend does not yet
// understand.
type InboundAlert struct {
	NotificationType string         `json:"notification_type"`
	DetectedObjects  []string       `json:"detected_objects"`
	RiskLabel        string         `json:"risk_label"`
	PredictedRisk    string         `json:"predicted_risk"`
	Description      []string       `json:"description"`
	DeviceIdentifier string         `json:"device_identifier"`
	Timestamp        int64          `json:"timestamp"`
	ModelVersion     string         `json:"model_version"`
	ConfidenceScore  float64        `json:"confidence_score"`
	Screenshots      []string       `json:"screenshots,omitempty"`
	AdditionalData   map[string]any `json:"additional_data,omitempty"`
}

// CorrelationID returns the client-supplied alert id from AdditionalData when
// present. Callers fall back to a generated id otherwise.
func (a InboundAlert) CorrelationID() (string, bool) {
	raw, ok := a.AdditionalData["alert_id"]
	if !ok {
		return "", false
	}
	id, ok := raw.(string)
	if !ok || strings.TrimSpace(id) == "" {
		return "", false
	}
	return id, true
}
