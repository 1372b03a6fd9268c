package events

// Type discriminates live event payloads on the wire
type Type string

const (
	TypeSnapshot     Type = "snapshot"
	TypeStatus       Type = "status"
	TypeCameraError  Type = "camera_error"
	TypeCameraHealth Type = "camera_health"
)

// Scheduler status values carried by status events
const (
	StatusRunning        = "running"
	StatusPaused         = "paused"
	StatusWaitingWindow  = "waiting_window"
	StatusConfigReloaded = "config_reloaded"
)

// Event is a single live update pushed to dashboard observers.
// Only the fields relevant to the event type are set; the JSON
// encoding is flat with a "type" discriminator.
type Event struct {
	Type          Type   `json:"type"`
	Status        string `json:"status,omitempty"`
	Filename      string `json:"filename,omitempty"`
	Timestamp     string `json:"timestamp,omitempty"`
	TimestampFull string `json:"timestamp_full,omitempty"`
	Code          string `json:"code,omitempty"`
	Message       string `json:"message,omitempty"`
	CheckedAt     string `json:"checked_at,omitempty"`
}

// NewSnapshot builds a snapshot event for a stored capture
func NewSnapshot(filename, timestamp, timestampFull string) Event {
	return Event{
		Type:          TypeSnapshot,
		Filename:      filename,
		Timestamp:     timestamp,
		TimestampFull: timestampFull,
	}
}

// NewStatus builds a scheduler status event
func NewStatus(status string) Event {
	return Event{Type: TypeStatus, Status: status}
}

// NewCameraError builds a classified camera failure event
func NewCameraError(code, message string) Event {
	return Event{Type: TypeCameraError, Code: code, Message: message}
}

// NewCameraHealth builds a camera health transition event
func NewCameraHealth(status, code, message, checkedAt string) Event {
	return Event{
		Type:      TypeCameraHealth,
		Status:    status,
		Code:      code,
		Message:   message,
		CheckedAt: checkedAt,
	}
}
