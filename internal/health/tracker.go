package health

import "sync"

// Status is the derived camera reachability state
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusError    Status = "error"
)

// DefaultFailureThreshold is the number of consecutive failures
// before status flips to error
const DefaultFailureThreshold = 3

// Snapshot is a point-in-time view of tracker state
type Snapshot struct {
	Status               Status `json:"status"`
	ConsecutiveFailures  int    `json:"consecutive_failures"`
	ConsecutiveSuccesses int    `json:"consecutive_successes"`
	LastFailureCode      string `json:"last_failure_code,omitempty"`
	LastFailureMessage   string `json:"last_failure_message,omitempty"`
}

// Tracker maintains consecutive failure/success counters for the
// camera and derives a health status with hysteresis: degradation is
// gradual (threshold consecutive failures reach error) while recovery
// is immediate (one success resets to ok).
type Tracker struct {
	mu        sync.Mutex
	threshold int

	failures    int
	successes   int
	lastCode    string
	lastMessage string
}

// NewTracker creates a tracker. A threshold <= 0 uses the default.
func NewTracker(threshold int) *Tracker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	return &Tracker{threshold: threshold}
}

// RecordSuccess registers a successful capture attempt. It returns
// true when this success recovered the camera from error state.
func (t *Tracker) RecordSuccess() (recovered bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	recovered = t.statusLocked() == StatusError
	t.failures = 0
	t.successes++
	t.lastCode = ""
	t.lastMessage = ""
	return recovered
}

// RecordFailure registers a failed capture attempt with its
// classified code. It returns true when this failure pushed the
// camera into error state.
func (t *Tracker) RecordFailure(code, message string) (entered bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	before := t.statusLocked()
	t.successes = 0
	t.failures++
	t.lastCode = code
	t.lastMessage = message
	return before != StatusError && t.statusLocked() == StatusError
}

// Current returns a snapshot of the tracker state
func (t *Tracker) Current() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Snapshot{
		Status:               t.statusLocked(),
		ConsecutiveFailures:  t.failures,
		ConsecutiveSuccesses: t.successes,
		LastFailureCode:      t.lastCode,
		LastFailureMessage:   t.lastMessage,
	}
}

func (t *Tracker) statusLocked() Status {
	switch {
	case t.failures >= t.threshold:
		return StatusError
	case t.failures > 0:
		return StatusDegraded
	default:
		return StatusOK
	}
}
