package scheduler

import (
	"time"

	"github.com/chronocam/chronocam/internal/health"
)

const noTime = "--:--"

// CameraErrorInfo mirrors the last classified camera failure for the
// status API
type CameraErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusReport is the dashboard's status payload
type StatusReport struct {
	Time                string           `json:"time"`
	State               string           `json:"state"`
	Active              bool             `json:"active"`
	Paused              bool             `json:"paused"`
	Generation          uint64           `json:"generation"`
	Sunrise             string           `json:"sunrise"`
	Sunset              string           `json:"sunset"`
	Count               int              `json:"count"`
	LastSnapshot        string           `json:"last_snapshot,omitempty"`
	LastSnapshotTooltip string           `json:"last_snapshot_tooltip,omitempty"`
	CameraError         *CameraErrorInfo `json:"camera_error"`
	CameraHealth        health.Snapshot  `json:"camera_health"`
	LastProbe           *ProbeStatus     `json:"last_probe,omitempty"`
}

// Status assembles the current runtime state for the dashboard
func (s *Scheduler) Status() StatusReport {
	now := time.Now()
	state := s.evaluate(now)

	s.mu.Lock()
	sched := s.sched
	paused := s.paused
	generation := s.generation
	sun := s.sun
	lastErr := s.lastCamErr
	lastProbe := s.lastProbe
	store := s.store
	s.mu.Unlock()

	report := StatusReport{
		Time:         now.Format("15:04:05"),
		State:        string(state),
		Active:       s.windowActive(now),
		Paused:       paused,
		Generation:   generation,
		Sunrise:      noTime,
		Sunset:       noTime,
		Count:        store.Count(),
		CameraHealth: s.health.Current(),
		LastProbe:    lastProbe,
	}

	if sched.UseAstral && sun != nil {
		if t, ok := sun.SunTimes(now); ok {
			report.Sunrise = t.Sunrise.Format("15:04")
			report.Sunset = t.Sunset.Format("15:04")
		}
	}

	if stored, ok := store.Latest(); ok {
		report.LastSnapshot = stored.Timestamp.Format("15:04:05")
		report.LastSnapshotTooltip = stored.Timestamp.Format("02.01.06 15:04")
	}

	if lastErr != nil {
		report.CameraError = &CameraErrorInfo{
			Code:    string(lastErr.Code),
			Message: lastErr.Message,
		}
	}

	return report
}
