// Package scheduler runs the capture loop: it decides each tick
// whether a snapshot is due, fetches it, persists it, tracks camera
// health and pushes every state transition to the event bus.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chronocam/chronocam/internal/astro"
	"github.com/chronocam/chronocam/internal/camera"
	"github.com/chronocam/chronocam/internal/config"
	"github.com/chronocam/chronocam/internal/health"
	"github.com/chronocam/chronocam/internal/schedule"
	"github.com/chronocam/chronocam/internal/snapshot"
	"github.com/chronocam/chronocam/pkg/events"
)

// State is the scheduler's current mode
type State string

const (
	StateRunning       State = "running"
	StatePaused        State = "paused"
	StateWaitingWindow State = "waiting_window"
)

const (
	statusHeartbeatInterval   = 10 * time.Second
	cameraHealthcheckInterval = 60 * time.Second
)

// Camera is the snapshot source the scheduler drives
type Camera interface {
	Fetch(ctx context.Context, sched *config.Schedule) ([]byte, error)
	Probe(ctx context.Context, sched *config.Schedule) camera.ProbeResult
	Timeout() time.Duration
}

// Store persists captured images
type Store interface {
	Save(img []byte, ts time.Time) (snapshot.Stored, error)
	Count() int
	Latest() (snapshot.Stored, bool)
	LatestPath() string
	RestoreLatest() error
}

// StoreFactory builds a store for a schedule generation. Reloads
// that change the save path or retention get a fresh store.
type StoreFactory func(sched *config.Schedule) (Store, error)

// ProbeStatus is the result of the most recent reachability check
type ProbeStatus struct {
	Status    string `json:"status"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
	CheckedAt string `json:"checked_at,omitempty"`
}

// Scheduler owns all runtime state. Control entry points are safe to
// call from any goroutine; the state mutex is never held across
// network or disk I/O, and captures are serialized by their own lock
// so a slow dashboard or an in-flight control call never races two
// writes to the latest image.
type Scheduler struct {
	mu        sync.Mutex // guards sched, paused, generation, state, store, sun, lastCamErr, lastProbe
	captureMu sync.Mutex // serializes capture attempts

	sched      *config.Schedule
	generation uint64
	paused     bool
	state      State

	store        Store
	storeFactory StoreFactory
	camera       Camera
	health       *health.Tracker
	bus          *events.Bus
	schedStore   *config.ScheduleStore
	sun          *astro.Resolver

	lastCamErr *camera.Error
	lastProbe  *ProbeStatus

	logger interface {
		Debug(string, ...any)
		Info(string, ...any)
		Warn(string, ...any)
		Error(string, error, ...any)
	}

	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
	reloadCh chan struct{}
}

// New creates a scheduler for the given schedule generation
func New(
	sched *config.Schedule,
	cam Camera,
	storeFactory StoreFactory,
	tracker *health.Tracker,
	bus *events.Bus,
	schedStore *config.ScheduleStore,
	logger interface {
		Debug(string, ...any)
		Info(string, ...any)
		Warn(string, ...any)
		Error(string, error, ...any)
	},
) (*Scheduler, error) {
	store, err := storeFactory(sched)
	if err != nil {
		return nil, fmt.Errorf("create snapshot store: %w", err)
	}

	s := &Scheduler{
		sched:        sched.Clone(),
		paused:       sched.Paused,
		state:        StateWaitingWindow,
		store:        store,
		storeFactory: storeFactory,
		camera:       cam,
		health:       tracker,
		bus:          bus,
		schedStore:   schedStore,
		logger:       logger,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
		reloadCh:     make(chan struct{}, 1),
	}

	if sched.UseAstral {
		sun, err := astro.NewResolver(sched.CityLat, sched.CityLon, sched.CityTZ)
		if err != nil {
			return nil, fmt.Errorf("create sun resolver: %w", err)
		}
		s.sun = sun
	}

	s.warnIntervalVsTimeout(sched)
	return s, nil
}

// Start launches the scheduling loop in a goroutine. Calling it more
// than once is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	if err := s.currentStore().RestoreLatest(); err != nil {
		s.logger.Warn("failed to restore latest image", "error", err.Error())
	}
	go s.run()
}

// Stop requests loop termination and waits until it is done. Safe to
// call repeatedly, and on a scheduler that was never started.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return
	}

	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

func (s *Scheduler) run() {
	defer close(s.doneCh)

	interval := s.currentInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	heartbeat := time.NewTicker(statusHeartbeatInterval)
	defer heartbeat.Stop()
	healthcheck := time.NewTicker(cameraHealthcheckInterval)
	defer healthcheck.Stop()

	ctx := context.Background()

	// Leave waiting_window as soon as the loop is up
	s.transition(s.evaluate(time.Now()))
	s.logger.Info("scheduler started", "interval", interval.String())

	for {
		select {
		case <-s.stopCh:
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		case <-s.reloadCh:
			// A reload's interval applies immediately, not after one
			// more tick of the old cadence; the ticker is still only
			// ever touched by the loop goroutine
			if next := s.currentInterval(); next != interval {
				interval = next
				ticker.Reset(next)
				s.logger.Info("capture interval updated", "interval", next.String())
			}
		case <-heartbeat.C:
			state := s.evaluate(time.Now())
			s.transition(state)
			s.bus.Publish(events.NewStatus(string(state)))
		case <-healthcheck.C:
			s.RunHealthProbe(ctx)
		}
	}
}

// tick performs one scheduled evaluation and, when inside the active
// window, one capture attempt
func (s *Scheduler) tick(ctx context.Context) {
	state := s.evaluate(time.Now())
	s.transition(state)

	switch state {
	case StatePaused:
		s.logger.Debug("scheduler paused, no snapshot")
	case StateWaitingWindow:
		s.logger.Debug("outside active window, skipped")
	case StateRunning:
		s.capture(ctx)
	}
}

// evaluate derives the state for the given moment without mutating
// anything. Pause dominates the window.
func (s *Scheduler) evaluate(now time.Time) State {
	s.mu.Lock()
	paused := s.paused
	s.mu.Unlock()

	if paused {
		return StatePaused
	}
	if s.windowActive(now) {
		return StateRunning
	}
	return StateWaitingWindow
}

// windowActive reports whether the capture window is open at the
// given moment, independent of the pause flag
func (s *Scheduler) windowActive(now time.Time) bool {
	s.mu.Lock()
	sched := s.sched
	sun := s.sun
	s.mu.Unlock()

	var sunTimes *astro.Times
	if sched.UseAstral && sun != nil {
		if t, ok := sun.SunTimes(now); ok {
			sunTimes = &t
		}
	}

	return schedule.IsActive(now, sched, sunTimes)
}

// transition stores the new state and publishes a status event, but
// only when the state actually changed
func (s *Scheduler) transition(state State) {
	s.mu.Lock()
	changed := s.state != state
	s.state = state
	s.mu.Unlock()

	if changed {
		s.logger.Info("scheduler state changed", "state", string(state))
		s.bus.Publish(events.NewStatus(string(state)))
	}
}

// capture performs one serialized capture attempt: fetch, store,
// health accounting, events. At most one capture runs at a time
// system-wide.
func (s *Scheduler) capture(ctx context.Context) *camera.Error {
	s.captureMu.Lock()
	defer s.captureMu.Unlock()

	s.mu.Lock()
	sched := s.sched
	store := s.store
	s.mu.Unlock()

	now := time.Now()
	img, err := s.camera.Fetch(ctx, sched)
	if err != nil {
		camErr := camera.AsError(err)
		s.recordFailure(camErr)
		return camErr
	}

	stored, err := store.Save(img, now)
	if err != nil {
		camErr := &camera.Error{Code: camera.CodeStorageFailed, Message: err.Error()}
		s.recordFailure(camErr)
		return camErr
	}

	s.recordSuccess(stored)
	return nil
}

func (s *Scheduler) recordSuccess(stored snapshot.Stored) {
	recovered := s.health.RecordSuccess()

	s.mu.Lock()
	s.lastCamErr = nil
	s.mu.Unlock()

	s.logger.Info("snapshot saved", "filename", stored.Filename)
	s.bus.Publish(events.NewSnapshot(
		stored.Filename,
		stored.Timestamp.Format("15:04:05"),
		stored.Timestamp.Format("02.01.06 15:04"),
	))
	if recovered {
		s.bus.Publish(events.NewCameraHealth(string(health.StatusOK), "", "camera recovered", timestampNow()))
	}
}

func (s *Scheduler) recordFailure(camErr *camera.Error) {
	entered := s.health.RecordFailure(string(camErr.Code), camErr.Message)

	s.mu.Lock()
	s.lastCamErr = camErr
	s.mu.Unlock()

	s.logger.Error("snapshot failed", camErr, "code", string(camErr.Code))
	s.bus.Publish(events.NewCameraError(string(camErr.Code), camErr.Message))
	if entered {
		s.bus.Publish(events.NewCameraHealth(string(health.StatusError), string(camErr.Code), camErr.Message, timestampNow()))
	}
}

// Pause stops captures until Resume. Idempotent; the paused flag is
// persisted so a restart comes back paused.
func (s *Scheduler) Pause() {
	s.setPaused(true)
}

// Resume re-enables captures and re-evaluates the window immediately
func (s *Scheduler) Resume() {
	s.setPaused(false)
}

func (s *Scheduler) setPaused(value bool) {
	s.mu.Lock()
	changed := s.paused != value
	s.paused = value
	s.sched.Paused = value
	persisted := s.sched.Clone()
	s.mu.Unlock()

	if changed && s.schedStore != nil {
		if err := s.schedStore.Save(persisted); err != nil {
			s.logger.Warn("failed to persist pause state", "error", err.Error())
		}
	}
	if changed {
		if value {
			s.logger.Info("scheduler paused")
		} else {
			s.logger.Info("scheduler resumed")
		}
	}

	s.transition(s.evaluate(time.Now()))
}

// ForceSnapshot performs one capture attempt immediately, regardless
// of pause state or window, without touching the pause flag or the
// regular tick phase. The classified error is returned on failure.
func (s *Scheduler) ForceSnapshot(ctx context.Context) *camera.Error {
	s.logger.Info("manual snapshot requested")
	return s.capture(ctx)
}

// ReloadConfig validates and atomically swaps in a new schedule
// generation. An invalid schedule is rejected wholesale: the running
// generation stays untouched.
func (s *Scheduler) ReloadConfig(next *config.Schedule) error {
	if err := next.Validate(); err != nil {
		return err
	}

	var sun *astro.Resolver
	if next.UseAstral {
		var err error
		sun, err = astro.NewResolver(next.CityLat, next.CityLon, next.CityTZ)
		if err != nil {
			return fmt.Errorf("invalid astral settings: %w", err)
		}
	}

	s.mu.Lock()
	needStore := next.SavePath != s.sched.SavePath || next.RetainHistory != s.sched.RetainHistory
	s.mu.Unlock()

	var store Store
	if needStore {
		var err error
		store, err = s.storeFactory(next)
		if err != nil {
			return fmt.Errorf("snapshot store for new schedule: %w", err)
		}
	}

	s.warnIntervalVsTimeout(next)

	s.mu.Lock()
	s.sched = next.Clone()
	s.paused = next.Paused
	s.generation++
	s.sun = sun
	if store != nil {
		s.store = store
	}
	gen := s.generation
	persisted := s.sched.Clone()
	s.mu.Unlock()

	if s.schedStore != nil {
		if err := s.schedStore.Save(persisted); err != nil {
			s.logger.Warn("failed to persist schedule", "error", err.Error())
		}
	}

	// Nudge the loop so a shorter interval takes effect now instead of
	// after the next tick of the old one
	select {
	case s.reloadCh <- struct{}{}:
	default:
	}

	s.logger.Info("schedule reloaded", "generation", gen, "interval", next.Interval().String())
	s.bus.Publish(events.NewStatus(events.StatusConfigReloaded))
	s.transition(s.evaluate(time.Now()))
	return nil
}

// RunHealthProbe checks camera reachability without capturing and
// publishes the outcome
func (s *Scheduler) RunHealthProbe(ctx context.Context) camera.ProbeResult {
	s.mu.Lock()
	sched := s.sched
	s.mu.Unlock()

	res := s.camera.Probe(ctx, sched)
	checkedAt := timestampNow()

	status := string(health.StatusError)
	if res.OK {
		status = string(health.StatusOK)
	}

	s.mu.Lock()
	s.lastProbe = &ProbeStatus{
		Status:    status,
		Code:      res.Code,
		Message:   res.Message,
		CheckedAt: checkedAt,
	}
	if res.OK {
		s.lastCamErr = nil
	}
	s.mu.Unlock()

	s.bus.Publish(events.NewCameraHealth(status, res.Code, res.Message, checkedAt))
	return res
}

// Generation returns the current schedule generation number
func (s *Scheduler) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Schedule returns a copy of the current schedule
func (s *Scheduler) Schedule() *config.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.Clone()
}

// LatestImagePath returns the path of the well-known latest image
func (s *Scheduler) LatestImagePath() string {
	return s.currentStore().LatestPath()
}

// SnapshotStore exposes the current store for the web layer
func (s *Scheduler) SnapshotStore() Store {
	return s.currentStore()
}

func (s *Scheduler) currentStore() Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store
}

func (s *Scheduler) currentInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.Interval()
}

func (s *Scheduler) warnIntervalVsTimeout(sched *config.Schedule) {
	if sched.Interval() <= s.camera.Timeout() {
		s.logger.Warn("capture interval is not larger than the fetch timeout, ticks may back up",
			"interval", sched.Interval().String(),
			"timeout", s.camera.Timeout().String(),
		)
	}
}

func timestampNow() string {
	return time.Now().Format("2006-01-02 15:04:05")
}
