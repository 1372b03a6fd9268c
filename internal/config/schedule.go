package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Camera auth schemes
const (
	AuthNone   = "none"
	AuthBasic  = "basic"
	AuthDigest = "digest"
)

// DefaultFetchTimeout bounds a single snapshot fetch
const DefaultFetchTimeout = 15 * time.Second

var weekdayNames = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Schedule is one generation of the capture schedule. It is immutable
// once handed to the scheduler; a reload produces a new generation
// that is swapped in atomically.
type Schedule struct {
	InstanceName string `json:"instance_name,omitempty"`
	CamURL       string `json:"cam_url" validate:"omitempty,url"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	AuthType     string `json:"auth_type" validate:"oneof=none basic digest"`

	SavePath        string   `json:"save_path" validate:"required"`
	IntervalSeconds int      `json:"interval_seconds" validate:"min=1"`
	ActiveStart     string   `json:"active_start" validate:"required"`
	ActiveEnd       string   `json:"active_end" validate:"required"`
	ActiveDays      []string `json:"active_days" validate:"min=1"`
	Paused          bool     `json:"paused"`
	RetainHistory   bool     `json:"retain_history"`

	UseAstral bool    `json:"use_astral"`
	CityLat   float64 `json:"city_lat" validate:"min=-90,max=90"`
	CityLon   float64 `json:"city_lon" validate:"min=-180,max=180"`
	CityTZ    string  `json:"city_tz"`
}

// DefaultSchedule returns the schedule used on first start
func DefaultSchedule() *Schedule {
	return &Schedule{
		CamURL:          "",
		AuthType:        AuthNone,
		SavePath:        "./pictures",
		IntervalSeconds: 10,
		ActiveStart:     "06:00",
		ActiveEnd:       "18:00",
		ActiveDays:      []string{"Mon", "Tue", "Wed", "Thu", "Fri"},
		RetainHistory:   true,
		UseAstral:       false,
		CityLat:         52.52,
		CityLon:         13.405,
		CityTZ:          "Europe/Berlin",
	}
}

// Interval returns the capture interval as a duration
func (s *Schedule) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// Clone returns a deep copy of the schedule
func (s *Schedule) Clone() *Schedule {
	dup := *s
	dup.ActiveDays = append([]string(nil), s.ActiveDays...)
	return &dup
}

var scheduleValidator = validator.New()

// Validate checks a schedule for correctness. It never mutates the
// schedule; an invalid schedule must not replace a running one.
func (s *Schedule) Validate() error {
	if err := scheduleValidator.Struct(s); err != nil {
		return fmt.Errorf("schedule validation failed: %w", err)
	}

	start, err := ParseClock(s.ActiveStart)
	if err != nil {
		return fmt.Errorf("invalid active_start %q: %w", s.ActiveStart, err)
	}
	end, err := ParseClock(s.ActiveEnd)
	if err != nil {
		return fmt.Errorf("invalid active_end %q: %w", s.ActiveEnd, err)
	}
	// No overnight wraparound: a range that ends before it starts is
	// rejected here, not silently reinterpreted.
	if end < start {
		return fmt.Errorf("active_end %q is before active_start %q", s.ActiveEnd, s.ActiveStart)
	}

	for _, day := range s.ActiveDays {
		if !isWeekdayName(day) {
			return fmt.Errorf("invalid weekday %q (expected one of %s)", day, strings.Join(weekdayNames, ", "))
		}
	}

	if s.UseAstral {
		if _, err := time.LoadLocation(s.CityTZ); err != nil {
			return fmt.Errorf("invalid city_tz %q: %w", s.CityTZ, err)
		}
	}

	return nil
}

// ParseClock parses an HH:MM string into seconds since midnight
func ParseClock(v string) (int, error) {
	parts := strings.Split(v, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM")
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour %q", parts[0])
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute %q", parts[1])
	}
	return h*3600 + m*60, nil
}

func isWeekdayName(day string) bool {
	for _, name := range weekdayNames {
		if day == name {
			return true
		}
	}
	return false
}

// WeekdayName returns the schedule's three-letter name for a weekday
func WeekdayName(d time.Weekday) string {
	// time.Weekday starts at Sunday; the schedule week starts at Monday
	return weekdayNames[(int(d)+6)%7]
}

// ScheduleStore reads and writes the schedule file
type ScheduleStore struct {
	path   string
	logger interface {
		Info(string, ...any)
		Warn(string, ...any)
	}
}

// NewScheduleStore creates a store for the given schedule file path
func NewScheduleStore(path string, logger interface {
	Info(string, ...any)
	Warn(string, ...any)
}) *ScheduleStore {
	return &ScheduleStore{path: path, logger: logger}
}

// Load reads the schedule file. A missing file falls back to
// defaults, which are written back so the file exists from then on.
// An unreadable or invalid file is a hard error: the process must
// not start capturing on a half-understood schedule.
func (st *ScheduleStore) Load() (*Schedule, error) {
	data, err := os.ReadFile(st.path)
	if os.IsNotExist(err) {
		st.logger.Info("schedule file missing, writing defaults", "path", st.path)
		sched := DefaultSchedule()
		if err := st.Save(sched); err != nil {
			st.logger.Warn("failed to write default schedule", "error", err.Error())
		}
		return sched, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read schedule: %w", err)
	}

	sched := DefaultSchedule()
	if err := json.Unmarshal(data, sched); err != nil {
		return nil, fmt.Errorf("parse schedule: %w", err)
	}
	if err := sched.Validate(); err != nil {
		return nil, err
	}
	return sched, nil
}

// Save persists the schedule via a temp file and atomic rename
func (st *ScheduleStore) Save(sched *Schedule) error {
	data, err := json.MarshalIndent(sched, "", "  ")
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(st.path), 0o755); err != nil {
		return fmt.Errorf("create schedule dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(st.path), ".config-*.json")
	if err != nil {
		return fmt.Errorf("create temp schedule: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp schedule: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp schedule: %w", err)
	}
	if err := os.Rename(tmp.Name(), st.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace schedule: %w", err)
	}
	return nil
}
