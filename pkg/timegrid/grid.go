// Package timegrid models the discrete wall-clock grid timetable entries are
// aligned to and the half-open interval arithmetic used for conflict checks.
package timegrid

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

var (
	// ErrInvalidClock is returned for values that are not zero-padded HH:MM.
	ErrInvalidClock = errors.New("invalid clock value")
	// ErrInvalidRange is returned when a range is off-grid or not increasing.
	ErrInvalidRange = errors.New("invalid time range")
	// ErrInvalidDay is returned for days outside Monday..Saturday.
	ErrInvalidDay = errors.New("invalid day of week")
)

// Clock is a time of day in minutes after midnight.
type Clock int

// ParseClock parses a strict, zero-padded 24h "HH:MM" value.
func ParseClock(raw string) (Clock, error) {
	if len(raw) != 5 || raw[2] != ':' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, raw)
	}
	h, okH := twoDigits(raw[0], raw[1])
	m, okM := twoDigits(raw[3], raw[4])
	if !okH || !okM || h > 23 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, raw)
	}
	return Clock(h*60 + m), nil
}

func twoDigits(a, b byte) (int, bool) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, false
	}
	return int(a-'0')*10 + int(b-'0'), true
}

// String renders the clock as HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// ClockOf returns the wall-clock minute of t in its own location.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

// Overlaps reports whether [s1,e1) and [s2,e2) intersect. Values must share
// the zero-padded HH:MM format so lexical order equals time order.
func Overlaps(s1, e1, s2, e2 string) bool {
	return s1 < e2 && s2 < e1
}

// Grid is an ordered set of slot boundaries plus the teaching days.
type Grid struct {
	slots []string
	index map[string]int
	days  []string
}

// DefaultSlots are the boundaries used when nothing else is configured.
var DefaultSlots = []string{"10:00", "10:45", "11:30", "12:15", "13:00", "13:45", "14:30", "15:15", "16:00"}

// New builds a grid from explicit boundaries. Boundaries must be valid clocks
// in strictly increasing order; at least two are required.
func New(slots []string, days []string) (*Grid, error) {
	if len(slots) < 2 {
		return nil, fmt.Errorf("grid needs at least two boundaries, got %d", len(slots))
	}
	g := &Grid{slots: make([]string, 0, len(slots)), index: make(map[string]int, len(slots))}
	prev := Clock(-1)
	for _, raw := range slots {
		c, err := ParseClock(strings.TrimSpace(raw))
		if err != nil {
			return nil, err
		}
		if c <= prev {
			return nil, fmt.Errorf("grid boundaries must increase: %s after %s", c, prev)
		}
		prev = c
		g.index[c.String()] = len(g.slots)
		g.slots = append(g.slots, c.String())
	}

	if len(days) == 0 {
		days = Weekdays
	}
	for _, raw := range days {
		day, err := ParseWeekday(raw)
		if err != nil {
			return nil, err
		}
		g.days = append(g.days, day)
	}
	return g, nil
}

// Stepped builds a grid from start to end inclusive in fixed steps.
func Stepped(start, end string, step time.Duration, days []string) (*Grid, error) {
	s, err := ParseClock(start)
	if err != nil {
		return nil, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return nil, err
	}
	minutes := int(step / time.Minute)
	if minutes <= 0 {
		return nil, fmt.Errorf("grid step must be at least one minute, got %s", step)
	}
	var slots []string
	for c := s; c <= e; c += Clock(minutes) {
		slots = append(slots, c.String())
	}
	return New(slots, days)
}

// Default returns the 10:00–16:00, 45 minute grid.
func Default() *Grid {
	g, err := New(DefaultSlots, nil)
	if err != nil {
		panic(err)
	}
	return g
}

type fileGrid struct {
	Days  []string `yaml:"days"`
	Slots []string `yaml:"slots"`
	Start string   `yaml:"start"`
	End   string   `yaml:"end"`
	Step  string   `yaml:"step"`
}

// Load reads a YAML grid definition. Either an explicit `slots` list or the
// `start`/`end`/`step` triple must be present.
func Load(path string) (*Grid, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read grid file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML grid definition.
func Parse(raw []byte) (*Grid, error) {
	var def fileGrid
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("decode grid file: %w", err)
	}
	if len(def.Slots) > 0 {
		return New(def.Slots, def.Days)
	}
	step, err := time.ParseDuration(def.Step)
	if err != nil {
		return nil, fmt.Errorf("grid step: %w", err)
	}
	return Stepped(def.Start, def.End, step, def.Days)
}

// Slots returns a copy of the boundaries.
func (g *Grid) Slots() []string {
	out := make([]string, len(g.slots))
	copy(out, g.slots)
	return out
}

// Days returns the teaching days in grid order.
func (g *Grid) Days() []string {
	out := make([]string, len(g.days))
	copy(out, g.days)
	return out
}

// Index returns the position of a boundary.
func (g *Grid) Index(value string) (int, bool) {
	i, ok := g.index[value]
	return i, ok
}

// Contains reports whether value is a grid boundary.
func (g *Grid) Contains(value string) bool {
	_, ok := g.index[value]
	return ok
}

// HasDay reports whether day is a teaching day of this grid.
func (g *Grid) HasDay(day string) bool {
	for _, d := range g.days {
		if d == day {
			return true
		}
	}
	return false
}

// ValidateRange checks that both ends are grid boundaries and start precedes end.
func (g *Grid) ValidateRange(start, end string) error {
	si, ok := g.index[start]
	if !ok {
		return fmt.Errorf("%w: start %q is not a grid boundary", ErrInvalidRange, start)
	}
	ei, ok := g.index[end]
	if !ok {
		return fmt.Errorf("%w: end %q is not a grid boundary", ErrInvalidRange, end)
	}
	if si >= ei {
		return fmt.Errorf("%w: start %s must precede end %s", ErrInvalidRange, start, end)
	}
	return nil
}
