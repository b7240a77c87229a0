package tariff

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig is wrapped by every validation error in this package.
var ErrInvalidConfig = errors.New("invalid tariff configuration")

// Weekday is a day of the week counted from Monday, so the zero value is Monday.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func (d Weekday) String() string {
	if d < Monday || d > Sunday {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// IsWeekend reports whether d is Saturday or Sunday.
func (d Weekday) IsWeekend() bool {
	return d == Saturday || d == Sunday
}

// ParseWeekday accepts full or three-letter day names, case-insensitive.
// An empty string parses as Monday.
func ParseWeekday(s string) (Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Monday, nil
	}
	for i, name := range weekdayNames {
		if s == name || s == name[:3] {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown weekday %q", ErrInvalidConfig, s)
}

// TimeGrid is the discretization of the planning horizon.
type TimeGrid struct {
	SamplesPerDay int
	NumDays       int
	// StartDay is the weekday of the first day in the horizon.
	StartDay Weekday
}

// NewTimeGrid returns a validated grid starting on a Monday.
func NewTimeGrid(samplesPerDay, numDays int) (TimeGrid, error) {
	g := TimeGrid{SamplesPerDay: samplesPerDay, NumDays: numDays}
	if err := g.Validate(); err != nil {
		return TimeGrid{}, err
	}
	return g, nil
}

func (g TimeGrid) Validate() error {
	if g.SamplesPerDay <= 0 {
		return fmt.Errorf("%w: samples per day must be > 0, got %d", ErrInvalidConfig, g.SamplesPerDay)
	}
	if g.NumDays <= 0 {
		return fmt.Errorf("%w: number of days must be > 0, got %d", ErrInvalidConfig, g.NumDays)
	}
	if g.StartDay < Monday || g.StartDay > Sunday {
		return fmt.Errorf("%w: invalid start day %d", ErrInvalidConfig, int(g.StartDay))
	}
	return nil
}

// Horizon is the total number of samples.
func (g TimeGrid) Horizon() int {
	return g.SamplesPerDay * g.NumDays
}

// Step is the sample duration in hours.
func (g TimeGrid) Step() float64 {
	return 24 / float64(g.SamplesPerDay)
}

// HourOfDay returns the time of day, in hours, of intraday index i.
// Computed as a single division so grid points that are exactly
// representable (12.0, 8.5, ...) compare exactly against window bounds.
func (g TimeGrid) HourOfDay(i int) float64 {
	return float64(i*24) / float64(g.SamplesPerDay)
}

// DayOf returns the day index of horizon sample t.
func (g TimeGrid) DayOf(t int) int {
	return t / g.SamplesPerDay
}

// Weekday returns the day of the week of day index d. The calendar cycles a
// fixed seven-day week from StartDay regardless of NumDays.
func (g TimeGrid) Weekday(d int) Weekday {
	return Weekday((int(g.StartDay) + d) % 7)
}
