package tariff

import (
	"fmt"
	"sort"
	"strings"
)

// Window is a half-open time-of-day interval [Start, End) in hours.
// Windows do not wrap across midnight; split such a window in two.
type Window struct {
	Start float64
	End   float64
}

// Contains checks whether hour h is in [Start, End).
func (w Window) Contains(h float64) bool {
	return h >= w.Start && h < w.End
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", formatHHMM(w.Start), formatHHMM(w.End))
}

// ParseWindow parses a pair of "HH:MM" clock times. "24:00" is accepted as an end time.
func ParseWindow(start, end string) (Window, error) {
	s, err := parseHHMM(start)
	if err != nil {
		return Window{}, err
	}
	e, err := parseHHMM(end)
	if err != nil {
		return Window{}, err
	}
	w := Window{Start: float64(s) / 60, End: float64(e) / 60}
	if err := w.validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

func (w Window) validate() error {
	if w.Start < 0 || w.End > 24 || w.Start >= w.End {
		return fmt.Errorf("%w: window %v must satisfy 0 <= start < end <= 24", ErrInvalidConfig, w)
	}
	return nil
}

func parseHHMM(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: invalid time %q, expected HH:MM", ErrInvalidConfig, s)
	}
	var h, m int
	if _, err := fmt.Sscanf(parts[0], "%d", &h); err != nil {
		return 0, fmt.Errorf("%w: invalid hour in %q", ErrInvalidConfig, s)
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &m); err != nil {
		return 0, fmt.Errorf("%w: invalid minute in %q", ErrInvalidConfig, s)
	}
	if h == 24 && m == 0 {
		return 24 * 60, nil
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: invalid time %q", ErrInvalidConfig, s)
	}
	return h*60 + m, nil
}

func formatHHMM(h float64) string {
	mins := int(h*60 + 0.5)
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

// Windows holds the intraday tier boundaries applied on weekdays.
// When OffPeak is empty it is the complement of Peak and PartPeak.
type Windows struct {
	Peak     []Window
	PartPeak []Window
	OffPeak  []Window
}

// DefaultWindows returns the tier boundaries of the reference tariff.
func DefaultWindows() Windows {
	return Windows{
		Peak:     []Window{{Start: 12, End: 18}},
		PartPeak: []Window{{Start: 8.5, End: 12}, {Start: 18, End: 21.5}},
		OffPeak:  []Window{{Start: 0, End: 8.5}, {Start: 21.5, End: 24}},
	}
}

// For returns the configured windows of tier p.
func (w Windows) For(p Period) []Window {
	switch p {
	case Peak:
		return w.Peak
	case PartPeak:
		return w.PartPeak
	default:
		return w.OffPeak
	}
}

// Validate rejects malformed bounds and overlaps, within a tier or across
// tiers. With explicit off-peak windows the three tiers must also cover the
// whole day.
func (w Windows) Validate() error {
	type tagged struct {
		Window
		period Period
	}
	var all []tagged
	for _, p := range Periods {
		for _, win := range w.For(p) {
			if err := win.validate(); err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
			all = append(all, tagged{Window: win, period: p})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Start < all[j].Start })
	for i := 1; i < len(all); i++ {
		if all[i].Start < all[i-1].End {
			return fmt.Errorf("%w: %s window %v overlaps %s window %v",
				ErrInvalidConfig, all[i].period, all[i].Window, all[i-1].period, all[i-1].Window)
		}
	}
	if len(w.OffPeak) == 0 {
		return nil
	}
	covered := 0.0
	for _, t := range all {
		if t.Start != covered {
			return fmt.Errorf("%w: tariff windows leave %s-%s uncovered",
				ErrInvalidConfig, formatHHMM(covered), formatHHMM(t.Start))
		}
		covered = t.End
	}
	if covered != 24 {
		return fmt.Errorf("%w: tariff windows leave %s-24:00 uncovered", ErrInvalidConfig, formatHHMM(covered))
	}
	return nil
}

// Classify returns the tier of time-of-day h, checking Peak, then PartPeak,
// and falling through to OffPeak.
func (w Windows) Classify(h float64) Period {
	for _, p := range []Period{Peak, PartPeak} {
		for _, win := range w.For(p) {
			if win.Contains(h) {
				return p
			}
		}
	}
	return OffPeak
}
