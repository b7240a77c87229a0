package tariff

import (
	"fmt"
	"strings"
)

// Period is a time-of-use tariff tier.
type Period int

const (
	Peak Period = iota
	PartPeak
	OffPeak
)

// Periods lists the tiers in classification priority order.
var Periods = []Period{Peak, PartPeak, OffPeak}

func (p Period) String() string {
	switch p {
	case Peak:
		return "peak"
	case PartPeak:
		return "part_peak"
	case OffPeak:
		return "off_peak"
	default:
		return fmt.Sprintf("Period(%d)", int(p))
	}
}

func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "peak":
		return Peak, nil
	case "part_peak", "part-peak", "partpeak":
		return PartPeak, nil
	case "off_peak", "off-peak", "offpeak":
		return OffPeak, nil
	}
	return 0, fmt.Errorf("%w: unknown period %q", ErrInvalidConfig, s)
}

// DemandCategory is a demand-charge billing bucket.
type DemandCategory int

const (
	DemandPeak DemandCategory = iota
	DemandPartPeak
	// DemandMax bills the highest draw over the whole horizon.
	DemandMax
)

var DemandCategories = []DemandCategory{DemandPeak, DemandPartPeak, DemandMax}

func (c DemandCategory) String() string {
	switch c {
	case DemandPeak:
		return "peak"
	case DemandPartPeak:
		return "part_peak"
	case DemandMax:
		return "max"
	default:
		return fmt.Sprintf("DemandCategory(%d)", int(c))
	}
}

func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Period) UnmarshalText(b []byte) error {
	v, err := ParsePeriod(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func (c DemandCategory) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
