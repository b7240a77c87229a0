package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"battery-scheduler/internal/log"
	"battery-scheduler/internal/model"
	"battery-scheduler/internal/solver"
	"battery-scheduler/internal/tariff"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration shape (YAML).
type Config struct {
	Grid   GridConfig   `yaml:"grid"`
	Tariff TariffConfig `yaml:"tariff"`
	Rates  tariff.Rates `yaml:"rates"`
	// Optional: load battery parameters from a separate YAML (e.g. examples/batteries/*.yaml).
	// If both BatteryFile and Battery are provided, Battery overrides BatteryFile.
	BatteryFile string        `yaml:"battery_file"`
	Battery     BatteryConfig `yaml:"battery"`
	Solver      SolverConfig  `yaml:"solver"`
	LogLevel    string        `yaml:"log_level"`
}

type GridConfig struct {
	SamplesPerDay int    `yaml:"samples_per_day"`
	NumDays       int    `yaml:"num_days"`
	StartDay      string `yaml:"start_day"`
}

// TariffConfig holds "HH:MM" windows per tier. An empty off_peak list means
// off-peak is everything not covered by peak or part_peak.
type TariffConfig struct {
	Peak     []WindowConfig `yaml:"peak"`
	PartPeak []WindowConfig `yaml:"part_peak"`
	OffPeak  []WindowConfig `yaml:"off_peak"`
}

type WindowConfig struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

type BatteryConfig struct {
	Name                string  `yaml:"name" json:"name,omitempty"`
	CapacityKWh         float64 `yaml:"capacity_kwh" json:"capacity_kwh"`
	PowerLimitKW        float64 `yaml:"power_limit_kw" json:"power_limit_kw"`
	ChargeEfficiency    float64 `yaml:"charge_efficiency" json:"charge_efficiency"`
	DischargeEfficiency float64 `yaml:"discharge_efficiency" json:"discharge_efficiency"`
}

type SolverConfig struct {
	// Method is "interior" (the default) or "simplex".
	Method        string  `yaml:"method"`
	Tolerance     float64 `yaml:"tolerance"`
	MaxIterations int     `yaml:"max_iterations"`
	// Timeout is a Go duration string, e.g. "30s". Empty means no limit.
	Timeout string `yaml:"timeout"`
}

// Default returns the reference setup: one week of 15-minute samples on the
// default tariff with the 40 kWh battery.
func Default() *Config {
	b := model.DefaultBatteryParams()
	return &Config{
		Grid:    GridConfig{SamplesPerDay: 96, NumDays: 7, StartDay: "monday"},
		Tariff:  windowsToConfig(tariff.DefaultWindows()),
		Rates:   tariff.DefaultRates(),
		Battery: batteryFromParams(b),
	}
}

func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked loads and merges config over the defaults, but does not
// validate it. Useful for debugging/printing partial configs.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	defaults := c.Battery
	c.Battery = BatteryConfig{}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	overlay := c.Battery
	c.Battery = defaults
	// If battery_file is set, load it and merge in any explicit overrides from c.Battery.
	if c.BatteryFile != "" {
		batteryPath := c.BatteryFile
		if !filepath.IsAbs(batteryPath) {
			// Prefer interpreting relative paths as relative to the config file directory,
			// but fall back to the provided path (relative to cwd) if that doesn't exist.
			cand := filepath.Join(filepath.Dir(path), batteryPath)
			if _, err := os.Stat(cand); err == nil {
				batteryPath = cand
			}
		}
		loaded, err := LoadBatteryFile(batteryPath)
		if err != nil {
			return nil, err
		}
		c.Battery = MergeBattery(c.Battery, loaded)
	}
	c.Battery = MergeBattery(c.Battery, overlay)
	return c, nil
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if _, err := c.ToCalendar(); err != nil {
		return fmt.Errorf("tariff config invalid: %w", err)
	}
	if _, err := c.ToRates(); err != nil {
		return fmt.Errorf("rates config invalid: %w", err)
	}
	if err := c.Battery.ToModelParams().Validate(); err != nil {
		return fmt.Errorf("battery config invalid: %w", err)
	}
	if _, err := c.ToSolver(); err != nil {
		return fmt.Errorf("solver config invalid: %w", err)
	}
	if c.LogLevel != "" {
		if _, err := log.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("log_level invalid: %w", err)
		}
	}
	return nil
}

func (c *Config) ToTimeGrid() (tariff.TimeGrid, error) {
	day, err := tariff.ParseWeekday(c.Grid.StartDay)
	if err != nil {
		return tariff.TimeGrid{}, err
	}
	g := tariff.TimeGrid{SamplesPerDay: c.Grid.SamplesPerDay, NumDays: c.Grid.NumDays, StartDay: day}
	return g, g.Validate()
}

func (c *Config) ToWindows() (tariff.Windows, error) {
	var w tariff.Windows
	var err error
	if w.Peak, err = parseWindows(c.Tariff.Peak); err != nil {
		return w, err
	}
	if w.PartPeak, err = parseWindows(c.Tariff.PartPeak); err != nil {
		return w, err
	}
	if w.OffPeak, err = parseWindows(c.Tariff.OffPeak); err != nil {
		return w, err
	}
	return w, w.Validate()
}

// ToCalendar builds the selectors described by the grid and tariff sections.
func (c *Config) ToCalendar() (*tariff.Calendar, error) {
	g, err := c.ToTimeGrid()
	if err != nil {
		return nil, err
	}
	w, err := c.ToWindows()
	if err != nil {
		return nil, err
	}
	return tariff.NewCalendar(g, w)
}

func (c *Config) ToRates() (tariff.Rates, error) {
	return c.Rates, c.Rates.Validate()
}

// ToSolver builds the configured solver. The interior point method is used
// unless method selects the dense simplex.
func (c *Config) ToSolver() (solver.Solver, error) {
	sc := c.Solver
	if sc.Tolerance < 0 {
		return nil, fmt.Errorf("tolerance must be >= 0, got %g", sc.Tolerance)
	}
	if sc.MaxIterations < 0 {
		return nil, fmt.Errorf("max_iterations must be >= 0, got %d", sc.MaxIterations)
	}
	var timeout time.Duration
	if sc.Timeout != "" {
		d, err := time.ParseDuration(sc.Timeout)
		if err != nil {
			return nil, fmt.Errorf("timeout: %w", err)
		}
		timeout = d
	}

	switch strings.ToLower(sc.Method) {
	case "", "interior":
		return solver.InteriorPoint{Tolerance: sc.Tolerance, MaxIterations: sc.MaxIterations, Timeout: timeout}, nil
	case "simplex":
		return solver.Simplex{Tolerance: sc.Tolerance, Timeout: timeout}, nil
	}
	return nil, fmt.Errorf("unknown solver method %q", sc.Method)
}

func (b BatteryConfig) ToModelParams() model.BatteryParams {
	return model.BatteryParams{
		Name:                b.Name,
		CapacityKWh:         b.CapacityKWh,
		PowerLimitKW:        b.PowerLimitKW,
		ChargeEfficiency:    b.ChargeEfficiency,
		DischargeEfficiency: b.DischargeEfficiency,
	}
}

func batteryFromParams(p model.BatteryParams) BatteryConfig {
	return BatteryConfig{
		Name:                p.Name,
		CapacityKWh:         p.CapacityKWh,
		PowerLimitKW:        p.PowerLimitKW,
		ChargeEfficiency:    p.ChargeEfficiency,
		DischargeEfficiency: p.DischargeEfficiency,
	}
}

func parseWindows(in []WindowConfig) ([]tariff.Window, error) {
	out := make([]tariff.Window, 0, len(in))
	for _, wc := range in {
		w, err := tariff.ParseWindow(wc.Start, wc.End)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func windowsToConfig(w tariff.Windows) TariffConfig {
	conv := func(ws []tariff.Window) []WindowConfig {
		out := make([]WindowConfig, 0, len(ws))
		for _, x := range ws {
			out = append(out, WindowConfig{Start: formatHours(x.Start), End: formatHours(x.End)})
		}
		return out
	}
	return TariffConfig{Peak: conv(w.Peak), PartPeak: conv(w.PartPeak), OffPeak: conv(w.OffPeak)}
}

func formatHours(h float64) string {
	mins := int(h*60 + 0.5)
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

type batteryFileWrapper struct {
	Battery BatteryConfig `yaml:"battery"`
}

// LoadBatteryFile reads a battery preset of the form `battery: {...}`.
func LoadBatteryFile(path string) (BatteryConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return BatteryConfig{}, err
	}
	var w batteryFileWrapper
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return BatteryConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return w.Battery, nil
}

// MergeBattery overlays non-zero fields from override onto base.
// This is used when loading a battery file and then applying overrides from the request.
// Note: a zero override cannot clear a field.
func MergeBattery(base, override BatteryConfig) BatteryConfig {
	out := base
	if override.Name != "" {
		out.Name = override.Name
	}
	if override.CapacityKWh != 0 {
		out.CapacityKWh = override.CapacityKWh
	}
	if override.PowerLimitKW != 0 {
		out.PowerLimitKW = override.PowerLimitKW
	}
	if override.ChargeEfficiency != 0 {
		out.ChargeEfficiency = override.ChargeEfficiency
	}
	if override.DischargeEfficiency != 0 {
		out.DischargeEfficiency = override.DischargeEfficiency
	}
	return out
}
