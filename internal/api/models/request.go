package models

import (
	"battery-scheduler/internal/config"
	"battery-scheduler/internal/tariff"
)

// ScheduleRequest represents the request body for solving a schedule
type ScheduleRequest struct {
	Config     ScheduleConfig  `json:"config"`
	Load       []float64       `json:"load" binding:"required"`
	Generation []float64       `json:"generation,omitempty"`
	Options    ScheduleOptions `json:"options,omitempty"`
}

// ScheduleConfig overrides the server defaults. Omitted sections keep them.
type ScheduleConfig struct {
	Grid        *GridConfig          `json:"grid,omitempty"`
	Tariff      *TariffConfig        `json:"tariff,omitempty"`
	Rates       *tariff.Rates        `json:"rates,omitempty"`
	BatteryFile string               `json:"battery_file,omitempty"`
	Battery     config.BatteryConfig `json:"battery,omitempty"`
}

// GridConfig defines the time discretization
type GridConfig struct {
	SamplesPerDay int    `json:"samples_per_day" form:"samples_per_day"`
	NumDays       int    `json:"num_days" form:"num_days"`
	StartDay      string `json:"start_day,omitempty" form:"start_day"`
}

// TariffConfig holds "HH:MM" windows per tier
type TariffConfig struct {
	Peak     []config.WindowConfig `json:"peak"`
	PartPeak []config.WindowConfig `json:"part_peak"`
	OffPeak  []config.WindowConfig `json:"off_peak,omitempty"`
}

// ScheduleOptions contains optional schedule parameters
type ScheduleOptions struct {
	IncludeLedger bool `json:"include_ledger,omitempty"` // default: false
}

// CompareScheduleRequest represents a request to compare batteries on one load
type CompareScheduleRequest struct {
	BaseConfig ScheduleConfig      `json:"base_config"`
	Load       []float64           `json:"load" binding:"required"`
	Generation []float64           `json:"generation,omitempty"`
	Variations []ScheduleVariation `json:"variations" binding:"required,min=1"`
}

// ScheduleVariation defines a battery to test
type ScheduleVariation struct {
	Name        string               `json:"name" binding:"required"`
	BatteryFile string               `json:"battery_file,omitempty"`
	Battery     config.BatteryConfig `json:"battery"`
}
