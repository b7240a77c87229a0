package models

import (
	"battery-scheduler/internal/analysis"
	"battery-scheduler/internal/ledger"
)

// ScheduleResponse represents the response from a schedule run
type ScheduleResponse struct {
	ID      string                    `json:"id,omitempty"`
	Status  string                    `json:"status"`
	Summary ledger.Summary            `json:"summary"`
	Profile analysis.LoadProfileStats `json:"profile"`
	Ledger  []ledger.Row              `json:"ledger,omitempty"`
}

// LedgerResponse is a cached ledger fetched by run id
type LedgerResponse struct {
	ID     string       `json:"id"`
	Ledger []ledger.Row `json:"ledger"`
}

// CompareScheduleResponse represents the response from a comparison
type CompareScheduleResponse struct {
	Comparison []ComparisonResult `json:"comparison"`
}

// ComparisonResult contains results for one variation
type ComparisonResult struct {
	Rank    int             `json:"rank"`
	Name    string          `json:"name"`
	Status  string          `json:"status"`
	Summary *ledger.Summary `json:"summary,omitempty"`
	Error   *ErrorDetail    `json:"error,omitempty"`
}

// TariffResponse describes how a grid is split into tiers
type TariffResponse struct {
	SamplesPerDay int            `json:"samples_per_day"`
	NumDays       int            `json:"num_days"`
	StartDay      string         `json:"start_day"`
	Horizon       int            `json:"horizon"`
	Counts        map[string]int `json:"counts"`
	Periods       []string       `json:"periods"`
	Weekend       []bool         `json:"weekend"`
}

// BatteryInfo represents information about a battery preset
type BatteryInfo struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	File  string       `json:"file"`
	Specs BatterySpecs `json:"specs"`
}

// BatterySpecs contains battery specifications
type BatterySpecs struct {
	CapacityKWh         float64 `json:"capacity_kwh"`
	PowerLimitKW        float64 `json:"power_limit_kw"`
	ChargeEfficiency    float64 `json:"charge_efficiency"`
	DischargeEfficiency float64 `json:"discharge_efficiency"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
