package ledger

import (
	"battery-scheduler/internal/cost"
	"battery-scheduler/internal/model"
	"battery-scheduler/internal/tariff"
)

// Row is one sample of a solved schedule.
// This is the primary artifact for "what happened" in a schedule.
type Row struct {
	Index   int            `json:"index"`
	Day     int            `json:"day"`
	Weekday tariff.Weekday `json:"-"`
	Hour    float64        `json:"hour"`
	Period  tariff.Period  `json:"period"`

	Load    float64      `json:"load_kwh"`
	Control float64      `json:"control_kw"`
	Action  model.Action `json:"action"`

	StateStart float64 `json:"state_start_kwh"`
	StateEnd   float64 `json:"state_end_kwh"`

	GridDraw float64 `json:"grid_draw_kwh"`

	EnergyCost float64 `json:"energy_cost"`
	DemandCost float64 `json:"demand_cost"`
	Cost       float64 `json:"cost"`
	CumCost    float64 `json:"cum_cost"`
}

// Window is a run of consecutive samples sharing a non-idle action.
type Window struct {
	Action    model.Action `json:"action"`
	Day       int          `json:"day"`
	StartHour float64      `json:"start_hour"`
	EndHour   float64      `json:"end_hour"`
	EnergyKWh float64      `json:"energy_kwh"`
}

// Summary aggregates a report.
type Summary struct {
	Samples             int                               `json:"samples"`
	OptimalCost         float64                           `json:"optimal_cost"`
	BaselineCost        float64                           `json:"baseline_cost"`
	Savings             float64                           `json:"savings"`
	EnergyChargedKWh    float64                           `json:"energy_charged_kwh"`
	EnergyDischargedKWh float64                           `json:"energy_discharged_kwh"`
	PeakDraw            map[tariff.DemandCategory]float64 `json:"peak_draw"`
	BaselinePeakDraw    map[tariff.DemandCategory]float64 `json:"baseline_peak_draw"`
	Breakdown           cost.Breakdown                    `json:"breakdown"`
	ChargeWindows       []Window                          `json:"charge_windows,omitempty"`
	DischargeWindows    []Window                          `json:"discharge_windows,omitempty"`
}

type Report struct {
	Battery model.BatteryParams `json:"battery"`
	Summary Summary             `json:"summary"`
	Rows    []Row               `json:"ledger,omitempty"`
}
