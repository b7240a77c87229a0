package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"battery-scheduler/internal/analysis"
	"battery-scheduler/internal/api/models"
	"battery-scheduler/internal/config"
	"battery-scheduler/internal/cost"
	"battery-scheduler/internal/data"
	"battery-scheduler/internal/ledger"
	"battery-scheduler/internal/log"
	"battery-scheduler/internal/model"
	"battery-scheduler/internal/schedule"
	"battery-scheduler/internal/solver"
	"battery-scheduler/internal/tariff"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// ScheduleHandler handles schedule-related requests
type ScheduleHandler struct {
	base      *config.Config
	presets   *BatteryHandler
	runs      *data.Cache[*ledger.Report]
	newSolver func() solver.Solver

	// slots admits at most maxSolves solves across all requests.
	slots     *semaphore.Weighted
	maxSolves int64
}

// NewScheduleHandler creates a new schedule handler. base supplies every
// setting a request leaves out. Requests arriving while maxSolves solves are
// running are refused with 503.
func NewScheduleHandler(base *config.Config, presets *BatteryHandler, runs *data.Cache[*ledger.Report], newSolver func() solver.Solver, maxSolves int) *ScheduleHandler {
	if maxSolves < 1 {
		maxSolves = 1
	}
	return &ScheduleHandler{
		base:      base,
		presets:   presets,
		runs:      runs,
		newSolver: newSolver,
		slots:     semaphore.NewWeighted(int64(maxSolves)),
		maxSolves: int64(maxSolves),
	}
}

// admit claims n solve slots without waiting.
func (h *ScheduleHandler) admit(c *gin.Context, n int64) bool {
	if h.slots.TryAcquire(n) {
		return true
	}
	c.Header("Retry-After", "5")
	writeError(c, http.StatusServiceUnavailable, "SERVICE_BUSY",
		fmt.Errorf("%d schedule solves already running", h.maxSolves))
	return false
}

// RunSchedule handles POST /api/v1/schedule
func (h *ScheduleHandler) RunSchedule(c *gin.Context) {
	ctx := c.Request.Context()
	var req models.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}

	cfg, err := h.buildConfig(req.Config)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_CONFIG", err)
		return
	}
	load, err := netLoad(req.Load, req.Generation)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_LOAD", err)
		return
	}
	cal, err := cfg.ToCalendar()
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_CONFIG", err)
		return
	}
	profile, err := analysis.Profile(cal, load)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_LOAD", err)
		return
	}

	if !h.admit(c, 1) {
		return
	}
	defer h.slots.Release(1)

	params := cfg.Battery.ToModelParams()
	problem, err := schedule.NewProblem(cal, h.newSolver())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err)
		return
	}
	res, err := problem.Run(ctx, cfg.Rates, params, load)
	if err != nil {
		status, detail := runErrorDetail(err)
		c.JSON(status, models.ErrorResponse{Error: detail})
		return
	}
	samples, err := problem.CostOverTime(cfg.Rates, params, res.Control, load)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err)
		return
	}
	report, err := ledger.Build(cal, params, load, res, samples)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err)
		return
	}

	id := uuid.NewString()
	h.runs.Set(id, report)
	log.Ctx(ctx).InfoContext(ctx, "schedule stored", "run_id", id, "savings", report.Summary.Savings)

	resp := models.ScheduleResponse{
		ID:      id,
		Status:  schedule.StatusSolved.String(),
		Summary: report.Summary,
		Profile: profile,
	}
	if req.Options.IncludeLedger {
		resp.Ledger = report.Rows
	}
	c.JSON(http.StatusOK, resp)
}

// GetLedger handles GET /api/v1/schedule/:id/ledger
func (h *ScheduleHandler) GetLedger(c *gin.Context) {
	id := c.Param("id")
	report, ok := h.runs.Get(id)
	if !ok {
		writeError(c, http.StatusNotFound, "NOT_FOUND", errors.New("no schedule with id "+id+"; runs expire after the cache TTL"))
		return
	}
	c.JSON(http.StatusOK, models.LedgerResponse{ID: id, Ledger: report.Rows})
}

// CompareSchedules handles POST /api/v1/schedule/compare
func (h *ScheduleHandler) CompareSchedules(c *gin.Context) {
	ctx := c.Request.Context()
	var req models.CompareScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}

	cfg, err := h.buildConfig(req.BaseConfig)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_CONFIG", err)
		return
	}
	load, err := netLoad(req.Load, req.Generation)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_LOAD", err)
		return
	}
	cal, err := cfg.ToCalendar()
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_CONFIG", err)
		return
	}

	scenarios := make([]model.Scenario, 0, len(req.Variations))
	for _, v := range req.Variations {
		battery := cfg.Battery
		if v.BatteryFile != "" {
			preset, err := h.presets.LoadPreset(v.BatteryFile)
			if err != nil {
				writeError(c, http.StatusBadRequest, "INVALID_CONFIG", err)
				return
			}
			battery = config.MergeBattery(battery, preset)
		}
		battery = config.MergeBattery(battery, v.Battery)
		scenarios = append(scenarios, model.Scenario{Name: v.Name, Battery: battery.ToModelParams()})
	}

	// The comparison runs its scenarios on the slots it was admitted with.
	n := min(int64(len(scenarios)), h.maxSolves)
	if n == 0 {
		n = 1
	}
	if !h.admit(c, n) {
		return
	}
	defer h.slots.Release(n)
	own := semaphore.NewWeighted(n)
	newSolver := func() solver.Solver { return solver.Limit(h.newSolver(), own) }

	outcomes, err := analysis.Compare(ctx, cal, cfg.Rates, load, scenarios, newSolver)
	if err != nil {
		status, detail := runErrorDetail(err)
		c.JSON(status, models.ErrorResponse{Error: detail})
		return
	}

	comparison := make([]models.ComparisonResult, 0, len(outcomes))
	for _, o := range outcomes {
		r := models.ComparisonResult{Rank: o.Rank, Name: o.Scenario.Label()}
		if o.Err != nil {
			_, detail := runErrorDetail(o.Err)
			r.Status = statusOf(o.Err).String()
			r.Error = &detail
			comparison = append(comparison, r)
			continue
		}
		report, err := buildReport(cal, cfg.Rates, o.Scenario.Battery, load, o.Result)
		if err != nil {
			writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err)
			return
		}
		r.Status = schedule.StatusSolved.String()
		r.Summary = &report.Summary
		comparison = append(comparison, r)
	}

	c.JSON(http.StatusOK, models.CompareScheduleResponse{Comparison: comparison})
}

func (h *ScheduleHandler) buildConfig(req models.ScheduleConfig) (*config.Config, error) {
	cfg := *h.base
	if req.Grid != nil {
		cfg.Grid = config.GridConfig{
			SamplesPerDay: req.Grid.SamplesPerDay,
			NumDays:       req.Grid.NumDays,
			StartDay:      req.Grid.StartDay,
		}
	}
	if req.Tariff != nil {
		cfg.Tariff = config.TariffConfig{
			Peak:     req.Tariff.Peak,
			PartPeak: req.Tariff.PartPeak,
			OffPeak:  req.Tariff.OffPeak,
		}
	}
	if req.Rates != nil {
		cfg.Rates = *req.Rates
	}
	// Merge: battery file is base, request config is override
	if req.BatteryFile != "" {
		preset, err := h.presets.LoadPreset(req.BatteryFile)
		if err != nil {
			return nil, err
		}
		cfg.Battery = config.MergeBattery(cfg.Battery, preset)
	}
	cfg.Battery = config.MergeBattery(cfg.Battery, req.Battery)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func netLoad(load, generation []float64) (model.LoadProfile, error) {
	if len(generation) == 0 {
		return load, nil
	}
	return data.NetLoad(load, generation)
}

func buildReport(cal *tariff.Calendar, rates tariff.Rates, params model.BatteryParams, load []float64, res *schedule.Result) (*ledger.Report, error) {
	b, err := model.NewBattery(params)
	if err != nil {
		return nil, err
	}
	m, err := cost.New(cal, rates, b)
	if err != nil {
		return nil, err
	}
	samples, err := m.OverTime(res.Control, load)
	if err != nil {
		return nil, err
	}
	return ledger.Build(cal, params, load, res, samples)
}

func statusOf(err error) schedule.Status {
	switch {
	case errors.Is(err, schedule.ErrInfeasible):
		return schedule.StatusInfeasible
	case errors.Is(err, schedule.ErrConfiguration):
		return schedule.StatusUnsolved
	}
	return schedule.StatusSolverError
}
