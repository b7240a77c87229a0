package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battery-scheduler/internal/api/models"
	"battery-scheduler/internal/config"
	"battery-scheduler/internal/data"
	"battery-scheduler/internal/ledger"
	"battery-scheduler/internal/solver"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "small.yaml"), []byte(`
battery:
  name: Small
  capacity_kwh: 5
  power_limit_kw: 5
  charge_efficiency: 0.95
  discharge_efficiency: 0.9
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	runs := data.NewCache[*ledger.Report](time.Hour)
	t.Cleanup(runs.Close)
	return NewRouter(Options{
		Base:       config.Default(),
		BatteryDir: dir,
		Runs:       runs,
		NewSolver:  func() solver.Solver { return solver.InteriorPoint{} },
	})
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func tenSampleConfig() models.ScheduleConfig {
	return models.ScheduleConfig{Grid: &models.GridConfig{SamplesPerDay: 10, NumDays: 1}}
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestHealthAndNotFound(t *testing.T) {
	r := newTestRouter(t)
	w := do(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = do(t, r, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetTariff(t *testing.T) {
	r := newTestRouter(t)
	w := do(t, r, http.MethodGet, "/api/v1/tariff", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.TariffResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 672, resp.Horizon)
	assert.Equal(t, map[string]int{"peak": 120, "part_peak": 140, "off_peak": 412}, resp.Counts)
	assert.Equal(t, []bool{false, false, false, false, false, true, true}, resp.Weekend)
	assert.Equal(t, "peak", resp.Periods[48])

	w = do(t, r, http.MethodGet, "/api/v1/tariff?samples_per_day=10&num_days=1&start_day=sun", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 10, resp.Counts["off_peak"])

	w = do(t, r, http.MethodGet, "/api/v1/tariff?num_days=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunScheduleAndFetchLedger(t *testing.T) {
	r := newTestRouter(t)
	load := constant(10, 10)
	load[5], load[6], load[7] = 20, 20, 20

	w := do(t, r, http.MethodPost, "/api/v1/schedule", models.ScheduleRequest{
		Config:  tenSampleConfig(),
		Load:    load,
		Options: models.ScheduleOptions{IncludeLedger: true},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.ScheduleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "solved", resp.Status)
	assert.NotEmpty(t, resp.ID)
	assert.Len(t, resp.Ledger, 10)
	assert.Greater(t, resp.Summary.Savings, 0.0)
	assert.InDelta(t, resp.Summary.OptimalCost, resp.Ledger[9].CumCost, 1e-6)
	assert.Equal(t, 20.0, resp.Profile.Max)

	w = do(t, r, http.MethodGet, "/api/v1/schedule/"+resp.ID+"/ledger", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var lr models.LedgerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lr))
	assert.Equal(t, resp.ID, lr.ID)
	assert.Len(t, lr.Ledger, 10)

	w = do(t, r, http.MethodGet, "/api/v1/schedule/unknown/ledger", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunScheduleErrors(t *testing.T) {
	r := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/api/v1/schedule", models.ScheduleRequest{Config: tenSampleConfig(), Load: constant(9, 1)})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/schedule", map[string]any{"config": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/schedule", models.ScheduleRequest{
		Config: models.ScheduleConfig{Grid: &models.GridConfig{SamplesPerDay: 10, NumDays: 1}, BatteryFile: "../etc/passwd"},
		Load:   constant(10, 1),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Exporting 50 kW exceeds what the battery can absorb.
	w = do(t, r, http.MethodPost, "/api/v1/schedule", models.ScheduleRequest{Config: tenSampleConfig(), Load: constant(10, -50)})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	var er models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &er))
	assert.Equal(t, "INFEASIBLE", er.Error.Code)
}

func TestCompareSchedules(t *testing.T) {
	r := newTestRouter(t)
	load := constant(10, 10)
	load[5], load[6], load[7] = 20, 20, 20

	w := do(t, r, http.MethodPost, "/api/v1/schedule/compare", models.CompareScheduleRequest{
		BaseConfig: tenSampleConfig(),
		Load:       load,
		Variations: []models.ScheduleVariation{
			{Name: "preset", BatteryFile: "small"},
			{Name: "default"},
			{Name: "bad", Battery: config.BatteryConfig{ChargeEfficiency: 3}},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.CompareScheduleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Comparison, 3)
	assert.Equal(t, "default", resp.Comparison[0].Name)
	assert.Equal(t, "preset", resp.Comparison[1].Name)
	assert.Equal(t, "bad", resp.Comparison[2].Name)
	assert.NotNil(t, resp.Comparison[2].Error)
	assert.Equal(t, "INVALID_CONFIG", resp.Comparison[2].Error.Code)
	assert.Greater(t, resp.Comparison[0].Summary.Savings, resp.Comparison[1].Summary.Savings)
}

func TestListBatteries(t *testing.T) {
	r := newTestRouter(t)
	w := do(t, r, http.MethodGet, "/api/v1/batteries", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Batteries []models.BatteryInfo `json:"batteries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Batteries, 1)
	assert.Equal(t, "small", resp.Batteries[0].ID)
	assert.Equal(t, "Small", resp.Batteries[0].Name)
	assert.Equal(t, 5.0, resp.Batteries[0].Specs.CapacityKWh)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/schedule", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

type gateSolver struct {
	entered chan struct{}
	release chan struct{}
}

func (g gateSolver) Solve(ctx context.Context, p solver.Program) (solver.Solution, error) {
	g.entered <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
		return solver.Solution{}, ctx.Err()
	}
	return solver.InteriorPoint{}.Solve(ctx, p)
}

func TestRunScheduleBusy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	gate := gateSolver{entered: make(chan struct{}, 4), release: make(chan struct{})}
	runs := data.NewCache[*ledger.Report](time.Hour)
	t.Cleanup(runs.Close)
	r := NewRouter(Options{
		Base:                config.Default(),
		BatteryDir:          t.TempDir(),
		Runs:                runs,
		NewSolver:           func() solver.Solver { return gate },
		MaxConcurrentSolves: 1,
	})
	req := models.ScheduleRequest{Config: tenSampleConfig(), Load: constant(10, 10)}

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() { first <- do(t, r, http.MethodPost, "/api/v1/schedule", req) }()
	<-gate.entered

	w := do(t, r, http.MethodPost, "/api/v1/schedule", req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "SERVICE_BUSY")
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	w = do(t, r, http.MethodPost, "/api/v1/schedule/compare", models.CompareScheduleRequest{
		BaseConfig: tenSampleConfig(),
		Load:       constant(10, 10),
		Variations: []models.ScheduleVariation{{Name: "a"}},
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	close(gate.release)
	assert.Equal(t, http.StatusOK, (<-first).Code)

	// The slot is free again.
	w = do(t, r, http.MethodPost, "/api/v1/schedule", req)
	<-gate.entered
	assert.Equal(t, http.StatusOK, w.Code)
}
