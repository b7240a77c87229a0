package handlers

import (
	"net/http"

	"battery-scheduler/internal/api/models"
	"battery-scheduler/internal/config"
	"battery-scheduler/internal/tariff"

	"github.com/gin-gonic/gin"
)

// TariffHandler describes the tier calendar of the server's tariff
type TariffHandler struct {
	base *config.Config
}

func NewTariffHandler(base *config.Config) *TariffHandler {
	return &TariffHandler{base: base}
}

// GetTariff handles GET /api/v1/tariff
func (h *TariffHandler) GetTariff(c *gin.Context) {
	cfg := *h.base
	var q models.GridConfig
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	if q.SamplesPerDay != 0 {
		cfg.Grid.SamplesPerDay = q.SamplesPerDay
	}
	if q.NumDays != 0 {
		cfg.Grid.NumDays = q.NumDays
	}
	if q.StartDay != "" {
		cfg.Grid.StartDay = q.StartDay
	}

	cal, err := cfg.ToCalendar()
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_CONFIG", err)
		return
	}
	grid := cal.Grid()
	resp := models.TariffResponse{
		SamplesPerDay: grid.SamplesPerDay,
		NumDays:       grid.NumDays,
		StartDay:      grid.StartDay.String(),
		Horizon:       grid.Horizon(),
		Counts:        make(map[string]int, len(tariff.Periods)),
		Periods:       make([]string, grid.Horizon()),
		Weekend:       make([]bool, grid.NumDays),
	}
	for _, p := range tariff.Periods {
		resp.Counts[p.String()] = cal.Count(p)
	}
	for t := range resp.Periods {
		resp.Periods[t] = cal.PeriodAt(t).String()
	}
	for d := range resp.Weekend {
		resp.Weekend[d] = cal.IsWeekend(d)
	}
	c.JSON(http.StatusOK, resp)
}
