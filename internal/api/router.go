// Package api wires the HTTP surface over the schedule solver.
package api

import (
	"net/http"
	"runtime"

	"battery-scheduler/internal/api/handlers"
	"battery-scheduler/internal/api/middleware"
	"battery-scheduler/internal/config"
	"battery-scheduler/internal/data"
	"battery-scheduler/internal/ledger"
	"battery-scheduler/internal/solver"

	"github.com/gin-gonic/gin"
)

type Options struct {
	// Base supplies the settings requests leave out.
	Base       *config.Config
	BatteryDir string
	Runs       *data.Cache[*ledger.Report]
	NewSolver  func() solver.Solver
	// AllowedOrigins for CORS; empty allows any origin.
	AllowedOrigins []string
	// MaxConcurrentSolves caps the solves running at once. Zero means
	// GOMAXPROCS.
	MaxConcurrentSolves int
}

func NewRouter(opts Options) *gin.Engine {
	router := gin.New()

	// Apply middleware
	router.Use(middleware.CORS(opts.AllowedOrigins...))
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())

	// Initialize handlers
	batteryHandler := handlers.NewBatteryHandler(opts.BatteryDir)
	maxSolves := opts.MaxConcurrentSolves
	if maxSolves <= 0 {
		maxSolves = runtime.GOMAXPROCS(0)
	}
	scheduleHandler := handlers.NewScheduleHandler(opts.Base, batteryHandler, opts.Runs, opts.NewSolver, maxSolves)
	tariffHandler := handlers.NewTariffHandler(opts.Base)

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API routes
	api := router.Group("/api/v1")
	{
		api.POST("/schedule", scheduleHandler.RunSchedule)
		api.GET("/schedule/:id/ledger", scheduleHandler.GetLedger)
		api.POST("/schedule/compare", scheduleHandler.CompareSchedules)

		api.GET("/tariff", tariffHandler.GetTariff)
		api.GET("/batteries", batteryHandler.ListBatteries)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "Not found"}})
	})
	return router
}
