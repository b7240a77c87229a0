package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"battery-scheduler/internal/api"
	"battery-scheduler/internal/config"
	"battery-scheduler/internal/data"
	"battery-scheduler/internal/ledger"
	"battery-scheduler/internal/log"
	"battery-scheduler/internal/solver"

	"github.com/gin-gonic/gin"
)

func main() {
	ctx := context.Background()

	// Get configuration from environment
	port := os.Getenv("API_PORT")
	if port == "" {
		port = "8080"
	}
	base := config.Default()
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to load config", "path", path, "error", err)
			os.Exit(1)
		}
		base = cfg
	}

	// LOG_LEVEL wins over log_level in the config.
	lvl := os.Getenv("LOG_LEVEL")
	if lvl == "" {
		lvl = base.LogLevel
	}
	if err := log.Configure(lvl); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "invalid log level", "value", lvl, "error", err)
		os.Exit(2)
	}

	lp, err := base.ToSolver()
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "invalid solver config", "error", err)
		os.Exit(1)
	}

	batteryDir := os.Getenv("BATTERY_DIR")
	if batteryDir == "" {
		batteryDir = filepath.Join("examples", "batteries")
	}

	ttl := time.Hour
	if s := os.Getenv("RUN_CACHE_TTL"); s != "" {
		if parsed, err := time.ParseDuration(s); err == nil {
			ttl = parsed
		}
	}
	runs := data.NewCache[*ledger.Report](ttl)
	defer runs.Close()

	maxSolves := 0
	if s := os.Getenv("MAX_CONCURRENT_SOLVES"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			log.Ctx(ctx).ErrorContext(ctx, "invalid MAX_CONCURRENT_SOLVES", "value", s)
			os.Exit(2)
		}
		maxSolves = n
	}

	var origins []string
	if s := os.Getenv("CORS_ORIGINS"); s != "" {
		origins = strings.Split(s, ",")
	}

	// Set up Gin router
	if os.Getenv("API_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.Options{
		Base:           base,
		BatteryDir:     batteryDir,
		Runs:           runs,
		NewSolver:      func() solver.Solver { return lp },
		AllowedOrigins: origins,

		MaxConcurrentSolves: maxSolves,
	})

	// Start server
	addr := fmt.Sprintf(":%s", port)
	log.Ctx(ctx).InfoContext(ctx, "starting API server", "addr", addr, "battery_dir", batteryDir, "run_cache_ttl", ttl)
	if err := router.Run(addr); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server stopped", "error", err)
		os.Exit(1)
	}
}
