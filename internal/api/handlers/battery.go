package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"battery-scheduler/internal/api/models"
	"battery-scheduler/internal/config"
	"battery-scheduler/internal/log"

	"github.com/gin-gonic/gin"
)

// BatteryHandler handles battery-related requests
type BatteryHandler struct {
	batteryDir string
}

// NewBatteryHandler creates a new battery handler serving presets from dir
func NewBatteryHandler(dir string) *BatteryHandler {
	// Convert to absolute path for reliability
	if absDir, err := filepath.Abs(dir); err == nil {
		dir = absDir
	}
	return &BatteryHandler{batteryDir: dir}
}

// GetBatteryDir returns the battery directory path (for debugging)
func (h *BatteryHandler) GetBatteryDir() string {
	return h.batteryDir
}

// ListBatteries handles GET /api/v1/batteries
func (h *BatteryHandler) ListBatteries(c *gin.Context) {
	ctx := c.Request.Context()
	batteries := []models.BatteryInfo{}

	entries, err := os.ReadDir(h.batteryDir)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to read battery directory", "dir", h.batteryDir, "error", err)
		c.JSON(http.StatusOK, gin.H{"batteries": batteries})
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(h.batteryDir, entry.Name())
		info, err := h.loadBatteryInfo(path, entry.Name())
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "skipping battery file", "path", path, "error", err)
			continue // Skip invalid files
		}
		batteries = append(batteries, *info)
	}

	c.JSON(http.StatusOK, gin.H{"batteries": batteries})
}

// LoadPreset reads the preset named id, e.g. "home_40kwh" for home_40kwh.yaml.
func (h *BatteryHandler) LoadPreset(id string) (config.BatteryConfig, error) {
	if id == "" || filepath.Base(id) != id || strings.HasPrefix(id, ".") {
		return config.BatteryConfig{}, fmt.Errorf("invalid battery preset %q", id)
	}
	return config.LoadBatteryFile(filepath.Join(h.batteryDir, id+".yaml"))
}

func (h *BatteryHandler) loadBatteryInfo(path, filename string) (*models.BatteryInfo, error) {
	b, err := config.LoadBatteryFile(path)
	if err != nil {
		return nil, err
	}

	// Keep the full filename without extension as the ID for consistency
	id := strings.TrimSuffix(filename, ".yaml")

	name := b.Name
	if name == "" {
		name = id
	}

	return &models.BatteryInfo{
		ID:   id,
		Name: name,
		File: path,
		Specs: models.BatterySpecs{
			CapacityKWh:         b.CapacityKWh,
			PowerLimitKW:        b.PowerLimitKW,
			ChargeEfficiency:    b.ChargeEfficiency,
			DischargeEfficiency: b.DischargeEfficiency,
		},
	}, nil
}
