package data

import (
	"encoding/json"
	"fmt"
	"os"

	"battery-scheduler/internal/model"
)

// LoadFile is the JSON shape accepted by LoadJSON.
//
// Example:
//
//	{"load": [10.2, 9.8, ...]}
type LoadFile struct {
	Load       model.LoadProfile `json:"load"`
	Generation []float64         `json:"generation,omitempty"`
}

// LoadJSON reads a load profile, subtracting generation when present.
func LoadJSON(path string) (model.LoadProfile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f LoadFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(f.Generation) == 0 {
		return f.Load, nil
	}
	return NetLoad(f.Load, f.Generation)
}
