package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"battery-scheduler/internal/model"
)

// valueColumn is the column holding readings; column 0 is a timestamp.
const valueColumn = 1

// LoadCSV reads site load, one kWh value per sample, from column 1 of a CSV
// file with a header row.
func LoadCSV(path string) (model.LoadProfile, error) {
	vals, err := readColumn(path)
	if err != nil {
		return nil, err
	}
	return model.LoadProfile(vals), nil
}

// GenerationCSV reads hourly generation in Wh and spreads each hour evenly
// over samplesPerHour samples, converted to kWh per sample.
func GenerationCSV(path string, samplesPerHour int) ([]float64, error) {
	if samplesPerHour <= 0 {
		return nil, fmt.Errorf("samples per hour must be > 0, got %d", samplesPerHour)
	}
	hourly, err := readColumn(path)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(hourly)*samplesPerHour)
	for _, wh := range hourly {
		v := wh / float64(samplesPerHour) / 1000
		for i := 0; i < samplesPerHour; i++ {
			out = append(out, v)
		}
	}
	return out, nil
}

// NetLoad subtracts generation from load sample by sample.
func NetLoad(load model.LoadProfile, generation []float64) (model.LoadProfile, error) {
	if len(load) != len(generation) {
		return nil, fmt.Errorf("load has %d samples, generation has %d", len(load), len(generation))
	}
	out := make(model.LoadProfile, len(load))
	for i := range load {
		out[i] = load[i] - generation[i]
	}
	return out, nil
}

func readColumn(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseColumn(f, path)
}

func parseColumn(r io.Reader, name string) ([]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: empty file", name)
		}
		return nil, fmt.Errorf("%s: read header: %w", name, err)
	}
	var out []float64
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if len(rec) <= valueColumn {
			return nil, fmt.Errorf("%s:%d: expected at least %d columns", name, line, valueColumn+1)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[valueColumn]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", name, line, err)
		}
		out = append(out, v)
	}
	return out, nil
}
