package data

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadCSV(t *testing.T) {
	path := write(t, "load.csv", "time,kwh\n00:00,1.5\n00:15, 2\n00:30,3.25\n")
	load, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2, 3.25}, []float64(load))

	_, err = LoadCSV(write(t, "bad.csv", "time,kwh\n00:00,abc\n"))
	assert.ErrorContains(t, err, ":2:")

	_, err = LoadCSV(write(t, "narrow.csv", "kwh\n1\n"))
	assert.Error(t, err)

	_, err = LoadCSV(write(t, "empty.csv", ""))
	assert.Error(t, err)
}

func TestGenerationAndNetLoad(t *testing.T) {
	path := write(t, "gen.csv", "hour,wh\n0,0\n1,4000\n")
	gen, err := GenerationCSV(path, 4)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0, 1, 1, 1, 1}, gen)

	net, err := NetLoad([]float64{2, 2, 2, 2, 2, 2, 2, 2}, gen)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2, 2, 2, 1, 1, 1, 1}, []float64(net))

	_, err = NetLoad([]float64{1}, gen)
	assert.Error(t, err)
	_, err = GenerationCSV(path, 0)
	assert.Error(t, err)
}

func TestLoadJSON(t *testing.T) {
	load, err := LoadJSON(write(t, "load.json", `{"load": [3, 4], "generation": [1, 1]}`))
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3}, []float64(load))

	_, err = LoadJSON(write(t, "bad.json", `{"load": "x"}`))
	assert.Error(t, err)
}

func TestCache(t *testing.T) {
	c := NewCache[string](time.Hour)
	defer c.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("a", "report")
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "report", v)

	_, ok = c.Get("missing")
	assert.False(t, ok)

	now = now.Add(2 * time.Hour)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())
	c.evictExpired()
	assert.Equal(t, 0, c.Len())

	c.Set("b", strings.Repeat("x", 3))
	c.Clear()
	assert.Equal(t, 0, c.Len())

	var nilCache *Cache[int]
	_, ok = nilCache.Get("a")
	assert.False(t, ok)
	c.Close()
}
