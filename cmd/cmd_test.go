package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ers/core/dispatch"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	seed, err := filepath.Abs("../fixtures/seed.yaml")
	require.NoError(t, err)
	path := filepath.Join(dir, "config.yaml")
	data := "logging:\n  backend: none\nseed:\n  file: " + seed + "\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	dispatch.ResetMetrics(nil)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestStatsCommand(t *testing.T) {
	t.Setenv("ERS_ENV_FILE", "")
	out := execute(t, "stats", "-c", writeConfig(t))
	var s dispatch.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, 10, s.AvailableVehicles)
	assert.Equal(t, 5, s.Hospitals)
}

func TestDispatchCommand(t *testing.T) {
	t.Setenv("ERS_ENV_FILE", "")
	out := execute(t, "dispatch", "-c", writeConfig(t), "--lat", "22.3072", "--lng", "73.1812", "--priority", "high", "--category", "cardiac")
	var res dispatch.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "AMB001", res.Vehicle.ID)
	assert.NotEmpty(t, res.Hospital.ID)
}

func TestSeedCommand(t *testing.T) {
	t.Setenv("ERS_ENV_FILE", "")
	seed, err := filepath.Abs("../fixtures/seed.yaml")
	require.NoError(t, err)
	out := execute(t, "seed", "-c", writeConfig(t), "-f", seed)
	assert.Contains(t, out, "seeded 10 vehicles and 5 hospitals")
}
