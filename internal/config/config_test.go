package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("RENTER_ADDR", "")
	t.Setenv("PROBE_SUITE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8002", cfg.RenterAddr)
	assert.Equal(t, SuiteMultiUpload, cfg.Suite)
	assert.Equal(t, time.Duration(0), cfg.RequestTimeout)
	assert.Equal(t, "files", cfg.FilesDir)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("RENTER_ADDR", "http://renter:9000")
	t.Setenv("PROBE_SUITE", SuiteAll)
	t.Setenv("PROBE_SEED", "7")
	t.Setenv("WAIT_READY", "15s")
	t.Setenv("REQUEST_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://renter:9000", cfg.RenterAddr)
	assert.Equal(t, SuiteAll, cfg.Suite)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 15*time.Second, cfg.WaitReady)
	assert.Equal(t, time.Duration(0), cfg.RequestTimeout, "invalid values fall back to the default")
}

func TestLoad_UnknownSuite(t *testing.T) {
	t.Setenv("PROBE_SUITE", "stress")
	_, err := Load()
	assert.Error(t, err)
}

func TestDefaultScenario(t *testing.T) {
	sc := DefaultScenario()
	require.NoError(t, sc.Validate())
	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, sc.Files)
	assert.Equal(t, []string{"school", "work", "pics"}, sc.Folders)
	assert.Equal(t, int64(1<<30), sc.ReserveBytes)
	assert.Equal(t, int64(1<<20), sc.MinSize)
	assert.Equal(t, int64(10<<20), sc.MaxSize)
}

func TestLoadScenario_FromINI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.ini")
	content := `
[scenario]
suite = all
files = x.bin, y.bin
folders =
min_size = 1024
max_size = 4096
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	sc, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, SuiteAll, sc.Suite)
	assert.Equal(t, []string{"x.bin", "y.bin"}, sc.Files)
	assert.Empty(t, sc.Folders)
	assert.Equal(t, int64(1024), sc.MinSize)
	assert.Equal(t, int64(4096), sc.MaxSize)
	assert.Equal(t, int64(1<<30), sc.ReserveBytes, "unset keys keep their defaults")
}

func TestLoadScenario_EmptyPathIsDefault(t *testing.T) {
	sc, err := LoadScenario("")
	require.NoError(t, err)
	assert.Equal(t, DefaultScenario(), sc)
}

func TestScenarioValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Scenario)
	}{
		{"min above max", func(s *Scenario) { s.MinSize, s.MaxSize = 10, 5 }},
		{"no files", func(s *Scenario) { s.Files = nil }},
		{"slash in name", func(s *Scenario) { s.Files = []string{"a/b.txt"} }},
		{"file and folder collide", func(s *Scenario) { s.Folders = []string{"a.txt"} }},
		{"duplicate file", func(s *Scenario) { s.Files = []string{"a.txt", "a.txt"} }},
		{"zero reservation", func(s *Scenario) { s.ReserveBytes = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := DefaultScenario()
			tt.mutate(&sc)
			assert.Error(t, sc.Validate())
		})
	}
}
