package progress

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/inspection-tracker/internal/common"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidateWeightSum(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights["OTHER"] = 5.005
	assert.NoError(t, cfg.Validate(), "within tolerance")

	cfg.Weights["OTHER"] = 6
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Contains(t, err.Error(), "sum to 100")
}

func TestValidateRanges(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Thresholds.Pending = 120
	cfg.Baseline = 50
	cfg.Max = 40
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "thresholds.pending")
	assert.Contains(t, err.Error(), "must not exceed max")

	cfg = DefaultConfig()
	cfg.Weights["ELEVATOR"] = 0
	assert.ErrorContains(t, cfg.Validate(), "unknown category")
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigUpperCasesCategories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
weights:
  electrical: 50
  plumbing: 50
thresholds:
  in_progress: 40
defect_penalty: 50
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"ELECTRICAL": 50, "PLUMBING": 50}, cfg.Weights)
	assert.Equal(t, 40.0, cfg.Thresholds.InProgress)
	assert.Equal(t, 100.0, cfg.Thresholds.Completed, "unset keys keep defaults")
	assert.Equal(t, 50.0, cfg.DefectPenalty)
}

func TestLoadConfigRejectsBadWeights(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.yaml")
	require.NoError(t, os.WriteFile(path, []byte("weights:\n  electrical: 10\n"), 0o644))
	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.yaml")
	require.NoError(t, WriteDefault(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfigManagerReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.yaml")
	require.NoError(t, WriteDefault(path))

	m, err := NewConfigManager(path, nil)
	require.NoError(t, err)

	var got []Config
	m.OnChange(func(c Config) { got = append(got, c) })

	// invalid edit is ignored
	require.NoError(t, os.WriteFile(path, []byte("weights:\n  electrical: 10\n"), 0o644))
	require.NoError(t, m.v.ReadInConfig())
	m.reload(path)
	assert.Empty(t, got)
	assert.Equal(t, DefaultConfig(), m.Get())

	require.NoError(t, os.WriteFile(path, []byte("weights:\n  electrical: 60\n  other: 40\n"), 0o644))
	require.NoError(t, m.v.ReadInConfig())
	m.reload(path)
	require.Len(t, got, 1)
	assert.Equal(t, map[string]float64{"ELECTRICAL": 60, "OTHER": 40}, m.Get().Weights)
}
