package csmaca

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() NetConfig {
	cfg := DefaultNetConfig()
	cfg.NumStations = 3
	cfg.Bitrate = 1000.0
	cfg.Difs = 0.2
	cfg.Sifs = 0.1
	cfg.Slot = 0.05
	cfg.CWMin = 2
	cfg.CWMax = 8
	return cfg
}

func TestValidateAcceptsGoodConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejections(t *testing.T) {
	breakers := map[string]func(cfg *NetConfig){
		"one station":        func(cfg *NetConfig) { cfg.NumStations = 1 },
		"zero bitrate":       func(cfg *NetConfig) { cfg.Bitrate = 0.0 },
		"zero slot":          func(cfg *NetConfig) { cfg.Slot = 0.0 },
		"negative difs":      func(cfg *NetConfig) { cfg.Difs = -0.1 },
		"zero cwmin":         func(cfg *NetConfig) { cfg.CWMin = 0 },
		"cwmax below cwmin":  func(cfg *NetConfig) { cfg.CWMax = 1 },
		"non power of two":   func(cfg *NetConfig) { cfg.CWMax = 6 },
		"zero light speed":   func(cfg *NetConfig) { cfg.SpeedOfLightMps = 0.0 },
		"negative ackmargin": func(cfg *NetConfig) { cfg.AckMarginFactor = -1.0 },
	}

	for name, breaker := range breakers {
		cfg := validConfig()
		breaker(&cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestNumBackoffStages(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, 2, cfg.NumBackoffStages())

	cfg.CWMin = 4
	cfg.CWMax = 4
	assert.Equal(t, 0, cfg.NumBackoffStages())
}

func TestMaxPropagation(t *testing.T) {
	cfg := validConfig()
	cfg.ConnectionRadius = 100.0
	cfg.SpeedOfLightMps = 1e5
	assert.InDelta(t, 1e-3, cfg.MaxPropagation(), 1e-15)
}

func TestNetConfigYAMLRoundTrip(t *testing.T) {
	cfg := validConfig()
	cfg.PayloadSize = 1000.0
	cfg.ActiveSources = []int{1, 2}

	fname := filepath.Join(t.TempDir(), "net.yaml")
	require.NoError(t, cfg.WriteToFile(fname))

	back, err := ReadNetConfig(fname, true, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg, *back)
}

func TestNetConfigJSONRoundTrip(t *testing.T) {
	cfg := validConfig()
	cfg.PayloadSizeKind = "uniform"
	cfg.PayloadSize = 800.0
	cfg.PayloadSpread = 100.0

	fname := filepath.Join(t.TempDir(), "net.json")
	require.NoError(t, cfg.WriteToFile(fname))

	back, err := ReadNetConfig(fname, false, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg, *back)
}

func TestReadNetConfigFromBytes(t *testing.T) {
	dict := []byte("numstations: 7\nbitrate: 2000\n")
	cfg, err := ReadNetConfig("", true, dict)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.NumStations)
	assert.Equal(t, 2000.0, cfg.Bitrate)
	// unmentioned fields keep their defaults
	assert.Equal(t, 6.0, cfg.AckMarginFactor)
}

func TestReadNetConfigMissingFile(t *testing.T) {
	_, err := ReadNetConfig(filepath.Join(t.TempDir(), "absent.yaml"), true, nil)
	assert.Error(t, err)
}
