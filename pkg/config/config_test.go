package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contsub/pkg/clipping"
	"contsub/pkg/fitting"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, FitSpline, cfg.Fit.Method)
	assert.Equal(t, 3, cfg.Fit.Order)
	assert.Greater(t, cfg.Processing.NumWorkers, 0)
}

func TestLoadConfig_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contsub.yaml")
	doc := `
fit:
  method: median
  width: 45
mask:
  enabled: true
  method: pixel
  n: 4
  spread: mad
  dilation: 2
  kernel:
    spectral: [0.25, 0.5, 0.25]
processing:
  numWorkers: 2
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, FitMedian, cfg.Fit.Method)
	assert.Equal(t, 45.0, cfg.Fit.Width)
	assert.Equal(t, 3, cfg.Fit.Order, "unset keys keep their defaults")
	assert.Equal(t, []float64{0.25, 0.5, 0.25}, cfg.Mask.Kernel.Spectral)
	assert.Equal(t, 2, cfg.Processing.NumWorkers)

	fitter, err := cfg.BuildFitter(zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &fitting.MedianFilterFit{}, fitter)

	clip, err := cfg.BuildClipper(zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &clipping.PixelwiseClip{}, clip)
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fit: [unclosed"), 0644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "contsub.yaml")
	cfg := DefaultConfig()
	cfg.Mask.Enabled = true
	cfg.Mask.Method = MaskChannel
	cfg.Output.PreviewDir = "previews"

	require.NoError(t, SaveConfig(cfg, path))
	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "method: spline")
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown fit method", func(c *Config) { c.Fit.Method = "poly" }},
		{"order too high", func(c *Config) { c.Fit.Order = fitting.MaxSplineOrder + 1 }},
		{"zero width", func(c *Config) { c.Fit.Width = 0 }},
		{"unknown mask method", func(c *Config) { c.Mask.Enabled = true; c.Mask.Method = "voxel" }},
		{"unknown spread", func(c *Config) { c.Mask.Enabled = true; c.Mask.Spread = "std" }},
		{"negative n", func(c *Config) { c.Mask.Enabled = true; c.Mask.N = -1 }},
		{"negative dilation", func(c *Config) { c.Mask.Enabled = true; c.Mask.Dilation = -1 }},
		{"two kernels", func(c *Config) {
			c.Mask.Enabled = true
			c.Mask.Kernel.Spectral = []float64{1}
			c.Mask.Kernel.Spatial = [][]float64{{1}}
		}},
		{"channel with dilation", func(c *Config) {
			c.Mask.Enabled = true
			c.Mask.Method = MaskChannel
			c.Mask.Dilation = 1
		}},
		{"negative workers", func(c *Config) { c.Processing.NumWorkers = -2 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestValidate_IgnoresMaskWhenDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mask.Spread = "std"
	assert.NoError(t, cfg.Validate())

	clip, err := cfg.BuildClipper(zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, clip)
}

func TestBuild_Spline(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fit.Entropy = 7
	fitter, err := cfg.BuildFitter(zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "SplineFit", fitter.Name())

	cfg.Mask.Enabled = true
	cfg.Mask.Method = MaskChannel
	clip, err := cfg.BuildClipper(zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "ChannelwiseClip", clip.Name())
}
