// Package config provides configuration loading and management for contsub.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"contsub/pkg/clipping"
	"contsub/pkg/fitting"
)

// ErrInvalidConfig is returned by Validate for out-of-range or unknown values.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Fitting and clipping method names accepted in the configuration.
const (
	FitSpline   = "spline"
	FitMedian   = "median"
	MaskPixel   = "pixel"
	MaskChannel = "channel"
)

// Kernel holds an optional smoothing kernel for pixelwise clipping. At most
// one of the fields may be set.
type Kernel struct {
	// Spectral smooths along the channel axis only
	Spectral []float64 `yaml:"spectral,omitempty"`

	// Spatial smooths each channel map, rows then columns
	Spatial [][]float64 `yaml:"spatial,omitempty"`

	// Cube smooths in all three dimensions, channel planes first
	Cube [][][]float64 `yaml:"cube,omitempty"`
}

func (k Kernel) empty() bool {
	return len(k.Spectral) == 0 && len(k.Spatial) == 0 && len(k.Cube) == 0
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Continuum fitting parameters
	Fit struct {
		// Method selects the fitting strategy: spline or median
		Method string `yaml:"method"`

		// Order is the B-spline polynomial order (spline only)
		Order int `yaml:"order"`

		// Width is the knot spacing or median window in km/s
		Width float64 `yaml:"width"`

		// Entropy seeds the knot jitter stream (spline only)
		Entropy uint64 `yaml:"entropy"`

		// Sequence selects an independent stream for the same entropy
		Sequence uint64 `yaml:"sequence"`
	} `yaml:"fit"`

	// Line masking parameters
	Mask struct {
		// Enabled turns mask generation on
		Enabled bool `yaml:"enabled"`

		// Method selects the clipping strategy: pixel or channel
		Method string `yaml:"method"`

		// N is the clip threshold in units of the spread
		N float64 `yaml:"n"`

		// Spread is the spread estimator: rms or mad
		Spread string `yaml:"spread"`

		// Dilation is the number of binary dilation passes (pixel only)
		Dilation int `yaml:"dilation"`

		// Kernel is the optional smoothing kernel (pixel only)
		Kernel Kernel `yaml:"kernel"`
	} `yaml:"mask"`

	// Processing parameters
	Processing struct {
		// NumWorkers specifies how many goroutines fit pixels in parallel
		NumWorkers int `yaml:"numWorkers"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// PreviewDir receives channel-map previews when not empty
		PreviewDir string `yaml:"previewDir"`

		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`

		// LogJSON writes logs as JSON lines instead of console text
		LogJSON bool `yaml:"logJSON"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Fit.Method = FitSpline
	cfg.Fit.Order = 3
	cfg.Fit.Width = 300
	cfg.Fit.Entropy = 0
	cfg.Fit.Sequence = 0

	cfg.Mask.Enabled = false
	cfg.Mask.Method = MaskPixel
	cfg.Mask.N = 3
	cfg.Mask.Spread = clipping.SpreadRMS.String()
	cfg.Mask.Dilation = 0

	cfg.Processing.NumWorkers = runtime.NumCPU() // Use all available cores by default

	cfg.Output.Verbose = false
	cfg.Output.LogJSON = false

	return cfg
}

// Validate checks every enumerated and numeric field.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	switch strings.ToLower(c.Fit.Method) {
	case FitSpline:
		if c.Fit.Order < 1 || c.Fit.Order > fitting.MaxSplineOrder {
			fail("fit.order %d outside [1, %d]", c.Fit.Order, fitting.MaxSplineOrder)
		}
	case FitMedian:
	default:
		fail("fit.method %q (want %s or %s)", c.Fit.Method, FitSpline, FitMedian)
	}
	if !(c.Fit.Width > 0) {
		fail("fit.width %g must be positive", c.Fit.Width)
	}

	if c.Mask.Enabled {
		method := strings.ToLower(c.Mask.Method)
		if method != MaskPixel && method != MaskChannel {
			fail("mask.method %q (want %s or %s)", c.Mask.Method, MaskPixel, MaskChannel)
		}
		if !(c.Mask.N > 0) {
			fail("mask.n %g must be positive", c.Mask.N)
		}
		if _, err := clipping.ParseSpreadMethod(c.Mask.Spread); err != nil {
			fail("mask.spread: %v", err)
		}
		if c.Mask.Dilation < 0 {
			fail("mask.dilation %d is negative", c.Mask.Dilation)
		}
		set := 0
		for _, n := range []int{len(c.Mask.Kernel.Spectral), len(c.Mask.Kernel.Spatial), len(c.Mask.Kernel.Cube)} {
			if n > 0 {
				set++
			}
		}
		if set > 1 {
			fail("mask.kernel sets %d kernels, at most one allowed", set)
		}
		if method == MaskChannel && (c.Mask.Dilation != 0 || set > 0) {
			fail("mask.dilation and mask.kernel apply to the pixel method only")
		}
	}

	if c.Processing.NumWorkers < 0 {
		fail("processing.numWorkers %d is negative", c.Processing.NumWorkers)
	}
	return errors.Join(errs...)
}

// BuildFitter creates the configured fitting strategy.
func (c *Config) BuildFitter(l zerolog.Logger) (fitting.Strategy, error) {
	switch strings.ToLower(c.Fit.Method) {
	case FitSpline:
		s, err := fitting.NewSplineFit(c.Fit.Order, c.Fit.Width, c.Fit.Entropy, c.Fit.Sequence, fitting.WithLogger(l))
		if err != nil {
			return nil, err
		}
		return s, nil
	case FitMedian:
		m, err := fitting.NewMedianFilterFit(c.Fit.Width, fitting.WithLogger(l))
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, fmt.Errorf("%w: fit.method %q", ErrInvalidConfig, c.Fit.Method)
}

// BuildClipper creates the configured clipping strategy. It returns nil when
// masking is disabled.
func (c *Config) BuildClipper(l zerolog.Logger) (clipping.Strategy, error) {
	if !c.Mask.Enabled {
		return nil, nil
	}
	spread, err := clipping.ParseSpreadMethod(c.Mask.Spread)
	if err != nil {
		return nil, err
	}
	opts := []clipping.Option{clipping.WithMethod(spread), clipping.WithLogger(l)}

	switch strings.ToLower(c.Mask.Method) {
	case MaskPixel:
		k, err := c.Mask.Kernel.build()
		if err != nil {
			return nil, err
		}
		if k != nil {
			opts = append(opts, clipping.WithKernel(k))
		}
		opts = append(opts, clipping.WithDilation(c.Mask.Dilation))
		p, err := clipping.NewPixelwiseClip(c.Mask.N, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	case MaskChannel:
		ch, err := clipping.NewChannelwiseClip(c.Mask.N, opts...)
		if err != nil {
			return nil, err
		}
		return ch, nil
	}
	return nil, fmt.Errorf("%w: mask.method %q", ErrInvalidConfig, c.Mask.Method)
}

func (k Kernel) build() (*clipping.Kernel, error) {
	switch {
	case k.empty():
		return nil, nil
	case len(k.Spectral) > 0:
		return clipping.NewKernel1D(k.Spectral)
	case len(k.Spatial) > 0:
		return clipping.NewKernel2D(k.Spatial)
	default:
		return clipping.NewKernel3D(k.Cube)
	}
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
