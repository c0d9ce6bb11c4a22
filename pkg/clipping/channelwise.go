package clipping

import (
	"fmt"

	"contsub/internal/models"
)

// ChannelwiseClip thresholds every sample against n times the spread of its
// channel map. No smoothing or morphology is applied.
type ChannelwiseClip struct {
	n float64
	settings
}

var _ Strategy = (*ChannelwiseClip)(nil)

// NewChannelwiseClip validates the configuration eagerly. WithKernel and
// WithDilation are rejected.
func NewChannelwiseClip(n float64, opts ...Option) (*ChannelwiseClip, error) {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	if err := validateClip(n, s.method); err != nil {
		return nil, err
	}
	if s.kernel != nil || s.dilation != 0 {
		return nil, fmt.Errorf("%w: channelwise clipping takes no kernel or dilation", ErrUnsupportedOption)
	}
	return &ChannelwiseClip{n: n, settings: s}, nil
}

func (c *ChannelwiseClip) Name() string { return "ChannelwiseClip" }

// CreateMask returns true where |sample| < n × spread of its channel.
func (c *ChannelwiseClip) CreateMask(data *models.Cube) (*models.Mask, error) {
	if data == nil || data.Size() == 0 || len(data.Data) != data.Size() {
		return nil, fmt.Errorf("%s: %w", c.Name(), models.ErrEmptyCube)
	}
	sigma := spreadPerChannel(c.method, data)
	mask := models.NewMask(data.Channels, data.Height, data.Width, false)
	npix := data.Pixels()
	for i, v := range data.Data {
		mask.Data[i] = within(v, c.n*sigma[i/npix])
	}

	c.logger.Debug().
		Str("method", c.method.String()).
		Float64("n", c.n).
		Int("masked", len(mask.Data)-mask.Count()).
		Msg("channelwise mask created")
	return mask, nil
}
