package clipping

import (
	"fmt"

	"contsub/internal/models"
)

// PixelwiseClip thresholds every sample against n times the spread of its
// own spectrum, then cleans the mask with dilation followed by heavier
// erosion.
type PixelwiseClip struct {
	n float64
	settings
}

var _ Strategy = (*PixelwiseClip)(nil)

// NewPixelwiseClip validates the configuration eagerly.
func NewPixelwiseClip(n float64, opts ...Option) (*PixelwiseClip, error) {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	if err := validateClip(n, s.method); err != nil {
		return nil, err
	}
	if s.dilation < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNegativeDilation, s.dilation)
	}
	if s.kernel != nil && (len(s.kernel.Values) == 0 || len(s.kernel.Values) != s.kernel.Size()) {
		return nil, ErrKernelShape
	}
	return &PixelwiseClip{n: n, settings: s}, nil
}

func (p *PixelwiseClip) Name() string { return "PixelwiseClip" }

// CreateMask returns true where |smoothed sample| < n × spread of its pixel.
func (p *PixelwiseClip) CreateMask(data *models.Cube) (*models.Mask, error) {
	if data == nil || data.Size() == 0 || len(data.Data) != data.Size() {
		return nil, fmt.Errorf("%s: %w", p.Name(), models.ErrEmptyCube)
	}
	sm, err := Smooth(data, p.kernel)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name(), err)
	}

	sigma := spreadPerPixel(p.method, sm)
	mask := models.NewMask(sm.Channels, sm.Height, sm.Width, false)
	npix := sm.Pixels()
	for i, v := range sm.Data {
		mask.Data[i] = within(v, p.n*sigma[i%npix])
	}
	flagged := len(mask.Data) - mask.Count()

	if p.dilation > 0 {
		mask = Dilate(mask, GenerateStructure(1), p.dilation)
	}
	mask = Erode(mask, GenerateStructure(3), p.dilation+2)

	p.logger.Debug().
		Str("method", p.method.String()).
		Float64("n", p.n).
		Int("dilation", p.dilation).
		Bool("smoothed", p.kernel != nil).
		Int("clipped", flagged).
		Int("masked", len(mask.Data)-mask.Count()).
		Msg("pixelwise mask created")
	return mask, nil
}
