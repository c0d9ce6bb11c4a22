package contsub

import (
	"contsub/internal/models"
	"contsub/pkg/clipping"
)

// Mask builds fitting masks with a clipping strategy.
type Mask struct {
	method clipping.Strategy
}

// NewMask wraps a clipping strategy.
func NewMask(method clipping.Strategy) *Mask {
	return &Mask{method: method}
}

// GetMask computes the mask of data. True marks channels usable for fitting.
func (m *Mask) GetMask(data *models.Cube) (*models.Mask, error) {
	return m.method.CreateMask(data)
}
