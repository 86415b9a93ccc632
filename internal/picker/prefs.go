package picker

import (
	"github.com/GriffinCanCode/colorpick/internal/pixel"
	"github.com/GriffinCanCode/colorpick/internal/syncx"
)

// Preferences persists the selected color format.
type Preferences interface {
	FormatIndex() int
	SetFormatIndex(idx int) error
}

// PointerWarper moves the OS pointer, in logical coordinates.
type PointerWarper interface {
	Warp(x, y float64) error
}

// MemoryPreferences keeps the format index in memory.
type MemoryPreferences struct {
	idx *syncx.RWGuard[int]
}

func NewMemoryPreferences(initial pixel.Format) *MemoryPreferences {
	return &MemoryPreferences{idx: syncx.NewGuard(int(initial))}
}

func (p *MemoryPreferences) FormatIndex() int { return p.idx.Get() }

func (p *MemoryPreferences) SetFormatIndex(idx int) error {
	p.idx.Set(idx)
	return nil
}

type noWarp struct{}

func (noWarp) Warp(float64, float64) error { return nil }
