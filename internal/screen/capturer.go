// Package screen grabs the desktop into pixel buffers, skipping grabs that
// look the same as the previous one.
package screen

import (
	"image"
	"log/slog"
	"sync"

	"github.com/corona10/goimagehash"
	"github.com/kbinani/screenshot"

	apperrors "github.com/GriffinCanCode/colorpick/internal/errors"
	"github.com/GriffinCanCode/colorpick/internal/pixel"
)

// Capturer grabs one display.
type Capturer interface {
	// Capture reports changed=false (and no buffer) when the screen looks the same as last time.
	Capture() (buf *pixel.Buffer, changed bool, err error)
	CaptureAlways() (*pixel.Buffer, error)
	Close()
}

// backend does the raw grab.
type backend interface {
	grab() (*image.RGBA, error)
}

type displayBackend struct{ display int }

func (d displayBackend) grab() (*image.RGBA, error) {
	if n := screenshot.NumActiveDisplays(); d.display >= n {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "display %d not found (%d active)", d.display, n)
	}
	img, err := screenshot.CaptureRect(screenshot.GetDisplayBounds(d.display))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "screen grab")
	}
	return img, nil
}

// New returns a capturer for display index display (0 is primary).
func New(display int) Capturer {
	return newBase(displayBackend{display: display})
}

// baseCapturer adds perceptual-hash change detection to a backend.
type baseCapturer struct {
	backend
	mu       sync.Mutex
	lastHash *goimagehash.ImageHash
}

func newBase(b backend) *baseCapturer {
	return &baseCapturer{backend: b}
}

func (c *baseCapturer) Capture() (*pixel.Buffer, bool, error) {
	img, err := c.grab()
	if err != nil {
		return nil, false, err
	}
	if !c.remember(img) {
		return nil, false, nil
	}
	return pixel.FromRGBA(img), true, nil
}

func (c *baseCapturer) CaptureAlways() (*pixel.Buffer, error) {
	img, err := c.grab()
	if err != nil {
		return nil, err
	}
	c.remember(img)
	return pixel.FromRGBA(img), nil
}

// remember stores img's hash and reports whether it differs from the previous one.
func (c *baseCapturer) remember(img image.Image) bool {
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastHash == nil {
		c.lastHash = hash
		return true
	}
	dist, err := c.lastHash.Distance(hash)
	if err == nil && dist <= MaxHashDistance {
		// keep the old baseline so slow drift still adds up
		slog.Debug("screen unchanged", "distance", dist)
		return false
	}
	c.lastHash = hash
	return true
}

func (c *baseCapturer) Close() {
	c.mu.Lock()
	c.lastHash = nil
	c.mu.Unlock()
}
