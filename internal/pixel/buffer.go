// Package pixel holds the raw pixel grid and color sample types shared by the codec, renderer and picker.
package pixel

import (
	"fmt"
	"image"
)

// BytesPerPixel is the size of one RGBA8 pixel.
const BytesPerPixel = 4

// Buffer is an RGBA8 pixel grid with straight (non-premultiplied) alpha.
// Buffers are replaced wholesale, never mutated in place once handed to the renderer.
type Buffer struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Pix    []byte `json:"pix"`
}

// NewBuffer allocates a zeroed buffer.
func NewBuffer(width, height int) *Buffer {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Buffer{Width: width, Height: height, Pix: make([]byte, width*height*BytesPerPixel)}
}

// Validate checks len(Pix) == Width*Height*4.
func (b *Buffer) Validate() error {
	if b == nil {
		return fmt.Errorf("nil pixel buffer")
	}
	if b.Width < 0 || b.Height < 0 {
		return fmt.Errorf("negative bounds %dx%d", b.Width, b.Height)
	}
	if want := b.Width * b.Height * BytesPerPixel; len(b.Pix) != want {
		return fmt.Errorf("pixel length %d, want %d for %dx%d", len(b.Pix), want, b.Width, b.Height)
	}
	return nil
}

// Contains reports whether (x, y) is inside the grid.
func (b *Buffer) Contains(x, y int) bool {
	return b != nil && x >= 0 && y >= 0 && x < b.Width && y < b.Height
}

// At returns the color at (x, y). Missing buffers and out-of-range coordinates yield the zero color.
func (b *Buffer) At(x, y int) Color {
	if !b.Contains(x, y) {
		return Color{}
	}
	i := (y*b.Width + x) * BytesPerPixel
	if i+2 >= len(b.Pix) {
		return Color{}
	}
	return Color{R: b.Pix[i], G: b.Pix[i+1], B: b.Pix[i+2]}
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	if b == nil {
		return nil
	}
	pix := make([]byte, len(b.Pix))
	copy(pix, b.Pix)
	return &Buffer{Width: b.Width, Height: b.Height, Pix: pix}
}

// Image views the buffer as an *image.NRGBA without copying.
func (b *Buffer) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    b.Pix,
		Stride: b.Width * BytesPerPixel,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

// Size returns the payload size in bytes, used for log context.
func (b *Buffer) Size() int {
	if b == nil {
		return 0
	}
	return len(b.Pix)
}

// FromRGBA adopts a screen grab. Grabs are opaque, so premultiplied and straight
// alpha coincide and the pixels can be taken as-is.
func FromRGBA(img *image.RGBA) *Buffer {
	if img == nil {
		return nil
	}
	return adopt(img.Pix, img.Stride, img.Rect, img.PixOffset)
}

// FromNRGBA adopts a straight-alpha image.
func FromNRGBA(img *image.NRGBA) *Buffer {
	if img == nil {
		return nil
	}
	return adopt(img.Pix, img.Stride, img.Rect, img.PixOffset)
}

// adopt references tightly packed, origin-anchored pixels and repacks anything else.
func adopt(pix []byte, stride int, r image.Rectangle, offset func(x, y int) int) *Buffer {
	w, h := r.Dx(), r.Dy()
	row := w * BytesPerPixel
	if r.Min == (image.Point{}) && stride == row && len(pix) == row*h {
		return &Buffer{Width: w, Height: h, Pix: pix}
	}
	out := NewBuffer(w, h)
	for y := 0; y < h; y++ {
		src := pix[offset(r.Min.X, r.Min.Y+y):]
		copy(out.Pix[y*row:(y+1)*row], src[:row])
	}
	return out
}
