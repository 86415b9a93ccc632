// Package codec decodes compressed still images into raw RGBA pixel buffers.
package codec

import (
	"bytes"
	"image"
	"image/draw"
	_ "image/gif"  // GIF decoder
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"  // BMP decoder
	_ "golang.org/x/image/tiff" // TIFF decoder
	_ "golang.org/x/image/webp" // WebP decoder

	apperrors "github.com/GriffinCanCode/colorpick/internal/errors"
	"github.com/GriffinCanCode/colorpick/internal/pixel"
)

// Spec selects which container formats a Module accepts. It is plain data so it
// can be shipped to a background context that loads its own Module.
type Spec struct {
	Formats []string `json:"formats"`
}

// DefaultSpec enables every registered still-image format.
func DefaultSpec() Spec {
	return Spec{Formats: append([]string(nil), SupportedFormats...)}
}

// Module is a loaded codec. A nil *Module is the "not loaded" state.
type Module struct {
	formats map[string]bool
}

// Load validates spec and returns a ready Module.
func Load(spec Spec) (*Module, error) {
	if len(spec.Formats) == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "codec spec lists no formats")
	}
	m := &Module{formats: make(map[string]bool, len(spec.Formats))}
	for _, f := range spec.Formats {
		name := strings.ToLower(strings.TrimSpace(f))
		if !supported(name) {
			return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "unsupported image format %q", f)
		}
		m.formats[name] = true
	}
	return m, nil
}

// Formats lists the enabled formats.
func (m *Module) Formats() []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m.formats))
	for _, f := range SupportedFormats {
		if m.formats[f] {
			out = append(out, f)
		}
	}
	return out
}

// Decode turns a compressed still image into a fresh, owned pixel buffer.
func (m *Module) Decode(data []byte) (*pixel.Buffer, error) {
	if m == nil {
		return nil, apperrors.New(apperrors.CodeCodecUnavailable, "codec module not loaded").
			WithMetadata("bytes", strconv.Itoa(len(data)))
	}
	if len(data) == 0 {
		return nil, apperrors.New(apperrors.CodeDecodeFailed, "empty image payload")
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDecodeFailed, "unrecognized image container").
			WithMetadata("bytes", strconv.Itoa(len(data)))
	}
	if !m.formats[format] {
		return nil, apperrors.Newf(apperrors.CodeDecodeFailed, "image format %q not enabled", format).
			WithMetadata("bytes", strconv.Itoa(len(data)))
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeDecodeFailed, "decode %s", format).
			WithMetadata("bytes", strconv.Itoa(len(data)))
	}
	return toBuffer(img), nil
}

// toBuffer converts any decoded image to a packed, origin-anchored straight-alpha grid.
func toBuffer(img image.Image) *pixel.Buffer {
	if nrgba, ok := img.(*image.NRGBA); ok {
		return pixel.FromNRGBA(nrgba)
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return pixel.FromNRGBA(out)
}

// Bounds reads just the header of an encoded image and returns its size.
func Bounds(data []byte) (image.Point, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Point{}, apperrors.Wrap(err, apperrors.CodeDecodeFailed, "read image header").
			WithMetadata("bytes", strconv.Itoa(len(data)))
	}
	return image.Pt(cfg.Width, cfg.Height), nil
}
