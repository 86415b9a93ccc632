package pixel

import (
	"encoding/hex"
	"fmt"
	"image/color"
	"math"
)

// Color is a sampled pixel with alpha dropped.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Format is one entry of the cyclable display-format list.
type Format int

const (
	FormatHex Format = iota
	FormatRGB
	FormatHSL
)

// Formats is the ordered cycle used by the picker.
var Formats = []Format{FormatHex, FormatRGB, FormatHSL}

func (f Format) String() string {
	switch f {
	case FormatHex:
		return "hex"
	case FormatRGB:
		return "rgb"
	case FormatHSL:
		return "hsl"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// FormatAt maps any index onto the format list, wrapping in both directions.
func FormatAt(idx int) Format {
	n := len(Formats)
	return Formats[((idx%n)+n)%n]
}

// ParseFormat returns the list index for a format name.
func ParseFormat(name string) (int, bool) {
	for i, f := range Formats {
		if f.String() == name {
			return i, true
		}
	}
	return 0, false
}

// Hex renders "#RRGGBB".
func (c Color) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// Text renders c in format f. It depends on nothing but its inputs.
func (c Color) Text(f Format) string {
	switch f {
	case FormatRGB:
		return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
	case FormatHSL:
		h, s, l := c.HSL()
		return fmt.Sprintf("hsl(%d, %d%%, %d%%)", int(math.Round(h)), int(math.Round(s*100)), int(math.Round(l*100)))
	default:
		return c.Hex()
	}
}

// HSL converts to hue in degrees, saturation and lightness in [0,1].
func (c Color) HSL() (h, s, l float64) {
	r := float64(c.R) / 255
	g := float64(c.G) / 255
	b := float64(c.B) / 255

	maxC := math.Max(r, math.Max(g, b))
	minC := math.Min(r, math.Min(g, b))
	l = (maxC + minC) / 2
	if maxC == minC {
		return 0, 0, l
	}

	d := maxC - minC
	if l > 0.5 {
		s = d / (2 - maxC - minC)
	} else {
		s = d / (maxC + minC)
	}

	switch maxC {
	case r:
		h = (g - b) / d
		if g < b {
			h += 6
		}
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	h *= 60
	if h >= 360 {
		h -= 360
	}
	return h, s, l
}

// ParseHex reads "#RRGGBB" or "#RRGGBBAA". An empty string means no color.
func ParseHex(s string) (*color.NRGBA, error) {
	if s == "" {
		return nil, nil
	}
	if len(s) != 7 && len(s) != 9 || s[0] != '#' {
		return nil, fmt.Errorf("parse color %q: want #RRGGBB or #RRGGBBAA", s)
	}
	raw, err := hex.DecodeString(s[1:])
	if err != nil {
		return nil, fmt.Errorf("parse color %q: %w", s, err)
	}
	c := color.NRGBA{R: raw[0], G: raw[1], B: raw[2], A: 0xff}
	if len(raw) == 4 {
		c.A = raw[3]
	}
	return &c, nil
}
