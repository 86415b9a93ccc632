package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/GriffinCanCode/colorpick/internal/codec"
	apperrors "github.com/GriffinCanCode/colorpick/internal/errors"
	"github.com/GriffinCanCode/colorpick/internal/pixel"
)

// gradient builds a w×h opaque grid where every pixel is distinct.
func gradient(w, h int) *pixel.Buffer {
	b := pixel.NewBuffer(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			b.Pix[i] = uint8(x * 10)
			b.Pix[i+1] = uint8(y * 10)
			b.Pix[i+2] = uint8(x + y)
			b.Pix[i+3] = 255
		}
	}
	return b
}

func encodePNG(t *testing.T, b *pixel.Buffer) []byte {
	t.Helper()
	var out bytes.Buffer
	if err := png.Encode(&out, b.Image()); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return out.Bytes()
}

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r := New()
	if err := r.InitPreviewSurface(Surface{Size: 5, Zoom: 2}, codec.DefaultSpec()); err != nil {
		t.Fatalf("InitPreviewSurface: %v", err)
	}
	return r
}

func TestPickColorScenario(t *testing.T) {
	r := newRenderer(t)
	b := pixel.NewBuffer(4, 4)
	copy(b.Pix[(1*4+2)*4:], []byte{10, 20, 30, 255})
	if err := r.InitPixelBuffer(pixel.SharedView{Buffer: b}); err != nil {
		t.Fatalf("InitPixelBuffer: %v", err)
	}

	if got := r.PickColor(2, 1); got != (pixel.Color{R: 10, G: 20, B: 30}) {
		t.Errorf("PickColor(2,1) = %v, want {10 20 30}", got)
	}
	if got := r.PickColor(5, 5); got != (pixel.Color{}) {
		t.Errorf("PickColor(5,5) = %v, want zero", got)
	}
}

func TestPickColorWithoutBuffer(t *testing.T) {
	r := New()
	if got := r.PickColor(0, 0); got != (pixel.Color{}) {
		t.Errorf("PickColor on empty renderer = %v, want zero", got)
	}
	if got := r.PutPreviewWindow(Window{SampleX: 1, SampleY: 1}); got != (pixel.Color{}) {
		t.Errorf("PutPreviewWindow on empty renderer = %v, want zero", got)
	}
	if r.PreviewSnapshot() != nil {
		t.Error("snapshot without surface should be nil")
	}
}

func TestInitPixelBufferEncoded(t *testing.T) {
	r := newRenderer(t)
	src := gradient(6, 6)
	if err := r.InitPixelBuffer(pixel.Encoded{Data: encodePNG(t, src)}); err != nil {
		t.Fatalf("InitPixelBuffer: %v", err)
	}
	for _, p := range []image.Point{{0, 0}, {3, 2}, {5, 5}} {
		if got, want := r.PickColor(p.X, p.Y), src.At(p.X, p.Y); got != want {
			t.Errorf("PickColor(%v) = %v, want %v", p, got, want)
		}
	}
}

func TestInitPixelBufferRejectsBadView(t *testing.T) {
	r := newRenderer(t)
	bad := &pixel.Buffer{Width: 4, Height: 4, Pix: make([]byte, 3)}
	err := r.InitPixelBuffer(pixel.SharedView{Buffer: bad})
	if !apperrors.IsCode(err, apperrors.CodeInvalidArgument) {
		t.Errorf("InitPixelBuffer(bad view) = %v, want INVALID_ARGUMENT", err)
	}
}

func TestDecodeBeforeSurfaceIsCodecUnavailable(t *testing.T) {
	r := New()
	err := r.InitPixelBuffer(pixel.Encoded{Data: encodePNG(t, gradient(2, 2))})
	if !apperrors.IsCode(err, apperrors.CodeCodecUnavailable) {
		t.Errorf("InitPixelBuffer before codec load = %v, want CODEC_UNAVAILABLE", err)
	}
}

func TestSurfaceValidate(t *testing.T) {
	tests := []struct {
		s  Surface
		ok bool
	}{
		{DefaultSurface(), true},
		{Surface{Size: 4, Zoom: 2}, false},
		{Surface{Size: 5, Zoom: 0}, false},
		{Surface{Size: 1001, Zoom: 10}, false},
	}
	for _, tt := range tests {
		if err := tt.s.Validate(); (err == nil) != tt.ok {
			t.Errorf("Validate(%+v) = %v, want ok=%v", tt.s, err, tt.ok)
		}
	}
}

func TestHistoryWinsAndRestores(t *testing.T) {
	r := newRenderer(t)
	live := gradient(6, 6)
	if err := r.InitPixelBuffer(pixel.SharedView{Buffer: live}); err != nil {
		t.Fatal(err)
	}
	before := r.PickColor(3, 3)

	hist := pixel.NewBuffer(6, 6)
	for i := range hist.Pix {
		hist.Pix[i] = 0xAB
	}
	r.readLocator = func(string) ([]byte, error) { return encodePNG(t, hist), nil }

	if err := r.SwitchHistorySource("history://1"); err != nil {
		t.Fatalf("SwitchHistorySource: %v", err)
	}
	if got := r.PickColor(3, 3); got != (pixel.Color{R: 0xAB, G: 0xAB, B: 0xAB}) {
		t.Errorf("history should win, got %v", got)
	}

	if err := r.SwitchHistorySource(""); err != nil {
		t.Fatalf("clear history: %v", err)
	}
	if got := r.PickColor(3, 3); got != before {
		t.Errorf("after clearing history got %v, want %v", got, before)
	}
}

func TestNewLiveBufferDropsHistory(t *testing.T) {
	r := newRenderer(t)
	if err := r.InitPixelBuffer(pixel.SharedView{Buffer: gradient(4, 4)}); err != nil {
		t.Fatal(err)
	}
	hist := pixel.NewBuffer(4, 4)
	for i := range hist.Pix {
		hist.Pix[i] = 0xAB
	}
	r.readLocator = func(string) ([]byte, error) { return encodePNG(t, hist), nil }
	if err := r.SwitchHistorySource("history://1"); err != nil {
		t.Fatal(err)
	}

	next := gradient(4, 4)
	if err := r.InitPixelBuffer(pixel.SharedView{Buffer: next}); err != nil {
		t.Fatal(err)
	}
	if r.history != nil {
		t.Error("a new live buffer must clear the history grid")
	}
	if got, want := r.PickColor(3, 2), next.At(3, 2); got != want {
		t.Errorf("PickColor(3,2) = %v, want live %v", got, want)
	}
}

func TestFailedLiveBufferKeepsHistory(t *testing.T) {
	r := newRenderer(t)
	r.history = gradient(2, 2)
	bad := &pixel.Buffer{Width: 4, Height: 4, Pix: make([]byte, 3)}
	if err := r.InitPixelBuffer(pixel.SharedView{Buffer: bad}); err == nil {
		t.Fatal("bad view accepted")
	}
	if r.history == nil {
		t.Error("a rejected buffer must leave the history grid alone")
	}
}

func TestSwitchHistoryFailureKeepsState(t *testing.T) {
	r := newRenderer(t)
	if err := r.InitPixelBuffer(pixel.SharedView{Buffer: gradient(4, 4)}); err != nil {
		t.Fatal(err)
	}
	r.readLocator = func(string) ([]byte, error) { return []byte("junk"), nil }
	if err := r.SwitchHistorySource("broken"); !apperrors.IsCode(err, apperrors.CodeDecodeFailed) {
		t.Errorf("SwitchHistorySource(junk) = %v, want DECODE_FAILED", err)
	}
	if r.history != nil {
		t.Error("failed switch must not install a history buffer")
	}
}

func TestPutPreviewWindowAgreesWithPickColor(t *testing.T) {
	r := newRenderer(t)
	if err := r.InitPixelBuffer(pixel.SharedView{Buffer: gradient(8, 8)}); err != nil {
		t.Fatal(err)
	}
	for _, p := range []image.Point{{0, 0}, {4, 4}, {7, 7}, {9, 9}, {-1, 2}} {
		w := Window{OriginX: p.X - 2, OriginY: p.Y - 2, SampleX: p.X, SampleY: p.Y}
		if got, want := r.PutPreviewWindow(w), r.PickColor(p.X, p.Y); got != want {
			t.Errorf("at %v: PutPreviewWindow = %v, PickColor = %v", p, got, want)
		}
	}
}

func TestPreviewMagnifies(t *testing.T) {
	r := newRenderer(t) // 5×5 at 2×
	src := gradient(8, 8)
	if err := r.InitPixelBuffer(pixel.SharedView{Buffer: src}); err != nil {
		t.Fatal(err)
	}
	r.PutPreviewWindow(Window{OriginX: 2, OriginY: 2, SampleX: 4, SampleY: 4})
	snap := r.PreviewSnapshot()
	if snap.Width != 10 || snap.Height != 10 {
		t.Fatalf("snapshot = %dx%d, want 10x10", snap.Width, snap.Height)
	}
	for py := 0; py < 10; py++ {
		for px := 0; px < 10; px++ {
			want := src.At(2+px/2, 2+py/2)
			if got := snap.At(px, py); got != want {
				t.Fatalf("preview(%d,%d) = %v, want %v", px, py, got, want)
			}
		}
	}
}

func TestPreviewClampsOutOfRange(t *testing.T) {
	r := newRenderer(t)
	if err := r.InitPixelBuffer(pixel.SharedView{Buffer: gradient(4, 4)}); err != nil {
		t.Fatal(err)
	}
	// window origin at (-2,-2): the top-left 2×2 source cells are outside
	r.PutPreviewWindow(Window{OriginX: -2, OriginY: -2})
	snap := r.PreviewSnapshot()
	alpha := func(x, y int) uint8 { return snap.Pix[(y*snap.Width+x)*4+3] }
	if alpha(0, 0) != 0 || alpha(3, 3) != 0 {
		t.Error("out-of-range cells should stay transparent")
	}
	if alpha(4, 4) != 255 {
		t.Error("in-range cell (0,0) should be opaque")
	}
	if got, want := snap.At(4, 4), (pixel.Color{}); got != want {
		t.Errorf("cell for source (0,0) = %v, want %v", got, want)
	}
	if got, want := snap.At(6, 4), gradient(4, 4).At(1, 0); got != want {
		t.Errorf("cell for source (1,0) = %v, want %v", got, want)
	}

	// window entirely off the grid
	r.PutPreviewWindow(Window{OriginX: 100, OriginY: 100})
	empty := r.PreviewSnapshot()
	for i := 3; i < len(empty.Pix); i += 4 {
		if empty.Pix[i] != 0 {
			t.Fatal("fully out-of-range window should leave the preview empty")
		}
	}
}

func TestCrosshairLeavesCenterUncovered(t *testing.T) {
	r := New()
	if err := r.InitPreviewSurface(Surface{Size: 5, Zoom: 4}, codec.DefaultSpec()); err != nil {
		t.Fatal(err)
	}
	src := pixel.NewBuffer(5, 5)
	for i := range src.Pix {
		src.Pix[i] = 255 // white, opaque
	}
	if err := r.InitPixelBuffer(pixel.SharedView{Buffer: src}); err != nil {
		t.Fatal(err)
	}

	red := &color.NRGBA{R: 255, A: 255}
	r.PutPreviewWindow(Window{AuxLine: red, SampleX: 2, SampleY: 2})
	snap := r.PreviewSnapshot()

	// center cell spans preview [8,12) on both axes; line runs at 10
	isRed := func(x, y int) bool { return snap.At(x, y) == pixel.Color{R: 255} }
	for _, p := range []image.Point{{0, 10}, {7, 10}, {12, 10}, {19, 10}, {10, 0}, {10, 7}, {10, 12}, {10, 19}} {
		if !isRed(p.X, p.Y) {
			t.Errorf("expected crosshair at %v", p)
		}
	}
	for y := 8; y < 12; y++ {
		for x := 8; x < 12; x++ {
			if isRed(x, y) {
				t.Fatalf("center cell covered at (%d,%d)", x, y)
			}
		}
	}
	if isRed(0, 0) {
		t.Error("crosshair leaked off its lines")
	}

	// fully transparent aux color means no crosshair
	r.PutPreviewWindow(Window{AuxLine: &color.NRGBA{R: 255}})
	if got := r.PreviewSnapshot().At(0, 10); got == (pixel.Color{R: 255}) {
		t.Error("transparent aux color should not draw")
	}
}

func TestReleasePixelBuffers(t *testing.T) {
	r := newRenderer(t)
	if err := r.InitPixelBuffer(pixel.SharedView{Buffer: gradient(3, 3)}); err != nil {
		t.Fatal(err)
	}
	r.ReleasePixelBuffers()
	if r.HasSource() {
		t.Error("buffers should be gone")
	}
	if r.PreviewSnapshot() != nil {
		t.Error("snapshot without a source should be nil")
	}
	if r.preview == nil {
		t.Error("release must keep the surface bound")
	}
}
