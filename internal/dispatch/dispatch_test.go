package dispatch

import (
	"bytes"
	"context"
	"image/color"
	"image/png"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/GriffinCanCode/colorpick/internal/codec"
	apperrors "github.com/GriffinCanCode/colorpick/internal/errors"
	"github.com/GriffinCanCode/colorpick/internal/pixel"
	"github.com/GriffinCanCode/colorpick/internal/render"
	"github.com/GriffinCanCode/colorpick/internal/resilience"
	"github.com/GriffinCanCode/colorpick/internal/worker"
)

func noise(w, h int) *pixel.Buffer {
	b := pixel.NewBuffer(w, h)
	seed := uint32(7)
	for i := range b.Pix {
		seed = seed*1664525 + 1013904223
		b.Pix[i] = uint8(seed >> 24)
	}
	for i := 3; i < len(b.Pix); i += 4 {
		b.Pix[i] = 255
	}
	return b
}

type failingStarter struct{ err error }

func (s failingStarter) EnsureStarted(context.Context) (worker.Port, error) { return nil, s.err }

// silentPort accepts every request and never answers.
type silentPort struct{ posts int }

func (p *silentPort) Post(worker.Request) error                   { p.posts++; return nil }
func (p *silentPort) Listen(func(worker.Response)) (cancel func()) { return func() {} }
func (p *silentPort) Close() error                                 { return nil }

func grpcStarter(t *testing.T) worker.Starter {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := worker.NewGRPCServer()
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return worker.NewRemote("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
}

func TestSelectFallsBackToLocal(t *testing.T) {
	ch := Select(context.Background(), Options{
		Kind:    Remote,
		Starter: failingStarter{err: apperrors.New(apperrors.CodeChannelUnavailable, "no worker")},
	})
	if ch.Kind() != Local {
		t.Errorf("Kind = %s, want local", ch.Kind())
	}
	if Select(context.Background(), Options{Kind: Remote}).Kind() != Local {
		t.Error("remote without a starter should be local")
	}
	if Select(context.Background(), Options{Kind: Local}).Kind() != Local {
		t.Error("local stays local")
	}
}

// Both strategies must produce the same samples and preview pixels.
func TestLocalAndRemoteAgree(t *testing.T) {
	ctx := context.Background()
	src := noise(23, 17)
	var encoded bytes.Buffer
	if err := png.Encode(&encoded, src.Image()); err != nil {
		t.Fatal(err)
	}

	channels := map[string]Channel{
		"local":      Select(ctx, Options{Kind: Local}),
		"background": Select(ctx, Options{Kind: Remote, Starter: worker.NewBackground(), Timeout: 2 * time.Second}),
		"grpc":       Select(ctx, Options{Kind: Remote, Starter: grpcStarter(t), Timeout: 2 * time.Second}),
	}
	for name, ch := range channels {
		if name != "local" && ch.Kind() != Remote {
			t.Fatalf("%s: did not start", name)
		}
		t.Cleanup(func() { _ = ch.Close() })
	}

	aux := &color.NRGBA{G: 255, A: 255}
	windows := []render.Window{
		{OriginX: -5, OriginY: -5, SampleX: 0, SampleY: 0, AuxLine: aux},
		{OriginX: 6, OriginY: 3, SampleX: 11, SampleY: 8},
		{OriginX: 18, OriginY: 12, SampleX: 22, SampleY: 16, AuxLine: aux},
		{OriginX: 40, OriginY: 40, SampleX: 45, SampleY: 45},
	}

	for _, source := range []pixel.Source{pixel.SharedView{Buffer: src}, pixel.Encoded{Data: encoded.Bytes()}} {
		type frame struct {
			c    pixel.Color
			snap *pixel.Buffer
		}
		results := map[string][]frame{}
		for name, ch := range channels {
			if err := ch.InitPreviewSurface(ctx, render.DefaultSurface(), codec.DefaultSpec()); err != nil {
				t.Fatalf("%s: InitPreviewSurface: %v", name, err)
			}
			if err := ch.InitPixelBuffer(ctx, source); err != nil {
				t.Fatalf("%s: InitPixelBuffer: %v", name, err)
			}
			for _, w := range windows {
				c, err := ch.PutPreviewWindow(ctx, w)
				if err != nil {
					t.Fatalf("%s: PutPreviewWindow: %v", name, err)
				}
				picked, err := ch.PickColor(ctx, w.SampleX, w.SampleY)
				if err != nil {
					t.Fatalf("%s: PickColor: %v", name, err)
				}
				if picked != c {
					t.Errorf("%s: PickColor %v != PutPreviewWindow %v", name, picked, c)
				}
				snap, err := ch.PreviewSnapshot(ctx)
				if err != nil {
					t.Fatalf("%s: PreviewSnapshot: %v", name, err)
				}
				results[name] = append(results[name], frame{c, snap})
			}
		}

		want := results["local"]
		for name, got := range results {
			for i := range want {
				if got[i].c != want[i].c {
					t.Errorf("%s window %d: color %v, local %v", name, i, got[i].c, want[i].c)
				}
				if !bytes.Equal(got[i].snap.Pix, want[i].snap.Pix) {
					t.Errorf("%s window %d: preview differs from local", name, i)
				}
			}
		}
	}

	for name, ch := range channels {
		if err := ch.ReleasePixelBuffers(ctx); err != nil {
			t.Fatalf("%s: release: %v", name, err)
		}
		snap, err := ch.PreviewSnapshot(ctx)
		if err != nil || snap != nil {
			t.Errorf("%s: snapshot after release = %v, %v; want nil", name, snap, err)
		}
	}
}

func TestRemoteErrorsKeepTheirCode(t *testing.T) {
	ctx := context.Background()
	ch := Select(ctx, Options{Kind: Remote, Starter: worker.NewBackground(), Timeout: time.Second})
	defer ch.Close()

	err := ch.InitPixelBuffer(ctx, pixel.Encoded{Data: []byte("x")})
	if !apperrors.IsCode(err, apperrors.CodeCodecUnavailable) {
		t.Errorf("decode before surface = %v, want CODEC_UNAVAILABLE", err)
	}
	if err := ch.SwitchHistorySource(ctx, "/definitely/not/here.png"); err == nil {
		t.Error("missing history image should fail")
	}
}

func TestRemoteTimeoutTripsBreaker(t *testing.T) {
	port := &silentPort{}
	ch := NewRemote(port, 5*time.Millisecond, resilience.Config{Threshold: 2, ResetTimeout: time.Hour, HalfOpenSuccesses: 1})

	for i := 0; i < 2; i++ {
		c, err := ch.PickColor(context.Background(), 1, 1)
		if !apperrors.IsCode(err, apperrors.CodeTimeout) {
			t.Fatalf("call %d = %v, want TIMEOUT", i, err)
		}
		if c != (pixel.Color{}) {
			t.Errorf("timed-out sample = %v, want zero", c)
		}
	}

	_, err := ch.PickColor(context.Background(), 1, 1)
	if !apperrors.IsCode(err, apperrors.CodeChannelUnavailable) {
		t.Errorf("call with open breaker = %v, want CHANNEL_UNAVAILABLE", err)
	}
	if port.posts != 2 {
		t.Errorf("posts = %d, want 2 (open breaker should not post)", port.posts)
	}
}
