package worker

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/grpc/encoding"

	"github.com/GriffinCanCode/colorpick/internal/codec"
	apperrors "github.com/GriffinCanCode/colorpick/internal/errors"
	"github.com/GriffinCanCode/colorpick/internal/pixel"
	"github.com/GriffinCanCode/colorpick/internal/render"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
	encoding.RegisterCompressor(zstdCompressor{})
}

// envelope is the single message type on the Exchange stream, in both directions.
type envelope struct {
	Op Op `json:"op"`

	Surface *render.Surface `json:"surface,omitempty"`
	Codec   *codec.Spec     `json:"codec,omitempty"`
	Encoded []byte          `json:"encoded,omitempty"`
	View    *pixel.Buffer   `json:"view,omitempty"`
	Window  *render.Window  `json:"window,omitempty"`
	Locator string          `json:"locator,omitempty"`
	X       int             `json:"x,omitempty"`
	Y       int             `json:"y,omitempty"`

	Color    *pixel.Color  `json:"color,omitempty"`
	Snapshot *pixel.Buffer `json:"snapshot,omitempty"`
	Failure  *Failure      `json:"failure,omitempty"`
}

func requestEnvelope(req Request) *envelope {
	env := &envelope{Op: req.Op()}
	switch m := req.(type) {
	case InitPreviewSurfaceRequest:
		env.Surface, env.Codec = &m.Surface, &m.Codec
	case InitPixelBufferRequest:
		switch src := m.Source.(type) {
		case pixel.Encoded:
			env.Encoded = src.Data
		case pixel.SharedView:
			env.View = src.Buffer
		}
	case PutPreviewWindowRequest:
		env.Window = &m.Window
	case SwitchHistoryRequest:
		env.Locator = m.Locator
	case PickColorRequest:
		env.X, env.Y = m.X, m.Y
	}
	return env
}

func (env *envelope) request() (Request, error) {
	switch env.Op {
	case OpInitPreviewSurface:
		if env.Surface == nil || env.Codec == nil {
			return nil, apperrors.New(apperrors.CodeInvalidArgument, "surface and codec required")
		}
		return InitPreviewSurfaceRequest{Surface: *env.Surface, Codec: *env.Codec}, nil
	case OpInitPixelBuffer:
		if env.View != nil {
			return InitPixelBufferRequest{Source: pixel.SharedView{Buffer: env.View}}, nil
		}
		return InitPixelBufferRequest{Source: pixel.Encoded{Data: env.Encoded}}, nil
	case OpPutPreviewWindow:
		if env.Window == nil {
			return nil, apperrors.New(apperrors.CodeInvalidArgument, "window required")
		}
		return PutPreviewWindowRequest{Window: *env.Window}, nil
	case OpPreviewSnapshot:
		return PreviewSnapshotRequest{}, nil
	case OpSwitchHistory:
		return SwitchHistoryRequest{Locator: env.Locator}, nil
	case OpPickColor:
		return PickColorRequest{X: env.X, Y: env.Y}, nil
	case OpReleasePixels:
		return ReleaseRequest{}, nil
	default:
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "unknown op %q", env.Op)
	}
}

func responseEnvelope(resp Response) *envelope {
	env := &envelope{Op: resp.Op()}
	switch m := resp.(type) {
	case Ack:
		env.Failure = m.Failure
	case ColorResult:
		env.Failure = m.Failure
		c := m.Color
		env.Color = &c
	case SnapshotResult:
		env.Failure = m.Failure
		env.Snapshot = m.Snapshot
	}
	return env
}

func (env *envelope) response() Response {
	res := Result{Kind: env.Op, Failure: env.Failure}
	switch {
	case env.Color != nil:
		return ColorResult{Result: res, Color: *env.Color}
	case env.Op == OpPreviewSnapshot:
		return SnapshotResult{Result: res, Snapshot: env.Snapshot}
	case env.Op == OpPutPreviewWindow || env.Op == OpPickColor:
		return ColorResult{Result: res}
	default:
		return Ack{res}
	}
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return codecName }

// zstdCompressor squeezes pixel payloads; raw RGBA screenshots compress well.
type zstdCompressor struct{}

func (zstdCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w, zstd.WithEncoderConcurrency(1), zstd.WithEncoderLevel(zstd.SpeedFastest))
}

func (zstdCompressor) Decompress(r io.Reader) (io.Reader, error) {
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

func (zstdCompressor) Name() string { return compressorName }
