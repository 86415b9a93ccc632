// Package worker hosts a Renderer behind strict request/response messaging.
// The same closed set of messages is served by an in-process goroutine and by
// an out-of-process gRPC worker.
package worker

import (
	stderrors "errors"

	"github.com/GriffinCanCode/colorpick/internal/codec"
	apperrors "github.com/GriffinCanCode/colorpick/internal/errors"
	"github.com/GriffinCanCode/colorpick/internal/pixel"
	"github.com/GriffinCanCode/colorpick/internal/render"
)

// Op discriminates messages; a response carries the Op of its request.
type Op string

const (
	OpInitPreviewSurface Op = "init_preview_surface"
	OpInitPixelBuffer    Op = "init_pixel_buffer"
	OpPutPreviewWindow   Op = "put_preview_window"
	OpPreviewSnapshot    Op = "preview_snapshot"
	OpSwitchHistory      Op = "switch_history"
	OpPickColor          Op = "pick_color"
	OpReleasePixels      Op = "release_pixel_buffers"
)

// Request is one of the *Request types below.
type Request interface {
	Op() Op
	isRequest()
}

type InitPreviewSurfaceRequest struct {
	Surface render.Surface
	Codec   codec.Spec
}

type InitPixelBufferRequest struct {
	Source pixel.Source
}

type PutPreviewWindowRequest struct {
	Window render.Window
}

type PreviewSnapshotRequest struct{}

// SwitchHistoryRequest installs the image behind Locator; empty clears it.
type SwitchHistoryRequest struct {
	Locator string
}

type PickColorRequest struct {
	X, Y int
}

type ReleaseRequest struct{}

func (InitPreviewSurfaceRequest) Op() Op { return OpInitPreviewSurface }
func (InitPixelBufferRequest) Op() Op    { return OpInitPixelBuffer }
func (PutPreviewWindowRequest) Op() Op   { return OpPutPreviewWindow }
func (PreviewSnapshotRequest) Op() Op    { return OpPreviewSnapshot }
func (SwitchHistoryRequest) Op() Op      { return OpSwitchHistory }
func (PickColorRequest) Op() Op          { return OpPickColor }
func (ReleaseRequest) Op() Op            { return OpReleasePixels }

func (InitPreviewSurfaceRequest) isRequest() {}
func (InitPixelBufferRequest) isRequest()    {}
func (PutPreviewWindowRequest) isRequest()   {}
func (PreviewSnapshotRequest) isRequest()    {}
func (SwitchHistoryRequest) isRequest()      {}
func (PickColorRequest) isRequest()          {}
func (ReleaseRequest) isRequest()            {}

// Failure is an AppError flattened for the wire.
type Failure struct {
	Code     apperrors.Code    `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func failureFrom(err error) *Failure {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if !stderrors.As(err, &appErr) {
		return &Failure{Code: apperrors.CodeInternal, Message: err.Error()}
	}
	return &Failure{Code: appErr.Code, Message: appErr.Message, Metadata: appErr.Metadata}
}

// Response is one of Ack, ColorResult or SnapshotResult.
type Response interface {
	Op() Op
	Err() error
	isResponse()
}

// Result is the part every response shares.
type Result struct {
	Kind    Op       `json:"op"`
	Failure *Failure `json:"failure,omitempty"`
}

func (r Result) Op() Op { return r.Kind }

// Err rebuilds the AppError behind a failed response.
func (r Result) Err() error {
	if r.Failure == nil {
		return nil
	}
	return &apperrors.AppError{Code: r.Failure.Code, Message: r.Failure.Message, Metadata: r.Failure.Metadata}
}

// Ack answers operations that only report success.
type Ack struct{ Result }

type ColorResult struct {
	Result
	Color pixel.Color
}

// SnapshotResult carries a copy of the preview, nil when there is nothing to show.
type SnapshotResult struct {
	Result
	Snapshot *pixel.Buffer
}

func (Ack) isResponse()            {}
func (ColorResult) isResponse()    {}
func (SnapshotResult) isResponse() {}

// Handle runs req against r. It is the single place where messages meet the renderer.
func Handle(r *render.Renderer, req Request) Response {
	if req == nil {
		return Ack{Result{Failure: &Failure{Code: apperrors.CodeInvalidArgument, Message: "nil request"}}}
	}
	res := Result{Kind: req.Op()}
	switch m := req.(type) {
	case InitPreviewSurfaceRequest:
		res.Failure = failureFrom(r.InitPreviewSurface(m.Surface, m.Codec))
		return Ack{res}
	case InitPixelBufferRequest:
		res.Failure = failureFrom(r.InitPixelBuffer(m.Source))
		return Ack{res}
	case PutPreviewWindowRequest:
		return ColorResult{Result: res, Color: r.PutPreviewWindow(m.Window)}
	case PreviewSnapshotRequest:
		return SnapshotResult{Result: res, Snapshot: r.PreviewSnapshot()}
	case SwitchHistoryRequest:
		res.Failure = failureFrom(r.SwitchHistorySource(m.Locator))
		return Ack{res}
	case PickColorRequest:
		return ColorResult{Result: res, Color: r.PickColor(m.X, m.Y)}
	case ReleaseRequest:
		r.ReleasePixelBuffers()
		return Ack{res}
	default:
		res.Failure = &Failure{Code: apperrors.CodeInvalidArgument, Message: "unknown request"}
		return Ack{res}
	}
}
