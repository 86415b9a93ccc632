package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"github.com/GriffinCanCode/colorpick/internal/codec"
	apperrors "github.com/GriffinCanCode/colorpick/internal/errors"
	"github.com/GriffinCanCode/colorpick/internal/picker"
	"github.com/GriffinCanCode/colorpick/internal/pixel"
	"github.com/GriffinCanCode/colorpick/internal/trace"
)

// Engine is the picker surface the bridge drives. *picker.Orchestrator implements it.
type Engine interface {
	CaptureReady(ctx context.Context, c picker.Capture) (string, error)
	CaptureFinished(ctx context.Context) error
	UpdateState(s picker.HostState)
	PointerMove(x, y float64)
	Step(dx, dy int) bool
	CycleFormat() pixel.Format
	SwitchHistory(ctx context.Context, locator string) error
	Snapshot(ctx context.Context) (*pixel.Buffer, error)
	Color() (pixel.Color, string)
	PickAt(ctx context.Context, x, y int) (pixel.Color, error)
	Session() string
	Events() <-chan picker.Event
}

// Grabber produces screen captures. screen.Capturer implements it.
type Grabber interface {
	Capture() (*pixel.Buffer, bool, error)
	CaptureAlways() (*pixel.Buffer, error)
}

// rateLimiter tracks frame timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a frame is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-FrameRateWindow)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= FrameRateLimit {
		return false
	}
	r.timestamps = append(r.timestamps, now)
	return true
}

// client is one bridge connection. All outbound frames go through out and a
// single writer, so they arrive in the order they were queued.
type client struct {
	conn    *websocket.Conn
	limiter *rateLimiter
	out     chan any
	done    chan struct{}
	once    sync.Once
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn:    conn,
		limiter: &rateLimiter{},
		out:     make(chan any, ClientBuffer),
		done:    make(chan struct{}),
	}
}

func (c *client) writeLoop(log *slog.Logger) {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.out:
			ctx, cancel := context.WithTimeout(context.Background(), WriteTimeout)
			err := wsjson.Write(ctx, c.conn, msg)
			cancel()
			if err != nil {
				log.Debug("websocket write error", "error", err)
				c.stop()
				return
			}
		}
	}
}

// send queues msg. A client whose queue stays full for WriteTimeout is dropped.
func (c *client) send(msg any) {
	select {
	case c.out <- msg:
		return
	case <-c.done:
		return
	default:
	}

	timer := time.NewTimer(WriteTimeout)
	defer timer.Stop()
	select {
	case c.out <- msg:
	case <-c.done:
	case <-timer.C:
		c.stop()
		_ = c.conn.Close(websocket.StatusTryAgainLater, "client too slow")
	}
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	engine        Engine
	grabber       Grabber
	detectChanges bool

	mu    sync.RWMutex
	conns map[*websocket.Conn]*client

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a server and starts broadcasting engine events. grabber may be
// nil, in which case POST /api/capture requires an image body. With
// detectChanges, a screen grab that looks like the last one keeps the
// current capture.
func New(engine Engine, grabber Grabber, detectChanges bool) *Server {
	s := &Server{
		engine:        engine,
		grabber:       grabber,
		detectChanges: detectChanges,
		conns:         make(map[*websocket.Conn]*client),
		done:          make(chan struct{}),
	}
	go s.broadcast()
	return s
}

// Close stops the broadcaster. Open connections end when their handlers return.
func (s *Server) Close() {
	s.stopOnce.Do(func() { close(s.done) })
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(corsMiddleware, trace.Middleware)

	r.Get("/ws", s.handleWebSocket)
	r.Route("/api", func(r chi.Router) {
		r.Get("/preview", s.handlePreview)
		r.Get("/color", s.handleColor)
		r.Post("/capture", s.handleCapture)
		r.Delete("/capture", s.handleCaptureFinished)
		r.Post("/history", s.handleHistory)
	})
	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	baseCtx := r.Context()
	log := trace.Logger(baseCtx)

	c := newClient(conn)
	go c.writeLoop(log)
	defer c.stop()

	s.mu.Lock()
	s.conns[conn] = c
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	log.Info("websocket connected", "remote", r.RemoteAddr)

	for {
		var raw json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &raw); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		if !c.limiter.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			c.send(ErrorMessage{Type: frameError, Message: "rate limit exceeded"})
			continue
		}

		ctx := baseCtx
		if tc, ok := trace.FromFrame(raw); ok {
			ctx = trace.WithContext(ctx, tc)
		}
		if err := s.handleFrame(ctx, raw); err != nil {
			trace.Logger(ctx).Debug("bridge frame rejected", "error", err)
			c.send(ErrorMessage{Type: frameError, Message: err.Error()})
		}
	}
}

// handleFrame applies one inbound bridge frame to the engine.
func (s *Server) handleFrame(ctx context.Context, raw json.RawMessage) error {
	var base Message
	if err := json.Unmarshal(raw, &base); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidArgument, "malformed frame")
	}

	switch base.Type {
	case framePointer:
		var m PointerMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInvalidArgument, "pointer frame")
		}
		s.engine.PointerMove(m.X, m.Y)
	case frameKey:
		var m KeyMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInvalidArgument, "key frame")
		}
		if d, ok := keySteps[m.Key]; ok {
			s.engine.Step(d.X, d.Y)
		} else if m.Key == "c" || m.Key == "C" {
			s.engine.CycleFormat()
		}
	case frameState:
		var m StateMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInvalidArgument, "state frame")
		}
		s.engine.UpdateState(m.hostState())
	case frameHistory:
		var m HistoryMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInvalidArgument, "history frame")
		}
		// failures reach clients through the engine's error event
		_ = s.engine.SwitchHistory(ctx, m.Locator)
	case frameCaptureFinished:
		return s.engine.CaptureFinished(ctx)
	default:
		return apperrors.Newf(apperrors.CodeInvalidArgument, "unknown frame type %q", base.Type)
	}
	return nil
}

func (s *Server) broadcast() {
	events := s.engine.Events()
	for {
		select {
		case <-s.done:
			return
		case ev := <-events:
			msg, ok := outbound(ev)
			if !ok {
				continue
			}
			s.mu.RLock()
			clients := make([]*client, 0, len(s.conns))
			for _, c := range s.conns {
				clients = append(clients, c)
			}
			s.mu.RUnlock()
			for _, c := range clients {
				c.send(msg)
			}
		}
	}
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if snap == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, snap.Image()); err != nil {
		writeError(w, r, apperrors.Wrap(err, apperrors.CodeInternal, "encode preview"))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

// handleColor returns the last sample, or samples (x, y) in device pixels when
// both are given. A point sample is rendered as hex.
func (s *Server) handleColor(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Has("x") || q.Has("y") {
		x, errX := strconv.Atoi(q.Get("x"))
		y, errY := strconv.Atoi(q.Get("y"))
		if errX != nil || errY != nil {
			writeError(w, r, apperrors.Newf(apperrors.CodeInvalidArgument, "bad point %q,%q", q.Get("x"), q.Get("y")))
			return
		}
		c, err := s.engine.PickAt(r.Context(), x, y)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, colorMessage(c, c.Hex()))
		return
	}
	c, text := s.engine.Color()
	writeJSON(w, http.StatusOK, colorMessage(c, text))
}

func colorMessage(c pixel.Color, text string) ColorMessage {
	return ColorMessage{Type: string(picker.EventColor), Hex: c.Hex(), Text: text, R: c.R, G: c.G, B: c.B}
}

// handleCapture installs a capture from the request body, or grabs the screen
// when the body is empty. ?ratio= sets device pixels per logical pixel.
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	ratio := 1.0
	if v := r.URL.Query().Get("ratio"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			writeError(w, r, apperrors.Newf(apperrors.CodeInvalidArgument, "bad ratio %q", v))
			return
		}
		ratio = f
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxCaptureBytes))
	if err != nil {
		writeError(w, r, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "read capture body"))
		return
	}

	capture := picker.Capture{Ratio: ratio}
	if len(data) == 0 {
		if s.grabber == nil {
			writeError(w, r, apperrors.New(apperrors.CodeUnavailable, "no screen grabber; send an image body"))
			return
		}
		buf, changed, err := s.grab()
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !changed {
			writeJSON(w, http.StatusOK, map[string]any{"session": s.engine.Session(), "unchanged": true})
			return
		}
		capture.Source = pixel.SharedView{Buffer: buf}
		capture.Width, capture.Height = buf.Width, buf.Height
	} else {
		size, err := codec.Bounds(data)
		if err != nil {
			writeError(w, r, err)
			return
		}
		capture.Source = pixel.Encoded{Data: data}
		capture.Width, capture.Height = size.X, size.Y
	}

	id, err := s.engine.CaptureReady(r.Context(), capture)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session": id,
		"width":   capture.Width,
		"height":  capture.Height,
	})
}

// grab reports changed=false only when change detection is on and a capture
// is already loaded.
func (s *Server) grab() (*pixel.Buffer, bool, error) {
	if s.detectChanges && s.engine.Session() != "" {
		return s.grabber.Capture()
	}
	buf, err := s.grabber.CaptureAlways()
	return buf, err == nil, err
}

func (s *Server) handleCaptureFinished(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.CaptureFinished(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Locator string `json:"locator"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "decode history request"))
		return
	}
	if err := s.engine.SwitchHistory(r.Context(), req.Locator); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	log := trace.Logger(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		log.Warn("request rejected", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, ErrorMessage{Type: frameError, Message: err.Error()})
}

// statusOf maps an error code onto an HTTP status.
func statusOf(err error) int {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.Code {
	case apperrors.CodeInvalidArgument, apperrors.CodeDecodeFailed:
		return http.StatusBadRequest
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.CodeUnavailable, apperrors.CodeChannelUnavailable, apperrors.CodeCodecUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
