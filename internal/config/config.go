// Package config loads picker settings: defaults, then an optional YAML file
// named by PICKER_CONFIG, then environment overrides.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/GriffinCanCode/colorpick/internal/errors"
	"github.com/GriffinCanCode/colorpick/internal/picker"
	"github.com/GriffinCanCode/colorpick/internal/pixel"
	"github.com/GriffinCanCode/colorpick/internal/render"
)

// Worker modes.
const (
	WorkerInProcess = "inprocess"
	WorkerGRPC      = "grpc"
	WorkerOff       = "off"
)

type Config struct {
	HTTPAddr   string `yaml:"http_addr"`
	WorkerMode string `yaml:"worker_mode"`
	WorkerAddr string `yaml:"worker_addr"` // pickerworker dials / listens here
	Display    int    `yaml:"display"`

	PreviewSize int `yaml:"preview_size"`
	Zoom        int `yaml:"zoom"`

	ColorFormat      string `yaml:"color_format"`
	AuxLineColor     string `yaml:"aux_line_color"` // #RRGGBB[AA], empty for none
	VisibilityPolicy string `yaml:"visibility_policy"`

	EnableDebounce    time.Duration `yaml:"enable_debounce"`
	PointerSuppress   time.Duration `yaml:"pointer_suppress"`
	FrameInterval     time.Duration `yaml:"frame_interval"`
	TransformInterval time.Duration `yaml:"transform_interval"`
	RemoteCallTimeout time.Duration `yaml:"remote_call_timeout"`

	DraggingOpacity float64 `yaml:"dragging_opacity"`
	HintOpacity     float64 `yaml:"hint_opacity"`

	// skip screen grabs that look like the previous one
	ChangeDetection bool `yaml:"change_detection"`
}

// Defaults returns the built-in settings.
func Defaults() *Config {
	return &Config{
		HTTPAddr:          ":8000",
		WorkerMode:        WorkerInProcess,
		WorkerAddr:        "localhost:50061",
		PreviewSize:       11,
		Zoom:              10,
		ColorFormat:       "hex",
		AuxLineColor:      "#FF0000CC",
		VisibilityPolicy:  "always",
		EnableDebounce:    17 * time.Millisecond,
		PointerSuppress:   256 * time.Millisecond,
		FrameInterval:     16 * time.Millisecond,
		TransformInterval: 4 * time.Millisecond,
		RemoteCallTimeout: 250 * time.Millisecond,
		DraggingOpacity:   0.5,
		HintOpacity:       0.3,
		ChangeDetection:   true,
	}
}

// Load layers defaults, the PICKER_CONFIG file and the environment, then validates.
func Load() (*Config, error) {
	cfg := Defaults()
	if path := os.Getenv("PICKER_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeNotFound, "read config file").WithMetadata("path", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidArgument, "parse config file").WithMetadata("path", path)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.WorkerMode = getEnv("PICKER_WORKER_MODE", c.WorkerMode)
	c.WorkerAddr = getEnv("PICKER_WORKER_ADDR", c.WorkerAddr)
	c.Display = getEnvInt("PICKER_DISPLAY", c.Display)
	c.PreviewSize = getEnvInt("PICKER_PREVIEW_SIZE", c.PreviewSize)
	c.Zoom = getEnvInt("PICKER_ZOOM", c.Zoom)
	c.ColorFormat = getEnv("PICKER_COLOR_FORMAT", c.ColorFormat)
	c.AuxLineColor = getEnv("PICKER_AUX_LINE_COLOR", c.AuxLineColor)
	c.VisibilityPolicy = getEnv("PICKER_VISIBILITY", c.VisibilityPolicy)
	c.EnableDebounce = getEnvDuration("PICKER_ENABLE_DEBOUNCE", c.EnableDebounce)
	c.PointerSuppress = getEnvDuration("PICKER_POINTER_SUPPRESS", c.PointerSuppress)
	c.FrameInterval = getEnvDuration("PICKER_FRAME_INTERVAL", c.FrameInterval)
	c.TransformInterval = getEnvDuration("PICKER_TRANSFORM_INTERVAL", c.TransformInterval)
	c.RemoteCallTimeout = getEnvDuration("PICKER_REMOTE_TIMEOUT", c.RemoteCallTimeout)
	c.DraggingOpacity = getEnvFloat("PICKER_DRAGGING_OPACITY", c.DraggingOpacity)
	c.HintOpacity = getEnvFloat("PICKER_HINT_OPACITY", c.HintOpacity)
	c.ChangeDetection = getEnvBool("PICKER_CHANGE_DETECTION", c.ChangeDetection)
}

// Validate rejects settings the picker cannot run with.
func (c *Config) Validate() error {
	switch c.WorkerMode {
	case WorkerInProcess, WorkerGRPC, WorkerOff:
	default:
		return apperrors.Newf(apperrors.CodeInvalidArgument, "worker mode %q", c.WorkerMode)
	}
	if c.PreviewSize <= 0 || c.PreviewSize%2 == 0 {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "preview size %d must be odd and positive", c.PreviewSize)
	}
	if c.Zoom <= 0 {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "zoom %d must be positive", c.Zoom)
	}
	if _, ok := pixel.ParseFormat(c.ColorFormat); !ok {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "color format %q", c.ColorFormat)
	}
	if _, err := pixel.ParseHex(c.AuxLineColor); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidArgument, "aux line color")
	}
	if _, ok := picker.ParsePolicy(c.VisibilityPolicy); !ok {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "visibility policy %q", c.VisibilityPolicy)
	}
	for name, d := range map[string]time.Duration{
		"enable_debounce":     c.EnableDebounce,
		"pointer_suppress":    c.PointerSuppress,
		"frame_interval":      c.FrameInterval,
		"transform_interval":  c.TransformInterval,
		"remote_call_timeout": c.RemoteCallTimeout,
	} {
		if d <= 0 {
			return apperrors.Newf(apperrors.CodeInvalidArgument, "%s must be positive", name)
		}
	}
	if c.DraggingOpacity < 0 || c.DraggingOpacity > 1 || c.HintOpacity < 0 || c.HintOpacity > 1 {
		return apperrors.New(apperrors.CodeInvalidArgument, "opacities must be within [0,1]")
	}
	return nil
}

// PickerOptions turns validated settings into orchestrator options.
func (c *Config) PickerOptions() picker.Options {
	opts := picker.DefaultOptions()
	opts.Surface = render.Surface{Size: c.PreviewSize, Zoom: c.Zoom}
	opts.AuxLine, _ = pixel.ParseHex(c.AuxLineColor)
	opts.Visuals.Policy, _ = picker.ParsePolicy(c.VisibilityPolicy)
	opts.Visuals.DraggingOpacity = c.DraggingOpacity
	opts.Visuals.HintOpacity = c.HintOpacity
	opts.EnableDebounce = c.EnableDebounce
	opts.PointerSuppress = c.PointerSuppress
	opts.FrameInterval = c.FrameInterval
	opts.TransformInterval = c.TransformInterval
	return opts
}

// Format is the configured default color format.
func (c *Config) Format() pixel.Format {
	idx, _ := pixel.ParseFormat(c.ColorFormat)
	return pixel.FormatAt(idx)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
