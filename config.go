package cacus

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"strings"

	vk "github.com/vulkan-go/vulkan"
	"gopkg.in/yaml.v3"
)

const (
	PresentModeMailbox     = "mailbox"
	PresentModeFifo        = "fifo"
	PresentModeFifoRelaxed = "fifo_relaxed"
	PresentModeImmediate   = "immediate"

	// DefaultValidationLayer is enabled when Validation is set and no layers are listed.
	DefaultValidationLayer = "VK_LAYER_KHRONOS_validation"
)

// Config describes how the engine builds its instance, device and swap chain.
// It is resolved once by New; changing it afterwards has no effect.
type Config struct {
	AppName    string `yaml:"app_name"`
	EngineName string `yaml:"engine_name"`

	// Width and Height are the initial extent hint used when the surface
	// leaves the extent up to the application.
	Width  uint32 `yaml:"width"`
	Height uint32 `yaml:"height"`

	Validation       bool     `yaml:"validation"`
	ValidationLayers []string `yaml:"validation_layers"`

	// Extensions requested on top of what the window collaborator needs.
	// Every entry must be available or New fails with ErrConfiguration.
	InstanceExtensions []string `yaml:"instance_extensions"`
	DeviceExtensions   []string `yaml:"device_extensions"`

	// PresentMode is the preferred present mode; FIFO is the fallback.
	PresentMode string `yaml:"present_mode"`

	Depth      bool       `yaml:"depth"`
	ClearColor [4]float32 `yaml:"clear_color"`
	LogLevel   string     `yaml:"log_level"`
}

func DefaultConfig() Config {
	return Config{
		AppName:     "cacus",
		EngineName:  "cacus",
		Width:       800,
		Height:      600,
		PresentMode: PresentModeMailbox,
		Depth:       true,
		ClearColor:  [4]float32{0, 0, 0, 1},
		LogLevel:    "info",
	}
}

// LoadConfig reads a YAML config file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, wrapError(ErrConfiguration, "open config", err)
	}
	defer f.Close()
	return decodeConfig(f)
}

// ParseConfig decodes YAML bytes on top of DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	return decodeConfig(bytes.NewReader(data))
}

func decodeConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, wrapError(ErrConfiguration, "decode config", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Width == 0 || c.Height == 0 {
		return errorf(ErrConfiguration, "validate config", "extent hint %dx%d must be non-zero", c.Width, c.Height)
	}
	if _, ok := presentModeByName(c.PresentMode); !ok {
		return errorf(ErrConfiguration, "validate config", "unknown present mode %q", c.PresentMode)
	}
	if _, ok := parseLevel(c.LogLevel); !ok {
		return errorf(ErrConfiguration, "validate config", "unknown log level %q", c.LogLevel)
	}
	return nil
}

func (c Config) layers() []string {
	if !c.Validation {
		return nil
	}
	if len(c.ValidationLayers) == 0 {
		return []string{DefaultValidationLayer}
	}
	return c.ValidationLayers
}

// Level returns the slog level named by LogLevel, Info if it is unset.
func (c Config) Level() slog.Level {
	lvl, _ := parseLevel(c.LogLevel)
	return lvl
}

func parseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "", "info":
		return slog.LevelInfo, true
	case "debug":
		return slog.LevelDebug, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

func presentModeByName(name string) (vk.PresentMode, bool) {
	switch strings.ToLower(name) {
	case "", PresentModeMailbox:
		return vk.PresentModeMailbox, true
	case PresentModeFifo:
		return vk.PresentModeFifo, true
	case PresentModeFifoRelaxed:
		return vk.PresentModeFifoRelaxed, true
	case PresentModeImmediate:
		return vk.PresentModeImmediate, true
	}
	return vk.PresentModeFifo, false
}
