package cacus

import (
	"log/slog"

	vk "github.com/vulkan-go/vulkan"
)

var (
	DefaultAppVersion = vk.MakeVersion(1, 0, 0)
	DefaultAPIVersion = vk.MakeVersion(1, 1, 0)
)

// Option configures an Engine in New.
type Option func(*Engine)

// WithDriver replaces the vulkan-go backed driver, e.g. with a loader
// obtained from the windowing library.
func WithDriver(drv Driver) Option {
	return func(e *Engine) { e.drv = drv }
}

// WithLogger sets the structured logger used for lifecycle events and
// validation messages. The default is slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithWindowExtensions adds the instance extensions a window collaborator
// needs to create surfaces. They are required: New fails if any is missing.
func WithWindowExtensions(names ...string) Option {
	return func(e *Engine) { e.windowExtensions = append(e.windowExtensions, names...) }
}
