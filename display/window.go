// Package display adapts glfw windows to the cacus window collaborator.
package display

import (
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Window is a resizable glfw window with no client API, ready for a Vulkan
// surface. glfw must only be used from the main thread.
type Window struct {
	window *glfw.Window
}

// Open initializes glfw and creates a window. The calling goroutine is locked
// to its thread for the lifetime of the process.
func Open(title string, width, height int) (*Window, error) {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return nil, errors.Wrap(err, "initialize glfw")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return nil, errors.New("glfw reports no Vulkan loader")
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.Visible, glfw.True)

	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, errors.Wrap(err, "create window")
	}
	return &Window{window: win}, nil
}

// ProcAddr is the loader entry point glfw found, for cacus.NewDriverWithProcAddr.
func (w *Window) ProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

func (w *Window) RequiredInstanceExtensions() []string {
	return w.window.GetRequiredInstanceExtensions()
}

func (w *Window) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	ptr, err := w.window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, errors.Wrap(err, "create window surface")
	}
	return vk.SurfaceFromPointer(ptr), nil
}

func (w *Window) FramebufferSize() (int, int) {
	return w.window.GetFramebufferSize()
}

// SetResizeCallback reports framebuffer sizes in pixels, which differ from
// the window size on high DPI displays.
func (w *Window) SetResizeCallback(fn func(width, height int)) {
	w.window.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		fn(width, height)
	})
}

func (w *Window) ShouldClose() bool { return w.window.ShouldClose() }

// PollEvents processes pending events, running any callbacks.
func (w *Window) PollEvents() { glfw.PollEvents() }

// WaitEvents blocks until an event arrives, used while minimized.
func (w *Window) WaitEvents() { glfw.WaitEvents() }

func (w *Window) SetTitle(title string) { w.window.SetTitle(title) }

// Close destroys the window and terminates glfw.
func (w *Window) Close() {
	if w.window == nil {
		return
	}
	w.window.Destroy()
	w.window = nil
	glfw.Terminate()
}
