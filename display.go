package cacus

import vk "github.com/vulkan-go/vulkan"

// Window is the windowing collaborator. The display package implements it on
// top of glfw.
type Window interface {
	// RequiredInstanceExtensions lists the instance extensions needed to
	// create a surface for this window.
	RequiredInstanceExtensions() []string
	CreateSurface(instance vk.Instance) (vk.Surface, error)
	// FramebufferSize is the drawable size in pixels.
	FramebufferSize() (width, height int)
	// SetResizeCallback registers fn to be called with the new framebuffer
	// size whenever it changes, including minimization to 0x0.
	SetResizeCallback(fn func(width, height int))
}

// AttachWindow creates a surface for w, initializes the engine on it and
// routes resize notifications to RecreateSwapChain. A failed recreation from
// the callback is returned by the next Draw.
func (e *Engine) AttachWindow(w Window) error {
	if e.instance == nil {
		return errorf(ErrConfiguration, "attach window", "engine is shut down")
	}
	if missing := missingNames(e.instance.enabled, w.RequiredInstanceExtensions()); len(missing) > 0 {
		return errorf(ErrConfiguration, "attach window", "instance lacks window extensions: %s", joinNames(missing))
	}
	surface, err := w.CreateSurface(e.instance.handle)
	if err != nil {
		return wrapError(ErrResourceCreation, "create window surface", err)
	}
	if width, height := w.FramebufferSize(); width > 0 && height > 0 {
		e.width, e.height = uint32(width), uint32(height)
	}
	if err := e.Initialize(surface); err != nil {
		return err
	}
	w.SetResizeCallback(func(width, height int) {
		if width < 0 || height < 0 {
			return
		}
		if err := e.RecreateSwapChain(uint32(width), uint32(height)); err != nil {
			e.resizeErr = err
		}
	})
	e.window = w
	return nil
}
