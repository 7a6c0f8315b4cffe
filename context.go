package cacus

import (
	"math"

	vk "github.com/vulkan-go/vulkan"
)

// maxFramesInFlight is the number of frames the CPU may record ahead of the
// GPU.
const maxFramesInFlight = 2

// frameSlot is the synchronization owned by one frame in flight.
type frameSlot struct {
	imageAvailable vk.Semaphore
	renderFinished vk.Semaphore
	inFlight       vk.Fence
}

// frameTarget is what a single draw renders into: the swap chain, one
// pre-recorded command buffer per image, and a hook run right before the
// submit for the acquired image.
type frameTarget struct {
	swapchain    vk.Swapchain
	commands     []vk.CommandBuffer
	beforeSubmit func(image uint32) error
}

// frameSynchronizer runs the acquire, submit and present protocol over
// maxFramesInFlight slots. imagesInFlight remembers, per swap chain image,
// the fence of the slot that last rendered it so an image is never
// re-recorded while the GPU still reads it.
type frameSynchronizer struct {
	drv           Driver
	device        vk.Device
	graphicsQueue vk.Queue
	presentQueue  vk.Queue

	fences         *FenceManager
	slots          [maxFramesInFlight]frameSlot
	imagesInFlight []vk.Fence
	currentFrame   int
	// broken holds the error of a frame that failed after its image was
	// acquired. The slot's image-available semaphore is then still pending
	// and the image is never presented, so no further frame is drawn.
	broken error
}

func newFrameSynchronizer(drv Driver, ctx *DeviceContext) (*frameSynchronizer, error) {
	f := &frameSynchronizer{
		drv:           drv,
		device:        ctx.device,
		graphicsQueue: ctx.graphicsQueue,
		presentQueue:  ctx.presentQueue,
		fences:        NewFenceManager(drv, ctx.device),
	}
	for i := range f.slots {
		var err error
		slot := &f.slots[i]
		if slot.imageAvailable, err = f.fences.NewSemaphore(); err != nil {
			f.destroy()
			return nil, err
		}
		if slot.renderFinished, err = f.fences.NewSemaphore(); err != nil {
			f.destroy()
			return nil, err
		}
		// Signaled so the first wait on each slot returns at once.
		if slot.inFlight, err = f.fences.NewFence(true); err != nil {
			f.destroy()
			return nil, err
		}
	}
	return f, nil
}

// resetImages forgets every image to fence association. Called whenever the
// swap chain is rebuilt with count images.
func (f *frameSynchronizer) resetImages(count int) {
	f.imagesInFlight = make([]vk.Fence, count)
}

func (f *frameSynchronizer) wait(fence vk.Fence) error {
	ret := f.drv.WaitForFences(f.device, []vk.Fence{fence}, true, math.MaxUint64)
	return newError(ErrSync, "wait for fence", ret)
}

// draw renders and presents one frame. needsRecreate reports a stale or
// suboptimal surface; it is never an error. On a stale acquire nothing is
// submitted and the slot is left untouched, so the same slot is retried
// after the swap chain has been rebuilt. An error after a successful acquire
// is terminal: every later draw returns it without calling the driver.
func (f *frameSynchronizer) draw(t frameTarget) (needsRecreate bool, err error) {
	if f.broken != nil {
		return false, f.broken
	}
	slot := f.slots[f.currentFrame]
	if err := f.wait(slot.inFlight); err != nil {
		return false, err
	}

	var image uint32
	ret := f.drv.AcquireNextImage(f.device, t.swapchain, math.MaxUint64, slot.imageAvailable, vk.NullFence, &image)
	switch ret {
	case vk.Success:
	case vk.Suboptimal:
		needsRecreate = true
	case vk.ErrorOutOfDate:
		return true, nil
	default:
		return false, newError(ErrPresent, "acquire next image", ret)
	}
	defer func() {
		if err != nil {
			f.broken = err
		}
	}()
	if int(image) >= len(t.commands) || int(image) >= len(f.imagesInFlight) {
		return false, errorf(ErrPresent, "acquire next image", "image index %d out of range", image)
	}

	if prev := f.imagesInFlight[image]; prev != vk.NullFence && prev != slot.inFlight {
		if err := f.wait(prev); err != nil {
			return false, err
		}
	}
	f.imagesInFlight[image] = slot.inFlight

	if t.beforeSubmit != nil {
		if err := t.beforeSubmit(image); err != nil {
			return false, err
		}
	}
	// Reset only once the submit is certain to follow, otherwise the next
	// wait on this slot would never return.
	if err := newError(ErrSync, "reset fence", f.drv.ResetFences(f.device, []vk.Fence{slot.inFlight})); err != nil {
		return false, err
	}
	ret = f.drv.QueueSubmit(f.graphicsQueue, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{slot.imageAvailable},
		// The image is only written at color output; earlier stages may run
		// before the presentation engine releases it.
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{t.commands[image]},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{slot.renderFinished},
	}}, slot.inFlight)
	if err := newError(ErrSubmit, "queue submit", ret); err != nil {
		return false, err
	}

	ret = f.drv.QueuePresent(f.presentQueue, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{slot.renderFinished},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{t.swapchain},
		PImageIndices:      []uint32{image},
	})
	switch ret {
	case vk.Success:
	case vk.Suboptimal, vk.ErrorOutOfDate:
		needsRecreate = true
	default:
		return false, newError(ErrPresent, "queue present", ret)
	}

	f.currentFrame = (f.currentFrame + 1) % maxFramesInFlight
	return needsRecreate, nil
}

func (f *frameSynchronizer) destroy() {
	if f == nil {
		return
	}
	f.fences.Destroy()
	f.imagesInFlight = nil
}
