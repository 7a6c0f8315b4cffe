package cacus

import vk "github.com/vulkan-go/vulkan"

// FenceManager creates the fences and semaphores used by the frame slots and
// releases all of them together.
// The manager is not thread-safe.
type FenceManager struct {
	drv        Driver
	device     vk.Device
	fences     []vk.Fence
	semaphores []vk.Semaphore
}

func NewFenceManager(drv Driver, device vk.Device) *FenceManager {
	return &FenceManager{drv: drv, device: device}
}

// NewFence creates a fence. Frame slot fences start signaled so the first wait
// on a fresh slot returns immediately.
func (f *FenceManager) NewFence(signaled bool) (vk.Fence, error) {
	var flags vk.FenceCreateFlags
	if signaled {
		flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	ret := f.drv.CreateFence(f.device, &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		Flags: flags,
	}, &fence)
	if err := newError(ErrSync, "create fence", ret); err != nil {
		return vk.NullFence, err
	}
	f.fences = append(f.fences, fence)
	return fence, nil
}

func (f *FenceManager) NewSemaphore() (vk.Semaphore, error) {
	var sem vk.Semaphore
	ret := f.drv.CreateSemaphore(f.device, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, &sem)
	if err := newError(ErrSync, "create semaphore", ret); err != nil {
		return vk.NullSemaphore, err
	}
	f.semaphores = append(f.semaphores, sem)
	return sem, nil
}

func (f *FenceManager) Destroy() {
	for i := range f.semaphores {
		f.drv.DestroySemaphore(f.device, f.semaphores[i])
	}
	for i := range f.fences {
		f.drv.DestroyFence(f.device, f.fences[i])
	}
	f.fences = nil
	f.semaphores = nil
}

// CommandBufferManager owns the graphics command pool. It hands out the
// per-image primary buffers and runs blocking one-shot transfers.
type CommandBufferManager struct {
	drv    Driver
	device vk.Device
	pool   vk.CommandPool
	queue  vk.Queue
}

// NewCommandBufferManager creates a pool on the graphics queue family.
func NewCommandBufferManager(drv Driver, ctx *DeviceContext) (*CommandBufferManager, error) {
	var pool vk.CommandPool
	ret := drv.CreateCommandPool(ctx.device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: ctx.families.graphics,
		// ResetCommandBufferBit allows command buffers to be reset individually.
		Flags: vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}, &pool)
	if err := newError(ErrResourceCreation, "create command pool", ret); err != nil {
		return nil, err
	}
	return &CommandBufferManager{
		drv:    drv,
		device: ctx.device,
		pool:   pool,
		queue:  ctx.graphicsQueue,
	}, nil
}

func (c *CommandBufferManager) Allocate(count int) ([]vk.CommandBuffer, error) {
	buffers := make([]vk.CommandBuffer, count)
	if count == 0 {
		return buffers, nil
	}
	ret := c.drv.AllocateCommandBuffers(c.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        c.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}, buffers)
	if err := newError(ErrResourceCreation, "allocate command buffers", ret); err != nil {
		return nil, err
	}
	return buffers, nil
}

func (c *CommandBufferManager) Free(buffers []vk.CommandBuffer) {
	c.drv.FreeCommandBuffers(c.device, c.pool, buffers)
}

// OneShot records fn into a fresh command buffer, submits it to the graphics
// queue and blocks until the queue is idle. The buffer is freed on return.
func (c *CommandBufferManager) OneShot(fn func(cmd vk.CommandBuffer)) error {
	buffers, err := c.Allocate(1)
	if err != nil {
		return err
	}
	defer c.Free(buffers)
	cmd := buffers[0]

	ret := c.drv.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	if err := newError(ErrSubmit, "begin one-shot command buffer", ret); err != nil {
		return err
	}
	fn(cmd)
	if err := newError(ErrSubmit, "end one-shot command buffer", c.drv.EndCommandBuffer(cmd)); err != nil {
		return err
	}
	ret = c.drv.QueueSubmit(c.queue, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    buffers,
	}}, vk.NullFence)
	if err := newError(ErrSubmit, "submit one-shot command buffer", ret); err != nil {
		return err
	}
	return newError(ErrSubmit, "wait for one-shot command buffer", c.drv.QueueWaitIdle(c.queue))
}

func (c *CommandBufferManager) Destroy() {
	c.drv.DestroyCommandPool(c.device, c.pool)
}
