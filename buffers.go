package cacus

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

const (
	hostVisible = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	deviceLocal = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
)

// Buffer is a buffer object together with the memory bound to it.
type Buffer struct {
	drv    Driver
	device vk.Device
	// Buffer is the buffer object.
	Buffer vk.Buffer
	// Memory is the device memory backing buffer object.
	Memory vk.DeviceMemory
	// Size is the requested size, not the allocation size.
	Size vk.DeviceSize
}

func (b *Buffer) Destroy() {
	if b == nil || b.device == nil {
		return
	}
	b.drv.DestroyBuffer(b.device, b.Buffer)
	b.drv.FreeMemory(b.device, b.Memory)
	b.device = nil
}

// FindMemoryType returns the first memory type allowed by typeBits that has
// every flag in want.
func FindMemoryType(props vk.PhysicalDeviceMemoryProperties, typeBits uint32, want vk.MemoryPropertyFlags) (uint32, bool) {
	for i := uint32(0); i < props.MemoryTypeCount && i < vk.MaxMemoryTypes; i++ {
		if typeBits&(1<<i) == 0 {
			continue
		}
		if props.MemoryTypes[i].PropertyFlags&want == want {
			return i, true
		}
	}
	return 0, false
}

// Uploader creates buffers and moves bytes into device local memory through
// host visible staging buffers. Transfers block until the queue is idle; they
// are meant for setup, not per frame work.
type Uploader struct {
	drv  Driver
	ctx  *DeviceContext
	cmds *CommandBufferManager
}

func NewUploader(drv Driver, ctx *DeviceContext, cmds *CommandBufferManager) *Uploader {
	return &Uploader{drv: drv, ctx: ctx, cmds: cmds}
}

func (u *Uploader) allocate(reqs vk.MemoryRequirements, flags vk.MemoryPropertyFlags) (vk.DeviceMemory, error) {
	memType, ok := FindMemoryType(u.ctx.memory, reqs.MemoryTypeBits, flags)
	if !ok {
		return vk.NullDeviceMemory, errorf(ErrNoSuitableMemoryType, "find memory type",
			"no memory type in mask %#x has flags %#x", reqs.MemoryTypeBits, uint32(flags))
	}
	var memory vk.DeviceMemory
	ret := u.drv.AllocateMemory(u.ctx.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: memType,
	}, &memory)
	if err := newError(ErrResourceCreation, "allocate memory", ret); err != nil {
		return vk.NullDeviceMemory, err
	}
	return memory, nil
}

// CreateBuffer creates a buffer, allocates memory with the requested
// properties and binds the two.
func (u *Uploader) CreateBuffer(size vk.DeviceSize, usage vk.BufferUsageFlags, flags vk.MemoryPropertyFlags) (*Buffer, error) {
	if size == 0 {
		return nil, errorf(ErrResourceCreation, "create buffer", "zero sized buffer")
	}
	device := u.ctx.device
	var buffer vk.Buffer
	ret := u.drv.CreateBuffer(device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}, &buffer)
	if err := newError(ErrResourceCreation, "create buffer", ret); err != nil {
		return nil, err
	}

	reqs := u.drv.BufferMemoryRequirements(device, buffer)
	memory, err := u.allocate(reqs, flags)
	if err != nil {
		u.drv.DestroyBuffer(device, buffer)
		return nil, err
	}
	if err := newError(ErrResourceCreation, "bind buffer memory", u.drv.BindBufferMemory(device, buffer, memory, 0)); err != nil {
		u.drv.DestroyBuffer(device, buffer)
		u.drv.FreeMemory(device, memory)
		return nil, err
	}
	return &Buffer{drv: u.drv, device: device, Buffer: buffer, Memory: memory, Size: size}, nil
}

// Write copies data into a host visible buffer at offset.
func (u *Uploader) Write(b *Buffer, offset vk.DeviceSize, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var pData unsafe.Pointer
	ret := u.drv.MapMemory(b.device, b.Memory, offset, vk.DeviceSize(len(data)), &pData)
	if err := newError(ErrResourceCreation, "map memory", ret); err != nil {
		return err
	}
	vk.Memcopy(pData, data)
	u.drv.UnmapMemory(b.device, b.Memory)
	return nil
}

func (u *Uploader) read(b *Buffer, size vk.DeviceSize) ([]byte, error) {
	var pData unsafe.Pointer
	ret := u.drv.MapMemory(b.device, b.Memory, 0, size, &pData)
	if err := newError(ErrResourceCreation, "map memory", ret); err != nil {
		return nil, err
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(pData), int(size)))
	u.drv.UnmapMemory(b.device, b.Memory)
	return out, nil
}

// staging returns a host visible transfer buffer filled with data.
func (u *Uploader) staging(data []byte, usage vk.BufferUsageFlagBits) (*Buffer, error) {
	stage, err := u.CreateBuffer(vk.DeviceSize(len(data)), vk.BufferUsageFlags(usage), hostVisible)
	if err != nil {
		return nil, err
	}
	if err := u.Write(stage, 0, data); err != nil {
		stage.Destroy()
		return nil, err
	}
	return stage, nil
}

// UploadViaStaging creates a device local buffer with the given usage (plus
// transfer destination) holding a copy of data.
func (u *Uploader) UploadViaStaging(data []byte, usage vk.BufferUsageFlagBits) (*Buffer, error) {
	if len(data) == 0 {
		return nil, errorf(ErrResourceCreation, "upload buffer", "no data")
	}
	stage, err := u.staging(data, vk.BufferUsageTransferSrcBit)
	if err != nil {
		return nil, err
	}
	defer stage.Destroy()

	size := vk.DeviceSize(len(data))
	dst, err := u.CreateBuffer(size, vk.BufferUsageFlags(usage|vk.BufferUsageTransferDstBit|vk.BufferUsageTransferSrcBit), deviceLocal)
	if err != nil {
		return nil, err
	}
	err = u.cmds.OneShot(func(cmd vk.CommandBuffer) {
		u.drv.CmdCopyBuffer(cmd, stage.Buffer, dst.Buffer, []vk.BufferCopy{{Size: size}})
	})
	if err != nil {
		dst.Destroy()
		return nil, err
	}
	return dst, nil
}

// ReadBuffer copies the first size bytes of a device local buffer back to the
// host through a staging buffer. The buffer must have been created with
// transfer source usage, which UploadViaStaging always adds.
func (u *Uploader) ReadBuffer(b *Buffer, size vk.DeviceSize) ([]byte, error) {
	if size == 0 || size > b.Size {
		size = b.Size
	}
	stage, err := u.CreateBuffer(size, vk.BufferUsageFlags(vk.BufferUsageTransferDstBit), hostVisible)
	if err != nil {
		return nil, err
	}
	defer stage.Destroy()
	err = u.cmds.OneShot(func(cmd vk.CommandBuffer) {
		u.drv.CmdCopyBuffer(cmd, b.Buffer, stage.Buffer, []vk.BufferCopy{{Size: size}})
	})
	if err != nil {
		return nil, err
	}
	return u.read(stage, size)
}
