package cacus

import vk "github.com/vulkan-go/vulkan"

// DeviceContext is the selected physical device, the logical device created
// on it and its queues. It does not change after selection and outlives every
// object created from it.
type DeviceContext struct {
	drv Driver

	gpu        vk.PhysicalDevice
	device     vk.Device
	properties vk.PhysicalDeviceProperties
	memory     vk.PhysicalDeviceMemoryProperties
	families   queueFamilies

	graphicsQueue vk.Queue
	presentQueue  vk.Queue

	extensions []string
	anisotropy bool
	maxAniso   float32
}

func (d *DeviceContext) PhysicalDevice() vk.PhysicalDevice { return d.gpu }

func (d *DeviceContext) Device() vk.Device { return d.device }

func (d *DeviceContext) GraphicsQueue() vk.Queue { return d.graphicsQueue }

func (d *DeviceContext) PresentQueue() vk.Queue { return d.presentQueue }

func (d *DeviceContext) GraphicsQueueFamilyIndex() uint32 { return d.families.graphics }

func (d *DeviceContext) PresentQueueFamilyIndex() uint32 { return d.families.present }

// HasSeparatePresentQueue is true when PresentQueueFamilyIndex differs from GraphicsQueueFamilyIndex.
func (d *DeviceContext) HasSeparatePresentQueue() bool { return d.families.separatePresent() }

func (d *DeviceContext) Name() string { return vk.ToString(d.properties.DeviceName[:]) }

func (d *DeviceContext) MemoryProperties() vk.PhysicalDeviceMemoryProperties { return d.memory }

func (d *DeviceContext) waitIdle() error {
	return newError(ErrSync, "device wait idle", d.drv.DeviceWaitIdle(d.device))
}
