package cacus

import (
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

type vkDriver struct{}

// NewDriver loads the system Vulkan loader and returns a Driver backed by it.
func NewDriver() (Driver, error) {
	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		return nil, errors.Wrap(err, "vulkan: load loader")
	}
	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "vulkan: init")
	}
	return vkDriver{}, nil
}

// NewDriverWithProcAddr initializes the bindings from an externally provided
// vkGetInstanceProcAddr, e.g. glfw.GetVulkanGetInstanceProcAddress().
func NewDriverWithProcAddr(procAddr unsafe.Pointer) (Driver, error) {
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "vulkan: init")
	}
	return vkDriver{}, nil
}

func (vkDriver) InstanceExtensions() ([]string, vk.Result) {
	var count uint32
	if ret := vk.EnumerateInstanceExtensionProperties("", &count, nil); ret != vk.Success {
		return nil, ret
	}
	list := make([]vk.ExtensionProperties, count)
	if ret := vk.EnumerateInstanceExtensionProperties("", &count, list); ret != vk.Success {
		return nil, ret
	}
	names := make([]string, 0, count)
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, vk.Success
}

func (vkDriver) InstanceLayers() ([]string, vk.Result) {
	var count uint32
	if ret := vk.EnumerateInstanceLayerProperties(&count, nil); ret != vk.Success {
		return nil, ret
	}
	list := make([]vk.LayerProperties, count)
	if ret := vk.EnumerateInstanceLayerProperties(&count, list); ret != vk.Success {
		return nil, ret
	}
	names := make([]string, 0, count)
	for _, layer := range list {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names, vk.Success
}

func (vkDriver) CreateInstance(info *vk.InstanceCreateInfo, instance *vk.Instance) vk.Result {
	ret := vk.CreateInstance(info, nil, instance)
	if ret != vk.Success {
		return ret
	}
	if err := vk.InitInstance(*instance); err != nil {
		vk.DestroyInstance(*instance, nil)
		return vk.ErrorInitializationFailed
	}
	return vk.Success
}

func (vkDriver) DestroyInstance(instance vk.Instance) { vk.DestroyInstance(instance, nil) }

func (vkDriver) CreateDebugReportCallback(instance vk.Instance, info *vk.DebugReportCallbackCreateInfo, callback *vk.DebugReportCallback) vk.Result {
	return vk.CreateDebugReportCallback(instance, info, nil, callback)
}

func (vkDriver) DestroyDebugReportCallback(instance vk.Instance, callback vk.DebugReportCallback) {
	vk.DestroyDebugReportCallback(instance, callback, nil)
}

func (vkDriver) DestroySurface(instance vk.Instance, surface vk.Surface) {
	vk.DestroySurface(instance, surface, nil)
}

func (vkDriver) EnumeratePhysicalDevices(instance vk.Instance) ([]vk.PhysicalDevice, vk.Result) {
	var count uint32
	if ret := vk.EnumeratePhysicalDevices(instance, &count, nil); ret != vk.Success {
		return nil, ret
	}
	gpus := make([]vk.PhysicalDevice, count)
	if ret := vk.EnumeratePhysicalDevices(instance, &count, gpus); ret != vk.Success {
		return nil, ret
	}
	return gpus[:count], vk.Success
}

func (vkDriver) PhysicalDeviceProperties(gpu vk.PhysicalDevice) vk.PhysicalDeviceProperties {
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(gpu, &props)
	props.Deref()
	props.Limits.Deref()
	return props
}

func (vkDriver) PhysicalDeviceFeatures(gpu vk.PhysicalDevice) vk.PhysicalDeviceFeatures {
	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(gpu, &features)
	features.Deref()
	return features
}

func (vkDriver) QueueFamilyProperties(gpu vk.PhysicalDevice) []vk.QueueFamilyProperties {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, nil)
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &count, props)
	for i := range props {
		props[i].Deref()
	}
	return props
}

func (vkDriver) MemoryProperties(gpu vk.PhysicalDevice) vk.PhysicalDeviceMemoryProperties {
	var props vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(gpu, &props)
	props.Deref()
	for i := uint32(0); i < props.MemoryTypeCount; i++ {
		props.MemoryTypes[i].Deref()
	}
	for i := uint32(0); i < props.MemoryHeapCount; i++ {
		props.MemoryHeaps[i].Deref()
	}
	return props
}

func (vkDriver) FormatProperties(gpu vk.PhysicalDevice, format vk.Format) vk.FormatProperties {
	var props vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(gpu, format, &props)
	props.Deref()
	return props
}

func (vkDriver) DeviceExtensions(gpu vk.PhysicalDevice) ([]string, vk.Result) {
	var count uint32
	if ret := vk.EnumerateDeviceExtensionProperties(gpu, "", &count, nil); ret != vk.Success {
		return nil, ret
	}
	list := make([]vk.ExtensionProperties, count)
	if ret := vk.EnumerateDeviceExtensionProperties(gpu, "", &count, list); ret != vk.Success {
		return nil, ret
	}
	names := make([]string, 0, count)
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, vk.Success
}

func (vkDriver) SurfaceSupport(gpu vk.PhysicalDevice, family uint32, surface vk.Surface) (bool, vk.Result) {
	var supported vk.Bool32
	ret := vk.GetPhysicalDeviceSurfaceSupport(gpu, family, surface, &supported)
	return supported.B(), ret
}

func (vkDriver) SurfaceCapabilities(gpu vk.PhysicalDevice, surface vk.Surface) (vk.SurfaceCapabilities, vk.Result) {
	var caps vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(gpu, surface, &caps)
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return caps, ret
}

func (vkDriver) SurfaceFormats(gpu vk.PhysicalDevice, surface vk.Surface) ([]vk.SurfaceFormat, vk.Result) {
	var count uint32
	if ret := vk.GetPhysicalDeviceSurfaceFormats(gpu, surface, &count, nil); ret != vk.Success {
		return nil, ret
	}
	formats := make([]vk.SurfaceFormat, count)
	if ret := vk.GetPhysicalDeviceSurfaceFormats(gpu, surface, &count, formats); ret != vk.Success {
		return nil, ret
	}
	for i := range formats {
		formats[i].Deref()
	}
	return formats, vk.Success
}

func (vkDriver) SurfacePresentModes(gpu vk.PhysicalDevice, surface vk.Surface) ([]vk.PresentMode, vk.Result) {
	var count uint32
	if ret := vk.GetPhysicalDeviceSurfacePresentModes(gpu, surface, &count, nil); ret != vk.Success {
		return nil, ret
	}
	modes := make([]vk.PresentMode, count)
	ret := vk.GetPhysicalDeviceSurfacePresentModes(gpu, surface, &count, modes)
	return modes, ret
}

func (vkDriver) CreateDevice(gpu vk.PhysicalDevice, info *vk.DeviceCreateInfo, device *vk.Device) vk.Result {
	return vk.CreateDevice(gpu, info, nil, device)
}

func (vkDriver) DestroyDevice(device vk.Device) { vk.DestroyDevice(device, nil) }

func (vkDriver) GetDeviceQueue(device vk.Device, family, index uint32) vk.Queue {
	var queue vk.Queue
	vk.GetDeviceQueue(device, family, index, &queue)
	return queue
}

func (vkDriver) DeviceWaitIdle(device vk.Device) vk.Result { return vk.DeviceWaitIdle(device) }

func (vkDriver) CreateSwapchain(device vk.Device, info *vk.SwapchainCreateInfo, swapchain *vk.Swapchain) vk.Result {
	return vk.CreateSwapchain(device, info, nil, swapchain)
}

func (vkDriver) DestroySwapchain(device vk.Device, swapchain vk.Swapchain) {
	vk.DestroySwapchain(device, swapchain, nil)
}

func (vkDriver) SwapchainImages(device vk.Device, swapchain vk.Swapchain) ([]vk.Image, vk.Result) {
	var count uint32
	if ret := vk.GetSwapchainImages(device, swapchain, &count, nil); ret != vk.Success {
		return nil, ret
	}
	images := make([]vk.Image, count)
	ret := vk.GetSwapchainImages(device, swapchain, &count, images)
	return images, ret
}

func (vkDriver) AcquireNextImage(device vk.Device, swapchain vk.Swapchain, timeout uint64, semaphore vk.Semaphore, fence vk.Fence, index *uint32) vk.Result {
	return vk.AcquireNextImage(device, swapchain, timeout, semaphore, fence, index)
}

func (vkDriver) CreateImage(device vk.Device, info *vk.ImageCreateInfo, image *vk.Image) vk.Result {
	return vk.CreateImage(device, info, nil, image)
}

func (vkDriver) DestroyImage(device vk.Device, image vk.Image) { vk.DestroyImage(device, image, nil) }

func (vkDriver) ImageMemoryRequirements(device vk.Device, image vk.Image) vk.MemoryRequirements {
	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, image, &reqs)
	reqs.Deref()
	return reqs
}

func (vkDriver) BindImageMemory(device vk.Device, image vk.Image, memory vk.DeviceMemory, offset vk.DeviceSize) vk.Result {
	return vk.BindImageMemory(device, image, memory, offset)
}

func (vkDriver) CreateImageView(device vk.Device, info *vk.ImageViewCreateInfo, view *vk.ImageView) vk.Result {
	return vk.CreateImageView(device, info, nil, view)
}

func (vkDriver) DestroyImageView(device vk.Device, view vk.ImageView) {
	vk.DestroyImageView(device, view, nil)
}

func (vkDriver) CreateSampler(device vk.Device, info *vk.SamplerCreateInfo, sampler *vk.Sampler) vk.Result {
	return vk.CreateSampler(device, info, nil, sampler)
}

func (vkDriver) DestroySampler(device vk.Device, sampler vk.Sampler) {
	vk.DestroySampler(device, sampler, nil)
}

func (vkDriver) CreateBuffer(device vk.Device, info *vk.BufferCreateInfo, buffer *vk.Buffer) vk.Result {
	return vk.CreateBuffer(device, info, nil, buffer)
}

func (vkDriver) DestroyBuffer(device vk.Device, buffer vk.Buffer) { vk.DestroyBuffer(device, buffer, nil) }

func (vkDriver) BufferMemoryRequirements(device vk.Device, buffer vk.Buffer) vk.MemoryRequirements {
	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, buffer, &reqs)
	reqs.Deref()
	return reqs
}

func (vkDriver) BindBufferMemory(device vk.Device, buffer vk.Buffer, memory vk.DeviceMemory, offset vk.DeviceSize) vk.Result {
	return vk.BindBufferMemory(device, buffer, memory, offset)
}

func (vkDriver) AllocateMemory(device vk.Device, info *vk.MemoryAllocateInfo, memory *vk.DeviceMemory) vk.Result {
	return vk.AllocateMemory(device, info, nil, memory)
}

func (vkDriver) FreeMemory(device vk.Device, memory vk.DeviceMemory) { vk.FreeMemory(device, memory, nil) }

func (vkDriver) MapMemory(device vk.Device, memory vk.DeviceMemory, offset, size vk.DeviceSize, data *unsafe.Pointer) vk.Result {
	return vk.MapMemory(device, memory, offset, size, 0, data)
}

func (vkDriver) UnmapMemory(device vk.Device, memory vk.DeviceMemory) { vk.UnmapMemory(device, memory) }

func (vkDriver) CreateShaderModule(device vk.Device, info *vk.ShaderModuleCreateInfo, module *vk.ShaderModule) vk.Result {
	return vk.CreateShaderModule(device, info, nil, module)
}

func (vkDriver) DestroyShaderModule(device vk.Device, module vk.ShaderModule) {
	vk.DestroyShaderModule(device, module, nil)
}

func (vkDriver) CreateRenderPass(device vk.Device, info *vk.RenderPassCreateInfo, pass *vk.RenderPass) vk.Result {
	return vk.CreateRenderPass(device, info, nil, pass)
}

func (vkDriver) DestroyRenderPass(device vk.Device, pass vk.RenderPass) {
	vk.DestroyRenderPass(device, pass, nil)
}

func (vkDriver) CreatePipelineLayout(device vk.Device, info *vk.PipelineLayoutCreateInfo, layout *vk.PipelineLayout) vk.Result {
	return vk.CreatePipelineLayout(device, info, nil, layout)
}

func (vkDriver) DestroyPipelineLayout(device vk.Device, layout vk.PipelineLayout) {
	vk.DestroyPipelineLayout(device, layout, nil)
}

func (vkDriver) CreateGraphicsPipelines(device vk.Device, infos []vk.GraphicsPipelineCreateInfo, pipelines []vk.Pipeline) vk.Result {
	return vk.CreateGraphicsPipelines(device, vk.PipelineCache(vk.NullHandle), uint32(len(infos)), infos, nil, pipelines)
}

func (vkDriver) DestroyPipeline(device vk.Device, pipeline vk.Pipeline) {
	vk.DestroyPipeline(device, pipeline, nil)
}

func (vkDriver) CreateFramebuffer(device vk.Device, info *vk.FramebufferCreateInfo, framebuffer *vk.Framebuffer) vk.Result {
	return vk.CreateFramebuffer(device, info, nil, framebuffer)
}

func (vkDriver) DestroyFramebuffer(device vk.Device, framebuffer vk.Framebuffer) {
	vk.DestroyFramebuffer(device, framebuffer, nil)
}

func (vkDriver) CreateDescriptorSetLayout(device vk.Device, info *vk.DescriptorSetLayoutCreateInfo, layout *vk.DescriptorSetLayout) vk.Result {
	return vk.CreateDescriptorSetLayout(device, info, nil, layout)
}

func (vkDriver) DestroyDescriptorSetLayout(device vk.Device, layout vk.DescriptorSetLayout) {
	vk.DestroyDescriptorSetLayout(device, layout, nil)
}

func (vkDriver) CreateDescriptorPool(device vk.Device, info *vk.DescriptorPoolCreateInfo, pool *vk.DescriptorPool) vk.Result {
	return vk.CreateDescriptorPool(device, info, nil, pool)
}

func (vkDriver) DestroyDescriptorPool(device vk.Device, pool vk.DescriptorPool) {
	vk.DestroyDescriptorPool(device, pool, nil)
}

func (vkDriver) AllocateDescriptorSets(device vk.Device, info *vk.DescriptorSetAllocateInfo, sets []vk.DescriptorSet) vk.Result {
	if len(sets) == 0 {
		return vk.Success
	}
	return vk.AllocateDescriptorSets(device, info, &sets[0])
}

func (vkDriver) UpdateDescriptorSets(device vk.Device, writes []vk.WriteDescriptorSet) {
	vk.UpdateDescriptorSets(device, uint32(len(writes)), writes, 0, nil)
}

func (vkDriver) CreateFence(device vk.Device, info *vk.FenceCreateInfo, fence *vk.Fence) vk.Result {
	return vk.CreateFence(device, info, nil, fence)
}

func (vkDriver) DestroyFence(device vk.Device, fence vk.Fence) { vk.DestroyFence(device, fence, nil) }

func (vkDriver) WaitForFences(device vk.Device, fences []vk.Fence, waitAll bool, timeout uint64) vk.Result {
	all := vk.Bool32(vk.False)
	if waitAll {
		all = vk.Bool32(vk.True)
	}
	return vk.WaitForFences(device, uint32(len(fences)), fences, all, timeout)
}

func (vkDriver) ResetFences(device vk.Device, fences []vk.Fence) vk.Result {
	return vk.ResetFences(device, uint32(len(fences)), fences)
}

func (vkDriver) CreateSemaphore(device vk.Device, info *vk.SemaphoreCreateInfo, semaphore *vk.Semaphore) vk.Result {
	return vk.CreateSemaphore(device, info, nil, semaphore)
}

func (vkDriver) DestroySemaphore(device vk.Device, semaphore vk.Semaphore) {
	vk.DestroySemaphore(device, semaphore, nil)
}

func (vkDriver) CreateCommandPool(device vk.Device, info *vk.CommandPoolCreateInfo, pool *vk.CommandPool) vk.Result {
	return vk.CreateCommandPool(device, info, nil, pool)
}

func (vkDriver) DestroyCommandPool(device vk.Device, pool vk.CommandPool) {
	vk.DestroyCommandPool(device, pool, nil)
}

func (vkDriver) AllocateCommandBuffers(device vk.Device, info *vk.CommandBufferAllocateInfo, buffers []vk.CommandBuffer) vk.Result {
	return vk.AllocateCommandBuffers(device, info, buffers)
}

func (vkDriver) FreeCommandBuffers(device vk.Device, pool vk.CommandPool, buffers []vk.CommandBuffer) {
	if len(buffers) == 0 {
		return
	}
	vk.FreeCommandBuffers(device, pool, uint32(len(buffers)), buffers)
}

func (vkDriver) QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) vk.Result {
	return vk.QueueSubmit(queue, uint32(len(submits)), submits, fence)
}

func (vkDriver) QueueWaitIdle(queue vk.Queue) vk.Result { return vk.QueueWaitIdle(queue) }

func (vkDriver) QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result {
	return vk.QueuePresent(queue, info)
}

func (vkDriver) BeginCommandBuffer(cmd vk.CommandBuffer, info *vk.CommandBufferBeginInfo) vk.Result {
	return vk.BeginCommandBuffer(cmd, info)
}

func (vkDriver) EndCommandBuffer(cmd vk.CommandBuffer) vk.Result { return vk.EndCommandBuffer(cmd) }

func (vkDriver) CmdBeginRenderPass(cmd vk.CommandBuffer, info *vk.RenderPassBeginInfo, contents vk.SubpassContents) {
	vk.CmdBeginRenderPass(cmd, info, contents)
}

func (vkDriver) CmdEndRenderPass(cmd vk.CommandBuffer) { vk.CmdEndRenderPass(cmd) }

func (vkDriver) CmdBindPipeline(cmd vk.CommandBuffer, bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline) {
	vk.CmdBindPipeline(cmd, bindPoint, pipeline)
}

func (vkDriver) CmdBindVertexBuffers(cmd vk.CommandBuffer, first uint32, buffers []vk.Buffer, offsets []vk.DeviceSize) {
	vk.CmdBindVertexBuffers(cmd, first, uint32(len(buffers)), buffers, offsets)
}

func (vkDriver) CmdBindIndexBuffer(cmd vk.CommandBuffer, buffer vk.Buffer, offset vk.DeviceSize, indexType vk.IndexType) {
	vk.CmdBindIndexBuffer(cmd, buffer, offset, indexType)
}

func (vkDriver) CmdBindDescriptorSets(cmd vk.CommandBuffer, bindPoint vk.PipelineBindPoint, layout vk.PipelineLayout, first uint32, sets []vk.DescriptorSet) {
	vk.CmdBindDescriptorSets(cmd, bindPoint, layout, first, uint32(len(sets)), sets, 0, nil)
}

func (vkDriver) CmdDraw(cmd vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(cmd, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (vkDriver) CmdDrawIndexed(cmd vk.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(cmd, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (vkDriver) CmdCopyBuffer(cmd vk.CommandBuffer, src, dst vk.Buffer, regions []vk.BufferCopy) {
	vk.CmdCopyBuffer(cmd, src, dst, uint32(len(regions)), regions)
}

func (vkDriver) CmdCopyBufferToImage(cmd vk.CommandBuffer, src vk.Buffer, dst vk.Image, layout vk.ImageLayout, regions []vk.BufferImageCopy) {
	vk.CmdCopyBufferToImage(cmd, src, dst, layout, uint32(len(regions)), regions)
}

func (vkDriver) CmdPipelineBarrier(cmd vk.CommandBuffer, srcStage, dstStage vk.PipelineStageFlags, barriers []vk.ImageMemoryBarrier) {
	vk.CmdPipelineBarrier(cmd, srcStage, dstStage, 0, 0, nil, 0, nil, uint32(len(barriers)), barriers)
}
