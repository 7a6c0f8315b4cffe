package cacus

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// Driver is the set of Vulkan entry points the engine calls. The default
// implementation forwards to github.com/vulkan-go/vulkan; tests substitute an
// in-memory driver.
//
// Query methods return fully dereferenced Go values, so callers never deal with
// the two-call enumeration pattern or Deref.
type Driver interface {
	InstanceDriver
	PhysicalDeviceDriver
	DeviceDriver
	CommandDriver
}

// InstanceDriver covers instance level entry points.
type InstanceDriver interface {
	InstanceExtensions() ([]string, vk.Result)
	InstanceLayers() ([]string, vk.Result)
	CreateInstance(info *vk.InstanceCreateInfo, instance *vk.Instance) vk.Result
	DestroyInstance(instance vk.Instance)
	CreateDebugReportCallback(instance vk.Instance, info *vk.DebugReportCallbackCreateInfo, callback *vk.DebugReportCallback) vk.Result
	DestroyDebugReportCallback(instance vk.Instance, callback vk.DebugReportCallback)
	DestroySurface(instance vk.Instance, surface vk.Surface)
	EnumeratePhysicalDevices(instance vk.Instance) ([]vk.PhysicalDevice, vk.Result)
}

// PhysicalDeviceDriver covers read-only physical device and surface queries.
type PhysicalDeviceDriver interface {
	PhysicalDeviceProperties(gpu vk.PhysicalDevice) vk.PhysicalDeviceProperties
	PhysicalDeviceFeatures(gpu vk.PhysicalDevice) vk.PhysicalDeviceFeatures
	QueueFamilyProperties(gpu vk.PhysicalDevice) []vk.QueueFamilyProperties
	MemoryProperties(gpu vk.PhysicalDevice) vk.PhysicalDeviceMemoryProperties
	FormatProperties(gpu vk.PhysicalDevice, format vk.Format) vk.FormatProperties
	DeviceExtensions(gpu vk.PhysicalDevice) ([]string, vk.Result)
	SurfaceSupport(gpu vk.PhysicalDevice, family uint32, surface vk.Surface) (bool, vk.Result)
	SurfaceCapabilities(gpu vk.PhysicalDevice, surface vk.Surface) (vk.SurfaceCapabilities, vk.Result)
	SurfaceFormats(gpu vk.PhysicalDevice, surface vk.Surface) ([]vk.SurfaceFormat, vk.Result)
	SurfacePresentModes(gpu vk.PhysicalDevice, surface vk.Surface) ([]vk.PresentMode, vk.Result)
}

// DeviceDriver covers logical device object creation and destruction.
type DeviceDriver interface {
	CreateDevice(gpu vk.PhysicalDevice, info *vk.DeviceCreateInfo, device *vk.Device) vk.Result
	DestroyDevice(device vk.Device)
	GetDeviceQueue(device vk.Device, family, index uint32) vk.Queue
	DeviceWaitIdle(device vk.Device) vk.Result

	CreateSwapchain(device vk.Device, info *vk.SwapchainCreateInfo, swapchain *vk.Swapchain) vk.Result
	DestroySwapchain(device vk.Device, swapchain vk.Swapchain)
	SwapchainImages(device vk.Device, swapchain vk.Swapchain) ([]vk.Image, vk.Result)
	AcquireNextImage(device vk.Device, swapchain vk.Swapchain, timeout uint64, semaphore vk.Semaphore, fence vk.Fence, index *uint32) vk.Result

	CreateImage(device vk.Device, info *vk.ImageCreateInfo, image *vk.Image) vk.Result
	DestroyImage(device vk.Device, image vk.Image)
	ImageMemoryRequirements(device vk.Device, image vk.Image) vk.MemoryRequirements
	BindImageMemory(device vk.Device, image vk.Image, memory vk.DeviceMemory, offset vk.DeviceSize) vk.Result
	CreateImageView(device vk.Device, info *vk.ImageViewCreateInfo, view *vk.ImageView) vk.Result
	DestroyImageView(device vk.Device, view vk.ImageView)
	CreateSampler(device vk.Device, info *vk.SamplerCreateInfo, sampler *vk.Sampler) vk.Result
	DestroySampler(device vk.Device, sampler vk.Sampler)

	CreateBuffer(device vk.Device, info *vk.BufferCreateInfo, buffer *vk.Buffer) vk.Result
	DestroyBuffer(device vk.Device, buffer vk.Buffer)
	BufferMemoryRequirements(device vk.Device, buffer vk.Buffer) vk.MemoryRequirements
	BindBufferMemory(device vk.Device, buffer vk.Buffer, memory vk.DeviceMemory, offset vk.DeviceSize) vk.Result
	AllocateMemory(device vk.Device, info *vk.MemoryAllocateInfo, memory *vk.DeviceMemory) vk.Result
	FreeMemory(device vk.Device, memory vk.DeviceMemory)
	MapMemory(device vk.Device, memory vk.DeviceMemory, offset, size vk.DeviceSize, data *unsafe.Pointer) vk.Result
	UnmapMemory(device vk.Device, memory vk.DeviceMemory)

	CreateShaderModule(device vk.Device, info *vk.ShaderModuleCreateInfo, module *vk.ShaderModule) vk.Result
	DestroyShaderModule(device vk.Device, module vk.ShaderModule)
	CreateRenderPass(device vk.Device, info *vk.RenderPassCreateInfo, pass *vk.RenderPass) vk.Result
	DestroyRenderPass(device vk.Device, pass vk.RenderPass)
	CreatePipelineLayout(device vk.Device, info *vk.PipelineLayoutCreateInfo, layout *vk.PipelineLayout) vk.Result
	DestroyPipelineLayout(device vk.Device, layout vk.PipelineLayout)
	CreateGraphicsPipelines(device vk.Device, infos []vk.GraphicsPipelineCreateInfo, pipelines []vk.Pipeline) vk.Result
	DestroyPipeline(device vk.Device, pipeline vk.Pipeline)
	CreateFramebuffer(device vk.Device, info *vk.FramebufferCreateInfo, framebuffer *vk.Framebuffer) vk.Result
	DestroyFramebuffer(device vk.Device, framebuffer vk.Framebuffer)

	CreateDescriptorSetLayout(device vk.Device, info *vk.DescriptorSetLayoutCreateInfo, layout *vk.DescriptorSetLayout) vk.Result
	DestroyDescriptorSetLayout(device vk.Device, layout vk.DescriptorSetLayout)
	CreateDescriptorPool(device vk.Device, info *vk.DescriptorPoolCreateInfo, pool *vk.DescriptorPool) vk.Result
	DestroyDescriptorPool(device vk.Device, pool vk.DescriptorPool)
	AllocateDescriptorSets(device vk.Device, info *vk.DescriptorSetAllocateInfo, sets []vk.DescriptorSet) vk.Result
	UpdateDescriptorSets(device vk.Device, writes []vk.WriteDescriptorSet)

	CreateFence(device vk.Device, info *vk.FenceCreateInfo, fence *vk.Fence) vk.Result
	DestroyFence(device vk.Device, fence vk.Fence)
	WaitForFences(device vk.Device, fences []vk.Fence, waitAll bool, timeout uint64) vk.Result
	ResetFences(device vk.Device, fences []vk.Fence) vk.Result
	CreateSemaphore(device vk.Device, info *vk.SemaphoreCreateInfo, semaphore *vk.Semaphore) vk.Result
	DestroySemaphore(device vk.Device, semaphore vk.Semaphore)

	CreateCommandPool(device vk.Device, info *vk.CommandPoolCreateInfo, pool *vk.CommandPool) vk.Result
	DestroyCommandPool(device vk.Device, pool vk.CommandPool)
	AllocateCommandBuffers(device vk.Device, info *vk.CommandBufferAllocateInfo, buffers []vk.CommandBuffer) vk.Result
	FreeCommandBuffers(device vk.Device, pool vk.CommandPool, buffers []vk.CommandBuffer)
}

// CommandDriver covers queue operations and command recording.
type CommandDriver interface {
	QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) vk.Result
	QueueWaitIdle(queue vk.Queue) vk.Result
	QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result

	BeginCommandBuffer(cmd vk.CommandBuffer, info *vk.CommandBufferBeginInfo) vk.Result
	EndCommandBuffer(cmd vk.CommandBuffer) vk.Result
	CmdBeginRenderPass(cmd vk.CommandBuffer, info *vk.RenderPassBeginInfo, contents vk.SubpassContents)
	CmdEndRenderPass(cmd vk.CommandBuffer)
	CmdBindPipeline(cmd vk.CommandBuffer, bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline)
	CmdBindVertexBuffers(cmd vk.CommandBuffer, first uint32, buffers []vk.Buffer, offsets []vk.DeviceSize)
	CmdBindIndexBuffer(cmd vk.CommandBuffer, buffer vk.Buffer, offset vk.DeviceSize, indexType vk.IndexType)
	CmdBindDescriptorSets(cmd vk.CommandBuffer, bindPoint vk.PipelineBindPoint, layout vk.PipelineLayout, first uint32, sets []vk.DescriptorSet)
	CmdDraw(cmd vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32)
	CmdDrawIndexed(cmd vk.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	CmdCopyBuffer(cmd vk.CommandBuffer, src, dst vk.Buffer, regions []vk.BufferCopy)
	CmdCopyBufferToImage(cmd vk.CommandBuffer, src vk.Buffer, dst vk.Image, layout vk.ImageLayout, regions []vk.BufferImageCopy)
	CmdPipelineBarrier(cmd vk.CommandBuffer, srcStage, dstStage vk.PipelineStageFlags, barriers []vk.ImageMemoryBarrier)
}
