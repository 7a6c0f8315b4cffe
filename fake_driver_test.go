package cacus

import (
	"io"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// fakeGPU describes one physical device exposed by fakeDriver.
type fakeGPU struct {
	name       string
	families   []vk.QueueFamilyProperties
	present    []bool
	extensions []string
	formats    []vk.SurfaceFormat
	modes      []vk.PresentMode
	caps       vk.SurfaceCapabilities
	memory     vk.PhysicalDeviceMemoryProperties
	anisotropy bool
	depth      []vk.Format
}

func newFakeGPU(name string) *fakeGPU {
	g := &fakeGPU{
		name: name,
		families: []vk.QueueFamilyProperties{{
			QueueFlags: vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueTransferBit),
			QueueCount: 1,
		}},
		present:    []bool{true},
		extensions: []string{extSwapchain},
		formats: []vk.SurfaceFormat{
			{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		},
		modes: []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox},
		caps: vk.SurfaceCapabilities{
			MinImageCount:           2,
			MaxImageCount:           3,
			CurrentExtent:           vk.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32},
			MinImageExtent:          vk.Extent2D{Width: 1, Height: 1},
			MaxImageExtent:          vk.Extent2D{Width: 4096, Height: 4096},
			SupportedTransforms:     vk.SurfaceTransformFlags(vk.SurfaceTransformIdentityBit),
			CurrentTransform:        vk.SurfaceTransformIdentityBit,
			SupportedCompositeAlpha: vk.CompositeAlphaFlags(vk.CompositeAlphaOpaqueBit),
		},
		anisotropy: true,
		depth:      []vk.Format{vk.FormatD32Sfloat},
	}
	g.memory.MemoryTypeCount = 2
	g.memory.MemoryTypes[0].PropertyFlags = deviceLocal
	g.memory.MemoryTypes[1].PropertyFlags = hostVisible
	return g
}

// separatePresent moves presentation to a second, present only family.
func (g *fakeGPU) separatePresent() *fakeGPU {
	g.families = append(g.families, vk.QueueFamilyProperties{QueueFlags: vk.QueueFlags(vk.QueueTransferBit), QueueCount: 1})
	g.present = []bool{false, true}
	return g
}

// fakeDriver is an in-memory Driver. Device memory is backed by Go slices,
// buffer and image copies recorded into command buffers are replayed on
// submit and fences follow the signal and reset rules of the real API.
// Every call is logged by name and every object kind is counted so tests can
// check ordering and leaks.
type fakeDriver struct {
	t *testing.T

	instanceExtensions []string
	layers             []string
	gpus               []*fakeGPU
	byHandle           map[vk.PhysicalDevice]*fakeGPU

	calls []string
	live  map[string]int
	// fail forces the result of the named call.
	fail map[string]vk.Result
	// acquire and present are consumed one result per call; Success once empty.
	acquire []vk.Result
	present []vk.Result

	nextImage  uint32
	imageCount int

	queues     map[uint32]vk.Queue
	memory     map[vk.DeviceMemory][]byte
	buffers    map[vk.Buffer]*fakeBuffer
	images     map[vk.Image]*fakeImage
	fences     map[vk.Fence]bool
	recordings map[vk.CommandBuffer][]func()
	submitted  []vk.CommandBuffer

	lastSwapchain *vk.SwapchainCreateInfo
	lastDevice    *vk.DeviceCreateInfo
	lastInstance  *vk.InstanceCreateInfo
	lastSampler   *vk.SamplerCreateInfo
	lastPipeline  *vk.GraphicsPipelineCreateInfo
	writes        []vk.WriteDescriptorSet
	draws         []string
}

type fakeBuffer struct {
	size   vk.DeviceSize
	memory vk.DeviceMemory
}

type fakeImage struct {
	extent vk.Extent3D
	memory vk.DeviceMemory
}

func newFakeDriver(t *testing.T, gpus ...*fakeGPU) *fakeDriver {
	if len(gpus) == 0 {
		gpus = []*fakeGPU{newFakeGPU("fake gpu")}
	}
	f := &fakeDriver{
		t:                  t,
		instanceExtensions: []string{"VK_KHR_surface", "VK_KHR_xcb_surface", extDebugReport},
		layers:             []string{DefaultValidationLayer},
		gpus:               gpus,
		byHandle:           make(map[vk.PhysicalDevice]*fakeGPU),
		live:               make(map[string]int),
		fail:               make(map[string]vk.Result),
		queues:             make(map[uint32]vk.Queue),
		memory:             make(map[vk.DeviceMemory][]byte),
		buffers:            make(map[vk.Buffer]*fakeBuffer),
		images:             make(map[vk.Image]*fakeImage),
		fences:             make(map[vk.Fence]bool),
		recordings:         make(map[vk.CommandBuffer][]func()),
	}
	return f
}

// handleArena backs every fake handle. vulkan-go handles point at incomplete
// C types, so a converted new(uint64) is not kept on the heap and may share
// its address with the next one. Package level storage never moves.
var (
	handleArena [1 << 20]uint64
	handleNext  atomic.Int64
)

// newHandle returns an address no other call to newHandle returns.
func newHandle() unsafe.Pointer {
	n := handleNext.Add(1)
	if n >= int64(len(handleArena)) {
		panic("fake handle arena exhausted")
	}
	return unsafe.Pointer(&handleArena[n])
}

func (f *fakeDriver) call(name string) vk.Result {
	f.calls = append(f.calls, name)
	if ret, ok := f.fail[name]; ok {
		return ret
	}
	return vk.Success
}

func (f *fakeDriver) created(kind string, n int) { f.live[kind] += n }

func (f *fakeDriver) destroyed(kind string, n int) {
	f.live[kind] -= n
	if f.live[kind] < 0 {
		f.t.Errorf("%s destroyed more often than created", kind)
	}
}

// count returns how often the named call was made.
func (f *fakeDriver) count(name string) int {
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

// index returns the position of the first call named name after from, or -1.
func (f *fakeDriver) index(name string, from int) int {
	for i := from; i < len(f.calls); i++ {
		if f.calls[i] == name {
			return i
		}
	}
	return -1
}

func (f *fakeDriver) lastIndex(prefix string) int {
	for i := len(f.calls) - 1; i >= 0; i-- {
		if strings.HasPrefix(f.calls[i], prefix) {
			return i
		}
	}
	return -1
}

// leaks lists every object kind with a positive live count.
func (f *fakeDriver) leaks() []string {
	var out []string
	for kind, n := range f.live {
		if n != 0 {
			out = append(out, kind)
		}
	}
	return out
}

func (f *fakeDriver) newSurface() vk.Surface {
	f.created("surface", 1)
	return vk.Surface(newHandle())
}

func (f *fakeDriver) signaled(fence vk.Fence) bool { return f.fences[fence] }

// Instance level.

func (f *fakeDriver) InstanceExtensions() ([]string, vk.Result) {
	return f.instanceExtensions, f.call("EnumerateInstanceExtensionProperties")
}

func (f *fakeDriver) InstanceLayers() ([]string, vk.Result) {
	return f.layers, f.call("EnumerateInstanceLayerProperties")
}

func (f *fakeDriver) CreateInstance(info *vk.InstanceCreateInfo, instance *vk.Instance) vk.Result {
	f.lastInstance = info
	if ret := f.call("CreateInstance"); ret != vk.Success {
		return ret
	}
	for _, name := range info.PpEnabledExtensionNames {
		if !containsName(f.instanceExtensions, name) {
			return vk.ErrorExtensionNotPresent
		}
	}
	*instance = vk.Instance(newHandle())
	f.created("instance", 1)
	return vk.Success
}

func (f *fakeDriver) DestroyInstance(vk.Instance) {
	f.call("DestroyInstance")
	f.destroyed("instance", 1)
}

func (f *fakeDriver) CreateDebugReportCallback(_ vk.Instance, _ *vk.DebugReportCallbackCreateInfo, cb *vk.DebugReportCallback) vk.Result {
	if ret := f.call("CreateDebugReportCallback"); ret != vk.Success {
		return ret
	}
	*cb = vk.DebugReportCallback(newHandle())
	f.created("debug report callback", 1)
	return vk.Success
}

func (f *fakeDriver) DestroyDebugReportCallback(vk.Instance, vk.DebugReportCallback) {
	f.call("DestroyDebugReportCallback")
	f.destroyed("debug report callback", 1)
}

func (f *fakeDriver) DestroySurface(vk.Instance, vk.Surface) {
	f.call("DestroySurface")
	f.destroyed("surface", 1)
}

func (f *fakeDriver) EnumeratePhysicalDevices(vk.Instance) ([]vk.PhysicalDevice, vk.Result) {
	if ret := f.call("EnumeratePhysicalDevices"); ret != vk.Success {
		return nil, ret
	}
	out := make([]vk.PhysicalDevice, 0, len(f.gpus))
	for handle := range f.byHandle {
		delete(f.byHandle, handle)
	}
	for _, g := range f.gpus {
		handle := vk.PhysicalDevice(newHandle())
		f.byHandle[handle] = g
		out = append(out, handle)
	}
	return out, vk.Success
}

// Physical device queries.

func (f *fakeDriver) gpu(handle vk.PhysicalDevice) *fakeGPU {
	g, ok := f.byHandle[handle]
	if !ok {
		f.t.Fatalf("unknown physical device %v", handle)
	}
	return g
}

func (f *fakeDriver) PhysicalDeviceProperties(gpu vk.PhysicalDevice) vk.PhysicalDeviceProperties {
	f.call("GetPhysicalDeviceProperties")
	var props vk.PhysicalDeviceProperties
	copy(props.DeviceName[:], f.gpu(gpu).name)
	props.ApiVersion = vk.MakeVersion(1, 2, 0)
	props.Limits.MaxSamplerAnisotropy = 16
	return props
}

func (f *fakeDriver) PhysicalDeviceFeatures(gpu vk.PhysicalDevice) vk.PhysicalDeviceFeatures {
	f.call("GetPhysicalDeviceFeatures")
	var features vk.PhysicalDeviceFeatures
	if f.gpu(gpu).anisotropy {
		features.SamplerAnisotropy = vk.True
	}
	return features
}

func (f *fakeDriver) QueueFamilyProperties(gpu vk.PhysicalDevice) []vk.QueueFamilyProperties {
	f.call("GetPhysicalDeviceQueueFamilyProperties")
	return f.gpu(gpu).families
}

func (f *fakeDriver) MemoryProperties(gpu vk.PhysicalDevice) vk.PhysicalDeviceMemoryProperties {
	f.call("GetPhysicalDeviceMemoryProperties")
	return f.gpu(gpu).memory
}

func (f *fakeDriver) FormatProperties(gpu vk.PhysicalDevice, format vk.Format) vk.FormatProperties {
	f.call("GetPhysicalDeviceFormatProperties")
	var props vk.FormatProperties
	for _, d := range f.gpu(gpu).depth {
		if d == format {
			props.OptimalTilingFeatures = vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
		}
	}
	return props
}

func (f *fakeDriver) DeviceExtensions(gpu vk.PhysicalDevice) ([]string, vk.Result) {
	return f.gpu(gpu).extensions, f.call("EnumerateDeviceExtensionProperties")
}

func (f *fakeDriver) SurfaceSupport(gpu vk.PhysicalDevice, family uint32, _ vk.Surface) (bool, vk.Result) {
	ret := f.call("GetPhysicalDeviceSurfaceSupport")
	g := f.gpu(gpu)
	return int(family) < len(g.present) && g.present[family], ret
}

func (f *fakeDriver) SurfaceCapabilities(gpu vk.PhysicalDevice, _ vk.Surface) (vk.SurfaceCapabilities, vk.Result) {
	return f.gpu(gpu).caps, f.call("GetPhysicalDeviceSurfaceCapabilities")
}

func (f *fakeDriver) SurfaceFormats(gpu vk.PhysicalDevice, _ vk.Surface) ([]vk.SurfaceFormat, vk.Result) {
	return f.gpu(gpu).formats, f.call("GetPhysicalDeviceSurfaceFormats")
}

func (f *fakeDriver) SurfacePresentModes(gpu vk.PhysicalDevice, _ vk.Surface) ([]vk.PresentMode, vk.Result) {
	return f.gpu(gpu).modes, f.call("GetPhysicalDeviceSurfacePresentModes")
}

// Device level.

func (f *fakeDriver) CreateDevice(_ vk.PhysicalDevice, info *vk.DeviceCreateInfo, device *vk.Device) vk.Result {
	f.lastDevice = info
	if ret := f.call("CreateDevice"); ret != vk.Success {
		return ret
	}
	*device = vk.Device(newHandle())
	f.created("device", 1)
	return vk.Success
}

func (f *fakeDriver) DestroyDevice(vk.Device) {
	f.call("DestroyDevice")
	f.destroyed("device", 1)
}

func (f *fakeDriver) GetDeviceQueue(_ vk.Device, family, _ uint32) vk.Queue {
	f.call("GetDeviceQueue")
	q, ok := f.queues[family]
	if !ok {
		q = vk.Queue(newHandle())
		f.queues[family] = q
	}
	return q
}

func (f *fakeDriver) DeviceWaitIdle(vk.Device) vk.Result { return f.call("DeviceWaitIdle") }

func (f *fakeDriver) CreateSwapchain(_ vk.Device, info *vk.SwapchainCreateInfo, swapchain *vk.Swapchain) vk.Result {
	f.lastSwapchain = info
	if ret := f.call("CreateSwapchain"); ret != vk.Success {
		return ret
	}
	f.imageCount = int(info.MinImageCount)
	*swapchain = vk.Swapchain(newHandle())
	f.created("swapchain", 1)
	return vk.Success
}

func (f *fakeDriver) DestroySwapchain(vk.Device, vk.Swapchain) {
	f.call("DestroySwapchain")
	f.destroyed("swapchain", 1)
}

func (f *fakeDriver) SwapchainImages(vk.Device, vk.Swapchain) ([]vk.Image, vk.Result) {
	if ret := f.call("GetSwapchainImages"); ret != vk.Success {
		return nil, ret
	}
	images := make([]vk.Image, f.imageCount)
	for i := range images {
		images[i] = vk.Image(newHandle())
	}
	return images, vk.Success
}

func (f *fakeDriver) AcquireNextImage(_ vk.Device, _ vk.Swapchain, _ uint64, _ vk.Semaphore, _ vk.Fence, index *uint32) vk.Result {
	f.call("AcquireNextImage")
	if len(f.acquire) > 0 {
		ret := f.acquire[0]
		f.acquire = f.acquire[1:]
		if ret != vk.Success && ret != vk.Suboptimal {
			return ret
		}
		*index = f.nextImage
		f.advanceImage()
		return ret
	}
	*index = f.nextImage
	f.advanceImage()
	return vk.Success
}

func (f *fakeDriver) advanceImage() {
	if f.imageCount > 0 {
		f.nextImage = (f.nextImage + 1) % uint32(f.imageCount)
	}
}

func (f *fakeDriver) CreateImage(_ vk.Device, info *vk.ImageCreateInfo, image *vk.Image) vk.Result {
	if ret := f.call("CreateImage"); ret != vk.Success {
		return ret
	}
	*image = vk.Image(newHandle())
	f.images[*image] = &fakeImage{extent: info.Extent}
	f.created("image", 1)
	return vk.Success
}

func (f *fakeDriver) DestroyImage(_ vk.Device, image vk.Image) {
	f.call("DestroyImage")
	delete(f.images, image)
	f.destroyed("image", 1)
}

func (f *fakeDriver) ImageMemoryRequirements(_ vk.Device, image vk.Image) vk.MemoryRequirements {
	f.call("GetImageMemoryRequirements")
	e := f.images[image].extent
	return vk.MemoryRequirements{
		Size:           vk.DeviceSize(e.Width * e.Height * 4),
		Alignment:      256,
		MemoryTypeBits: 0x3,
	}
}

func (f *fakeDriver) BindImageMemory(_ vk.Device, image vk.Image, memory vk.DeviceMemory, _ vk.DeviceSize) vk.Result {
	if ret := f.call("BindImageMemory"); ret != vk.Success {
		return ret
	}
	f.images[image].memory = memory
	return vk.Success
}

func (f *fakeDriver) CreateImageView(_ vk.Device, _ *vk.ImageViewCreateInfo, view *vk.ImageView) vk.Result {
	if ret := f.call("CreateImageView"); ret != vk.Success {
		return ret
	}
	*view = vk.ImageView(newHandle())
	f.created("image view", 1)
	return vk.Success
}

func (f *fakeDriver) DestroyImageView(vk.Device, vk.ImageView) {
	f.call("DestroyImageView")
	f.destroyed("image view", 1)
}

func (f *fakeDriver) CreateSampler(_ vk.Device, info *vk.SamplerCreateInfo, sampler *vk.Sampler) vk.Result {
	f.lastSampler = info
	if ret := f.call("CreateSampler"); ret != vk.Success {
		return ret
	}
	*sampler = vk.Sampler(newHandle())
	f.created("sampler", 1)
	return vk.Success
}

func (f *fakeDriver) DestroySampler(vk.Device, vk.Sampler) {
	f.call("DestroySampler")
	f.destroyed("sampler", 1)
}

func (f *fakeDriver) CreateBuffer(_ vk.Device, info *vk.BufferCreateInfo, buffer *vk.Buffer) vk.Result {
	if ret := f.call("CreateBuffer"); ret != vk.Success {
		return ret
	}
	*buffer = vk.Buffer(newHandle())
	f.buffers[*buffer] = &fakeBuffer{size: info.Size}
	f.created("buffer", 1)
	return vk.Success
}

func (f *fakeDriver) DestroyBuffer(_ vk.Device, buffer vk.Buffer) {
	f.call("DestroyBuffer")
	delete(f.buffers, buffer)
	f.destroyed("buffer", 1)
}

func (f *fakeDriver) BufferMemoryRequirements(_ vk.Device, buffer vk.Buffer) vk.MemoryRequirements {
	f.call("GetBufferMemoryRequirements")
	return vk.MemoryRequirements{
		Size:           f.buffers[buffer].size,
		Alignment:      16,
		MemoryTypeBits: 0x3,
	}
}

func (f *fakeDriver) BindBufferMemory(_ vk.Device, buffer vk.Buffer, memory vk.DeviceMemory, _ vk.DeviceSize) vk.Result {
	if ret := f.call("BindBufferMemory"); ret != vk.Success {
		return ret
	}
	f.buffers[buffer].memory = memory
	return vk.Success
}

func (f *fakeDriver) AllocateMemory(_ vk.Device, info *vk.MemoryAllocateInfo, memory *vk.DeviceMemory) vk.Result {
	if ret := f.call("AllocateMemory"); ret != vk.Success {
		return ret
	}
	*memory = vk.DeviceMemory(newHandle())
	f.memory[*memory] = make([]byte, info.AllocationSize)
	f.created("memory", 1)
	return vk.Success
}

func (f *fakeDriver) FreeMemory(_ vk.Device, memory vk.DeviceMemory) {
	f.call("FreeMemory")
	delete(f.memory, memory)
	f.destroyed("memory", 1)
}

func (f *fakeDriver) MapMemory(_ vk.Device, memory vk.DeviceMemory, offset, size vk.DeviceSize, data *unsafe.Pointer) vk.Result {
	if ret := f.call("MapMemory"); ret != vk.Success {
		return ret
	}
	mem := f.memory[memory]
	if offset+size > vk.DeviceSize(len(mem)) {
		f.t.Errorf("map of %d bytes at %d exceeds allocation of %d", size, offset, len(mem))
		return vk.ErrorMemoryMapFailed
	}
	*data = unsafe.Pointer(&mem[offset])
	return vk.Success
}

func (f *fakeDriver) UnmapMemory(vk.Device, vk.DeviceMemory) { f.call("UnmapMemory") }

// bufferBytes returns the memory behind buffer.
func (f *fakeDriver) bufferBytes(buffer vk.Buffer) []byte {
	b := f.buffers[buffer]
	return f.memory[b.memory][:b.size]
}

func (f *fakeDriver) imageBytes(image vk.Image) []byte {
	return f.memory[f.images[image].memory]
}

func (f *fakeDriver) CreateShaderModule(_ vk.Device, info *vk.ShaderModuleCreateInfo, module *vk.ShaderModule) vk.Result {
	if ret := f.call("CreateShaderModule"); ret != vk.Success {
		return ret
	}
	if info.CodeSize%4 != 0 || int(info.CodeSize) != 4*len(info.PCode) {
		f.t.Errorf("shader code size %d does not match %d words", info.CodeSize, len(info.PCode))
	}
	*module = vk.ShaderModule(newHandle())
	f.created("shader module", 1)
	return vk.Success
}

func (f *fakeDriver) DestroyShaderModule(vk.Device, vk.ShaderModule) {
	f.call("DestroyShaderModule")
	f.destroyed("shader module", 1)
}

func (f *fakeDriver) CreateRenderPass(_ vk.Device, _ *vk.RenderPassCreateInfo, pass *vk.RenderPass) vk.Result {
	if ret := f.call("CreateRenderPass"); ret != vk.Success {
		return ret
	}
	*pass = vk.RenderPass(newHandle())
	f.created("render pass", 1)
	return vk.Success
}

func (f *fakeDriver) DestroyRenderPass(vk.Device, vk.RenderPass) {
	f.call("DestroyRenderPass")
	f.destroyed("render pass", 1)
}

func (f *fakeDriver) CreatePipelineLayout(_ vk.Device, _ *vk.PipelineLayoutCreateInfo, layout *vk.PipelineLayout) vk.Result {
	if ret := f.call("CreatePipelineLayout"); ret != vk.Success {
		return ret
	}
	*layout = vk.PipelineLayout(newHandle())
	f.created("pipeline layout", 1)
	return vk.Success
}

func (f *fakeDriver) DestroyPipelineLayout(vk.Device, vk.PipelineLayout) {
	f.call("DestroyPipelineLayout")
	f.destroyed("pipeline layout", 1)
}

func (f *fakeDriver) CreateGraphicsPipelines(_ vk.Device, infos []vk.GraphicsPipelineCreateInfo, pipelines []vk.Pipeline) vk.Result {
	if len(infos) > 0 {
		info := infos[0]
		f.lastPipeline = &info
	}
	if ret := f.call("CreateGraphicsPipelines"); ret != vk.Success {
		return ret
	}
	for i := range infos {
		pipelines[i] = vk.Pipeline(newHandle())
	}
	f.created("pipeline", len(infos))
	return vk.Success
}

func (f *fakeDriver) DestroyPipeline(vk.Device, vk.Pipeline) {
	f.call("DestroyPipeline")
	f.destroyed("pipeline", 1)
}

func (f *fakeDriver) CreateFramebuffer(_ vk.Device, _ *vk.FramebufferCreateInfo, fb *vk.Framebuffer) vk.Result {
	if ret := f.call("CreateFramebuffer"); ret != vk.Success {
		return ret
	}
	*fb = vk.Framebuffer(newHandle())
	f.created("framebuffer", 1)
	return vk.Success
}

func (f *fakeDriver) DestroyFramebuffer(vk.Device, vk.Framebuffer) {
	f.call("DestroyFramebuffer")
	f.destroyed("framebuffer", 1)
}

func (f *fakeDriver) CreateDescriptorSetLayout(_ vk.Device, _ *vk.DescriptorSetLayoutCreateInfo, layout *vk.DescriptorSetLayout) vk.Result {
	if ret := f.call("CreateDescriptorSetLayout"); ret != vk.Success {
		return ret
	}
	*layout = vk.DescriptorSetLayout(newHandle())
	f.created("descriptor set layout", 1)
	return vk.Success
}

func (f *fakeDriver) DestroyDescriptorSetLayout(vk.Device, vk.DescriptorSetLayout) {
	f.call("DestroyDescriptorSetLayout")
	f.destroyed("descriptor set layout", 1)
}

func (f *fakeDriver) CreateDescriptorPool(_ vk.Device, _ *vk.DescriptorPoolCreateInfo, pool *vk.DescriptorPool) vk.Result {
	if ret := f.call("CreateDescriptorPool"); ret != vk.Success {
		return ret
	}
	*pool = vk.DescriptorPool(newHandle())
	f.created("descriptor pool", 1)
	return vk.Success
}

func (f *fakeDriver) DestroyDescriptorPool(vk.Device, vk.DescriptorPool) {
	f.call("DestroyDescriptorPool")
	f.destroyed("descriptor pool", 1)
}

func (f *fakeDriver) AllocateDescriptorSets(_ vk.Device, _ *vk.DescriptorSetAllocateInfo, sets []vk.DescriptorSet) vk.Result {
	if ret := f.call("AllocateDescriptorSets"); ret != vk.Success {
		return ret
	}
	for i := range sets {
		sets[i] = vk.DescriptorSet(newHandle())
	}
	return vk.Success
}

func (f *fakeDriver) UpdateDescriptorSets(_ vk.Device, writes []vk.WriteDescriptorSet) {
	f.call("UpdateDescriptorSets")
	f.writes = append(f.writes, writes...)
}

func (f *fakeDriver) CreateFence(_ vk.Device, info *vk.FenceCreateInfo, fence *vk.Fence) vk.Result {
	if ret := f.call("CreateFence"); ret != vk.Success {
		return ret
	}
	*fence = vk.Fence(newHandle())
	f.fences[*fence] = info.Flags&vk.FenceCreateFlags(vk.FenceCreateSignaledBit) != 0
	f.created("fence", 1)
	return vk.Success
}

func (f *fakeDriver) DestroyFence(_ vk.Device, fence vk.Fence) {
	f.call("DestroyFence")
	delete(f.fences, fence)
	f.destroyed("fence", 1)
}

// WaitForFences never blocks: an unsignaled fence that nothing will signal
// reports a timeout instead of hanging the test.
func (f *fakeDriver) WaitForFences(_ vk.Device, fences []vk.Fence, _ bool, _ uint64) vk.Result {
	if ret := f.call("WaitForFences"); ret != vk.Success {
		return ret
	}
	for _, fence := range fences {
		if !f.fences[fence] {
			return vk.Timeout
		}
	}
	return vk.Success
}

func (f *fakeDriver) ResetFences(_ vk.Device, fences []vk.Fence) vk.Result {
	if ret := f.call("ResetFences"); ret != vk.Success {
		return ret
	}
	for _, fence := range fences {
		f.fences[fence] = false
	}
	return vk.Success
}

func (f *fakeDriver) CreateSemaphore(_ vk.Device, _ *vk.SemaphoreCreateInfo, sem *vk.Semaphore) vk.Result {
	if ret := f.call("CreateSemaphore"); ret != vk.Success {
		return ret
	}
	*sem = vk.Semaphore(newHandle())
	f.created("semaphore", 1)
	return vk.Success
}

func (f *fakeDriver) DestroySemaphore(vk.Device, vk.Semaphore) {
	f.call("DestroySemaphore")
	f.destroyed("semaphore", 1)
}

func (f *fakeDriver) CreateCommandPool(_ vk.Device, _ *vk.CommandPoolCreateInfo, pool *vk.CommandPool) vk.Result {
	if ret := f.call("CreateCommandPool"); ret != vk.Success {
		return ret
	}
	*pool = vk.CommandPool(newHandle())
	f.created("command pool", 1)
	return vk.Success
}

func (f *fakeDriver) DestroyCommandPool(vk.Device, vk.CommandPool) {
	f.call("DestroyCommandPool")
	f.destroyed("command pool", 1)
}

func (f *fakeDriver) AllocateCommandBuffers(_ vk.Device, _ *vk.CommandBufferAllocateInfo, buffers []vk.CommandBuffer) vk.Result {
	if ret := f.call("AllocateCommandBuffers"); ret != vk.Success {
		return ret
	}
	for i := range buffers {
		buffers[i] = vk.CommandBuffer(newHandle())
	}
	f.created("command buffer", len(buffers))
	return vk.Success
}

func (f *fakeDriver) FreeCommandBuffers(_ vk.Device, _ vk.CommandPool, buffers []vk.CommandBuffer) {
	f.call("FreeCommandBuffers")
	for _, cmd := range buffers {
		delete(f.recordings, cmd)
	}
	f.destroyed("command buffer", len(buffers))
}

// Queues and recording.

func (f *fakeDriver) QueueSubmit(_ vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) vk.Result {
	if ret := f.call("QueueSubmit"); ret != vk.Success {
		return ret
	}
	for _, s := range submits {
		for _, cmd := range s.PCommandBuffers {
			for _, op := range f.recordings[cmd] {
				op()
			}
			f.submitted = append(f.submitted, cmd)
		}
	}
	if fence != vk.NullFence {
		f.fences[fence] = true
	}
	return vk.Success
}

func (f *fakeDriver) QueueWaitIdle(vk.Queue) vk.Result { return f.call("QueueWaitIdle") }

func (f *fakeDriver) QueuePresent(_ vk.Queue, _ *vk.PresentInfo) vk.Result {
	ret := f.call("QueuePresent")
	if len(f.present) > 0 {
		ret = f.present[0]
		f.present = f.present[1:]
	}
	return ret
}

func (f *fakeDriver) BeginCommandBuffer(cmd vk.CommandBuffer, _ *vk.CommandBufferBeginInfo) vk.Result {
	if ret := f.call("BeginCommandBuffer"); ret != vk.Success {
		return ret
	}
	f.recordings[cmd] = nil
	return vk.Success
}

func (f *fakeDriver) EndCommandBuffer(vk.CommandBuffer) vk.Result { return f.call("EndCommandBuffer") }

func (f *fakeDriver) CmdBeginRenderPass(vk.CommandBuffer, *vk.RenderPassBeginInfo, vk.SubpassContents) {
	f.call("CmdBeginRenderPass")
}

func (f *fakeDriver) CmdEndRenderPass(vk.CommandBuffer) { f.call("CmdEndRenderPass") }

func (f *fakeDriver) CmdBindPipeline(vk.CommandBuffer, vk.PipelineBindPoint, vk.Pipeline) {
	f.call("CmdBindPipeline")
}

func (f *fakeDriver) CmdBindVertexBuffers(vk.CommandBuffer, uint32, []vk.Buffer, []vk.DeviceSize) {
	f.call("CmdBindVertexBuffers")
}

func (f *fakeDriver) CmdBindIndexBuffer(vk.CommandBuffer, vk.Buffer, vk.DeviceSize, vk.IndexType) {
	f.call("CmdBindIndexBuffer")
}

func (f *fakeDriver) CmdBindDescriptorSets(vk.CommandBuffer, vk.PipelineBindPoint, vk.PipelineLayout, uint32, []vk.DescriptorSet) {
	f.call("CmdBindDescriptorSets")
}

func (f *fakeDriver) CmdDraw(vk.CommandBuffer, uint32, uint32, uint32, uint32) {
	f.call("CmdDraw")
	f.draws = append(f.draws, "draw")
}

func (f *fakeDriver) CmdDrawIndexed(vk.CommandBuffer, uint32, uint32, uint32, int32, uint32) {
	f.call("CmdDrawIndexed")
	f.draws = append(f.draws, "indexed")
}

func (f *fakeDriver) CmdCopyBuffer(cmd vk.CommandBuffer, src, dst vk.Buffer, regions []vk.BufferCopy) {
	f.call("CmdCopyBuffer")
	f.recordings[cmd] = append(f.recordings[cmd], func() {
		from, to := f.bufferBytes(src), f.bufferBytes(dst)
		for _, r := range regions {
			copy(to[r.DstOffset:r.DstOffset+r.Size], from[r.SrcOffset:r.SrcOffset+r.Size])
		}
	})
}

func (f *fakeDriver) CmdCopyBufferToImage(cmd vk.CommandBuffer, src vk.Buffer, dst vk.Image, _ vk.ImageLayout, _ []vk.BufferImageCopy) {
	f.call("CmdCopyBufferToImage")
	f.recordings[cmd] = append(f.recordings[cmd], func() {
		copy(f.imageBytes(dst), f.bufferBytes(src))
	})
}

func (f *fakeDriver) CmdPipelineBarrier(vk.CommandBuffer, vk.PipelineStageFlags, vk.PipelineStageFlags, []vk.ImageMemoryBarrier) {
	f.call("CmdPipelineBarrier")
}

var _ Driver = (*fakeDriver)(nil)

// Helpers shared by the engine tests.

var (
	testVert = []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00}
	testFrag = []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00, 0x0b, 0x00, 0x00, 0x00}
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.AppName = "cacus test"
	return cfg
}

// newTestEngine returns an engine on drv, initialized on a fresh surface.
func newTestEngine(t *testing.T, drv *fakeDriver, cfg Config) *Engine {
	t.Helper()
	e, err := New(cfg, WithDriver(drv), WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.Initialize(drv.newSurface()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return e
}

func triangle() []Vertex {
	return []Vertex{
		{Pos: [3]float32{0, -0.5, 0}, Color: [3]float32{1, 0, 0}},
		{Pos: [3]float32{0.5, 0.5, 0}, Color: [3]float32{0, 1, 0}},
		{Pos: [3]float32{-0.5, 0.5, 0}, Color: [3]float32{0, 0, 1}},
	}
}
