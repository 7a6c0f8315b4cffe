package cacus

import (
	"image"
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/vulkan-go/vulkan"
)

// Engine owns one Vulkan instance, one device and one swap chain, and draws
// a single mesh (or a shader generated triangle) with a single pipeline.
//
// Objects live in two groups torn down in reverse creation order: the device
// group (device, command pool, frame slots) lives until Shutdown, the swap
// chain group (swap chain, views, depth, render pass, layouts, pipeline,
// framebuffers, uniform buffers, descriptors, command buffers) is rebuilt on
// every recreation.
//
// The engine is driven from a single goroutine.
type Engine struct {
	cfg              Config
	drv              Driver
	log              *slog.Logger
	presentMode      vk.PresentMode
	windowExtensions []string

	instance  *CoreInstance
	surface   vk.Surface
	window    Window
	resizeErr error

	ctx         *DeviceContext
	cmds        *CommandBufferManager
	uploader    *Uploader
	frames      *frameSynchronizer
	depthFormat vk.Format
	deviceGroup teardown

	width, height uint32
	swapchain     *Swapchain
	depth         *Image
	swapGroup     teardown

	builder   *PipelineBuilder
	recording *drawRecording
	ubos      []*Buffer
	commands  []vk.CommandBuffer

	mesh      *mesh
	texture   *Texture
	transform UniformBufferObject
	clear     [4]float32
}

// New creates the Vulkan instance described by cfg. Requested extensions and
// validation layers are checked before the instance is created and a missing
// one fails with ErrConfiguration.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mode, _ := presentModeByName(cfg.PresentMode)
	e := &Engine{
		cfg:         cfg,
		log:         slog.Default(),
		presentMode: mode,
		width:       cfg.Width,
		height:      cfg.Height,
		transform:   identityTransform(),
		clear:       cfg.ClearColor,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.drv == nil {
		drv, err := NewDriver()
		if err != nil {
			return nil, wrapError(ErrConfiguration, "load vulkan", err)
		}
		e.drv = drv
	}
	inst, err := createInstance(e.drv, cfg, e.windowExtensions, e.log)
	if err != nil {
		return nil, err
	}
	e.instance = inst
	return e, nil
}

// Instance returns the instance handle, for surface creation by the caller.
func (e *Engine) Instance() vk.Instance {
	if e.instance == nil {
		return nil
	}
	return e.instance.handle
}

// Device returns the selected device, nil before Initialize.
func (e *Engine) Device() *DeviceContext { return e.ctx }

// Swapchain returns the current swap chain, nil before Initialize.
func (e *Engine) Swapchain() *Swapchain { return e.swapchain }

// Initialize selects a device able to present to surface, creates the device
// group and the swap chain. The engine takes ownership of surface and
// destroys it in Shutdown.
func (e *Engine) Initialize(surface vk.Surface) error {
	if e.instance == nil {
		return errorf(ErrConfiguration, "initialize", "engine is shut down")
	}
	if surface == vk.NullSurface {
		return errorf(ErrConfiguration, "initialize", "no surface")
	}
	if e.ctx != nil {
		return errorf(ErrConfiguration, "initialize", "already initialized")
	}
	e.surface = surface

	if err := e.createDeviceGroup(); err != nil {
		e.deviceGroup.run()
		e.ctx, e.cmds, e.uploader, e.frames = nil, nil, nil, nil
		return err
	}
	if err := e.buildSwapchainGroup(); err != nil {
		return err
	}
	e.log.Info("swapchain created",
		"width", e.swapchain.extent.Width, "height", e.swapchain.extent.Height,
		"images", e.swapchain.ImageCount(), "present_mode", e.swapchain.mode)
	return nil
}

func (e *Engine) createDeviceGroup() error {
	required := append([]string{extSwapchain}, e.cfg.DeviceExtensions...)
	cand, err := selectDevice(e.drv, e.instance.handle, e.surface, required, e.log)
	if err != nil {
		return err
	}
	ctx, err := createDevice(e.drv, cand, e.instance.layers, e.log)
	if err != nil {
		return err
	}
	e.ctx = ctx
	e.deviceGroup.push("device", func() { e.drv.DestroyDevice(ctx.device) })
	e.log.Info("device selected",
		"name", ctx.Name(),
		"api", versionString(ctx.properties.ApiVersion),
		"graphics_family", ctx.families.graphics,
		"present_family", ctx.families.present)

	cmds, err := NewCommandBufferManager(e.drv, ctx)
	if err != nil {
		return err
	}
	e.cmds = cmds
	e.deviceGroup.push("command pool", cmds.Destroy)
	e.uploader = NewUploader(e.drv, ctx, cmds)

	frames, err := newFrameSynchronizer(e.drv, ctx)
	if err != nil {
		return err
	}
	e.frames = frames
	e.deviceGroup.push("frame sync", frames.destroy)

	if e.cfg.Depth {
		format, ok := findDepthFormat(e.drv, ctx.gpu)
		if !ok {
			return errorf(ErrResourceCreation, "find depth format", "no supported depth attachment format")
		}
		e.depthFormat = format
	}
	return nil
}

// buildSwapchainGroup creates the swap chain for the current extent hint and,
// once a pipeline has been set up, everything drawn into it. On failure the
// partial group is released and the engine stays without a swap chain until
// the next successful recreation.
func (e *Engine) buildSwapchainGroup() error {
	err := e.buildSwapchainObjects()
	if err != nil {
		e.swapGroup.run()
		e.swapchain, e.depth, e.recording, e.ubos, e.commands = nil, nil, nil, nil, nil
	}
	return err
}

func (e *Engine) buildSwapchainObjects() error {
	td := &e.swapGroup
	sc, err := createSwapchain(e.drv, e.ctx, e.surface, e.presentMode, e.width, e.height, td)
	if err != nil {
		return err
	}
	e.swapchain = sc
	e.frames.resetImages(sc.ImageCount())

	if e.depthFormat != vk.FormatUndefined {
		depth, err := e.uploader.createDepthImage(e.depthFormat, sc.extent)
		if err != nil {
			return err
		}
		e.depth = depth
		td.push("depth image", depth.Destroy)
	}
	if e.builder == nil {
		return nil
	}
	return e.buildPipelineObjects()
}

func (e *Engine) buildPipelineObjects() error {
	td := &e.swapGroup
	drv, device, sc := e.drv, e.ctx.device, e.swapchain
	rec := &drawRecording{extent: sc.extent, mesh: e.mesh, clear: e.clear}

	depthView := vk.NullImageView
	depthFormat := vk.FormatUndefined
	if e.depth != nil {
		depthView, depthFormat = e.depth.View, e.depth.Format
		rec.depth = true
	}

	pass, err := createRenderPass(drv, device, sc.format.Format, depthFormat)
	if err != nil {
		return err
	}
	rec.pass = pass
	td.push("render pass", func() { drv.DestroyRenderPass(device, pass) })

	textured := e.texture != nil
	setLayout, err := createDescriptorSetLayout(drv, device, textured)
	if err != nil {
		return err
	}
	td.push("descriptor set layout", func() { drv.DestroyDescriptorSetLayout(device, setLayout) })

	layout, err := createPipelineLayout(drv, device, setLayout)
	if err != nil {
		return err
	}
	rec.layout = layout
	td.push("pipeline layout", func() { drv.DestroyPipelineLayout(device, layout) })

	pipeline, err := e.builder.Build(drv, device, pass, layout, sc.extent, rec.depth)
	if err != nil {
		return err
	}
	rec.pipeline = pipeline
	td.push("pipeline", func() { drv.DestroyPipeline(device, pipeline) })

	framebuffers, err := createFramebuffers(drv, device, sc, pass, depthView)
	if err != nil {
		return err
	}
	rec.framebuffers = framebuffers
	td.push("framebuffers", func() {
		for _, fb := range framebuffers {
			drv.DestroyFramebuffer(device, fb)
		}
	})

	e.ubos = make([]*Buffer, 0, sc.ImageCount())
	td.push("uniform buffers", func() {
		for _, b := range e.ubos {
			b.Destroy()
		}
	})
	for i := 0; i < sc.ImageCount(); i++ {
		ubo, err := e.uploader.CreateBuffer(vk.DeviceSize(uniformBufferSize),
			vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit), hostVisible)
		if err != nil {
			return err
		}
		e.ubos = append(e.ubos, ubo)
	}

	pool, err := NewDescriptorPool(drv, device, setLayout, sc.ImageCount(), textured)
	if err != nil {
		return err
	}
	td.push("descriptor pool", pool.Destroy)
	for i := range e.ubos {
		pool.Bind(i, e.ubos[i], e.texture)
	}
	rec.sets = pool.Sets()

	commands, err := e.cmds.Allocate(sc.ImageCount())
	if err != nil {
		return err
	}
	td.push("command buffers", func() { e.cmds.Free(commands) })
	if err := rec.recordAll(drv, commands); err != nil {
		return err
	}
	e.commands = commands
	e.recording = rec
	return nil
}

// rebuild waits for the device to go idle and rebuilds the swap chain group
// from scratch.
func (e *Engine) rebuild() error {
	if err := e.ctx.waitIdle(); err != nil {
		return err
	}
	e.swapGroup.run()
	e.swapchain, e.depth, e.recording, e.ubos, e.commands = nil, nil, nil, nil, nil
	return e.buildSwapchainGroup()
}

// RecreateSwapChain rebuilds the swap chain group for a new framebuffer size.
// A zero width or height (a minimized window) is ignored without touching the
// device.
func (e *Engine) RecreateSwapChain(width, height uint32) error {
	if width == 0 || height == 0 {
		return nil
	}
	if e.ctx == nil {
		return errorf(ErrConfiguration, "recreate swapchain", "engine is not initialized")
	}
	e.width, e.height = width, height
	if err := e.rebuild(); err != nil {
		return err
	}
	e.log.Debug("swapchain recreated",
		"width", e.swapchain.extent.Width, "height", e.swapchain.extent.Height)
	return nil
}

// SetupPipeline builds the graphics pipeline from SPIR-V vertex and fragment
// code along with everything that draws with it. Calling it again replaces
// the pipeline.
func (e *Engine) SetupPipeline(vert, frag []byte, opts ...PipelineOption) error {
	if e.ctx == nil {
		return errorf(ErrConfiguration, "setup pipeline", "engine is not initialized")
	}
	builder := NewPipelineBuilder(vert, frag, opts...)
	if err := builder.validate(); err != nil {
		return err
	}
	e.builder = builder
	if e.swapchain == nil || e.recording != nil {
		return e.rebuild()
	}
	err := e.buildPipelineObjects()
	if err != nil {
		e.swapGroup.run()
		e.swapchain, e.depth, e.recording, e.ubos, e.commands = nil, nil, nil, nil, nil
	}
	return err
}

// UploadMesh copies vertices and indices into device local buffers. An empty
// index list draws the vertices in order.
func (e *Engine) UploadMesh(vertices []Vertex, indices Indices) error {
	if e.ctx == nil {
		return errorf(ErrConfiguration, "upload mesh", "engine is not initialized")
	}
	if len(vertices) == 0 {
		return errorf(ErrResourceCreation, "upload mesh", "no vertices")
	}
	m := &mesh{vertexCount: uint32(len(vertices))}
	var err error
	if m.vertices, err = e.uploader.UploadViaStaging(bytesOf(vertices), vk.BufferUsageVertexBufferBit); err != nil {
		return err
	}
	if indices.Count() > 0 {
		if m.indices, err = e.uploader.UploadViaStaging(indices.Bytes(), vk.BufferUsageIndexBufferBit); err != nil {
			m.destroy()
			return err
		}
		m.indexType, m.indexCount = indices.Type(), indices.Count()
	}
	return e.replaceResources(func() {
		e.mesh.destroy()
		e.mesh = m
	})
}

// UploadTexture uploads width x height tightly packed RGBA8 pixels as the
// texture bound at binding 1.
func (e *Engine) UploadTexture(width, height uint32, pixels []byte) error {
	if e.ctx == nil {
		return errorf(ErrConfiguration, "upload texture", "engine is not initialized")
	}
	tex, err := e.uploader.CreateTexture(width, height, pixels)
	if err != nil {
		return err
	}
	return e.replaceResources(func() {
		e.texture.Destroy()
		e.texture = tex
	})
}

// UploadImage converts img to RGBA8 and uploads it with UploadTexture.
func (e *Engine) UploadImage(img image.Image) error {
	width, height, pixels := rgbaPixels(img)
	return e.UploadTexture(width, height, pixels)
}

// replaceResources swaps in a new mesh or texture. When command buffers
// already reference the old one, the device is drained first and the swap
// chain group rebuilt so descriptors and recordings pick up the new one.
func (e *Engine) replaceResources(swap func()) error {
	if e.recording == nil {
		swap()
		return nil
	}
	if err := e.ctx.waitIdle(); err != nil {
		return err
	}
	swap()
	return e.rebuild()
}

// SetTransform sets the matrices written to the uniform buffer of each
// image right before it is submitted.
func (e *Engine) SetTransform(model, view, proj mgl32.Mat4) {
	e.transform = UniformBufferObject{Model: model, View: view, Proj: proj}
}

// SetClearColor changes the color attachment clear value. Recorded command
// buffers are recorded again.
func (e *Engine) SetClearColor(r, g, b, a float32) error {
	e.clear = [4]float32{r, g, b, a}
	if e.recording == nil {
		return nil
	}
	if err := e.ctx.waitIdle(); err != nil {
		return err
	}
	e.recording.clear = e.clear
	return e.recording.recordAll(e.drv, e.commands)
}

// Draw renders one frame. needsRecreate is true when the surface is stale or
// suboptimal; the caller then calls RecreateSwapChain with the current
// framebuffer size. Errors raised once the frame has acquired its image are
// terminal: every later call returns the same error.
func (e *Engine) Draw() (needsRecreate bool, err error) {
	if e.ctx == nil {
		return false, errorf(ErrConfiguration, "draw", "engine is not initialized")
	}
	if err := e.resizeErr; err != nil {
		e.resizeErr = nil
		return false, err
	}
	if e.swapchain == nil {
		return true, nil
	}
	if e.recording == nil {
		return false, errorf(ErrConfiguration, "draw", "no pipeline set up")
	}
	return e.frames.draw(frameTarget{
		swapchain:    e.swapchain.handle,
		commands:     e.commands,
		beforeSubmit: e.writeUniforms,
	})
}

func (e *Engine) writeUniforms(image uint32) error {
	return e.uploader.Write(e.ubos[image], 0, e.transform.bytes())
}

// Shutdown waits for the device and destroys everything in reverse creation
// order. It is safe to call more than once.
func (e *Engine) Shutdown() {
	if e.ctx != nil {
		if err := e.ctx.waitIdle(); err != nil {
			e.log.Warn("device wait idle failed during shutdown", "err", err)
		}
	}
	e.swapGroup.run()
	e.swapchain, e.depth, e.recording, e.ubos, e.commands = nil, nil, nil, nil, nil
	e.mesh.destroy()
	e.texture.Destroy()
	e.mesh, e.texture = nil, nil
	e.deviceGroup.run()
	e.ctx, e.cmds, e.uploader, e.frames = nil, nil, nil, nil
	if e.instance == nil {
		return
	}
	if e.surface != vk.NullSurface {
		e.drv.DestroySurface(e.instance.handle, e.surface)
		e.surface = vk.NullSurface
	}
	e.instance.Destroy()
	e.instance = nil
	e.log.Info("engine shut down")
}
