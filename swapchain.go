package cacus

import (
	"math"

	vk "github.com/vulkan-go/vulkan"
)

// preferredSurfaceFormat is picked whenever the surface offers it.
var preferredSurfaceFormat = vk.SurfaceFormat{
	Format:     vk.FormatB8g8r8a8Srgb,
	ColorSpace: vk.ColorSpaceSrgbNonlinear,
}

// chooseSurfaceFormat returns the preferred sRGB format when available, the
// first entry otherwise. A single undefined entry means the surface has no
// preference.
func chooseSurfaceFormat(formats []vk.SurfaceFormat) (vk.SurfaceFormat, bool) {
	if len(formats) == 0 {
		return vk.SurfaceFormat{}, false
	}
	if len(formats) == 1 && formats[0].Format == vk.FormatUndefined {
		return preferredSurfaceFormat, true
	}
	for _, f := range formats {
		if f.Format == preferredSurfaceFormat.Format && f.ColorSpace == preferredSurfaceFormat.ColorSpace {
			return f, true
		}
	}
	return formats[0], true
}

// choosePresentMode returns want if the surface supports it. FIFO is always
// available and is the fallback.
func choosePresentMode(modes []vk.PresentMode, want vk.PresentMode) vk.PresentMode {
	for _, m := range modes {
		if m == want {
			return m
		}
	}
	return vk.PresentModeFifo
}

// chooseExtent uses the surface's current extent unless the surface leaves it
// to the application, in which case the hint is clamped to the allowed range.
func chooseExtent(caps vk.SurfaceCapabilities, width, height uint32) vk.Extent2D {
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return caps.CurrentExtent
	}
	return vk.Extent2D{
		Width:  clampUint32(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clampUint32(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// chooseImageCount asks for one image more than the minimum so the driver is
// never waited on for an image. MaxImageCount of zero means no limit.
func chooseImageCount(caps vk.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func chooseCompositeAlpha(caps vk.SurfaceCapabilities) vk.CompositeAlphaFlagBits {
	for _, bit := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	} {
		if caps.SupportedCompositeAlpha&vk.CompositeAlphaFlags(bit) != 0 {
			return bit
		}
	}
	return vk.CompositeAlphaOpaqueBit
}

// Swapchain is the presentable image chain and one color view per image.
type Swapchain struct {
	drv    Driver
	device vk.Device

	handle vk.Swapchain
	format vk.SurfaceFormat
	mode   vk.PresentMode
	extent vk.Extent2D
	images []vk.Image
	views  []vk.ImageView
}

func (s *Swapchain) Handle() vk.Swapchain { return s.handle }

func (s *Swapchain) Format() vk.Format { return s.format.Format }

func (s *Swapchain) Extent() vk.Extent2D { return s.extent }

func (s *Swapchain) PresentMode() vk.PresentMode { return s.mode }

func (s *Swapchain) ImageCount() int { return len(s.images) }

func (s *Swapchain) Views() []vk.ImageView { return s.views }

// fullViewport covers extent with the standard [0, 1] depth range.
func fullViewport(extent vk.Extent2D) vk.Viewport {
	return vk.Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
}

func fullScissor(extent vk.Extent2D) vk.Rect2D {
	return vk.Rect2D{Extent: extent}
}

// createSwapchain builds the chain for surface on ctx. width and height are
// only used when the surface leaves the extent to the application. Every
// object created here is pushed onto td so the swap chain group can be torn
// down in one call.
func createSwapchain(drv Driver, ctx *DeviceContext, surface vk.Surface, want vk.PresentMode, width, height uint32, td *teardown) (*Swapchain, error) {
	gpu := ctx.gpu
	caps, ret := drv.SurfaceCapabilities(gpu, surface)
	if err := newError(ErrSwapChainCreation, "query surface capabilities", ret); err != nil {
		return nil, err
	}
	formats, ret := drv.SurfaceFormats(gpu, surface)
	if err := newError(ErrSwapChainCreation, "query surface formats", ret); err != nil {
		return nil, err
	}
	modes, ret := drv.SurfacePresentModes(gpu, surface)
	if err := newError(ErrSwapChainCreation, "query present modes", ret); err != nil {
		return nil, err
	}
	format, ok := chooseSurfaceFormat(formats)
	if !ok {
		return nil, errorf(ErrSwapChainCreation, "choose surface format", "surface reports no formats")
	}

	sc := &Swapchain{
		drv:    drv,
		device: ctx.device,
		format: format,
		mode:   choosePresentMode(modes, want),
		extent: chooseExtent(caps, width, height),
	}

	preTransform := caps.CurrentTransform
	if vk.SurfaceTransformFlagBits(caps.SupportedTransforms)&vk.SurfaceTransformIdentityBit != 0 {
		preTransform = vk.SurfaceTransformIdentityBit
	}

	info := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          surface,
		MinImageCount:    chooseImageCount(caps),
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      sc.extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     preTransform,
		CompositeAlpha:   chooseCompositeAlpha(caps),
		PresentMode:      sc.mode,
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}
	if ctx.families.separatePresent() {
		families := []uint32{ctx.families.graphics, ctx.families.present}
		info.ImageSharingMode = vk.SharingModeConcurrent
		info.QueueFamilyIndexCount = uint32(len(families))
		info.PQueueFamilyIndices = families
	}

	ret = drv.CreateSwapchain(ctx.device, &info, &sc.handle)
	if err := newError(ErrSwapChainCreation, "create swapchain", ret); err != nil {
		return nil, err
	}
	td.push("swapchain", func() { drv.DestroySwapchain(ctx.device, sc.handle) })

	sc.images, ret = drv.SwapchainImages(ctx.device, sc.handle)
	if err := newError(ErrSwapChainCreation, "get swapchain images", ret); err != nil {
		return nil, err
	}
	sc.views = make([]vk.ImageView, 0, len(sc.images))
	td.push("swapchain image views", func() {
		for _, v := range sc.views {
			drv.DestroyImageView(ctx.device, v)
		}
	})
	for _, img := range sc.images {
		view, err := createImageView(drv, ctx.device, img, format.Format, vk.ImageAspectColorBit)
		if err != nil {
			return nil, err
		}
		sc.views = append(sc.views, view)
	}
	return sc, nil
}

// createFramebuffers attaches every swapchain view, plus the shared depth view
// when one exists, to pass.
func createFramebuffers(drv Driver, device vk.Device, sc *Swapchain, pass vk.RenderPass, depth vk.ImageView) ([]vk.Framebuffer, error) {
	framebuffers := make([]vk.Framebuffer, 0, len(sc.views))
	for _, view := range sc.views {
		attachments := []vk.ImageView{view}
		if depth != vk.NullImageView {
			attachments = append(attachments, depth)
		}
		var fb vk.Framebuffer
		ret := drv.CreateFramebuffer(device, &vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      pass,
			AttachmentCount: uint32(len(attachments)),
			PAttachments:    attachments,
			Width:           sc.extent.Width,
			Height:          sc.extent.Height,
			Layers:          1,
		}, &fb)
		if err := newError(ErrPipelineCreation, "create framebuffer", ret); err != nil {
			for _, created := range framebuffers {
				drv.DestroyFramebuffer(device, created)
			}
			return nil, err
		}
		framebuffers = append(framebuffers, fb)
	}
	return framebuffers, nil
}
