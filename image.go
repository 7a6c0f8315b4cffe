package cacus

import (
	"image"

	vk "github.com/vulkan-go/vulkan"
	"golang.org/x/image/draw"
)

// textureFormat is the layout of every uploaded texture: tightly packed
// 8-bit RGBA rows, sRGB encoded.
const textureFormat = vk.FormatR8g8b8a8Srgb

var depthCandidates = []vk.Format{
	vk.FormatD32Sfloat,
	vk.FormatD32SfloatS8Uint,
	vk.FormatD24UnormS8Uint,
}

// findDepthFormat returns the first candidate usable as an optimally tiled
// depth attachment.
func findDepthFormat(drv Driver, gpu vk.PhysicalDevice) (vk.Format, bool) {
	want := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, f := range depthCandidates {
		props := drv.FormatProperties(gpu, f)
		if props.OptimalTilingFeatures&want == want {
			return f, true
		}
	}
	return vk.FormatUndefined, false
}

func createImageView(drv Driver, device vk.Device, img vk.Image, format vk.Format, aspect vk.ImageAspectFlagBits) (vk.ImageView, error) {
	var view vk.ImageView
	ret := drv.CreateImageView(device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(aspect),
			LevelCount: 1,
			LayerCount: 1,
		},
	}, &view)
	if err := newError(ErrResourceCreation, "create image view", ret); err != nil {
		return vk.NullImageView, err
	}
	return view, nil
}

// Image is a 2D single mip image, its memory and a view over it.
type Image struct {
	drv    Driver
	device vk.Device

	Image  vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Format vk.Format
	Extent vk.Extent2D
}

func (i *Image) Destroy() {
	if i == nil || i.device == nil {
		return
	}
	if i.View != vk.NullImageView {
		i.drv.DestroyImageView(i.device, i.View)
	}
	i.drv.DestroyImage(i.device, i.Image)
	i.drv.FreeMemory(i.device, i.Memory)
	i.device = nil
}

// CreateImage creates an optimally tiled 2D image in device local memory and
// a view over it with the given aspect.
func (u *Uploader) CreateImage(width, height uint32, format vk.Format, usage vk.ImageUsageFlagBits, aspect vk.ImageAspectFlagBits) (*Image, error) {
	if width == 0 || height == 0 {
		return nil, errorf(ErrResourceCreation, "create image", "zero sized image %dx%d", width, height)
	}
	device := u.ctx.device
	img := &Image{
		drv:    u.drv,
		device: device,
		Format: format,
		Extent: vk.Extent2D{Width: width, Height: height},
	}
	ret := u.drv.CreateImage(device, &vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        format,
		Extent:        vk.Extent3D{Width: width, Height: height, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, &img.Image)
	if err := newError(ErrResourceCreation, "create image", ret); err != nil {
		return nil, err
	}
	memory, err := u.allocate(u.drv.ImageMemoryRequirements(device, img.Image), deviceLocal)
	if err != nil {
		u.drv.DestroyImage(device, img.Image)
		return nil, err
	}
	img.Memory = memory
	if err := newError(ErrResourceCreation, "bind image memory", u.drv.BindImageMemory(device, img.Image, memory, 0)); err != nil {
		img.Destroy()
		return nil, err
	}
	if img.View, err = createImageView(u.drv, device, img.Image, format, aspect); err != nil {
		img.Destroy()
		return nil, err
	}
	return img, nil
}

// layoutBarrier returns the barrier and stages for moving img between the
// layouts used by texture uploads and depth attachments.
func layoutBarrier(img vk.Image, oldLayout, newLayout vk.ImageLayout) (vk.ImageMemoryBarrier, vk.PipelineStageFlags, vk.PipelineStageFlags) {
	aspect := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	if newLayout == vk.ImageLayoutDepthStencilAttachmentOptimal {
		aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	src := vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	if oldLayout == vk.ImageLayoutTransferDstOptimal {
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		src = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	}
	var dst vk.PipelineStageFlags
	switch newLayout {
	case vk.ImageLayoutTransferDstOptimal:
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		dst = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case vk.ImageLayoutShaderReadOnlyOptimal:
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		dst = vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	case vk.ImageLayoutDepthStencilAttachmentOptimal:
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit)
		dst = vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit)
	default:
		dst = vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	}
	return barrier, src, dst
}

func (u *Uploader) transitionImageLayout(img vk.Image, oldLayout, newLayout vk.ImageLayout) error {
	barrier, src, dst := layoutBarrier(img, oldLayout, newLayout)
	return u.cmds.OneShot(func(cmd vk.CommandBuffer) {
		u.drv.CmdPipelineBarrier(cmd, src, dst, []vk.ImageMemoryBarrier{barrier})
	})
}

// UploadImageData fills a sampled image with tightly packed RGBA pixels and
// leaves it in the shader read layout.
func (u *Uploader) UploadImageData(width, height uint32, pixels []byte) (*Image, error) {
	if want := int(width) * int(height) * 4; len(pixels) != want {
		return nil, errorf(ErrResourceCreation, "upload texture", "got %d bytes of pixels, want %d for %dx%d RGBA", len(pixels), want, width, height)
	}
	stage, err := u.staging(pixels, vk.BufferUsageTransferSrcBit)
	if err != nil {
		return nil, err
	}
	defer stage.Destroy()

	img, err := u.CreateImage(width, height, textureFormat,
		vk.ImageUsageTransferDstBit|vk.ImageUsageSampledBit, vk.ImageAspectColorBit)
	if err != nil {
		return nil, err
	}
	toTransfer, src1, dst1 := layoutBarrier(img.Image, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
	toShader, src2, dst2 := layoutBarrier(img.Image, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	err = u.cmds.OneShot(func(cmd vk.CommandBuffer) {
		u.drv.CmdPipelineBarrier(cmd, src1, dst1, []vk.ImageMemoryBarrier{toTransfer})
		u.drv.CmdCopyBufferToImage(cmd, stage.Buffer, img.Image, vk.ImageLayoutTransferDstOptimal, []vk.BufferImageCopy{{
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LayerCount: 1,
			},
			ImageExtent: vk.Extent3D{Width: width, Height: height, Depth: 1},
		}})
		u.drv.CmdPipelineBarrier(cmd, src2, dst2, []vk.ImageMemoryBarrier{toShader})
	})
	if err != nil {
		img.Destroy()
		return nil, err
	}
	return img, nil
}

// createDepthImage creates the depth attachment shared by every framebuffer
// and moves it into the attachment layout.
func (u *Uploader) createDepthImage(format vk.Format, extent vk.Extent2D) (*Image, error) {
	img, err := u.CreateImage(extent.Width, extent.Height, format,
		vk.ImageUsageDepthStencilAttachmentBit, vk.ImageAspectDepthBit)
	if err != nil {
		return nil, err
	}
	if err := u.transitionImageLayout(img.Image, vk.ImageLayoutUndefined, vk.ImageLayoutDepthStencilAttachmentOptimal); err != nil {
		img.Destroy()
		return nil, err
	}
	return img, nil
}

// rgbaPixels returns the pixels of src as tightly packed RGBA rows, converting
// through x/image/draw when src is not already an *image.RGBA with no stride
// padding.
func rgbaPixels(src image.Image) (uint32, uint32, []byte) {
	b := src.Bounds()
	if rgba, ok := src.(*image.RGBA); ok && rgba.Stride == 4*b.Dx() && b.Min == (image.Point{}) {
		return uint32(b.Dx()), uint32(b.Dy()), rgba.Pix
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return uint32(b.Dx()), uint32(b.Dy()), dst.Pix
}

// Texture is a sampled image together with its sampler.
type Texture struct {
	*Image
	Sampler vk.Sampler
}

func (t *Texture) Destroy() {
	if t == nil || t.Image == nil {
		return
	}
	if t.Sampler != vk.Sampler(vk.NullHandle) {
		t.drv.DestroySampler(t.device, t.Sampler)
		t.Sampler = vk.Sampler(vk.NullHandle)
	}
	t.Image.Destroy()
}

// createSampler builds a linear, repeating sampler. Anisotropic filtering is
// only requested when the device feature was enabled at device creation.
func createSampler(drv Driver, ctx *DeviceContext) (vk.Sampler, error) {
	info := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
	}
	if ctx.anisotropy {
		info.AnisotropyEnable = vk.True
		info.MaxAnisotropy = ctx.maxAniso
	}
	var sampler vk.Sampler
	if err := newError(ErrResourceCreation, "create sampler", drv.CreateSampler(ctx.device, &info, &sampler)); err != nil {
		return vk.Sampler(vk.NullHandle), err
	}
	return sampler, nil
}

func (u *Uploader) CreateTexture(width, height uint32, pixels []byte) (*Texture, error) {
	img, err := u.UploadImageData(width, height, pixels)
	if err != nil {
		return nil, err
	}
	sampler, err := createSampler(u.drv, u.ctx)
	if err != nil {
		img.Destroy()
		return nil, err
	}
	return &Texture{Image: img, Sampler: sampler}, nil
}
