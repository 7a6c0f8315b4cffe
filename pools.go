package cacus

import vk "github.com/vulkan-go/vulkan"

const (
	uniformBinding = 0
	samplerBinding = 1
)

// descriptorBindings is the set layout: the uniform block for the vertex
// stage and, with a texture, a combined image sampler for the fragment stage.
func descriptorBindings(textured bool) []vk.DescriptorSetLayoutBinding {
	bindings := []vk.DescriptorSetLayoutBinding{{
		Binding:         uniformBinding,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit),
	}}
	if textured {
		bindings = append(bindings, vk.DescriptorSetLayoutBinding{
			Binding:         samplerBinding,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		})
	}
	return bindings
}

func createDescriptorSetLayout(drv Driver, device vk.Device, textured bool) (vk.DescriptorSetLayout, error) {
	bindings := descriptorBindings(textured)
	var layout vk.DescriptorSetLayout
	ret := drv.CreateDescriptorSetLayout(device, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}, &layout)
	if err := newError(ErrPipelineCreation, "create descriptor set layout", ret); err != nil {
		return vk.DescriptorSetLayout(vk.NullHandle), err
	}
	return layout, nil
}

// DescriptorPool owns one descriptor set per swap chain image. Sets are freed
// with the pool.
type DescriptorPool struct {
	drv    Driver
	device vk.Device
	pool   vk.DescriptorPool
	sets   []vk.DescriptorSet
}

// NewDescriptorPool creates a pool sized for count sets of the given layout
// and allocates them.
func NewDescriptorPool(drv Driver, device vk.Device, layout vk.DescriptorSetLayout, count int, textured bool) (*DescriptorPool, error) {
	sizes := []vk.DescriptorPoolSize{{
		Type:            vk.DescriptorTypeUniformBuffer,
		DescriptorCount: uint32(count),
	}}
	if textured {
		sizes = append(sizes, vk.DescriptorPoolSize{
			Type:            vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: uint32(count),
		})
	}
	d := &DescriptorPool{drv: drv, device: device}
	ret := drv.CreateDescriptorPool(device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       uint32(count),
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}, &d.pool)
	if err := newError(ErrResourceCreation, "create descriptor pool", ret); err != nil {
		return nil, err
	}

	layouts := make([]vk.DescriptorSetLayout, count)
	for i := range layouts {
		layouts[i] = layout
	}
	d.sets = make([]vk.DescriptorSet, count)
	ret = drv.AllocateDescriptorSets(device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     d.pool,
		DescriptorSetCount: uint32(count),
		PSetLayouts:        layouts,
	}, d.sets)
	if err := newError(ErrResourceCreation, "allocate descriptor sets", ret); err != nil {
		d.Destroy()
		return nil, err
	}
	return d, nil
}

func (d *DescriptorPool) Sets() []vk.DescriptorSet { return d.sets }

// Bind points set i at its uniform buffer and, when tex is not nil, at the
// texture.
func (d *DescriptorPool) Bind(i int, ubo *Buffer, tex *Texture) {
	writes := []vk.WriteDescriptorSet{{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          d.sets[i],
		DstBinding:      uniformBinding,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		DescriptorCount: 1,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: ubo.Buffer,
			Range:  ubo.Size,
		}},
	}}
	if tex != nil {
		writes = append(writes, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          d.sets[i],
			DstBinding:      samplerBinding,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			PImageInfo: []vk.DescriptorImageInfo{{
				Sampler:     tex.Sampler,
				ImageView:   tex.View,
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}},
		})
	}
	d.drv.UpdateDescriptorSets(d.device, writes)
}

func (d *DescriptorPool) Destroy() {
	if d == nil {
		return
	}
	d.drv.DestroyDescriptorPool(d.device, d.pool)
	d.sets = nil
}
