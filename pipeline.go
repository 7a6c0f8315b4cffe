package cacus

import vk "github.com/vulkan-go/vulkan"

// PipelineOption adjusts the fixed function state of a PipelineBuilder.
type PipelineOption func(*PipelineBuilder)

// WithVertexInput declares the vertex buffer layout consumed by the vertex
// shader.
func WithVertexInput(bindings []vk.VertexInputBindingDescription, attributes []vk.VertexInputAttributeDescription) PipelineOption {
	return func(p *PipelineBuilder) {
		p.bindings = bindings
		p.attributes = attributes
	}
}

// WithoutVertexInput builds a pipeline whose vertex shader generates its own
// positions, e.g. the hard coded triangle.
func WithoutVertexInput() PipelineOption {
	return func(p *PipelineBuilder) {
		p.bindings = nil
		p.attributes = nil
	}
}

func WithFrontFace(face vk.FrontFace) PipelineOption {
	return func(p *PipelineBuilder) { p.frontFace = face }
}

func WithCullMode(mode vk.CullModeFlagBits) PipelineOption {
	return func(p *PipelineBuilder) { p.cullMode = mode }
}

// PipelineBuilder holds the shader code and fixed function state of a
// graphics pipeline. Built pipelines are immutable; new shaders need a new
// builder.
type PipelineBuilder struct {
	vert, frag []byte

	bindings   []vk.VertexInputBindingDescription
	attributes []vk.VertexInputAttributeDescription

	cullMode  vk.CullModeFlagBits
	frontFace vk.FrontFace
	depthTest bool
}

// NewPipelineBuilder starts from the Vertex layout, back face culling and a
// clockwise front face.
func NewPipelineBuilder(vert, frag []byte, opts ...PipelineOption) *PipelineBuilder {
	bindings, attributes := VertexLayout()
	p := &PipelineBuilder{
		vert:       vert,
		frag:       frag,
		bindings:   bindings,
		attributes: attributes,
		cullMode:   vk.CullModeBackBit,
		frontFace:  vk.FrontFaceClockwise,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// validate rejects malformed SPIR-V before any driver call is made.
func (p *PipelineBuilder) validate() error {
	if _, err := spirvWords(p.vert); err != nil {
		return err
	}
	_, err := spirvWords(p.frag)
	return err
}

// pipelineState is the create info of a pipeline plus the slices it points
// into, kept together so tests can inspect what the driver receives.
type pipelineState struct {
	info        vk.GraphicsPipelineCreateInfo
	vertexInput vk.PipelineVertexInputStateCreateInfo
	assembly    vk.PipelineInputAssemblyStateCreateInfo
	viewport    vk.PipelineViewportStateCreateInfo
	raster      vk.PipelineRasterizationStateCreateInfo
	multisample vk.PipelineMultisampleStateCreateInfo
	depth       vk.PipelineDepthStencilStateCreateInfo
	blend       vk.PipelineColorBlendStateCreateInfo
}

// state fills the fixed function state for a pass and extent. Viewport and
// scissor are baked in, so the pipeline is rebuilt with the swap chain.
func (p *PipelineBuilder) state(stages []vk.PipelineShaderStageCreateInfo, pass vk.RenderPass, layout vk.PipelineLayout, extent vk.Extent2D) *pipelineState {
	s := &pipelineState{}
	s.vertexInput = vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(p.bindings)),
		PVertexBindingDescriptions:      p.bindings,
		VertexAttributeDescriptionCount: uint32(len(p.attributes)),
		PVertexAttributeDescriptions:    p.attributes,
	}
	s.assembly = vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}
	s.viewport = vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		PViewports:    []vk.Viewport{fullViewport(extent)},
		ScissorCount:  1,
		PScissors:     []vk.Rect2D{fullScissor(extent)},
	}
	s.raster = vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		CullMode:                vk.CullModeFlags(p.cullMode),
		FrontFace:               p.frontFace,
		DepthBiasEnable:         vk.False,
		LineWidth:               1,
	}
	s.multisample = vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		SampleShadingEnable:  vk.False,
		MinSampleShading:     1,
	}
	s.depth = vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vk.False,
		DepthWriteEnable:      vk.False,
		DepthCompareOp:        vk.CompareOpLess,
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
		MaxDepthBounds:        1,
	}
	if p.depthTest {
		s.depth.DepthTestEnable = vk.True
		s.depth.DepthWriteEnable = vk.True
	}
	// No blending; every channel is written.
	s.blend = vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments: []vk.PipelineColorBlendAttachmentState{{
			BlendEnable: vk.False,
			ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
				vk.ColorComponentBBit | vk.ColorComponentABit),
		}},
	}
	s.info = vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &s.vertexInput,
		PInputAssemblyState: &s.assembly,
		PViewportState:      &s.viewport,
		PRasterizationState: &s.raster,
		PMultisampleState:   &s.multisample,
		PDepthStencilState:  &s.depth,
		PColorBlendState:    &s.blend,
		Layout:              layout,
		RenderPass:          pass,
		Subpass:             0,
		BasePipelineIndex:   -1,
	}
	return s
}

// Build creates the shader modules, the pipeline for pass and extent, and
// destroys the modules again. depthTest must match whether pass has a depth
// attachment.
func (p *PipelineBuilder) Build(drv Driver, device vk.Device, pass vk.RenderPass, layout vk.PipelineLayout, extent vk.Extent2D, depthTest bool) (vk.Pipeline, error) {
	if err := p.validate(); err != nil {
		return vk.NullPipeline, err
	}
	vert, err := createShaderModule(drv, device, VertexStage, p.vert)
	if err != nil {
		return vk.NullPipeline, err
	}
	defer drv.DestroyShaderModule(device, vert)
	frag, err := createShaderModule(drv, device, FragmentStage, p.frag)
	if err != nil {
		return vk.NullPipeline, err
	}
	defer drv.DestroyShaderModule(device, frag)

	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  VertexStage.flag(),
			Module: vert,
			PName:  safeString("main"),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  FragmentStage.flag(),
			Module: frag,
			PName:  safeString("main"),
		},
	}
	p.depthTest = depthTest
	s := p.state(stages, pass, layout, extent)

	pipelines := make([]vk.Pipeline, 1)
	ret := drv.CreateGraphicsPipelines(device, []vk.GraphicsPipelineCreateInfo{s.info}, pipelines)
	if err := newError(ErrPipelineCreation, "create graphics pipeline", ret); err != nil {
		return vk.NullPipeline, err
	}
	return pipelines[0], nil
}

func createPipelineLayout(drv Driver, device vk.Device, set vk.DescriptorSetLayout) (vk.PipelineLayout, error) {
	var layout vk.PipelineLayout
	ret := drv.CreatePipelineLayout(device, &vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{set},
	}, &layout)
	if err := newError(ErrPipelineCreation, "create pipeline layout", ret); err != nil {
		return vk.NullPipelineLayout, err
	}
	return layout, nil
}
