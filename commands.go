package cacus

import vk "github.com/vulkan-go/vulkan"

// drawRecording is everything baked into the per image command buffers.
// Changing any of it means recording again, which happens with every swap
// chain rebuild.
type drawRecording struct {
	pass         vk.RenderPass
	framebuffers []vk.Framebuffer
	extent       vk.Extent2D
	pipeline     vk.Pipeline
	layout       vk.PipelineLayout
	sets         []vk.DescriptorSet
	mesh         *mesh
	clear        [4]float32
	depth        bool
}

func (r *drawRecording) clearValues() []vk.ClearValue {
	values := []vk.ClearValue{vk.NewClearValue(r.clear[:])}
	if r.depth {
		values = append(values, vk.NewClearDepthStencil(1, 0))
	}
	return values
}

// record fills cmd with the render pass for framebuffer i. Without a mesh a
// single triangle is drawn from vertices generated in the shader.
func (r *drawRecording) record(drv Driver, cmd vk.CommandBuffer, i int) error {
	ret := drv.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	})
	if err := newError(ErrSubmit, "begin command buffer", ret); err != nil {
		return err
	}
	clear := r.clearValues()
	drv.CmdBeginRenderPass(cmd, &vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      r.pass,
		Framebuffer:     r.framebuffers[i],
		RenderArea:      vk.Rect2D{Extent: r.extent},
		ClearValueCount: uint32(len(clear)),
		PClearValues:    clear,
	}, vk.SubpassContentsInline)
	drv.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, r.pipeline)
	if len(r.sets) > i {
		drv.CmdBindDescriptorSets(cmd, vk.PipelineBindPointGraphics, r.layout, 0, r.sets[i:i+1])
	}

	switch m := r.mesh; {
	case m == nil:
		drv.CmdDraw(cmd, 3, 1, 0, 0)
	case m.indices != nil:
		drv.CmdBindVertexBuffers(cmd, 0, []vk.Buffer{m.vertices.Buffer}, []vk.DeviceSize{0})
		drv.CmdBindIndexBuffer(cmd, m.indices.Buffer, 0, m.indexType)
		drv.CmdDrawIndexed(cmd, m.indexCount, 1, 0, 0, 0)
	default:
		drv.CmdBindVertexBuffers(cmd, 0, []vk.Buffer{m.vertices.Buffer}, []vk.DeviceSize{0})
		drv.CmdDraw(cmd, m.vertexCount, 1, 0, 0)
	}

	drv.CmdEndRenderPass(cmd)
	return newError(ErrSubmit, "end command buffer", drv.EndCommandBuffer(cmd))
}

func (r *drawRecording) recordAll(drv Driver, cmds []vk.CommandBuffer) error {
	for i := range cmds {
		if err := r.record(drv, cmds[i], i); err != nil {
			return err
		}
	}
	return nil
}
