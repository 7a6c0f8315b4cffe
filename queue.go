package cacus

import (
	vk "github.com/vulkan-go/vulkan"
)

//Queue family indices selected for a physical device
type queueFamilies struct {
	graphics    uint32
	present     uint32
	hasGraphics bool
	hasPresent  bool
}

func (q queueFamilies) complete() bool {
	return q.hasGraphics && q.hasPresent
}

func (q queueFamilies) separatePresent() bool {
	return q.graphics != q.present
}

// unique lists each selected family once, graphics first.
func (q queueFamilies) unique() []uint32 {
	if q.separatePresent() {
		return []uint32{q.graphics, q.present}
	}
	return []uint32{q.graphics}
}

//Finds a graphics family and a family able to present to the surface, preferring a
//single family that does both
func findQueueFamilies(drv Driver, gpu vk.PhysicalDevice, surface vk.Surface) (queueFamilies, vk.Result) {
	var q queueFamilies
	props := drv.QueueFamilyProperties(gpu)
	for i, prop := range props {
		index := uint32(i)
		graphics := prop.QueueCount > 0 && prop.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0
		present, ret := drv.SurfaceSupport(gpu, index, surface)
		if ret != vk.Success {
			return q, ret
		}
		if graphics && present {
			q.graphics, q.present = index, index
			q.hasGraphics, q.hasPresent = true, true
			return q, vk.Success
		}
		if graphics && !q.hasGraphics {
			q.graphics, q.hasGraphics = index, true
		}
		if present && !q.hasPresent {
			q.present, q.hasPresent = index, true
		}
	}
	return q, vk.Success
}

func (q queueFamilies) createInfos() []vk.DeviceQueueCreateInfo {
	priority := []float32{1.0}
	var infos []vk.DeviceQueueCreateInfo
	for _, family := range q.unique() {
		infos = append(infos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: priority,
		})
	}
	return infos
}
