package cacus

import (
	"log/slog"

	vk "github.com/vulkan-go/vulkan"
)

type deviceCandidate struct {
	gpu        vk.PhysicalDevice
	families   queueFamilies
	extensions *extensionSet
}

// selectDevice picks the first physical device that can draw and present to
// surface and supports every required device extension plus at least one
// surface format and present mode. It only queries, nothing is created.
func selectDevice(drv Driver, instance vk.Instance, surface vk.Surface, required []string, log *slog.Logger) (*deviceCandidate, error) {
	gpus, ret := drv.EnumeratePhysicalDevices(instance)
	if err := newError(ErrDeviceSelection, "enumerate physical devices", ret); err != nil {
		return nil, err
	}
	for _, gpu := range gpus {
		cand, reason := checkDevice(drv, gpu, surface, required)
		props := drv.PhysicalDeviceProperties(gpu)
		name := vk.ToString(props.DeviceName[:])
		if cand == nil {
			log.Debug("skipping physical device", "device", name, "reason", reason)
			continue
		}
		log.Info("selected physical device", "device", name,
			"graphics_family", cand.families.graphics, "present_family", cand.families.present)
		return cand, nil
	}
	return nil, errorf(ErrNoSuitableDevice, "select device", "none of %d physical devices qualify", len(gpus))
}

func checkDevice(drv Driver, gpu vk.PhysicalDevice, surface vk.Surface, required []string) (*deviceCandidate, string) {
	families, ret := findQueueFamilies(drv, gpu, surface)
	if ret != vk.Success {
		return nil, "queue family query failed: " + vk.Error(ret).Error()
	}
	if !families.hasGraphics {
		return nil, "no graphics queue family"
	}
	if !families.hasPresent {
		return nil, "no present queue family"
	}
	exts, ret := deviceExtensions(drv, gpu, required, []string{extPortabilitySubset})
	if ret != vk.Success {
		return nil, "extension query failed: " + vk.Error(ret).Error()
	}
	if ok, missing := exts.HasRequired(); !ok {
		return nil, "missing device extensions " + joinNames(missing)
	}
	formats, ret := drv.SurfaceFormats(gpu, surface)
	if ret != vk.Success || len(formats) == 0 {
		return nil, "no surface formats"
	}
	modes, ret := drv.SurfacePresentModes(gpu, surface)
	if ret != vk.Success || len(modes) == 0 {
		return nil, "no present modes"
	}
	return &deviceCandidate{gpu: gpu, families: families, extensions: exts}, ""
}

// createDevice builds the logical device and fetches its queues.
func createDevice(drv Driver, cand *deviceCandidate, layers []string, log *slog.Logger) (*DeviceContext, error) {
	ctx := &DeviceContext{
		drv:        drv,
		gpu:        cand.gpu,
		families:   cand.families,
		properties: drv.PhysicalDeviceProperties(cand.gpu),
		memory:     drv.MemoryProperties(cand.gpu),
	}
	features := drv.PhysicalDeviceFeatures(cand.gpu)
	var enabled vk.PhysicalDeviceFeatures
	if features.SamplerAnisotropy.B() {
		enabled.SamplerAnisotropy = vk.True
		ctx.anisotropy = true
		ctx.maxAniso = ctx.properties.Limits.MaxSamplerAnisotropy
	}

	queueInfos := cand.families.createInfos()
	ctx.extensions = cand.extensions.GetExtensions()
	var device vk.Device
	ret := drv.CreateDevice(cand.gpu, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(ctx.extensions)),
		PpEnabledExtensionNames: ctx.extensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{enabled},
	}, &device)
	if err := newError(ErrResourceCreation, "create device", ret); err != nil {
		return nil, err
	}
	ctx.device = device
	ctx.graphicsQueue = drv.GetDeviceQueue(device, cand.families.graphics, 0)
	ctx.presentQueue = ctx.graphicsQueue
	if cand.families.separatePresent() {
		ctx.presentQueue = drv.GetDeviceQueue(device, cand.families.present, 0)
	}
	log.Debug("logical device created", "extensions", len(ctx.extensions), "separate_present", cand.families.separatePresent())
	return ctx, nil
}
