package cacus

import (
	"context"
	"log/slog"
	"runtime"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// CoreInstance is the Vulkan instance plus the optional debug report callback
// registered when validation is enabled.
type CoreInstance struct {
	drv      Driver
	handle   vk.Instance
	debug    vk.DebugReportCallback
	layers   []string
	enabled  []string
	teardown teardown
}

func createInstance(drv Driver, cfg Config, windowExtensions []string, log *slog.Logger) (*CoreInstance, error) {
	layers := cfg.layers()
	layerSet, err := validationLayers(drv, layers)
	if err != nil {
		return nil, err
	}

	required := append(append([]string{}, windowExtensions...), cfg.InstanceExtensions...)
	var wanted []string
	if cfg.Validation {
		wanted = append(wanted, extDebugReport)
	}
	if runtime.GOOS == "darwin" {
		wanted = append(wanted, extPortabilityEnumeration)
	}
	extSet, err := instanceExtensions(drv, required, wanted)
	if err != nil {
		return nil, err
	}
	if ok, missing := extSet.HasWanted(); !ok {
		log.Debug("optional instance extensions unavailable", "missing", missing)
	}
	enabled := extSet.GetExtensions()

	var flags vk.InstanceCreateFlags
	if containsName(enabled, extPortabilityEnumeration) {
		flags = vk.InstanceCreateFlags(instanceCreateEnumeratePortability)
	}

	enabledLayers := layerSet.GetExtensions()
	var instance vk.Instance
	ret := drv.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         uint32(DefaultAPIVersion),
			ApplicationVersion: uint32(DefaultAppVersion),
			PApplicationName:   safeString(cfg.AppName),
			PEngineName:        safeString(cfg.EngineName),
		},
		EnabledExtensionCount:   uint32(len(enabled)),
		PpEnabledExtensionNames: enabled,
		EnabledLayerCount:       uint32(len(enabledLayers)),
		PpEnabledLayerNames:     enabledLayers,
		Flags:                   flags,
	}, &instance)
	if ret == vk.ErrorExtensionNotPresent || ret == vk.ErrorLayerNotPresent {
		return nil, newError(ErrConfiguration, "create instance", ret)
	}
	if err := newError(ErrResourceCreation, "create instance", ret); err != nil {
		return nil, err
	}

	inst := &CoreInstance{drv: drv, handle: instance, layers: enabledLayers, enabled: enabled}
	inst.teardown.push("instance", func() { drv.DestroyInstance(instance) })
	log.Info("vulkan instance created", "extensions", len(enabled), "layers", len(enabledLayers))

	if cfg.Validation && containsName(enabled, extDebugReport) {
		var cb vk.DebugReportCallback
		ret := drv.CreateDebugReportCallback(instance, &vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: debugReportHandler(log),
		}, &cb)
		if err := newError(ErrResourceCreation, "create debug report callback", ret); err != nil {
			inst.Destroy()
			return nil, err
		}
		inst.debug = cb
		inst.teardown.push("debug report callback", func() { drv.DestroyDebugReportCallback(instance, cb) })
		log.Debug("debug report callback enabled")
	}
	return inst, nil
}

func (i *CoreInstance) Handle() vk.Instance { return i.handle }

func (i *CoreInstance) Destroy() {
	i.teardown.run()
	i.handle = nil
}

//Routes validation layer reports to the structured logger at the matching level
func debugReportHandler(log *slog.Logger) vk.DebugReportCallbackFunc {
	return func(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
		object uint64, location uint, messageCode int32, pLayerPrefix string,
		pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

		level := slog.LevelInfo
		switch {
		case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
			level = slog.LevelError
		case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0,
			flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
			level = slog.LevelWarn
		case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
			level = slog.LevelDebug
		}
		log.Log(context.Background(), level, pMessage, "layer", pLayerPrefix, "code", messageCode)
		return vk.Bool32(vk.False)
	}
}
