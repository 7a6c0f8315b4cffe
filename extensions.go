package cacus

import (
	vk "github.com/vulkan-go/vulkan"
)

const (
	extSwapchain              = "VK_KHR_swapchain"
	extDebugReport            = "VK_EXT_debug_report"
	extPortabilityEnumeration = "VK_KHR_portability_enumeration"
	extPortabilitySubset      = "VK_KHR_portability_subset"

	// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
	instanceCreateEnumeratePortability = 0x00000001
)

type Extensions interface {
	HasRequired() (bool, []string)
	HasWanted() (bool, []string)
	GetExtensions() []string
}

var _ Extensions = (*extensionSet)(nil)

//Required names must all be available, wanted names are enabled only when present
type extensionSet struct {
	wanted   []string
	required []string
	actual   []string
}

func newExtensionSet(actual, required, wanted []string) *extensionSet {
	return &extensionSet{wanted: wanted, required: required, actual: actual}
}

func (e *extensionSet) HasRequired() (bool, []string) {
	missing := missingNames(e.actual, e.required)
	return len(missing) == 0, missing
}

func (e *extensionSet) HasWanted() (bool, []string) {
	missing := missingNames(e.actual, e.wanted)
	return len(missing) == 0, missing
}

// GetExtensions returns the null terminated names to enable: every required
// name plus the wanted names that are actually available, without duplicates.
func (e *extensionSet) GetExtensions() []string {
	var out []string
	seen := make(map[string]bool, len(e.required)+len(e.wanted))
	add := func(name string) {
		name = trimNull(name)
		if seen[name] {
			return
		}
		seen[name] = true
		out = append(out, safeString(name))
	}
	for _, req := range e.required {
		add(req)
	}
	for _, want := range e.wanted {
		if containsName(e.actual, want) {
			add(want)
		}
	}
	return out
}

func instanceExtensions(drv Driver, required, wanted []string) (*extensionSet, error) {
	actual, ret := drv.InstanceExtensions()
	if err := newError(ErrConfiguration, "enumerate instance extensions", ret); err != nil {
		return nil, err
	}
	set := newExtensionSet(actual, required, wanted)
	if ok, missing := set.HasRequired(); !ok {
		return nil, errorf(ErrConfiguration, "instance extensions", "unsupported instance extensions %v", missing)
	}
	return set, nil
}

func validationLayers(drv Driver, required []string) (*extensionSet, error) {
	if len(required) == 0 {
		return newExtensionSet(nil, nil, nil), nil
	}
	actual, ret := drv.InstanceLayers()
	if err := newError(ErrConfiguration, "enumerate instance layers", ret); err != nil {
		return nil, err
	}
	set := newExtensionSet(actual, required, nil)
	if ok, missing := set.HasRequired(); !ok {
		return nil, errorf(ErrConfiguration, "validation layers", "unsupported validation layers %v", missing)
	}
	return set, nil
}

func deviceExtensions(drv Driver, gpu vk.PhysicalDevice, required, wanted []string) (*extensionSet, vk.Result) {
	actual, ret := drv.DeviceExtensions(gpu)
	if ret != vk.Success {
		return nil, ret
	}
	return newExtensionSet(actual, required, wanted), vk.Success
}
