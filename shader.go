package cacus

import (
	"encoding/binary"

	vk "github.com/vulkan-go/vulkan"
)

// ShaderStage names a programmable stage of the graphics pipeline.
type ShaderStage int

const (
	VertexStage ShaderStage = iota
	FragmentStage
)

func (s ShaderStage) flag() vk.ShaderStageFlagBits {
	if s == FragmentStage {
		return vk.ShaderStageFragmentBit
	}
	return vk.ShaderStageVertexBit
}

func (s ShaderStage) String() string {
	if s == FragmentStage {
		return "fragment"
	}
	return "vertex"
}

// spirvWords checks that code is a non-empty whole number of 32-bit words
// and returns it as words. Vulkan expects uint32 code.
func spirvWords(code []byte) ([]uint32, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, errorf(ErrPipelineCreation, "load shader", "SPIR-V size %d is not a nonzero multiple of 4", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words, nil
}

func createShaderModule(drv Driver, device vk.Device, stage ShaderStage, code []byte) (vk.ShaderModule, error) {
	words, err := spirvWords(code)
	if err != nil {
		return vk.NullShaderModule, err
	}
	var module vk.ShaderModule
	ret := drv.CreateShaderModule(device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    words,
	}, &module)
	if err := newError(ErrPipelineCreation, "create "+stage.String()+" shader module", ret); err != nil {
		return vk.NullShaderModule, err
	}
	return module, nil
}
