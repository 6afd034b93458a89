package vulkan

import (
	"encoding/binary"
	"math"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kiln/engine/renderer/metadata"
)

// Push constant space guaranteed by every implementation.
const MAX_PUSH_CONSTANT_SIZE = 128

// Each constants binding occupies one vec4 slot of the push constant block.
const PUSH_CONSTANT_SLOT_SIZE = 16

/**
 * @brief Represents a single shader stage.
 */
type VulkanShaderStage struct {
	/** @brief The internal shader module Handle. */
	Handle vk.ShaderModule
	/** @brief The pipeline shader stage creation info. */
	ShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
}

/**
 * @brief Backend data attached to a shader program.
 */
type VulkanShader struct {
	Stages []VulkanShaderStage
	/** @brief Constants uploaded as push constants before each draw. */
	Constants     []byte
	ConstantsSize uint32
	/** @brief Every parameter set so far, by binding name. */
	Parameters map[string]metadata.ShaderParameter
}

func shaderStageFlag(stage metadata.ShaderStage) (vk.ShaderStageFlagBits, bool) {
	switch stage {
	case metadata.ShaderStageVertex:
		return vk.ShaderStageVertexBit, true
	case metadata.ShaderStageGeometry:
		return vk.ShaderStageGeometryBit, true
	case metadata.ShaderStageFragment:
		return vk.ShaderStageFragmentBit, true
	}
	return 0, false
}

func NewShaderModule(context *VulkanContext, config metadata.ShaderStageConfig) (VulkanShaderStage, vk.Result) {
	var stage VulkanShaderStage
	flag, ok := shaderStageFlag(config.Stage)
	if !ok || len(config.Code) == 0 || len(config.Code)%4 != 0 {
		return stage, vk.ErrorInitializationFailed
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(config.Code)),
		PCode:    spirvWords(config.Code),
	}

	res := lockPool.SafeCall(ShaderManagement, func() vk.Result {
		var module vk.ShaderModule
		res := vk.CreateShaderModule(context.Device.LogicalDevice, &createInfo, context.Allocator, &module)
		stage.Handle = module
		return res
	})
	if res != vk.Success {
		return stage, res
	}

	entry := config.Entry
	if entry == "" {
		entry = "main"
	}
	stage.ShaderStageCreateInfo = vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  flag,
		Module: stage.Handle,
		PName:  VulkanSafeString(entry),
	}
	return stage, vk.Success
}

func NewVulkanShader(context *VulkanContext, program *metadata.ShaderProgram) (*VulkanShader, metadata.Result) {
	shader := &VulkanShader{
		Parameters: make(map[string]metadata.ShaderParameter),
	}
	for _, b := range program.Bindings {
		if b.Kind != metadata.ResourceBindingConstants {
			continue
		}
		end := (b.Slot + 1) * PUSH_CONSTANT_SLOT_SIZE
		if end > MAX_PUSH_CONSTANT_SIZE {
			context.Logger.Error("constants binding exceeds the push constant block", "program", program.Name, "binding", b.Name, "slot", b.Slot)
			return nil, metadata.ResultErrorInvalidArgument
		}
		if end > shader.ConstantsSize {
			shader.ConstantsSize = end
		}
	}
	shader.Constants = make([]byte, shader.ConstantsSize)

	for _, cfg := range program.Stages {
		stage, res := NewShaderModule(context, cfg)
		if res != vk.Success {
			shader.Destroy(context)
			context.Logger.Error("failed to create shader module", "program", program.Name, "result", VulkanResultString(res, true))
			return nil, toResult(res)
		}
		shader.Stages = append(shader.Stages, stage)
	}
	if len(shader.Stages) == 0 {
		return nil, metadata.ResultErrorInvalidArgument
	}
	return shader, metadata.ResultSuccess
}

// SetParameter records param and packs constants into the push constant block.
func (s *VulkanShader) SetParameter(binding metadata.ResourceBinding, param metadata.ShaderParameter) {
	s.Parameters[param.Name] = param
	if binding.Kind != metadata.ResourceBindingConstants {
		return
	}
	dst := s.Constants[binding.Slot*PUSH_CONSTANT_SLOT_SIZE:]
	switch param.Type {
	case metadata.ShaderParameterFloat:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(param.Float))
	case metadata.ShaderParameterVector4:
		for i, v := range param.Vector4 {
			binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
		}
	}
}

func (s *VulkanShader) StageInfos() []vk.PipelineShaderStageCreateInfo {
	infos := make([]vk.PipelineShaderStageCreateInfo, len(s.Stages))
	for i := range s.Stages {
		infos[i] = s.Stages[i].ShaderStageCreateInfo
	}
	return infos
}

func (s *VulkanShader) Destroy(context *VulkanContext) {
	lockPool.SafeCall(ShaderManagement, func() vk.Result {
		for i := range s.Stages {
			if s.Stages[i].Handle != vk.NullShaderModule {
				vk.DestroyShaderModule(context.Device.LogicalDevice, s.Stages[i].Handle, context.Allocator)
				s.Stages[i].Handle = vk.NullShaderModule
			}
		}
		return vk.Success
	})
	s.Stages = nil
}
