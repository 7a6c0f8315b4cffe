package cacus

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// UniformBufferObject is the per image uniform block at binding 0.
//
//	layout(binding = 0) uniform UniformBufferObject {
//	    mat4 model;
//	    mat4 view;
//	    mat4 proj;
//	} ubo;
type UniformBufferObject struct {
	Model mgl32.Mat4
	View  mgl32.Mat4
	Proj  mgl32.Mat4
}

const uniformBufferSize = int(unsafe.Sizeof(UniformBufferObject{}))

func (u *UniformBufferObject) bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(u)), uniformBufferSize)
}

func identityTransform() UniformBufferObject {
	return UniformBufferObject{Model: mgl32.Ident4(), View: mgl32.Ident4(), Proj: mgl32.Ident4()}
}

// VulkanProjection converts an OpenGL style projection matrix to Vulkan style projection matrix.
// Vulkan has a topLeft clipSpace with [0, 1] depth range instead of [-1, 1].
//
// mgl32 outputs projection matrices in GL style clipSpace,
// perform a simple fixup step to change the projection to Vulkan style.
func VulkanProjection(proj mgl32.Mat4) mgl32.Mat4 {
	// Flip Y in clipspace. X = -1, Y = -1 is topLeft in Vulkan.
	fix := mgl32.Scale3D(1, -1, 1)
	// Z depth is [0, 1] range instead of [-1, 1].
	fix = fix.Mul4(mgl32.Scale3D(1, 1, 0.5))
	fix = mgl32.Translate3D(0, 0, 0.5).Mul4(fix)
	return fix.Mul4(proj)
}

// PerspectiveVK returns a Vulkan ready perspective projection. fovy is in degrees.
func PerspectiveVK(fovy, aspect, near, far float32) mgl32.Mat4 {
	return VulkanProjection(mgl32.Perspective(mgl32.DegToRad(fovy), aspect, near, far))
}
