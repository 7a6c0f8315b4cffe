package cacus

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/vulkan-go/vulkan"
)

// Vertex is the packed vertex record uploaded by UploadMesh. Field offsets are
// declared to the pipeline by VertexLayout, so the struct must stay free of
// padding.
type Vertex struct {
	Pos      mgl32.Vec3
	Color    mgl32.Vec3
	TexCoord mgl32.Vec2
}

// VertexLayout returns the binding and attribute descriptions matching Vertex:
// location 0 position, 1 color, 2 texture coordinate.
func VertexLayout() ([]vk.VertexInputBindingDescription, []vk.VertexInputAttributeDescription) {
	var v Vertex
	bindings := []vk.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    uint32(unsafe.Sizeof(v)),
		InputRate: vk.VertexInputRateVertex,
	}}
	attributes := []vk.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(v.Pos))},
		{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(v.Color))},
		{Location: 2, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: uint32(unsafe.Offsetof(v.TexCoord))},
	}
	return bindings, attributes
}

// Indices is an index list of a single width.
type Indices struct {
	typ   vk.IndexType
	count uint32
	data  []byte
}

func Indices16(idx []uint16) Indices {
	return Indices{typ: vk.IndexTypeUint16, count: uint32(len(idx)), data: append([]byte(nil), bytesOf(idx)...)}
}

func Indices32(idx []uint32) Indices {
	return Indices{typ: vk.IndexTypeUint32, count: uint32(len(idx)), data: append([]byte(nil), bytesOf(idx)...)}
}

func (i Indices) Count() uint32 { return i.count }

func (i Indices) Type() vk.IndexType { return i.typ }

func (i Indices) Bytes() []byte { return i.data }

// mesh holds the device local buffers of the uploaded geometry.
type mesh struct {
	vertices    *Buffer
	indices     *Buffer
	indexType   vk.IndexType
	indexCount  uint32
	vertexCount uint32
}

func (m *mesh) destroy() {
	if m == nil {
		return
	}
	m.indices.Destroy()
	m.vertices.Destroy()
}
