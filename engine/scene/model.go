package scene

import (
	"fmt"
	"unsafe"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/hal"
)

/**
 * @brief Vertex layout shared by the mesh shaders.
 */
type Vertex3D struct {
	Position math.Vec3
	Color    math.Vec3
	Normal   math.Vec3
	UV       math.Vec2
}

// VertexStride is the size of Vertex3D in bytes.
const VertexStride = uint32(unsafe.Sizeof(Vertex3D{}))

// VertexAttributes describes Vertex3D for pipeline creation.
func VertexAttributes() []hal.VertexAttribute {
	return []hal.VertexAttribute{
		{Location: 0, Components: 3, Offset: uint32(unsafe.Offsetof(Vertex3D{}.Position))},
		{Location: 1, Components: 3, Offset: uint32(unsafe.Offsetof(Vertex3D{}.Color))},
		{Location: 2, Components: 3, Offset: uint32(unsafe.Offsetof(Vertex3D{}.Normal))},
		{Location: 3, Components: 2, Offset: uint32(unsafe.Offsetof(Vertex3D{}.UV))},
	}
}

/**
 * @brief A mesh uploaded to device buffers. IndexCount is zero for
 * non-indexed meshes.
 */
type Model struct {
	vertexBuffer hal.Buffer
	indexBuffer  hal.Buffer
	VertexCount  uint32
	IndexCount   uint32
}

func NewModel(device hal.Resources, vertices []Vertex3D, indices []uint32) (*Model, error) {
	if len(vertices) < 3 {
		err := fmt.Errorf("model needs at least 3 vertices, got %d", len(vertices))
		core.LogError(err.Error())
		return nil, err
	}
	m := &Model{VertexCount: uint32(len(vertices)), IndexCount: uint32(len(indices))}

	data := hal.SliceBytes(vertices)
	var err error
	if m.vertexBuffer, err = device.CreateBuffer(uint64(len(data)), hal.BufferUsageVertex); err != nil {
		err = fmt.Errorf("failed to create vertex buffer: %w", err)
		core.LogError(err.Error())
		return nil, err
	}
	if err := device.WriteBuffer(m.vertexBuffer, 0, data); err != nil {
		m.Destroy(device)
		return nil, fmt.Errorf("failed to upload vertices: %w", err)
	}
	if len(indices) == 0 {
		return m, nil
	}

	data = hal.SliceBytes(indices)
	if m.indexBuffer, err = device.CreateBuffer(uint64(len(data)), hal.BufferUsageIndex); err != nil {
		m.Destroy(device)
		err = fmt.Errorf("failed to create index buffer: %w", err)
		core.LogError(err.Error())
		return nil, err
	}
	if err := device.WriteBuffer(m.indexBuffer, 0, data); err != nil {
		m.Destroy(device)
		return nil, fmt.Errorf("failed to upload indices: %w", err)
	}
	return m, nil
}

func (m *Model) Bind(rec hal.Recorder, cmd hal.CommandBuffer) {
	rec.CmdBindVertexBuffer(cmd, m.vertexBuffer, 0)
	if m.IndexCount > 0 {
		rec.CmdBindIndexBuffer(cmd, m.indexBuffer, 0)
	}
}

func (m *Model) Draw(rec hal.Recorder, cmd hal.CommandBuffer) {
	if m.IndexCount > 0 {
		rec.CmdDrawIndexed(cmd, m.IndexCount, 1, 0, 0, 0)
		return
	}
	rec.CmdDraw(cmd, m.VertexCount, 1, 0, 0)
}

func (m *Model) Destroy(device hal.Resources) {
	if m.indexBuffer != 0 {
		device.DestroyBuffer(m.indexBuffer)
		m.indexBuffer = 0
	}
	if m.vertexBuffer != 0 {
		device.DestroyBuffer(m.vertexBuffer)
		m.vertexBuffer = 0
	}
}

// CubeMesh returns a unit cube centred on the origin with one colour per face.
func CubeMesh() ([]Vertex3D, []uint32) {
	faces := []struct {
		normal, u, v math.Vec3
		color        math.Vec3
	}{
		{math.NewVec3(-1, 0, 0), math.NewVec3(0, 0, 1), math.NewVec3(0, 1, 0), math.NewVec3(0.9, 0.9, 0.9)},
		{math.NewVec3(1, 0, 0), math.NewVec3(0, 0, -1), math.NewVec3(0, 1, 0), math.NewVec3(0.8, 0.8, 0.1)},
		{math.NewVec3(0, -1, 0), math.NewVec3(1, 0, 0), math.NewVec3(0, 0, 1), math.NewVec3(0.9, 0.6, 0.1)},
		{math.NewVec3(0, 1, 0), math.NewVec3(1, 0, 0), math.NewVec3(0, 0, -1), math.NewVec3(0.8, 0.1, 0.1)},
		{math.NewVec3(0, 0, -1), math.NewVec3(-1, 0, 0), math.NewVec3(0, 1, 0), math.NewVec3(0.1, 0.1, 0.8)},
		{math.NewVec3(0, 0, 1), math.NewVec3(1, 0, 0), math.NewVec3(0, 1, 0), math.NewVec3(0.1, 0.8, 0.1)},
	}
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

	vertices := make([]Vertex3D, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, f := range faces {
		base := uint32(len(vertices))
		for _, c := range corners {
			p := f.normal.Add(f.u.MulScalar(c[0])).Add(f.v.MulScalar(c[1])).MulScalar(0.5)
			vertices = append(vertices, Vertex3D{
				Position: p,
				Color:    f.color,
				Normal:   f.normal,
				UV:       math.Vec2{X: (c[0] + 1) * 0.5, Y: (c[1] + 1) * 0.5},
			})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return vertices, indices
}
