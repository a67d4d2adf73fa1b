package scene

import (
	"testing"

	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/hal/haltest"
)

func TestEntityIDsAreUnique(t *testing.T) {
	m := Map{}
	for i := 0; i < 100; i++ {
		m.Add(NewEntity())
	}
	if len(m) != 100 {
		t.Errorf("map holds %d entities, want 100", len(m))
	}
	for id, e := range m {
		if e.ID() != id {
			t.Errorf("entity %s stored under %s", e.ID(), id)
		}
	}
}

func TestNewPointLight(t *testing.T) {
	e := NewPointLight(2.5, 0.1, math.NewVec3(1, 0, 0))
	if e.PointLight == nil || e.PointLight.Intensity != 2.5 {
		t.Fatalf("PointLight = %+v", e.PointLight)
	}
	if e.Transform.Scale != math.NewVec3(0.1, 1, 1) {
		t.Errorf("Scale = %+v, want radius in x", e.Transform.Scale)
	}

	m := Map{}
	m.Add(e)
	m.Add(NewEntity())
	if lights := m.PointLights(); len(lights) != 1 || lights[0] != e {
		t.Errorf("PointLights() = %v", lights)
	}
}

func TestCameraPosition(t *testing.T) {
	c := NewCamera()
	pos := math.NewVec3(0, -0.5, -3)
	c.SetViewYXZ(pos, math.NewVec3(0.2, 0.4, 0))
	if !c.Position().Compare(pos, 1e-5) {
		t.Errorf("Position() = %+v, want %+v", c.Position(), pos)
	}
}

func TestModelUpload(t *testing.T) {
	dev := haltest.New()
	vertices, indices := CubeMesh()
	if len(vertices) != 24 || len(indices) != 36 {
		t.Fatalf("cube has %d vertices and %d indices", len(vertices), len(indices))
	}

	m, err := NewModel(dev, vertices, indices)
	if err != nil {
		t.Fatalf("NewModel() error = %v", err)
	}
	if got := len(dev.BufferData(m.vertexBuffer)); got != len(vertices)*int(VertexStride) {
		t.Errorf("vertex buffer is %d bytes", got)
	}
	if dev.Live(haltest.KindBuffer) != 2 {
		t.Errorf("live buffers = %d, want 2", dev.Live(haltest.KindBuffer))
	}

	cmds, _ := dev.AllocateCommandBuffers(1)
	_ = dev.BeginCommandBuffer(cmds[0])
	m.Bind(dev, cmds[0])
	m.Draw(dev, cmds[0])
	ops := dev.Ops(cmds[0])
	if len(ops) != 3 || ops[2] != "draw-indexed" {
		t.Errorf("recorded %v", ops)
	}
	_ = dev.EndCommandBuffer(cmds[0])
	dev.FreeCommandBuffers(cmds)

	m.Destroy(dev)
	if leaks := dev.Leaks(); len(leaks) != 0 {
		t.Errorf("leaked resources: %v", leaks)
	}
}

func TestModelRejectsDegenerateMesh(t *testing.T) {
	dev := haltest.New()
	if _, err := NewModel(dev, make([]Vertex3D, 2), nil); err == nil {
		t.Error("NewModel() accepted two vertices")
	}
}
