// Package scene holds the entities draw systems iterate over.
package scene

import (
	"github.com/google/uuid"

	"github.com/spaghettifunk/lumen/engine/math"
)

// Transform is translation * Ry * Rx * Rz * scale.
type Transform struct {
	Translation math.Vec3
	Scale       math.Vec3
	// Rotation in radians, applied Y, then X, then Z.
	Rotation math.Vec3
}

func NewTransform() Transform {
	return Transform{Scale: math.NewVec3One()}
}

func (t Transform) Mat4() math.Mat4 {
	return math.NewMat4TaitBryanYXZ(t.Translation, t.Rotation, t.Scale)
}

func (t Transform) NormalMatrix() math.Mat4 {
	return math.NewMat4NormalYXZ(t.Rotation, t.Scale)
}

type PointLight struct {
	Intensity float32
}

type Entity struct {
	id uuid.UUID

	Color      math.Vec3
	Transform  Transform
	PointLight *PointLight
	Model      *Model
}

// Map indexes entities by id. Iteration order is unspecified.
type Map map[uuid.UUID]*Entity

func NewEntity() *Entity {
	return &Entity{
		id:        uuid.New(),
		Transform: NewTransform(),
	}
}

// NewPointLight returns an entity lit with intensity whose billboard radius
// is stored in the x scale.
func NewPointLight(intensity, radius float32, color math.Vec3) *Entity {
	e := NewEntity()
	e.Color = color
	e.Transform.Scale.X = radius
	e.PointLight = &PointLight{Intensity: intensity}
	return e
}

func (e *Entity) ID() uuid.UUID {
	return e.id
}

func (m Map) Add(e *Entity) {
	m[e.id] = e
}

// PointLights returns the entities carrying a point light.
func (m Map) PointLights() []*Entity {
	out := make([]*Entity, 0)
	for _, e := range m {
		if e.PointLight != nil {
			out = append(out, e)
		}
	}
	return out
}
