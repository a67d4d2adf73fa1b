package scene

import "github.com/spaghettifunk/lumen/engine/math"

type Camera struct {
	projection  math.Mat4
	view        math.Mat4
	inverseView math.Mat4
}

func NewCamera() *Camera {
	return &Camera{
		projection:  math.NewMat4Identity(),
		view:        math.NewMat4Identity(),
		inverseView: math.NewMat4Identity(),
	}
}

func (c *Camera) SetPerspectiveProjection(fovy, aspect, near, far float32) {
	c.projection = math.NewMat4Perspective(fovy, aspect, near, far)
}

func (c *Camera) SetOrthographicProjection(left, right, top, bottom, near, far float32) {
	c.projection = math.NewMat4Orthographic(left, right, top, bottom, near, far)
}

// SetViewYXZ places the camera at position looking along the rotated +Z axis.
func (c *Camera) SetViewYXZ(position, rotation math.Vec3) {
	c.view, c.inverseView = math.NewMat4ViewYXZ(position, rotation)
}

func (c *Camera) Projection() math.Mat4 {
	return c.projection
}

func (c *Camera) View() math.Mat4 {
	return c.view
}

func (c *Camera) InverseView() math.Mat4 {
	return c.inverseView
}

func (c *Camera) Position() math.Vec3 {
	return c.inverseView.Column(3).ToVec3()
}
