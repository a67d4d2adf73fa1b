package math

func NewMat4Identity() Mat4 {
	out := Mat4{}
	out.Data[0] = 1.0
	out.Data[5] = 1.0
	out.Data[10] = 1.0
	out.Data[15] = 1.0
	return out
}

// Mul returns mt * other, i.e. other is applied first.
func (mt Mat4) Mul(other Mat4) Mat4 {
	out := Mat4{}
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			sum := float32(0)
			for i := 0; i < 4; i++ {
				sum += mt.Data[i*4+row] * other.Data[col*4+i]
			}
			out.Data[col*4+row] = sum
		}
	}
	return out
}

func (mt Mat4) MulVec4(v Vec4) Vec4 {
	m := mt.Data
	return Vec4{
		X: m[0]*v.X + m[4]*v.Y + m[8]*v.Z + m[12]*v.W,
		Y: m[1]*v.X + m[5]*v.Y + m[9]*v.Z + m[13]*v.W,
		Z: m[2]*v.X + m[6]*v.Y + m[10]*v.Z + m[14]*v.W,
		W: m[3]*v.X + m[7]*v.Y + m[11]*v.Z + m[15]*v.W,
	}
}

func (mt Mat4) Transposed() Mat4 {
	out := Mat4{}
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			out.Data[row*4+col] = mt.Data[col*4+row]
		}
	}
	return out
}

// Column returns column i as a vector.
func (mt Mat4) Column(i int) Vec4 {
	return Vec4{X: mt.Data[i*4], Y: mt.Data[i*4+1], Z: mt.Data[i*4+2], W: mt.Data[i*4+3]}
}

func NewMat4Translation(position Vec3) Mat4 {
	out := NewMat4Identity()
	out.Data[12] = position.X
	out.Data[13] = position.Y
	out.Data[14] = position.Z
	return out
}

func NewMat4Scale(scale Vec3) Mat4 {
	out := NewMat4Identity()
	out.Data[0] = scale.X
	out.Data[5] = scale.Y
	out.Data[10] = scale.Z
	return out
}

// NewMat4RotationY rotates counter-clockwise around +Y when looking down the axis.
func NewMat4RotationY(angleRadians float32) Mat4 {
	out := NewMat4Identity()
	c := cos(angleRadians)
	s := sin(angleRadians)
	out.Data[0] = c
	out.Data[2] = -s
	out.Data[8] = s
	out.Data[10] = c
	return out
}

// NewMat4Perspective builds a right-handed projection with a [0,1] depth
// range and +Y down, matching Vulkan clip space.
func NewMat4Perspective(fovRadians, aspectRatio, nearClip, farClip float32) Mat4 {
	tanHalfFov := tan(fovRadians * 0.5)
	out := Mat4{}
	out.Data[0] = 1.0 / (aspectRatio * tanHalfFov)
	out.Data[5] = 1.0 / tanHalfFov
	out.Data[10] = farClip / (farClip - nearClip)
	out.Data[11] = 1.0
	out.Data[14] = -(farClip * nearClip) / (farClip - nearClip)
	return out
}

// NewMat4Orthographic maps the box to Vulkan clip space with depth in [0,1].
func NewMat4Orthographic(left, right, top, bottom, nearClip, farClip float32) Mat4 {
	out := NewMat4Identity()
	out.Data[0] = 2.0 / (right - left)
	out.Data[5] = 2.0 / (bottom - top)
	out.Data[10] = 1.0 / (farClip - nearClip)
	out.Data[12] = -(right + left) / (right - left)
	out.Data[13] = -(bottom + top) / (bottom - top)
	out.Data[14] = -nearClip / (farClip - nearClip)
	return out
}

// NewMat4TaitBryanYXZ returns translation * Ry * Rx * Rz * scale.
func NewMat4TaitBryanYXZ(translation, rotation, scale Vec3) Mat4 {
	c3 := cos(rotation.Z)
	s3 := sin(rotation.Z)
	c2 := cos(rotation.X)
	s2 := sin(rotation.X)
	c1 := cos(rotation.Y)
	s1 := sin(rotation.Y)

	return Mat4{Data: [16]float32{
		scale.X * (c1*c3 + s1*s2*s3), scale.X * (c2 * s3), scale.X * (c1*s2*s3 - c3*s1), 0,
		scale.Y * (c3*s1*s2 - c1*s3), scale.Y * (c2 * c3), scale.Y * (c1*c3*s2 + s1*s3), 0,
		scale.Z * (c2 * s1), scale.Z * (-s2), scale.Z * (c1 * c2), 0,
		translation.X, translation.Y, translation.Z, 1,
	}}
}

// NewMat4NormalYXZ is the inverse transpose of the rotation/scale part of
// NewMat4TaitBryanYXZ, padded to a Mat4.
func NewMat4NormalYXZ(rotation, scale Vec3) Mat4 {
	c3 := cos(rotation.Z)
	s3 := sin(rotation.Z)
	c2 := cos(rotation.X)
	s2 := sin(rotation.X)
	c1 := cos(rotation.Y)
	s1 := sin(rotation.Y)
	inv := Vec3{X: 1 / scale.X, Y: 1 / scale.Y, Z: 1 / scale.Z}

	return Mat4{Data: [16]float32{
		inv.X * (c1*c3 + s1*s2*s3), inv.X * (c2 * s3), inv.X * (c1*s2*s3 - c3*s1), 0,
		inv.Y * (c3*s1*s2 - c1*s3), inv.Y * (c2 * c3), inv.Y * (c1*c3*s2 + s1*s3), 0,
		inv.Z * (c2 * s1), inv.Z * (-s2), inv.Z * (c1 * c2), 0,
		0, 0, 0, 1,
	}}
}

// NewMat4ViewYXZ builds a view matrix for a camera at position with
// Tait-Bryan YXZ rotation, and its inverse.
func NewMat4ViewYXZ(position, rotation Vec3) (view, inverse Mat4) {
	c3 := cos(rotation.Z)
	s3 := sin(rotation.Z)
	c2 := cos(rotation.X)
	s2 := sin(rotation.X)
	c1 := cos(rotation.Y)
	s1 := sin(rotation.Y)
	u := Vec3{X: c1*c3 + s1*s2*s3, Y: c2 * s3, Z: c1*s2*s3 - c3*s1}
	v := Vec3{X: c3*s1*s2 - c1*s3, Y: c2 * c3, Z: c1*c3*s2 + s1*s3}
	w := Vec3{X: c2 * s1, Y: -s2, Z: c1 * c2}

	view = Mat4{Data: [16]float32{
		u.X, v.X, w.X, 0,
		u.Y, v.Y, w.Y, 0,
		u.Z, v.Z, w.Z, 0,
		-u.Dot(position), -v.Dot(position), -w.Dot(position), 1,
	}}
	inverse = Mat4{Data: [16]float32{
		u.X, u.Y, u.Z, 0,
		v.X, v.Y, v.Z, 0,
		w.X, w.Y, w.Z, 0,
		position.X, position.Y, position.Z, 1,
	}}
	return view, inverse
}
