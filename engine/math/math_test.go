package math

import "testing"

func TestClamp(t *testing.T) {
	tests := []struct {
		v, lo, hi, want uint32
	}{
		{5, 1, 10, 5},
		{0, 1, 10, 1},
		{0xFFFFFFFF, 1, 10, 10},
	}
	for _, tt := range tests {
		if got := Clamp(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("Clamp(%d, %d, %d) = %d, want %d", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
	if got := Clamp(1.5, 0.0, 1.0); got != 1.0 {
		t.Errorf("float clamp = %f", got)
	}
}

func TestMat4MulTranslation(t *testing.T) {
	a := NewMat4Translation(NewVec3(1, 2, 3))
	b := NewMat4Translation(NewVec3(4, 5, 6))
	got := a.Mul(b).MulVec4(NewVec4(0, 0, 0, 1)).ToVec3()
	if !got.Compare(NewVec3(5, 7, 9), 1e-6) {
		t.Errorf("translated origin = %+v", got)
	}

	id := NewMat4Identity()
	if id.Mul(a) != a || a.Mul(id) != a {
		t.Error("identity is not neutral")
	}
}

func TestMat4MulOrder(t *testing.T) {
	s := NewMat4Scale(NewVec3(2, 2, 2))
	tr := NewMat4Translation(NewVec3(1, 0, 0))
	// scale first, then translate
	got := tr.Mul(s).MulVec4(NewVec4(1, 0, 0, 1)).ToVec3()
	if !got.Compare(NewVec3(3, 0, 0), 1e-6) {
		t.Errorf("tr*s applied to x = %+v, want (3,0,0)", got)
	}
}

func TestRotationY(t *testing.T) {
	r := NewMat4RotationY(PI / 2)
	got := r.MulVec4(NewVec4(1, 0, 0, 1)).ToVec3()
	if !got.Compare(NewVec3(0, 0, -1), 1e-5) {
		t.Errorf("rotated +X = %+v, want (0,0,-1)", got)
	}
}

func TestTaitBryanMatchesComposition(t *testing.T) {
	translation := NewVec3(1, 2, 3)
	scale := NewVec3(2, 3, 4)
	m := NewMat4TaitBryanYXZ(translation, NewVec3(0, PI/2, 0), scale)
	want := NewMat4Translation(translation).Mul(NewMat4RotationY(PI / 2)).Mul(NewMat4Scale(scale))
	for i := range m.Data {
		if abs(m.Data[i]-want.Data[i]) > 1e-5 {
			t.Fatalf("element %d = %f, want %f", i, m.Data[i], want.Data[i])
		}
	}
}

func TestPerspectiveDepthRange(t *testing.T) {
	p := NewMat4Perspective(DegToRad(50), 1.5, 0.1, 100)
	near := p.MulVec4(NewVec4(0, 0, 0.1, 1))
	far := p.MulVec4(NewVec4(0, 0, 100, 1))
	if d := near.Z / near.W; abs(d) > 1e-5 {
		t.Errorf("near depth = %f, want 0", d)
	}
	if d := far.Z / far.W; abs(d-1) > 1e-5 {
		t.Errorf("far depth = %f, want 1", d)
	}
}

func TestVec3(t *testing.T) {
	x := NewVec3(1, 0, 0)
	y := NewVec3(0, 1, 0)
	if got := x.Cross(y); !got.Compare(NewVec3(0, 0, 1), 0) {
		t.Errorf("x cross y = %+v", got)
	}
	if got := NewVec3(3, 4, 0).Length(); got != 5 {
		t.Errorf("length = %f", got)
	}
	if got := NewVec3Zero().Normalized(); got != NewVec3Zero() {
		t.Errorf("normalized zero = %+v", got)
	}
}

func TestViewInverse(t *testing.T) {
	position := NewVec3(1, -2, 3)
	rotation := NewVec3(0.3, -1.1, 0.2)
	view, inverse := NewMat4ViewYXZ(position, rotation)

	p := NewVec4(4, 5, 6, 1)
	back := inverse.MulVec4(view.MulVec4(p)).ToVec3()
	if !back.Compare(p.ToVec3(), 1e-4) {
		t.Errorf("inverse(view(p)) = %+v, want %+v", back, p)
	}
	if eye := view.MulVec4(position.ToVec4(1)).ToVec3(); !eye.Compare(NewVec3Zero(), 1e-5) {
		t.Errorf("camera position in view space = %+v, want origin", eye)
	}
}
