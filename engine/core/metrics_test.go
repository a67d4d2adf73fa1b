package core

import (
	"errors"
	"math"
	"testing"
)

func TestFrameMetricsAverage(t *testing.T) {
	m := NewFrameMetrics()
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(0.016)
	}
	if math.Abs(m.FrameTime()-16) > 1e-9 {
		t.Errorf("frame time = %f, want 16", m.FrameTime())
	}
	// 30 frames are 480ms, not enough for an FPS sample
	if m.FPS() != 0 {
		t.Errorf("fps = %f before one second elapsed", m.FPS())
	}
	for i := 0; i < int(AVG_COUNT)*2; i++ {
		m.Update(0.016)
	}
	if m.FPS() < 60 || m.FPS() > 64 {
		t.Errorf("fps = %f, want about 62", m.FPS())
	}
}

func TestAssert(t *testing.T) {
	defer SetFatalAssertions(true)

	func() {
		defer func() {
			r := recover()
			err, ok := r.(error)
			if !ok || !errors.Is(err, ErrAssertion) {
				t.Errorf("recovered %v, want ErrAssertion", r)
			}
		}()
		Assert(false, "value %d", 1)
	}()

	SetFatalAssertions(false)
	Assert(false, "logged only")
	Assert(true, "never fires")
}
