package renderer

import (
	"errors"
	"reflect"
	"testing"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/hal"
	"github.com/spaghettifunk/lumen/engine/renderer/hal/haltest"
	"github.com/spaghettifunk/lumen/engine/renderer/offscreen"
)

type fakeWindow struct {
	extent  hal.Extent2D
	resized bool
	closed  bool
	waits   int
	onWait  func(w *fakeWindow)
}

func (w *fakeWindow) FramebufferExtent() hal.Extent2D { return w.extent }
func (w *fakeWindow) WasResized() bool                { return w.resized }
func (w *fakeWindow) ClearResizedFlag()               { w.resized = false }
func (w *fakeWindow) ShouldClose() bool               { return w.closed }

func (w *fakeWindow) WaitEvents() {
	w.waits++
	if w.onWait != nil {
		w.onWait(w)
	}
}

// growAfter makes the window non-zero once it has been waited on n times.
func growAfter(n int, extent hal.Extent2D) func(*fakeWindow) {
	return func(w *fakeWindow) {
		if w.waits >= n {
			w.extent = extent
		}
	}
}

// closeAfter closes the window once it has been waited on n times.
func closeAfter(n int) func(*fakeWindow) {
	return func(w *fakeWindow) {
		if w.waits >= n {
			w.closed = true
		}
	}
}

func newRenderer(t *testing.T) (*Renderer, *haltest.Device, *fakeWindow) {
	t.Helper()
	dev := haltest.New()
	win := &fakeWindow{extent: hal.Extent2D{Width: 800, Height: 600}}
	r, err := New(dev, win, core.DefaultConfig().Renderer)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r, dev, win
}

func nonFatalAssertions(t *testing.T) {
	t.Helper()
	core.SetFatalAssertions(false)
	t.Cleanup(func() { core.SetFatalAssertions(true) })
}

func destroy(t *testing.T, r *Renderer, dev *haltest.Device) {
	t.Helper()
	r.Destroy()
	if leaks := dev.Leaks(); len(leaks) != 0 {
		t.Errorf("leaked resources: %v", leaks)
	}
	if len(dev.Violations) != 0 {
		t.Errorf("device violations: %v", dev.Violations)
	}
}

// drawFrame runs a frame with both passes and returns EndFrame's result.
func drawFrame(t *testing.T, r *Renderer) bool {
	t.Helper()
	cmd, err := r.BeginFrame()
	if err != nil {
		t.Fatalf("BeginFrame() error = %v", err)
	}
	if cmd == hal.NullCommandBuffer {
		return false
	}
	steps := []struct {
		name string
		fn   func(hal.CommandBuffer) error
	}{
		{"BeginOffscreenRendering", r.BeginOffscreenRendering},
		{"EndOffscreenRendering", r.EndOffscreenRendering},
		{"TransitionOffscreenForSampling", r.TransitionOffscreenForSampling},
		{"BeginSwapchainRendering", r.BeginSwapchainRendering},
		{"EndSwapchainRendering", r.EndSwapchainRendering},
	}
	for _, s := range steps {
		if err := s.fn(cmd); err != nil {
			t.Fatalf("%s() error = %v", s.name, err)
		}
	}
	ok, err := r.EndFrame()
	if err != nil {
		t.Fatalf("EndFrame() error = %v", err)
	}
	return ok
}

func TestNewWaitsForWindowArea(t *testing.T) {
	dev := haltest.New()
	win := &fakeWindow{onWait: growAfter(2, hal.Extent2D{Width: 640, Height: 480})}
	r, err := New(dev, win, core.DefaultConfig().Renderer)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if win.waits != 2 {
		t.Errorf("WaitEvents called %d times, want 2", win.waits)
	}
	if r.Swapchain().Extent() != (hal.Extent2D{Width: 800, Height: 600}) {
		t.Errorf("swapchain extent = %v, want surface extent", r.Swapchain().Extent())
	}
	destroy(t, r, dev)
}

func TestNewGivesUpWhenClosedWhileMinimized(t *testing.T) {
	dev := haltest.New()
	win := &fakeWindow{onWait: closeAfter(2)}
	if _, err := New(dev, win, core.DefaultConfig().Renderer); !errors.Is(err, core.ErrWindowClosed) {
		t.Fatalf("New() error = %v, want ErrWindowClosed", err)
	}
	if win.waits != 2 {
		t.Errorf("WaitEvents called %d times, want 2", win.waits)
	}
	if leaks := dev.Leaks(); len(leaks) != 0 {
		t.Errorf("leaked resources: %v", leaks)
	}
}

func TestNewRejectsUnknownOffscreenFormat(t *testing.T) {
	dev := haltest.New()
	config := core.DefaultConfig().Renderer
	config.OffscreenFormat = "r5g6b5"
	if _, err := New(dev, &fakeWindow{extent: hal.Extent2D{Width: 1, Height: 1}}, config); !errors.Is(err, core.ErrConfig) {
		t.Errorf("New() error = %v, want ErrConfig", err)
	}
	if leaks := dev.Leaks(); len(leaks) != 0 {
		t.Errorf("leaked resources: %v", leaks)
	}
}

func TestFullFrame(t *testing.T) {
	r, dev, _ := newRenderer(t)

	if !drawFrame(t, r) {
		t.Fatalf("EndFrame() = false")
	}
	if r.State() != FrameIdle || r.IsFrameInProgress() {
		t.Errorf("State() = %s after EndFrame", r.State())
	}
	if r.Offscreen().Layout() != offscreen.LayoutShaderReadOnly {
		t.Errorf("offscreen layout = %s", r.Offscreen().Layout())
	}
	if len(dev.Submits) != 1 || len(dev.Presents) != 1 {
		t.Errorf("submits = %d, presents = %d", len(dev.Submits), len(dev.Presents))
	}
	if r.OffscreenDescriptorSet() == 0 {
		t.Errorf("no offscreen descriptor set")
	}

	destroy(t, r, dev)
}

func TestSwapchainPassClearsWithConfiguredColour(t *testing.T) {
	r, dev, _ := newRenderer(t)
	clear := [4]float32{0.25, 0.5, 0.75, 1}
	r.SetClearColor(clear)

	cmd, _ := r.BeginFrame()
	_ = r.BeginSwapchainRendering(cmd)
	recorded := dev.Recorded(cmd)
	var rendering *hal.RenderingInfo
	for _, c := range recorded {
		if c.Op == "begin-rendering" {
			rendering = c.Rendering
		}
	}
	if rendering == nil {
		t.Fatalf("no rendering recorded: %v", dev.Ops(cmd))
	}
	colour := rendering.Color[0]
	if colour.ClearColor != clear || colour.LoadOp != hal.LoadOpClear {
		t.Errorf("clear = %v (load %d), want %v", colour.ClearColor, colour.LoadOp, clear)
	}
	if colour.ResolveMode != hal.ResolveModeAverage || colour.ResolveView != r.Swapchain().ImageView(int(r.ImageIndex())) {
		t.Errorf("swapchain pass does not resolve into the acquired image")
	}
	if rendering.Area.Extent != r.Swapchain().Extent() {
		t.Errorf("render area = %v", rendering.Area.Extent)
	}
	_ = r.EndSwapchainRendering(cmd)
	if ok, err := r.EndFrame(); !ok || err != nil {
		t.Fatalf("EndFrame() = %v, %v", ok, err)
	}

	destroy(t, r, dev)
}

func TestSwapchainPassWaitsForPreviousAttachmentWrites(t *testing.T) {
	r, dev, _ := newRenderer(t)

	cmd, _ := r.BeginFrame()
	_ = r.BeginSwapchainRendering(cmd)
	i := int(r.ImageIndex())
	sc := r.Swapchain()
	want := map[hal.Image]hal.Access{
		sc.Image(i):      hal.AccessNone,
		sc.ColorImage(i): hal.AccessColorAttachmentWrite,
		sc.DepthImage(i): hal.AccessDepthStencilAttachmentWrite,
	}
	seen := 0
	for _, c := range dev.Recorded(cmd) {
		for _, b := range c.Barriers {
			access, ok := want[b.Image]
			if !ok {
				continue
			}
			seen++
			if b.SrcAccess != access {
				t.Errorf("image %d src access = %#x, want %#x", b.Image, b.SrcAccess, access)
			}
		}
	}
	if seen != len(want) {
		t.Errorf("saw %d swapchain pass barriers, want %d", seen, len(want))
	}
	_ = r.EndSwapchainRendering(cmd)
	if ok, err := r.EndFrame(); !ok || err != nil {
		t.Fatalf("EndFrame() = %v, %v", ok, err)
	}

	destroy(t, r, dev)
}

func TestFrameWithoutPasses(t *testing.T) {
	r, dev, _ := newRenderer(t)

	cmd, err := r.BeginFrame()
	if err != nil || cmd == hal.NullCommandBuffer {
		t.Fatalf("BeginFrame() = %d, %v", cmd, err)
	}
	if ok, err := r.EndFrame(); !ok || err != nil {
		t.Fatalf("EndFrame() = %v, %v", ok, err)
	}

	destroy(t, r, dev)
}

func TestFrameIndexWraps(t *testing.T) {
	r, dev, _ := newRenderer(t)

	var seen []int
	for i := 0; i < 2*MaxFramesInFlight+1; i++ {
		seen = append(seen, r.FrameIndex())
		drawFrame(t, r)
	}
	want := []int{0, 1, 0, 1, 0}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("frame indices = %v, want %v", seen, want)
	}
	if r.FrameIndex() != (2*MaxFramesInFlight+1)%MaxFramesInFlight {
		t.Errorf("FrameIndex() = %d", r.FrameIndex())
	}

	destroy(t, r, dev)
}

func TestStrictAlternation(t *testing.T) {
	nonFatalAssertions(t)
	r, dev, _ := newRenderer(t)

	if _, err := r.EndFrame(); !errors.Is(err, core.ErrFrameNotInProgress) {
		t.Errorf("EndFrame() without BeginFrame error = %v", err)
	}
	cmd, err := r.BeginFrame()
	if err != nil {
		t.Fatalf("BeginFrame() error = %v", err)
	}
	if again, err := r.BeginFrame(); !errors.Is(err, core.ErrFrameInProgress) || again != hal.NullCommandBuffer {
		t.Errorf("second BeginFrame() = %d, %v", again, err)
	}
	if err := r.RecreateSwapchain(); !errors.Is(err, core.ErrFrameInProgress) {
		t.Errorf("RecreateSwapchain() during a frame error = %v", err)
	}
	if err := r.EndOffscreenRendering(cmd); !errors.Is(err, core.ErrAssertion) {
		t.Errorf("EndOffscreenRendering() before begin error = %v", err)
	}
	_ = r.BeginOffscreenRendering(cmd)
	if _, err := r.EndFrame(); !errors.Is(err, core.ErrAssertion) {
		t.Errorf("EndFrame() with an open pass error = %v", err)
	}
	if err := r.BeginSwapchainRendering(cmd); !errors.Is(err, core.ErrAssertion) {
		t.Errorf("BeginSwapchainRendering() inside the offscreen pass error = %v", err)
	}
	_ = r.EndOffscreenRendering(cmd)
	if ok, err := r.EndFrame(); !ok || err != nil {
		t.Fatalf("EndFrame() = %v, %v", ok, err)
	}
	if _, err := r.EndFrame(); !errors.Is(err, core.ErrFrameNotInProgress) {
		t.Errorf("second EndFrame() error = %v", err)
	}

	destroy(t, r, dev)
}

func TestWrongCommandBuffer(t *testing.T) {
	nonFatalAssertions(t)
	r, dev, _ := newRenderer(t)

	cmd, _ := r.BeginFrame()
	if err := r.BeginOffscreenRendering(cmd + 1000); !errors.Is(err, core.ErrAssertion) {
		t.Errorf("BeginOffscreenRendering() with a foreign buffer error = %v", err)
	}
	if r.State() != FrameBegun {
		t.Errorf("State() = %s, want begun", r.State())
	}
	_, _ = r.EndFrame()

	destroy(t, r, dev)
}

func TestAssertionsPanicByDefault(t *testing.T) {
	r, dev, _ := newRenderer(t)

	func() {
		defer func() {
			rec := recover()
			err, ok := rec.(error)
			if !ok || !errors.Is(err, core.ErrAssertion) {
				t.Errorf("recovered %v, want an assertion error", rec)
			}
		}()
		_, _ = r.EndFrame()
	}()

	destroy(t, r, dev)
}

func TestOutOfDateAcquire(t *testing.T) {
	r, dev, _ := newRenderer(t)
	dev.Acquire = []hal.Result{hal.ResultOutOfDate}

	cmd, err := r.BeginFrame()
	if err != nil || cmd != hal.NullCommandBuffer {
		t.Fatalf("BeginFrame() = %d, %v, want null sentinel", cmd, err)
	}
	for _, c := range r.commandBuffers {
		if dev.IsRecording(c) {
			t.Errorf("command buffer %d is recording", c)
		}
	}
	if !r.NeedsRecreation() || r.IsFrameInProgress() {
		t.Errorf("NeedsRecreation() = %v, IsFrameInProgress() = %v", r.NeedsRecreation(), r.IsFrameInProgress())
	}
	// Pending recreation keeps returning the sentinel without acquiring.
	if cmd, _ := r.BeginFrame(); cmd != hal.NullCommandBuffer {
		t.Errorf("BeginFrame() with pending recreation = %d", cmd)
	}
	if r.Metrics().SkippedFrames != 1 {
		t.Errorf("SkippedFrames = %d, want 1", r.Metrics().SkippedFrames)
	}

	if err := r.RecreateSwapchain(); err != nil {
		t.Fatalf("RecreateSwapchain() error = %v", err)
	}
	if r.NeedsRecreation() || r.FrameIndex() != 0 {
		t.Errorf("after recreation NeedsRecreation() = %v, FrameIndex() = %d", r.NeedsRecreation(), r.FrameIndex())
	}
	if !drawFrame(t, r) {
		t.Errorf("frame after recreation failed")
	}

	destroy(t, r, dev)
}

func TestOutOfDatePresent(t *testing.T) {
	r, dev, _ := newRenderer(t)
	dev.Present = []hal.Result{hal.ResultOutOfDate}

	if drawFrame(t, r) {
		t.Fatalf("EndFrame() = true on out-of-date present")
	}
	if !r.NeedsRecreation() || r.FrameIndex() != 0 {
		t.Errorf("NeedsRecreation() = %v, FrameIndex() = %d", r.NeedsRecreation(), r.FrameIndex())
	}

	destroy(t, r, dev)
}

func TestResizeRequestsRecreation(t *testing.T) {
	r, dev, win := newRenderer(t)
	win.resized = true

	if drawFrame(t, r) {
		t.Fatalf("EndFrame() = true after resize")
	}
	if win.resized {
		t.Errorf("resize flag not cleared")
	}
	if !r.NeedsRecreation() {
		t.Errorf("NeedsRecreation() = false")
	}

	dev.Support.Capabilities.CurrentExtent = hal.Extent2D{Width: 1280, Height: 720}
	if err := r.RecreateSwapchain(); err != nil {
		t.Fatalf("RecreateSwapchain() error = %v", err)
	}
	if r.Offscreen().Extent() != (hal.Extent2D{Width: 1280, Height: 720}) {
		t.Errorf("offscreen extent = %v", r.Offscreen().Extent())
	}
	if r.AspectRatio() != float32(1280)/720 {
		t.Errorf("AspectRatio() = %f", r.AspectRatio())
	}

	destroy(t, r, dev)
}

func TestSuboptimalPresentsKeepChain(t *testing.T) {
	r, dev, _ := newRenderer(t)
	handle := r.Swapchain().Handle()
	dev.Present = []hal.Result{hal.ResultSuboptimal, hal.ResultSuboptimal, hal.ResultSuboptimal}

	for i := 0; i < 3; i++ {
		if !drawFrame(t, r) {
			t.Fatalf("frame %d: EndFrame() = false", i)
		}
	}
	if r.Swapchain().Handle() != handle || r.NeedsRecreation() {
		t.Errorf("suboptimal presents replaced the swapchain")
	}
	if r.Metrics().SuboptimalFrames != 3 {
		t.Errorf("SuboptimalFrames = %d, want 3", r.Metrics().SuboptimalFrames)
	}

	destroy(t, r, dev)
}

func TestRecreateWaitsWhileMinimized(t *testing.T) {
	r, dev, win := newRenderer(t)
	win.extent = hal.Extent2D{}
	win.onWait = growAfter(3, hal.Extent2D{Width: 800, Height: 600})

	if err := r.RecreateSwapchain(); err != nil {
		t.Fatalf("RecreateSwapchain() error = %v", err)
	}
	if win.waits != 3 {
		t.Errorf("WaitEvents called %d times, want 3", win.waits)
	}

	destroy(t, r, dev)
}

func TestRecreateGivesUpWhenClosedWhileMinimized(t *testing.T) {
	r, dev, win := newRenderer(t)
	handle := r.Swapchain().Handle()
	win.extent = hal.Extent2D{}
	win.onWait = closeAfter(3)

	if err := r.RecreateSwapchain(); !errors.Is(err, core.ErrWindowClosed) {
		t.Fatalf("RecreateSwapchain() error = %v, want ErrWindowClosed", err)
	}
	if win.waits != 3 {
		t.Errorf("WaitEvents called %d times, want 3", win.waits)
	}
	if r.Swapchain().Handle() != handle {
		t.Errorf("swapchain replaced after the window closed")
	}

	destroy(t, r, dev)
}

func TestBeginFrameSkipsWhileMinimized(t *testing.T) {
	r, dev, win := newRenderer(t)
	win.extent = hal.Extent2D{}

	cmd, err := r.BeginFrame()
	if err != nil || cmd != hal.NullCommandBuffer {
		t.Fatalf("BeginFrame() = %d, %v, want null sentinel", cmd, err)
	}
	for _, c := range r.commandBuffers {
		if dev.IsRecording(c) {
			t.Errorf("command buffer %d is recording", c)
		}
	}
	if !r.NeedsRecreation() || r.IsFrameInProgress() {
		t.Errorf("NeedsRecreation() = %v, IsFrameInProgress() = %v", r.NeedsRecreation(), r.IsFrameInProgress())
	}
	if r.Metrics().SkippedFrames != 1 {
		t.Errorf("SkippedFrames = %d, want 1", r.Metrics().SkippedFrames)
	}

	win.onWait = growAfter(1, hal.Extent2D{Width: 800, Height: 600})
	if err := r.RecreateSwapchain(); err != nil {
		t.Fatalf("RecreateSwapchain() error = %v", err)
	}
	if !drawFrame(t, r) {
		t.Errorf("frame after restore failed")
	}

	destroy(t, r, dev)
}

func TestRecreateFormatChangeFails(t *testing.T) {
	r, dev, _ := newRenderer(t)
	dev.Depth = hal.FormatD32SfloatS8Uint

	if err := r.RecreateSwapchain(); !errors.Is(err, core.ErrSwapchainFormatChanged) {
		t.Fatalf("RecreateSwapchain() error = %v, want ErrSwapchainFormatChanged", err)
	}

	destroy(t, r, dev)
}

func TestRapidRecreationsLeakNothing(t *testing.T) {
	r, dev, _ := newRenderer(t)
	drawFrame(t, r)
	before := dev.LiveTotal()

	for i := 0; i < 2; i++ {
		if err := r.RecreateSwapchain(); err != nil {
			t.Fatalf("RecreateSwapchain() #%d error = %v", i, err)
		}
	}
	for i := 0; i < MaxFramesInFlight; i++ {
		drawFrame(t, r)
	}
	if after := dev.LiveTotal(); !reflect.DeepEqual(before, after) {
		t.Errorf("live resources went from %v to %v", before, after)
	}
	if r.Metrics().Recreations != 2 {
		t.Errorf("Recreations = %d, want 2", r.Metrics().Recreations)
	}

	destroy(t, r, dev)
}

func TestApplyConfig(t *testing.T) {
	r, dev, _ := newRenderer(t)

	config := core.DefaultConfig().Renderer
	config.ClearColor = [4]float32{1, 0, 0, 1}
	r.ApplyConfig(config)
	if r.NeedsRecreation() {
		t.Errorf("clear colour change requested recreation")
	}

	config.VSync = false
	r.ApplyConfig(config)
	if !r.NeedsRecreation() {
		t.Fatalf("vsync change did not request recreation")
	}
	if err := r.RecreateSwapchain(); err != nil {
		t.Fatalf("RecreateSwapchain() error = %v", err)
	}
	if r.Swapchain().PresentMode() != hal.PresentModeMailbox {
		t.Errorf("PresentMode() = %s, want mailbox", r.Swapchain().PresentMode())
	}

	destroy(t, r, dev)
}
