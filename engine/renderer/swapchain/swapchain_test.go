package swapchain

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/hal"
	"github.com/spaghettifunk/lumen/engine/renderer/hal/haltest"
)

var windowExtent = hal.Extent2D{Width: 800, Height: 600}

func newChain(t *testing.T, dev *haltest.Device, config Config) *Swapchain {
	t.Helper()
	sc, err := New(dev, config, windowExtent)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return sc
}

// presentFrame runs one acquire, record, submit and present cycle.
func presentFrame(t *testing.T, dev *haltest.Device, sc *Swapchain, cmd hal.CommandBuffer) hal.Result {
	t.Helper()
	index, result, err := sc.AcquireNextImage()
	if err != nil {
		t.Fatalf("AcquireNextImage() error = %v", err)
	}
	if result == hal.ResultOutOfDate {
		return result
	}
	if err := dev.BeginCommandBuffer(cmd); err != nil {
		t.Fatalf("BeginCommandBuffer() error = %v", err)
	}
	dev.CmdImageBarrier(cmd, hal.ImageBarrier{
		Image:     sc.Image(int(index)),
		Aspect:    hal.AspectColor,
		OldLayout: hal.ImageLayoutUndefined,
		NewLayout: hal.ImageLayoutPresentSrc,
	})
	if err := dev.EndCommandBuffer(cmd); err != nil {
		t.Fatalf("EndCommandBuffer() error = %v", err)
	}
	result, err = sc.SubmitAndPresent(cmd, index)
	if err != nil {
		t.Fatalf("SubmitAndPresent() error = %v", err)
	}
	return result
}

func checkClean(t *testing.T, dev *haltest.Device) {
	t.Helper()
	if leaks := dev.Leaks(); len(leaks) != 0 {
		t.Errorf("leaked resources: %v", leaks)
	}
	if len(dev.Violations) != 0 {
		t.Errorf("device violations: %v", dev.Violations)
	}
}

func TestChooseSurfaceFormat(t *testing.T) {
	unorm := hal.SurfaceFormat{Format: hal.FormatB8G8R8A8Unorm, ColorSpace: hal.ColorSpaceSrgbNonlinear}
	srgb := hal.SurfaceFormat{Format: hal.FormatB8G8R8A8Srgb, ColorSpace: hal.ColorSpaceSrgbNonlinear}
	srgbOther := hal.SurfaceFormat{Format: hal.FormatB8G8R8A8Srgb, ColorSpace: hal.ColorSpaceOther}
	tests := []struct {
		name    string
		formats []hal.SurfaceFormat
		want    hal.SurfaceFormat
	}{
		{"prefers srgb", []hal.SurfaceFormat{unorm, srgb}, srgb},
		{"falls back to first", []hal.SurfaceFormat{unorm}, unorm},
		{"needs nonlinear colour space", []hal.SurfaceFormat{unorm, srgbOther}, unorm},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := chooseSurfaceFormat(tt.formats); got != tt.want {
				t.Errorf("chooseSurfaceFormat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChoosePresentMode(t *testing.T) {
	tests := []struct {
		name  string
		modes []hal.PresentMode
		vsync bool
		want  hal.PresentMode
	}{
		{"vsync", []hal.PresentMode{hal.PresentModeFifo, hal.PresentModeMailbox}, true, hal.PresentModeFifo},
		{"no vsync with mailbox", []hal.PresentMode{hal.PresentModeFifo, hal.PresentModeMailbox}, false, hal.PresentModeMailbox},
		{"no vsync without mailbox", []hal.PresentMode{hal.PresentModeFifo, hal.PresentModeImmediate}, false, hal.PresentModeFifo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := choosePresentMode(tt.modes, tt.vsync); got != tt.want {
				t.Errorf("choosePresentMode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChooseExtent(t *testing.T) {
	caps := hal.SurfaceCapabilities{
		MinExtent: hal.Extent2D{Width: 100, Height: 100},
		MaxExtent: hal.Extent2D{Width: 1000, Height: 1000},
	}
	tests := []struct {
		name    string
		current hal.Extent2D
		window  hal.Extent2D
		want    hal.Extent2D
	}{
		{"current extent wins", hal.Extent2D{Width: 640, Height: 480}, hal.Extent2D{Width: 10, Height: 10}, hal.Extent2D{Width: 640, Height: 480}},
		{"undefined uses window", hal.Extent2D{Width: hal.UndefinedExtent, Height: hal.UndefinedExtent}, hal.Extent2D{Width: 300, Height: 200}, hal.Extent2D{Width: 300, Height: 200}},
		{"undefined clamps window", hal.Extent2D{Width: hal.UndefinedExtent, Height: hal.UndefinedExtent}, hal.Extent2D{Width: 5000, Height: 50}, hal.Extent2D{Width: 1000, Height: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := caps
			c.CurrentExtent = tt.current
			if got := chooseExtent(c, tt.window); got != tt.want {
				t.Errorf("chooseExtent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChooseImageCount(t *testing.T) {
	tests := []struct {
		min, max, want uint32
	}{
		{2, 3, 3},
		{3, 3, 3},
		{2, 0, 3},
	}
	for _, tt := range tests {
		got := chooseImageCount(hal.SurfaceCapabilities{MinImageCount: tt.min, MaxImageCount: tt.max})
		if got != tt.want {
			t.Errorf("chooseImageCount(%d, %d) = %d, want %d", tt.min, tt.max, got, tt.want)
		}
	}
}

func TestNewRejectsZeroExtent(t *testing.T) {
	for _, extent := range []hal.Extent2D{{Width: 0, Height: 600}, {Width: 800, Height: 0}} {
		dev := haltest.New()
		_, err := New(dev, Config{VSync: true, MSAA: 4}, extent)
		if !errors.Is(err, core.ErrZeroExtent) {
			t.Errorf("New(%v) error = %v, want ErrZeroExtent", extent, err)
		}
		if len(dev.Allocations) != 0 {
			t.Errorf("New(%v) allocated %d images", extent, len(dev.Allocations))
		}
		checkClean(t, dev)
	}
}

func TestNewCreatesPerImageResources(t *testing.T) {
	tests := []struct {
		name        string
		msaa        uint32
		wantSamples hal.SampleCount
		wantImages  int
	}{
		{"multisampled", 4, hal.SampleCount4, 6},
		{"clamped to device", 64, hal.SampleCount8, 6},
		{"single sample has no colour attachment", 1, hal.SampleCount1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := haltest.New()
			sc := newChain(t, dev, Config{VSync: true, MSAA: tt.msaa})

			if sc.ImageCount() != 3 {
				t.Fatalf("ImageCount() = %d, want 3", sc.ImageCount())
			}
			if sc.SampleCount() != tt.wantSamples {
				t.Errorf("SampleCount() = %d, want %d", sc.SampleCount(), tt.wantSamples)
			}
			if got := dev.Live(haltest.KindImage); got != tt.wantImages {
				t.Errorf("live images = %d, want %d", got, tt.wantImages)
			}
			if got := dev.Live(haltest.KindSemaphore); got != sc.ImageCount()+MaxFramesInFlight {
				t.Errorf("live semaphores = %d, want %d", got, sc.ImageCount()+MaxFramesInFlight)
			}
			if got := dev.Live(haltest.KindFence); got != MaxFramesInFlight {
				t.Errorf("live fences = %d, want %d", got, MaxFramesInFlight)
			}
			if sc.ImageFormat() != hal.FormatB8G8R8A8Srgb || sc.DepthFormat() != hal.FormatD32Sfloat {
				t.Errorf("formats = %s/%s", sc.ImageFormat(), sc.DepthFormat())
			}
			if sc.AspectRatio() != float32(800)/600 {
				t.Errorf("AspectRatio() = %f", sc.AspectRatio())
			}

			sc.Destroy()
			checkClean(t, dev)
		})
	}
}

func TestNewReleasesOnPartialFailure(t *testing.T) {
	tests := []struct {
		op string
		n  int
	}{
		{"SurfaceSupport", 1},
		{"CreateSwapchain", 1},
		{"AllocateImage", 4},
		{"CreateImageView", 2},
		{"CreateSemaphore", 5},
		{"CreateFence", 2},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			dev := haltest.New()
			dev.FailNext(tt.op, tt.n)
			if _, err := New(dev, Config{MSAA: 4}, windowExtent); !errors.Is(err, haltest.ErrInjected) {
				t.Fatalf("New() error = %v, want injected failure", err)
			}
			checkClean(t, dev)
		})
	}
}

func TestFrameSlotWrapsAround(t *testing.T) {
	dev := haltest.New()
	sc := newChain(t, dev, Config{VSync: true, MSAA: 1})
	cmds, _ := dev.AllocateCommandBuffers(1)

	for i := 0; i < MaxFramesInFlight; i++ {
		if sc.CurrentFrame() != i {
			t.Fatalf("CurrentFrame() = %d before frame %d", sc.CurrentFrame(), i)
		}
		if r := presentFrame(t, dev, sc, cmds[0]); r != hal.ResultSuccess {
			t.Fatalf("frame %d result = %s", i, r)
		}
	}
	if sc.CurrentFrame() != 0 {
		t.Errorf("CurrentFrame() = %d after %d frames, want 0", sc.CurrentFrame(), MaxFramesInFlight)
	}

	dev.FreeCommandBuffers(cmds)
	sc.Destroy()
	checkClean(t, dev)
}

func TestSubmitSignalsPerImageSemaphore(t *testing.T) {
	dev := haltest.New()
	sc := newChain(t, dev, Config{MSAA: 1})
	cmds, _ := dev.AllocateCommandBuffers(1)

	for i := 0; i < 4; i++ {
		presentFrame(t, dev, sc, cmds[0])
	}
	for i, s := range dev.Submits {
		p := dev.Presents[i]
		if s.Signal != sc.renderFinished[p.ImageIndex] || p.Wait != s.Signal {
			t.Errorf("frame %d: submit signals %d, present waits %d, image %d semaphore is %d",
				i, s.Signal, p.Wait, p.ImageIndex, sc.renderFinished[p.ImageIndex])
		}
		if s.Wait != sc.imageAvailable[i%MaxFramesInFlight] {
			t.Errorf("frame %d waits on %d, want slot %d semaphore", i, s.Wait, i%MaxFramesInFlight)
		}
	}

	dev.FreeCommandBuffers(cmds)
	sc.Destroy()
	checkClean(t, dev)
}

func TestOutOfDateKeepsFrameSlot(t *testing.T) {
	tests := []struct {
		name    string
		acquire []hal.Result
		present []hal.Result
	}{
		{"acquire", []hal.Result{hal.ResultOutOfDate}, nil},
		{"present", nil, []hal.Result{hal.ResultOutOfDate}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := haltest.New()
			sc := newChain(t, dev, Config{MSAA: 1})
			cmds, _ := dev.AllocateCommandBuffers(1)
			dev.Acquire = tt.acquire
			dev.Present = tt.present

			if r := presentFrame(t, dev, sc, cmds[0]); r != hal.ResultOutOfDate {
				t.Fatalf("result = %s, want out-of-date", r)
			}
			if sc.CurrentFrame() != 0 {
				t.Errorf("CurrentFrame() = %d, want 0", sc.CurrentFrame())
			}

			dev.FreeCommandBuffers(cmds)
			sc.Destroy()
			checkClean(t, dev)
		})
	}
}

func TestSuboptimalKeepsChain(t *testing.T) {
	dev := haltest.New()
	sc := newChain(t, dev, Config{MSAA: 1})
	cmds, _ := dev.AllocateCommandBuffers(1)
	handle := sc.Handle()
	dev.Present = []hal.Result{hal.ResultSuboptimal, hal.ResultSuboptimal, hal.ResultSuboptimal}

	for i := 0; i < 3; i++ {
		if r := presentFrame(t, dev, sc, cmds[0]); r != hal.ResultSuboptimal {
			t.Fatalf("frame %d result = %s, want suboptimal", i, r)
		}
	}
	if sc.Handle() != handle || dev.Live(haltest.KindSwapchain) != 1 {
		t.Errorf("suboptimal presents replaced the swapchain")
	}
	if sc.CurrentFrame() != 3%MaxFramesInFlight {
		t.Errorf("CurrentFrame() = %d, want %d", sc.CurrentFrame(), 3%MaxFramesInFlight)
	}

	dev.FreeCommandBuffers(cmds)
	sc.Destroy()
	checkClean(t, dev)
}

func TestRecreateRetiresOldChain(t *testing.T) {
	dev := haltest.New()
	sc := newChain(t, dev, Config{MSAA: 4})
	cmds, _ := dev.AllocateCommandBuffers(1)
	presentFrame(t, dev, sc, cmds[0])

	dev.Support.Capabilities.CurrentExtent = hal.Extent2D{Width: 1024, Height: 768}
	next, err := sc.Recreate(hal.Extent2D{Width: 1024, Height: 768})
	if err != nil {
		t.Fatalf("Recreate() error = %v", err)
	}
	if dev.WaitIdles != 1 {
		t.Errorf("WaitIdles = %d, want 1", dev.WaitIdles)
	}
	if desc := dev.SwapchainDesc(next.Handle()); desc.OldSwapchain != sc.Handle() {
		t.Errorf("OldSwapchain = %d, want %d", desc.OldSwapchain, sc.Handle())
	}
	if next.Extent() != (hal.Extent2D{Width: 1024, Height: 768}) || next.CurrentFrame() != 0 {
		t.Errorf("new chain extent %v frame %d", next.Extent(), next.CurrentFrame())
	}
	if dev.Live(haltest.KindSwapchain) != 2 || next.retired == nil {
		t.Fatalf("old chain not retired")
	}

	for i := 0; i < MaxFramesInFlight; i++ {
		presentFrame(t, dev, next, cmds[0])
	}
	if dev.Live(haltest.KindSwapchain) != 1 || next.retired != nil {
		t.Errorf("retired chain alive after %d frames", MaxFramesInFlight)
	}

	dev.FreeCommandBuffers(cmds)
	next.Destroy()
	checkClean(t, dev)
}

func TestRecreateTwiceInARow(t *testing.T) {
	dev := haltest.New()
	sc := newChain(t, dev, Config{MSAA: 4})

	first, err := sc.Recreate(windowExtent)
	if err != nil {
		t.Fatalf("first Recreate() error = %v", err)
	}
	second, err := first.Recreate(windowExtent)
	if err != nil {
		t.Fatalf("second Recreate() error = %v", err)
	}
	if got := dev.Live(haltest.KindSwapchain); got != 2 {
		t.Errorf("live swapchains = %d, want 2", got)
	}

	second.Destroy()
	checkClean(t, dev)
}

func TestRecreateFormatChange(t *testing.T) {
	tests := []struct {
		name   string
		change func(*haltest.Device)
	}{
		{"colour", func(d *haltest.Device) {
			d.Support.Formats = []hal.SurfaceFormat{{Format: hal.FormatR8G8B8A8Unorm, ColorSpace: hal.ColorSpaceSrgbNonlinear}}
		}},
		{"depth", func(d *haltest.Device) { d.Depth = hal.FormatD24UnormS8Uint }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := haltest.New()
			sc := newChain(t, dev, Config{MSAA: 4})
			tt.change(dev)

			if _, err := sc.Recreate(windowExtent); !errors.Is(err, core.ErrSwapchainFormatChanged) {
				t.Fatalf("Recreate() error = %v, want ErrSwapchainFormatChanged", err)
			}
			if got := dev.Live(haltest.KindSwapchain); got != 1 {
				t.Errorf("live swapchains = %d, want 1", got)
			}

			sc.Destroy()
			checkClean(t, dev)
		})
	}
}

func TestSubmitFailureIsReported(t *testing.T) {
	dev := haltest.New()
	sc := newChain(t, dev, Config{MSAA: 1})
	cmds, _ := dev.AllocateCommandBuffers(1)

	index, _, err := sc.AcquireNextImage()
	if err != nil {
		t.Fatalf("AcquireNextImage() error = %v", err)
	}
	_ = dev.BeginCommandBuffer(cmds[0])
	_ = dev.EndCommandBuffer(cmds[0])
	dev.FailNext("QueueSubmit", 1)
	if _, err := sc.SubmitAndPresent(cmds[0], index); !errors.Is(err, haltest.ErrInjected) {
		t.Errorf("SubmitAndPresent() error = %v, want injected failure", err)
	}
	if sc.CurrentFrame() != 0 || len(dev.Presents) != 0 {
		t.Errorf("failed submit advanced the frame or presented")
	}

	dev.FreeCommandBuffers(cmds)
	sc.Destroy()
	if leaks := dev.Leaks(); len(leaks) != 0 {
		t.Errorf("leaked resources: %v", leaks)
	}
}
