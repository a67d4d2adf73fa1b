// Package haltest provides an in-memory hal.Device that counts live
// resources, records commands and validates image layout transitions.
package haltest

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/spaghettifunk/lumen/engine/renderer/hal"
)

// ErrInjected is returned by operations armed with FailNext.
var ErrInjected = errors.New("injected device failure")

// Resource kinds tracked by Live.
const (
	KindImage               = "image"
	KindMemory              = "memory"
	KindImageView           = "image-view"
	KindSampler             = "sampler"
	KindDescriptorSetLayout = "descriptor-set-layout"
	KindDescriptorPool      = "descriptor-pool"
	KindSemaphore           = "semaphore"
	KindFence               = "fence"
	KindCommandBuffer       = "command-buffer"
	KindSwapchain           = "swapchain"
	KindBuffer              = "buffer"
	KindShaderModule        = "shader-module"
	KindPipeline            = "pipeline"
	KindPipelineLayout      = "pipeline-layout"
)

// Command is one recorded call.
type Command struct {
	Op        string
	Barriers  []hal.ImageBarrier
	Rendering *hal.RenderingInfo
	Viewport  hal.Viewport
	Scissor   hal.Rect2D
	Data      []byte
	Count     uint32
}

type cmdState int

const (
	cmdReady cmdState = iota
	cmdRecording
	cmdEnded
)

type swapchainState struct {
	desc   hal.SwapchainDesc
	images []hal.Image
	next   uint32
}

type fenceState struct {
	signaled bool
	pending  bool
}

// Device is a fake hal.Device. GPU work completes as soon as it is submitted.
type Device struct {
	mu sync.Mutex

	next uint64
	live map[string]map[uint64]struct{}

	// Support is returned by SurfaceSupport. Tests may edit it between calls.
	Support  hal.SurfaceSupport
	Depth    hal.Format
	MaxMSAA  hal.SampleCount
	Acquire  []hal.Result
	Present  []hal.Result
	failNext map[string]int

	fences     map[hal.Fence]*fenceState
	cmds       map[hal.CommandBuffer]cmdState
	recorded   map[hal.CommandBuffer][]Command
	swapchains map[hal.Swapchain]*swapchainState
	images     map[hal.Image]hal.ImageDesc
	layouts    map[hal.Image]hal.ImageLayout
	buffers    map[hal.Buffer][]byte
	views      map[hal.ImageView]hal.Image
	writes     map[hal.DescriptorSet]hal.ImageView

	Submits     []hal.SubmitInfo
	Presents    []hal.PresentInfo
	FenceWaits  []hal.Fence
	WaitIdles   int
	OneShots    int
	Violations  []string
	Allocations []hal.ImageDesc
}

// New returns a device with a 800x600 surface offering FIFO and mailbox.
func New() *Device {
	return &Device{
		live: make(map[string]map[uint64]struct{}),
		Support: hal.SurfaceSupport{
			Capabilities: hal.SurfaceCapabilities{
				MinImageCount: 2,
				MaxImageCount: 3,
				CurrentExtent: hal.Extent2D{Width: 800, Height: 600},
				MinExtent:     hal.Extent2D{Width: 1, Height: 1},
				MaxExtent:     hal.Extent2D{Width: 4096, Height: 4096},
			},
			Formats: []hal.SurfaceFormat{
				{Format: hal.FormatB8G8R8A8Unorm, ColorSpace: hal.ColorSpaceSrgbNonlinear},
				{Format: hal.FormatB8G8R8A8Srgb, ColorSpace: hal.ColorSpaceSrgbNonlinear},
			},
			PresentModes: []hal.PresentMode{hal.PresentModeFifo, hal.PresentModeMailbox},
		},
		Depth:      hal.FormatD32Sfloat,
		MaxMSAA:    hal.SampleCount8,
		failNext:   make(map[string]int),
		fences:     make(map[hal.Fence]*fenceState),
		cmds:       make(map[hal.CommandBuffer]cmdState),
		recorded:   make(map[hal.CommandBuffer][]Command),
		swapchains: make(map[hal.Swapchain]*swapchainState),
		images:     make(map[hal.Image]hal.ImageDesc),
		layouts:    make(map[hal.Image]hal.ImageLayout),
		buffers:    make(map[hal.Buffer][]byte),
		views:      make(map[hal.ImageView]hal.Image),
		writes:     make(map[hal.DescriptorSet]hal.ImageView),
	}
}

var _ hal.Device = (*Device)(nil)

// FailNext makes the n-th next call of op (1 = the very next one) fail.
func (d *Device) FailNext(op string, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failNext[op] = n
}

func (d *Device) shouldFail(op string) bool {
	n, ok := d.failNext[op]
	if !ok {
		return false
	}
	n--
	if n <= 0 {
		delete(d.failNext, op)
		return true
	}
	d.failNext[op] = n
	return false
}

func (d *Device) violate(format string, args ...interface{}) {
	d.Violations = append(d.Violations, fmt.Sprintf(format, args...))
}

func (d *Device) create(kind string) uint64 {
	d.next++
	if d.live[kind] == nil {
		d.live[kind] = make(map[uint64]struct{})
	}
	d.live[kind][d.next] = struct{}{}
	return d.next
}

func (d *Device) release(kind string, h uint64) {
	if h == 0 {
		return
	}
	if _, ok := d.live[kind][h]; !ok {
		d.violate("release of unknown %s %d", kind, h)
		return
	}
	delete(d.live[kind], h)
}

// Live returns the number of live objects of kind.
func (d *Device) Live(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live[kind])
}

// LiveTotal returns live counts for every kind with at least one object.
func (d *Device) LiveTotal() map[string]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]int)
	for k, v := range d.live {
		if len(v) > 0 {
			out[k] = len(v)
		}
	}
	return out
}

// Leaks describes every live object, sorted. Empty means nothing leaked.
func (d *Device) Leaks() []string {
	totals := d.LiveTotal()
	out := make([]string, 0, len(totals))
	for k, n := range totals {
		out = append(out, fmt.Sprintf("%s=%d", k, n))
	}
	sort.Strings(out)
	return out
}

// Recorded returns the commands recorded into cmd since it was last begun.
func (d *Device) Recorded(cmd hal.CommandBuffer) []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Command(nil), d.recorded[cmd]...)
}

// Layout returns the tracked layout of image.
func (d *Device) Layout(image hal.Image) hal.ImageLayout {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.layouts[image]
}

// IsRecording reports whether cmd is between begin and end.
func (d *Device) IsRecording(cmd hal.CommandBuffer) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cmds[cmd] == cmdRecording
}

// DescriptorView returns the image view last written to set.
func (d *Device) DescriptorView(set hal.DescriptorSet) hal.ImageView {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes[set]
}

// ImageDesc returns the description an image was allocated with.
func (d *Device) ImageDesc(image hal.Image) hal.ImageDesc {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.images[image]
}

// BufferData returns a copy of the buffer contents.
func (d *Device) BufferData(buffer hal.Buffer) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.buffers[buffer]...)
}
