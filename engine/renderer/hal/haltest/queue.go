package haltest

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/renderer/hal"
)

func (d *Device) CreateSemaphore() (hal.Semaphore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shouldFail("CreateSemaphore") {
		return 0, ErrInjected
	}
	return hal.Semaphore(d.create(KindSemaphore)), nil
}

func (d *Device) DestroySemaphore(semaphore hal.Semaphore) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(KindSemaphore, uint64(semaphore))
}

func (d *Device) CreateFence(signaled bool) (hal.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shouldFail("CreateFence") {
		return 0, ErrInjected
	}
	f := hal.Fence(d.create(KindFence))
	d.fences[f] = &fenceState{signaled: signaled}
	return f, nil
}

func (d *Device) DestroyFence(fence hal.Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(KindFence, uint64(fence))
	delete(d.fences, fence)
}

// WaitForFence fails instead of hanging when the fence can never signal.
func (d *Device) WaitForFence(fence hal.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.FenceWaits = append(d.FenceWaits, fence)
	f, ok := d.fences[fence]
	if !ok {
		d.violate("wait on unknown fence %d", fence)
		return fmt.Errorf("unknown fence %d", fence)
	}
	if f.pending {
		f.pending = false
		f.signaled = true
	}
	if !f.signaled {
		d.violate("wait on fence %d that is neither signaled nor submitted", fence)
		return fmt.Errorf("deadlock: fence %d never signals", fence)
	}
	return nil
}

func (d *Device) ResetFence(fence hal.Fence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.fences[fence]
	if !ok {
		return fmt.Errorf("unknown fence %d", fence)
	}
	if f.pending {
		d.violate("reset of fence %d still in flight", fence)
	}
	f.signaled = false
	return nil
}

func (d *Device) AllocateCommandBuffers(count uint32) ([]hal.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shouldFail("AllocateCommandBuffers") {
		return nil, ErrInjected
	}
	out := make([]hal.CommandBuffer, count)
	for i := range out {
		out[i] = hal.CommandBuffer(d.create(KindCommandBuffer))
		d.cmds[out[i]] = cmdReady
	}
	return out, nil
}

func (d *Device) FreeCommandBuffers(buffers []hal.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range buffers {
		if d.cmds[b] == cmdRecording {
			d.violate("command buffer %d freed while recording", b)
		}
		d.release(KindCommandBuffer, uint64(b))
		delete(d.cmds, b)
		delete(d.recorded, b)
	}
}

func (d *Device) BeginCommandBuffer(cmd hal.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shouldFail("BeginCommandBuffer") {
		return ErrInjected
	}
	st, ok := d.cmds[cmd]
	if !ok {
		return fmt.Errorf("unknown command buffer %d", cmd)
	}
	if st == cmdRecording {
		d.violate("command buffer %d begun twice", cmd)
		return fmt.Errorf("command buffer %d already recording", cmd)
	}
	d.cmds[cmd] = cmdRecording
	d.recorded[cmd] = nil
	return nil
}

func (d *Device) EndCommandBuffer(cmd hal.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cmds[cmd] != cmdRecording {
		d.violate("end of command buffer %d that is not recording", cmd)
		return fmt.Errorf("command buffer %d not recording", cmd)
	}
	d.cmds[cmd] = cmdEnded
	return nil
}

func (d *Device) BeginOneShotCommands() (hal.CommandBuffer, error) {
	bufs, err := d.AllocateCommandBuffers(1)
	if err != nil {
		return 0, err
	}
	if err := d.BeginCommandBuffer(bufs[0]); err != nil {
		d.FreeCommandBuffers(bufs)
		return 0, err
	}
	return bufs[0], nil
}

func (d *Device) EndOneShotCommands(cmd hal.CommandBuffer) error {
	if err := d.EndCommandBuffer(cmd); err != nil {
		return err
	}
	d.mu.Lock()
	d.OneShots++
	d.mu.Unlock()
	d.FreeCommandBuffers([]hal.CommandBuffer{cmd})
	return nil
}

func (d *Device) SurfaceSupport() (hal.SurfaceSupport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shouldFail("SurfaceSupport") {
		return hal.SurfaceSupport{}, ErrInjected
	}
	s := d.Support
	s.Formats = append([]hal.SurfaceFormat(nil), d.Support.Formats...)
	s.PresentModes = append([]hal.PresentMode(nil), d.Support.PresentModes...)
	return s, nil
}

func (d *Device) CreateSwapchain(desc hal.SwapchainDesc) (hal.Swapchain, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shouldFail("CreateSwapchain") {
		return 0, ErrInjected
	}
	if desc.Extent.IsZero() {
		d.violate("swapchain created with zero extent")
		return 0, fmt.Errorf("zero extent swapchain")
	}
	if desc.OldSwapchain != 0 {
		if _, ok := d.swapchains[desc.OldSwapchain]; !ok {
			d.violate("old swapchain %d is not alive", desc.OldSwapchain)
		}
	}
	sc := hal.Swapchain(d.create(KindSwapchain))
	st := &swapchainState{desc: desc}
	for i := uint32(0); i < desc.MinImageCount; i++ {
		d.next++
		img := hal.Image(d.next)
		st.images = append(st.images, img)
		d.layouts[img] = hal.ImageLayoutUndefined
	}
	d.swapchains[sc] = st
	return sc, nil
}

func (d *Device) SwapchainImages(swapchain hal.Swapchain) ([]hal.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.swapchains[swapchain]
	if !ok {
		return nil, fmt.Errorf("unknown swapchain %d", swapchain)
	}
	return append([]hal.Image(nil), st.images...), nil
}

// SwapchainDesc returns the creation parameters of a live swapchain.
func (d *Device) SwapchainDesc(swapchain hal.Swapchain) hal.SwapchainDesc {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, ok := d.swapchains[swapchain]; ok {
		return st.desc
	}
	return hal.SwapchainDesc{}
}

func (d *Device) DestroySwapchain(swapchain hal.Swapchain) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, ok := d.swapchains[swapchain]; ok {
		for _, img := range st.images {
			delete(d.layouts, img)
		}
	}
	d.release(KindSwapchain, uint64(swapchain))
	delete(d.swapchains, swapchain)
}

func popResult(q *[]hal.Result) hal.Result {
	if len(*q) == 0 {
		return hal.ResultSuccess
	}
	r := (*q)[0]
	*q = (*q)[1:]
	return r
}

// AcquireNextImage hands out images round robin. Results queued in Acquire
// are returned first.
func (d *Device) AcquireNextImage(swapchain hal.Swapchain, signal hal.Semaphore) (uint32, hal.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shouldFail("AcquireNextImage") {
		return 0, hal.ResultSuccess, ErrInjected
	}
	st, ok := d.swapchains[swapchain]
	if !ok {
		return 0, hal.ResultSuccess, fmt.Errorf("unknown swapchain %d", swapchain)
	}
	if _, ok := d.live[KindSemaphore][uint64(signal)]; !ok {
		d.violate("acquire with dead semaphore %d", signal)
	}
	res := popResult(&d.Acquire)
	if res == hal.ResultOutOfDate {
		return 0, res, nil
	}
	idx := st.next
	st.next = (st.next + 1) % uint32(len(st.images))
	return idx, res, nil
}

func (d *Device) QueueSubmit(info hal.SubmitInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shouldFail("QueueSubmit") {
		return ErrInjected
	}
	if d.cmds[info.CommandBuffer] != cmdEnded {
		d.violate("submit of command buffer %d that was not ended", info.CommandBuffer)
	}
	if info.Fence != 0 {
		f, ok := d.fences[info.Fence]
		if !ok {
			d.violate("submit with unknown fence %d", info.Fence)
		} else {
			if f.signaled {
				d.violate("submit with fence %d that was not reset", info.Fence)
			}
			f.pending = true
		}
	}
	d.cmds[info.CommandBuffer] = cmdReady
	d.Submits = append(d.Submits, info)
	return nil
}

func (d *Device) QueuePresent(info hal.PresentInfo) (hal.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shouldFail("QueuePresent") {
		return hal.ResultSuccess, ErrInjected
	}
	st, ok := d.swapchains[info.Swapchain]
	if !ok {
		return hal.ResultSuccess, fmt.Errorf("unknown swapchain %d", info.Swapchain)
	}
	if int(info.ImageIndex) < len(st.images) {
		if l := d.layouts[st.images[info.ImageIndex]]; l != hal.ImageLayoutPresentSrc {
			d.violate("present of image %d in layout %s", info.ImageIndex, l)
		}
	}
	d.Presents = append(d.Presents, info)
	return popResult(&d.Present), nil
}
