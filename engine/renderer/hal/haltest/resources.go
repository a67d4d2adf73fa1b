package haltest

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/renderer/hal"
)

func (d *Device) AllocateImage(desc hal.ImageDesc) (hal.Image, hal.DeviceMemory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shouldFail("AllocateImage") {
		return 0, 0, ErrInjected
	}
	if desc.Extent.IsZero() {
		d.violate("image allocated with zero extent %dx%d", desc.Extent.Width, desc.Extent.Height)
		return 0, 0, fmt.Errorf("zero extent image")
	}
	if desc.Samples == 0 {
		d.violate("image allocated with zero samples")
	}
	img := hal.Image(d.create(KindImage))
	mem := hal.DeviceMemory(d.create(KindMemory))
	d.images[img] = desc
	d.layouts[img] = hal.ImageLayoutUndefined
	d.Allocations = append(d.Allocations, desc)
	return img, mem, nil
}

func (d *Device) DestroyImage(image hal.Image, memory hal.DeviceMemory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(KindImage, uint64(image))
	d.release(KindMemory, uint64(memory))
	delete(d.images, image)
	delete(d.layouts, image)
}

func (d *Device) CreateImageView(image hal.Image, format hal.Format, aspect hal.ImageAspect, mipLevels uint32) (hal.ImageView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shouldFail("CreateImageView") {
		return 0, ErrInjected
	}
	if image == 0 {
		d.violate("view of null image")
	}
	v := hal.ImageView(d.create(KindImageView))
	d.views[v] = image
	return v, nil
}

func (d *Device) DestroyImageView(view hal.ImageView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(KindImageView, uint64(view))
	delete(d.views, view)
}

func (d *Device) CreateSampler(desc hal.SamplerDesc) (hal.Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shouldFail("CreateSampler") {
		return 0, ErrInjected
	}
	return hal.Sampler(d.create(KindSampler)), nil
}

func (d *Device) DestroySampler(sampler hal.Sampler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(KindSampler, uint64(sampler))
}

func (d *Device) CreateDescriptorSetLayout(bindings []hal.DescriptorBinding) (hal.DescriptorSetLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shouldFail("CreateDescriptorSetLayout") {
		return 0, ErrInjected
	}
	return hal.DescriptorSetLayout(d.create(KindDescriptorSetLayout)), nil
}

func (d *Device) DestroyDescriptorSetLayout(layout hal.DescriptorSetLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(KindDescriptorSetLayout, uint64(layout))
}

func (d *Device) CreateDescriptorPool(maxSets uint32, sizes []hal.DescriptorPoolSize) (hal.DescriptorPool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shouldFail("CreateDescriptorPool") {
		return 0, ErrInjected
	}
	return hal.DescriptorPool(d.create(KindDescriptorPool)), nil
}

func (d *Device) DestroyDescriptorPool(pool hal.DescriptorPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(KindDescriptorPool, uint64(pool))
}

// Sets are owned by their pool and not counted separately.
func (d *Device) AllocateDescriptorSet(pool hal.DescriptorPool, layout hal.DescriptorSetLayout) (hal.DescriptorSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shouldFail("AllocateDescriptorSet") {
		return 0, ErrInjected
	}
	if _, ok := d.live[KindDescriptorPool][uint64(pool)]; !ok {
		d.violate("descriptor set allocated from unknown pool %d", pool)
	}
	d.next++
	return hal.DescriptorSet(d.next), nil
}

func (d *Device) WriteImageDescriptor(set hal.DescriptorSet, binding uint32, view hal.ImageView, sampler hal.Sampler, layout hal.ImageLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.views[view]; !ok {
		d.violate("descriptor written with dead view %d", view)
	}
	d.writes[set] = view
}

func (d *Device) WriteBufferDescriptor(set hal.DescriptorSet, binding uint32, buffer hal.Buffer, offset, size uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.buffers[buffer]; !ok {
		d.violate("descriptor written with dead buffer %d", buffer)
	}
}

func (d *Device) CreateBuffer(size uint64, usage hal.BufferUsage) (hal.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shouldFail("CreateBuffer") {
		return 0, ErrInjected
	}
	b := hal.Buffer(d.create(KindBuffer))
	d.buffers[b] = make([]byte, size)
	return b, nil
}

func (d *Device) WriteBuffer(buffer hal.Buffer, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf, ok := d.buffers[buffer]
	if !ok {
		return fmt.Errorf("unknown buffer %d", buffer)
	}
	if offset+uint64(len(data)) > uint64(len(buf)) {
		return fmt.Errorf("write of %d bytes at %d overflows buffer of %d", len(data), offset, len(buf))
	}
	copy(buf[offset:], data)
	return nil
}

func (d *Device) DestroyBuffer(buffer hal.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(KindBuffer, uint64(buffer))
	delete(d.buffers, buffer)
}

func (d *Device) CreateShaderModule(spirv []byte) (hal.ShaderModule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shouldFail("CreateShaderModule") {
		return 0, ErrInjected
	}
	if len(spirv) == 0 || len(spirv)%4 != 0 {
		return 0, fmt.Errorf("invalid SPIR-V size %d", len(spirv))
	}
	return hal.ShaderModule(d.create(KindShaderModule)), nil
}

func (d *Device) DestroyShaderModule(module hal.ShaderModule) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(KindShaderModule, uint64(module))
}

func (d *Device) CreateGraphicsPipeline(desc hal.PipelineDesc) (hal.Pipeline, hal.PipelineLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shouldFail("CreateGraphicsPipeline") {
		return 0, 0, ErrInjected
	}
	layout := hal.PipelineLayout(d.create(KindPipelineLayout))
	return hal.Pipeline(d.create(KindPipeline)), layout, nil
}

func (d *Device) DestroyPipeline(pipeline hal.Pipeline, layout hal.PipelineLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(KindPipeline, uint64(pipeline))
	d.release(KindPipelineLayout, uint64(layout))
}

func (d *Device) DepthFormat() (hal.Format, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Depth == hal.FormatUndefined {
		return hal.FormatUndefined, fmt.Errorf("no supported depth format")
	}
	return d.Depth, nil
}

func (d *Device) MaxSampleCount() hal.SampleCount {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.MaxMSAA
}

func (d *Device) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.WaitIdles++
	for _, f := range d.fences {
		if f.pending {
			f.pending = false
			f.signaled = true
		}
	}
	return nil
}
