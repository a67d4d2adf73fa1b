package haltest

import (
	"github.com/spaghettifunk/lumen/engine/renderer/hal"
)

func (d *Device) record(cmd hal.CommandBuffer, c Command) {
	if d.cmds[cmd] != cmdRecording {
		d.violate("%s recorded into command buffer %d that is not recording", c.Op, cmd)
	}
	d.recorded[cmd] = append(d.recorded[cmd], c)
}

// CmdImageBarrier checks every transition against the tracked layout.
// Transitions from undefined are always allowed since they discard contents.
func (d *Device) CmdImageBarrier(cmd hal.CommandBuffer, barriers ...hal.ImageBarrier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range barriers {
		cur, ok := d.layouts[b.Image]
		if !ok {
			d.violate("barrier on unknown image %d", b.Image)
			continue
		}
		if b.OldLayout != hal.ImageLayoutUndefined && b.OldLayout != cur {
			d.violate("barrier on image %d assumes %s but image is %s", b.Image, b.OldLayout, cur)
		}
		d.layouts[b.Image] = b.NewLayout
	}
	d.record(cmd, Command{Op: "barrier", Barriers: append([]hal.ImageBarrier(nil), barriers...)})
}

func (d *Device) CmdBeginRendering(cmd hal.CommandBuffer, info hal.RenderingInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range info.Color {
		if _, ok := d.views[c.View]; !ok {
			d.violate("rendering into dead view %d", c.View)
		}
		if img, ok := d.views[c.View]; ok && d.layouts[img] != c.Layout {
			d.violate("colour attachment %d is %s, rendering expects %s", c.View, d.layouts[img], c.Layout)
		}
		if c.ResolveMode != hal.ResolveModeNone {
			if img, ok := d.views[c.ResolveView]; !ok {
				d.violate("resolving into dead view %d", c.ResolveView)
			} else if d.layouts[img] != c.ResolveLayout {
				d.violate("resolve attachment %d is %s, rendering expects %s", c.ResolveView, d.layouts[img], c.ResolveLayout)
			}
		}
	}
	if info.Depth != nil {
		if img, ok := d.views[info.Depth.View]; !ok {
			d.violate("rendering into dead depth view %d", info.Depth.View)
		} else if d.layouts[img] != info.Depth.Layout {
			d.violate("depth attachment is %s, rendering expects %s", d.layouts[img], info.Depth.Layout)
		}
	}
	copied := info
	copied.Color = append([]hal.RenderingAttachment(nil), info.Color...)
	d.record(cmd, Command{Op: "begin-rendering", Rendering: &copied})
}

func (d *Device) CmdEndRendering(cmd hal.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(cmd, Command{Op: "end-rendering"})
}

func (d *Device) CmdSetViewport(cmd hal.CommandBuffer, viewport hal.Viewport) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(cmd, Command{Op: "viewport", Viewport: viewport})
}

func (d *Device) CmdSetScissor(cmd hal.CommandBuffer, scissor hal.Rect2D) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(cmd, Command{Op: "scissor", Scissor: scissor})
}

func (d *Device) CmdBindPipeline(cmd hal.CommandBuffer, pipeline hal.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(cmd, Command{Op: "bind-pipeline"})
}

func (d *Device) CmdBindDescriptorSets(cmd hal.CommandBuffer, layout hal.PipelineLayout, firstSet uint32, sets ...hal.DescriptorSet) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(cmd, Command{Op: "bind-descriptor-sets", Count: uint32(len(sets))})
}

func (d *Device) CmdPushConstants(cmd hal.CommandBuffer, layout hal.PipelineLayout, stages hal.ShaderStage, offset uint32, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(cmd, Command{Op: "push-constants", Data: append([]byte(nil), data...)})
}

func (d *Device) CmdBindVertexBuffer(cmd hal.CommandBuffer, buffer hal.Buffer, offset uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(cmd, Command{Op: "bind-vertex-buffer"})
}

func (d *Device) CmdBindIndexBuffer(cmd hal.CommandBuffer, buffer hal.Buffer, offset uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(cmd, Command{Op: "bind-index-buffer"})
}

func (d *Device) CmdDraw(cmd hal.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(cmd, Command{Op: "draw", Count: vertexCount})
}

func (d *Device) CmdDrawIndexed(cmd hal.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(cmd, Command{Op: "draw-indexed", Count: indexCount})
}

// Ops returns the operation names recorded into cmd.
func (d *Device) Ops(cmd hal.CommandBuffer) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.recorded[cmd]))
	for _, c := range d.recorded[cmd] {
		out = append(out, c.Op)
	}
	return out
}
