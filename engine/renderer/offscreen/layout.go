package offscreen

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/hal"
)

// Layout is the tracked layout of the offscreen resolve image.
type Layout int

const (
	LayoutUndefined Layout = iota
	LayoutColorAttachment
	LayoutShaderReadOnly
)

func (l Layout) String() string {
	switch l {
	case LayoutColorAttachment:
		return "color-attachment"
	case LayoutShaderReadOnly:
		return "shader-read-only"
	}
	return "undefined"
}

// ImageLayout maps the tracked layout to the device layout.
func (l Layout) ImageLayout() hal.ImageLayout {
	switch l {
	case LayoutColorAttachment:
		return hal.ImageLayoutColorAttachment
	case LayoutShaderReadOnly:
		return hal.ImageLayoutShaderReadOnly
	}
	return hal.ImageLayoutUndefined
}

// LayoutState mirrors the layout the GPU will see once recorded barriers
// execute. Only the target's rendering and sampling transitions move it.
type LayoutState struct {
	current Layout
}

func (s *LayoutState) Current() Layout {
	return s.current
}

// set moves to next. Nothing transitions back to undefined except reset.
func (s *LayoutState) set(next Layout) error {
	switch {
	case next == s.current:
	case next == LayoutUndefined:
		return fmt.Errorf("%s -> %s: %w", s.current, next, core.ErrUnsupportedTransition)
	}
	s.current = next
	return nil
}

func (s *LayoutState) reset() {
	s.current = LayoutUndefined
}
