package swapchain

import (
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/hal"
)

func chooseSurfaceFormat(formats []hal.SurfaceFormat) hal.SurfaceFormat {
	for _, f := range formats {
		if f.Format == hal.FormatB8G8R8A8Srgb && f.ColorSpace == hal.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	return formats[0]
}

// choosePresentMode uses mailbox when vsync is off and the surface offers
// it. FIFO is always available.
func choosePresentMode(modes []hal.PresentMode, vsync bool) hal.PresentMode {
	if !vsync {
		for _, m := range modes {
			if m == hal.PresentModeMailbox {
				return m
			}
		}
	}
	return hal.PresentModeFifo
}

func chooseExtent(caps hal.SurfaceCapabilities, window hal.Extent2D) hal.Extent2D {
	if caps.CurrentExtent.Width != hal.UndefinedExtent {
		return caps.CurrentExtent
	}
	return hal.Extent2D{
		Width:  math.Clamp(window.Width, caps.MinExtent.Width, caps.MaxExtent.Width),
		Height: math.Clamp(window.Height, caps.MinExtent.Height, caps.MaxExtent.Height),
	}
}

func chooseImageCount(caps hal.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}
