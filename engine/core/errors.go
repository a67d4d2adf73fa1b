package core

import (
	"errors"
)

var (
	ErrZeroExtent             = errors.New("window extent is zero")
	ErrSwapchainFormatChanged = errors.New("swapchain image or depth format changed")
	ErrDevice                 = errors.New("device error")
	ErrUnsupportedTransition  = errors.New("unsupported layout transition")
	ErrAssertion              = errors.New("assertion failed")
	ErrFrameInProgress        = errors.New("frame already in progress")
	ErrFrameNotInProgress     = errors.New("no frame in progress")
	ErrConfig                 = errors.New("invalid configuration")
	ErrWindowClosed           = errors.New("window closed")
)
