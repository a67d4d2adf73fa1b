package vulkan

import (
	"errors"
	"testing"
)

func TestSafeCallReturnsCallError(t *testing.T) {
	pool := NewVulkanLockPool()
	lost := errors.New("device lost")

	if err := pool.SafeCall(QueueManagement, func() error { return lost }); !errors.Is(err, lost) {
		t.Fatalf("SafeCall() error = %v, want %v", err, lost)
	}
	// The group lock is released even when the call fails.
	ran := false
	if err := pool.SafeCall(QueueManagement, func() error { ran = true; return nil }); err != nil || !ran {
		t.Errorf("second SafeCall() = %v, ran = %v", err, ran)
	}
}
