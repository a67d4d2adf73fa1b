package hal

import "unsafe"

// Bytes views a fixed-size value as raw bytes for push constants and uniform
// uploads. T must not contain pointers.
func Bytes[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}

// SliceBytes views a slice of fixed-size values as raw bytes.
func SliceBytes[T any](v []T) []byte {
	if len(v) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*int(unsafe.Sizeof(zero)))
}

// ClampSampleCount returns the largest supported count not above requested.
func ClampSampleCount(requested uint32, max SampleCount) SampleCount {
	c := SampleCount64
	for c > SampleCount1 && (uint32(c) > requested || c > max) {
		c >>= 1
	}
	return c
}
