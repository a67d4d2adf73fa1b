package vulkan

import "sync"

type LockGroup string

const (
	ResourceManagement LockGroup = "resource_management"
	QueueManagement    LockGroup = "queue_management"
	PipelineManagement LockGroup = "pipeline_management"
)

// VulkanLockPool serialises groups of Vulkan calls that require external
// synchronisation, such as queue access.
type VulkanLockPool struct {
	locks map[LockGroup]*sync.Mutex
	mu    sync.Mutex
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		locks: make(map[LockGroup]*sync.Mutex),
	}
}

func (vs *VulkanLockPool) lock(group LockGroup) *sync.Mutex {
	vs.mu.Lock()
	l, exists := vs.locks[group]
	if !exists {
		l = &sync.Mutex{}
		vs.locks[group] = l
	}
	vs.mu.Unlock()

	l.Lock()
	return l
}

func (vs *VulkanLockPool) SafeCall(group LockGroup, fn func() error) error {
	l := vs.lock(group)
	defer l.Unlock()
	return fn()
}

// handleTable maps the opaque handles handed to the renderer onto the
// Vulkan objects behind them. Zero is never issued.
type handleTable[H ~uint64, T any] struct {
	mu      sync.Mutex
	next    uint64
	objects map[H]T
}

func newHandleTable[H ~uint64, T any]() *handleTable[H, T] {
	return &handleTable[H, T]{objects: make(map[H]T)}
}

func (t *handleTable[H, T]) add(v T) H {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	h := H(t.next)
	t.objects[h] = v
	return h
}

func (t *handleTable[H, T]) get(h H) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.objects[h]
	return v, ok
}

func (t *handleTable[H, T]) remove(h H) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.objects[h]
	delete(t.objects, h)
	return v, ok
}

func (t *handleTable[H, T]) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.objects)
}
