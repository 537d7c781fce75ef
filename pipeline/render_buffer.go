package pipeline

import "sync"

// DefaultRenderCapacity bounds the frames waiting for the renderer.
const DefaultRenderCapacity = 3

// RenderBuffer hands published frames from the compute goroutine to the
// renderer. When full, the oldest frame is dropped.
type RenderBuffer struct {
	mu       sync.Mutex
	frames   []*RenderFrame // oldest first
	capacity int
	last     *RenderFrame
	dropped  uint64
}

// NewRenderBuffer creates a buffer holding up to capacity frames.
func NewRenderBuffer(capacity int) *RenderBuffer {
	capacity = max(capacity, 1)
	return &RenderBuffer{
		frames:   make([]*RenderFrame, 0, capacity),
		capacity: capacity,
	}
}

// Push publishes a frame.
func (b *RenderBuffer) Push(f *RenderFrame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.frames) == b.capacity {
		copy(b.frames, b.frames[1:])
		b.frames = b.frames[:len(b.frames)-1]
		b.dropped++
	}
	b.frames = append(b.frames, f)
}

// Next returns the newest pending frame and discards the older ones. With
// nothing pending it returns the last frame handed out again; fresh is then
// false. Before any frame it returns nil.
func (b *RenderBuffer) Next() (f *RenderFrame, fresh bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.frames) == 0 {
		return b.last, false
	}
	b.last = b.frames[len(b.frames)-1]
	clear(b.frames)
	b.frames = b.frames[:0]
	return b.last, true
}

// Len returns the number of pending frames.
func (b *RenderBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// Dropped returns how many frames were discarded unrendered on overflow.
func (b *RenderBuffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
