package gputest

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/vanta-engine/vanta/engine/gpu"
)

type Buffer struct {
	name       string
	bufferType gpu.BufferType

	mu        sync.Mutex
	data      []byte
	mapped    bool
	destroyed bool
}

func (b *Buffer) Name() string         { return b.name }
func (b *Buffer) Type() gpu.BufferType { return b.bufferType }
func (b *Buffer) Size() uint64         { return uint64(len(b.data)) }

func (b *Buffer) Map() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return errors.Newf("map of destroyed buffer %s", b.name)
	}
	b.mapped = true
	return nil
}

func (b *Buffer) Unmap() {
	b.mu.Lock()
	b.mapped = false
	b.mu.Unlock()
}

func (b *Buffer) Write(src []byte, size, offset uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	copy(b.data[offset:offset+size], src[:size])
}

func (b *Buffer) Read(offset, size uint64) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, size)
	copy(out, b.data[offset:offset+size])
	return out
}

func (b *Buffer) Destroy() {
	b.mu.Lock()
	b.destroyed = true
	b.mu.Unlock()
}

func (b *Buffer) Destroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed
}

// Bytes snapshots the buffer contents, for assertions on device state.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}
