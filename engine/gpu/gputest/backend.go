// Package gputest provides an in-memory gpu.Backend used by tests: buffers
// are byte slices, command lists journal their recorded operations and
// submission replays the copies synchronously before signaling the fence.
package gputest

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/vanta-engine/vanta/engine/gpu"
)

type Backend struct {
	mu                sync.Mutex
	dedicatedTransfer bool
	graphic           *Queue
	transfer          *Queue
	buffers           []*Buffer
	allocators        []*CommandAllocator
	submissions       []Submission

	// Optional failure injection.
	FailBufferCreation bool
}

// Submission is one journal entry recorded by a queue submit.
type Submission struct {
	Queue string
	Lists []*CommandList
}

// NewBackend creates a mock device. With dedicatedTransfer the transfer queue
// is distinct from the graphics queue and the async queue runs its drain
// goroutine.
func NewBackend(dedicatedTransfer bool) *Backend {
	b := &Backend{dedicatedTransfer: dedicatedTransfer}
	b.graphic = &Queue{backend: b, name: "graphic"}
	if dedicatedTransfer {
		b.transfer = &Queue{backend: b, name: "transfer"}
	} else {
		b.transfer = b.graphic
	}
	return b
}

func (b *Backend) CreateBuffer(bufferType gpu.BufferType, elementSize, elementCount uint64, name string) (gpu.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailBufferCreation {
		return nil, errors.Newf("mock allocation failure for %s", name)
	}
	buffer := &Buffer{
		name:       name,
		bufferType: bufferType,
		data:       make([]byte, elementSize*elementCount),
	}
	b.buffers = append(b.buffers, buffer)
	return buffer, nil
}

func (b *Backend) CreateCommandAllocator(commandType gpu.CommandType) (gpu.CommandAllocator, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	allocator := &CommandAllocator{commandType: commandType}
	b.allocators = append(b.allocators, allocator)
	return allocator, nil
}

func (b *Backend) CreateFence(signaled bool) (gpu.Fence, error) {
	f := &Fence{signaled: signaled}
	f.cond = sync.NewCond(&f.mu)
	return f, nil
}

func (b *Backend) GraphicQueue() gpu.SubmitQueue  { return b.graphic }
func (b *Backend) TransferQueue() gpu.SubmitQueue { return b.transfer }

func (b *Backend) HasDedicatedTransferQueue() bool { return b.dedicatedTransfer }

func (b *Backend) Shutdown() error { return nil }

// Submissions returns a copy of the submission journal.
func (b *Backend) Submissions() []Submission {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Submission, len(b.submissions))
	copy(out, b.submissions)
	return out
}

// LiveBuffers counts the buffers not yet destroyed.
func (b *Backend) LiveBuffers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	live := 0
	for _, buffer := range b.buffers {
		if !buffer.Destroyed() {
			live++
		}
	}
	return live
}

func (b *Backend) recordSubmission(queue string, lists []*CommandList) {
	b.mu.Lock()
	b.submissions = append(b.submissions, Submission{Queue: queue, Lists: lists})
	b.mu.Unlock()
}
