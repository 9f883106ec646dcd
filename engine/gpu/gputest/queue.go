package gputest

import (
	"sync"

	"github.com/vanta-engine/vanta/engine/gpu"
)

type Queue struct {
	backend *Backend
	name    string
	mu      sync.Mutex
}

// Submit journals the submission, replays the recorded copies and signals
// the fence. Execution is synchronous: by the time Submit returns, the
// "device" work is complete.
func (q *Queue) Submit(fence gpu.Fence, lists ...gpu.CommandList) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	mockLists := make([]*CommandList, len(lists))
	for i, list := range lists {
		mockLists[i] = list.(*CommandList)
	}
	q.backend.recordSubmission(q.name, mockLists)
	for _, list := range mockLists {
		list.execute()
	}
	fence.(*Fence).signal()
	return nil
}

type Fence struct {
	mu       sync.Mutex
	cond     *sync.Cond
	signaled bool
}

func (f *Fence) Wait() {
	f.mu.Lock()
	for !f.signaled {
		f.cond.Wait()
	}
	f.mu.Unlock()
}

func (f *Fence) Reset() error {
	f.mu.Lock()
	f.signaled = false
	f.mu.Unlock()
	return nil
}

func (f *Fence) Destroy() {}

func (f *Fence) signal() {
	f.mu.Lock()
	f.signaled = true
	f.cond.Broadcast()
	f.mu.Unlock()
}
