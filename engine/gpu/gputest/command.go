package gputest

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/vanta-engine/vanta/engine/gpu"
)

type CommandAllocator struct {
	commandType gpu.CommandType

	mu         sync.Mutex
	lists      []*CommandList
	ResetCount int
	destroyed  bool
}

func (a *CommandAllocator) CreateCommandList() (gpu.CommandList, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return nil, errors.New("command list created from destroyed allocator")
	}
	list := &CommandList{}
	a.lists = append(a.lists, list)
	return list, nil
}

func (a *CommandAllocator) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ResetCount++
	for _, list := range a.lists {
		list.reset()
	}
	return nil
}

func (a *CommandAllocator) Destroy() {
	a.mu.Lock()
	a.destroyed = true
	a.mu.Unlock()
}

// RecordedOp is one operation journaled on a command list.
type RecordedOp struct {
	Kind     string // "copy", "copyRegions", "barrier"
	Src, Dst *Buffer
	Regions  []gpu.BufferCopyRegion
	Barrier  *Buffer
	OldState gpu.ResourceState
	NewState gpu.ResourceState
}

type CommandList struct {
	mu        sync.Mutex
	recording bool
	ended     bool
	ops       []RecordedOp
}

func (l *CommandList) Begin() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.recording {
		return errors.New("begin on a command list already recording")
	}
	l.recording = true
	l.ended = false
	l.ops = nil
	return nil
}

func (l *CommandList) End() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.recording {
		return errors.New("end on a command list not recording")
	}
	l.recording = false
	l.ended = true
	return nil
}

func (l *CommandList) Copy(src, dst gpu.Buffer) {
	l.mu.Lock()
	l.ops = append(l.ops, RecordedOp{Kind: "copy", Src: src.(*Buffer), Dst: dst.(*Buffer)})
	l.mu.Unlock()
}

func (l *CommandList) CopyRegions(src, dst gpu.Buffer, regions []gpu.BufferCopyRegion) {
	copied := make([]gpu.BufferCopyRegion, len(regions))
	copy(copied, regions)
	l.mu.Lock()
	l.ops = append(l.ops, RecordedOp{Kind: "copyRegions", Src: src.(*Buffer), Dst: dst.(*Buffer), Regions: copied})
	l.mu.Unlock()
}

func (l *CommandList) Barrier(buffer gpu.Buffer, oldState, newState gpu.ResourceState) {
	l.mu.Lock()
	l.ops = append(l.ops, RecordedOp{Kind: "barrier", Barrier: buffer.(*Buffer), OldState: oldState, NewState: newState})
	l.mu.Unlock()
}

// Ops returns the journal of recorded operations.
func (l *CommandList) Ops() []RecordedOp {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]RecordedOp, len(l.ops))
	copy(out, l.ops)
	return out
}

func (l *CommandList) reset() {
	l.mu.Lock()
	l.recording = false
	l.ended = false
	l.ops = nil
	l.mu.Unlock()
}

// execute replays the recorded copies against the byte-slice buffers.
func (l *CommandList) execute() {
	for _, op := range l.Ops() {
		switch op.Kind {
		case "copy":
			data := op.Src.Bytes()
			op.Dst.Write(data, uint64(len(data)), 0)
		case "copyRegions":
			for _, region := range op.Regions {
				op.Dst.Write(op.Src.Read(region.SrcOffset, region.Size), region.Size, region.DstOffset)
			}
		}
	}
}
