package gpu

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/vanta-engine/vanta/engine/core"
)

// MemoryBlock is one allocated region of a memory array. InstanceIndex is the
// logical element index shaders use to address into the array.
type MemoryBlock struct {
	InstanceIndex uint64
	Offset        uint64
	Size          uint64
}

// MemoryArray is an arena allocator over a single fixed-capacity backend
// buffer holding fixed-stride instances. Allocation is first-fit over a
// free-block list; freed blocks are returned verbatim and never merged with
// their neighbours. Fragmentation over long alloc/free sequences of varying
// sizes is an accepted limitation, there is no defragmentation.
type MemoryArray struct {
	name         string
	instanceSize uint64
	buffer       Buffer

	mu         sync.Mutex
	freeBlocks []MemoryBlock
}

// NewMemoryArray creates the backing buffer and seeds the free list with one
// block spanning the whole capacity. Vertex and index buffers keep their
// instance size as the buffer stride; every other type is one flat blob.
func NewMemoryArray(backend Backend, instanceSize, instanceCount uint64, bufferType BufferType, name string) (*MemoryArray, error) {
	var buffer Buffer
	var err error
	if bufferType == BufferTypeVertex || bufferType == BufferTypeIndex {
		buffer, err = backend.CreateBuffer(bufferType, instanceSize, instanceCount, name)
	} else {
		buffer, err = backend.CreateBuffer(bufferType, instanceSize*instanceCount, 1, name)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create buffer for array %s", name)
	}
	return &MemoryArray{
		name:         name,
		instanceSize: instanceSize,
		buffer:       buffer,
		freeBlocks:   []MemoryBlock{{0, 0, instanceSize * instanceCount}},
	}, nil
}

func (a *MemoryArray) Name() string { return a.name }

func (a *MemoryArray) InstanceSize() uint64 { return a.instanceSize }

// Buffer exposes the backing buffer for binding by the render passes.
func (a *MemoryArray) Buffer() Buffer { return a.buffer }

// Alloc reserves instanceCount instances and returns their block. First-fit:
// the scan takes the first free block large enough, shrinking it from the
// front on a partial fit and removing it on an exact fit.
func (a *MemoryArray) Alloc(instanceCount uint64) (MemoryBlock, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	size := a.instanceSize * instanceCount
	for i := range a.freeBlocks {
		block := &a.freeBlocks[i]
		if block.Size >= size {
			result := MemoryBlock{
				InstanceIndex: block.Offset / a.instanceSize,
				Offset:        block.Offset,
				Size:          size,
			}
			if block.Size == size {
				a.freeBlocks = append(a.freeBlocks[:i], a.freeBlocks[i+1:]...)
			} else {
				block.Offset += size
				block.Size -= size
			}
			return result, nil
		}
	}
	return MemoryBlock{}, errors.Wrapf(core.ErrOutOfMemory, "array %s", a.name)
}

// Free returns the block to the free list verbatim, without coalescing.
func (a *MemoryArray) Free(block MemoryBlock) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.freeBlocks = append(a.freeBlocks, block)
}

// CopyTo records a whole-array copy into destination. The caller supplies the
// command list and is responsible for the barriers around the copy.
func (a *MemoryArray) CopyTo(list CommandList, destination *MemoryArray) {
	a.mu.Lock()
	defer a.mu.Unlock()
	list.Copy(a.buffer, destination.buffer)
}

func (a *MemoryArray) Destroy() {
	a.buffer.Destroy()
}

// CapacityBytes returns the total byte capacity of the array.
func (a *MemoryArray) CapacityBytes() uint64 {
	return a.buffer.Size()
}

// FreeBytes sums the free-block sizes.
func (a *MemoryArray) FreeBytes() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	var total uint64
	for _, block := range a.freeBlocks {
		total += block.Size
	}
	return total
}

// FreeBlocks snapshots the free-block list, in list order.
func (a *MemoryArray) FreeBlocks() []MemoryBlock {
	a.mu.Lock()
	defer a.mu.Unlock()
	blocks := make([]MemoryBlock, len(a.freeBlocks))
	copy(blocks, a.freeBlocks)
	return blocks
}
