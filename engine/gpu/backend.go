package gpu

// Backend is the capability set the engine requires from a graphics API:
// buffers, recorded command lists, queue submission and fences. Everything
// above this interface is API agnostic.
type Backend interface {
	// CreateBuffer allocates a backend buffer of elementSize*elementCount
	// bytes. Vertex and index buffers keep elementSize as their stride.
	CreateBuffer(bufferType BufferType, elementSize, elementCount uint64, name string) (Buffer, error)
	CreateCommandAllocator(commandType CommandType) (CommandAllocator, error)
	CreateFence(signaled bool) (Fence, error)
	GraphicQueue() SubmitQueue
	TransferQueue() SubmitQueue
	// HasDedicatedTransferQueue reports whether TransferQueue is a hardware
	// queue distinct from GraphicQueue.
	HasDedicatedTransferQueue() bool
	Shutdown() error
}

type Buffer interface {
	Name() string
	Type() BufferType
	Size() uint64
	// Map establishes a persistent CPU mapping. Only valid for host visible
	// buffer types.
	Map() error
	Unmap()
	// Write copies size bytes from src into the mapped buffer at offset.
	Write(src []byte, size, offset uint64)
	// Read copies size bytes out of the mapped buffer at offset.
	Read(offset, size uint64) []byte
	Destroy()
}

type CommandAllocator interface {
	CreateCommandList() (CommandList, error)
	// Reset recycles the allocator storage; every command list created from
	// it must have completed execution.
	Reset() error
	Destroy()
}

type CommandList interface {
	Begin() error
	End() error
	// Copy records a full-buffer copy from src into dst.
	Copy(src, dst Buffer)
	// CopyRegions records one copy command covering every region.
	CopyRegions(src, dst Buffer, regions []BufferCopyRegion)
	Barrier(buffer Buffer, oldState, newState ResourceState)
}

type SubmitQueue interface {
	// Submit hands the command lists to the hardware queue; fence is signaled
	// when the work completes.
	Submit(fence Fence, lists ...CommandList) error
}

type Fence interface {
	// Wait blocks until the fence is signaled. Waiting on a fence that was
	// created signaled and never reset returns immediately.
	Wait()
	Reset() error
	Destroy()
}
