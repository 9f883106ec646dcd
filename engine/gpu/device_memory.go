package gpu

import (
	"github.com/cockroachdb/errors"

	"github.com/vanta-engine/vanta/engine/core"
)

// DeviceMemoryArray is a memory array in device-local memory the CPU cannot
// write directly. Writes land in a persistently mapped staging buffer and are
// batched into a single multi-region copy on the next Flush.
type DeviceMemoryArray struct {
	*MemoryArray

	stagingBuffer        Buffer
	stagingCapacity      uint64
	stagingCurrentOffset uint64
	stagingHighWater     uint64
	pendingWrites        []BufferCopyRegion
}

// NewDeviceMemoryArray creates the array plus a stagingInstanceCount-sized
// staging buffer. Only device-resident buffer types are valid here; host
// visible types belong in a HostVisibleMemoryArray.
func NewDeviceMemoryArray(backend Backend, instanceSize, instanceCount, stagingInstanceCount uint64, bufferType BufferType, name string) (*DeviceMemoryArray, error) {
	switch bufferType {
	case BufferTypeVertex, BufferTypeIndex, BufferTypeIndirect,
		BufferTypeDeviceStorage, BufferTypeReadWriteStorage:
	default:
		return nil, errors.Newf("invalid buffer type %s for device memory array %s", bufferType, name)
	}
	array, err := NewMemoryArray(backend, instanceSize, instanceCount, bufferType, name)
	if err != nil {
		return nil, err
	}
	staging, err := backend.CreateBuffer(BufferTypeBufferUpload, instanceSize*stagingInstanceCount, 1, "Staging "+name)
	if err != nil {
		array.Destroy()
		return nil, errors.Wrapf(err, "failed to create staging buffer for array %s", name)
	}
	if err := staging.Map(); err != nil {
		staging.Destroy()
		array.Destroy()
		return nil, errors.Wrapf(err, "failed to map staging buffer for array %s", name)
	}
	return &DeviceMemoryArray{
		MemoryArray:     array,
		stagingBuffer:   staging,
		stagingCapacity: instanceSize * stagingInstanceCount,
	}, nil
}

// Write stages destination.Size bytes of source for upload into the block.
// The bytes only reach device memory on the next Flush; until then they
// accumulate in the staging buffer, which must not overflow between flushes.
func (a *DeviceMemoryArray) Write(destination MemoryBlock, source []byte) error {
	if destination.Size == 0 {
		return errors.Newf("write size must be > 0 for array %s", a.name)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stagingCurrentOffset+destination.Size > a.stagingCapacity {
		return errors.Wrapf(core.ErrStagingOverflow,
			"array %s: %d pending + %d write > %d staging capacity",
			a.name, a.stagingCurrentOffset, destination.Size, a.stagingCapacity)
	}
	a.stagingBuffer.Write(source, destination.Size, a.stagingCurrentOffset)
	a.pendingWrites = append(a.pendingWrites, BufferCopyRegion{
		SrcOffset: a.stagingCurrentOffset,
		DstOffset: destination.Offset,
		Size:      destination.Size,
	})
	a.stagingCurrentOffset += destination.Size
	if a.stagingCurrentOffset > a.stagingHighWater {
		a.stagingHighWater = a.stagingCurrentOffset
	}
	core.MetricsAddStagedBytes(destination.Size)
	return nil
}

// Flush records one copy command covering every pending write and resets the
// staging cursor. A no-op when nothing is pending.
func (a *DeviceMemoryArray) Flush(list CommandList) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.pendingWrites) == 0 {
		return
	}
	list.CopyRegions(a.stagingBuffer, a.buffer, a.pendingWrites)
	core.MetricsAddFlushedBytes(a.stagingCurrentOffset)
	a.pendingWrites = nil
	a.stagingCurrentOffset = 0
}

// PostBarrier transitions the array from copy destination to shader readable.
// Must be recorded after the flushed copy and before any shader consumes the
// array.
func (a *DeviceMemoryArray) PostBarrier(list CommandList) {
	list.Barrier(a.buffer, ResourceStateCopyDst, ResourceStateShaderRead)
}

func (a *DeviceMemoryArray) Destroy() {
	a.stagingBuffer.Destroy()
	a.MemoryArray.Destroy()
}

// PendingWriteCount reports the writes staged since the last flush.
func (a *DeviceMemoryArray) PendingWriteCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pendingWrites)
}

// StagingOffset reports the current staging cursor.
func (a *DeviceMemoryArray) StagingOffset() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stagingCurrentOffset
}
