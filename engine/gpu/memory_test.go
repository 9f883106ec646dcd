package gpu_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanta-engine/vanta/engine/gpu"
	"github.com/vanta-engine/vanta/engine/gpu/gputest"
)

func newTestArray(t *testing.T, instanceSize, instanceCount uint64) *gpu.MemoryArray {
	t.Helper()
	backend := gputest.NewBackend(true)
	array, err := gpu.NewMemoryArray(backend, instanceSize, instanceCount, gpu.BufferTypeDeviceStorage, "test array")
	require.NoError(t, err)
	return array
}

func TestAllocFirstFit(t *testing.T) {
	array := newTestArray(t, 1, 250)

	a, err := array.Alloc(100)
	require.NoError(t, err)
	_, err = array.Alloc(100)
	require.NoError(t, err)
	c, err := array.Alloc(50)
	require.NoError(t, err)

	array.Free(a)
	array.Free(c)
	require.Equal(t, []gpu.MemoryBlock{
		{InstanceIndex: 0, Offset: 0, Size: 100},
		{InstanceIndex: 200, Offset: 200, Size: 50},
	}, array.FreeBlocks())

	// First fit takes the 100-byte block at offset 0, not the exact 50-byte
	// block at 200.
	block, err := array.Alloc(50)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), block.Offset)
	assert.Equal(t, uint64(50), block.Size)
}

func TestAllocExactFitRemovesBlock(t *testing.T) {
	array := newTestArray(t, 1, 100)

	// Exact fit consumes the only free block entirely.
	block, err := array.Alloc(100)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), block.Offset)
	assert.Empty(t, array.FreeBlocks())

	array.Free(block)
	require.Len(t, array.FreeBlocks(), 1)

	// Partial fit shrinks the block in place from the front.
	_, err = array.Alloc(30)
	require.NoError(t, err)
	free := array.FreeBlocks()
	require.Len(t, free, 1)
	assert.Equal(t, uint64(30), free[0].Offset)
	assert.Equal(t, uint64(70), free[0].Size)
}

func TestAllocInstanceIndex(t *testing.T) {
	array := newTestArray(t, 16, 64)
	_, err := array.Alloc(3)
	require.NoError(t, err)
	block, err := array.Alloc(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), block.InstanceIndex)
	assert.Equal(t, uint64(48), block.Offset)
	assert.Equal(t, uint64(32), block.Size)
}

func TestAllocOutOfMemory(t *testing.T) {
	array := newTestArray(t, 4, 8)
	_, err := array.Alloc(9)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test array")
}

func TestArenaConservation(t *testing.T) {
	const capacity = 1024
	array := newTestArray(t, 1, capacity)

	var held []gpu.MemoryBlock
	heldBytes := uint64(0)
	allocate := func(n uint64) {
		block, err := array.Alloc(n)
		require.NoError(t, err)
		held = append(held, block)
		heldBytes += block.Size
	}
	release := func(i int) {
		array.Free(held[i])
		heldBytes -= held[i].Size
		held = append(held[:i], held[i+1:]...)
	}

	allocate(100)
	allocate(200)
	allocate(50)
	release(1)
	allocate(80)
	allocate(120)
	release(0)
	release(2)
	allocate(30)

	assert.Equal(t, uint64(capacity), heldBytes+array.FreeBytes())
	assert.Equal(t, uint64(capacity), array.CapacityBytes())
}

func TestFreeDoesNotCoalesce(t *testing.T) {
	array := newTestArray(t, 1, 100)
	a, err := array.Alloc(40)
	require.NoError(t, err)
	b, err := array.Alloc(60)
	require.NoError(t, err)
	array.Free(a)
	array.Free(b)
	// Adjacent blocks stay split; a 100-byte allocation no longer fits.
	assert.Len(t, array.FreeBlocks(), 2)
	_, err = array.Alloc(100)
	assert.Error(t, err)
}

func TestCopyToRecordsWholeArrayCopy(t *testing.T) {
	backend := gputest.NewBackend(true)
	src, err := gpu.NewMemoryArray(backend, 4, 16, gpu.BufferTypeDeviceStorage, "src")
	require.NoError(t, err)
	dst, err := gpu.NewMemoryArray(backend, 4, 16, gpu.BufferTypeDeviceStorage, "dst")
	require.NoError(t, err)

	allocator, err := backend.CreateCommandAllocator(gpu.CommandTypeTransfer)
	require.NoError(t, err)
	list, err := allocator.CreateCommandList()
	require.NoError(t, err)
	require.NoError(t, list.Begin())
	src.CopyTo(list, dst)
	require.NoError(t, list.End())

	ops := list.(*gputest.CommandList).Ops()
	require.Len(t, ops, 1)
	assert.Equal(t, "copy", ops[0].Kind)
}

func TestDeviceArrayRejectsHostVisibleTypes(t *testing.T) {
	backend := gputest.NewBackend(true)
	_, err := gpu.NewDeviceMemoryArray(backend, 4, 16, 16, gpu.BufferTypeUniform, "bad")
	assert.Error(t, err)
	_, err = gpu.NewHostVisibleMemoryArray(backend, 4, 16, gpu.BufferTypeVertex, "bad")
	assert.Error(t, err)
}

func TestDeviceArrayWriteFlushRoundTrip(t *testing.T) {
	backend := gputest.NewBackend(true)
	array, err := gpu.NewDeviceMemoryArray(backend, 1, 256, 256, gpu.BufferTypeDeviceStorage, "mesh data")
	require.NoError(t, err)

	block, err := array.Alloc(64)
	require.NoError(t, err)
	payload := bytes.Repeat([]byte{0xAA}, 64)
	require.NoError(t, array.Write(block, payload))

	allocator, err := backend.CreateCommandAllocator(gpu.CommandTypeTransfer)
	require.NoError(t, err)
	list, err := allocator.CreateCommandList()
	require.NoError(t, err)
	require.NoError(t, list.Begin())
	array.Flush(list)
	array.PostBarrier(list)
	require.NoError(t, list.End())

	mockList := list.(*gputest.CommandList)
	mockList.Ops() // recorded, not yet executed
	require.NoError(t, backend.TransferQueue().Submit(mustFence(t, backend), list))

	device := array.Buffer().(*gputest.Buffer)
	assert.Equal(t, payload, device.Bytes()[:64])

	ops := mockList.Ops()
	require.Len(t, ops, 2)
	assert.Equal(t, "copyRegions", ops[0].Kind)
	assert.Equal(t, "barrier", ops[1].Kind)
	assert.Equal(t, gpu.ResourceStateCopyDst, ops[1].OldState)
	assert.Equal(t, gpu.ResourceStateShaderRead, ops[1].NewState)
}

func TestDeviceArrayPendingWriteBatching(t *testing.T) {
	backend := gputest.NewBackend(true)
	array, err := gpu.NewDeviceMemoryArray(backend, 1, 256, 256, gpu.BufferTypeDeviceStorage, "batched")
	require.NoError(t, err)

	blocks := make([]gpu.MemoryBlock, 3)
	for i := range blocks {
		block, err := array.Alloc(16)
		require.NoError(t, err)
		blocks[i] = block
		require.NoError(t, array.Write(block, bytes.Repeat([]byte{byte(i + 1)}, 16)))
	}
	require.Equal(t, 3, array.PendingWriteCount())
	require.Equal(t, uint64(48), array.StagingOffset())

	allocator, err := backend.CreateCommandAllocator(gpu.CommandTypeTransfer)
	require.NoError(t, err)
	list, err := allocator.CreateCommandList()
	require.NoError(t, err)
	require.NoError(t, list.Begin())
	array.Flush(list)
	require.NoError(t, list.End())

	// Exactly one multi-region copy carrying the three regions.
	ops := list.(*gputest.CommandList).Ops()
	require.Len(t, ops, 1)
	assert.Equal(t, "copyRegions", ops[0].Kind)
	assert.Len(t, ops[0].Regions, 3)
	assert.Equal(t, 0, array.PendingWriteCount())
	assert.Equal(t, uint64(0), array.StagingOffset())

	// A second flush with nothing pending records nothing.
	require.NoError(t, list.Begin())
	array.Flush(list)
	require.NoError(t, list.End())
	assert.Empty(t, list.(*gputest.CommandList).Ops())
}

func TestDeviceArrayStagingOverflow(t *testing.T) {
	backend := gputest.NewBackend(true)
	array, err := gpu.NewDeviceMemoryArray(backend, 1, 256, 32, gpu.BufferTypeDeviceStorage, "tiny staging")
	require.NoError(t, err)

	block, err := array.Alloc(64)
	require.NoError(t, err)
	first := gpu.MemoryBlock{InstanceIndex: block.InstanceIndex, Offset: block.Offset, Size: 32}
	require.NoError(t, array.Write(first, bytes.Repeat([]byte{1}, 32)))

	err = array.Write(gpu.MemoryBlock{Offset: block.Offset + 32, Size: 32}, bytes.Repeat([]byte{2}, 32))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "staging buffer overflow")

	// Zero-size writes are a caller bug.
	assert.Error(t, array.Write(gpu.MemoryBlock{}, nil))
}

func TestHostVisibleArrayDirectWrite(t *testing.T) {
	backend := gputest.NewBackend(true)
	array, err := gpu.NewHostVisibleMemoryArray(backend, 1, 128, gpu.BufferTypeUniform, "uniforms")
	require.NoError(t, err)

	block, err := array.Alloc(32)
	require.NoError(t, err)
	payload := bytes.Repeat([]byte{0x5C}, 32)
	array.Write(block, payload)

	device := array.Buffer().(*gputest.Buffer)
	assert.Equal(t, payload, device.Bytes()[block.Offset:block.Offset+32])
}

func TestDeviceArrayStatsJSON(t *testing.T) {
	backend := gputest.NewBackend(true)
	array, err := gpu.NewDeviceMemoryArray(backend, 1, 128, 64, gpu.BufferTypeDeviceStorage, "stats")
	require.NoError(t, err)

	block, err := array.Alloc(48)
	require.NoError(t, err)
	require.NoError(t, array.Write(block, bytes.Repeat([]byte{3}, 48)))

	out, err := array.StatsString()
	require.NoError(t, err)

	var stats struct {
		Name           string
		CapacityBytes  int
		AllocatedBytes int
		FreeBlocks     []struct{ Offset, Size int }
		PendingWrites  int
	}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, "stats", stats.Name)
	assert.Equal(t, 128, stats.CapacityBytes)
	assert.Equal(t, 48, stats.AllocatedBytes)
	require.Len(t, stats.FreeBlocks, 1)
	assert.Equal(t, 48, stats.FreeBlocks[0].Offset)
	assert.Equal(t, 1, stats.PendingWrites)
}

func mustFence(t *testing.T, backend *gputest.Backend) gpu.Fence {
	t.Helper()
	fence, err := backend.CreateFence(false)
	require.NoError(t, err)
	return fence
}
