package gpu

import (
	"github.com/cockroachdb/errors"
)

// HostVisibleMemoryArray is a memory array the CPU writes directly through a
// persistent mapping; there is no staging hop and no flush step.
type HostVisibleMemoryArray struct {
	*MemoryArray
}

func NewHostVisibleMemoryArray(backend Backend, instanceSize, instanceCount uint64, bufferType BufferType, name string) (*HostVisibleMemoryArray, error) {
	switch bufferType {
	case BufferTypeUniform, BufferTypeStorage, BufferTypeBufferUpload,
		BufferTypeImageUpload, BufferTypeImageDownload:
	default:
		return nil, errors.Newf("invalid buffer type %s for host visible memory array %s", bufferType, name)
	}
	array, err := NewMemoryArray(backend, instanceSize, instanceCount, bufferType, name)
	if err != nil {
		return nil, err
	}
	if err := array.buffer.Map(); err != nil {
		array.Destroy()
		return nil, errors.Wrapf(err, "failed to map buffer for array %s", name)
	}
	return &HostVisibleMemoryArray{MemoryArray: array}, nil
}

// Write copies destination.Size bytes straight into the mapped buffer.
func (a *HostVisibleMemoryArray) Write(destination MemoryBlock, source []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buffer.Write(source, destination.Size, destination.Offset)
}
