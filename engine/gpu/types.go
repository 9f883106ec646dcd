package gpu

// BufferType selects the usage and memory placement of a backend buffer.
type BufferType int

const (
	BufferTypeVertex BufferType = iota
	BufferTypeIndex
	BufferTypeUniform
	BufferTypeStorage
	BufferTypeDeviceStorage
	BufferTypeReadWriteStorage
	BufferTypeIndirect
	BufferTypeBufferUpload
	BufferTypeBufferDownload
	BufferTypeImageUpload
	BufferTypeImageDownload
)

func (t BufferType) String() string {
	switch t {
	case BufferTypeVertex:
		return "VERTEX"
	case BufferTypeIndex:
		return "INDEX"
	case BufferTypeUniform:
		return "UNIFORM"
	case BufferTypeStorage:
		return "STORAGE"
	case BufferTypeDeviceStorage:
		return "DEVICE_STORAGE"
	case BufferTypeReadWriteStorage:
		return "READWRITE_STORAGE"
	case BufferTypeIndirect:
		return "INDIRECT"
	case BufferTypeBufferUpload:
		return "BUFFER_UPLOAD"
	case BufferTypeBufferDownload:
		return "BUFFER_DOWNLOAD"
	case BufferTypeImageUpload:
		return "IMAGE_UPLOAD"
	case BufferTypeImageDownload:
		return "IMAGE_DOWNLOAD"
	}
	return "UNKNOWN"
}

// HostVisible reports whether the CPU can write the buffer directly through a
// persistent mapping, without a staging hop.
func (t BufferType) HostVisible() bool {
	switch t {
	case BufferTypeUniform, BufferTypeStorage, BufferTypeBufferUpload,
		BufferTypeBufferDownload, BufferTypeImageUpload, BufferTypeImageDownload:
		return true
	}
	return false
}

// CommandType selects the hardware queue a command list is submitted to.
type CommandType int

const (
	CommandTypeGraphic CommandType = iota
	CommandTypeTransfer

	// Closed set; free-command pools are indexed by CommandType.
	commandTypeCount
)

func (t CommandType) String() string {
	if t == CommandTypeTransfer {
		return "TRANSFER"
	}
	return "GRAPHIC"
}

// ResourceState tracks the explicit usage state of a buffer for barriers.
type ResourceState int

const (
	ResourceStateUndefined ResourceState = iota
	ResourceStateCopySrc
	ResourceStateCopyDst
	ResourceStateShaderRead
)

func (s ResourceState) String() string {
	switch s {
	case ResourceStateCopySrc:
		return "COPY_SRC"
	case ResourceStateCopyDst:
		return "COPY_DST"
	case ResourceStateShaderRead:
		return "SHADER_READ"
	}
	return "UNDEFINED"
}

// BufferCopyRegion describes one region of a multi-region buffer copy.
type BufferCopyRegion struct {
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}
