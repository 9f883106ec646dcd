package resources

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/vanta-engine/vanta/engine/gpu"
)

// Image is a GPU resident pixel buffer. Decoding happens outside the engine;
// managers receive raw pixels.
type Image struct {
	Name      string
	Width     uint32
	Height    uint32
	PixelSize uint32

	buffer gpu.Buffer
}

func (i *Image) Buffer() gpu.Buffer { return i.buffer }
func (i *Image) SizeBytes() uint64  { return uint64(i.Width) * uint64(i.Height) * uint64(i.PixelSize) }

type ImageManagerConfig struct {
	Slots int
}

// ImageManager uploads pixels through transient staging buffers owned by the
// submission queue: the staging copy of an image lives exactly until the
// following submission proves the upload complete.
type ImageManager struct {
	mu      sync.Mutex
	table   *Table[Image]
	backend gpu.Backend
	queue   *gpu.AsyncQueue
}

func NewImageManager(backend gpu.Backend, queue *gpu.AsyncQueue, cfg ImageManagerConfig) *ImageManager {
	return &ImageManager{
		table:   NewTable[Image]("ImageManager", cfg.Slots),
		backend: backend,
		queue:   queue,
	}
}

func (m *ImageManager) Create(pixels []byte, width, height, pixelSize uint32, name string) (ID, error) {
	size := uint64(width) * uint64(height) * uint64(pixelSize)
	if size == 0 || uint64(len(pixels)) != size {
		return NilID, errors.Newf("image '%s': have %d pixel bytes, want %d", name, len(pixels), size)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.table.IsFull() {
		return NilID, errors.Newf("ImageManager: no more free slots (capacity %d)", m.table.Capacity())
	}

	destination, err := m.backend.CreateBuffer(gpu.BufferTypeDeviceStorage, uint64(pixelSize), uint64(width)*uint64(height), name)
	if err != nil {
		return NilID, err
	}

	command, err := m.queue.BeginCommand(gpu.CommandTypeTransfer)
	if err != nil {
		destination.Destroy()
		return NilID, err
	}
	staging, err := m.queue.CreateBuffer(command, gpu.BufferTypeImageUpload, 1, size)
	if err != nil {
		destination.Destroy()
		return NilID, err
	}
	if err := staging.Map(); err != nil {
		destination.Destroy()
		return NilID, err
	}
	staging.Write(pixels, size, 0)
	command.List.Copy(staging, destination)
	command.List.Barrier(destination, gpu.ResourceStateCopyDst, gpu.ResourceStateShaderRead)
	if err := m.queue.EndCommand(command, false); err != nil {
		destination.Destroy()
		return NilID, err
	}

	return m.table.Allocate(Image{
		Name:      name,
		Width:     width,
		Height:    height,
		PixelSize: pixelSize,
		buffer:    destination,
	})
}

func (m *ImageManager) Get(id ID) (*Image, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table.Get(id)
}

func (m *ImageManager) Use(id ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.table.Use(id)
}

// Destroy drops a reference and destroys the pixel buffer on the last one.
func (m *ImageManager) Destroy(id ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	image, ok := m.table.Get(id)
	if !ok {
		return false
	}
	if m.table.RefCount(id) <= 1 {
		image.buffer.Destroy()
	}
	return m.table.Release(id)
}

func (m *ImageManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table.Len()
}
