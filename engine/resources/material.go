package resources

import (
	"encoding/binary"
	gomath "math"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/vanta-engine/vanta/engine/gpu"
	"github.com/vanta-engine/vanta/engine/math"
)

const MaterialParameterCount = 4

// GPU layout of one material table entry: pipeline id at offset 0, four
// float4 parameters at offset 16.
const materialStride = 80

type Material struct {
	Name       string
	Pipeline   uint32
	Parameters [MaterialParameterCount]math.Vec4

	uploaded bool
	block    gpu.MemoryBlock
}

type MaterialManagerConfig struct {
	// Slot count of the CPU side table.
	Slots int
	// Entry counts of the GPU material table and its staging buffer.
	TableCapacity   uint64
	StagingCapacity uint64
}

// MaterialManager owns the GPU resident material table. Every material is one
// entry; shaders index the table with the instance index of the entry.
type MaterialManager struct {
	mu    sync.Mutex
	table *Table[Material]
	array *gpu.DeviceMemoryArray

	needUpload map[ID]struct{}
}

func NewMaterialManager(backend gpu.Backend, cfg MaterialManagerConfig) (*MaterialManager, error) {
	array, err := gpu.NewDeviceMemoryArray(
		backend,
		materialStride,
		cfg.TableCapacity,
		cfg.StagingCapacity,
		gpu.BufferTypeDeviceStorage,
		"Global material array")
	if err != nil {
		return nil, err
	}
	return &MaterialManager{
		table:      NewTable[Material]("MaterialManager", cfg.Slots),
		array:      array,
		needUpload: make(map[ID]struct{}),
	}, nil
}

func (m *MaterialManager) Create(name string, pipeline uint32) (ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, err := m.table.Allocate(Material{Name: name, Pipeline: pipeline})
	if err != nil {
		return NilID, err
	}
	m.needUpload[id] = struct{}{}
	return id, nil
}

func (m *MaterialManager) Get(id ID) (*Material, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table.Get(id)
}

func (m *MaterialManager) Use(id ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.table.Use(id)
}

func (m *MaterialManager) SetParameter(id ID, index int, value math.Vec4) error {
	if index < 0 || index >= MaterialParameterCount {
		return errors.Newf("material parameter index %d out of range", index)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	material, ok := m.table.Get(id)
	if !ok {
		return errors.Newf("unknown material %s", id)
	}
	material.Parameters[index] = value
	m.needUpload[id] = struct{}{}
	return nil
}

// Destroy drops a reference. The table entry is freed on the last one.
func (m *MaterialManager) Destroy(id ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if material, ok := m.table.Get(id); ok && m.table.RefCount(id) <= 1 && material.uploaded {
		m.array.Free(material.block)
	}
	delete(m.needUpload, id)
	return m.table.Release(id)
}

// InstanceIndex returns the material's index in the GPU table, allocating its
// entry if it never was uploaded. Callers that pack the index into other GPU
// data mark the material for upload this way.
func (m *MaterialManager) InstanceIndex(id ID) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.instanceIndexLocked(id)
}

func (m *MaterialManager) instanceIndexLocked(id ID) (uint32, error) {
	material, ok := m.table.Get(id)
	if !ok {
		return 0, errors.Newf("unknown material %s", id)
	}
	if !material.uploaded {
		block, err := m.array.Alloc(1)
		if err != nil {
			return 0, err
		}
		material.block = block
		material.uploaded = true
		m.needUpload[id] = struct{}{}
	}
	return uint32(material.block.InstanceIndex), nil
}

func (m *MaterialManager) Dirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.needUpload) > 0
}

// Flush stages every pending material entry and records the copy plus the
// shader-read barrier into list.
func (m *MaterialManager) Flush(list gpu.CommandList) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.needUpload) == 0 {
		return nil
	}
	for id := range m.needUpload {
		if _, err := m.instanceIndexLocked(id); err != nil {
			return err
		}
		material, _ := m.table.Get(id)
		if err := m.array.Write(material.block, packMaterial(material)); err != nil {
			return err
		}
	}
	m.needUpload = make(map[ID]struct{})
	m.array.Flush(list)
	m.array.PostBarrier(list)
	return nil
}

func (m *MaterialManager) Array() *gpu.DeviceMemoryArray { return m.array }

func (m *MaterialManager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.array.Destroy()
}

func packMaterial(material *Material) []byte {
	data := make([]byte, materialStride)
	binary.LittleEndian.PutUint32(data, material.Pipeline)
	for i, parameter := range material.Parameters {
		offset := 16 + i*16
		binary.LittleEndian.PutUint32(data[offset:], gomath.Float32bits(parameter.X))
		binary.LittleEndian.PutUint32(data[offset+4:], gomath.Float32bits(parameter.Y))
		binary.LittleEndian.PutUint32(data[offset+8:], gomath.Float32bits(parameter.Z))
		binary.LittleEndian.PutUint32(data[offset+12:], gomath.Float32bits(parameter.W))
	}
	return data
}
