package resources

import (
	"encoding/binary"
	gomath "math"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/vanta-engine/vanta/engine/gpu"
	"github.com/vanta-engine/vanta/engine/math"
)

// GPU vertex layout: three float4 attributes. Position and normal carry the
// UV in their w components.
const VertexStride = 48

const meshSurfaceStride = 16

type Vertex struct {
	Position math.Vec3
	Normal   math.Vec3
	UV       math.Vec2
	Tangent  math.Vec4
}

// MeshSurface is one draw range of a mesh: IndexCount indices starting at
// FirstIndex, shaded with Material.
type MeshSurface struct {
	FirstIndex uint32
	IndexCount uint32
	Material   ID
}

type Mesh struct {
	Name     string
	Vertices []Vertex
	Indices  []uint32
	Surfaces []MeshSurface

	aabb math.Extents3D

	uploaded      bool
	verticesBlock gpu.MemoryBlock
	indicesBlock  gpu.MemoryBlock
	surfacesBlock gpu.MemoryBlock
}

func (m *Mesh) AABB() math.Extents3D { return m.aabb }
func (m *Mesh) Uploaded() bool       { return m.uploaded }

// VerticesBlock is only valid after the mesh has been flushed.
func (m *Mesh) VerticesBlock() gpu.MemoryBlock { return m.verticesBlock }
func (m *Mesh) IndicesBlock() gpu.MemoryBlock  { return m.indicesBlock }
func (m *Mesh) SurfacesBlock() gpu.MemoryBlock { return m.surfacesBlock }

func (m *Mesh) buildAABB() {
	lower := math.Vec3{X: gomath.MaxFloat32, Y: gomath.MaxFloat32, Z: gomath.MaxFloat32}
	upper := math.Vec3{X: -gomath.MaxFloat32, Y: -gomath.MaxFloat32, Z: -gomath.MaxFloat32}
	for _, index := range m.Indices {
		position := m.Vertices[index].Position
		lower.X = min(lower.X, position.X)
		lower.Y = min(lower.Y, position.Y)
		lower.Z = min(lower.Z, position.Z)
		upper.X = max(upper.X, position.X)
		upper.Y = max(upper.Y, position.Y)
		upper.Z = max(upper.Z, position.Z)
	}
	m.aabb = math.Extents3D{Min: lower, Max: upper}
}

type MeshManagerConfig struct {
	// Slot count of the CPU side table.
	Slots int
	// Instance counts of the three GPU arrays.
	VertexCapacity  uint64
	IndexCapacity   uint64
	SurfaceCapacity uint64
	// Staging instance counts, bounding how much one flush can move.
	VertexStagingCapacity  uint64
	IndexStagingCapacity   uint64
	SurfaceStagingCapacity uint64
}

// MeshManager keeps every mesh's geometry in three shared GPU arrays: packed
// vertices, indices and per surface draw records. Meshes allocate blocks out
// of the arrays on their first flush and give them back on destruction.
type MeshManager struct {
	mu        sync.Mutex
	table     *Table[Mesh]
	materials *MaterialManager

	vertexArray  *gpu.DeviceMemoryArray
	indexArray   *gpu.DeviceMemoryArray
	surfaceArray *gpu.DeviceMemoryArray

	needUpload map[ID]struct{}
}

func NewMeshManager(backend gpu.Backend, materials *MaterialManager, cfg MeshManagerConfig) (*MeshManager, error) {
	vertexArray, err := gpu.NewDeviceMemoryArray(
		backend,
		VertexStride,
		cfg.VertexCapacity,
		cfg.VertexStagingCapacity,
		gpu.BufferTypeVertex,
		"Vertex Array")
	if err != nil {
		return nil, err
	}
	indexArray, err := gpu.NewDeviceMemoryArray(
		backend,
		4,
		cfg.IndexCapacity,
		cfg.IndexStagingCapacity,
		gpu.BufferTypeIndex,
		"Index Array")
	if err != nil {
		vertexArray.Destroy()
		return nil, err
	}
	surfaceArray, err := gpu.NewDeviceMemoryArray(
		backend,
		meshSurfaceStride,
		cfg.SurfaceCapacity,
		cfg.SurfaceStagingCapacity,
		gpu.BufferTypeDeviceStorage,
		"MeshSurface Array")
	if err != nil {
		vertexArray.Destroy()
		indexArray.Destroy()
		return nil, err
	}
	return &MeshManager{
		table:        NewTable[Mesh]("MeshManager", cfg.Slots),
		materials:    materials,
		vertexArray:  vertexArray,
		indexArray:   indexArray,
		surfaceArray: surfaceArray,
		needUpload:   make(map[ID]struct{}),
	}, nil
}

func (m *MeshManager) Create(vertices []Vertex, indices []uint32, surfaces []MeshSurface, name string) (ID, error) {
	if len(vertices) == 0 || len(indices) == 0 || len(surfaces) == 0 {
		return NilID, errors.Newf("mesh '%s' needs vertices, indices and at least one surface", name)
	}
	mesh := Mesh{
		Name:     name,
		Vertices: vertices,
		Indices:  indices,
		Surfaces: surfaces,
	}
	mesh.buildAABB()

	m.mu.Lock()
	defer m.mu.Unlock()
	id, err := m.table.Allocate(mesh)
	if err != nil {
		return NilID, err
	}
	for _, surface := range surfaces {
		m.materials.Use(surface.Material)
	}
	m.needUpload[id] = struct{}{}
	return id, nil
}

func (m *MeshManager) Get(id ID) (*Mesh, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table.Get(id)
}

func (m *MeshManager) Use(id ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.table.Use(id)
}

// MarkDirty schedules a re-upload, after surface or vertex edits.
func (m *MeshManager) MarkDirty(id ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.table.Get(id); ok {
		m.needUpload[id] = struct{}{}
	}
}

// Destroy drops a reference. On the last one the mesh gives its array blocks
// back and releases its surface materials.
func (m *MeshManager) Destroy(id ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	mesh, ok := m.table.Get(id)
	if !ok {
		return false
	}
	if m.table.RefCount(id) <= 1 {
		if mesh.uploaded {
			m.vertexArray.Free(mesh.verticesBlock)
			m.indexArray.Free(mesh.indicesBlock)
			m.surfaceArray.Free(mesh.surfacesBlock)
		}
		for _, surface := range mesh.Surfaces {
			m.materials.Destroy(surface.Material)
		}
	}
	delete(m.needUpload, id)
	return m.table.Release(id)
}

func (m *MeshManager) Dirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.needUpload) > 0
}

// Flush stages every pending mesh and records the three array copies plus
// their shader-read barriers into list.
func (m *MeshManager) Flush(list gpu.CommandList) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.needUpload) == 0 {
		return nil
	}
	for id := range m.needUpload {
		mesh, ok := m.table.Get(id)
		if !ok {
			continue
		}
		if err := m.stageMesh(mesh); err != nil {
			return errors.Wrapf(err, "failed to stage mesh '%s'", mesh.Name)
		}
	}
	m.needUpload = make(map[ID]struct{})

	m.vertexArray.Flush(list)
	m.indexArray.Flush(list)
	m.surfaceArray.Flush(list)
	m.vertexArray.PostBarrier(list)
	m.indexArray.PostBarrier(list)
	m.surfaceArray.PostBarrier(list)
	return nil
}

func (m *MeshManager) stageMesh(mesh *Mesh) error {
	if !mesh.uploaded {
		var err error
		if mesh.verticesBlock, err = m.vertexArray.Alloc(uint64(len(mesh.Vertices))); err != nil {
			return err
		}
		if mesh.indicesBlock, err = m.indexArray.Alloc(uint64(len(mesh.Indices))); err != nil {
			return err
		}
		if mesh.surfacesBlock, err = m.surfaceArray.Alloc(uint64(len(mesh.Surfaces))); err != nil {
			return err
		}
		mesh.uploaded = true
	}

	if err := m.vertexArray.Write(mesh.verticesBlock, packVertices(mesh.Vertices)); err != nil {
		return err
	}
	if err := m.indexArray.Write(mesh.indicesBlock, packIndices(mesh.Indices)); err != nil {
		return err
	}

	surfaceData := make([]byte, len(mesh.Surfaces)*meshSurfaceStride)
	for i, surface := range mesh.Surfaces {
		materialIndex, err := m.materials.InstanceIndex(surface.Material)
		if err != nil {
			return err
		}
		offset := i * meshSurfaceStride
		binary.LittleEndian.PutUint32(surfaceData[offset:], surface.IndexCount)
		binary.LittleEndian.PutUint32(surfaceData[offset+4:], uint32(mesh.indicesBlock.InstanceIndex)+surface.FirstIndex)
		binary.LittleEndian.PutUint32(surfaceData[offset+8:], uint32(mesh.verticesBlock.InstanceIndex))
		binary.LittleEndian.PutUint32(surfaceData[offset+12:], materialIndex)
	}
	return m.surfaceArray.Write(mesh.surfacesBlock, surfaceData)
}

func (m *MeshManager) VertexArray() *gpu.DeviceMemoryArray  { return m.vertexArray }
func (m *MeshManager) IndexArray() *gpu.DeviceMemoryArray   { return m.indexArray }
func (m *MeshManager) SurfaceArray() *gpu.DeviceMemoryArray { return m.surfaceArray }

func (m *MeshManager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vertexArray.Destroy()
	m.indexArray.Destroy()
	m.surfaceArray.Destroy()
}

func packVertices(vertices []Vertex) []byte {
	data := make([]byte, len(vertices)*VertexStride)
	for i, v := range vertices {
		offset := i * VertexStride
		putFloat32(data, offset, v.Position.X)
		putFloat32(data, offset+4, v.Position.Y)
		putFloat32(data, offset+8, v.Position.Z)
		putFloat32(data, offset+12, v.UV.X)
		putFloat32(data, offset+16, v.Normal.X)
		putFloat32(data, offset+20, v.Normal.Y)
		putFloat32(data, offset+24, v.Normal.Z)
		putFloat32(data, offset+28, v.UV.Y)
		putFloat32(data, offset+32, v.Tangent.X)
		putFloat32(data, offset+36, v.Tangent.Y)
		putFloat32(data, offset+40, v.Tangent.Z)
		putFloat32(data, offset+44, v.Tangent.W)
	}
	return data
}

func packIndices(indices []uint32) []byte {
	data := make([]byte, len(indices)*4)
	for i, index := range indices {
		binary.LittleEndian.PutUint32(data[i*4:], index)
	}
	return data
}

func putFloat32(data []byte, offset int, value float32) {
	binary.LittleEndian.PutUint32(data[offset:], gomath.Float32bits(value))
}
