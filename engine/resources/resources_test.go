package resources_test

import (
	"encoding/binary"
	gomath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanta-engine/vanta/engine/gpu"
	"github.com/vanta-engine/vanta/engine/gpu/gputest"
	"github.com/vanta-engine/vanta/engine/math"
	"github.com/vanta-engine/vanta/engine/resources"
)

func newManagers(t *testing.T) (*gputest.Backend, *gpu.AsyncQueue, *resources.MaterialManager, *resources.MeshManager) {
	t.Helper()
	backend := gputest.NewBackend(false)
	queue, err := gpu.NewAsyncQueue(backend)
	require.NoError(t, err)
	t.Cleanup(queue.Close)

	materials, err := resources.NewMaterialManager(backend, resources.MaterialManagerConfig{
		Slots:           16,
		TableCapacity:   16,
		StagingCapacity: 16,
	})
	require.NoError(t, err)
	meshes, err := resources.NewMeshManager(backend, materials, resources.MeshManagerConfig{
		Slots:                  16,
		VertexCapacity:         256,
		IndexCapacity:          512,
		SurfaceCapacity:        32,
		VertexStagingCapacity:  256,
		IndexStagingCapacity:   512,
		SurfaceStagingCapacity: 32,
	})
	require.NoError(t, err)
	return backend, queue, materials, meshes
}

// flush records every dirty manager into one transfer command and submits it
// synchronously.
func flush(t *testing.T, queue *gpu.AsyncQueue, materials *resources.MaterialManager, meshes *resources.MeshManager) {
	t.Helper()
	command, err := queue.BeginCommand(gpu.CommandTypeTransfer)
	require.NoError(t, err)
	require.NoError(t, materials.Flush(command.List))
	require.NoError(t, meshes.Flush(command.List))
	require.NoError(t, queue.EndCommand(command, true))
}

func quadMesh(material resources.ID) ([]resources.Vertex, []uint32, []resources.MeshSurface) {
	vertices := []resources.Vertex{
		{Position: math.Vec3{X: -1, Y: -1}, Normal: math.Vec3{Z: 1}, UV: math.Vec2{}},
		{Position: math.Vec3{X: 1, Y: -1}, Normal: math.Vec3{Z: 1}, UV: math.Vec2{X: 1}},
		{Position: math.Vec3{X: 1, Y: 1}, Normal: math.Vec3{Z: 1}, UV: math.Vec2{X: 1, Y: 1}},
		{Position: math.Vec3{X: -1, Y: 1}, Normal: math.Vec3{Z: 1}, UV: math.Vec2{Y: 1}},
	}
	indices := []uint32{0, 1, 2, 2, 3, 0}
	surfaces := []resources.MeshSurface{{FirstIndex: 0, IndexCount: 6, Material: material}}
	return vertices, indices, surfaces
}

func TestTableSlotLifecycle(t *testing.T) {
	table := resources.NewTable[string]("test", 2)

	first, err := table.Allocate("a")
	require.NoError(t, err)
	second, err := table.Allocate("b")
	require.NoError(t, err)
	assert.True(t, table.IsFull())

	_, err = table.Allocate("c")
	assert.Error(t, err)

	table.Use(first)
	assert.Equal(t, 2, table.RefCount(first))
	assert.False(t, table.Release(first))
	assert.True(t, table.Release(first))
	_, ok := table.Get(first)
	assert.False(t, ok)

	// The freed slot is reusable, the old id is not.
	third, err := table.Allocate("d")
	require.NoError(t, err)
	assert.NotEqual(t, first, third)

	value, ok := table.Get(second)
	require.True(t, ok)
	assert.Equal(t, "b", *value)
}

func TestMaterialFlushWritesTableEntry(t *testing.T) {
	_, queue, materials, meshes := newManagers(t)

	id, err := materials.Create("metal", 7)
	require.NoError(t, err)
	require.NoError(t, materials.SetParameter(id, 1, math.Vec4{X: 0.25, Y: 0.5, Z: 0.75, W: 1}))
	assert.True(t, materials.Dirty())

	flush(t, queue, materials, meshes)
	assert.False(t, materials.Dirty())

	index, err := materials.InstanceIndex(id)
	require.NoError(t, err)
	table := materials.Array().Buffer().(*gputest.Buffer).Bytes()
	base := int(index) * 80
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(table[base:]))
	parameter := base + 16 + 1*16
	assert.Equal(t, float32(0.25), gomath.Float32frombits(binary.LittleEndian.Uint32(table[parameter:])))
	assert.Equal(t, float32(1), gomath.Float32frombits(binary.LittleEndian.Uint32(table[parameter+12:])))
}

func TestMeshFlushPacksGeometry(t *testing.T) {
	_, queue, materials, meshes := newManagers(t)

	material, err := materials.Create("default", 1)
	require.NoError(t, err)
	vertices, indices, surfaces := quadMesh(material)
	id, err := meshes.Create(vertices, indices, surfaces, "quad")
	require.NoError(t, err)
	assert.True(t, meshes.Dirty())

	flush(t, queue, materials, meshes)
	assert.False(t, meshes.Dirty())

	mesh, ok := meshes.Get(id)
	require.True(t, ok)
	require.True(t, mesh.Uploaded())

	// Vertex 1: position.xyz + uv.x, normal.xyz + uv.y, tangent.
	vertexData := meshes.VertexArray().Buffer().(*gputest.Buffer).Bytes()
	base := int(mesh.VerticesBlock().Offset) + 1*resources.VertexStride
	assert.Equal(t, float32(1), gomath.Float32frombits(binary.LittleEndian.Uint32(vertexData[base:])))
	assert.Equal(t, float32(-1), gomath.Float32frombits(binary.LittleEndian.Uint32(vertexData[base+4:])))
	assert.Equal(t, float32(1), gomath.Float32frombits(binary.LittleEndian.Uint32(vertexData[base+12:])))
	assert.Equal(t, float32(1), gomath.Float32frombits(binary.LittleEndian.Uint32(vertexData[base+24:])))

	indexData := meshes.IndexArray().Buffer().(*gputest.Buffer).Bytes()
	indexBase := int(mesh.IndicesBlock().Offset)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(indexData[indexBase+8:]))

	materialIndex, err := materials.InstanceIndex(material)
	require.NoError(t, err)
	surfaceData := meshes.SurfaceArray().Buffer().(*gputest.Buffer).Bytes()
	surfaceBase := int(mesh.SurfacesBlock().Offset)
	assert.Equal(t, uint32(6), binary.LittleEndian.Uint32(surfaceData[surfaceBase:]))
	assert.Equal(t, uint32(mesh.IndicesBlock().InstanceIndex), binary.LittleEndian.Uint32(surfaceData[surfaceBase+4:]))
	assert.Equal(t, uint32(mesh.VerticesBlock().InstanceIndex), binary.LittleEndian.Uint32(surfaceData[surfaceBase+8:]))
	assert.Equal(t, materialIndex, binary.LittleEndian.Uint32(surfaceData[surfaceBase+12:]))
}

func TestMeshAABB(t *testing.T) {
	_, _, materials, meshes := newManagers(t)

	material, err := materials.Create("default", 1)
	require.NoError(t, err)
	vertices, indices, surfaces := quadMesh(material)
	id, err := meshes.Create(vertices, indices, surfaces, "quad")
	require.NoError(t, err)

	mesh, ok := meshes.Get(id)
	require.True(t, ok)
	aabb := mesh.AABB()
	assert.Equal(t, math.Vec3{X: -1, Y: -1, Z: 0}, aabb.Min)
	assert.Equal(t, math.Vec3{X: 1, Y: 1, Z: 0}, aabb.Max)
}

func TestMeshDestroyReturnsBlocks(t *testing.T) {
	_, queue, materials, meshes := newManagers(t)

	material, err := materials.Create("default", 1)
	require.NoError(t, err)
	vertices, indices, surfaces := quadMesh(material)
	id, err := meshes.Create(vertices, indices, surfaces, "quad")
	require.NoError(t, err)
	flush(t, queue, materials, meshes)

	vertexFree := meshes.VertexArray().FreeBytes()
	assert.True(t, meshes.Destroy(id))
	assert.Equal(t, vertexFree+uint64(len(vertices))*resources.VertexStride, meshes.VertexArray().FreeBytes())

	// The mesh dropped its surface material reference; the creator's one
	// remains.
	_, ok := meshes.Get(id)
	assert.False(t, ok)
	_, ok = materials.Get(material)
	require.True(t, ok)

	materialFree := materials.Array().FreeBytes()
	assert.True(t, materials.Destroy(material))
	assert.Equal(t, materialFree+uint64(80), materials.Array().FreeBytes())
}

func TestImageUploadRoundTrip(t *testing.T) {
	backend := gputest.NewBackend(false)
	queue, err := gpu.NewAsyncQueue(backend)
	require.NoError(t, err)
	t.Cleanup(queue.Close)
	images := resources.NewImageManager(backend, queue, resources.ImageManagerConfig{Slots: 4})

	pixels := make([]byte, 2*2*4)
	for i := range pixels {
		pixels[i] = byte(i)
	}
	id, err := images.Create(pixels, 2, 2, 4, "checker")
	require.NoError(t, err)

	image, ok := images.Get(id)
	require.True(t, ok)
	assert.Equal(t, uint64(16), image.SizeBytes())
	assert.Equal(t, pixels, image.Buffer().(*gputest.Buffer).Bytes())

	assert.True(t, images.Destroy(id))
	assert.True(t, image.Buffer().(*gputest.Buffer).Destroyed())
}

func TestImageRejectsSizeMismatch(t *testing.T) {
	backend := gputest.NewBackend(false)
	queue, err := gpu.NewAsyncQueue(backend)
	require.NoError(t, err)
	t.Cleanup(queue.Close)
	images := resources.NewImageManager(backend, queue, resources.ImageManagerConfig{Slots: 4})

	_, err = images.Create(make([]byte, 3), 2, 2, 4, "short")
	assert.Error(t, err)
}
