package renderer_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanta-engine/vanta/engine/config"
	"github.com/vanta-engine/vanta/engine/gpu"
	"github.com/vanta-engine/vanta/engine/gpu/gputest"
	"github.com/vanta-engine/vanta/engine/math"
	"github.com/vanta-engine/vanta/engine/renderer"
	"github.com/vanta-engine/vanta/engine/resources"
)

func testMemoryConfig() *config.MemoryConfig {
	return &config.MemoryConfig{
		VertexCapacity:          256,
		IndexCapacity:           512,
		SurfaceCapacity:         32,
		MaterialCapacity:        32,
		VertexStagingCapacity:   256,
		IndexStagingCapacity:    512,
		SurfaceStagingCapacity:  32,
		MaterialStagingCapacity: 32,
		MeshCapacity:            16,
		ImageCapacity:           8,
		MaterialSlots:           16,
		CommandQueueSize:        8,
	}
}

func newRenderer(t *testing.T) (*renderer.Renderer, *gputest.Backend) {
	t.Helper()
	backend := gputest.NewBackend(false)
	r, err := renderer.New(backend, testMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, r.Shutdown()) })
	return r, backend
}

func createQuad(t *testing.T, r *renderer.Renderer) resources.ID {
	t.Helper()
	material, err := r.Materials.Create("default", 1)
	require.NoError(t, err)
	vertices := []resources.Vertex{
		{Position: math.Vec3{X: -1, Y: -1}},
		{Position: math.Vec3{X: 1, Y: -1}},
		{Position: math.Vec3{X: 1, Y: 1}},
		{Position: math.Vec3{X: -1, Y: 1}},
	}
	id, err := r.Meshes.Create(vertices, []uint32{0, 1, 2, 2, 3, 0},
		[]resources.MeshSurface{{IndexCount: 6, Material: material}}, "quad")
	require.NoError(t, err)
	return id
}

func TestFlushUploadsBatchesOneCommand(t *testing.T) {
	r, backend := newRenderer(t)

	createQuad(t, r)
	before := len(backend.Submissions())
	require.NoError(t, r.FlushUploads())
	// Materials and all three mesh arrays travel in a single submission.
	require.Len(t, backend.Submissions(), before+1)

	mesh := r.Meshes
	assert.Less(t, mesh.VertexArray().FreeBytes(), mesh.VertexArray().CapacityBytes())
	assert.False(t, mesh.Dirty())
	assert.False(t, r.Materials.Dirty())
}

func TestFlushUploadsSkipsWhenClean(t *testing.T) {
	r, backend := newRenderer(t)

	createQuad(t, r)
	require.NoError(t, r.FlushUploads())
	before := len(backend.Submissions())
	require.NoError(t, r.FlushUploads())
	assert.Len(t, backend.Submissions(), before)
}

func TestFrameHooksFlushAndMeter(t *testing.T) {
	r, _ := newRenderer(t)

	createQuad(t, r)
	require.NoError(t, r.BeginFrame(0.016))
	require.NoError(t, r.EndFrame(0.016))
	assert.False(t, r.Meshes.Dirty())
}

func TestStatsReportsEveryArray(t *testing.T) {
	r, _ := newRenderer(t)

	createQuad(t, r)
	require.NoError(t, r.FlushUploads())

	out, err := r.Stats()
	require.NoError(t, err)
	var report struct {
		Arrays []struct {
			Name           string `json:"Name"`
			AllocatedBytes int    `json:"AllocatedBytes"`
		} `json:"arrays"`
		Submissions int `json:"submissions"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Arrays, 4)
	names := make([]string, len(report.Arrays))
	for i, array := range report.Arrays {
		names[i] = array.Name
	}
	assert.Contains(t, names, "Vertex Array")
	assert.Contains(t, names, "Global material array")
}

func TestImageUploadThroughRenderer(t *testing.T) {
	r, _ := newRenderer(t)

	pixels := make([]byte, 4*4*4)
	id, err := r.Images.Create(pixels, 4, 4, 4, "blank")
	require.NoError(t, err)
	image, ok := r.Images.Get(id)
	require.True(t, ok)
	assert.Equal(t, pixels, image.Buffer().(*gputest.Buffer).Bytes())
}

var _ gpu.Backend = (*gputest.Backend)(nil)
