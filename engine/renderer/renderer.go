package renderer

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"

	"github.com/vanta-engine/vanta/engine/config"
	"github.com/vanta-engine/vanta/engine/core"
	"github.com/vanta-engine/vanta/engine/gpu"
	"github.com/vanta-engine/vanta/engine/resources"
)

// Renderer is the frontend of the upload pipeline: it owns the backend, the
// submission queue and the resource managers, and batches every dirty array
// into one transfer command per frame.
type Renderer struct {
	backend gpu.Backend
	queue   *gpu.AsyncQueue

	Materials *resources.MaterialManager
	Meshes    *resources.MeshManager
	Images    *resources.ImageManager
}

func New(backend gpu.Backend, memory *config.MemoryConfig) (*Renderer, error) {
	if err := core.MetricsInitialize(); err != nil {
		return nil, err
	}
	queue, err := gpu.NewAsyncQueue(backend)
	if err != nil {
		return nil, err
	}

	materials, err := resources.NewMaterialManager(backend, resources.MaterialManagerConfig{
		Slots:           memory.MaterialSlots,
		TableCapacity:   memory.MaterialCapacity,
		StagingCapacity: memory.MaterialStagingCapacity,
	})
	if err != nil {
		queue.Close()
		return nil, err
	}
	meshes, err := resources.NewMeshManager(backend, materials, resources.MeshManagerConfig{
		Slots:                  memory.MeshCapacity,
		VertexCapacity:         memory.VertexCapacity,
		IndexCapacity:          memory.IndexCapacity,
		SurfaceCapacity:        memory.SurfaceCapacity,
		VertexStagingCapacity:  memory.VertexStagingCapacity,
		IndexStagingCapacity:   memory.IndexStagingCapacity,
		SurfaceStagingCapacity: memory.SurfaceStagingCapacity,
	})
	if err != nil {
		materials.Shutdown()
		queue.Close()
		return nil, err
	}
	images := resources.NewImageManager(backend, queue, resources.ImageManagerConfig{
		Slots: memory.ImageCapacity,
	})

	core.LogInfo("Renderer initialized. Dedicated transfer queue: %t.", backend.HasDedicatedTransferQueue())
	return &Renderer{
		backend:   backend,
		queue:     queue,
		Materials: materials,
		Meshes:    meshes,
		Images:    images,
	}, nil
}

func (r *Renderer) Queue() *gpu.AsyncQueue { return r.queue }
func (r *Renderer) Backend() gpu.Backend   { return r.backend }

// FlushUploads records every dirty manager array into a single transfer
// command and hands it to the submission queue. Called once per frame.
func (r *Renderer) FlushUploads() error {
	if !r.Materials.Dirty() && !r.Meshes.Dirty() {
		return nil
	}
	command, err := r.queue.BeginCommand(gpu.CommandTypeTransfer)
	if err != nil {
		return err
	}
	// Materials go first so mesh surfaces can resolve their table indices.
	if err := r.Materials.Flush(command.List); err != nil {
		return err
	}
	if err := r.Meshes.Flush(command.List); err != nil {
		return err
	}
	return r.queue.EndCommand(command, false)
}

func (r *Renderer) BeginFrame(deltaTime float64) error {
	return r.FlushUploads()
}

func (r *Renderer) EndFrame(deltaTime float64) error {
	core.MetricsUpdate(deltaTime)
	return nil
}

// Stats returns one JSON object describing every GPU array.
func (r *Renderer) Stats() (string, error) {
	writer := jwriter.NewWriter()
	obj := writer.Object()
	arrays := obj.Name("arrays").Array()
	for _, array := range []*gpu.DeviceMemoryArray{
		r.Meshes.VertexArray(),
		r.Meshes.IndexArray(),
		r.Meshes.SurfaceArray(),
		r.Materials.Array(),
	} {
		element := arrays.Object()
		array.WriteStatsTo(&element)
		element.End()
	}
	arrays.End()
	obj.Name("submissions").Int(int(core.MetricsSubmissions()))
	obj.End()
	if err := writer.Error(); err != nil {
		return "", err
	}
	return string(writer.Bytes()), nil
}

func (r *Renderer) Shutdown() error {
	core.LogInfo("Shutting down renderer...")
	r.queue.Close()
	r.Meshes.Shutdown()
	r.Materials.Shutdown()
	return r.backend.Shutdown()
}
