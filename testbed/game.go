/*
This is an example application that drives the upload pipeline: it creates a
cube mesh with one material and animates a material parameter every frame.
*/
package testbed

import (
	"github.com/vanta-engine/vanta/engine"
	"github.com/vanta-engine/vanta/engine/config"
	"github.com/vanta-engine/vanta/engine/core"
	"github.com/vanta-engine/vanta/engine/math"
	"github.com/vanta-engine/vanta/engine/resources"
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	material resources.ID
	cube     resources.ID

	pulse     float32
	pulseUp   bool
	statTimer float64

	width  uint32
	height uint32
}

func NewTestGame() (*TestGame, error) {
	cfg := config.Default()
	cfg.Application.Name = "Vanta Testbed"
	cfg.Application.Headless = true

	state := &gameState{pulseUp: true}
	tg := &TestGame{
		Game: &engine.Game{
			Config: cfg,
			State:  state,
		},
	}
	tg.FnInitialize = tg.initialize
	tg.FnUpdate = tg.update
	tg.FnRender = tg.render
	tg.FnOnResize = tg.onResize
	return tg, nil
}

func (tg *TestGame) initialize() error {
	state := tg.State.(*gameState)

	material, err := tg.Renderer.Materials.Create("pulse", 1)
	if err != nil {
		return err
	}
	state.material = material

	vertices, indices := cubeGeometry(1.0)
	surfaces := []resources.MeshSurface{
		{FirstIndex: 0, IndexCount: uint32(len(indices)), Material: material},
	}
	cube, err := tg.Renderer.Meshes.Create(vertices, indices, surfaces, "test_cube")
	if err != nil {
		return err
	}
	state.cube = cube

	mesh, _ := tg.Renderer.Meshes.Get(cube)
	size := mesh.AABB().Size()
	core.LogInfo("Test cube created: %d vertices, extent [%.1f %.1f %.1f].",
		len(vertices), size.X, size.Y, size.Z)
	return nil
}

func (tg *TestGame) update(deltaTime float64) error {
	state := tg.State.(*gameState)

	step := float32(deltaTime)
	if !state.pulseUp {
		step = -step
	}
	state.pulse = math.Clamp(state.pulse+step, 0, 1)
	if state.pulse == 0 || state.pulse == 1 {
		state.pulseUp = !state.pulseUp
	}
	return tg.Renderer.Materials.SetParameter(state.material, 0,
		math.NewVec4(state.pulse, 0, 1-state.pulse, 1))
}

func (tg *TestGame) render(deltaTime float64) error {
	state := tg.State.(*gameState)
	state.statTimer += deltaTime
	if state.statTimer >= 5 {
		state.statTimer = 0
		stats, err := tg.Renderer.Stats()
		if err != nil {
			return err
		}
		core.LogDebug("GPU arrays: %s", stats)
	}
	return nil
}

func (tg *TestGame) onResize(width, height uint32) error {
	state := tg.State.(*gameState)
	state.width = width
	state.height = height
	return nil
}

// cubeGeometry returns the vertices and indices of an axis aligned cube with
// the given edge length, one quad per face.
func cubeGeometry(size float32) ([]resources.Vertex, []uint32) {
	h := size / 2
	faces := []struct {
		normal  math.Vec3
		corners [4]math.Vec3
	}{
		{math.NewVec3(0, 0, 1), [4]math.Vec3{{-h, -h, h}, {h, -h, h}, {h, h, h}, {-h, h, h}}},
		{math.NewVec3(0, 0, -1), [4]math.Vec3{{h, -h, -h}, {-h, -h, -h}, {-h, h, -h}, {h, h, -h}}},
		{math.NewVec3(1, 0, 0), [4]math.Vec3{{h, -h, h}, {h, -h, -h}, {h, h, -h}, {h, h, h}}},
		{math.NewVec3(-1, 0, 0), [4]math.Vec3{{-h, -h, -h}, {-h, -h, h}, {-h, h, h}, {-h, h, -h}}},
		{math.NewVec3(0, 1, 0), [4]math.Vec3{{-h, h, h}, {h, h, h}, {h, h, -h}, {-h, h, -h}}},
		{math.NewVec3(0, -1, 0), [4]math.Vec3{{-h, -h, -h}, {h, -h, -h}, {h, -h, h}, {-h, -h, h}}},
	}
	uvs := [4]math.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

	var vertices []resources.Vertex
	var indices []uint32
	for _, face := range faces {
		base := uint32(len(vertices))
		tangent := face.corners[1].Sub(face.corners[0]).Normalized()
		for i, corner := range face.corners {
			vertices = append(vertices, resources.Vertex{
				Position: corner,
				Normal:   face.normal,
				UV:       uvs[i],
				Tangent:  math.NewVec4(tangent.X, tangent.Y, tangent.Z, 1),
			})
		}
		indices = append(indices, base, base+1, base+2, base+2, base+3, base)
	}
	return vertices, indices
}
