package engine

import (
	"github.com/vanta-engine/vanta/engine/config"
	"github.com/vanta-engine/vanta/engine/renderer"
)

// Game is the application hook set. The engine fills Renderer before
// FnInitialize runs.
type Game struct {
	Config   *config.Config
	Renderer *renderer.Renderer
	State    interface{}

	FnInitialize Initialize
	FnUpdate     Update
	FnRender     Render
	FnOnResize   OnResize
}

type Initialize func() error
type Update func(deltaTime float64) error
type Render func(deltaTime float64) error
type OnResize func(width uint32, height uint32) error
