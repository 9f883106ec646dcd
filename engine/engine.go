package engine

import (
	"fmt"

	"github.com/vanta-engine/vanta/engine/assets"
	"github.com/vanta-engine/vanta/engine/core"
	"github.com/vanta-engine/vanta/engine/gpu/vulkan"
	"github.com/vanta-engine/vanta/engine/platform"
	"github.com/vanta-engine/vanta/engine/renderer"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	isRunning    bool
	isSuspended  bool
	platform     *platform.Platform
	assetManager *assets.AssetManager
	renderer     *renderer.Renderer
	width        uint32
	height       uint32
	clock        *core.Clock
	lastTime     float64
}

func New(g *Game) (*Engine, error) {
	if g.Config == nil {
		return nil, fmt.Errorf("game has no configuration")
	}

	am, err := assets.NewAssetManager()
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		clock:        core.NewClock(),
		platform:     platform.New(),
		assetManager: am,
		isRunning:    true,
		isSuspended:  false,
		width:        g.Config.Application.StartWidth,
		height:       g.Config.Application.StartHeight,
		lastTime:     0,
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	app := &e.gameInstance.Config.Application

	if err := core.MetricsInitialize(); err != nil {
		return err
	}
	if !core.EventInitialize() {
		return fmt.Errorf("failed to initialize the event system")
	}

	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onQuit)
	core.EventRegister(core.EVENT_CODE_RESIZED, e, e.onResized)
	core.EventRegister(core.EVENT_CODE_ASSET_RELOADED, e, e.onAssetReloaded)

	if err := e.platform.Startup(app.Name, app.StartPosX, app.StartPosY,
		app.StartWidth, app.StartHeight, app.Headless); err != nil {
		return err
	}

	backend, err := vulkan.New(app.Name)
	if err != nil {
		return err
	}
	r, err := renderer.New(backend, &e.gameInstance.Config.Memory)
	if err != nil {
		return err
	}
	e.renderer = r
	e.gameInstance.Renderer = r

	if err := e.assetManager.Initialize(app.AssetDir); err != nil {
		return err
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	var targetFrameSeconds float64 = 1.0 / 60.0

	for e.isRunning {
		if !e.platform.PumpMessages() {
			e.isRunning = false
		}

		if e.isSuspended {
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := (currentTime - e.lastTime) / float64(1e9)
		frameStartTime := platform.GetAbsoluteTime()

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				core.LogError("Game update failed, shutting down.")
				e.isRunning = false
				break
			}
		}

		// Hand every upload the frame produced to the GPU in one batch.
		if err := e.renderer.BeginFrame(delta); err != nil {
			core.LogError("BeginFrame failed, shutting down. %s", err.Error())
			e.isRunning = false
			break
		}
		if e.gameInstance.FnRender != nil {
			if err := e.gameInstance.FnRender(delta); err != nil {
				core.LogError("Game render failed, shutting down.")
				e.isRunning = false
				break
			}
		}
		if err := e.renderer.EndFrame(delta); err != nil {
			core.LogError("EndFrame failed, shutting down. %s", err.Error())
			e.isRunning = false
			break
		}

		frameElapsedTime := platform.GetAbsoluteTime() - frameStartTime
		remainingSeconds := targetFrameSeconds - frameElapsedTime
		if remainingSeconds > 0 {
			e.platform.Sleep(remainingSeconds*1000 - 1)
		}

		e.lastTime = currentTime
	}

	return nil
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	e.isRunning = false
	if err := e.assetManager.Shutdown(); err != nil {
		core.LogError(err.Error())
	}
	if e.renderer != nil {
		if err := e.renderer.Shutdown(); err != nil {
			return err
		}
	}
	if err := core.EventShutdown(); err != nil {
		return err
	}
	return e.platform.Shutdown()
}

// GetFramebufferSize returns the width and height (in this order) of the
// application framebuffer.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onQuit(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
	e.isRunning = false
	return true
}

func (e *Engine) onResized(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	width := uint32(data.Data.U16[0])
	height := uint32(data.Data.U16[1])
	if width == e.width && height == e.height {
		return false
	}
	e.width = width
	e.height = height
	core.LogDebug("Window resize: %d, %d", width, height)

	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError(err.Error())
		}
	}
	return false
}

func (e *Engine) onAssetReloaded(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	core.LogDebug("Asset changed on disk: %s", data.Data.C[0])
	return false
}
