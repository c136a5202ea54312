// Package app implements the main NES emulator application with GUI support.
package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"nesgo/internal/bus"
	"nesgo/internal/cartridge"
	"nesgo/internal/graphics"
)

// Application wires together the system bus, a graphics backend, and the
// host's input/render loop.
type Application struct {
	bus *bus.Bus

	graphicsBackend graphics.Backend
	window          graphics.Window

	config   *Config
	emulator *Emulator

	running     bool
	paused      bool
	initialized bool
	headless    bool

	startTime time.Time

	romPath   string
	cartridge *cartridge.Cartridge

	lastESCTime time.Time

	lastController1State [8]bool
	lastController2State [8]bool
}

// ApplicationError represents application-specific errors
type ApplicationError struct {
	Component string
	Operation string
	Err       error
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("application %s error during %s: %v", e.Component, e.Operation, e.Err)
}

// NewApplication creates a new NES emulator application
func NewApplication(configPath string) (*Application, error) {
	return NewApplicationWithMode(configPath, false)
}

// NewApplicationWithMode creates a new NES emulator application with optional headless mode
func NewApplicationWithMode(configPath string, headless bool) (*Application, error) {
	app := &Application{
		config:    NewConfig(),
		headless:  headless,
		startTime: time.Now(),
	}

	if configPath != "" {
		if err := app.config.LoadFromFile(configPath); err != nil {
			fmt.Printf("warning: could not load config from %s, using defaults: %v\n", configPath, err)
		}
	}

	if err := app.initializeComponents(headless); err != nil {
		return nil, &ApplicationError{Component: "initialization", Operation: "component setup", Err: err}
	}

	return app, nil
}

func (app *Application) initializeComponents(headless bool) error {
	app.bus = bus.New()

	if err := app.initializeGraphicsBackend(headless); err != nil {
		return fmt.Errorf("failed to initialize graphics backend: %w", err)
	}

	app.emulator = NewEmulator(app.bus, app.config)

	app.initialized = true
	return nil
}

func (app *Application) initializeGraphicsBackend(headless bool) error {
	var backendType graphics.BackendType
	if headless {
		backendType = graphics.BackendHeadless
	} else {
		switch app.config.Video.Backend {
		case "headless":
			backendType = graphics.BackendHeadless
		default:
			backendType = graphics.BackendEbitengine
		}
	}

	var err error
	app.graphicsBackend, err = graphics.CreateBackend(backendType)
	if err != nil {
		return fmt.Errorf("failed to create graphics backend: %w", err)
	}

	graphicsConfig := graphics.Config{
		WindowTitle:  "nesgo",
		WindowWidth:  app.config.Window.Width,
		WindowHeight: app.config.Window.Height,
		Fullscreen:   app.config.Window.Fullscreen,
		VSync:        app.config.Video.VSync,
		Filter:       app.config.Video.Filter,
		Headless:     headless,
	}

	if err := app.graphicsBackend.Initialize(graphicsConfig); err != nil {
		if backendType == graphics.BackendEbitengine {
			fmt.Printf("warning: ebitengine backend failed (%v), falling back to headless mode\n", err)
			app.graphicsBackend, err = graphics.CreateBackend(graphics.BackendHeadless)
			if err != nil {
				return fmt.Errorf("failed to create fallback headless backend: %w", err)
			}
			graphicsConfig.Headless = true
			if err := app.graphicsBackend.Initialize(graphicsConfig); err != nil {
				return fmt.Errorf("failed to initialize fallback headless backend: %w", err)
			}
		} else {
			return fmt.Errorf("failed to initialize graphics backend: %w", err)
		}
	}

	if !headless && !app.graphicsBackend.IsHeadless() {
		app.window, err = app.graphicsBackend.CreateWindow(
			graphicsConfig.WindowTitle,
			graphicsConfig.WindowWidth,
			graphicsConfig.WindowHeight,
		)
		if err != nil {
			return fmt.Errorf("failed to create window: %w", err)
		}
	}

	return nil
}

// LoadROM loads a ROM file into the emulator
func (app *Application) LoadROM(romPath string) error {
	if !app.initialized {
		return errors.New("application not initialized")
	}

	cart, err := cartridge.LoadFromFile(romPath)
	if err != nil {
		return &ApplicationError{Component: "cartridge", Operation: "load ROM", Err: err}
	}

	app.cartridge = cart
	app.romPath = romPath

	app.bus.LoadCartridge(cart)

	if app.window != nil {
		app.window.SetTitle(fmt.Sprintf("nesgo - %s", filepath.Base(romPath)))
	}

	app.emulator.Start()

	return nil
}

// Run starts the main application loop
func (app *Application) Run() error {
	if !app.initialized {
		return errors.New("application not initialized")
	}

	app.running = true
	app.startTime = time.Now()

	if app.graphicsBackend.GetName() == "Ebitengine" && app.window != nil {
		if ebitengineWindow, ok := graphics.AsEbitengineWindow(app.window); ok {
			ebitengineWindow.SetEmulatorUpdateFunc(func() error {
				if err := app.processInput(); err != nil {
					return err
				}
				if err := app.updateEmulator(); err != nil {
					return err
				}
				if err := app.render(); err != nil {
					return err
				}
				if app.window != nil && app.window.ShouldClose() {
					app.Stop()
				}
				return nil
			})
			return ebitengineWindow.Run()
		}
	}

	for app.running {
		if err := app.processInput(); err != nil {
			fmt.Printf("input error: %v\n", err)
		}
		if err := app.updateEmulator(); err != nil {
			fmt.Printf("emulator error: %v\n", err)
		}
		if err := app.render(); err != nil {
			fmt.Printf("render error: %v\n", err)
		}

		if app.window != nil && app.window.ShouldClose() {
			app.Stop()
		}

		time.Sleep(16 * time.Millisecond)
	}

	return nil
}

func (app *Application) updateEmulator() error {
	if !app.paused && app.cartridge != nil {
		return app.emulator.Update()
	}
	return nil
}

// processInput processes input events from the graphics backend and applies
// button state changes to the NES controllers.
func (app *Application) processInput() error {
	if app.window == nil {
		return nil
	}

	events := app.window.PollEvents()
	if len(events) == 0 {
		return nil
	}

	controller1Buttons := app.lastController1State
	controller2Buttons := app.lastController2State
	var controller1Changed, controller2Changed bool

	for _, event := range events {
		switch event.Type {
		case graphics.InputEventTypeQuit:
			// The backend raises Quit on every ESC press; handleSpecialInput
			// stops only on a second press within 3 seconds.
			app.handleSpecialInput(graphics.InputEvent{Type: graphics.InputEventTypeKey, Key: graphics.KeyEscape, Pressed: true})

		case graphics.InputEventTypeButton:
			if app.handleSpecialInput(event) {
				continue
			}
			if app.cartridge == nil {
				continue
			}

			if index, ok := secondControllerIndex(event.Button); ok {
				controller2Buttons[index] = event.Pressed
				controller2Changed = true
			} else if index, ok := firstControllerIndex(event.Button); ok {
				controller1Buttons[index] = event.Pressed
				controller1Changed = true
			}
		}
	}

	if controller1Changed && app.bus != nil && app.cartridge != nil {
		app.bus.SetControllerButtons(1, controller1Buttons)
		app.lastController1State = controller1Buttons
	}
	if controller2Changed && app.bus != nil && app.cartridge != nil {
		app.bus.SetControllerButtons(2, controller2Buttons)
		app.lastController2State = controller2Buttons
	}

	return nil
}

// handleSpecialInput handles input that the application intercepts before
// it reaches the NES controllers (currently just the quit confirmation).
func (app *Application) handleSpecialInput(event graphics.InputEvent) bool {
	if !event.Pressed {
		return false
	}

	if event.Type == graphics.InputEventTypeKey && event.Key == graphics.KeyEscape {
		now := time.Now()
		if !app.lastESCTime.IsZero() && now.Sub(app.lastESCTime) < 3*time.Second {
			app.Stop()
			return true
		}
		app.lastESCTime = now
		return true
	}

	return false
}

// firstControllerIndex maps a graphics.Button to its array index in NES
// button order (A,B,Select,Start,Up,Down,Left,Right) for controller 1.
func firstControllerIndex(b graphics.Button) (int, bool) {
	switch b {
	case graphics.ButtonA:
		return 0, true
	case graphics.ButtonB:
		return 1, true
	case graphics.ButtonSelect:
		return 2, true
	case graphics.ButtonStart:
		return 3, true
	case graphics.ButtonUp:
		return 4, true
	case graphics.ButtonDown:
		return 5, true
	case graphics.ButtonLeft:
		return 6, true
	case graphics.ButtonRight:
		return 7, true
	default:
		return 0, false
	}
}

// secondControllerIndex is firstControllerIndex's counterpart for controller 2.
func secondControllerIndex(b graphics.Button) (int, bool) {
	switch b {
	case graphics.Button2A:
		return 0, true
	case graphics.Button2B:
		return 1, true
	case graphics.Button2Select:
		return 2, true
	case graphics.Button2Start:
		return 3, true
	case graphics.Button2Up:
		return 4, true
	case graphics.Button2Down:
		return 5, true
	case graphics.Button2Left:
		return 6, true
	case graphics.Button2Right:
		return 7, true
	default:
		return 0, false
	}
}

// SetControllerButtons sets all button states at once for a controller port.
func (app *Application) SetControllerButtons(controller int, buttons [8]bool) {
	if app.bus != nil {
		app.bus.SetControllerButtons(controller, buttons)
	}
}

// GetBus returns the bus for direct access (useful for testing and advanced control)
func (app *Application) GetBus() *bus.Bus {
	return app.bus
}

func (app *Application) render() error {
	if app.window == nil {
		return nil
	}

	if app.cartridge != nil {
		if err := app.window.RenderFrame(app.bus.FrameBuffer()); err != nil {
			return fmt.Errorf("failed to render NES frame: %w", err)
		}
	}

	app.window.SwapBuffers()
	return nil
}

// Stop stops the application
func (app *Application) Stop() {
	app.running = false
}

// Pause pauses the emulator
func (app *Application) Pause() {
	app.paused = true
	app.emulator.Stop()
}

// Resume resumes the emulator
func (app *Application) Resume() {
	app.paused = false
	app.emulator.Start()
}

// TogglePause toggles pause state
func (app *Application) TogglePause() {
	if app.paused {
		app.Resume()
	} else {
		app.Pause()
	}
}

// Reset resets the emulator
func (app *Application) Reset() {
	if app.bus != nil {
		app.bus.Reset()
	}
}

// IsRunning returns whether the application is running
func (app *Application) IsRunning() bool {
	return app.running
}

// IsPaused returns whether the emulator is paused
func (app *Application) IsPaused() bool {
	return app.paused
}

// GetFPS returns an estimate of the current frames-per-second based on the
// emulator's recent average frame time.
func (app *Application) GetFPS() float64 {
	avg := app.emulator.AverageFrameTime()
	if avg == 0 {
		return 0
	}
	return float64(time.Second) / float64(avg)
}

// GetFrameCount returns the total frame count
func (app *Application) GetFrameCount() uint64 {
	return app.emulator.FrameCount()
}

// GetUptime returns the application uptime
func (app *Application) GetUptime() time.Duration {
	return time.Since(app.startTime)
}

// GetROMPath returns the currently loaded ROM path
func (app *Application) GetROMPath() string {
	return app.romPath
}

// GetConfig returns the application configuration
func (app *Application) GetConfig() *Config {
	return app.config
}

// Cleanup releases all resources and shuts down the application
func (app *Application) Cleanup() error {
	var lastErr error

	if app.emulator != nil {
		if err := app.emulator.Cleanup(); err != nil {
			lastErr = err
		}
	}

	if app.window != nil {
		if err := app.window.Cleanup(); err != nil {
			lastErr = err
		}
	}

	if app.graphicsBackend != nil {
		if err := app.graphicsBackend.Cleanup(); err != nil {
			lastErr = err
		}
	}

	app.initialized = false
	return lastErr
}
