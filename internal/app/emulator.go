// Package app provides emulator integration for the main application.
package app

import (
	"fmt"
	"time"

	"nesgo/internal/bus"
	"nesgo/internal/input"
)

// Emulator drives the system bus one frame at a time and tracks basic
// timing, the way a host loop (Ebitengine's Update, or a headless runner)
// expects to call it once per tick.
type Emulator struct {
	bus    *bus.Bus
	config *Config

	isRunning     bool
	lastResetTime time.Time

	lastFrameTime    time.Duration
	averageFrameTime time.Duration
}

// NewEmulator creates a new emulator instance wrapping the given bus.
func NewEmulator(b *bus.Bus, config *Config) *Emulator {
	e := &Emulator{
		bus:    b,
		config: config,
	}
	e.Reset()
	return e
}

// Reset clears timing state. It does not reset the underlying bus; callers
// that want a full system reset should call Bus.Reset directly.
func (e *Emulator) Reset() {
	e.lastResetTime = time.Now()
	e.lastFrameTime = 0
	e.averageFrameTime = 0
}

// Start marks the emulator as running.
func (e *Emulator) Start() {
	e.isRunning = true
}

// Stop marks the emulator as paused.
func (e *Emulator) Stop() {
	e.isRunning = false
}

// IsRunning reports whether the emulator is currently running.
func (e *Emulator) IsRunning() bool {
	return e.isRunning
}

// Update runs exactly one frame of emulation if the emulator is running.
// Call this once per host tick (e.g. from Ebitengine's Update).
func (e *Emulator) Update() error {
	if !e.isRunning {
		return nil
	}
	if e.bus == nil {
		return fmt.Errorf("emulator: no bus attached")
	}

	start := time.Now()
	e.bus.Frame()
	e.lastFrameTime = time.Since(start)

	if e.averageFrameTime == 0 {
		e.averageFrameTime = e.lastFrameTime
	} else {
		e.averageFrameTime = time.Duration(
			float64(e.averageFrameTime)*0.95 + float64(e.lastFrameTime)*0.05,
		)
	}

	return nil
}

// StepInstruction executes a single CPU instruction, for instruction-level
// debugging tools.
func (e *Emulator) StepInstruction() error {
	if e.bus == nil {
		return fmt.Errorf("emulator: no bus attached")
	}
	e.bus.Step()
	return nil
}

// FrameBuffer returns the PPU's current completed frame.
func (e *Emulator) FrameBuffer() [256 * 240]uint32 {
	if e.bus == nil {
		return [256 * 240]uint32{}
	}
	return e.bus.FrameBuffer()
}

// FrameCount returns the number of frames completed since the bus was reset.
func (e *Emulator) FrameCount() uint64 {
	if e.bus == nil {
		return 0
	}
	return e.bus.FrameCount()
}

// CycleCount returns the cumulative CPU cycle count.
func (e *Emulator) CycleCount() uint64 {
	if e.bus == nil {
		return 0
	}
	return e.bus.CycleCount()
}

// LastFrameTime returns the wall-clock time the most recent Update took.
func (e *Emulator) LastFrameTime() time.Duration {
	return e.lastFrameTime
}

// AverageFrameTime returns an exponential moving average of frame time,
// useful for an FPS readout.
func (e *Emulator) AverageFrameTime() time.Duration {
	return e.averageFrameTime
}

// Uptime returns the time since the emulator was last reset.
func (e *Emulator) Uptime() time.Duration {
	return time.Since(e.lastResetTime)
}

// SetControllerButton forwards a button state change to the bus.
func (e *Emulator) SetControllerButton(controller int, button input.Button, pressed bool) {
	if e.bus == nil {
		return
	}
	e.bus.SetControllerButton(controller, button, pressed)
}

// Cleanup releases emulator resources. The bus and its components have no
// external resources to release; this exists for symmetry with Start/Stop.
func (e *Emulator) Cleanup() error {
	e.Stop()
	return nil
}
