// Package bus coordinates the CPU and PPU over a shared cycle budget,
// wiring the cartridge, controllers, and APU stub into a single system.
package bus

import (
	"nesgo/internal/apu"
	"nesgo/internal/cartridge"
	"nesgo/internal/cpu"
	"nesgo/internal/input"
	"nesgo/internal/memory"
	"nesgo/internal/ppu"
)

// cyclesPerScanline is the CPU-cycle budget the coordinator advances the
// PPU by one scanline for. NTSC's 341 PPU cycles per scanline divided by
// 3 PPU cycles per CPU cycle comes to ~113.67; 113 is the integer
// approximation this core uses (see spec's scanline-granularity design).
const cyclesPerScanline = 113

// scanlinesPerFrame is the full NTSC frame: 0-239 visible, 240 post-render,
// 241 VBlank entry, 242-260 VBlank, 261 pre-render/VBlank exit.
const scanlinesPerFrame = 262

// Bus is the NES system bus: it owns every component and drives the
// cooperative CPU/PPU coroutine loop.
type Bus struct {
	CPU    *cpu.CPU
	PPU    *ppu.PPU
	APU    *apu.APU
	Memory *memory.Memory
	Input  *input.InputState

	cycleAccumulator uint64
	cpuCycles        uint64
	scanline         int
	frameCount       uint64

	dmaSuspendCycles uint64
	dmaInProgress    bool
	nmiPending       bool

	quitSignal    func() bool
	quitRequested bool
}

// New creates a system bus with no cartridge loaded. Call LoadCartridge
// before running.
func New() *Bus {
	b := &Bus{
		PPU:   ppu.New(memory.NewPPUMemory(nil, memory.MirrorHorizontal)),
		APU:   apu.New(),
		Input: input.NewInputState(),
	}

	b.Memory = memory.New(b.PPU, b.APU, nil)
	b.Memory.SetInputSystem(b.Input)
	b.CPU = cpu.New(b.Memory)

	b.PPU.SetNMICallback(b.triggerNMI)
	b.Memory.SetDMACallback(b.TriggerOAMDMA)

	b.Reset()
	return b
}

// Reset restores every component to its power-up state.
func (b *Bus) Reset() {
	b.CPU.Reset()
	b.PPU.Reset()
	b.APU.Reset()
	b.Input.Reset()

	b.cycleAccumulator = 0
	b.cpuCycles = 0
	b.scanline = 0
	b.frameCount = 0
	b.dmaSuspendCycles = 0
	b.dmaInProgress = false
	b.nmiPending = false
	b.quitRequested = false
}

func (b *Bus) triggerNMI() {
	b.nmiPending = true
}

func toMemoryMirror(mirror cartridge.MirrorMode) memory.MirrorMode {
	if mirror == cartridge.MirrorVertical {
		return memory.MirrorVertical
	}
	return memory.MirrorHorizontal
}

// LoadCartridge wires a loaded cartridge into the CPU and PPU buses and
// resets the CPU so PC starts from the reset vector.
func (b *Bus) LoadCartridge(cart *cartridge.Cartridge) {
	b.Memory = memory.New(b.PPU, b.APU, cart)
	b.Memory.SetInputSystem(b.Input)
	b.Memory.SetDMACallback(b.TriggerOAMDMA)
	b.CPU = cpu.New(b.Memory)

	ppuMemory := memory.NewPPUMemory(cart, toMemoryMirror(cart.Mirror()))
	b.PPU = ppu.New(ppuMemory)
	b.PPU.SetNMICallback(b.triggerNMI)

	b.Reset()
}

// SetFrameCompleteCallback wires the host's frame-sink, called once per
// frame at VBlank entry with the completed 256x240 RGB buffer.
func (b *Bus) SetFrameCompleteCallback(callback func([256 * 240]uint32)) {
	b.PPU.SetFrameCompleteCallback(callback)
}

// SetQuitSignal wires a function the coordinator polls once per scanline
// boundary; once it returns true, Run stops after the current scanline.
func (b *Bus) SetQuitSignal(signal func() bool) {
	b.quitSignal = signal
}

// Step executes one CPU instruction (or one DMA stall cycle), then advances
// the PPU by as many scanlines as the accumulated cycles cross.
func (b *Bus) Step() {
	var cycles uint64

	if b.dmaSuspendCycles > 0 {
		cycles = 1
		b.dmaSuspendCycles--
		if b.dmaSuspendCycles == 0 {
			b.dmaInProgress = false
		}
	} else if b.nmiPending {
		// Service the NMI now, before the next instruction is fetched, so a
		// VBlank-entry NMI is taken before the following instruction begins
		// decoding rather than after it has already executed.
		b.nmiPending = false
		cycles = b.CPU.ServiceNMI()
	} else {
		cycles = b.CPU.Step()
	}

	b.cpuCycles += cycles
	b.cycleAccumulator += cycles

	for b.cycleAccumulator >= cyclesPerScanline {
		b.cycleAccumulator -= cyclesPerScanline
		b.advanceScanline()
	}
}

func (b *Bus) advanceScanline() {
	b.PPU.RenderScanline(b.scanline)
	b.scanline++
	if b.scanline >= scanlinesPerFrame {
		b.scanline = 0
		b.frameCount++
	}
	if b.quitSignal != nil && b.quitSignal() {
		b.quitRequested = true
	}
}

// TriggerOAMDMA performs an immediate 256-byte OAM transfer from the given
// CPU page, then stalls the CPU for 513 (even starting cycle) or 514 (odd)
// cycles, matching real hardware's DMA timing.
func (b *Bus) TriggerOAMDMA(sourcePage uint8) {
	if b.dmaInProgress {
		return
	}

	sourceAddress := uint16(sourcePage) << 8
	for i := 0; i < 256; i++ {
		data := b.Memory.Read(sourceAddress + uint16(i))
		b.PPU.WriteOAMByte(data)
	}

	dmaCycles := uint64(513)
	if b.cpuCycles%2 == 1 {
		dmaCycles = 514
	}
	b.dmaInProgress = true
	b.dmaSuspendCycles = dmaCycles
}

// Run drives the coordinator until the quit signal (if any) requests a
// stop. With no quit signal wired, it never returns.
func (b *Bus) Run() {
	b.quitRequested = false
	for !b.quitRequested {
		b.Step()
	}
}

// Frame runs until one additional frame has completed.
func (b *Bus) Frame() {
	target := b.frameCount + 1
	for b.frameCount < target {
		b.Step()
	}
}

// RunFrames runs until the given number of additional frames has completed.
func (b *Bus) RunFrames(frames int) {
	target := b.frameCount + uint64(frames)
	for b.frameCount < target {
		b.Step()
	}
}

// RunCycles runs until the given number of additional CPU cycles has elapsed.
func (b *Bus) RunCycles(cycles uint64) {
	target := b.cpuCycles + cycles
	for b.cpuCycles < target {
		b.Step()
	}
}

// FrameBuffer returns the PPU's current 256x240 RGB frame buffer.
func (b *Bus) FrameBuffer() [256 * 240]uint32 {
	return b.PPU.FrameBuffer()
}

// CycleCount returns the cumulative CPU cycle count.
func (b *Bus) CycleCount() uint64 {
	return b.cpuCycles
}

// FrameCount returns the number of completed frames.
func (b *Bus) FrameCount() uint64 {
	return b.frameCount
}

// IsDMAInProgress reports whether an OAM DMA stall is currently active.
func (b *Bus) IsDMAInProgress() bool {
	return b.dmaInProgress
}

// SetControllerButton sets a single button's held state on a controller
// port (1 or 2).
func (b *Bus) SetControllerButton(controller int, button input.Button, pressed bool) {
	switch controller {
	case 1:
		b.Input.Controller1.SetButton(button, pressed)
	case 2:
		b.Input.Controller2.SetButton(button, pressed)
	}
}

// SetControllerButtons sets all eight button states on a controller port
// (1 or 2) at once.
func (b *Bus) SetControllerButtons(controller int, buttons [8]bool) {
	switch controller {
	case 1:
		b.Input.SetButtons1(buttons)
	case 2:
		b.Input.SetButtons2(buttons)
	}
}
