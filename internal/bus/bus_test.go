package bus

import (
	"testing"

	"nesgo/internal/cartridge"
)

func buildTestROM(resetVectorLow, resetVectorHigh uint8) []byte {
	header := make([]byte, 16)
	copy(header[0:4], "NES\x1A")
	header[4] = 1 // 1 PRG bank
	header[5] = 1 // 1 CHR bank

	prg := make([]byte, 16384)
	prg[0x3FFC] = resetVectorLow  // $FFFC mirrors to prg offset 0x3FFC in a 1-bank cart
	prg[0x3FFD] = resetVectorHigh

	rom := append(header, prg...)
	rom = append(rom, make([]byte, 8192)...)
	return rom
}

func loadTestCartridge(t *testing.T, rom []byte) *cartridge.Cartridge {
	t.Helper()
	cart, err := cartridge.Load(rom)
	if err != nil {
		t.Fatalf("unexpected cartridge load error: %v", err)
	}
	return cart
}

func TestLoadCartridgeSetsResetVector(t *testing.T) {
	b := New()
	cart := loadTestCartridge(t, buildTestROM(0x00, 0x80))
	b.LoadCartridge(cart)

	if b.CPU.PC != 0x8000 {
		t.Fatalf("expected PC=0x8000 from reset vector, got 0x%04X", b.CPU.PC)
	}
}

func TestStepAdvancesCPUCycles(t *testing.T) {
	b := New()
	cart := loadTestCartridge(t, buildTestROM(0x00, 0x80))
	b.LoadCartridge(cart)

	before := b.CycleCount()
	b.Step()
	if b.CycleCount() <= before {
		t.Fatal("expected CycleCount to advance after Step")
	}
}

func TestFrameCompletesAfter262Scanlines(t *testing.T) {
	b := New()
	cart := loadTestCartridge(t, buildTestROM(0x00, 0x80))
	b.LoadCartridge(cart)

	before := b.FrameCount()
	b.Frame()
	if b.FrameCount() != before+1 {
		t.Fatalf("expected FrameCount to advance by 1, got %d -> %d", before, b.FrameCount())
	}
}

func TestOAMDMATransfersAndStallsCPU(t *testing.T) {
	b := New()
	cart := loadTestCartridge(t, buildTestROM(0x00, 0x80))
	b.LoadCartridge(cart)

	b.Memory.Write(0x0000, 0x42)
	b.Memory.Write(0x4014, 0x00)

	if !b.IsDMAInProgress() {
		t.Fatal("expected DMA in progress immediately after trigger")
	}

	b.PPU.WriteRegister(0x2003, 0x00)
	if got := b.PPU.ReadRegister(0x2004); got != 0x42 {
		t.Fatalf("expected OAM[0] to receive DMA'd byte 0x42, got 0x%02X", got)
	}
}

func TestQuitSignalStopsRun(t *testing.T) {
	b := New()
	cart := loadTestCartridge(t, buildTestROM(0x00, 0x80))
	b.LoadCartridge(cart)

	scanlinesSeen := 0
	b.SetQuitSignal(func() bool {
		scanlinesSeen++
		return scanlinesSeen >= 5
	})

	b.Run()
	if scanlinesSeen != 5 {
		t.Fatalf("expected Run to stop exactly at the 5th scanline boundary, got %d", scanlinesSeen)
	}
}

func buildNMITestROM() []byte {
	header := make([]byte, 16)
	copy(header[0:4], "NES\x1A")
	header[4] = 1 // 1 PRG bank
	header[5] = 1 // 1 CHR bank

	prg := make([]byte, 16384)
	prg[0x3FFC] = 0x00 // reset vector -> 0x8000
	prg[0x3FFD] = 0x80
	prg[0x3FFA] = 0x00 // NMI vector -> 0x9000
	prg[0x3FFB] = 0x90

	// At PC=0x8000 (prg offset 0x0000): STA $10, a 2-byte instruction with
	// an observable side effect (A, which is 0 after reset, into RAM).
	prg[0x0000] = 0x85
	prg[0x0001] = 0x10

	rom := append(header, prg...)
	rom = append(rom, make([]byte, 8192)...)
	return rom
}

// TestNMIServicedBeforeNextInstructionFetch exercises the ordering guarantee
// that an NMI raised during the previous Step's scanline advance is taken
// before the following instruction begins decoding, not after it executes.
func TestNMIServicedBeforeNextInstructionFetch(t *testing.T) {
	b := New()
	cart := loadTestCartridge(t, buildNMITestROM())
	b.LoadCartridge(cart)

	if b.CPU.PC != 0x8000 {
		t.Fatalf("expected PC=0x8000 from reset vector, got 0x%04X", b.CPU.PC)
	}

	const sentinel = 0xAB
	b.Memory.Write(0x0010, sentinel)

	// Simulate a VBlank-entry NMI having been latched at the tail of the
	// prior Step, as PPU.SetNMICallback would do via triggerNMI.
	b.nmiPending = true

	b.Step()

	if b.nmiPending {
		t.Fatal("expected nmiPending to be consumed by Step")
	}
	if b.CPU.PC != 0x9000 {
		t.Fatalf("expected PC to jump straight to the NMI vector 0x9000, got 0x%04X", b.CPU.PC)
	}
	if got := b.Memory.Read(0x0010); got != sentinel {
		t.Fatalf("expected STA at the old PC to be skipped, RAM[0x10] changed from 0x%02X to 0x%02X", sentinel, got)
	}
}

func TestControllerButtonRouting(t *testing.T) {
	b := New()
	cart := loadTestCartridge(t, buildTestROM(0x00, 0x80))
	b.LoadCartridge(cart)

	b.SetControllerButton(1, 1, true) // ButtonA == 1
	if !b.Input.Controller1.IsPressed(1) {
		t.Fatal("expected controller 1 ButtonA pressed")
	}
}
