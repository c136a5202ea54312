package cartridge

import (
	"testing"
)

func buildHeader(prgBanks, chrBanks, flags6, flags7 uint8) []byte {
	h := make([]byte, 16)
	copy(h[0:4], "NES\x1A")
	h[4] = prgBanks
	h[5] = chrBanks
	h[6] = flags6
	h[7] = flags7
	return h
}

func buildROM(prgBanks, chrBanks uint8, flags6, flags7 uint8) []byte {
	rom := buildHeader(prgBanks, chrBanks, flags6, flags7)
	prg := make([]byte, int(prgBanks)*16384)
	for i := range prg {
		prg[i] = uint8(i)
	}
	rom = append(rom, prg...)
	chr := make([]byte, int(chrBanks)*8192)
	for i := range chr {
		chr[i] = uint8(i + 1)
	}
	rom = append(rom, chr...)
	return rom
}

func TestLoadRejectsBadMagic(t *testing.T) {
	rom := buildROM(1, 1, 0, 0)
	rom[0] = 'X'
	if _, err := Load(rom); err != ErrBadMagic {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}

func TestLoadRejectsUnsupportedMapper(t *testing.T) {
	rom := buildROM(1, 1, 0x10, 0x00) // mapper 1: flags6's high nibble is the mapper's low nibble
	if _, err := Load(rom); err != ErrUnsupportedMapper {
		t.Fatalf("expected ErrUnsupportedMapper, got %v", err)
	}
}

func TestLoadRejectsTruncatedPRG(t *testing.T) {
	rom := buildROM(2, 1, 0, 0)
	rom = rom[:len(rom)-100]
	if _, err := Load(rom); err != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestLoadParsesMirroring(t *testing.T) {
	horiz, err := Load(buildROM(1, 1, 0x00, 0x00))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if horiz.Mirror() != MirrorHorizontal {
		t.Fatalf("expected horizontal mirroring, got %v", horiz.Mirror())
	}

	vert, err := Load(buildROM(1, 1, 0x01, 0x00))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vert.Mirror() != MirrorVertical {
		t.Fatalf("expected vertical mirroring, got %v", vert.Mirror())
	}
}

func TestLoadSkipsTrainer(t *testing.T) {
	header := buildHeader(1, 1, 0x04, 0x00) // trainer bit set
	trainer := make([]byte, 512)
	for i := range trainer {
		trainer[i] = 0xEE
	}
	prg := make([]byte, 16384)
	prg[0] = 0x42
	rom := append(header, trainer...)
	rom = append(rom, prg...)
	rom = append(rom, make([]byte, 8192)...)

	cart, err := Load(rom)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cart.ReadPRG(0x8000); got != 0x42 {
		t.Fatalf("expected first PRG byte 0x42 after trainer skip, got 0x%02X", got)
	}
}

func TestNROMMirrorsSingleBankAcrossWindow(t *testing.T) {
	cart, err := Load(buildROM(1, 1, 0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.ReadPRG(0x8000) != cart.ReadPRG(0xC000) {
		t.Fatalf("expected $8000 and $C000 to mirror the same 16KB bank")
	}
}

func TestUnimplementedSRAMReadsZeroAndIgnoresWrites(t *testing.T) {
	cart, err := Load(buildROM(1, 1, 0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cart.WritePRG(0x6000, 0x99)
	if got := cart.ReadPRG(0x6000); got != 0 {
		t.Fatalf("expected unimplemented SRAM to read 0, got 0x%02X", got)
	}
}

func TestCHRRAMWhenNoCHRBanks(t *testing.T) {
	cart, err := Load(buildROM(1, 0, 0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cart.WriteCHR(0x0010, 0x77)
	if got := cart.ReadCHR(0x0010); got != 0x77 {
		t.Fatalf("expected CHR RAM round-trip, got 0x%02X", got)
	}
}

func TestCHRROMWritesIgnored(t *testing.T) {
	cart, err := Load(buildROM(1, 1, 0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before := cart.ReadCHR(0x0001)
	cart.WriteCHR(0x0001, before+1)
	if got := cart.ReadCHR(0x0001); got != before {
		t.Fatalf("expected CHR ROM write to be ignored, got 0x%02X want 0x%02X", got, before)
	}
}
