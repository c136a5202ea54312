// Package memory implements the NES CPU and PPU address-space routing.
package memory

// Memory is the CPU-visible 64KiB address space.
type Memory struct {
	ram [0x800]uint8 // 2KiB system RAM, mirrored every 2KiB

	ppuRegisters PPUInterface
	apuRegisters APUInterface
	inputSystem  InputInterface
	cartridge    CartridgeInterface

	dmaCallback func(uint8)

	// openBusValue approximates the NES's open-bus behavior: unmapped or
	// write-only APU/I/O register reads return the last byte seen on the bus.
	// PPU register reads are answered by the PPU itself.
	openBusValue uint8
}

// PPUInterface is the CPU-side view of the PPU register file.
type PPUInterface interface {
	ReadRegister(address uint16) uint8
	WriteRegister(address uint16, value uint8)
}

// APUInterface is the CPU-side view of the APU. This core implements no
// audio synthesis; writes are accepted as no-ops and
// status reads return whatever ReadStatus reports.
type APUInterface interface {
	WriteRegister(address uint16, value uint8)
	ReadStatus() uint8
}

// InputInterface is the CPU-side view of the controller ports.
type InputInterface interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// CartridgeInterface is what the CPU and PPU buses need from a cartridge.
type CartridgeInterface interface {
	ReadPRG(address uint16) uint8
	WritePRG(address uint16, value uint8)
	ReadCHR(address uint16) uint8
	WriteCHR(address uint16, value uint8)
}

// New creates a CPU bus wired to the given PPU, APU, input, and cartridge.
func New(ppu PPUInterface, apu APUInterface, cart CartridgeInterface) *Memory {
	return &Memory{
		ppuRegisters: ppu,
		apuRegisters: apu,
		cartridge:    cart,
	}
}

// SetInputSystem wires the controller ports in after construction.
func (m *Memory) SetInputSystem(input InputInterface) {
	m.inputSystem = input
}

// SetDMACallback wires the OAM DMA trigger in after construction.
func (m *Memory) SetDMACallback(callback func(uint8)) {
	m.dmaCallback = callback
}

// Read routes a CPU read through the address map.
func (m *Memory) Read(address uint16) uint8 {
	var value uint8
	switch {
	case address < 0x2000:
		value = m.ram[address&0x07FF]

	case address < 0x4000:
		value = m.ppuRegisters.ReadRegister(0x2000 + (address & 0x0007))

	case address == 0x4015:
		value = m.apuRegisters.ReadStatus()

	case address == 0x4016 || address == 0x4017:
		if m.inputSystem != nil {
			value = m.inputSystem.Read(address)
		}

	case address < 0x4020:
		// Remaining APU/I/O registers are write-only; open bus lingers.
		value = m.openBusValue

	case address >= 0x6000:
		if m.cartridge != nil {
			value = m.cartridge.ReadPRG(address)
		} else {
			value = m.openBusValue
		}

	default:
		// $4020-$5FFF: cartridge expansion area, unmapped by NROM.
		value = m.openBusValue
	}

	m.openBusValue = value
	return value
}

// Write routes a CPU write through the address map.
func (m *Memory) Write(address uint16, value uint8) {
	switch {
	case address < 0x2000:
		m.ram[address&0x07FF] = value

	case address < 0x4000:
		m.ppuRegisters.WriteRegister(0x2000+(address&0x0007), value)

	case address == 0x4014:
		if m.dmaCallback != nil {
			m.dmaCallback(value)
		}

	case address == 0x4016:
		if m.inputSystem != nil {
			m.inputSystem.Write(address, value)
		}

	case address <= 0x4013, address == 0x4015, address == 0x4017:
		m.apuRegisters.WriteRegister(address, value)

	case address < 0x4020:
		// Test-mode registers $4018-$401F: ignored.

	case address >= 0x6000:
		if m.cartridge != nil {
			m.cartridge.WritePRG(address, value)
		}

	default:
		// $4020-$5FFF expansion area: unmapped by NROM, writes ignored.
	}
}

// MirrorMode is the PPU bus's nametable mirroring selector.
type MirrorMode uint8

const (
	MirrorHorizontal MirrorMode = iota
	MirrorVertical
)

// PPUMemory is the PPU-visible 14-bit video address space.
type PPUMemory struct {
	vram       [0x800]uint8 // 2KiB physical nametable storage
	paletteRAM [32]uint8
	cartridge  CartridgeInterface
	mirroring  MirrorMode
}

// NewPPUMemory creates a PPU bus over the given cartridge's CHR banks.
func NewPPUMemory(cart CartridgeInterface, mirroring MirrorMode) *PPUMemory {
	return &PPUMemory{
		cartridge: cart,
		mirroring: mirroring,
	}
}

// Read routes a PPU read through the address map.
func (pm *PPUMemory) Read(address uint16) uint8 {
	address &= 0x3FFF
	switch {
	case address < 0x2000:
		return pm.cartridge.ReadCHR(address)
	case address < 0x3000:
		return pm.vram[pm.nametableIndex(address)]
	case address < 0x3F00:
		return pm.vram[pm.nametableIndex(address-0x1000)]
	default:
		return pm.readPalette(address)
	}
}

// Write routes a PPU write through the address map.
func (pm *PPUMemory) Write(address uint16, value uint8) {
	address &= 0x3FFF
	switch {
	case address < 0x2000:
		pm.cartridge.WriteCHR(address, value)
	case address < 0x3000:
		pm.writeNametable(address, value)
	case address < 0x3F00:
		pm.writeNametable(address-0x1000, value)
	default:
		pm.writePalette(address, value)
	}
}

// writeNametable stores a nametable byte at its mirrored slot, also writing
// the mirror-delta slot alongside the primary one on every nametable write.
func (pm *PPUMemory) writeNametable(address uint16, value uint8) {
	index := pm.nametableIndex(address)
	pm.vram[index] = value

	mirrorDelta := uint16(0x400) << uint(pm.mirroring)
	pm.vram[(index+mirrorDelta)&0x7FF] = value
}

// nametableIndex maps a $2000-$2FFF address to one of the two physical 1KiB
// nametable banks according to the cartridge's mirroring mode.
func (pm *PPUMemory) nametableIndex(address uint16) uint16 {
	address &= 0x0FFF
	table := (address >> 10) & 3
	offset := address & 0x3FF

	switch pm.mirroring {
	case MirrorVertical:
		if table == 1 || table == 3 {
			return 0x400 + offset
		}
		return offset
	default: // MirrorHorizontal
		if table >= 2 {
			return 0x400 + offset
		}
		return offset
	}
}

// readPalette reads palette RAM, masking to the 32-byte window.
func (pm *PPUMemory) readPalette(address uint16) uint8 {
	index := (address - 0x3F00) & 0x1F
	return pm.paletteRAM[index]
}

// writePalette writes palette RAM. Writes to the universal
// background color slot ($3F00/$3F10 and their per-palette duplicates at
// $3F04/$3F08/$3F0C/$3F14/$3F18/$3F1C) are aliased across all eight slots.
func (pm *PPUMemory) writePalette(address uint16, value uint8) {
	index := (address - 0x3F00) & 0x1F
	pm.paletteRAM[index] = value
	if index&0x03 == 0 {
		pm.paletteRAM[index^0x10] = value
	}
}
