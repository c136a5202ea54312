// Package ppu implements the Picture Processing Unit for the NES.
package ppu

import (
	"nesgo/internal/memory"
)

// PPU renders the NES's 256x240 frame one scanline at a time and exposes
// the $2000-$2007 register file to the CPU bus.
type PPU struct {
	ctrl   uint8 // $2000
	mask   uint8 // $2001
	oamAddr uint8 // $2003

	vblank         bool
	sprite0Hit     bool
	spriteOverflow bool

	vramAddr    uint16 // current VRAM address, masked to 14 bits on access
	vramBuffer  uint8  // delayed $2007 read latch
	scrollX     uint8
	scrollY     uint8
	writeToggle bool

	oam [256]uint8

	mem *memory.PPUMemory

	frameBuffer [256 * 240]uint32
	bgOpaque    [256]bool

	nmiCallback           func()
	frameCompleteCallback func([256 * 240]uint32)
}

// New creates a PPU wired to the given PPU bus.
func New(mem *memory.PPUMemory) *PPU {
	return &PPU{mem: mem}
}

// Reset returns the PPU to its post-power-on state.
func (p *PPU) Reset() {
	p.ctrl = 0
	p.mask = 0
	p.vblank = false
	p.sprite0Hit = false
	p.spriteOverflow = false
	p.oamAddr = 0
	p.vramAddr = 0
	p.vramBuffer = 0
	p.scrollX = 0
	p.scrollY = 0
	p.writeToggle = false
	for i := range p.oam {
		p.oam[i] = 0
	}
}

// SetNMICallback wires the CPU's NMI line.
func (p *PPU) SetNMICallback(callback func()) {
	p.nmiCallback = callback
}

// SetFrameCompleteCallback wires the host frame-sink, called once per frame
// at VBlank entry with the completed 256x240 RGB buffer.
func (p *PPU) SetFrameCompleteCallback(callback func([256 * 240]uint32)) {
	p.frameCompleteCallback = callback
}

// FrameBuffer returns the most recently rendered frame.
func (p *PPU) FrameBuffer() [256 * 240]uint32 {
	return p.frameBuffer
}

// WriteOAMByte writes a single OAM byte and advances oamAddr, as OAM DMA does.
func (p *PPU) WriteOAMByte(value uint8) {
	p.oam[p.oamAddr] = value
	p.oamAddr++
}

func (p *PPU) incrementAddress() uint16 {
	if p.ctrl&0x04 != 0 {
		return 32
	}
	return 1
}

func (p *PPU) nameTableAddress() uint16 {
	return 0x2000 + uint16(p.ctrl&0x03)*0x400
}

func (p *PPU) backgroundPatternTable() uint16 {
	if p.ctrl&0x10 != 0 {
		return 0x1000
	}
	return 0
}

func (p *PPU) spritePatternTable() uint16 {
	if p.ctrl&0x08 != 0 {
		return 0x1000
	}
	return 0
}

func (p *PPU) spriteHeight() int {
	if p.ctrl&0x20 != 0 {
		return 16
	}
	return 8
}

func (p *PPU) nmiEnabled() bool { return p.ctrl&0x80 != 0 }

func (p *PPU) showBackground() bool { return p.mask&0x08 != 0 }
func (p *PPU) showSprites() bool    { return p.mask&0x10 != 0 }
func (p *PPU) clipBackground() bool { return p.mask&0x02 == 0 }
func (p *PPU) clipSprites() bool    { return p.mask&0x04 == 0 }

// ReadRegister serves a CPU read of $2000-$2007.
func (p *PPU) ReadRegister(address uint16) uint8 {
	switch address & 0x0007 {
	case 2:
		var status uint8
		if p.vblank {
			status |= 0x80
		}
		if p.sprite0Hit {
			status |= 0x40
		}
		if p.spriteOverflow {
			status |= 0x20
		}
		p.vblank = false
		p.writeToggle = false
		return status
	case 4:
		return p.oam[p.oamAddr]
	case 7:
		addr := p.vramAddr & 0x3FFF
		var result uint8
		if addr < 0x3F00 {
			result = p.vramBuffer
			p.vramBuffer = p.mem.Read(addr)
		} else {
			result = p.mem.Read(addr)
			p.vramBuffer = p.mem.Read(addr)
		}
		p.vramAddr += p.incrementAddress()
		return result
	default:
		return 0
	}
}

// WriteRegister serves a CPU write of $2000-$2007.
func (p *PPU) WriteRegister(address uint16, value uint8) {
	switch address & 0x0007 {
	case 0:
		wasNMIEnabled := p.nmiEnabled()
		p.ctrl = value
		if !wasNMIEnabled && p.nmiEnabled() && p.vblank && p.nmiCallback != nil {
			p.nmiCallback()
		}
	case 1:
		p.mask = value
	case 3:
		p.oamAddr = value
	case 4:
		p.oam[p.oamAddr] = value
		p.oamAddr++
	case 5:
		if !p.writeToggle {
			p.scrollX = value
		} else {
			p.scrollY = value
		}
		p.writeToggle = !p.writeToggle
	case 6:
		if !p.writeToggle {
			p.vramAddr = (p.vramAddr & 0x00FF) | (uint16(value) << 8)
		} else {
			p.vramAddr = (p.vramAddr & 0xFF00) | uint16(value)
		}
		p.writeToggle = !p.writeToggle
	case 7:
		p.mem.Write(p.vramAddr&0x3FFF, value)
		p.vramAddr += p.incrementAddress()
	}
}

// RenderScanline advances the VBlank state machine and, for visible
// scanlines, draws one row of background and sprite pixels into the
// frame buffer.
func (p *PPU) RenderScanline(scanline int) {
	switch {
	case scanline == 0:
		p.sprite0Hit = false
		if p.showBackground() || p.showSprites() {
			p.renderBackgroundScanline(scanline)
			p.renderSpritesScanline(scanline)
		}
	case scanline >= 1 && scanline <= 239:
		if p.showBackground() || p.showSprites() {
			p.renderBackgroundScanline(scanline)
			p.renderSpritesScanline(scanline)
		}
	case scanline == 241:
		p.vblank = true
		if p.nmiEnabled() && p.nmiCallback != nil {
			p.nmiCallback()
		}
		if p.frameCompleteCallback != nil {
			p.frameCompleteCallback(p.frameBuffer)
		}
	case scanline == 261:
		p.vblank = false
		p.spriteOverflow = false
	}
}

func (p *PPU) renderBackgroundScanline(scanline int) {
	for i := range p.bgOpaque {
		p.bgOpaque[i] = false
	}
	if !p.showBackground() {
		return
	}

	tileY := scanline / 8
	fineY := uint16(scanline % 8)
	startOffset := int(p.scrollX % 8)
	currentTile := uint16(p.scrollX / 8)
	ntBase := p.nameTableAddress()

	tileCount := 32
	if startOffset != 0 {
		tileCount = 33
	}

	bgPatternTable := p.backgroundPatternTable()

	for i := 0; i < tileCount; i++ {
		tileAddr := ntBase + uint16(tileY)*32 + currentTile
		tileID := p.mem.Read(tileAddr)

		patLow := p.mem.Read(bgPatternTable + uint16(tileID)*16 + fineY)
		patHigh := p.mem.Read(bgPatternTable + uint16(tileID)*16 + fineY + 8)

		attrAddr := (ntBase &^ 0x001F) + 0x3C0 + uint16(i/4) + uint16(tileY/4)*8
		attrByte := p.mem.Read(attrAddr)
		quadrant := ((tileY%4)/2)*2 + ((i % 4) / 2)
		palette := (attrByte >> (uint(quadrant) * 2)) & 0x03

		for b := 0; b < 8; b++ {
			col := i*8 + b - startOffset
			if col < 0 || col >= 256 {
				continue
			}
			if p.clipBackground() && col < 8 {
				continue
			}

			bit := uint(7 - b)
			lowBit := (patLow >> bit) & 1
			highBit := (patHigh >> bit) & 1
			patternIndex := lowBit | highBit<<1

			var paletteAddr uint16
			if patternIndex == 0 {
				paletteAddr = 0x3F00
			} else {
				paletteAddr = 0x3F00 + uint16(palette)<<2 + uint16(patternIndex)
				p.bgOpaque[col] = true
			}
			colorIndex := p.mem.Read(paletteAddr) & 0x3F
			p.frameBuffer[scanline*256+col] = nesColorPalette[colorIndex]
		}

		if currentTile&0x1F == 0x1F {
			currentTile &^= 0x1F
			ntBase ^= 0x0400
		} else {
			currentTile++
		}
	}
}

type spriteSlot struct {
	y, tile, attr, x uint8
	index            int
}

func (p *PPU) evaluateSprites(scanline int) []spriteSlot {
	height := p.spriteHeight()
	var selected []spriteSlot
	for idx := 0; idx < 64 && len(selected) < 8; idx++ {
		y := p.oam[idx*4]
		if scanline >= int(y) && scanline < int(y)+height {
			selected = append(selected, spriteSlot{
				y:     y,
				tile:  p.oam[idx*4+1],
				attr:  p.oam[idx*4+2],
				x:     p.oam[idx*4+3],
				index: idx,
			})
		}
	}
	return selected
}

func (p *PPU) renderSpritesScanline(scanline int) {
	if !p.showSprites() {
		return
	}

	selected := p.evaluateSprites(scanline)
	spritePatternTable := p.spritePatternTable()
	height := p.spriteHeight()

	// Render in reverse selection order so the lowest OAM index ends up
	// drawn last, and therefore on top.
	for k := len(selected) - 1; k >= 0; k-- {
		s := selected[k]
		if s.y >= 0xEF || s.x >= 0xF9 {
			continue
		}

		flipV := s.attr&0x80 != 0
		flipH := s.attr&0x40 != 0
		palette := s.attr & 0x03

		row := scanline - int(s.y)
		if flipV {
			row = height - 1 - row
		}

		lowByte := p.mem.Read(spritePatternTable + uint16(s.tile)*16 + uint16(row))
		highByte := p.mem.Read(spritePatternTable + uint16(s.tile)*16 + uint16(row) + 8)

		for j := 0; j < 8; j++ {
			bit := uint(j)
			if !flipH {
				bit = uint(7 - j)
			}
			lowBit := (lowByte >> bit) & 1
			highBit := (highByte >> bit) & 1
			colorIndex := lowBit | highBit<<1
			if colorIndex == 0 {
				continue
			}

			screenX := int(s.x) + j
			if screenX >= 256 {
				continue
			}
			if p.clipSprites() && screenX < 8 {
				continue
			}

			if s.index == 0 && p.bgOpaque[screenX] && p.showBackground() {
				p.sprite0Hit = true
			}

			paletteAddr := 0x3F10 + uint16(palette)<<2 + uint16(colorIndex)
			rgbIndex := p.mem.Read(paletteAddr) & 0x3F
			p.frameBuffer[scanline*256+screenX] = nesColorPalette[rgbIndex]
		}
	}
}

// nesColorPalette is the fixed 64-entry 2C02 "composite" approximation.
var nesColorPalette = [64]uint32{
	// Row 0 (0x00-0x0F)
	0xFF757575, 0xFF002A88, 0xFF1412A7, 0xFF3B00A4, 0xFF5C007E, 0xFF6E0040, 0xFF6C0600, 0xFF561D00,
	0xFF333500, 0xFF0B4800, 0xFF005200, 0xFF004F08, 0xFF00404D, 0xFF000000, 0xFF000000, 0xFF000000,
	// Row 1 (0x10-0x1F)
	0xFFADADAD, 0xFF155FD9, 0xFF4240FF, 0xFF7527FE, 0xFFA01ACC, 0xFFB71E7B, 0xFFB53120, 0xFF994E00,
	0xFF6B6D00, 0xFF388700, 0xFF0C9300, 0xFF008F32, 0xFF007C8D, 0xFF000000, 0xFF000000, 0xFF000000,
	// Row 2 (0x20-0x2F)
	0xFFFFFEFF, 0xFF64B0FF, 0xFF9290FF, 0xFFC676FF, 0xFFF36AFF, 0xFFFE6ECC, 0xFFFE8170, 0xFFEA9E22,
	0xFFBCBE00, 0xFF88D800, 0xFF5CE430, 0xFF45E082, 0xFF48CDDE, 0xFF4F4F4F, 0xFF000000, 0xFF000000,
	// Row 3 (0x30-0x3F)
	0xFFFFFEFF, 0xFFC0DFFF, 0xFFD3D2FF, 0xFFE8C8FF, 0xFFFBC2FF, 0xFFFEC4EA, 0xFFFECCC5, 0xFFF7D8A5,
	0xFFE4E594, 0xFFCFF29B, 0xFFBEFBB3, 0xFFB8F8D8, 0xFFB8F8F8, 0xFF000000, 0xFF000000, 0xFF000000,
}

// NESColorToRGB converts a NES palette index (0-63) to a 24-bit RGB value.
func NESColorToRGB(colorIndex uint8) uint32 {
	if colorIndex >= 64 {
		return 0
	}
	return nesColorPalette[colorIndex] & 0x00FFFFFF
}
