// Package cartridge implements ROM loading and parsing for NES cartridges.
package cartridge

// Mapper009 implements MMC2 (Punch-Out!!): an 8KB switchable PRG bank
// at $8000 with the top three 8KB banks fixed, and CHR banking driven
// by two independent "FD/FE" latches that flip whenever the PPU fetches
// tile $FD or $FE from the corresponding 4KB pattern-table half. This
// lets one CHR bank hold Punch-Out's large opponent sprites without
// consuming the full 8KB CHR window.
//
// Mapper010 (MMC4) reuses this struct with mmc4 set: PRG switches in
// 16KB windows instead of 8KB, and the fixed PRG bank sits at $C000
// instead of occupying the top three banks.
type Mapper009 struct {
	cart *Cartridge
	mmc4 bool

	prgBank uint8

	latch0, latch1 uint8 // 0xFD or 0xFE
	chr0FD, chr0FE uint8
	chr1FD, chr1FE uint8

	mirror uint8 // 0=vertical, 1=horizontal

	prgBanks8k  uint8
	prgBanks16k uint8
}

func NewMapper009(cart *Cartridge) *Mapper009 {
	return newMapper009(cart, false)
}

func NewMapper010(cart *Cartridge) *Mapper009 {
	return newMapper009(cart, true)
}

func newMapper009(cart *Cartridge, mmc4 bool) *Mapper009 {
	return &Mapper009{
		cart:        cart,
		mmc4:        mmc4,
		latch0:      0xFE,
		latch1:      0xFE,
		prgBanks8k:  uint8(len(cart.prgROM) / 0x2000),
		prgBanks16k: uint8(len(cart.prgROM) / 0x4000),
	}
}

func (m *Mapper009) ReadPRG(address uint16) uint8 {
	if address >= 0x6000 && address < 0x8000 {
		return m.cart.sram[address-0x6000]
	}
	if address < 0x8000 {
		return 0
	}
	if m.mmc4 {
		offset := address - 0x8000
		if offset < 0x4000 {
			return m.prgByte(uint32(m.prgBank%m.prgBanks16k)*0x4000 + uint32(offset))
		}
		last := uint32(m.prgBanks16k-1) * 0x4000
		return m.prgByte(last + uint32(offset-0x4000))
	}
	offset := address - 0x8000
	if offset < 0x2000 {
		return m.prgByte(uint32(m.prgBank%m.prgBanks8k)*0x2000 + uint32(offset))
	}
	// Top three 8KB banks are fixed to the last three in the image.
	fixedBank := m.prgBanks8k - 3 + uint8((offset-0x2000)/0x2000)
	return m.prgByte(uint32(fixedBank)*0x2000 + uint32((offset-0x2000)%0x2000))
}

func (m *Mapper009) prgByte(index uint32) uint8 {
	if int(index) < len(m.cart.prgROM) {
		return m.cart.prgROM[index]
	}
	return 0
}

func (m *Mapper009) WritePRG(address uint16, value uint8) {
	if address >= 0x6000 && address < 0x8000 {
		m.cart.sram[address-0x6000] = value
		return
	}
	switch {
	case address >= 0xA000 && address < 0xB000:
		m.prgBank = value & 0x0F
	case address >= 0xB000 && address < 0xC000:
		m.chr0FD = value & 0x1F
	case address >= 0xC000 && address < 0xD000:
		m.chr0FE = value & 0x1F
	case address >= 0xD000 && address < 0xE000:
		m.chr1FD = value & 0x1F
	case address >= 0xE000 && address < 0xF000:
		m.chr1FE = value & 0x1F
	case address >= 0xF000:
		m.mirror = value & 0x01
	}
}

func (m *Mapper009) ReadCHR(address uint16) uint8 {
	value := m.chrByte(address)
	m.updateLatch(address)
	return value
}

func (m *Mapper009) chrByte(address uint16) uint8 {
	if address >= 0x2000 {
		return 0
	}
	var bank uint8
	if address < 0x1000 {
		if m.latch0 == 0xFD {
			bank = m.chr0FD
		} else {
			bank = m.chr0FE
		}
	} else {
		if m.latch1 == 0xFD {
			bank = m.chr1FD
		} else {
			bank = m.chr1FE
		}
	}
	offset := address % 0x1000
	index := uint32(bank)*0x1000 + uint32(offset)
	if int(index) < len(m.cart.chrROM) {
		return m.cart.chrROM[index]
	}
	return 0
}

// updateLatch flips the FD/FE latch for whichever pattern-table half
// address falls in, mirroring MMC2/MMC4's hardware tile-fetch trigger.
func (m *Mapper009) updateLatch(address uint16) {
	switch {
	case address >= 0x0FD8 && address <= 0x0FDF:
		m.latch0 = 0xFD
	case address >= 0x0FE8 && address <= 0x0FEF:
		m.latch0 = 0xFE
	case address >= 0x1FD8 && address <= 0x1FDF:
		m.latch1 = 0xFD
	case address >= 0x1FE8 && address <= 0x1FEF:
		m.latch1 = 0xFE
	}
}

func (m *Mapper009) WriteCHR(address uint16, value uint8) {
	// MMC2/MMC4 boards carry CHR-ROM only; writes are ignored.
}

func (m *Mapper009) MirroringMode() MirrorMode {
	if m.mirror == 0 {
		return MirrorVertical
	}
	return MirrorHorizontal
}

func (m *Mapper009) PPUAddressChanged(address uint16) {}
func (m *Mapper009) TakeIRQ() bool                    { return false }

func (m *Mapper009) SaveSRAM() []uint8 {
	out := make([]uint8, len(m.cart.sram))
	copy(out, m.cart.sram[:])
	return out
}
func (m *Mapper009) LoadSRAM(data []uint8) { copy(m.cart.sram[:], data) }
func (m *Mapper009) BatteryBacked() bool   { return m.cart.hasBattery }
