// Package cartridge implements ROM loading and parsing for NES cartridges.
package cartridge

// Mapper001 implements MMC1, the serial-shift-register mapper used by
// Mega Man 2, The Legend of Zelda, Metroid and hundreds of others.
// Writes to $8000-$FFFF feed a 5-bit shift register one bit at a time
// (LSB first); the fifth write latches the accumulated value into one
// of four internal registers selected by the address's high bits.
// Writing with bit 7 set resets the shift register immediately and
// forces PRG mode 3 (16KB switchable at $8000, fixed last bank at
// $C000), regardless of what bit position the reset happened on.
type Mapper001 struct {
	cart *Cartridge

	shift    uint8
	shiftLen uint8

	control uint8 // mirroring (bits0-1), PRG mode (bits2-3), CHR mode (bit4)
	chrBank0 uint8
	chrBank1 uint8
	prgBank  uint8

	prgBanks uint8 // number of 16KB PRG banks
	chrBanks uint8 // number of 4KB CHR banks (CHR-RAM counts as 2)
}

// NewMapper001 creates a new MMC1 mapper with its reset-default state:
// control=$0C selects PRG mode 3 (fixed last bank), as real hardware
// does on power-on before the first register write.
func NewMapper001(cart *Cartridge) *Mapper001 {
	chrBanks := uint8(len(cart.chrROM) / 0x1000)
	if chrBanks == 0 {
		chrBanks = 2
	}
	return &Mapper001{
		cart:     cart,
		control:  0x0C,
		prgBanks: uint8(len(cart.prgROM) / 0x4000),
		chrBanks: chrBanks,
	}
}

func (m *Mapper001) ReadPRG(address uint16) uint8 {
	if address >= 0x6000 && address < 0x8000 {
		return m.cart.sram[address-0x6000]
	}
	if address < 0x8000 {
		return 0
	}

	bank := m.prgBank & 0x0F
	offset := address - 0x8000

	switch (m.control >> 2) & 0x03 {
	case 0, 1:
		// 32KB mode: ignore the low bank bit, switch the whole window.
		base := uint32(bank&0xFE) * 0x4000
		return m.prgByte(base + uint32(offset))
	case 2:
		// Fix first bank at $8000, switch 16KB at $C000.
		if offset < 0x4000 {
			return m.prgByte(uint32(offset))
		}
		return m.prgByte(uint32(bank)*0x4000 + uint32(offset-0x4000))
	default:
		// Fix last bank at $C000, switch 16KB at $8000.
		if offset < 0x4000 {
			return m.prgByte(uint32(bank)*0x4000 + uint32(offset))
		}
		last := uint32(m.prgBanks-1) * 0x4000
		return m.prgByte(last + uint32(offset-0x4000))
	}
}

func (m *Mapper001) prgByte(index uint32) uint8 {
	if int(index) < len(m.cart.prgROM) {
		return m.cart.prgROM[index]
	}
	return 0
}

func (m *Mapper001) WritePRG(address uint16, value uint8) {
	if address >= 0x6000 && address < 0x8000 {
		m.cart.sram[address-0x6000] = value
		return
	}
	if address < 0x8000 {
		return
	}

	if value&0x80 != 0 {
		m.shift = 0
		m.shiftLen = 0
		m.control |= 0x0C
		return
	}

	m.shift |= (value & 0x01) << m.shiftLen
	m.shiftLen++

	if m.shiftLen < 5 {
		return
	}

	result := m.shift
	m.shift = 0
	m.shiftLen = 0

	switch {
	case address < 0xA000:
		m.control = result
	case address < 0xC000:
		m.chrBank0 = result
	case address < 0xE000:
		m.chrBank1 = result
	default:
		m.prgBank = result
	}
}

func (m *Mapper001) ReadCHR(address uint16) uint8 {
	if address >= 0x2000 {
		return 0
	}
	if (m.control & 0x10) == 0 {
		// 8KB CHR mode: chrBank0's low bits select the pair, ignoring bit 0.
		base := uint32(m.chrBank0&0x1E) * 0x1000
		return m.chrByte(base + uint32(address))
	}
	if address < 0x1000 {
		return m.chrByte(uint32(m.chrBank0)*0x1000 + uint32(address))
	}
	return m.chrByte(uint32(m.chrBank1)*0x1000 + uint32(address-0x1000))
}

func (m *Mapper001) chrByte(index uint32) uint8 {
	if int(index) < len(m.cart.chrROM) {
		return m.cart.chrROM[index]
	}
	return 0
}

func (m *Mapper001) WriteCHR(address uint16, value uint8) {
	if address >= 0x2000 || !m.cart.hasCHRRAM {
		return
	}
	var index uint32
	if (m.control & 0x10) == 0 {
		index = uint32(m.chrBank0&0x1E)*0x1000 + uint32(address)
	} else if address < 0x1000 {
		index = uint32(m.chrBank0)*0x1000 + uint32(address)
	} else {
		index = uint32(m.chrBank1)*0x1000 + uint32(address-0x1000)
	}
	if int(index) < len(m.cart.chrROM) {
		m.cart.chrROM[index] = value
	}
}

func (m *Mapper001) MirroringMode() MirrorMode {
	switch m.control & 0x03 {
	case 0:
		return MirrorSingleScreen0
	case 1:
		return MirrorSingleScreen1
	case 2:
		return MirrorVertical
	default:
		return MirrorHorizontal
	}
}

func (m *Mapper001) PPUAddressChanged(address uint16) {}

func (m *Mapper001) TakeIRQ() bool { return false }

func (m *Mapper001) SaveSRAM() []uint8 {
	out := make([]uint8, len(m.cart.sram))
	copy(out, m.cart.sram[:])
	return out
}

func (m *Mapper001) LoadSRAM(data []uint8) {
	copy(m.cart.sram[:], data)
}

func (m *Mapper001) BatteryBacked() bool {
	return m.cart.hasBattery
}
