// Package cartridge implements ROM loading and parsing for NES cartridges.
package cartridge

// Mapper002 implements UxROM: a single PRG bank-select register switches
// a 16KB window at $8000, while the last 16KB bank is permanently fixed
// at $C000. CHR is always RAM (8KB) since UxROM boards carry no CHR-ROM.
type Mapper002 struct {
	cart     *Cartridge
	prgBank  uint8
	prgBanks uint8
}

func NewMapper002(cart *Cartridge) *Mapper002 {
	return &Mapper002{
		cart:     cart,
		prgBanks: uint8(len(cart.prgROM) / 0x4000),
	}
}

func (m *Mapper002) ReadPRG(address uint16) uint8 {
	if address >= 0x6000 && address < 0x8000 {
		return m.cart.sram[address-0x6000]
	}
	if address < 0x8000 {
		return 0
	}
	offset := address - 0x8000
	if offset < 0x4000 {
		index := uint32(m.prgBank)*0x4000 + uint32(offset)
		if int(index) < len(m.cart.prgROM) {
			return m.cart.prgROM[index]
		}
		return 0
	}
	last := uint32(m.prgBanks-1) * 0x4000
	index := last + uint32(offset-0x4000)
	if int(index) < len(m.cart.prgROM) {
		return m.cart.prgROM[index]
	}
	return 0
}

func (m *Mapper002) WritePRG(address uint16, value uint8) {
	if address >= 0x6000 && address < 0x8000 {
		m.cart.sram[address-0x6000] = value
		return
	}
	if address >= 0x8000 {
		m.prgBank = value & (m.prgBanks - 1)
	}
}

func (m *Mapper002) ReadCHR(address uint16) uint8 {
	if address < 0x2000 && int(address) < len(m.cart.chrROM) {
		return m.cart.chrROM[address]
	}
	return 0
}

func (m *Mapper002) WriteCHR(address uint16, value uint8) {
	if address < 0x2000 && int(address) < len(m.cart.chrROM) {
		m.cart.chrROM[address] = value
	}
}

func (m *Mapper002) MirroringMode() MirrorMode { return m.cart.mirror }
func (m *Mapper002) PPUAddressChanged(address uint16) {}
func (m *Mapper002) TakeIRQ() bool { return false }

func (m *Mapper002) SaveSRAM() []uint8 {
	out := make([]uint8, len(m.cart.sram))
	copy(out, m.cart.sram[:])
	return out
}
func (m *Mapper002) LoadSRAM(data []uint8) { copy(m.cart.sram[:], data) }
func (m *Mapper002) BatteryBacked() bool   { return m.cart.hasBattery }
