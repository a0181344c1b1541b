// Package cartridge implements ROM loading and parsing for NES cartridges.
package cartridge

// Mapper005 implements a PRG/CHR-banking subset of MMC5 (Castlevania
// III, Just Breed): four independent 8KB PRG windows at $8000-$FFFF
// selected via $5114-$5117, and a single 8KB CHR window selected via
// $5127. MMC5's split-screen ExRAM mode, extra PCM/pulse audio
// channels, and vertical-split IRQ are not modeled — no component in
// this emulator's APU mixer or PPU accepts expansion audio or a
// secondary scanline split, so there is nothing to wire them to.
type Mapper005 struct {
	cart *Cartridge

	prgBank [4]uint8 // $5114-$5117, 8KB banks for $8000/$A000/$C000/$E000
	chrBank uint8    // $5127, 8KB CHR bank

	prgBanks8k uint8
	chrBanks8k uint8
}

func NewMapper005(cart *Cartridge) *Mapper005 {
	prgBanks := uint8(len(cart.prgROM) / 0x2000)
	chrBanks := uint8(len(cart.chrROM) / 0x2000)
	if chrBanks == 0 {
		chrBanks = 1
	}
	m := &Mapper005{cart: cart, prgBanks8k: prgBanks, chrBanks8k: chrBanks}
	for i := range m.prgBank {
		m.prgBank[i] = prgBanks - 1
	}
	return m
}

func (m *Mapper005) ReadPRG(address uint16) uint8 {
	if address >= 0x6000 && address < 0x8000 {
		return m.cart.sram[address-0x6000]
	}
	if address < 0x8000 {
		return 0
	}
	window := int((address - 0x8000) / 0x2000)
	bank := m.prgBank[window] % m.prgBanks8k
	index := uint32(bank)*0x2000 + uint32(address%0x2000)
	if int(index) < len(m.cart.prgROM) {
		return m.cart.prgROM[index]
	}
	return 0
}

func (m *Mapper005) WritePRG(address uint16, value uint8) {
	if address >= 0x6000 && address < 0x8000 {
		m.cart.sram[address-0x6000] = value
		return
	}
	switch address {
	case 0x5114, 0x5115, 0x5116, 0x5117:
		m.prgBank[address-0x5114] = value & 0x7F
	case 0x5127:
		m.chrBank = value
	}
}

func (m *Mapper005) ReadCHR(address uint16) uint8 {
	if address >= 0x2000 {
		return 0
	}
	index := uint32(m.chrBank%m.chrBanks8k)*0x2000 + uint32(address)
	if int(index) < len(m.cart.chrROM) {
		return m.cart.chrROM[index]
	}
	return 0
}

func (m *Mapper005) WriteCHR(address uint16, value uint8) {
	if !m.cart.hasCHRRAM || address >= 0x2000 {
		return
	}
	index := uint32(m.chrBank%m.chrBanks8k)*0x2000 + uint32(address)
	if int(index) < len(m.cart.chrROM) {
		m.cart.chrROM[index] = value
	}
}

func (m *Mapper005) MirroringMode() MirrorMode       { return m.cart.mirror }
func (m *Mapper005) PPUAddressChanged(address uint16) {}
func (m *Mapper005) TakeIRQ() bool                    { return false }

func (m *Mapper005) SaveSRAM() []uint8 {
	out := make([]uint8, len(m.cart.sram))
	copy(out, m.cart.sram[:])
	return out
}
func (m *Mapper005) LoadSRAM(data []uint8) { copy(m.cart.sram[:], data) }
func (m *Mapper005) BatteryBacked() bool   { return m.cart.hasBattery }
