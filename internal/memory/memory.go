// Package memory implements memory management and mappers for the NES.
package memory

import "math/rand/v2"

// Memory represents the NES memory map
type Memory struct {
	// Internal RAM (2KB, mirrored to 8KB)
	ram [0x800]uint8

	// PPU registers (mirrored)
	ppuRegisters PPUInterface

	// APU and I/O registers
	apuRegisters APUInterface

	// Input system
	inputSystem InputInterface

	// Cartridge
	cartridge CartridgeInterface

	// DMA callback
	dmaCallback func(uint8)
	
	// Open bus - last value read from bus (for unmapped areas)
	openBusValue uint8

	// randomizeStartRAM selects the power-up WRAM fill pattern: true
	// seeds a pseudo-random byte pattern (closer to real hardware's
	// unpredictable power-up state), false zero-initializes.
	randomizeStartRAM bool

	// genie intercepts cartridge-space reads for active Game Genie
	// codes. nil when no codes are active.
	genie genieIntercept
}

// genieIntercept is implemented by internal/state.GenieCodeSet. Kept
// as a small structural interface here (rather than importing
// internal/state) to avoid a memory->state->bus->memory import cycle.
type genieIntercept interface {
	Intercept(address uint16, mapperValue uint8) uint8
}

// SetGenieCodes installs the active Game Genie code set. Pass nil to
// disable interception.
func (m *Memory) SetGenieCodes(g genieIntercept) {
	m.genie = g
}

// PPUMemory represents the PPU's memory space for testing
type PPUMemory struct {
	vram       [0x1000]uint8 // 4KB VRAM (nametables)
	paletteRAM [32]uint8     // 32 bytes palette RAM
	cartridge  CartridgeInterface
	mirroring  MirrorMode
}

// MirrorMode represents nametable mirroring mode
type MirrorMode uint8

const (
	MirrorHorizontal MirrorMode = iota
	MirrorVertical
	MirrorSingleScreen0
	MirrorSingleScreen1
	MirrorFourScreen
)

// PPUInterface defines the interface for PPU register access
type PPUInterface interface {
	ReadRegister(address uint16) uint8
	WriteRegister(address uint16, value uint8)
}

// APUInterface defines the interface for APU register access
type APUInterface interface {
	WriteRegister(address uint16, value uint8)
	ReadStatus() uint8
}

// InputInterface defines the interface for input system access.
// Read takes the CPU bus's current open-bus latch value so the input
// system can source unconnected/open-bus data lines from it instead of
// a hardcoded constant.
type InputInterface interface {
	Read(address uint16, openBus uint8) uint8
	Write(address uint16, value uint8)
}

// CartridgeInterface defines the interface for cartridge access
type CartridgeInterface interface {
	ReadPRG(address uint16) uint8
	WritePRG(address uint16, value uint8)
	ReadCHR(address uint16) uint8
	WriteCHR(address uint16, value uint8)
}

// New creates a new Memory instance. WRAM powers up zeroed; use
// NewWithStartRAM to opt into the pseudo-random power-up fill some
// games rely on to behave consistently across hardware revisions.
func New(ppu PPUInterface, apu APUInterface, cart CartridgeInterface) *Memory {
	return NewWithStartRAM(ppu, apu, cart, false)
}

// NewWithStartRAM creates a new Memory instance, with randomizeStartRAM
// selecting WRAM's power-up fill pattern (see the Memory.randomizeStartRAM
// field). This is passed through explicitly rather than read from a
// process-wide global so construction has no hidden state.
func NewWithStartRAM(ppu PPUInterface, apu APUInterface, cart CartridgeInterface, randomizeStartRAM bool) *Memory {
	mem := &Memory{
		ppuRegisters:       ppu,
		apuRegisters:       apu,
		cartridge:          cart,
		randomizeStartRAM:  randomizeStartRAM,
	}

	mem.initializePowerUpRAM()

	return mem
}

// SetInputSystem sets the input system for controller access
func (m *Memory) SetInputSystem(input InputInterface) {
	m.inputSystem = input
}

// SetDMACallback sets the DMA callback function
func (m *Memory) SetDMACallback(callback func(uint8)) {
	m.dmaCallback = callback
}

// cpuCycleClocked is implemented by mappers whose IRQ counter ticks on
// the CPU clock (FME-7, VRC6) rather than on PPU address transitions.
type cpuCycleClocked interface {
	ClockCPUCycle()
}

// ClockCartridgeCPUCycle forwards one CPU-cycle tick to the cartridge's
// mapper, for mappers whose IRQ timer is CPU-clock driven.
func (m *Memory) ClockCartridgeCPUCycle() {
	if clocked, ok := m.cartridge.(cpuCycleClocked); ok {
		clocked.ClockCPUCycle()
	}
}

// irqSource is implemented by mappers exposing a drainable IRQ edge.
type irqSource interface {
	TakeIRQ() bool
}

// TakeCartridgeIRQ drains and clears any pending mapper IRQ.
func (m *Memory) TakeCartridgeIRQ() bool {
	if source, ok := m.cartridge.(irqSource); ok {
		return source.TakeIRQ()
	}
	return false
}

// cartridgeStateSaver is implemented by cartridges able to serialize
// their battery-backed RAM and mapper register state for save states.
type cartridgeStateSaver interface {
	SaveSRAM() []uint8
	LoadSRAM(data []uint8)
	SaveMapperState() []uint8
	LoadMapperState(data []uint8) error
}

// SaveCartridgeState captures SRAM and mapper register state, or nil
// slices if the attached cartridge doesn't support serialization (e.g.
// MockCartridge in tests).
func (m *Memory) SaveCartridgeState() (sram []uint8, mapperState []uint8) {
	if saver, ok := m.cartridge.(cartridgeStateSaver); ok {
		return saver.SaveSRAM(), saver.SaveMapperState()
	}
	return nil, nil
}

// RestoreCartridgeState restores SRAM and mapper register state
// previously captured by SaveCartridgeState.
func (m *Memory) RestoreCartridgeState(sram []uint8, mapperState []uint8) error {
	saver, ok := m.cartridge.(cartridgeStateSaver)
	if !ok {
		return nil
	}
	if sram != nil {
		saver.LoadSRAM(sram)
	}
	if mapperState != nil {
		return saver.LoadMapperState(mapperState)
	}
	return nil
}

// initializePowerUpRAM fills WRAM per the randomizeStartRAM policy:
// zeroed (Go's default) when false, or a pseudo-random byte pattern
// when true, standing in for real hardware's unpredictable power-up
// state without requiring bit-exact reproduction of any one console.
func (m *Memory) initializePowerUpRAM() {
	if !m.randomizeStartRAM {
		return
	}
	for i := range m.ram {
		m.ram[i] = uint8(rand.IntN(256))
	}
}

// Read reads a byte from the given address
func (m *Memory) Read(address uint16) uint8 {
	var value uint8
	
	switch {
	case address < 0x2000:
		// Internal RAM (mirrored)
		realAddr := address & 0x07FF
		value = m.ram[realAddr]

	case address < 0x4000:
		// PPU registers (mirrored every 8 bytes)
		value = m.ppuRegisters.ReadRegister(0x2000 + (address & 0x0007))

	case address < 0x4020:
		// APU and I/O registers
		if address == 0x4015 {
			// APU status register
			value = m.apuRegisters.ReadStatus()
		} else if address == 0x4016 || address == 0x4017 {
			// Controller registers
			if m.inputSystem != nil {
				value = m.inputSystem.Read(address, m.openBusValue)
				// Debug log for controller reads (disabled for performance - uncomment if needed for debugging)
				// fmt.Printf("[MEMORY_DEBUG] Controller read $%04X = $%02X\n", address, value)
			} else {
				// fmt.Printf("[MEMORY_DEBUG] Controller read $%04X = $00 (no input system)\n", address)
				value = 0
			}
		} else {
			// Other APU/I/O registers are write-only, return open bus
			value = m.openBusValue
		}

	case address >= 0x6000 && address < 0x8000:
		// PRG RAM/SRAM ($6000-$7FFF)
		if m.cartridge != nil {
			value = m.cartridge.ReadPRG(address)
			if m.genie != nil {
				value = m.genie.Intercept(address, value)
			}
		} else {
			// No cartridge RAM, return open bus
			value = m.openBusValue
		}

	case address < 0x8000:
		// Cartridge expansion area ($4020-$5FFF) - unmapped, return open bus
		value = m.openBusValue

	default:
		// PRG ROM ($8000-$FFFF)
		if m.cartridge != nil {
			value = m.cartridge.ReadPRG(address)
			if m.genie != nil {
				value = m.genie.Intercept(address, value)
			}
		} else {
			// No cartridge, return open bus
			value = m.openBusValue
		}
	}
	
	// Update open bus value with the value that was read
	// This simulates the NES behavior where the last value on the bus "lingers"
	m.openBusValue = value
	return value
}

// Write writes a byte to the given address
func (m *Memory) Write(address uint16, value uint8) {
	switch {
	case address < 0x2000:
		// Internal RAM (mirrored)
		realAddr := address & 0x07FF
		m.ram[realAddr] = value
		

	case address < 0x4000:
		// PPU registers (mirrored every 8 bytes)
		m.ppuRegisters.WriteRegister(0x2000+(address&0x0007), value)

	case address < 0x4020:
		// APU and I/O registers
		if address == 0x4014 {
			// OAM DMA - trigger through callback if available
			if m.dmaCallback != nil {
				m.dmaCallback(value)
			} else {
				// Fallback to immediate DMA (for compatibility)
				m.performOAMDMA(value)
			}
		} else if address == 0x4016 {
			// Controller strobe register
			if m.inputSystem != nil {
				// Debug logging for controller writes (disabled for performance - uncomment if needed for debugging)
				// fmt.Printf("[MEMORY_DEBUG] Controller write $%04X = $%02X (strobe=%t)\n", 
				// 	address, value, (value & 1) != 0)
				m.inputSystem.Write(address, value)
			} else {
				// fmt.Printf("[MEMORY_DEBUG] Controller write $%04X = $%02X (no input system)\n", address, value)
			}
		} else if address >= 0x4000 && address <= 0x4013 {
			// APU sound registers only (0x4000-0x4013)
			m.apuRegisters.WriteRegister(address, value)
		} else if address == 0x4015 {
			// APU status register
			m.apuRegisters.WriteRegister(address, value)
		} else if address == 0x4017 {
			// APU frame counter register
			m.apuRegisters.WriteRegister(address, value)
		}
		// Test mode registers ($4018-$401F) are ignored

	case address >= 0x6000 && address < 0x8000:
		// PRG RAM/SRAM ($6000-$7FFF)
		if m.cartridge != nil {
			m.cartridge.WritePRG(address, value)
		}

	case address < 0x8000:
		// Cartridge expansion area ($4020-$5FFF) - unmapped, ignore writes

	default:
		// PRG ROM ($8000-$FFFF) (some mappers allow writes)
		if m.cartridge != nil {
			m.cartridge.WritePRG(address, value)
		}
	}
}

// performOAMDMA performs OAM DMA transfer
func (m *Memory) performOAMDMA(page uint8) {
	// Copy 256 bytes from CPU page to OAM
	baseAddress := uint16(page) << 8
	for i := uint16(0); i < 256; i++ {
		value := m.Read(baseAddress + i)
		m.ppuRegisters.WriteRegister(0x2004, value)
	}
}

// NewPPUMemory creates a new PPU memory instance
func NewPPUMemory(cart CartridgeInterface, mirroring MirrorMode) *PPUMemory {
	mem := &PPUMemory{
		cartridge: cart,
		mirroring: mirroring,
	}
	
	// Initialize palette RAM with proper default values
	// Background color positions (0x00, 0x04, 0x08, 0x0C) should be black (0x0F)
	for i := 0; i < 32; i += 4 {
		mem.paletteRAM[i] = 0x0F // Black background color
	}
	
	return mem
}

// ppuAddressWatcher is implemented by mappers that drive a scanline or
// cycle IRQ counter off the PPU's address bus (MMC3, VRC6, MMC2/MMC4's
// CHR latches); the PPU's every memory access notifies it.
type ppuAddressWatcher interface {
	PPUAddressChanged(address uint16)
}

// Read reads from PPU memory space ($0000-$3FFF)
func (pm *PPUMemory) Read(address uint16) uint8 {
	address &= 0x3FFF // Mask to 14-bit address space

	if watcher, ok := pm.cartridge.(ppuAddressWatcher); ok {
		watcher.PPUAddressChanged(address)
	}

	switch {
	case address < 0x2000:
		// Pattern Tables ($0000-$1FFF) - CHR ROM/RAM
		return pm.cartridge.ReadCHR(address)

	case address < 0x3000:
		// Nametables ($2000-$2FFF)
		return pm.readNametable(address)

	case address < 0x3F00:
		// Nametable mirrors ($3000-$3EFF)
		return pm.readNametable(address - 0x1000)

	case address < 0x3F20:
		// Palette RAM ($3F00-$3F1F)
		return pm.readPalette(address)

	default:
		// Palette RAM mirrors ($3F20-$3FFF)
		return pm.readPalette(address)
	}
}

// Write writes to PPU memory space ($0000-$3FFF)
func (pm *PPUMemory) Write(address uint16, value uint8) {
	address &= 0x3FFF // Mask to 14-bit address space

	switch {
	case address < 0x2000:
		// Pattern Tables ($0000-$1FFF) - CHR ROM/RAM
		pm.cartridge.WriteCHR(address, value)

	case address < 0x3000:
		// Nametables ($2000-$2FFF)
		pm.writeNametable(address, value)

	case address < 0x3F00:
		// Nametable mirrors ($3000-$3EFF)
		pm.writeNametable(address-0x1000, value)

	case address < 0x3F20:
		// Palette RAM ($3F00-$3F1F)
		pm.writePalette(address, value)

	default:
		// Palette RAM mirrors ($3F20-$3FFF)
		pm.writePalette(address, value)
	}
}

// PPUMemorySnapshot is the PPU memory's complete serializable state.
type PPUMemorySnapshot struct {
	VRAM       [0x1000]uint8
	PaletteRAM [32]uint8
	Mirroring  MirrorMode
}

// Snapshot captures the PPU memory's VRAM, palette RAM and mirroring mode.
func (pm *PPUMemory) Snapshot() PPUMemorySnapshot {
	return PPUMemorySnapshot{VRAM: pm.vram, PaletteRAM: pm.paletteRAM, Mirroring: pm.mirroring}
}

// Restore replaces the PPU memory's state with a captured snapshot.
func (pm *PPUMemory) Restore(s PPUMemorySnapshot) {
	pm.vram = s.VRAM
	pm.paletteRAM = s.PaletteRAM
	pm.mirroring = s.Mirroring
}

// WRAMSnapshot returns a copy of the CPU's 2KB work RAM.
func (m *Memory) WRAMSnapshot() [0x800]uint8 {
	return m.ram
}

// RestoreWRAM replaces the CPU's 2KB work RAM.
func (m *Memory) RestoreWRAM(data [0x800]uint8) {
	m.ram = data
}

// readNametable reads from nametable with mirroring
func (pm *PPUMemory) readNametable(address uint16) uint8 {
	index := pm.getNametableIndex(address)
	return pm.vram[index]
}

// writeNametable writes to nametable with mirroring
func (pm *PPUMemory) writeNametable(address uint16, value uint8) {
	index := pm.getNametableIndex(address)
	pm.vram[index] = value
}

// getNametableIndex calculates the actual VRAM index based on mirroring mode
func (pm *PPUMemory) getNametableIndex(address uint16) uint16 {
	address &= 0x0FFF                // Keep only nametable bits
	nametable := (address >> 10) & 3 // Which nametable (0-3)
	offset := address & 0x3FF        // Offset within nametable

	switch pm.mirroring {
	case MirrorHorizontal:
		// $2000-$23FF and $2400-$27FF map to first 1KB
		// $2800-$2BFF and $2C00-$2FFF map to second 1KB
		if nametable >= 2 {
			return 0x400 + offset
		}
		return offset

	case MirrorVertical:
		// $2000-$23FF and $2800-$2BFF map to first 1KB
		// $2400-$27FF and $2C00-$2FFF map to second 1KB
		if nametable == 1 || nametable == 3 {
			return 0x400 + offset
		}
		return offset

	case MirrorSingleScreen0:
		// All nametables map to first 1KB
		return offset

	case MirrorSingleScreen1:
		// All nametables map to second 1KB
		return 0x400 + offset

	case MirrorFourScreen:
		// Each nametable has its own 1KB (requires 4KB VRAM)
		return uint16(nametable)*0x400 + offset

	default:
		return offset
	}
}

// readPalette reads from palette RAM with mirroring
func (pm *PPUMemory) readPalette(address uint16) uint8 {
	index := (address - 0x3F00) & 0x1F

	// Background color mirroring
	if index == 0x10 || index == 0x14 || index == 0x18 || index == 0x1C {
		index &= 0x0F
	}

	return pm.paletteRAM[index]
}

// writePalette writes to palette RAM with mirroring
func (pm *PPUMemory) writePalette(address uint16, value uint8) {
	index := (address - 0x3F00) & 0x1F

	// Background color mirroring
	if index == 0x10 || index == 0x14 || index == 0x18 || index == 0x1C {
		index &= 0x0F
	}

	pm.paletteRAM[index] = value
}
