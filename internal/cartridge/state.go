package cartridge

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// SaveMapperState serializes the mapper's bank-select and IRQ-counter
// registers, the part of a cartridge's state that a save-state envelope
// needs beyond SaveSRAM. It is independent of ROM contents, so the
// envelope only needs to carry this plus the SRAM image.
func (c *Cartridge) SaveMapperState() []byte {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, c.mapperID)

	switch m := c.mapper.(type) {
	case *Mapper001:
		binary.Write(buf, binary.LittleEndian, m.shift)
		binary.Write(buf, binary.LittleEndian, m.shiftLen)
		binary.Write(buf, binary.LittleEndian, m.control)
		binary.Write(buf, binary.LittleEndian, m.chrBank0)
		binary.Write(buf, binary.LittleEndian, m.chrBank1)
		binary.Write(buf, binary.LittleEndian, m.prgBank)
	case *Mapper002:
		binary.Write(buf, binary.LittleEndian, m.prgBank)
	case *Mapper003:
		binary.Write(buf, binary.LittleEndian, m.chrBank)
	case *Mapper004:
		binary.Write(buf, binary.LittleEndian, m.bankSelect)
		binary.Write(buf, binary.LittleEndian, m.bankData)
		binary.Write(buf, binary.LittleEndian, m.prgMode)
		binary.Write(buf, binary.LittleEndian, m.chrMode)
		binary.Write(buf, binary.LittleEndian, m.mirror)
		binary.Write(buf, binary.LittleEndian, m.sramEnable)
		binary.Write(buf, binary.LittleEndian, m.sramWriteProt)
		binary.Write(buf, binary.LittleEndian, m.irqLatch)
		binary.Write(buf, binary.LittleEndian, m.irqCounter)
		binary.Write(buf, binary.LittleEndian, m.irqReload)
		binary.Write(buf, binary.LittleEndian, m.irqEnabled)
		binary.Write(buf, binary.LittleEndian, m.irqPending)
		binary.Write(buf, binary.LittleEndian, m.lastA12)
	case *Mapper005:
		binary.Write(buf, binary.LittleEndian, m.prgBank)
		binary.Write(buf, binary.LittleEndian, m.chrBank)
	case *Mapper007:
		binary.Write(buf, binary.LittleEndian, m.prgBank)
		binary.Write(buf, binary.LittleEndian, m.singleUpper)
	case *Mapper009:
		binary.Write(buf, binary.LittleEndian, m.prgBank)
		binary.Write(buf, binary.LittleEndian, m.latch0)
		binary.Write(buf, binary.LittleEndian, m.latch1)
		binary.Write(buf, binary.LittleEndian, m.chr0FD)
		binary.Write(buf, binary.LittleEndian, m.chr0FE)
		binary.Write(buf, binary.LittleEndian, m.chr1FD)
		binary.Write(buf, binary.LittleEndian, m.chr1FE)
		binary.Write(buf, binary.LittleEndian, m.mirror)
	case *Mapper011:
		binary.Write(buf, binary.LittleEndian, m.prgBank)
		binary.Write(buf, binary.LittleEndian, m.chrBank)
	case *Mapper024:
		binary.Write(buf, binary.LittleEndian, m.prgBank16)
		binary.Write(buf, binary.LittleEndian, m.prgBank8)
		binary.Write(buf, binary.LittleEndian, m.chrBank)
		binary.Write(buf, binary.LittleEndian, m.mirror)
		binary.Write(buf, binary.LittleEndian, m.irqLatch)
		binary.Write(buf, binary.LittleEndian, m.irqCounter)
		binary.Write(buf, binary.LittleEndian, m.irqEnable)
		binary.Write(buf, binary.LittleEndian, m.irqAckMode)
		binary.Write(buf, binary.LittleEndian, m.irqMode)
		binary.Write(buf, binary.LittleEndian, int32(m.irqPrescale))
		binary.Write(buf, binary.LittleEndian, m.irqPending)
	case *Mapper066:
		binary.Write(buf, binary.LittleEndian, m.prgBank)
		binary.Write(buf, binary.LittleEndian, m.chrBank)
	case *Mapper069:
		binary.Write(buf, binary.LittleEndian, m.command)
		binary.Write(buf, binary.LittleEndian, m.chrBank)
		binary.Write(buf, binary.LittleEndian, m.prgBank)
		binary.Write(buf, binary.LittleEndian, m.ramBank)
		binary.Write(buf, binary.LittleEndian, m.ramEnable)
		binary.Write(buf, binary.LittleEndian, m.ramSelect)
		binary.Write(buf, binary.LittleEndian, m.mirror)
		binary.Write(buf, binary.LittleEndian, m.irqEnable)
		binary.Write(buf, binary.LittleEndian, m.irqCounter)
		binary.Write(buf, binary.LittleEndian, m.irqValue)
		binary.Write(buf, binary.LittleEndian, m.irqPending)
	case *Mapper071:
		binary.Write(buf, binary.LittleEndian, m.prgBank)
	case *Mapper000:
		// No mutable registers beyond SRAM.
	}

	return buf.Bytes()
}

// LoadMapperState restores registers previously captured by
// SaveMapperState. The leading mapper ID is checked against the
// cartridge's own ID so a save state made with a different mapper
// can't be mistakenly applied.
func (c *Cartridge) LoadMapperState(data []byte) error {
	if len(data) < 1 {
		return fmt.Errorf("mapper state too short")
	}
	buf := bytes.NewReader(data)

	var id uint8
	binary.Read(buf, binary.LittleEndian, &id)
	if id != c.mapperID {
		return fmt.Errorf("mapper state is for mapper %d, cartridge uses mapper %d", id, c.mapperID)
	}

	switch m := c.mapper.(type) {
	case *Mapper001:
		binary.Read(buf, binary.LittleEndian, &m.shift)
		binary.Read(buf, binary.LittleEndian, &m.shiftLen)
		binary.Read(buf, binary.LittleEndian, &m.control)
		binary.Read(buf, binary.LittleEndian, &m.chrBank0)
		binary.Read(buf, binary.LittleEndian, &m.chrBank1)
		binary.Read(buf, binary.LittleEndian, &m.prgBank)
	case *Mapper002:
		binary.Read(buf, binary.LittleEndian, &m.prgBank)
	case *Mapper003:
		binary.Read(buf, binary.LittleEndian, &m.chrBank)
	case *Mapper004:
		binary.Read(buf, binary.LittleEndian, &m.bankSelect)
		binary.Read(buf, binary.LittleEndian, &m.bankData)
		binary.Read(buf, binary.LittleEndian, &m.prgMode)
		binary.Read(buf, binary.LittleEndian, &m.chrMode)
		binary.Read(buf, binary.LittleEndian, &m.mirror)
		binary.Read(buf, binary.LittleEndian, &m.sramEnable)
		binary.Read(buf, binary.LittleEndian, &m.sramWriteProt)
		binary.Read(buf, binary.LittleEndian, &m.irqLatch)
		binary.Read(buf, binary.LittleEndian, &m.irqCounter)
		binary.Read(buf, binary.LittleEndian, &m.irqReload)
		binary.Read(buf, binary.LittleEndian, &m.irqEnabled)
		binary.Read(buf, binary.LittleEndian, &m.irqPending)
		binary.Read(buf, binary.LittleEndian, &m.lastA12)
	case *Mapper005:
		binary.Read(buf, binary.LittleEndian, &m.prgBank)
		binary.Read(buf, binary.LittleEndian, &m.chrBank)
	case *Mapper007:
		binary.Read(buf, binary.LittleEndian, &m.prgBank)
		binary.Read(buf, binary.LittleEndian, &m.singleUpper)
	case *Mapper009:
		binary.Read(buf, binary.LittleEndian, &m.prgBank)
		binary.Read(buf, binary.LittleEndian, &m.latch0)
		binary.Read(buf, binary.LittleEndian, &m.latch1)
		binary.Read(buf, binary.LittleEndian, &m.chr0FD)
		binary.Read(buf, binary.LittleEndian, &m.chr0FE)
		binary.Read(buf, binary.LittleEndian, &m.chr1FD)
		binary.Read(buf, binary.LittleEndian, &m.chr1FE)
		binary.Read(buf, binary.LittleEndian, &m.mirror)
	case *Mapper011:
		binary.Read(buf, binary.LittleEndian, &m.prgBank)
		binary.Read(buf, binary.LittleEndian, &m.chrBank)
	case *Mapper024:
		binary.Read(buf, binary.LittleEndian, &m.prgBank16)
		binary.Read(buf, binary.LittleEndian, &m.prgBank8)
		binary.Read(buf, binary.LittleEndian, &m.chrBank)
		binary.Read(buf, binary.LittleEndian, &m.mirror)
		binary.Read(buf, binary.LittleEndian, &m.irqLatch)
		binary.Read(buf, binary.LittleEndian, &m.irqCounter)
		binary.Read(buf, binary.LittleEndian, &m.irqEnable)
		binary.Read(buf, binary.LittleEndian, &m.irqAckMode)
		binary.Read(buf, binary.LittleEndian, &m.irqMode)
		var prescale int32
		binary.Read(buf, binary.LittleEndian, &prescale)
		m.irqPrescale = int(prescale)
		binary.Read(buf, binary.LittleEndian, &m.irqPending)
	case *Mapper066:
		binary.Read(buf, binary.LittleEndian, &m.prgBank)
		binary.Read(buf, binary.LittleEndian, &m.chrBank)
	case *Mapper069:
		binary.Read(buf, binary.LittleEndian, &m.command)
		binary.Read(buf, binary.LittleEndian, &m.chrBank)
		binary.Read(buf, binary.LittleEndian, &m.prgBank)
		binary.Read(buf, binary.LittleEndian, &m.ramBank)
		binary.Read(buf, binary.LittleEndian, &m.ramEnable)
		binary.Read(buf, binary.LittleEndian, &m.ramSelect)
		binary.Read(buf, binary.LittleEndian, &m.mirror)
		binary.Read(buf, binary.LittleEndian, &m.irqEnable)
		binary.Read(buf, binary.LittleEndian, &m.irqCounter)
		binary.Read(buf, binary.LittleEndian, &m.irqValue)
		binary.Read(buf, binary.LittleEndian, &m.irqPending)
	case *Mapper071:
		binary.Read(buf, binary.LittleEndian, &m.prgBank)
	case *Mapper000:
	}

	return nil
}
