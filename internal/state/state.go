// Package state implements the save-state envelope: a fixed-order,
// length-prefixed binary container for the CPU, PPU, APU, and cartridge
// mapper's serializable state, plus Game Genie code decoding. Both are
// "opaque byte stream" collaborators the core hands to and takes from
// the host shell, never touching a filesystem itself.
package state

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"

	"gones/internal/apu"
	"gones/internal/bus"
	"gones/internal/cpu"
	"gones/internal/memory"
	"gones/internal/ppu"
)

// Magic identifies a save-state byte stream.
const Magic = "TETANES"

// Version is the envelope format version this package writes and the
// minimum it will accept on load.
const Version uint16 = 1

// ErrInvalidSaveHeader is returned when a byte stream's magic or
// version does not match what this package produces.
var ErrInvalidSaveHeader = errors.New("state: invalid save header")

// cpuMemorySnapshot bundles the CPU-visible work RAM alongside the CPU
// register snapshot; system RAM lives on the CPU bus, so it travels in
// the CPU component blob rather than getting its own envelope slot.
type cpuMemorySnapshot struct {
	CPU  cpu.Snapshot
	WRAM [0x800]uint8
}

// ppuMemorySnapshot bundles PPU registers with PPU-owned VRAM/palette
// RAM, for the same reason WRAM travels with the CPU blob.
type ppuMemorySnapshot struct {
	PPU    ppu.Snapshot
	Memory memory.PPUMemorySnapshot
}

// Save captures a bus's complete emulation state as an envelope.
func Save(b *bus.Bus, sram []uint8, mapperState []uint8) []byte {
	cpuBlob := encodeGob(cpuMemorySnapshot{
		CPU:  b.CPU.Snapshot(),
		WRAM: b.Memory.WRAMSnapshot(),
	})

	var ppuMem memory.PPUMemorySnapshot
	if pm := b.PPU.GetMemory(); pm != nil {
		ppuMem = pm.Snapshot()
	}
	ppuBlob := encodeGob(ppuMemorySnapshot{PPU: b.PPU.Snapshot(), Memory: ppuMem})

	apuBlob := encodeGob(b.APU.Snapshot())

	mapperBlob := encodeMapperBlob(sram, mapperState)

	buf := &bytes.Buffer{}
	buf.WriteString(Magic)
	binary.Write(buf, binary.LittleEndian, Version)
	writeBlob(buf, cpuBlob)
	writeBlob(buf, ppuBlob)
	writeBlob(buf, apuBlob)
	writeBlob(buf, mapperBlob)

	return buf.Bytes()
}

// Load validates an envelope's header and restores its CPU/PPU/APU
// state into the bus, returning the mapper blob (SRAM + mapper
// registers) unparsed, since only the caller knows which cartridge
// mapper is currently loaded and can apply it via
// Memory.RestoreCartridgeState.
func Load(b *bus.Bus, data []byte) (sram []uint8, mapperState []uint8, err error) {
	r := bytes.NewReader(data)

	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != Magic {
		return nil, nil, ErrInvalidSaveHeader
	}

	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil || version > Version {
		return nil, nil, ErrInvalidSaveHeader
	}

	cpuBlob, err := readBlob(r)
	if err != nil {
		return nil, nil, ErrInvalidSaveHeader
	}
	ppuBlob, err := readBlob(r)
	if err != nil {
		return nil, nil, ErrInvalidSaveHeader
	}
	apuBlob, err := readBlob(r)
	if err != nil {
		return nil, nil, ErrInvalidSaveHeader
	}
	mapperBlob, err := readBlob(r)
	if err != nil {
		return nil, nil, ErrInvalidSaveHeader
	}

	var cpuState cpuMemorySnapshot
	if err := decodeGob(cpuBlob, &cpuState); err != nil {
		return nil, nil, fmt.Errorf("state: decoding CPU blob: %w", err)
	}
	b.CPU.Restore(cpuState.CPU)
	b.Memory.RestoreWRAM(cpuState.WRAM)

	var ppuState ppuMemorySnapshot
	if err := decodeGob(ppuBlob, &ppuState); err != nil {
		return nil, nil, fmt.Errorf("state: decoding PPU blob: %w", err)
	}
	b.PPU.Restore(ppuState.PPU)
	if pm := b.PPU.GetMemory(); pm != nil {
		pm.Restore(ppuState.Memory)
	}

	var apuState apu.Snapshot
	if err := decodeGob(apuBlob, &apuState); err != nil {
		return nil, nil, fmt.Errorf("state: decoding APU blob: %w", err)
	}
	b.APU.Restore(apuState)

	sram, mapperState, err = decodeMapperBlob(mapperBlob)
	if err != nil {
		return nil, nil, fmt.Errorf("state: decoding mapper blob: %w", err)
	}

	return sram, mapperState, nil
}

func writeBlob(buf *bytes.Buffer, blob []byte) {
	binary.Write(buf, binary.LittleEndian, uint32(len(blob)))
	buf.Write(blob)
}

func readBlob(r *bytes.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, err
	}
	blob := make([]byte, length)
	if _, err := io.ReadFull(r, blob); err != nil {
		return nil, err
	}
	return blob, nil
}

func encodeGob(v interface{}) []byte {
	buf := &bytes.Buffer{}
	// gob.Encode on these plain data structs cannot fail; any error
	// here would indicate a programming mistake in this package.
	if err := gob.NewEncoder(buf).Encode(v); err != nil {
		panic(fmt.Sprintf("state: encoding %T: %v", v, err))
	}
	return buf.Bytes()
}

func decodeGob(blob []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(blob)).Decode(v)
}

func encodeMapperBlob(sram, mapperState []uint8) []byte {
	buf := &bytes.Buffer{}
	writeBlob(buf, sram)
	writeBlob(buf, mapperState)
	return buf.Bytes()
}

func decodeMapperBlob(blob []byte) (sram, mapperState []uint8, err error) {
	r := bytes.NewReader(blob)
	sram, err = readBlob(r)
	if err != nil {
		return nil, nil, err
	}
	mapperState, err = readBlob(r)
	if err != nil {
		return nil, nil, err
	}
	return sram, mapperState, nil
}
