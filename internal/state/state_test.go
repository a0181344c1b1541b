package state

import (
	"bytes"
	"testing"

	"gones/internal/bus"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	b := bus.New()
	b.Run(5)

	sram := []uint8{1, 2, 3, 4}
	mapperState := []uint8{0xAA, 0xBB}

	blob := Save(b, sram, mapperState)

	fresh := bus.New()
	gotSRAM, gotMapperState, err := Load(fresh, blob)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(gotSRAM, sram) {
		t.Errorf("sram mismatch: got %v want %v", gotSRAM, sram)
	}
	if !bytes.Equal(gotMapperState, mapperState) {
		t.Errorf("mapperState mismatch: got %v want %v", gotMapperState, mapperState)
	}

	wantCPU := b.CPU.Snapshot()
	gotCPU := fresh.CPU.Snapshot()
	if gotCPU != wantCPU {
		t.Errorf("CPU snapshot mismatch after round-trip: got %+v want %+v", gotCPU, wantCPU)
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	b := bus.New()
	if _, _, err := Load(b, []byte("not-a-save-file-at-all")); err != ErrInvalidSaveHeader {
		t.Errorf("expected ErrInvalidSaveHeader, got %v", err)
	}
}

func TestLoadRejectsFutureVersion(t *testing.T) {
	b := bus.New()
	blob := Save(b, nil, nil)
	blob[len(Magic)] = 0xFF // bump the low byte of the version past what we write
	if _, _, err := Load(b, blob); err != ErrInvalidSaveHeader {
		t.Errorf("expected ErrInvalidSaveHeader for a too-new version, got %v", err)
	}
}
