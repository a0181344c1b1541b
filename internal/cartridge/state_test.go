package cartridge

import "testing"

func TestMapperState_Mapper001_RoundTrip(t *testing.T) {
	cart := &Cartridge{
		prgROM:   make([]uint8, 0x8000),
		chrROM:   make([]uint8, 0x2000),
		mapperID: 1,
		mirror:   MirrorHorizontal,
	}
	cart.mapper = NewMapper001(cart)

	m := cart.mapper.(*Mapper001)
	m.shift = 0x0F
	m.shiftLen = 3
	m.control = 0x06
	m.chrBank0 = 2
	m.chrBank1 = 3
	m.prgBank = 1

	blob := cart.SaveMapperState()

	fresh := &Cartridge{prgROM: cart.prgROM, chrROM: cart.chrROM, mapperID: 1, mirror: MirrorHorizontal}
	fresh.mapper = NewMapper001(fresh)
	if err := fresh.LoadMapperState(blob); err != nil {
		t.Fatalf("LoadMapperState: %v", err)
	}

	got := fresh.mapper.(*Mapper001)
	want := *m
	want.cart = got.cart // each mapper points at its own cartridge
	if *got != want {
		t.Errorf("mapper state mismatch after round-trip: got %+v, want %+v", *got, want)
	}
}

func TestMapperState_Mapper004_RoundTrip(t *testing.T) {
	cart := &Cartridge{
		prgROM:   make([]uint8, 0x20000),
		chrROM:   make([]uint8, 0x4000),
		mapperID: 4,
		mirror:   MirrorHorizontal,
	}
	cart.mapper = NewMapper004(cart)

	m := cart.mapper.(*Mapper004)
	m.bankSelect = 0x86
	m.bankData = [8]uint8{0, 1, 2, 3, 4, 5, 6, 7}
	m.irqLatch = 0x20
	m.irqCounter = 5
	m.irqEnabled = true
	m.lastA12 = true

	blob := cart.SaveMapperState()

	fresh := &Cartridge{prgROM: cart.prgROM, chrROM: cart.chrROM, mapperID: 4, mirror: MirrorHorizontal}
	fresh.mapper = NewMapper004(fresh)
	if err := fresh.LoadMapperState(blob); err != nil {
		t.Fatalf("LoadMapperState: %v", err)
	}

	got := fresh.mapper.(*Mapper004)
	if got.bankSelect != m.bankSelect || got.bankData != m.bankData ||
		got.irqLatch != m.irqLatch || got.irqCounter != m.irqCounter ||
		got.irqEnabled != m.irqEnabled || got.lastA12 != m.lastA12 {
		t.Errorf("mapper state mismatch after round-trip: got %+v, want bankSelect=%d bankData=%v irqLatch=%d irqCounter=%d irqEnabled=%v lastA12=%v",
			got, m.bankSelect, m.bankData, m.irqLatch, m.irqCounter, m.irqEnabled, m.lastA12)
	}
}

func TestMapperState_WrongMapperID(t *testing.T) {
	cart := &Cartridge{prgROM: make([]uint8, 0x4000), chrROM: make([]uint8, 0x2000), mapperID: 0}
	cart.mapper = NewMapper000(cart)
	blob := cart.SaveMapperState()

	other := &Cartridge{prgROM: make([]uint8, 0x8000), chrROM: make([]uint8, 0x2000), mapperID: 1}
	other.mapper = NewMapper001(other)

	if err := other.LoadMapperState(blob); err == nil {
		t.Error("expected error loading mapper-0 state into a mapper-1 cartridge")
	}
}
