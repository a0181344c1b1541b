package state

import (
	"errors"
	"fmt"
)

// ErrInvalidCheatCode is returned by DecodeGenieCode for malformed
// Game Genie strings (wrong length or a character outside the
// sixteen-letter alphabet).
var ErrInvalidCheatCode = errors.New("state: invalid game genie code")

// genieAlphabet maps each Game Genie letter to its 4-bit value.
var genieAlphabet = map[byte]uint8{
	'A': 0x0, 'P': 0x1, 'Z': 0x2, 'L': 0x3,
	'G': 0x4, 'I': 0x5, 'T': 0x6, 'Y': 0x7,
	'E': 0x8, 'O': 0x9, 'X': 0xA, 'U': 0xB,
	'K': 0xC, 'S': 0xD, 'V': 0xE, 'N': 0xF,
}

// GenieCode is a decoded Game Genie substitution: reads of Address
// return Data unconditionally, or only when the underlying byte
// equals Compare, for 8-character codes.
type GenieCode struct {
	Code    string
	Address uint16
	Data    uint8
	Compare *uint8
}

// DecodeGenieCode parses a 6- or 8-character Game Genie code into its
// address/data/compare triple. Bit layout follows the standard NES
// Game Genie cartridge's substitution table.
func DecodeGenieCode(code string) (GenieCode, error) {
	if len(code) != 6 && len(code) != 8 {
		return GenieCode{}, fmt.Errorf("%w: %q", ErrInvalidCheatCode, code)
	}

	hex := make([]uint8, len(code))
	for i := 0; i < len(code); i++ {
		v, ok := genieAlphabet[code[i]]
		if !ok {
			return GenieCode{}, fmt.Errorf("%w: %q", ErrInvalidCheatCode, code)
		}
		hex[i] = v
	}

	address := uint16(0x8000) + (((uint16(hex[3]) & 7) << 12) |
		((uint16(hex[5]) & 7) << 8) |
		((uint16(hex[4]) & 8) << 8) |
		((uint16(hex[2]) & 7) << 4) |
		((uint16(hex[1]) & 8) << 4) |
		(uint16(hex[4]) & 7) |
		(uint16(hex[3]) & 8))

	var data uint8
	if len(hex) == 6 {
		data = ((hex[1] & 7) << 4) | ((hex[0] & 8) << 4) | (hex[0] & 7) | (hex[5] & 8)
	} else {
		data = ((hex[1] & 7) << 4) | ((hex[0] & 8) << 4) | (hex[0] & 7) | (hex[7] & 8)
	}

	gc := GenieCode{Code: code, Address: address, Data: data}
	if len(hex) == 8 {
		compare := ((hex[7] & 7) << 4) | ((hex[6] & 8) << 4) | (hex[6] & 7) | (hex[5] & 8)
		gc.Compare = &compare
	}

	return gc, nil
}

// Apply returns the byte a cartridge read at gc.Address should yield,
// given the value the mapper actually produced.
func (gc GenieCode) Apply(mapperValue uint8) uint8 {
	if gc.Compare != nil && mapperValue != *gc.Compare {
		return mapperValue
	}
	return gc.Data
}

// GenieCodeSet holds the currently active Game Genie codes, keyed by
// the address they intercept (matching the original's one-code-per-
// address behavior: a later AddGenieCode for the same address
// replaces the earlier one).
type GenieCodeSet struct {
	codes map[uint16]GenieCode
}

// NewGenieCodeSet creates an empty set of active codes.
func NewGenieCodeSet() *GenieCodeSet {
	return &GenieCodeSet{codes: make(map[uint16]GenieCode)}
}

// Add decodes and activates a code. A parse failure leaves the set
// unchanged.
func (s *GenieCodeSet) Add(code string) error {
	gc, err := DecodeGenieCode(code)
	if err != nil {
		return err
	}
	s.codes[gc.Address] = gc
	return nil
}

// Remove deactivates a previously added code by its original string.
func (s *GenieCodeSet) Remove(code string) {
	for addr, gc := range s.codes {
		if gc.Code == code {
			delete(s.codes, addr)
		}
	}
}

// Intercept rewrites a cartridge-space read if a code targets address,
// otherwise returns mapperValue unchanged.
func (s *GenieCodeSet) Intercept(address uint16, mapperValue uint8) uint8 {
	if len(s.codes) == 0 {
		return mapperValue
	}
	if gc, ok := s.codes[address]; ok {
		return gc.Apply(mapperValue)
	}
	return mapperValue
}
