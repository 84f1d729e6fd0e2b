// Package profile describes the VM machine profiles this linker targets.
//
// Generalizes the teacher's arch.go/target.go Architecture/Target pair
// (CPU architecture + OS selection for a native code generator) into
// VM profile selection for a SUBLEQ-family linker: word width, address
// width, and which on-disk object layout and relocation policy apply.
package profile

import (
	"fmt"
	"math/bits"
)

// Variant identifies one of the four supported machine profiles.
type Variant int

const (
	// Variant32A is the pure Profile-32 object-linker variant: no
	// text_offset field, a "relative" set relocated unconditionally.
	Variant32A Variant = iota
	// Variant32B adds text_offset and replaces "relative" with
	// "absolute" (the complement encoding); only non-absolute slots
	// in [text_offset, mem_size) are relocated.
	Variant32B
	// VariantHybrid is the assembler-linker combined tool's format:
	// a "relative" set like 32A, but relocation of an address is
	// deferred to symbol-resolution time if that address is also an
	// unresolved import site.
	VariantHybrid
	// Variant64 packs three address fields (A, B, J) per word.
	Variant64
)

func (v Variant) String() string {
	switch v {
	case Variant32A:
		return "32a"
	case Variant32B:
		return "32b"
	case VariantHybrid:
		return "hybrid"
	case Variant64:
		return "64"
	default:
		return "unknown"
	}
}

// ParseVariant parses a --profile flag value.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "32a":
		return Variant32A, nil
	case "32b":
		return Variant32B, nil
	case "hybrid":
		return VariantHybrid, nil
	case "64":
		return Variant64, nil
	default:
		return 0, fmt.Errorf("unsupported profile %q (supported: 32a, 32b, hybrid, 64)", s)
	}
}

// WordWidth returns the bit width of one memory word for this variant.
func (v Variant) WordWidth() int {
	if v == Variant64 {
		return 64
	}
	return 32
}

// Field identifies one of the three address slots packed into a
// Profile-64 instruction word. A occupies the highest bits, J the
// lowest.
type Field int

const (
	FieldA Field = iota
	FieldB
	FieldJ
)

func (f Field) String() string {
	switch f {
	case FieldA:
		return "A"
	case FieldB:
		return "B"
	case FieldJ:
		return "J"
	default:
		return "?"
	}
}

// FieldFromWire maps the on-disk field tag (0, 1, 2) to a Field.
func FieldFromWire(tag uint32) (Field, error) {
	switch tag {
	case 0:
		return FieldA, nil
	case 1:
		return FieldB, nil
	case 2:
		return FieldJ, nil
	default:
		return 0, fmt.Errorf("invalid field tag %d", tag)
	}
}

// Machine bundles the constants derived from MEM_WORDS for a given
// profile: ADDRESS_WIDTH, ADDRESS_MASK, and (for Profile-64) the
// per-field shift and clear-mask.
type Machine struct {
	Variant      Variant
	MemWords     uint64
	AddressWidth uint
	AddressMask  uint64
}

// DefaultMemWords is MEM_WORDS per spec §6: a power of two, 0x2000 by
// default.
const DefaultMemWords = 0x2000

// NewMachine validates memWords is a power of two and derives
// ADDRESS_WIDTH/ADDRESS_MASK from it, the integer equivalent of
// linker64.cpp's `uword_t ADDRESS_WIDTH = log2(MEM_WORDS)` computed at
// static-init time via std::log2 — bits.Len avoids that call's
// floating-point path entirely.
func NewMachine(v Variant, memWords uint64) (Machine, error) {
	if memWords == 0 || memWords&(memWords-1) != 0 {
		return Machine{}, fmt.Errorf("MEM_WORDS must be a power of two, got %d", memWords)
	}
	width := uint(bits.Len64(memWords - 1))
	return Machine{
		Variant:      v,
		MemWords:     memWords,
		AddressWidth: width,
		AddressMask:  memWords - 1,
	}, nil
}

// FieldShift returns the bit offset of field f within a packed
// Profile-64 instruction word: A in the highest slot, J in the lowest.
func (m Machine) FieldShift(f Field) uint {
	return uint(2-int(f)) * m.AddressWidth
}

// FieldClearMask returns the mask that zeroes slot f, ready for the
// resolved or relocated value to be OR'd in after shifting.
func (m Machine) FieldClearMask(f Field) uint64 {
	return ^(m.AddressMask << m.FieldShift(f))
}

// FieldValue extracts the contents of slot f (ADDRESS_WIDTH bits,
// masked with ADDRESS_MASK) from a packed instruction word.
func (m Machine) FieldValue(instr uint64, f Field) uint64 {
	return (instr >> m.FieldShift(f)) & m.AddressMask
}
