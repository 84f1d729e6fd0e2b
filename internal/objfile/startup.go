package objfile

import "github.com/xyproto/subleqld/internal/profile"

// Startup stub constructors. The exact byte patterns below are taken
// verbatim from the original C++ linker's initStart/setStarter
// methods (spec §4.3) because the resulting image's first words
// determine the machine's boot behavior — any deviation changes what
// the simulator executes at address 0.

// NewStartup32A builds the 3-word Profile-32a/32b startup stub: a
// single unresolved import "start" at local address 2, no relocation.
func NewStartup32A(variant profile.Variant) *ObjectFile32 {
	of := &ObjectFile32{
		Path:     "<startup>",
		Variant:  variant,
		Exported: map[string]uint32{},
		Imported: map[string][]uint32{"start": {2}},
		Mem:      NewImage32([]uint32{0, 0, 0}),
	}
	if variant == profile.Variant32B {
		of.Absolute = map[uint32]struct{}{}
	} else {
		of.Relative = map[uint32]struct{}{}
	}
	return of
}

// NewStartupHybrid builds the 4-word Profile-32-hybrid startup stub
// used in -exec mode: mem = [3, 3, 0, 0], importing "start" at local
// address 2. Only slots 0, 1, 2 are marked relative; slot 3 is plain
// data and is never relocated, matching setStarter()'s three
// relative.emplace calls.
func NewStartupHybrid() *ObjectFile32 {
	return &ObjectFile32{
		Path:     "<startup>",
		Variant:  profile.VariantHybrid,
		Exported: map[string]uint32{},
		Imported: map[string][]uint32{"start": {2}},
		Relative: map[uint32]struct{}{0: {}, 1: {}, 2: {}},
		Mem:      NewImage32([]uint32{3, 3, 0, 0}),
	}
}

// NewStartup64 builds the 2-word Profile-64 startup stub:
// mem[0] = 0x0000000004002000, mem[1] = 0, importing "start" at
// (local_addr=0, field=J).
func NewStartup64() *ObjectFile64 {
	return &ObjectFile64{
		Path:     "<startup>",
		Exported: map[string]uint32{},
		Imported: map[string][]ReferenceSite64{
			"start": {{Addr: 0, Field: profile.FieldJ}},
		},
		Absolute: map[uint32]*InstrAbsolute{},
		Mem:      NewImage64([]uint64{0x0000000004002000, 0x0000000000000000}),
	}
}
