// Package link implements the Linker (spec §4.4): offset assignment,
// per-file relocation, global symbol/reference assembly,
// concatenation, and symbol resolution, for both Profile-32 variants
// and Profile-64.
//
// Generalizes the teacher's ELFWriter phase machine (elf_writer.go:
// a CompilationPhase enum with phase-guarded methods that reject
// out-of-order calls, e.g. "CalculateLayout called in wrong phase")
// into the five link phases spec §4.4 names; Linker32/Linker64 expose
// one method per phase plus a Link convenience that runs all five in
// order, matching how ELFWriter exposes CalculateLayout then
// WriteSections behind its own phase guard.
package link

import (
	"fmt"
	"sort"

	"github.com/xyproto/subleqld/internal/diag"
	"github.com/xyproto/subleqld/internal/objfile"
	"github.com/xyproto/subleqld/internal/profile"
)

type phase int

const (
	phaseInit phase = iota
	phaseOffsets
	phaseRelocated
	phaseSymbols
	phaseConcatenated
	phaseResolved
)

// Result32 is the outcome of linking a set of Profile-32 object
// files: the merged image, the global symbol table, any references
// left unresolved, and (for Variant32A/VariantHybrid only) the global
// relative-address set — spec §4.4's (image, symbols, unresolved_refs,
// relocation_set) return tuple.
type Result32 struct {
	Image      []uint32
	Symbols    map[string]uint32
	Unresolved map[string][]uint32
	Relatives  map[uint32]struct{} // nil for Variant32B
	Warnings   []string
}

// Linker32 orchestrates a single link of Profile-32 object files. It
// is single-use: construct with NewLinker32, call Link once.
type Linker32 struct {
	machine profile.Machine
	variant profile.Variant
	files   []*objfile.ObjectFile32

	phase      phase
	symbols    map[string]uint32
	references map[string][]uint32
	relatives  map[uint32]struct{}
	image      []uint32
	warnings   []string
}

// NewLinker32 prepares a linker over files. If executable is true, the
// appropriate startup stub is prepended as file 0 (spec §4.3) before
// offset assignment.
func NewLinker32(machine profile.Machine, variant profile.Variant, files []*objfile.ObjectFile32, executable bool) *Linker32 {
	all := files
	if executable {
		var stub *objfile.ObjectFile32
		if variant == profile.VariantHybrid {
			stub = objfile.NewStartupHybrid()
		} else {
			stub = objfile.NewStartup32A(variant)
		}
		all = append([]*objfile.ObjectFile32{stub}, files...)
	}
	return &Linker32{
		machine: machine,
		variant: variant,
		files:   all,
		phase:   phaseInit,
	}
}

func (l *Linker32) requirePhase(want phase, method string) error {
	if l.phase != want {
		return requirePhaseErr(method, l.phase, want)
	}
	return nil
}

func requirePhaseErr(method string, have, want phase) error {
	return fmt.Errorf("link: %s called in wrong phase (have %d, want %d)", method, have, want)
}

// AssignOffsets is phase 1: sequential offset assignment in input
// order, failing with ImageOverflow if the total exceeds MEM_WORDS.
func (l *Linker32) AssignOffsets() error {
	if err := l.requirePhase(phaseInit, "AssignOffsets"); err != nil {
		return err
	}
	var next uint32
	for _, f := range l.files {
		f.Offset = next
		next += uint32(f.Mem.Len())
	}
	if uint64(next) > l.machine.MemWords {
		return diag.Overflowf(uint64(next), l.machine.MemWords)
	}
	l.phase = phaseOffsets
	return nil
}

// Relocate is phase 2: per-file relocation, variant-specific per spec
// §4.4.
func (l *Linker32) Relocate() error {
	if err := l.requirePhase(phaseOffsets, "Relocate"); err != nil {
		return err
	}
	l.relatives = nil
	if l.variant == profile.Variant32A || l.variant == profile.VariantHybrid {
		l.relatives = make(map[uint32]struct{})
	}
	for _, f := range l.files {
		switch l.variant {
		case profile.Variant32A:
			for a := range f.Relative {
				f.Mem.Add(a, f.Offset)
				l.relatives[a+f.Offset] = struct{}{}
			}
		case profile.Variant32B:
			size := uint32(f.Mem.Len())
			for i := f.TextOffset; i < size; i++ {
				if _, absolute := f.Absolute[i]; !absolute {
					f.Mem.Add(i, f.Offset)
				}
			}
		case profile.VariantHybrid:
			pending := pendingReferenceSites(f)
			for a := range f.Relative {
				l.relatives[a+f.Offset] = struct{}{}
				if _, isPending := pending[a]; !isPending {
					f.Mem.Add(a, f.Offset)
				}
				// else: deferred — resolved via += at symbol-resolution time.
			}
		}
	}
	l.phase = phaseRelocated
	return nil
}

// pendingReferenceSites returns the set of local addresses that are
// import reference sites for f, used by VariantHybrid to decide which
// relative addresses must defer their offset addition.
func pendingReferenceSites(f *objfile.ObjectFile32) map[uint32]struct{} {
	pending := make(map[uint32]struct{})
	for _, sites := range f.Imported {
		for _, addr := range sites {
			pending[addr] = struct{}{}
		}
	}
	return pending
}

// AssembleSymbols is phase 3: build the global symbol table (last
// exporter of a duplicate name wins, surfaced as a warning — spec §4.4
// Phase 3, §7) and the global reference table.
func (l *Linker32) AssembleSymbols() error {
	if err := l.requirePhase(phaseRelocated, "AssembleSymbols"); err != nil {
		return err
	}
	l.symbols = make(map[string]uint32)
	l.references = make(map[string][]uint32)
	for _, f := range l.files {
		names := make([]string, 0, len(f.Exported))
		for name := range f.Exported {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if _, dup := l.symbols[name]; dup {
				l.warnings = append(l.warnings, diag.Warnf("symbol %q redefined in %s; last definition wins", name, f.Path))
			}
			l.symbols[name] = f.Exported[name] + f.Offset
		}

		importNames := make([]string, 0, len(f.Imported))
		for name := range f.Imported {
			importNames = append(importNames, name)
		}
		sort.Strings(importNames)
		for _, name := range importNames {
			for _, addr := range f.Imported[name] {
				l.references[name] = append(l.references[name], addr+f.Offset)
			}
		}
	}
	l.phase = phaseSymbols
	return nil
}

// Concatenate is phase 4: copy each file's relocated image into the
// merged output buffer.
func (l *Linker32) Concatenate() error {
	if err := l.requirePhase(phaseSymbols, "Concatenate"); err != nil {
		return err
	}
	var total uint32
	for _, f := range l.files {
		total += uint32(f.Mem.Len())
	}
	l.image = make([]uint32, total)
	for _, f := range l.files {
		copy(l.image[f.Offset:], f.Mem.Words())
	}
	l.phase = phaseConcatenated
	return nil
}

// Resolve is phase 5: apply the variant's resolution rule to every
// reference with a matching export; references without one remain
// unresolved, which is an error only in executable mode (spec §4.4,
// §7).
func (l *Linker32) Resolve(executable bool) error {
	if err := l.requirePhase(phaseConcatenated, "Resolve"); err != nil {
		return err
	}
	names := make([]string, 0, len(l.references))
	for name := range l.references {
		names = append(names, name)
	}
	sort.Strings(names)

	unresolved := make(map[string][]uint32)
	for _, name := range names {
		sites := l.references[name]
		addr, ok := l.symbols[name]
		if !ok {
			unresolved[name] = sites
			continue
		}
		for _, site := range sites {
			switch l.variant {
			case profile.Variant32A, profile.Variant32B:
				l.image[site] = addr
			case profile.VariantHybrid:
				l.image[site] += addr
			}
		}
	}

	if executable && len(unresolved) > 0 {
		firstNames := make([]string, 0, len(unresolved))
		for name := range unresolved {
			firstNames = append(firstNames, name)
		}
		sort.Strings(firstNames)
		return diag.Unresolvedf(firstNames[0])
	}

	l.references = unresolved
	l.phase = phaseResolved
	return nil
}

// Link runs all five phases in order and returns the result.
func (l *Linker32) Link(executable bool) (*Result32, error) {
	if err := l.AssignOffsets(); err != nil {
		return nil, err
	}
	if err := l.Relocate(); err != nil {
		return nil, err
	}
	if err := l.AssembleSymbols(); err != nil {
		return nil, err
	}
	if err := l.Concatenate(); err != nil {
		return nil, err
	}
	if err := l.Resolve(executable); err != nil {
		return nil, err
	}
	return &Result32{
		Image:      l.image,
		Symbols:    l.symbols,
		Unresolved: l.references,
		Relatives:  l.relatives,
		Warnings:   l.warnings,
	}, nil
}
