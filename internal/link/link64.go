package link

import (
	"sort"

	"github.com/xyproto/subleqld/internal/diag"
	"github.com/xyproto/subleqld/internal/objfile"
	"github.com/xyproto/subleqld/internal/profile"
)

// Result64 is the outcome of linking a set of Profile-64 object
// files.
type Result64 struct {
	Image      []uint64
	Symbols    map[string]uint32
	Unresolved map[string][]objfile.ReferenceSite64
	Warnings   []string
}

// Linker64 orchestrates a single link of Profile-64 object files.
type Linker64 struct {
	machine profile.Machine
	files   []*objfile.ObjectFile64

	phase      phase
	symbols    map[string]uint32
	references map[string][]globalSite64
	image      []uint64
	warnings   []string
}

type globalSite64 struct {
	addr  uint32 // global address
	field profile.Field
}

// NewLinker64 prepares a linker over files, prepending the Profile-64
// startup stub as file 0 when executable is true.
func NewLinker64(machine profile.Machine, files []*objfile.ObjectFile64, executable bool) *Linker64 {
	all := files
	if executable {
		all = append([]*objfile.ObjectFile64{objfile.NewStartup64()}, files...)
	}
	return &Linker64{machine: machine, files: all, phase: phaseInit}
}

func (l *Linker64) requirePhase(want phase, method string) error {
	if l.phase != want {
		return requirePhaseErr(method, l.phase, want)
	}
	return nil
}

// AssignOffsets is phase 1, identical in spirit to Linker32's.
func (l *Linker64) AssignOffsets() error {
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

// Relocate is phase 2: for every instruction in [text_offset, mem_size)
// and every field not individually marked absolute, rewrite that
// field's bits to ((value+offset) & ADDRESS_MASK) per spec §4.4/§3.
func (l *Linker64) Relocate() error {
	if err := l.requirePhase(phaseOffsets, "Relocate"); err != nil {
		return err
	}
	for _, f := range l.files {
		size := uint32(f.Mem.Len())
		for i := f.TextOffset; i < size; i++ {
			abs := f.Absolute[i]
			instr := f.Mem.Get(i)
			for _, field := range []profile.Field{profile.FieldA, profile.FieldB, profile.FieldJ} {
				if abs != nil && abs.IsAbsolute(field) {
					continue
				}
				instr = relocateField(l.machine, instr, field, f.Offset)
			}
			f.Mem.Set(i, instr)
		}
	}
	l.phase = phaseRelocated
	return nil
}

func relocateField(m profile.Machine, instr uint64, field profile.Field, offset uint32) uint64 {
	value := m.FieldValue(instr, field)
	relocated := (value + uint64(offset)) & m.AddressMask
	instr &= m.FieldClearMask(field)
	instr |= relocated << m.FieldShift(field)
	return instr
}

// AssembleSymbols is phase 3.
func (l *Linker64) AssembleSymbols() error {
	if err := l.requirePhase(phaseRelocated, "AssembleSymbols"); err != nil {
		return err
	}
	l.symbols = make(map[string]uint32)
	l.references = make(map[string][]globalSite64)
	for _, f := range l.files {
		for _, name := range sortedNames(f.Exported) {
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
			for _, site := range f.Imported[name] {
				l.references[name] = append(l.references[name], globalSite64{addr: site.Addr + f.Offset, field: site.Field})
			}
		}
	}
	l.phase = phaseSymbols
	return nil
}

// Concatenate is phase 4.
func (l *Linker64) Concatenate() error {
	if err := l.requirePhase(phaseSymbols, "Concatenate"); err != nil {
		return err
	}
	var total uint32
	for _, f := range l.files {
		total += uint32(f.Mem.Len())
	}
	l.image = make([]uint64, total)
	for _, f := range l.files {
		copy(l.image[f.Offset:], f.Mem.Words())
	}
	l.phase = phaseConcatenated
	return nil
}

// Resolve is phase 5: clear the referenced field then OR in the
// resolved global address, per spec §4.4's Profile-64 resolution
// rule.
func (l *Linker64) Resolve(executable bool) error {
	if err := l.requirePhase(phaseConcatenated, "Resolve"); err != nil {
		return err
	}
	names := make([]string, 0, len(l.references))
	for name := range l.references {
		names = append(names, name)
	}
	sort.Strings(names)

	unresolved := make(map[string][]globalSite64)
	for _, name := range names {
		sites := l.references[name]
		addr, ok := l.symbols[name]
		if !ok {
			unresolved[name] = sites
			continue
		}
		for _, site := range sites {
			instr := l.image[site.addr]
			instr &= l.machine.FieldClearMask(site.field)
			instr |= uint64(addr) << l.machine.FieldShift(site.field)
			l.image[site.addr] = instr
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

// Link runs all five phases in order.
func (l *Linker64) Link(executable bool) (*Result64, error) {
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
	unresolved := make(map[string][]objfile.ReferenceSite64, len(l.references))
	for name, sites := range l.references {
		for _, s := range sites {
			unresolved[name] = append(unresolved[name], objfile.ReferenceSite64{Addr: s.addr, Field: s.field})
		}
	}
	return &Result64{
		Image:      l.image,
		Symbols:    l.symbols,
		Unresolved: unresolved,
		Warnings:   l.warnings,
	}, nil
}

func sortedNames(m map[string]uint32) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
