package objfile

import (
	"io"

	"github.com/xyproto/subleqld/internal/diag"
	"github.com/xyproto/subleqld/internal/profile"
	"github.com/xyproto/subleqld/internal/wordio"
)

// ReferenceSite64 is one Profile-64 import reference: a local address
// plus which of the instruction's three packed fields it occupies.
type ReferenceSite64 struct {
	Addr  uint32
	Field profile.Field
}

// InstrAbsolute records, per instruction address, which of its three
// fields are marked absolute (exempt from relocation).
type InstrAbsolute struct {
	A, B, J bool
}

// IsAbsolute reports whether field f of this instruction is marked
// absolute (exempt from relocation).
func (ia InstrAbsolute) IsAbsolute(f profile.Field) bool {
	switch f {
	case profile.FieldA:
		return ia.A
	case profile.FieldB:
		return ia.B
	default:
		return ia.J
	}
}

func (ia *InstrAbsolute) markAbsolute(f profile.Field) {
	switch f {
	case profile.FieldA:
		ia.A = true
	case profile.FieldB:
		ia.B = true
	default:
		ia.J = true
	}
}

// ObjectFile64 is one parsed (or synthesized) Profile-64 relocatable
// unit (spec §4.2).
type ObjectFile64 struct {
	Path string

	Offset     uint32
	TextOffset uint32

	Exported map[string]uint32
	Imported map[string][]ReferenceSite64

	// Absolute is a set semantics map: duplicate (addr, field) entries
	// collapse to one, per spec §4.2.
	Absolute map[uint32]*InstrAbsolute

	Mem *Image64
}

// ReadObjectFile64 parses the Profile-64 on-disk layout from r.
func ReadObjectFile64(r io.Reader, path string) (*ObjectFile64, error) {
	rd := wordio.NewReader(r)
	of := &ObjectFile64{
		Path:     path,
		Exported: make(map[string]uint32),
		Imported: make(map[string][]ReferenceSite64),
		Absolute: make(map[uint32]*InstrAbsolute),
		Mem:      &Image64{},
	}

	textOffset, err := rd.ReadUint32()
	if err != nil {
		return nil, diag.Truncatedf(path, "reading text_offset", err)
	}
	of.TextOffset = textOffset

	nExports, err := rd.ReadUint32()
	if err != nil {
		return nil, diag.Truncatedf(path, "reading n_exports", err)
	}
	for i := uint32(0); i < nExports; i++ {
		sym, err := rd.ReadCString()
		if err != nil {
			return nil, wrapStringErr(path, "reading export symbol", err)
		}
		addr, err := rd.ReadUint32()
		if err != nil {
			return nil, diag.Truncatedf(path, "reading export address for "+sym, err)
		}
		of.Exported[sym] = addr
	}

	nImportSyms, err := rd.ReadUint32()
	if err != nil {
		return nil, diag.Truncatedf(path, "reading n_import_syms", err)
	}
	for i := uint32(0); i < nImportSyms; i++ {
		sym, err := rd.ReadCString()
		if err != nil {
			return nil, wrapStringErr(path, "reading import symbol", err)
		}
		nRefs, err := rd.ReadUint32()
		if err != nil {
			return nil, diag.Truncatedf(path, "reading n_refs for "+sym, err)
		}
		for j := uint32(0); j < nRefs; j++ {
			addr, err := rd.ReadUint32()
			if err != nil {
				return nil, diag.Truncatedf(path, "reading ref addr for "+sym, err)
			}
			fieldTag, err := rd.ReadUint32()
			if err != nil {
				return nil, diag.Truncatedf(path, "reading ref field for "+sym, err)
			}
			field, err := profile.FieldFromWire(fieldTag)
			if err != nil {
				return nil, diag.Malformedf(path, "import "+sym+": "+err.Error())
			}
			of.Imported[sym] = append(of.Imported[sym], ReferenceSite64{Addr: addr, Field: field})
		}
	}

	nAbsolute, err := rd.ReadUint32()
	if err != nil {
		return nil, diag.Truncatedf(path, "reading n_absolute", err)
	}
	for i := uint32(0); i < nAbsolute; i++ {
		addr, err := rd.ReadUint32()
		if err != nil {
			return nil, diag.Truncatedf(path, "reading absolute addr", err)
		}
		fieldTag, err := rd.ReadUint32()
		if err != nil {
			return nil, diag.Truncatedf(path, "reading absolute field", err)
		}
		field, err := profile.FieldFromWire(fieldTag)
		if err != nil {
			return nil, diag.Malformedf(path, err.Error())
		}
		entry, ok := of.Absolute[addr]
		if !ok {
			entry = &InstrAbsolute{}
			of.Absolute[addr] = entry
		}
		entry.markAbsolute(field) // idempotent: duplicate (addr, field) collapses
	}

	memSize, err := rd.ReadUint32()
	if err != nil {
		return nil, diag.Truncatedf(path, "reading mem_size", err)
	}
	code, err := rd.ReadUint64Slice(memSize)
	if err != nil {
		return nil, diag.Truncatedf(path, "reading code", err)
	}
	of.Mem.Fill(code)

	if err := of.Validate(); err != nil {
		return nil, err
	}
	return of, nil
}

// Validate checks the invariants of spec §3 for a Profile-64 object.
func (of *ObjectFile64) Validate() error {
	size := uint32(of.Mem.Len())
	if of.TextOffset > size {
		return diag.Malformedf(of.Path, "text_offset exceeds mem_size")
	}
	if size == 0 {
		return diag.Malformedf(of.Path, "mem_size is zero; an object file must contribute at least one word")
	}
	for addr := range of.Absolute {
		if addr >= size {
			return diag.Malformedf(of.Path, "absolute address out of range")
		}
	}
	for sym, addr := range of.Exported {
		if addr >= size {
			return diag.Malformedf(of.Path, "exported symbol "+sym+" out of range")
		}
	}
	for sym, sites := range of.Imported {
		for _, site := range sites {
			if site.Addr >= size {
				return diag.Malformedf(of.Path, "imported symbol "+sym+" reference out of range")
			}
		}
	}
	return nil
}
