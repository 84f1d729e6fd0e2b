// Package objfile implements the on-disk relocatable object format
// (spec §4.2) and the in-memory ObjectFile representation (spec §3)
// for both Profile-32 variants and Profile-64.
package objfile

import (
	"errors"
	"io"
	"sort"

	"github.com/xyproto/subleqld/internal/diag"
	"github.com/xyproto/subleqld/internal/profile"
	"github.com/xyproto/subleqld/internal/wordio"
)

// ObjectFile32 is one parsed (or synthesized) relocatable unit for
// Profile-32a, Profile-32b, or Profile-32-hybrid. Variant determines
// which on-disk layout was read and which relocation/resolution
// policy the Linker applies to it (spec §4.4).
type ObjectFile32 struct {
	Path    string
	Variant profile.Variant

	Offset     uint32 // assigned by the Linker (phase 1)
	TextOffset uint32 // meaningful for Variant32B only; 0 otherwise

	Exported map[string]uint32   // symbol -> local address
	Imported map[string][]uint32 // symbol -> local reference-site addresses

	// Relative holds the "relative" set (Variant32A, VariantHybrid).
	Relative map[uint32]struct{}
	// Absolute holds the "absolute" set (Variant32B).
	Absolute map[uint32]struct{}

	Mem *Image32
}

// ReadObjectFile32 parses the on-disk layout for the given variant
// from r (spec §4.2). path is used only to annotate errors.
func ReadObjectFile32(r io.Reader, path string, variant profile.Variant) (*ObjectFile32, error) {
	rd := wordio.NewReader(r)
	of := &ObjectFile32{
		Path:     path,
		Variant:  variant,
		Exported: make(map[string]uint32),
		Imported: make(map[string][]uint32),
		Mem:      &Image32{},
	}

	if variant == profile.Variant32B {
		textOffset, err := rd.ReadUint32()
		if err != nil {
			return nil, diag.Truncatedf(path, "reading text_offset", err)
		}
		of.TextOffset = textOffset
	}

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
		return nil, diag.Truncatedf(path, "reading n_import_symbols", err)
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
		refs, err := rd.ReadUint32Slice(nRefs)
		if err != nil {
			return nil, diag.Truncatedf(path, "reading refs for "+sym, err)
		}
		of.Imported[sym] = append(of.Imported[sym], refs...)
	}

	if variant == profile.Variant32B {
		of.Absolute = make(map[uint32]struct{})
		nAbsolute, err := rd.ReadUint32()
		if err != nil {
			return nil, diag.Truncatedf(path, "reading n_absolute", err)
		}
		addrs, err := rd.ReadUint32Slice(nAbsolute)
		if err != nil {
			return nil, diag.Truncatedf(path, "reading absolute_addrs", err)
		}
		for _, a := range addrs {
			of.Absolute[a] = struct{}{}
		}
	} else {
		of.Relative = make(map[uint32]struct{})
		nRelative, err := rd.ReadUint32()
		if err != nil {
			return nil, diag.Truncatedf(path, "reading n_relative", err)
		}
		addrs, err := rd.ReadUint32Slice(nRelative)
		if err != nil {
			return nil, diag.Truncatedf(path, "reading relative_addrs", err)
		}
		for _, a := range addrs {
			of.Relative[a] = struct{}{}
		}
	}

	memSize, err := rd.ReadUint32()
	if err != nil {
		return nil, diag.Truncatedf(path, "reading mem_size", err)
	}
	code, err := rd.ReadUint32Slice(memSize)
	if err != nil {
		return nil, diag.Truncatedf(path, "reading code", err)
	}
	of.Mem.Fill(code)

	if err := of.Validate(); err != nil {
		return nil, err
	}
	return of, nil
}

// Validate checks the invariants of spec §3: text_offset bounds,
// every marked address in range, non-empty mem.
func (of *ObjectFile32) Validate() error {
	size := uint32(of.Mem.Len())
	if of.TextOffset > size {
		return diag.Malformedf(of.Path, "text_offset exceeds mem_size")
	}
	if size == 0 {
		return diag.Malformedf(of.Path, "mem_size is zero; an object file must contribute at least one word")
	}
	for addr := range of.Relative {
		if addr >= size {
			return diag.Malformedf(of.Path, "relative address out of range")
		}
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
		for _, addr := range sites {
			if addr >= size {
				return diag.Malformedf(of.Path, "imported symbol "+sym+" reference out of range")
			}
		}
	}
	return nil
}

// WriteObjectFile32 serializes of back to the on-disk layout for its
// variant — the mirror image of ReadObjectFile32. Used by the
// Profile-32-hybrid Driver's non-exec output mode (spec §4.6), which
// re-emits a merged object in exactly the format it would itself
// later read (confirmed against main.cpp, see SPEC_FULL.md).
func (of *ObjectFile32) WriteObjectFile32(w io.Writer) error {
	wr := wordio.NewWriter(w)

	if of.Variant == profile.Variant32B {
		if err := wr.WriteUint32(of.TextOffset); err != nil {
			return diag.IOf(of.Path, err)
		}
	}

	if err := writeSymbolTable(wr, of.Exported); err != nil {
		return diag.IOf(of.Path, err)
	}
	if err := writeReferenceTable(wr, of.Imported); err != nil {
		return diag.IOf(of.Path, err)
	}

	if of.Variant == profile.Variant32B {
		if err := writeAddrSet(wr, of.Absolute); err != nil {
			return diag.IOf(of.Path, err)
		}
	} else {
		if err := writeAddrSet(wr, of.Relative); err != nil {
			return diag.IOf(of.Path, err)
		}
	}

	if err := wr.WriteUint32(uint32(of.Mem.Len())); err != nil {
		return diag.IOf(of.Path, err)
	}
	if err := wr.WriteUint32Slice(of.Mem.Words()); err != nil {
		return diag.IOf(of.Path, err)
	}
	return nil
}

func writeSymbolTable(wr *wordio.Writer, exported map[string]uint32) error {
	names := sortedKeys(exported)
	if err := wr.WriteUint32(uint32(len(names))); err != nil {
		return err
	}
	for _, name := range names {
		if err := wr.WriteCString(name); err != nil {
			return err
		}
		if err := wr.WriteUint32(exported[name]); err != nil {
			return err
		}
	}
	return nil
}

func writeReferenceTable(wr *wordio.Writer, imported map[string][]uint32) error {
	names := sortedKeys(imported)
	if err := wr.WriteUint32(uint32(len(names))); err != nil {
		return err
	}
	for _, name := range names {
		refs := imported[name]
		if err := wr.WriteCString(name); err != nil {
			return err
		}
		if err := wr.WriteUint32(uint32(len(refs))); err != nil {
			return err
		}
		if err := wr.WriteUint32Slice(refs); err != nil {
			return err
		}
	}
	return nil
}

func writeAddrSet(wr *wordio.Writer, set map[uint32]struct{}) error {
	addrs := make([]uint32, 0, len(set))
	for a := range set {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	if err := wr.WriteUint32(uint32(len(addrs))); err != nil {
		return err
	}
	return wr.WriteUint32Slice(addrs)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func wrapStringErr(path, detail string, err error) error {
	var oversized *wordio.ErrOversizedSymbol
	if errors.As(err, &oversized) {
		return diag.Oversizedf(path, wordio.MaxSymbolLen)
	}
	return diag.Truncatedf(path, detail, err)
}
