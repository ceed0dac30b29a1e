package objfile

import (
	"debug/elf"

	"github.com/pkg/errors"

	"github.com/go-bf/bf/bin"
)

// SymType is the type bitfield attached to a Symbol, per spec.md §3's
// Symbol data model: {local, global, function, object, dynamic, weak,
// debugging, common}. Encoded as an opaque tagged bitmask rather than a
// string, per the design note on string-based classification (§9).
type SymType uint16

// Symbol type bits.
const (
	SymLocal SymType = 1 << iota
	SymGlobal
	SymWeak
	SymFunction
	SymObject
	SymDynamic
	SymDebug
	SymCommon
)

// Symbol is one entry of the target's symbol table, as required by §6:
// name, value (VMA), type flags, size, and containing section name.
type Symbol struct {
	Name    string
	Value   bin.Addr
	Type    SymType
	Size    uint64
	Section string
}

// Symbols returns every symbol discoverable in the target, combining the
// static symbol table (.symtab) with the dynamic symbol table (.dynsym)
// when present. Symbols with an empty name are skipped, matching libbf's
// bf_sym_tab.c treatment of the null first entry every ELF symbol table
// carries.
func (f *File) Symbols() ([]*Symbol, error) {
	var out []*Symbol

	statics, err := f.elf.Symbols()
	if err != nil && err != elf.ErrNoSymbols {
		return nil, errors.Wrap(err, "objfile: failed to read symbol table")
	}
	out = append(out, f.convertSymbols(statics, false)...)

	dynamics, err := f.elf.DynamicSymbols()
	if err != nil && err != elf.ErrNoSymbols {
		return nil, errors.Wrap(err, "objfile: failed to read dynamic symbol table")
	}
	out = append(out, f.convertSymbols(dynamics, true)...)

	return out, nil
}

func (f *File) convertSymbols(syms []elf.Symbol, dynamic bool) []*Symbol {
	var out []*Symbol
	for _, s := range syms {
		if s.Name == "" {
			continue
		}
		out = append(out, &Symbol{
			Name:    s.Name,
			Value:   bin.Addr(s.Value),
			Type:    classifySymbol(s, dynamic),
			Size:    s.Size,
			Section: f.sectionNameForIndex(s.Section),
		})
	}
	return out
}

func (f *File) sectionNameForIndex(idx elf.SectionIndex) string {
	switch idx {
	case elf.SHN_UNDEF:
		return ""
	case elf.SHN_ABS, elf.SHN_COMMON:
		return ""
	}
	i := int(idx)
	if i < 0 || i >= len(f.elf.Sections) {
		return ""
	}
	return f.elf.Sections[i].Name
}

func classifySymbol(s elf.Symbol, dynamic bool) SymType {
	var t SymType

	switch elf.ST_BIND(s.Info) {
	case elf.STB_LOCAL:
		t |= SymLocal
	case elf.STB_GLOBAL:
		t |= SymGlobal
	case elf.STB_WEAK:
		t |= SymWeak
	}

	switch elf.ST_TYPE(s.Info) {
	case elf.STT_FUNC:
		t |= SymFunction
	case elf.STT_OBJECT:
		t |= SymObject
	case elf.STT_FILE, elf.STT_SECTION:
		t |= SymDebug
	}

	if s.Section == elf.SHN_COMMON {
		t |= SymCommon
	}
	if dynamic {
		t |= SymDynamic
	}

	return t
}
