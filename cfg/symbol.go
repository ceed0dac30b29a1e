package cfg

import (
	"sort"

	"github.com/go-bf/bf/bin"
	"github.com/go-bf/bf/objfile"
)

// SymbolIndex indexes a target's symbol table both by name and by address,
// the latter kept sorted to answer closest-enclosing-symbol queries (spec.md
// §3: Symbol is "indexed by both hash(name) and an ordered tree keyed by
// address").
type SymbolIndex struct {
	byName map[string]*objfile.Symbol
	byAddr []*objfile.Symbol // sorted ascending by Value
}

// NewSymbolIndex builds a SymbolIndex over syms.
func NewSymbolIndex(syms []*objfile.Symbol) *SymbolIndex {
	idx := &SymbolIndex{byName: make(map[string]*objfile.Symbol, len(syms))}
	for _, s := range syms {
		idx.byName[s.Name] = s
		idx.byAddr = append(idx.byAddr, s)
	}
	sort.Slice(idx.byAddr, func(i, j int) bool {
		return idx.byAddr[i].Value < idx.byAddr[j].Value
	})
	return idx
}

// ByName looks up a symbol by its exact name.
func (idx *SymbolIndex) ByName(name string) (*objfile.Symbol, bool) {
	s, ok := idx.byName[name]
	return s, ok
}

// ByAddr looks up a symbol whose value is exactly vma.
func (idx *SymbolIndex) ByAddr(vma bin.Addr) (*objfile.Symbol, bool) {
	i := sort.Search(len(idx.byAddr), func(i int) bool { return idx.byAddr[i].Value >= vma })
	if i < len(idx.byAddr) && idx.byAddr[i].Value == vma {
		return idx.byAddr[i], true
	}
	return nil, false
}

// Closest returns the symbol with the greatest Value not exceeding vma: the
// symbol whose body most plausibly encloses vma. For a sized symbol, vma
// must also fall within [Value, Value+Size) to count as enclosed.
func (idx *SymbolIndex) Closest(vma bin.Addr) (*objfile.Symbol, bool) {
	i := sort.Search(len(idx.byAddr), func(i int) bool { return idx.byAddr[i].Value > vma })
	if i == 0 {
		return nil, false
	}
	sym := idx.byAddr[i-1]
	if sym.Size > 0 && vma >= sym.Value+bin.Addr(sym.Size) {
		return nil, false
	}
	return sym, true
}

// Len returns the number of indexed symbols.
func (idx *SymbolIndex) Len() int {
	return len(idx.byAddr)
}
