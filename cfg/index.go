package cfg

import (
	"github.com/go-bf/bf/bin"
	"github.com/go-bf/bf/objfile"
)

// Index holds the Session-owned entity maps of spec.md §3 other than
// SectionView (owned by section.Cache): VMA→Block, VMA→Insn, VMA→Func, and
// the symbol table (component E). It is the sole owner of every entity the
// engine creates; nothing is released individually, only by discarding the
// Index (or the Session that holds it) as a whole.
type Index struct {
	blocks map[bin.Addr]*Block
	insns  map[bin.Addr]*Insn
	funcs  map[bin.Addr]*Func
	syms   *SymbolIndex
}

// NewIndex returns an empty entity index seeded with the target's symbol
// table.
func NewIndex(syms []*objfile.Symbol) *Index {
	return &Index{
		blocks: make(map[bin.Addr]*Block),
		insns:  make(map[bin.Addr]*Insn),
		funcs:  make(map[bin.Addr]*Func),
		syms:   NewSymbolIndex(syms),
	}
}

// Block returns the Block at vma, if one has been created.
func (idx *Index) Block(vma bin.Addr) (*Block, bool) {
	b, ok := idx.blocks[vma]
	return b, ok
}

// Insn returns the Insn at vma, if one has been decoded.
func (idx *Index) Insn(vma bin.Addr) (*Insn, bool) {
	i, ok := idx.insns[vma]
	return i, ok
}

// Func returns the Func at vma, if one has been registered.
func (idx *Index) Func(vma bin.Addr) (*Func, bool) {
	f, ok := idx.funcs[vma]
	return f, ok
}

// FuncByName resolves name through the symbol table and returns the Func at
// that address, if both exist.
func (idx *Index) FuncByName(name string) (*Func, bool) {
	sym, ok := idx.syms.ByName(name)
	if !ok {
		return nil, false
	}
	return idx.Func(sym.Value)
}

// Symbol returns the symbol whose value is exactly vma.
func (idx *Index) Symbol(vma bin.Addr) (*objfile.Symbol, bool) {
	return idx.syms.ByAddr(vma)
}

// ClosestSymbol returns the symbol that most plausibly encloses vma: the
// symbol with the greatest value not exceeding it. If that symbol has a
// non-zero size that ends at or before vma, no symbol is returned.
func (idx *Index) ClosestSymbol(vma bin.Addr) (*objfile.Symbol, bool) {
	return idx.syms.Closest(vma)
}

// BlockEnd returns the VMA one past b's last instruction, or b.VMA if b has
// no instructions yet.
func (idx *Index) BlockEnd(b *Block) bin.Addr {
	if len(b.Insns) == 0 {
		return b.VMA
	}
	last := b.Insns[len(b.Insns)-1]
	insn, ok := idx.insns[last]
	if !ok {
		return last
	}
	return bin.Addr(uint64(last) + uint64(insn.Size))
}

// VisitBlocks calls fn for every Block in the index, stopping early if fn
// returns false. Iteration order is unspecified.
func (idx *Index) VisitBlocks(fn func(*Block) bool) {
	for _, b := range idx.blocks {
		if !fn(b) {
			return
		}
	}
}

// VisitInsns calls fn for every Insn in the index, stopping early if fn
// returns false. Iteration order is unspecified.
func (idx *Index) VisitInsns(fn func(*Insn) bool) {
	for _, i := range idx.insns {
		if !fn(i) {
			return
		}
	}
}

// VisitFuncs calls fn for every Func in the index, stopping early if fn
// returns false. Iteration order is unspecified.
func (idx *Index) VisitFuncs(fn func(*Func) bool) {
	for _, f := range idx.funcs {
		if !fn(f) {
			return
		}
	}
}

// VisitSymbols calls fn for every symbol, in ascending address order,
// stopping early if fn returns false.
func (idx *Index) VisitSymbols(fn func(*objfile.Symbol) bool) {
	for _, s := range idx.syms.byAddr {
		if !fn(s) {
			return
		}
	}
}

// NumBlocks reports the number of blocks currently indexed.
func (idx *Index) NumBlocks() int {
	return len(idx.blocks)
}

// NumInsns reports the number of instructions currently indexed.
func (idx *Index) NumInsns() int {
	return len(idx.insns)
}

// NumFuncs reports the number of functions currently indexed.
func (idx *Index) NumFuncs() int {
	return len(idx.funcs)
}
