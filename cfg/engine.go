package cfg

import (
	"log"
	"os"

	"github.com/kr/pretty"
	"github.com/mewkiz/pkg/term"
	"github.com/pkg/errors"

	"github.com/go-bf/bf/bin"
	"github.com/go-bf/bf/section"
	"github.com/go-bf/bf/x86"
)

var warn = log.New(os.Stderr, term.RedBold("cfg:")+" ", 0)

// ErrDecodeFailed indicates the disassembler returned a non-positive
// instruction length, or rejected the bytes at a VMA outright.
var ErrDecodeFailed = errors.New("cfg: decode failed")

// Engine drives recursive disassembly and CFG reconstruction (spec.md
// §4.C), consulting a section.Cache for bytes and populating an Index with
// the Block/Insn/Func entities it discovers.
type Engine struct {
	cache *section.Cache
	index *Index
	mode  int // 32 or 64, the x86asm decode mode
}

// NewEngine returns an Engine that decodes in the given bitness (32 or 64)
// against cache, recording entities in index.
func NewEngine(cache *section.Cache, index *Index, bitness int) *Engine {
	return &Engine{cache: cache, index: index, mode: bitness}
}

// Index returns the entity index this engine populates.
func (e *Engine) Index() *Index {
	return e.index
}

// DisasmFromVMA builds or extends the CFG starting at root. If isFunction is
// true, a Func is also registered at root once the block completes.
func (e *Engine) DisasmFromVMA(root bin.Addr, isFunction bool) (*Block, error) {
	block, err := e.disasmFromVMA(root)
	if err != nil {
		return nil, err
	}
	if isFunction {
		e.registerFunc(root, block.VMA)
	}
	return block, nil
}

// DisasmFromSymbol resolves sym to its address via the engine's symbol
// index and dispatches to DisasmFromVMA.
func (e *Engine) DisasmFromSymbol(sym string, isFunction bool) (*Block, error) {
	s, ok := e.index.syms.ByName(sym)
	if !ok {
		return nil, errors.Errorf("cfg: unknown symbol %q", sym)
	}
	return e.DisasmFromVMA(s.Value, isFunction)
}

// disasmFromVMA implements the per-call algorithm of spec.md §4.C: fast
// paths for memoization and mid-block split, then a fresh linear decode
// until flow ends.
func (e *Engine) disasmFromVMA(v bin.Addr) (*Block, error) {
	if b, ok := e.index.Block(v); ok {
		// Memoization: a Block already starts here. Terminates recursion on
		// joins and loops.
		return b, nil
	}
	if insn, ok := e.index.Insn(v); ok {
		// An Insn exists at v but no Block starts there: a previously
		// linear block overlaps a new entry point and must be split.
		return e.splitBlock(insn, v)
	}

	block := &Block{VMA: v}
	e.index.blocks[v] = block
	if sym, ok := e.index.ClosestSymbol(v); ok && sym.Value == v {
		block.Symbol = sym.Name
	}

	cur := v
decode:
	for {
		if existing, ok := e.index.Insn(cur); ok {
			_ = existing
			if b, ok := e.index.Block(cur); ok {
				block.SuccPrimary = b.VMA
				block.HasPrimary = true
				break decode
			}
			warn.Printf("overlapping decode at %v inside block %v, not at a block boundary", cur, v)
			break decode
		}

		view, err := e.cache.LoadSectionFor(cur)
		if err != nil {
			return nil, errors.Wrapf(err, "cfg: failed to disassemble at %v", cur)
		}
		offset := int(uint64(cur) - uint64(view.Section))
		if offset < 0 || offset >= len(view.Bytes) {
			return nil, errors.Errorf("cfg: %v not covered by its own section view", cur)
		}

		decoded, err := x86.Decode(view.Bytes[offset:], cur, e.mode)
		if err != nil {
			return nil, errors.Wrapf(ErrDecodeFailed, "at %v: %v", cur, err)
		}
		if decoded.Size <= 0 {
			return nil, errors.Wrapf(ErrDecodeFailed, "at %v: non-positive length", cur)
		}

		insn := &Insn{Inst: decoded, OwnerBlock: v}
		e.index.insns[cur] = insn
		block.Insns = append(block.Insns, cur)

		if decoded.IsData {
			pretty.Println(decoded)
		}

		switch insn.Class {
		case x86.Branches, x86.Breaks, x86.Calls:
			if err := e.chainSuccessors(block, insn); err != nil {
				return nil, err
			}
			break decode
		case x86.EndsFlow:
			break decode
		default:
			cur += bin.Addr(insn.Size)
		}
	}

	return block, nil
}

// chainSuccessors recursively decodes and chains the successor edges of a
// block-terminating instruction: fall-through first (unless the instruction
// is an unconditional break), then the direct target if known, registering
// a Func at call targets.
func (e *Engine) chainSuccessors(block *Block, insn *Insn) error {
	if insn.Class != x86.Breaks {
		fallthroughVMA := insn.Addr + bin.Addr(insn.Size)
		succ, err := e.disasmFromVMA(fallthroughVMA)
		if err != nil {
			return err
		}
		block.SuccPrimary = succ.VMA
		block.HasPrimary = true
	}

	if insn.Target != 0 {
		target, err := e.disasmFromVMA(insn.Target)
		if err != nil {
			return err
		}
		if !block.HasPrimary {
			block.SuccPrimary = target.VMA
			block.HasPrimary = true
		} else {
			block.SuccSecondary = target.VMA
			block.HasSecondary = true
		}
		if insn.Class == x86.Calls {
			e.registerFunc(insn.Target, target.VMA)
		}
	}
	return nil
}

// splitBlock implements spec.md §4.C step 2: create a new Block at v,
// move every Insn with vma ≥ v from the old block into it (re-parenting
// owner_block), chain the old block's succ_primary to the new one, then
// determine the new block's own successors from the instruction that used
// to end the old block's linear run.
func (e *Engine) splitBlock(at *Insn, v bin.Addr) (*Block, error) {
	oldBlock, ok := e.index.Block(at.OwnerBlock)
	if !ok {
		return nil, errors.Errorf("cfg: insn at %v has no owning block (recorded owner %v)", v, at.OwnerBlock)
	}

	splitIdx := -1
	for i, vma := range oldBlock.Insns {
		if vma >= v {
			splitIdx = i
			break
		}
	}
	if splitIdx < 0 {
		return nil, errors.Errorf("cfg: split target %v not found among block %v's instructions", v, oldBlock.VMA)
	}

	moved := oldBlock.Insns[splitIdx:]
	oldBlock.Insns = oldBlock.Insns[:splitIdx]

	newBlock := &Block{VMA: v, Insns: moved}
	e.index.blocks[v] = newBlock
	if sym, ok := e.index.ClosestSymbol(v); ok && sym.Value == v {
		newBlock.Symbol = sym.Name
	}
	for _, vma := range moved {
		if insn, ok := e.index.insns[vma]; ok {
			insn.OwnerBlock = v
		}
	}

	oldSuccPrimary, oldHasPrimary := oldBlock.SuccPrimary, oldBlock.HasPrimary
	oldSuccSecondary, oldHasSecondary := oldBlock.SuccSecondary, oldBlock.HasSecondary

	oldBlock.SuccPrimary = v
	oldBlock.HasPrimary = true
	oldBlock.SuccSecondary = 0
	oldBlock.HasSecondary = false

	lastVMA := moved[len(moved)-1]
	lastInsn, ok := e.index.insns[lastVMA]
	if !ok {
		return newBlock, nil
	}

	// The moved instructions were already decoded against unpatched bytes,
	// so their recorded Class/Target stand in for the re-decode spec.md
	// describes: nothing about the underlying bytes has changed since.
	switch lastInsn.Class {
	case x86.Branches, x86.Breaks, x86.Calls:
		if err := e.chainSuccessors(newBlock, lastInsn); err != nil {
			return nil, err
		}
	case x86.EndsFlow:
		// terminal; no successor to chain.
	default:
		// The old block's run ended here without a flow-ending instruction
		// (it joined an already-decoded block). Those successor edges now
		// belong to the new block, not the old one.
		newBlock.SuccPrimary, newBlock.HasPrimary = oldSuccPrimary, oldHasPrimary
		newBlock.SuccSecondary, newBlock.HasSecondary = oldSuccSecondary, oldHasSecondary
	}

	return newBlock, nil
}

// registerFunc returns the Func already registered at vma, or creates one
// rooted there with the given entry block.
func (e *Engine) registerFunc(vma, entryBlock bin.Addr) *Func {
	if f, ok := e.index.funcs[vma]; ok {
		return f
	}
	f := &Func{VMA: vma, EntryBlock: entryBlock}
	if sym, ok := e.index.ClosestSymbol(vma); ok && sym.Value == vma {
		f.Symbol = sym.Name
	}
	e.index.funcs[vma] = f
	return f
}
