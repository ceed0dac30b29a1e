package patch

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
	"golang.org/x/arch/x86/x86asm"

	"github.com/go-bf/bf/bin"
	"github.com/go-bf/bf/cfg"
	"github.com/go-bf/bf/objfile"
	"github.com/go-bf/bf/section"
	"github.com/go-bf/bf/x86"
)

// TrampolineBlock implements spec.md §4.D's trampoline(src_block,
// dest_block): relocate dest's epilogue and the src prologue the detour is
// about to overwrite into dest's NOP sled, append a back-detour to src's
// continuation, then install the forward detour from src to dest.
func (p *Patcher) TrampolineBlock(src, dest *cfg.Block) error {
	if p.outputPath == "" {
		return ErrNoOutputFile
	}
	stubLen := StubLength(p.bitness)
	if blockSize(p.idx, src) < stubLen {
		return errors.Wrapf(ErrBlockTooSmall, "block at %v is smaller than the %d-byte stub", src.VMA, stubLen)
	}

	if err := p.populateTrampolineBlock(src, dest); err != nil {
		return err
	}
	return p.DetourBlock(src, dest)
}

// TrampolineFunc installs a trampoline between src's and dest's entry
// blocks.
func (p *Patcher) TrampolineFunc(src, dest *cfg.Func) error {
	srcBlock, ok := p.idx.Block(src.EntryBlock)
	if !ok {
		return errors.Errorf("patch: func %v has no entry block", src.VMA)
	}
	destBlock, ok := p.idx.Block(dest.EntryBlock)
	if !ok {
		return errors.Errorf("patch: func %v has no entry block", dest.VMA)
	}
	return p.TrampolineBlock(srcBlock, destBlock)
}

// populateTrampolineBlock implements original_source/lib/detour.c's
// bf_populate_trampoline_block: locate the sled, relocate the epilogue into
// it, pad the now-dead original epilogue, relocate the src bytes about to
// be overwritten by the forward detour, and append a back-detour.
func (p *Patcher) populateTrampolineBlock(src, dest *cfg.Block) error {
	sledLen := SledLength(p.bitness)

	view, err := p.cache.LoadSectionFor(dest.VMA)
	if err != nil {
		return err
	}
	sledVMA, ok := findSled(view, dest.VMA, sledLen)
	if !ok {
		return errors.Wrapf(ErrNoSledFound, "no %d-byte nop sled found at or after %v", sledLen, dest.VMA)
	}

	epilogueVMA, err := findEpilogue(p.idx, sledVMA)
	if err != nil {
		return err
	}

	nextNop, err := p.relocateEpilogue(view, epilogueVMA, sledVMA)
	if err != nil {
		return err
	}
	if err := p.padTillReturn(nextNop); err != nil {
		return err
	}

	stubLen := StubLength(p.bitness)
	stop := nextInsnBoundary(p.idx, src, stubLen)

	srcView, err := p.cache.LoadSectionFor(src.VMA)
	if err != nil {
		return err
	}
	cursor, err := p.relocateInsns(srcView, src, nextNop, stop)
	if err != nil {
		return err
	}

	backStub := buildDetourStub(p.bitness, uint64(cursor), uint64(src.VMA)+uint64(stubLen))
	offset, ok, err := objfile.FileOffsetForVMA(p.outputPath, cursor)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(ErrVmaUnmapped, "back-detour at %v", cursor)
	}
	return writeAt(p.outputPath, offset, backStub)
}

// findSled searches view (covering dest's section) for the first run of
// exactly sledLen consecutive 0x90 bytes at or after from, per spec.md
// §9's exact-match requirement.
func findSled(view *section.View, from bin.Addr, sledLen int) (bin.Addr, bool) {
	start := int(uint64(from) - uint64(view.Section))
	if start < 0 || start > len(view.Bytes) {
		return 0, false
	}
	needle := bytes.Repeat([]byte{0x90}, sledLen)
	i := bytes.Index(view.Bytes[start:], needle)
	if i < 0 {
		return 0, false
	}
	return view.Section + bin.Addr(start+i), true
}

// findEpilogue walks forward from a sled's first NOP, across indexed NOP
// instructions, and returns the VMA of the first non-NOP instruction: the
// callee's epilogue start.
func findEpilogue(idx *cfg.Index, from bin.Addr) (bin.Addr, error) {
	v := from
	for {
		insn, ok := idx.Insn(v)
		if !ok {
			return 0, errors.Errorf("patch: no instruction indexed at %v while scanning for epilogue", v)
		}
		if !x86.IsNop(insn.Mnemonic) {
			return v, nil
		}
		v += bin.Addr(insn.Size)
	}
}

// relocateEpilogue copies each instruction from the callee's epilogue
// (starting at from) to the sled (starting at to), stopping before the
// terminating ret. It returns the address one past the last relocated
// instruction — where the (now dead) ret used to be.
func (p *Patcher) relocateEpilogue(view *section.View, from, to bin.Addr) (bin.Addr, error) {
	for {
		insn, ok := p.idx.Insn(from)
		if !ok {
			return 0, errors.Errorf("patch: no instruction indexed at %v while relocating epilogue", from)
		}
		if insn.Class == x86.EndsFlow {
			return to, nil
		}
		if err := p.relocateInsn(view, insn, to); err != nil {
			return 0, err
		}
		from += bin.Addr(insn.Size)
		to += bin.Addr(insn.Size)
	}
}

// relocateInsns copies every instruction of src in [src.VMA, stop) to
// consecutive addresses starting at to, returning the address one past the
// last relocated instruction.
func (p *Patcher) relocateInsns(view *section.View, src *cfg.Block, to, stop bin.Addr) (bin.Addr, error) {
	cursor := to
	for _, vma := range src.Insns {
		if vma >= stop {
			break
		}
		insn, ok := p.idx.Insn(vma)
		if !ok {
			return 0, errors.Errorf("patch: no instruction indexed at %v while relocating prologue", vma)
		}
		if err := p.relocateInsn(view, insn, cursor); err != nil {
			return 0, err
		}
		cursor += bin.Addr(insn.Size)
	}
	return cursor, nil
}

// relocateInsn copies insn's bytes from view to the file offset
// corresponding to to, adjusting a 64-bit relative call's displacement so
// its absolute target is preserved across the move (original_source/lib/
// detour.c's relocate_insn64).
func (p *Patcher) relocateInsn(view *section.View, insn *cfg.Insn, to bin.Addr) error {
	start := int(uint64(insn.Addr) - uint64(view.Section))
	raw := make([]byte, insn.Size)
	copy(raw, view.Bytes[start:start+insn.Size])

	if p.bitness == 64 && insn.Class == x86.Calls && len(raw) == 5 && raw[0] == 0xE8 {
		if _, ok := insn.Raw.Args[0].(x86asm.Rel); ok {
			relocDiff := int32(int64(to) - int64(insn.Addr))
			old := int32(binary.LittleEndian.Uint32(raw[1:5]))
			binary.LittleEndian.PutUint32(raw[1:5], uint32(old-relocDiff))
		}
	}

	offset, ok, err := objfile.FileOffsetForVMA(p.outputPath, to)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(ErrVmaUnmapped, "relocation target %v", to)
	}
	return writeAt(p.outputPath, offset, raw)
}

// padTillReturn NOP-pads every instruction from vma through (and including)
// the next flow-ending instruction, mirroring original_source/lib/
// detour.c's pad_till_return: it cleans up the sled's untouched tail and
// the callee's now-dead original epilogue bytes in one pass.
func (p *Patcher) padTillReturn(vma bin.Addr) error {
	for {
		insn, ok := p.idx.Insn(vma)
		if !ok {
			return nil
		}
		offset, ok, err := objfile.FileOffsetForVMA(p.outputPath, vma)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Wrapf(ErrVmaUnmapped, "pad target %v", vma)
		}
		if err := writeAt(p.outputPath, offset, bytes.Repeat([]byte{0x90}, insn.Size)); err != nil {
			return err
		}
		if insn.Class == x86.EndsFlow {
			return nil
		}
		vma += bin.Addr(insn.Size)
	}
}
