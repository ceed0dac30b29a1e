package patch

import (
	"bytes"
	"os"

	"github.com/pkg/errors"

	"github.com/go-bf/bf/bin"
	"github.com/go-bf/bf/cfg"
	"github.com/go-bf/bf/objfile"
)

// writeAt opens path read-write, seeks to offset, writes data in a single
// call, and closes the file — mirroring original_source/lib/detour.c's
// patch_file: no buffering is kept open across patch operations, and each
// stub is written as one buffered write (spec.md §7: "partial byte writes
// do not occur").
func writeAt(path string, offset uint64, data []byte) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return errors.Wrapf(err, "patch: unable to open %q", path)
	}
	defer f.Close()
	if _, err := f.WriteAt(data, int64(offset)); err != nil {
		return errors.Wrapf(err, "patch: write failed at offset %d of %q", offset, path)
	}
	return nil
}

// blockSize returns the byte length of b, from its entry VMA to the VMA one
// past its last instruction.
func blockSize(idx *cfg.Index, b *cfg.Block) int {
	return int(uint64(idx.BlockEnd(b)) - uint64(b.VMA))
}

// nextInsnBoundary finds the VMA of the first known instruction at or after
// b.VMA+afterBytes, mirroring original_source/lib/detour.c's
// get_offset_insn_after_detour. If no further instruction is indexed within
// b, it returns the block's end (the VMA one past its last instruction).
func nextInsnBoundary(idx *cfg.Index, b *cfg.Block, afterBytes int) bin.Addr {
	end := idx.BlockEnd(b)
	for v := b.VMA + bin.Addr(afterBytes); v < end; v++ {
		if _, ok := idx.Insn(v); ok {
			return v
		}
	}
	return end
}

// padTillNextInsn NOP-pads the gap between the end of a just-written stub
// and the next instruction boundary within b (spec.md §4.D's "NOP-pad the
// tail" step).
func padTillNextInsn(outputPath string, idx *cfg.Index, b *cfg.Block, stubLen int) error {
	start := b.VMA + bin.Addr(stubLen)
	next := nextInsnBoundary(idx, b, stubLen)
	if next <= start {
		return nil
	}
	n := int(next - start)
	offset, ok, err := objfile.FileOffsetForVMA(outputPath, start)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(ErrVmaUnmapped, "padding tail at %v", start)
	}
	return writeAt(outputPath, offset, bytes.Repeat([]byte{0x90}, n))
}
