package patch

import (
	"github.com/pkg/errors"

	"github.com/go-bf/bf/cfg"
	"github.com/go-bf/bf/objfile"
)

// DetourBlock implements spec.md §4.D's detour(src_block, dest_block):
// overwrite src's first bytes with a jump stub to dest, then NOP-pad any
// instruction the stub partially overwrote.
func (p *Patcher) DetourBlock(src, dest *cfg.Block) error {
	if p.outputPath == "" {
		return ErrNoOutputFile
	}
	stubLen := StubLength(p.bitness)
	if blockSize(p.idx, src) < stubLen {
		return errors.Wrapf(ErrBlockTooSmall, "block at %v is smaller than the %d-byte stub", src.VMA, stubLen)
	}

	offset, ok, err := objfile.FileOffsetForVMA(p.outputPath, src.VMA)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(ErrVmaUnmapped, "detour source %v", src.VMA)
	}

	stub := buildDetourStub(p.bitness, uint64(src.VMA), uint64(dest.VMA))
	if err := writeAt(p.outputPath, offset, stub); err != nil {
		return err
	}

	return padTillNextInsn(p.outputPath, p.idx, src, stubLen)
}

// DetourFunc detours src's entry block to dest's entry block.
func (p *Patcher) DetourFunc(src, dest *cfg.Func) error {
	srcBlock, ok := p.idx.Block(src.EntryBlock)
	if !ok {
		return errors.Errorf("patch: func %v has no entry block", src.VMA)
	}
	destBlock, ok := p.idx.Block(dest.EntryBlock)
	if !ok {
		return errors.Errorf("patch: func %v has no entry block", dest.VMA)
	}
	return p.DetourBlock(srcBlock, destBlock)
}
