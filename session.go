// Package bf is the top-level library surface of §6: load a target object,
// recursively disassemble it into a control-flow graph, query the resulting
// entities, and patch an output copy with detours and trampolines.
package bf

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/go-bf/bf/bin"
	"github.com/go-bf/bf/cfg"
	"github.com/go-bf/bf/objfile"
	"github.com/go-bf/bf/patch"
	"github.com/go-bf/bf/section"
)

// Session owns every entity discovered for one target object: the section
// cache, the entity index, the disassembly engine, and (when an output path
// was supplied) the patcher that rewrites it. A Session is single-threaded
// and non-reentrant (spec.md §5): callers must serialize operations against
// one Session themselves; distinct Sessions are fully independent.
type Session struct {
	file   *objfile.File
	cache  *section.Cache
	index  *cfg.Index
	engine *cfg.Engine
	patch  *patch.Patcher

	outputPath string
}

// Load opens targetPath for disassembly. When outputPath is non-empty, the
// target is first copied there and every subsequent patch mutates only that
// copy (spec.md §6); when outputPath is empty, patch operations fail with
// ErrNoOutputFile.
func Load(targetPath, outputPath string) (*Session, error) {
	if outputPath != "" {
		if err := copyFile(targetPath, outputPath); err != nil {
			return nil, errors.Wrapf(ErrObjectLoadFailed, "copying %q to %q: %v", targetPath, outputPath, err)
		}
	}

	openPath := targetPath
	if outputPath != "" {
		openPath = outputPath
	}

	file, err := objfile.Open(openPath)
	if err != nil {
		return nil, err
	}

	syms, err := file.Symbols()
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, "bf: failed to read symbol table")
	}

	cache := section.NewCache(file)
	index := cfg.NewIndex(syms)
	engine := cfg.NewEngine(cache, index, file.Bitness())

	s := &Session{
		file:       file,
		cache:      cache,
		index:      index,
		engine:     engine,
		outputPath: outputPath,
	}
	if outputPath != "" {
		s.patch = patch.NewPatcher(outputPath, file.Bitness(), index, cache)
	}
	return s, nil
}

// Close releases the target's file handle. It reports whether the handle
// was released cleanly; a Session must not be used afterward.
func Close(s *Session) bool {
	return s.file.Close() == nil
}

// DisasmFromEntry disassembles starting at the target's entry point,
// registering a Func there.
func (s *Session) DisasmFromEntry() (*cfg.Block, error) {
	return s.engine.DisasmFromVMA(s.file.EntryVMA(), true)
}

// DisasmFromSymbol disassembles starting at the named symbol's address.
func (s *Session) DisasmFromSymbol(symbol string, isFunction bool) (*cfg.Block, error) {
	return s.engine.DisasmFromSymbol(symbol, isFunction)
}

// GetBlock returns the Block at vma, if one has been discovered.
func (s *Session) GetBlock(vma bin.Addr) (*cfg.Block, bool) {
	return s.index.Block(vma)
}

// GetInsn returns the Insn at vma, if one has been decoded.
func (s *Session) GetInsn(vma bin.Addr) (*cfg.Insn, bool) {
	return s.index.Insn(vma)
}

// GetFunc returns the Func at vma, if one has been registered.
func (s *Session) GetFunc(vma bin.Addr) (*cfg.Func, bool) {
	return s.index.Func(vma)
}

// GetFuncByName resolves name through the symbol table and returns the Func
// registered there, if both exist.
func (s *Session) GetFuncByName(name string) (*cfg.Func, bool) {
	return s.index.FuncByName(name)
}

// GetSymbol returns the symbol whose value is exactly vma.
func (s *Session) GetSymbol(vma bin.Addr) (*objfile.Symbol, bool) {
	return s.index.Symbol(vma)
}

// ClosestSymbol returns the symbol that most plausibly encloses vma: the
// symbol with the greatest value not exceeding it. If that symbol has a
// non-zero size that ends at or before vma, no symbol is returned.
func (s *Session) ClosestSymbol(vma bin.Addr) (*objfile.Symbol, bool) {
	return s.index.ClosestSymbol(vma)
}

// VisitBlocks calls fn for every discovered Block, stopping early if fn
// returns false.
func (s *Session) VisitBlocks(fn func(*cfg.Block) bool) {
	s.index.VisitBlocks(fn)
}

// VisitInsns calls fn for every decoded Insn, stopping early if fn returns
// false.
func (s *Session) VisitInsns(fn func(*cfg.Insn) bool) {
	s.index.VisitInsns(fn)
}

// VisitFuncs calls fn for every registered Func, stopping early if fn
// returns false.
func (s *Session) VisitFuncs(fn func(*cfg.Func) bool) {
	s.index.VisitFuncs(fn)
}

// VisitSymbols calls fn for every symbol, in ascending address order,
// stopping early if fn returns false.
func (s *Session) VisitSymbols(fn func(*objfile.Symbol) bool) {
	s.index.VisitSymbols(fn)
}

// DetourBlock overwrites src's first bytes with a jump stub to dest.
func (s *Session) DetourBlock(src, dest *cfg.Block) error {
	if s.patch == nil {
		return ErrNoOutputFile
	}
	return s.patch.DetourBlock(src, dest)
}

// DetourFunc detours src's entry block to dest's entry block.
func (s *Session) DetourFunc(src, dest *cfg.Func) error {
	if s.patch == nil {
		return ErrNoOutputFile
	}
	return s.patch.DetourFunc(src, dest)
}

// TrampolineBlock installs a trampoline between src and dest, preserving
// dest's original behaviour via a relocated epilogue.
func (s *Session) TrampolineBlock(src, dest *cfg.Block) error {
	if s.patch == nil {
		return ErrNoOutputFile
	}
	return s.patch.TrampolineBlock(src, dest)
}

// TrampolineFunc installs a trampoline between src's and dest's entry
// blocks.
func (s *Session) TrampolineFunc(src, dest *cfg.Func) error {
	if s.patch == nil {
		return ErrNoOutputFile
	}
	return s.patch.TrampolineFunc(src, dest)
}

// copyFile duplicates src's contents to dst, creating or truncating dst and
// preserving src's file mode.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
