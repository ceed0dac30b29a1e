package bf

import (
	"github.com/go-bf/bf/cfg"
	"github.com/go-bf/bf/objfile"
	"github.com/go-bf/bf/patch"
	"github.com/go-bf/bf/section"
)

// Error kind sentinels (spec.md §7): a taxonomy, not concrete error types.
// Callers compare against these with errors.Cause after pkg/errors wrapping
// adds file/line context at each layer. Each sentinel is the same value its
// owning package returns — re-exported here so callers need not import
// cfg/objfile/patch/section just to check an error kind.
var (
	// ErrObjectLoadFailed indicates the object reader rejected the file
	// format.
	ErrObjectLoadFailed = objfile.ErrObjectLoadFailed
	// ErrSectionNotFound indicates a VMA is not covered by any section.
	ErrSectionNotFound = section.ErrSectionNotFound
	// ErrSectionReadFailed indicates section bytes could not be read.
	ErrSectionReadFailed = section.ErrSectionReadFailed
	// ErrDecodeFailed indicates the disassembler returned a non-positive
	// instruction length.
	ErrDecodeFailed = cfg.ErrDecodeFailed
	// ErrBlockTooSmall indicates a patch target is shorter than the stub
	// length for the current bitness.
	ErrBlockTooSmall = patch.ErrBlockTooSmall
	// ErrVmaUnmapped indicates VMA→file-offset translation found no
	// covering section.
	ErrVmaUnmapped = patch.ErrVmaUnmapped
	// ErrNoSledFound indicates trampoline installation could not locate a
	// NOP pad of the required length in the destination.
	ErrNoSledFound = patch.ErrNoSledFound
	// ErrNoOutputFile indicates a patch operation was invoked on a session
	// opened without an output path.
	ErrNoOutputFile = patch.ErrNoOutputFile
)
