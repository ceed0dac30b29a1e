package patch

import (
	"github.com/go-bf/bf/cfg"
	"github.com/go-bf/bf/section"
)

// Patcher installs detours and trampolines between Blocks discovered by the
// cfg engine. All writes target outputPath; the input file is never
// mutated (spec.md §6: "when output_path is supplied ... all patches
// mutate only the output").
type Patcher struct {
	outputPath string
	bitness    int
	idx        *cfg.Index
	cache      *section.Cache
}

// NewPatcher returns a Patcher that writes to outputPath at the given
// bitness, resolving entities through idx and reading section bytes
// through cache. outputPath is empty when the session was opened without
// an output file, in which case every patch operation fails with
// ErrNoOutputFile.
func NewPatcher(outputPath string, bitness int, idx *cfg.Index, cache *section.Cache) *Patcher {
	return &Patcher{outputPath: outputPath, bitness: bitness, idx: idx, cache: cache}
}
