package cfg

import "github.com/go-bf/bf/bin"

// Func is a recognized function entry point (spec.md §3), created when
// disassembly is rooted at a caller-declared function or when a call
// instruction's direct target is known.
type Func struct {
	VMA        bin.Addr
	EntryBlock bin.Addr
	Symbol     string
}
