package cfg

import "github.com/go-bf/bf/bin"

// Block is a maximal straight-line run of instructions, entered only at its
// first instruction and exited only at its last (spec.md §3).
type Block struct {
	// VMA is the block's entry address; always equal to the VMA of the
	// first element of Insns.
	VMA bin.Addr
	// Insns is the ordered sequence of instruction VMAs owned by this
	// block, ascending.
	Insns []bin.Addr

	// SuccPrimary is the linearly-following block, or the target of an
	// unconditional branch. SuccSecondary is the branch target when both a
	// fall-through and an edge exist, or the call target for calls.
	// SuccSecondary is only meaningful when HasPrimary is true (spec.md §3
	// invariant: "succ_secondary is populated only if succ_primary is").
	SuccPrimary   bin.Addr
	HasPrimary    bool
	SuccSecondary bin.Addr
	HasSecondary  bool

	// Symbol is the name of the symbol whose value equals VMA, if any.
	Symbol string
}
