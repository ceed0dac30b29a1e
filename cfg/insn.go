// Package cfg implements components C and E: a recursive disassembly engine
// that reconstructs a control-flow graph of basic blocks and decoded
// instructions from a set of root VMAs, and the Session-owned indexes that
// give every entity a stable identity keyed by VMA.
package cfg

import (
	"strings"

	"github.com/go-bf/bf/bin"
	"github.com/go-bf/bf/x86"
)

// Insn is one decoded instruction owned by a Session, extending x86.Inst
// with the owning Block's VMA (spec.md §3: "owner_block: back-reference by
// VMA to the block currently containing this instruction"). Embedding keeps
// every x86.Inst field promoted, so callers read insn.Mnemonic, insn.Class,
// insn.Target, etc. directly.
type Insn struct {
	*x86.Inst
	OwnerBlock bin.Addr
}

// String reassembles Parts into the same printed form
// original_source/lib/bf_insn.c's print_bf_insn produced: the mnemonic (with
// its macro prefix, if any) followed by a comma-separated operand list.
func (i *Insn) String() string {
	if len(i.Parts) == 0 {
		return ""
	}

	mnemonicEnd := 1
	if i.MacroPrefix != "" && len(i.Parts) > 1 {
		mnemonicEnd = 2
	}

	head := strings.Join(i.Parts[:mnemonicEnd], " ")
	operands := i.Parts[mnemonicEnd:]
	if len(operands) == 0 {
		return head
	}
	return head + " " + strings.Join(operands, ",")
}
