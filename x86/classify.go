// Package x86 implements component B: classification of decoded x86
// instructions into five control-flow categories and lossless parsing of
// their operands into a tagged model. It wraps golang.org/x/arch/x86/x86asm
// the way mewmew-x/disasm/x86 wraps it for simple disassembly, extended
// here with the classification and operand-tagging spec.md §4.B requires.
package x86

import (
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// Class is the control-flow category of a decoded instruction (spec.md
// §4.B). The five categories are closed and mutually exclusive.
type Class int

const (
	// NonBranch is the default category: the instruction does not affect
	// control flow (mov, cmp, add, ...).
	NonBranch Class = iota
	// Breaks is an unconditional branch (jmp, jmpq, long ljmp).
	Breaks
	// Branches is a conditional branch or bounded loop (jne, loope, ...).
	Branches
	// Calls is a call to a subroutine (call, callq, lcall).
	Calls
	// EndsFlow returns control to the caller or exits flow (ret, iret,
	// sysret, sysexit).
	EndsFlow
)

func (c Class) String() string {
	switch c {
	case NonBranch:
		return "nonbranch"
	case Breaks:
		return "breaks_flow"
	case Branches:
		return "branches_flow"
	case Calls:
		return "calls_subroutine"
	case EndsFlow:
		return "ends_flow"
	default:
		return "unknown"
	}
}

// macroPrefixes is the set of mnemonics treated as macro prefixes: the
// decoder records them as the instruction's primary mnemonic and expects a
// secondary mnemonic to follow, per spec.md §4.B state 1.
var macroPrefixes = map[string]bool{
	"rep":   true,
	"repe":  true,
	"repne": true,
	"repnz": true,
	"repz":  true,
}

// IsMacroPrefix reports whether mnemonic is a macro prefix (rep/repe/repne/
// repnz/repz) that is followed by a secondary mnemonic rather than operands.
func IsMacroPrefix(mnemonic string) bool {
	return macroPrefixes[strings.ToLower(mnemonic)]
}

// IsNop reports whether op is the no-op instruction, used by the trampoline
// patcher to walk across a NOP sled to find the epilogue that follows it.
func IsNop(op x86asm.Op) bool {
	return op == x86asm.NOP
}

// Classify determines the control-flow category of op, matching
// original_source/lib/bf_insn_decoder.c's string-based classification
// (breaks_flow/branches_flow/calls_subroutine/ends_flow) verbatim: the
// mnemonic's textual prefix decides the class, not a fixed enum switch,
// so far/long variants the x86asm enumeration may spell differently still
// classify correctly.
func Classify(op x86asm.Op) Class {
	name := strings.ToLower(op.String())
	switch {
	case strings.HasPrefix(name, "jmp"), strings.HasPrefix(name, "ljmp"):
		return Breaks
	case strings.HasPrefix(name, "loop"), strings.HasPrefix(name, "j"):
		return Branches
	case strings.HasPrefix(name, "call"), strings.HasPrefix(name, "lcall"):
		return Calls
	case strings.HasPrefix(name, "ret"),
		strings.HasPrefix(name, "lret"),
		strings.HasPrefix(name, "iret"),
		name == "sysret",
		name == "sysexit":
		return EndsFlow
	default:
		return NonBranch
	}
}
