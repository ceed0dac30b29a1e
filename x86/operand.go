package x86

import (
	"golang.org/x/arch/x86/x86asm"

	"github.com/go-bf/bf/bin"
)

// OperandKind tags the shape of an Operand, mirroring spec.md §3's tagged
// union over {immediate, literal address, register, register-indirect,
// absolute-address-indirect, indexed, segment-override}.
type OperandKind int

const (
	// KindNone marks an unused operand slot.
	KindNone OperandKind = iota
	// KindRegister is a bare register operand.
	KindRegister
	// KindImmediate is a `$value` immediate.
	KindImmediate
	// KindLiteralAddress is a bare `0x...` value used as a direct memory
	// operand or as a direct branch/call target.
	KindLiteralAddress
	// KindRegisterIndirect is `*reg`: an indirect branch/call through a
	// register.
	KindRegisterIndirect
	// KindAbsoluteIndirect is `*value`: an indirect branch/call through an
	// absolute memory address.
	KindAbsoluteIndirect
	// KindIndexed is `off(base,index,scale)` (or the bare `(base)` form).
	KindIndexed
	// KindIndexedIndirect is `*off(base,index,scale)`: an indirect
	// branch/call through a computed memory address.
	KindIndexedIndirect
	// KindSegmentQualified wraps another Operand with a segment-override
	// prefix (%fs:, %cs:, %es:, %ds:, %gs:).
	KindSegmentQualified
)

// Operand is one operand of a decoded instruction, losslessly tagged per
// spec.md §3/§4.B.
type Operand struct {
	Kind OperandKind

	// Reg is set for KindRegister and KindRegisterIndirect.
	Reg x86asm.Reg
	// Imm is set for KindImmediate.
	Imm int64
	// Addr is set for KindLiteralAddress and KindAbsoluteIndirect.
	Addr bin.Addr

	// Base, Index, Scale, Offset describe KindIndexed / KindIndexedIndirect:
	// off(base,index,scale). Index and Scale are zero when the operand used
	// the one-register `(base)` form.
	Base   x86asm.Reg
	Index  x86asm.Reg
	Scale  uint8
	Offset int64

	// Segment and Underlying are set for KindSegmentQualified: Segment is
	// the overriding segment register, Underlying is the wrapped operand
	// form (register, literal address, or indexed).
	Segment    x86asm.Reg
	Underlying *Operand
}

// convertOperand converts a decoded x86asm.Arg into our tagged Operand
// model. isTarget marks an operand that is the sole operand of a
// jmp/call/branch instruction: in AT&T syntax (what golang.org/x/arch's
// GNU-style printer and libopcodes both use) only such operands can carry
// the leading '*' that marks an indirect branch/call, so a register or
// memory operand in that position tags as indirect while the identical
// x86asm.Arg shape elsewhere (e.g. `mov (%rax), %ebx`) does not.
func convertOperand(arg x86asm.Arg, isTarget bool) Operand {
	switch v := arg.(type) {
	case x86asm.Reg:
		if isTarget {
			return Operand{Kind: KindRegisterIndirect, Reg: v}
		}
		return Operand{Kind: KindRegister, Reg: v}
	case x86asm.Imm:
		return Operand{Kind: KindImmediate, Imm: int64(v)}
	case x86asm.Mem:
		return convertMem(v, isTarget)
	case x86asm.Rel:
		// Resolved to an absolute address by the caller (decode.go), which
		// alone knows the instruction's address and length.
		return Operand{Kind: KindLiteralAddress}
	default:
		return Operand{Kind: KindNone}
	}
}

func convertMem(m x86asm.Mem, isTarget bool) Operand {
	var op Operand
	switch {
	case m.Base == 0 && m.Index == 0:
		if isTarget {
			op = Operand{Kind: KindAbsoluteIndirect, Addr: bin.Addr(m.Disp)}
		} else {
			op = Operand{Kind: KindLiteralAddress, Addr: bin.Addr(m.Disp)}
		}
	default:
		kind := KindIndexed
		if isTarget {
			kind = KindIndexedIndirect
		}
		op = Operand{
			Kind:   kind,
			Base:   m.Base,
			Index:  m.Index,
			Scale:  m.Scale,
			Offset: m.Disp,
		}
	}

	if m.Segment != 0 {
		underlying := op
		return Operand{
			Kind:       KindSegmentQualified,
			Segment:    m.Segment,
			Underlying: &underlying,
		}
	}
	return op
}
