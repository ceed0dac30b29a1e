package x86

import (
	"strings"

	"golang.org/x/arch/x86/x86asm"

	"github.com/go-bf/bf/bin"
)

// Unknown is the sentinel Mnemonic value for a pseudo-mnemonic or
// unrecognized opcode (spec.md §3: "mnemonic ... or UNKNOWN"). x86asm
// reserves the zero Op value for exactly this case.
const Unknown x86asm.Op = 0

// Inst is one decoded x86 instruction, carrying every field spec.md §3
// requires of an Insn short of the session-level bookkeeping (VMA
// uniqueness, owning Block) that belongs to the cfg package.
type Inst struct {
	// Addr is the instruction's VMA.
	Addr bin.Addr
	// Size is the encoded byte length. Zero only when IsData and decoding
	// could not determine a length, which does not occur in practice for
	// x86asm-backed decoding (x86asm always reports a length on success).
	Size int
	// IsData is true when the decoder reported a pseudo-mnemonic
	// indicating data rather than a real instruction (the data32 case of
	// spec.md §4.B, mapped here to x86asm returning the zero Op for a
	// prefix byte with no following opcode it can resolve).
	IsData bool
	// Mnemonic is the decoded mnemonic (the real operation, e.g. MOVSB),
	// drawn from x86asm's closed Op enumeration, or Unknown.
	Mnemonic x86asm.Op
	// MacroPrefix holds the macro prefix text (rep/repe/repne/repnz/repz)
	// when Mnemonic was decoded together with one, empty otherwise. x86asm
	// folds a rep prefix into the instruction it repeats (Mnemonic is
	// already e.g. MOVSB) rather than splitting it into two opcodes, so
	// this field — not a second x86asm.Op — carries spec.md §4.B's
	// "secondary_mnemonic only set for macro-prefixed instructions" case
	// losslessly: the real instruction stays in Mnemonic, the textual
	// prefix that qualifies it lives here.
	MacroPrefix string
	// Operands holds up to three operands; unused slots have Kind KindNone.
	Operands [3]Operand
	// ExtraInfo is a VMA hinted by a RIP-relative memory reference's
	// resolved absolute target, zero if the instruction has none.
	ExtraInfo bin.Addr
	// Parts are the raw textual fragments of the instruction (mnemonic,
	// operands, secondary mnemonic), preserved for debug/print fidelity.
	Parts []string
	// Class is the control-flow category (§4.B).
	Class Class
	// Target is the direct branch/call/jump target VMA when known from the
	// operand stream, zero when the target is indirect/unresolved.
	Target bin.Addr

	// Raw is the underlying x86asm decode result, retained for callers that
	// need lower-level access (e.g. prefix bytes, explicit segment bits)
	// beyond the tagged Operand model.
	Raw x86asm.Inst
}

// Decode decodes one instruction from the head of code, which must begin at
// VMA addr. mode is the processor mode (32 or 64) matching the target
// Session's bitness.
//
// On a genuine decode failure (malformed byte sequence x86asm cannot parse
// at all) Decode returns a non-nil error; the caller (the disassembly
// engine, component C) turns that into DecodeFailed.
func Decode(code []byte, addr bin.Addr, mode int) (*Inst, error) {
	raw, err := x86asm.Decode(code, mode)
	if err != nil {
		return nil, err
	}

	inst := &Inst{
		Addr: addr,
		Size: raw.Len,
		Raw:  raw,
	}

	if raw.Op == Unknown {
		inst.IsData = true
		inst.Mnemonic = Unknown
		inst.Class = NonBranch
		inst.Parts = []string{"data32"}
		return inst, nil
	}

	text := x86asm.GNUSyntax(raw, uint64(addr), nil)
	parts, macroPrefix := splitParts(text)
	inst.Parts = parts
	inst.MacroPrefix = macroPrefix
	inst.Mnemonic = raw.Op
	inst.Class = Classify(raw.Op)

	for i, arg := range raw.Args {
		if i >= len(inst.Operands) {
			break
		}
		if arg == nil {
			break
		}
		isTarget := i == 0 && (inst.Class == Breaks || inst.Class == Branches || inst.Class == Calls)
		inst.Operands[i] = convertOperand(arg, isTarget)

		if rel, ok := arg.(x86asm.Rel); ok {
			abs := bin.Addr(int64(addr) + int64(raw.Len) + int64(rel))
			inst.Operands[i].Addr = abs
			if isTarget {
				inst.Target = abs
			}
		}

		if mem, ok := arg.(x86asm.Mem); ok && mem.Base == x86asm.RIP {
			inst.ExtraInfo = bin.Addr(int64(addr) + int64(raw.Len) + mem.Disp)
		}
	}

	return inst, nil
}

// splitParts breaks a GNU-syntax instruction string into raw textual
// fragments (mnemonic, optional macro prefix, comma-separated operands),
// matching the part stream spec.md §4.B describes the libopcodes callback
// as delivering. It returns the macro prefix token separately (empty if
// none) since golang.org/x/arch's GNU-syntax printer writes it as a leading
// word before the real mnemonic (e.g. "rep stos %al,%es:(%rdi)").
func splitParts(text string) (parts []string, macroPrefix string) {
	text = strings.TrimSpace(text)
	sp := strings.IndexAny(text, " \t")
	if sp < 0 {
		return []string{text}, ""
	}

	first := text[:sp]
	rest := strings.TrimSpace(text[sp+1:])

	if IsMacroPrefix(first) {
		macroPrefix = first
		sp2 := strings.IndexAny(rest, " \t")
		var mnemonic string
		if sp2 < 0 {
			mnemonic = rest
			rest = ""
		} else {
			mnemonic = rest[:sp2]
			rest = strings.TrimSpace(rest[sp2+1:])
		}
		parts = []string{macroPrefix, mnemonic}
	} else {
		parts = []string{first}
	}

	if rest != "" {
		// Commas inside an indexed operand's parentheses, as in
		// "0x8(%rax,%rbx,4)", do not separate operands.
		depth, start := 0, 0
		for i, c := range rest {
			switch c {
			case '(':
				depth++
			case ')':
				depth--
			case ',':
				if depth == 0 {
					parts = append(parts, strings.TrimSpace(rest[start:i]))
					start = i + 1
				}
			}
		}
		parts = append(parts, strings.TrimSpace(rest[start:]))
	}
	return parts, macroPrefix
}
