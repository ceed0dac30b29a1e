// Package patch implements component D: byte-level rewriting of a target
// object's output copy to install detours and trampolines, grounded on
// original_source/lib/detour.c's patch_file/bf_detour32/bf_detour64/
// bf_populate_trampoline_block.
package patch

import "encoding/binary"

// Stub and sled lengths by bitness (spec.md §4.D).
const (
	StubLength32 = 5
	StubLength64 = 14
	SledLength32 = 24
	SledLength64 = 42
)

// StubLength returns the detour stub length for the given bitness (32 or
// 64).
func StubLength(bitness int) int {
	if bitness == 64 {
		return StubLength64
	}
	return StubLength32
}

// SledLength returns the canonical NOP sled length searched for during
// trampoline installation, for the given bitness.
func SledLength(bitness int) int {
	if bitness == 64 {
		return SledLength64
	}
	return SledLength32
}

// buildDetourStub32 encodes a 5-byte relative JMP from src to dst:
// E9 rel32, rel32 = dst - src - 5. It does not trash any registers.
func buildDetourStub32(src, dst uint64) []byte {
	buf := make([]byte, StubLength32)
	buf[0] = 0xE9
	rel := int32(int64(dst) - int64(src) - StubLength32)
	binary.LittleEndian.PutUint32(buf[1:], uint32(rel))
	return buf
}

// buildDetourStub64 encodes a 14-byte absolute jump that uses only the
// stack and trashes no registers:
//
//	PUSH  <low dword of dst>
//	MOV   DWORD PTR [rsp+4], <high dword of dst>
//	RET
func buildDetourStub64(dst uint64) []byte {
	buf := []byte{
		0x68, 0, 0, 0, 0, // push imm32
		0xC7, 0x44, 0x24, 0x04, 0, 0, 0, 0, // movl imm32, 4(%rsp)
		0xC3, // ret
	}
	binary.LittleEndian.PutUint32(buf[1:5], uint32(dst))
	binary.LittleEndian.PutUint32(buf[9:13], uint32(dst>>32))
	return buf
}

// buildDetourStub encodes the canonical detour stub for the given bitness.
func buildDetourStub(bitness int, src, dst uint64) []byte {
	if bitness == 64 {
		return buildDetourStub64(dst)
	}
	return buildDetourStub32(src, dst)
}
