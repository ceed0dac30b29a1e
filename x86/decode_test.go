package x86

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-bf/bf/bin"
)

func TestDecodeUnconditionalJump(t *testing.T) {
	// jmp rel8 to +2: EB 02
	code := []byte{0xEB, 0x02}
	inst, err := Decode(code, bin.Addr(0x1000), 32)
	require.NoError(t, err)
	require.Equal(t, 2, inst.Size)
	require.Equal(t, Breaks, inst.Class)
	require.Equal(t, bin.Addr(0x1004), inst.Target)
	require.False(t, inst.IsData)
}

func TestDecodeConditionalJump(t *testing.T) {
	// jne rel8 to +0x30: 75 30
	code := []byte{0x75, 0x30}
	inst, err := Decode(code, bin.Addr(0x2000), 32)
	require.NoError(t, err)
	require.Equal(t, 2, inst.Size)
	require.Equal(t, Branches, inst.Class)
	require.Equal(t, bin.Addr(0x2032), inst.Target)
}

func TestDecodeCall(t *testing.T) {
	// call rel32 to +5: E8 00 00 00 00
	code := []byte{0xE8, 0x00, 0x00, 0x00, 0x00}
	inst, err := Decode(code, bin.Addr(0x3000), 32)
	require.NoError(t, err)
	require.Equal(t, Calls, inst.Class)
	require.Equal(t, bin.Addr(0x3005), inst.Target)
}

func TestDecodeRet(t *testing.T) {
	code := []byte{0xC3}
	inst, err := Decode(code, bin.Addr(0x4000), 32)
	require.NoError(t, err)
	require.Equal(t, EndsFlow, inst.Class)
	require.Equal(t, bin.Addr(0), inst.Target)
}

func TestDecodeNonBranch(t *testing.T) {
	// mov eax, ebx: 89 D8
	code := []byte{0x89, 0xD8}
	inst, err := Decode(code, bin.Addr(0x5000), 32)
	require.NoError(t, err)
	require.Equal(t, NonBranch, inst.Class)
	require.Equal(t, bin.Addr(0), inst.Target)
	require.Empty(t, inst.MacroPrefix)
}
