package x86

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/arch/x86/x86asm"
)

func TestClassifyBreaks(t *testing.T) {
	require.Equal(t, Breaks, Classify(x86asm.JMP))
	require.Equal(t, Breaks, Classify(x86asm.LJMP))
}

func TestClassifyBranches(t *testing.T) {
	require.Equal(t, Branches, Classify(x86asm.JNE))
	require.Equal(t, Branches, Classify(x86asm.LOOP))
}

func TestClassifyCalls(t *testing.T) {
	require.Equal(t, Calls, Classify(x86asm.CALL))
	require.Equal(t, Calls, Classify(x86asm.LCALL))
}

func TestClassifyEndsFlow(t *testing.T) {
	require.Equal(t, EndsFlow, Classify(x86asm.RET))
	require.Equal(t, EndsFlow, Classify(x86asm.LRET))
}

func TestClassifyNonBranch(t *testing.T) {
	require.Equal(t, NonBranch, Classify(x86asm.MOV))
	require.Equal(t, NonBranch, Classify(x86asm.ADD))
}

func TestIsMacroPrefix(t *testing.T) {
	require.True(t, IsMacroPrefix("rep"))
	require.True(t, IsMacroPrefix("REPE"))
	require.False(t, IsMacroPrefix("mov"))
}

func TestClassString(t *testing.T) {
	require.Equal(t, "breaks_flow", Breaks.String())
	require.Equal(t, "branches_flow", Branches.String())
	require.Equal(t, "calls_subroutine", Calls.String())
	require.Equal(t, "ends_flow", EndsFlow.String())
	require.Equal(t, "nonbranch", NonBranch.String())
}
