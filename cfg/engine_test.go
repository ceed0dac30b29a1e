package cfg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-bf/bf/bin"
	"github.com/go-bf/bf/objfile"
	"github.com/go-bf/bf/section"
	"github.com/go-bf/bf/x86"
)

// fakeSource is a single flat section backed by an in-memory byte buffer,
// used so engine tests can place instructions at arbitrary VMAs without a
// real ELF object.
type fakeSource struct {
	sec  *objfile.Section
	data []byte
}

func newFakeSource(size int) *fakeSource {
	data := make([]byte, size)
	for i := range data {
		data[i] = 0x90 // NOP filler; never decoded unless walked into
	}
	return &fakeSource{
		sec:  &objfile.Section{Name: ".text", VMA: 0, Size: uint64(size), HasContents: true},
		data: data,
	}
}

func (f *fakeSource) put(vma bin.Addr, bytes []byte) {
	copy(f.data[int(vma):], bytes)
}

func (f *fakeSource) LocateSection(vma bin.Addr) (*objfile.Section, bool) {
	if f.sec.Contains(vma) {
		return f.sec, true
	}
	return nil, false
}

func (f *fakeSource) ReadSection(s *objfile.Section) ([]byte, error) {
	return f.data, nil
}

func newTestEngine(src *fakeSource) *Engine {
	cache := section.NewCache(src)
	idx := NewIndex(nil)
	return NewEngine(cache, idx, 32)
}

func TestDisasmUnconditionalJump(t *testing.T) {
	src := newFakeSource(0x2000)
	// jmp rel32 at 0x1000 targeting 0x1020 (rel = 0x1020 - 0x1005 = 0x1B).
	src.put(bin.Addr(0x1000), []byte{0xE9, 0x1B, 0x00, 0x00, 0x00})
	src.put(bin.Addr(0x1020), []byte{0xC3}) // ret

	e := newTestEngine(src)
	b, err := e.DisasmFromVMA(bin.Addr(0x1000), false)
	require.NoError(t, err)

	require.True(t, b.HasPrimary)
	require.Equal(t, bin.Addr(0x1020), b.SuccPrimary)
	require.False(t, b.HasSecondary)

	_, ok := e.Index().Insn(bin.Addr(0x1005))
	require.False(t, ok, "no instruction should be decoded inside the dead gap")
}

func TestDisasmConditionalBranch(t *testing.T) {
	src := newFakeSource(0x3000)
	// jne rel8 at 0x2000 targeting 0x2030 (rel = 0x2030 - 0x2002 = 0x2E).
	src.put(bin.Addr(0x2000), []byte{0x75, 0x2E})
	src.put(bin.Addr(0x2002), []byte{0xC3}) // fall-through block: ret
	src.put(bin.Addr(0x2030), []byte{0xC3}) // branch target block: ret

	e := newTestEngine(src)
	b, err := e.DisasmFromVMA(bin.Addr(0x2000), false)
	require.NoError(t, err)

	require.True(t, b.HasPrimary)
	require.Equal(t, bin.Addr(0x2002), b.SuccPrimary)
	require.True(t, b.HasSecondary)
	require.Equal(t, bin.Addr(0x2030), b.SuccSecondary)
}

func TestDisasmMemoizedJoin(t *testing.T) {
	src := newFakeSource(0x6000)
	// A: call rel32 to 0x5000, then ret at A+5. rel = 0x5000 - 0x3005 = 0x1FFB.
	src.put(bin.Addr(0x3000), []byte{0xE8, 0xFB, 0x1F, 0x00, 0x00})
	src.put(bin.Addr(0x3005), []byte{0xC3})

	// B: call rel32 to 0x5000 from 0x4000, size 5. rel = 0x5000-0x4005 = 0xFFB.
	src.put(bin.Addr(0x4000), []byte{0xE8, 0xFB, 0x0F, 0x00, 0x00})
	src.put(bin.Addr(0x4005), []byte{0xC3})

	// C: ret at 0x5000.
	src.put(bin.Addr(0x5000), []byte{0xC3})

	e := newTestEngine(src)
	blockA, err := e.DisasmFromVMA(bin.Addr(0x3000), true)
	require.NoError(t, err)
	blockB, err := e.DisasmFromVMA(bin.Addr(0x4000), true)
	require.NoError(t, err)

	require.Equal(t, 1, countBlocksAt(e.Index(), bin.Addr(0x5000)))
	require.True(t, blockA.HasSecondary)
	require.Equal(t, bin.Addr(0x5000), blockA.SuccSecondary)
	require.True(t, blockB.HasSecondary)
	require.Equal(t, bin.Addr(0x5000), blockB.SuccSecondary)

	_, ok := e.Index().Func(bin.Addr(0x5000))
	require.True(t, ok, "call target must be registered as a Func")
}

func countBlocksAt(idx *Index, vma bin.Addr) int {
	if _, ok := idx.Block(vma); ok {
		return 1
	}
	return 0
}

func TestDisasmMidBlockSplit(t *testing.T) {
	src := newFakeSource(0x7000)
	src.put(bin.Addr(0x6000), []byte{0x89, 0xC0}) // mov eax, eax
	src.put(bin.Addr(0x6002), []byte{0x89, 0xDB}) // mov ebx, ebx
	src.put(bin.Addr(0x6004), []byte{0xC3})       // ret

	e := newTestEngine(src)
	original, err := e.DisasmFromVMA(bin.Addr(0x6000), false)
	require.NoError(t, err)
	require.Equal(t, []bin.Addr{bin.Addr(0x6000), bin.Addr(0x6002), bin.Addr(0x6004)}, original.Insns)

	split, err := e.DisasmFromVMA(bin.Addr(0x6002), false)
	require.NoError(t, err)

	require.Equal(t, []bin.Addr{bin.Addr(0x6000)}, original.Insns)
	require.True(t, original.HasPrimary)
	require.Equal(t, bin.Addr(0x6002), original.SuccPrimary)
	require.False(t, original.HasSecondary)

	require.Equal(t, bin.Addr(0x6002), split.VMA)
	require.Equal(t, []bin.Addr{bin.Addr(0x6002), bin.Addr(0x6004)}, split.Insns)
	require.False(t, split.HasPrimary)

	insn, ok := e.Index().Insn(bin.Addr(0x6002))
	require.True(t, ok)
	require.Equal(t, bin.Addr(0x6002), insn.OwnerBlock)
}

func TestDisasmMidBlockSplitNonBranchJoin(t *testing.T) {
	src := newFakeSource(0x9000)
	src.put(bin.Addr(0x8010), []byte{0xC3}) // ret, decoded first as its own block

	e := newTestEngine(src)
	joined, err := e.DisasmFromVMA(bin.Addr(0x8010), false)
	require.NoError(t, err)

	// 0x8000..0x800F is untouched NOP filler (fakeSource's default byte), so
	// decoding from 0x8000 runs 16 NonBranch instructions and joins the
	// already-decoded block at 0x8010 by falling through into it, not by a
	// flow-ending instruction.
	head, err := e.DisasmFromVMA(bin.Addr(0x8000), false)
	require.NoError(t, err)
	require.True(t, head.HasPrimary)
	require.Equal(t, bin.Addr(0x8010), head.SuccPrimary)
	require.False(t, head.HasSecondary)

	lastInsn, ok := e.Index().Insn(bin.Addr(0x800F))
	require.True(t, ok)
	require.Equal(t, x86.NonBranch, lastInsn.Class)

	// Split head at 0x8008: the moved tail's last instruction (0x800F) is the
	// same NonBranch instruction that joined the block at 0x8010, so that
	// successor edge now belongs to the tail, not to head.
	tail, err := e.DisasmFromVMA(bin.Addr(0x8008), false)
	require.NoError(t, err)

	require.True(t, head.HasPrimary)
	require.Equal(t, bin.Addr(0x8008), head.SuccPrimary)
	require.False(t, head.HasSecondary)

	require.True(t, tail.HasPrimary)
	require.Equal(t, bin.Addr(0x8010), tail.SuccPrimary)
	require.False(t, tail.HasSecondary)
	require.Same(t, joined, mustBlock(t, e.Index(), bin.Addr(0x8010)))
}

func mustBlock(t *testing.T, idx *Index, vma bin.Addr) *Block {
	t.Helper()
	b, ok := idx.Block(vma)
	require.True(t, ok)
	return b
}

func TestDisasmFromVMAMemoizesSameBlock(t *testing.T) {
	src := newFakeSource(0x1000)
	src.put(bin.Addr(0x100), []byte{0xC3})

	e := newTestEngine(src)
	b1, err := e.DisasmFromVMA(bin.Addr(0x100), false)
	require.NoError(t, err)
	numInsns := e.Index().NumInsns()

	b2, err := e.DisasmFromVMA(bin.Addr(0x100), false)
	require.NoError(t, err)

	require.Same(t, b1, b2)
	require.Equal(t, numInsns, e.Index().NumInsns())
}
