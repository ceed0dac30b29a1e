package objfile

import (
	"debug/elf"

	"github.com/pkg/errors"

	"github.com/go-bf/bf/bin"
)

// FileOffsetForVMA walks the section headers of the ELF object at path and
// translates vma into a file offset. It is used by the patcher (component D)
// to translate addresses against the *output* file, which may have been
// rewritten since the Session was loaded, so the header walk always re-opens
// the file fresh rather than reusing a cached *File from load time — this
// mirrors original_source/lib/detour.c's vaddr32_to_file_offset /
// vaddr64_to_file_offset, which open() the output path anew for every
// translation rather than caching section headers across patch calls.
func FileOffsetForVMA(path string, vma bin.Addr) (uint64, bool, error) {
	ef, err := elf.Open(path)
	if err != nil {
		return 0, false, errors.Wrapf(err, "objfile: unable to open %q for offset translation", path)
	}
	defer ef.Close()

	for _, s := range ef.Sections {
		if s.Addr == 0 {
			continue
		}
		if uint64(vma) >= s.Addr && uint64(vma) < s.Addr+s.Size {
			return s.Offset + (uint64(vma) - s.Addr), true, nil
		}
	}
	return 0, false, nil
}
