package patch_test

import (
	"bytes"
	"encoding/binary"
	"os"
	"testing"
)

// buildELF builds a minimal, single-section ELF object (class 32 or 64,
// little-endian) with one PROGBITS ".text" section at the given VMA holding
// text, plus the ".shstrtab" section its own section header table needs.
// It exists only to give objfile.FileOffsetForVMA and debug/elf something
// real to parse; the patch package re-opens the path fresh on every VMA
// translation, so tests exercising it need an actual file on disk.
func buildELF(t *testing.T, class int, machine uint16, sectionVMA uint64, text []byte) string {
	t.Helper()

	const (
		ehdrSize64 = 64
		ehdrSize32 = 52
		shdrSize64 = 64
		shdrSize32 = 40
	)

	shstrtab := append([]byte{0}, append([]byte(".text\x00"), []byte(".shstrtab\x00")...)...)
	nameText := uint32(1)
	nameShstrtab := uint32(7)

	var ehdrSize, shdrSize int
	if class == 64 {
		ehdrSize, shdrSize = ehdrSize64, shdrSize64
	} else {
		ehdrSize, shdrSize = ehdrSize32, shdrSize32
	}

	textOffset := uint64(ehdrSize)
	strtabOffset := textOffset + uint64(len(text))
	shoff := strtabOffset + uint64(len(shstrtab))

	buf := new(bytes.Buffer)

	// e_ident
	ident := make([]byte, 16)
	ident[0], ident[1], ident[2], ident[3] = 0x7f, 'E', 'L', 'F'
	if class == 64 {
		ident[4] = 2
	} else {
		ident[4] = 1
	}
	ident[5] = 1 // ELFDATA2LSB
	ident[6] = 1 // EV_CURRENT
	buf.Write(ident)

	w := func(v interface{}) { binary.Write(buf, binary.LittleEndian, v) }

	w(uint16(2))       // e_type = ET_EXEC
	w(machine)         // e_machine
	w(uint32(1))       // e_version
	if class == 64 {
		w(uint64(sectionVMA)) // e_entry
		w(uint64(0))          // e_phoff
		w(uint64(shoff))      // e_shoff
	} else {
		w(uint32(sectionVMA))
		w(uint32(0))
		w(uint32(shoff))
	}
	w(uint32(0))             // e_flags
	w(uint16(ehdrSize))      // e_ehsize
	w(uint16(0))             // e_phentsize
	w(uint16(0))             // e_phnum
	w(uint16(shdrSize))      // e_shentsize
	w(uint16(3))             // e_shnum: null, .text, .shstrtab
	w(uint16(2))             // e_shstrndx

	buf.Write(text)
	buf.Write(shstrtab)

	writeShdr64 := func(name, typ uint32, flags, addr, offset, size uint64) {
		w(name)
		w(typ)
		w(flags)
		w(addr)
		w(offset)
		w(size)
		w(uint32(0)) // sh_link
		w(uint32(0)) // sh_info
		w(uint64(1)) // sh_addralign
		w(uint64(0)) // sh_entsize
	}
	writeShdr32 := func(name, typ, flags, addr, offset, size uint32) {
		w(name)
		w(typ)
		w(flags)
		w(addr)
		w(offset)
		w(size)
		w(uint32(0))
		w(uint32(0))
		w(uint32(1))
		w(uint32(0))
	}

	const (
		shtNull    = 0
		shtProgbit = 1
		shtStrtab  = 3
		shfAlloc   = 2
		shfExec    = 4
	)

	if class == 64 {
		writeShdr64(0, shtNull, 0, 0, 0, 0)
		writeShdr64(nameText, shtProgbit, shfAlloc|shfExec, sectionVMA, textOffset, uint64(len(text)))
		writeShdr64(nameShstrtab, shtStrtab, 0, 0, strtabOffset, uint64(len(shstrtab)))
	} else {
		writeShdr32(0, shtNull, 0, 0, 0, 0)
		writeShdr32(nameText, shtProgbit, shfAlloc|shfExec, uint32(sectionVMA), uint32(textOffset), uint32(len(text)))
		writeShdr32(nameShstrtab, shtStrtab, 0, 0, uint32(strtabOffset), uint32(len(shstrtab)))
	}

	f, err := os.CreateTemp(t.TempDir(), "bf-fixture-*.elf")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return f.Name()
}
