// Package section implements component A: an on-demand, memoizing cache of
// mapped target-file sections, keyed by virtual memory address. Each
// section is read into memory at most once per Cache; callers receive
// immutable views that live for the lifetime of the Cache.
package section

import (
	"log"
	"os"

	"github.com/mewkiz/pkg/term"
	"github.com/pkg/errors"

	"github.com/go-bf/bf/bin"
	"github.com/go-bf/bf/objfile"
)

var dbg = log.New(os.Stderr, term.MagentaBold("section:")+" ", 0)

var (
	// ErrSectionNotFound indicates a VMA is not covered by any section.
	ErrSectionNotFound = errors.New("section: not found")
	// ErrSectionReadFailed indicates section bytes could not be read.
	ErrSectionReadFailed = errors.New("section: read failed")
)

// View is the cached, in-memory contents of one file section.
type View struct {
	// Section is the VMA at which this section's bytes begin.
	Section bin.Addr
	// Length is the number of cached bytes.
	Length int
	// Bytes is the section's file-backed contents. Callers must not mutate
	// this slice; it is shared by every caller that requests the same
	// section.
	Bytes []byte
}

// Contains reports whether vma falls within this view's mapped range.
func (v *View) Contains(vma bin.Addr) bool {
	return vma >= v.Section && int(uint64(vma)-uint64(v.Section)) < v.Length
}

// Source is the subset of objfile.File component A depends on: section
// lookup and section-byte reads. Accepting this narrow interface (rather
// than the concrete *objfile.File) lets the cache, and everything built on
// top of it, run against a fake in tests without a real ELF object.
type Source interface {
	LocateSection(vma bin.Addr) (*objfile.Section, bool)
	ReadSection(s *objfile.Section) ([]byte, error)
}

// Cache loads and memoizes section contents from a target object file.
type Cache struct {
	file   Source
	loaded map[bin.Addr]*View
}

// NewCache returns a Cache that resolves sections against file.
func NewCache(file Source) *Cache {
	return &Cache{
		file:   file,
		loaded: make(map[bin.Addr]*View),
	}
}

// LocateSection scans all sections of the underlying object for the one
// whose [vma, vma+size) range covers the query, returning nil if none does.
func (c *Cache) LocateSection(vma bin.Addr) (*objfile.Section, bool) {
	return c.file.LocateSection(vma)
}

// LoadSectionFor finds the section containing vma; if it has already been
// cached (keyed by the section's own base VMA) the cached view is returned
// unchanged, otherwise the section's entire contents are read into a
// freshly allocated buffer, cached, and returned.
func (c *Cache) LoadSectionFor(vma bin.Addr) (*View, error) {
	sec, ok := c.LocateSection(vma)
	if !ok {
		return nil, errors.Wrapf(ErrSectionNotFound, "no section covers VMA %v", vma)
	}

	if v, ok := c.loaded[sec.VMA]; ok {
		return v, nil
	}

	data, err := c.file.ReadSection(sec)
	if err != nil {
		return nil, errors.Wrapf(ErrSectionReadFailed, "section %q: %v", sec.Name, err)
	}

	v := &View{
		Section: sec.VMA,
		Length:  len(data),
		Bytes:   data,
	}
	c.loaded[sec.VMA] = v
	dbg.Printf("loaded %d bytes at %v (section %q)", v.Length, v.Section, sec.Name)
	return v, nil
}

// UnloadAll drops every cached view. Subsequent LoadSectionFor calls will
// re-read section contents from the underlying object.
func (c *Cache) UnloadAll() {
	c.loaded = make(map[bin.Addr]*View)
}
