package patch

import "github.com/pkg/errors"

var (
	// ErrBlockTooSmall indicates a patch target is shorter than the stub
	// length for the current bitness.
	ErrBlockTooSmall = errors.New("patch: block too small for stub")
	// ErrVmaUnmapped indicates VMA→file-offset translation found no
	// covering section.
	ErrVmaUnmapped = errors.New("patch: vma not mapped to a file offset")
	// ErrNoSledFound indicates trampoline installation could not locate a
	// NOP pad of the required length in the destination.
	ErrNoSledFound = errors.New("patch: no nop sled found")
	// ErrNoOutputFile indicates a patch operation was invoked without an
	// output path configured.
	ErrNoOutputFile = errors.New("patch: no output file configured")
)
