package archive

import "errors"

var (
	// ErrFormat reports a buffer that is not a valid archive of the expected kind and version.
	ErrFormat = errors.New("archive: invalid format")
	// ErrOutOfRange reports a page number or pointer beyond the archive contents.
	ErrOutOfRange = errors.New("archive: out of range")
	// ErrChecksum reports a digest mismatch found by Verify.
	ErrChecksum = errors.New("archive: checksum mismatch")
)
