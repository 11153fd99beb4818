// Package archive stores layout results in compact, randomly accessible
// binary containers.
//
// Every container starts with a fixed little-endian header, followed by a
// directory table, a data area and an auxiliary Ion block, and ends with a
// BLAKE3 digest of all preceding bytes. Opening a container validates the
// header and table bounds only; payloads are decoded on demand.
package archive

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/ByLCY/scriptorium/layout"
)

const (
	signature = "SCRP"
	version   = 1

	digestSize = 32
)

// Kind identifies the payload of a container.
type Kind uint8

const (
	KindPages Kind = 1
	KindIndex Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindPages:
		return "pages"
	case KindIndex:
		return "index"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

type header struct {
	Signature      [4]byte
	Version        uint16
	Kind           uint8
	Flags          uint8
	Count          uint32
	DirOffset      uint32
	DirSize        uint32
	DataOffset     uint32
	DataSize       uint32
	AuxOffset      uint32
	AuxSize        uint32
	Width          float64
	Height         float64
	HeaderHeight   float64
	DropCapPadding float64
}

var headerSize = binary.Size(header{})

func (h *header) dimensions() layout.Dimensions {
	return layout.Dimensions{
		Width:          h.Width,
		Height:         h.Height,
		HeaderHeight:   h.HeaderHeight,
		DropCapPadding: h.DropCapPadding,
	}
}

// section is one of the three variable areas of a container.
type section struct {
	off, size uint32
}

func (s section) slice(data []byte) []byte {
	return data[s.off : s.off+s.size]
}

// container is a validated view over a serialized buffer.
type container struct {
	data []byte
	hdr  header
	dir  []byte
	body []byte
	aux  []byte
}

// pack lays out the header, the three sections and the digest trailer.
func pack(kind Kind, count int, dims layout.Dimensions, dir, data, aux []byte) ([]byte, error) {
	total := uint64(headerSize) + uint64(len(dir)) + uint64(len(data)) + uint64(len(aux)) + digestSize
	if total > 1<<32-1 || uint64(count) > 1<<32-1 {
		return nil, fmt.Errorf("archive: %s container too large (%d bytes)", kind, total)
	}

	h := header{
		Version:        version,
		Kind:           uint8(kind),
		Count:          uint32(count),
		Width:          dims.Width,
		Height:         dims.Height,
		HeaderHeight:   dims.HeaderHeight,
		DropCapPadding: dims.DropCapPadding,
	}
	copy(h.Signature[:], signature)
	h.DirOffset = uint32(headerSize)
	h.DirSize = uint32(len(dir))
	h.DataOffset = h.DirOffset + h.DirSize
	h.DataSize = uint32(len(data))
	h.AuxOffset = h.DataOffset + h.DataSize
	h.AuxSize = uint32(len(aux))

	var buf bytes.Buffer
	buf.Grow(int(total))
	if err := binary.Write(&buf, binary.LittleEndian, &h); err != nil {
		return nil, err
	}
	buf.Write(dir)
	buf.Write(data)
	buf.Write(aux)
	sum := blake3.Sum256(buf.Bytes())
	buf.Write(sum[:])
	return buf.Bytes(), nil
}

// open validates the header of a buffer of the expected kind. The directory
// size must equal count*entrySize.
func open(data []byte, kind Kind, entrySize int) (*container, error) {
	if len(data) < headerSize+digestSize {
		return nil, fmt.Errorf("%w: buffer too small (%d bytes)", ErrFormat, len(data))
	}

	var h header
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if string(h.Signature[:]) != signature {
		return nil, fmt.Errorf("%w: invalid signature %q", ErrFormat, string(h.Signature[:]))
	}
	if h.Version != version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrFormat, h.Version)
	}
	if Kind(h.Kind) != kind {
		return nil, fmt.Errorf("%w: expected %s container, got %s", ErrFormat, kind, Kind(h.Kind))
	}
	if uint64(h.Count)*uint64(entrySize) != uint64(h.DirSize) {
		return nil, fmt.Errorf("%w: directory size %d does not match %d entries", ErrFormat, h.DirSize, h.Count)
	}

	limit := uint64(len(data) - digestSize)
	c := &container{data: data, hdr: h}
	for _, s := range []struct {
		name string
		sec  section
		dst  *[]byte
	}{
		{"directory", section{h.DirOffset, h.DirSize}, &c.dir},
		{"data", section{h.DataOffset, h.DataSize}, &c.body},
		{"aux", section{h.AuxOffset, h.AuxSize}, &c.aux},
	} {
		if uint64(s.sec.off) < uint64(headerSize) || uint64(s.sec.off)+uint64(s.sec.size) > limit {
			return nil, fmt.Errorf("%w: %s out of range", ErrFormat, s.name)
		}
		*s.dst = s.sec.slice(data)
	}
	return c, nil
}

// verify recomputes the digest trailer.
func (c *container) verify() error {
	n := len(c.data) - digestSize
	sum := blake3.Sum256(c.data[:n])
	if !bytes.Equal(sum[:], c.data[n:]) {
		return fmt.Errorf("%w: %s container", ErrChecksum, Kind(c.hdr.Kind))
	}
	return nil
}

// Digest returns the BLAKE3 trailer of a serialized container as stored.
func Digest(data []byte) ([]byte, error) {
	if len(data) < headerSize+digestSize {
		return nil, fmt.Errorf("%w: buffer too small (%d bytes)", ErrFormat, len(data))
	}
	return bytes.Clone(data[len(data)-digestSize:]), nil
}
