package archive

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/amazon-ion/ion-go/ion"

	"github.com/ByLCY/scriptorium/layout"
	"github.com/ByLCY/scriptorium/scripture"
)

// entry layout: page u32, book u16, chapter u16, verse u16, reserved u16.
const (
	indexEntrySize = 12
	sortedSlotSize = 4
)

type bookTable struct {
	Books []string `ion:"books"`
}

// Pointer addresses an index entry by its position in document order.
type Pointer uint32

// SerializeIndex encodes idx into an index container. A nil index encodes
// as an empty one.
func SerializeIndex(idx *layout.Index) ([]byte, error) {
	if idx == nil {
		idx = layout.NewIndex(nil)
	}
	n := idx.Len()
	books := bookTable{Books: []string{}}
	ordinal := map[string]int{}
	if n > 0 {
		books.Books = idx.Books()
		for i, b := range books.Books {
			if !utf8.ValidString(b) {
				return nil, fmt.Errorf("archive: book %d: code is not valid UTF-8", i)
			}
			ordinal[b] = i
		}
	}
	if len(books.Books) > math.MaxUint16 {
		return nil, fmt.Errorf("archive: too many books (%d)", len(books.Books))
	}

	dir := make([]byte, 0, n*indexEntrySize)
	for i, e := range idx.Entries() {
		if e.Page < 0 || int64(e.Page) > math.MaxUint32 {
			return nil, fmt.Errorf("archive: entry %d: page %d not representable", i, e.Page)
		}
		if e.Ref.Chapter < 0 || e.Ref.Chapter > math.MaxUint16 || e.Ref.Verse < 0 || e.Ref.Verse > math.MaxUint16 {
			return nil, fmt.Errorf("archive: entry %d: reference %s not representable", i, e.Ref)
		}
		dir = binary.LittleEndian.AppendUint32(dir, uint32(e.Page))
		dir = binary.LittleEndian.AppendUint16(dir, uint16(ordinal[e.Ref.Book]))
		dir = binary.LittleEndian.AppendUint16(dir, uint16(e.Ref.Chapter))
		dir = binary.LittleEndian.AppendUint16(dir, uint16(e.Ref.Verse))
		dir = binary.LittleEndian.AppendUint16(dir, 0)
	}

	data := make([]byte, 0, n*sortedSlotSize)
	for _, pos := range idx.Sorted() {
		data = binary.LittleEndian.AppendUint32(data, uint32(pos))
	}

	aux, err := ion.MarshalBinary(&books)
	if err != nil {
		return nil, fmt.Errorf("archive: encode book table: %w", err)
	}
	return pack(KindIndex, n, layout.Dimensions{}, dir, data, aux)
}

// Indices is a read-only view over a serialized index container. Lookups
// work directly on the stored bytes.
type Indices struct {
	c *container

	once     sync.Once
	books    []string
	ordinal  map[string]int
	booksErr error
}

// OpenIndex validates the container header and returns a view over data.
func OpenIndex(data []byte) (*Indices, error) {
	c, err := open(data, KindIndex, indexEntrySize)
	if err != nil {
		return nil, err
	}
	if uint64(c.hdr.DataSize) != uint64(c.hdr.Count)*sortedSlotSize {
		return nil, fmt.Errorf("%w: sorted table size %d does not match %d entries", ErrFormat, c.hdr.DataSize, c.hdr.Count)
	}
	return &Indices{c: c}, nil
}

// Len returns the number of entries.
func (x *Indices) Len() int { return int(x.c.hdr.Count) }

// Verify checks the digest trailer.
func (x *Indices) Verify() error { return x.c.verify() }

// Books returns the book codes in order of first appearance.
func (x *Indices) Books() ([]string, error) {
	if err := x.loadBooks(); err != nil {
		return nil, err
	}
	return x.books, nil
}

// Get returns the entry addressed by p.
func (x *Indices) Get(p Pointer) (layout.IndexEntry, error) {
	if int64(p) >= int64(x.Len()) {
		return layout.IndexEntry{}, fmt.Errorf("%w: pointer %d of %d", ErrOutOfRange, p, x.Len())
	}
	if err := x.loadBooks(); err != nil {
		return layout.IndexEntry{}, err
	}
	page, book, ch, v := x.raw(int(p))
	if int(book) >= len(x.books) {
		return layout.IndexEntry{}, fmt.Errorf("%w: entry %d: book %d not in table", ErrFormat, p, book)
	}
	return layout.IndexEntry{
		Page: int(page),
		Ref:  scripture.Reference{Book: x.books[book], Chapter: int(ch), Verse: int(v)},
	}, nil
}

// Find returns the last entry of the same book that does not come after
// ref, so a chapter reference finds the chapter entry and a verse inside a
// numbered range finds the range.
func (x *Indices) Find(ref scripture.Reference) (Pointer, bool) {
	if x.loadBooks() != nil {
		return 0, false
	}
	book, ok := x.ordinal[ref.Book]
	if !ok {
		return 0, false
	}
	key := [3]int{book, ref.Chapter, ref.Verse}

	n := x.Len()
	i := sort.Search(n, func(i int) bool {
		return compareKeys(x.key(x.slot(i)), key) > 0
	})
	if i == 0 {
		return 0, false
	}
	i--
	found := x.key(x.slot(i))
	if found[0] != book {
		return 0, false
	}
	for i > 0 && x.key(x.slot(i-1)) == found {
		i--
	}
	return Pointer(x.slot(i)), true
}

// PageOf returns the page on which ref is placed.
func (x *Indices) PageOf(ref scripture.Reference) (int, bool) {
	p, ok := x.Find(ref)
	if !ok {
		return 0, false
	}
	page, _, _, _ := x.raw(int(p))
	return int(page), true
}

// OnPage returns the entries placed on page n.
func (x *Indices) OnPage(page int) ([]layout.IndexEntry, error) {
	n := x.Len()
	lo := sort.Search(n, func(i int) bool { p, _, _, _ := x.raw(i); return int(p) >= page })
	hi := sort.Search(n, func(i int) bool { p, _, _, _ := x.raw(i); return int(p) > page })
	out := make([]layout.IndexEntry, 0, hi-lo)
	for i := lo; i < hi; i++ {
		e, err := x.Get(Pointer(i))
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Index decodes every entry into a layout.Index.
func (x *Indices) Index() (*layout.Index, error) {
	entries := make([]layout.IndexEntry, 0, x.Len())
	for i := 0; i < x.Len(); i++ {
		e, err := x.Get(Pointer(i))
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return layout.NewIndex(entries), nil
}

func (x *Indices) raw(i int) (page uint32, book, chapter, verse uint16) {
	b := x.c.dir[i*indexEntrySize:]
	return binary.LittleEndian.Uint32(b),
		binary.LittleEndian.Uint16(b[4:]),
		binary.LittleEndian.Uint16(b[6:]),
		binary.LittleEndian.Uint16(b[8:])
}

// slot returns the document position stored at sorted slot i. Positions
// that fall outside the table are clamped so a corrupt buffer cannot panic.
func (x *Indices) slot(i int) int {
	pos := int(binary.LittleEndian.Uint32(x.c.body[i*sortedSlotSize:]))
	if pos >= x.Len() {
		return x.Len() - 1
	}
	return pos
}

func (x *Indices) key(pos int) [3]int {
	_, book, ch, v := x.raw(pos)
	return [3]int{int(book), int(ch), int(v)}
}

func compareKeys(a, b [3]int) int {
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

func (x *Indices) loadBooks() error {
	x.once.Do(func() {
		var t bookTable
		if err := ion.Unmarshal(x.c.aux, &t); err != nil {
			x.booksErr = fmt.Errorf("%w: book table: %v", ErrFormat, err)
			return
		}
		x.books = t.Books
		x.ordinal = make(map[string]int, len(t.Books))
		for i, b := range t.Books {
			if _, ok := x.ordinal[b]; !ok {
				x.ordinal[b] = i
			}
		}
	})
	return x.booksErr
}
