package archive

import (
	"encoding/binary"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/amazon-ion/ion-go/ion"

	"github.com/ByLCY/scriptorium/layout"
	"github.com/ByLCY/scriptorium/scripture"
)

const pageDirEntrySize = 8

type runRecord struct {
	Text        string  `ion:"text"`
	Top         float64 `ion:"top"`
	Left        float64 `ion:"left"`
	Width       float64 `ion:"width"`
	Height      float64 `ion:"height"`
	Style       int     `ion:"style"`
	Category    int     `ion:"category"`
	WordSpacing float64 `ion:"word_spacing"`
}

type pageRecord struct {
	Runs []runRecord `ion:"runs"`
}

// styleRecord is a base style. Word spacing varies per justified line and
// is kept on the run.
type styleRecord struct {
	Family        string  `ion:"family"`
	Size          float64 `ion:"size"`
	LineHeight    float64 `ion:"line_height"`
	LetterSpacing float64 `ion:"letter_spacing"`
}

type styleTable struct {
	Styles []styleRecord `ion:"styles"`
}

// SerializePages encodes pages and their dimensions into a pages container.
func SerializePages(pages []layout.Page, dims layout.Dimensions) ([]byte, error) {
	var (
		table    styleTable
		interned = map[styleRecord]int{}
		dir      = make([]byte, 0, len(pages)*pageDirEntrySize)
		data     []byte
	)

	for n, p := range pages {
		rec := pageRecord{Runs: make([]runRecord, 0, len(p.Runs))}
		for i, r := range p.Runs {
			// Ion strings must be valid UTF-8 or the page cannot be read back.
			if !utf8.ValidString(r.Text) || !utf8.ValidString(r.Style.FontFamily) {
				return nil, fmt.Errorf("archive: page %d run %d: text is not valid UTF-8", n, i)
			}
			base := styleRecord{
				Family:        r.Style.FontFamily,
				Size:          r.Style.FontSize,
				LineHeight:    r.Style.LineHeight,
				LetterSpacing: r.Style.LetterSpacing,
			}
			idx, ok := interned[base]
			if !ok {
				idx = len(table.Styles)
				interned[base] = idx
				table.Styles = append(table.Styles, base)
			}
			rec.Runs = append(rec.Runs, runRecord{
				Text:        r.Text,
				Top:         r.Rect.Top,
				Left:        r.Rect.Left,
				Width:       r.Rect.Width,
				Height:      r.Rect.Height,
				Style:       idx,
				Category:    int(r.Category),
				WordSpacing: r.Style.WordSpacing,
			})
		}
		payload, err := ion.MarshalBinary(&rec)
		if err != nil {
			return nil, fmt.Errorf("archive: encode page %d: %w", n, err)
		}
		dir = binary.LittleEndian.AppendUint32(dir, uint32(len(data)))
		dir = binary.LittleEndian.AppendUint32(dir, uint32(len(payload)))
		data = append(data, payload...)
	}

	aux, err := ion.MarshalBinary(&table)
	if err != nil {
		return nil, fmt.Errorf("archive: encode style table: %w", err)
	}
	return pack(KindPages, len(pages), dims, dir, data, aux)
}

// Pages is a read-only view over a serialized pages container.
type Pages struct {
	c *container

	once      sync.Once
	styles    []styleRecord
	stylesErr error
}

// OpenPages validates the container header and returns a view over data.
// The buffer is retained and must not be modified while the view is in use.
func OpenPages(data []byte) (*Pages, error) {
	c, err := open(data, KindPages, pageDirEntrySize)
	if err != nil {
		return nil, err
	}
	return &Pages{c: c}, nil
}

// NumPages returns the number of stored pages.
func (p *Pages) NumPages() int { return int(p.c.hdr.Count) }

// Dimensions returns the page dimensions the layout was computed for.
func (p *Pages) Dimensions() layout.Dimensions { return p.c.hdr.dimensions() }

// Verify checks the digest trailer.
func (p *Pages) Verify() error { return p.c.verify() }

// Page decodes page n only.
func (p *Pages) Page(n int) (layout.Page, error) {
	if n < 0 || n >= p.NumPages() {
		return layout.Page{}, fmt.Errorf("%w: page %d of %d", ErrOutOfRange, n, p.NumPages())
	}
	styles, err := p.styleTable()
	if err != nil {
		return layout.Page{}, err
	}

	entry := p.c.dir[n*pageDirEntrySize:]
	off := binary.LittleEndian.Uint32(entry)
	size := binary.LittleEndian.Uint32(entry[4:])
	if uint64(off)+uint64(size) > uint64(len(p.c.body)) {
		return layout.Page{}, fmt.Errorf("%w: page %d payload out of range", ErrFormat, n)
	}

	var rec pageRecord
	if err := ion.Unmarshal(p.c.body[off:off+size], &rec); err != nil {
		return layout.Page{}, fmt.Errorf("%w: page %d: %v", ErrFormat, n, err)
	}

	page := layout.Page{Runs: make([]layout.Text, 0, len(rec.Runs))}
	for _, r := range rec.Runs {
		if r.Style < 0 || r.Style >= len(styles) {
			return layout.Page{}, fmt.Errorf("%w: page %d: style %d not in table", ErrFormat, n, r.Style)
		}
		cat := scripture.Category(r.Category)
		if r.Category < 0 || !cat.Valid() {
			return layout.Page{}, fmt.Errorf("%w: page %d: category %d", ErrFormat, n, r.Category)
		}
		s := styles[r.Style]
		page.Runs = append(page.Runs, layout.Text{
			Text: r.Text,
			Rect: layout.Rectangle{Top: r.Top, Left: r.Left, Width: r.Width, Height: r.Height},
			Style: layout.TextStyle{
				FontFamily:    s.Family,
				FontSize:      s.Size,
				LineHeight:    s.LineHeight,
				LetterSpacing: s.LetterSpacing,
				WordSpacing:   r.WordSpacing,
			},
			Category: cat,
		})
	}
	return page, nil
}

func (p *Pages) styleTable() ([]styleRecord, error) {
	p.once.Do(func() {
		var t styleTable
		if err := ion.Unmarshal(p.c.aux, &t); err != nil {
			p.stylesErr = fmt.Errorf("%w: style table: %v", ErrFormat, err)
			return
		}
		p.styles = t.Styles
	})
	return p.styles, p.stylesErr
}
