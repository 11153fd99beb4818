package canvasrenderer

import (
	"bytes"
	"errors"
	"image/color"
	"math"
	"strings"
	"testing"

	"github.com/ByLCY/scriptorium/archive"
	"github.com/ByLCY/scriptorium/layout"
	"github.com/ByLCY/scriptorium/scripture"
)

const doc = `\id GEN
\h Genesis
\c 1
\p \v 1 In the beginning God created the heaven and the earth.
\v 2 And the earth was without form, and void; and darkness was upon the face of the deep.
`

func layoutDoc(t *testing.T, letterSpacing float64) (*layout.Engine, *layout.Result) {
	t.Helper()
	e := layout.NewEngine(layout.DefaultOptions())
	body := layout.TextStyle{FontFamily: "body", FontSize: 10, LineHeight: 12, LetterSpacing: letterSpacing}
	e.RegisterStyle(scripture.Verse, body)
	e.RegisterStyle(scripture.Normal, body)
	e.RegisterStyle(scripture.Header, layout.TextStyle{FontFamily: "body", FontSize: 14, LineHeight: 16})
	e.RegisterStyle(scripture.Chapter, layout.TextStyle{FontFamily: "body", FontSize: 20, LineHeight: 24})
	res, err := e.Layout([]byte(doc), layout.Dimensions{Width: 200, Height: 120, HeaderHeight: 24, DropCapPadding: 2})
	if err != nil {
		t.Fatalf("layout error: %v", err)
	}
	if res.NumPages() == 0 {
		t.Fatalf("no pages")
	}
	return e, res
}

func TestRenderProducesPDF(t *testing.T) {
	e, res := layoutDoc(t, 0)
	r := NewRenderer(e.Fonts(), Options{Meta: Meta{Title: "Genesis", Creator: "scriptorium"}})
	data, err := r.Render(res)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("output is not a PDF: %q", data[:min(len(data), 8)])
	}
}

func TestRenderFromArchive(t *testing.T) {
	e, res := layoutDoc(t, 0.5)
	data, err := archive.SerializePages(res.Pages, res.Dims)
	if err != nil {
		t.Fatalf("serialize error: %v", err)
	}
	pages, err := archive.OpenPages(data)
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	r := NewRenderer(e.Fonts(), Options{
		Guides: true,
		Colors: map[scripture.Category]color.Color{scripture.Chapter: color.RGBA{R: 160, A: 255}},
	})
	out, err := r.Render(pages)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatalf("output is not a PDF")
	}
}

func TestRenderRejectsEmptySource(t *testing.T) {
	r := NewRenderer(nil, Options{})
	if _, err := r.Render(&layout.Result{Dims: layout.Dimensions{Width: 10, Height: 10}}); err == nil {
		t.Fatalf("expected error for empty source")
	}
	if _, err := r.Render(nil); err == nil {
		t.Fatalf("expected error for nil source")
	}
}

type brokenSource struct{ *layout.Result }

var errBroken = errors.New("broken page")

func (b brokenSource) Page(int) (layout.Page, error) { return layout.Page{}, errBroken }

func TestRenderPropagatesPageErrors(t *testing.T) {
	e, res := layoutDoc(t, 0)
	_, err := NewRenderer(e.Fonts(), Options{}).Render(brokenSource{res})
	if !errors.Is(err, errBroken) {
		t.Fatalf("expected page error, got %v", err)
	}
}

// 单词 run 的宽度必须与渲染时逐字累加的宽度一致，否则两端对齐的行尾会错位。
func TestWordAdvanceMatchesLayout(t *testing.T) {
	for _, ls := range []float64{0, 0.75} {
		e, res := layoutDoc(t, ls)
		r := NewRenderer(e.Fonts(), Options{})
		checked := 0
		for _, page := range res.Pages {
			for _, run := range page.Runs {
				if strings.Contains(run.Text, " ") {
					continue
				}
				got := r.measure(run.Text, run.Style)
				if diff := math.Abs(got - run.Rect.Width); diff > 1e-9 {
					t.Fatalf("run %q: measured=%g layout=%g", run.Text, got, run.Rect.Width)
				}
				checked++
			}
		}
		if checked == 0 {
			t.Fatalf("no single-word runs checked")
		}
	}
}
