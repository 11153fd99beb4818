package layout

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/scriptorium/scripture"
	"github.com/ByLCY/scriptorium/usfm"
)

// stubMeasurer 是一个最小实现，仅用于测试：等宽字体，每个字符宽度为字号的一半。
type stubMeasurer struct{}

func (stubMeasurer) Advance(_ string, _ rune, size float64) float64 { return size / 2 }

func newStubEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	opts.Measurer = stubMeasurer{}
	e := NewEngine(opts)
	e.RegisterStyle(scripture.Verse, TextStyle{FontFamily: "body", FontSize: 10, LineHeight: 12})
	e.RegisterStyle(scripture.Normal, TextStyle{FontFamily: "body", FontSize: 10, LineHeight: 12})
	e.RegisterStyle(scripture.Header, TextStyle{FontFamily: "body", FontSize: 12, LineHeight: 14})
	e.RegisterStyle(scripture.Chapter, TextStyle{FontFamily: "body", FontSize: 20, LineHeight: 24})
	return e
}

const sampleDoc = `\id GEN
\h Genesis
\c 1
\p
\v 1 In the beginning God created the heaven and the earth.
\v 2 And the earth was without form, and void; and darkness was upon the face of the deep.
\q1 \v 3 And God said, Let there be light: and there was light.
\q2 And God saw the light, that it was good.
\c 2
\p \v 1 Thus the heavens and the earth were finished, and all the host of them.
\v 2 And on the seventh day God ended his work which he had made.
\id EXO
\h Exodus
\c 1
\p \v 1 Now these are the names of the children of Israel, which came into Egypt.
`

var sampleDims = Dimensions{Width: 150, Height: 100, HeaderHeight: 20, DropCapPadding: 4}

// 场景：只注册 Verse 样式，文本宽度超过页面宽度时折成至少两行，索引条目位于第 0 页。
func TestScenarioVerseWrapsOnFirstPage(t *testing.T) {
	check := func(t *testing.T, e *Engine) {
		e.RegisterStyle(scripture.Verse, TextStyle{FontSize: 12, LineHeight: 14, WordSpacing: 4})
		res, err := e.Layout([]byte(`\v 1 In the beginning God created the heavens and the earth.`),
			Dimensions{Width: 200, Height: 40})
		require.NoError(t, err)
		require.NotEmpty(t, res.Pages)

		tops := map[float64]bool{}
		for _, run := range res.Pages[0].Runs {
			tops[run.Rect.Top] = true
		}
		assert.GreaterOrEqual(t, len(tops), 2, "expected at least two lines")

		require.Equal(t, 1, res.Index.Len())
		entry, err := res.Index.At(0)
		require.NoError(t, err)
		assert.Equal(t, IndexEntry{Page: 0, Ref: scripture.Reference{Verse: 1}}, entry)
	}
	t.Run("stub", func(t *testing.T) {
		check(t, NewEngine(Options{Measurer: stubMeasurer{}, Justify: true}))
	})
	t.Run("fonts", func(t *testing.T) {
		check(t, NewEngine(DefaultOptions()))
	})
}

// 场景：章号前需要 DropCapPadding=20，而当前页只剩 15，章必须从新页开始。
func TestScenarioDropCapStartsNewPage(t *testing.T) {
	layoutWith := func(padding float64) *Result {
		e := NewEngine(Options{Measurer: stubMeasurer{}})
		e.RegisterStyle(scripture.Normal, TextStyle{FontSize: 2, LineHeight: 14})
		e.RegisterStyle(scripture.Chapter, TextStyle{FontSize: 2, LineHeight: 10})
		res, err := e.Layout([]byte(`aaaaaaaa bbbbbbbb \c 1 cc`),
			Dimensions{Width: 10, Height: 43, DropCapPadding: padding})
		require.NoError(t, err)
		return res
	}

	res := layoutWith(20)
	require.Len(t, res.Pages, 2)
	require.Len(t, res.Pages[0].Runs, 2)
	assert.Equal(t, 28.0, res.Pages[0].Runs[1].Rect.Bottom())
	capRun := res.Pages[1].Runs[0]
	assert.Equal(t, scripture.Chapter, capRun.Category)
	assert.Equal(t, "1", capRun.Text)
	assert.Equal(t, 20.0, capRun.Rect.Top)
	page, ok := res.Index.PageOf(scripture.Reference{Chapter: 1})
	require.True(t, ok)
	assert.Equal(t, 1, page)

	// 文本与下沉章号并排
	body := res.Pages[1].Runs[1]
	assert.Equal(t, "cc", body.Text)
	assert.Equal(t, 20.0, body.Rect.Top)
	assert.Equal(t, 2.0, body.Rect.Left)

	res = layoutWith(0)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, 28.0, res.Pages[0].Runs[2].Rect.Top)
}

// 场景：输入使用了未注册样式的类别时返回配置错误。
func TestScenarioMissingStyleIsConfigError(t *testing.T) {
	e := NewEngine(Options{Measurer: stubMeasurer{}})
	e.RegisterStyle(scripture.Verse, TextStyle{FontSize: 10, LineHeight: 12})

	res, err := e.Layout([]byte(`\c 1 \v 1 text`), Dimensions{Width: 100, Height: 100})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, ErrMissingStyle))
	assert.True(t, IsConfigError(err))
	assert.Contains(t, err.Error(), "chapter")

	// 未使用的类别无需注册
	_, err = e.Layout([]byte(`\v 1 text`), Dimensions{Width: 100, Height: 100})
	assert.NoError(t, err)
}

func TestHeaderStyleNotNeededWithoutBand(t *testing.T) {
	e := NewEngine(Options{Measurer: stubMeasurer{}})
	e.RegisterStyle(scripture.Verse, TextStyle{FontSize: 10, LineHeight: 12})

	res, err := e.Layout([]byte("\\h Gen\n\\v 1 x"), Dimensions{Width: 100, Height: 100})
	require.NoError(t, err)
	require.Len(t, res.Pages, 1)
	for _, r := range res.Pages[0].Runs {
		assert.NotEqual(t, scripture.Header, r.Category)
	}

	_, err = e.Layout([]byte("\\h Gen\n\\v 1 x"), Dimensions{Width: 100, Height: 100, HeaderHeight: 10})
	assert.ErrorIs(t, err, ErrMissingStyle)
}

func TestInvalidStyle(t *testing.T) {
	e := NewEngine(Options{Measurer: stubMeasurer{}})
	e.RegisterStyle(scripture.Normal, TextStyle{FontSize: 0, LineHeight: 12})
	_, err := e.Layout([]byte(`text`), Dimensions{Width: 100, Height: 100})
	assert.ErrorIs(t, err, ErrInvalidStyle)

	e.RegisterStyle(scripture.Normal, TextStyle{FontSize: 10, LineHeight: -1})
	_, err = e.Layout([]byte(`text`), Dimensions{Width: 100, Height: 100})
	assert.ErrorIs(t, err, ErrInvalidStyle)
}

func TestInvalidDimensions(t *testing.T) {
	e := newStubEngine(t, DefaultOptions())
	cases := []Dimensions{
		{Width: 0, Height: 100},
		{Width: 100, Height: -1},
		{Width: 100, Height: 100, HeaderHeight: -1},
		{Width: 100, Height: 100, HeaderHeight: 100},
		{Width: 100, Height: 100, DropCapPadding: -2},
		{Width: 100, Height: 100, HeaderHeight: math.NaN()},
		{Width: 100, Height: 100, DropCapPadding: math.NaN()},
	}
	for _, dims := range cases {
		res, err := e.Layout([]byte(`text`), dims)
		assert.Nil(t, res)
		assert.ErrorIs(t, err, ErrInvalidDimensions, "dims %+v", dims)
		assert.True(t, IsConfigError(err))
	}
}

func TestContainment(t *testing.T) {
	e := newStubEngine(t, DefaultOptions())
	res, err := e.Layout([]byte(sampleDoc), sampleDims)
	require.NoError(t, err)
	require.Greater(t, len(res.Pages), 1)

	for n, page := range res.Pages {
		for _, run := range page.Runs {
			r := run.Rect
			assert.GreaterOrEqual(t, r.Left, 0.0, "page %d run %q", n, run.Text)
			assert.GreaterOrEqual(t, r.Top, 0.0, "page %d run %q", n, run.Text)
			assert.LessOrEqual(t, r.Right(), sampleDims.Width+1e-6, "page %d run %q", n, run.Text)
			assert.LessOrEqual(t, r.Bottom(), sampleDims.Height+1e-6, "page %d run %q", n, run.Text)
			if run.Category == scripture.Header {
				assert.LessOrEqual(t, r.Bottom(), sampleDims.HeaderHeight+1e-6)
			} else {
				assert.GreaterOrEqual(t, r.Top, sampleDims.HeaderHeight, "page %d run %q", n, run.Text)
			}
		}
	}
}

// 所有 run 中的词按顺序拼接后应与输入的词序列一致，即没有词被拆开或丢失。
func TestNoMidWordSplit(t *testing.T) {
	e := newStubEngine(t, DefaultOptions())
	toks := usfm.TokenizeString(sampleDoc)
	res, err := e.LayoutTokens(toks, sampleDims)
	require.NoError(t, err)

	var want []string
	for _, tok := range toks {
		if tok.Kind == usfm.Book {
			continue
		}
		want = append(want, strings.Fields(tok.Text)...)
	}
	var got []string
	for _, page := range res.Pages {
		for _, run := range page.Runs {
			got = append(got, strings.Fields(run.Text)...)
		}
	}
	assert.Equal(t, want, got)
}

func TestMonotonicIndex(t *testing.T) {
	e := newStubEngine(t, DefaultOptions())
	res, err := e.Layout([]byte(sampleDoc), sampleDims)
	require.NoError(t, err)

	entries := res.Index.Entries()
	require.NotEmpty(t, entries)
	for i := 1; i < len(entries); i++ {
		assert.LessOrEqual(t, entries[i-1].Page, entries[i].Page)
	}
	last := entries[len(entries)-1]
	assert.Less(t, last.Page, len(res.Pages))
	// 3 个章条目，GEN 共 5 节，EXO 1 节
	assert.Equal(t, 3+5+1, res.Index.Len())
	assert.Equal(t, []string{"GEN", "EXO"}, res.Index.Books())
}

func TestIdempotence(t *testing.T) {
	e := newStubEngine(t, DefaultOptions())
	a, err := e.Layout([]byte(sampleDoc), sampleDims)
	require.NoError(t, err)
	b, err := e.Layout([]byte(sampleDoc), sampleDims)
	require.NoError(t, err)
	assert.Equal(t, a.Pages, b.Pages)
	assert.Equal(t, a.Index.Entries(), b.Index.Entries())
	assert.Equal(t, a.Geometry, b.Geometry)
}

func TestResultPageBounds(t *testing.T) {
	e := newStubEngine(t, DefaultOptions())
	res, err := e.Layout([]byte(sampleDoc), sampleDims)
	require.NoError(t, err)
	assert.Equal(t, len(res.Pages), res.NumPages())
	assert.Equal(t, res.NumPages(), res.Geometry.PageCount)
	assert.Equal(t, sampleDims, res.Dimensions())

	_, err = res.Page(res.NumPages() - 1)
	assert.NoError(t, err)
	_, err = res.Page(res.NumPages())
	assert.ErrorIs(t, err, ErrPageOutOfRange)
	_, err = res.Page(-1)
	assert.ErrorIs(t, err, ErrPageOutOfRange)
}

func TestEmptyInputHasNoPages(t *testing.T) {
	e := newStubEngine(t, DefaultOptions())
	res, err := e.Layout(nil, sampleDims)
	require.NoError(t, err)
	assert.Empty(t, res.Pages)
	assert.Zero(t, res.Index.Len())
}

func TestDropCapStyle(t *testing.T) {
	s := DropCapStyle(TextStyle{FontFamily: "body", FontSize: 10, LineHeight: 12, WordSpacing: 3})
	assert.Equal(t, TextStyle{FontFamily: "body", FontSize: 20, LineHeight: 24}, s)
}
