package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/scriptorium/scripture"
)

// narrowEngine 使用字号 2 的样式，使每个字符宽度恰为 1。
func narrowEngine(opts Options) *Engine {
	opts.Measurer = stubMeasurer{}
	e := NewEngine(opts)
	for _, cat := range scripture.Categories() {
		e.RegisterStyle(cat, TextStyle{FontSize: 2, LineHeight: 10})
	}
	return e
}

func runTexts(p Page) []string {
	out := make([]string, 0, len(p.Runs))
	for _, r := range p.Runs {
		out = append(out, r.Text)
	}
	return out
}

func TestJustifiedParagraph(t *testing.T) {
	e := narrowEngine(Options{Justify: true})
	res, err := e.Layout([]byte(`\p aaa bbb ccc ddd eee fff`), Dimensions{Width: 20, Height: 100})
	require.NoError(t, err)
	require.Len(t, res.Pages, 1)
	runs := res.Pages[0].Runs
	require.Len(t, runs, 2)

	assert.Equal(t, "aaa bbb ccc ddd eee", runs[0].Text)
	assert.InDelta(t, 20, runs[0].Rect.Width, 1e-9)
	assert.InDelta(t, 0.25, runs[0].Style.WordSpacing, 1e-9)

	// 段落末行左对齐
	assert.Equal(t, "fff", runs[1].Text)
	assert.Equal(t, 3.0, runs[1].Rect.Width)
	assert.Zero(t, runs[1].Style.WordSpacing)
	assert.Equal(t, 10.0, runs[1].Rect.Top)
}

func TestJustifyDisabled(t *testing.T) {
	e := narrowEngine(Options{})
	res, err := e.Layout([]byte(`\p aaa bbb ccc ddd eee fff`), Dimensions{Width: 20, Height: 100})
	require.NoError(t, err)
	assert.Equal(t, 19.0, res.Pages[0].Runs[0].Rect.Width)
	assert.Zero(t, res.Pages[0].Runs[0].Style.WordSpacing)
}

func TestParagraphIndent(t *testing.T) {
	e := narrowEngine(Options{ParagraphIndent: 5})
	res, err := e.Layout([]byte("plain text\n\\p aaa bbb"), Dimensions{Width: 100, Height: 100})
	require.NoError(t, err)
	runs := res.Pages[0].Runs
	require.Len(t, runs, 2)
	assert.Equal(t, 0.0, runs[0].Rect.Left)
	assert.Equal(t, 5.0, runs[1].Rect.Left)
	assert.Equal(t, 10.0, runs[1].Rect.Top)
}

func TestPoetryIndent(t *testing.T) {
	e := narrowEngine(Options{Justify: true, PoetryIndent: 10})
	res, err := e.Layout([]byte(`\q2 aaaa bbbb cccc dddd eeee`), Dimensions{Width: 40, Height: 100})
	require.NoError(t, err)
	runs := res.Pages[0].Runs
	require.Len(t, runs, 2)
	assert.Equal(t, "aaaa bbbb cccc dddd", runs[0].Text)
	assert.Equal(t, 20.0, runs[0].Rect.Left)
	// 诗歌不做两端对齐
	assert.Equal(t, 19.0, runs[0].Rect.Width)
	assert.Equal(t, "eeee", runs[1].Text)
	assert.Equal(t, 30.0, runs[1].Rect.Left)
}

func TestOversizeWordTakesWholeLine(t *testing.T) {
	e := narrowEngine(Options{})
	res, err := e.Layout([]byte(`aaaaaaaaaaaaaaa bb`), Dimensions{Width: 10, Height: 100})
	require.NoError(t, err)
	assert.Equal(t, []string{"aaaaaaaaaaaaaaa", "bb"}, runTexts(res.Pages[0]))
	assert.Equal(t, 15.0, res.Pages[0].Runs[0].Rect.Width)
	assert.Equal(t, 10.0, res.Pages[0].Runs[1].Rect.Top)
}

func TestVerseNumberStaysWithFollowingWord(t *testing.T) {
	e := narrowEngine(Options{})
	res, err := e.Layout([]byte(`aaaa bbbb \v 2 cccc`), Dimensions{Width: 12, Height: 100})
	require.NoError(t, err)
	runs := res.Pages[0].Runs
	assert.Equal(t, []string{"aaaa bbbb", "2", "cccc"}, runTexts(res.Pages[0]))
	assert.Equal(t, 10.0, runs[1].Rect.Top)
	assert.Equal(t, scripture.Verse, runs[1].Category)
	assert.Equal(t, 0.0, runs[1].Rect.Left)
	assert.Equal(t, 2.0, runs[2].Rect.Left)
}

func TestPageBreakStartsBelowHeaderBand(t *testing.T) {
	e := narrowEngine(Options{})
	res, err := e.Layout([]byte(`aa bb cc dd`), Dimensions{Width: 2, Height: 35, HeaderHeight: 5})
	require.NoError(t, err)
	require.Len(t, res.Pages, 2)
	assert.Equal(t, []string{"aa", "bb", "cc"}, runTexts(res.Pages[0]))
	assert.Equal(t, 5.0, res.Pages[0].Runs[0].Rect.Top)
	assert.Equal(t, 25.0, res.Pages[0].Runs[2].Rect.Top)
	assert.Equal(t, 5.0, res.Pages[1].Runs[0].Rect.Top)
	assert.Equal(t, 15.0, res.Geometry.LastTop)
}

func TestHeaderCentredInBand(t *testing.T) {
	e := narrowEngine(Options{})
	res, err := e.Layout([]byte("\\h Genesis Book\n"), Dimensions{Width: 100, Height: 100, HeaderHeight: 20})
	require.NoError(t, err)
	require.Len(t, res.Pages, 1)
	run := res.Pages[0].Runs[0]
	assert.Equal(t, "Genesis Book", run.Text)
	assert.Equal(t, scripture.Header, run.Category)
	assert.Equal(t, Rectangle{Top: 5, Left: 44, Width: 12, Height: 10}, run.Rect)
}

func TestHeaderWiderThanPageIsClamped(t *testing.T) {
	e := narrowEngine(Options{})
	res, err := e.Layout([]byte(`\h abcdefghijklmnop`), Dimensions{Width: 10, Height: 100, HeaderHeight: 20})
	require.NoError(t, err)
	run := res.Pages[0].Runs[0]
	assert.Equal(t, 0.0, run.Rect.Left)
	assert.Equal(t, 10.0, run.Rect.Width)
}

func TestHeaderWithoutBandIsDropped(t *testing.T) {
	e := narrowEngine(Options{})
	res, err := e.Layout([]byte("\\h Genesis\ntext"), Dimensions{Width: 100, Height: 100})
	require.NoError(t, err)
	assert.Equal(t, []string{"text"}, runTexts(res.Pages[0]))
}

func TestHeaderAfterBodyStartsNewPage(t *testing.T) {
	e := narrowEngine(Options{})
	src := "\\id GEN\n\\h A\n\\p one\n\\id EXO\n\\h B\n\\p two"
	res, err := e.Layout([]byte(src), Dimensions{Width: 100, Height: 100, HeaderHeight: 20})
	require.NoError(t, err)
	require.Len(t, res.Pages, 2)
	assert.Equal(t, []string{"A", "one"}, runTexts(res.Pages[0]))
	assert.Equal(t, []string{"B", "two"}, runTexts(res.Pages[1]))
	assert.Equal(t, 20.0, res.Pages[1].Runs[1].Rect.Top)
}

func TestHeaderReplacedBeforeBody(t *testing.T) {
	e := narrowEngine(Options{})
	res, err := e.Layout([]byte("\\h A\n\\h B\n"), Dimensions{Width: 100, Height: 100, HeaderHeight: 20})
	require.NoError(t, err)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, []string{"B"}, runTexts(res.Pages[0]))
}

func TestRunningHeader(t *testing.T) {
	e := narrowEngine(Options{RunningHeader: true})
	res, err := e.Layout([]byte("\\h A\naa bb cc"), Dimensions{Width: 2, Height: 30, HeaderHeight: 10})
	require.NoError(t, err)
	require.Len(t, res.Pages, 2)
	assert.Equal(t, []string{"A", "aa", "bb"}, runTexts(res.Pages[0]))
	assert.Equal(t, []string{"A", "cc"}, runTexts(res.Pages[1]))
}

func TestDropCapNarrowsAdjacentLines(t *testing.T) {
	e := narrowEngine(Options{ParagraphIndent: 7})
	e.RegisterStyle(scripture.Chapter, TextStyle{FontSize: 4, LineHeight: 20})
	res, err := e.Layout([]byte(`\c 12 \p aaa bbb ccc ddd eee fff ggg`), Dimensions{Width: 13, Height: 100})
	require.NoError(t, err)
	runs := res.Pages[0].Runs
	require.Len(t, runs, 4)

	// 章号宽 4，加上一个章号样式空格 2；紧随章号的段落不做首行缩进
	assert.Equal(t, Rectangle{Top: 0, Left: 0, Width: 4, Height: 20}, runs[0].Rect)
	assert.Equal(t, "aaa bbb", runs[1].Text)
	assert.Equal(t, 6.0, runs[1].Rect.Left)
	assert.Equal(t, "ccc ddd", runs[2].Text)
	assert.Equal(t, 6.0, runs[2].Rect.Left)
	// 下沉区域以下恢复全宽
	assert.Equal(t, "eee fff ggg", runs[3].Text)
	assert.Equal(t, 0.0, runs[3].Rect.Left)
	assert.Equal(t, 20.0, runs[3].Rect.Top)
}

func TestNextChapterClearsDropCap(t *testing.T) {
	e := narrowEngine(Options{})
	e.RegisterStyle(scripture.Chapter, TextStyle{FontSize: 2, LineHeight: 30})
	res, err := e.Layout([]byte(`\c 1 a \c 2 b`), Dimensions{Width: 50, Height: 100})
	require.NoError(t, err)
	runs := res.Pages[0].Runs
	require.Len(t, runs, 4)
	assert.Equal(t, 30.0, runs[2].Rect.Top)
	entries := res.Index.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, 2, entries[1].Ref.Chapter)
}

func TestWideDropCapPushesBodyBelow(t *testing.T) {
	e := narrowEngine(Options{})
	e.RegisterStyle(scripture.Chapter, TextStyle{FontSize: 40, LineHeight: 20})
	res, err := e.Layout([]byte(`\c 119 a b c`), Dimensions{Width: 50, Height: 100})
	require.NoError(t, err)
	runs := res.Pages[0].Runs
	require.Len(t, runs, 2)

	assert.Equal(t, Rectangle{Top: 0, Left: 0, Width: 50, Height: 20}, runs[0].Rect)
	assert.Equal(t, "a b c", runs[1].Text)
	assert.Equal(t, Rectangle{Top: 20, Left: 0, Width: 5, Height: 10}, runs[1].Rect)
	for _, r := range runs {
		assert.LessOrEqual(t, r.Rect.Right(), 50.0)
	}
}
