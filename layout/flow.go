package layout

import (
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/ByLCY/scriptorium/scripture"
	"github.com/ByLCY/scriptorium/usfm"
)

// 该文件实现正文流排：token 被切分为词，按行贪心填充，行高超出页面时换页。

const epsilon = 1e-9

type blockKind int

const (
	blockPlain  blockKind = iota // 段落标记之前的文本
	blockProse                   // \p 段落
	blockPoetry                  // \q 诗歌行
)

// item 是不可拆分的排版单元：一个词或一个经节编号。
type item struct {
	text  string
	cat   scripture.Category
	style TextStyle
	width float64
	gap   float64 // 与后一项之间的基础间距
	label bool
	ref   scripture.Reference
}

type pageAccumulator struct {
	runs   []Text
	body   bool // 已放置正文（含下沉章号）
	header int  // 页眉 run 的下标，-1 表示没有
}

func (p *pageAccumulator) appendRun(t Text) {
	p.runs = append(p.runs, t)
}

type pageCollector struct {
	accs []*pageAccumulator
}

func newPageCollector() *pageCollector {
	pc := &pageCollector{}
	pc.newPage()
	return pc
}

func (pc *pageCollector) newPage() *pageAccumulator {
	acc := &pageAccumulator{header: -1}
	pc.accs = append(pc.accs, acc)
	return acc
}

func (pc *pageCollector) curr() *pageAccumulator {
	return pc.accs[len(pc.accs)-1]
}

func (pc *pageCollector) currIndex() int {
	return len(pc.accs) - 1
}

// pages 返回全部页面，末尾的空页被丢弃。
func (pc *pageCollector) pages() []Page {
	n := len(pc.accs)
	for n > 0 && len(pc.accs[n-1].runs) == 0 {
		n--
	}
	out := make([]Page, n)
	for i := 0; i < n; i++ {
		out[i] = Page{Runs: pc.accs[i].runs}
	}
	return out
}

type flowContext struct {
	e         *Engine
	dims      Dimensions
	collector *pageCollector
	cursorY   float64
	entries   []IndexEntry

	block blockKind
	level int
	items []item

	// 下沉章号占据的区域：cursorY < capBottom 的行向右缩进 capInset
	capBottom float64
	capInset  float64
	afterCap  bool

	header string // 最近一次的页眉文本
}

func newFlow(e *Engine, dims Dimensions) *flowContext {
	return &flowContext{
		e:         e,
		dims:      dims,
		collector: newPageCollector(),
		cursorY:   dims.HeaderHeight,
	}
}

func (ctx *flowContext) acc() *pageAccumulator {
	return ctx.collector.curr()
}

func (ctx *flowContext) consume(tok usfm.Token) {
	switch tok.Kind {
	case usfm.Text:
		ctx.addWords(tok)
	case usfm.VerseNumber:
		ctx.addLabel(tok)
	case usfm.ChapterNumber:
		ctx.flushBlock()
		ctx.startBlock(blockPlain, 0)
		ctx.dropCap(tok)
	case usfm.Heading:
		ctx.flushBlock()
		ctx.heading(tok.Text)
	case usfm.Paragraph:
		ctx.flushBlock()
		ctx.startBlock(blockProse, 0)
	case usfm.Poetry:
		ctx.flushBlock()
		ctx.startBlock(blockPoetry, tok.Level)
	case usfm.Book:
		ctx.flushBlock()
		ctx.startBlock(blockPlain, 0)
	}
}

func (ctx *flowContext) finish() *Result {
	ctx.flushBlock()
	pages := ctx.collector.pages()
	return &Result{
		Pages: pages,
		Index: NewIndex(ctx.entries),
		Dims:  ctx.dims,
		Geometry: Geometry{
			PageCount: len(pages),
			LastTop:   math.Max(ctx.cursorY, ctx.capBottom),
		},
	}
}

func (ctx *flowContext) startBlock(kind blockKind, level int) {
	ctx.block = kind
	ctx.level = level
}

func (ctx *flowContext) style(cat scripture.Category) TextStyle {
	return ctx.e.styles[cat]
}

func (ctx *flowContext) measure(text string, s TextStyle) float64 {
	var w float64
	for _, r := range text {
		w += ctx.e.measurer.Advance(s.FontFamily, r, s.FontSize) + s.LetterSpacing
	}
	return w
}

// space 返回词间基础间距（不含两端对齐增量）。
func (ctx *flowContext) space(s TextStyle) float64 {
	return ctx.e.measurer.Advance(s.FontFamily, ' ', s.FontSize) + s.LetterSpacing + s.WordSpacing
}

func (ctx *flowContext) newItem(text string, cat scripture.Category) item {
	s := ctx.style(cat)
	return item{
		text:  text,
		cat:   cat,
		style: s,
		width: ctx.measure(text, s),
		gap:   ctx.space(s),
	}
}

func (ctx *flowContext) addWords(tok usfm.Token) {
	for _, w := range strings.Fields(tok.Text) {
		ctx.items = append(ctx.items, ctx.newItem(w, tok.Category))
	}
}

func (ctx *flowContext) addLabel(tok usfm.Token) {
	it := ctx.newItem(tok.Text, tok.Category)
	it.label = true
	it.ref = tok.Ref
	ctx.items = append(ctx.items, it)
}

func (ctx *flowContext) indent(first bool) float64 {
	switch ctx.block {
	case blockProse:
		if first && !ctx.afterCap {
			return ctx.e.opts.ParagraphIndent
		}
	case blockPoetry:
		level := float64(ctx.level)
		if !first {
			level++
		}
		return level * ctx.e.opts.PoetryIndent
	}
	return 0
}

func (ctx *flowContext) inset() float64 {
	if ctx.cursorY+epsilon < ctx.capBottom {
		return ctx.capInset
	}
	return 0
}

func (ctx *flowContext) justifies() bool {
	return ctx.e.opts.Justify && ctx.block != blockPoetry
}

// flushBlock 把当前块的排版单元按行放置。
func (ctx *flowContext) flushBlock() {
	items := ctx.items
	ctx.items = nil
	first := true
	for len(items) > 0 {
		left := math.Min(ctx.indent(first)+ctx.inset(), ctx.dims.Width)
		avail := ctx.dims.Width - left
		if ctx.inset() > 0 && items[0].width > avail+epsilon {
			// 章号旁放不下首个词，正文移到下沉区域以下
			ctx.cursorY = ctx.capBottom
			continue
		}
		n, natural := fill(items, avail)
		lh := lineHeight(items[:n])
		if ctx.cursorY+lh > ctx.dims.Height+epsilon && ctx.acc().body {
			ctx.pageBreak()
			continue
		}
		last := n == len(items)
		extra := 0.0
		if ctx.justifies() && !last && n > 1 && avail > natural {
			extra = (avail - natural) / float64(n-1)
		}
		ctx.placeLine(items[:n], left, lh, extra)
		items = items[n:]
		first = false
	}
}

// fill 返回能放入 avail 的前缀长度及其自然宽度；首项总会被放入。
// 行末的经节编号移到下一行，与其后的词保持在一起。
func fill(items []item, avail float64) (int, float64) {
	n := 1
	width := items[0].width
	for n < len(items) {
		next := width + items[n-1].gap + items[n].width
		if next > avail+epsilon {
			break
		}
		width = next
		n++
	}
	if n > 1 && n < len(items) && items[n-1].label {
		n--
		width = 0
		for i := 0; i < n; i++ {
			width += items[i].width
			if i > 0 {
				width += items[i-1].gap
			}
		}
	}
	return n, width
}

func lineHeight(items []item) float64 {
	var lh float64
	for _, it := range items {
		lh = math.Max(lh, it.style.LineHeight)
	}
	return lh
}

func (ctx *flowContext) placeLine(line []item, left, lh, extra float64) {
	acc := ctx.acc()
	page := ctx.collector.currIndex()
	x := left
	var run *Text
	flush := func() {
		if run != nil {
			acc.appendRun(*run)
			run = nil
		}
	}
	for i, it := range line {
		if it.label {
			ctx.entries = append(ctx.entries, IndexEntry{Page: page, Ref: it.ref})
		}
		if run != nil && run.Category == it.cat && !it.label && !line[i-1].label {
			run.Text += " " + it.text
			run.Rect.Width = x + it.width - run.Rect.Left
		} else {
			flush()
			style := it.style
			style.WordSpacing += extra
			run = &Text{
				Text:     it.text,
				Rect:     Rectangle{Top: ctx.cursorY, Left: x, Width: it.width, Height: lh},
				Style:    style,
				Category: it.cat,
			}
		}
		x += it.width
		if i < len(line)-1 {
			x += it.gap + extra
		}
	}
	flush()
	acc.body = true
	ctx.afterCap = false
	ctx.cursorY += lh
}

// newPage 开启新页，正文从页眉带下方开始。
func (ctx *flowContext) newPage() {
	ctx.collector.newPage()
	ctx.cursorY = ctx.dims.HeaderHeight
	ctx.capBottom = 0
	ctx.capInset = 0
	ctx.afterCap = false
}

// pageBreak 是流排溢出时的换页，按需重复页眉。
func (ctx *flowContext) pageBreak() {
	ctx.newPage()
	if ctx.e.opts.RunningHeader && ctx.header != "" && ctx.dims.HeaderHeight > 0 {
		ctx.placeHeader(ctx.header)
	}
}

func (ctx *flowContext) heading(text string) {
	if ctx.dims.HeaderHeight <= 0 {
		ctx.e.log.Debug("Header dropped, no header band", zap.String("text", text))
		return
	}
	ctx.header = text
	acc := ctx.acc()
	switch {
	case acc.body:
		ctx.newPage()
	case acc.header >= 0:
		acc.runs = append(acc.runs[:acc.header], acc.runs[acc.header+1:]...)
		acc.header = -1
	}
	ctx.placeHeader(text)
}

// placeHeader 在页眉带内居中放置页眉，不占用正文高度。
func (ctx *flowContext) placeHeader(text string) {
	s := ctx.style(scripture.Header)
	words := strings.Fields(text)
	var width float64
	for i, w := range words {
		if i > 0 {
			width += ctx.space(s)
		}
		width += ctx.measure(w, s)
	}
	hh := ctx.dims.HeaderHeight
	acc := ctx.acc()
	acc.header = len(acc.runs)
	acc.appendRun(Text{
		Text: strings.Join(words, " "),
		Rect: Rectangle{
			Top:    math.Max(0, (hh-s.LineHeight)/2),
			Left:   math.Max(0, (ctx.dims.Width-width)/2),
			Width:  math.Min(width, ctx.dims.Width),
			Height: math.Min(s.LineHeight, hh),
		},
		Style:    s,
		Category: scripture.Header,
	})
}

// dropCap 放置章号下沉字。所需高度为 DropCapPadding 加章号行高，
// 当前页剩余空间不足时换页。
func (ctx *flowContext) dropCap(tok usfm.Token) {
	s := ctx.style(scripture.Chapter)
	width := ctx.measure(tok.Text, s)
	ctx.cursorY = math.Max(ctx.cursorY, ctx.capBottom)
	needed := ctx.dims.DropCapPadding + s.LineHeight
	if ctx.cursorY+needed > ctx.dims.Height+epsilon && ctx.acc().body {
		ctx.pageBreak()
	}
	ctx.cursorY += ctx.dims.DropCapPadding
	top := ctx.cursorY
	ctx.entries = append(ctx.entries, IndexEntry{Page: ctx.collector.currIndex(), Ref: tok.Ref})
	acc := ctx.acc()
	acc.appendRun(Text{
		Text:     tok.Text,
		Rect:     Rectangle{Top: top, Left: 0, Width: math.Min(width, ctx.dims.Width), Height: s.LineHeight},
		Style:    s,
		Category: scripture.Chapter,
	})
	acc.body = true
	ctx.capBottom = top + s.LineHeight
	ctx.capInset = width + ctx.e.measurer.Advance(s.FontFamily, ' ', s.FontSize) + s.LetterSpacing
	ctx.afterCap = true
}
