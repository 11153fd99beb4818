// Package canvasrenderer draws laid out pages into PDF via github.com/tdewolff/canvas.
package canvasrenderer

import (
	"bytes"
	"fmt"
	"image/color"
	"strings"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"
	"go.uber.org/zap"

	"github.com/ByLCY/scriptorium/fonts"
	"github.com/ByLCY/scriptorium/layout"
	"github.com/ByLCY/scriptorium/renderer"
	"github.com/ByLCY/scriptorium/scripture"
	"github.com/ByLCY/scriptorium/units"
)

const guideStrokeWidth = 0.1

var defaultTextColor = canvas.RGBA(30.0/255.0, 30.0/255.0, 30.0/255.0, 1.0)

// Renderer draws pages via github.com/tdewolff/canvas. Glyphs come from the
// same font registry the layout engine measured with, so words land exactly
// where the layout placed them.
type Renderer struct {
	log   *zap.Logger
	fonts *fonts.Registry
	opts  Options
}

var _ renderer.Renderer = (*Renderer)(nil)

// Meta is written into the PDF information dictionary.
type Meta struct {
	Title    string
	Subject  string
	Keywords []string
	Author   string
	Creator  string
}

// Options configures the canvas renderer.
type Options struct {
	Logger *zap.Logger
	Meta   Meta
	// Colors overrides the text color per category.
	Colors map[scripture.Category]color.Color
	// Guides outlines every run rectangle and the header band.
	Guides bool
}

// NewRenderer creates a renderer drawing with the fonts in reg.
func NewRenderer(reg *fonts.Registry, opts Options) *Renderer {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if reg == nil {
		reg = fonts.NewRegistry(log)
	}
	return &Renderer{log: log, fonts: reg, opts: opts}
}

// Render renders every page of src into a PDF byte slice.
func (r *Renderer) Render(src renderer.Source) ([]byte, error) {
	if src == nil {
		return nil, fmt.Errorf("渲染源为空")
	}
	if src.NumPages() == 0 {
		return nil, fmt.Errorf("缺少可渲染的页面")
	}

	dims := src.Dimensions()
	width, height := toMm(dims.Width), toMm(dims.Height)

	var buf bytes.Buffer
	writer := pdf.New(&buf, width, height, nil)
	r.applyMeta(writer)
	for n := 0; n < src.NumPages(); n++ {
		page, err := src.Page(n)
		if err != nil {
			return nil, fmt.Errorf("读取第 %d 页失败: %w", n, err)
		}
		if n > 0 {
			writer.NewPage(width, height)
		}
		c := canvas.New(width, height)
		ctx := canvas.NewContext(c)
		ctx.SetCoordSystem(canvas.CartesianIV) // 使坐标与布局保持左上角为原点

		if r.opts.Guides {
			r.drawGuides(ctx, dims, page)
		}
		for _, run := range page.Runs {
			r.drawRun(ctx, run)
		}
		c.RenderTo(writer)
		r.log.Debug("Page rendered", zap.Int("page", n), zap.Int("runs", len(page.Runs)))
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) applyMeta(writer *pdf.PDF) {
	meta := r.opts.Meta
	writer.SetInfo(meta.Title, meta.Subject, strings.Join(meta.Keywords, ", "), meta.Author, meta.Creator)
}

func (r *Renderer) textColor(cat scripture.Category) color.Color {
	if c, ok := r.opts.Colors[cat]; ok && c != nil {
		return c
	}
	return defaultTextColor
}

// drawRun draws the words of a run one at a time. Words are separated by a
// space advance plus the run's letter and resolved word spacing, the same
// gap the layout used when it justified the line.
func (r *Renderer) drawRun(ctx *canvas.Context, run layout.Text) {
	st := run.Style
	face := r.fonts.Face(st.FontFamily, st.FontSize, r.textColor(run.Category))
	baseline := toMm(run.Rect.Top) + face.Metrics().Ascent
	gap := r.fonts.Advance(st.FontFamily, ' ', st.FontSize) + st.LetterSpacing + st.WordSpacing

	x := run.Rect.Left
	for i, word := range strings.Split(run.Text, " ") {
		if i > 0 {
			x += gap
		}
		x += r.drawWord(ctx, face, word, x, baseline, st)
	}
}

// drawWord draws word with its left edge at x (pt) and returns its advance (pt).
func (r *Renderer) drawWord(ctx *canvas.Context, face *canvas.FontFace, word string, x, baseline float64, st layout.TextStyle) float64 {
	if st.LetterSpacing == 0 {
		if word != "" {
			ctx.DrawText(toMm(x), baseline, canvas.NewTextLine(face, word, canvas.Left))
		}
		return r.measure(word, st)
	}
	var w float64
	for _, ch := range word {
		ctx.DrawText(toMm(x+w), baseline, canvas.NewTextLine(face, string(ch), canvas.Left))
		w += r.fonts.Advance(st.FontFamily, ch, st.FontSize) + st.LetterSpacing
	}
	return w
}

func (r *Renderer) measure(word string, st layout.TextStyle) float64 {
	var w float64
	for _, ch := range word {
		w += r.fonts.Advance(st.FontFamily, ch, st.FontSize) + st.LetterSpacing
	}
	return w
}

// drawGuides outlines the header band and every run rectangle.
func (r *Renderer) drawGuides(ctx *canvas.Context, dims layout.Dimensions, page layout.Page) {
	ctx.SetFillColor(color.RGBA{0, 0, 0, 0})
	ctx.SetStrokeWidth(guideStrokeWidth)
	if dims.HeaderHeight > 0 {
		ctx.SetStrokeColor(canvas.RGBA(0.2, 0.4, 0.8, 1.0))
		ctx.DrawPath(0, 0, canvas.Rectangle(toMm(dims.Width), toMm(dims.HeaderHeight)))
	}
	ctx.SetStrokeColor(canvas.RGBA(0.8, 0.3, 0.3, 1.0))
	for _, run := range page.Runs {
		rc := run.Rect
		ctx.DrawPath(toMm(rc.Left), toMm(rc.Top), canvas.Rectangle(toMm(rc.Width), toMm(rc.Height)))
	}
}

// toMm 将点(pt)转换为毫米(mm)。
func toMm(pt float64) float64 { return pt * units.PtToMm }
