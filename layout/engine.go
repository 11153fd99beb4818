package layout

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ByLCY/scriptorium/fonts"
	"github.com/ByLCY/scriptorium/scripture"
	"github.com/ByLCY/scriptorium/usfm"
)

// Engine 持有样式表与字体注册表，负责把经文标记排版为页面。
// 注册与排版之间的同步由调用方负责；只读排版可并发进行。
type Engine struct {
	log      *zap.Logger
	opts     Options
	fonts    *fonts.Registry
	measurer Measurer
	styles   map[scripture.Category]TextStyle
}

// NewEngine 创建排版引擎。
func NewEngine(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		log:    log.Named("layout"),
		opts:   opts,
		fonts:  fonts.NewRegistry(log.Named("fonts")),
		styles: map[scripture.Category]TextStyle{},
	}
	e.measurer = opts.Measurer
	if e.measurer == nil {
		e.measurer = e.fonts
	}
	return e
}

// RegisterFontFamily 以 name 注册字体数据，重复注册时后者覆盖前者。
// 数据在首次测量时才解析，无法解析时回退到内置字体。
func (e *Engine) RegisterFontFamily(name string, data []byte) {
	e.fonts.Register(name, data)
}

// RegisterStyle 为类别注册样式，重复注册时后者覆盖前者。
func (e *Engine) RegisterStyle(cat scripture.Category, style TextStyle) {
	e.styles[cat] = style
}

// Style 返回已注册的样式。
func (e *Engine) Style(cat scripture.Category) (TextStyle, bool) {
	s, ok := e.styles[cat]
	return s, ok
}

// Fonts 返回引擎的字体注册表，渲染器借此取得字形。
func (e *Engine) Fonts() *fonts.Registry { return e.fonts }

// Layout 解析标记并排版。
func (e *Engine) Layout(markup []byte, dims Dimensions) (*Result, error) {
	return e.LayoutTokens(usfm.Tokenize(markup), dims)
}

// LayoutTokens 对已切分的 token 序列排版。配置错误在放置任何内容之前返回。
func (e *Engine) LayoutTokens(toks []usfm.Token, dims Dimensions) (*Result, error) {
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	for _, cat := range usfm.Categories(toks) {
		if cat == scripture.Header && dims.HeaderHeight == 0 {
			// 没有页眉带时页眉文本被丢弃，不需要样式
			continue
		}
		if err := e.checkStyle(cat); err != nil {
			return nil, err
		}
	}

	f := newFlow(e, dims)
	for _, tok := range toks {
		f.consume(tok)
	}
	res := f.finish()
	e.log.Debug("Layout finished",
		zap.Int("tokens", len(toks)),
		zap.Int("pages", len(res.Pages)),
		zap.Int("index", res.Index.Len()))
	return res, nil
}

func (e *Engine) checkStyle(cat scripture.Category) error {
	field := fmt.Sprintf("style[%s]", cat)
	s, ok := e.styles[cat]
	if !ok {
		return &ConfigError{Field: field, Err: ErrMissingStyle}
	}
	if !(s.FontSize > 0) {
		return &ConfigError{Field: field, Err: fmt.Errorf("%w: 字号 %g", ErrInvalidStyle, s.FontSize)}
	}
	if !(s.LineHeight > 0) {
		return &ConfigError{Field: field, Err: fmt.Errorf("%w: 行高 %g", ErrInvalidStyle, s.LineHeight)}
	}
	return nil
}

// DropCapStyle 由正文样式推导出跨两行的章号样式，需由调用方显式注册。
func DropCapStyle(normal TextStyle) TextStyle {
	return TextStyle{
		FontFamily: normal.FontFamily,
		FontSize:   normal.FontSize * 2,
		LineHeight: normal.LineHeight * 2,
	}
}
