package config

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ByLCY/scriptorium/fonts"
	"github.com/ByLCY/scriptorium/layout"
	"github.com/ByLCY/scriptorium/scripture"
	"github.com/ByLCY/scriptorium/units"
)

// Dimensions converts page geometry to layout units.
func (p *PageConfig) Dimensions() layout.Dimensions {
	return layout.Dimensions{
		Width:          p.Width.ToPT(),
		Height:         p.Height.ToPT(),
		HeaderHeight:   p.HeaderHeight.ToPT(),
		DropCapPadding: p.DropCapPadding.ToPT(),
	}
}

// TextStyle converts a style to layout units.
func (s *StyleConfig) TextStyle() layout.TextStyle {
	return layout.TextStyle{
		FontFamily:    s.Font,
		FontSize:      s.Size.ToPT(),
		LineHeight:    s.LineHeight.Resolve(s.Size, units.UnitPT),
		LetterSpacing: s.LetterSpacing.ToPT(),
		WordSpacing:   s.WordSpacing.ToPT(),
	}
}

// Style returns the configured style of a category.
func (s *StylesConfig) Style(cat scripture.Category) (StyleConfig, bool) {
	switch cat {
	case scripture.Verse:
		return s.Verse, true
	case scripture.Normal:
		return s.Normal, true
	case scripture.Header:
		return s.Header, true
	case scripture.Chapter:
		return s.Chapter, true
	}
	return StyleConfig{}, false
}

// Options converts layout settings to engine options.
func (l *LayoutConfig) Options(log *zap.Logger) layout.Options {
	return layout.Options{
		Logger:          log,
		Justify:         l.Justify,
		ParagraphIndent: l.ParagraphIndent.ToPT(),
		PoetryIndent:    l.PoetryIndent.ToPT(),
		RunningHeader:   l.RunningHeader,
	}
}

// NewEngine builds a layout engine with every configured font family and
// category style registered.
func (cfg *Config) NewEngine(log *zap.Logger) (*layout.Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	e := layout.NewEngine(cfg.Layout.Options(log))
	for _, f := range cfg.Fonts {
		data, err := fonts.Load(f.Src)
		if err != nil {
			return nil, fmt.Errorf("font %s: %w", f.Name, err)
		}
		e.RegisterFontFamily(f.Name, data)
		log.Debug("Font registered", zap.String("name", f.Name), zap.String("src", f.Src), zap.Int("size", len(data)))
	}
	for _, cat := range scripture.Categories() {
		s, _ := cfg.Styles.Style(cat)
		e.RegisterStyle(cat, s.TextStyle())
	}
	return e, nil
}
