package layout

import "go.uber.org/zap"

// Options 配置排版引擎。
type Options struct {
	Logger *zap.Logger
	// Measurer 为空时使用引擎自带的字体注册表测量字宽。
	Measurer Measurer
	// Justify 控制段落（非诗歌）除末行外是否两端对齐。
	Justify bool
	// ParagraphIndent 为 \p 段落首行缩进。
	ParagraphIndent float64
	// PoetryIndent 为每级诗歌缩进，续行额外再缩进一级。
	PoetryIndent float64
	// RunningHeader 为真时，换页后在页眉带重复最近一次的页眉。
	RunningHeader bool
}

// DefaultOptions 返回默认配置。
func DefaultOptions() Options {
	return Options{
		Justify:         true,
		ParagraphIndent: 20,
		PoetryIndent:    20,
	}
}

// Measurer 返回某字体族中单个字符在给定字号下的步进宽度（布局单位）。
type Measurer interface {
	Advance(family string, r rune, size float64) float64
}
