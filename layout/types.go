package layout

import (
	"fmt"

	"github.com/ByLCY/scriptorium/scripture"
)

// 该文件定义布局结果的数据结构，供排版、归档、渲染与调试 JSON 共用。
// 所有长度均为布局单位（pt），原点位于页面左上角。

// TextStyle 描述某一类文本的字体与度量参数。
type TextStyle struct {
	FontFamily    string  `json:"fontFamily"`
	FontSize      float64 `json:"fontSize"`
	LineHeight    float64 `json:"lineHeight"`
	LetterSpacing float64 `json:"letterSpacing"`
	WordSpacing   float64 `json:"wordSpacing"`
}

// Rectangle 为页面内坐标。
type Rectangle struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rectangle) Bottom() float64 { return r.Top + r.Height }
func (r Rectangle) Right() float64  { return r.Left + r.Width }

// Text 是一个已定位的文本片段（run）。Style.WordSpacing 为两端对齐后的实际词距。
type Text struct {
	Text     string             `json:"text"`
	Rect     Rectangle          `json:"rect"`
	Style    TextStyle          `json:"style"`
	Category scripture.Category `json:"category"`
}

// Page 按绘制顺序保存页面上的 run。
type Page struct {
	Runs []Text `json:"runs"`
}

// Dimensions 描述页面尺寸与保留区域。
// HeaderHeight 为每页顶部的页眉带；DropCapPadding 为章号下沉字前额外保留的纵向空间。
type Dimensions struct {
	Width          float64 `json:"width"`
	Height         float64 `json:"height"`
	HeaderHeight   float64 `json:"headerHeight"`
	DropCapPadding float64 `json:"dropCapPadding"`
}

// Validate 检查页面尺寸是否可用于排版。
func (d Dimensions) Validate() error {
	switch {
	case !(d.Width > 0):
		return &ConfigError{Field: "dimensions.width", Err: fmt.Errorf("%w: %g", ErrInvalidDimensions, d.Width)}
	case !(d.Height > 0):
		return &ConfigError{Field: "dimensions.height", Err: fmt.Errorf("%w: %g", ErrInvalidDimensions, d.Height)}
	case !(d.HeaderHeight >= 0):
		return &ConfigError{Field: "dimensions.headerHeight", Err: fmt.Errorf("%w: %g", ErrInvalidDimensions, d.HeaderHeight)}
	case d.HeaderHeight >= d.Height:
		return &ConfigError{Field: "dimensions.headerHeight", Err: fmt.Errorf("%w: 页眉高度 %g 不小于页面高度 %g", ErrInvalidDimensions, d.HeaderHeight, d.Height)}
	case !(d.DropCapPadding >= 0):
		return &ConfigError{Field: "dimensions.dropCapPadding", Err: fmt.Errorf("%w: %g", ErrInvalidDimensions, d.DropCapPadding)}
	}
	return nil
}

// Geometry 为排版结束时的最终几何信息。
type Geometry struct {
	PageCount int     `json:"pageCount"`
	LastTop   float64 `json:"lastTop"` // 最后一页正文游标位置
}

// Result 保存排版后的页面与索引。
type Result struct {
	Pages    []Page     `json:"pages"`
	Index    *Index     `json:"index"`
	Dims     Dimensions `json:"dimensions"`
	Geometry Geometry   `json:"geometry"`
}

// NumPages 返回页数。
func (r *Result) NumPages() int { return len(r.Pages) }

// Page 返回第 n 页（从 0 开始）。
func (r *Result) Page(n int) (Page, error) {
	if n < 0 || n >= len(r.Pages) {
		return Page{}, fmt.Errorf("%w: %d (共 %d 页)", ErrPageOutOfRange, n, len(r.Pages))
	}
	return r.Pages[n], nil
}

// Dimensions 返回排版时使用的页面尺寸。
func (r *Result) Dimensions() Dimensions { return r.Dims }
