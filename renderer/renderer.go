package renderer

import (
	"fmt"

	"github.com/ByLCY/scriptorium/layout"
)

// Source 是可按页随机访问的排版结果。*layout.Result 与 *archive.Pages 均满足该接口，
// 因此渲染既可直接使用排版输出，也可使用重新加载的归档。
type Source interface {
	NumPages() int
	Page(n int) (layout.Page, error)
	Dimensions() layout.Dimensions
}

// Renderer 将页面输出为最终文件，例如 PDF。
// Render 返回生成的二进制数据（例如 PDF 字节切片）以及可能的错误。
type Renderer interface {
	Render(src Source) ([]byte, error)
}

// Slice 返回 src 中 [from, to) 页组成的视图。
func Slice(src Source, from, to int) (Source, error) {
	if from < 0 || to > src.NumPages() || from > to {
		return nil, fmt.Errorf("%w: 页范围 [%d, %d) 超出 0..%d", layout.ErrPageOutOfRange, from, to, src.NumPages())
	}
	return &slice{src: src, from: from, to: to}, nil
}

type slice struct {
	src      Source
	from, to int
}

func (s *slice) NumPages() int                 { return s.to - s.from }
func (s *slice) Dimensions() layout.Dimensions { return s.src.Dimensions() }

func (s *slice) Page(n int) (layout.Page, error) {
	if n < 0 || n >= s.NumPages() {
		return layout.Page{}, fmt.Errorf("%w: %d (共 %d 页)", layout.ErrPageOutOfRange, n, s.NumPages())
	}
	return s.src.Page(s.from + n)
}
