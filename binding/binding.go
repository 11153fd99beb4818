// Package binding 负责输出文件名模板中 ${path} 占位符的替换。
package binding

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/gosimple/slug"
)

var exprPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Interpolate 将文本中的 ${path.to.value} 替换为 data 中的值。
// 若 data 为空或路径不存在，则保留原占位符。
func Interpolate(text string, data any) string {
	if data == nil {
		return text
	}
	return exprPattern.ReplaceAllStringFunc(text, func(match string) string {
		if val, ok := lookup(match, data); ok {
			return fmt.Sprint(val)
		}
		return match
	})
}

// Unresolved 返回 text 中无法从 data 解析的占位符路径，按出现顺序，不去重。
func Unresolved(text string, data any) []string {
	var out []string
	for _, groups := range exprPattern.FindAllStringSubmatch(text, -1) {
		if _, ok := lookup(groups[0], data); !ok {
			out = append(out, strings.TrimSpace(groups[1]))
		}
	}
	return out
}

// OutputName 展开模板并将结果转换为适合作为文件名的 slug，再附加扩展名 ext（如 ".pdf"）。
// 未解析的占位符被丢弃；结果为空时使用 fallback。
func OutputName(tmpl string, data any, ext, fallback string) string {
	name := exprPattern.ReplaceAllString(Interpolate(tmpl, data), "")
	base := slug.Make(name)
	if base == "" {
		base = slug.Make(fallback)
	}
	if base == "" {
		base = "output"
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return base + ext
}

// OutputPath 与 OutputName 相同，但将结果放在 dir 目录下。
func OutputPath(dir, tmpl string, data any, ext, fallback string) string {
	return filepath.Join(dir, OutputName(tmpl, data, ext, fallback))
}

func lookup(match string, data any) (any, bool) {
	if data == nil {
		return nil, false
	}
	groups := exprPattern.FindStringSubmatch(match)
	if len(groups) < 2 {
		return nil, false
	}
	path := strings.TrimSpace(groups[1])
	if path == "" {
		return nil, false
	}
	return resolvePath(data, path)
}

func resolvePath(data any, path string) (any, bool) {
	current := data
	segments := strings.Split(path, ".")
	for _, segment := range segments {
		name, indexes := parseSegment(segment)
		if name != "" {
			var ok bool
			current, ok = descendMap(current, name)
			if !ok {
				return nil, false
			}
		}
		for _, idxStr := range indexes {
			idx, err := strconv.Atoi(idxStr)
			if err != nil {
				return nil, false
			}
			var ok bool
			current, ok = descendArray(current, idx)
			if !ok {
				return nil, false
			}
		}
	}
	return current, true
}

func parseSegment(segment string) (string, []string) {
	name := segment
	indexes := []string{}
	if i := strings.Index(segment, "["); i != -1 {
		name = segment[:i]
		rest := segment[i:]
		for len(rest) > 0 {
			if rest[0] != '[' {
				break
			}
			end := strings.IndexByte(rest, ']')
			if end == -1 {
				break
			}
			indexes = append(indexes, rest[1:end])
			rest = rest[end+1:]
		}
	}
	return name, indexes
}

func descendMap(current any, key string) (any, bool) {
	switch c := current.(type) {
	case map[string]any:
		val, ok := c[key]
		return val, ok
	case map[string]string:
		val, ok := c[key]
		return val, ok
	default:
		return nil, false
	}
}

func descendArray(current any, idx int) (any, bool) {
	switch c := current.(type) {
	case []any:
		if idx < 0 || idx >= len(c) {
			return nil, false
		}
		return c[idx], true
	case []string:
		if idx < 0 || idx >= len(c) {
			return nil, false
		}
		return c[idx], true
	default:
		return nil, false
	}
}
