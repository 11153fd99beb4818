package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/ByLCY/scriptorium/archive"
	"github.com/ByLCY/scriptorium/binding"
	"github.com/ByLCY/scriptorium/config"
	"github.com/ByLCY/scriptorium/layout"
	"github.com/ByLCY/scriptorium/renderer"
	canvasrenderer "github.com/ByLCY/scriptorium/renderer/canvas"
	"github.com/ByLCY/scriptorium/scripture"
)

const bundleExt = ".scrp.tar.xz"

// runLayout 串联读取、排版、归档与（可选）渲染。
func runLayout(ctx context.Context, cmd *cli.Command) error {
	env := envFromContext(ctx)
	if cmd.NArg() < 1 {
		return errors.New("缺少 SOURCE 参数")
	}
	src := cmd.Args().Get(0)
	dest := cmd.Args().Get(1)
	if dest == "" {
		dest = "."
	}

	markup, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("无法读取源文件 %s: %w", src, err)
	}
	engine, err := env.Cfg.NewEngine(env.Log)
	if err != nil {
		return fmt.Errorf("无法创建排版引擎: %w", err)
	}
	res, err := engine.Layout(markup, env.Cfg.Page.Dimensions())
	if err != nil {
		return fmt.Errorf("布局计算失败: %w", err)
	}

	name := cmd.String("name")
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	}
	bundle, err := archive.NewBundle(name, res)
	if err != nil {
		return fmt.Errorf("生成归档失败: %w", err)
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	vars := nameData(bundle.Manifest, res.Index)
	output := func(ext string) string {
		return binding.OutputPath(dest, env.Cfg.Output.NameTemplate, vars, ext, name)
	}
	if missing := binding.Unresolved(env.Cfg.Output.NameTemplate, vars); len(missing) > 0 {
		env.Log.Warn("Unresolved placeholders in output name template", zap.Strings("placeholders", missing))
	}

	bundlePath := output(bundleExt)
	if err := writeBundle(bundlePath, bundle); err != nil {
		return err
	}
	env.Log.Info("Layout completed",
		zap.String("bundle", bundlePath),
		zap.Int("pages", res.NumPages()),
		zap.Int("entries", res.Index.Len()),
		zap.Float64("last top", res.Geometry.LastTop))

	if cmd.Bool("json") || env.Cfg.Output.DebugJSON {
		if err := writeDebug(res, output(".json")); err != nil {
			return err
		}
	}
	if cmd.Bool("pdf") {
		r := canvasrenderer.NewRenderer(engine.Fonts(), canvasrenderer.Options{
			Logger: env.Log,
			Meta:   canvasrenderer.Meta{Title: name, Keywords: bundle.Manifest.Books, Creator: config.AppName},
		})
		if err := renderTo(r, res, output(".pdf")); err != nil {
			return err
		}
	}
	return nil
}

// runPage 打印第 PAGE 页的全部文本片段及其上的经文起点。
func runPage(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 2 {
		return errors.New("需要 BUNDLE 与 PAGE 参数")
	}
	n, err := strconv.Atoi(cmd.Args().Get(1))
	if err != nil {
		return fmt.Errorf("页码无效 %q: %w", cmd.Args().Get(1), err)
	}
	bundle, err := readBundle(cmd.Args().Get(0))
	if err != nil {
		return err
	}
	pages, err := bundle.OpenPages()
	if err != nil {
		return err
	}
	index, err := bundle.OpenIndex()
	if err != nil {
		return err
	}
	page, err := pages.Page(n)
	if err != nil {
		return err
	}
	entries, err := index.OnPage(n)
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	dims := pages.Dimensions()
	fmt.Fprintf(w, "page %d/%d  %gx%gpt  runs=%d\n", n, pages.NumPages(), dims.Width, dims.Height, len(page.Runs))
	for _, run := range page.Runs {
		fmt.Fprintf(w, "%-8s %8.2f %8.2f %8.2f %8.2f  %s\n",
			run.Category, run.Rect.Top, run.Rect.Left, run.Rect.Width, run.Rect.Height, run.Text)
	}
	for _, e := range entries {
		fmt.Fprintf(w, "ref %s\n", e.Ref)
	}
	return nil
}

// runLookup 打印经文引用所在页。
func runLookup(ctx context.Context, cmd *cli.Command) error {
	env := envFromContext(ctx)
	if cmd.NArg() < 2 {
		return errors.New("需要 BUNDLE 与 REFERENCE 参数")
	}
	ref, err := scripture.ParseReference(strings.Join(cmd.Args().Slice()[1:], " "))
	if err != nil {
		return err
	}
	bundle, err := readBundle(cmd.Args().Get(0))
	if err != nil {
		return err
	}
	index, err := bundle.OpenIndex()
	if err != nil {
		return err
	}
	ptr, ok := index.Find(ref)
	if !ok {
		return fmt.Errorf("未找到引用 %s", ref)
	}
	entry, err := index.Get(ptr)
	if err != nil {
		return err
	}
	env.Log.Debug("Reference resolved", zap.Stringer("ref", ref), zap.Stringer("entry", entry.Ref), zap.Uint32("pointer", uint32(ptr)))
	fmt.Fprintf(cmd.Root().Writer, "%s\tpage %d\t(%s)\n", ref, entry.Page, entry.Ref)
	return nil
}

// runRender 将归档中的页面渲染为 PDF，无需重新排版。
func runRender(ctx context.Context, cmd *cli.Command) error {
	env := envFromContext(ctx)
	if cmd.NArg() < 1 {
		return errors.New("缺少 BUNDLE 参数")
	}
	bundle, err := readBundle(cmd.Args().Get(0))
	if err != nil {
		return err
	}
	pages, err := bundle.OpenPages()
	if err != nil {
		return err
	}

	from, to := int(cmd.Int("from")), int(cmd.Int("to"))
	if to < 0 {
		to = pages.NumPages()
	}
	src, err := renderer.Slice(pages, from, to)
	if err != nil {
		return err
	}

	engine, err := env.Cfg.NewEngine(env.Log)
	if err != nil {
		return fmt.Errorf("无法加载字体: %w", err)
	}
	r := canvasrenderer.NewRenderer(engine.Fonts(), canvasrenderer.Options{
		Logger: env.Log,
		Guides: cmd.Bool("guides"),
		Meta:   canvasrenderer.Meta{Title: bundle.Manifest.Name, Keywords: bundle.Manifest.Books, Creator: config.AppName},
	})

	dest := cmd.Args().Get(1)
	if dest == "" {
		dest = binding.OutputName(env.Cfg.Output.NameTemplate, nameData(bundle.Manifest, nil), ".pdf", bundle.Manifest.Name)
	}
	return renderTo(r, src, dest)
}

// runVerify 校验摘要并逐页、逐条目解码。
func runVerify(ctx context.Context, cmd *cli.Command) error {
	env := envFromContext(ctx)
	if cmd.NArg() < 1 {
		return errors.New("缺少 BUNDLE 参数")
	}
	path := cmd.Args().Get(0)
	bundle, err := readBundle(path)
	if err != nil {
		return err
	}
	pages, err := bundle.OpenPages()
	if err != nil {
		return err
	}
	for n := 0; n < pages.NumPages(); n++ {
		if _, err := pages.Page(n); err != nil {
			return err
		}
	}
	index, err := bundle.OpenIndex()
	if err != nil {
		return err
	}
	if _, err := index.Index(); err != nil {
		return err
	}
	if pages.NumPages() != bundle.Manifest.Pages || index.Len() != bundle.Manifest.Entries {
		return fmt.Errorf("%w: 清单与内容不一致", archive.ErrFormat)
	}
	env.Log.Info("Bundle verified", zap.String("bundle", path), zap.Int("pages", pages.NumPages()), zap.Int("entries", index.Len()))
	fmt.Fprintf(cmd.Root().Writer, "%s: ok (%d pages, %d entries)\n", path, pages.NumPages(), index.Len())
	return nil
}

func outputConfiguration(ctx context.Context, cmd *cli.Command) error {
	env := envFromContext(ctx)
	if cmd.Args().Len() > 1 {
		env.Log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	fname := cmd.Args().Get(0)

	var (
		err   error
		data  []byte
		state string
	)

	out := cmd.Root().Writer
	if len(fname) > 0 {
		f, err := os.Create(fname)
		if err != nil {
			return fmt.Errorf("unable to create destination file '%s': %w", fname, err)
		}
		defer f.Close()
		out = f
	}

	if cmd.Bool("default") {
		state = "default"
		data, err = config.Prepare()
	} else {
		state = "actual"
		data, err = config.Dump(env.Cfg)
	}
	if err != nil {
		return fmt.Errorf("unable to get configuration: %w", err)
	}

	if len(fname) == 0 {
		fname = "STDOUT"
	}
	env.Log.Debug("Outputing configuration", zap.String("state", state), zap.String("file", fname))

	if _, err = out.Write(data); err != nil {
		return fmt.Errorf("unable to write configuration: %w", err)
	}
	return nil
}

// nameData 返回输出文件名模板可用的占位符。
func nameData(m archive.Manifest, index *layout.Index) map[string]any {
	vars := map[string]any{
		"name":    m.Name,
		"pages":   m.Pages,
		"entries": m.Entries,
		"books":   m.Books,
	}
	if index.Len() > 0 {
		first, _ := index.At(0)
		vars["first"] = first.Ref.String()
	}
	return vars
}

func readBundle(path string) (*archive.Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("无法打开归档 %s: %w", path, err)
	}
	defer f.Close()
	b, err := archive.ReadBundle(f)
	if err != nil {
		return nil, fmt.Errorf("读取归档 %s 失败: %w", path, err)
	}
	return b, nil
}

func writeBundle(path string, b *archive.Bundle) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("无法创建归档 %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("写入归档 %s 失败: %w", path, cerr)
		}
	}()
	if err := archive.WriteBundle(f, b); err != nil {
		return fmt.Errorf("写入归档 %s 失败: %w", path, err)
	}
	return nil
}

func renderTo(r renderer.Renderer, src renderer.Source, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	pdfBytes, err := r.Render(src)
	if err != nil {
		return fmt.Errorf("渲染 PDF 失败: %w", err)
	}
	if err := os.WriteFile(path, pdfBytes, 0o644); err != nil {
		return fmt.Errorf("写入 PDF 文件失败: %w", err)
	}
	return nil
}

func writeDebug(result *layout.Result, debugPath string) error {
	if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
		return fmt.Errorf("创建调试目录失败: %w", err)
	}
	if err := layout.WriteDebugJSON(result, debugPath); err != nil {
		return fmt.Errorf("输出调试 JSON 失败: %w", err)
	}
	return nil
}
