package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/ByLCY/scriptorium/config"
)

var version = "dev"

// initializeAppContext 在命令行解析之后、子命令执行之前加载配置并创建日志。
func initializeAppContext(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	var err error

	if cmd.NArg() == 0 {
		return ctx, nil
	}

	env := envFromContext(ctx)

	configFile := cmd.String("config")
	if env.Cfg, err = config.LoadConfiguration(configFile); err != nil {
		return ctx, fmt.Errorf("无法加载配置: %w", err)
	}
	if cmd.Bool("debug") {
		env.Cfg.Logging.ConsoleLogger.Level = "debug"
	}
	if env.Log, err = env.Cfg.Logging.Prepare(); err != nil {
		return ctx, fmt.Errorf("无法创建日志: %w", err)
	}
	env.redirectStdLog()

	env.Log.Debug("Program started", zap.Strings("args", os.Args), zap.String("ver", version), zap.String("runtime", runtime.Version()))
	if len(configFile) == 0 {
		env.Log.Debug("Using defaults (no configuration file)")
	}
	return ctx, nil
}

func destroyAppContext(ctx context.Context, cmd *cli.Command) error {
	env := envFromContext(ctx)
	env.Log.Debug("Program ended", zap.Duration("elapsed", env.uptime()), zap.Strings("parsed args", cmd.Args().Slice()))
	env.restore()
	return nil
}

var errWasHandled bool

// exitErrHandler 在销毁上下文之前记录子命令返回的错误。
func exitErrHandler(ctx context.Context, _ *cli.Command, err error) {
	env := envFromContext(ctx)
	if env.Cfg != nil {
		env.Log.Error("Program ended with error", zap.Error(err))
		errWasHandled = true
	}
}

func usageErrorHandler(_ context.Context, _ *cli.Command, err error, _ bool) error {
	return err
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:            config.AppName,
		Usage:           "经文排版引擎：USFM 标记 → 分页布局 → 可随机访问的归档与 PDF",
		Version:         version + " (" + runtime.Version() + ")",
		HideHelpCommand: true,
		Before:          initializeAppContext,
		After:           destroyAppContext,
		OnUsageError:    usageErrorHandler,
		ExitErrHandler:  exitErrHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "从 `FILE` (YAML) 加载配置"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "控制台输出调试日志"},
		},
		Commands: []*cli.Command{
			{
				Name:         "layout",
				Usage:        "排版 USFM 文件并写出归档包",
				OnUsageError: usageErrorHandler,
				Action:       runLayout,
				ArgsUsage:    "SOURCE [DESTINATION]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "文档 `NAME`，默认取源文件名"},
					&cli.BoolFlag{Name: "pdf", Usage: "同时渲染 PDF"},
					&cli.BoolFlag{Name: "json", Usage: "同时输出布局调试 JSON"},
				},
			},
			{
				Name:         "page",
				Usage:        "打印归档包中某一页的文本片段",
				OnUsageError: usageErrorHandler,
				Action:       runPage,
				ArgsUsage:    "BUNDLE PAGE",
			},
			{
				Name:         "lookup",
				Usage:        "查找经文引用所在页",
				OnUsageError: usageErrorHandler,
				Action:       runLookup,
				ArgsUsage:    "BUNDLE REFERENCE",
			},
			{
				Name:         "render",
				Usage:        "将归档包渲染为 PDF",
				OnUsageError: usageErrorHandler,
				Action:       runRender,
				ArgsUsage:    "BUNDLE [DESTINATION]",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "from", Usage: "起始页（含）"},
					&cli.IntFlag{Name: "to", Value: -1, Usage: "结束页（不含），默认到最后一页"},
					&cli.BoolFlag{Name: "guides", Usage: "绘制文本框与页眉带辅助线"},
				},
			},
			{
				Name:         "verify",
				Usage:        "校验归档包的完整性",
				OnUsageError: usageErrorHandler,
				Action:       runVerify,
				ArgsUsage:    "BUNDLE",
			},
			{
				Name:         "dumpconfig",
				Usage:        "输出默认或当前生效的配置 (YAML)",
				OnUsageError: usageErrorHandler,
				Action:       outputConfiguration,
				ArgsUsage:    "DESTINATION",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "default", Usage: "输出内置的默认配置"},
				},
			},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(contextWithEnv(context.Background()), os.Interrupt, syscall.SIGTERM)

	var err error
	// NOTE: os.Exit is called at the end of main to set exit code, make sure
	// there are no other deffered functions after that
	defer func() {
		stop()
		if err != nil {
			if !errWasHandled {
				fmt.Fprintf(os.Stderr, "Program ended with error: %v\n", err)
			}
			os.Exit(1)
		}
	}()
	err = newApp().Run(ctx, os.Args)
}
