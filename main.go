package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"servos/api"
	servocli "servos/cli"
	"servos/config"
	"servos/logging"
	"servos/playback"
	"servos/store"
	"servos/studio"
)

func main() {
	app := &cli.App{
		Name:   "servos",
		Usage:  "舵机运动曲线编辑与回放服务",
		Flags:  servocli.Flags(),
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "启动 HTTP 编辑服务",
				Action: serve,
			},
			{
				Name:  "play",
				Usage: "载入工程并直接回放",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "for",
						Usage: "回放时长，0 表示直到收到退出信号",
					},
				},
				Action: play,
			},
			{
				Name:  "inspect",
				Usage: "以表格打印工程内容",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "samples",
						Usage: "额外打印每个通道的等间隔采样点数",
					},
				},
				Action: inspect,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (*zap.SugaredLogger, error) {
	return logging.NewLogger(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	})
}

func setup(c *cli.Context) (*config.Config, *zap.SugaredLogger, error) {
	cfg, err := servocli.ParseConfig(c)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func serve(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	logger.Infof("🔧 服务配置：")
	logger.Infof("   - 监听地址: %s", cfg.Addr())
	logger.Infof("   - 工程文件: %s (自动保存 %v)", cfg.Project.Path, cfg.Project.AutoSave)
	logger.Infof("   - 回放: 时长 %.2fs, 分辨率 %.0f/s, 缺失策略 %s", cfg.Playback.Duration, cfg.Playback.Resolution, cfg.Playback.MissPolicy)
	logger.Infof("   - 输出: %d 个", len(cfg.Transports))

	st, err := studio.FromConfig(cfg, logger)
	if err != nil {
		return err
	}

	server := api.NewServer(st, cfg.Server.StreamBuffer, logger)
	r := api.NewEngine(cfg.Server.EnableCORS, logger)
	server.SetupRoutes(r)

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("🌐 舵机曲线服务运行在 http://%s", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("🛑 收到退出信号，正在关闭服务")
	case err := <-errCh:
		if err != nil {
			logger.Errorf("❌ 服务启动失败: %v", err)
			server.Close()
			_ = st.Close()
			return err
		}
	}

	// SSE 连接先断开，否则 Shutdown 会一直等待
	server.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("⚠️ HTTP 服务关闭超时: %v", err)
	}
	if err := st.Close(); err != nil {
		return errors.Wrap(err, "关闭工作区失败")
	}
	logger.Info("👋 服务已退出")
	return nil
}

func play(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	// 回放时不改写工程文件
	cfg.Project.AutoSave = false
	st, err := studio.FromConfig(cfg, logger)
	if err != nil {
		return err
	}

	session, err := st.Start()
	if err != nil {
		_ = st.Close()
		return err
	}
	logger.Infof("▶️ 开始回放 (会话 %s)", session)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if d := c.Duration("for"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	<-ctx.Done()

	status := st.PlaybackStatus()
	st.Stop()
	fmt.Println(renderPlayback(status))
	return st.Close()
}

func renderPlayback(status playback.Status) string {
	t := table.NewWriter()
	t.SetTitle("回放统计")
	t.AppendHeader(table.Row{"Loops", "Position (s)", "Last (ms)", "Mean (ms)", "Std (ms)", "Max (ms)"})
	t.AppendRow(table.Row{
		status.Drift.Loops,
		fmt.Sprintf("%.3f", status.CurrentTime),
		fmt.Sprintf("%.2f", status.Drift.LastMs),
		fmt.Sprintf("%.2f", status.Drift.MeanMs),
		fmt.Sprintf("%.2f", status.Drift.StdMs),
		fmt.Sprintf("%.2f", status.Drift.MaxMs),
	})
	return t.Render()
}

func inspect(c *cli.Context) error {
	cfg, err := servocli.ParseConfig(c)
	if err != nil {
		return err
	}
	p, err := store.NewFileStore(cfg.Project.Path).Load()
	if err != nil {
		return err
	}
	if _, err := p.Build(); err != nil {
		return err
	}

	fmt.Println(p.String())
	if n := c.Int("samples"); n > 0 {
		samples, err := p.SamplesTable(n)
		if err != nil {
			return err
		}
		fmt.Println(samples)
	}
	return nil
}
