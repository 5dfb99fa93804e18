package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"resume-screener-go/internal/api"
	"resume-screener-go/internal/config"
	"resume-screener-go/internal/constants"
	"resume-screener-go/internal/controller"
	"resume-screener-go/internal/history"
	"resume-screener-go/internal/logger"
	"resume-screener-go/internal/outbox"
	"resume-screener-go/internal/parser"
	"resume-screener-go/internal/storage"
	"resume-screener-go/internal/tracing"
	"resume-screener-go/internal/types"
	"resume-screener-go/internal/view"

	"github.com/google/uuid"
)

const shutdownTimeout = 10 * time.Second

// app 一次命令调用用到的所有组件
type app struct {
	cfg       *config.Config
	sessionID string
	out       io.Writer

	term   *view.Terminal
	ctrl   *controller.Controller
	store  *storage.Storage
	lister *history.Lister
	relay  *outbox.MessageRelay

	relayStarted bool
	probe        *parser.PreflightProbe
	shutdown     tracing.ShutdownFunc
}

// newApp 加载配置并组装客户端、控制器和可选的存储
func newApp(ctx context.Context, opts globalOptions, out io.Writer) (*app, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if err := applyOverrides(cfg, opts); err != nil {
		return nil, err
	}

	logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	logger.SetupHertz()

	shutdown, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		logger.Warn().Err(err).Msg("初始化追踪失败，继续运行")
	}

	sessionID := firstNonEmpty(opts.sessionID, cfg.Session.ID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	a := &app{cfg: cfg, sessionID: sessionID, out: out, shutdown: shutdown}
	ctx = a.withLogger(ctx)

	a.store, err = storage.NewStorage(ctx, cfg)
	if err != nil {
		// 存储是可选的，不影响与后端的交互
		logger.Ctx(ctx).Warn().Err(err).Msg("存储不可用，结果不会被归档")
		a.store = &storage.Storage{}
	}

	clientOpts := []api.Option{
		api.WithTimeout(cfg.Client.RequestTimeout()),
		api.WithDialTimeout(time.Duration(cfg.Client.DialTimeoutSeconds) * time.Second),
		api.WithMaxConnsPerHost(cfg.Client.MaxConnsPerHost),
		api.WithUserAgent(cfg.Client.UserAgent),
		api.WithRateLimit(cfg.Client.RequestsPerMinute),
		api.WithTracing(cfg.Tracing.Endpoint != ""),
	}
	if a.store.Redis != nil {
		clientOpts = append(clientOpts, api.WithSessionStore(a.store.Redis.SessionStore(sessionID, cfg.Session.SessionTTL())))
	}
	client, err := api.NewClient(cfg.Server.BaseURL, clientOpts...)
	if err != nil {
		a.Close()
		return nil, err
	}

	tabs, err := view.NewTabSet(cfg.UI.InitialTab)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("ui.initial_tab 无效: %w", err)
	}
	a.term = view.NewTerminal(out, view.ColorEnabled(cfg.UI.Color, out), tabs)

	ctrlOpts := []controller.Option{controller.WithUploadConfig(cfg.Upload)}
	if recorder := a.newRecorder(); recorder.Enabled() {
		ctrlOpts = append(ctrlOpts, controller.WithResultSink(recorder))
	}
	a.ctrl = controller.New(client, a.term, ctrlOpts...)

	a.lister = a.newLister()

	if a.store.MySQL != nil && a.store.RabbitMQ != nil {
		a.relay = outbox.NewMessageRelay(a.store.MySQL.DB(), a.store.RabbitMQ,
			outbox.WithPollingInterval(config.GetDuration(cfg.RabbitMQ.RelayInterval, constants.DefaultRelayInterval)))
	}

	logger.Ctx(ctx).Debug().
		Str("base_url", client.BaseURL()).
		Bool("archive", !a.store.Empty()).
		Msg("客户端初始化完成")
	return a, nil
}

// applyOverrides 命令行参数优先于配置文件和环境变量
func applyOverrides(cfg *config.Config, opts globalOptions) error {
	if opts.baseURL != "" {
		cfg.Server.BaseURL = strings.TrimRight(strings.TrimSpace(opts.baseURL), "/")
	}
	if opts.logLevel != "" {
		cfg.Logger.Level = opts.logLevel
	}
	if opts.noColor {
		cfg.UI.Color = "never"
	}
	return cfg.Validate()
}

// newRecorder 只挂载已初始化的存储，避免把nil指针包装成非nil接口
func (a *app) newRecorder() *history.Recorder {
	var opts []history.Option
	if a.store.MinIO != nil {
		opts = append(opts, history.WithReportStore(a.store.MinIO))
	}
	if a.store.MySQL != nil {
		opts = append(opts, history.WithArchive(a.store.MySQL))
		if a.store.RabbitMQ != nil {
			opts = append(opts, history.WithEvents(history.EventTarget{
				Exchange:   a.cfg.RabbitMQ.ScreeningEventsExchange,
				RoutingKey: a.cfg.RabbitMQ.CompletedRoutingKey,
			}))
		}
	}
	if a.store.Redis != nil {
		opts = append(opts, history.WithRecentCache(a.store.Redis, a.cfg.Session.SessionTTL()))
	}
	return history.NewRecorder(a.sessionID, opts...)
}

func (a *app) newLister() *history.Lister {
	var archive history.Archive
	var recent history.RecentCache
	if a.store.MySQL != nil {
		archive = a.store.MySQL
	}
	if a.store.Redis != nil {
		recent = a.store.Redis
	}
	return history.NewLister(archive, recent)
}

// withLogger 日志带上会话ID
func (a *app) withLogger(ctx context.Context) context.Context {
	return logger.WithContext(ctx, a.sessionID)
}

// startRelay shell模式下在后台发布事件
func (a *app) startRelay(ctx context.Context) {
	if a.relay == nil || a.relayStarted {
		return
	}
	a.relay.Start(ctx)
	a.relayStarted = true
}

// preflight 本地探测文本，只输出提示
func (a *app) preflight(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		a.term.Notice("Preflight: %s", constants.MsgFileUnreadable)
		return
	}
	if a.probe == nil {
		a.probe = parser.NewPreflightProbe(ctx)
	}
	report := a.probe.Probe(ctx, types.UploadFile{Name: path, Size: int64(len(data)), Content: data})
	renderPreflight(a.term, report)
}

func renderPreflight(term *view.Terminal, report parser.PreflightReport) {
	if !report.Supported {
		term.Notice("Preflight: %s", report.Warning)
		return
	}
	term.Notice("Preflight (%s): %d characters, %d words in %s",
		report.Extractor, report.Chars, report.Words, report.Elapsed.Round(time.Millisecond))
	if report.Snippet != "" {
		term.Notice("  %q", report.Snippet)
	}
	if report.Warning != "" {
		term.Notice("Preflight warning: %s", report.Warning)
	}
}

// reportFailure 控制器错误已在终端展示，其他错误在这里输出
func (a *app) reportFailure(err error, stderr io.Writer) {
	var (
		verr *controller.ValidationError
		rerr *controller.RemoteError
		terr *controller.TransportError
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &rerr), errors.As(err, &terr):
		logger.Debug().Err(err).Msg("命令失败")
	default:
		fmt.Fprintln(stderr, err)
	}
}

// Close 停止中继并在退出前发布剩余事件，然后关闭连接
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.relay != nil {
		if a.relayStarted {
			a.relay.Stop()
		}
		if err := a.relay.Flush(ctx); err != nil {
			logger.Warn().Err(err).Msg("退出前发布事件失败，事件保留在发件箱中")
		}
	}
	a.store.Close()
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil {
			logger.Warn().Err(err).Msg("关闭追踪失败")
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
