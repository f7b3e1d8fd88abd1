package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/blog-em/internal/api"
	"github.com/any-hub/blog-em/internal/blog"
	"github.com/any-hub/blog-em/internal/cache"
	"github.com/any-hub/blog-em/internal/config"
	"github.com/any-hub/blog-em/internal/logging"
	"github.com/any-hub/blog-em/internal/metrics"
	"github.com/any-hub/blog-em/internal/query"
	"github.com/any-hub/blog-em/internal/server"
	"github.com/any-hub/blog-em/internal/server/routes"
	"github.com/any-hub/blog-em/internal/transport"
	"github.com/any-hub/blog-em/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

const shutdownTimeout = 5 * time.Second

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["api_base_url"] = cfg.Global.APIBaseURL
		fields["resources"] = config.ResourceNames(cfg.Resources)
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	app, cleanup, err := buildApp(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化服务失败: %v\n", err)
		return 1
	}
	defer cleanup()

	fields := logging.BaseFields("startup", opts.configPath)
	fields["api_base_url"] = cfg.Global.APIBaseURL
	fields["listen_port"] = cfg.Global.ListenPort
	fields["stale_time"] = cfg.Global.StaleTime.DurationValue().String()
	fields["resources"] = config.ResourceNames(cfg.Resources)
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := serve(app, cfg.Global.ListenPort, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("blog-em", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 BLOG_EM_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("BLOG_EM_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

// buildApp 按“transport → api → cache → query client → blog service → Fiber”顺序组装，
// 所有请求共享同一份缓存与查询客户端。
func buildApp(cfg *config.Config, logger *logrus.Logger) (*fiber.App, func(), error) {
	recorder := metrics.New(nil)

	httpClient, err := transport.New(cfg.Global.APIBaseURL, transport.Options{
		HTTPClient: transport.NewHTTPClient(cfg.Global.RequestTimeout.DurationValue()),
		Logger:     logger,
		Headers:    http.Header{"User-Agent": {"blog-em/" + version.Version}},
	})
	if err != nil {
		return nil, nil, err
	}

	store := cache.NewStore(cache.StoreOptions{
		GCTime: cfg.Global.GCTime.DurationValue(),
		OnEvict: func(entry cache.Entry) {
			recorder.IncEviction(entry.Key.Resource())
			logger.WithFields(logging.QueryFields("cache_evict", entry.Key.String(), entry.Key.Resource(), string(entry.Status))).
				Debug("idle entry collected")
		},
	})

	client := query.NewClient(store, query.ClientOptions{
		StaleTime: cfg.Global.StaleTime.DurationValue(),
		GCTime:    cfg.Global.GCTime.DurationValue(),
		Retry: query.RetryPolicy{
			MaxRetries: cfg.Global.MaxRetries,
			BaseDelay:  cfg.Global.InitialBackoff.DurationValue(),
			MaxDelay:   cfg.Global.MaxBackoff.DurationValue(),
		},
		Logger:  logger,
		Metrics: recorder,
	})

	svc := blog.NewService(api.New(httpClient), client, blog.Options{
		PageSize:    cfg.Global.PageSize,
		MaxPostPage: cfg.Global.MaxPostPage,
		Policies:    blog.PoliciesFromConfig(cfg),
		Logger:      logger,
	})

	app, err := server.NewApp(server.AppOptions{
		Logger:  logger,
		Service: svc,
		Metrics: recorder,
	})
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	routes.RegisterDiagnosticsRoutes(app, svc, recorder.Handler())

	cleanup := func() {
		client.Close()
		store.Clear()
	}
	return app, cleanup, nil
}

// serve 监听端口直到收到 SIGINT/SIGTERM，然后优雅退出。
func serve(app *fiber.App, port int, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"action": "listen",
			"port":   port,
		}).Info("Fiber 服务启动")
		errCh <- app.Listen(fmt.Sprintf(":%d", port), fiber.ListenConfig{DisableStartupMessage: true})
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.WithField("action", "shutdown").Info("收到退出信号")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
