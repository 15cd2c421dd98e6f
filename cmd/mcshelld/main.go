// Command mcshelld runs the Model Context Shell daemon, serving the
// pipeline execution engine over stdio JSON-RPC, HTTP, or both.
//
// Usage:
//
//	mcshelld serve --transport stdio
//	mcshelld serve --transport http --http-addr :8080
//	mcshelld serve --transport both --http-addr :8080
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mcshell/mcshell"
)

// CLI defines mcshelld's command-line surface.
type CLI struct {
	Serve   ServeCmd   `cmd:"" help:"Start the shell daemon."`
	Version VersionCmd `cmd:"" help:"Show version information."`

	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info" enum:"debug,info,warn,error"`
	EnvFile  string `help:"Path to a .env file to load before reading other flags." type:"path"`
}

// defaultHTTPAddr is the value HTTPAddr carries when neither
// --http-addr nor MCSHELL_BIND_ADDR was given, used to detect when the
// containerized bind-address default applies.
const defaultHTTPAddr = ":8080"

// VersionCmd prints the daemon's build version.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println("mcshelld 0.1.0")
	return nil
}

// ServeCmd starts the daemon and blocks until it receives SIGINT or
// SIGTERM.
type ServeCmd struct {
	Config    string `help:"Path to a YAML config file; flags and env vars override it." type:"path"`
	Transport string `help:"Which transport(s) to serve: stdio, http, or both." default:"stdio" enum:"stdio,http,both"`
	HTTPAddr  string `name:"http-addr" help:"Address the HTTP transport listens on." default:":8080" env:"MCSHELL_BIND_ADDR"`

	RuntimeAddr string `name:"runtime-addr" help:"Runtime registry address used to resolve remote tool servers." env:"MCSHELL_RUNTIME_ADDR"`

	MaxStageInputBytes int64         `name:"max-stage-input-bytes" help:"Max bytes a single stage reads from its upstream." env:"MCSHELL_MAX_STAGE_INPUT_BYTES"`
	MaxBufferBytes     int64         `name:"max-buffer-bytes" help:"Max bytes a save_to buffer may accumulate." env:"MCSHELL_MAX_BUFFER_BYTES"`
	MaxOutputBytes     int64         `name:"max-output-bytes" help:"Max bytes returned in a pipeline's final output." env:"MCSHELL_MAX_OUTPUT_BYTES"`
	SubprocessTimeout  time.Duration `name:"subprocess-timeout" help:"Wall-clock limit for a single command stage." env:"MCSHELL_SUBPROCESS_TIMEOUT"`
	ToolTimeout        time.Duration `name:"tool-timeout" help:"Wall-clock limit for a single remote tool invocation." env:"MCSHELL_TOOL_TIMEOUT"`
	MaxForEachItems    int           `name:"max-foreach-items" help:"Max JSON-lines a for_each stage may fan out to." env:"MCSHELL_MAX_FOREACH_ITEMS"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cli.LogLevel),
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		cancel()
	}()

	fileCfg, err := mcshell.LoadConfig(c.Config)
	if err != nil {
		return err
	}

	limits := c.limits(fileCfg.ApplyLimits(mcshell.DefaultLimits()))

	runtimeAddr := c.RuntimeAddr
	if runtimeAddr == "" {
		runtimeAddr = fileCfg.RuntimeAddr
	}

	if c.HTTPAddr == defaultHTTPAddr && fileCfg.HTTPAddr != "" {
		c.HTTPAddr = fileCfg.HTTPAddr
	}
	c.HTTPAddr = bindAddr(c.HTTPAddr, runtimeAddr)

	var registry mcshell.RegistryClient
	switch {
	case len(fileCfg.Servers) > 0:
		registry = mcshell.NewStaticRegistryClient(fileCfg.Servers)
	case runtimeAddr != "":
		registry = mcshell.NewHTTPRegistryClient(runtimeAddr)
	default:
		log.Warn("no runtime registry or static servers configured; remote tool servers are unreachable")
		registry = mcshell.NewHTTPRegistryClient("")
	}

	metricsReg := prometheus.NewRegistry()
	metrics := mcshell.NewMetrics()
	metricsReg.MustRegister(metrics.Collectors()...)

	shell := mcshell.NewShell(
		mcshell.WithLimits(limits),
		mcshell.WithLogger(log),
		mcshell.WithRegistry(registry),
		mcshell.WithMetrics(metrics),
	)
	defer shell.Close()

	switch c.Transport {
	case "stdio":
		return c.serveStdio(ctx, shell, log)
	case "http":
		return c.serveHTTP(ctx, shell, log, metricsReg)
	case "both":
		errCh := make(chan error, 2)
		go func() { errCh <- c.serveStdio(ctx, shell, log) }()
		go func() { errCh <- c.serveHTTP(ctx, shell, log, metricsReg) }()
		return <-errCh
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
}

func (c *ServeCmd) serveStdio(ctx context.Context, shell *mcshell.Shell, log *slog.Logger) error {
	transport := mcshell.NewStdioTransport(os.Stdin, os.Stdout)
	server := mcshell.NewServer(shell, transport, log)
	log.Info("serving stdio JSON-RPC")
	return server.Serve(ctx)
}

func (c *ServeCmd) serveHTTP(ctx context.Context, shell *mcshell.Shell, log *slog.Logger, metricsReg *prometheus.Registry) error {
	handler := mcshell.NewHTTPHandler(shell, log)
	handler.Router().Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:    c.HTTPAddr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving HTTP", "addr", c.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (c *ServeCmd) limits(base mcshell.EngineLimits) mcshell.EngineLimits {
	limits := base
	if c.MaxStageInputBytes > 0 {
		limits.MaxStageInputBytes = c.MaxStageInputBytes
	}
	if c.MaxBufferBytes > 0 {
		limits.MaxBufferBytes = c.MaxBufferBytes
	}
	if c.MaxOutputBytes > 0 {
		limits.MaxOutputBytes = c.MaxOutputBytes
	}
	if c.SubprocessTimeout > 0 {
		limits.MaxSubprocessWall = c.SubprocessTimeout
	}
	if c.ToolTimeout > 0 {
		limits.MaxToolWall = c.ToolTimeout
	}
	if c.MaxForEachItems > 0 {
		limits.MaxForEachItems = c.MaxForEachItems
	}
	return limits
}

// bindAddr resolves the HTTP transport's bind address. An explicit
// --http-addr or MCSHELL_BIND_ADDR always wins; otherwise, once a
// runtime registry pointer is configured, the daemon is assumed to be
// running in a container and binds to all interfaces rather than the
// loopback-friendly default.
func bindAddr(httpAddr, runtimeAddr string) string {
	if httpAddr != defaultHTTPAddr || runtimeAddr == "" {
		return httpAddr
	}
	return "0.0.0.0" + defaultHTTPAddr
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	var cli CLI
	parser := kong.Must(&cli, kong.Name("mcshelld"), kong.Description("Model Context Shell daemon"))

	// A first, lightweight parse just to pull --env-file before the
	// real parse runs, since env-backed flag defaults are resolved at
	// parse time.
	if envFile := envFileFromArgs(os.Args[1:]); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			fmt.Fprintf(os.Stderr, "mcshelld: loading %s: %v\n", envFile, err)
			os.Exit(1)
		}
	} else {
		_ = godotenv.Load()
	}

	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "mcshelld: %v\n", err)
		os.Exit(1)
	}
}

func envFileFromArgs(args []string) string {
	for i, a := range args {
		if a == "--env-file" && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := cutPrefix(a, "--env-file="); ok {
			return v
		}
	}
	return ""
}

func cutPrefix(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):], true
	}
	return "", false
}
