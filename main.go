package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"seqpush/internal/agent"
	"seqpush/internal/config"
	"seqpush/internal/forwarder"
	"seqpush/internal/logging"
	"seqpush/internal/metrics"
)

func runApp(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	inputPath, _ := cmd.Flags().GetString("input")
	logLevel, _ := cmd.Flags().GetString("log-level")
	logFormat, _ := cmd.Flags().GetString("log-format")

	logger, err := logging.New(cmd.ErrOrStderr(), logLevel, logFormat)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	timing, err := cfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	pusher, err := forwarder.NewPusher(forwarder.PushOptions{
		URL:         cfg.PushgatewayURL,
		CounterName: cfg.CounterName,
		CounterHelp: cfg.CounterHelp,
		Instance:    cfg.Instance,
		Timeout:     timing.PushTimeout,
	})
	if err != nil {
		return err
	}

	input, closeInput, err := openInput(inputPath, cmd.InOrStdin())
	if err != nil {
		return err
	}
	defer closeInput()
	// A read blocked on a live stdin only returns once the file is closed.
	go func() {
		<-ctx.Done()
		closeInput()
	}()

	// Start Metrics Server
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	if metricsAddr != "" {
		startMetricsServer(ctx, metricsAddr, logger)
	}

	agent.New(&cfg, timing.PushInterval, pusher, logger).Run(ctx, input)
	level.Info(logger).Log("msg", "exiting")
	return nil
}

// loadConfig reads the config file, if any, and layers Seq's app settings
// from the environment on top. A missing default config file is not an
// error since Seq passes everything through the environment.
func loadConfig(path string, explicit bool) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return cfg, err
		}
		cfg = config.Config{}
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// openInput returns the event source and a close func that is safe to call
// more than once.
func openInput(path string, stdin io.Reader) (io.Reader, func(), error) {
	var r io.Reader = stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening input: %w", err)
		}
		r = f
	}
	var once sync.Once
	closeFn := func() {
		once.Do(func() {
			if c, ok := r.(io.Closer); ok {
				c.Close()
			}
		})
	}
	return r, closeFn, nil
}

func startMetricsServer(ctx context.Context, addr string, logger log.Logger) {
	metrics.Init()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		level.Info(logger).Log("msg", "metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			level.Error(logger).Log("msg", "metrics server failed", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "seq-pushgateway",
		Short: "A Seq app that counts log events in a Prometheus Pushgateway.",
		Long: `seq-pushgateway is a Seq app that reads log events as CLEF from stdin,
increments a Prometheus counter labeled by application name and message for each one,
and pushes the counter to a Prometheus Pushgateway.

Settings come from an optional config file and from the SEQ_APP_SETTING_* environment
variables Seq sets for the app instance; the environment wins.`,
		SilenceUsage: true,
		RunE:         runApp,
	}

	rootCmd.PersistentFlags().String("config", "config.yaml", "path to config file (.yaml or .toml)")
	rootCmd.PersistentFlags().String("input", "-", "file to read events from, - for stdin")
	rootCmd.PersistentFlags().String("metrics-addr", "", "address to bind the self-metrics server (e.g. :8080)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", logging.FormatLogfmt, "log format: logfmt or json")
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Cobra prints the error, so we just need to exit.
		os.Exit(1)
	}
}
