// Command workstalkd is the CLI front-end for the work-queue server (spec
// §6): flag parsing, daemonization, signal handling, and process exit codes
// are all collaborators specified only at their interface — the job
// lifecycle engine itself lives in internal/engine and knows nothing about
// any of this. Built in the teacher's idiom (rzbill-flo's cmd/flo/main.go):
// a spf13/cobra root command with a long-running RunE.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/workstalk/workstalk/internal/config"
	"github.com/workstalk/workstalk/internal/engine"
	"github.com/workstalk/workstalk/internal/metrics"
	"github.com/workstalk/workstalk/internal/server"
	logpkg "github.com/workstalk/workstalk/pkg/log"
)

// Exit codes (spec §6): 0 normal/-h, 1 setup failure, 2 resource-limit
// failure, 5 usage error, 111 fatal initialization error.
const (
	exitOK            = 0
	exitSetupFailure  = 1
	exitResourceLimit = 2
	exitUsage         = 5
	exitFatalInit     = 111
)

// cliError carries the process exit code a failure should produce, so main
// can translate any error from Execute into the right code without string
// matching.
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var (
		flagDetach      bool
		flagPort        int
		flagConfig      string
		flagHeapSize    int
		flagMaxJobSize  int
		flagLogLevel    string
		flagLogFormat   string
		flagMetricsAddr string
	)

	root := &cobra.Command{
		Use:           "workstalkd",
		Short:         "workstalkd is an in-memory work-queue server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flagDetach {
				return detach()
			}
			return serve(serveOptions{
				port:        flagPort,
				configPath:  flagConfig,
				heapSize:    flagHeapSize,
				maxJobSize:  flagMaxJobSize,
				logLevel:    flagLogLevel,
				logFormat:   flagLogFormat,
				metricsAddr: flagMetricsAddr,
			})
		},
	}
	root.Flags().BoolVarP(&flagDetach, "detach", "d", false, "daemonize: fork to the background and exit the parent")
	root.Flags().IntVar(&flagPort, "port", 0, "TCP listen port (default 11300, overrides --config)")
	root.Flags().StringVar(&flagConfig, "config", "", "path to a config file (json/yaml/toml, sniffed by extension)")
	root.Flags().IntVar(&flagHeapSize, "heap-size", 0, "shared ready+delay queue capacity (default 16 Mi entries)")
	root.Flags().IntVar(&flagMaxJobSize, "max-job-size", 0, "largest accepted job body in bytes (default 65535)")
	root.Flags().StringVar(&flagLogLevel, "log-level", "", "debug|info|warn|error (default info)")
	root.Flags().StringVar(&flagLogFormat, "log-format", "", "text|json (default text)")
	root.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "address to serve Prometheus /metrics on (default disabled)")

	root.SetArgs(args)
	root.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		fmt.Fprintln(os.Stderr, c.UsageString())
		return &cliError{code: exitUsage, err: err}
	})

	if err := root.Execute(); err != nil {
		var ce *cliError
		if as, ok := err.(*cliError); ok {
			ce = as
		} else {
			ce = &cliError{code: exitSetupFailure, err: err}
		}
		fmt.Fprintln(os.Stderr, ce.err)
		return ce.code
	}
	return exitOK
}

// detach re-execs the current binary with -d/--detach stripped, detached
// from the controlling terminal via Setsid, and exits the parent
// immediately — Go has no fork(2) equivalent, so this is the idiomatic
// re-exec-based daemonization used in place of it.
func detach() error {
	self, err := os.Executable()
	if err != nil {
		return &cliError{code: exitFatalInit, err: err}
	}

	var childArgs []string
	for _, a := range os.Args[1:] {
		if a == "-d" || a == "--detach" {
			continue
		}
		childArgs = append(childArgs, a)
	}

	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return &cliError{code: exitFatalInit, err: err}
	}
	defer devnull.Close()

	child := exec.Command(self, childArgs...)
	child.Stdin = devnull
	child.Stdout = devnull
	child.Stderr = devnull
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := child.Start(); err != nil {
		return &cliError{code: exitFatalInit, err: err}
	}
	return nil
}

type serveOptions struct {
	port        int
	configPath  string
	heapSize    int
	maxJobSize  int
	logLevel    string
	logFormat   string
	metricsAddr string
}

// serve wires config, logging, the engine, its timer driver, the TCP
// server, and the optional metrics listener, then blocks until a shutdown
// signal arrives. SIGPIPE is ignored (spec §6) since net.Conn write errors
// already surface through the normal error path; SIGUSR1 enters drain
// mode irreversibly; SIGINT/SIGTERM trigger graceful shutdown.
func serve(opts serveOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return &cliError{code: exitSetupFailure, err: err}
	}
	if opts.port != 0 {
		cfg.Port = opts.port
	}
	if opts.heapSize != 0 {
		cfg.HeapSize = opts.heapSize
	}
	if opts.maxJobSize != 0 {
		cfg.MaxJobSize = opts.maxJobSize
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.LogFormat = opts.logFormat
	}
	if opts.metricsAddr != "" {
		cfg.MetricsAddr = opts.metricsAddr
	}

	logger, err := logpkg.ApplyConfig(&logpkg.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		logger.Warn("falling back to default log level", logpkg.Err(err))
	}
	logpkg.RedirectStdLog(logger)

	signal.Ignore(syscall.SIGPIPE)

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	eng := engine.New(cfg, logger)

	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, syscall.SIGUSR1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-usr1:
				logger.Info("received SIGUSR1: entering drain mode")
				eng.EnterDrain()
			}
		}
	}()

	go eng.RunTimer(ctx)

	srv := server.New(eng, logger, cfg.MaxJobSize)

	errCh := make(chan error, 2)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		if err := srv.ListenAndServe(ctx, addr); err != nil {
			errCh <- err
		}
	}()

	if cfg.MetricsAddr != "" {
		msrv := metrics.NewServer(eng, cfg.MetricsAddr, logger)
		go func() {
			if err := msrv.ListenAndServe(ctx); err != nil {
				errCh <- err
			}
		}()
	}

	logger.Info("workstalkd started", logpkg.Int("port", cfg.Port), logpkg.Int("heap_size", cfg.HeapSize))

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err := <-errCh:
		return &cliError{code: exitFatalInit, err: err}
	}
}
