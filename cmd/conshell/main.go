// Command conshell runs the demo device console, either as a telnet server
// or directly on the local terminal in raw mode.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/TrailHuang/conshell/internal/config"
	"github.com/TrailHuang/conshell/internal/logbus"
	"github.com/TrailHuang/conshell/internal/server"
	"github.com/TrailHuang/conshell/internal/shell"
	"github.com/TrailHuang/conshell/internal/stream"
)

var version = "1.2.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath string
		listen  string
		local   bool
	)
	cmd := &cobra.Command{
		Use:           "conshell",
		Short:         "Interactive device console over telnet or the local terminal",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if cfgPath != "" {
				var err error
				cfg, err = config.Load(cfgPath)
				if err != nil {
					return err
				}
			}
			if listen != "" {
				cfg.Listen = listen
			}
			lvl, err := cfg.ZapLevel()
			if err != nil {
				return fmt.Errorf("log_level: %w", err)
			}
			level := zap.NewAtomicLevelAt(lvl)
			hub := logbus.NewHub()
			if local {
				return runLocal(cfg, hub, level)
			}
			return runServer(cmd.Context(), cfg, hub, level)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to YAML configuration")
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (overrides config)")
	cmd.Flags().BoolVar(&local, "local", false, "run a shell on the local terminal instead of serving telnet")
	return cmd
}

// runServer logs to stderr and to the hub, so every connected session sees
// the same stream of messages interleaved with its own editing.
func runServer(ctx context.Context, cfg *config.Config, hub *logbus.Hub, level zap.AtomicLevel) error {
	enc := zap.NewDevelopmentEncoderConfig()
	console := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(os.Stderr), level)
	logger := zap.New(zapcore.NewTee(console, hub.Core(level)))
	defer logger.Sync()

	reg := buildRegistry(logger.Named("cmd"), level)
	sv := server.New(cfg, reg, hub, logger)
	if err := sv.Start(); err != nil {
		return err
	}
	defer sv.Stop()

	err := sv.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runLocal puts stdin into raw mode and drives a single shell until it
// stops. Logs go only to the hub here; stderr would tear up the line editor.
func runLocal(cfg *config.Config, hub *logbus.Hub, level zap.AtomicLevel) error {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	logger := zap.New(hub.Core(level))
	reg := buildRegistry(logger.Named("cmd"), level)

	sched := shell.NewScheduler()
	st := stream.NewPipe(os.Stdin, os.Stdout)

	scfg := shell.DefaultConfig()
	scfg.Prompt = cfg.Prompt
	scfg.Welcome = cfg.Welcome
	scfg.MaxLineLen = cfg.MaxLineLen
	scfg.MaxHistory = cfg.MaxHistory
	scfg.LogDepth = cfg.LogDepth
	scfg.Hub = hub
	scfg.Logger = logger

	sh := shell.New(sched, reg, st, scfg)
	sh.SetEOTHook(func(s *shell.Shell) { s.Stop() })
	sh.Start()

	for sched.Len() > 0 {
		if st.EOF() && sh.Running() {
			sh.Stop()
		}
		sched.ServiceAll()
		time.Sleep(cfg.Poll())
	}
	os.Stdout.WriteString("\r\n")
	return nil
}
