package main

import (
	"os"
	"runtime"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/TrailHuang/conshell/internal/registry"
	"github.com/TrailHuang/conshell/internal/shell"
	"github.com/TrailHuang/conshell/pkg/types"
)

// flagAuthed gates commands behind a successful login.
const flagAuthed types.Flags = 1 << 0

var startTime = time.Now()

func password() string {
	if p := os.Getenv("CONSHELL_PASSWORD"); p != "" {
		return p
	}
	return "admin"
}

func uptime() time.Duration {
	return time.Since(startTime).Truncate(time.Second)
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// buildRegistry assembles the demo command set shared by every session.
func buildRegistry(logger *zap.Logger, level zap.AtomicLevel) *registry.Registry {
	reg := registry.New()

	must(reg.Add(0, 0, []string{"show"}, nil, func(c types.Console, args []string) error {
		host, _ := os.Hostname()
		c.Printf("conshell %s on %s (%s/%s), up %s\n",
			version, host, runtime.GOOS, runtime.GOARCH, uptime())
		return nil
	}, nil))

	must(reg.Add(0, 0, []string{"show", "version"}, nil, func(c types.Console, args []string) error {
		c.Printf("conshell %s (%s)\n", version, runtime.Version())
		return nil
	}, nil))

	must(reg.Add(0, 0, []string{"show", "uptime"}, nil, func(c types.Console, args []string) error {
		c.Printf("up %s\n", uptime())
		return nil
	}, nil))

	must(reg.Add(0, 0, []string{"get", "hostname"}, nil, func(c types.Console, args []string) error {
		host, err := os.Hostname()
		if err != nil {
			return err
		}
		c.Println(host)
		return nil
	}, nil))

	must(reg.Add(0, 0, []string{"get", "uptime"}, nil, func(c types.Console, args []string) error {
		c.Printf("%d\n", int(time.Since(startTime).Seconds()))
		return nil
	}, nil))

	must(reg.Add(0, 0, []string{"set", "prompt"}, []string{"<prompt>"}, func(c types.Console, args []string) error {
		host, ok := c.(*shell.Shell)
		if !ok {
			c.Printf("prompt is only settable on a shell console\n")
			return nil
		}
		host.SetPrompt(args[0] + " ")
		return nil
	}, nil))

	must(reg.Add(0, 0, []string{"log", "level"}, []string{"[level]"}, func(c types.Console, args []string) error {
		if len(args) == 0 {
			c.Printf("log level is %s\n", level.Level().String())
			return nil
		}
		parsed, err := zapcore.ParseLevel(args[0])
		if err != nil {
			c.Printf("unknown level: %s\n", args[0])
			return nil
		}
		level.SetLevel(parsed)
		logger.Info("log level changed", zap.String("level", parsed.String()))
		return nil
	}, func(confirmed []string, partial string) []string {
		return []string{"debug", "info", "warn", "error"}
	}))

	must(reg.Add(0, 0, []string{"log", "test"}, nil, func(c types.Console, args []string) error {
		logger.Info("test message")
		return nil
	}, nil))

	must(reg.Add(0, 0, []string{"login"}, nil, func(c types.Console, args []string) error {
		if c.Flags()&flagAuthed != 0 {
			c.Printf("already logged in\n")
			return nil
		}
		c.Printf("Password: ")
		c.EnterPassword(func(completed bool, entry string) {
			if !completed {
				return
			}
			if entry == password() {
				c.SetFlags(c.Flags() | flagAuthed)
				c.Printf("login ok\n")
				return
			}
			c.Printf("login incorrect\n")
		})
		return nil
	}, nil))

	must(reg.Add(0, flagAuthed, []string{"logout"}, nil, func(c types.Console, args []string) error {
		c.SetFlags(c.Flags() &^ flagAuthed)
		c.Printf("logged out\n")
		return nil
	}, nil))

	must(reg.Add(0, 0, []string{"sleep"}, []string{"<seconds>"}, func(c types.Console, args []string) error {
		secs, err := strconv.Atoi(args[0])
		if err != nil || secs < 0 {
			c.Printf("bad duration: %s\n", args[0])
			return nil
		}
		c.Delay(time.Duration(secs)*time.Second, func() {
			c.Printf("awake after %ds\n", secs)
		})
		return nil
	}, nil))

	must(reg.Add(0, 0, []string{"ping"}, []string{"<host>", "[count]"}, func(c types.Console, args []string) error {
		host := args[0]
		count := 4
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				c.Printf("bad count: %s\n", args[1])
				return nil
			}
			count = n
		}
		c.Printf("PING %s: ^C aborts\n", host)
		sent := 0
		next := time.Now()
		c.Block(func(stop bool) bool {
			if stop {
				return true
			}
			if st := c.Stream(); st.Available() {
				if b, ok := st.Peek(); ok && b == 0x03 {
					st.ReadByte()
					c.Printf("--- %s aborted after %d replies ---\n", host, sent)
					return true
				}
			}
			if time.Now().Before(next) {
				return false
			}
			sent++
			c.Printf("reply from %s: seq=%d time=%dms\n", host, sent, 10+sent)
			if sent >= count {
				c.Printf("--- %s done: %d replies ---\n", host, sent)
				return true
			}
			next = time.Now().Add(time.Second)
			return false
		})
		return nil
	}, nil))

	must(reg.Add(0, 0, []string{"sh"}, nil, func(c types.Console, args []string) error {
		host, ok := c.(*shell.Shell)
		if !ok {
			c.Printf("nested shells need a full shell console\n")
			return nil
		}
		sub := shell.DefaultConfig()
		sub.Prompt = "sub> "
		sub.Context = host.Context()
		sub.Flags = host.Flags()
		host.Subshell(reg, sub)
		return nil
	}, nil))

	must(reg.Add(0, 0, []string{"exit"}, nil, func(c types.Console, args []string) error {
		c.Stop()
		return nil
	}, nil))

	return reg
}
