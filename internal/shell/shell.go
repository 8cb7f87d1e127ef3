// Package shell implements the interactive console engine: a byte-oriented
// state machine with single-line editing, tab completion, password entry,
// blocking polls, timed delays and nested sub-shells, all serviced
// cooperatively without ever blocking the host's main loop.
package shell

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TrailHuang/conshell/internal/cmdline"
	"github.com/TrailHuang/conshell/internal/history"
	"github.com/TrailHuang/conshell/internal/logbus"
	"github.com/TrailHuang/conshell/internal/registry"
	"github.com/TrailHuang/conshell/pkg/types"
)

// Mode is a shell's dispatch state.
type Mode int

const (
	ModeNormal Mode = iota
	ModePassword
	ModeBlocking
	ModeDelay
)

// Normal-mode control bytes.
const (
	byteInterrupt = 0x03 // ^C: discard the line
	byteEOT       = 0x04 // ^D on an empty line: overridable hook
	byteBackspace = 0x08
	byteLineFeed  = 0x0a
	byteFormFeed  = 0x0c // ^L: redraw
	byteReturn    = 0x0d
	byteKillLine  = 0x15 // ^U
	byteKillWord  = 0x17 // ^W
	byteEscape    = 0x1b
	byteDelete    = 0x7f
)

// Terminal control: full-line erase, and erase to end of line after a
// single-character backspace.
const (
	seqEraseLine = "\x1b[0G\x1b[K"
	seqEraseEOL  = "\x1b[K"
)

// Config carries per-shell settings.
type Config struct {
	Prompt  string
	Welcome string
	Context types.Context
	Flags   types.Flags

	MaxLineLen   int  // printable bytes beyond this are dropped silently
	MaxHistory   int  // 0 disables arrow-key recall
	LogDepth     int  // bounded log queue depth
	CompleteByte byte // completion trigger, conventionally tab

	Hub    *logbus.Hub      // optional log collaborator
	Logger *zap.Logger      // optional engine diagnostics
	Now    func() time.Time // clock for Delay, defaults to time.Now
}

// DefaultConfig returns the stock shell settings.
func DefaultConfig() *Config {
	return &Config{
		Prompt:       "> ",
		MaxLineLen:   256,
		MaxHistory:   100,
		LogDepth:     16,
		CompleteByte: 0x09,
	}
}

// Shell is one interactive console bound to a byte stream. Step processes at
// most one input byte (or one poll) per quantum and never blocks; the caller
// must invoke it again later, normally through Scheduler.ServiceAll.
type Shell struct {
	cfg    Config
	reg    *registry.Registry
	stream types.Stream
	sched  *Scheduler
	logger *zap.Logger

	buffer   []byte
	last     byte // previous input byte, for CRLF coalescing
	escSeq   int  // 0 none, 1 saw ESC, 2 saw ESC [
	mode     Mode
	running  bool
	stopping bool

	queue *logbus.Queue
	hist  *history.History

	pwBuf  []byte
	pwDone func(completed bool, entry string)

	poll func(stop bool) bool

	deadline time.Time
	delayed  func()

	eotHook func(*Shell)
}

var _ types.Console = (*Shell)(nil)

// New creates a shell and registers it with the scheduler. The shell stays
// idle until Start is called.
func New(sched *Scheduler, reg *registry.Registry, st types.Stream, cfg *Config) *Shell {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Shell{cfg: *cfg, reg: reg, stream: st, sched: sched}
	if s.cfg.MaxLineLen <= 0 {
		s.cfg.MaxLineLen = 256
	}
	if s.cfg.CompleteByte == 0 {
		s.cfg.CompleteByte = 0x09
	}
	if s.cfg.LogDepth <= 0 {
		s.cfg.LogDepth = 16
	}
	if s.cfg.Now == nil {
		s.cfg.Now = time.Now
	}
	s.logger = s.cfg.Logger
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.cfg.MaxHistory > 0 {
		s.hist = history.New(s.cfg.MaxHistory)
	}
	s.queue = logbus.NewQueue(s.cfg.LogDepth)
	if s.cfg.Hub != nil {
		s.cfg.Hub.Register(s.queue)
	}
	sched.add(s)
	return s
}

// Start makes the shell live: welcome banner, first prompt.
func (s *Shell) Start() {
	if s.running {
		return
	}
	s.running = true
	s.stopping = false
	if s.cfg.Welcome != "" {
		s.write(s.cfg.Welcome)
	}
	s.writePrompt()
}

// Stop requests shutdown. It is advisory: a blocked shell only stops once
// its poll function observes the stop flag, and a pending delay still fires.
func (s *Shell) Stop() {
	s.stopping = true
}

// Running reports whether the shell still occupies its scheduler slot.
func (s *Shell) Running() bool {
	return s.running
}

// Mode returns the current dispatch state.
func (s *Shell) Mode() Mode {
	return s.mode
}

// SetEOTHook overrides the ^D action (default no-op).
func (s *Shell) SetEOTHook(fn func(*Shell)) {
	s.eotHook = fn
}

// SetPrompt replaces the prompt, effective from the next redraw.
func (s *Shell) SetPrompt(p string) {
	s.cfg.Prompt = p
}

// Stream returns the underlying byte transport, e.g. for handing it to a
// nested sub-shell.
func (s *Shell) Stream() types.Stream { return s.stream }

// Context returns the shell's command context tag.
func (s *Shell) Context() types.Context { return s.cfg.Context }

// SetContext switches the shell's command context tag.
func (s *Shell) SetContext(c types.Context) { s.cfg.Context = c }

// Flags returns the shell's active visibility flags.
func (s *Shell) Flags() types.Flags { return s.cfg.Flags }

// SetFlags replaces the shell's active visibility flags.
func (s *Shell) SetFlags(f types.Flags) { s.cfg.Flags = f }

// Queue returns the shell's bounded log queue, for hosts that register
// receivers with a hub themselves.
func (s *Shell) Queue() *logbus.Queue { return s.queue }

// Write sends raw bytes to the stream.
func (s *Shell) Write(p []byte) (int, error) {
	return s.stream.Write(p)
}

// Printf writes formatted text, normalizing bare newlines to CRLF.
func (s *Shell) Printf(format string, args ...interface{}) {
	s.write(crlf(fmt.Sprintf(format, args...)))
}

// Println writes its arguments followed by CRLF.
func (s *Shell) Println(args ...interface{}) {
	s.write(crlf(fmt.Sprintln(args...)))
}

// EnterPassword switches to password mode: printable bytes accumulate
// unechoed until a line terminator (completed) or an interrupt (not
// completed), then done runs with the collected entry. No-op unless the
// shell is in normal mode.
func (s *Shell) EnterPassword(done func(completed bool, entry string)) {
	if s.mode != ModeNormal {
		return
	}
	s.mode = ModePassword
	s.pwBuf = s.pwBuf[:0]
	s.pwDone = done
}

// Block switches to blocking mode: poll runs once per quantum until it
// returns true. The poll function may use the shell's Available/Peek/
// ReadByte but must not edit the line; it receives stop=true once shutdown
// has been requested. No-op unless the shell is in normal mode.
func (s *Shell) Block(poll func(stop bool) bool) {
	if s.mode != ModeNormal {
		return
	}
	s.mode = ModeBlocking
	s.poll = poll
}

// Delay runs fn once d has elapsed; input is ignored meanwhile.
func (s *Shell) Delay(d time.Duration, fn func()) {
	s.DelayUntil(s.cfg.Now().Add(d), fn)
}

// DelayUntil runs fn at the first quantum at or after deadline. There is no
// early cancellation: a stop request takes effect after fn has run.
func (s *Shell) DelayUntil(deadline time.Time, fn func()) {
	if s.mode != ModeNormal {
		return
	}
	s.mode = ModeDelay
	s.deadline = deadline
	s.delayed = fn
}

// Available reports whether an input byte is pending, for blocking polls.
func (s *Shell) Available() bool { return s.stream.Available() }

// Peek returns the next input byte without consuming it.
func (s *Shell) Peek() (byte, bool) { return s.stream.Peek() }

// ReadByte consumes and returns the next input byte.
func (s *Shell) ReadByte() (byte, bool) { return s.stream.ReadByte() }

// Subshell starts a child shell on the same stream and blocks this shell
// until the child stops. Only the child consumes input while it runs: the
// parent's poll merely watches the running flag. A stop request on the
// parent is forwarded to the child, so teardown unwinds innermost first.
func (s *Shell) Subshell(reg *registry.Registry, cfg *Config) *Shell {
	child := New(s.sched, reg, s.stream, cfg)
	child.Start()
	s.Block(func(stop bool) bool {
		if stop {
			child.Stop()
		}
		return !child.Running()
	})
	return child
}

// Step runs one scheduling quantum: drain pending log messages first, then
// dispatch on the current mode, consuming at most one input byte.
func (s *Shell) Step() {
	if !s.running {
		return
	}
	s.drainLogs()
	switch s.mode {
	case ModeNormal:
		s.stepNormal()
	case ModePassword:
		s.stepPassword()
	case ModeBlocking:
		s.stepBlocking()
	case ModeDelay:
		s.stepDelay()
	}
}

func (s *Shell) drainLogs() {
	if s.queue == nil || !s.queue.Pending() {
		return
	}
	msgs := s.queue.Drain()
	if s.mode != ModeDelay {
		s.write(seqEraseLine)
	}
	for _, m := range msgs {
		s.write(m.Time.Format("15:04:05.000"))
		s.write(" [" + m.Level.CapitalString() + "] ")
		if m.Source != "" {
			s.write(m.Source + ": ")
		}
		s.write(m.Text + "\r\n")
	}
	if s.mode != ModeDelay {
		s.redrawLine()
	}
}

func (s *Shell) stepNormal() {
	if s.stopping {
		s.finish()
		return
	}
	if !s.stream.Available() {
		return
	}
	b, ok := s.stream.ReadByte()
	if !ok {
		return
	}
	last := s.last
	s.last = b

	if s.escSeq > 0 {
		s.stepEscape(b)
		return
	}

	switch b {
	case s.cfg.CompleteByte:
		s.complete()
	case byteInterrupt:
		s.buffer = s.buffer[:0]
		s.histReset()
		s.write("\r\n")
		s.writePrompt()
	case byteEOT:
		if len(s.buffer) != 0 {
			return
		}
		if s.eotHook != nil {
			s.eotHook(s)
		}
		if !s.stopping {
			s.write("\r\n")
			s.writePrompt()
		}
	case byteBackspace, byteDelete:
		if len(s.buffer) > 0 {
			s.buffer = s.buffer[:len(s.buffer)-1]
			s.write("\x08" + seqEraseEOL)
		}
	case byteLineFeed:
		if last == byteReturn {
			return // CRLF: the CR already ran the line
		}
		s.execute()
	case byteReturn:
		s.execute()
	case byteFormFeed:
		s.redrawLine()
	case byteKillLine:
		s.buffer = s.buffer[:0]
		s.redrawLine()
	case byteKillWord:
		s.killWord()
		s.redrawLine()
	case byteEscape:
		if s.hist != nil {
			s.escSeq = 1
		}
	default:
		if b >= 0x20 && b <= 0x7e {
			if len(s.buffer) >= s.cfg.MaxLineLen {
				return
			}
			s.buffer = append(s.buffer, b)
			s.stream.Write([]byte{b})
		}
	}
}

// stepEscape consumes an ESC [ A / ESC [ B history sequence, one byte per
// quantum. Anything else aborts the sequence and is discarded.
func (s *Shell) stepEscape(b byte) {
	switch {
	case s.escSeq == 1 && b == '[':
		s.escSeq = 2
	case s.escSeq == 2 && b == 'A':
		s.escSeq = 0
		if line, ok := s.hist.Previous(); ok {
			s.setBuffer(line)
		}
	case s.escSeq == 2 && b == 'B':
		s.escSeq = 0
		if line, ok := s.hist.Next(); ok {
			s.setBuffer(line)
		}
	default:
		s.escSeq = 0
	}
}

func (s *Shell) setBuffer(text string) {
	s.buffer = append(s.buffer[:0], text...)
	s.redrawLine()
}

// killWord erases back to the previous space boundary, or the whole line
// when there is none.
func (s *Shell) killWord() {
	i := len(s.buffer)
	for i > 0 && s.buffer[i-1] == ' ' {
		i--
	}
	for i > 0 && s.buffer[i-1] != ' ' {
		i--
	}
	s.buffer = s.buffer[:i]
}

func (s *Shell) execute() {
	s.write("\r\n")
	text := string(s.buffer)
	s.buffer = s.buffer[:0]
	line := cmdline.Parse(text)
	if len(line.Words) == 0 {
		s.writePrompt()
		return
	}
	if s.hist != nil {
		s.hist.Add(text)
		s.hist.Reset()
	}
	if err := s.reg.Execute(s, s.cfg.Context, s.cfg.Flags, line); err != nil {
		s.reportError(err)
	}
	if s.mode == ModeNormal && s.running && !s.stopping {
		s.writePrompt()
	}
}

func (s *Shell) reportError(err error) {
	switch {
	case errors.Is(err, registry.ErrAmbiguousRegistration):
		s.Printf("Fatal: %v\n", err)
	case errors.Is(err, registry.ErrCommandNotFound),
		errors.Is(err, registry.ErrNotEnoughArguments),
		errors.Is(err, registry.ErrTooManyArguments):
		s.Printf("%v\n", err)
	default:
		// Handler-level failure: reporting it to the user is the
		// handler's own business, this only leaves a trail.
		s.logger.Warn("command failed", zap.Error(err))
	}
}

func (s *Shell) complete() {
	line := cmdline.Parse(string(s.buffer))
	rep, help := s.reg.Complete(s.cfg.Context, s.cfg.Flags, line)
	text := rep.Format()
	changed := text != string(s.buffer)
	if len(help) == 0 && !changed {
		s.write("\x07")
		return
	}
	if len(help) > 0 {
		s.write("\r\n")
		for _, h := range help {
			s.write(h + "\r\n")
		}
	}
	if changed {
		s.buffer = append(s.buffer[:0], text...)
	}
	s.redrawLine()
}

func (s *Shell) stepPassword() {
	if s.stopping {
		s.finishPassword(false)
		s.finish()
		return
	}
	if !s.stream.Available() {
		return
	}
	b, ok := s.stream.ReadByte()
	if !ok {
		return
	}
	last := s.last
	s.last = b

	switch b {
	case byteInterrupt:
		s.write("\r\n")
		s.finishPassword(false)
	case byteBackspace, byteDelete:
		if len(s.pwBuf) > 0 {
			s.pwBuf = s.pwBuf[:len(s.pwBuf)-1]
		}
	case byteFormFeed:
		s.redrawLine()
	case byteLineFeed:
		if last == byteReturn {
			return
		}
		s.write("\r\n")
		s.finishPassword(true)
	case byteReturn:
		s.write("\r\n")
		s.finishPassword(true)
	default:
		if b >= 0x20 && b <= 0x7e && len(s.pwBuf) < s.cfg.MaxLineLen {
			s.pwBuf = append(s.pwBuf, b)
		}
	}
}

func (s *Shell) finishPassword(completed bool) {
	done := s.pwDone
	entry := string(s.pwBuf)
	s.pwDone = nil
	s.pwBuf = s.pwBuf[:0]
	s.mode = ModeNormal
	if done != nil {
		done(completed, entry)
	}
	if s.mode == ModeNormal && s.running && !s.stopping {
		s.writePrompt()
	}
}

func (s *Shell) stepBlocking() {
	if !s.poll(s.stopping) {
		return
	}
	s.poll = nil
	s.mode = ModeNormal
	if s.stopping {
		s.finish()
		return
	}
	s.redrawLine()
}

func (s *Shell) stepDelay() {
	if s.cfg.Now().Before(s.deadline) {
		return
	}
	fn := s.delayed
	s.delayed = nil
	s.mode = ModeNormal
	if fn != nil {
		fn()
	}
	if s.mode != ModeNormal {
		return // the continuation chained another wait
	}
	if s.stopping {
		s.finish()
		return
	}
	s.redrawLine()
}

// finish tears the shell down: deregister from the scheduler and the log
// hub, mark stopped.
func (s *Shell) finish() {
	if !s.running {
		return
	}
	s.running = false
	s.stopping = false
	s.mode = ModeNormal
	if s.cfg.Hub != nil {
		s.cfg.Hub.Unregister(s.queue)
	}
	s.sched.remove(s)
	s.logger.Debug("shell stopped")
}

func (s *Shell) histReset() {
	if s.hist != nil {
		s.hist.Reset()
	}
}

func (s *Shell) writePrompt() {
	s.write(s.cfg.Prompt)
}

// redrawLine erases the terminal line and redraws the prompt plus, in
// normal mode, the edit buffer. Password input is never echoed back.
func (s *Shell) redrawLine() {
	s.write(seqEraseLine)
	s.write(s.cfg.Prompt)
	if s.mode == ModeNormal {
		s.write(string(s.buffer))
	}
}

func (s *Shell) write(text string) {
	s.stream.Write([]byte(text))
}

func crlf(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\n", "\r\n")
}
