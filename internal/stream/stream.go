// Package stream provides byte transports implementing types.Stream: an
// in-memory buffer for tests and embedding, a pipe over a reader/writer pair
// (typically a raw-mode terminal), and a net.Conn adapter with optional
// telnet IAC filtering.
package stream

import (
	"bytes"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/TrailHuang/conshell/pkg/types"
)

var (
	_ types.Stream = (*Buffer)(nil)
	_ types.Stream = (*Pipe)(nil)
	_ types.Stream = (*Conn)(nil)
)

// Buffer is an in-memory stream. Feed supplies input bytes for the shell to
// read; Output collects everything the shell wrote.
type Buffer struct {
	mu  sync.Mutex
	in  []byte
	out bytes.Buffer
}

// NewBuffer returns an empty in-memory stream.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Feed appends p to the pending input.
func (b *Buffer) Feed(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.in = append(b.in, p...)
}

// FeedString appends s to the pending input.
func (b *Buffer) FeedString(s string) {
	b.Feed([]byte(s))
}

// Available reports whether an input byte is pending.
func (b *Buffer) Available() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.in) > 0
}

// Peek returns the next input byte without consuming it.
func (b *Buffer) Peek() (byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.in) == 0 {
		return 0, false
	}
	return b.in[0], true
}

// ReadByte consumes and returns the next input byte.
func (b *Buffer) ReadByte() (byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.in) == 0 {
		return 0, false
	}
	ch := b.in[0]
	b.in = b.in[1:]
	return ch, true
}

// Write collects shell output.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.out.Write(p)
}

// Output returns everything written so far.
func (b *Buffer) Output() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.out.String()
}

// TakeOutput returns everything written so far and clears it.
func (b *Buffer) TakeOutput() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.out.String()
	b.out.Reset()
	return out
}

// Pipe adapts a reader/writer pair. A pump goroutine performs the blocking
// reads so Available never blocks the scheduler. The peek slot and channel
// are consumed by the single engine goroutine.
type Pipe struct {
	ch     chan byte
	peeked *byte
	w      io.Writer
	eof    atomic.Bool
}

// NewPipe starts pumping r and returns the stream. Writes go to w.
func NewPipe(r io.Reader, w io.Writer) *Pipe {
	p := &Pipe{ch: make(chan byte, 256), w: w}
	go p.pump(r)
	return p
}

func (p *Pipe) pump(r io.Reader) {
	buf := make([]byte, 128)
	for {
		n, err := r.Read(buf)
		for i := 0; i < n; i++ {
			p.ch <- buf[i]
		}
		if err != nil {
			p.eof.Store(true)
			close(p.ch)
			return
		}
	}
}

// Available reports whether an input byte is pending.
func (p *Pipe) Available() bool {
	return p.peeked != nil || len(p.ch) > 0
}

// Peek returns the next input byte without consuming it.
func (p *Pipe) Peek() (byte, bool) {
	if p.peeked != nil {
		return *p.peeked, true
	}
	b, ok := p.readOne()
	if ok {
		p.peeked = &b
	}
	return b, ok
}

// ReadByte consumes and returns the next input byte.
func (p *Pipe) ReadByte() (byte, bool) {
	if p.peeked != nil {
		b := *p.peeked
		p.peeked = nil
		return b, true
	}
	return p.readOne()
}

func (p *Pipe) readOne() (byte, bool) {
	select {
	case b, ok := <-p.ch:
		if !ok {
			return 0, false
		}
		return b, true
	default:
		return 0, false
	}
}

// Write forwards to the underlying writer.
func (p *Pipe) Write(q []byte) (int, error) {
	return p.w.Write(q)
}

// EOF reports that the reader ended and every buffered byte was consumed.
func (p *Pipe) EOF() bool {
	return p.eof.Load() && p.peeked == nil && len(p.ch) == 0
}

// Conn adapts a net.Conn.
type Conn struct {
	*Pipe
	conn net.Conn
}

// NewConn wraps conn as a stream.
func NewConn(conn net.Conn) *Conn {
	return &Conn{Pipe: NewPipe(conn, conn), conn: conn}
}

// NewTelnetConn wraps conn as a stream, stripping telnet IAC option
// negotiation and subnegotiation sequences out of the input.
func NewTelnetConn(conn net.Conn) *Conn {
	return &Conn{Pipe: NewPipe(&telnetReader{r: conn}, conn), conn: conn}
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// telnetReader filters IAC sequences. The filter state survives read
// boundaries, so a sequence split across packets is still dropped.
type telnetReader struct {
	r     io.Reader
	state int
}

const (
	telData     = iota
	telIAC      // saw IAC
	telOption   // saw IAC WILL/WONT/DO/DONT, one option byte follows
	telSub      // inside subnegotiation
	telSubIAC   // inside subnegotiation, saw IAC
)

func (t *telnetReader) Read(p []byte) (int, error) {
	for {
		n, err := t.r.Read(p)
		w := 0
		for i := 0; i < n; i++ {
			b := p[i]
			switch t.state {
			case telData:
				if b == 0xFF {
					t.state = telIAC
				} else {
					p[w] = b
					w++
				}
			case telIAC:
				switch b {
				case 0xFF: // escaped data byte
					p[w] = b
					w++
					t.state = telData
				case 0xFA: // SB
					t.state = telSub
				case 0xFB, 0xFC, 0xFD, 0xFE: // WILL WONT DO DONT
					t.state = telOption
				default:
					t.state = telData
				}
			case telOption:
				t.state = telData
			case telSub:
				if b == 0xFF {
					t.state = telSubIAC
				}
			case telSubIAC:
				if b == 0xF0 { // SE
					t.state = telData
				} else {
					t.state = telSub
				}
			}
		}
		if w > 0 || err != nil {
			return w, err
		}
	}
}
