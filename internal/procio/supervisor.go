// Package procio owns the spawned language-server child process and its
// three standard streams: an outbound pump that drains a queue of
// already-framed bytes to stdin, an inbound pump that reads framed JSON
// off stdout and publishes parsed messages, and a stderr line logger.
package procio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"codedepth/internal/jsonrpc"
)

// inboxCapacity is the inbound message buffer. Requests are correlated
// by id downstream in lspclient, so this only needs to absorb the burst
// between a response landing and its waiter being scheduled; it is not
// the broadcast-fanout buffer the wire protocol's design notes discuss; see
// the lspclient router for that.
const inboxCapacity = 256

// Process supervises one spawned language-server child.
type Process struct {
	cmd      *exec.Cmd
	outbound chan []byte
	Incoming chan json.RawMessage // closed when the inbound pump ends (stdout EOF or framing error)

	logger *log.Logger

	mu     sync.Mutex
	closed bool
	runErr error
}

// Spawn starts program with args, wires its three streams, and starts
// the outbound/inbound/stderr pumps on an errgroup bound to ctx.
// Cancelling ctx, or calling Close (which closes the outbound channel
// and so stdin), causes the child to exit; stdout EOF closes Incoming.
func Spawn(ctx context.Context, program string, args []string, logger *log.Logger) (*Process, error) {
	cmd := exec.CommandContext(ctx, program, args...)
	setProcessGroup(cmd)
	// CommandContext kills on ctx cancellation, but not on stdin close
	// alone; closing stdin when the outbound pump exits is what lets a
	// well-behaved server shut down on its own first. A server that
	// spawns its own workers needs the whole group signaled on cancel.
	cmd.Cancel = func() error {
		killProcessGroup(cmd.Process.Pid)
		return nil
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("acquire stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("acquire stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("acquire stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start language server: %w", err)
	}

	p := &Process{
		cmd:      cmd,
		outbound: make(chan []byte, 4096),
		Incoming: make(chan json.RawMessage, inboxCapacity),
		logger:   logger,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.pumpOutbound(stdin) })
	g.Go(func() error { return p.pumpInbound(gctx, stdout) })
	g.Go(func() error { return p.pumpStderr(stderr) })

	go func() {
		err := g.Wait()
		p.mu.Lock()
		p.closed = true
		p.runErr = err
		p.mu.Unlock()
	}()

	return p, nil
}

// Inbox exposes the inbound message channel behind a method so callers
// can depend on an interface rather than this concrete type.
func (p *Process) Inbox() <-chan json.RawMessage { return p.Incoming }

// Enqueue places an already-framed message on the outbound queue. The
// queue is a channel buffered to 4096 frames: Enqueue returns at once
// while there is room, and blocks once 4096 frames are waiting for the
// child to read them.
func (p *Process) Enqueue(frame []byte) {
	p.outbound <- frame
}

// Close signals the outbound pump to stop, which closes stdin; a
// cooperative child exits on its own from there.
func (p *Process) Close() {
	close(p.outbound)
}

// Wait blocks until the child process has exited and all pumps have
// returned, and reports the first pump error, if any.
func (p *Process) Wait() error {
	werr := p.cmd.Wait()
	p.mu.Lock()
	runErr := p.runErr
	p.mu.Unlock()
	if runErr != nil {
		return runErr
	}
	return werr
}

func (p *Process) pumpOutbound(stdin io.WriteCloser) error {
	defer stdin.Close()
	for frame := range p.outbound {
		if err := jsonrpc.WriteFrame(stdin, frame); err != nil {
			return fmt.Errorf("write to server stdin: %w", err)
		}
	}
	return nil
}

func (p *Process) pumpInbound(ctx context.Context, stdout io.Reader) error {
	defer close(p.Incoming)
	rd := bufio.NewReader(stdout)
	for {
		buf, err := jsonrpc.ReadFrame(rd)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read server stdout: %w", err)
		}
		var msg json.RawMessage
		if err := json.Unmarshal(buf, &msg); err != nil {
			p.logger.Warn("dropping malformed frame from server", "err", err)
			continue
		}
		select {
		case p.Incoming <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Process) pumpStderr(stderr io.Reader) error {
	var line strings.Builder
	buf := make([]byte, 1)
	r := bufio.NewReader(stderr)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			b := buf[0]
			if b == '\n' {
				if s := strings.TrimRight(line.String(), "\r"); s != "" {
					p.logger.Error(s, "source", "server-stderr")
				}
				line.Reset()
			} else {
				line.WriteByte(b)
			}
		}
		if err != nil {
			if err == io.EOF {
				if s := strings.TrimSpace(line.String()); s != "" {
					p.logger.Error(s, "source", "server-stderr")
				}
				return nil
			}
			return fmt.Errorf("read server stderr: %w", err)
		}
	}
}
