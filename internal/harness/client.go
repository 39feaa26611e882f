// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package harness

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aclements/goperf/bench"
	"github.com/aclements/goperf/internal/loganal"
)

// NoResult is the result text of a benchmark that returns nothing.
const NoResult = "(no result)"

// ClientOptions configure a running harness.
type ClientOptions struct {
	// Stderr, if non-nil, receives the harness's stdout and
	// stderr, which is anything the benchmark file prints.
	Stderr io.Writer

	Logger *zap.Logger
}

// Client drives a running harness binary.
type Client struct {
	// Version is the harness's "goversion" configuration line
	// value, such as "go1.22.1 linux/amd64".
	Version string

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	pipe    *os.File // read end of the reply pipe
	replies *bufio.Reader
	stderr  *tail
	logger *zap.Logger

	mu      sync.Mutex
	exited  bool
	waitErr error
}

// PanicError is a panic raised by a benchmark in the harness.
type PanicError struct {
	Name    string
	Message string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s panicked: %s", e.Name, e.Message)
}

// ExitError reports that the harness exited unexpectedly.
type ExitError struct {
	// Summary describes the runtime failure that killed the
	// harness, if one was found in its stderr.
	Summary string

	Err error
}

func (e *ExitError) Error() string {
	msg := "harness exited"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Summary != "" {
		msg += ": " + e.Summary
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// Start runs the harness binary at path and queries its version.
func Start(ctx context.Context, path string, opts ClientOptions) (*Client, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	c := &Client{
		cmd:    exec.Command(path),
		stderr: &tail{w: opts.Stderr},
		logger: opts.Logger,
	}
	c.cmd.Stdout = c.stderr
	c.cmd.Stderr = c.stderr
	stdin, err := c.cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating reply pipe: %w", err)
	}
	// ExtraFiles[0] is fd 3 in the child.
	c.cmd.ExtraFiles = []*os.File{pw}
	c.stdin, c.pipe, c.replies = stdin, pr, bufio.NewReader(pr)
	err = c.cmd.Start()
	pw.Close()
	if err != nil {
		pr.Close()
		return nil, err
	}
	c.logger.Debug("started harness", zap.String("path", path), zap.Int("pid", c.cmd.Process.Pid))

	reply, err := c.call(ctx, "version")
	if err != nil {
		c.Close()
		return nil, err
	}
	k, v, ok := bench.ParseConfig(reply)
	if !ok || k != "goversion" {
		c.Close()
		return nil, fmt.Errorf("unexpected version reply %q", reply)
	}
	c.Version = v
	return c, nil
}

// Run times n iterations of the named benchmark. If gc is false, the
// garbage collector is disabled during the run.
func (c *Client) Run(ctx context.Context, name string, n int, gc bool) (time.Duration, error) {
	g := "0"
	if gc {
		g = "1"
	}
	reply, err := c.call(ctx, "run", name, strconv.Itoa(n), g)
	if err != nil {
		return 0, c.named(name, err)
	}
	b, ok := bench.ParseLine(reply, nil)
	if !ok || b.Name != name || b.Iterations != n {
		return 0, fmt.Errorf("unexpected run reply %q", reply)
	}
	return b.Elapsed(), nil
}

// Result calls the named benchmark once and returns its results
// formatted as Go values, or NoResult.
func (c *Client) Result(ctx context.Context, name string) (string, error) {
	reply, err := c.call(ctx, "result", name)
	if err != nil {
		return "", c.named(name, err)
	}
	msg, ok := strings.CutPrefix(reply, "result: ")
	if !ok {
		return "", fmt.Errorf("unexpected result reply %q", reply)
	}
	return strconv.Unquote(msg)
}

func (c *Client) named(name string, err error) error {
	var pe *PanicError
	if errors.As(err, &pe) {
		pe.Name = name
	}
	return err
}

// Close stops the harness and waits for it to exit.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.exited {
		return nil
	}
	io.WriteString(c.stdin, "quit\n")
	return c.wait()
}

// call sends a request and reads its one-line reply. A panic or
// error reply is returned as an error. If ctx is done, the harness
// is killed.
func (c *Client) call(ctx context.Context, req ...string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.exited {
		return "", &ExitError{Err: c.waitErr}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	stop := context.AfterFunc(ctx, func() {
		c.cmd.Process.Kill()
	})
	defer stop()

	line := strings.Join(req, " ")
	c.logger.Debug("harness request", zap.String("req", line))
	if _, err := io.WriteString(c.stdin, line+"\n"); err != nil {
		return "", c.exit(ctx)
	}
	reply, err := c.replies.ReadString('\n')
	if err != nil {
		return "", c.exit(ctx)
	}
	reply = strings.TrimSuffix(reply, "\n")

	kind, msg, ok := strings.Cut(reply, ": ")
	if ok && (kind == "panic" || kind == "error") {
		if s, err := strconv.Unquote(msg); err == nil {
			msg = s
		}
		if kind == "panic" {
			return "", &PanicError{Message: msg}
		}
		return "", fmt.Errorf("harness: %s", msg)
	}
	return reply, nil
}

// exit reaps a harness that stopped answering.
func (c *Client) exit(ctx context.Context) error {
	c.wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	return &ExitError{
		Summary: loganal.Summary(loganal.Extract(c.stderr.String())),
		Err:     c.waitErr,
	}
}

func (c *Client) wait() error {
	c.stdin.Close()
	c.waitErr = c.cmd.Wait()
	c.pipe.Close()
	c.exited = true
	c.logger.Debug("harness exited", zap.Error(c.waitErr))
	return c.waitErr
}

// tailLimit bounds the stderr kept for failure summaries.
const tailLimit = 64 << 10

// tail keeps the last tailLimit bytes written to it, forwarding
// everything to w if non-nil.
type tail struct {
	w io.Writer

	mu  sync.Mutex
	buf []byte
}

func (t *tail) Write(p []byte) (int, error) {
	t.mu.Lock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - tailLimit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	t.mu.Unlock()
	if t.w != nil {
		t.w.Write(p)
	}
	return len(p), nil
}

func (t *tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
