package transform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long Wait keeps reading stderr after the transformer
// was stopped, for grandchildren that inherited it.
const waitDelay = 5 * time.Second

// Process runs an external transformer command per call and talks to it over
// stdin/stdout using the frame protocol served by Serve.
type Process struct {
	Command []string
	Dir     string
	// Env is appended to the current environment.
	Env []string
}

func (p *Process) Transform(ctx context.Context, source string, opts *Options) (*Result, error) {
	if len(p.Command) == 0 {
		return nil, errors.New("transformer command is not configured")
	}

	cmd := exec.CommandContext(ctx, p.Command[0], p.Command[1:]...) //nolint:gosec // command comes from project config
	cmd.Dir = p.Dir
	if len(p.Env) > 0 {
		cmd.Env = append(os.Environ(), p.Env...)
	}
	cmd.WaitDelay = waitDelay
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("transformer stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("transformer stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start transformer %s: %w", p.Command[0], err)
	}

	res, serveErr := Serve(ctx, stdout, stdin, source, opts)
	_ = stdin.Close()

	// A broken session leaves the peer free to keep writing; stop it so Wait
	// cannot block on a full stdout pipe.
	var remote *RemoteError
	stopped := serveErr != nil && !errors.As(serveErr, &remote) && !errors.Is(serveErr, ErrNoResult)
	if stopped {
		_ = cmd.Process.Kill()
	}
	if serveErr != nil {
		_ = stdout.Close()
	}
	waitErr := cmd.Wait()

	if serveErr == nil {
		return res, nil
	}
	if remote != nil || waitErr == nil {
		return nil, serveErr
	}
	cause := waitErr
	if stopped {
		cause = serveErr
	}
	msg := strings.TrimSpace(stderr.String())
	if msg == "" {
		return nil, fmt.Errorf("transformer %s: %w", p.Command[0], cause)
	}
	return nil, fmt.Errorf("transformer %s: %w: %s", p.Command[0], cause, msg)
}
