package transform

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// peer is the transformer side of an in-memory session.
type peer struct {
	dec *msgpack.Decoder
	enc *msgpack.Encoder
}

func startSession(t *testing.T, source string, opts *Options, run func(p *peer) error) (*Result, error) {
	t.Helper()
	hostR, peerW := io.Pipe()
	peerR, hostW := io.Pipe()
	done := make(chan error, 1)
	go func() {
		err := run(&peer{dec: msgpack.NewDecoder(peerR), enc: msgpack.NewEncoder(peerW)})
		_ = peerW.Close()
		_ = peerR.Close()
		done <- err
	}()
	res, err := Serve(context.Background(), hostR, hostW, source, opts)
	_ = hostW.Close()
	if perr := <-done; perr != nil {
		t.Fatalf("peer: %v", perr)
	}
	return res, err
}

func (p *peer) read() (frame, error) {
	var f frame
	err := p.dec.Decode(&f)
	return f, err
}

func TestServeAnswersCallbacks(t *testing.T) {
	opts := &Options{
		Filename: "/p/src/pages/index.tes",
		PreprocessStyle: func(_ context.Context, content string, attrs map[string]string) StyleResult {
			idx := 0
			if attrs["n"] == "1" {
				idx = 1
			}
			return StyleResult{Index: idx, Code: strings.ToUpper(content)}
		},
		ResolvePath: func(_ context.Context, specifier string) (string, error) {
			if specifier == "./missing" {
				return "", errors.New("not found")
			}
			return "/p/src/pages/" + strings.TrimPrefix(specifier, "./"), nil
		},
	}

	res, err := startSession(t, "<style>a{}</style>", opts, func(p *peer) error {
		req, err := p.read()
		if err != nil {
			return err
		}
		if req.Kind != frameTransform || req.Source != "<style>a{}</style>" {
			return errors.New("bad request frame")
		}
		if req.Options == nil || req.Options.Filename != "/p/src/pages/index.tes" {
			return errors.New("options not forwarded")
		}
		calls := []frame{
			{Kind: frameStyle, ID: 1, Content: "a{}", Attrs: map[string]string{"n": "0"}},
			{Kind: frameStyle, ID: 2, Content: "b{}", Attrs: map[string]string{"n": "1"}},
			{Kind: frameResolve, ID: 3, Specifier: "./x.js"},
			{Kind: frameResolve, ID: 4, Specifier: "./missing"},
		}
		for i := range calls {
			if err := p.enc.Encode(&calls[i]); err != nil {
				return err
			}
		}
		replies := map[uint64]frame{}
		for len(replies) < len(calls) {
			f, err := p.read()
			if err != nil {
				return err
			}
			replies[f.ID] = f
		}
		out := &Result{
			Code:       replies[3].Path,
			CSS:        []string{replies[2].Code, replies[1].Code},
			StyleIndex: []int{replies[2].Index, replies[1].Index},
			StyleError: []string{replies[4].Error},
		}
		return p.enc.Encode(&frame{Kind: frameResult, Result: out})
	})
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if res.Code != "/p/src/pages/x.js" {
		t.Fatalf("resolve reply: got %q", res.Code)
	}
	if len(res.CSS) != 2 || res.CSS[0] != "B{}" || res.CSS[1] != "A{}" {
		t.Fatalf("style replies: got %v", res.CSS)
	}
	if res.StyleIndex[0] != 1 || res.StyleIndex[1] != 0 {
		t.Fatalf("style index: got %v", res.StyleIndex)
	}
	if res.StyleError[0] != "not found" {
		t.Fatalf("resolve error: got %q", res.StyleError[0])
	}
}

func TestServeRemoteError(t *testing.T) {
	_, err := startSession(t, "x", nil, func(p *peer) error {
		if _, err := p.read(); err != nil {
			return err
		}
		return p.enc.Encode(&frame{Kind: frameError, Error: "boom", Stack: "at parse"})
	})
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("want RemoteError, got %v", err)
	}
	if remote.Error() != "boom" || remote.Stack() != "at parse" {
		t.Fatalf("unexpected remote error: %+v", remote)
	}
}

func TestServeNoResult(t *testing.T) {
	_, err := startSession(t, "x", nil, func(p *peer) error {
		_, err := p.read()
		return err
	})
	if !errors.Is(err, ErrNoResult) {
		t.Fatalf("want ErrNoResult, got %v", err)
	}
}

func TestServeMissingHooks(t *testing.T) {
	res, err := startSession(t, "x", &Options{}, func(p *peer) error {
		if _, err := p.read(); err != nil {
			return err
		}
		if err := p.enc.Encode(&frame{Kind: frameStyle, ID: 1, Content: "a{}"}); err != nil {
			return err
		}
		if err := p.enc.Encode(&frame{Kind: frameResolve, ID: 2, Specifier: "pkg"}); err != nil {
			return err
		}
		var styleErr, path string
		for i := 0; i < 2; i++ {
			f, err := p.read()
			if err != nil {
				return err
			}
			switch f.Kind {
			case frameStyleResult:
				styleErr = f.Error
			case frameResolveResult:
				path = f.Path
			}
		}
		return p.enc.Encode(&frame{Kind: frameResult, Result: &Result{Code: path, StyleError: []string{styleErr}}})
	})
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if res.Code != "pkg" {
		t.Fatalf("resolve without hook should echo specifier, got %q", res.Code)
	}
	if res.StyleError[0] == "" {
		t.Fatalf("style without hook should report an error")
	}
}

func TestProcessReportsExitStatus(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	p := &Process{Command: []string{"sh", "-c", "echo transformer crashed >&2; exit 3"}}
	_, err := p.Transform(context.Background(), "x", &Options{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "transformer crashed") {
		t.Fatalf("stderr not included: %v", err)
	}
}

func TestProcessStopsPeerAfterUnreadableFrame(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	if _, err := exec.LookPath("yes"); err != nil {
		t.Skip("yes not available")
	}
	// yes never stops writing, and nothing it writes decodes as a frame
	p := &Process{Command: []string{"sh", "-c", "cat >/dev/null & yes"}}
	done := make(chan error, 1)
	go func() {
		_, err := p.Transform(context.Background(), "x", &Options{})
		done <- err
	}()
	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected error for an unreadable frame")
		}
		if !strings.Contains(err.Error(), "read frame") {
			t.Fatalf("want the frame error, got %v", err)
		}
	case <-time.After(30 * time.Second):
		t.Fatalf("Transform did not return after the peer sent an unreadable frame")
	}
}

func TestProcessRequiresCommand(t *testing.T) {
	var p Process
	if _, err := p.Transform(context.Background(), "x", nil); err == nil {
		t.Fatalf("expected error for empty command")
	}
}
