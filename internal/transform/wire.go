package transform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"
)

// ErrNoResult is returned when the peer closes the stream before sending a
// result or error frame.
var ErrNoResult = errors.New("transformer exited without a result")

type frameKind string

const (
	frameTransform     frameKind = "transform"
	frameStyle         frameKind = "style"
	frameStyleResult   frameKind = "style_result"
	frameResolve       frameKind = "resolve"
	frameResolveResult frameKind = "resolve_result"
	frameResult        frameKind = "result"
	frameError         frameKind = "error"
)

// frame is the single message shape exchanged with a transformer process.
// Callback frames carry an ID the peer uses to match replies.
type frame struct {
	Kind      frameKind         `msgpack:"kind"`
	ID        uint64            `msgpack:"id,omitempty"`
	Source    string            `msgpack:"source,omitempty"`
	Options   *Options          `msgpack:"options,omitempty"`
	Content   string            `msgpack:"content,omitempty"`
	Attrs     map[string]string `msgpack:"attrs,omitempty"`
	Specifier string            `msgpack:"specifier,omitempty"`
	Path      string            `msgpack:"path,omitempty"`
	Index     int               `msgpack:"index,omitempty"`
	Code      string            `msgpack:"code,omitempty"`
	Map       string            `msgpack:"map,omitempty"`
	Error     string            `msgpack:"error,omitempty"`
	Stack     string            `msgpack:"stack,omitempty"`
	Result    *Result           `msgpack:"result,omitempty"`
}

// RemoteError is a failure reported by the transformer itself.
type RemoteError struct {
	Message string
	Trace   string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Stack returns the transformer-side stack trace, if it sent one.
func (e *RemoteError) Stack() string {
	return e.Trace
}

type styleOrderKey struct{}

// StyleOrder returns the zero-based position at which the style callback
// being answered arrived from the peer. Only hooks invoked by Serve carry it.
func StyleOrder(ctx context.Context) (int, bool) {
	n, ok := ctx.Value(styleOrderKey{}).(int)
	return n, ok
}

// Serve runs one transform session over a framed stream: it writes the
// request to w, answers style and resolve callbacks read from r, and returns
// once the peer sends a result or an error. Callbacks run concurrently; each
// reply is written whole. Style callbacks are numbered in read order before
// they are dispatched, see StyleOrder.
func Serve(ctx context.Context, r io.Reader, w io.Writer, source string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}

	var wmu sync.Mutex
	enc := msgpack.NewEncoder(w)
	send := func(f *frame) error {
		wmu.Lock()
		defer wmu.Unlock()
		return enc.Encode(f)
	}

	if err := send(&frame{Kind: frameTransform, Source: source, Options: opts}); err != nil {
		return nil, fmt.Errorf("write transform request: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	dec := msgpack.NewDecoder(r)
	styles := 0
	for {
		var f frame
		if err := dec.Decode(&f); err != nil {
			if werr := g.Wait(); werr != nil {
				return nil, werr
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, ErrNoResult
			}
			return nil, fmt.Errorf("read frame: %w", err)
		}

		switch f.Kind {
		case frameStyle:
			sctx := context.WithValue(gctx, styleOrderKey{}, styles)
			styles++
			g.Go(func() error {
				reply := answerStyle(sctx, opts.PreprocessStyle, &f)
				if err := send(reply); err != nil {
					return fmt.Errorf("write style reply %d: %w", f.ID, err)
				}
				return nil
			})
		case frameResolve:
			g.Go(func() error {
				reply := answerResolve(gctx, opts.ResolvePath, &f)
				if err := send(reply); err != nil {
					return fmt.Errorf("write resolve reply %d: %w", f.ID, err)
				}
				return nil
			})
		case frameResult:
			if err := g.Wait(); err != nil {
				return nil, err
			}
			if f.Result == nil {
				return nil, ErrNoResult
			}
			return f.Result, nil
		case frameError:
			_ = g.Wait()
			return nil, &RemoteError{Message: f.Error, Trace: f.Stack}
		default:
			_ = g.Wait()
			return nil, fmt.Errorf("unexpected frame %q", f.Kind)
		}
	}
}

func answerStyle(ctx context.Context, hook StyleHook, f *frame) *frame {
	reply := &frame{Kind: frameStyleResult, ID: f.ID}
	if hook == nil {
		reply.Error = "style preprocessing is not available"
		return reply
	}
	res := hook(ctx, f.Content, f.Attrs)
	reply.Index = res.Index
	reply.Code = res.Code
	reply.Map = res.Map
	reply.Error = res.Error
	return reply
}

func answerResolve(ctx context.Context, hook ResolveHook, f *frame) *frame {
	reply := &frame{Kind: frameResolveResult, ID: f.ID}
	if hook == nil {
		reply.Path = f.Specifier
		return reply
	}
	p, err := hook(ctx, f.Specifier)
	if err != nil {
		reply.Error = err.Error()
		return reply
	}
	reply.Path = p
	return reply
}
