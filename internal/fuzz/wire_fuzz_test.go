package fuzztests

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"tessera/internal/transform"
)

func FuzzServeFrames(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0xc0})
	for _, frame := range []map[string]any{
		{"kind": "result", "result": map[string]any{"code": "export {}"}},
		{"kind": "error", "error": "boom", "stack": "at peer"},
		{"kind": "style", "id": 1, "content": "a{}", "attrs": map[string]string{"lang": "css"}},
		{"kind": "resolve", "id": 2, "specifier": "./x.js"},
		{"kind": "unknown"},
	} {
		data, err := msgpack.Marshal(frame)
		if err != nil {
			f.Fatalf("seed: %v", err)
		}
		f.Add(data)
	}

	f.Fuzz(func(t *testing.T, input []byte) {
		if len(input) > maxSeedBytes {
			input = input[:maxSeedBytes]
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		res, err := transform.Serve(ctx, bytes.NewReader(input), io.Discard, "", &transform.Options{})
		if err == nil && res == nil {
			t.Fatalf("Serve returned neither a result nor an error")
		}
	})
}
