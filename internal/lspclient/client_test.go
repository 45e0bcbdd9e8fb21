package lspclient

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codedepth/internal/lsptypes"
)

type fakeTransport struct {
	incoming chan json.RawMessage
	enqueued chan []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		incoming: make(chan json.RawMessage, 16),
		enqueued: make(chan []byte, 16),
	}
}

func (f *fakeTransport) Enqueue(frame []byte)            { f.enqueued <- frame }
func (f *fakeTransport) Inbox() <-chan json.RawMessage   { return f.incoming }
func (f *fakeTransport) respond(id int, result any)      { f.incoming <- mustJSON(map[string]any{"jsonrpc": "2.0", "id": id, "result": result}) }
func (f *fakeTransport) respondErr(id, code int, msg string) {
	f.incoming <- mustJSON(map[string]any{"jsonrpc": "2.0", "id": id, "error": map[string]any{"code": code, "message": msg}})
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func testLogger() *log.Logger { return log.New(io.Discard) }

func frameIDAndMethod(t *testing.T, frame []byte) (int, string) {
	t.Helper()
	var head struct {
		ID     int    `json:"id"`
		Method string `json:"method"`
	}
	require.NoError(t, json.Unmarshal(frame, &head))
	return head.ID, head.Method
}

func TestCallCorrelatesOutOfOrderResponses(t *testing.T) {
	fx := newFakeTransport()
	c := New(fx, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	type outcome struct {
		method string
		value  int
		err    error
	}
	results := make(chan outcome, 2)
	go func() {
		v, err := Call[int](ctx, c, "methodA", nil)
		results <- outcome{"methodA", v, err}
	}()
	go func() {
		v, err := Call[int](ctx, c, "methodB", nil)
		results <- outcome{"methodB", v, err}
	}()

	frame1 := <-fx.enqueued
	frame2 := <-fx.enqueued
	id1, m1 := frameIDAndMethod(t, frame1)
	id2, m2 := frameIDAndMethod(t, frame2)

	want := map[string]int{m1: 111, m2: 222}
	idOf := map[string]int{m1: id1, m2: id2}

	// An unmatched id must be ignored without disturbing either waiter.
	fx.respond(9999, 0)
	// Deliver out of the order the calls were issued in.
	fx.respond(idOf[m2], want[m2])
	fx.respond(idOf[m1], want[m1])

	got := map[string]int{}
	for i := 0; i < 2; i++ {
		o := <-results
		require.NoError(t, o.err)
		got[o.method] = o.value
	}
	assert.Equal(t, want, got)
}

func TestCallReturnsRPCError(t *testing.T) {
	fx := newFakeTransport()
	c := New(fx, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	done := make(chan error, 1)
	go func() {
		_, err := Call[int](ctx, c, "boom", nil)
		done <- err
	}()
	frame := <-fx.enqueued
	id, _ := frameIDAndMethod(t, frame)
	fx.respondErr(id, 42, "kaboom")

	err := <-done
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestClosedTransportReleasesPendingCalls(t *testing.T) {
	fx := newFakeTransport()
	c := New(fx, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	done := make(chan error, 1)
	go func() {
		_, err := Call[int](ctx, c, "never-answered", nil)
		done <- err
	}()
	<-fx.enqueued
	close(fx.incoming)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("pending call was not released on close")
	}
	assert.Equal(t, StateClosed, c.State())
}

func TestInitializeRequiresAllCapabilities(t *testing.T) {
	fx := newFakeTransport()
	c := New(fx, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	done := make(chan error, 1)
	go func() {
		_, err := c.Initialize(ctx, lsptypes.InitializeParams{})
		done <- err
	}()
	frame := <-fx.enqueued
	id, method := frameIDAndMethod(t, frame)
	assert.Equal(t, "initialize", method)
	fx.respond(id, map[string]any{
		"capabilities": map[string]any{
			"workspaceSymbolProvider": true,
			// documentSymbolProvider and callHierarchyProvider omitted
		},
	})

	err := <-done
	require.Error(t, err)
	assert.Contains(t, err.Error(), "documentSymbolProvider")
	assert.Contains(t, err.Error(), "callHierarchyProvider")
	assert.Equal(t, StateInitializing, c.State())
}

func TestInitializeSucceedsAndTransitionsToReady(t *testing.T) {
	fx := newFakeTransport()
	c := New(fx, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	done := make(chan error, 1)
	go func() {
		_, err := c.Initialize(ctx, lsptypes.InitializeParams{})
		done <- err
	}()
	frame := <-fx.enqueued
	id, _ := frameIDAndMethod(t, frame)
	fx.respond(id, map[string]any{
		"capabilities": map[string]any{
			"workspaceSymbolProvider": true,
			"documentSymbolProvider":  true,
			"callHierarchyProvider":   map[string]any{"id": "x"},
		},
	})
	require.NoError(t, <-done)
	assert.Equal(t, StateReady, c.State())

	// The initialized notification should have gone out right after.
	initializedFrame := <-fx.enqueued
	_, method := frameIDAndMethod(t, initializedFrame)
	assert.Equal(t, "initialized", method)
}

func TestDocumentSymbolRejectsFlatResult(t *testing.T) {
	fx := newFakeTransport()
	c := New(fx, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)
	forceReady(c)

	done := make(chan error, 1)
	go func() {
		_, err := c.DocumentSymbol(ctx, "file:///a.go")
		done <- err
	}()
	frame := <-fx.enqueued
	id, _ := frameIDAndMethod(t, frame)
	fx.respond(id, []map[string]any{
		{"name": "foo", "kind": 12, "location": map[string]any{"uri": "file:///a.go", "range": map[string]any{}}},
	})

	err := <-done
	assert.ErrorIs(t, err, ErrFlatDocumentSymbols)
}

func forceReady(c *Client) {
	c.mu.Lock()
	c.state = StateReady
	c.mu.Unlock()
}
