// Package lspclient is the typed facade over the framed JSON-RPC
// transport: it assigns monotonic request ids, correlates responses to
// their requests, and exposes the four LSP methods this tool drives.
package lspclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"codedepth/internal/jsonrpc"
	"codedepth/internal/lsptypes"
)

// Transport is the process-I/O dependency a Client drives: an outbound
// enqueue and an inbound channel of parsed frames. *procio.Process
// satisfies it; tests can supply a fake.
type Transport interface {
	Enqueue(frame []byte)
	Inbox() <-chan json.RawMessage
}

// State is the client's lifecycle stage.
type State int

const (
	StateCreated State = iota
	StateInitializing
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrClosed is returned from in-flight calls once the server's stdout
// pump has ended.
var ErrClosed = errors.New("lspclient: connection closed")

// ErrFlatDocumentSymbols is returned by DocumentSymbol when a server
// answers with the flat SymbolInformation[] shape instead of the
// hierarchical DocumentSymbol[] shape this tool requires for accurate
// selection ranges.
var ErrFlatDocumentSymbols = errors.New("lspclient: server returned flat documentSymbol result, hierarchical result required")

// Client is a single LSP session over one spawned server process. It is
// driven from one goroutine (the dispatch loop started by Run) plus
// whichever goroutine(s) issue calls; multiple concurrent calls are
// safe because ids are unique, though the reference pipeline is
// sequential.
type Client struct {
	proc   Transport
	logger *log.Logger

	mu      sync.Mutex
	state   State
	counter int
	pending map[int]chan json.RawMessage
}

// New wraps an already-spawned process. Call Run before issuing any
// calls or notifications.
func New(proc Transport, logger *log.Logger) *Client {
	return &Client{
		proc:    proc,
		logger:  logger,
		state:   StateCreated,
		pending: make(map[int]chan json.RawMessage),
	}
}

// Run starts the dispatch loop that routes inbound frames to the
// pending call awaiting their id. It returns once the transport's Inbox
// channel closes or ctx is cancelled, at which point the client
// transitions to Closed and every pending call is released with
// ErrClosed.
func (c *Client) Run(ctx context.Context) {
	for {
		select {
		case msg, ok := <-c.proc.Inbox():
			if !ok {
				c.closeAll()
				return
			}
			c.dispatch(msg)
		case <-ctx.Done():
			c.closeAll()
			return
		}
	}
}

func (c *Client) dispatch(msg json.RawMessage) {
	id, ok := jsonrpc.PeekID(msg)
	if !ok {
		// A notification from the server (or a message we don't
		// correlate); nothing to do with it here.
		return
	}
	c.mu.Lock()
	ch, found := c.pending[id]
	if found {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !found {
		c.logger.Warn("response with unmatched or already-served id", "id", id)
		return
	}
	ch <- msg
	close(ch)
}

func (c *Client) closeAll() {
	c.mu.Lock()
	c.state = StateClosed
	pending := c.pending
	c.pending = make(map[int]chan json.RawMessage)
	c.mu.Unlock()
	for _, ch := range pending {
		close(ch)
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) nextID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.counter
	c.counter++
	return id
}

// Call issues a request for method and blocks until its matching
// response arrives, ctx is cancelled, or the client closes. It is a
// free function rather than a method because Go methods cannot carry
// their own type parameters.
func Call[T any](ctx context.Context, c *Client, method string, params any) (T, error) {
	var zero T

	id := c.nextID()
	ch := make(chan json.RawMessage, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	buf, err := jsonrpc.BuildRequest(id, method, params)
	if err != nil {
		return zero, fmt.Errorf("build request %s: %w", method, err)
	}
	c.proc.Enqueue(buf)

	select {
	case msg, ok := <-ch:
		if !ok {
			return zero, ErrClosed
		}
		resp, err := jsonrpc.ParseResponse[T](msg)
		if err != nil {
			c.logger.Warn("dropping malformed response", "method", method, "id", id, "err", err)
			return zero, err
		}
		if resp.Err != nil {
			return zero, resp.Err
		}
		return resp.Result, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Notify sends a fire-and-forget notification; it never awaits a
// reply.
func Notify(c *Client, method string, params any) error {
	buf, err := jsonrpc.BuildNotification(method, params)
	if err != nil {
		return fmt.Errorf("build notification %s: %w", method, err)
	}
	c.proc.Enqueue(buf)
	return nil
}

func (c *Client) requireReady() error {
	if st := c.State(); st != StateReady {
		return fmt.Errorf("lspclient: operation requires Ready state, have %s", st)
	}
	return nil
}

// Initialize performs the initialize/initialized handshake and checks
// that the server declares the three providers this tool needs. It
// must complete before any other operation.
func (c *Client) Initialize(ctx context.Context, params lsptypes.InitializeParams) (lsptypes.InitializeResult, error) {
	var zero lsptypes.InitializeResult

	c.mu.Lock()
	if c.state != StateCreated {
		c.mu.Unlock()
		return zero, fmt.Errorf("lspclient: initialize requires Created state, have %s", c.state)
	}
	c.state = StateInitializing
	c.mu.Unlock()

	result, err := Call[lsptypes.InitializeResult](ctx, c, "initialize", params)
	if err != nil {
		return zero, fmt.Errorf("initialize: %w", err)
	}

	if missing := missingCapabilities(result.Capabilities); len(missing) > 0 {
		return zero, fmt.Errorf("server is missing required capabilities: %s", strings.Join(missing, ", "))
	}

	if err := Notify(c, "initialized", struct{}{}); err != nil {
		return zero, fmt.Errorf("initialize: %w", err)
	}

	c.mu.Lock()
	c.state = StateReady
	c.mu.Unlock()
	return result, nil
}

func missingCapabilities(caps lsptypes.ServerCapabilities) []string {
	var missing []string
	if !lsptypes.ProviderEnabled(caps.WorkspaceSymbolProvider) {
		missing = append(missing, "workspaceSymbolProvider")
	}
	if !lsptypes.ProviderEnabled(caps.DocumentSymbolProvider) {
		missing = append(missing, "documentSymbolProvider")
	}
	if !lsptypes.ProviderEnabled(caps.CallHierarchyProvider) {
		missing = append(missing, "callHierarchyProvider")
	}
	return missing
}

// WorkspaceSymbol runs workspace/symbol for query.
func (c *Client) WorkspaceSymbol(ctx context.Context, query string) ([]lsptypes.SymbolInformation, error) {
	if err := c.requireReady(); err != nil {
		return nil, err
	}
	return Call[[]lsptypes.SymbolInformation](ctx, c, "workspace/symbol", lsptypes.WorkspaceSymbolParams{Query: query})
}

// DocumentSymbol runs textDocument/documentSymbol for uri. It returns
// ErrFlatDocumentSymbols if the server answers with the flat
// SymbolInformation[] shape.
func (c *Client) DocumentSymbol(ctx context.Context, uri string) ([]lsptypes.DocumentSymbol, error) {
	if err := c.requireReady(); err != nil {
		return nil, err
	}
	params := lsptypes.DocumentSymbolParams{TextDocument: lsptypes.TextDocumentIdentifier{URI: uri}}
	raw, err := Call[json.RawMessage](ctx, c, "textDocument/documentSymbol", params)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var probe []json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("documentSymbol: decode result array: %w", err)
	}
	if len(probe) == 0 {
		return nil, nil
	}

	var head map[string]json.RawMessage
	if err := json.Unmarshal(probe[0], &head); err != nil {
		return nil, fmt.Errorf("documentSymbol: decode first symbol: %w", err)
	}
	if _, hierarchical := head["selectionRange"]; !hierarchical {
		return nil, ErrFlatDocumentSymbols
	}

	var symbols []lsptypes.DocumentSymbol
	if err := json.Unmarshal(raw, &symbols); err != nil {
		return nil, fmt.Errorf("documentSymbol: decode hierarchical symbols: %w", err)
	}
	return symbols, nil
}

// CallHierarchyIncomingCalls runs callHierarchy/incomingCalls for item.
func (c *Client) CallHierarchyIncomingCalls(ctx context.Context, item lsptypes.CallHierarchyItem) ([]lsptypes.CallHierarchyIncomingCall, error) {
	if err := c.requireReady(); err != nil {
		return nil, err
	}
	params := lsptypes.CallHierarchyIncomingCallsParams{Item: item}
	return Call[[]lsptypes.CallHierarchyIncomingCall](ctx, c, "callHierarchy/incomingCalls", params)
}
