// Package analysis drives the LSP client through workspace discovery,
// definition refinement and incoming-call collection, then hands the
// resulting edges to the callgraph package and renders a report.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"codedepth/internal/callgraph"
	"codedepth/internal/jsonrpc"
	"codedepth/internal/lspclient"
	"codedepth/internal/lsptypes"
)

// Options configures one pipeline run.
type Options struct {
	ProjectRootURI string
	MaxDuration    time.Duration
}

// Pipeline is the phase A-E analysis driver for one project.
type Pipeline struct {
	client   *lspclient.Client
	logger   *log.Logger
	opts     Options
	progress *Progress
}

func New(client *lspclient.Client, logger *log.Logger, opts Options, progress *Progress) *Pipeline {
	if progress == nil {
		progress = disabledProgress()
	}
	return &Pipeline{client: client, logger: logger, opts: opts, progress: progress}
}

// Run executes phases A through D and returns the raw per-node path
// sets; callers apply Phase E's partition and short-name rendering
// themselves via BuildReport or RenderSection (report.go), so Run takes
// no ignore-re.
func (p *Pipeline) Run(ctx context.Context) (map[callgraph.Key][]callgraph.Path, error) {
	p.progress.Update("discovering workspace", 0, 1)
	files, err := p.discoverWorkspaceFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("phase A (workspace discovery): %w", err)
	}
	p.logger.Info("discovered workspace files", "count", len(files))

	defs, err := p.refineDefinitions(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("phase B (definition refinement): %w", err)
	}
	p.logger.Info("refined function/method definitions", "count", len(defs))

	edges, err := p.collectIncomingCalls(ctx, defs)
	if err != nil {
		return nil, fmt.Errorf("phase C (incoming calls): %w", err)
	}
	p.logger.Info("collected call edges", "count", len(edges))

	depths := callgraph.BuildPaths(edges)
	p.progress.Finish()
	return depths, nil
}

// Phase A: index readiness + workspace file discovery.
func (p *Pipeline) discoverWorkspaceFiles(ctx context.Context) ([]string, error) {
	hash, err := p.workspaceSymbolWithRetry(ctx, "#")
	if err != nil {
		return nil, err
	}
	all := append([]lsptypes.SymbolInformation{}, hash...)

	empty, err := p.client.WorkspaceSymbol(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("workspace/symbol \"\": %w", err)
	}
	all = append(all, empty...)

	for c := byte('a'); c <= 'z'; c++ {
		syms, err := p.client.WorkspaceSymbol(ctx, string(c))
		if err != nil {
			return nil, fmt.Errorf("workspace/symbol %q: %w", string(c), err)
		}
		all = append(all, syms...)
	}

	fileSet := make(map[string]bool)
	for _, s := range all {
		if strings.HasPrefix(s.Location.URI, p.opts.ProjectRootURI) {
			fileSet[s.Location.URI] = true
		}
	}
	files := make([]string, 0, len(fileSet))
	for f := range fileSet {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}

// workspaceSymbolWithRetry retries only on the server-indexing RPC
// error code, up to floor(MaxDuration/100ms) attempts; any other error
// is fatal.
func (p *Pipeline) workspaceSymbolWithRetry(ctx context.Context, query string) ([]lsptypes.SymbolInformation, error) {
	maxAttempts := int(p.opts.MaxDuration / (100 * time.Millisecond))
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		syms, err := p.client.WorkspaceSymbol(ctx, query)
		if err == nil {
			return syms, nil
		}

		var rpcErr *jsonrpc.Error
		if errors.As(err, &rpcErr) && rpcErr.Code == jsonrpc.IndexingErrorCode {
			p.logger.Debug("server still indexing, retrying", "attempt", attempt+1, "of", maxAttempts)
			select {
			case <-time.After(100 * time.Millisecond):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return nil, fmt.Errorf("workspace/symbol %q: %w", query, err)
	}
	return nil, fmt.Errorf("workspace/symbol %q: server still indexing after max_duration", query)
}

// Phase B: definition refinement.
func (p *Pipeline) refineDefinitions(ctx context.Context, files []string) ([]callgraph.Item, error) {
	var defs []callgraph.Item
	for i, uri := range files {
		p.progress.Update("refining definitions", i+1, len(files))
		syms, err := p.client.DocumentSymbol(ctx, uri)
		if err != nil {
			// Flat (non-hierarchical) results and any other failure are
			// both fatal to the pipeline: accurate selectionRanges for
			// later call-hierarchy queries require the hierarchical shape.
			return nil, fmt.Errorf("documentSymbol %s: %w", uri, err)
		}
		collectFunctionSymbols(uri, syms, &defs)
	}
	return defs, nil
}

func collectFunctionSymbols(uri string, syms []lsptypes.DocumentSymbol, out *[]callgraph.Item) {
	for _, s := range syms {
		if s.Kind == lsptypes.SymbolKindFunction || s.Kind == lsptypes.SymbolKindMethod {
			*out = append(*out, callgraph.Item{
				Name:           s.Name,
				Kind:           s.Kind,
				Tags:           s.Tags,
				Detail:         s.Detail,
				File:           uri,
				Range:          s.Range,
				SelectionRange: s.SelectionRange,
			})
		}
		if len(s.Children) > 0 {
			collectFunctionSymbols(uri, s.Children, out)
		}
	}
}

// Phase C: incoming calls.
func (p *Pipeline) collectIncomingCalls(ctx context.Context, defs []callgraph.Item) ([]callgraph.Edge, error) {
	var edges []callgraph.Edge
	for i, item := range defs {
		p.progress.Update("collecting incoming calls", i+1, len(defs))
		calls, err := p.client.CallHierarchyIncomingCalls(ctx, item.ToLSP())
		if err != nil {
			var rpcErr *jsonrpc.Error
			if errors.As(err, &rpcErr) {
				p.logger.Warn("incoming calls failed for item, skipping",
					"file", item.File, "name", item.Name,
					"line", item.SelectionRange.Start.Line,
					"char", item.SelectionRange.Start.Character,
					"code", rpcErr.Code, "message", rpcErr.Message)
				continue
			}
			return nil, fmt.Errorf("callHierarchy/incomingCalls %s:%s: %w", item.File, item.Name, err)
		}
		for _, c := range calls {
			if !strings.HasPrefix(c.From.URI, p.opts.ProjectRootURI) {
				continue
			}
			edges = append(edges, callgraph.Edge{Caller: callgraph.FromLSP(c.From), Callee: item})
		}
	}
	return edges, nil
}
