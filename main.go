// Copyright
// SPDX-License-Identifier: MIT
// codedepth: computes root-to-function call-path depths via an LSP
// server and flags functions whose depth varies across call paths.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"codedepth/internal/analysis"
	"codedepth/internal/callgraph"
	"codedepth/internal/lspclient"
	"codedepth/internal/lsptypes"
	"codedepth/internal/procio"
)

const version = "0.1.0"

// maxIndexWait bounds Phase A's retry loop for a server still building
// its index; it is not a per-RPC timeout.
const maxIndexWait = 30 * time.Second

var (
	flagProjectPath    string
	flagLangServerExe  string
	flagIgnoreRe       string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "codedepth",
		Version:       version,
		Short:         "Flag functions whose call-path depth is inconsistent across callers",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	cmd.Flags().StringVar(&flagProjectPath, "project-path", "", "directory of the project to analyze (required)")
	cmd.Flags().StringVar(&flagLangServerExe, "lang-server-exe", "", "command line of the LSP server to spawn (required)")
	cmd.Flags().StringVar(&flagIgnoreRe, "ignore-re", ".*test.*", "regex over short names \"<path>:<fn>\"; matches are elided from the report")
	_ = cmd.MarkFlagRequired("project-path")
	_ = cmd.MarkFlagRequired("lang-server-exe")
	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	runID := uuid.NewString()
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Level: log.InfoLevel})
	logger = logger.With("run_id", runID)

	absPath, err := filepath.Abs(flagProjectPath)
	if err != nil {
		logger.Error("canonicalize project path", "path", flagProjectPath, "err", err)
		return err
	}
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		absPath = resolved
	}
	if info, err := os.Stat(absPath); err != nil || !info.IsDir() {
		err = fmt.Errorf("project-path %q is not a directory", absPath)
		logger.Error("canonicalize project path", "err", err)
		return err
	}
	rootURI := pathToFileURI(absPath)

	ignoreRe, err := regexp.Compile(flagIgnoreRe)
	if err != nil {
		logger.Error("compile ignore-re", "pattern", flagIgnoreRe, "err", err)
		return err
	}

	program, serverArgs, err := splitCommandLine(flagLangServerExe)
	if err != nil {
		logger.Error("parse lang-server-exe", "err", err)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	proc, err := procio.Spawn(ctx, program, serverArgs, logger)
	if err != nil {
		logger.Error("spawn language server", "program", program, "err", err)
		return err
	}
	defer func() {
		proc.Close()
		if werr := proc.Wait(); werr != nil {
			logger.Warn("language server exited with error", "err", werr)
		}
	}()

	client := lspclient.New(proc, logger)
	go client.Run(ctx)

	name := "codedepth"
	initParams := lsptypes.InitializeParams{
		RootURI:      &rootURI,
		Capabilities: lsptypes.ClientCapabilities{},
		ClientInfo:   &lsptypes.ClientInfo{Name: name, Version: version},
	}
	if _, err := client.Initialize(ctx, initParams); err != nil {
		logger.Error("initialize language server", "err", err)
		return err
	}
	logger.Info("language server ready", "root_uri", rootURI)

	progress := analysis.NewProgress(os.Stderr, isatty.IsTerminal(os.Stderr.Fd()))
	pipeline := analysis.New(client, logger, analysis.Options{ProjectRootURI: rootURI, MaxDuration: maxIndexWait}, progress)

	depths, err := pipeline.Run(ctx)
	if err != nil {
		logger.Error("analysis failed", "err", err)
		return err
	}

	ok, problems := callgraph.Partition(depths)
	analysis.LogInconsistencies(func(msg string, kv ...any) { logger.Warn(msg, kv...) }, problems, rootURI)

	report := analysis.Report{
		OK:       analysis.RenderSection(ok, rootURI, ignoreRe),
		Problems: analysis.RenderSection(problems, rootURI, ignoreRe),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// splitCommandLine turns a whitespace-separated command line into a
// program plus its arguments.
func splitCommandLine(s string) (program string, args []string, err error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("lang-server-exe must not be empty")
	}
	return fields[0], fields[1:], nil
}

// pathToFileURI renders an absolute filesystem directory as a
// file:// URI with a trailing slash, so prefix matching against a
// document URI correctly identifies membership in the project.
func pathToFileURI(absPath string) string {
	p := filepath.ToSlash(absPath)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p // drive-letter paths on Windows, e.g. C:/foo
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return "file://" + p
}
