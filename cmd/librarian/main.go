// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command librarian is the thin CLI entrypoint: bootstrap a workspace,
// watch it for incremental changes, run a query, plan a task, or submit
// feedback on a prior query's packs. All actual behavior lives in the
// internal packages; main wires flags to them and nothing more.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"

	"github.com/AleutianAI/librarian/internal/bootstrap"
	"github.com/AleutianAI/librarian/internal/config"
	"github.com/AleutianAI/librarian/internal/evidence"
	"github.com/AleutianAI/librarian/internal/governor"
	"github.com/AleutianAI/librarian/internal/knowledge"
	"github.com/AleutianAI/librarian/internal/librarian"
	"github.com/AleutianAI/librarian/internal/logging"
	"github.com/AleutianAI/librarian/internal/parser"
	"github.com/AleutianAI/librarian/internal/provider"
	"github.com/AleutianAI/librarian/internal/query"
	"github.com/AleutianAI/librarian/internal/storage"
	"github.com/AleutianAI/librarian/internal/storage/weaviate"
	"github.com/AleutianAI/librarian/internal/telemetry"
)

var (
	configPath    string
	workspacePath string

	rootCmd = &cobra.Command{
		Use:   "librarian",
		Short: "A code-knowledge librarian for a workspace",
		Long:  "librarian bootstraps, watches, queries and plans tasks against a workspace's code graph.",
	}

	bootstrapCmd = &cobra.Command{
		Use:   "bootstrap",
		Short: "Walk the workspace and (re)generate its knowledge base",
		RunE:  runBootstrap,
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Watch the workspace and re-bootstrap incrementally on change",
		RunE:  runWatch,
	}

	queryText        string
	queryPerspective string
	queryCmd         = &cobra.Command{
		Use:   "query",
		Short: "Ask a question against the workspace's knowledge base",
		RunE:  runQuery,
	}

	planDescription string
	planCmd         = &cobra.Command{
		Use:   "plan",
		Short: "Produce a task plan from a free-text description",
		RunE:  runPlan,
	}

	feedbackQueryID string
	feedbackPackIDs []string
	feedbackOutcome string
	feedbackCmd     = &cobra.Command{
		Use:   "feedback",
		Short: "Submit an outcome for a prior query's packs",
		RunE:  runFeedback,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a librarian config YAML file")
	rootCmd.PersistentFlags().StringVar(&workspacePath, "workspace", ".", "workspace root to operate on")

	queryCmd.Flags().StringVar(&queryText, "text", "", "the question to ask (required)")
	queryCmd.Flags().StringVar(&queryPerspective, "perspective", "", "reviewer perspective (debugging, security, performance, architecture, modification, testing, understanding)")
	_ = queryCmd.MarkFlagRequired("text")

	planCmd.Flags().StringVar(&planDescription, "description", "", "free-text description of the task (required)")
	_ = planCmd.MarkFlagRequired("description")

	feedbackCmd.Flags().StringVar(&feedbackQueryID, "query-id", "", "the query id the feedback applies to (required)")
	feedbackCmd.Flags().StringSliceVar(&feedbackPackIDs, "pack", nil, "pack id to apply the outcome to (repeatable)")
	feedbackCmd.Flags().StringVar(&feedbackOutcome, "outcome", "success", "success, partial or failure")
	_ = feedbackCmd.MarkFlagRequired("query-id")
	_ = feedbackCmd.MarkFlagRequired("pack")

	rootCmd.AddCommand(bootstrapCmd, watchCmd, queryCmd, planCmd, feedbackCmd)
}

func main() {
	shutdown := setupTracing()
	defer shutdown()

	ctx, cancel := signalContext()
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "librarian:", err)
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()
	return ctx, cancel
}

// setupTracing wires a stdout-only OTel tracer provider: there is no
// collector in this deployment target, so spans are printed for local
// inspection rather than exported anywhere.
func setupTracing() func() {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return func() {}
	}
	tp := trace.NewTracerProvider(trace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}

// buildVectors dials the configured Weaviate instance, if any. A blank
// WeaviateURL, or one that does not contain "http", runs librarian in
// lightweight mode: no error, just a nil storage.VectorIndex, mirroring
// the teacher's own "optional dependency" treatment of the same setting.
// A URL that contains "http" but has no parsable scheme and host, or an
// instance that cannot be dialed, returns an error.
func buildVectors(ctx context.Context, cfg config.Config, log *logging.Logger) (storage.VectorIndex, error) {
	raw := strings.Trim(cfg.WeaviateURL, "\"' ")
	if raw == "" || !strings.Contains(raw, "http") {
		return nil, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid weaviate url: %s", raw)
	}
	idx, err := weaviate.New(ctx, parsed.Host, log)
	if err != nil {
		return nil, fmt.Errorf("dial weaviate: %w", err)
	}
	return idx, nil
}

func buildOrchestrator(ctx context.Context, cfg config.Config, log *logging.Logger) (*bootstrap.Orchestrator, storage.Store, error) {
	store, err := storage.OpenWithPath(cfg.StorageDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}

	vectors, err := buildVectors(ctx, cfg, log)
	if err != nil {
		log.Warn("weaviate unavailable, degrading to structural-only retrieval", "err", err)
	}

	var chatProvider provider.Provider
	if cfg.LLMProviderID == "openai" {
		chatProvider = provider.NewOpenAIProvider(os.Getenv("OPENAI_API_KEY"))
	}

	registry := parser.NewRegistry()
	registry.Register("go", parser.NewGoParser())

	limits := governor.Limits{
		TokensPerFile:  cfg.Governor.TokensPerFile,
		TokensPerPhase: cfg.Governor.TokensPerPhase,
		TokensPerRun:   cfg.Governor.TokensPerRun,
		FilesPerPhase:  cfg.Governor.FilesPerPhase,
		WallTime:       time.Duration(cfg.Governor.WallTimeMS) * time.Millisecond,
		MaxRetries:     cfg.Governor.MaxRetries,
	}
	gov := governor.New(limits)
	gov.Metrics = telemetry.NewMetrics(nil)

	generator := &knowledge.Generator{
		Store:      store,
		Vectors:    vectors,
		Chat:       chatProvider,
		Embed:      chatProvider,
		Governor:   gov,
		Defeaters:  evidence.New(),
		ModelID:    cfg.LLMModelID,
		CheapModel: cfg.CheapModelID,
	}

	orch := &bootstrap.Orchestrator{
		Store:     store,
		Vectors:   vectors,
		Parsers:   registry,
		Provider:  chatProvider,
		Generator: generator,
		Governor:  gov,
		Config:    cfg,
		Log:       log,
	}
	return orch, store, nil
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.Default()

	orch, store, err := buildOrchestrator(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, span := otel.Tracer("librarian.cli").Start(cmd.Context(), "bootstrap")
	defer span.End()

	report, err := orch.Run(ctx, workspacePath)
	if err != nil {
		return err
	}
	return printJSON(report)
}

// runWatch re-runs an incremental bootstrap whenever the workspace
// changes, debounced by bootstrap.Watcher. It never exits on its own;
// Ctrl+C (or SIGTERM) stops it via the root context.
func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.BootstrapMode = config.ModeIncremental
	log := logging.Default()

	orch, store, err := buildOrchestrator(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	rerun := func(paths []string) {
		_, span := otel.Tracer("librarian.cli").Start(ctx, "watch.rerun")
		defer span.End()
		if _, err := orch.Run(ctx, workspacePath); err != nil {
			fmt.Fprintln(os.Stderr, "librarian: incremental bootstrap failed:", err)
		}
	}

	watcher, err := bootstrap.NewWatcher(workspacePath, rerun)
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Stop()

	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	fmt.Println("librarian: watching", workspacePath, "(Ctrl+C to stop)")
	<-ctx.Done()
	return nil
}

func buildLibrarian(ctx context.Context, cfg config.Config) (*librarian.Librarian, storage.Store, error) {
	store, err := storage.OpenWithPath(cfg.StorageDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}

	log := logging.Default()
	vectors, err := buildVectors(ctx, cfg, log)
	if err != nil {
		log.Warn("weaviate unavailable, degrading to structural-only retrieval", "err", err)
	}

	var chatProvider provider.Provider
	if cfg.LLMProviderID == "openai" {
		chatProvider = provider.NewOpenAIProvider(os.Getenv("OPENAI_API_KEY"))
	}

	engine := &query.Engine{
		Store:        store,
		Vectors:      vectors,
		Embed:        chatProvider,
		ModelID:      cfg.LLMModelID,
		EmbedModelID: cfg.EmbeddingModel,
		Metrics:      telemetry.NewMetrics(nil),
	}
	if cfg.DisableSynth {
		engine.Chat = nil
	} else {
		engine.Chat = chatProvider
	}

	return librarian.New(store, engine), store, nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lib, store, err := buildLibrarian(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, span := otel.Tracer("librarian.cli").Start(cmd.Context(), "query")
	defer span.End()

	result, err := lib.Query(ctx, query.Request{
		Text:        queryText,
		Perspective: query.Perspective(queryPerspective),
	})
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lib, store, err := buildLibrarian(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, span := otel.Tracer("librarian.cli").Start(cmd.Context(), "plan")
	defer span.End()

	plan, err := lib.PlanTask(ctx, planDescription, workspacePath)
	if err != nil {
		return err
	}
	return printJSON(plan)
}

func runFeedback(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lib, store, err := buildLibrarian(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, span := otel.Tracer("librarian.cli").Start(cmd.Context(), "feedback")
	defer span.End()

	result, err := lib.SubmitFeedback(ctx, librarian.FeedbackRequest{
		QueryID: feedbackQueryID,
		PackIDs: feedbackPackIDs,
		Outcome: storage.Outcome(feedbackOutcome),
	})
	if err != nil {
		return err
	}
	return printJSON(result)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
