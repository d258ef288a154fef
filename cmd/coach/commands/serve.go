package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/prepwise/coach-go/internal/embedder"
	"github.com/prepwise/coach-go/internal/interview"
	"github.com/prepwise/coach-go/internal/logging"
	"github.com/prepwise/coach-go/internal/provider"
	"github.com/prepwise/coach-go/internal/rag"
	"github.com/prepwise/coach-go/internal/server"
	"github.com/prepwise/coach-go/internal/session"
	"github.com/prepwise/coach-go/internal/tracing"
)

// NewServeCmd constructs the `coach serve` command, which starts the HTTP
// server exposing the mock-interview API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the coach HTTP server",
		Long: `Start the coach HTTP server on localhost.

The server exposes the session lifecycle API: create a session from a job
description and resume, fetch the generated questions, submit the candidate's
answers, and poll for the evaluation report.

Examples:
  coach serve
  coach serve --port 9090
  MODEL_PROVIDER=openai coach serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// COACH_HOST/COACH_PORT (or their YAML equivalents) apply unless the
			// flag was given explicitly.
			if !cmd.Flags().Changed("host") && os.Getenv("COACH_HOST") != "" {
				host = os.Getenv("COACH_HOST")
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("COACH_PORT", port)
			}

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing, opt-in and a no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			emb, err := embedder.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise embedder: %w", err)
			}

			index, indexName, closeIndex, err := buildIndex(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer closeIndex()

			chunker, err := rag.NewChunker(getEnvInt("CHUNK_SIZE", 0), getEnvInt("CHUNK_OVERLAP", 200))
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			docs, err := rag.NewService(nil, chunker, emb, index, log)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise retrieval service: %w", err)
			}

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			gen := interview.WrapModel(chatModel)
			llm, err := interview.NewLLM(interview.Models{Chat: gen}, 0, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			store := session.NewStore(log)
			stopJanitor := store.StartJanitor(getEnvDuration("SESSION_TTL", 0))
			defer stopJanitor()

			pipeline, err := interview.NewPipeline(interview.PipelineConfig{
				Store:             store,
				Docs:              docs,
				Preprocessor:      llm,
				TopicExtractor:    llm,
				QuestionGenerator: llm,
				QuestionTimeout:   getEnvDuration("QUESTION_TIMEOUT", 0),
				Logger:            log,
			})
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			trigger, err := interview.NewTrigger(store, llm, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			providerName := os.Getenv("MODEL_PROVIDER")
			if providerName == "" {
				providerName = "ollama"
			}
			pingers := []server.Pinger{
				server.NewIndexPinger(docs, indexName),
				server.NewModelPinger(gen, providerName),
			}

			srv, err := server.New(store, pipeline, trigger, docs, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("COACH_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
