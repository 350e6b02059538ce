package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haidar/ragchat/internal/config"
	"github.com/haidar/ragchat/internal/logger"
	"github.com/haidar/ragchat/internal/metrics"
	"github.com/haidar/ragchat/internal/server"
	"github.com/haidar/ragchat/pkg/document"
	"github.com/haidar/ragchat/pkg/embedding"
	"github.com/haidar/ragchat/pkg/index"
	"github.com/haidar/ragchat/pkg/llm"
	"github.com/haidar/ragchat/pkg/responder"
	"github.com/haidar/ragchat/pkg/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ragchat HTTP service",
	Long: `Start the HTTP service. The server accepts PDF uploads, builds a vector
index per session, and answers chat requests grounded in the uploaded
document.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: true,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()
	log := appLogger.GetZerolog()

	embedder, err := embedding.NewProvider(embedding.Config{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		APIKey:    cfg.Embedding.APIKey,
		BaseURL:   cfg.Embedding.BaseURL,
		Dimension: cfg.Embedding.Dimension,
	})
	if err != nil {
		return fmt.Errorf("failed to create embedding provider: %w", err)
	}

	completer, err := llm.NewProvider(llm.Config{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("failed to create llm provider: %w", err)
	}

	m := metrics.New()
	embedder = m.InstrumentEmbedder(embedder)
	completer = m.InstrumentLLM(completer)

	splitter := document.NewSplitter(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
	builder := index.NewBuilder(embedder, splitter, log)

	sessions, err := store.New(store.Config{
		VectorsDir: cfg.VectorsDir(),
		Build: func(ctx context.Context, pdfPath, dir string) (store.Index, index.Metadata, error) {
			return builder.Build(ctx, pdfPath, dir)
		},
		Open: func(dir string) (store.Index, error) {
			return index.Open(dir, embedder)
		},
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}
	defer sessions.Close()

	chat := responder.New(sessions, completer, responder.Config{
		TopK:        cfg.Retrieval.TopK,
		MaxSources:  cfg.Retrieval.MaxSources,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, log)

	srv, err := server.New(server.Options{
		Host:               cfg.Server.Host,
		Port:               cfg.Server.Port,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		ShutdownTimeout:    time.Duration(cfg.Server.ShutdownTimeout) * time.Second,
		MaxFileBytes:       cfg.Upload.MaxFileBytes,
		TempUploadDir:      cfg.TempUploadDir(),
		EmbeddingModel:     cfg.Embedding.Model,
		LLMModel:           cfg.LLM.Model,
	}, sessions, chat, embedder, m, log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Warn early when the embedding backend is unreachable rather than on
	// the first upload.
	probeCtx, cancelProbe := context.WithTimeout(context.Background(), 10*time.Second)
	if _, err := embedder.Embed(probeCtx, "test"); err != nil {
		log.Warn().Err(err).
			Str("model", cfg.Embedding.Model).
			Msg("Embedding backend is not reachable, uploads will fail until it is")
	}
	cancelProbe()

	var janitor *store.Janitor
	if cfg.Janitor.Enabled {
		janitor = store.NewJanitor(
			sessions,
			cfg.TempUploadDir(),
			time.Duration(cfg.Janitor.MaxAge)*time.Hour,
			cfg.Janitor.Schedule,
			log,
		)
		if err := janitor.Start(); err != nil {
			return fmt.Errorf("failed to start janitor: %w", err)
		}
		defer janitor.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	}

	return srv.Stop()
}
