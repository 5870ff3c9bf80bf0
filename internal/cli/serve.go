package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/syllabot/syllabot/internal/config"
	"github.com/syllabot/syllabot/internal/logger"
	"github.com/syllabot/syllabot/internal/metrics"
	"github.com/syllabot/syllabot/pkg/coursetools"
	"github.com/syllabot/syllabot/pkg/embedding"
	"github.com/syllabot/syllabot/pkg/ingest"
	"github.com/syllabot/syllabot/pkg/modelclient"
	"github.com/syllabot/syllabot/pkg/rag"
	"github.com/syllabot/syllabot/pkg/server"
	"github.com/syllabot/syllabot/pkg/session"
	"github.com/syllabot/syllabot/pkg/tool"
	"github.com/syllabot/syllabot/pkg/vectorstore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server",
	Long: `Index the configured course folder, then serve the question-answering
API until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	appLogger, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return err
	}
	defer appLogger.Close()
	log := appLogger.GetZerolog()

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	embedder, err := embedding.NewOpenAI(cfg.AI.OpenAIAPIKey, cfg.AI.EmbeddingModel)
	if err != nil {
		return err
	}

	store, err := vectorstore.New(vectorstore.Config{
		DBPath:     cfg.DBPath(),
		Embedder:   embedder,
		Logger:     log,
		MaxResults: cfg.Index.MaxResults,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	parser := ingest.NewParser(ingest.NewChunker(cfg.Index.ChunkSize, cfg.Index.ChunkOverlap))
	loader := ingest.NewLoader(store, parser, log)

	sessions, err := session.New(cfg.SessionsDir(), cfg.Session.MaxHistory, log)
	if err != nil {
		return err
	}

	client, err := modelclient.NewAnthropic(modelclient.Config{
		APIKey:    cfg.AI.AnthropicAPIKey,
		Model:     cfg.AI.AnthropicModel,
		MaxTokens: cfg.AI.MaxTokens,
	})
	if err != nil {
		return err
	}

	m := metrics.New()

	ragSystem, err := rag.New(rag.Config{
		Client:   client,
		Sessions: sessions,
		Catalog:  store,
		Tools: []tool.Tool{
			coursetools.NewSearchTool(store),
			coursetools.NewOutlineTool(store),
		},
		Loader:    loader,
		Recorder:  m,
		MaxRounds: cfg.AI.MaxRounds,
		Logger:    log,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DocsPath != "" {
		if _, err := os.Stat(cfg.DocsPath); err == nil {
			courses, chunks, err := ragSystem.LoadCourseFolder(ctx, cfg.DocsPath, false)
			if err != nil {
				log.Error().Err(err).Msg("Initial course load failed")
			} else {
				m.ChunksIngested.Add(float64(chunks))
				log.Info().Int("courses", courses).Int("chunks", chunks).Msg("Initial course load complete")
			}
		} else {
			log.Warn().Str("path", cfg.DocsPath).Msg("Docs folder not found, starting with empty index")
		}
	}

	reload := func() {
		if _, _, err := loader.LoadFolder(ctx, cfg.DocsPath, false); err != nil {
			log.Error().Err(err).Msg("Course reload failed")
		}
	}

	if cfg.Index.WatchDocs && cfg.DocsPath != "" {
		watcher, err := ingest.NewWatcher(log, reload)
		if err != nil {
			return err
		}
		defer watcher.Stop()
		if err := watcher.Watch(cfg.DocsPath); err != nil {
			log.Warn().Err(err).Str("path", cfg.DocsPath).Msg("Failed to watch docs folder")
		}
	}

	if cfg.Index.ReindexCron != "" {
		scheduler, err := ingest.NewScheduler(cfg.Index.ReindexCron, reload, log)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	srv, err := server.New(server.Options{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      cfg.Server.RateLimit,
	}, ragSystem, m, log)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		return srv.Stop()
	case err := <-errCh:
		return err
	}
}
