package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/syllabot/syllabot/internal/config"
	"github.com/syllabot/syllabot/internal/logger"
	"github.com/syllabot/syllabot/pkg/embedding"
	"github.com/syllabot/syllabot/pkg/ingest"
	"github.com/syllabot/syllabot/pkg/vectorstore"
)

var ingestClear bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [folder]",
	Short: "Index a folder of course documents",
	Long: `Parse and index every course document in a folder. Without an argument
the configured docs folder is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestClear, "clear", false, "wipe the existing index first")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if cfg.AI.OpenAIAPIKey == "" {
		return fmt.Errorf("openai api key is required (set ai.openai_api_key or OPENAI_API_KEY)")
	}

	folder := cfg.DocsPath
	if len(args) == 1 {
		folder = args[0]
	}
	if folder == "" {
		return fmt.Errorf("no folder given and docs_path is not configured")
	}

	appLogger, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		Console: true,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return err
	}
	defer appLogger.Close()
	log := appLogger.GetZerolog()

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

	courses, chunks, err := loader.LoadFolder(context.Background(), folder, ingestClear)
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %d courses (%d chunks) from %s\n", courses, chunks, folder)
	return nil
}
