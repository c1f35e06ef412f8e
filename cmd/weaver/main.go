package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"insightweaver/internal/config"
	"insightweaver/internal/dataset"
	"insightweaver/internal/embedding"
	"insightweaver/internal/kb"
	"insightweaver/internal/llm"
	"insightweaver/internal/narrative"
	"insightweaver/internal/pipeline"
	"insightweaver/internal/synthesis"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "weaver",
	Short: "InsightWeaver - natural-language analytics over supply chain orders",
	Long: `InsightWeaver answers business questions about a supply chain order
dataset in plain English.

A question is grounded with knowledge-base context, turned into a small
JSON aggregation plan by an LLM, executed by a sandboxed interpreter over
the in-memory dataset, and explained by a narrative layer.

Run without arguments to start the interactive chat interface.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		zcfg := zap.NewProductionConfig()
		if level, perr := zapcore.ParseLevel(cfg.Logging.Level); perr == nil {
			zcfg.Level = zap.NewAtomicLevelAt(level)
		}
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		// The chat TUI owns the terminal; keep log noise out of it.
		if cmd.CalledAs() == "weaver" || cmd.CalledAs() == "chat" {
			zcfg.OutputPaths = []string{"stderr"}
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to weaver.json (default ./weaver.json)")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(datasetCmd)
	rootCmd.AddCommand(kbCmd)
	rootCmd.AddCommand(versionCmd)
}

// buildPipeline wires the full question-answering stack from config.
func buildPipeline() (*pipeline.Pipeline, *kb.Retriever) {
	provider := dataset.NewProvider(cfg.Dataset.DBPath, logger)

	retriever := kb.NewRetriever(cfg.Knowledge.StorePath, embeddingConfig(), logger)

	synthClient := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL:     cfg.Synthesis.BaseURL,
		APIKey:      cfg.Synthesis.APIKey,
		Model:       cfg.Synthesis.Model,
		Temperature: cfg.Synthesis.Temperature,
		MaxTokens:   cfg.Synthesis.MaxTokens,
		Timeout:     time.Duration(cfg.Synthesis.TimeoutSec) * time.Second,
		Logger:      logger,
	})
	synth := synthesis.NewSynthesizer(retriever, synthClient, logger)

	narrator := narrative.NewGenerator(narrative.Config{
		Strategy:  narrative.Strategy(cfg.Narrator.Strategy),
		Client:    narratorClient(),
		Retriever: retriever,
		Logger:    logger,
	})

	return pipeline.New(provider, synth, narrator, logger), retriever
}

// narratorClient returns the local narrator model client, or nil for the
// rule-based strategy.
func narratorClient() llm.Client {
	if cfg.Narrator.Strategy != string(narrative.StrategyLearnedWithFallback) {
		return nil
	}
	return llm.NewOllamaClient(llm.OllamaConfig{
		Endpoint: cfg.Narrator.OllamaEndpoint,
		Model:    cfg.Narrator.Model,
		Timeout:  time.Duration(cfg.Narrator.TimeoutSec) * time.Second,
	})
}

func embeddingConfig() embedding.Config {
	return embedding.Config{
		Provider:       cfg.Knowledge.EmbeddingProvider,
		OllamaEndpoint: cfg.Knowledge.OllamaEndpoint,
		OllamaModel:    cfg.Knowledge.OllamaModel,
		GenAIAPIKey:    cfg.Knowledge.GenAIAPIKey,
		GenAIModel:     cfg.Knowledge.GenAIModel,
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
