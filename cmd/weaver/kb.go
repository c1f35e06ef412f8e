package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"insightweaver/internal/embedding"
	"insightweaver/internal/kb"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Knowledge base commands",
}

var kbBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Embed the markdown knowledge base into the vector store",
	Long: `Walks the KB directory for markdown documents, embeds each one with
the configured embedding engine, and upserts them into the SQLite vector
store used for context retrieval. Re-running refreshes changed documents
in place.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := kb.OpenStore(cfg.Knowledge.StorePath)
		if err != nil {
			return err
		}
		defer store.Close()

		engine, err := embedding.NewEngine(embeddingConfig())
		if err != nil {
			return err
		}

		count, err := kb.Build(cmd.Context(), cfg.Knowledge.Dir, store, engine, logger)
		if err != nil {
			return err
		}
		fmt.Printf("Indexed %d documents from %s into %s\n", count, cfg.Knowledge.Dir, cfg.Knowledge.StorePath)
		return nil
	},
}

var kbCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Show how many documents are in the vector store",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := kb.OpenStore(cfg.Knowledge.StorePath)
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.Count(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%d documents\n", n)
		return nil
	},
}

func init() {
	kbCmd.AddCommand(kbBuildCmd)
	kbCmd.AddCommand(kbCountCmd)
}
