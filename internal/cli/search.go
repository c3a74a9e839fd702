package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/logseq-rag/internal/llm"
	"github.com/raphaelgruber/logseq-rag/internal/models"
	"github.com/raphaelgruber/logseq-rag/internal/service"
)

var (
	searchRaw   bool
	searchLimit int
)

var searchCmd = &cobra.Command{
	Use:   "search <question>",
	Short: "Vector search over uploaded journal chunks",
	Long: `Search uploaded journal chunks by similarity.

The question is first turned into a structured query (text, keywords, #tag
and date filters) by the language model. Use --raw to skip the model and
embed the question as is.

Examples:
  logseq-rag search "what did I learn about pgvector?"
  logseq-rag search "#golang in March" --limit 5
  logseq-rag search "sourdough" --raw`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().BoolVar(&searchRaw, "raw", false, "search the question text directly, without the LLM")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", models.DefaultSearchLimit, "max results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	question := args[0]
	ctx := context.Background()

	s, err := getStore(ctx)
	if err != nil {
		return err
	}
	e, err := getEmbedder(ctx)
	if err != nil {
		return err
	}

	var gen llm.Generator
	if !searchRaw {
		m, err := getModel(ctx)
		if err != nil {
			return err
		}
		gen = m
	}
	r, err := service.NewVectorRetriever(gen, e, s, logger)
	if err != nil {
		return err
	}

	q := models.JournalSearchQuery{Text: question, Limit: searchLimit}
	if !searchRaw {
		q, err = r.BuildSearchQuery(ctx, question, nil)
		if err != nil {
			return fmt.Errorf("build search query: %w", err)
		}
		if cmd.Flags().Changed("limit") || q.Limit == 0 {
			q.Limit = searchLimit
		}
	}

	results, err := r.Search(ctx, q)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results:\n\n", len(results))
	for i, res := range results {
		doc := res.Document
		fmt.Printf("%d. %s (chunk %d) score %.3f\n", i+1, doc.CorpusID, doc.ChunkIndex, res.Score)
		fmt.Printf("   %s\n", indent(snippet(doc.Content, 200)))
		if verbose {
			if meta, err := doc.MetadataMap(); err == nil {
				if refs, ok := meta[models.MetaReferences].([]any); ok && len(refs) > 0 {
					fmt.Printf("   references: %v\n", refs)
				}
			}
		}
		fmt.Println()
	}
	return nil
}

func snippet(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}

func indent(s string) string {
	return strings.ReplaceAll(s, "\n", "\n   ")
}
