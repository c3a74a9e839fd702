package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/logseq-rag/internal/retriever"
	"github.com/raphaelgruber/logseq-rag/internal/service"
)

var (
	askVector     bool
	askOutputFile string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question and get an LLM-synthesized answer",
	Long: `Ask a question about your journal.

By default the language model picks the date range the question is about and
those days are read from disk. With --vector the answer is drawn from a
similarity search over uploaded chunks instead.

Examples:
  logseq-rag ask "what did I do last weekend?"
  logseq-rag ask "when did I last mention the dentist?" --vector
  logseq-rag ask "summarize March" -o march.md`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askVector, "vector", false, "retrieve from the vector store instead of a date range")
	askCmd.Flags().StringVarP(&askOutputFile, "output", "o", "", "write the answer to file")
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := args[0]
	ctx := context.Background()

	m, err := getModel(ctx)
	if err != nil {
		return err
	}

	var r retriever.Retriever
	if askVector {
		s, err := getStore(ctx)
		if err != nil {
			return err
		}
		e, err := getEmbedder(ctx)
		if err != nil {
			return err
		}
		r, err = service.NewVectorRetriever(m, e, s, logger)
		if err != nil {
			return err
		}
	} else {
		l, err := getLoader()
		if err != nil {
			return err
		}
		r, err = service.NewDateRangeRetriever(m, l, logger)
		if err != nil {
			return err
		}
	}

	res, err := service.NewAskService(r, m, logger).Ask(ctx, question, nil)
	if err != nil {
		return err
	}

	if askOutputFile != "" {
		if err := os.WriteFile(askOutputFile, []byte(res.Answer+"\n"), 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Printf("Answer written to %s (%d entries used)\n", askOutputFile, len(res.Documents))
		return nil
	}

	fmt.Println(res.Answer)
	if verbose {
		fmt.Printf("\n(%d journal entries used)\n", len(res.Documents))
	}
	return nil
}
