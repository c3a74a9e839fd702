package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/logseq-rag/internal/loader"
	"github.com/raphaelgruber/logseq-rag/internal/models"
	"github.com/raphaelgruber/logseq-rag/internal/service"
)

var (
	loadNoSplit  bool
	loadMaxChars int
)

var loadCmd = &cobra.Command{
	Use:   "load <from_date> <to_date>",
	Short: "Print journal documents for a date range",
	Long: `Read journal days straight from disk, without the vector store.

Each day is split into one document per top-level bullet unless --no-split
is given.

Examples:
  logseq-rag load 2025-03-27 2025-03-31
  logseq-rag load 2025-03-01 2025-03-31 --no-split`,
	Args: cobra.ExactArgs(2),
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().BoolVar(&loadNoSplit, "no-split", false, "one document per day instead of per bullet")
	loadCmd.Flags().IntVar(&loadMaxChars, "max-chars", models.DefaultMaxCharLength, "truncate documents to this many characters")
}

func runLoad(cmd *cobra.Command, args []string) error {
	if err := service.ValidateDate("from_date", args[0]); err != nil {
		return err
	}
	if err := service.ValidateDate("to_date", args[1]); err != nil {
		return err
	}

	l, err := getLoader()
	if err != nil {
		return err
	}

	split := !loadNoSplit
	docs, err := l.Load(context.Background(), models.LoaderInput{
		JournalStartDate: args[0],
		JournalEndDate:   args[1],
		MaxCharLength:    loadMaxChars,
		EnableSplitting:  &split,
	})
	if err != nil {
		return err
	}

	if len(docs) == 0 {
		fmt.Println("No journal entries in range.")
		return nil
	}
	for _, d := range docs {
		date, _ := d.Metadata[loader.MetaJournalDate].(string)
		fmt.Printf("[%s] %s\n\n", date, d.PageContent)
	}
	return nil
}
