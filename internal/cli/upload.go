package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/raphaelgruber/logseq-rag/internal/service"
)

var (
	uploadReplace    bool
	uploadCollection string
)

var uploadCmd = &cobra.Command{
	Use:   "upload <from_date> <to_date>",
	Short: "Embed and store journal days in the vector store",
	Long: `Upload every journal day between two dates (inclusive, YYYY-MM-DD).

Each day is stored as one corpus keyed by its date: split into top-level
bullets, tagged with references and anchors, embedded and committed at once.

Examples:
  logseq-rag upload -p ~/notes/journals 2025-03-01 2025-03-31
  logseq-rag upload 2025-03-27 2025-03-27 --replace
  logseq-rag upload 2025-01-01 2025-12-31 --collection "Work Journal" -v`,
	Args: cobra.ExactArgs(2),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().BoolVar(&uploadReplace, "replace", false, "delete a day's existing chunks before uploading it")
	uploadCmd.Flags().StringVar(&uploadCollection, "collection", "", "collection name stored with each chunk (default $LOGSEQ_RAG_COLLECTION)")
}

func runUpload(cmd *cobra.Command, args []string) error {
	from, to := args[0], args[1]

	path, err := resolvePath()
	if err != nil {
		return err
	}
	if err := service.ValidateDate("from_date", from); err != nil {
		return err
	}
	if err := service.ValidateDate("to_date", to); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	l, err := getLoader()
	if err != nil {
		return err
	}
	s, err := getStore(ctx)
	if err != nil {
		return err
	}
	e, err := getEmbedder(ctx)
	if err != nil {
		return err
	}

	collection := uploadCollection
	if collection == "" {
		collection = cfg.Collection
	}
	opts := service.UploadOptions{
		From:        from,
		To:          to,
		JournalPath: path,
		Collection:  collection,
		Replace:     uploadReplace,
	}
	svc := service.NewUploadService(l, s, e, logger)

	if term.IsTerminal(int(os.Stdout.Fd())) {
		return uploadWithProgress(ctx, svc, opts)
	}

	result, err := svc.Upload(ctx, opts, func(current, total int, day string) {
		logger.Info("upload progress", "day", day, "done", current, "total", total)
	})
	if result != nil {
		fmt.Print(summary(defaultTheme, result))
	}
	return err
}

func uploadWithProgress(ctx context.Context, svc *service.UploadService, opts service.UploadOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := service.NewJobManager(logger)
	job := jobs.CreateJob(opts.From, opts.To)
	jobs.Run(job, func(progress service.ProgressFunc) (*service.UploadResult, error) {
		return svc.Upload(ctx, opts, progress)
	})
	return RunJobProgress(job, cancel)
}
