package cli

import (
	"fmt"
	"os"

	"github.com/raphaelgruber/logseq-rag/internal/metrics"
)

var metricSections = []struct {
	op    string
	title string
}{
	{metrics.OpFileLoad, "File Load"},
	{metrics.OpEmbedding, "Embeddings"},
	{metrics.OpLLMGenerate, "LLM Generate"},
	{metrics.OpDBCommit, "DB Commit"},
	{metrics.OpDBSearch, "DB Search"},
	{metrics.OpDBDelete, "DB Delete"},
}

// printMetrics writes the run's timing and token statistics to stderr.
func printMetrics(snap metrics.Snapshot) {
	if len(snap.Operations) == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "\nRun Statistics (%.1f seconds)\n", snap.UptimeSeconds)
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════\n")

	for _, s := range metricSections {
		op := snap.Operations[s.op]
		if op == nil {
			continue
		}
		fmt.Fprintf(os.Stderr, "\n%s:\n", s.title)
		printOpStats(op)
		printTokenStats(op)
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(op *metrics.OperationSnapshot) {
	fmt.Fprintf(os.Stderr, "  Calls: %d, Errors: %d, Total: %dms\n", op.Count, op.Errors, op.TotalTimeMs)
	fmt.Fprintf(os.Stderr, "  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
	if op.Items > 0 {
		fmt.Fprintf(os.Stderr, "  Items: %d\n", op.Items)
	}
}

// printTokenStats displays token statistics if available.
func printTokenStats(op *metrics.OperationSnapshot) {
	if op.TotalInputTokens == nil || op.TotalOutputTokens == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "  Tokens In:  %d total, avg %.0f\n", *op.TotalInputTokens, float64(*op.TotalInputTokens)/float64(op.Count))
	fmt.Fprintf(os.Stderr, "  Tokens Out: %d total, avg %.0f\n", *op.TotalOutputTokens, float64(*op.TotalOutputTokens)/float64(op.Count))
}
