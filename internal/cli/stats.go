package cli

import (
	"fmt"
	"io"

	"github.com/raphaelgruber/kbchat/internal/metrics"
)

// printStats displays call statistics for this session.
func printStats(w io.Writer, snap metrics.Snapshot) {
	fmt.Fprintf(w, "Session Statistics (in-memory, since start)\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════\n")
	fmt.Fprintf(w, "Uptime: %.1f seconds\n", snap.UptimeSeconds)

	sections := []struct {
		title  string
		op     *metrics.OperationSnapshot
		tokens bool
	}{
		{"Login", snap.AuthLogin, false},
		{"Identity Lookup", snap.AuthIdentity, false},
		{"Completion", snap.Completion, false},
		{"Completion Stream", snap.CompletionStream, false},
		{"LLM Generate", snap.LLMGenerate, true},
	}

	printed := false
	for _, s := range sections {
		if s.op == nil {
			continue
		}
		printed = true
		fmt.Fprintf(w, "\n%s:\n", s.title)
		printOpStats(w, s.op)
		if s.tokens {
			printTokenStats(w, s.op)
		}
	}
	if !printed {
		fmt.Fprintf(w, "\nNo calls yet.\n")
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(w io.Writer, op *metrics.OperationSnapshot) {
	fmt.Fprintf(w, "  Calls: %d, Failures: %d, Total: %dms\n", op.Count, op.Failures, op.TotalTimeMs)
	if op.Count > 0 {
		fmt.Fprintf(w, "  Time: avg %.1fms, min %dms, max %dms\n",
			op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
	}
}

// printTokenStats displays token totals if available.
func printTokenStats(w io.Writer, op *metrics.OperationSnapshot) {
	if op.InputTokens == nil || op.OutputTokens == nil {
		return
	}
	fmt.Fprintf(w, "  Tokens In:  %d total\n", *op.InputTokens)
	fmt.Fprintf(w, "  Tokens Out: %d total\n", *op.OutputTokens)
}
