package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"match-crawler/internal/logging"
	"match-crawler/internal/storage"
)

func newLedgerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ledger",
		Short: "Shows the resume state stored in the output file",
		Long: `Reads the CSV destination the way a crawl does at startup and prints the
number of distinct matches and rows already collected.`,
		Args: cobra.NoArgs,
		RunE: runLedger,
	}
}

func runLedger(cmd *cobra.Command, _ []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	resume := storage.LoadLedger(a.cfg.Output.Path, logging.Component(a.logger, "ledger"))
	matches := resume.Ledger.Len()
	remaining := max(a.cfg.Crawl.TargetMatches-matches, 0)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "output:    %s\n", a.cfg.Output.Path)
	fmt.Fprintf(out, "matches:   %d\n", matches)
	fmt.Fprintf(out, "rows:      %d\n", resume.Rows)
	fmt.Fprintf(out, "target:    %d\n", a.cfg.Crawl.TargetMatches)
	fmt.Fprintf(out, "remaining: %d\n", remaining)
	return nil
}
