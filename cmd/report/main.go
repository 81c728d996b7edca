// Command report renders a human-readable summary from a crawl's
// analytics checkpoint.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vajraaang/spacetime-crawler/internal/report"
)

func main() {
	var statePath string
	var outPath string

	root := &cobra.Command{
		Use:   "report",
		Short: "Render a crawl report from an analytics checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(statePath, outPath)
		},
	}
	root.Flags().StringVar(&statePath, "state", filepath.Join("analytics", "state.pkl"), "path to the analytics state checkpoint")
	root.Flags().StringVar(&outPath, "out", filepath.Join("analytics", "report.txt"), "path to write the rendered report to")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func run(statePath, outPath string) error {
	text, err := report.Render(statePath)
	if err != nil {
		return fmt.Errorf("loading analytics checkpoint: %w", err)
	}

	dir := filepath.Dir(outPath)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(outPath, []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	fmt.Printf("Wrote report to %s\n", outPath)
	return nil
}
