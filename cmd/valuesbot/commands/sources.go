package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// newSourcesCmd creates the `valuesbot sources` command.
func newSourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List the configured knowledge sources",
		Long: `List the knowledge sources from the config and check that their files
exist. With --upload the assistant is initialized, which uploads the files and
builds the vector stores, and the resulting source list is printed.

Examples:
  valuesbot sources
  valuesbot sources --upload`,
		RunE: runSources,
	}

	cmd.Flags().Bool("upload", false, "initialize the assistant and upload the files")
	return cmd
}

func runSources(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd, os.Stderr)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	sources := cfg.Assistant.Effective().KnowledgeSources
	if len(sources) == 0 {
		fmt.Fprintln(out, "No knowledge sources configured.")
	}

	missing := 0
	for _, src := range sources {
		fmt.Fprintf(out, "%s\n", src.Name)
		for _, p := range src.FilePaths {
			mark := "ok"
			if info, err := os.Stat(p); err != nil {
				mark = "missing"
				missing++
			} else if info.IsDir() {
				mark = "is a directory"
				missing++
			}
			fmt.Fprintf(out, "  %-8s %s\n", mark, p)
		}
	}

	upload, _ := cmd.Flags().GetBool("upload")
	if !upload {
		if missing > 0 {
			return fmt.Errorf("%d knowledge file(s) unavailable", missing)
		}
		return nil
	}

	if err := cfg.Validate(false); err != nil {
		return err
	}
	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	fmt.Fprintf(out, "\nActive sources:\n%s\n", a.orchestrator.Sources())
	return nil
}
