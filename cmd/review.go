// File: cmd/review.go
package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/coursepilot/internal/review"
)

func newReviewCmd(app *App) *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Show the questions left for manual review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			path := cfg.Review().Path

			if follow {
				fmt.Fprintf(out, "Following %s (Ctrl-C to stop)\n", path)
				return review.Follow(cmd.Context(), path, app.Logger(), func(e review.Entry) {
					printEntry(out, e)
				})
			}

			entries, err := review.ReadFile(path)
			for _, e := range entries {
				printEntry(out, e)
			}
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "Nothing to review.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing entries as they are recorded")
	return cmd
}

func printEntry(w io.Writer, e review.Entry) {
	fmt.Fprintf(w, "%s  %s  question %d (%s)\n", e.Time.Local().Format("2006-01-02 15:04"), e.URL, e.Ordinal, e.Reason)
	fmt.Fprintf(w, "  %s\n", e.Prompt)
	for _, o := range e.Options {
		fmt.Fprintf(w, "    %s\n", o)
	}
	if e.Attempted != "" {
		fmt.Fprintf(w, "  attempted: %s\n", e.Attempted)
	}
	if e.Screenshot != "" {
		fmt.Fprintf(w, "  screenshot: %s\n", e.Screenshot)
	}
}

func newConfigCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Config()
			if err != nil {
				return err
			}
			var sb strings.Builder
			enc := yaml.NewEncoder(&sb)
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("failed to encode configuration: %w", err)
			}
			if err := enc.Close(); err != nil {
				return fmt.Errorf("failed to encode configuration: %w", err)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), sb.String())
			return err
		},
	}
}
