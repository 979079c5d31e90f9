// File: cmd/process.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/coursepilot/api/schemas"
	"github.com/xkilldash9x/coursepilot/internal/agent"
	"github.com/xkilldash9x/coursepilot/internal/browser/session"
	"github.com/xkilldash9x/coursepilot/internal/browser/snapshot"
	"github.com/xkilldash9x/coursepilot/internal/classifier"
	"github.com/xkilldash9x/coursepilot/internal/extractor"
)

func newProcessCmd(app *App) *cobra.Command {
	var submit bool
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Answer the questions on the current page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			comps, err := app.Components(ctx)
			if err != nil {
				return err
			}
			r, err := comps.Agent.ProcessPage(ctx, agent.Options{Submit: submit})
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), r)
			return nil
		},
	}
	cmd.Flags().BoolVar(&submit, "submit", false, "press the submit button after answering")
	return cmd
}

func printReport(w io.Writer, r agent.Report) {
	switch r.Kind {
	case schemas.ContentAssessment:
		fmt.Fprintf(w, "Assessment: %d questions, %d answered, %d defaulted, %d skipped, %d for manual review\n",
			r.Units, r.Answered, r.Defaulted, r.Skipped, r.Reviews)
	case schemas.ContentReading:
		if r.Summary != "" {
			fmt.Fprintf(w, "Summary:\n%s\n", r.Summary)
		}
	case schemas.ContentVideo:
		if r.Title != "" {
			fmt.Fprintf(w, "Video: %s\n", r.Title)
		}
		if r.Summary != "" {
			fmt.Fprintf(w, "Transcript summary:\n%s\n", r.Summary)
		}
	}
}

func newQuestionsCmd(app *App) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "List the questions found on the current page or a saved HTML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := app.Config()
			if err != nil {
				return err
			}
			var (
				cls *classifier.Classifier
				ext *extractor.Extractor
			)
			if file != "" {
				src, err := loadSnapshot(file, app)
				if err != nil {
					return err
				}
				cls = classifier.New(src, app.Logger())
				ext = extractor.New(src, cfg.Agent().PromptIDPrefixes, app.Logger())
			} else {
				comps, err := app.Components(ctx)
				if err != nil {
					return err
				}
				cls, ext = comps.Classifier, comps.Extractor
			}
			return listQuestions(ctx, cmd.OutOrStdout(), cls, ext)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "saved page to inspect instead of the live session")
	return cmd
}

func loadSnapshot(file string, app *App) (session.Source, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, err
	}
	b, err := snapshot.FromHTML("file://"+filepath.ToSlash(abs), string(data), app.Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return session.Static{P: b}, nil
}

func listQuestions(ctx context.Context, w io.Writer, cls *classifier.Classifier, ext *extractor.Extractor) error {
	kind := cls.Classify(ctx)
	fmt.Fprintf(w, "Page type: %s\n", kind)
	units, err := ext.ExtractUnits(ctx)
	if err != nil {
		return err
	}
	if len(units) == 0 {
		fmt.Fprintln(w, "No questions found.")
		return nil
	}
	for _, u := range units {
		fmt.Fprintf(w, "%d. [%s, %s] %s\n", u.Ordinal, u.Kind, u.Strategy, u.Prompt)
		if u.Kind == schemas.FreeText {
			fmt.Fprintln(w, "   (free text)")
			continue
		}
		for _, line := range u.OptionTexts() {
			fmt.Fprintf(w, "   %s\n", line)
		}
	}
	return nil
}
