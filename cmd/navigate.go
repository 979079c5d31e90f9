// File: cmd/navigate.go
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/coursepilot/api/schemas"
	"github.com/xkilldash9x/coursepilot/internal/agent"
	"github.com/xkilldash9x/coursepilot/internal/browser/session"
	"github.com/xkilldash9x/coursepilot/internal/navigation"
)

func newNavigateCmd(app *App) *cobra.Command {
	var (
		visit  int
		all    bool
		submit bool
	)
	cmd := &cobra.Command{
		Use:       "navigate outline|grades",
		Short:     "Anchor at the course outline or grades page and visit its items",
		ValidArgs: []string{string(schemas.AnchorOutline), string(schemas.AnchorGrades)},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if visit > 0 && all {
				return fmt.Errorf("--visit and --all are mutually exclusive")
			}
			ctx := cmd.Context()
			comps, err := app.Components(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			nav := comps.Navigator

			anchor, err := nav.OpenAnchor(ctx, schemas.AnchorKind(args[0]))
			if err != nil {
				return err
			}
			arrive := func(ctx context.Context, _ schemas.Page) error {
				r, err := comps.Agent.ProcessPage(ctx, agent.Options{Submit: submit})
				printReport(out, r)
				return err
			}

			switch {
			case all:
				outcomes, err := nav.Traverse(ctx, arrive)
				printOutcomes(out, outcomes)
				return err
			case visit > 0:
				targets, err := nav.EnumerateTargets(ctx)
				if err != nil {
					return err
				}
				if visit > len(targets) {
					return fmt.Errorf("no target %d on the %s page (%d targets)", visit, anchor.Kind, len(targets))
				}
				o := nav.Visit(ctx, targets[visit-1], arrive)
				printOutcomes(out, []navigation.Outcome{o})
				if o.Drift != nil {
					return o.Drift
				}
				return o.Err
			default:
				targets, err := nav.EnumerateTargets(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s page: %s\n", anchor.Kind, anchor.URL)
				for _, t := range targets {
					if t.Status != "" {
						fmt.Fprintf(out, "%3d. %s [%s]\n", t.Index, t.Label, t.Status)
					} else {
						fmt.Fprintf(out, "%3d. %s\n", t.Index, t.Label)
					}
				}
				return nil
			}
		},
	}
	cmd.Flags().IntVar(&visit, "visit", 0, "visit the N-th target (1-based) and return")
	cmd.Flags().BoolVar(&all, "all", false, "visit every target in order")
	cmd.Flags().BoolVar(&submit, "submit", false, "submit each processed assessment")
	return cmd
}

func printOutcomes(w io.Writer, outcomes []navigation.Outcome) {
	ok := 0
	for _, o := range outcomes {
		if o.OK() {
			ok++
		}
	}
	fmt.Fprintf(w, "%d of %d targets completed\n", ok, len(outcomes))
}

func newOpenCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "open [url]",
		Short: "Load a URL, or the configured course home, in the session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			comps, err := app.Components(ctx)
			if err != nil {
				return err
			}
			target := comps.Config.Course().URL
			if len(args) == 1 {
				target = args[0]
			}
			if target == "" {
				return fmt.Errorf("no URL given and course.url is not configured")
			}
			if normalized, err := navigation.NormalizeCourseURL(target); err == nil {
				target = normalized
			}
			page, err := session.Borrow(ctx, comps.Session)
			if err != nil {
				return err
			}
			if err := page.Navigate(ctx, target); err != nil {
				return err
			}
			loc, err := page.Location(ctx)
			if err != nil {
				return err
			}
			comps.Status.OK(fmt.Sprintf("Opened %s", loc))
			return nil
		},
	}
}

func newRestartCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Close the browser and start a fresh session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			comps, err := app.Components(cmd.Context())
			if err != nil {
				return err
			}
			if err := comps.Session.Restart(cmd.Context()); err != nil {
				return err
			}
			comps.Status.OK(fmt.Sprintf("Session restarted (generation %d)", comps.Session.Generation()))
			return nil
		},
	}
}

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session, navigation and run statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			comps, err := app.Components(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			live := comps.Session.IsLive(ctx)
			fmt.Fprintf(out, "Session:    %s (generation %d)\n", comps.Session.State(), comps.Session.Generation())
			if live {
				if page, err := comps.Session.Page(); err == nil {
					if loc, err := page.Location(ctx); err == nil {
						fmt.Fprintf(out, "Location:   %s\n", loc)
					}
				}
				if in, err := comps.Agent.LoggedIn(ctx); err == nil {
					fmt.Fprintf(out, "Logged in:  %t\n", in)
				}
			}
			if anchor, ok := comps.Navigator.Anchor(); ok {
				fmt.Fprintf(out, "Anchor:     %s %s (%s)\n", anchor.Kind, anchor.URL, comps.Navigator.State())
			}
			s := comps.Agent.Stats()
			fmt.Fprintf(out, "Run:        %s\n", s.RunID)
			fmt.Fprintf(out, "Pages:      %d processed, %d submitted\n", s.Pages, s.Submitted)
			fmt.Fprintf(out, "Questions:  %d found, %d answered, %d defaulted, %d for review\n", s.Units, s.Answered, s.Defaulted, s.Reviews)
			fmt.Fprintf(out, "Review log: %s\n", comps.Review.Path())
			return nil
		},
	}
}
