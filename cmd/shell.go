// File: cmd/shell.go
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

const shellPrompt = "coursepilot > "

// RunShell reads commands from in until EOF, "quit" or "exit", or until ctx
// is cancelled. A failing or panicking command never ends the shell.
func RunShell(ctx context.Context, app *App, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		fmt.Fprint(app.out, shellPrompt)
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(app.out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(app.out)
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			line = strings.TrimSpace(l)
		}

		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		runShellCommand(ctx, app, strings.Fields(line))
	}
}

// runShellCommand executes one line; errors are already reported by Execute.
func runShellCommand(ctx context.Context, app *App, args []string) {
	defer func() {
		if r := recover(); r != nil {
			app.Logger().Error("Command panicked.", zap.Strings("args", args), zap.Any("panic", r), zap.Stack("stack"))
			fmt.Fprintf(app.out, "Error: command panicked: %v\n", r)
		}
	}()
	_ = Execute(ctx, app, args)
}
