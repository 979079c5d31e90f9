// File: cmd/coursepilot/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/coursepilot/cmd"
	"github.com/xkilldash9x/coursepilot/internal/observability"
)

const panicLogFile = "panic.log"

const banner = `
   coursepilot %s
   type a command, or "quit" to leave

`

// osWriteFile is replaced in tests.
var osWriteFile = os.WriteFile

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code. The browser session is closed on every
// path out, including interrupts.
func run(args []string) (code int) {
	app := cmd.NewApp()
	defer func() {
		if err := app.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
		}
		observability.Sync()
	}()
	defer handlePanic(&code)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(args) > 0 {
		if err := cmd.Execute(ctx, app, args); err != nil {
			if errors.Is(err, context.Canceled) {
				return 0
			}
			return 1
		}
		return 0
	}

	fmt.Printf(banner, cmd.Version)
	if err := cmd.RunShell(ctx, app, os.Stdin); err != nil {
		fmt.Fprintln(os.Stderr, "Error reading from stdin:", err)
		return 1
	}
	fmt.Println("Exiting coursepilot.")
	return 0
}

// handlePanic writes an unrecovered panic to panicLogFile and turns it into
// exit code 2.
func handlePanic(code *int) {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()

	panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(panicMessage), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
	} else {
		fmt.Fprintf(os.Stderr, "coursepilot crashed. Details logged to %s\n", panicLogFile)
	}
	*code = 2
}
