package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// runShell reads commands until exit or end of input. Every line counts as
// activity for the inactivity timer; when it fires the session ends while the
// shell keeps running.
func (app *Application) runShell(ctx context.Context, _ []string) error {
	fmt.Fprintln(app.io.Out, "tickerctl shell. Type `help` for commands, `exit` to quit.")

	for {
		if ctx.Err() != nil {
			return nil
		}

		fmt.Fprint(app.io.Out, "> ")
		line, err := app.input().ReadString('\n')
		if args := strings.Fields(line); len(args) > 0 {
			app.manager.ResetInactivityTimer()

			switch args[0] {
			case "exit", "quit":
				return nil
			case "shell":
				fmt.Fprintln(app.io.Out, "Already in the shell.")
			default:
				if err := app.Run(ctx, args); err != nil {
					fmt.Fprintf(app.io.Err, "Error: %v\n", err)
				}
			}
		}

		if errors.Is(err, io.EOF) {
			fmt.Fprintln(app.io.Out)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read command: %w", err)
		}
	}
}
