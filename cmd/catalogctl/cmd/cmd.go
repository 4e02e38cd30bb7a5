package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"media-catalog/internal/app"
	"media-catalog/internal/startup"
)

// JSONOutput is bound to the root --json flag.
var JSONOutput bool

// runWithApp loads configuration, builds the services and runs fn.
func runWithApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	config, err := startup.Load()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	ctx := cmd.Context()
	a, err := app.Build(ctx, config)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// output prints v as JSON when --json is set, otherwise calls text.
func output(w io.Writer, v any, text func(io.Writer)) error {
	if JSONOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}
