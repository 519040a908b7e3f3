package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the system prompt the next run would send",
	Long: `Build the system prompt from the current categories and the last
HISTORY_DAYS days of categorised transactions, print it to stdout and exit.
Nothing is sent to the model.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		prompt, err := a.BuildPrompt(ctx)
		if err != nil {
			printErr(err, "failed to build prompt")
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), prompt.SystemPrompt)
		return nil
	},
}
