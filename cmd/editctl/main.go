package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	if err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "editctl",
		Short: "Edit images from the command line",
		Long: `editctl runs the image editor locally.

Images are opened from a file or from storage, edited by replaying a YAML
script of steps, and exported in the format the script selects.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present
			_ = godotenv.Load()
		},
		SilenceUsage: true,
	}

	cmd.AddCommand(newEditCmd())
	cmd.AddCommand(newFormatsCmd())
	cmd.AddCommand(newFiltersCmd())

	return cmd
}
