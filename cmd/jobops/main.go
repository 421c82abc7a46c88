// Command jobops tracks job applications from the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jobops/jobops/internal/ui"
)

var (
	configFile string
	dataDir    string
	jsonOutput bool
	noColor    bool
)

// now is the clock used for relative dates.
var now = time.Now

var rootCmd = &cobra.Command{
	Use:   "jobops",
	Short: "Track job applications, locally first",
	Long: `JobOps keeps your job applications in a local store and mirrors every
change to an optional remote endpoint (a spreadsheet script or "jobops mirror").

Changes are applied locally first and relayed in the background; if the
remote rejects one, the local copy is kept and an error is reported.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.Init()
		if noColor {
			ui.DisableColor()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: jobops.yaml in the data dir or working dir)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default: ~/.jobops)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON instead of text")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "records", Title: "Applications:"},
		&cobra.Group{ID: "views", Title: "Views:"},
		&cobra.Group{ID: "assistant", Title: "Assistant:"},
		&cobra.Group{ID: "sync", Title: "Sync and data:"},
		&cobra.Group{ID: "server", Title: "Servers:"},
	)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}

// fatalf prints an error and exits.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
