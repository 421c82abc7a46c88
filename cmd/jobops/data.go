package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jobops/jobops/internal/transfer"
	"github.com/jobops/jobops/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:     "export [file]",
	GroupID: "sync",
	Short:   "Export applications to a file",
	Long: `Export every application as json, jsonl, yaml or toml.

The format follows the file extension unless --format is given. Without a
file, output goes to stdout.

Examples:
  jobops export backup.json
  jobops export --format yaml > jobs.yaml`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		format, err := formatFor(cmd, args)
		if err != nil {
			fatalf("%v", err)
		}

		a := mustOpenApp(cmd, appOptions{quiet: len(args) == 0})
		defer a.Close()

		var w io.Writer = os.Stdout
		if len(args) == 1 {
			f, err := os.Create(args[0])
			if err != nil {
				a.fatalf("failed to create %s: %v", args[0], err)
			}
			defer f.Close()
			w = f
		}
		jobs := a.store.Jobs()
		if err := transfer.Encode(w, format, jobs); err != nil {
			a.fatalf("%v", err)
		}
		if len(args) == 1 {
			fmt.Printf("%s Exported %d applications to %s\n", ui.RenderPass("✓"), len(jobs), args[0])
		}
	},
}

var importCmd = &cobra.Command{
	Use:     "import <file>",
	GroupID: "sync",
	Short:   "Import applications from a file",
	Long: `Import applications from a json, jsonl, yaml or toml file.

Each record is added as a new application with a fresh id, keeping its
applied date, and is mirrored like any other change. Invalid records are
skipped and reported.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		format, err := formatFor(cmd, args)
		if err != nil {
			fatalf("%v", err)
		}
		f, err := os.Open(args[0])
		if err != nil {
			fatalf("failed to open %s: %v", args[0], err)
		}
		defer f.Close()
		jobs, err := transfer.Decode(f, format)
		if err != nil {
			fatalf("%s: %v", args[0], err)
		}

		a := mustOpenApp(cmd, appOptions{})
		defer a.Close()

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		res := transfer.Import(a.store, jobs, transfer.ImportOptions{DryRun: dryRun})
		if jsonOutput {
			printJSON(res)
			return
		}
		verb := "Imported"
		if dryRun {
			verb = "Would import"
		}
		fmt.Printf("%s %s %d applications\n", ui.RenderPass("✓"), verb, res.Imported)
		if res.Skipped > 0 {
			fmt.Printf("%s Skipped %d:\n", ui.RenderWarn("⚠"), res.Skipped)
			for _, e := range res.Errors {
				fmt.Printf("   %s\n", e)
			}
		}
	},
}

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Inspect synchronization",
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where data was loaded from and whether the remote answers",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp(cmd, appOptions{quiet: true})
		defer a.Close()

		ctx := cmd.Context()
		url, err := a.endpoints.Endpoint(ctx)
		if err != nil {
			a.fatalf("%v", err)
		}
		local, haveLocal := a.sync.LocalSnapshot(ctx)

		status := map[string]any{
			"endpoint":    url,
			"loadedFrom":  a.source,
			"records":     a.store.Len(),
			"localCopy":   haveLocal,
			"localCount":  len(local),
			"storage":     a.cfg.Storage.Driver,
			"storagePath": a.cfg.Storage.Path,
		}

		var remoteErr error
		remoteCount := -1
		if m := a.sync.Mirror(); m != nil {
			fctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			jobs, err := m.FetchAll(fctx)
			cancel()
			remoteErr = err
			if err == nil {
				remoteCount = len(jobs)
				status["remoteCount"] = remoteCount
			} else {
				status["remoteError"] = err.Error()
			}
		}

		if jsonOutput {
			printJSON(status)
			return
		}

		fmt.Printf("\n%s Sync Status\n\n", ui.RenderAccent("🔄"))
		fmt.Printf("Storage: %s", a.cfg.Storage.Driver)
		if a.cfg.Storage.Driver == "sqlite" {
			fmt.Printf(" (%s)", a.cfg.Storage.Path)
		}
		fmt.Println()
		fmt.Printf("Loaded from: %s\n", a.source)
		fmt.Printf("Applications: %d\n", a.store.Len())
		if url == "" {
			fmt.Printf("Endpoint: %s\n\n", ui.RenderMuted("none (local only)"))
			return
		}
		fmt.Printf("Endpoint: %s\n", url)
		if remoteErr != nil {
			fmt.Printf("Remote: %s %v\n\n", ui.RenderFail("✗"), remoteErr)
			return
		}
		fmt.Printf("Remote: %s %d applications\n\n", ui.RenderPass("✓"), remoteCount)
	},
}

func formatFor(cmd *cobra.Command, args []string) (transfer.Format, error) {
	if name, _ := cmd.Flags().GetString("format"); name != "" {
		return transfer.ParseFormat(name)
	}
	if len(args) == 0 {
		return transfer.JSON, nil
	}
	return transfer.FormatFromPath(args[0])
}

func init() {
	exportCmd.Flags().StringP("format", "f", "", "Format: json, jsonl, yaml, toml")
	importCmd.Flags().StringP("format", "f", "", "Format: json, jsonl, yaml, toml")
	importCmd.Flags().Bool("dry-run", false, "Validate without importing")
	syncCmd.AddCommand(syncStatusCmd)
	rootCmd.AddCommand(exportCmd, importCmd, syncCmd)
}
