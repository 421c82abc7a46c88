package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jobops/jobops/internal/types"
	"github.com/jobops/jobops/internal/ui"
)

var endpointCmd = &cobra.Command{
	Use:     "endpoint",
	GroupID: "sync",
	Short:   "Manage the remote endpoint",
	Long: `Manage the remote endpoint that every change is mirrored to.

The endpoint is a URL answering GET with the full list of applications and
POST {action, data} for create, update and delete. A remote.endpoint set in
the config file takes precedence over the saved one.`,
}

var endpointSetCmd = &cobra.Command{
	Use:   "set <url>",
	Short: "Save the endpoint and load from it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp(cmd, appOptions{})
		defer a.Close()

		if err := a.endpoints.SetEndpoint(cmd.Context(), args[0]); err != nil {
			a.fatalf("%v", err)
		}
		fmt.Printf("%s Endpoint saved\n", ui.RenderPass("✓"))
		if a.cfg.Remote.Endpoint != "" {
			fmt.Printf("%s remote.endpoint in %s still takes precedence\n", ui.RenderWarn("⚠"), configSource(a))
			return
		}

		// Match a fresh start: the remote list replaces the local one.
		jobs, err := a.sync.Mirror().FetchAll(cmd.Context())
		if err != nil {
			fmt.Printf("%s Could not reach the endpoint yet: %v\n", ui.RenderWarn("⚠"), err)
			return
		}
		fmt.Printf("   Remote holds %d applications; they will be used from now on\n", len(jobs))
	},
}

var endpointShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective endpoint",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp(cmd, appOptions{})
		defer a.Close()

		url, err := a.endpoints.Endpoint(cmd.Context())
		if err != nil {
			a.fatalf("%v", err)
		}
		if jsonOutput {
			printJSON(map[string]string{"endpoint": url})
			return
		}
		switch {
		case url == "":
			fmt.Println(ui.RenderMuted("No endpoint; changes stay local."))
		case a.cfg.Remote.Endpoint != "":
			fmt.Printf("%s (from %s)\n", url, configSource(a))
		default:
			fmt.Println(url)
		}
	},
}

var endpointClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the saved endpoint",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp(cmd, appOptions{})
		defer a.Close()

		if err := a.endpoints.SetEndpoint(cmd.Context(), ""); err != nil {
			a.fatalf("%v", err)
		}
		fmt.Printf("%s Endpoint cleared; changes stay local\n", ui.RenderPass("✓"))
	},
}

var fieldsCmd = &cobra.Command{
	Use:     "fields",
	GroupID: "records",
	Short:   "Manage custom field definitions",
}

var fieldsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List custom fields",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp(cmd, appOptions{})
		defer a.Close()

		defs := a.fields.List(cmd.Context())
		if jsonOutput {
			printJSON(defs)
			return
		}
		if len(defs) == 0 {
			fmt.Println(ui.RenderMuted("No custom fields. Add one with 'jobops fields add <label>'."))
			return
		}
		rows := make([][]string, len(defs))
		for i, d := range defs {
			rows[i] = []string{d.ID, d.Label, string(d.Type)}
		}
		fmt.Println(ui.Table([]string{"ID", "Label", "Type"}, rows))
	},
}

var fieldsAddCmd = &cobra.Command{
	Use:   "add <label>",
	Short: "Add a custom field",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp(cmd, appOptions{})
		defer a.Close()

		typ, _ := cmd.Flags().GetString("type")
		def, err := a.fields.Add(cmd.Context(), args[0], types.FieldType(typ))
		if err != nil {
			a.fatalf("%v", err)
		}
		if jsonOutput {
			printJSON(def)
			return
		}
		fmt.Printf("%s Added field %s (%s)\n", ui.RenderPass("✓"), ui.RenderAccent(def.Label), def.Type)
	},
}

var fieldsRemoveCmd = &cobra.Command{
	Use:   "remove <id|label>",
	Short: "Remove a custom field definition",
	Long: `Remove a custom field definition. Values already stored on
applications are kept but no longer shown with a label.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp(cmd, appOptions{})
		defer a.Close()

		def, ok := a.fields.Lookup(cmd.Context(), args[0])
		if !ok {
			a.fatalf("unknown custom field %q", args[0])
		}
		if err := a.fields.Remove(cmd.Context(), def.ID); err != nil {
			a.fatalf("%v", err)
		}
		fmt.Printf("%s Removed field %s\n", ui.RenderPass("✓"), def.Label)
	},
}

// configSource names where remote.endpoint came from.
func configSource(a *app) string {
	if a.cfg.File == "" {
		return "the environment"
	}
	return a.cfg.File
}

func init() {
	endpointCmd.AddCommand(endpointSetCmd, endpointShowCmd, endpointClearCmd)
	fieldsAddCmd.Flags().String("type", "text", "Field type: text, date, url, number")
	fieldsCmd.AddCommand(fieldsListCmd, fieldsAddCmd, fieldsRemoveCmd)
	rootCmd.AddCommand(endpointCmd, fieldsCmd)
}
