package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jobops/jobops/internal/assistant"
	"github.com/jobops/jobops/internal/types"
	"github.com/jobops/jobops/internal/ui"
)

var askCmd = &cobra.Command{
	Use:     "ask [message]",
	GroupID: "assistant",
	Short:   "Talk to the assistant",
	Long: `Send a message to the assistant. It can answer questions about your
pipeline, add applications, and change statuses.

With no message on a terminal, an interactive session starts; enter an empty
line or press Ctrl+D to leave.

Requires assistant.api_key (or ANTHROPIC_API_KEY).

Examples:
  jobops ask "I applied to Stripe for Backend Engineer yesterday"
  jobops ask "Move Globex to interview"
  jobops ask "What should I follow up on this week?"`,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp(cmd, appOptions{})
		defer a.Close()

		if len(args) > 0 {
			say(cmd, a, strings.Join(args, " "))
			return
		}
		if !ui.IsInteractive() {
			a.fatalf("no message given")
		}

		history := a.assistant.History(cmd.Context())
		printChat(history[len(history)-1:])
		in := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print(ui.RenderAccent("> "))
			if !in.Scan() || strings.TrimSpace(in.Text()) == "" {
				return
			}
			say(cmd, a, in.Text())
		}
	},
}

func say(cmd *cobra.Command, a *app, msg string) {
	added, err := a.assistant.Send(cmd.Context(), msg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderWarn("⚠"), err)
	}
	if jsonOutput {
		printJSON(added)
		return
	}
	// The user's own message is echoed by the terminal already.
	if len(added) > 1 {
		printChat(added[1:])
	}
}

var chatCmd = &cobra.Command{
	Use:     "chat",
	GroupID: "assistant",
	Short:   "Inspect or reset the assistant conversation",
}

var chatHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the conversation",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp(cmd, appOptions{})
		defer a.Close()

		msgs := a.assistant.History(cmd.Context())
		if jsonOutput {
			printJSON(msgs)
			return
		}
		printChat(msgs)
	},
}

var chatClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the conversation",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp(cmd, appOptions{})
		defer a.Close()

		msgs, err := a.assistant.Clear(cmd.Context())
		if err != nil {
			a.fatalf("%v", err)
		}
		printChat(msgs)
	},
}

var briefingCmd = &cobra.Command{
	Use:     "briefing",
	GroupID: "assistant",
	Short:   "Show today's strategic briefing",
	Long: `Show a two-sentence summary of what to focus on today. The briefing is
generated once per day and regenerated when the number of applications
changes.`,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp(cmd, appOptions{})
		defer a.Close()

		text, err := a.assistant.Briefing(cmd.Context())
		switch {
		case errors.Is(err, assistant.ErrNoRecords):
			fmt.Println(ui.RenderMuted("Add an application to get a briefing."))
			return
		case errors.Is(err, assistant.ErrNotConfigured):
			a.fatalf("%s", assistant.NotConfiguredMsg)
		case err != nil:
			a.fatalf("%v", err)
		}
		if jsonOutput {
			printJSON(map[string]string{"briefing": text})
			return
		}
		fmt.Printf("\n%s %s\n\n", ui.RenderAccent("☀"), text)
	},
}

func printChat(msgs []types.ChatMessage) {
	for _, m := range msgs {
		at := time.UnixMilli(m.Timestamp).Format("15:04")
		switch m.Role {
		case types.RoleUser:
			fmt.Printf("%s %s %s\n", ui.RenderMuted(at), ui.RenderAccent("you:"), m.Content)
		default:
			fmt.Printf("%s %s %s\n", ui.RenderMuted(at), ui.RenderPass("jobops:"), m.Content)
		}
	}
}

func init() {
	chatCmd.AddCommand(chatHistoryCmd, chatClearCmd)
	rootCmd.AddCommand(askCmd, chatCmd, briefingCmd)
}
