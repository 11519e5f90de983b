package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/dylan-euc/client-side-quiz/internal/cli"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [dir]",
	Short: "Run a questionnaire interactively",
	Long: `Starts a session on the terminal. Type 'back' to revisit the previous question
and 'reset' to start over. With --session the answers are kept under
--state-dir and a later run with the same id resumes where it stopped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		if !cmd.Flags().Changed("dir") && len(args) > 0 {
			dir = args[0]
		}
		opts := cli.RunOptions{FlowDir: dir}
		opts.FlowID, _ = cmd.Flags().GetString("flow")
		opts.Version, _ = cmd.Flags().GetString("version")
		opts.Strict, _ = cmd.Flags().GetBool("strict")
		opts.JSON, _ = cmd.Flags().GetBool("json")
		opts.Debug, _ = cmd.Flags().GetBool("debug")
		opts.SessionID, _ = cmd.Flags().GetString("session")
		opts.StateDir, _ = cmd.Flags().GetString("state-dir")
		opts.Fresh, _ = cmd.Flags().GetBool("fresh")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return cli.RunSession(ctx, opts)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("flow", "f", "", "Flow id (optional when the directory holds a single flow)")
	runCmd.Flags().String("version", "", "Flow version (latest when empty)")
	runCmd.Flags().Bool("strict", false, "Refuse flows with strict validation findings")
	runCmd.Flags().Bool("json", false, "Run in JSON mode (NDJSON input/output)")
	runCmd.Flags().Bool("debug", false, "Log lifecycle events to stderr")
	runCmd.Flags().StringP("session", "s", "", "Persist the session under this id")
	runCmd.Flags().String("state-dir", ".quiz/sessions", "Directory of persisted sessions")
	runCmd.Flags().Bool("fresh", false, "Discard the persisted session before starting")
}
