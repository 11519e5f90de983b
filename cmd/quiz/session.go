package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dylan-euc/client-side-quiz/pkg/adapters/file"
	"github.com/dylan-euc/client-side-quiz/pkg/domain"
	"github.com/dylan-euc/client-side-quiz/pkg/ports"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage sessions persisted by 'quiz run --session'",
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List persisted sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		list, err := getStore(cmd).ListSessions(cmd.Context(), ports.SessionFilter{Status: domain.SessionStatus(status)})
		if err != nil {
			return fmt.Errorf("error listing sessions: %w", err)
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tFLOW\tSTATUS\tSTEP\tUPDATED")
		for _, s := range list {
			step := s.CurrentStep
			if s.Outcome != "" {
				step = s.Outcome
			}
			fmt.Fprintf(tw, "%s\t%s@%s\t%s\t%s\t%s\n", s.ID, s.FlowID, s.FlowVersion, s.Status, step, s.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Print a session and its answers as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, answers, err := getStore(cmd).GetSession(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("error loading session '%s': %w", args[0], err)
		}

		data, err := json.MarshalIndent(struct {
			*domain.SessionRecord
			Answers []domain.AnswerRecord `json:"answers"`
		}{rec, answers}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := getStore(cmd)
		var errs []error
		for _, id := range args {
			if err := store.DeleteSession(cmd.Context(), id); err != nil {
				errs = append(errs, fmt.Errorf("error removing '%s': %w", id, err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed session '%s'\n", id)
		}
		return errors.Join(errs...)
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)

	sessionCmd.PersistentFlags().String("state-dir", ".quiz/sessions", "Directory of persisted sessions")
	sessionLsCmd.Flags().String("status", "", "Only list sessions with this status (in_progress, completed, abandoned)")
}

func getStore(cmd *cobra.Command) *file.Store {
	dir, _ := cmd.Flags().GetString("state-dir")
	return file.NewStore(dir)
}
