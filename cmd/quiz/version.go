package main

import (
	"fmt"
	"strings"

	quiz "github.com/dylan-euc/client-side-quiz"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of quiz",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "quiz version %s\n", strings.TrimSpace(quiz.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
