package main

import (
	"errors"

	"github.com/dylan-euc/client-side-quiz/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Check every flow for structural errors",
	Long: `Parses each flow of the directory and reports a missing initial step, duplicate
step ids, dangling targets and misplaced default branches. With --strict,
unreachable steps, unknown condition operators and unlisted option values are
reported as well.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		if !cmd.Flags().Changed("dir") && len(args) > 0 {
			dir = args[0]
		}
		strict, _ := cmd.Flags().GetBool("strict")

		results, err := cli.ValidateDir(cmd.Context(), dir, strict)
		if err != nil {
			return err
		}
		if !cli.PrintResults(cmd.OutOrStdout(), results) {
			return errors.New("validation failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("strict", false, "Also report reachability and vocabulary problems")
}
