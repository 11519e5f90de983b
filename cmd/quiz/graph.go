package main

import (
	"fmt"

	quiz "github.com/dylan-euc/client-side-quiz"
	"github.com/dylan-euc/client-side-quiz/internal/logging"
	"github.com/dylan-euc/client-side-quiz/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <flow-id>",
	Short: "Export the flow graph visualization",
	Long:  `Outputs a Mermaid diagram (graph TD) of the flow. Default branches are drawn dotted.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		version, _ := cmd.Flags().GetString("version")

		eng, err := quiz.New(cmd.Context(), quiz.WithFlowDir(dir), quiz.WithLogger(logging.NewNop()))
		if err != nil {
			return fmt.Errorf("error initializing engine: %w", err)
		}
		flow, err := eng.Flow(args[0], version)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(flow, nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("version", "", "Flow version (latest when empty)")
}
