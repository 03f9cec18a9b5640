package cli

import (
	"github.com/spf13/cobra"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/retrieval"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [description]",
		Short: "Assemble relevant memories for a task",
		Long:  "Recall and rank memories, then greedily pack them into a token budget.",
		Run:   runContext,
	}

	cmd.Flags().StringP("scope", "s", "", "Scope to recall from")
	cmd.Flags().StringSlice("type", nil, "Memory types to include")
	cmd.Flags().IntP("limit", "l", retrieval.MaxLimit, "Max candidates considered")
	cmd.Flags().IntP("budget", "b", retrieval.DefaultBudget, "Max tokens in output")
	cmd.Flags().Bool("peek", false, "Do not count packed memories as accessed")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	budget, _ := cmd.Flags().GetInt("budget")
	q, err := recallQuery(cmd, args)
	if err != nil {
		exitErr("context", err)
	}

	svc, _ := mustOpen(cmd.Context())
	defer svc.Close()

	result, err := svc.Context(cmd.Context(), q, budget)
	if err != nil {
		exitErr("context", err)
	}
	printJSON(result)
}
