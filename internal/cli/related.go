package cli

import (
	"github.com/spf13/cobra"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/graph"
)

func init() {
	related := &cobra.Command{
		Use:   "related <id>",
		Short: "Show memories linked from a memory",
		Args:  cobra.ExactArgs(1),
		Run:   runRelated,
	}
	related.Flags().StringP("rel", "r", "", "Only follow this relationship type")
	related.Flags().IntP("limit", "l", graph.DefaultRelatedLimit, "Max results")

	traverse := &cobra.Command{
		Use:   "traverse <id>",
		Short: "Walk the relationship graph breadth-first",
		Args:  cobra.ExactArgs(1),
		Run:   runTraverse,
	}
	traverse.Flags().StringP("rel", "r", "", "Only follow this relationship type")
	traverse.Flags().Int("depth", graph.DefaultMaxDepth, "Max hops from the start memory")

	RootCmd.AddCommand(related, traverse)
}

func runRelated(cmd *cobra.Command, args []string) {
	relStr, _ := cmd.Flags().GetString("rel")
	limit, _ := cmd.Flags().GetInt("limit")

	rel, err := parseRel(relStr)
	if err != nil {
		exitErr("related", err)
	}

	svc, _ := mustOpen(cmd.Context())
	defer svc.Close()

	key, err := keyOf(cmd.Context(), svc, args[0])
	if err != nil {
		exitErr("related", err)
	}
	related, err := svc.GetRelated(cmd.Context(), key, rel, limit)
	if err != nil {
		exitErr("related", err)
	}
	if related == nil {
		related = []graph.Related{}
	}
	printJSON(related)
}

func runTraverse(cmd *cobra.Command, args []string) {
	relStr, _ := cmd.Flags().GetString("rel")
	depth, _ := cmd.Flags().GetInt("depth")

	rel, err := parseRel(relStr)
	if err != nil {
		exitErr("traverse", err)
	}

	svc, _ := mustOpen(cmd.Context())
	defer svc.Close()

	key, err := keyOf(cmd.Context(), svc, args[0])
	if err != nil {
		exitErr("traverse", err)
	}
	nodes, err := svc.Traverse(cmd.Context(), key, depth, rel)
	if err != nil {
		exitErr("traverse", err)
	}
	printJSON(nodes)
}
