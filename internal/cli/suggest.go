package cli

import (
	"github.com/spf13/cobra"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/graph"
)

func init() {
	cmd := &cobra.Command{
		Use:   "suggest <id>",
		Short: "Propose relationships for a memory",
		Long: "Find similar memories in the same scope and type and propose up to five links. " +
			"Nothing is written unless --apply is set.",
		Args: cobra.ExactArgs(1),
		Run:  runSuggest,
	}

	cmd.Flags().Bool("apply", false, "Write every suggested link")

	RootCmd.AddCommand(cmd)
}

func runSuggest(cmd *cobra.Command, args []string) {
	apply, _ := cmd.Flags().GetBool("apply")

	svc, _ := mustOpen(cmd.Context())
	defer svc.Close()

	key, err := keyOf(cmd.Context(), svc, args[0])
	if err != nil {
		exitErr("suggest", err)
	}
	suggestions, err := svc.SuggestRelationships(cmd.Context(), key)
	if err != nil {
		exitErr("suggest", err)
	}
	if suggestions == nil {
		suggestions = []graph.Suggestion{}
	}

	if !apply {
		printJSON(suggestions)
		return
	}

	links := make([]*graph.Link, 0, len(suggestions))
	for _, s := range suggestions {
		link, err := svc.AddRelationship(cmd.Context(), s.Params())
		if err != nil {
			exitErr("apply suggestion", err)
		}
		links = append(links, link)
	}
	printJSON(links)
}
