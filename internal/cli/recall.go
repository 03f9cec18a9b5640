package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/retrieval"
)

func init() {
	cmd := &cobra.Command{
		Use:     "recall [query]",
		Aliases: []string{"search"},
		Short:   "Retrieve memories ranked by relevance",
		Long: "Rank memories by keyword overlap, recency, access frequency and scope. " +
			"With a query, full-text hits are merged with the scope listing.",
		Run: runRecall,
	}

	cmd.Flags().StringP("scope", "s", "", "Scope to recall from")
	cmd.Flags().StringSlice("type", nil, "Memory types to include")
	cmd.Flags().IntP("limit", "l", retrieval.DefaultLimit, "Max results")
	cmd.Flags().Bool("peek", false, "Do not count results as accessed")

	RootCmd.AddCommand(cmd)
}

func runRecall(cmd *cobra.Command, args []string) {
	q, err := recallQuery(cmd, args)
	if err != nil {
		exitErr("recall", err)
	}

	svc, _ := mustOpen(cmd.Context())
	defer svc.Close()

	results, err := svc.Retrieve(cmd.Context(), q)
	if err != nil {
		exitErr("recall", err)
	}
	printJSON(results)
}

// recallQuery reads the flags shared by recall and context.
func recallQuery(cmd *cobra.Command, args []string) (retrieval.Query, error) {
	scope, _ := cmd.Flags().GetString("scope")
	typeStrs, _ := cmd.Flags().GetStringSlice("type")
	limit, _ := cmd.Flags().GetInt("limit")
	peek, _ := cmd.Flags().GetBool("peek")

	types, err := parseTypes(typeStrs)
	if err != nil {
		return retrieval.Query{}, err
	}
	return retrieval.Query{
		Scope: scope,
		Types: types,
		Text:  strings.Join(args, " "),
		Limit: limit,
		Peek:  peek,
	}, nil
}
