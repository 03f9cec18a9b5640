package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/store"
)

func init() {
	scopesCmd := &cobra.Command{
		Use:   "scopes",
		Short: "Scope management",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all scopes with entry counts",
		Run:   runScopesList,
	}
	listCmd.Flags().Bool("names-only", false, "Only output scope names")

	scopesCmd.AddCommand(listCmd)
	RootCmd.AddCommand(scopesCmd)
}

func runScopesList(cmd *cobra.Command, args []string) {
	namesOnly, _ := cmd.Flags().GetBool("names-only")

	svc, _ := mustOpen(cmd.Context())
	defer svc.Close()

	stats, err := svc.Stats(cmd.Context())
	if err != nil {
		exitErr("list scopes", err)
	}

	if namesOnly {
		for _, s := range stats.Scopes {
			fmt.Println(s.Scope)
		}
		return
	}
	scopes := stats.Scopes
	if scopes == nil {
		scopes = []store.ScopeStats{}
	}
	printJSON(scopes)
}
