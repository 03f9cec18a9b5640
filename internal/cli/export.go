package cli

import (
	"github.com/spf13/cobra"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export memories as JSON",
		Long:  "Export every live memory as a JSON array. Filter by scope with -s.",
		Run:   runExport,
	}

	cmd.Flags().StringP("scope", "s", "", "Filter by scope")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	scope, _ := cmd.Flags().GetString("scope")

	svc, _ := mustOpen(cmd.Context())
	defer svc.Close()

	memories, err := svc.Export(cmd.Context(), scope)
	if err != nil {
		exitErr("export", err)
	}
	if memories == nil {
		memories = []*model.Memory{}
	}
	printJSON(memories)
}
