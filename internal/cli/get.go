package cli

import (
	"github.com/spf13/cobra"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get <id>...",
		Short: "Get memories by id",
		Args:  cobra.MinimumNArgs(1),
		Run:   runGet,
	}

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	svc, _ := mustOpen(cmd.Context())
	defer svc.Close()

	memories := make([]*model.Memory, 0, len(args))
	for _, id := range args {
		m, err := svc.GetByID(cmd.Context(), id)
		if err != nil {
			exitErr("get", err)
		}
		memories = append(memories, m)
	}

	if len(memories) == 1 {
		printJSON(memories[0])
		return
	}
	printJSON(memories)
}
