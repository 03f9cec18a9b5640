package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a memory",
		Long:  "Permanently delete a memory and drop it from the search index.",
		Args:  cobra.ExactArgs(1),
		Run:   runRm,
	}

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	svc, _ := mustOpen(cmd.Context())
	defer svc.Close()

	key, err := keyOf(cmd.Context(), svc, args[0])
	if err != nil {
		exitErr("rm", err)
	}
	if err := svc.DeleteMemory(cmd.Context(), key); err != nil {
		exitErr("rm", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"id":%q,"scope":%q}`+"\n", key.ID, key.Scope)
}
