package cli

import (
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/spf13/cobra"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories, most recent first",
		Long:  "List memories by scope, or by type across scopes. Pass the returned next_cursor to --cursor for the next page.",
		Run:   runList,
	}

	cmd.Flags().StringP("scope", "s", "", "Filter by scope")
	cmd.Flags().String("type", "", "Filter by memory type")
	cmd.Flags().IntP("limit", "l", 20, "Max results")
	cmd.Flags().String("cursor", "", "Cursor from a previous page")
	cmd.Flags().Bool("ids-only", false, "Only output ids")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	scope, _ := cmd.Flags().GetString("scope")
	typeStr, _ := cmd.Flags().GetString("type")
	limit, _ := cmd.Flags().GetInt("limit")
	cursor, _ := cmd.Flags().GetString("cursor")
	idsOnly, _ := cmd.Flags().GetBool("ids-only")

	p := store.ListParams{Scope: scope, Limit: limit, Cursor: cursor}
	if typeStr != "" {
		t, err := model.ParseMemoryType(typeStr)
		if err != nil {
			exitErr("list", err)
		}
		p.Type = t
	}
	if p.Scope == "" && p.Type == "" {
		exitErr("list", goerr.Wrap(model.ErrValidation, "--scope or --type is required"))
	}

	svc, _ := mustOpen(cmd.Context())
	defer svc.Close()

	page, err := svc.List(cmd.Context(), p)
	if err != nil {
		exitErr("list", err)
	}

	if idsOnly {
		for _, m := range page.Memories {
			fmt.Printf("%s\t%s\t%s\n", m.ID, m.Scope, m.Type)
		}
		return
	}
	printJSON(page)
}
