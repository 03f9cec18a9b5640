package cli

import (
	"github.com/spf13/cobra"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/config"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show memory statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	svc, cfg := mustOpen(cmd.Context())
	defer svc.Close()

	stats, err := svc.Stats(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}

	out := map[string]any{
		"backend": cfg.Backend,
		"stats":   stats,
	}
	if cfg.Backend == config.BackendSQLite {
		out["db_path"] = cfg.DBPath
	}
	if !cfg.Index.Disabled {
		out["index_path"] = cfg.IndexPath
	}
	printJSON(out)
}
