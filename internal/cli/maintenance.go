package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/logging"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/sweeper"
)

func init() {
	reindex := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the full-text index from the store",
		Long:  "Rewrite index documents for every live memory, repairing writes the index missed.",
		Run:   runReindex,
	}
	reindex.Flags().StringP("scope", "s", "", "Only reindex this scope")

	sweep := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired memories",
		Long:  "Delete memories past their TTL. With --watch, keep sweeping on the configured schedule until interrupted.",
		Run:   runSweep,
	}
	sweep.Flags().Bool("watch", false, "Keep running on the sweeper schedule")
	sweep.Flags().String("schedule", "", "Cron schedule for --watch (default from config, @every 1h)")
	sweep.Flags().Int("batch", 0, "Entries deleted per round (default from config)")

	RootCmd.AddCommand(reindex, sweep)
}

func runReindex(cmd *cobra.Command, args []string) {
	scope, _ := cmd.Flags().GetString("scope")

	svc, _ := mustOpen(cmd.Context())
	defer svc.Close()

	res, err := svc.Reindex(cmd.Context(), scope)
	if err != nil {
		exitErr("reindex", err)
	}
	printJSON(res)
}

func runSweep(cmd *cobra.Command, args []string) {
	watch, _ := cmd.Flags().GetBool("watch")
	schedule, _ := cmd.Flags().GetString("schedule")
	batch, _ := cmd.Flags().GetInt("batch")

	svc, cfg := mustOpen(cmd.Context())
	defer svc.Close()

	if schedule == "" {
		schedule = cfg.Sweeper.Schedule
	}
	if batch <= 0 {
		batch = cfg.Sweeper.Batch
	}
	sw := svc.NewSweeper(sweeper.WithSchedule(schedule), sweeper.WithBatch(batch))

	n, err := sw.RunOnce(cmd.Context())
	if err != nil {
		exitErr("sweep", err)
	}
	if !watch {
		printJSON(map[string]any{"ok": true, "deleted": n})
		return
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := sw.Start(ctx); err != nil {
		exitErr("sweep", err)
	}
	logging.From(ctx).Info("sweeper running", "schedule", schedule, "batch", batch)
	<-ctx.Done()
	sw.Stop()
	logging.From(cmd.Context()).Info("sweeper stopped")
}
