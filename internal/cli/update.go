package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "update <id> [content]",
		Short: "Update a memory",
		Long: "Update the mutable fields of a memory. New content re-extracts keywords. " +
			"Metadata is merged; a key set to \"\" is removed.",
		Args: cobra.MinimumNArgs(1),
		Run:  runUpdate,
	}

	cmd.Flags().StringP("tags", "t", "", "Replace tags (comma-separated)")
	cmd.Flags().String("summary", "", "Replace the summary")
	cmd.Flags().String("meta", "", "Merge metadata (JSON object of strings)")
	cmd.Flags().String("details", "", "Replace type-specific details (JSON)")
	cmd.Flags().String("ttl", "", "New time to live from now, e.g. 7d; 0s clears the expiry")

	RootCmd.AddCommand(cmd)
}

func runUpdate(cmd *cobra.Command, args []string) {
	var patch model.Patch

	if len(args) > 1 {
		content, err := readContent(args[1:])
		if err != nil {
			exitErr("update", err)
		}
		patch.Content = &content
	}
	if cmd.Flags().Changed("tags") {
		tagsStr, _ := cmd.Flags().GetString("tags")
		tags := splitList(tagsStr)
		patch.Tags = &tags
	}
	if cmd.Flags().Changed("summary") {
		summary, _ := cmd.Flags().GetString("summary")
		patch.Summary = &summary
	}
	if cmd.Flags().Changed("meta") {
		meta, _ := cmd.Flags().GetString("meta")
		md, err := parseMeta(meta)
		if err != nil {
			exitErr("update", err)
		}
		patch.Metadata = md
	}
	if cmd.Flags().Changed("details") {
		detailsStr, _ := cmd.Flags().GetString("details")
		details, err := parseDetails(detailsStr)
		if err != nil {
			exitErr("update", err)
		}
		patch.Details = details
	}
	if cmd.Flags().Changed("ttl") {
		ttlStr, _ := cmd.Flags().GetString("ttl")
		ttl, err := parseTTL(ttlStr)
		if err != nil {
			exitErr("update", err)
		}
		var exp int64
		if ttl > 0 {
			exp = time.Now().Add(ttl).Unix()
		}
		patch.ExpiresAt = &exp
	}

	svc, _ := mustOpen(cmd.Context())
	defer svc.Close()

	key, err := keyOf(cmd.Context(), svc, args[0])
	if err != nil {
		exitErr("update", err)
	}
	m, err := svc.UpdateMemory(cmd.Context(), key, patch)
	if err != nil {
		exitErr("update", err)
	}
	printJSON(m)
}
