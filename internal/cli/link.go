package cli

import (
	"github.com/spf13/cobra"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/graph"
)

func init() {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Create or remove relationships between memories",
		Long: "Link two memories. The reverse-typed edge is written on the target too " +
			"(depends_on/enables, causes/caused_by, part_of/contains, refers_to/referred_by) unless --one-way is set.",
		Run: runLink,
	}

	cmd.Flags().String("from", "", "Source memory id")
	cmd.Flags().String("to", "", "Target memory id")
	cmd.Flags().StringP("rel", "r", "related", "Relationship: related, refers_to, depends_on, enables, contradicts, reinforces, temporal_sequence, causes, caused_by, part_of, contains")
	cmd.Flags().Bool("one-way", false, "Only write the edge on the source")
	cmd.Flags().Bool("rm", false, "Remove the link")

	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")

	RootCmd.AddCommand(cmd)
}

func runLink(cmd *cobra.Command, args []string) {
	fromID, _ := cmd.Flags().GetString("from")
	toID, _ := cmd.Flags().GetString("to")
	relStr, _ := cmd.Flags().GetString("rel")
	oneWay, _ := cmd.Flags().GetBool("one-way")
	rm, _ := cmd.Flags().GetBool("rm")

	rel, err := parseRel(relStr)
	if err != nil {
		exitErr("link", err)
	}

	svc, _ := mustOpen(cmd.Context())
	defer svc.Close()

	from, err := keyOf(cmd.Context(), svc, fromID)
	if err != nil {
		exitErr("link", err)
	}
	p := graph.LinkParams{From: from, Type: rel, OneWay: oneWay}
	p.To.ID = toID

	if rm {
		removed, err := svc.RemoveRelationship(cmd.Context(), p)
		if err != nil {
			exitErr("unlink", err)
		}
		printJSON(map[string]any{"ok": true, "removed": removed})
		return
	}

	to, err := keyOf(cmd.Context(), svc, toID)
	if err != nil {
		exitErr("link", err)
	}
	p.To = to
	link, err := svc.AddRelationship(cmd.Context(), p)
	if err != nil {
		exitErr("link", err)
	}
	printJSON(link)
}
