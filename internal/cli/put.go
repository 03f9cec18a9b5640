package cli

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/spf13/cobra"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/memory"
	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "put [content]",
		Short: "Store a memory",
		Long:  "Store a memory. Content can be a positional arg or piped via stdin. Keywords and tags are extracted from the content.",
		Run:   runPut,
	}

	cmd.Flags().StringP("scope", "s", "", "Scope, e.g. user:42 or rfp:abc (required)")
	cmd.Flags().String("type", "episodic", "Memory type, e.g. episodic, semantic, tool_pattern")
	cmd.Flags().StringP("tags", "t", "", "Comma-separated tags")
	cmd.Flags().String("summary", "", "Short summary")
	cmd.Flags().String("meta", "", "Provenance metadata as a JSON object of strings")
	cmd.Flags().String("details", "", "Type-specific details as JSON")
	cmd.Flags().String("ttl", "", "Time to live, e.g. 7d, 24h, 30m")

	cmd.MarkFlagRequired("scope")

	RootCmd.AddCommand(cmd)
}

func runPut(cmd *cobra.Command, args []string) {
	scope, _ := cmd.Flags().GetString("scope")
	typeStr, _ := cmd.Flags().GetString("type")
	tagsStr, _ := cmd.Flags().GetString("tags")
	summary, _ := cmd.Flags().GetString("summary")
	meta, _ := cmd.Flags().GetString("meta")
	detailsStr, _ := cmd.Flags().GetString("details")
	ttlStr, _ := cmd.Flags().GetString("ttl")

	content, err := readContent(args)
	if err != nil {
		exitErr("put", err)
	}
	if strings.TrimSpace(content) == "" {
		exitErr("put", goerr.Wrap(model.ErrValidation, "content is required (positional arg or stdin)"))
	}

	typ, err := model.ParseMemoryType(typeStr)
	if err != nil {
		exitErr("put", err)
	}
	md, err := parseMeta(meta)
	if err != nil {
		exitErr("put", err)
	}
	details, err := parseDetails(detailsStr)
	if err != nil {
		exitErr("put", err)
	}
	p := memory.CreateParams{
		Type:     typ,
		Scope:    scope,
		Content:  content,
		Tags:     splitList(tagsStr),
		Summary:  summary,
		Metadata: md,
		Details:  details,
	}
	if ttlStr != "" {
		if p.TTL, err = parseTTL(ttlStr); err != nil {
			exitErr("put", err)
		}
	}

	svc, _ := mustOpen(cmd.Context())
	defer svc.Close()

	m, err := svc.CreateMemory(cmd.Context(), p)
	if err != nil {
		exitErr("put", err)
	}
	printJSON(m)
}
