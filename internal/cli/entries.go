package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/claimstore/internal/model"
	"github.com/ppiankov/claimstore/internal/query"
)

var findFlags struct {
	topic   string
	speaker string
	from    string
	to      string
	kind    string
	text    string
	desc    bool
	limit   int
}

var getCmd = &cobra.Command{
	Use:   "get <entry-id>",
	Short: "Show one entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		e, err := a.repo.Get(args[0])
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), e)
		}
		renderEntry(cmd.OutOrStdout(), e)
		return nil
	},
}

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Search entries by topic, speaker, date range, kind or text",
	Long: `Find returns the entries matching every given filter, oldest first.

Example:
  claimstore find --topic housing
  claimstore find --speaker "dave meyer" --from 2024-01-01 --to 2024-12-31
  claimstore find --kind prediction --text "rates" --desc --limit 10`,
	Args: cobra.NoArgs,
	RunE: runFind,
}

var relationshipsCmd = &cobra.Command{
	Use:     "relationships <entry-id>",
	Aliases: []string{"rels"},
	Short:   "Show every relationship touching an entry's claims",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		views, err := a.engine.RelationshipsOf(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOut {
			if views == nil {
				views = []model.EdgeView{}
			}
			return printJSON(cmd.OutOrStdout(), views)
		}
		renderViews(cmd.OutOrStdout(), args[0], views)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(relationshipsCmd)

	f := findCmd.Flags()
	f.StringVar(&findFlags.topic, "topic", "", "entries tagged with this topic")
	f.StringVar(&findFlags.speaker, "speaker", "", "entries attributed to this speaker")
	f.StringVar(&findFlags.from, "from", "", "earliest date, inclusive (YYYY-MM-DD)")
	f.StringVar(&findFlags.to, "to", "", "latest date, inclusive (YYYY-MM-DD)")
	f.StringVar(&findFlags.kind, "kind", "", "entries with a claim of this kind")
	f.StringVar(&findFlags.text, "text", "", "entries with a claim containing this text")
	f.BoolVar(&findFlags.desc, "desc", false, "newest first")
	f.IntVar(&findFlags.limit, "limit", 0, "maximum number of entries (0 = all)")
}

func buildFilter() (query.Filter, error) {
	f := query.Filter{
		Topic:      findFlags.topic,
		Speaker:    findFlags.speaker,
		Kind:       model.ClaimKind(strings.ToLower(strings.TrimSpace(findFlags.kind))),
		Text:       findFlags.text,
		Descending: findFlags.desc,
		Limit:      findFlags.limit,
	}
	var err error
	if findFlags.from != "" {
		if f.From, err = model.ParseDate(findFlags.from); err != nil {
			return f, fmt.Errorf("--from: %w", err)
		}
	}
	if findFlags.to != "" {
		if f.To, err = model.ParseDate(findFlags.to); err != nil {
			return f, fmt.Errorf("--to: %w", err)
		}
	}
	return f, nil
}

func runFind(cmd *cobra.Command, args []string) error {
	f, err := buildFilter()
	if err != nil {
		return err
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	entries, err := a.engine.Find(cmd.Context(), f)
	if err != nil {
		return err
	}
	if jsonOut {
		if entries == nil {
			entries = []*model.Entry{}
		}
		return printJSON(cmd.OutOrStdout(), entries)
	}
	renderEntries(cmd.OutOrStdout(), entries)
	return nil
}
