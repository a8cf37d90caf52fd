package cli

import (
	"cmp"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/claimstore/internal/model"
	"github.com/ppiankov/claimstore/internal/pipeline"
	"github.com/ppiankov/claimstore/internal/store"
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest <file|dir|manifest>... | -",
	Short: "Ingest candidate entries from files, directories or manifests",
	Long: `Ingest stores candidate entries and detects their relationships:
- Candidate files are JSON or YAML, one candidate or a list per file
- Directories are searched recursively for .json, .yaml and .yml files
- Manifests (.txt, .list, .manifest) list files or directories, one per line
- "-" reads candidates from standard input

Files are decoded in parallel, then applied one at a time ordered by
date, source and path, so earlier claims are always in place before the
claims that relate to them. Re-ingesting the same candidate is a no-op.

Example:
  claimstore ingest episode-142.yaml
  claimstore ingest ./transcripts --workers 8
  claimstore ingest backlog.txt --json
  extract-claims episode.mp3 | claimstore ingest -`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().Int("workers", 0, "parallel file decoders (overrides ingest.workers)")
	_ = viper.BindPFlag("ingest.workers", ingestCmd.Flags().Lookup("workers"))
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	out := cmd.OutOrStdout()

	if len(args) == 1 && args[0] == "-" {
		return ingestStdin(cmd, a, cmd.InOrStdin(), out)
	}

	if !jsonOut {
		fmt.Fprintf(cmd.ErrOrStderr(), "⚙️  Ingesting with %d workers...\n\n", a.cfg.Ingest.Workers)
	}

	p := pipeline.NewPipeline(a.repo, a.cfg.Ingest.Workers, a.log.With("component", "pipeline"))
	sum, err := p.Run(ctx, args)
	if sum != nil {
		if jsonOut {
			if perr := printJSON(out, sum); perr != nil {
				return perr
			}
		} else {
			renderSummary(out, sum)
		}
	}
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	if sum.Rejected+sum.Failed > 0 {
		return fmt.Errorf("%d candidate(s) rejected, %d file(s) unreadable", sum.Rejected, sum.Failed)
	}
	return nil
}

func ingestStdin(cmd *cobra.Command, a *app, in io.Reader, out io.Writer) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	// JSON is valid YAML, so one decoder serves both
	candidates, err := pipeline.DecodeYAML(data)
	if err != nil {
		return fmt.Errorf("decode stdin: %w", err)
	}
	slices.SortStableFunc(candidates, func(x, y *model.Candidate) int {
		return cmp.Or(cmp.Compare(x.Date, y.Date), cmp.Compare(x.Source, y.Source))
	})

	results := make([]*store.IngestResult, 0, len(candidates))
	for i, c := range candidates {
		res, err := a.repo.Ingest(cmd.Context(), c)
		if err != nil {
			return fmt.Errorf("candidate %d: %w", i+1, err)
		}
		results = append(results, res)
		if !jsonOut {
			renderIngest(out, res)
		}
	}
	if jsonOut {
		return printJSON(out, results)
	}
	return nil
}
