package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/claimstore/internal/model"
	"github.com/ppiankov/claimstore/internal/store"
)

var attachCmd = &cobra.Command{
	Use:   "attach <from-claim> <kind> <to-claim>",
	Short: "Record a relationship between two claims by hand",
	Long: `Attach stores a relationship the detector did not find. Claims are
addressed as <entry-id>#<claim-id>; kind is one of confirms, contradicts,
extends or updates and reads from the first claim to the second.

Example:
  claimstore attach 5f1c...#c2 extends 0a9e...#c1`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := model.ParseClaimRef(args[0])
		if err != nil {
			return err
		}
		kind, err := model.ParseRelationKind(args[1])
		if err != nil {
			return err
		}
		to, err := model.ParseClaimRef(args[2])
		if err != nil {
			return err
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		res, err := a.repo.Attach(cmd.Context(), from, kind, to)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), res)
		}
		if !res.Changed {
			fmt.Fprintf(cmd.OutOrStdout(), "= %s %s %s (already recorded)\n", from, kind, to)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s %s %s\n", from, kind, to)
		return nil
	},
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Recompute every index and timeline from the stored entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		report, err := a.repo.Rebuild(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), report)
		}
		renderRebuild(cmd.OutOrStdout(), report)
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the stored indices against the entries",
	Long: `Verify compares the live and the persisted indices with a fresh build
from the entries and reports index ids without a backing entry. Run
'claimstore rebuild' to repair any problem it finds.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		err = a.repo.Verify(cmd.Context())
		var ie *store.InconsistencyError
		switch {
		case err == nil:
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{"consistent": true})
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Indices are consistent with the stored entries")
			return nil
		case errors.As(err, &ie):
			if jsonOut {
				if perr := printJSON(cmd.OutOrStdout(), map[string]interface{}{"consistent": false, "problems": ie.Details}); perr != nil {
					return perr
				}
			} else {
				for _, d := range ie.Details {
					fmt.Fprintf(cmd.OutOrStdout(), "✗ %s\n", d)
				}
			}
			return fmt.Errorf("%d problem(s) found; run 'claimstore rebuild' to repair", len(ie.Details))
		default:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(attachCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(verifyCmd)
}
