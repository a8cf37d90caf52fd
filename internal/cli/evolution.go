package cli

import (
	"github.com/spf13/cobra"

	"github.com/ppiankov/claimstore/internal/index"
)

var evolutionCmd = &cobra.Command{
	Use:   "evolution <speaker> <topic>",
	Short: "Show how a speaker's position on a topic changed over time",
	Long: `Evolution lists a speaker's claims on a topic, oldest first, each annotated
with how it relates to the claim before it, followed by a consistency
summary.

Example:
  claimstore evolution "dave meyer" housing`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		ev, err := a.engine.Evolution(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), ev)
		}
		renderEvolution(cmd.OutOrStdout(), ev)
		return nil
	},
}

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List topics with their entry counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd, "topics", index.KindTopic)
	},
}

var speakersCmd = &cobra.Command{
	Use:   "speakers",
	Short: "List speakers with their entry counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd, "speakers", index.KindSpeaker)
	},
}

func init() {
	rootCmd.AddCommand(evolutionCmd)
	rootCmd.AddCommand(topicsCmd)
	rootCmd.AddCommand(speakersCmd)
}

func runList(cmd *cobra.Command, label string, kind index.Kind) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	var keys []index.KeyCount
	if kind == index.KindTopic {
		keys, err = a.engine.ListTopics(cmd.Context())
	} else {
		keys, err = a.engine.ListSpeakers(cmd.Context())
	}
	if err != nil {
		return err
	}
	if jsonOut {
		if keys == nil {
			keys = []index.KeyCount{}
		}
		return printJSON(cmd.OutOrStdout(), keys)
	}
	renderKeyCounts(cmd.OutOrStdout(), label, keys)
	return nil
}
