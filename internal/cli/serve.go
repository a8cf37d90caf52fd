package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/claimstore/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the query and ingestion API over HTTP",
	Long: `Serve exposes the store over HTTP until interrupted:

  GET  /entries                     find (topic, speaker, from, to, kind, text, order, limit)
  POST /entries                     ingest one candidate
  GET  /entries/{id}                one entry
  GET  /entries/{id}/relationships  relationships of an entry
  POST /relationships               attach a relationship
  GET  /evolution?speaker=&topic=   a speaker's timeline on a topic
  GET  /topics, /speakers           index keys with entry counts
  POST /rebuild                     recompute indices
  GET  /verify                      check indices
  GET  /healthz, /metrics           health and Prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		srv := server.New(a.repo, a.engine, a.cfg.Server, a.log.With("component", "http"))
		return srv.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}
