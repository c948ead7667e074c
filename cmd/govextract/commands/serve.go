package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/govextract/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the extraction HTTP API",
	Long: `Serve extraction over HTTP.

Routes:
  POST /extract_cost/           {"input_text": "..."}
  POST /extract_organisation/   {"input_text": "..."}
  POST /extract/{kind}          {"input_text": "..."}
  GET  /healthz                 liveness
  GET  /readyz                  backend reachability`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "listen address")
	_ = viper.BindPFlag("addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, err := newService()
	if err != nil {
		return err
	}

	addr := viper.GetString("addr")
	logInfo("govextract serving %s/%s on %s", svc.Provider(), svc.Model(), addr)
	return server.New(addr, svc).Run(ctx)
}
