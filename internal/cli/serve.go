package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/ppiankov/grievance/internal/httpapi"
	"github.com/ppiankov/grievance/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the grievance pipeline over HTTP",
	Long: `Serve exposes intake, submission, scoring and case lookup as a JSON API:

  POST /v1/intake        extract fields from a transcript
  POST /v1/grievances    submit a transcript or structured grievance
  POST /v1/score         classify and prioritize every case
  GET  /v1/cases         list cases (?status=&priority=&category=&location=)
  GET  /v1/cases/:id     one case with its thread
  GET  /healthz          liveness

Example:
  grievance serve --addr :8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", model.DefaultConfig().Server.Addr, "listen address")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close(context.Background())

	return httpapi.NewServer(s.pipeline, s.logger.Named("http")).Start(ctx, s.config.Server.Addr)
}
