package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/varscore/internal/server"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the annotation API over HTTP",
	Long: `Serve exposes the pipeline over HTTP:
  GET  /annotate/{id}                       annotate one identifier (path-escape HGVS)
  GET  /position/{chrom}/{pos}/{ref}/{alt}  annotate explicit coordinates
  POST /batch                               {"variants": [...]}, ?format=csv for a table
  GET  /healthz                             liveness and enabled sources
  GET  /metrics                             Prometheus metrics

Example:
  varscore serve --addr :9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	p, logger, err := newPipeline()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := p.Config().Server
	return server.New(p, cfg.MaxBatchSize, logger).ListenAndServe(ctx, cfg)
}
