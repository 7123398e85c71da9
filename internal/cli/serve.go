package cli

import (
	"github.com/spf13/cobra"

	httpapi "github.com/joshuadavidthomas/meteofetch/internal/api/http"
	"github.com/joshuadavidthomas/meteofetch/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the fetch engine over HTTP",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		logger := logging.FromContext(ctx)

		eng, err := newEngine(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := eng.close(ctx); cerr != nil && err == nil {
				err = cerr
			}
		}()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = eng.cfg.Server.Addr
		}

		srv := httpapi.New(eng.coord,
			httpapi.WithResolver(newResolver(eng.cfg)),
			httpapi.WithMetrics(eng.metrics),
			httpapi.WithLogger(logger),
		)
		return srv.Listen(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default from config server.addr)")
}
