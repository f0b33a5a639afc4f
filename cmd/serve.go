package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stevehiehn/greenscreen/internal/api"
	"github.com/stevehiehn/greenscreen/internal/session"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the screen catalog and submission API over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := serveAddr
		if addr == "" {
			addr = cfg.HTTPAddr
		}
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		handler, err := api.NewServer(api.Config{
			Catalog: st,
			Open: func(ctx context.Context) (session.Session, error) {
				return session.Open(ctx, cfg.Session, logger)
			},
			Logger:       logger,
			Params:       cfg.Params(),
			ArtifactsDir: cfg.ArtifactsDir,
			Version:      version,
		})
		if err != nil {
			return err
		}
		srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error {
			logger.Info("listening", zap.String("addr", addr), zap.String("database", cfg.DatabasePath))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			logger.Info("shutting down")
			// Let an in-flight terminal run finish its current step.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Session.Timeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: config http_addr)")
	rootCmd.AddCommand(serveCmd)
}
