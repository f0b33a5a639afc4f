package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/greenscreen/internal/mcp"
	"github.com/stevehiehn/greenscreen/internal/session"
	"github.com/stevehiehn/greenscreen/internal/store"
)

var (
	mcpSSEAddr string
	mcpFromDB  bool
	mcpNoRun   bool
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP tool server (stdio, or SSE with --sse)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv := &mcp.Server{
			Params:       cfg.Params(),
			ArtifactsDir: cfg.ArtifactsDir,
			Logger:       logger,
			Version:      version,
		}
		if mcpFromDB {
			st, err := store.Open(cfg.DatabasePath, logger)
			if err != nil {
				return err
			}
			defer st.Close()
			srv.Source = mcp.FromStore(st)
		} else {
			srv.Source = mcp.FromDir(cfg.ScreensDir)
		}
		if !mcpNoRun {
			srv.Open = func(ctx context.Context) (session.Session, error) {
				return session.Open(ctx, cfg.Session, logger)
			}
		}

		if mcpSSEAddr != "" {
			return mcp.NewSSE(srv).ListenAndServe(cmd.Context(), mcpSSEAddr)
		}
		return srv.Serve(cmd.Context(), os.Stdin, os.Stdout)
	},
}

func init() {
	mcpCmd.Flags().StringVar(&mcpSSEAddr, "sse", "", "Serve over SSE on this address instead of stdio, e.g. 127.0.0.1:8765")
	mcpCmd.Flags().BoolVar(&mcpFromDB, "db", false, "Serve screens from the catalog database instead of the screens directory")
	mcpCmd.Flags().BoolVar(&mcpNoRun, "no-run", false, "Disable screen.run and per-screen tools that connect to the host")
	rootCmd.AddCommand(mcpCmd)
}
