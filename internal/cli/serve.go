package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"reciperag/internal/server"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve search, context, generation and index maintenance over HTTP.

Examples:
  reciperag serve
  reciperag serve --port 9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.connectGenerator(); err != nil {
		return err
	}

	serverCfg := a.cfg.Server
	if serveHost != "" {
		serverCfg.Host = serveHost
	}
	if servePort > 0 {
		serverCfg.Port = servePort
	}

	srv := server.NewServer(server.Deps{
		Generate: a.generate,
		Index:    a.index,
		Searcher: a.searcher,
		Catalog:  a.catalog,
	}, serverCfg, a.cfg.Retrieve, a.logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		a.logger.Error("shutdown failed", zap.Error(err))
		return err
	}
	return <-errCh
}
