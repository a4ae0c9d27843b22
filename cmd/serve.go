package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/mc-extractor/internal/api"
	"github.com/sells-group/mc-extractor/internal/batch"
	"github.com/sells-group/mc-extractor/internal/safer"
	"github.com/sells-group/mc-extractor/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the control API for starting, stopping and following runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		unlock, err := lockOutput(cfg.Output.CSVPath)
		if err != nil {
			return err
		}
		defer unlock()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		pipe, err := newPipeline(cfg.Pipeline)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		g, gctx := errgroup.WithContext(ctx)
		ctl := api.NewController(gctx, newLauncher(pipe, st))
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.NewRouter(ctl, st, cfg.Server.AllowedOrigins, cfg.Batch.MaxRange),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		// Graceful shutdown
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		err = g.Wait()
		// A cancelled controller context stops the active run before its
		// next MC number; wait so its sink and store writes land.
		ctl.Wait()
		return err
	},
}

// newLauncher prepares a fresh sink and orchestrator for every API run.
// Each run truncates the configured CSV.
func newLauncher(pipe *safer.Pipeline, st store.Store) api.Launcher {
	return func(context.Context) (api.Job, error) {
		out, err := openSinks(cfg.Output.CSVPath, cfg.Output.XLSXPath)
		if err != nil {
			return api.Job{}, err
		}
		orch := batch.New(batchConfig(), sessionFactory(cfg.Session), pipe, out, recorder(st))
		return api.Job{Orchestrator: orch, Sink: out}, nil
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
