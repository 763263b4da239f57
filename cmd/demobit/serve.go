package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mezeipetister/demobit/examples/notes"
	"github.com/mezeipetister/demobit/pkg/api"
	"github.com/mezeipetister/demobit/pkg/log"
	"github.com/mezeipetister/demobit/pkg/metrics"
	"github.com/mezeipetister/demobit/pkg/repository"
	"github.com/mezeipetister/demobit/pkg/syncrpc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run this replica as the sync server",
	Long: `Serve starts the gRPC sync service (Pull/Push/Watch) for a
replica initialized with --server, plus a plain HTTP surface for
health, readiness, and Prometheus metrics.

It runs until interrupted, merging pushed commits and fanning out
every merge to Watch subscribers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rep, err := openReplica(dataDirFlag(cmd))
		if err != nil {
			return err
		}
		defer rep.Close()

		if rep.repo.Mode().Kind != repository.ModeServer {
			return fmt.Errorf("serve: replica is not initialized in server mode (run 'demobit init --server <addr>')")
		}

		n, err := notes.Open(rep.store, rep.repo)
		if err != nil {
			return fmt.Errorf("serve: open notes storage: %w", err)
		}

		healthAddr, _ := cmd.Flags().GetString("health-addr")

		logger := log.WithComponent("cmd.serve")

		collector := metrics.NewCollector(rep.repo, n)
		collector.Start()
		defer collector.Stop()

		metrics.RegisterComponent("repository", true, "ready")
		metrics.RegisterComponent("syncrpc", false, "starting")

		health := api.NewHealthServer(rep.repo)
		errCh := make(chan error, 1)
		go func() {
			logger.Info().Str("addr", healthAddr).Msg("health server listening")
			if err := health.Start(healthAddr); err != nil {
				errCh <- fmt.Errorf("health server: %w", err)
			}
		}()

		server := syncrpc.NewServer(rep.repo)
		go func() {
			if err := server.Serve(rep.repo.Mode().ListenAddr); err != nil {
				errCh <- fmt.Errorf("sync server: %w", err)
			}
		}()

		metrics.RegisterComponent("syncrpc", true, "ready")
		logger.Info().Str("addr", rep.repo.Mode().ListenAddr).Msg("sync server listening")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			logger.Info().Msg("shutting down")
		case err := <-errCh:
			logger.Error().Err(err).Msg("serve failed")
			server.Stop()
			return err
		}

		server.Stop()
		return nil
	},
}

func init() {
	serveCmd.Flags().String("health-addr", "127.0.0.1:8081", "Address for the health/metrics HTTP server")
}
