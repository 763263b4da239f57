package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mezeipetister/demobit/pkg/persistence"
	"github.com/mezeipetister/demobit/pkg/repository"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new data root for this replica",
	Long: `Initialize a new demobit data root at --data-dir, stamping its
repo_details with this replica's author identity and sync mode.

A replica is local by default (init with no mode flags), meaning it
never pushes or pulls. Pass --server to run this replica as the
central server other replicas sync against, or --remote to run it as
a client of one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		uid, _ := cmd.Flags().GetString("uid")
		serverAddr, _ := cmd.Flags().GetString("server")
		remoteURL, _ := cmd.Flags().GetString("remote")

		if uid == "" {
			return fmt.Errorf("init: --uid is required")
		}
		if serverAddr != "" && remoteURL != "" {
			return fmt.Errorf("init: --server and --remote are mutually exclusive")
		}

		store, err := persistence.Open(filepath.Join(dataDir, "demobit.db"))
		if err != nil {
			return fmt.Errorf("init: open data dir %s: %w", dataDir, err)
		}
		defer store.Close()

		if repository.Exists(store) {
			return fmt.Errorf("init: %s is already initialized", dataDir)
		}

		mode := repository.LocalMode()
		switch {
		case serverAddr != "":
			mode = repository.ServerMode(serverAddr)
		case remoteURL != "":
			mode = repository.RemoteClientMode(remoteURL)
		}

		if _, err := repository.Open(store, uid, mode); err != nil {
			return fmt.Errorf("init: %w", err)
		}

		fmt.Printf("Initialized demobit replica %q in %s\n", uid, dataDir)
		fmt.Printf("  mode: %s\n", mode.Kind)
		return nil
	},
}

func init() {
	initCmd.Flags().String("uid", "", "This replica's author identity (required)")
	initCmd.Flags().String("server", "", "Run as the sync server, listening on this address")
	initCmd.Flags().String("remote", "", "Run as a client of the sync server at this address")
}
