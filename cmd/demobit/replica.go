package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mezeipetister/demobit/pkg/persistence"
	"github.com/mezeipetister/demobit/pkg/repository"
)

// dataDirFlag reads the --data-dir persistent flag, which every subcommand
// inherits from rootCmd.
func dataDirFlag(cmd *cobra.Command) string {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	return dataDir
}

// replica bundles the persistence store and repository every command
// other than init needs. Commands that work on notes open that storage
// themselves from store and repo.
type replica struct {
	store *persistence.Store
	repo  *repository.Repository
}

// openReplica opens the data root at dataDir/demobit.db, requiring
// repo_details to already exist (every command but init runs after
// init has stamped it once).
func openReplica(dataDir string) (*replica, error) {
	store, err := persistence.Open(filepath.Join(dataDir, "demobit.db"))
	if err != nil {
		return nil, fmt.Errorf("open data dir %s: %w", dataDir, err)
	}

	if !repository.Exists(store) {
		_ = store.Close()
		return nil, fmt.Errorf("%s is not initialized, run 'demobit init' first", dataDir)
	}

	// uid and mode are only consulted by repository.Open when bootstrapping
	// a fresh repo_details; Exists above guarantees that doesn't happen
	// here, so the values passed are irrelevant.
	repo, err := repository.Open(store, "", repository.LocalMode())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &replica{store: store, repo: repo}, nil
}

func (r *replica) Close() error {
	return r.store.Close()
}
