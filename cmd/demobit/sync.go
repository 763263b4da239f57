package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mezeipetister/demobit/pkg/commit"
	"github.com/mezeipetister/demobit/pkg/repository"
	"github.com/mezeipetister/demobit/pkg/syncrpc"
)

// dialSyncClient opens rep's repository against its RemoteClientMode
// server, the one mode push/pull/watch are valid from.
func dialSyncClient(rep *replica) (*syncrpc.Client, error) {
	mode := rep.repo.Mode()
	if mode.Kind != repository.ModeRemoteClient {
		return nil, fmt.Errorf("replica is not initialized in remote mode (run 'demobit init --remote <url>')")
	}
	return syncrpc.NewClient(mode.ServerURL, rep.repo)
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push locally-authored commits to the sync server",
	RunE: func(cmd *cobra.Command, args []string) error {
		rep, err := openReplica(dataDirFlag(cmd))
		if err != nil {
			return err
		}
		defer rep.Close()

		client, err := dialSyncClient(rep)
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.Push(context.Background()); err != nil {
			return fmt.Errorf("push: %w", err)
		}
		fmt.Println("push complete")
		return nil
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull remote commits from the sync server",
	RunE: func(cmd *cobra.Command, args []string) error {
		rep, err := openReplica(dataDirFlag(cmd))
		if err != nil {
			return err
		}
		defer rep.Close()

		client, err := dialSyncClient(rep)
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.Pull(context.Background()); err != nil {
			return fmt.Errorf("pull: %w", err)
		}
		fmt.Println("pull complete")
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream commits merged by the sync server as they happen",
	Long: `Watch opens a long-lived stream to the sync server and prints
one line per commit as the server merges it, until interrupted. It does
not merge anything into this replica's own log; run pull for that.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rep, err := openReplica(dataDirFlag(cmd))
		if err != nil {
			return err
		}
		defer rep.Close()

		client, err := dialSyncClient(rep)
		if err != nil {
			return err
		}
		defer client.Close()

		return client.Watch(cmd.Context(), func(c *commit.Commit) error {
			fmt.Printf("commit %s (ancestor %s, %d actions)\n", c.ID, c.AncestorID, len(c.Actions))
			return nil
		})
	},
}
