package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print this replica's identity, mode, and commit counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		rep, err := openReplica(dataDirFlag(cmd))
		if err != nil {
			return err
		}
		defer rep.Close()

		st, err := rep.repo.Status()
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}

		mode := rep.repo.Mode()
		fmt.Printf("uid:                %s\n", rep.repo.UID())
		fmt.Printf("mode:               %s\n", mode.Kind)
		switch {
		case mode.ServerURL != "":
			fmt.Printf("server:             %s\n", mode.ServerURL)
		case mode.ListenAddr != "":
			fmt.Printf("listen:             %s\n", mode.ListenAddr)
		}
		fmt.Printf("local commits:      %d\n", st.LocalCommits)
		fmt.Printf("remote commits:     %d\n", st.RemoteCommits)
		fmt.Printf("commit context open: %t\n", st.CommitContextOpen)
		return nil
	},
}
