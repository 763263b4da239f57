package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mezeipetister/demobit/examples/notes"
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Manage notes, the worked example object",
}

var noteCreateCmd = &cobra.Command{
	Use:   "create <name> <age>",
	Short: "Create a new note",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rep, err := openReplica(dataDirFlag(cmd))
		if err != nil {
			return err
		}
		defer rep.Close()

		n, err := notes.Open(rep.store, rep.repo)
		if err != nil {
			return err
		}

		var age int
		if _, err := fmt.Sscanf(args[1], "%d", &age); err != nil {
			return fmt.Errorf("note create: invalid age %q: %w", args[1], err)
		}

		comment, _ := cmd.Flags().GetString("comment")

		ctx, err := rep.repo.Open()
		if err != nil {
			return err
		}
		ctx.Comment(comment)
		id, err := n.CreateObject(notes.Note{Name: args[0], Age: age}, ctx)
		if err != nil {
			ctx.Abort()
			return fmt.Errorf("note create: %w", err)
		}
		if err := ctx.Close(); err != nil {
			return fmt.Errorf("note create: %w", err)
		}

		fmt.Println(id)
		return nil
	},
}

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all notes",
	RunE: func(cmd *cobra.Command, args []string) error {
		rep, err := openReplica(dataDirFlag(cmd))
		if err != nil {
			return err
		}
		defer rep.Close()

		n, err := notes.Open(rep.store, rep.repo)
		if err != nil {
			return err
		}

		all, err := n.GetAll()
		if err != nil {
			return fmt.Errorf("note list: %w", err)
		}
		for _, so := range all {
			fmt.Printf("%s\t%s\t%d\n", so.ID, so.LocalObject.Name, so.LocalObject.Age)
		}
		return nil
	},
}

var noteSetAgeCmd = &cobra.Command{
	Use:   "set-age <id> <age>",
	Short: "Patch a note's age",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rep, err := openReplica(dataDirFlag(cmd))
		if err != nil {
			return err
		}
		defer rep.Close()

		n, err := notes.Open(rep.store, rep.repo)
		if err != nil {
			return err
		}

		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("note set-age: invalid id %q: %w", args[0], err)
		}
		var age int
		if _, err := fmt.Sscanf(args[1], "%d", &age); err != nil {
			return fmt.Errorf("note set-age: invalid age %q: %w", args[1], err)
		}

		so, err := n.GetByID(id)
		if err != nil {
			return fmt.Errorf("note set-age: %w", err)
		}

		comment, _ := cmd.Flags().GetString("comment")

		ctx, err := rep.repo.Open()
		if err != nil {
			return err
		}
		ctx.Comment(comment)
		if err := n.Patch(so, notes.SetAgeAction(age), ctx); err != nil {
			ctx.Abort()
			return fmt.Errorf("note set-age: %w", err)
		}
		return ctx.Close()
	},
}

func init() {
	noteCreateCmd.Flags().String("comment", "", "Human-readable comment to attach to the commit")
	noteSetAgeCmd.Flags().String("comment", "", "Human-readable comment to attach to the commit")

	noteCmd.AddCommand(noteCreateCmd)
	noteCmd.AddCommand(noteListCmd)
	noteCmd.AddCommand(noteSetAgeCmd)
}
