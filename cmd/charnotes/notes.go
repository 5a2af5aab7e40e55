package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vonshlovens/charnotes/internal/note"
	"github.com/vonshlovens/charnotes/internal/store"
)

func notesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Manage local notes",
	}

	cmd.AddCommand(
		notesAddCmd(),
		notesEditCmd(),
		notesRmCmd(),
		notesListCmd(),
	)

	return cmd
}

func notesAddCmd() *cobra.Command {
	var characterID int64

	cmd := &cobra.Command{
		Use:   "add <text>...",
		Short: "Create a note",
		Long:  `Creates a note locally and queues it for replication. The note is visible immediately with pending status; no network call happens here.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			_, st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			var character *int64
			if cmd.Flags().Changed("character") {
				character = &characterID
			}

			noteID, err := note.NewService(st).Create(ctx, character, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("failed to create note: %w", err)
			}

			fmt.Printf("Created note %s (pending sync).\n", shortID(noteID))
			return nil
		},
	}

	cmd.Flags().Int64Var(&characterID, "character", 0, "catalog character id to attach the note to")
	return cmd
}

func notesEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <note-id> <text>...",
		Short: "Rewrite a note's text",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			_, st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			noteID, err := resolveNoteID(ctx, st, args[0])
			if err != nil {
				return err
			}

			if err := note.NewService(st).Update(ctx, noteID, strings.Join(args[1:], " ")); err != nil {
				return fmt.Errorf("failed to update note: %w", err)
			}

			fmt.Printf("Updated note %s (pending sync).\n", shortID(noteID))
			return nil
		},
	}
}

func notesRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <note-id>",
		Short: "Delete a note",
		Long:  `Removes the note locally right away and queues the remote delete.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			_, st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			noteID, err := resolveNoteID(ctx, st, args[0])
			if err != nil {
				return err
			}

			if err := note.NewService(st).Delete(ctx, noteID); err != nil {
				return fmt.Errorf("failed to delete note: %w", err)
			}

			fmt.Printf("Deleted note %s.\n", shortID(noteID))
			return nil
		},
	}
}

func notesListCmd() *cobra.Command {
	var characterID int64
	var match string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			_, st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			repo := note.NewRepository(st)

			var notes []note.Note
			if cmd.Flags().Changed("character") {
				notes, err = repo.ListByCharacter(ctx, characterID)
			} else {
				notes, err = repo.List(ctx)
			}
			if err != nil {
				return err
			}

			shown := 0
			for _, n := range notes {
				if match != "" {
					matched, err := doublestar.Match(match, n.Text)
					if err != nil {
						return fmt.Errorf("bad match pattern: %w", err)
					}
					if !matched {
						continue
					}
				}
				printNote(&n)
				shown++
			}

			if shown == 0 {
				fmt.Println("No notes.")
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&characterID, "character", 0, "only notes attached to this character id")
	cmd.Flags().StringVar(&match, "match", "", "only notes whose text matches this glob pattern")
	return cmd
}

func printNote(n *note.Note) {
	status := color.YellowString(string(n.Status))
	if n.Status == note.StatusSynced {
		status = color.GreenString(string(n.Status))
	}

	remoteID := "-"
	if n.RemoteID != nil {
		remoteID = fmt.Sprintf("%d", *n.RemoteID)
	}
	character := "-"
	if n.CharacterID != nil {
		character = fmt.Sprintf("%d", *n.CharacterID)
	}

	fmt.Printf("%s  %-8s  char=%-5s remote=%-5s %s  %s\n",
		shortID(n.ID), status, character, remoteID,
		n.UpdatedAt.Local().Format(time.RFC3339), n.Text)
}

// resolveNoteID accepts a full note id or an unambiguous prefix
func resolveNoteID(ctx context.Context, st *store.Store, prefix string) (string, error) {
	notes, err := note.NewRepository(st).List(ctx)
	if err != nil {
		return "", err
	}

	var found []string
	for _, n := range notes {
		if n.ID == prefix {
			return n.ID, nil
		}
		if strings.HasPrefix(n.ID, prefix) {
			found = append(found, n.ID)
		}
	}

	switch len(found) {
	case 0:
		return "", fmt.Errorf("no note matches %q", prefix)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("note id %q is ambiguous (%d matches)", prefix, len(found))
	}
}
