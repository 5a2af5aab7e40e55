package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vonshlovens/charnotes/internal/catalog"
	"github.com/vonshlovens/charnotes/internal/config"
	"github.com/vonshlovens/charnotes/internal/note"
)

func charactersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "characters",
		Short: "Browse the character catalog",
	}

	cmd.AddCommand(
		charactersListCmd(),
		charactersShowCmd(),
	)

	return cmd
}

func catalogClient(cfg *config.Config) *catalog.Client {
	return catalog.NewClient(cfg.Catalog.BaseURL, time.Duration(cfg.Catalog.TimeoutMs)*time.Millisecond)
}

func charactersListCmd() *cobra.Command {
	var query catalog.Query

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one catalog page",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			page, err := catalogClient(cfg).Characters(ctx, query)
			if err != nil {
				return fmt.Errorf("failed to fetch characters: %w", err)
			}

			for _, ch := range page.Results {
				fmt.Printf("%-5d %-28s %-10s %s\n", ch.ID, ch.Name, ch.Status, ch.Species)
			}
			fmt.Printf("\nPage %d of %d (%d characters total)\n",
				max(query.Page, 1), page.Info.Pages, page.Info.Count)
			return nil
		},
	}

	cmd.Flags().IntVar(&query.Page, "page", 1, "catalog page")
	cmd.Flags().StringVar(&query.Name, "name", "", "filter by name")
	cmd.Flags().StringVar(&query.Status, "status", "", "filter by status (alive, dead, unknown)")
	cmd.Flags().StringVar(&query.Species, "species", "", "filter by species")
	return cmd
}

func charactersShowCmd() *cobra.Command {
	var episodes int

	cmd := &cobra.Command{
		Use:   "show <character-id>",
		Short: "Show one character with its episodes and local notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid character id %q", args[0])
			}

			cfg, st, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			client := catalogClient(cfg)
			ch, err := client.Character(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to fetch character: %w", err)
			}

			fmt.Printf("%s (#%d)\n", color.New(color.Bold).Sprint(ch.Name), ch.ID)
			fmt.Printf("Status: %s\nSpecies: %s\n", ch.Status, ch.Species)

			ids := catalog.EpisodeIDs(ch)
			if len(ids) > episodes {
				ids = ids[:episodes]
			}
			if len(ids) > 0 {
				eps, err := client.Episodes(ctx, ids)
				if err != nil {
					return fmt.Errorf("failed to fetch episodes: %w", err)
				}
				fmt.Println("\nEpisodes:")
				for _, ep := range eps {
					fmt.Printf("  %-7s %s (%s)\n", ep.Code, ep.Name, ep.AirDate)
				}
			}

			notes, err := note.NewRepository(st).ListByCharacter(ctx, id)
			if err != nil {
				return err
			}
			if len(notes) > 0 {
				fmt.Println("\nNotes:")
				for _, n := range notes {
					printNote(&n)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&episodes, "episodes", 5, "number of episodes to show")
	return cmd
}
