package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/himanishpuri/barricade/pkg/models"
	"github.com/spf13/cobra"
)

type concertFlags struct {
	date     string
	artist   string
	tour     string
	city     string
	nickname string
	color    string
}

func (f *concertFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.date, "date", "", "concert date, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.artist, "artist", "", "headlining artist")
	cmd.Flags().StringVar(&f.tour, "tour", "", "tour name")
	cmd.Flags().StringVar(&f.city, "city", "", "city")
	cmd.Flags().StringVar(&f.nickname, "nickname", "", "optional display name")
	cmd.Flags().StringVar(&f.color, "color", "", "display colour as hex, default "+models.DefaultColorHex)
}

// apply copies the flags that were set onto c.
func (f *concertFlags) apply(cmd *cobra.Command, c *models.Concert) error {
	if cmd.Flags().Changed("date") {
		d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(f.date), time.Local)
		if err != nil {
			return fmt.Errorf("invalid --date %q, want YYYY-MM-DD", f.date)
		}
		c.Date = d
	}
	set := func(name string, dst *string, v string) {
		if cmd.Flags().Changed(name) {
			*dst = strings.TrimSpace(v)
		}
	}
	set("artist", &c.Artist, f.artist)
	set("tour", &c.Tour, f.tour)
	set("city", &c.City, f.city)
	set("nickname", &c.Nickname, f.nickname)
	set("color", &c.ColorHex, f.color)
	return nil
}

func newConcertCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "concert",
		Short: "Manage logged concerts",
	}
	cmd.AddCommand(
		newConcertAddCmd(a),
		newConcertListCmd(a),
		newConcertShowCmd(a),
		newConcertEditCmd(a),
		newConcertDeleteCmd(a),
	)
	return cmd
}

func newConcertAddCmd(a *app) *cobra.Command {
	var f concertFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Log a concert",
		Example: `  barricade concert add --date 2024-05-09 --artist "Taylor Swift" \
    --tour "The Eras Tour" --city Paris`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var c models.Concert
			if err := f.apply(cmd, &c); err != nil {
				return err
			}
			created, err := a.svc.CreateConcert(cmd.Context(), c)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Logged %s (ID: %s)\n", created.DisplayName(), created.ID)
			return nil
		},
	}
	f.register(cmd)
	cmd.MarkFlagRequired("date")
	cmd.MarkFlagRequired("artist")
	return cmd
}

func newConcertListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List concerts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			concerts, err := a.svc.ListConcerts()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(concerts) == 0 {
				fmt.Fprintln(w, "📭 No concerts logged yet")
				return nil
			}
			now := time.Now()
			for _, c := range concerts {
				printConcertLine(w, c, now)
			}
			return nil
		},
	}
}

func newConcertShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <concert-id>",
		Short: "Show a concert and its setlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.svc.GetConcert(args[0])
			if err != nil {
				return err
			}
			printConcert(cmd.OutOrStdout(), *c)
			return nil
		},
	}
}

func newConcertEditCmd(a *app) *cobra.Command {
	var f concertFlags
	cmd := &cobra.Command{
		Use:   "edit <concert-id>",
		Short: "Change a concert's details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.svc.GetConcert(args[0])
			if err != nil {
				return err
			}
			if err := f.apply(cmd, c); err != nil {
				return err
			}
			updated, err := a.svc.UpdateConcert(cmd.Context(), *c)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Updated %s\n", updated.DisplayName())
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newConcertDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <concert-id>",
		Short: "Delete a concert with its setlist and clips",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.svc.GetConcert(args[0])
			if err != nil {
				return err
			}
			if err := a.svc.DeleteConcert(cmd.Context(), c.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🗑️  Deleted %s and %d song%s\n",
				c.DisplayName(), len(c.Setlist), plural(len(c.Setlist)))
			return nil
		},
	}
}
