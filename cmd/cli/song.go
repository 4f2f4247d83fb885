package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newSongCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "song",
		Short: "Edit a concert's setlist",
	}
	cmd.AddCommand(
		newSongAddCmd(a),
		newSongDeleteCmd(a),
		newSongMoveCmd(a),
		newSongLinkCmd(a),
	)
	return cmd
}

func newSongAddCmd(a *app) *cobra.Command {
	var title, artist, clipRef string
	cmd := &cobra.Command{
		Use:   "add <concert-id>",
		Short: "Add a song by hand",
		Long: `Add a song to the end of the setlist. When the setlist already has a song
with exactly this title, the clip (if any) is attached to it instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.svc.AddSong(cmd.Context(), args[0], title, artist, clipRef)
			if err != nil {
				return err
			}
			printResolution(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "song title")
	cmd.Flags().StringVar(&artist, "artist", "", "artist, when different from the headliner")
	cmd.Flags().StringVar(&clipRef, "clip", "", "reference of an imported clip to attach")
	cmd.MarkFlagRequired("title")
	return cmd
}

func newSongDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <song-id>",
		Short: "Remove a song and its clips",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			song, err := a.svc.GetSong(args[0])
			if err != nil {
				return err
			}
			if err := a.svc.DeleteSong(cmd.Context(), song.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🗑️  Deleted %q\n", song.Title)
			return nil
		},
	}
}

func newSongMoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move <concert-id> <from> <to>",
		Short: "Move a song within the setlist (positions start at 1)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid position %q", args[1])
			}
			to, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid position %q", args[2])
			}
			setlist, err := a.svc.MoveSong(cmd.Context(), args[0], from-1, to-1)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for i, s := range setlist {
				printSong(w, i+1, s)
			}
			return nil
		},
	}
}

func newSongLinkCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "link <song-id> [url]",
		Short: "Set a song's external link, or clear it when no url is given",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			link := ""
			if len(args) == 2 {
				link = args[1]
			}
			song, err := a.svc.SetSongLink(cmd.Context(), args[0], link)
			if err != nil {
				return err
			}
			if song.Link == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "✅ Cleared link of %q\n", song.Title)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "✅ %q now links to %s\n", song.Title, song.Link)
			}
			return nil
		},
	}
}
