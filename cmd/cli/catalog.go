package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/himanishpuri/barricade/pkg/barricade/fingerprint"
	"github.com/spf13/cobra"
)

func newCatalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the reference tracks clips are matched against",
	}
	cmd.AddCommand(
		newCatalogAddCmd(a),
		newCatalogListCmd(a),
		newCatalogDeleteCmd(a),
		newCatalogMatchCmd(a),
		newCatalogSpectrogramCmd(a),
	)
	return cmd
}

func newCatalogAddCmd(a *app) *cobra.Command {
	var title, artist, youtube, url string
	cmd := &cobra.Command{
		Use:   "add [audio-file]",
		Short: "Fingerprint a track from a file or a YouTube URL",
		Example: `  barricade catalog add song.mp3 --title "Anti-Hero" --artist "Taylor Swift"
  barricade catalog add --url "https://youtube.com/watch?v=b1kbLwvqugk"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			var (
				id  string
				err error
			)
			switch {
			case len(args) == 1 && url != "":
				return fmt.Errorf("cannot specify both audio file and --url")
			case url != "":
				fmt.Fprintln(w, "📥 Downloading audio from YouTube...")
				id, err = a.svc.AddTrackFromURL(cmd.Context(), url, title, artist)
			case len(args) == 1:
				if strings.TrimSpace(title) == "" || strings.TrimSpace(artist) == "" {
					return fmt.Errorf("--title and --artist are required")
				}
				fmt.Fprintln(w, "🎵 Processing audio file...")
				id, err = a.svc.AddTrack(cmd.Context(), args[0], title, artist, youtube)
			default:
				return fmt.Errorf("audio file path or --url required")
			}
			if err != nil {
				return err
			}

			track, err := a.svc.GetTrack(id)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "✅ Track is in the catalog")
			fmt.Fprintf(w, "   ID:      %s\n", track.ID)
			fmt.Fprintf(w, "   Title:   %s\n", track.Title)
			fmt.Fprintf(w, "   Artist:  %s\n", track.Artist)
			if track.YouTubeID != "" {
				fmt.Fprintf(w, "   YouTube: %s\n", track.YouTubeID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "track title (taken from the video with --url)")
	cmd.Flags().StringVar(&artist, "artist", "", "artist (taken from the video with --url)")
	cmd.Flags().StringVar(&youtube, "youtube", "", "YouTube ID of the track")
	cmd.Flags().StringVar(&url, "url", "", "YouTube URL to download and add")
	return cmd
}

func newCatalogListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalog tracks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tracks, err := a.svc.ListTracks()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(tracks) == 0 {
				fmt.Fprintln(w, "📭 No tracks in catalog")
				return nil
			}
			fmt.Fprintf(w, "📚 %d track%s:\n\n", len(tracks), plural(len(tracks)))
			for i, t := range tracks {
				fmt.Fprintf(w, "%d. %q by %s (ID: %s)\n", i+1, t.Title, t.Artist, t.ID)
				if t.YouTubeID != "" {
					fmt.Fprintf(w, "   YouTube: https://youtube.com/watch?v=%s\n", t.YouTubeID)
				}
				if t.DurationMs > 0 {
					fmt.Fprintf(w, "   Duration: %s\n", formatDuration(t.DurationMs))
				}
			}
			return nil
		},
	}
}

func newCatalogDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <track-id>",
		Short: "Remove a track and its fingerprints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			track, err := a.svc.GetTrack(args[0])
			if err != nil {
				return err
			}
			if err := a.svc.DeleteTrack(cmd.Context(), track.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🗑️  Deleted %q by %s\n", track.Title, track.Artist)
			return nil
		},
	}
}

func newCatalogMatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "match <clip>",
		Short: "Score catalog tracks against a clip without touching any setlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			candidates, err := a.svc.MatchCandidates(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printCandidates(cmd.OutOrStdout(), candidates)
			return nil
		},
	}
}

func newCatalogSpectrogramCmd(a *app) *cobra.Command {
	var (
		out  string
		opts fingerprint.RenderOptions
	)
	cmd := &cobra.Command{
		Use:   "spectrogram <clip>",
		Short: "Render the spectrogram of a clip to a PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				base := filepath.Base(args[0])
				out = strings.TrimSuffix(base, filepath.Ext(base)) + ".png"
			}
			if err := a.svc.RenderSpectrogram(cmd.Context(), args[0], out, opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output PNG (default <clip>.png)")
	cmd.Flags().IntVar(&opts.Width, "width", 2048, "image width")
	cmd.Flags().IntVar(&opts.Height, "height", 512, "image height")
	cmd.Flags().BoolVar(&opts.Log10, "log", false, "log10 frequency scale")
	return cmd
}
