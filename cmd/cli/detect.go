package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/himanishpuri/barricade/pkg/barricade/clip"
	"github.com/spf13/cobra"
)

func newDetectCmd(a *app) *cobra.Command {
	var (
		url           string
		title, artist string
		noPrompt      bool
	)
	cmd := &cobra.Command{
		Use:   "detect <concert-id> [video]",
		Short: "Identify the song in a clip and add it to the setlist",
		Long: `Import a video clip, identify its song and add it to the concert's setlist.
A song already on the setlist gets the clip attached instead. When the song
cannot be identified you are asked for the title; --title and --artist answer
that question up front. Press Ctrl-C to cancel a running detection.`,
		Example: `  barricade detect 3f1c... IMG_0420.MOV
  barricade detect 3f1c... --url "https://youtu.be/..." --title "Vampire"`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			concertID := args[0]
			var src clip.Source
			switch {
			case len(args) == 2 && url != "":
				return fmt.Errorf("give either a video file or --url, not both")
			case len(args) == 2:
				src = clip.FileSource{Path: args[1]}
			case url != "":
				src = clip.RemoteSource{URL: url}
			default:
				return fmt.Errorf("a video file or --url is required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "🔍 Importing clip and listening...")
			if err := a.svc.StartDetection(ctx, concertID, src); err != nil {
				return err
			}
			snap, err := a.svc.WaitDetection(ctx)
			if err != nil {
				a.svc.CancelDetection()
				fmt.Fprintln(w, "\n🛑 Detection cancelled, nothing was saved")
				return nil
			}
			printSnapshot(w, snap)
			if !snap.NeedsManualEntry() {
				return snap.Err
			}

			if title == "" && !noPrompt {
				title, artist = promptSong(cmd.InOrStdin(), w)
			}
			if strings.TrimSpace(title) == "" {
				fmt.Fprintf(w, "Clip kept as %s; add it later with:\n  barricade song add %s --title <title> --clip %s\n",
					snap.ClipRef, concertID, snap.ClipRef)
				return nil
			}
			res, err := a.svc.AddSong(context.WithoutCancel(ctx), concertID, title, artist, snap.ClipRef)
			if err != nil {
				return err
			}
			printResolution(w, res)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "download the clip from this URL instead of a file")
	cmd.Flags().StringVar(&title, "title", "", "title to use when the song is not identified")
	cmd.Flags().StringVar(&artist, "artist", "", "artist to use with --title")
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "never ask for a title")
	return cmd
}

// promptSong asks for a title and artist. An empty title skips manual entry.
func promptSong(in io.Reader, out io.Writer) (title, artist string) {
	sc := bufio.NewScanner(in)
	fmt.Fprint(out, "Song title (empty to skip): ")
	if !sc.Scan() {
		return "", ""
	}
	title = strings.TrimSpace(sc.Text())
	if title == "" {
		return "", ""
	}
	fmt.Fprint(out, "Artist (optional): ")
	if sc.Scan() {
		artist = strings.TrimSpace(sc.Text())
	}
	return title, artist
}
