package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/himanishpuri/barricade/pkg/barricade/detect"
	"github.com/himanishpuri/barricade/pkg/models"
)

const dateLayout = "2006-01-02"

func printConcertLine(w io.Writer, c models.Concert, now time.Time) {
	when := "ago"
	if c.IsInFuture(now) {
		when = "to go"
	}
	fmt.Fprintf(w, "%s  %s  %s, %s  (%d songs, %d days %s)\n",
		c.ID, c.Date.Format(dateLayout), c.DisplayName(), c.City, len(c.Setlist), c.DaysTo(now), when)
}

func printConcert(w io.Writer, c models.Concert) {
	fmt.Fprintf(w, "🎤 %s\n", c.DisplayName())
	fmt.Fprintf(w, "   ID:     %s\n", c.ID)
	fmt.Fprintf(w, "   Date:   %s\n", c.Date.Format(dateLayout))
	fmt.Fprintf(w, "   Artist: %s\n", c.Artist)
	if c.Tour != "" {
		fmt.Fprintf(w, "   Tour:   %s\n", c.Tour)
	}
	if c.City != "" {
		fmt.Fprintf(w, "   City:   %s\n", c.City)
	}
	fmt.Fprintf(w, "   Color:  #%s\n", c.ColorHex)

	if len(c.Setlist) == 0 {
		fmt.Fprintln(w, "\n   Setlist is empty")
		return
	}
	fmt.Fprintln(w, "\n   Setlist:")
	for i, s := range c.Setlist {
		printSong(w, i+1, s)
	}
}

func printSong(w io.Writer, n int, s models.Song) {
	line := fmt.Sprintf("   %2d. %s", n, s.Title)
	if s.Artist != "" {
		line += " - " + s.Artist
	}
	if len(s.Clips) > 0 {
		line += fmt.Sprintf("  [%d clip%s]", len(s.Clips), plural(len(s.Clips)))
	}
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "       id %s\n", s.ID)
	if s.Link != "" {
		fmt.Fprintf(w, "       %s\n", s.Link)
	}
}

func printSnapshot(w io.Writer, snap detect.Snapshot) {
	switch o := snap.Outcome.(type) {
	case models.Match:
		fmt.Fprintf(w, "🎵 Matched %q", o.Title)
		if o.Artist != "" {
			fmt.Fprintf(w, " by %s", o.Artist)
		}
		fmt.Fprintln(w)
		if o.Candidate != nil {
			fmt.Fprintf(w, "   Score: %d | Confidence: %.1f%% | Offset: %dms\n",
				o.Candidate.Score, o.Candidate.Confidence, o.Candidate.OffsetMs)
		}
	case models.NoMatch:
		fmt.Fprintln(w, "🤷 No match found")
	case models.Failure:
		fmt.Fprintf(w, "⚠️  Detection failed: %v\n", o.Err)
	}
	if snap.Err != nil && snap.Outcome != nil && snap.Outcome.Succeeded() {
		fmt.Fprintf(w, "⚠️  Could not save the match: %v\n", snap.Err)
	}
	if snap.Resolution != nil {
		printResolution(w, *snap.Resolution)
	}
}

func printResolution(w io.Writer, r models.Resolution) {
	if r.Created {
		fmt.Fprintf(w, "✅ Added %q to the setlist at #%d\n", r.Song.Title, r.Song.Order+1)
	} else {
		fmt.Fprintf(w, "✅ Attached clip to %q (%d clip%s)\n", r.Song.Title, len(r.Song.Clips), plural(len(r.Song.Clips)))
	}
}

func printCandidates(w io.Writer, cs []models.Candidate) {
	if len(cs) == 0 {
		fmt.Fprintln(w, "❌ No matches found in catalog")
		return
	}
	fmt.Fprintf(w, "✅ Found %d candidate%s:\n\n", len(cs), plural(len(cs)))
	for i, c := range cs {
		fmt.Fprintf(w, "%d. %q by %s\n", i+1, c.Title, c.Artist)
		fmt.Fprintf(w, "   Score: %d | Confidence: %.1f%% | Offset: %dms\n", c.Score, c.Confidence, c.OffsetMs)
		if c.YouTubeID != "" {
			fmt.Fprintf(w, "   YouTube: https://youtube.com/watch?v=%s\n", c.YouTubeID)
		}
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func formatDuration(ms int) string {
	d := ms / 1000
	return fmt.Sprintf("%d:%02d", d/60, d%60)
}

func nonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
