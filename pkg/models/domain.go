package models

import (
	"math"
	"sort"
	"time"
)

// DefaultColorHex is the display colour given to new concerts.
const DefaultColorHex = "FF6B6B"

// Concert is a logged show owning an ordered setlist.
type Concert struct {
	ID        string
	Date      time.Time
	Artist    string
	Tour      string
	City      string
	Nickname  string
	ColorHex  string
	Setlist   Setlist
	CreatedAt time.Time
}

// IsInFuture reports whether the concert date is after now.
func (c Concert) IsInFuture(now time.Time) bool {
	return c.Date.After(now)
}

// DaysTo returns the absolute number of whole days between now and the concert.
func (c Concert) DaysTo(now time.Time) int {
	days := c.Date.Sub(now).Hours() / 24
	return int(math.Abs(math.Trunc(days)))
}

// DisplayName is the nickname when set, otherwise "artist - tour".
func (c Concert) DisplayName() string {
	if c.Nickname != "" {
		return c.Nickname
	}
	if c.Tour == "" {
		return c.Artist
	}
	return c.Artist + " - " + c.Tour
}

// Song is one setlist entry with its attached clips.
type Song struct {
	ID        string
	ConcertID string
	Title     string
	Artist    string
	Order     int
	Link      string
	Clips     []string
	CreatedAt time.Time
}

// Setlist is the songs of one concert in presentation order.
type Setlist []Song

// Sorted returns a copy ordered by Order, then creation time, then ID.
func (s Setlist) Sorted() Setlist {
	out := make(Setlist, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// IndexOfTitle returns the index of the song whose title is exactly title
// (case-sensitive), or -1.
func (s Setlist) IndexOfTitle(title string) int {
	for i := range s {
		if s[i].Title == title {
			return i
		}
	}
	return -1
}

// NextOrder is the order value for a song appended to the setlist: its
// length, or one past the highest order when that value is already taken.
func (s Setlist) NextOrder() int {
	next := len(s)
	highest := -1
	taken := false
	for _, song := range s {
		if song.Order == next {
			taken = true
		}
		if song.Order > highest {
			highest = song.Order
		}
	}
	if taken {
		return highest + 1
	}
	return next
}

// Contiguous reports whether the orders are exactly 0..n-1 in slice order.
func (s Setlist) Contiguous() bool {
	for i, song := range s {
		if song.Order != i {
			return false
		}
	}
	return true
}

// Move returns the song IDs after moving the song at from to position to,
// the way a list drag-and-drop reorders rows.
func (s Setlist) Move(from, to int) ([]string, bool) {
	if from < 0 || from >= len(s) || to < 0 || to >= len(s) {
		return nil, false
	}
	ids := make([]string, 0, len(s))
	for _, song := range s {
		ids = append(ids, song.ID)
	}
	moved := ids[from]
	ids = append(ids[:from], ids[from+1:]...)
	ids = append(ids[:to], append([]string{moved}, ids[to:]...)...)
	return ids, true
}

// Resolution is what happened to the setlist after a title was resolved.
type Resolution struct {
	Song    Song
	Created bool // false when the clip was attached to an existing song
}

// CatalogTrack is a reference recording the fingerprint matcher knows about.
type CatalogTrack struct {
	ID         string // Database ID (UUID)
	Title      string
	Artist     string
	YouTubeID  string
	DurationMs int
}

// Candidate is a scored catalog track returned by the fingerprint matcher.
type Candidate struct {
	TrackID    string
	Title      string
	Artist     string
	YouTubeID  string
	Score      int     // Number of aligned fingerprint hashes
	OffsetMs   int32   // Clip position inside the reference track
	Confidence float64 // Percentage (0-100)
}
