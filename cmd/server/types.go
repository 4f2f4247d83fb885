package main

import (
	"time"

	"github.com/himanishpuri/barricade/pkg/barricade/detect"
	"github.com/himanishpuri/barricade/pkg/models"
)

const dateLayout = "2006-01-02"

// ConcertRequest is the body of POST /api/concerts and PUT /api/concerts/{id}
type ConcertRequest struct {
	Date     string `json:"date"` // YYYY-MM-DD
	Artist   string `json:"artist"`
	Tour     string `json:"tour"`
	City     string `json:"city"`
	Nickname string `json:"nickname,omitempty"`
	ColorHex string `json:"color_hex,omitempty"`
}

// SongRequest is the body of POST /api/concerts/{id}/songs
type SongRequest struct {
	Title   string `json:"title"`
	Artist  string `json:"artist,omitempty"`
	ClipRef string `json:"clip_ref,omitempty"`
}

// ReorderRequest is the body of PUT /api/concerts/{id}/setlist
type ReorderRequest struct {
	SongIDs []string `json:"song_ids"`
}

// LinkRequest is the body of PUT /api/songs/{id}/link
type LinkRequest struct {
	Link string `json:"link"`
}

// DetectionRequest is the JSON body of POST /api/concerts/{id}/detections
type DetectionRequest struct {
	URL string `json:"url"`
}

// AddTrackURLRequest is the JSON body of POST /api/catalog
type AddTrackURLRequest struct {
	YouTubeURL string `json:"youtube_url"`
	Title      string `json:"title,omitempty"`
	Artist     string `json:"artist,omitempty"`
}

type SongDTO struct {
	ID        string   `json:"id"`
	ConcertID string   `json:"concert_id"`
	Title     string   `json:"title"`
	Artist    string   `json:"artist,omitempty"`
	Order     int      `json:"order"`
	Link      string   `json:"link,omitempty"`
	Clips     []string `json:"clips"`
}

type ConcertDTO struct {
	ID          string    `json:"id"`
	Date        string    `json:"date"`
	Artist      string    `json:"artist"`
	Tour        string    `json:"tour"`
	City        string    `json:"city"`
	Nickname    string    `json:"nickname,omitempty"`
	DisplayName string    `json:"display_name"`
	ColorHex    string    `json:"color_hex"`
	InFuture    bool      `json:"in_future"`
	DaysTo      int       `json:"days_to"`
	Setlist     []SongDTO `json:"setlist"`
}

type ListConcertsResponse struct {
	Concerts []ConcertDTO `json:"concerts"`
	Count    int          `json:"count"`
}

type ResolutionDTO struct {
	Song    SongDTO `json:"song"`
	Created bool    `json:"created"`
}

type CandidateDTO struct {
	TrackID    string  `json:"track_id"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	YouTubeID  string  `json:"youtube_id,omitempty"`
	Score      int     `json:"score"`
	OffsetMs   int32   `json:"offset_ms"`
	Confidence float64 `json:"confidence"`
}

type OutcomeDTO struct {
	Type       string        `json:"type"` // match, no_match or error
	Title      string        `json:"title,omitempty"`
	Artist     string        `json:"artist,omitempty"`
	ArtworkURL string        `json:"artwork_url,omitempty"`
	Link       string        `json:"link,omitempty"`
	Error      string        `json:"error,omitempty"`
	Candidate  *CandidateDTO `json:"candidate,omitempty"`
}

type DetectionDTO struct {
	State            string         `json:"state"`
	ConcertID        string         `json:"concert_id,omitempty"`
	ClipRef          string         `json:"clip_ref,omitempty"`
	Outcome          *OutcomeDTO    `json:"outcome,omitempty"`
	Resolution       *ResolutionDTO `json:"resolution,omitempty"`
	Error            string         `json:"error,omitempty"`
	NeedsManualEntry bool           `json:"needs_manual_entry"`
	StartedAt        *time.Time     `json:"started_at,omitempty"`
	FinishedAt       *time.Time     `json:"finished_at,omitempty"`
}

type TrackDTO struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	YouTubeID  string `json:"youtube_id,omitempty"`
	DurationMs int    `json:"duration_ms"`
}

type ListTracksResponse struct {
	Tracks []TrackDTO `json:"tracks"`
	Count  int        `json:"count"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

func songDTO(s models.Song) SongDTO {
	clips := s.Clips
	if clips == nil {
		clips = []string{}
	}
	return SongDTO{
		ID:        s.ID,
		ConcertID: s.ConcertID,
		Title:     s.Title,
		Artist:    s.Artist,
		Order:     s.Order,
		Link:      s.Link,
		Clips:     clips,
	}
}

func setlistDTO(s models.Setlist) []SongDTO {
	out := make([]SongDTO, len(s))
	for i, song := range s {
		out[i] = songDTO(song)
	}
	return out
}

func concertDTO(c models.Concert, now time.Time) ConcertDTO {
	return ConcertDTO{
		ID:          c.ID,
		Date:        c.Date.Format(dateLayout),
		Artist:      c.Artist,
		Tour:        c.Tour,
		City:        c.City,
		Nickname:    c.Nickname,
		DisplayName: c.DisplayName(),
		ColorHex:    c.ColorHex,
		InFuture:    c.IsInFuture(now),
		DaysTo:      c.DaysTo(now),
		Setlist:     setlistDTO(c.Setlist),
	}
}

func resolutionDTO(r models.Resolution) *ResolutionDTO {
	return &ResolutionDTO{Song: songDTO(r.Song), Created: r.Created}
}

func candidateDTO(c models.Candidate) CandidateDTO {
	return CandidateDTO{
		TrackID:    c.TrackID,
		Title:      c.Title,
		Artist:     c.Artist,
		YouTubeID:  c.YouTubeID,
		Score:      c.Score,
		OffsetMs:   c.OffsetMs,
		Confidence: c.Confidence,
	}
}

func outcomeDTO(o models.Outcome) *OutcomeDTO {
	if o == nil {
		return nil
	}
	dto := &OutcomeDTO{Type: models.OutcomeLabel(o)}
	switch o := o.(type) {
	case models.Match:
		dto.Title = o.Title
		dto.Artist = o.Artist
		dto.ArtworkURL = o.ArtworkURL
		dto.Link = o.Link
		if o.Candidate != nil {
			c := candidateDTO(*o.Candidate)
			dto.Candidate = &c
		}
	case models.Failure:
		if o.Err != nil {
			dto.Error = o.Err.Error()
		}
	}
	return dto
}

func detectionDTO(s detect.Snapshot) DetectionDTO {
	dto := DetectionDTO{
		State:            s.State.String(),
		ConcertID:        s.ConcertID,
		ClipRef:          s.ClipRef,
		Outcome:          outcomeDTO(s.Outcome),
		NeedsManualEntry: s.NeedsManualEntry(),
	}
	if s.Resolution != nil {
		dto.Resolution = resolutionDTO(*s.Resolution)
	}
	if s.Err != nil {
		dto.Error = s.Err.Error()
	}
	if !s.StartedAt.IsZero() {
		t := s.StartedAt
		dto.StartedAt = &t
	}
	if !s.FinishedAt.IsZero() {
		t := s.FinishedAt
		dto.FinishedAt = &t
	}
	return dto
}

func trackDTO(t models.CatalogTrack) TrackDTO {
	return TrackDTO{
		ID:         t.ID,
		Title:      t.Title,
		Artist:     t.Artist,
		YouTubeID:  t.YouTubeID,
		DurationMs: t.DurationMs,
	}
}

type DeleteResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}
