package detect

import (
	"strings"

	"github.com/himanishpuri/barricade/pkg/errors"
	"github.com/himanishpuri/barricade/pkg/models"
)

// SetlistStore is the part of the record store the coordinator writes to.
type SetlistStore interface {
	GetConcert(id string) (*models.Concert, error)
	AppendSong(concertID string, song models.Song) (models.Song, error)
	AttachClip(songID, clipRef string) (models.Song, error)
	// ClipOwner returns the song a clip is attached to, or "" for none.
	ClipOwner(clipRef string) (string, error)
}

// Entry is a title to reconcile against a setlist.
type Entry struct {
	Title   string
	Artist  string
	Link    string
	ClipRef string // optional
}

// Resolve attaches the clip to the song with exactly the same title or, when
// there is none, appends a new song to the end of the setlist. A clip belongs to
// at most one song; resolving it again onto its own song changes nothing.
func Resolve(store SetlistStore, concertID string, e Entry) (models.Resolution, error) {
	const op errors.Op = "detect.Resolve"

	if strings.TrimSpace(e.Title) == "" {
		return models.Resolution{}, errors.E(op, errors.InvalidArgument, errors.Info("title"), "title is empty")
	}

	concert, err := store.GetConcert(concertID)
	if err != nil {
		return models.Resolution{}, errors.E(op, errors.ID(concertID), persistenceKind(err), err)
	}

	owner := ""
	if e.ClipRef != "" {
		if owner, err = store.ClipOwner(e.ClipRef); err != nil {
			return models.Resolution{}, errors.E(op, errors.ID(e.ClipRef), persistenceKind(err), err)
		}
	}

	if i := concert.Setlist.IndexOfTitle(e.Title); i >= 0 {
		existing := concert.Setlist[i]
		if e.ClipRef == "" || owner == existing.ID {
			return models.Resolution{Song: existing}, nil
		}
		if owner != "" {
			return models.Resolution{}, errClipTaken(op, e.ClipRef)
		}
		song, err := store.AttachClip(existing.ID, e.ClipRef)
		if err != nil {
			return models.Resolution{}, errors.E(op, errors.ID(existing.ID), persistenceKind(err), err)
		}
		return models.Resolution{Song: song}, nil
	}

	if owner != "" {
		return models.Resolution{}, errClipTaken(op, e.ClipRef)
	}

	song := models.Song{
		ConcertID: concertID,
		Title:     e.Title,
		Artist:    e.Artist,
		Link:      e.Link,
		Order:     concert.Setlist.NextOrder(),
	}
	if e.ClipRef != "" {
		song.Clips = []string{e.ClipRef}
	}
	created, err := store.AppendSong(concertID, song)
	if err != nil {
		return models.Resolution{}, errors.E(op, errors.ID(concertID), persistenceKind(err), err)
	}
	return models.Resolution{Song: created, Created: true}, nil
}

func errClipTaken(op errors.Op, ref string) error {
	return errors.E(op, errors.InvalidArgument, errors.ID(ref), errors.Info("clip_ref"), "clip already attached to another song")
}

// persistenceKind keeps lookup kinds and files everything else as a persistence failure.
func persistenceKind(err error) errors.Kind {
	for _, k := range []errors.Kind{errors.ConcertUnknown, errors.SongUnknown, errors.Canceled} {
		if errors.Is(k, err) {
			return k
		}
	}
	return errors.PersistenceError
}
