package barricade

import (
	"github.com/himanishpuri/barricade/pkg/models"
)

// Store is the record store and reference catalog the service persists to.
// *storage.DBClient implements it.
type Store interface {
	CreateConcert(concert models.Concert) (models.Concert, error)
	UpdateConcert(concert models.Concert) (models.Concert, error)
	GetConcert(id string) (*models.Concert, error)
	ListConcerts() ([]models.Concert, error)
	DeleteConcert(id string) ([]string, error)

	AppendSong(concertID string, song models.Song) (models.Song, error)
	GetSong(id string) (*models.Song, error)
	AttachClip(songID, clipRef string) (models.Song, error)
	ClipOwner(clipRef string) (string, error)
	UpdateSong(song models.Song) (models.Song, error)
	DeleteSong(id string) ([]string, error)
	ReorderSetlist(concertID string, songIDs []string) (models.Setlist, error)

	RegisterTrack(title, artist, youtubeID string, durationMs int) (string, error)
	GetTrack(id string) (*models.CatalogTrack, error)
	ListTracks() ([]models.CatalogTrack, error)
	DeleteTrack(id string) error
	StoreFingerprints(fp map[uint32][]models.Couple) error
	GetCouplesByHashes(hashes []uint32) (map[uint32][]models.Couple, error)
	GetFingerprintCount(trackID string) (int, error)

	Close() error
}
