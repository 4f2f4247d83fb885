package storage

import (
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/himanishpuri/barricade/pkg/errors"
	"github.com/himanishpuri/barricade/pkg/models"
	"github.com/himanishpuri/barricade/pkg/utils"
	"gorm.io/gorm"
)

type Concert struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	Date      time.Time `gorm:"index:idx_concert_date"`
	Artist    string    `gorm:"size:255"`
	Tour      string    `gorm:"size:255"`
	City      string    `gorm:"size:255"`
	Nickname  string    `gorm:"size:255"`
	ColorHex  string    `gorm:"size:7"`
	Songs     []Song    `gorm:"foreignKey:ConcertID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Song struct {
	ID        string   `gorm:"primaryKey;type:varchar(36)"`
	ConcertID string   `gorm:"type:varchar(36);index:idx_song_concert"`
	Title     string   `gorm:"size:255;index:idx_song_title"`
	Artist    string   `gorm:"size:255"`
	Position  int      `gorm:"column:position"`
	Link      string   `gorm:"size:1024"`
	Clips     []string `gorm:"serializer:json;type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Concert) TableName() string { return "concerts" }
func (Song) TableName() string    { return "songs" }

func songFromRow(r Song) models.Song {
	clips := make([]string, len(r.Clips))
	copy(clips, r.Clips)
	return models.Song{
		ID:        r.ID,
		ConcertID: r.ConcertID,
		Title:     r.Title,
		Artist:    r.Artist,
		Order:     r.Position,
		Link:      r.Link,
		Clips:     clips,
		CreatedAt: r.CreatedAt,
	}
}

func concertFromRow(r Concert) models.Concert {
	setlist := make(models.Setlist, 0, len(r.Songs))
	for _, s := range r.Songs {
		setlist = append(setlist, songFromRow(s))
	}
	return models.Concert{
		ID:        r.ID,
		Date:      r.Date,
		Artist:    r.Artist,
		Tour:      r.Tour,
		City:      r.City,
		Nickname:  r.Nickname,
		ColorHex:  r.ColorHex,
		Setlist:   setlist.Sorted(),
		CreatedAt: r.CreatedAt,
	}
}

func orderedSongs(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC").Order("created_at ASC").Order("id ASC")
}

// NormalizeColorHex strips a leading # and uppercases, falling back to the default.
func NormalizeColorHex(hex string) string {
	hex = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(hex), "#"))
	if len(hex) != 6 {
		return models.DefaultColorHex
	}
	for _, r := range hex {
		if !strings.ContainsRune("0123456789ABCDEF", r) {
			return models.DefaultColorHex
		}
	}
	return hex
}

func (c *DBClient) CreateConcert(concert models.Concert) (models.Concert, error) {
	const op errors.Op = "storage.CreateConcert"
	if c == nil || c.DB == nil {
		return models.Concert{}, errNilClient(op)
	}

	row := Concert{
		ID:       concert.ID,
		Date:     concert.Date,
		Artist:   concert.Artist,
		Tour:     concert.Tour,
		City:     concert.City,
		Nickname: concert.Nickname,
		ColorHex: NormalizeColorHex(concert.ColorHex),
	}
	if row.ID == "" {
		row.ID = utils.GenerateUUID()
	}
	if err := c.DB.Create(&row).Error; err != nil {
		return models.Concert{}, errors.E(op, errors.PersistenceError, err)
	}
	return concertFromRow(row), nil
}

// UpdateConcert overwrites the concert's own fields, the setlist is untouched.
func (c *DBClient) UpdateConcert(concert models.Concert) (models.Concert, error) {
	const op errors.Op = "storage.UpdateConcert"
	if c == nil || c.DB == nil {
		return models.Concert{}, errNilClient(op)
	}

	err := c.DB.Transaction(func(tx *gorm.DB) error {
		var row Concert
		if err := tx.First(&row, "id = ?", concert.ID).Error; err != nil {
			return err
		}
		return tx.Model(&row).Updates(map[string]any{
			"date":      concert.Date,
			"artist":    concert.Artist,
			"tour":      concert.Tour,
			"city":      concert.City,
			"nickname":  concert.Nickname,
			"color_hex": NormalizeColorHex(concert.ColorHex),
		}).Error
	})
	if err != nil {
		return models.Concert{}, wrapErr(op, errors.ConcertUnknown, concert.ID, err)
	}
	updated, err := c.GetConcert(concert.ID)
	if err != nil {
		return models.Concert{}, errors.E(op, err)
	}
	return *updated, nil
}

func (c *DBClient) GetConcert(id string) (*models.Concert, error) {
	const op errors.Op = "storage.GetConcert"
	if c == nil || c.DB == nil {
		return nil, errNilClient(op)
	}

	var row Concert
	err := c.DB.Preload("Songs", orderedSongs).First(&row, "id = ?", id).Error
	if err != nil {
		return nil, wrapErr(op, errors.ConcertUnknown, id, err)
	}
	concert := concertFromRow(row)
	return &concert, nil
}

// ListConcerts returns every concert, most recent date first.
func (c *DBClient) ListConcerts() ([]models.Concert, error) {
	const op errors.Op = "storage.ListConcerts"
	if c == nil || c.DB == nil {
		return nil, errNilClient(op)
	}

	var rows []Concert
	if err := c.DB.Preload("Songs", orderedSongs).Order("date DESC").Find(&rows).Error; err != nil {
		return nil, errors.E(op, errors.PersistenceError, err)
	}
	out := make([]models.Concert, len(rows))
	for i, r := range rows {
		out[i] = concertFromRow(r)
	}
	return out, nil
}

// DeleteConcert removes the concert and all of its songs, returning the clip
// references those songs held so the caller can clean up clip storage.
func (c *DBClient) DeleteConcert(id string) ([]string, error) {
	const op errors.Op = "storage.DeleteConcert"
	if c == nil || c.DB == nil {
		return nil, errNilClient(op)
	}

	var clips []string
	err := c.DB.Transaction(func(tx *gorm.DB) error {
		var concert Concert
		if err := tx.First(&concert, "id = ?", id).Error; err != nil {
			return err
		}
		var songs []Song
		if err := tx.Where("concert_id = ?", id).Find(&songs).Error; err != nil {
			return err
		}
		for _, s := range songs {
			clips = append(clips, s.Clips...)
		}
		if err := tx.Where("concert_id = ?", id).Delete(&Song{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&Concert{}).Error
	})
	if err != nil {
		return nil, wrapErr(op, errors.ConcertUnknown, id, err)
	}
	return clips, nil
}

// AppendSong inserts song into the concert's setlist with the order it carries.
func (c *DBClient) AppendSong(concertID string, song models.Song) (models.Song, error) {
	const op errors.Op = "storage.AppendSong"
	if c == nil || c.DB == nil {
		return models.Song{}, errNilClient(op)
	}

	row := Song{
		ID:        song.ID,
		ConcertID: concertID,
		Title:     song.Title,
		Artist:    song.Artist,
		Position:  song.Order,
		Link:      song.Link,
		Clips:     append([]string{}, song.Clips...),
	}
	if row.ID == "" {
		row.ID = utils.GenerateUUID()
	}

	err := c.DB.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Concert{}).Where("id = ?", concertID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return models.Song{}, wrapErr(op, errors.ConcertUnknown, concertID, err)
	}
	return songFromRow(row), nil
}

func (c *DBClient) GetSong(id string) (*models.Song, error) {
	const op errors.Op = "storage.GetSong"
	if c == nil || c.DB == nil {
		return nil, errNilClient(op)
	}

	var row Song
	if err := c.DB.First(&row, "id = ?", id).Error; err != nil {
		return nil, wrapErr(op, errors.SongUnknown, id, err)
	}
	song := songFromRow(row)
	return &song, nil
}

// AttachClip appends clipRef to the song's clip list. A clip the song already
// has is not added twice.
func (c *DBClient) AttachClip(songID, clipRef string) (models.Song, error) {
	const op errors.Op = "storage.AttachClip"
	if c == nil || c.DB == nil {
		return models.Song{}, errNilClient(op)
	}

	var row Song
	err := c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&row, "id = ?", songID).Error; err != nil {
			return err
		}
		if slices.Contains(row.Clips, clipRef) {
			return nil
		}
		row.Clips = append(row.Clips, clipRef)
		return tx.Save(&row).Error
	})
	if err != nil {
		return models.Song{}, wrapErr(op, errors.SongUnknown, songID, err)
	}
	return songFromRow(row), nil
}

// ClipOwner returns the ID of the song clipRef is attached to, or "" when no
// song has it.
func (c *DBClient) ClipOwner(clipRef string) (string, error) {
	const op errors.Op = "storage.ClipOwner"
	if c == nil || c.DB == nil {
		return "", errNilClient(op)
	}

	// clips is stored as a JSON list: the LIKE narrows the scan to rows holding
	// the encoded ref, the exact match is done on the decoded list
	encoded, err := json.Marshal(clipRef)
	if err != nil {
		return "", errors.E(op, errors.InvalidArgument, errors.ID(clipRef), err)
	}
	pattern := "%" + strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(string(encoded)) + "%"

	var rows []Song
	if err := c.DB.Where("clips LIKE ? ESCAPE '!'", pattern).Find(&rows).Error; err != nil {
		return "", wrapErr(op, errors.PersistenceError, clipRef, err)
	}
	for _, row := range rows {
		if slices.Contains(row.Clips, clipRef) {
			return row.ID, nil
		}
	}
	return "", nil
}

// UpdateSong changes title, artist and link of a song.
func (c *DBClient) UpdateSong(song models.Song) (models.Song, error) {
	const op errors.Op = "storage.UpdateSong"
	if c == nil || c.DB == nil {
		return models.Song{}, errNilClient(op)
	}

	err := c.DB.Transaction(func(tx *gorm.DB) error {
		var row Song
		if err := tx.First(&row, "id = ?", song.ID).Error; err != nil {
			return err
		}
		return tx.Model(&row).Updates(map[string]any{
			"title":  song.Title,
			"artist": song.Artist,
			"link":   song.Link,
		}).Error
	})
	if err != nil {
		return models.Song{}, wrapErr(op, errors.SongUnknown, song.ID, err)
	}
	updated, err := c.GetSong(song.ID)
	if err != nil {
		return models.Song{}, errors.E(op, err)
	}
	return *updated, nil
}

// DeleteSong removes a single song. Sibling orders are left as they are.
func (c *DBClient) DeleteSong(id string) ([]string, error) {
	const op errors.Op = "storage.DeleteSong"
	if c == nil || c.DB == nil {
		return nil, errNilClient(op)
	}

	var row Song
	err := c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&Song{}).Error
	})
	if err != nil {
		return nil, wrapErr(op, errors.SongUnknown, id, err)
	}
	return row.Clips, nil
}

// ReorderSetlist rewrites the orders of the concert's songs to 0..n-1 following
// songIDs, which must name every song of the concert exactly once.
func (c *DBClient) ReorderSetlist(concertID string, songIDs []string) (models.Setlist, error) {
	const op errors.Op = "storage.ReorderSetlist"
	if c == nil || c.DB == nil {
		return nil, errNilClient(op)
	}

	var invalid string
	err := c.DB.Transaction(func(tx *gorm.DB) error {
		var concert Concert
		if err := tx.First(&concert, "id = ?", concertID).Error; err != nil {
			return err
		}
		var songs []Song
		if err := tx.Where("concert_id = ?", concertID).Find(&songs).Error; err != nil {
			return err
		}
		if len(songs) != len(songIDs) {
			invalid = "song list length does not match setlist"
			return errors.New(invalid)
		}
		known := make(map[string]bool, len(songs))
		for _, s := range songs {
			known[s.ID] = true
		}
		for _, id := range songIDs {
			if !known[id] {
				invalid = "song " + id + " is not in this setlist or is listed twice"
				return errors.New(invalid)
			}
			delete(known, id)
		}
		for i, id := range songIDs {
			if err := tx.Model(&Song{}).Where("id = ?", id).Update("position", i).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if invalid != "" {
		return nil, errors.E(op, errors.InvalidArgument, errors.ID(concertID), errors.Info(invalid))
	}
	if err != nil {
		return nil, wrapErr(op, errors.ConcertUnknown, concertID, err)
	}

	concert, err := c.GetConcert(concertID)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return concert.Setlist, nil
}
