package storage

import (
	"strings"
	"time"

	"github.com/himanishpuri/barricade/pkg/errors"
	"github.com/himanishpuri/barricade/pkg/models"
	"github.com/himanishpuri/barricade/pkg/utils"
	"gorm.io/gorm"
)

// Track is a reference recording enrolled in the fingerprint catalog.
type Track struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	Title      string `gorm:"size:255;uniqueIndex:idx_track_unique,priority:1;index:idx_track_meta,priority:1" json:"title"`
	Artist     string `gorm:"size:255;uniqueIndex:idx_track_unique,priority:2;index:idx_track_meta,priority:2" json:"artist"`
	YouTubeID  string `gorm:"size:32;index:idx_youtube_id" json:"youtube_id"`
	DurationMs int    `json:"duration_ms"`
	CreatedAt  time.Time
}

type Fingerprint struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Hash         uint32 `gorm:"index:idx_hash" json:"hash"`
	TrackID      string `gorm:"type:varchar(36);index:idx_track" json:"track_id"`
	AnchorTimeMs uint32 `json:"anchor_time_ms"`
}

func (Track) TableName() string       { return "catalog_tracks" }
func (Fingerprint) TableName() string { return "fingerprints" }

func trackFromRow(r Track) models.CatalogTrack {
	return models.CatalogTrack{
		ID:         r.ID,
		Title:      r.Title,
		Artist:     r.Artist,
		YouTubeID:  r.YouTubeID,
		DurationMs: r.DurationMs,
	}
}

func isConstraintErr(err error) bool {
	if errors.IsE(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed") ||
		strings.Contains(msg, "Duplicate entry")
}

// RegisterTrack returns the ID of the (title, artist) track, creating it when new.
func (c *DBClient) RegisterTrack(title, artist, youtubeID string, durationMs int) (string, error) {
	const op errors.Op = "storage.RegisterTrack"
	if c == nil || c.DB == nil {
		return "", errNilClient(op)
	}

	var track Track
	err := c.DB.Where("title = ? AND artist = ?", title, artist).First(&track).Error
	if err == nil {
		if track.YouTubeID == "" && youtubeID != "" {
			if err := c.DB.Model(&track).Update("YouTubeID", youtubeID).Error; err != nil {
				return "", errors.E(op, errors.PersistenceError, errors.ID(track.ID), err)
			}
		}
		return track.ID, nil
	}
	if !errors.IsE(err, gorm.ErrRecordNotFound) {
		return "", errors.E(op, errors.PersistenceError, err)
	}

	track = Track{
		ID:         utils.GenerateUUID(),
		Title:      title,
		Artist:     artist,
		YouTubeID:  youtubeID,
		DurationMs: durationMs,
	}
	if err := c.DB.Create(&track).Error; err != nil {
		if isConstraintErr(err) {
			if fetchErr := c.DB.Where("title = ? AND artist = ?", title, artist).First(&track).Error; fetchErr != nil {
				return "", errors.E(op, errors.PersistenceError, fetchErr)
			}
			return track.ID, nil
		}
		return "", errors.E(op, errors.PersistenceError, err)
	}
	return track.ID, nil
}

func (c *DBClient) GetTrack(id string) (*models.CatalogTrack, error) {
	const op errors.Op = "storage.GetTrack"
	if c == nil || c.DB == nil {
		return nil, errNilClient(op)
	}

	var row Track
	if err := c.DB.First(&row, "id = ?", id).Error; err != nil {
		return nil, wrapErr(op, errors.TrackUnknown, id, err)
	}
	track := trackFromRow(row)
	return &track, nil
}

func (c *DBClient) ListTracks() ([]models.CatalogTrack, error) {
	const op errors.Op = "storage.ListTracks"
	if c == nil || c.DB == nil {
		return nil, errNilClient(op)
	}

	var rows []Track
	if err := c.DB.Order("artist ASC").Order("title ASC").Find(&rows).Error; err != nil {
		return nil, errors.E(op, errors.PersistenceError, err)
	}
	out := make([]models.CatalogTrack, len(rows))
	for i, r := range rows {
		out[i] = trackFromRow(r)
	}
	return out, nil
}

// DeleteTrack removes a catalog track together with its fingerprints.
func (c *DBClient) DeleteTrack(id string) error {
	const op errors.Op = "storage.DeleteTrack"
	if c == nil || c.DB == nil {
		return errNilClient(op)
	}

	err := c.DB.Transaction(func(tx *gorm.DB) error {
		var track Track
		if err := tx.First(&track, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Where("track_id = ?", id).Delete(&Fingerprint{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&Track{}).Error
	})
	return wrapErr(op, errors.TrackUnknown, id, err)
}

func (c *DBClient) StoreFingerprints(fp map[uint32][]models.Couple) error {
	const op errors.Op = "storage.StoreFingerprints"
	if c == nil || c.DB == nil {
		return errNilClient(op)
	}

	entries := make([]Fingerprint, 0, 1024)
	for hash, couples := range fp {
		for _, cou := range couples {
			entries = append(entries, Fingerprint{
				Hash:         hash,
				TrackID:      cou.TrackID,
				AnchorTimeMs: cou.AnchorTimeMs,
			})
			if len(entries) >= 1000 {
				if err := c.DB.CreateInBatches(entries, 500).Error; err != nil {
					return errors.E(op, errors.PersistenceError, err)
				}
				entries = entries[:0]
			}
		}
	}
	if len(entries) > 0 {
		if err := c.DB.CreateInBatches(entries, 500).Error; err != nil {
			return errors.E(op, errors.PersistenceError, err)
		}
	}
	return nil
}

func (c *DBClient) GetCouplesByHashes(hashes []uint32) (map[uint32][]models.Couple, error) {
	const op errors.Op = "storage.GetCouplesByHashes"
	if c == nil || c.DB == nil {
		return nil, errNilClient(op)
	}
	result := make(map[uint32][]models.Couple)
	if len(hashes) == 0 {
		return result, nil
	}

	// chunked to stay under driver placeholder limits
	const chunk = 500
	for start := 0; start < len(hashes); start += chunk {
		end := start + chunk
		if end > len(hashes) {
			end = len(hashes)
		}
		var rows []Fingerprint
		if err := c.DB.Where("hash IN ?", hashes[start:end]).Find(&rows).Error; err != nil {
			return nil, errors.E(op, errors.PersistenceError, err)
		}
		for _, r := range rows {
			result[r.Hash] = append(result[r.Hash], models.Couple{
				TrackID:      r.TrackID,
				AnchorTimeMs: r.AnchorTimeMs,
			})
		}
	}
	return result, nil
}

// GetFingerprintCount counts the hashes stored for a track.
func (c *DBClient) GetFingerprintCount(trackID string) (int, error) {
	const op errors.Op = "storage.GetFingerprintCount"
	if c == nil || c.DB == nil {
		return 0, errNilClient(op)
	}
	var count int64
	if err := c.DB.Model(&Fingerprint{}).Where("track_id = ?", trackID).Count(&count).Error; err != nil {
		return 0, errors.E(op, errors.PersistenceError, errors.ID(trackID), err)
	}
	return int(count), nil
}
