package fingerprint

import (
	"sort"

	"github.com/himanishpuri/barricade/pkg/models"
)

func sortByTime(peaks []Peak) []Peak {
	out := make([]Peak, len(peaks))
	copy(out, peaks)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

// Fingerprint produces the catalog entries (hash -> couples) for a track.
func Fingerprint(peaks []Peak, trackID string) map[uint32][]models.Couple {
	fp := make(map[uint32][]models.Couple)
	pairs(sortByTime(peaks), func(hash uint32, anchor Peak) {
		fp[hash] = append(fp[hash], models.Couple{TrackID: trackID, AnchorTimeMs: anchorMs(anchor)})
	})
	return fp
}

// QueryHashes returns the anchor times (ms) of every hash in a query clip.
func QueryHashes(peaks []Peak) map[uint32][]uint32 {
	q := make(map[uint32][]uint32)
	pairs(sortByTime(peaks), func(hash uint32, anchor Peak) {
		q[hash] = append(q[hash], anchorMs(anchor))
	})
	return q
}

// CountHashes is the number of hash occurrences in a query.
func CountHashes(q map[uint32][]uint32) int {
	n := 0
	for _, times := range q {
		n += len(times)
	}
	return n
}

// Vote aligns query hashes with catalog couples. For every track the most
// common offset (catalog anchor - query anchor) wins; tracks come back ranked
// by that offset's vote count.
func Vote(query map[uint32][]uint32, db map[uint32][]models.Couple) []models.Vote {
	votes := make(map[string]map[int32]int)
	for hash, queryTimes := range query {
		bucket := db[hash]
		for _, qt := range queryTimes {
			for _, cou := range bucket {
				offset := int32(cou.AnchorTimeMs) - int32(qt)
				m, ok := votes[cou.TrackID]
				if !ok {
					m = make(map[int32]int)
					votes[cou.TrackID] = m
				}
				m[offset]++
			}
		}
	}

	out := make([]models.Vote, 0, len(votes))
	for trackID, offsets := range votes {
		best := models.Vote{TrackID: trackID}
		for off, cnt := range offsets {
			if cnt > best.Count || (cnt == best.Count && off < best.OffsetMs) {
				best.Count, best.OffsetMs = cnt, off
			}
		}
		out = append(out, best)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].TrackID < out[j].TrackID
	})
	return out
}
