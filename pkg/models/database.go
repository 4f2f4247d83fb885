package models

// Couple is the stored value for a hash bucket entry.
// AnchorTimeMs is the time (in ms) of the anchor peak in the source audio.
type Couple struct {
	TrackID      string // UUID of the catalog track
	AnchorTimeMs uint32
}

// Vote is a candidate alignment returned by offset voting.
type Vote struct {
	TrackID  string
	OffsetMs int32 // dbAnchorTimeMs - queryAnchorTimeMs
	Count    int
}
