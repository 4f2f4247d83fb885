package detect

import (
	"time"

	"github.com/himanishpuri/barricade/pkg/models"
)

type State int

const (
	Idle State = iota
	Importing
	Detecting
	Resolved
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Importing:
		return "importing"
	case Detecting:
		return "detecting"
	case Resolved:
		return "resolved"
	}
	return "unknown"
}

// Busy reports whether a detection is in flight.
func (s State) Busy() bool {
	return s == Importing || s == Detecting
}

// Snapshot is a point-in-time copy of the coordinator state.
type Snapshot struct {
	State      State
	ConcertID  string
	ClipRef    string
	Outcome    models.Outcome     // set once Resolved
	Resolution *models.Resolution // set when the setlist changed
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// NeedsManualEntry reports whether the user has to name the song themselves.
func (s Snapshot) NeedsManualEntry() bool {
	return s.State == Resolved && s.Resolution == nil && s.ClipRef != ""
}
