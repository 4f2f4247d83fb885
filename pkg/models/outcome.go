package models

// Outcome is the result of one matching attempt. It is exactly one of
// Match, NoMatch or Failure.
type Outcome interface {
	outcome()
	// Succeeded reports whether the outcome identified a song.
	Succeeded() bool
	String() string
}

// Match is a positive identification.
type Match struct {
	Title      string
	Artist     string
	ArtworkURL string
	Link       string
	Candidate  *Candidate // set by the fingerprint recognizer
}

// NoMatch means the matcher ran to completion without recognising the song.
type NoMatch struct{}

// Failure means the matcher could not run, Err says why.
type Failure struct {
	Err error
}

func (Match) outcome()   {}
func (NoMatch) outcome() {}
func (Failure) outcome() {}

func (m Match) Succeeded() bool { return m.Title != "" }
func (NoMatch) Succeeded() bool { return false }
func (Failure) Succeeded() bool { return false }

func (m Match) String() string {
	if m.Artist == "" {
		return "match: " + m.Title
	}
	return "match: " + m.Title + " by " + m.Artist
}

func (NoMatch) String() string { return "no match" }

func (f Failure) String() string {
	if f.Err == nil {
		return "failure"
	}
	return "failure: " + f.Err.Error()
}

// OutcomeLabel returns a short stable label for metrics and JSON.
func OutcomeLabel(o Outcome) string {
	switch o := o.(type) {
	case Match:
		if !o.Succeeded() {
			return "error"
		}
		return "match"
	case NoMatch:
		return "no_match"
	case Failure:
		return "error"
	default:
		return "none"
	}
}
