package errors

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"runtime"
)

// Errorf is equivalent to fmt.Errorf
var Errorf = fmt.Errorf

// New is equivalent to errors.New
var New = errors.New

// As is equivalent to errors.As
var As = errors.As

// Unwrap is equivalent to errors.Unwrap
var Unwrap = errors.Unwrap

// E builds an error value from its arguments.
// There must be at least one argument or E panics.
// The type of each argument determines its meaning.
// If more than one argument of a given type is presented,
// only the last one is recorded.
//
// The types are:
//
//	errors.Op:
//		The operation being performed
//	errors.Kind:
//		The class of error
//	errors.ID:
//		The identifier of the record involved (concert, song, track)
//	errors.Info:
//		Extra info useful to this class of error, think argument
//		name when using InvalidArgument
//	string:
//		Treated as an error message and assigned to the
//		Err field after a call to errors.New
//	error:
//		The underlying error that triggered this one
//
// If the error is printed, only those items that have been
// set to non-zero values will appear in the result.
//
// If Kind is not specified or Other, we set it to the Kind of
// the underlying error.
func E(args ...any) error {
	if len(args) == 0 {
		panic("call to errors.E with no arguments")
	}

	e := &Error{}
	for _, arg := range args {
		switch arg := arg.(type) {
		case Kind:
			e.Kind = arg
		case Op:
			e.Op = arg
		case ID:
			e.ID = arg
		case Info:
			e.Info = arg
		case string:
			e.Err = errors.New(arg)
		case *Error:
			copy := *arg
			e.Err = &copy
		case error:
			e.Err = arg
		default:
			_, file, line, _ := runtime.Caller(1)
			log.Printf("errors.E: bad call from %s:%d: %v", file, line, args)
			return Errorf("unknown type %T, value %v in error call", arg, arg)
		}
	}

	prev, ok := e.Err.(*Error)
	if !ok {
		return e
	}

	// The previous error was also one of ours. Suppress duplications
	// so the message won't contain the same information twice
	if prev.Kind == e.Kind {
		prev.Kind = Other
	}
	if prev.ID == e.ID {
		prev.ID = ""
	}
	if prev.Info == e.Info {
		prev.Info = ""
	}
	// if this error has Kind unset or Other, pull up the inner one
	if e.Kind == Other {
		e.Kind = prev.Kind
		prev.Kind = Other
	}

	return e
}

// Select returns an *Error with the given Kind from the error given
func Select(kind Kind, err error) (*Error, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return nil, false
	}

	if e.Kind == kind {
		return e, true
	}
	if e.Err != nil {
		return Select(kind, e.Err)
	}

	return nil, false
}

// Is reports whether err is an *Error of the given kind
func Is(kind Kind, err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	if e.Kind != Other {
		return e.Kind == kind
	}
	if e.Err != nil {
		return Is(kind, e.Err)
	}
	return false
}

// IsE is equivalent to the standard library errors.Is
func IsE(err, target error) bool {
	return errors.Is(err, target)
}

// Op is the operation that was being performed
type Op string

// ID is the identifier of the record an error is about
type ID string

// Info is some extra information that can be included with an Error
type Info string

// Error is the type that implements the error interface.
// It contains a number of fields, each of different type.
// An Error value may leave some values unset.
type Error struct {
	Kind Kind
	Op   Op
	ID   ID
	Info Info
	Err  error
}

func (e *Error) isZero() bool {
	return e == nil || *e == Error{}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// pad appends s to the buffer if the buffer already contains data
func pad(b *bytes.Buffer, s string) {
	if b.Len() != 0 {
		b.WriteString(s)
	}
}

func (e *Error) Error() string {
	b := new(bytes.Buffer)

	if e.Op != "" {
		pad(b, ": ")
		b.WriteString(string(e.Op))
	}

	if e.Kind != 0 {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}

	var hadPrevious bool
	infoPad := func() {
		if hadPrevious {
			pad(b, ", ")
		} else {
			pad(b, ": ")
		}
		hadPrevious = true
	}

	if e.ID != "" {
		infoPad()
		b.WriteString("ID<")
		b.WriteString(string(e.ID))
		b.WriteString(">")
	}

	if e.Info != "" {
		infoPad()
		b.WriteString("Info<")
		b.WriteString(string(e.Info))
		b.WriteString(">")
	}

	if e.Err != nil {
		// indent on new line if we're cascading non-empty Error
		if prev, ok := e.Err.(*Error); ok && !prev.isZero() {
			pad(b, Separator)
			b.WriteString(prev.Error())
		} else {
			pad(b, ": ")
			b.WriteString(e.Err.Error())
		}
	}

	if b.Len() == 0 {
		return "no error"
	}

	return b.String()
}

// Separator is the string used to separate nested errors. By
// default, to make errors easier on the eye, nested errors are
// indented on a new line.
var Separator = ":\n\t"

// Kind defines the kind of error this is
type Kind uint8

// Kinds of errors
//
// Do not reorder this list or remove items;
// New items must be added only to the end
const (
	Other            Kind = iota // Unclassified error
	InvalidArgument              // Invalid argument given to function
	ImportError                  // Clip source unreadable or destination unwritable
	MatchError                   // Fingerprint matcher failure
	PersistenceError             // Record store write or read failure
	ConcertUnknown               // Concert does not exist
	SongUnknown                  // Song does not exist
	TrackUnknown                 // Catalog track does not exist
	DetectionBusy                // A detection is already in flight
	SessionBusy                  // A matching session is already active
	Canceled                     // Operation was cancelled by the user
	StorageUnknown               // Unknown storage backend or driver name
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "other error"
	case InvalidArgument:
		return "invalid argument"
	case ImportError:
		return "clip import failed"
	case MatchError:
		return "song match failed"
	case PersistenceError:
		return "persistence failed"
	case ConcertUnknown:
		return "unknown concert"
	case SongUnknown:
		return "unknown song"
	case TrackUnknown:
		return "unknown catalog track"
	case DetectionBusy:
		return "detection already in progress"
	case SessionBusy:
		return "matching session already active"
	case Canceled:
		return "cancelled"
	case StorageUnknown:
		return "unknown storage"
	}

	return "unknown error kind"
}
