// Package errkind names the error taxonomy from spec.md §7 so callers can
// decide how to propagate a failure without string-matching messages.
package errkind

import "errors"

// Kind classifies an error by its recovery/propagation policy.
type Kind int

const (
	// TransientClient: bad JSON frame, unknown envelope type, a command
	// rejected by the simulator. Reported to the originating socket as
	// an error envelope; the socket is never closed for this reason.
	TransientClient Kind = iota
	// StateConflict: join-room on a full room, start with a connection
	// conflict, or an undeterminable reconnect side.
	StateConflict
	// ValidationFailure: an invalid team submission.
	ValidationFailure
	// MatchFatal: the simulator is unavailable or its streams ended
	// before a |win|/|tie| line.
	MatchFatal
	// Resource: process-level failures (bind failure, out of file
	// descriptors) that are not attributable to one client.
	Resource
)

// Error wraps an underlying cause with a Kind for dispatch at the
// controller/coordinator boundary.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// As reports whether err is (or wraps) an *Error and, if so, returns it.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

var (
	ErrRoomNotFound      = New(TransientClient, "room not found")
	ErrRoomFull          = New(StateConflict, "room is full")
	ErrCannotDetermineSide = New(StateConflict, "cannot determine side")
	ErrConnectionConflict  = New(StateConflict, "connection conflict")
	ErrInvalidTeam         = New(ValidationFailure, "invalid team")
	ErrSimulatorUnavailable = New(MatchFatal, "simulator unavailable")
	ErrNoMatchBound         = New(TransientClient, "no match bound to this connection")
	ErrUnknownEnvelopeType  = New(TransientClient, "unknown envelope type")
	ErrMalformedEnvelope    = New(TransientClient, "malformed envelope")
)
