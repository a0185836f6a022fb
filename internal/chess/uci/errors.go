package uci

import (
	"context"
	"errors"
)

type ErrorKind uint8

const (
	KindUnknown ErrorKind = iota
	KindSpawnFailure
	KindStreamClosedPrematurely
	KindUnparsableBestMove
	KindNoLegalMove
	KindEngineProposedIllegalMove
	KindEngineTimeout
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindSpawnFailure:
		return "spawn_failure"
	case KindStreamClosedPrematurely:
		return "stream_closed_prematurely"
	case KindUnparsableBestMove:
		return "unparsable_best_move"
	case KindNoLegalMove:
		return "no_legal_move"
	case KindEngineProposedIllegalMove:
		return "engine_proposed_illegal_move"
	case KindEngineTimeout:
		return "engine_timeout"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Error is the typed failure of one engine session.
type Error struct {
	Kind  ErrorKind
	Token string
	Err   error
}

func (e *Error) Error() string {
	msg := "uci: " + e.Kind.String()
	if e.Token != "" {
		msg += " (" + e.Token + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrSpawnFailure              = &Error{Kind: KindSpawnFailure}
	ErrStreamClosedPrematurely   = &Error{Kind: KindStreamClosedPrematurely}
	ErrUnparsableBestMove        = &Error{Kind: KindUnparsableBestMove}
	ErrNoLegalMove               = &Error{Kind: KindNoLegalMove}
	ErrEngineProposedIllegalMove = &Error{Kind: KindEngineProposedIllegalMove}
	ErrEngineTimeout             = &Error{Kind: KindEngineTimeout}
	ErrCanceled                  = &Error{Kind: KindCanceled}
)

// KindOf extracts the ErrorKind carried by err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindEngineTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	return KindUnknown
}

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}
