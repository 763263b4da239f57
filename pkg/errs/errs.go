// Package errs collects the sentinel error kinds shared across demobit's
// core packages, so callers can branch on failure with errors.Is instead
// of string matching. Each wraps a Kind so structured logging can tag a
// failure without parsing its message.
package errs

import (
	"errors"
	"fmt"
)

// Kind names one of the error conditions the core must distinguish.
type Kind string

const (
	KindParentMismatch         Kind = "parent_mismatch"
	KindSignatureMismatch      Kind = "signature_mismatch"
	KindMissingRemoteSignature Kind = "missing_remote_signature"
	KindWrongSide              Kind = "wrong_side"
	KindWrongKind              Kind = "wrong_kind"
	KindStalePush              Kind = "stale_push"
	KindRemoteDivergence       Kind = "remote_divergence"
	KindPatchFailed            Kind = "patch_failed"
	KindNotFound               Kind = "not_found"
	KindConcurrentCommit       Kind = "concurrent_commit_context"
	KindPersistence            Kind = "persistence_error"
	KindAlreadySigned          Kind = "already_signed"
)

// Error is a demobit core error tagged with a Kind so callers can recover
// the kind with errors.As without depending on message text.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target names the same Kind, so errors.Is(err,
// errs.ParentMismatch) works without comparing messages.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New builds an *Error of the given kind with a message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an *Error of the given kind wrapping a lower-level cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// Sentinels usable directly with errors.Is, e.g. errors.Is(err, errs.ParentMismatch).
var (
	ParentMismatch         = &Error{Kind: KindParentMismatch, Msg: "parent action id mismatch"}
	SignatureMismatch      = &Error{Kind: KindSignatureMismatch, Msg: "signature mismatch"}
	MissingRemoteSignature = &Error{Kind: KindMissingRemoteSignature, Msg: "missing remote signature"}
	WrongSide              = &Error{Kind: KindWrongSide, Msg: "wrong side"}
	WrongKind              = &Error{Kind: KindWrongKind, Msg: "wrong action kind"}
	StalePush              = &Error{Kind: KindStalePush, Msg: "stale push"}
	RemoteDivergence       = &Error{Kind: KindRemoteDivergence, Msg: "remote divergence"}
	NotFound               = &Error{Kind: KindNotFound, Msg: "not found"}
	ConcurrentCommit       = &Error{Kind: KindConcurrentCommit, Msg: "commit context already open"}
	AlreadySigned          = &Error{Kind: KindAlreadySigned, Msg: "already signed"}
)

// PatchFailed wraps a domain Action.Apply error so callers can recover it
// with errors.As while still seeing the original error via errors.Unwrap.
func PatchFailed(cause error) *Error {
	return Wrap(KindPatchFailed, "action apply failed", cause)
}

// Persistence wraps a persistence-layer error as fatal at commit-context
// scope exit, per the policy in the repository's error handling design.
func Persistence(cause error) *Error {
	return Wrap(KindPersistence, "persistence failure", cause)
}

// KindOf recovers err's Kind for metrics labeling, returning "unknown" for
// an error that isn't one of ours.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return "unknown"
}
