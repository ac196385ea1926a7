// Package corerr defines the error taxonomy shared by every pipeline component.
//
// Component-local errors are mapped to one of the Kind values before crossing
// a task boundary; anything that doesn't map is wrapped as KindFatal so it
// never gets silently swallowed at a queue join point.
package corerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the purposes of session-lifecycle policy.
type Kind string

const (
	KindConfigInvalid            Kind = "config_invalid"
	KindNoDevice                 Kind = "no_device"
	KindPermissionDenied         Kind = "permission_denied"
	KindUnsupportedFormat        Kind = "unsupported_format"
	KindResampleUnsupported      Kind = "resample_unsupported"
	KindModelNotLoaded           Kind = "model_not_loaded"
	KindTranscriptionFailed      Kind = "transcription_failed"
	KindEmbeddingExtractFailed   Kind = "embedding_extraction_failed"
	KindProfileStoreUnavailable  Kind = "profile_store_unavailable"
	KindProfileStoreVersionMismatch Kind = "profile_store_version_mismatch"
	KindQueueOverflow            Kind = "queue_overflow"
	KindCancelled                Kind = "cancelled"
	KindTimeout                  Kind = "timeout"
	KindFatal                    Kind = "fatal"
)

// Fatal reports whether a Kind, by policy, must terminate the owning session
// (see spec §7's policy column).
func (k Kind) Fatal() bool {
	switch k {
	case KindConfigInvalid, KindNoDevice, KindPermissionDenied, KindUnsupportedFormat,
		KindResampleUnsupported, KindModelNotLoaded, KindProfileStoreVersionMismatch, KindFatal:
		return true
	default:
		return false
	}
}

// Error is the typed error every component boundary returns. It wraps an
// underlying cause and tags it with a Kind so the Pipeline join point can
// switch on policy instead of string-matching.
type Error struct {
	Kind      Kind
	Component string // e.g. "capture", "vad", "asr", "speaker", "profilestore"
	SegmentID int64  // 0 when not segment-scoped
	Err       error
}

func (e *Error) Error() string {
	if e.SegmentID != 0 {
		return fmt.Sprintf("%s[segment=%d]: %s: %v", e.Component, e.SegmentID, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Component, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a Kind and the component that observed it.
func New(kind Kind, component string, err error) *Error {
	return &Error{Kind: kind, Component: component, Err: err}
}

// ForSegment is like New but scopes the error to a specific segment, so a
// per-segment failure (TranscriptionFailed, EmbeddingExtractionFailed) can be
// recovered without terminating the session.
func ForSegment(kind Kind, component string, segmentID int64, err error) *Error {
	return &Error{Kind: kind, Component: component, SegmentID: segmentID, Err: err}
}

// As is a small convenience wrapper around errors.As for *Error, used at
// pipeline join points that need to recover the Kind of an arbitrary error.
func As(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// Unknown maps any error not already a *Error into KindFatal, per the "never
// silently swallow" propagation rule in spec §7.
func Unknown(component string, err error) *Error {
	if ce, ok := As(err); ok {
		return ce
	}
	return New(KindFatal, component, err)
}
