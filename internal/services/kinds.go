package services

import (
	"errors"
	"strings"
)

// Kind is the stable tag attached to every media engine failure.
type Kind string

const (
	KindUnreadableMedia          Kind = "UnreadableMedia"
	KindSourceNotFound           Kind = "SourceNotFound"
	KindInvalidSceneWindow       Kind = "InvalidSceneWindow"
	KindTranscodeFailed          Kind = "TranscodeFailed"
	KindTranscodeTimeout         Kind = "TranscodeTimeout"
	KindRenderVerificationFailed Kind = "RenderVerificationFailed"
	KindMissingSegment           Kind = "MissingSegment"
	KindNoSegments               Kind = "NoSegments"
	KindExportFailed             Kind = "ExportFailed"
)

// Kind values double as errors.Is targets.
var (
	ErrUnreadableMedia          = &Error{Kind: KindUnreadableMedia}
	ErrSourceNotFound           = &Error{Kind: KindSourceNotFound}
	ErrInvalidSceneWindow       = &Error{Kind: KindInvalidSceneWindow}
	ErrTranscodeFailed          = &Error{Kind: KindTranscodeFailed}
	ErrTranscodeTimeout         = &Error{Kind: KindTranscodeTimeout}
	ErrRenderVerificationFailed = &Error{Kind: KindRenderVerificationFailed}
	ErrMissingSegment           = &Error{Kind: KindMissingSegment}
	ErrNoSegments               = &Error{Kind: KindNoSegments}
	ErrExportFailed             = &Error{Kind: KindExportFailed}
)

// Error is a tagged failure. Detail carries the diagnostic, usually the tail of
// the external tool's stderr or its exit status.
type Error struct {
	Kind   Kind
	Op     string
	Detail string
	Err    error
}

// NewError builds a tagged error.
func NewError(kind Kind, op, detail string, err error) *Error {
	return &Error{Kind: kind, Op: op, Detail: strings.TrimSpace(detail), Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	out := []error{e.Kind.marker()}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Is matches any *Error carrying the same kind, so the exported kind values
// work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the first tag found in the chain.
func KindOf(err error) (Kind, bool) {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind, true
	}
	return "", false
}

// Tag renders the stable tag for err, or "Internal" for untagged failures.
func Tag(err error) string {
	if kind, ok := KindOf(err); ok {
		return string(kind)
	}
	return "Internal"
}

func (k Kind) marker() error {
	switch k {
	case KindUnreadableMedia, KindTranscodeFailed, KindRenderVerificationFailed, KindExportFailed:
		return ErrExternalTool
	case KindSourceNotFound, KindMissingSegment:
		return ErrNotFound
	case KindInvalidSceneWindow, KindNoSegments:
		return ErrValidation
	case KindTranscodeTimeout:
		return ErrTimeout
	default:
		return ErrTransient
	}
}
