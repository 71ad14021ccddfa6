package movdemux

import "fmt"

// ErrorKind classifies the fatal error conditions that abort Init, as
// distinguished from the non-fatal deviations collected in Warnings.
type ErrorKind int

const (
	ErrInvalidFileFormat ErrorKind = iota
	ErrCorruptData
	ErrInvalidBoxSize
	ErrMissingRequiredBox
	ErrInvalidSampleTable
	ErrUnsupportedCodec
	ErrSeek
	ErrSampleNotFound
	ErrStreamNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case ErrInvalidFileFormat:
		return "InvalidFileFormat"
	case ErrCorruptData:
		return "CorruptData"
	case ErrInvalidBoxSize:
		return "InvalidBoxSize"
	case ErrMissingRequiredBox:
		return "MissingRequiredBox"
	case ErrInvalidSampleTable:
		return "InvalidSampleTable"
	case ErrUnsupportedCodec:
		return "UnsupportedCodec"
	case ErrSeek:
		return "SeekError"
	case ErrSampleNotFound:
		return "SampleNotFound"
	case ErrStreamNotFound:
		return "StreamNotFound"
	default:
		return "Unknown"
	}
}

// Error is the typed error returned by Init and other fallible
// operations. Details carries optional structured context (a box
// type, a track id, a byte offset) for callers that want more than
// the message.
type Error struct {
	Kind    ErrorKind
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("movdemux: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("movdemux: %s: %s (%v)", e.Kind, e.Message, e.Details)
}

func newError(kind ErrorKind, message string, details map[string]any) *Error {
	return &Error{Kind: kind, Message: message, Details: details}
}

func missingRequiredBox(boxType string) *Error {
	return newError(ErrMissingRequiredBox, fmt.Sprintf("required box %q not found", boxType),
		map[string]any{"box_type": boxType})
}

// WarningKind classifies non-fatal deviations accumulated during Init
// but that do not abort it (spec.md §7's "recoverable" list).
type WarningKind int

const (
	WarnUnknownCodec WarningKind = iota
	WarnUnknownBoxType
	WarnBoxExceedsParent
	WarnTruncatedTable
	WarnInconsistentSampleCount
	WarnOffsetBeyondMdat
)

func (k WarningKind) String() string {
	switch k {
	case WarnUnknownCodec:
		return "UnknownCodec"
	case WarnUnknownBoxType:
		return "UnknownBoxType"
	case WarnBoxExceedsParent:
		return "BoxExceedsParent"
	case WarnTruncatedTable:
		return "TruncatedTable"
	case WarnInconsistentSampleCount:
		return "InconsistentSampleCount"
	case WarnOffsetBeyondMdat:
		return "OffsetBeyondMdat"
	default:
		return "Unknown"
	}
}

// Warning is one entry of the post-init warning channel described in
// spec.md §4.G.
type Warning struct {
	Kind    WarningKind
	Message string
	BoxType string
}

func (w Warning) String() string {
	if w.BoxType == "" {
		return fmt.Sprintf("%s: %s", w.Kind, w.Message)
	}
	return fmt.Sprintf("%s[%s]: %s", w.Kind, w.BoxType, w.Message)
}
