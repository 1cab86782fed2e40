package merkle

import "fmt"

// Kind identifies the canonical error category (§7). Callers should
// match on Kind via errors.As rather than string-matching Error().
type Kind int

const (
	// KindIndexOutOfBounds: proof or accessor past the end of the leaf vector.
	KindIndexOutOfBounds Kind = iota
	// KindInvalidProof: structurally malformed proof.
	KindInvalidProof
	// KindProofVerificationFailed: structurally valid, cryptographically rejected.
	KindProofVerificationFailed
	// KindTagMismatch: proof's declared tag disagrees with the tree.
	KindTagMismatch
	// KindInvalidTag: timestamp outside the validation policy window, or a
	// rollback target with no retained leaf.
	KindInvalidTag
	// KindHashError: the hash primitive signalled failure.
	KindHashError
	// KindEmptyTree: operation requires at least one leaf.
	KindEmptyTree
	// KindInvalidNodeType: operation applied to a node of the wrong kind.
	KindInvalidNodeType
	// KindDeltaFailed: delta replay or emission problem.
	KindDeltaFailed
	// KindValidationFailed: programmable-validation rejected the data.
	KindValidationFailed
	// KindStorageError: external backend failure.
	KindStorageError
	// KindInvalidConfiguration: a config parameter failed validation.
	KindInvalidConfiguration
	// KindSerializationError: encoding the tree document failed.
	KindSerializationError
	// KindDeserializationError: decoding a persisted document failed.
	KindDeserializationError
)

func (k Kind) String() string {
	switch k {
	case KindIndexOutOfBounds:
		return "IndexOutOfBounds"
	case KindInvalidProof:
		return "InvalidProof"
	case KindProofVerificationFailed:
		return "ProofVerificationFailed"
	case KindTagMismatch:
		return "TagMismatch"
	case KindInvalidTag:
		return "InvalidTag"
	case KindHashError:
		return "HashError"
	case KindEmptyTree:
		return "EmptyTree"
	case KindInvalidNodeType:
		return "InvalidNodeType"
	case KindDeltaFailed:
		return "DeltaFailed"
	case KindValidationFailed:
		return "ValidationFailed"
	case KindStorageError:
		return "StorageError"
	case KindInvalidConfiguration:
		return "InvalidConfiguration"
	case KindSerializationError:
		return "SerializationError"
	case KindDeserializationError:
		return "DeserializationError"
	default:
		return "Unknown"
	}
}

// Error is the single error type the core engine returns. Every
// operation that fails returns one of these (wrapped where a cause
// exists), leaving engine state unchanged (§5, §7).
type Error struct {
	Kind   Kind
	Fields map[string]any
	Reason string
	cause  error
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("merkle: %s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("merkle: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.cause }

// Is makes errors.Is(err, ErrEmptyTree) etc. work against the Kind,
// independent of Fields/Reason/cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(kind Kind, reason string, cause error, fields map[string]any) *Error {
	return &Error{Kind: kind, Reason: reason, cause: cause, Fields: fields}
}

// Sentinels usable with errors.Is to test Kind only (Fields/Reason ignored).
var (
	ErrIndexOutOfBounds       = &Error{Kind: KindIndexOutOfBounds}
	ErrInvalidProof           = &Error{Kind: KindInvalidProof}
	ErrProofVerificationFailed = &Error{Kind: KindProofVerificationFailed}
	ErrTagMismatch            = &Error{Kind: KindTagMismatch}
	ErrInvalidTag             = &Error{Kind: KindInvalidTag}
	ErrHashError              = &Error{Kind: KindHashError}
	ErrEmptyTree              = &Error{Kind: KindEmptyTree}
	ErrInvalidNodeType        = &Error{Kind: KindInvalidNodeType}
	ErrDeltaFailed            = &Error{Kind: KindDeltaFailed}
	ErrValidationFailed       = &Error{Kind: KindValidationFailed}
	ErrStorageError           = &Error{Kind: KindStorageError}
	ErrInvalidConfiguration   = &Error{Kind: KindInvalidConfiguration}
	ErrSerializationError     = &Error{Kind: KindSerializationError}
	ErrDeserializationError   = &Error{Kind: KindDeserializationError}
)

func errIndexOutOfBounds(index, leafCount int) error {
	return newErr(KindIndexOutOfBounds, fmt.Sprintf("index %d out of bounds (leaf count %d)", index, leafCount), nil,
		map[string]any{"index": index, "leaf_count": leafCount})
}

func errInvalidProof(reason string) error {
	return newErr(KindInvalidProof, reason, nil, nil)
}

func errProofVerificationFailed(reason string) error {
	return newErr(KindProofVerificationFailed, reason, nil, nil)
}

func errTagMismatch(expected, actual uint64) error {
	return newErr(KindTagMismatch, fmt.Sprintf("expected %d, got %d", expected, actual), nil,
		map[string]any{"expected": expected, "actual": actual})
}

func errInvalidTag(tag uint64, reason string) error {
	return newErr(KindInvalidTag, fmt.Sprintf("tag %d: %s", tag, reason), nil, map[string]any{"tag": tag})
}

func errEmptyTree() error { return newErr(KindEmptyTree, "", nil, nil) }

func errInvalidNodeType(operation string) error {
	return newErr(KindInvalidNodeType, fmt.Sprintf("operation %q", operation), nil, map[string]any{"operation": operation})
}

func errDeltaFailed(reason string) error {
	return newErr(KindDeltaFailed, reason, nil, nil)
}

func errValidationFailed(reason string) error {
	return newErr(KindValidationFailed, reason, nil, nil)
}

func errInvalidConfiguration(parameter, reason string) error {
	return newErr(KindInvalidConfiguration, fmt.Sprintf("%s: %s", parameter, reason), nil,
		map[string]any{"parameter": parameter})
}

func errSerialization(cause error) error {
	return newErr(KindSerializationError, cause.Error(), cause, nil)
}

func errDeserialization(cause error) error {
	return newErr(KindDeserializationError, cause.Error(), cause, nil)
}
