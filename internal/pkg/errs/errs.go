package errs

import "errors"

var (
	ErrMalformedInput      = errors.New("malformed input")
	ErrNoConversations     = errors.New("no usable conversations")
	ErrStageTimeout        = errors.New("stage timed out")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrResourceExhausted   = errors.New("resource exhausted")
	ErrArtifactNotFound    = errors.New("artifact not found")
	ErrCoverageMismatch    = errors.New("embedding coverage mismatch")
)

func IsResourceExhausted(err error) bool {
	return errors.Is(err, ErrResourceExhausted)
}
