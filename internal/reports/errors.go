package reports

import (
	"errors"
	"fmt"
)

// Warning kinds. Every report warning wraps exactly one of them.
var (
	ErrInput    = errors.New("input error")
	ErrUpstream = errors.New("upstream error")
	ErrDecode   = errors.New("decode error")
)

func inputError(msg string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrInput, msg)
	}
	return fmt.Errorf("%w: %s: %w", ErrInput, msg, err)
}

func upstreamError(msg string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrUpstream, msg)
	}
	return fmt.Errorf("%w: %s: %w", ErrUpstream, msg, err)
}

func decodeError(msg string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDecode, msg, err)
}

// WarningKind names the kind of a report warning
func WarningKind(err error) string {
	switch {
	case errors.Is(err, ErrInput):
		return "input"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	case errors.Is(err, ErrDecode):
		return "decode"
	default:
		return "unknown"
	}
}

// WarningMessages renders warnings for display
func WarningMessages(warnings []error) []string {
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, w.Error())
	}
	return out
}
