package extraction

import (
	"errors"
	"strings"
)

// ErrBlocking matches every BlockingFailure.
var ErrBlocking = errors.New("all providers failed")

// BlockingFailure means no provider produced a usable answer. Nothing from
// the attempt may be persisted.
type BlockingFailure struct {
	Attempts []string
}

func (e *BlockingFailure) Error() string {
	return "All providers failed: " + strings.Join(e.Attempts, "; ")
}

func (e *BlockingFailure) Is(target error) bool {
	return target == ErrBlocking
}

// IsBlocking reports whether err is (or wraps) a BlockingFailure.
func IsBlocking(err error) bool {
	return errors.Is(err, ErrBlocking)
}
