package memory

import (
	"errors"

	"github.com/ldaniels528/virtual88/translate"
)

var f = translate.From

var (
	ErrOutOfMemory   = errors.New(f("out of memory"))
	ErrArenaInvalid  = errors.New(f("arena block invalid"))
	ErrArenaOverflow = errors.New(f("arena exceeds memory"))
)

// ErrAddressRange is raised (as a panic value) when a segment:offset pair
// lies outside the backing store.
type ErrAddressRange struct {
	Segment uint16
	Offset  uint16
}

func (err ErrAddressRange) Error() string {
	return f("address %04X:%04X out of range", err.Segment, err.Offset)
}
