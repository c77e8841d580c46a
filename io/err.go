package io

import (
	"errors"

	"github.com/ldaniels528/virtual88/translate"
)

var f = translate.From

var (
	// Device errors
	ErrChannelFull      = errors.New(f("channel full"))
	ErrKeyboardCanceled = errors.New(f("keyboard input canceled"))
	ErrKeyboardClosed   = errors.New(f("keyboard closed"))
	ErrHandleInvalid    = errors.New(f("invalid file handle"))
	ErrHandleExhausted  = errors.New(f("too many open files"))
	ErrPixelRange       = errors.New(f("pixel out of range"))
	ErrPageRange        = errors.New(f("display page out of range"))
	ErrNoStorage        = errors.New(f("no storage attached"))
)
