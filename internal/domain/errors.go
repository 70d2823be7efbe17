package domain

import "github.com/pkg/errors"

var (
	ErrBadParam    = errors.New("bad parameter")
	ErrHandle      = errors.New("invalid handle")
	ErrNoMemory    = errors.New("out of memory")
	ErrNotExist    = errors.New("does not exist")
	ErrNoResource  = errors.New("no resource available")
	ErrFailed      = errors.New("operation failed")
	ErrUnsupported = errors.New("unsupported operation")
)
