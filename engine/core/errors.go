package core

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrOutOfMemory is reported when a memory array has no free block large
	// enough for an allocation. Capacities are fixed at startup, so this is a
	// configuration error, not a transient condition.
	ErrOutOfMemory = errors.New("out of device memory")
	// ErrStagingOverflow is reported when pending writes would exceed the
	// staging buffer capacity before a flush.
	ErrStagingOverflow = errors.New("staging buffer overflow")
	// ErrQueueClosed is reported when a command is begun or ended on a closed
	// async queue.
	ErrQueueClosed = errors.New("async queue closed")
)
