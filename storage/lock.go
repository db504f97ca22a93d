package storage

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// TableLock is a shared capability guaranteeing that a table's metadata and
// existence do not change for as long as any holder keeps it. Handles are
// reference counted: the lock-acquisition collaborator hands out the first
// reference, every additional holder takes one with Retain, and the
// underlying lock is released exactly once, when the last reference is
// dropped.
type TableLock struct {
	id      uuid.UUID
	table   string
	refs    int32
	release func()
}

// AcquireTableLock wraps an already-acquired lock on table. The release
// callback fires when the last holder lets go; it may be nil.
func AcquireTableLock(table string, release func()) *TableLock {
	return &TableLock{
		id:      uuid.New(),
		table:   table,
		refs:    1,
		release: release,
	}
}

// Retain takes an additional reference for a new holder.
func (l *TableLock) Retain() *TableLock {
	atomic.AddInt32(&l.refs, 1)
	return l
}

// Release drops one reference and fires the release callback when none
// remain. Each holder must call it exactly once.
func (l *TableLock) Release() {
	if atomic.AddInt32(&l.refs, -1) == 0 && l.release != nil {
		l.release()
	}
}

// Table returns the name of the locked table.
func (l *TableLock) Table() string {
	return l.table
}

func (l *TableLock) String() string {
	return fmt.Sprintf("lock %s on %q", l.id, l.table)
}
