package pipeline

import "errors"

var (
	// ErrPortClosed is returned when pushing into a port whose reader side
	// signalled that no further units will be accepted
	ErrPortClosed = errors.New("port closed")

	// ErrPortBusy is returned when pushing into a port whose slot is still
	// occupied. It is a scheduling signal, not a failure: retry after the
	// consumer pops the pending unit
	ErrPortBusy = errors.New("port busy")

	// ErrStalled is returned when a pipeline run can make no further
	// progress yet not every stage has finished
	ErrStalled = errors.New("pipeline stalled")
)
