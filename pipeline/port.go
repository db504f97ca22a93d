package pipeline

import "sync"

// Port is a one-directional, single-producer/single-consumer link between two
// adjacent stages. It owns a single-slot buffer: a push succeeds only into an
// empty slot and a pop only from an occupied one, so backpressure is observable
// at the port boundary instead of accumulating inside a stage. Ports never
// block; absence of data or capacity is reported as a status so the scheduler
// decides what to run next.
//
// The two endpoints may be stepped from different scheduler threads, hence the
// mutex around the slot.
type Port struct {
	mu     sync.Mutex
	unit   DataUnit
	full   bool
	closed bool
}

func NewPort() *Port {
	return new(Port)
}

// TryPush places a unit into the slot. It fails with ErrPortClosed once the
// reader side closed the port and with ErrPortBusy while the previous unit
// has not been popped yet.
func (p *Port) TryPush(unit DataUnit) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}
	if p.full {
		return ErrPortBusy
	}

	p.unit = unit
	p.full = true
	return nil
}

// TryPop removes and returns the buffered unit, if any.
func (p *Port) TryPop() (DataUnit, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.full {
		return DataUnit{}, false
	}

	unit := p.unit
	p.unit = DataUnit{}
	p.full = false
	return unit, true
}

// HasData reports whether a unit is buffered without consuming it.
func (p *Port) HasData() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.full
}

// Close marks the port so that every further TryPush fails permanently.
// A unit already buffered stays poppable. Close is idempotent; either
// endpoint may call it, the reader side doing so is the cancellation signal.
func (p *Port) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// Closed reports whether the port was closed.
func (p *Port) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
