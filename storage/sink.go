package storage

import (
	"github.com/remotefish2024/streamexec/pipeline"
)

// Consumer is implemented by objects that persist row batches into a storage
// target. Consume performs the write for one chunk and produces no output of
// its own. A consumer that also implements StartHook or FinishHook gets the
// corresponding lifecycle call (a transactional writer begins on start and
// commits on finish).
type Consumer interface {
	Consume(*pipeline.Chunk) error
}

// StartHook is optionally implemented by consumers that must run setup
// strictly before the first write.
type StartHook interface {
	OnStart() error
}

// FinishHook is optionally implemented by consumers that must finalize after
// the last write.
type FinishHook interface {
	OnFinish() error
}

// Sink is the terminal write stage of a pipeline. It reuses the
// exception-keeping transform state machine by implementing pipeline.Stage:
// each incoming chunk is handed to the consumer and an empty chunk is
// forwarded, so the output side carries only faults and completion signaling,
// never data.
//
// A sink holds table locks for its whole operating lifetime. Locks are only
// ever appended; Close releases every one of them exactly once and must run
// on all paths, whether the stream completed, faulted or was cancelled.
type Sink struct {
	consumer Consumer
	locks    []*TableLock
	closed   bool
}

var _ pipeline.Stage = (*Sink)(nil)

func NewSink(consumer Consumer) *Sink {
	return &Sink{consumer: consumer}
}

// AddTableLock hands the sink one reference to keep until Close.
func (s *Sink) AddTableLock(lock *TableLock) {
	s.locks = append(s.locks, lock)
}

func (s *Sink) OnStart() error {
	if h, ok := s.consumer.(StartHook); ok {
		return h.OnStart()
	}
	return nil
}

func (s *Sink) Transform(chunk *pipeline.Chunk) (*pipeline.Chunk, error) {
	if err := s.consumer.Consume(chunk); err != nil {
		return nil, err
	}
	return pipeline.NewChunk(0), nil
}

func (s *Sink) OnFinish() error {
	if h, ok := s.consumer.(FinishHook); ok {
		return h.OnFinish()
	}
	return nil
}

// Close releases the sink's table locks. Idempotent.
func (s *Sink) Close() {
	if s.closed {
		return
	}
	s.closed = true

	for _, lock := range s.locks {
		lock.Release()
	}
	s.locks = nil
}

// nullConsumer accepts every chunk and performs no write.
type nullConsumer struct{}

func (nullConsumer) Consume(*pipeline.Chunk) error { return nil }

// NewNullSink returns a sink that accepts every chunk and persists nothing,
// for pipeline branches that must exist structurally but must not write.
func NewNullSink() *Sink {
	return NewSink(nullConsumer{})
}
