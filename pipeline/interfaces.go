package pipeline

import "context"

// Status is what Prepare reports back to the scheduler driving a processor.
type Status uint8

const (
	// StatusNeedData means the processor is waiting for upstream input.
	StatusNeedData Status = iota
	// StatusPortFull means the processor has output buffered and is waiting
	// for downstream capacity.
	StatusPortFull
	// StatusReady means input is buffered and a Work call will process it.
	StatusReady
	// StatusFinished means the processor will never have work again.
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusNeedData:
		return "NeedData"
	case StatusPortFull:
		return "PortFull"
	case StatusReady:
		return "Ready"
	case StatusFinished:
		return "Finished"
	}
	return "unknown"
}

// Processor is the two-phase contract every dataflow node implements. An
// external scheduler repeatedly polls Prepare; when it reports StatusReady
// the scheduler invokes Work for exactly one processing step. Prepare and
// Work are never invoked concurrently with each other. Work must not block
// on I/O: any wait condition is expressed as a non-Ready status so the
// scheduler can run another node meanwhile.
//
// The error returned by Prepare carries setup failures only; everything
// stream-level travels through the ports as Fault units instead.
type Processor interface {
	Prepare() (Status, error)
	Work()
}

// Stage is implemented by the user-supplied logic of a transform node. These
// hooks are the only extension points; the surrounding state machine is not
// overridable.
//
// OnStart runs exactly once, strictly before the first unit is pulled from
// input. Its failure aborts the node synchronously and never appears on a
// port. Transform runs once per input chunk and may fail; the failure
// replaces that one chunk with a fault and the stream continues. OnFinish
// runs exactly once after input reports closed-and-empty; its failure is
// delivered as a trailing fault.
type Stage interface {
	OnStart() error
	Transform(*Chunk) (*Chunk, error)
	OnFinish() error
}

// TransformFunc adapts a plain function to a Stage with no-op lifecycle hooks.
type TransformFunc func(*Chunk) (*Chunk, error)

func (f TransformFunc) OnStart() error { return nil }

func (f TransformFunc) Transform(c *Chunk) (*Chunk, error) { return f(c) }

func (f TransformFunc) OnFinish() error { return nil }

// Source is implemented by the upstream collaborator feeding a pipeline. A
// source may emit faults of its own (for example from a malformed-input
// decoder); they pass through every stage unchanged.
type Source interface {
	Next(context.Context) bool
	Unit() DataUnit
	Error() error
}

// Sink is implemented by the terminal consumer of whatever survives the last
// stage.
type Sink interface {
	Consume(context.Context, *Chunk) error
}
