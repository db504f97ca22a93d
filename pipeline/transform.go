package pipeline

import "fmt"

type nodeState uint8

const (
	stateNotStarted nodeState = iota
	stateStarted
	stateDraining
	stateFinishing
	stateFinished
)

// Transform is a one-input/one-output node that runs a Stage with much care
// about failures.
//
// A fault popped from input is pushed on to output untouched. A chunk is
// handed to the stage's Transform; if that fails, the chunk is replaced by a
// fault built from the failure and the stream continues with the next unit.
// Any number of faults may travel a stream and their order relative to the
// surrounding chunks is preserved end to end. The node buffers at most one
// pending input chunk and one pending output unit.
//
// OnStart failures are returned from Prepare directly, before any data has
// moved; OnFinish failures become a trailing fault, delivered before the
// output port closes. Downstream closing the output port is the cancellation
// signal: the node stops pulling input and finishes on its next Prepare
// without running Transform again. OnFinish is skipped on that path, since a
// teardown fault would have no remaining consumer; cleanup that must run on
// every path belongs to the owner's Close, not to OnFinish.
type Transform struct {
	input  *Port
	output *Port
	stage  Stage

	state      nodeState
	pendingIn  *Chunk
	pendingOut *DataUnit
}

var _ Processor = (*Transform)(nil)

func NewTransform(input, output *Port, stage Stage) *Transform {
	return &Transform{
		input:  input,
		output: output,
		stage:  stage,
	}
}

func (t *Transform) InputPort() *Port { return t.input }

func (t *Transform) OutputPort() *Port { return t.output }

// Prepare inspects port readiness and advances the lifecycle. It performs no
// chunk processing itself; StatusReady asks the scheduler to invoke Work for
// exactly one buffered chunk.
func (t *Transform) Prepare() (Status, error) {
	if t.state == stateFinished {
		return StatusFinished, nil
	}

	// Downstream closed its side: stop pulling, never transform again.
	if t.output.Closed() {
		t.input.Close()
		t.pendingIn = nil
		t.pendingOut = nil
		t.state = stateFinished
		return StatusFinished, nil
	}

	if t.state == stateNotStarted {
		if err := t.stage.OnStart(); err != nil {
			t.input.Close()
			t.state = stateFinished
			return StatusFinished, fmt.Errorf("on start: %w", err)
		}
		t.state = stateStarted
	}

	for {
		// Draining takes priority over pulling more input, which bounds
		// buffered memory to a single unit.
		if t.pendingOut != nil {
			if err := t.output.TryPush(*t.pendingOut); err != nil {
				return StatusPortFull, nil
			}
			t.pendingOut = nil
		}

		if t.state == stateFinishing {
			t.output.Close()
			t.state = stateFinished
			return StatusFinished, nil
		}

		if unit, ok := t.input.TryPop(); ok {
			t.state = stateDraining
			if unit.IsFault() {
				// Needs no transformation; forward it in place.
				t.pendingOut = &unit
				continue
			}

			t.pendingIn = unit.Chunk()
			return StatusReady, nil
		}

		if t.input.Closed() {
			// Upstream exhausted and every produced unit flushed.
			if err := t.stage.OnFinish(); err != nil {
				unit := FaultUnit(Fault{Kind: FaultFinish, Err: err})
				t.pendingOut = &unit
			}
			t.state = stateFinishing
			continue
		}

		return StatusNeedData, nil
	}
}

// Work transforms the one buffered input chunk. A failure discards whatever
// the stage produced and buffers a fault in its place; processing resumes
// with the next unit.
func (t *Transform) Work() {
	chunk := t.pendingIn
	t.pendingIn = nil

	out, err := t.stage.Transform(chunk)
	if err != nil {
		unit := FaultUnit(Fault{Kind: FaultTransform, Err: err})
		t.pendingOut = &unit
		return
	}

	unit := ChunkUnit(out)
	t.pendingOut = &unit
}
