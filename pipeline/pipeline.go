package pipeline

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Pipeline is a linear chain of transform nodes connected by single-slot
// ports. It owns no threads: Process steps every node cooperatively on the
// calling goroutine, the way a multi-branch scheduler would interleave
// independent pipelines across its workers.
type Pipeline struct {
	nodes []*Transform
	head  *Port
	tail  *Port
}

// New connects the provided stages with freshly allocated ports, in order.
func New(stages ...Stage) *Pipeline {
	if len(stages) == 0 {
		panic("pipeline.New: at least one stage must be specified")
	}

	ports := make([]*Port, len(stages)+1)
	for i := 0; i < len(ports); i++ {
		ports[i] = NewPort()
	}

	nodes := make([]*Transform, len(stages))
	for i, stage := range stages {
		nodes[i] = NewTransform(ports[i], ports[i+1], stage)
	}

	return &Pipeline{
		nodes: nodes,
		head:  ports[0],
		tail:  ports[len(ports)-1],
	}
}

// Process feeds units from src through every stage and hands the chunks that
// reach the end to sink. Faults that reach the end are collected instead, in
// arrival order, and returned as the aggregated error once the run completes;
// a run with faults still processes every remaining unit. A stage setup
// failure aborts the run immediately and is returned alone, with no partial
// fault report.
//
// Cancelling ctx closes the tail port, the pipeline's cancellation signal,
// and the close cascades upstream one node per pass until every stage has
// finished; ctx.Err joins the aggregate.
func (p *Pipeline) Process(ctx context.Context, src Source, sink Sink) error {
	var (
		faults    *multierror.Error
		srcDone   bool
		cancelled bool
	)

	// A node transitioning between statuses counts as progress too: during a
	// cancellation cascade nodes finish one per pass without moving any unit.
	prev := make([]Status, len(p.nodes))
	for i := range prev {
		prev[i] = StatusReady
	}

	for {
		if !cancelled && ctx.Err() != nil {
			cancelled = true
			p.tail.Close()
		}

		progress := p.feed(ctx, src, &srcDone, cancelled)

		allFinished := true
		for i, node := range p.nodes {
			status, err := node.Prepare()
			if err != nil {
				return fmt.Errorf("pipeline stage %d: %w", i, err)
			}

			if status != prev[i] {
				prev[i] = status
				progress = true
			}

			switch status {
			case StatusReady:
				node.Work()
				progress = true
			case StatusFinished:
			default:
				allFinished = false
			}
		}

		for {
			unit, ok := p.tail.TryPop()
			if !ok {
				break
			}
			progress = true

			if fault := unit.Fault(); fault != nil {
				faults = multierror.Append(faults, *fault)
				continue
			}
			if sink == nil || unit.Chunk().Empty() {
				continue
			}
			if err := sink.Consume(ctx, unit.Chunk()); err != nil {
				faults = multierror.Append(faults, Fault{Kind: FaultTransform, Err: err})
			}
		}

		if allFinished && !p.tail.HasData() {
			break
		}
		if !progress {
			// Ports never block and every pass drains the tail, so a pass
			// that moved nothing while stages remain means a wiring bug.
			return ErrStalled
		}
	}

	if cancelled {
		faults = multierror.Append(faults, ctx.Err())
	}
	return faults.ErrorOrNil()
}

// feed moves at most one unit from the source into the head port per pass and
// closes the head once the source is exhausted. A source that terminates with
// an error contributes a trailing upstream fault first.
func (p *Pipeline) feed(ctx context.Context, src Source, srcDone *bool, cancelled bool) bool {
	if *srcDone || cancelled || p.head.Closed() || p.head.HasData() {
		return false
	}

	if src.Next(ctx) {
		return p.head.TryPush(src.Unit()) == nil
	}

	*srcDone = true
	if err := src.Error(); err != nil {
		_ = p.head.TryPush(FaultUnit(Fault{Kind: FaultUpstream, Err: err}))
	}
	p.head.Close()
	return true
}
