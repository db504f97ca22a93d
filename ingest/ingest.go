package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/remotefish2024/streamexec/pipeline"
	"github.com/remotefish2024/streamexec/storage"
)

type Config struct {
	// Consumer receives every chunk that reaches the end of the pipeline.
	Consumer storage.Consumer

	// Locks are the table locks each run must hold while writing. The caller
	// keeps its own reference; every run retains and releases one of its own.
	Locks []*storage.TableLock

	// Stages are the transforms applied to each chunk before the write.
	Stages []pipeline.Stage
}

// Ingestor runs insert pipelines: source, transform stages, storage sink.
type Ingestor struct {
	cfg Config
}

func NewIngestor(cfg Config) *Ingestor {
	return &Ingestor{cfg: cfg}
}

// Ingest pushes every unit src produces through the configured stages into
// the consumer and returns the number of rows written. The returned error
// aggregates every fault that occurred anywhere in the stream; rows written
// before a fault stay counted. Table locks are released when the run ends,
// on every path.
func (in *Ingestor) Ingest(ctx context.Context, src pipeline.Source) (int, error) {
	runID := uuid.New()
	counter := &countingConsumer{consumer: in.cfg.Consumer}

	sink := storage.NewSink(counter)
	defer sink.Close()
	for _, lock := range in.cfg.Locks {
		sink.AddTableLock(lock.Retain())
	}

	stages := make([]pipeline.Stage, 0, len(in.cfg.Stages)+1)
	stages = append(stages, in.cfg.Stages...)
	stages = append(stages, sink)

	if err := pipeline.New(stages...).Process(ctx, src, nil); err != nil {
		return counter.rows, fmt.Errorf("ingest %s: %w", runID, err)
	}

	return counter.rows, nil
}

// countingConsumer counts rows that were actually accepted by the wrapped
// consumer, forwarding its lifecycle hooks if it has any.
type countingConsumer struct {
	consumer storage.Consumer
	rows     int
}

func (c *countingConsumer) OnStart() error {
	if h, ok := c.consumer.(storage.StartHook); ok {
		return h.OnStart()
	}
	return nil
}

func (c *countingConsumer) Consume(chunk *pipeline.Chunk) error {
	if err := c.consumer.Consume(chunk); err != nil {
		return err
	}

	c.rows += chunk.NumRows
	return nil
}

func (c *countingConsumer) OnFinish() error {
	if h, ok := c.consumer.(storage.FinishHook); ok {
		return h.OnFinish()
	}
	return nil
}
