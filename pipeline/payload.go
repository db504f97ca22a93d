package pipeline

import "fmt"

// Column holds the values of a single named column for one batch of rows.
type Column struct {
	Name   string
	Values []interface{}
}

// Chunk is an immutable batch of rows flowing between pipeline stages. Once a
// chunk has been pushed into a port no stage mutates it in place; transforms
// produce a new chunk instead.
type Chunk struct {
	Columns []Column
	NumRows int
}

// NewChunk returns a chunk over the provided columns.
func NewChunk(numRows int, columns ...Column) *Chunk {
	return &Chunk{
		Columns: columns,
		NumRows: numRows,
	}
}

// Clone returns a deep copy of the chunk for consumers that must retain one
// past the point where ownership moves downstream.
func (c *Chunk) Clone() *Chunk {
	columns := make([]Column, len(c.Columns))
	for i, col := range c.Columns {
		values := make([]interface{}, len(col.Values))
		copy(values, col.Values)
		columns[i] = Column{Name: col.Name, Values: values}
	}

	return &Chunk{Columns: columns, NumRows: c.NumRows}
}

// Empty reports whether the chunk carries no rows.
func (c *Chunk) Empty() bool {
	return c == nil || c.NumRows == 0
}

type FaultKind uint8

const (
	// FaultUpstream marks a fault produced before this stage and forwarded as-is.
	FaultUpstream FaultKind = iota
	// FaultTransform marks a per-chunk transform or consume failure.
	FaultTransform
	// FaultFinish marks a failure raised while finalizing a stage.
	FaultFinish
)

func (k FaultKind) String() string {
	switch k {
	case FaultUpstream:
		return "upstream"
	case FaultTransform:
		return "transform"
	case FaultFinish:
		return "finish"
	}
	return "unknown"
}

// Fault is a captured processing failure traveling in-band as a stream
// element in place of the chunk that failed. It carries no partial data.
type Fault struct {
	Kind FaultKind
	Err  error
}

func (f Fault) Error() string {
	return fmt.Sprintf("%s fault: %v", f.Kind, f.Err)
}

func (f Fault) Unwrap() error {
	return f.Err
}

// DataUnit is the atomic element carried by a port: either a chunk or a
// fault. The order of data units on a port is significant and every stage
// preserves it.
type DataUnit struct {
	chunk *Chunk
	fault *Fault
}

// ChunkUnit wraps a chunk as a data unit.
func ChunkUnit(c *Chunk) DataUnit {
	return DataUnit{chunk: c}
}

// FaultUnit wraps a fault as a data unit.
func FaultUnit(f Fault) DataUnit {
	return DataUnit{fault: &f}
}

func (u DataUnit) Chunk() *Chunk {
	return u.chunk
}

func (u DataUnit) Fault() *Fault {
	return u.fault
}

func (u DataUnit) IsFault() bool {
	return u.fault != nil
}
