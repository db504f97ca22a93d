package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingStage counts hook invocations and can be told to fail any of them.
type recordingStage struct {
	startCalls  int
	finishCalls int
	transformed int

	startErr  error
	finishErr error
	failOn    map[int]error // transform call index -> failure
}

func (s *recordingStage) OnStart() error {
	s.startCalls++
	return s.startErr
}

func (s *recordingStage) Transform(c *Chunk) (*Chunk, error) {
	call := s.transformed
	s.transformed++

	if err := s.failOn[call]; err != nil {
		return nil, err
	}

	out := c.Clone()
	out.Columns = append(out.Columns, Column{Name: "seen", Values: []interface{}{call}})
	return out, nil
}

func (s *recordingStage) OnFinish() error {
	s.finishCalls++
	return s.finishErr
}

// driveTransform feeds the inputs through tr one scheduler pass at a time and
// collects everything that leaves the output port.
func driveTransform(t *testing.T, tr *Transform, inputs []DataUnit) []DataUnit {
	t.Helper()

	var (
		in   = tr.InputPort()
		out  = tr.OutputPort()
		got  []DataUnit
		next int
	)

	for pass := 0; pass < 4*len(inputs)+16; pass++ {
		if next < len(inputs) && in.TryPush(inputs[next]) == nil {
			next++
		}
		if next == len(inputs) && !in.Closed() {
			in.Close()
		}

		status, err := tr.Prepare()
		require.NoError(t, err)
		if status == StatusReady {
			tr.Work()
		}

		for {
			unit, ok := out.TryPop()
			if !ok {
				break
			}
			got = append(got, unit)
		}

		if status == StatusFinished {
			return got
		}
	}

	t.Fatal("transform never finished")
	return nil
}

func makeChunk(value int) *Chunk {
	return NewChunk(1, Column{Name: "v", Values: []interface{}{value}})
}

func TestTransform_OrderPreserved(t *testing.T) {
	t.Parallel()

	var inputs []DataUnit
	for i := 0; i < 5; i++ {
		inputs = append(inputs, ChunkUnit(makeChunk(i)))
	}

	stage := &recordingStage{}
	got := driveTransform(t, NewTransform(NewPort(), NewPort(), stage), inputs)

	require.Len(t, got, 5)
	for i, unit := range got {
		require.False(t, unit.IsFault(), "unit %d", i)
		assert.Equal(t, i, unit.Chunk().Columns[0].Values[0])
	}
	assert.Equal(t, 1, stage.startCalls)
	assert.Equal(t, 1, stage.finishCalls)
}

func TestTransform_FaultPassthrough(t *testing.T) {
	t.Parallel()

	upstream := Fault{Kind: FaultUpstream, Err: errors.New("decode failed")}
	inputs := []DataUnit{
		ChunkUnit(makeChunk(0)),
		FaultUnit(upstream),
		ChunkUnit(makeChunk(1)),
		FaultUnit(upstream),
	}

	got := driveTransform(t, NewTransform(NewPort(), NewPort(), &recordingStage{}), inputs)

	require.Len(t, got, 4)
	assert.False(t, got[0].IsFault())
	assert.True(t, got[1].IsFault())
	assert.False(t, got[2].IsFault())
	assert.True(t, got[3].IsFault())

	// Forwarded untouched.
	assert.Equal(t, upstream, *got[1].Fault())
}

func TestTransform_PerChunkFailures(t *testing.T) {
	t.Parallel()

	var inputs []DataUnit
	for i := 0; i < 6; i++ {
		inputs = append(inputs, ChunkUnit(makeChunk(i)))
	}

	stage := &recordingStage{failOn: map[int]error{
		2: fmt.Errorf("bad chunk 2"),
		5: fmt.Errorf("bad chunk 5"),
	}}
	got := driveTransform(t, NewTransform(NewPort(), NewPort(), stage), inputs)

	require.Len(t, got, 6)
	for i, unit := range got {
		if i == 2 || i == 5 {
			require.True(t, unit.IsFault(), "unit %d", i)
			assert.Equal(t, FaultTransform, unit.Fault().Kind)
			continue
		}
		require.False(t, unit.IsFault(), "unit %d", i)
		assert.Equal(t, i, unit.Chunk().Columns[0].Values[0])
	}
}

func TestTransform_HooksOnEmptyStream(t *testing.T) {
	t.Parallel()

	stage := &recordingStage{}
	got := driveTransform(t, NewTransform(NewPort(), NewPort(), stage), nil)

	assert.Empty(t, got)
	assert.Equal(t, 1, stage.startCalls)
	assert.Equal(t, 1, stage.finishCalls)
	assert.Zero(t, stage.transformed)
}

func TestTransform_OnStartFailureIsSynchronous(t *testing.T) {
	t.Parallel()

	boom := errors.New("no such table")
	stage := &recordingStage{startErr: boom}
	tr := NewTransform(NewPort(), NewPort(), stage)

	status, err := tr.Prepare()
	assert.Equal(t, StatusFinished, status)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))

	// Nothing was placed on the output port and input interest was dropped.
	assert.False(t, tr.OutputPort().HasData())
	assert.True(t, tr.InputPort().Closed())

	// Repeated polls stay terminal without invoking OnStart again.
	status, err = tr.Prepare()
	assert.Equal(t, StatusFinished, status)
	assert.NoError(t, err)
	assert.Equal(t, 1, stage.startCalls)
	assert.Zero(t, stage.finishCalls)
}

func TestTransform_OnFinishFailureTrailsAsFault(t *testing.T) {
	t.Parallel()

	stage := &recordingStage{finishErr: errors.New("flush failed")}
	tr := NewTransform(NewPort(), NewPort(), stage)

	got := driveTransform(t, tr, []DataUnit{ChunkUnit(makeChunk(0))})

	require.Len(t, got, 2)
	assert.False(t, got[0].IsFault())
	require.True(t, got[1].IsFault())
	assert.Equal(t, FaultFinish, got[1].Fault().Kind)
	assert.True(t, tr.OutputPort().Closed())
	assert.Equal(t, 1, stage.finishCalls)
}

func TestTransform_DownstreamCancel(t *testing.T) {
	t.Parallel()

	stage := &recordingStage{}
	tr := NewTransform(NewPort(), NewPort(), stage)

	// One chunk is buffered, a second sits unread in the input port.
	require.NoError(t, tr.InputPort().TryPush(ChunkUnit(makeChunk(0))))
	status, err := tr.Prepare()
	require.NoError(t, err)
	require.Equal(t, StatusReady, status)
	require.NoError(t, tr.InputPort().TryPush(ChunkUnit(makeChunk(1))))

	// Downstream walks away before Work ever runs.
	tr.OutputPort().Close()

	status, err = tr.Prepare()
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, status)
	assert.True(t, tr.InputPort().Closed())
	assert.Zero(t, stage.transformed)
	assert.Zero(t, stage.finishCalls, "onFinish is skipped once no output can be delivered")
}

func TestTransform_WaitStatuses(t *testing.T) {
	t.Parallel()

	tr := NewTransform(NewPort(), NewPort(), &recordingStage{})

	status, err := tr.Prepare()
	require.NoError(t, err)
	assert.Equal(t, StatusNeedData, status)

	require.NoError(t, tr.InputPort().TryPush(ChunkUnit(makeChunk(0))))
	status, err = tr.Prepare()
	require.NoError(t, err)
	require.Equal(t, StatusReady, status)
	tr.Work()

	// Output flushed into the port; a second chunk now has nowhere to go
	// until downstream pops.
	require.NoError(t, tr.InputPort().TryPush(ChunkUnit(makeChunk(1))))
	status, err = tr.Prepare()
	require.NoError(t, err)
	require.Equal(t, StatusReady, status)
	tr.Work()

	status, err = tr.Prepare()
	require.NoError(t, err)
	assert.Equal(t, StatusPortFull, status)

	_, ok := tr.OutputPort().TryPop()
	require.True(t, ok)
	status, err = tr.Prepare()
	require.NoError(t, err)
	assert.Equal(t, StatusNeedData, status)
}
