package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeClock implements Clock with scripted timestamps and a manually fired
// deadline channel.
type fakeClock struct {
	times   []time.Time
	idx     int
	afterCh chan time.Time
}

func (c *fakeClock) Now() time.Time {
	t := c.times[c.idx]
	if c.idx < len(c.times)-1 {
		c.idx++
	}
	return t
}

func (c *fakeClock) After(_ time.Duration) <-chan time.Time {
	return c.afterCh
}

// fakeProcess implements Process with pre-scripted behavior.
type fakeProcess struct {
	stdout chan []byte
	stderr chan []byte
	done   chan int

	inputsWritten []string
	inputGate     chan struct{} // closed once WriteInput has run
	writeHangs    bool          // WriteInput blocks until the process is killed
	writeErr      error
	killed        chan struct{}
	killCount     int32
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{
		stdout:    make(chan []byte),
		stderr:    make(chan []byte),
		done:      make(chan int, 1),
		inputGate: make(chan struct{}),
		killed:    make(chan struct{}),
	}
}

func (p *fakeProcess) WriteInput(lines []string) error {
	p.inputsWritten = append(p.inputsWritten, lines...)
	close(p.inputGate)
	if p.writeHangs {
		// A full pipe with no reader blocks the write until the kill
		// closes the pipe.
		<-p.killed
		return errors.New("write interrupted")
	}
	return p.writeErr
}

func (p *fakeProcess) Stdout() <-chan []byte { return p.stdout }
func (p *fakeProcess) Stderr() <-chan []byte { return p.stderr }
func (p *fakeProcess) Done() <-chan int      { return p.done }

func (p *fakeProcess) Kill() error {
	if atomic.AddInt32(&p.killCount, 1) == 1 {
		close(p.killed)
	}
	return nil
}

// fakeSpawner hands out a scripted process and counts invocations.
type fakeSpawner struct {
	proc       *fakeProcess
	spawnErr   error
	spawnCount int
}

func (s *fakeSpawner) Spawn(_ context.Context, _, _ string) (Process, error) {
	s.spawnCount++
	if s.spawnErr != nil {
		return nil, s.spawnErr
	}
	return s.proc, nil
}

func testClock() *fakeClock {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	return &fakeClock{
		times:   []time.Time{base, base.Add(1500 * time.Microsecond)},
		afterCh: make(chan time.Time, 1),
	}
}

func TestRunEmptyCommand(t *testing.T) {
	spawner := &fakeSpawner{proc: newFakeProcess()}
	r := New(zaptest.NewLogger(t), WithSpawner(spawner), WithClock(testClock()))

	_, err := r.Run(context.Background(), "   ", "./", time.Second, nil)
	require.ErrorIs(t, err, ErrMissingCommand)
	assert.Equal(t, 0, spawner.spawnCount)
}

func TestRunAggregatesInterleavedOutput(t *testing.T) {
	proc := newFakeProcess()
	spawner := &fakeSpawner{proc: proc}
	r := New(zaptest.NewLogger(t), WithSpawner(spawner), WithClock(testClock()))

	go func() {
		<-proc.inputGate
		// Unbuffered sends sequence the chunks deterministically across
		// both streams.
		proc.stdout <- []byte("out1 ")
		proc.stderr <- []byte("err1 ")
		proc.stdout <- []byte("out2")
		close(proc.stdout)
		close(proc.stderr)
		proc.done <- 0
	}()

	result, err := r.Run(context.Background(), "interp main.py", "./", time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, "out1 err1 out2", result.Output)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, 1, spawner.spawnCount)
}

func TestRunReportsExitCodeAndElapsed(t *testing.T) {
	proc := newFakeProcess()
	spawner := &fakeSpawner{proc: proc}
	r := New(zaptest.NewLogger(t), WithSpawner(spawner), WithClock(testClock()))

	go func() {
		<-proc.inputGate
		proc.stderr <- []byte("boom")
		close(proc.stdout)
		close(proc.stderr)
		proc.done <- 2
	}()

	result, err := r.Run(context.Background(), "cc main.c", "./", time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.ExitCode)
	assert.Equal(t, "boom", result.Output)
	assert.Equal(t, 1500*time.Microsecond, result.Elapsed)
}

func TestRunWritesInputsBeforeReadingOutput(t *testing.T) {
	proc := newFakeProcess()
	spawner := &fakeSpawner{proc: proc}
	r := New(zaptest.NewLogger(t), WithSpawner(spawner), WithClock(testClock()))

	go func() {
		// Output is withheld until inputs have been written; the run would
		// deadlock if the runner read output first.
		<-proc.inputGate
		proc.stdout <- []byte("11")
		close(proc.stdout)
		close(proc.stderr)
		proc.done <- 0
	}()

	result, err := r.Run(context.Background(), "interp main.py", "./", time.Second, []string{"5", "6"})
	require.NoError(t, err)
	assert.Equal(t, []string{"5", "6"}, proc.inputsWritten)
	assert.Equal(t, "11", result.Output)
}

func TestRunTimeoutKillsProcessOnce(t *testing.T) {
	proc := newFakeProcess()
	spawner := &fakeSpawner{proc: proc}
	clock := testClock()
	r := New(zaptest.NewLogger(t), WithSpawner(spawner), WithClock(clock))

	// The process never produces output and never terminates.
	clock.afterCh <- time.Now()

	_, err := r.Run(context.Background(), "sleep forever", "./", 100*time.Millisecond, nil)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, int32(1), atomic.LoadInt32(&proc.killCount))
}

func TestRunTimeoutWhileStdinWriteBlocked(t *testing.T) {
	proc := newFakeProcess()
	proc.writeHangs = true
	spawner := &fakeSpawner{proc: proc}
	clock := testClock()
	r := New(zaptest.NewLogger(t), WithSpawner(spawner), WithClock(clock))

	// The process never reads stdin, so the write blocks; the deadline
	// must still fire and kill it.
	clock.afterCh <- time.Now()

	_, err := r.Run(context.Background(), "sleep forever", "./", 100*time.Millisecond, []string{"5"})
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, int32(1), atomic.LoadInt32(&proc.killCount))
}

func TestRunTimeoutAfterStreamsClose(t *testing.T) {
	proc := newFakeProcess()
	spawner := &fakeSpawner{proc: proc}
	clock := testClock()
	r := New(zaptest.NewLogger(t), WithSpawner(spawner), WithClock(clock))

	go func() {
		<-proc.inputGate
		close(proc.stdout)
		close(proc.stderr)
		// Never delivers an exit code; the deadline fires instead.
		clock.afterCh <- time.Now()
	}()

	_, err := r.Run(context.Background(), "hang", "./", 100*time.Millisecond, nil)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, int32(1), atomic.LoadInt32(&proc.killCount))
}

func TestRunSpawnErrorPropagates(t *testing.T) {
	spawnErr := errors.New("executable not found")
	spawner := &fakeSpawner{spawnErr: spawnErr}
	r := New(zaptest.NewLogger(t), WithSpawner(spawner), WithClock(testClock()))

	_, err := r.Run(context.Background(), "nosuch", "./", time.Second, nil)
	require.ErrorIs(t, err, spawnErr)
}

func TestRunWriteInputErrorKillsProcess(t *testing.T) {
	proc := newFakeProcess()
	proc.writeErr = errors.New("broken pipe")
	spawner := &fakeSpawner{proc: proc}
	r := New(zaptest.NewLogger(t), WithSpawner(spawner), WithClock(testClock()))

	_, err := r.Run(context.Background(), "interp main.py", "./", time.Second, []string{"5"})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&proc.killCount))
}
