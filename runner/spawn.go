package runner

import (
	"context"
	"io"
	"os/exec"
	"sync"
)

// Process is a handle to one running subprocess.
//
// Stdout and Stderr deliver output chunks in the order the subprocess
// produced them on each stream, and both channels are closed before the
// exit code is delivered on Done. Done delivers exactly one value.
type Process interface {
	// WriteInput writes the given lines to the subprocess's standard input
	// and then closes it. It must be called at most once, before output is
	// consumed.
	WriteInput(lines []string) error
	Stdout() <-chan []byte
	Stderr() <-chan []byte
	Done() <-chan int
	// Kill forcibly terminates the subprocess. Subsequent calls are no-ops.
	Kill() error
}

// Spawner launches subprocesses. It is the minimal capability surface the
// runner requires from the operating system.
type Spawner interface {
	Spawn(ctx context.Context, command, workdir string) (Process, error)
}

// ExecSpawner implements Spawner using os/exec, running the command string
// through the system shell.
type ExecSpawner struct{}

// Spawn starts `sh -c command` with workdir as its working directory.
func (ExecSpawner) Spawn(ctx context.Context, command, workdir string) (Process, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command) //nolint:gosec // Running caller-provided commands is the purpose of this package
	cmd.Dir = workdir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &execProcess{
		cmd:    cmd,
		stdin:  stdin,
		stdout: make(chan []byte, chunkChannelDepth),
		stderr: make(chan []byte, chunkChannelDepth),
		done:   make(chan int, 1),
		quit:   make(chan struct{}),
	}

	p.pumps.Add(2)
	go p.pump(stdout, p.stdout)
	go p.pump(stderr, p.stderr)
	go p.wait()

	return p, nil
}

const (
	chunkSize         = 4096
	chunkChannelDepth = 64
)

type execProcess struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   chan []byte
	stderr   chan []byte
	done     chan int
	quit     chan struct{}
	pumps    sync.WaitGroup
	killOnce sync.Once
}

func (p *execProcess) WriteInput(lines []string) error {
	defer p.stdin.Close()
	for _, line := range lines {
		if _, err := io.WriteString(p.stdin, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func (p *execProcess) Stdout() <-chan []byte { return p.stdout }
func (p *execProcess) Stderr() <-chan []byte { return p.stderr }
func (p *execProcess) Done() <-chan int      { return p.done }

func (p *execProcess) Kill() error {
	var err error
	p.killOnce.Do(func() {
		close(p.quit)
		err = p.cmd.Process.Kill()
	})
	return err
}

// pump copies the stream into the channel in fixed-size chunks and closes
// the channel when the stream ends.
func (p *execProcess) pump(r io.Reader, out chan<- []byte) {
	defer p.pumps.Done()
	defer close(out)

	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case out <- chunk:
			case <-p.quit:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// wait delivers the exit code after both output streams have drained, as
// required by the Process contract.
func (p *execProcess) wait() {
	p.pumps.Wait()

	exitCode := 0
	if err := p.cmd.Wait(); err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			exitCode = exitError.ExitCode()
		} else {
			exitCode = -1
		}
	}
	p.done <- exitCode
}
