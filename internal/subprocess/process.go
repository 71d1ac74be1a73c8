// Package subprocess runs engine commands that talk JSON lines over stdio.
package subprocess

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/rs/zerolog"
)

// StopTimeout is how long Stop waits for the process to exit on its own
// after stdin is closed before killing it.
const StopTimeout = 5 * time.Second

// maxLine bounds one JSON line; audio payloads arrive base64 encoded.
const maxLine = 16 << 20

// ParseCommand splits a command line into argv using shell quoting rules
func ParseCommand(command string) ([]string, error) {
	args, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("command is empty")
	}
	return args, nil
}

// Resolve verifies that argv[0] can be executed
func Resolve(argv []string) error {
	if len(argv) == 0 {
		return errors.New("command is empty")
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return fmt.Errorf("resolve %s: %w", argv[0], err)
	}
	return nil
}

// Process is a running engine command with piped stdio
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	logger zerolog.Logger

	writeMu   sync.Mutex
	stdinOnce sync.Once
	waitOnce  sync.Once
	waitErr   error
	done      chan struct{}
}

// Start launches argv. Stderr lines are forwarded to logger at debug level.
func Start(argv []string, logger zerolog.Logger) (*Process, error) {
	if len(argv) == 0 {
		return nil, errors.New("command is empty")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", argv[0], err)
	}

	p := &Process{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		logger: logger.With().Str("command", argv[0]).Int("pid", cmd.Process.Pid).Logger(),
		done:   make(chan struct{}),
	}
	go p.forwardStderr(stderr)
	return p, nil
}

func (p *Process) forwardStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.logger.Debug().Str("stderr", scanner.Text()).Msg("Engine output")
	}
}

// Write sends raw bytes to the process stdin
func (p *Process) Write(data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_, err := p.stdin.Write(data)
	return err
}

// Stdout returns the process output stream. It has a single reader.
func (p *Process) Stdout() io.Reader {
	return p.stdout
}

// Lines calls fn for every non-empty stdout line until EOF, a read error, or
// an error from fn.
func (p *Process) Lines(fn func(line []byte) error) error {
	scanner := bufio.NewScanner(p.stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// CloseInput closes stdin, telling the engine no more input follows
func (p *Process) CloseInput() error {
	var err error
	p.stdinOnce.Do(func() {
		p.writeMu.Lock()
		err = p.stdin.Close()
		p.writeMu.Unlock()
	})
	return err
}

// Wait waits for the process to exit. The stdout reader calls it once output
// is drained; it may be called more than once.
func (p *Process) Wait() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.cmd.Wait()
		close(p.done)
	})
	<-p.done
	return p.waitErr
}

// Stop closes stdin and waits up to StopTimeout for the stdout reader to
// observe exit, then kills the process. Safe to call more than once.
func (p *Process) Stop() error {
	p.CloseInput()

	timer := time.NewTimer(StopTimeout)
	defer timer.Stop()

	select {
	case <-p.done:
	case <-timer.C:
		p.logger.Warn().Dur("timeout", StopTimeout).Msg("Engine did not exit, killing")
		p.cmd.Process.Kill()
		<-p.done
	}
	return exitError(p.waitErr)
}

// Kill terminates the process immediately
func (p *Process) Kill() {
	p.CloseInput()
	select {
	case <-p.done:
	default:
		p.cmd.Process.Kill()
	}
}

func exitError(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("engine exited: %w", err)
	}
	return err
}
