package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapio"
)

const (
	readChunkSize = 4096
	reapTimeout   = time.Second
	waitDelay     = 2 * time.Second
)

type SessionState uint8

const (
	SessionNotStarted SessionState = iota
	SessionRunning
	SessionCompleted
	SessionFailed
)

func (s SessionState) String() string {
	switch s {
	case SessionRunning:
		return "running"
	case SessionCompleted:
		return "completed"
	case SessionFailed:
		return "failed"
	default:
		return "not_started"
	}
}

// Session is one engine process asked for one move. It owns the process
// and both pipes; the result is produced exactly once.
type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	fen    string
	policy Policy
	logger *zap.Logger

	runCtx  context.Context
	timeout context.Context
	cancel  context.CancelFunc
	stop    context.CancelFunc

	mu        sync.Mutex
	state     SessionState
	abandoned bool
	decision  Decision
	err       error
	done      chan struct{}
}

// Start launches the engine at path and begins searching fen in the
// background. The returned error is always a *Error of KindSpawnFailure.
func Start(ctx context.Context, path string, fen string, policy Policy, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := policy.Validate(); err != nil {
		return nil, newError(KindSpawnFailure, fmt.Errorf("invalid policy: %w", err))
	}

	runCtx, stop := context.WithCancel(ctx)
	timeoutCtx, cancel := context.WithTimeout(runCtx, policy.Deadline())

	cmd := exec.CommandContext(timeoutCtx, path)
	cmd.WaitDelay = waitDelay
	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		stop()
		return nil, newError(KindSpawnFailure, fmt.Errorf("create stdin pipe: %w", err))
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		cancel()
		stop()
		return nil, newError(KindSpawnFailure, fmt.Errorf("create stdout pipe: %w", err))
	}
	stderr := &zapio.Writer{Log: logger.With(zap.String("stream", "engine_stderr")), Level: zap.DebugLevel}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		cancel()
		stop()
		return nil, newError(KindSpawnFailure, fmt.Errorf("start engine: %w", err))
	}

	s := &Session{
		cmd:     cmd,
		stdin:   stdin,
		stdout:  stdout,
		fen:     fen,
		policy:  policy,
		logger:  logger.With(zap.Int("engine_pid", cmd.Process.Pid)),
		runCtx:  runCtx,
		timeout: timeoutCtx,
		cancel:  cancel,
		stop:    stop,
		state:   SessionRunning,
		done:    make(chan struct{}),
	}
	s.logger.Debug("engine_session_start", zap.String("path", path), zap.String("fen", fen))

	go func() {
		defer stderr.Close()
		s.run()
	}()
	return s, nil
}

// Done is closed once the session has a result.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session finishes and returns its decision.
func (s *Session) Wait() (Decision, error) {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decision, s.err
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cancel abandons the session: the process is killed, pipes are closed
// and no decision is delivered.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.state != SessionRunning {
		s.mu.Unlock()
		return
	}
	s.abandoned = true
	s.mu.Unlock()
	s.stop()
}

func (s *Session) run() {
	decision, err := s.search()
	s.shutdown()

	s.mu.Lock()
	if s.abandoned {
		decision, err = Decision{}, newError(KindCanceled, context.Canceled)
	}
	s.decision = decision
	s.err = err
	if err != nil {
		s.state = SessionFailed
	} else {
		s.state = SessionCompleted
	}
	s.mu.Unlock()
	close(s.done)

	if err != nil {
		s.logger.Debug("engine_session_failed", zap.Stringer("kind", KindOf(err)), zap.Error(err))
		return
	}
	s.logger.Debug("engine_session_done",
		zap.String("bestmove", decision.Move.String()),
		zap.Int("pv_len", len(decision.PV)),
	)
}

func (s *Session) search() (Decision, error) {
	w := bufio.NewWriter(s.stdin)
	if _, err := w.WriteString(StartupScript(s.fen, s.policy)); err != nil {
		return Decision{}, s.classifyStreamError(fmt.Errorf("write commands: %w", err))
	}
	if err := w.Flush(); err != nil {
		return Decision{}, s.classifyStreamError(fmt.Errorf("flush commands: %w", err))
	}

	acc := NewAccumulator()
	acc.OnLine = func(line string) {
		if ce := s.logger.Check(zap.DebugLevel, "engine_line"); ce != nil {
			ce.Write(zap.String("line", line))
		}
	}
	buf := make([]byte, readChunkSize)
	for !acc.Done() {
		n, err := s.stdout.Read(buf)
		if n > 0 {
			acc.Feed(buf[:n])
			continue
		}
		if err == nil {
			err = io.EOF
		}
		return Decision{}, s.classifyStreamError(err)
	}
	return acc.Decision()
}

// classifyStreamError decides why the output stream ended early.
func (s *Session) classifyStreamError(err error) error {
	switch {
	case s.isAbandoned():
		return newError(KindCanceled, context.Canceled)
	case errors.Is(s.timeout.Err(), context.DeadlineExceeded) && s.runCtx.Err() == nil:
		return newError(KindEngineTimeout, fmt.Errorf("no bestmove within %s", s.policy.Deadline()))
	case s.runCtx.Err() != nil:
		return newError(KindCanceled, s.runCtx.Err())
	default:
		return newError(KindStreamClosedPrematurely, err)
	}
}

func (s *Session) isAbandoned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abandoned
}

// shutdown asks the engine to quit and reaps it, killing it if it lingers.
func (s *Session) shutdown() {
	_, _ = io.WriteString(s.stdin, "quit\n")
	_ = s.stdin.Close()

	waitCh := make(chan error, 1)
	go func() { waitCh <- s.cmd.Wait() }()
	select {
	case <-waitCh:
	case <-time.After(reapTimeout):
		_ = s.cmd.Process.Kill()
		<-waitCh
	}
	s.cancel()
	s.stop()
}
