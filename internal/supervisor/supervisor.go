// Package supervisor keeps a fixed set of child processes running inside one
// container, restarting each after it exits.
package supervisor

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultKillAfter = 10 * time.Second

type Child struct {
	Name string
	Args []string // Args[0] is the binary
}

type Supervisor struct {
	children     []Child
	restartDelay time.Duration
	log          *logrus.Entry

	// KillAfter bounds how long Shutdown waits after SIGTERM.
	KillAfter time.Duration

	mu       sync.Mutex
	running  map[string]*exec.Cmd
	starts   map[string]int
	stop     chan struct{}
	stopping bool
	wg       sync.WaitGroup
}

func New(restartDelay time.Duration, log *logrus.Entry, children ...Child) *Supervisor {
	return &Supervisor{
		children:     children,
		restartDelay: restartDelay,
		log:          log,
		KillAfter:    defaultKillAfter,
		running:      map[string]*exec.Cmd{},
		starts:       map[string]int{},
		stop:         make(chan struct{}),
	}
}

// Start launches one restart loop per child. Loops end when ctx is cancelled
// or Shutdown is called.
func (s *Supervisor) Start(ctx context.Context) error {
	for _, c := range s.children {
		if len(c.Args) == 0 {
			return errors.New("supervisor: child " + c.Name + " has no command")
		}
	}
	for _, c := range s.children {
		s.wg.Add(1)
		go s.loop(ctx, c)
	}
	return nil
}

// Wait blocks until every restart loop has returned.
func (s *Supervisor) Wait() { s.wg.Wait() }

// Starts reports how many times the named child has been launched.
func (s *Supervisor) Starts(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts[name]
}

func (s *Supervisor) loop(ctx context.Context, c Child) {
	defer s.wg.Done()
	log := s.log.WithField("child", c.Name)

	for {
		cmd := exec.Command(c.Args[0], c.Args[1:]...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if !s.launch(c.Name, cmd) {
			return
		}
		log.WithField("args", c.Args).Info("child started")

		err := cmd.Wait()
		s.mu.Lock()
		delete(s.running, c.Name)
		stopping := s.stopping
		s.mu.Unlock()

		code := -1
		if cmd.ProcessState != nil {
			code = cmd.ProcessState.ExitCode()
		}
		if stopping {
			log.WithField("exit_code", code).Info("child stopped")
			return
		}
		log.WithError(err).WithFields(logrus.Fields{
			"exit_code":  code,
			"restart_in": s.restartDelay.String(),
		}).Warn("child exited")

		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-time.After(s.restartDelay):
		}
	}
}

// launch starts cmd unless shutdown has begun. A failed start is logged and
// counted; the loop retries after the usual delay.
func (s *Supervisor) launch(name string, cmd *exec.Cmd) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return false
	}
	s.starts[name]++
	if err := cmd.Start(); err != nil {
		s.log.WithError(err).WithField("child", name).Error("child failed to start")
		return true
	}
	s.running[name] = cmd
	return true
}

// Shutdown sends SIGTERM to every running child, waits up to KillAfter for
// the restart loops to finish and then kills whatever is left.
func Shutdown(s *Supervisor) {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return
	}
	s.stopping = true
	close(s.stop)
	procs := make([]*exec.Cmd, 0, len(s.running))
	for name, cmd := range s.running {
		s.log.WithField("child", name).Info("terminating child")
		procs = append(procs, cmd)
	}
	s.mu.Unlock()

	for _, cmd := range procs {
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.KillAfter):
		for _, cmd := range procs {
			_ = cmd.Process.Kill()
		}
		<-done
	}
}
