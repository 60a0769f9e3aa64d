package station

import (
	"context"
	"sync"

	"pulsefm/logger"
)

type taskHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor keeps at most one live instance per named background task.
// Starting a name that is already running cancels the old instance and
// waits for it to finish before the replacement starts.
type Supervisor struct {
	mu    sync.Mutex
	tasks map[string]*taskHandle
}

func NewSupervisor() *Supervisor {
	return &Supervisor{tasks: make(map[string]*taskHandle)}
}

// Run starts work under name, replacing any previous instance. The work
// func must return promptly once its context is cancelled.
func (s *Supervisor) Run(ctx context.Context, name string, work func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.tasks[name]; ok {
		old.cancel()
		<-old.done
		logger.Debug("replaced background task", logger.String("task", name))
	}

	taskCtx, cancel := context.WithCancel(ctx)
	handle := &taskHandle{cancel: cancel, done: make(chan struct{})}
	s.tasks[name] = handle

	go func() {
		defer close(handle.done)
		defer cancel()
		work(taskCtx)
	}()
}

// Stop cancels the named task and waits for it to finish. Unknown names
// are a no-op.
func (s *Supervisor) Stop(name string) {
	s.mu.Lock()
	handle, ok := s.tasks[name]
	if ok {
		delete(s.tasks, name)
	}
	s.mu.Unlock()

	if ok {
		handle.cancel()
		<-handle.done
	}
}

// StopAll cancels every task and waits for all of them, for shutdown.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	handles := make([]*taskHandle, 0, len(s.tasks))
	for name, handle := range s.tasks {
		handles = append(handles, handle)
		delete(s.tasks, name)
	}
	s.mu.Unlock()

	for _, handle := range handles {
		handle.cancel()
		<-handle.done
	}
}

// Running reports whether a task is currently registered under name.
func (s *Supervisor) Running(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	handle, ok := s.tasks[name]
	if !ok {
		return false
	}
	select {
	case <-handle.done:
		return false
	default:
		return true
	}
}
