package main

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// SafeExit runs registered cleanups when the process is interrupted.
type SafeExit struct {
	funcs  map[int]func()
	nextID int
	mu     sync.Mutex
	exitFn func(code int)
}

func NewSafeExit() *SafeExit {
	return &SafeExit{
		funcs:  make(map[int]func()),
		exitFn: os.Exit,
	}
}

// Register adds f and returns a handle for Unregister. A nil receiver is a no-op.
func (s *SafeExit) Register(f func()) int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.funcs[s.nextID] = f
	return s.nextID
}

func (s *SafeExit) Unregister(id int) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.funcs, id)
}

// cleanup runs the pending funcs in registration order.
func (s *SafeExit) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := 1; id <= s.nextID; id++ {
		if f, ok := s.funcs[id]; ok {
			f()
			delete(s.funcs, id)
		}
	}
}

func (s *SafeExit) exit() {
	s.cleanup()
	s.exitFn(1)
}

func (s *SafeExit) ListenSignal() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	for sig := range sigs {
		switch sig {
		case syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
			log.Warnf("收到系统信号 %v, 正在清理未完成的下载", sig)
			s.exit()
		}
	}
}
