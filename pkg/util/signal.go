package util

import (
	"sync"
)

type SigHandler func(sender any, params ...any)

// Signals 进程内的同步信号分发器
type Signals struct {
	mu       sync.RWMutex
	handlers map[string][]SigHandler
}

var defaultSignals = NewSignals()

// Sig 返回进程级默认信号分发器
func Sig() *Signals {
	return defaultSignals
}

func NewSignals() *Signals {
	return &Signals{handlers: make(map[string][]SigHandler)}
}

func (s *Signals) Connect(event string, handler SigHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = append(s.handlers[event], handler)
}

// Emit 按注册顺序同步调用处理函数
func (s *Signals) Emit(event string, sender any, params ...any) {
	s.mu.RLock()
	handlers := make([]SigHandler, len(s.handlers[event]))
	copy(handlers, s.handlers[event])
	s.mu.RUnlock()

	for _, h := range handlers {
		h(sender, params...)
	}
}

func (s *Signals) Clear(events ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(events) == 0 {
		s.handlers = make(map[string][]SigHandler)
		return
	}
	for _, e := range events {
		delete(s.handlers, e)
	}
}
