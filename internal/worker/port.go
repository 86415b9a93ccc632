package worker

import (
	"context"
	"sync"
)

// Port is a started execution context: requests go in with Post and every
// response is delivered to all current listeners.
type Port interface {
	Post(req Request) error
	Listen(fn func(Response)) (cancel func())
	Close() error
}

// Starter lazily creates the single execution context behind a Port.
type Starter interface {
	EnsureStarted(ctx context.Context) (Port, error)
}

// listeners is the fan-out both port flavors share.
type listeners struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(Response)
}

func (l *listeners) add(fn func(Response)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func(Response))
	}
	id := l.next
	l.next++
	l.fns[id] = fn
	return func() {
		l.mu.Lock()
		delete(l.fns, id)
		l.mu.Unlock()
	}
}

func (l *listeners) deliver(resp Response) {
	l.mu.Lock()
	fns := make([]func(Response), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn(resp)
	}
}
