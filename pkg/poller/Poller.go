package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const DefaultInterval = 15 * time.Second

type Config[T any] struct {
	Name     string
	Interval time.Duration

	/*
	   Fetch loads the current state. Errors are logged and the loop keeps
	   going on the next tick.
	*/
	Fetch func(ctx context.Context) (T, error)

	/*
	   Signal reduces a state to the cheap value compared between polls.
	*/
	Signal func(state T) string

	OnChange func(state T)
}

/*
Poller re-fetches a piece of server state on an interval and calls OnChange
only when the change signal differs from the last one seen. Each surface
owns its own Poller; nothing is shared between instances.
*/
type Poller[T any] struct {
	config Config[T]

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	last      string
	hasLast   bool
	notifying int
}

func New[T any](config Config[T]) *Poller[T] {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}

	if config.OnChange == nil {
		config.OnChange = func(T) {}
	}

	return &Poller[T]{
		config: config,
	}
}

/*
Start polls once right away and then on every interval until Stop is called
or ctx is done. Starting a running poller does nothing.
*/
func (p *Poller[T]) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.cancel = cancel
	p.done = done

	go func() {
		defer close(done)

		ticker := time.NewTicker(p.config.Interval)
		defer ticker.Stop()

		p.Poll(ctx)

		for {
			select {
			case <-ctx.Done():
				return

			case <-ticker.C:
				p.Poll(ctx)
			}
		}
	}()

	slog.Debug("poller started", "name", p.config.Name, "interval", p.config.Interval)
}

/*
Stop cancels the loop and waits for it to exit. It is safe to call on a
poller that is not running. Called from inside OnChange it does not wait,
since the loop is the caller; the loop exits once the callback returns.
*/
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	fromCallback := p.notifying > 0
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()

	if !fromCallback {
		<-done
	}

	slog.Debug("poller stopped", "name", p.config.Name)
}

func (p *Poller[T]) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

/*
Poll runs one fetch and reports whether the signal changed. The first
successful fetch always counts as a change so the surface renders once.
*/
func (p *Poller[T]) Poll(ctx context.Context) bool {
	state, err := p.config.Fetch(ctx)

	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("poll failed, will retry next tick", "name", p.config.Name, "error", err)
		}

		return false
	}

	signal := p.config.Signal(state)

	p.mu.Lock()
	changed := !p.hasLast || signal != p.last
	p.last = signal
	p.hasLast = true
	p.mu.Unlock()

	if changed {
		p.notify(state)
	}

	return changed
}

func (p *Poller[T]) notify(state T) {
	p.mu.Lock()
	p.notifying++
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.notifying--
		p.mu.Unlock()
	}()

	p.config.OnChange(state)
}
