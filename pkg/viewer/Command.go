package viewer

import (
	"context"
	"sync"
)

/*
Command is an optimistic change. Apply is shown to the user right away;
Revert is its inverse, fixed when the command is built, and is applied if
the server rejects Send.
*/
type Command[S any] struct {
	Name   string
	Apply  func(state S) S
	Revert func(state S) S
	Send   func(ctx context.Context) (S, error)
}

/*
Store holds the local copy of a surface's state and renders every change.
*/
type Store[S any] struct {
	mu     sync.Mutex
	state  S
	render func(state S)
}

func NewStore[S any](initial S, render func(state S)) *Store[S] {
	if render == nil {
		render = func(S) {}
	}

	return &Store[S]{
		state:  initial,
		render: render,
	}
}

func (s *Store[S]) State() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

/*
Replace swaps in server state, e.g. from a poll, and renders it.
*/
func (s *Store[S]) Replace(state S) {
	s.set(func(S) S { return state })
}

/*
Run applies cmd locally, sends it, and then either adopts the server's
answer or reverts the local change.
*/
func (s *Store[S]) Run(ctx context.Context, cmd Command[S]) error {
	if cmd.Apply != nil {
		s.set(cmd.Apply)
	}

	confirmed, err := cmd.Send(ctx)

	if err != nil {
		if cmd.Revert != nil {
			s.set(cmd.Revert)
		}

		return err
	}

	s.Replace(confirmed)
	return nil
}

func (s *Store[S]) set(fn func(S) S) {
	s.mu.Lock()
	s.state = fn(s.state)
	state := s.state
	s.mu.Unlock()

	s.render(state)
}
