package viewer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

var (
	ErrUnknownAction   = errors.New("unknown action")
	ErrDuplicateAction = errors.New("action already registered")
	ErrMissingArgument = errors.New("missing argument")
)

/*
Args carries the values a rendered control attaches to an action, the way
data attributes would.
*/
type Args map[string]string

func (a Args) Uint(name string) (uint, error) {
	raw, ok := a[name]
	if !ok || raw == "" {
		return 0, fmt.Errorf("%w: %s", ErrMissingArgument, name)
	}

	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s '%s': %w", name, raw, err)
	}

	return uint(v), nil
}

func (a Args) String(name string) string {
	return a[name]
}

type Handler func(ctx context.Context, args Args) error

/*
Actions is the action surface handed to the render layer. Controls refer to
actions by name; nothing is registered globally.
*/
type Actions struct {
	handlers map[string]Handler
}

func NewActions() *Actions {
	return &Actions{
		handlers: map[string]Handler{},
	}
}

func (a *Actions) Register(name string, handler Handler) error {
	if _, ok := a.handlers[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAction, name)
	}

	a.handlers[name] = handler
	return nil
}

func (a *Actions) Dispatch(ctx context.Context, name string, args Args) error {
	handler, ok := a.handlers[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}

	return handler(ctx, args)
}

func (a *Actions) Names() []string {
	result := make([]string, 0, len(a.handlers))

	for name := range a.handlers {
		result = append(result, name)
	}

	sort.Strings(result)
	return result
}
