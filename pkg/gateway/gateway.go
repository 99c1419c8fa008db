// Package gateway owns the lifecycle of a single backing-store handle. Repositories
// receive a Gateway and ask it for the live handle on every operation, so a store
// that was down at startup can come back without restarting the process.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var ErrUnavailable = errors.New("persistence unavailable")

// UnavailableError reports a failed attempt to reach the store. It matches ErrUnavailable.
type UnavailableError struct {
	Store string
	Err   error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Store, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

// FailurePolicy decides what the host does when the store cannot be reached at startup.
type FailurePolicy string

const (
	PolicyExit    FailurePolicy = "exit"
	PolicyDegrade FailurePolicy = "degrade"
)

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch p := FailurePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyExit, nil
	case PolicyExit, PolicyDegrade:
		return p, nil
	default:
		return "", fmt.Errorf("invalid failure policy %q: want exit or degrade", s)
	}
}

type (
	DialFunc[T any]  func(ctx context.Context) (T, error)
	CloseFunc[T any] func(ctx context.Context, conn T) error
)

type Gateway[T any] struct {
	name  string
	dial  DialFunc[T]
	close CloseFunc[T]

	mu        sync.Mutex
	conn      T
	connected bool
}

func New[T any](name string, dial DialFunc[T], closeFn CloseFunc[T]) *Gateway[T] {
	if dial == nil {
		panic("gateway: dial func is nil")
	}
	return &Gateway[T]{name: name, dial: dial, close: closeFn}
}

// Connected returns a gateway that already holds conn. Tests use it to hand a
// container-backed handle to repositories.
func Connected[T any](name string, conn T, closeFn CloseFunc[T]) *Gateway[T] {
	g := New(name, func(context.Context) (T, error) { return conn, nil }, closeFn)
	g.conn = conn
	g.connected = true
	return g
}

func (g *Gateway[T]) Name() string {
	return g.name
}

// Connect returns the live handle, dialing first if there is none. Concurrent
// callers wait for the same dial, so at most one handle exists at a time.
func (g *Gateway[T]) Connect(ctx context.Context) (T, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.connected {
		return g.conn, nil
	}

	conn, err := g.dial(ctx)
	if err != nil {
		var zero T
		return zero, &UnavailableError{Store: g.name, Err: err}
	}

	g.conn = conn
	g.connected = true
	return conn, nil
}

func (g *Gateway[T]) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected
}

// Close releases the handle. A closed gateway dials again on the next Connect.
func (g *Gateway[T]) Close(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.connected {
		return nil
	}

	conn := g.conn
	var zero T
	g.conn = zero
	g.connected = false

	if g.close == nil {
		return nil
	}
	if err := g.close(ctx, conn); err != nil {
		return fmt.Errorf("close %s: %w", g.name, err)
	}
	return nil
}
