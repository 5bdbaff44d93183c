// Package optimistic holds client state that is mutated locally before the
// backend confirms, and rolled back to authoritative state when it doesn't.
//
// The flow for every mutation is the same:
//
//  1. snapshot the current value and apply the local change
//  2. call the backend
//  3. on success adopt the authoritative value from the response, or
//     refetch when the response only acknowledged the change
//  4. on failure replace local state with a fresh authoritative fetch,
//     falling back to the snapshot when that fetch fails too
//
// A Reset while a mutation is in flight wins: the mutation's late writes,
// including a rollback to its snapshot, are discarded.
//
// Locks are never held across a backend call.
package optimistic

import (
	"context"
	"log/slog"
	"sync"
)

// Cell is a mutex-guarded value. Values handed out are cloned so callers
// can't mutate state they don't own.
type Cell[T any] struct {
	mu    sync.Mutex
	v     T
	gen   uint64
	clone func(T) T
}

// NewCell creates a cell holding initial. clone may be nil for value types
// without shared backing storage.
func NewCell[T any](initial T, clone func(T) T) *Cell[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &Cell[T]{v: initial, clone: clone}
}

// Load returns a copy of the current value.
func (c *Cell[T]) Load() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clone(c.v)
}

// Store replaces the value.
func (c *Cell[T]) Store(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v = c.clone(v)
}

// Update applies fn under the lock and returns the value as it was before.
func (c *Cell[T]) Update(fn func(T) T) (prev T) {
	prev, _ = c.update(fn)
	return prev
}

func (c *Cell[T]) update(fn func(T) T) (prev T, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev = c.clone(c.v)
	c.v = fn(c.clone(c.v))
	return prev, c.gen
}

// Snapshot returns a copy of the value and the current generation, for a
// later StoreIf.
func (c *Cell[T]) Snapshot() (T, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clone(c.v), c.gen
}

// Generation counts Resets.
func (c *Cell[T]) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// StoreIf replaces the value only if no Reset happened since gen was read.
func (c *Cell[T]) StoreIf(gen uint64, v T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.v = c.clone(v)
	return true
}

// Reset replaces the value and starts a new generation, so writes prepared
// against the old one are dropped.
func (c *Cell[T]) Reset(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v = c.clone(v)
	c.gen++
}

// Fetch returns authoritative state. ok is false when the backend answered
// without a usable body.
type Fetch[T any] func(ctx context.Context) (v T, ok bool, err error)

// Mutation describes one optimistic change.
type Mutation[T any] struct {
	// Name is used in log lines.
	Name string

	// Apply is the local change. Nil means no optimistic change.
	Apply func(T) T

	// Remote performs the backend call. ok=false means the backend
	// acknowledged without returning the new state.
	Remote Fetch[T]

	// Refetch loads authoritative state for rollback and partial acks.
	Refetch Fetch[T]
}

// Run executes m against cell and returns the value the cell settled on.
// On failure the original Remote error is returned after rollback.
func Run[T any](ctx context.Context, cell *Cell[T], m Mutation[T], logger *slog.Logger) (T, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		snapshot T
		gen      uint64
	)
	if m.Apply != nil {
		snapshot, gen = cell.update(m.Apply)
	} else {
		snapshot, gen = cell.Snapshot()
	}

	v, ok, err := m.Remote(ctx)
	if err != nil {
		rollback(ctx, cell, gen, m, snapshot, logger)
		return cell.Load(), err
	}

	if ok {
		commit(cell, gen, v, m.Name, logger)
		return cell.Load(), nil
	}

	// Acknowledged without a body: prefer the server's view, but never
	// regress past the optimistic state when the server has nothing to say.
	if m.Refetch != nil {
		fresh, fok, ferr := m.Refetch(ctx)
		switch {
		case ferr != nil:
			logger.Warn("refetch after partial response failed, keeping local state",
				slog.String("mutation", m.Name),
				slog.String("error", ferr.Error()),
			)
		case fok:
			commit(cell, gen, fresh, m.Name, logger)
		default:
			logger.Debug("refetch after partial response returned no body",
				slog.String("mutation", m.Name),
			)
		}
	}
	return cell.Load(), nil
}

func commit[T any](cell *Cell[T], gen uint64, v T, name string, logger *slog.Logger) {
	if !cell.StoreIf(gen, v) {
		logger.Debug("state reset during mutation, result discarded", slog.String("mutation", name))
	}
}

func rollback[T any](ctx context.Context, cell *Cell[T], gen uint64, m Mutation[T], snapshot T, logger *slog.Logger) {
	if m.Refetch != nil {
		fresh, ok, err := m.Refetch(ctx)
		if err == nil && ok {
			commit(cell, gen, fresh, m.Name, logger)
			return
		}
		if err != nil {
			logger.Warn("rollback refetch failed, restoring snapshot",
				slog.String("mutation", m.Name),
				slog.String("error", err.Error()),
			)
		}
	}
	commit(cell, gen, snapshot, m.Name, logger)
}

// StorePair commits two values so that no LoadPair observes one without the
// other. Lock order is always a then b.
func StorePair[A, B any](a *Cell[A], av A, b *Cell[B], bv B) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b.mu.Lock()
	defer b.mu.Unlock()
	a.v = a.clone(av)
	b.v = b.clone(bv)
}

// StorePairIf is StorePair that commits nothing unless both cells are still
// at the given generations.
func StorePairIf[A, B any](a *Cell[A], agen uint64, av A, b *Cell[B], bgen uint64, bv B) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	b.mu.Lock()
	defer b.mu.Unlock()
	if a.gen != agen || b.gen != bgen {
		return false
	}
	a.v = a.clone(av)
	b.v = b.clone(bv)
	return true
}

// LoadPair reads two cells consistently with StorePair.
func LoadPair[A, B any](a *Cell[A], b *Cell[B]) (A, B) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b.mu.Lock()
	defer b.mu.Unlock()
	return a.clone(a.v), b.clone(b.v)
}
