// Package repository holds the client-side view of one owner's cases.
//
// The Repository keeps an in-memory list mirroring what the case store
// returned, applies local writes optimistically after the store accepts
// them, and makes sure that of several overlapping refreshes only the
// most recently issued one lands in the view.
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"casebook/internal/core"
	"casebook/internal/log"
	"casebook/internal/store"
)

// Repository is safe for concurrent use.
type Repository struct {
	store  store.CaseStore
	limit  int
	logger *log.Logger

	mu      sync.Mutex
	owner   string
	cases   []core.CaseEntry
	issued  uint64 // generation handed to the latest refresh or write
	applied uint64 // generation currently reflected in cases
	subs    map[int]func([]core.CaseEntry)
	nextSub int
}

// Option configures a Repository.
type Option func(*Repository)

// WithLimit caps how many cases a refresh asks for.
func WithLimit(n int) Option {
	return func(r *Repository) { r.limit = store.ClampLimit(n) }
}

// WithLogger sets the logger used for refresh outcomes.
func WithLogger(l *log.Logger) Option {
	return func(r *Repository) { r.logger = l }
}

func New(s store.CaseStore, opts ...Option) *Repository {
	r := &Repository{
		store:  s,
		limit:  store.DefaultListLimit,
		logger: log.New(log.Config{Component: log.ComponentCases, Handler: slog.Default().Handler()}),
		subs:   make(map[int]func([]core.CaseEntry)),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Owner returns the active owner, empty when signed out.
func (r *Repository) Owner() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owner
}

// SetOwner switches the active owner. The view is cleared immediately so no
// record of the previous owner stays visible, and any refresh still in
// flight for the previous owner is discarded when it completes.
func (r *Repository) SetOwner(ownerID string) {
	r.mu.Lock()
	if r.owner == ownerID {
		r.mu.Unlock()
		return
	}
	r.owner = ownerID
	r.issued++
	r.applied = r.issued
	r.cases = nil
	notify := r.notifierLocked()
	r.mu.Unlock()
	notify()
}

// Clear signs out: the owner is dropped and the view emptied.
func (r *Repository) Clear() {
	r.SetOwner("")
}

// Snapshot returns a copy of the current view.
func (r *Repository) Snapshot() []core.CaseEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.cases)
}

// Subscribe registers fn to receive the view after every change. The
// returned function removes the subscription.
func (r *Repository) Subscribe(fn func([]core.CaseEntry)) (cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}

// Refresh reloads the view from the store. On error the previous view is
// kept. A refresh whose result arrives after a newer refresh or write was
// issued is dropped.
func (r *Repository) Refresh(ctx context.Context) error {
	r.mu.Lock()
	owner := r.owner
	if owner == "" {
		r.mu.Unlock()
		return core.ErrNoOwner
	}
	r.issued++
	gen := r.issued
	r.mu.Unlock()

	cases, err := r.store.List(ctx, owner, r.limit)
	if err != nil {
		r.logger.WarnContext(ctx, "Refresh failed, keeping previous view",
			log.FieldOwnerID, owner,
			log.FieldError, err.Error())
		return fmt.Errorf("refresh cases: %w", err)
	}

	r.mu.Lock()
	if r.owner != owner || gen <= r.applied {
		r.mu.Unlock()
		r.logger.DebugContext(ctx, "Discarding stale refresh", log.FieldOwnerID, owner)
		return nil
	}
	r.cases = cases
	r.applied = gen
	notify := r.notifierLocked()
	r.mu.Unlock()
	notify()
	return nil
}

// Add validates f, creates the case in the store and prepends the stored
// record to the view, or replaces it when a refresh already brought it in. Validation failures never reach the store.
func (r *Repository) Add(ctx context.Context, f core.CaseFields) (core.CaseEntry, error) {
	owner, err := r.activeOwner()
	if err != nil {
		return core.CaseEntry{}, err
	}
	f, err = store.PrepareFields(f)
	if err != nil {
		return core.CaseEntry{}, err
	}
	c, err := r.store.Create(ctx, owner, f)
	if err != nil {
		return core.CaseEntry{}, fmt.Errorf("add case: %w", err)
	}
	r.apply(owner, func(cases []core.CaseEntry) []core.CaseEntry {
		// A refresh that ran after the commit may already hold the case.
		if i := slices.IndexFunc(cases, func(e core.CaseEntry) bool { return e.ID == c.ID }); i >= 0 {
			cases[i] = c
			return cases
		}
		return append([]core.CaseEntry{c}, cases...)
	})
	return c, nil
}

// Update replaces the fields of case id and swaps the stored record into
// the view.
func (r *Repository) Update(ctx context.Context, id string, f core.CaseFields) (core.CaseEntry, error) {
	owner, err := r.activeOwner()
	if err != nil {
		return core.CaseEntry{}, err
	}
	f, err = store.PrepareFields(f)
	if err != nil {
		return core.CaseEntry{}, err
	}
	c, err := r.store.Update(ctx, owner, id, f)
	if err != nil {
		return core.CaseEntry{}, fmt.Errorf("update case %s: %w", id, err)
	}
	r.apply(owner, func(cases []core.CaseEntry) []core.CaseEntry {
		for i := range cases {
			if cases[i].ID == id {
				cases[i] = c
				return cases
			}
		}
		return cases
	})
	return c, nil
}

// Remove deletes case id from the store and the view.
func (r *Repository) Remove(ctx context.Context, id string) error {
	owner, err := r.activeOwner()
	if err != nil {
		return err
	}
	if err := r.store.Delete(ctx, owner, id); err != nil {
		return fmt.Errorf("remove case %s: %w", id, err)
	}
	r.apply(owner, func(cases []core.CaseEntry) []core.CaseEntry {
		return slices.DeleteFunc(cases, func(c core.CaseEntry) bool { return c.ID == id })
	})
	return nil
}

func (r *Repository) activeOwner() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owner == "" {
		return "", core.ErrNoOwner
	}
	return r.owner, nil
}

// apply runs a local mutation if the owner has not changed meanwhile. A
// write counts as the newest state, so refreshes issued before it are
// dropped when they complete.
func (r *Repository) apply(owner string, mutate func([]core.CaseEntry) []core.CaseEntry) {
	r.mu.Lock()
	if r.owner != owner {
		r.mu.Unlock()
		return
	}
	r.cases = mutate(slices.Clone(r.cases))
	r.issued++
	r.applied = r.issued
	notify := r.notifierLocked()
	r.mu.Unlock()
	notify()
}

// notifierLocked captures the view and the subscribers while r.mu is held.
// The returned func delivers them and must run after r.mu is released.
func (r *Repository) notifierLocked() func() {
	if len(r.subs) == 0 {
		return func() {}
	}
	view := slices.Clone(r.cases)
	fns := make([]func([]core.CaseEntry), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	return func() {
		for _, fn := range fns {
			fn(slices.Clone(view))
		}
	}
}
