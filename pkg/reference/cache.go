package reference

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Loader fetches the reference lists from the backend.
type Loader interface {
	ListProjects(ctx context.Context) ([]Item, error)
	ListEmployees(ctx context.Context) ([]Item, error)
	ListMonths(ctx context.Context) ([]Item, error)
	ListStatuses(ctx context.Context) ([]Item, error)
}

// FetchError reports which source failed during a load cycle.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetch loads all four lists concurrently. The first failure cancels the remaining
// requests and is returned as a *FetchError; no partial Lookups is ever returned.
func Fetch(ctx context.Context, loader Loader) (Lookups, error) {
	var lookups Lookups
	g, gctx := errgroup.WithContext(ctx)

	fetch := func(source string, fn func(context.Context) ([]Item, error), dst *[]Item) {
		g.Go(func() error {
			items, err := fn(gctx)
			if err != nil {
				return &FetchError{Source: source, Err: err}
			}
			*dst = items
			return nil
		})
	}
	fetch("projects", loader.ListProjects, &lookups.Projects)
	fetch("employees", loader.ListEmployees, &lookups.Employees)
	fetch("months", loader.ListMonths, &lookups.Months)
	fetch("statuses", loader.ListStatuses, &lookups.Statuses)

	if err := g.Wait(); err != nil {
		log.Errorf("reference data load failed: %v", err)
		return Lookups{}, err
	}
	return lookups, nil
}

// Cache holds the last successfully loaded Lookups.
type Cache struct {
	mu      sync.RWMutex
	lookups Lookups
	loaded  bool
}

func NewCache() *Cache {
	return &Cache{}
}

func (c *Cache) Get() Lookups {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lookups
}

func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Store replaces the cached lookups wholesale.
func (c *Cache) Store(lookups Lookups) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups = lookups
	c.loaded = true
}

// Refresh fetches fresh lookups and stores them only when every list loaded.
// On failure the cached value is left as it was.
func (c *Cache) Refresh(ctx context.Context, loader Loader) (Lookups, error) {
	lookups, err := Fetch(ctx, loader)
	if err != nil {
		return c.Get(), err
	}
	if err := ctx.Err(); err != nil {
		return c.Get(), err
	}
	c.Store(lookups)
	return lookups, nil
}
