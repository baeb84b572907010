package reference

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loaderStub struct {
	lookups      Lookups
	employeesErr error
}

func (l loaderStub) ListProjects(ctx context.Context) ([]Item, error) {
	return l.lookups.Projects, nil
}

func (l loaderStub) ListEmployees(ctx context.Context) ([]Item, error) {
	if l.employeesErr != nil {
		return nil, l.employeesErr
	}
	return l.lookups.Employees, nil
}

func (l loaderStub) ListMonths(ctx context.Context) ([]Item, error) {
	return l.lookups.Months, nil
}

func (l loaderStub) ListStatuses(ctx context.Context) ([]Item, error) {
	return l.lookups.Statuses, nil
}

var testLookups = Lookups{
	Projects:  []Item{{Id: 1, Name: "Acme"}},
	Employees: []Item{{Id: 2, Name: "Jane"}},
	Months:    []Item{{Id: 3, Name: "Jan"}},
	Statuses:  []Item{{Id: 4, Name: "Planned"}},
}

func TestFetch(t *testing.T) {
	t.Run("should load all four lists", func(t *testing.T) {
		// when
		lookups, err := Fetch(context.Background(), loaderStub{lookups: testLookups})

		// then
		require.NoError(t, err)
		assert.Equal(t, testLookups, lookups)
	})

	t.Run("should fail the whole load when one source fails", func(t *testing.T) {
		// given
		boom := errors.New("connection refused")

		// when
		lookups, err := Fetch(context.Background(), loaderStub{lookups: testLookups, employeesErr: boom})

		// then
		var fetchErr *FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, "employees", fetchErr.Source)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, Lookups{}, lookups)
	})
}

func TestCache_Refresh(t *testing.T) {
	t.Run("should store lookups after a successful load", func(t *testing.T) {
		cache := NewCache()

		_, err := cache.Refresh(context.Background(), loaderStub{lookups: testLookups})

		require.NoError(t, err)
		assert.True(t, cache.Loaded())
		assert.Equal(t, testLookups, cache.Get())
	})

	t.Run("should keep previous lookups when a load fails", func(t *testing.T) {
		// given
		cache := NewCache()
		cache.Store(testLookups)
		changed := Lookups{Projects: []Item{{Id: 99, Name: "Other"}}}

		// when
		lookups, err := cache.Refresh(context.Background(), loaderStub{lookups: changed, employeesErr: errors.New("timeout")})

		// then
		assert.Error(t, err)
		assert.Equal(t, testLookups, lookups)
		assert.Equal(t, testLookups, cache.Get())
	})

	t.Run("should discard the result of a cancelled load", func(t *testing.T) {
		cache := NewCache()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := cache.Refresh(ctx, loaderStub{lookups: testLookups})

		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, cache.Loaded())
	})
}
