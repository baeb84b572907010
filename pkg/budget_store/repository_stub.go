package budget_store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/empbudget/budgetgrid/pkg/budget"
	"github.com/empbudget/budgetgrid/pkg/reference"
	"github.com/shopspring/decimal"
)

// RepositoryStub keeps budgets and lookups in memory. Filtering supports search, id
// lists and paging.
type RepositoryStub struct {
	mu          sync.RWMutex
	budgets     []budget.Record
	references  map[reference.Kind][]reference.Item
	hourlyRates map[int]decimal.Decimal
	nextId      int
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{
		references:  make(map[reference.Kind][]reference.Item),
		hourlyRates: make(map[int]decimal.Decimal),
	}
}

func (s *RepositoryStub) ListBudgets(ctx context.Context, filter Filter) ([]budget.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]budget.View, 0, len(s.budgets))
	for _, record := range s.budgets {
		view := s.view(record)
		if s.matches(view, filter) {
			views = append(views, view)
		}
	}
	if filter.SortDesc {
		slices.Reverse(views)
	}
	if filter.PageSize > 0 {
		start := min(filter.offset(), len(views))
		end := min(start+filter.PageSize, len(views))
		views = views[start:end]
	}
	return views, nil
}

func (s *RepositoryStub) matches(v budget.View, f Filter) bool {
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		found := false
		for _, hay := range []string{v.Comments, v.ProjectName, v.EmployeeName, v.StatusName} {
			if strings.Contains(strings.ToLower(hay), needle) {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	for _, in := range []struct {
		ids []int
		id  int
	}{
		{f.ProjectIds, v.ProjectId},
		{f.EmployeeIds, v.EmployeeId},
		{f.MonthIds, v.MonthId},
		{f.StatusIds, v.StatusId},
	} {
		if len(in.ids) > 0 && !slices.Contains(in.ids, in.id) {
			return false
		}
	}
	if f.BudgetMin != nil && v.BudgetAllocated.LessThan(*f.BudgetMin) {
		return false
	}
	if f.BudgetMax != nil && v.BudgetAllocated.GreaterThan(*f.BudgetMax) {
		return false
	}
	if f.HoursMin != nil && v.HoursPlanned.LessThan(*f.HoursMin) {
		return false
	}
	if f.HoursMax != nil && v.HoursPlanned.GreaterThan(*f.HoursMax) {
		return false
	}
	return true
}

func (s *RepositoryStub) GetBudget(ctx context.Context, id budget.PlanId) (budget.View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return budget.View{}, ErrBudgetNotFound
	}
	return s.view(s.budgets[idx]), nil
}

func (s *RepositoryStub) InsertBudget(ctx context.Context, record budget.Record) (budget.PlanId, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(record), nil
}

func (s *RepositoryStub) UpdateBudget(ctx context.Context, record budget.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(record)
}

func (s *RepositoryStub) DeleteBudget(ctx context.Context, id budget.PlanId) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return ErrBudgetNotFound
	}
	s.budgets = slices.Delete(s.budgets, idx, idx+1)
	return nil
}

func (s *RepositoryStub) BulkDelete(ctx context.Context, ids []budget.PlanId) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if s.indexOf(id) < 0 {
			return fmt.Errorf("%w: %d", ErrBudgetNotFound, id)
		}
	}
	s.budgets = slices.DeleteFunc(s.budgets, func(r budget.Record) bool {
		return slices.Contains(ids, r.BudgetPlanId)
	})
	return nil
}

func (s *RepositoryStub) BulkUpsert(ctx context.Context, records []budget.Record) ([]budget.PlanId, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range records {
		if record.BudgetPlanId.Persisted() && s.indexOf(record.BudgetPlanId) < 0 {
			return nil, fmt.Errorf("%w: %d", ErrBudgetNotFound, record.BudgetPlanId)
		}
	}
	ids := make([]budget.PlanId, 0, len(records))
	for _, record := range records {
		if record.BudgetPlanId.Persisted() {
			_ = s.update(record)
			ids = append(ids, record.BudgetPlanId)
			continue
		}
		ids = append(ids, s.insert(record))
	}
	return ids, nil
}

func (s *RepositoryStub) ListReference(ctx context.Context, kind reference.Kind) ([]reference.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := referenceTables[kind]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReferenceKind, kind)
	}
	return append([]reference.Item{}, s.references[kind]...), nil
}

func (s *RepositoryStub) InsertReference(ctx context.Context, kind reference.Kind, name string, hourlyRate decimal.Decimal) (reference.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := referenceTables[kind]; !ok {
		return reference.Item{}, fmt.Errorf("%w: %s", ErrUnknownReferenceKind, kind)
	}
	item := reference.Item{Id: len(s.references[kind]) + 1, Name: name}
	s.references[kind] = append(s.references[kind], item)
	if kind == reference.Employee {
		s.hourlyRates[item.Id] = hourlyRate
	}
	return item, nil
}

func (s *RepositoryStub) insert(record budget.Record) budget.PlanId {
	s.nextId++
	record.BudgetPlanId = budget.PlanId(s.nextId)
	record.Cost = decimal.Zero
	s.budgets = append(s.budgets, record)
	return record.BudgetPlanId
}

func (s *RepositoryStub) update(record budget.Record) error {
	idx := s.indexOf(record.BudgetPlanId)
	if idx < 0 {
		return fmt.Errorf("%w: %d", ErrBudgetNotFound, record.BudgetPlanId)
	}
	s.budgets[idx] = record
	return nil
}

func (s *RepositoryStub) indexOf(id budget.PlanId) int {
	return slices.IndexFunc(s.budgets, func(r budget.Record) bool { return r.BudgetPlanId == id })
}

func (s *RepositoryStub) view(record budget.Record) budget.View {
	lookups := reference.Lookups{
		Projects:  s.references[reference.Project],
		Employees: s.references[reference.Employee],
		Months:    s.references[reference.Month],
		Statuses:  s.references[reference.Status],
	}
	rate, ok := s.hourlyRates[record.EmployeeId]
	if !ok {
		rate = decimal.Zero
	}
	record.Cost = record.HoursPlanned.Mul(rate)
	return budget.View{
		Record:       record,
		ProjectName:  lookups.NameOf(reference.Project, record.ProjectId),
		EmployeeName: lookups.NameOf(reference.Employee, record.EmployeeId),
		Month:        lookups.NameOf(reference.Month, record.MonthId),
		StatusName:   lookups.NameOf(reference.Status, record.StatusId),
	}
}
