package budget_api

import (
	"context"
	"slices"
	"sync"

	"github.com/empbudget/budgetgrid/pkg/budget"
	"github.com/empbudget/budgetgrid/pkg/reference"
)

// ClientStub is an in-memory Client. It keeps the records it is given, applies
// mutations to them and counts every call.
type ClientStub struct {
	mu        sync.RWMutex
	budgets   []budget.View
	projects  []reference.Item
	employees []reference.Item
	months    []reference.Item
	statuses  []reference.Item
	nextId    budget.PlanId

	listBudgetsErr   error
	listProjectsErr  error
	listEmployeesErr error
	listMonthsErr    error
	listStatusesErr  error
	addBudgetErr     error
	deleteBudgetErr  error
	bulkDeleteErr    error
	bulkUpsertErr    error

	calls       map[string]int
	added       []budget.Record
	upserted    [][]budget.Record
	deletedIds  [][]budget.PlanId
	deletedOnes []budget.PlanId
}

func NewClientStub() *ClientStub {
	return &ClientStub{
		nextId: 1000,
		calls:  make(map[string]int),
	}
}

func (c *ClientStub) SetBudgets(budgets []budget.View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.budgets = slices.Clone(budgets)
}

func (c *ClientStub) SetLookups(lookups reference.Lookups) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projects = slices.Clone(lookups.Projects)
	c.employees = slices.Clone(lookups.Employees)
	c.months = slices.Clone(lookups.Months)
	c.statuses = slices.Clone(lookups.Statuses)
}

func (c *ClientStub) SetListBudgetsError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listBudgetsErr = err
}

func (c *ClientStub) SetListProjectsError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listProjectsErr = err
}

func (c *ClientStub) SetListEmployeesError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listEmployeesErr = err
}

func (c *ClientStub) SetListMonthsError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listMonthsErr = err
}

func (c *ClientStub) SetListStatusesError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listStatusesErr = err
}

func (c *ClientStub) SetAddBudgetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addBudgetErr = err
}

func (c *ClientStub) SetDeleteBudgetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteBudgetErr = err
}

func (c *ClientStub) SetBulkDeleteError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bulkDeleteErr = err
}

func (c *ClientStub) SetBulkUpsertError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bulkUpsertErr = err
}

// Calls returns how many times the named method was invoked.
func (c *ClientStub) Calls(method string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calls[method]
}

// TotalMutations counts every call that would change backend state.
func (c *ClientStub) TotalMutations() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calls["AddBudget"] + c.calls["DeleteBudget"] + c.calls["BulkDelete"] + c.calls["BulkUpsert"]
}

func (c *ClientStub) Added() []budget.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.added)
}

func (c *ClientStub) Upserted() [][]budget.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.upserted)
}

func (c *ClientStub) BulkDeleted() [][]budget.PlanId {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.deletedIds)
}

func (c *ClientStub) DeletedOnes() []budget.PlanId {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.deletedOnes)
}

func (c *ClientStub) ListBudgets(ctx context.Context) ([]budget.View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["ListBudgets"]++
	if c.listBudgetsErr != nil {
		return nil, c.listBudgetsErr
	}
	return slices.Clone(c.budgets), nil
}

func (c *ClientStub) ListProjects(ctx context.Context) ([]reference.Item, error) {
	return c.listItems(reference.Project)
}

func (c *ClientStub) ListEmployees(ctx context.Context) ([]reference.Item, error) {
	return c.listItems(reference.Employee)
}

func (c *ClientStub) ListMonths(ctx context.Context) ([]reference.Item, error) {
	return c.listItems(reference.Month)
}

func (c *ClientStub) ListStatuses(ctx context.Context) ([]reference.Item, error) {
	return c.listItems(reference.Status)
}

func (c *ClientStub) listItems(kind reference.Kind) ([]reference.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var items []reference.Item
	var err error
	switch kind {
	case reference.Project:
		c.calls["ListProjects"]++
		items, err = c.projects, c.listProjectsErr
	case reference.Employee:
		c.calls["ListEmployees"]++
		items, err = c.employees, c.listEmployeesErr
	case reference.Month:
		c.calls["ListMonths"]++
		items, err = c.months, c.listMonthsErr
	case reference.Status:
		c.calls["ListStatuses"]++
		items, err = c.statuses, c.listStatusesErr
	}
	if err != nil {
		return nil, err
	}
	return slices.Clone(items), nil
}

func (c *ClientStub) AddBudget(ctx context.Context, record budget.Record) (budget.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["AddBudget"]++
	if c.addBudgetErr != nil {
		return budget.Record{}, c.addBudgetErr
	}
	c.nextId++
	record.BudgetPlanId = c.nextId
	c.added = append(c.added, record)
	c.budgets = append(c.budgets, c.viewOf(record))
	return record, nil
}

func (c *ClientStub) DeleteBudget(ctx context.Context, id budget.PlanId) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["DeleteBudget"]++
	if c.deleteBudgetErr != nil {
		return c.deleteBudgetErr
	}
	c.deletedOnes = append(c.deletedOnes, id)
	c.removeBudgets([]budget.PlanId{id})
	return nil
}

func (c *ClientStub) BulkDelete(ctx context.Context, ids []budget.PlanId) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["BulkDelete"]++
	if c.bulkDeleteErr != nil {
		return c.bulkDeleteErr
	}
	c.deletedIds = append(c.deletedIds, slices.Clone(ids))
	c.removeBudgets(ids)
	return nil
}

func (c *ClientStub) BulkUpsert(ctx context.Context, records []budget.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["BulkUpsert"]++
	if c.bulkUpsertErr != nil {
		return c.bulkUpsertErr
	}
	c.upserted = append(c.upserted, slices.Clone(records))
	for _, record := range records {
		if !record.BudgetPlanId.Persisted() {
			c.nextId++
			record.BudgetPlanId = c.nextId
			c.budgets = append(c.budgets, c.viewOf(record))
			continue
		}
		idx := slices.IndexFunc(c.budgets, func(v budget.View) bool { return v.BudgetPlanId == record.BudgetPlanId })
		if idx < 0 {
			c.budgets = append(c.budgets, c.viewOf(record))
			continue
		}
		c.budgets[idx] = c.viewOf(record)
	}
	return nil
}

func (c *ClientStub) removeBudgets(ids []budget.PlanId) {
	c.budgets = slices.DeleteFunc(c.budgets, func(v budget.View) bool {
		return slices.Contains(ids, v.BudgetPlanId)
	})
}

func (c *ClientStub) viewOf(record budget.Record) budget.View {
	lookups := reference.Lookups{Projects: c.projects, Employees: c.employees, Months: c.months, Statuses: c.statuses}
	return budget.View{
		Record:       record,
		ProjectName:  lookups.NameOf(reference.Project, record.ProjectId),
		EmployeeName: lookups.NameOf(reference.Employee, record.EmployeeId),
		Month:        lookups.NameOf(reference.Month, record.MonthId),
		StatusName:   lookups.NameOf(reference.Status, record.StatusId),
	}
}
