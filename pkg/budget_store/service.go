package budget_store

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/empbudget/budgetgrid/internal/event_bus"
	"github.com/empbudget/budgetgrid/pkg/budget"
	"github.com/empbudget/budgetgrid/pkg/budget_api"
	"github.com/empbudget/budgetgrid/pkg/reference"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var ErrInvalidBudget = errors.New("invalid budget plan")

// Service is the budget backend. It speaks the same contract as the remote
// backend, so the sheet can use it in process.
type Service interface {
	budget_api.Client
	FindBudgets(ctx context.Context, filter Filter) ([]budget.View, error)
	AddReference(ctx context.Context, kind reference.Kind, name string, hourlyRate decimal.Decimal) (reference.Item, error)
}

type ServiceImpl struct {
	repo     Repository
	eventBus *event_bus.EventBus
}

func NewBudgetStoreService(repo Repository, eventBus *event_bus.EventBus) *ServiceImpl {
	return &ServiceImpl{repo: repo, eventBus: eventBus}
}

func (s *ServiceImpl) ListBudgets(ctx context.Context) ([]budget.View, error) {
	return s.repo.ListBudgets(ctx, Filter{})
}

func (s *ServiceImpl) FindBudgets(ctx context.Context, filter Filter) ([]budget.View, error) {
	return s.repo.ListBudgets(ctx, filter)
}

func (s *ServiceImpl) ListProjects(ctx context.Context) ([]reference.Item, error) {
	return s.repo.ListReference(ctx, reference.Project)
}

func (s *ServiceImpl) ListEmployees(ctx context.Context) ([]reference.Item, error) {
	return s.repo.ListReference(ctx, reference.Employee)
}

func (s *ServiceImpl) ListMonths(ctx context.Context) ([]reference.Item, error) {
	return s.repo.ListReference(ctx, reference.Month)
}

func (s *ServiceImpl) ListStatuses(ctx context.Context) ([]reference.Item, error) {
	return s.repo.ListReference(ctx, reference.Status)
}

// AddBudget stores a new record. Any id on the input is ignored.
func (s *ServiceImpl) AddBudget(ctx context.Context, record budget.Record) (budget.Record, error) {
	if err := validate(record); err != nil {
		return budget.Record{}, err
	}
	record.BudgetPlanId = budget.Unsaved

	id, err := s.repo.InsertBudget(ctx, record)
	if err != nil {
		return budget.Record{}, err
	}
	stored, err := s.repo.GetBudget(ctx, id)
	if err != nil {
		return budget.Record{}, err
	}
	s.publish(ctx, "insert", []budget.PlanId{id})
	return stored.Record, nil
}

func (s *ServiceImpl) DeleteBudget(ctx context.Context, id budget.PlanId) error {
	if !id.Persisted() {
		return fmt.Errorf("%w: %d", ErrBudgetNotFound, id)
	}
	if err := s.repo.DeleteBudget(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, "delete", []budget.PlanId{id})
	return nil
}

func (s *ServiceImpl) BulkDelete(ctx context.Context, ids []budget.PlanId) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.repo.BulkDelete(ctx, ids); err != nil {
		return err
	}
	s.publish(ctx, "bulk_delete", ids)
	return nil
}

func (s *ServiceImpl) BulkUpsert(ctx context.Context, records []budget.Record) error {
	if len(records) == 0 {
		return nil
	}
	for i, record := range records {
		if err := validate(record); err != nil {
			return fmt.Errorf("record %d: %w", i+1, err)
		}
	}
	ids, err := s.repo.BulkUpsert(ctx, records)
	if err != nil {
		return err
	}
	s.publish(ctx, "bulk_upsert", ids)
	return nil
}

func (s *ServiceImpl) AddReference(ctx context.Context, kind reference.Kind, name string, hourlyRate decimal.Decimal) (reference.Item, error) {
	if name == "" {
		return reference.Item{}, fmt.Errorf("%w: %s name is required", ErrInvalidBudget, kind)
	}
	if hourlyRate.IsNegative() {
		return reference.Item{}, fmt.Errorf("%w: hourly rate must not be negative", ErrInvalidBudget)
	}
	return s.repo.InsertReference(ctx, kind, name, hourlyRate)
}

func validate(record budget.Record) error {
	if record.BudgetAllocated.IsNegative() {
		return fmt.Errorf("%w: budget allocated must not be negative", ErrInvalidBudget)
	}
	if record.HoursPlanned.IsNegative() {
		return fmt.Errorf("%w: hours planned must not be negative", ErrInvalidBudget)
	}
	if utf8.RuneCountInString(record.Comments) > budget.MaxCommentLength {
		return fmt.Errorf("%w: comments exceed %d characters", ErrInvalidBudget, budget.MaxCommentLength)
	}
	return nil
}

func (s *ServiceImpl) publish(ctx context.Context, operation string, ids []budget.PlanId) {
	if s.eventBus == nil {
		return
	}
	payload := event_bus.StoreChange{Operation: operation, Ids: make([]int, 0, len(ids))}
	for _, id := range ids {
		payload.Ids = append(payload.Ids, int(id))
	}
	if err := s.eventBus.Publish(event_bus.NewEvent(ctx, event_bus.BudgetStoreChanged, payload)); err != nil {
		log.Warnf("budget store change was committed but not every subscriber handled it: %v", err)
	}
}
