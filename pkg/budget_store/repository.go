package budget_store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/empbudget/budgetgrid/pkg/budget"
	"github.com/empbudget/budgetgrid/pkg/reference"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var ErrBudgetNotFound = errors.New("budget plan not found")
var ErrUnknownReferenceKind = errors.New("unknown reference kind")

type Repository interface {
	ListBudgets(ctx context.Context, filter Filter) ([]budget.View, error)
	GetBudget(ctx context.Context, id budget.PlanId) (budget.View, error)
	InsertBudget(ctx context.Context, record budget.Record) (budget.PlanId, error)
	UpdateBudget(ctx context.Context, record budget.Record) error
	DeleteBudget(ctx context.Context, id budget.PlanId) error
	// BulkDelete removes all ids or none. Unknown ids fail the whole call with
	// ErrBudgetNotFound.
	BulkDelete(ctx context.Context, ids []budget.PlanId) error
	// BulkUpsert inserts unsaved records and updates persisted ones in one transaction.
	// It returns the id of every record in input order.
	BulkUpsert(ctx context.Context, records []budget.Record) ([]budget.PlanId, error)
	ListReference(ctx context.Context, kind reference.Kind) ([]reference.Item, error)
	InsertReference(ctx context.Context, kind reference.Kind, name string, hourlyRate decimal.Decimal) (reference.Item, error)
}

// referenceTables holds the table and ordering of each lookup list.
var referenceTables = map[reference.Kind]struct {
	table string
	order string
}{
	reference.Project:  {"project", "id"},
	reference.Employee: {"employee", "id"},
	reference.Month:    {"month", "position, id"},
	reference.Status:   {"status", "id"},
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

// Amounts travel as text and are cast server side; decimals never pass through floats.
const selectViews = `SELECT bp.id,
       COALESCE(bp.project_id, 0),
       COALESCE(bp.employee_id, 0),
       COALESCE(bp.month_id, 0),
       COALESCE(bp.status_id, 0),
       bp.budget_allocated::text,
       bp.hours_planned::text,
       bp.comments,
       (bp.hours_planned * COALESCE(e.hourly_rate, 0))::text AS cost,
       COALESCE(p.name, ''),
       COALESCE(e.name, ''),
       COALESCE(m.name, ''),
       COALESCE(s.name, '')
FROM budget_plan bp
         LEFT JOIN project p ON p.id = bp.project_id
         LEFT JOIN employee e ON e.id = bp.employee_id
         LEFT JOIN month m ON m.id = bp.month_id
         LEFT JOIN status s ON s.id = bp.status_id`

func (r *RepositoryImpl) ListBudgets(ctx context.Context, filter Filter) ([]budget.View, error) {
	query, args := buildListQuery(filter)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not list budgets: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	views := make([]budget.View, 0)
	for rows.Next() {
		view, err := scanView(rows)
		if err != nil {
			log.Errorf("could not scan budget row: %v", err)
			return nil, err
		}
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not read budgets: %w", err)
	}
	return views, nil
}

func buildListQuery(filter Filter) (string, []any) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		where = append(where, fmt.Sprintf("(bp.comments ILIKE %[1]s OR p.name ILIKE %[1]s OR e.name ILIKE %[1]s OR s.name ILIKE %[1]s)", p))
	}
	for _, in := range []struct {
		column string
		ids    []int
	}{
		{"bp.project_id", filter.ProjectIds},
		{"bp.employee_id", filter.EmployeeIds},
		{"bp.month_id", filter.MonthIds},
		{"bp.status_id", filter.StatusIds},
	} {
		if len(in.ids) > 0 {
			where = append(where, fmt.Sprintf("%s = ANY(%s::int[])", in.column, arg(in.ids)))
		}
	}
	for _, bound := range []struct {
		column string
		op     string
		value  *decimal.Decimal
	}{
		{"bp.budget_allocated", ">=", filter.BudgetMin},
		{"bp.budget_allocated", "<=", filter.BudgetMax},
		{"bp.hours_planned", ">=", filter.HoursMin},
		{"bp.hours_planned", "<=", filter.HoursMax},
	} {
		if bound.value != nil {
			where = append(where, fmt.Sprintf("%s %s %s::text::numeric", bound.column, bound.op, arg(bound.value.String())))
		}
	}

	var sb strings.Builder
	sb.WriteString(selectViews)
	if len(where) > 0 {
		sb.WriteString("\nWHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString("\nORDER BY ")
	sb.WriteString(filter.sortExpression())
	if filter.PageSize > 0 {
		sb.WriteString(fmt.Sprintf("\nLIMIT %s OFFSET %s", arg(filter.PageSize), arg(filter.offset())))
	}
	return sb.String(), args
}

func scanView(row pgx.Row) (budget.View, error) {
	var v budget.View
	var id int
	var allocated, hours, cost string
	err := row.Scan(&id, &v.ProjectId, &v.EmployeeId, &v.MonthId, &v.StatusId,
		&allocated, &hours, &v.Comments, &cost,
		&v.ProjectName, &v.EmployeeName, &v.Month, &v.StatusName)
	if err != nil {
		return budget.View{}, err
	}
	v.BudgetPlanId = budget.PlanId(id)
	if v.BudgetAllocated, err = decimal.NewFromString(allocated); err != nil {
		return budget.View{}, err
	}
	if v.HoursPlanned, err = decimal.NewFromString(hours); err != nil {
		return budget.View{}, err
	}
	if v.Cost, err = decimal.NewFromString(cost); err != nil {
		return budget.View{}, err
	}
	return v, nil
}

func (r *RepositoryImpl) GetBudget(ctx context.Context, id budget.PlanId) (budget.View, error) {
	view, err := scanView(r.db.QueryRow(ctx, selectViews+"\nWHERE bp.id = $1", int(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return budget.View{}, ErrBudgetNotFound
		}
		err := fmt.Errorf("could not get budget %d: %w", id, err)
		log.Error(err)
		return budget.View{}, err
	}
	return view, nil
}

func (r *RepositoryImpl) InsertBudget(ctx context.Context, record budget.Record) (budget.PlanId, error) {
	id, err := insertBudget(ctx, r.db, record)
	if err != nil {
		err := fmt.Errorf("could not insert budget: %w", err)
		log.Error(err)
		return budget.Unsaved, err
	}
	return id, nil
}

func (r *RepositoryImpl) UpdateBudget(ctx context.Context, record budget.Record) error {
	if err := updateBudget(ctx, r.db, record); err != nil {
		if !errors.Is(err, ErrBudgetNotFound) {
			log.Errorf("could not update budget %d: %v", record.BudgetPlanId, err)
		}
		return err
	}
	return nil
}

func (r *RepositoryImpl) DeleteBudget(ctx context.Context, id budget.PlanId) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM budget_plan WHERE id = $1", int(id))
	if err != nil {
		err := fmt.Errorf("could not delete budget %d: %w", id, err)
		log.Error(err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBudgetNotFound
	}
	return nil
}

func (r *RepositoryImpl) BulkDelete(ctx context.Context, ids []budget.PlanId) error {
	unique := uniqueIds(ids)
	if len(unique) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, "DELETE FROM budget_plan WHERE id = ANY($1::int[])", unique)
	if err != nil {
		err := fmt.Errorf("could not bulk delete budgets: %w", err)
		log.Error(err)
		return err
	}
	if tag.RowsAffected() != int64(len(unique)) {
		log.Debugf("bulk delete matched %d of %d ids, rolling back", tag.RowsAffected(), len(unique))
		return fmt.Errorf("%w: %d of %d ids do not exist", ErrBudgetNotFound, int64(len(unique))-tag.RowsAffected(), len(unique))
	}
	return tx.Commit(ctx)
}

func (r *RepositoryImpl) BulkUpsert(ctx context.Context, records []budget.Record) ([]budget.PlanId, error) {
	if len(records) == 0 {
		return nil, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]budget.PlanId, 0, len(records))
	for _, record := range records {
		if record.BudgetPlanId.Persisted() {
			if err := updateBudget(ctx, tx, record); err != nil {
				return nil, err
			}
			ids = append(ids, record.BudgetPlanId)
			continue
		}
		id, err := insertBudget(ctx, tx, record)
		if err != nil {
			err := fmt.Errorf("could not insert budget: %w", err)
			log.Error(err)
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("could not commit bulk upsert: %w", err)
	}
	return ids, nil
}

func insertBudget(ctx context.Context, q querier, record budget.Record) (budget.PlanId, error) {
	query := `INSERT INTO budget_plan (project_id, employee_id, month_id, status_id,
                         budget_allocated, hours_planned, comments)
VALUES (NULLIF($1, 0), NULLIF($2, 0), NULLIF($3, 0), NULLIF($4, 0), $5::text::numeric, $6::text::numeric, $7)
RETURNING id`

	var id int
	err := q.QueryRow(ctx, query,
		record.ProjectId,
		record.EmployeeId,
		record.MonthId,
		record.StatusId,
		record.BudgetAllocated.String(),
		record.HoursPlanned.String(),
		record.Comments,
	).Scan(&id)
	if err != nil {
		return budget.Unsaved, err
	}
	return budget.PlanId(id), nil
}

func updateBudget(ctx context.Context, q querier, record budget.Record) error {
	query := `UPDATE budget_plan
SET project_id       = NULLIF($2, 0),
    employee_id      = NULLIF($3, 0),
    month_id         = NULLIF($4, 0),
    status_id        = NULLIF($5, 0),
    budget_allocated = $6::text::numeric,
    hours_planned    = $7::text::numeric,
    comments         = $8,
    updated_at       = now()
WHERE id = $1`

	tag, err := q.Exec(ctx, query,
		int(record.BudgetPlanId),
		record.ProjectId,
		record.EmployeeId,
		record.MonthId,
		record.StatusId,
		record.BudgetAllocated.String(),
		record.HoursPlanned.String(),
		record.Comments,
	)
	if err != nil {
		return fmt.Errorf("could not update budget %d: %w", record.BudgetPlanId, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ErrBudgetNotFound, record.BudgetPlanId)
	}
	return nil
}

func (r *RepositoryImpl) ListReference(ctx context.Context, kind reference.Kind) ([]reference.Item, error) {
	table, ok := referenceTables[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReferenceKind, kind)
	}

	rows, err := r.db.Query(ctx, fmt.Sprintf("SELECT id, name FROM %s ORDER BY %s", table.table, table.order))
	if err != nil {
		err := fmt.Errorf("could not list %s: %w", table.table, err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	items := make([]reference.Item, 0)
	for rows.Next() {
		var item reference.Item
		if err := rows.Scan(&item.Id, &item.Name); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// InsertReference adds a lookup entry. hourlyRate applies to employees only.
func (r *RepositoryImpl) InsertReference(ctx context.Context, kind reference.Kind, name string, hourlyRate decimal.Decimal) (reference.Item, error) {
	var query string
	args := []any{name}
	switch kind {
	case reference.Project, reference.Status:
		query = fmt.Sprintf("INSERT INTO %s (name) VALUES ($1) RETURNING id", referenceTables[kind].table)
	case reference.Employee:
		query = "INSERT INTO employee (name, hourly_rate) VALUES ($1, $2::text::numeric) RETURNING id"
		args = append(args, hourlyRate.String())
	case reference.Month:
		query = "INSERT INTO month (name, position) VALUES ($1, (SELECT COALESCE(MAX(position), 0) + 1 FROM month)) RETURNING id"
	default:
		return reference.Item{}, fmt.Errorf("%w: %s", ErrUnknownReferenceKind, kind)
	}

	item := reference.Item{Name: name}
	if err := r.db.QueryRow(ctx, query, args...).Scan(&item.Id); err != nil {
		err := fmt.Errorf("could not insert %s %q: %w", kind, name, err)
		log.Error(err)
		return reference.Item{}, err
	}
	return item, nil
}

func uniqueIds(ids []budget.PlanId) []int {
	unique := make([]int, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(unique, int(id)) {
			unique = append(unique, int(id))
		}
	}
	return unique
}
