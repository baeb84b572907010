package budget_sheet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/empbudget/budgetgrid/internal/event_bus"
	"github.com/empbudget/budgetgrid/pkg/budget"
	"github.com/empbudget/budgetgrid/pkg/budget_api"
	"github.com/empbudget/budgetgrid/pkg/grid"
	"github.com/empbudget/budgetgrid/pkg/reconcile"
	"github.com/empbudget/budgetgrid/pkg/reference"
	"github.com/empbudget/budgetgrid/pkg/selection"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

var lookups = reference.Lookups{
	Projects:  []reference.Item{{Id: 1, Name: "Acme"}, {Id: 2, Name: "Globex"}},
	Employees: []reference.Item{{Id: 10, Name: "Jane"}},
	Months:    []reference.Item{{Id: 100, Name: "Jan"}},
	Statuses:  []reference.Item{{Id: 1000, Name: "Planned"}, {Id: 1001, Name: "Approved"}},
}

func seededViews() []budget.View {
	return []budget.View{
		{
			Record: budget.Record{
				BudgetPlanId:    101,
				ProjectId:       1,
				EmployeeId:      10,
				MonthId:         100,
				StatusId:        1000,
				BudgetAllocated: decimal.RequireFromString("1500.5"),
				HoursPlanned:    decimal.RequireFromString("8"),
				Comments:        "kick-off",
				Cost:            decimal.RequireFromString("400"),
			},
			ProjectName:  "Acme",
			EmployeeName: "Jane",
			Month:        "Jan",
			StatusName:   "Planned",
		},
		{
			Record: budget.Record{
				BudgetPlanId:    102,
				ProjectId:       2,
				EmployeeId:      10,
				MonthId:         100,
				StatusId:        1001,
				BudgetAllocated: decimal.RequireFromString("200"),
				HoursPlanned:    decimal.RequireFromString("2.5"),
				Cost:            decimal.RequireFromString("125"),
			},
			ProjectName:  "Globex",
			EmployeeName: "Jane",
			Month:        "Jan",
			StatusName:   "Approved",
		},
	}
}

func newStub() *budget_api.ClientStub {
	stub := budget_api.NewClientStub()
	stub.SetLookups(lookups)
	stub.SetBudgets(seededViews())
	return stub
}

func options(mode SyncMode) Options {
	gridOptions := grid.Options{SheetName: "Budget", BlankRows: 2, BudgetMax: 10_000_000, HoursMax: 10_000}
	return Options{Mode: mode, Grid: gridOptions}
}

func setupService(t *testing.T, mode SyncMode) (*ServiceImpl, *budget_api.ClientStub, *event_bus.EventBus) {
	t.Helper()
	stub := newStub()
	eventBus := event_bus.NewEventBus()
	return NewBudgetSheetService(stub, eventBus, options(mode)), stub, eventBus
}

// editedCells enters edit mode and returns the current grid values for the test to
// modify.
func editedCells(t *testing.T, service *ServiceImpl) [][]any {
	t.Helper()
	workbook, err := service.SetEditMode(ctx, true)
	require.NoError(t, err)
	return workbook.Values()
}

func newRow(project string, budgetAllocated float64) []any {
	return []any{nil, project, "Jane", "Jan", "Planned", budgetAllocated, 4.0, "new", nil}
}

func TestWorkbook_LoadsOnFirstUse(t *testing.T) {
	// given
	service, stub, _ := setupService(t, SyncBulk)

	// when
	workbook, err := service.Workbook(ctx)
	require.NoError(t, err)
	_, err = service.Workbook(ctx)
	require.NoError(t, err)

	// then
	require.Len(t, workbook.Sheets, 1)
	assert.Len(t, workbook.Sheets[0].Rows, 1+2+2)
	assert.Equal(t, 1, stub.Calls("ListBudgets"))
	assert.Equal(t, 1, stub.Calls("ListStatuses"))
	assert.False(t, service.Editable())
}

func TestLoad_FailureKeepsPreviousState(t *testing.T) {
	t.Run("failing lookup", func(t *testing.T) {
		// given
		service, stub, _ := setupService(t, SyncBulk)
		require.NoError(t, service.Load(ctx))
		stub.SetBudgets(nil)
		stub.SetListMonthsError(errors.New("boom"))

		// when
		err := service.Load(ctx)

		// then
		var fetchErr *reference.FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.Equal(t, "months", fetchErr.Source)
		records, err := service.Records(ctx)
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("failing budgets", func(t *testing.T) {
		// given
		service, stub, _ := setupService(t, SyncBulk)
		stub.SetListBudgetsError(errors.New("boom"))

		// when
		_, err := service.Workbook(ctx)

		// then
		var fetchErr *reference.FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.Equal(t, "budgets", fetchErr.Source)
	})
}

func TestCaptureChange_RequiresEditMode(t *testing.T) {
	// given
	service, _, _ := setupService(t, SyncBulk)

	// when
	err := service.CaptureChange([][]any{{"BudgetPlanId"}})

	// then
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestSave_Bulk(t *testing.T) {
	// given
	service, stub, eventBus := setupService(t, SyncBulk)
	var saved []event_bus.SheetSaved
	event_bus.SubscribeTyped(eventBus, event_bus.BudgetSheetSaved, func(e event_bus.EventT[event_bus.SheetSaved]) error {
		saved = append(saved, e.Data)
		return nil
	})
	cells := editedCells(t, service)
	cells[1][budget.ColumnBudgetAllocated] = 2000.0
	cells[3] = newRow("Globex", 300)
	require.NoError(t, service.CaptureChange(cells))

	// when
	result, err := service.Save(ctx)

	// then
	require.NoError(t, err)
	assert.Equal(t, Saved, result.Status)
	assert.NotEmpty(t, result.OperationId)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Unchanged)
	assert.Equal(t, 1, result.Skipped)

	assert.Equal(t, 1, stub.Calls("BulkUpsert"))
	assert.Equal(t, 0, stub.Calls("AddBudget"))
	upserted := stub.Upserted()
	require.Len(t, upserted, 1)
	require.Len(t, upserted[0], 2)
	assert.Equal(t, budget.Unsaved, upserted[0][0].BudgetPlanId)
	assert.Equal(t, 2, upserted[0][0].ProjectId)
	assert.Equal(t, budget.PlanId(101), upserted[0][1].BudgetPlanId)
	assert.True(t, decimal.NewFromInt(2000).Equal(upserted[0][1].BudgetAllocated))

	assert.False(t, service.Editable())
	records, err := service.Records(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 3)
	require.Len(t, saved, 1)
	assert.Equal(t, result.OperationId, saved[0].OperationId)
	assert.Equal(t, 1, saved[0].Created)
}

func TestSave_PerRecord(t *testing.T) {
	t.Run("creates and updates", func(t *testing.T) {
		// given
		service, stub, _ := setupService(t, SyncPerRecord)
		cells := editedCells(t, service)
		cells[2][budget.ColumnComments] = "changed"
		cells[3] = newRow("Acme", 10)
		cells[4] = newRow("Globex", 20)
		require.NoError(t, service.CaptureChange(cells))

		// when
		result, err := service.Save(ctx)

		// then
		require.NoError(t, err)
		assert.Equal(t, 2, result.Created)
		assert.Equal(t, 1, result.Updated)
		assert.Equal(t, 2, stub.Calls("AddBudget"))
		assert.Equal(t, 1, stub.Calls("BulkUpsert"))
		require.Len(t, stub.Upserted(), 1)
		assert.Equal(t, "changed", stub.Upserted()[0][0].Comments)
	})

	t.Run("creates only", func(t *testing.T) {
		// given
		service, stub, _ := setupService(t, SyncPerRecord)
		cells := editedCells(t, service)
		cells[3] = newRow("Acme", 10)
		require.NoError(t, service.CaptureChange(cells))

		// when
		_, err := service.Save(ctx)

		// then
		require.NoError(t, err)
		assert.Equal(t, 1, stub.Calls("AddBudget"))
		assert.Equal(t, 0, stub.Calls("BulkUpsert"))
	})
}

func TestSave_ValidationBlocksNetwork(t *testing.T) {
	// given
	service, stub, _ := setupService(t, SyncBulk)
	cells := editedCells(t, service)
	cells[1][budget.ColumnBudgetAllocated] = 999.0
	cells[3] = newRow("Acme", -5)
	require.NoError(t, service.CaptureChange(cells))

	// when
	_, err := service.Save(ctx)

	// then
	var validationErrors reconcile.ValidationErrors
	require.True(t, errors.As(err, &validationErrors))
	require.Len(t, validationErrors, 1)
	assert.Equal(t, 3, validationErrors[0].RowIndex)
	assert.Equal(t, reconcile.MsgBudgetNegative, validationErrors[0].Message)
	assert.Equal(t, 0, stub.TotalMutations())
	assert.True(t, service.Editable())
}

func TestSave_NothingToSave(t *testing.T) {
	t.Run("no change reported", func(t *testing.T) {
		service, stub, _ := setupService(t, SyncBulk)
		_ = editedCells(t, service)

		result, err := service.Save(ctx)

		require.NoError(t, err)
		assert.Equal(t, NothingToSave, result.Status)
		assert.Equal(t, 0, stub.TotalMutations())
	})

	t.Run("unchanged grid", func(t *testing.T) {
		service, stub, _ := setupService(t, SyncBulk)
		require.NoError(t, service.CaptureChange(editedCells(t, service)))

		result, err := service.Save(ctx)

		require.NoError(t, err)
		assert.Equal(t, NothingToSave, result.Status)
		assert.Equal(t, 2, result.Unchanged)
		assert.Equal(t, 2, result.Skipped)
		assert.Equal(t, 0, stub.TotalMutations())
	})
}

func TestSave_FailureKeepsEditMode(t *testing.T) {
	// given
	service, stub, _ := setupService(t, SyncBulk)
	cells := editedCells(t, service)
	cells[3] = newRow("Acme", 10)
	require.NoError(t, service.CaptureChange(cells))
	stub.SetBulkUpsertError(errors.New("gateway timeout"))

	// when
	_, err := service.Save(ctx)

	// then
	var saveErr *SaveError
	require.True(t, errors.As(err, &saveErr))
	assert.Equal(t, SyncBulk, saveErr.Mode)
	assert.NotEmpty(t, saveErr.OperationId)
	assert.True(t, service.Editable())

	// and the same changes can be retried
	stub.SetBulkUpsertError(nil)
	result, err := service.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.False(t, service.Editable())
}

func TestUnresolvedNamesAreSentUnlinked(t *testing.T) {
	// given
	service, stub, _ := setupService(t, SyncBulk)
	cells := editedCells(t, service)
	cells[3] = newRow("Initech", 10)
	require.NoError(t, service.CaptureChange(cells))

	// when
	result, err := service.Save(ctx)

	// then
	require.NoError(t, err)
	require.Len(t, result.Unresolved, 1)
	assert.Equal(t, reference.Project, result.Unresolved[0].Kind)
	assert.Equal(t, "Initech", result.Unresolved[0].Name)
	assert.Equal(t, reference.Unresolved, stub.Upserted()[0][0].ProjectId)
}

func TestDeleteSelected(t *testing.T) {
	// given
	service, stub, eventBus := setupService(t, SyncBulk)
	var deleted []event_bus.SheetDeleted
	event_bus.SubscribeTyped(eventBus, event_bus.BudgetSheetDeleted, func(e event_bus.EventT[event_bus.SheetDeleted]) error {
		deleted = append(deleted, e.Data)
		return nil
	})
	_, err := service.Workbook(ctx)
	require.NoError(t, err)

	// when
	ids, err := service.DeleteSelected(ctx, []selection.Range{{TopRow: 0, LeftCol: 1, BottomRow: 4, RightCol: 3}})

	// then
	require.NoError(t, err)
	assert.Equal(t, []budget.PlanId{101, 102}, ids)
	assert.Equal(t, [][]budget.PlanId{{101, 102}}, stub.BulkDeleted())
	records, err := service.Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
	require.Len(t, deleted, 1)
	assert.Equal(t, []int{101, 102}, deleted[0].Ids)
}

func TestDelete_NothingSelected(t *testing.T) {
	// given
	service, stub, _ := setupService(t, SyncBulk)
	_, err := service.Workbook(ctx)
	require.NoError(t, err)

	// when
	_, headerOnly := service.DeleteSelected(ctx, []selection.Range{{TopRow: 0, LeftCol: 0, BottomRow: 0, RightCol: 8}})
	_, blankRows := service.DeleteSelected(ctx, []selection.Range{{TopRow: 3, LeftCol: 0, BottomRow: 4, RightCol: 0}})
	unsaved := service.Delete(ctx, []budget.PlanId{budget.Unsaved})

	// then
	assert.ErrorIs(t, headerOnly, ErrNothingSelected)
	assert.ErrorIs(t, blankRows, ErrNothingSelected)
	assert.ErrorIs(t, unsaved, ErrNothingSelected)
	assert.Equal(t, 0, stub.Calls("BulkDelete"))
}

func TestDelete_BackendRejects(t *testing.T) {
	// given
	service, stub, _ := setupService(t, SyncBulk)
	stub.SetBulkDeleteError(errors.New("constraint violation"))

	// when
	err := service.Delete(ctx, []budget.PlanId{101})

	// then
	var bulkErr *BulkDeleteError
	require.True(t, errors.As(err, &bulkErr))
	assert.Equal(t, []budget.PlanId{101}, bulkErr.Ids)
	records, err := service.Records(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestDeleteOne(t *testing.T) {
	t.Run("deletes and reloads", func(t *testing.T) {
		service, stub, _ := setupService(t, SyncBulk)

		require.NoError(t, service.DeleteOne(ctx, 101))

		assert.Equal(t, []budget.PlanId{101}, stub.DeletedOnes())
		records, err := service.Records(ctx)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, budget.PlanId(102), records[0].BudgetPlanId)
	})

	t.Run("unsaved id", func(t *testing.T) {
		service, stub, _ := setupService(t, SyncBulk)

		assert.ErrorIs(t, service.DeleteOne(ctx, budget.Unsaved), ErrNothingSelected)
		assert.Equal(t, 0, stub.Calls("DeleteBudget"))
	})

	t.Run("backend failure", func(t *testing.T) {
		service, stub, _ := setupService(t, SyncBulk)
		stub.SetDeleteBudgetError(errors.New("not found"))

		err := service.DeleteOne(ctx, 101)

		var deleteErr *DeleteError
		require.True(t, errors.As(err, &deleteErr))
		assert.Equal(t, budget.PlanId(101), deleteErr.Id)
	})
}

type blockingClient struct {
	*budget_api.ClientStub
	entered chan struct{}
	release chan struct{}
}

func (c *blockingClient) BulkUpsert(ctx context.Context, records []budget.Record) error {
	c.entered <- struct{}{}
	<-c.release
	return c.ClientStub.BulkUpsert(ctx, records)
}

func TestBusyGuard(t *testing.T) {
	// given
	client := &blockingClient{ClientStub: newStub(), entered: make(chan struct{}, 1), release: make(chan struct{})}
	service := NewBudgetSheetService(client, event_bus.NewEventBus(), options(SyncBulk))
	cells := editedCells(t, service)
	cells[3] = newRow("Acme", 10)
	require.NoError(t, service.CaptureChange(cells))

	done := make(chan error, 1)
	go func() {
		_, err := service.Save(ctx)
		done <- err
	}()
	select {
	case <-client.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("save did not reach the backend")
	}

	// when
	_, saveErr := service.Save(ctx)
	deleteErr := service.Delete(ctx, []budget.PlanId{101})
	_, importErr := service.Import(ctx, nil)

	// then
	assert.ErrorIs(t, saveErr, ErrBusy)
	assert.ErrorIs(t, deleteErr, ErrBusy)
	assert.ErrorIs(t, importErr, ErrBusy)
	assert.Equal(t, 0, client.Calls("BulkDelete"))

	close(client.release)
	require.NoError(t, <-done)
}

// upsertHookClient runs onUpsert while a bulk upsert is in flight.
type upsertHookClient struct {
	*budget_api.ClientStub
	onUpsert func()
}

func (c *upsertHookClient) BulkUpsert(ctx context.Context, records []budget.Record) error {
	if c.onUpsert != nil {
		c.onUpsert()
	}
	return c.ClientStub.BulkUpsert(ctx, records)
}

func TestCaptureChange_DuringSave(t *testing.T) {
	// given
	client := &upsertHookClient{ClientStub: newStub()}
	service := NewBudgetSheetService(client, event_bus.NewEventBus(), options(SyncBulk))
	cells := editedCells(t, service)
	cells[1][budget.ColumnComments] = "first pass"
	require.NoError(t, service.CaptureChange(cells))

	later := editedCells(t, service)
	later[2][budget.ColumnComments] = "typed while saving"
	var captureErr error
	client.onUpsert = func() {
		client.onUpsert = nil
		captureErr = service.CaptureChange(later)
	}
	require.NoError(t, service.CaptureChange(cells))

	// when
	_, err := service.Save(ctx)

	// then
	require.NoError(t, err)
	assert.ErrorIs(t, captureErr, ErrBusy)
	assert.False(t, service.Editable())

	t.Run("should save the rejected edit once it is sent again", func(t *testing.T) {
		retry := editedCells(t, service)
		retry[2][budget.ColumnComments] = "typed while saving"
		require.NoError(t, service.CaptureChange(retry))

		result, err := service.Save(ctx)

		require.NoError(t, err)
		assert.Equal(t, 1, result.Updated)
		records, err := service.Records(ctx)
		require.NoError(t, err)
		assert.Equal(t, "first pass", records[0].Comments)
		assert.Equal(t, "typed while saving", records[1].Comments)
	})
}

func TestImport(t *testing.T) {
	// given
	service, stub, _ := setupService(t, SyncBulk)
	rows := []map[string]string{
		{
			"Project":       "Acme",
			"Employee Name": "Jane",
			"Month":         "Jan",
			"Status":        "Planned",
			"Budget":        "1,250.75",
			"Hours":         "5",
			"Unknown":       "ignored",
		},
		{
			"BudgetPlanId":     "102",
			"Project Name":     "Globex",
			"Employee Name":    "Jane",
			"Month":            "Jan",
			"Status":           "Approved",
			"Budget Allocated": "200",
			"Hours Planned":    "2.5",
		},
	}

	// when
	result, err := service.Import(ctx, rows)

	// then
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 1, result.Unchanged)
	require.Len(t, stub.Upserted(), 1)
	created := stub.Upserted()[0][0]
	assert.True(t, decimal.RequireFromString("1250.75").Equal(created.BudgetAllocated))
	assert.Equal(t, 1, created.ProjectId)
	assert.False(t, service.Editable())
}

func TestImport_InvalidRows(t *testing.T) {
	// given
	service, stub, _ := setupService(t, SyncBulk)

	// when
	_, err := service.Import(ctx, []map[string]string{{"Project": "Acme", "Budget": "lots"}})

	// then
	var validationErrors reconcile.ValidationErrors
	require.True(t, errors.As(err, &validationErrors))
	assert.Equal(t, 0, stub.TotalMutations())
}

func TestStoreChange_MarksStale(t *testing.T) {
	// given
	service, stub, eventBus := setupService(t, SyncBulk)
	_, err := service.SetEditMode(ctx, true)
	require.NoError(t, err)
	require.Equal(t, 1, stub.Calls("ListBudgets"))

	// when
	require.NoError(t, eventBus.Publish(event_bus.NewEvent(ctx, event_bus.BudgetStoreChanged, event_bus.StoreChange{Operation: "insert", Ids: []int{7}})))

	// then the editing user is not disturbed
	_, err = service.Workbook(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stub.Calls("ListBudgets"))

	// and the data is reloaded once editing ends
	_, err = service.SetEditMode(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, stub.Calls("ListBudgets"))
}

func TestSelectedIds_UsesLatestSnapshot(t *testing.T) {
	// given
	service, _, _ := setupService(t, SyncBulk)
	cells := editedCells(t, service)
	cells[1], cells[2] = cells[2], cells[1]
	require.NoError(t, service.CaptureChange(cells))

	// when
	ids := service.SelectedIds([]selection.Range{{TopRow: 1, LeftCol: 0, BottomRow: 1, RightCol: 0}})

	// then
	assert.Equal(t, []budget.PlanId{102}, ids)
}

func TestSave_AfterImportWithUnknownName(t *testing.T) {
	// given
	service, stub, _ := setupService(t, SyncBulk)
	imported, err := service.Import(ctx, []map[string]string{{
		"Project":       "Initech",
		"Employee Name": "Jane",
		"Month":         "Jan",
		"Status":        "Planned",
		"Budget":        "300",
		"Hours":         "3",
	}})
	require.NoError(t, err)
	require.Equal(t, 1, imported.Created)
	require.Len(t, imported.Unresolved, 1)

	cells := editedCells(t, service)
	require.Equal(t, "", cells[3][budget.ColumnProject])
	cells[1][budget.ColumnComments] = "revised"
	require.NoError(t, service.CaptureChange(cells))

	// when
	result, err := service.Save(ctx)

	// then
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 2, result.Unchanged)
	upserted := stub.Upserted()
	require.Len(t, upserted, 2)
	require.Len(t, upserted[1], 1)
	assert.Equal(t, budget.PlanId(101), upserted[1][0].BudgetPlanId)
	assert.Equal(t, "revised", upserted[1][0].Comments)
}
