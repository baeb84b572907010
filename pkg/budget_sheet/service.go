package budget_sheet

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/empbudget/budgetgrid/internal/event_bus"
	"github.com/empbudget/budgetgrid/pkg/budget"
	"github.com/empbudget/budgetgrid/pkg/budget_api"
	"github.com/empbudget/budgetgrid/pkg/grid"
	"github.com/empbudget/budgetgrid/pkg/reconcile"
	"github.com/empbudget/budgetgrid/pkg/reference"
	"github.com/empbudget/budgetgrid/pkg/selection"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type SyncMode string

const (
	// SyncBulk sends creates and updates in one /BulkUpsert call.
	SyncBulk SyncMode = "bulk"
	// SyncPerRecord sends one /AddBudget per create, concurrently, and the updates in
	// one /BulkUpsert call.
	SyncPerRecord SyncMode = "per-record"
)

// maxConcurrentCreates bounds the parallel /AddBudget calls of a per-record save.
const maxConcurrentCreates = 8

type SaveStatus string

const (
	Saved         SaveStatus = "saved"
	NothingToSave SaveStatus = "nothing_to_save"
)

type SaveResult struct {
	OperationId string
	Status      SaveStatus
	Created     int
	Updated     int
	Unchanged   int
	Skipped     int
	Unresolved  []reconcile.UnresolvedReference
}

type Options struct {
	Mode   SyncMode
	Policy reconcile.Policy
	Grid   grid.Options
}

type Service interface {
	// Load fetches records and all lookups together. On failure the previous state is
	// kept and a *reference.FetchError is returned.
	Load(ctx context.Context) error
	Workbook(ctx context.Context) (grid.Workbook, error)
	Editable() bool
	SetEditMode(ctx context.Context, editable bool) (grid.Workbook, error)
	CaptureChange(cells [][]any) error
	SelectedIds(ranges []selection.Range) []budget.PlanId
	Save(ctx context.Context) (SaveResult, error)
	Delete(ctx context.Context, ids []budget.PlanId) error
	DeleteSelected(ctx context.Context, ranges []selection.Range) ([]budget.PlanId, error)
	DeleteOne(ctx context.Context, id budget.PlanId) error
	Import(ctx context.Context, rows []map[string]string) (SaveResult, error)
	Records(ctx context.Context) ([]budget.View, error)
}

// ServiceImpl holds the state behind one grid: the loaded records and lookups, the
// edit mode and the latest snapshot reported by the widget. Mutations of backend data
// are serialized by the busy flag; state writes happen under mu.
type ServiceImpl struct {
	client   budget_api.Client
	eventBus *event_bus.EventBus
	opts     Options
	lookups  *reference.Cache

	mu       sync.RWMutex
	records  []budget.View
	loaded   bool
	editable bool
	snapshot *reconcile.Snapshot

	busy  atomic.Bool
	stale atomic.Bool
}

func NewBudgetSheetService(client budget_api.Client, eventBus *event_bus.EventBus, opts Options) *ServiceImpl {
	if opts.Mode == "" {
		opts.Mode = SyncBulk
	}
	s := &ServiceImpl{
		client:   client,
		eventBus: eventBus,
		opts:     opts,
		lookups:  reference.NewCache(),
	}
	if eventBus != nil {
		event_bus.SubscribeTyped(eventBus, event_bus.BudgetStoreChanged, func(e event_bus.EventT[event_bus.StoreChange]) error {
			log.Debugf("budget store changed (%s), sheet data is stale", e.Data.Operation)
			s.stale.Store(true)
			return nil
		})
	}
	return s
}

func (s *ServiceImpl) Load(ctx context.Context) error {
	wasStale := s.stale.Swap(false)

	var records []budget.View
	var lookups reference.Lookups
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = s.client.ListBudgets(gctx)
		if err != nil {
			return &reference.FetchError{Source: "budgets", Err: err}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		lookups, err = reference.Fetch(gctx, s.client)
		return err
	})

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		if wasStale {
			s.stale.Store(true)
		}
		log.Errorf("failed to load budget sheet: %v", err)
		return err
	}

	s.mu.Lock()
	s.records = records
	s.lookups.Store(lookups)
	s.loaded = true
	s.mu.Unlock()
	log.Debugf("loaded %d budget records", len(records))
	return nil
}

// ensureLoaded loads on first use, and reloads stale data unless the user is editing.
func (s *ServiceImpl) ensureLoaded(ctx context.Context) error {
	s.mu.RLock()
	loaded, editable := s.loaded, s.editable
	s.mu.RUnlock()
	if loaded && !(s.stale.Load() && !editable) {
		return nil
	}
	return s.Load(ctx)
}

func (s *ServiceImpl) Workbook(ctx context.Context) (grid.Workbook, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return grid.Workbook{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return grid.Build(s.records, s.lookups.Get(), s.editable, s.opts.Grid), nil
}

func (s *ServiceImpl) Editable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.editable
}

// SetEditMode switches the sheet between read-only and editable. Entering edit mode
// refreshes the lookups so dropdowns offer current names; leaving it discards the
// pending snapshot.
func (s *ServiceImpl) SetEditMode(ctx context.Context, editable bool) (grid.Workbook, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return grid.Workbook{}, err
	}
	if editable {
		if _, err := s.lookups.Refresh(ctx, s.client); err != nil {
			log.Errorf("failed to refresh lookups before editing: %v", err)
			return grid.Workbook{}, err
		}
	}

	s.mu.Lock()
	s.editable = editable
	s.snapshot = nil
	s.mu.Unlock()
	return s.Workbook(ctx)
}

// CaptureChange records the full grid content reported by the widget. The latest
// report wins. Reports arriving while a save, delete or import runs are rejected with
// ErrBusy since the running operation replaces the snapshot when it completes.
func (s *ServiceImpl) CaptureChange(cells [][]any) error {
	snapshot := reconcile.NewSnapshot(cells)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editable {
		return ErrReadOnly
	}
	// checked under mu: Save reads the snapshot under mu after taking busy
	if s.busy.Load() {
		return ErrBusy
	}
	s.snapshot = &snapshot
	return nil
}

// SelectedIds maps the widget selection to budget plan ids, reading the id column of
// the latest snapshot, or of the current projection when nothing was edited.
func (s *ServiceImpl) SelectedIds(ranges []selection.Range) []budget.PlanId {
	s.mu.RLock()
	var sheet selection.SheetAccessor
	if s.snapshot != nil {
		sheet = *s.snapshot
	} else {
		values := grid.Build(s.records, s.lookups.Get(), s.editable, s.opts.Grid).Values()
		sheet = reconcile.NewSnapshot(values)
	}
	s.mu.RUnlock()

	raw := selection.IdsFromSelection(ranges, sheet)
	ids := make([]budget.PlanId, 0, len(raw))
	for _, id := range raw {
		ids = append(ids, budget.PlanId(id))
	}
	return ids
}

func (s *ServiceImpl) Save(ctx context.Context) (SaveResult, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return SaveResult{}, ErrBusy
	}
	defer s.busy.Store(false)

	s.mu.RLock()
	snapshot := s.snapshot
	s.mu.RUnlock()
	if snapshot == nil {
		log.Debug("save requested without changes")
		return SaveResult{Status: NothingToSave}, nil
	}
	return s.push(ctx, *snapshot, true)
}

// Import saves header-keyed rows, as read from a spreadsheet file or a Google sheet,
// through the same reconciliation as an interactive save.
func (s *ServiceImpl) Import(ctx context.Context, rows []map[string]string) (SaveResult, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return SaveResult{}, ErrBusy
	}
	defer s.busy.Store(false)

	if err := s.ensureLoaded(ctx); err != nil {
		return SaveResult{}, err
	}
	return s.push(ctx, reconcile.NewSnapshot(importCells(rows)), false)
}

// importCells lays header-keyed rows out in sheet column order behind a header row.
// Unknown headers are ignored.
func importCells(rows []map[string]string) [][]any {
	header := make([]any, 0, budget.ColumnCount)
	for _, title := range budget.Titles() {
		header = append(header, title)
	}
	cells := [][]any{header}
	for _, row := range rows {
		values := make([]any, budget.ColumnCount)
		for key, value := range row {
			if column, ok := budget.ColumnByHeader(key); ok {
				values[column.Index] = value
			}
		}
		cells = append(cells, values)
	}
	return cells
}

// push reconciles a snapshot and sends the resulting batch. Validation failures
// return reconcile.ValidationErrors before any network call.
func (s *ServiceImpl) push(ctx context.Context, snapshot reconcile.Snapshot, leaveEditMode bool) (SaveResult, error) {
	opId := uuid.NewString()
	logger := log.WithField("op", opId)

	s.mu.RLock()
	current := make([]budget.Record, 0, len(s.records))
	for _, v := range s.records {
		current = append(current, v.Record)
	}
	s.mu.RUnlock()

	result := reconcile.ReconcileAgainst(snapshot, current, s.lookups.Get(), s.opts.Policy)
	for _, u := range result.Unresolved {
		logger.Warnf("row %d: %s %q has no match, sending id %d", u.RowIndex+1, u.Kind, u.Name, reference.Unresolved)
	}
	if !result.Valid() {
		logger.Infof("save blocked by %d validation error(s)", len(result.Errors))
		return SaveResult{}, result.Errors
	}
	result = result.DropUnchanged(current)

	saveResult := SaveResult{
		OperationId: opId,
		Status:      Saved,
		Created:     len(result.Creates),
		Updated:     len(result.Updates),
		Unchanged:   result.Unchanged,
		Skipped:     result.Skipped,
		Unresolved:  result.Unresolved,
	}
	if result.Empty() {
		logger.Debug("nothing to save")
		saveResult.Status = NothingToSave
		return saveResult, nil
	}

	logger.Infof("saving %d new and %d changed budget record(s) in %s mode", saveResult.Created, saveResult.Updated, s.opts.Mode)
	if err := s.send(ctx, result); err != nil {
		logger.Errorf("save failed: %v", err)
		return SaveResult{}, &SaveError{OperationId: opId, Mode: s.opts.Mode, Err: err}
	}

	if leaveEditMode {
		s.mu.Lock()
		s.editable = false
		s.snapshot = nil
		s.mu.Unlock()
	}
	s.reloadAfterMutation(ctx, logger)
	s.publish(ctx, event_bus.BudgetSheetSaved, event_bus.SheetSaved{
		OperationId: opId,
		Created:     saveResult.Created,
		Updated:     saveResult.Updated,
		Unchanged:   saveResult.Unchanged,
	})
	return saveResult, nil
}

func (s *ServiceImpl) send(ctx context.Context, result reconcile.Result) error {
	if s.opts.Mode != SyncPerRecord {
		return s.client.BulkUpsert(ctx, result.Records())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentCreates)
	for _, record := range result.Creates {
		g.Go(func() error {
			_, err := s.client.AddBudget(gctx, record)
			return err
		})
	}
	if len(result.Updates) > 0 {
		g.Go(func() error {
			return s.client.BulkUpsert(gctx, result.Updates)
		})
	}
	return g.Wait()
}

func (s *ServiceImpl) Delete(ctx context.Context, ids []budget.PlanId) error {
	ids = slices.DeleteFunc(slices.Clone(ids), func(id budget.PlanId) bool { return !id.Persisted() })
	if len(ids) == 0 {
		return ErrNothingSelected
	}
	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.busy.Store(false)

	opId := uuid.NewString()
	logger := log.WithField("op", opId)
	logger.Infof("deleting %d budget record(s)", len(ids))
	if err := s.client.BulkDelete(ctx, ids); err != nil {
		logger.Errorf("bulk delete failed: %v", err)
		return &BulkDeleteError{Ids: ids, Err: err}
	}
	s.afterDelete(ctx, opId, ids)
	return nil
}

func (s *ServiceImpl) DeleteSelected(ctx context.Context, ranges []selection.Range) ([]budget.PlanId, error) {
	ids := s.SelectedIds(ranges)
	if err := s.Delete(ctx, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *ServiceImpl) DeleteOne(ctx context.Context, id budget.PlanId) error {
	if !id.Persisted() {
		return ErrNothingSelected
	}
	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.busy.Store(false)

	opId := uuid.NewString()
	if err := s.client.DeleteBudget(ctx, id); err != nil {
		log.WithField("op", opId).Errorf("delete of budget %d failed: %v", id, err)
		return &DeleteError{Id: id, Err: err}
	}
	s.afterDelete(ctx, opId, []budget.PlanId{id})
	return nil
}

// afterDelete drops the snapshot, whose rows no longer line up with the data, and
// reloads.
func (s *ServiceImpl) afterDelete(ctx context.Context, opId string, ids []budget.PlanId) {
	s.mu.Lock()
	s.snapshot = nil
	s.mu.Unlock()
	s.reloadAfterMutation(ctx, log.WithField("op", opId))

	payload := event_bus.SheetDeleted{OperationId: opId, Ids: make([]int, 0, len(ids))}
	for _, id := range ids {
		payload.Ids = append(payload.Ids, int(id))
	}
	s.publish(ctx, event_bus.BudgetSheetDeleted, payload)
}

// reloadAfterMutation refreshes the projection. The mutation itself succeeded, so a
// failed reload only marks the data stale for the next read.
func (s *ServiceImpl) reloadAfterMutation(ctx context.Context, logger *log.Entry) {
	if err := s.Load(ctx); err != nil {
		logger.Warnf("reload after change failed, will retry on next read: %v", err)
		s.stale.Store(true)
	}
}

func (s *ServiceImpl) Records(ctx context.Context) ([]budget.View, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records), nil
}

func (s *ServiceImpl) publish(ctx context.Context, eventType event_bus.EventType, payload any) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(event_bus.NewEvent(ctx, eventType, payload)); err != nil && !errors.Is(err, context.Canceled) {
		log.Warnf("event %s was not handled by every subscriber: %v", eventType, err)
	}
}
