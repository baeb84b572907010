package app

import (
	"context"

	"github.com/empbudget/budgetgrid/internal/config"
	"github.com/empbudget/budgetgrid/internal/event_bus"
	"github.com/empbudget/budgetgrid/internal/utils"
	"github.com/empbudget/budgetgrid/pkg/budget_api"
	"github.com/empbudget/budgetgrid/pkg/budget_sheet"
	"github.com/empbudget/budgetgrid/pkg/budget_store"
	"github.com/empbudget/budgetgrid/pkg/google_sheets"
	"github.com/empbudget/budgetgrid/pkg/grid"
	"github.com/empbudget/budgetgrid/pkg/reconcile"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	EventBus *event_bus.EventBus
	Clock    utils.Clock

	BudgetStoreRepo    budget_store.Repository
	BudgetStoreService *budget_store.ServiceImpl
	BudgetStoreHandler *budget_store.Handler

	// SheetClient is what the sheet talks to: the in-process store, or a remote
	// backend when an upstream URL is configured.
	SheetClient        budget_api.Client
	GoogleReader       google_sheets.Reader
	BudgetSheetService *budget_sheet.ServiceImpl
	BudgetSheetHandler *budget_sheet.Handler
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(ctx context.Context, db *pgxpool.Pool, cfg config.Application) *Dependencies {
	deps := &Dependencies{}

	deps.EventBus = event_bus.NewEventBus()
	deps.Clock = utils.SystemClock{}
	subscribeActivityLog(deps.EventBus)

	deps.BudgetStoreRepo = budget_store.NewRepository(db)
	deps.BudgetStoreService = budget_store.NewBudgetStoreService(deps.BudgetStoreRepo, deps.EventBus)
	deps.BudgetStoreHandler = budget_store.NewHandler(deps.BudgetStoreService)

	if cfg.Upstream.BaseUrl != "" {
		log.Infof("Budget sheet uses the remote backend at %s", cfg.Upstream.BaseUrl)
		deps.SheetClient = budget_api.NewClient(cfg.Upstream.BaseUrl, cfg.Upstream.Timeout())
	} else {
		deps.SheetClient = deps.BudgetStoreService
	}

	if cfg.Google.CredentialsFile != "" {
		reader, err := google_sheets.NewReader(ctx, cfg.Google.CredentialsFile)
		if err != nil {
			log.Warnf("Google Sheets import disabled: %v", err)
		} else {
			deps.GoogleReader = reader
		}
	}

	deps.BudgetSheetService = budget_sheet.NewBudgetSheetService(deps.SheetClient, deps.EventBus, SheetOptions(cfg))
	deps.BudgetSheetHandler = budget_sheet.NewHandler(deps.BudgetSheetService, deps.GoogleReader, deps.Clock)

	return deps
}

// SheetOptions maps the configuration onto the sheet's sync, validation and
// presentation settings.
func SheetOptions(cfg config.Application) budget_sheet.Options {
	styles := make(map[string]grid.StatusStyle, len(cfg.Grid.StatusStyles))
	for status, style := range cfg.Grid.StatusStyles {
		styles[status] = grid.StatusStyle{Background: style.Background, Color: style.Color}
	}

	mode := budget_sheet.SyncMode(cfg.Sync.Mode)
	if mode != budget_sheet.SyncBulk && mode != budget_sheet.SyncPerRecord {
		log.Warnf("Unknown sync mode %q, using %q", cfg.Sync.Mode, budget_sheet.SyncBulk)
		mode = budget_sheet.SyncBulk
	}

	return budget_sheet.Options{
		Mode: mode,
		Policy: reconcile.Policy{
			RequirePositiveBudget: cfg.Validation.RequirePositiveBudget,
			StrictReferences:      cfg.Validation.StrictReferences,
		},
		Grid: grid.Options{
			SheetName:    cfg.Grid.SheetName,
			BlankRows:    cfg.Grid.BlankRows,
			BudgetMin:    cfg.Grid.BudgetMin,
			BudgetMax:    cfg.Grid.BudgetMax,
			HoursMin:     cfg.Grid.HoursMin,
			HoursMax:     cfg.Grid.HoursMax,
			StatusStyles: styles,
		},
	}
}

// subscribeActivityLog writes an info line for every completed sheet operation.
func subscribeActivityLog(eventBus *event_bus.EventBus) {
	event_bus.SubscribeTyped(eventBus, event_bus.BudgetSheetSaved, func(e event_bus.EventT[event_bus.SheetSaved]) error {
		log.WithField("op", e.Data.OperationId).Infof("budget sheet saved: %d created, %d updated, %d unchanged",
			e.Data.Created, e.Data.Updated, e.Data.Unchanged)
		return nil
	})
	event_bus.SubscribeTyped(eventBus, event_bus.BudgetSheetDeleted, func(e event_bus.EventT[event_bus.SheetDeleted]) error {
		log.WithField("op", e.Data.OperationId).Infof("budget sheet deleted %d record(s): %v", len(e.Data.Ids), e.Data.Ids)
		return nil
	})
	event_bus.SubscribeTyped(eventBus, event_bus.BudgetStoreChanged, func(e event_bus.EventT[event_bus.StoreChange]) error {
		log.Debugf("budget store %s: %v", e.Data.Operation, e.Data.Ids)
		return nil
	})
}
